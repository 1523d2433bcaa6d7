package pose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertPrimary(t *testing.T) {
	t.Parallel()

	t.Run("wrong landmark count", func(t *testing.T) {
		t.Parallel()
		_, err := ConvertPrimary(PrimaryResult{Landmarks: make([]PrimaryLandmark, 10)}, time.Now())
		assert.Error(t, err)
	})

	t.Run("full result converts in order", func(t *testing.T) {
		t.Parallel()
		res := PrimaryResult{Landmarks: make([]PrimaryLandmark, NumLandmarks)}
		for i := range res.Landmarks {
			res.Landmarks[i] = PrimaryLandmark{X: float64(i), Visibility: 0.8}
		}
		conv, err := ConvertPrimary(res, time.Now())
		require.NoError(t, err)
		assert.Equal(t, ModelPrimary, conv.Model)
		require.Len(t, conv.Points, NumLandmarks)
		assert.Equal(t, LeftKnee, conv.Points[LeftKnee].Index)
		assert.Equal(t, float64(LeftKnee), conv.Points[LeftKnee].Position.X)
	})

	t.Run("confidence clamped to unit range", func(t *testing.T) {
		t.Parallel()
		res := PrimaryResult{Landmarks: make([]PrimaryLandmark, NumLandmarks)}
		res.Landmarks[0].Visibility = 1.7
		res.Landmarks[1].Visibility = -0.3
		conv, err := ConvertPrimary(res, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1.0, conv.Points[0].Confidence)
		assert.Equal(t, 0.0, conv.Points[1].Confidence)
	})
}

func TestConvertSecondary(t *testing.T) {
	t.Parallel()

	t.Run("wrong keypoint count", func(t *testing.T) {
		t.Parallel()
		_, err := ConvertSecondary(SecondaryResult{Keypoints: make([]SecondaryKeypoint, NumLandmarks)}, time.Now())
		assert.Error(t, err)
	})

	t.Run("indices translate to canonical topology", func(t *testing.T) {
		t.Parallel()
		res := SecondaryResult{Keypoints: make([]SecondaryKeypoint, NumSecondaryKeypoints)}
		for i := range res.Keypoints {
			res.Keypoints[i] = SecondaryKeypoint{X: float64(i), Score: 0.9}
		}
		conv, err := ConvertSecondary(res, time.Now())
		require.NoError(t, err)
		assert.Equal(t, ModelSecondary, conv.Model)

		// Reduced-topology shoulders land on the canonical shoulder indices.
		assert.Equal(t, LeftShoulder, conv.Points[SecLeftShoulder].Index)
		assert.Equal(t, RightShoulder, conv.Points[SecRightShoulder].Index)
		assert.Equal(t, LeftAnkle, conv.Points[SecLeftAnkle].Index)
	})

	t.Run("depth is zero", func(t *testing.T) {
		t.Parallel()
		res := SecondaryResult{Keypoints: make([]SecondaryKeypoint, NumSecondaryKeypoints)}
		res.Keypoints[0] = SecondaryKeypoint{X: 0.5, Y: 0.4, Score: 1}
		conv, err := ConvertSecondary(res, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 0.0, conv.Points[0].Position.Z)
	})
}

func TestLandmarkKnown(t *testing.T) {
	t.Parallel()
	assert.False(t, Landmark{Index: 3}.Known())
	assert.True(t, Landmark{Index: 3, Confidence: 0.1}.Known())
}

func TestSecondaryToCanonicalCoversAllKeypoints(t *testing.T) {
	t.Parallel()
	seen := make(map[int]bool)
	for i := 0; i < NumSecondaryKeypoints; i++ {
		c := SecondaryToCanonical(i)
		assert.GreaterOrEqual(t, c, 0)
		assert.Less(t, c, NumLandmarks)
		assert.False(t, seen[c], "canonical index %d mapped twice", c)
		seen[c] = true
	}
}
