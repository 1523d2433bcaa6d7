package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kinetic-data/motion.report/internal/pose"
)

func TestAngleAt(t *testing.T) {
	t.Parallel()

	t.Run("right angle", func(t *testing.T) {
		t.Parallel()
		angle, ok := AngleAt(r3.Vec{X: 1}, r3.Vec{}, r3.Vec{Y: 1})
		require.True(t, ok)
		assert.InDelta(t, 90, angle, 1e-9)
	})

	t.Run("straight line", func(t *testing.T) {
		t.Parallel()
		angle, ok := AngleAt(r3.Vec{X: -1}, r3.Vec{}, r3.Vec{X: 1})
		require.True(t, ok)
		assert.InDelta(t, 180, angle, 1e-9)
	})

	t.Run("folded back", func(t *testing.T) {
		t.Parallel()
		angle, ok := AngleAt(r3.Vec{X: 1}, r3.Vec{}, r3.Vec{X: 1, Y: 1e-12})
		require.True(t, ok)
		assert.InDelta(t, 0, angle, 1e-6)
	})

	t.Run("uses depth", func(t *testing.T) {
		t.Parallel()
		angle, ok := AngleAt(r3.Vec{Z: 1}, r3.Vec{}, r3.Vec{X: 1})
		require.True(t, ok)
		assert.InDelta(t, 90, angle, 1e-9)
	})

	t.Run("degenerate coincident points", func(t *testing.T) {
		t.Parallel()
		angle, ok := AngleAt(r3.Vec{X: 0.5}, r3.Vec{X: 0.5}, r3.Vec{X: 1})
		assert.False(t, ok)
		assert.Equal(t, 0.0, angle)
	})

	t.Run("always in unit range of degrees", func(t *testing.T) {
		t.Parallel()
		// A grid of arbitrary triples; every valid angle lands in [0,180].
		vals := []float64{-1.3, -0.2, 0, 0.7, 2.1}
		for _, a := range vals {
			for _, b := range vals {
				for _, c := range vals {
					angle, ok := AngleAt(r3.Vec{X: a, Y: b}, r3.Vec{X: b, Y: c}, r3.Vec{X: c, Z: a})
					if !ok {
						continue
					}
					assert.GreaterOrEqual(t, angle, 0.0)
					assert.LessOrEqual(t, angle, 180.0)
				}
			}
		}
	})
}

// kneeBentPose places hip, knee, and ankle for a given left knee angle, with
// all other joints' landmarks left unknown.
func kneeBentPose(angleDeg float64) []pose.Landmark {
	landmarks := make([]pose.Landmark, pose.NumLandmarks)
	for i := range landmarks {
		landmarks[i].Index = i
	}
	set := func(idx int, v r3.Vec) {
		landmarks[idx].Position = v
		landmarks[idx].Confidence = 0.9
		landmarks[idx].Visibility = 0.9
	}
	// Hip straight above the knee; the ankle is rotated away from the hip
	// direction by the requested angle.
	set(pose.LeftHip, r3.Vec{X: 0.5, Y: 0.4})
	set(pose.LeftKnee, r3.Vec{X: 0.5, Y: 0.6})
	rad := angleDeg * math.Pi / 180
	set(pose.LeftAnkle, r3.Vec{
		X: 0.5 + 0.2*math.Sin(rad),
		Y: 0.6 - 0.2*math.Cos(rad),
	})
	return landmarks
}

func TestComputeJointAngles(t *testing.T) {
	t.Parallel()

	t.Run("skips joints with unknown landmarks", func(t *testing.T) {
		t.Parallel()
		angles := computeJointAngles(kneeBentPose(90), nil)
		_, hasLeftKnee := angles[JointLeftKnee]
		assert.True(t, hasLeftKnee)
		_, hasRightKnee := angles[JointRightKnee]
		assert.False(t, hasRightKnee)
		_, hasSpine := angles[JointSpine]
		assert.False(t, hasSpine)
	})

	t.Run("computes the configured bend", func(t *testing.T) {
		t.Parallel()
		angles := computeJointAngles(kneeBentPose(90), nil)
		assert.InDelta(t, 90, angles[JointLeftKnee], 1e-6)

		angles = computeJointAngles(kneeBentPose(150), nil)
		assert.InDelta(t, 150, angles[JointLeftKnee], 1e-6)
	})

	t.Run("degenerate geometry reports and yields zero", func(t *testing.T) {
		t.Parallel()
		landmarks := kneeBentPose(90)
		// Collapse the ankle onto the knee.
		landmarks[pose.LeftAnkle].Position = landmarks[pose.LeftKnee].Position

		degenerate := 0
		angles := computeJointAngles(landmarks, func() { degenerate++ })
		assert.Equal(t, 1, degenerate)
		assert.Equal(t, 0.0, angles[JointLeftKnee])
	})

	t.Run("empty landmark slice yields no angles", func(t *testing.T) {
		t.Parallel()
		angles := computeJointAngles(nil, nil)
		assert.Empty(t, angles)
	})
}
