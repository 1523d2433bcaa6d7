// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kinetic-data/motion.report/internal/db"
	"github.com/kinetic-data/motion.report/internal/pose"
)

// TempDB opens a migrated sqlite database in a per-test temp directory. The
// connection is closed when the test ends.
func TempDB(t *testing.T) *db.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "motion-test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.MigrateUp(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return d
}

// UniformPose builds a fused pose with every landmark known at the given
// confidence, all at distinct positions so displacement math has signal.
func UniformPose(confidence float64, ts time.Time) *pose.FusedPose {
	p := &pose.FusedPose{
		Landmarks:         make([]pose.Landmark, pose.NumLandmarks),
		Timestamp:         ts,
		OverallConfidence: confidence,
		ModelAgreement:    1,
	}
	for i := range p.Landmarks {
		p.Landmarks[i] = pose.Landmark{
			Index:      i,
			Position:   r3.Vec{X: float64(i) * 0.01, Y: float64(i) * 0.02, Z: 0},
			Visibility: confidence,
			Confidence: confidence,
		}
	}
	return p
}

// PrimaryAt builds a full primary detection result with every landmark at
// the given position and confidence.
func PrimaryAt(at r3.Vec, confidence float64, ts time.Time) *pose.DetectionResult {
	res := pose.PrimaryResult{Landmarks: make([]pose.PrimaryLandmark, pose.NumLandmarks)}
	for i := range res.Landmarks {
		res.Landmarks[i] = pose.PrimaryLandmark{X: at.X, Y: at.Y, Z: at.Z, Visibility: confidence}
	}
	conv, err := pose.ConvertPrimary(res, ts)
	if err != nil {
		panic(err)
	}
	return conv
}

// SecondaryAt builds a full secondary detection result with every keypoint at
// the given position and score.
func SecondaryAt(at r3.Vec, score float64, ts time.Time) *pose.DetectionResult {
	res := pose.SecondaryResult{Keypoints: make([]pose.SecondaryKeypoint, pose.NumSecondaryKeypoints)}
	for i := range res.Keypoints {
		res.Keypoints[i] = pose.SecondaryKeypoint{X: at.X, Y: at.Y, Score: score}
	}
	conv, err := pose.ConvertSecondary(res, ts)
	if err != nil {
		panic(err)
	}
	return conv
}
