// Package pose defines the canonical landmark model and fuses the per-frame
// output of two independent pose detectors into one robust pose.
package pose

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// ModelID identifies which detector produced a raw landmark value.
type ModelID string

const (
	// ModelPrimary is the full-topology detector (33 landmarks).
	ModelPrimary ModelID = "primary"

	// ModelSecondary is the reduced-topology detector (17 keypoints).
	ModelSecondary ModelID = "secondary"
)

// Canonical landmark indices, 33-point convention. Coordinates are normalized
// to the frame: x,y in [0,1], z roughly centered on the hips.
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32

	// NumLandmarks is the size of the canonical index space.
	NumLandmarks = 33
)

// Landmark is a tracked anatomical point in the canonical topology.
type Landmark struct {
	Index      int                `json:"index"`
	Position   r3.Vec             `json:"position"`
	Visibility float64            `json:"visibility"` // [0,1]
	Confidence float64            `json:"confidence"` // [0,1]
	Sources    map[ModelID]r3.Vec `json:"-"`          // raw per-model positions that contributed
}

// Known reports whether the landmark carries usable data. Landmarks no model
// could place are kept in the pose with confidence and visibility zero rather
// than omitted.
func (l Landmark) Known() bool {
	return l.Confidence > 0
}

// FusedPose is the per-frame result of combining the detectors' landmarks
// into one canonical set.
type FusedPose struct {
	Landmarks         []Landmark `json:"landmarks"`
	OverallConfidence float64    `json:"overall_confidence"` // mean landmark confidence
	ModelAgreement    float64    `json:"model_agreement"`    // [0,1], 1.0 when a single model ran
	Timestamp         time.Time  `json:"timestamp"`
}

// RawPoint is one validated landmark from a detector, already expressed in
// canonical indices.
type RawPoint struct {
	Index      int
	Position   r3.Vec
	Confidence float64
}

// DetectionResult is a validated per-model landmark set for one frame.
// Provider result shapes are converted into this at the boundary; nothing
// downstream looks at provider-specific types.
type DetectionResult struct {
	Model     ModelID
	Points    []RawPoint
	Timestamp time.Time
}

// PrimaryResult is the raw output shape of the primary detector runtime:
// the full 33-landmark topology with per-point visibility.
type PrimaryResult struct {
	Landmarks []PrimaryLandmark
}

// PrimaryLandmark is one raw landmark from the primary detector.
type PrimaryLandmark struct {
	X, Y, Z    float64
	Visibility float64
}

// SecondaryResult is the raw output shape of the secondary detector runtime:
// 17 keypoints in the reduced topology with per-point scores. The secondary
// model estimates no depth; Z is zero.
type SecondaryResult struct {
	Keypoints []SecondaryKeypoint
}

// SecondaryKeypoint is one raw keypoint from the secondary detector.
type SecondaryKeypoint struct {
	X, Y  float64
	Score float64
}

// ConvertPrimary validates a primary detector result and converts it into the
// canonical DetectionResult. Confidences are clamped to [0,1].
func ConvertPrimary(res PrimaryResult, ts time.Time) (*DetectionResult, error) {
	if len(res.Landmarks) != NumLandmarks {
		return nil, fmt.Errorf("primary result has %d landmarks, want %d", len(res.Landmarks), NumLandmarks)
	}
	points := make([]RawPoint, NumLandmarks)
	for i, lm := range res.Landmarks {
		points[i] = RawPoint{
			Index:      i,
			Position:   r3.Vec{X: lm.X, Y: lm.Y, Z: lm.Z},
			Confidence: clamp01(lm.Visibility),
		}
	}
	return &DetectionResult{Model: ModelPrimary, Points: points, Timestamp: ts}, nil
}

// ConvertSecondary validates a secondary detector result, translates its
// reduced topology into canonical indices, and clamps confidences to [0,1].
func ConvertSecondary(res SecondaryResult, ts time.Time) (*DetectionResult, error) {
	if len(res.Keypoints) != NumSecondaryKeypoints {
		return nil, fmt.Errorf("secondary result has %d keypoints, want %d", len(res.Keypoints), NumSecondaryKeypoints)
	}
	points := make([]RawPoint, NumSecondaryKeypoints)
	for i, kp := range res.Keypoints {
		points[i] = RawPoint{
			Index:      SecondaryToCanonical(i),
			Position:   r3.Vec{X: kp.X, Y: kp.Y},
			Confidence: clamp01(kp.Score),
		}
	}
	return &DetectionResult{Model: ModelSecondary, Points: points, Timestamp: ts}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
