package pipeline

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/kinetic-data/motion.report/internal/pose"
)

// SyntheticConfig controls a SyntheticDetector. The zero value (plus a Model)
// produces a clean, always-present squat cycle at the default period.
type SyntheticConfig struct {
	Model pose.ModelID

	// Period is the duration of one full movement cycle. Zero means 2s.
	Period time.Duration

	// Noise is the per-coordinate jitter amplitude in normalized units.
	Noise float64

	// Seed seeds the jitter source so runs are reproducible.
	Seed int64

	// Confidence is reported for every point. Zero means 0.9.
	Confidence float64

	// AbsentEvery makes every Nth frame return ErrNoDetection. Zero
	// disables absences.
	AbsentEvery int

	// InitErr, when set, is returned by Initialize.
	InitErr error

	// Latency is added to every Detect call, honoring the context budget.
	Latency time.Duration
}

// SyntheticDetector generates a plausible squat movement cycle without any
// camera or model runtime. It drives replay runs, load tests, and the demo
// mode of the monitor.
type SyntheticDetector struct {
	config SyntheticConfig
	rng    *rand.Rand
	calls  int
}

// NewSyntheticDetector creates a synthetic detector for the given model slot.
func NewSyntheticDetector(config SyntheticConfig) *SyntheticDetector {
	if config.Period <= 0 {
		config.Period = 2 * time.Second
	}
	if config.Confidence == 0 {
		config.Confidence = 0.9
	}
	return &SyntheticDetector{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

func (d *SyntheticDetector) Model() pose.ModelID {
	return d.config.Model
}

func (d *SyntheticDetector) Initialize(ctx context.Context) error {
	return d.config.InitErr
}

// Detect renders the skeleton at the frame timestamp's phase within the
// movement cycle and converts it through the same raw-result path a real
// provider would use.
func (d *SyntheticDetector) Detect(ctx context.Context, f Frame) (*pose.DetectionResult, error) {
	if d.config.Latency > 0 {
		t := time.NewTimer(d.config.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	d.calls++
	if d.config.AbsentEvery > 0 && d.calls%d.config.AbsentEvery == 0 {
		return nil, ErrNoDetection
	}

	phase := math.Mod(float64(f.Timestamp.UnixNano())/float64(d.config.Period.Nanoseconds()), 1)
	skeleton := squatSkeleton(phase)
	for i := range skeleton {
		skeleton[i].X += d.jitter()
		skeleton[i].Y += d.jitter()
		skeleton[i].Z += d.jitter()
	}

	if d.config.Model == pose.ModelSecondary {
		res := pose.SecondaryResult{Keypoints: make([]pose.SecondaryKeypoint, pose.NumSecondaryKeypoints)}
		for i := range res.Keypoints {
			p := skeleton[pose.SecondaryToCanonical(i)]
			res.Keypoints[i] = pose.SecondaryKeypoint{X: p.X, Y: p.Y, Score: d.config.Confidence}
		}
		return pose.ConvertSecondary(res, f.Timestamp)
	}

	res := pose.PrimaryResult{Landmarks: make([]pose.PrimaryLandmark, pose.NumLandmarks)}
	for i, p := range skeleton {
		res.Landmarks[i] = pose.PrimaryLandmark{X: p.X, Y: p.Y, Z: p.Z, Visibility: d.config.Confidence}
	}
	return pose.ConvertPrimary(res, f.Timestamp)
}

func (d *SyntheticDetector) jitter() float64 {
	if d.config.Noise <= 0 {
		return 0
	}
	return (d.rng.Float64()*2 - 1) * d.config.Noise
}

// point is a skeleton joint position in normalized image coordinates:
// x right, y down, z toward the camera.
type point struct {
	X, Y, Z float64
}

// squatSkeleton places all 33 canonical landmarks for a subject mid-squat.
// phase is the position within one cycle in [0,1); bend follows a raised
// cosine so the movement is smooth at the turnarounds.
func squatSkeleton(phase float64) [pose.NumLandmarks]point {
	bend := (1 - math.Cos(2*math.Pi*phase)) / 2 // 0 standing, 1 full depth

	// Vertical drop of the hips as the knees bend. Shoulders and head
	// follow; feet stay planted.
	drop := 0.18 * bend

	var s [pose.NumLandmarks]point

	head := point{X: 0.5, Y: 0.18 + drop, Z: 0}
	s[pose.Nose] = head
	s[pose.LeftEyeInner] = point{head.X - 0.01, head.Y - 0.01, 0}
	s[pose.LeftEye] = point{head.X - 0.02, head.Y - 0.01, 0}
	s[pose.LeftEyeOuter] = point{head.X - 0.03, head.Y - 0.01, 0}
	s[pose.RightEyeInner] = point{head.X + 0.01, head.Y - 0.01, 0}
	s[pose.RightEye] = point{head.X + 0.02, head.Y - 0.01, 0}
	s[pose.RightEyeOuter] = point{head.X + 0.03, head.Y - 0.01, 0}
	s[pose.LeftEar] = point{head.X - 0.04, head.Y, 0}
	s[pose.RightEar] = point{head.X + 0.04, head.Y, 0}
	s[pose.MouthLeft] = point{head.X - 0.015, head.Y + 0.02, 0}
	s[pose.MouthRight] = point{head.X + 0.015, head.Y + 0.02, 0}

	shoulderY := 0.30 + drop
	hipY := 0.52 + drop
	kneeY := 0.72
	ankleY := 0.92

	s[pose.LeftShoulder] = point{0.42, shoulderY, 0}
	s[pose.RightShoulder] = point{0.58, shoulderY, 0}
	s[pose.LeftHip] = point{0.45, hipY, 0}
	s[pose.RightHip] = point{0.55, hipY, 0}

	// Knees travel forward (toward the camera) as the squat deepens.
	kneeZ := -0.10 * bend
	s[pose.LeftKnee] = point{0.44, kneeY, kneeZ}
	s[pose.RightKnee] = point{0.56, kneeY, kneeZ}
	s[pose.LeftAnkle] = point{0.44, ankleY, 0}
	s[pose.RightAnkle] = point{0.56, ankleY, 0}
	s[pose.LeftHeel] = point{0.43, ankleY + 0.02, 0.02}
	s[pose.RightHeel] = point{0.57, ankleY + 0.02, 0.02}
	s[pose.LeftFootIndex] = point{0.44, ankleY + 0.03, -0.05}
	s[pose.RightFootIndex] = point{0.56, ankleY + 0.03, -0.05}

	// Arms extend forward for balance as the subject descends.
	armReach := 0.12 * bend
	elbowY := shoulderY + 0.12 - 0.06*bend
	wristY := shoulderY + 0.22 - 0.18*bend
	s[pose.LeftElbow] = point{0.38, elbowY, -armReach}
	s[pose.RightElbow] = point{0.62, elbowY, -armReach}
	s[pose.LeftWrist] = point{0.36, wristY, -2 * armReach}
	s[pose.RightWrist] = point{0.64, wristY, -2 * armReach}
	s[pose.LeftPinky] = point{0.35, wristY + 0.02, -2 * armReach}
	s[pose.RightPinky] = point{0.65, wristY + 0.02, -2 * armReach}
	s[pose.LeftIndex] = point{0.35, wristY + 0.01, -2 * armReach}
	s[pose.RightIndex] = point{0.65, wristY + 0.01, -2 * armReach}
	s[pose.LeftThumb] = point{0.36, wristY, -2 * armReach}
	s[pose.RightThumb] = point{0.64, wristY, -2 * armReach}

	return s
}
