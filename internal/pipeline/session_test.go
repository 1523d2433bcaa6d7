package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetic-data/motion.report/internal/config"
	"github.com/kinetic-data/motion.report/internal/db"
	"github.com/kinetic-data/motion.report/internal/device"
	"github.com/kinetic-data/motion.report/internal/monitoring"
	"github.com/kinetic-data/motion.report/internal/motion"
	"github.com/kinetic-data/motion.report/internal/pose"
	"github.com/kinetic-data/motion.report/internal/timeutil"
)

func highProfile() device.Profile {
	return device.Profile{
		Tier:            device.TierHigh,
		Resolution:      device.Resolution{Width: 1280, Height: 720},
		TargetFPS:       30,
		ModelComplexity: 2,
		EnsembleEnabled: true,
		SmoothingFactor: 0.7,
	}
}

// stubDetector is a scriptable detector for dispatch and failure-path tests.
type stubDetector struct {
	model   pose.ModelID
	initErr error
	calls   int
	detect  func(ctx context.Context, f Frame) (*pose.DetectionResult, error)
}

func (d *stubDetector) Model() pose.ModelID { return d.model }

func (d *stubDetector) Initialize(ctx context.Context) error { return d.initErr }

func (d *stubDetector) Detect(ctx context.Context, f Frame) (*pose.DetectionResult, error) {
	d.calls++
	if d.detect == nil {
		return nil, ErrNoDetection
	}
	return d.detect(ctx, f)
}

// capturePublisher records everything published.
type capturePublisher struct {
	poses  []*pose.FusedPose
	scores []*motion.FormScore
}

func (p *capturePublisher) PublishPose(fp *pose.FusedPose) { p.poses = append(p.poses, fp) }
func (p *capturePublisher) PublishScore(s *motion.FormScore, feedback []string) {
	p.scores = append(p.scores, s)
}

// captureSink records persisted score ticks.
type captureSink struct {
	ticks []string
	err   error
}

func (s *captureSink) RecordScoreTick(sessionID string, ts time.Time, score *motion.FormScore, feedback []string) error {
	s.ticks = append(s.ticks, sessionID)
	return s.err
}

func syntheticSession(t *testing.T, cfg SessionConfig) (*Session, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if cfg.Profile.TargetFPS == 0 {
		cfg.Profile = highProfile()
	}
	if cfg.Tuning == nil {
		cfg.Tuning = config.EmptyTuningConfig()
	}
	if cfg.Primary == nil && cfg.Secondary == nil {
		cfg.Primary = NewSyntheticDetector(SyntheticConfig{Model: pose.ModelPrimary, Seed: 1})
		cfg.Secondary = NewSyntheticDetector(SyntheticConfig{Model: pose.ModelSecondary, Seed: 2})
	}
	if cfg.Catalog == nil {
		cfg.Catalog = db.NewSeededMemoryCatalog()
	}
	if cfg.Recoveries == nil {
		cfg.Recoveries = &monitoring.Recoveries{}
	}
	cfg.Clock = clock

	s, err := NewSession(cfg)
	require.NoError(t, err)
	return s, clock
}

func TestNewSession_RequiresADetector(t *testing.T) {
	t.Parallel()
	_, err := NewSession(SessionConfig{Profile: highProfile()})
	assert.Error(t, err)
}

func TestInitialize(t *testing.T) {
	t.Parallel()

	t.Run("one failure degrades to single model", func(t *testing.T) {
		t.Parallel()
		recoveries := &monitoring.Recoveries{}
		s, clock := syntheticSession(t, SessionConfig{
			Primary:    &stubDetector{model: pose.ModelPrimary, initErr: errors.New("model blob missing")},
			Secondary:  NewSyntheticDetector(SyntheticConfig{Model: pose.ModelSecondary}),
			Recoveries: recoveries,
		})
		require.NoError(t, s.Initialize(context.Background()))
		assert.Equal(t, uint64(1), recoveries.Snapshot().InitFailures)

		// Pipeline still produces scored frames from the surviving model.
		s.SetExercise("squat-bilateral")
		res := s.ProcessFrame(context.Background(), Frame{Timestamp: clock.Now()})
		require.False(t, res.Skipped)
		require.NotNil(t, res.Score)
	})

	t.Run("both failures abort", func(t *testing.T) {
		t.Parallel()
		s, _ := syntheticSession(t, SessionConfig{
			Primary:   &stubDetector{model: pose.ModelPrimary, initErr: errors.New("no runtime")},
			Secondary: &stubDetector{model: pose.ModelSecondary, initErr: errors.New("no runtime either")},
		})
		err := s.Initialize(context.Background())
		require.Error(t, err)

		var initErr *InitializationError
		assert.ErrorAs(t, err, &initErr)
	})
}

func TestProcessFrame_EndToEnd(t *testing.T) {
	t.Parallel()
	publisher := &capturePublisher{}
	sink := &captureSink{}
	recoveries := &monitoring.Recoveries{}
	s, clock := syntheticSession(t, SessionConfig{
		Publisher:  publisher,
		Sink:       sink,
		Recoveries: recoveries,
	})
	require.NoError(t, s.Initialize(context.Background()))
	s.SetExercise("squat-bilateral")
	assert.Equal(t, "squat-bilateral", s.ExerciseID())

	interval := time.Duration(float64(time.Second) / s.Profile().TargetFPS)
	scored := 0
	for i := 0; i < 60; i++ {
		res := s.ProcessFrame(context.Background(), Frame{Timestamp: clock.Now()})
		clock.Advance(interval)
		if res.Skipped {
			continue
		}
		scored++
		require.NotNil(t, res.Pose)
		require.NotNil(t, res.Score)
		assert.GreaterOrEqual(t, res.Score.Overall, 0.0)
		assert.LessOrEqual(t, res.Score.Overall, 100.0)
		assert.Len(t, res.Pose.Landmarks, pose.NumLandmarks)
	}

	assert.Greater(t, scored, 0)
	assert.Len(t, publisher.poses, scored)
	assert.Len(t, publisher.scores, scored)
	assert.Len(t, sink.ticks, scored)
	for _, id := range sink.ticks {
		assert.Equal(t, s.ID(), id)
	}

	// Diagnostics reflect the run.
	assert.NotNil(t, s.LastScore())
	assert.Greater(t, s.SchedulerState().CurrentFPS, 0.0)
}

func TestProcessFrame_GateSkipsWithoutDispatch(t *testing.T) {
	t.Parallel()
	prim := &stubDetector{model: pose.ModelPrimary}
	s, _ := syntheticSession(t, SessionConfig{
		Primary: prim,
	})
	require.NoError(t, s.Initialize(context.Background()))
	s.SetExercise("squat-bilateral")

	// First frame admitted, second arrives with no clock advance.
	s.ProcessFrame(context.Background(), Frame{})
	res := s.ProcessFrame(context.Background(), Frame{})
	assert.True(t, res.Skipped)
	assert.Equal(t, 1, prim.calls)
}

func TestProcessFrame_NoDetectionCounted(t *testing.T) {
	t.Parallel()
	recoveries := &monitoring.Recoveries{}
	s, _ := syntheticSession(t, SessionConfig{
		Primary:    &stubDetector{model: pose.ModelPrimary}, // always ErrNoDetection
		Recoveries: recoveries,
	})
	require.NoError(t, s.Initialize(context.Background()))
	s.SetExercise("squat-bilateral")

	res := s.ProcessFrame(context.Background(), Frame{})
	assert.True(t, res.Skipped)
	assert.Equal(t, uint64(1), recoveries.Snapshot().DetectionsAbsent)
}

func TestProcessFrame_TimeoutCounted(t *testing.T) {
	t.Parallel()
	recoveries := &monitoring.Recoveries{}
	slow := NewSyntheticDetector(SyntheticConfig{Model: pose.ModelPrimary, Latency: 200 * time.Millisecond})
	s, _ := syntheticSession(t, SessionConfig{
		Primary:       slow,
		Recoveries:    recoveries,
		DetectTimeout: time.Millisecond,
	})
	require.NoError(t, s.Initialize(context.Background()))
	s.SetExercise("squat-bilateral")

	res := s.ProcessFrame(context.Background(), Frame{})
	assert.True(t, res.Skipped)
	assert.Equal(t, uint64(1), recoveries.Snapshot().DetectorTimeouts)
}

func TestProcessFrame_StaleResultDiscarded(t *testing.T) {
	t.Parallel()
	recoveries := &monitoring.Recoveries{}

	var s *Session
	prim := &stubDetector{model: pose.ModelPrimary}
	prim.detect = func(ctx context.Context, f Frame) (*pose.DetectionResult, error) {
		// An exercise switch lands while this result is in flight.
		s.SetExercise("lunge-forward")
		res := pose.PrimaryResult{Landmarks: make([]pose.PrimaryLandmark, pose.NumLandmarks)}
		for i := range res.Landmarks {
			res.Landmarks[i] = pose.PrimaryLandmark{X: 0.5, Y: 0.5, Visibility: 0.9}
		}
		return pose.ConvertPrimary(res, f.Timestamp)
	}

	s, _ = syntheticSession(t, SessionConfig{
		Primary:    prim,
		Recoveries: recoveries,
	})
	require.NoError(t, s.Initialize(context.Background()))
	s.SetExercise("squat-bilateral")

	res := s.ProcessFrame(context.Background(), Frame{})
	assert.True(t, res.Skipped)
	assert.Equal(t, uint64(1), recoveries.Snapshot().StaleResults)
}

func TestProcessFrame_EnsembleDispatch(t *testing.T) {
	t.Parallel()

	goodResult := func(model pose.ModelID) func(ctx context.Context, f Frame) (*pose.DetectionResult, error) {
		return func(ctx context.Context, f Frame) (*pose.DetectionResult, error) {
			if model == pose.ModelSecondary {
				res := pose.SecondaryResult{Keypoints: make([]pose.SecondaryKeypoint, pose.NumSecondaryKeypoints)}
				for i := range res.Keypoints {
					res.Keypoints[i] = pose.SecondaryKeypoint{X: 0.5, Y: 0.5, Score: 0.9}
				}
				return pose.ConvertSecondary(res, f.Timestamp)
			}
			res := pose.PrimaryResult{Landmarks: make([]pose.PrimaryLandmark, pose.NumLandmarks)}
			for i := range res.Landmarks {
				res.Landmarks[i] = pose.PrimaryLandmark{X: 0.5, Y: 0.5, Visibility: 0.9}
			}
			return pose.ConvertPrimary(res, f.Timestamp)
		}
	}

	t.Run("ensemble profile runs both", func(t *testing.T) {
		t.Parallel()
		prim := &stubDetector{model: pose.ModelPrimary, detect: goodResult(pose.ModelPrimary)}
		sec := &stubDetector{model: pose.ModelSecondary, detect: goodResult(pose.ModelSecondary)}
		s, _ := syntheticSession(t, SessionConfig{Primary: prim, Secondary: sec})
		require.NoError(t, s.Initialize(context.Background()))
		s.SetExercise("squat-bilateral")

		s.ProcessFrame(context.Background(), Frame{})
		assert.Equal(t, 1, prim.calls)
		assert.Equal(t, 1, sec.calls)
	})

	t.Run("non-ensemble profile runs only the primary", func(t *testing.T) {
		t.Parallel()
		prim := &stubDetector{model: pose.ModelPrimary, detect: goodResult(pose.ModelPrimary)}
		sec := &stubDetector{model: pose.ModelSecondary, detect: goodResult(pose.ModelSecondary)}
		profile := highProfile()
		profile.EnsembleEnabled = false
		s, _ := syntheticSession(t, SessionConfig{Profile: profile, Primary: prim, Secondary: sec})
		require.NoError(t, s.Initialize(context.Background()))
		s.SetExercise("squat-bilateral")

		s.ProcessFrame(context.Background(), Frame{})
		assert.Equal(t, 1, prim.calls)
		assert.Equal(t, 0, sec.calls)
	})

	t.Run("secondary serves alone when primary is down", func(t *testing.T) {
		t.Parallel()
		prim := &stubDetector{model: pose.ModelPrimary, initErr: errors.New("broken")}
		sec := &stubDetector{model: pose.ModelSecondary, detect: goodResult(pose.ModelSecondary)}
		profile := highProfile()
		profile.EnsembleEnabled = false
		s, _ := syntheticSession(t, SessionConfig{Profile: profile, Primary: prim, Secondary: sec})
		require.NoError(t, s.Initialize(context.Background()))
		s.SetExercise("squat-bilateral")

		res := s.ProcessFrame(context.Background(), Frame{})
		assert.Equal(t, 1, sec.calls)
		assert.False(t, res.Skipped)
	})
}

func TestSetExercise(t *testing.T) {
	t.Parallel()

	t.Run("unknown exercise recovers permissively", func(t *testing.T) {
		t.Parallel()
		recoveries := &monitoring.Recoveries{}
		s, _ := syntheticSession(t, SessionConfig{Recoveries: recoveries})
		require.NoError(t, s.Initialize(context.Background()))

		s.SetExercise("interpretive-dance")
		assert.Equal(t, "interpretive-dance", s.ExerciseID())
		assert.Equal(t, uint64(1), recoveries.Snapshot().UnknownExercises)

		// A scored frame still comes out the other end.
		res := s.ProcessFrame(context.Background(), Frame{})
		assert.False(t, res.Skipped)
	})

	t.Run("tempo sets the scheduler ceiling", func(t *testing.T) {
		t.Parallel()
		s, _ := syntheticSession(t, SessionConfig{})
		require.NoError(t, s.Initialize(context.Background()))

		s.SetExercise("arm-raise-lateral") // slow tempo
		assert.InDelta(t, 18, s.scheduler.State().CeilingFPS, 1e-9)

		s.SetExercise("jumping-jack") // fast tempo
		assert.InDelta(t, 30, s.scheduler.State().CeilingFPS, 1e-9)
	})
}

func TestProcessFrame_SinkErrorDoesNotFailFrame(t *testing.T) {
	t.Parallel()
	sink := &captureSink{err: errors.New("disk full")}
	s, _ := syntheticSession(t, SessionConfig{Sink: sink})
	require.NoError(t, s.Initialize(context.Background()))
	s.SetExercise("squat-bilateral")

	res := s.ProcessFrame(context.Background(), Frame{})
	assert.False(t, res.Skipped)
	require.NotNil(t, res.Score)
}
