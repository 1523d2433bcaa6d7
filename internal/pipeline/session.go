package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kinetic-data/motion.report/internal/config"
	"github.com/kinetic-data/motion.report/internal/device"
	"github.com/kinetic-data/motion.report/internal/monitoring"
	"github.com/kinetic-data/motion.report/internal/motion"
	"github.com/kinetic-data/motion.report/internal/pose"
	"github.com/kinetic-data/motion.report/internal/schedule"
	"github.com/kinetic-data/motion.report/internal/timeutil"
)

// Catalog looks up exercise criteria. Unknown ids return the permissive
// default with found=false rather than an error.
type Catalog interface {
	CriteriaFor(exerciseID string) (motion.ExerciseCriteria, bool)
}

// Publisher receives the fused-pose and score stream, typically the monitor
// webserver's broadcast hub.
type Publisher interface {
	PublishPose(p *pose.FusedPose)
	PublishScore(score *motion.FormScore, feedback []string)
}

// ScoreSink persists scoring ticks, typically the session results store.
type ScoreSink interface {
	RecordScoreTick(sessionID string, ts time.Time, score *motion.FormScore, feedback []string) error
}

// SessionConfig assembles a session's collaborators. Sessions are explicitly
// owned instances: construct one per exercise session and pass it by
// reference, never share component state between sessions.
type SessionConfig struct {
	Profile   device.Profile
	Tuning    *config.TuningConfig
	Primary   Detector
	Secondary Detector

	Catalog    Catalog
	Recoveries *monitoring.Recoveries
	Publisher  Publisher // optional
	Sink       ScoreSink // optional
	Clock      timeutil.Clock

	// DetectTimeout bounds each detector call. Zero derives the budget from
	// the scheduler's current frame interval.
	DetectTimeout time.Duration
}

// FrameResult is the outcome of one capture-loop frame.
type FrameResult struct {
	// Skipped is true when the frame produced no scoring contribution:
	// gated out by the scheduler, no detection, or stale after a reset.
	Skipped bool

	Pose     *pose.FusedPose
	Score    *motion.FormScore
	Feedback []string
}

// Session is the per-exercise-session pipeline. All component state is owned
// and mutated exclusively by the capture-loop thread; the only cross-thread
// surface is the diagnostics snapshot, which is mutex-guarded for the
// monitor.
type Session struct {
	id      string
	token   string
	profile device.Profile

	scheduler *schedule.Scheduler
	fusion    *pose.FusionEngine
	analyzer  *motion.Analyzer

	primary        Detector
	secondary      Detector
	primaryReady   bool
	secondaryReady bool

	catalog    Catalog
	recoveries *monitoring.Recoveries
	publisher  Publisher
	sink       ScoreSink
	clock      timeutil.Clock

	detectTimeout time.Duration
	exerciseID    string
	frameSeq      uint64

	diagMu         sync.Mutex
	lastScore      *motion.FormScore
	schedulerState schedule.State
}

// NewSession constructs a session from the device profile and tuning.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Primary == nil && cfg.Secondary == nil {
		return nil, errors.New("session needs at least one detector")
	}
	tuning := cfg.Tuning
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	recoveries := cfg.Recoveries
	if recoveries == nil {
		recoveries = &monitoring.Recoveries{}
	}

	schedCfg := schedule.Config{
		TargetFPS:         cfg.Profile.TargetFPS,
		MinFPS:            tuning.GetMinFPS(),
		MaxFPS:            tuning.GetMaxFPS(),
		WindowSize:        tuning.GetWindowSize(),
		PressureThreshold: tuning.GetPressureThreshold(),
		RelaxThreshold:    tuning.GetRelaxThreshold(),
		DecayFactor:       tuning.GetDecayFactor(),
		GrowthFactor:      tuning.GetGrowthFactor(),
		DecreaseCooldown:  tuning.GetDecreaseCooldown(),
		IncreaseCooldown:  tuning.GetIncreaseCooldown(),
	}

	fusionCfg := pose.FusionConfig{
		ConfidenceThreshold: tuning.GetConfidenceThreshold(),
		PrimaryWeight:       tuning.GetPrimaryWeight(),
		SecondaryWeight:     tuning.GetSecondaryWeight(),
		DisagreementScale:   tuning.GetDisagreementScale(),
		SmoothingFactor:     cfg.Profile.SmoothingFactor,
	}

	analyzerCfg := motion.AnalyzerConfig{
		HistorySize:                   tuning.GetHistorySize(),
		SymmetryCeilingDeg:            tuning.GetSymmetryCeilingDeg(),
		SymmetryMaterialityDeg:        tuning.GetSymmetryMaterialityDeg(),
		TempoCVCeiling:                tuning.GetTempoCVCeiling(),
		CoreDisplacementCeiling:       tuning.GetCoreDisplacementCeiling(),
		PeripheralDisplacementCeiling: tuning.GetPeripheralDisplacementCeiling(),
	}

	detectTimeout := cfg.DetectTimeout
	if detectTimeout == 0 {
		detectTimeout = tuning.GetDetectTimeout()
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = permissiveCatalog{}
	}

	s := &Session{
		id:            uuid.New().String(),
		token:         uuid.New().String(),
		profile:       cfg.Profile,
		scheduler:     schedule.NewScheduler(schedCfg, clock),
		fusion:        pose.NewFusionEngine(fusionCfg),
		analyzer:      motion.NewAnalyzer(analyzerCfg, motion.PermissiveCriteria(""), recoveries),
		primary:       cfg.Primary,
		secondary:     cfg.Secondary,
		catalog:       catalog,
		recoveries:    recoveries,
		publisher:     cfg.Publisher,
		sink:          cfg.Sink,
		clock:         clock,
		detectTimeout: detectTimeout,
	}
	return s, nil
}

// permissiveCatalog is the no-database fallback: every id is unknown.
type permissiveCatalog struct{}

func (permissiveCatalog) CriteriaFor(exerciseID string) (motion.ExerciseCriteria, bool) {
	return motion.PermissiveCriteria(exerciseID), false
}

// Initialize loads both detector runtimes. One detector failing degrades the
// session to single-model mode; both failing is an InitializationError.
func (s *Session) Initialize(ctx context.Context) error {
	var primaryErr, secondaryErr error

	if s.primary != nil {
		if primaryErr = s.primary.Initialize(ctx); primaryErr == nil {
			s.primaryReady = true
		} else {
			s.recoveries.IncInitFailure()
			monitoring.Logf("detector %s failed to initialize, degrading: %v", s.primary.Model(), primaryErr)
		}
	}
	if s.secondary != nil {
		if secondaryErr = s.secondary.Initialize(ctx); secondaryErr == nil {
			s.secondaryReady = true
		} else {
			s.recoveries.IncInitFailure()
			monitoring.Logf("detector %s failed to initialize, degrading: %v", s.secondary.Model(), secondaryErr)
		}
	}

	if !s.primaryReady && !s.secondaryReady {
		err := primaryErr
		model := pose.ModelPrimary
		if err == nil {
			err = secondaryErr
			model = pose.ModelSecondary
		}
		return &InitializationError{Model: model, Err: err}
	}
	return nil
}

// SetPublisher attaches the pose/score stream consumer. The monitor webserver
// needs the session for its diagnostics endpoints, so it is constructed after
// the session and attached here before the capture loop starts.
func (s *Session) SetPublisher(p Publisher) {
	s.publisher = p
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// ExerciseID returns the active exercise id.
func (s *Session) ExerciseID() string {
	return s.exerciseID
}

// Profile returns the device profile the session was built from.
func (s *Session) Profile() device.Profile {
	return s.profile
}

// SetExercise switches the session to a new exercise: criteria lookup (a
// miss recovers via the permissive default), tempo ceiling, and an explicit
// reset of smoothing, history, scheduler state, and the session token so
// stale in-flight results are discarded at consumption time.
func (s *Session) SetExercise(exerciseID string) {
	criteria, found := s.catalog.CriteriaFor(exerciseID)
	if !found {
		s.recoveries.IncUnknownExercise()
		monitoring.Logf("unknown exercise %q, using permissive criteria", exerciseID)
	}

	s.exerciseID = exerciseID
	s.analyzer.SetCriteria(criteria)
	s.analyzer.ResetHistory()
	s.fusion.ResetSmoothing()
	s.scheduler.SetExercise(schedule.ParseTempoClass(criteria.Tempo))
	s.scheduler.Reset()
	s.token = uuid.New().String()
}

// ProcessFrame drives one capture-loop frame through the pipeline:
// gate, detect (concurrently, with a per-call budget), fuse, analyze,
// publish, and report the measured processing time back to the scheduler.
func (s *Session) ProcessFrame(ctx context.Context, f Frame) *FrameResult {
	if !s.scheduler.ShouldProcessFrame() {
		return &FrameResult{Skipped: true}
	}

	s.frameSeq++
	if f.Seq == 0 {
		f.Seq = s.frameSeq
	}

	start := s.clock.Now()
	token := s.token

	primRes, secRes := s.detect(ctx, f)

	// A reset may have happened while detectors were in flight; their
	// results belong to the previous exercise and must not leak into this
	// one.
	if token != s.token {
		s.recoveries.IncStaleResult()
		return &FrameResult{Skipped: true}
	}

	fused := s.fusion.Fuse(primRes, secRes, f.Timestamp)
	if fused == nil {
		s.finishFrame(start, nil)
		return &FrameResult{Skipped: true}
	}

	score := s.analyzer.Observe(fused)
	feedback := motion.Feedback(*score)

	if s.publisher != nil {
		s.publisher.PublishPose(fused)
		s.publisher.PublishScore(score, feedback)
	}
	if s.sink != nil {
		if err := s.sink.RecordScoreTick(s.id, f.Timestamp, score, feedback); err != nil {
			monitoring.Logf("failed to persist score tick: %v", err)
		}
	}

	s.finishFrame(start, score)
	return &FrameResult{Pose: fused, Score: score, Feedback: feedback}
}

// detect dispatches the ready detectors concurrently and joins before
// returning. Each call gets its own deadline; a slow or hung provider never
// stalls the other's result, it is simply absent for this frame.
func (s *Session) detect(ctx context.Context, f Frame) (primRes, secRes *pose.DetectionResult) {
	budget := s.detectTimeout
	if budget == 0 {
		budget = s.scheduler.FrameInterval()
	}

	runPrimary := s.primaryReady
	// The secondary runs alongside the primary only when the profile enables
	// fusion; it also serves alone when the primary failed to initialize.
	runSecondary := s.secondaryReady && (s.profile.EnsembleEnabled || !s.primaryReady)

	var g errgroup.Group
	if runPrimary {
		g.Go(func() error {
			primRes = s.runDetector(ctx, s.primary, f, budget)
			return nil
		})
	}
	if runSecondary {
		g.Go(func() error {
			secRes = s.runDetector(ctx, s.secondary, f, budget)
			return nil
		})
	}
	// Detector outcomes are recovered per-model inside runDetector; the
	// group never carries an error.
	_ = g.Wait()

	return primRes, secRes
}

// runDetector invokes one detector under its per-call budget and folds every
// failure mode into "absent for this frame", counted for observability.
func (s *Session) runDetector(ctx context.Context, d Detector, f Frame, budget time.Duration) *pose.DetectionResult {
	dctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	res, err := d.Detect(dctx, f)
	switch {
	case err == nil:
		return res
	case errors.Is(err, ErrNoDetection):
		s.recoveries.IncDetectionAbsent()
	case errors.Is(err, context.DeadlineExceeded):
		s.recoveries.IncDetectorTimeout()
	default:
		s.recoveries.IncDetectionAbsent()
		monitoring.Logf("detector %s failed on frame %d: %v", d.Model(), f.Seq, err)
	}
	return nil
}

// finishFrame reports processing time to the scheduler and refreshes the
// diagnostics snapshot the monitor reads from its own goroutine.
func (s *Session) finishFrame(start time.Time, score *motion.FormScore) {
	s.scheduler.ReportProcessingTime(s.clock.Since(start))

	s.diagMu.Lock()
	if score != nil {
		s.lastScore = score
	}
	s.schedulerState = s.scheduler.State()
	s.diagMu.Unlock()
}

// LastScore returns the most recent form score, or nil before the first
// scored frame. Safe to call from the monitor goroutine.
func (s *Session) LastScore() *motion.FormScore {
	s.diagMu.Lock()
	defer s.diagMu.Unlock()
	return s.lastScore
}

// SchedulerState returns the scheduler diagnostics snapshot taken at the end
// of the last processed frame. Safe to call from the monitor goroutine.
func (s *Session) SchedulerState() schedule.State {
	s.diagMu.Lock()
	defer s.diagMu.Unlock()
	return s.schedulerState
}

// Recoveries returns the session's recovery counters.
func (s *Session) Recoveries() *monitoring.Recoveries {
	return s.recoveries
}
