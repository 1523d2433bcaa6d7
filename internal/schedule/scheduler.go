// Package schedule gates and dynamically retunes how often raw frames are
// forwarded for detection, based on measured processing latency and the
// exercise's tempo.
package schedule

import (
	"time"

	"github.com/kinetic-data/motion.report/internal/timeutil"
)

// TempoClass is the exercise tempo classification used to derive the FPS
// ceiling.
type TempoClass string

const (
	TempoSlow   TempoClass = "slow"
	TempoNormal TempoClass = "normal"
	TempoFast   TempoClass = "fast"
)

// ParseTempoClass maps a catalog tempo string to a TempoClass, defaulting to
// normal for anything unrecognized.
func ParseTempoClass(s string) TempoClass {
	switch TempoClass(s) {
	case TempoSlow, TempoFast:
		return TempoClass(s)
	default:
		return TempoNormal
	}
}

// tempoFraction is the fraction of the baseline target FPS each tempo class
// allows. Slow exercises don't need the full rate.
func (t TempoClass) tempoFraction() float64 {
	switch t {
	case TempoSlow:
		return 0.6
	case TempoFast:
		return 1.0
	default:
		return 0.8
	}
}

// Config holds scheduler tuning. Defaults come from DefaultConfig; TargetFPS
// is set from the device profile.
type Config struct {
	// TargetFPS is the baseline target from the device profile.
	TargetFPS float64

	// MinFPS and MaxFPS bound the adapted rate. CurrentFPS never leaves
	// [MinFPS, MaxFPS] for any sequence of reported processing times.
	MinFPS float64
	MaxFPS float64

	// WindowSize is the rolling processing-duration window capacity.
	WindowSize int

	// PressureThreshold: average processing time above this fraction of the
	// frame interval triggers an FPS decrease.
	PressureThreshold float64

	// RelaxThreshold: average below this fraction triggers an increase.
	RelaxThreshold float64

	// DecayFactor and GrowthFactor are the multiplicative adaptation steps.
	DecayFactor  float64
	GrowthFactor float64

	// DecreaseCooldown and IncreaseCooldown are the number of reports to
	// skip after an adaptation. The increase cooldown is longer so ramping
	// back up is slower than backing off.
	DecreaseCooldown int
	IncreaseCooldown int
}

// DefaultConfig returns the default scheduler tuning for the given baseline
// target FPS.
func DefaultConfig(targetFPS float64) Config {
	return Config{
		TargetFPS:         targetFPS,
		MinFPS:            5,
		MaxFPS:            30,
		WindowSize:        10,
		PressureThreshold: 1.0,
		RelaxThreshold:    0.5,
		DecayFactor:       0.85,
		GrowthFactor:      1.1,
		DecreaseCooldown:  10,
		IncreaseCooldown:  30,
	}
}

// State is a diagnostic snapshot of the scheduler.
type State struct {
	CurrentFPS        float64       `json:"current_fps"`
	CeilingFPS        float64       `json:"ceiling_fps"`
	FrameInterval     time.Duration `json:"frame_interval_ns"`
	WindowFill        int           `json:"window_fill"`
	AvgProcessing     time.Duration `json:"avg_processing_ns"`
	CooldownRemaining int           `json:"cooldown_remaining"`
}

// Scheduler is the adaptive frame gate. It is deterministic given the
// sequence of reported durations and is invoked only from the single capture
// loop; it is not safe for concurrent use.
type Scheduler struct {
	config  Config
	clock   timeutil.Clock
	current float64 // current FPS
	ceiling float64 // min(MaxFPS, tempo-scaled target)

	lastAdmitted time.Time
	window       []time.Duration
	cooldown     int
}

// NewScheduler creates a scheduler from the given config and clock.
func NewScheduler(config Config, clock timeutil.Clock) *Scheduler {
	if config.MinFPS <= 0 {
		config.MinFPS = 1
	}
	if config.MaxFPS < config.MinFPS {
		config.MaxFPS = config.MinFPS
	}
	if config.WindowSize < 1 {
		config.WindowSize = 10
	}
	s := &Scheduler{
		config: config,
		clock:  clock,
		window: make([]time.Duration, 0, config.WindowSize),
	}
	s.ceiling = clampFPS(config.TargetFPS, config.MinFPS, config.MaxFPS)
	s.current = s.ceiling
	return s
}

// FrameInterval returns the interval implied by the current FPS.
func (s *Scheduler) FrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / s.current)
}

// CurrentFPS returns the current adapted rate.
func (s *Scheduler) CurrentFPS() float64 {
	return s.current
}

// ShouldProcessFrame reports whether the current frame should be forwarded
// for detection. On admission the last-admitted timestamp advances by the
// frame interval, carrying the remainder, so the long-run rate does not
// drift. If the loop has fallen more than one interval behind (a stall, not
// jitter) the gate resynchronizes to now instead of admitting a burst.
func (s *Scheduler) ShouldProcessFrame() bool {
	now := s.clock.Now()
	if s.lastAdmitted.IsZero() {
		s.lastAdmitted = now
		return true
	}

	interval := s.FrameInterval()
	if now.Sub(s.lastAdmitted) < interval {
		return false
	}

	s.lastAdmitted = s.lastAdmitted.Add(interval)
	if now.Sub(s.lastAdmitted) >= interval {
		s.lastAdmitted = now
	}
	return true
}

// ReportProcessingTime pushes a measured frame-processing duration into the
// rolling window and, outside cooldown and with a full window, evaluates one
// adaptation: decrease under pressure, increase when comfortably under
// budget. Exactly one adaptation starts a cooldown, preventing oscillation.
func (s *Scheduler) ReportProcessingTime(d time.Duration) {
	if len(s.window) == cap(s.window) {
		copy(s.window, s.window[1:])
		s.window[len(s.window)-1] = d
	} else {
		s.window = append(s.window, d)
	}

	if s.cooldown > 0 {
		s.cooldown--
		return
	}
	if len(s.window) < cap(s.window) {
		return
	}

	avg := s.averageProcessing()
	interval := s.FrameInterval()

	switch {
	case avg > time.Duration(s.config.PressureThreshold*float64(interval)):
		s.current = clampFPS(s.current*s.config.DecayFactor, s.config.MinFPS, s.ceiling)
		s.cooldown = s.config.DecreaseCooldown
	case avg < time.Duration(s.config.RelaxThreshold*float64(interval)):
		s.current = clampFPS(s.current*s.config.GrowthFactor, s.config.MinFPS, s.ceiling)
		s.cooldown = s.config.IncreaseCooldown
	}
}

// SetExercise applies the tempo class's FPS ceiling for a new exercise and
// re-clamps the current rate into it.
func (s *Scheduler) SetExercise(tempo TempoClass) {
	s.ceiling = clampFPS(s.config.TargetFPS*tempo.tempoFraction(), s.config.MinFPS, s.config.MaxFPS)
	s.current = clampFPS(s.current, s.config.MinFPS, s.ceiling)
}

// Reset clears the gate timestamp, the rolling window, and the cooldown, and
// restores the current rate to the ceiling. Called between exercises.
func (s *Scheduler) Reset() {
	s.lastAdmitted = time.Time{}
	s.window = s.window[:0]
	s.cooldown = 0
	s.current = s.ceiling
}

// State returns a diagnostic snapshot.
func (s *Scheduler) State() State {
	return State{
		CurrentFPS:        s.current,
		CeilingFPS:        s.ceiling,
		FrameInterval:     s.FrameInterval(),
		WindowFill:        len(s.window),
		AvgProcessing:     s.averageProcessing(),
		CooldownRemaining: s.cooldown,
	}
}

func (s *Scheduler) averageProcessing() time.Duration {
	if len(s.window) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range s.window {
		sum += d
	}
	return sum / time.Duration(len(s.window))
}

func clampFPS(fps, min, max float64) float64 {
	if fps < min {
		return min
	}
	if fps > max {
		return max
	}
	return fps
}
