package monitoring

import "sync"

// Recoveries counts the non-fatal recovery paths in the pipeline so the host
// application can surface a degraded-accuracy warning. Nothing counted here is
// fatal: the worst case is a skipped frame contribution or reduced-accuracy
// mode. The monitor webserver reads snapshots from its own goroutine, so the
// counters are mutex-guarded.
type Recoveries struct {
	mu                 sync.Mutex
	initFailures       uint64
	detectionsAbsent   uint64
	detectorTimeouts   uint64
	degenerateGeometry uint64
	unknownExercises   uint64
	staleResults       uint64
}

// RecoverySnapshot is a point-in-time copy of the recovery counters.
type RecoverySnapshot struct {
	InitFailures       uint64 `json:"init_failures"`
	DetectionsAbsent   uint64 `json:"detections_absent"`
	DetectorTimeouts   uint64 `json:"detector_timeouts"`
	DegenerateGeometry uint64 `json:"degenerate_geometry"`
	UnknownExercises   uint64 `json:"unknown_exercises"`
	StaleResults       uint64 `json:"stale_results"`
}

// IncInitFailure records a detector that failed to initialize.
func (r *Recoveries) IncInitFailure() {
	r.mu.Lock()
	r.initFailures++
	r.mu.Unlock()
}

// IncDetectionAbsent records a frame where a detector found no subject.
func (r *Recoveries) IncDetectionAbsent() {
	r.mu.Lock()
	r.detectionsAbsent++
	r.mu.Unlock()
}

// IncDetectorTimeout records a detector call that exceeded the frame budget.
func (r *Recoveries) IncDetectorTimeout() {
	r.mu.Lock()
	r.detectorTimeouts++
	r.mu.Unlock()
}

// IncDegenerateGeometry records a near-zero vector magnitude in angle
// computation, recovered locally as a zero angle.
func (r *Recoveries) IncDegenerateGeometry() {
	r.mu.Lock()
	r.degenerateGeometry++
	r.mu.Unlock()
}

// IncUnknownExercise records a criteria lookup miss recovered via the
// permissive default.
func (r *Recoveries) IncUnknownExercise() {
	r.mu.Lock()
	r.unknownExercises++
	r.mu.Unlock()
}

// IncStaleResult records an in-flight detector result discarded because the
// session was reset before it was consumed.
func (r *Recoveries) IncStaleResult() {
	r.mu.Lock()
	r.staleResults++
	r.mu.Unlock()
}

// Snapshot returns a copy of the current counter values.
func (r *Recoveries) Snapshot() RecoverySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RecoverySnapshot{
		InitFailures:       r.initFailures,
		DetectionsAbsent:   r.detectionsAbsent,
		DetectorTimeouts:   r.detectorTimeouts,
		DegenerateGeometry: r.degenerateGeometry,
		UnknownExercises:   r.unknownExercises,
		StaleResults:       r.staleResults,
	}
}
