// Package pipeline owns the per-session capture-loop pipeline: it gates
// frames through the adaptive scheduler, dispatches both pose detectors
// concurrently, fuses their results, and feeds the motion-quality analyzer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kinetic-data/motion.report/internal/pose"
)

// ErrNoDetection is returned by a detector when no subject is found in the
// frame. It is a normal skip-this-frame outcome, not a failure.
var ErrNoDetection = errors.New("no detection")

// InitializationError reports that a detector's runtime or model failed to
// load. The pipeline degrades to single-model or reduced mode rather than
// aborting; only both detectors failing is fatal to session construction.
type InitializationError struct {
	Model pose.ModelID
	Err   error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("detector %s failed to initialize: %v", e.Model, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// Frame is one capture-loop frame handed to the detectors. Capture and
// rendering are outside this core; the frame carries only what detection
// providers and scoring need.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
}

// Detector is a pose-landmark-detection provider.
type Detector interface {
	// Model identifies which fusion slot this detector feeds.
	Model() pose.ModelID

	// Initialize loads the runtime/model. An error here is an
	// initialization failure; the session degrades rather than aborting.
	Initialize(ctx context.Context) error

	// Detect runs detection on one frame. Returns ErrNoDetection when no
	// subject is found. The context carries the per-call frame budget; a
	// detector that overruns it is treated as absent for the frame.
	Detect(ctx context.Context, f Frame) (*pose.DetectionResult, error)
}
