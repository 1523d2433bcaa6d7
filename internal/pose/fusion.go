package pose

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// FusionConfig holds tuning for the fusion engine.
type FusionConfig struct {
	// ConfidenceThreshold is the minimum per-landmark confidence for a model
	// to be included in the weighted average. When no model passes, the
	// highest-weight raw position is kept but the landmark's confidence and
	// visibility become zero.
	ConfidenceThreshold float64

	// PrimaryWeight and SecondaryWeight are the per-model fusion weights.
	// They are renormalized over whichever models pass the threshold for a
	// given landmark, so they need not sum to 1.
	PrimaryWeight   float64
	SecondaryWeight float64

	// DisagreementScale is the xy distance (in normalized frame units) at
	// which two models are considered to fully disagree about a landmark.
	DisagreementScale float64

	// SmoothingFactor is the exponential-moving-average weight on the
	// previous fused pose, in [0,1). Zero disables temporal smoothing.
	SmoothingFactor float64
}

// DefaultFusionConfig returns the default fusion tuning.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		ConfidenceThreshold: 0.5,
		PrimaryWeight:       0.6,
		SecondaryWeight:     0.4,
		DisagreementScale:   0.1,
		SmoothingFactor:     0.7,
	}
}

// FusionEngine combines per-frame detector outputs into one fused,
// temporally-smoothed pose. It retains only the previous frame's fused pose,
// for smoothing. Construct one per session; the engine is not safe for
// concurrent use.
type FusionEngine struct {
	config FusionConfig
	prev   *FusedPose
}

// NewFusionEngine creates a fusion engine with the given tuning.
func NewFusionEngine(config FusionConfig) *FusionEngine {
	return &FusionEngine{config: config}
}

// ResetSmoothing clears the retained previous pose. Call on exercise change
// so the first pose of a new exercise is not dragged toward the old one.
func (e *FusionEngine) ResetSmoothing() {
	e.prev = nil
}

// contribution is one model's raw value for a canonical landmark.
type contribution struct {
	model      ModelID
	position   r3.Vec
	confidence float64
	weight     float64
}

// Fuse reconciles zero, one, or two detection results for the same frame into
// a single FusedPose. Returns nil when neither model produced a result; the
// caller must tolerate missing frames.
func (e *FusionEngine) Fuse(primary, secondary *DetectionResult, ts time.Time) *FusedPose {
	if primary == nil && secondary == nil {
		return nil
	}

	var prim, sec [NumLandmarks]*RawPoint
	if primary != nil {
		for i := range primary.Points {
			p := &primary.Points[i]
			prim[p.Index] = p
		}
	}
	if secondary != nil {
		for i := range secondary.Points {
			p := &secondary.Points[i]
			sec[p.Index] = p
		}
	}

	landmarks := make([]Landmark, NumLandmarks)
	var confSum float64
	var agreementSum float64
	var agreementCount int

	for idx := 0; idx < NumLandmarks; idx++ {
		// Highest weight first so the fallback picks the preferred model.
		contribs := make([]contribution, 0, 2)
		if p := prim[idx]; p != nil {
			contribs = append(contribs, contribution{ModelPrimary, p.Position, p.Confidence, e.config.PrimaryWeight})
		}
		if p := sec[idx]; p != nil {
			contribs = append(contribs, contribution{ModelSecondary, p.Position, p.Confidence, e.config.SecondaryWeight})
		}
		if len(contribs) == 2 && contribs[1].weight > contribs[0].weight {
			contribs[0], contribs[1] = contribs[1], contribs[0]
		}

		landmarks[idx] = e.fuseLandmark(idx, contribs, &agreementSum, &agreementCount)
		confSum += landmarks[idx].Confidence
	}

	fused := &FusedPose{
		Landmarks:         landmarks,
		OverallConfidence: confSum / NumLandmarks,
		ModelAgreement:    1.0,
		Timestamp:         ts,
	}
	if agreementCount > 0 {
		fused.ModelAgreement = agreementSum / float64(agreementCount)
	}

	e.smooth(fused)
	e.prev = fused
	return fused
}

// fuseLandmark fuses the contributions for one canonical landmark.
func (e *FusionEngine) fuseLandmark(idx int, contribs []contribution, agreementSum *float64, agreementCount *int) Landmark {
	// No model defines this landmark at all: explicit unknown sentinel,
	// never a silently omitted entry.
	if len(contribs) == 0 {
		return Landmark{Index: idx}
	}

	sources := make(map[ModelID]r3.Vec, len(contribs))
	for _, c := range contribs {
		sources[c.model] = c.position
	}

	included := contribs[:0:0]
	for _, c := range contribs {
		if c.confidence > e.config.ConfidenceThreshold {
			included = append(included, c)
		}
	}

	// No model passes the threshold: keep the highest-weight raw position
	// for continuity but mark the landmark unknown, so sub-threshold data
	// never feeds angle or stability computation.
	if len(included) == 0 {
		best := contribs[0]
		return Landmark{
			Index:    idx,
			Position: best.position,
			Sources:  sources,
		}
	}

	var weightSum float64
	for _, c := range included {
		weightSum += c.weight
	}

	var pos r3.Vec
	var conf float64
	for _, c := range included {
		w := c.weight / weightSum
		pos = r3.Add(pos, r3.Scale(w, c.position))
		conf += w * c.confidence
	}

	lm := Landmark{
		Index:      idx,
		Position:   pos,
		Visibility: conf,
		Confidence: conf,
		Sources:    sources,
	}

	// Both models contributed: discount confidence by how much they
	// disagree about the landmark's image-plane position.
	if len(included) == 2 {
		a, b := included[0].position, included[1].position
		dist := math.Hypot(a.X-b.X, a.Y-b.Y)
		agreement := clamp01(1 - dist/e.config.DisagreementScale)
		lm.Confidence *= agreement
		*agreementSum += agreement
		*agreementCount++
	}

	return lm
}

// smooth applies per-landmark exponential smoothing against the retained
// previous pose. Landmarks at or below the confidence threshold bypass
// smoothing so stale good data is never dragged forward by bad new data.
func (e *FusionEngine) smooth(current *FusedPose) {
	alpha := e.config.SmoothingFactor
	if e.prev == nil || alpha <= 0 {
		return
	}
	for i := range current.Landmarks {
		cur := &current.Landmarks[i]
		prev := &e.prev.Landmarks[i]
		if cur.Confidence <= e.config.ConfidenceThreshold || !prev.Known() {
			continue
		}
		cur.Position = r3.Add(r3.Scale(alpha, prev.Position), r3.Scale(1-alpha, cur.Position))
		cur.Visibility = alpha*prev.Visibility + (1-alpha)*cur.Visibility
	}
}
