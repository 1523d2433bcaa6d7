// Package device classifies the host into a capability tier and emits the
// configuration profile that sizes the rest of the pipeline.
package device

import (
	"os"
	"runtime"
	"strconv"
	"sync"
)

// Tier is the coarse hardware-capability classification.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Class is the device-class hint supplied by the host.
type Class string

const (
	ClassUnknown Class = ""
	ClassMobile  Class = "mobile"
	ClassTablet  Class = "tablet"
	ClassDesktop Class = "desktop"
)

// Resolution is the capture resolution selected for a tier.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Profile is the per-session configuration derived from the device tier.
type Profile struct {
	Tier            Tier       `json:"tier"`
	Resolution      Resolution `json:"resolution"`
	TargetFPS       float64    `json:"target_fps"`
	ModelComplexity int        `json:"model_complexity"` // 0, 1, or 2
	EnsembleEnabled bool       `json:"ensemble_enabled"` // run both detectors and fuse
	SmoothingFactor float64    `json:"smoothing_factor"` // [0,1)
}

// Signals are the hardware signals the classification is a pure function of.
// Zero values mean the signal is unavailable; missing signals fall back to
// conservative defaults (a device we know nothing about never classifies
// high).
type Signals struct {
	Cores    int     `json:"cores"`     // logical core count, 0 = unknown
	MemoryGB float64 `json:"memory_gb"` // device memory estimate, 0 = unknown
	Class    Class   `json:"class"`
}

// HostSignals collects signals from the running process. Core count comes
// from the runtime; memory and device class have no portable source, so the
// host can supply them via MOTION_MEMORY_GB and MOTION_DEVICE_CLASS.
func HostSignals() Signals {
	sig := Signals{Cores: runtime.NumCPU()}
	if v, err := strconv.ParseFloat(os.Getenv("MOTION_MEMORY_GB"), 64); err == nil && v > 0 {
		sig.MemoryGB = v
	}
	switch Class(os.Getenv("MOTION_DEVICE_CLASS")) {
	case ClassMobile:
		sig.Class = ClassMobile
	case ClassTablet:
		sig.Class = ClassTablet
	case ClassDesktop:
		sig.Class = ClassDesktop
	}
	return sig
}

// Tier profiles. Thresholds are documented in Classify; values are tunable
// but deliberately coarse.
var tierProfiles = map[Tier]Profile{
	TierLow: {
		Tier:            TierLow,
		Resolution:      Resolution{Width: 640, Height: 480},
		TargetFPS:       15,
		ModelComplexity: 0,
		EnsembleEnabled: false,
		SmoothingFactor: 0.5,
	},
	TierMedium: {
		Tier:            TierMedium,
		Resolution:      Resolution{Width: 960, Height: 720},
		TargetFPS:       20,
		ModelComplexity: 1,
		EnsembleEnabled: false,
		SmoothingFactor: 0.6,
	},
	TierHigh: {
		Tier:            TierHigh,
		Resolution:      Resolution{Width: 1280, Height: 720},
		TargetFPS:       30,
		ModelComplexity: 2,
		EnsembleEnabled: true,
		SmoothingFactor: 0.7,
	},
}

// Classify maps hardware signals to a device profile. Decision rule:
//
//   - cores <= 2 or memory <= 2GB, or a mobile device that reports either,
//     classifies low
//   - mobile/tablet class, cores <= 4, memory <= 4GB, or any missing signal
//     classifies medium
//   - everything else classifies high
//
// There is no failure path; Classify always returns a profile.
func Classify(sig Signals) Profile {
	lowCores := sig.Cores > 0 && sig.Cores <= 2
	lowMemory := sig.MemoryGB > 0 && sig.MemoryGB <= 2
	if lowCores || lowMemory {
		return tierProfiles[TierLow]
	}

	mobile := sig.Class == ClassMobile || sig.Class == ClassTablet
	midCores := sig.Cores <= 4 // includes unknown
	midMemory := sig.MemoryGB <= 4
	if mobile || midCores || midMemory {
		return tierProfiles[TierMedium]
	}

	return tierProfiles[TierHigh]
}

// Profiler computes and caches the device profile for the process lifetime.
// The cached result is reused until Reset.
type Profiler struct {
	mu      sync.Mutex
	signals func() Signals
	cached  *Profile
}

// NewProfiler creates a profiler. A nil signals source uses HostSignals.
func NewProfiler(signals func() Signals) *Profiler {
	if signals == nil {
		signals = HostSignals
	}
	return &Profiler{signals: signals}
}

// Profile returns the device profile, computing it on first call and caching
// it until Reset.
func (p *Profiler) Profile() Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached == nil {
		profile := Classify(p.signals())
		p.cached = &profile
	}
	return *p.cached
}

// Reset clears the cached profile so the next Profile call reclassifies.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = nil
}
