// Package config loads the tuning parameters for the motion-quality
// pipeline. None of the distance scales or score-mapping ceilings here come
// from validated biomechanical data; they are tunable with the stated
// defaults and should be calibrated against ground-truth motion capture
// before clinical use.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig represents the root configuration for tuning parameters.
// Every field is optional; fields omitted from the JSON retain their
// defaults via the Get* accessors, so partial configs are safe.
type TuningConfig struct {
	// Fusion params
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	PrimaryWeight       *float64 `json:"primary_weight,omitempty"`
	SecondaryWeight     *float64 `json:"secondary_weight,omitempty"`
	DisagreementScale   *float64 `json:"disagreement_scale,omitempty"`

	// Analyzer params
	HistorySize                   *int     `json:"history_size,omitempty"`
	SymmetryCeilingDeg            *float64 `json:"symmetry_ceiling_deg,omitempty"`
	SymmetryMaterialityDeg        *float64 `json:"symmetry_materiality_deg,omitempty"`
	TempoCVCeiling                *float64 `json:"tempo_cv_ceiling,omitempty"`
	CoreDisplacementCeiling       *float64 `json:"core_displacement_ceiling,omitempty"`
	PeripheralDisplacementCeiling *float64 `json:"peripheral_displacement_ceiling,omitempty"`

	// Scheduler params
	MinFPS            *float64 `json:"min_fps,omitempty"`
	MaxFPS            *float64 `json:"max_fps,omitempty"`
	WindowSize        *int     `json:"window_size,omitempty"`
	PressureThreshold *float64 `json:"pressure_threshold,omitempty"`
	RelaxThreshold    *float64 `json:"relax_threshold,omitempty"`
	DecayFactor       *float64 `json:"decay_factor,omitempty"`
	GrowthFactor      *float64 `json:"growth_factor,omitempty"`
	DecreaseCooldown  *int     `json:"decrease_cooldown,omitempty"`
	IncreaseCooldown  *int     `json:"increase_cooldown,omitempty"`

	// Pipeline params
	DetectTimeout *string `json:"detect_timeout,omitempty"` // duration string like "50ms"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and be under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	unitChecks := []struct {
		name  string
		value *float64
	}{
		{"confidence_threshold", c.ConfidenceThreshold},
		{"pressure_threshold", c.PressureThreshold},
		{"relax_threshold", c.RelaxThreshold},
	}
	for _, check := range unitChecks {
		if check.value != nil && (*check.value < 0 || *check.value > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", check.name, *check.value)
		}
	}

	positiveChecks := []struct {
		name  string
		value *float64
	}{
		{"primary_weight", c.PrimaryWeight},
		{"secondary_weight", c.SecondaryWeight},
		{"disagreement_scale", c.DisagreementScale},
		{"symmetry_ceiling_deg", c.SymmetryCeilingDeg},
		{"tempo_cv_ceiling", c.TempoCVCeiling},
		{"core_displacement_ceiling", c.CoreDisplacementCeiling},
		{"peripheral_displacement_ceiling", c.PeripheralDisplacementCeiling},
		{"min_fps", c.MinFPS},
		{"max_fps", c.MaxFPS},
	}
	for _, check := range positiveChecks {
		if check.value != nil && *check.value <= 0 {
			return fmt.Errorf("%s must be positive, got %f", check.name, *check.value)
		}
	}

	if c.MinFPS != nil && c.MaxFPS != nil && *c.MinFPS > *c.MaxFPS {
		return fmt.Errorf("min_fps %f exceeds max_fps %f", *c.MinFPS, *c.MaxFPS)
	}

	if c.DecayFactor != nil && (*c.DecayFactor <= 0 || *c.DecayFactor >= 1) {
		return fmt.Errorf("decay_factor must be in (0,1), got %f", *c.DecayFactor)
	}
	if c.GrowthFactor != nil && *c.GrowthFactor <= 1 {
		return fmt.Errorf("growth_factor must exceed 1, got %f", *c.GrowthFactor)
	}

	if c.HistorySize != nil && *c.HistorySize < 2 {
		return fmt.Errorf("history_size must be at least 2, got %d", *c.HistorySize)
	}
	if c.WindowSize != nil && *c.WindowSize < 1 {
		return fmt.Errorf("window_size must be at least 1, got %d", *c.WindowSize)
	}

	if c.DetectTimeout != nil && *c.DetectTimeout != "" {
		if _, err := time.ParseDuration(*c.DetectTimeout); err != nil {
			return fmt.Errorf("invalid detect_timeout '%s': %w", *c.DetectTimeout, err)
		}
	}

	return nil
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.5
	}
	return *c.ConfidenceThreshold
}

// GetPrimaryWeight returns the primary_weight value or the default.
func (c *TuningConfig) GetPrimaryWeight() float64 {
	if c.PrimaryWeight == nil {
		return 0.6
	}
	return *c.PrimaryWeight
}

// GetSecondaryWeight returns the secondary_weight value or the default.
func (c *TuningConfig) GetSecondaryWeight() float64 {
	if c.SecondaryWeight == nil {
		return 0.4
	}
	return *c.SecondaryWeight
}

// GetDisagreementScale returns the disagreement_scale value or the default.
func (c *TuningConfig) GetDisagreementScale() float64 {
	if c.DisagreementScale == nil {
		return 0.1
	}
	return *c.DisagreementScale
}

// GetHistorySize returns the history_size value or the default.
func (c *TuningConfig) GetHistorySize() int {
	if c.HistorySize == nil {
		return 60
	}
	return *c.HistorySize
}

// GetSymmetryCeilingDeg returns the symmetry_ceiling_deg value or the default.
func (c *TuningConfig) GetSymmetryCeilingDeg() float64 {
	if c.SymmetryCeilingDeg == nil {
		return 30
	}
	return *c.SymmetryCeilingDeg
}

// GetSymmetryMaterialityDeg returns the symmetry_materiality_deg value or the default.
func (c *TuningConfig) GetSymmetryMaterialityDeg() float64 {
	if c.SymmetryMaterialityDeg == nil {
		return 10
	}
	return *c.SymmetryMaterialityDeg
}

// GetTempoCVCeiling returns the tempo_cv_ceiling value or the default.
func (c *TuningConfig) GetTempoCVCeiling() float64 {
	if c.TempoCVCeiling == nil {
		return 1.0
	}
	return *c.TempoCVCeiling
}

// GetCoreDisplacementCeiling returns the core_displacement_ceiling value or the default.
func (c *TuningConfig) GetCoreDisplacementCeiling() float64 {
	if c.CoreDisplacementCeiling == nil {
		return 0.05
	}
	return *c.CoreDisplacementCeiling
}

// GetPeripheralDisplacementCeiling returns the peripheral_displacement_ceiling value or the default.
func (c *TuningConfig) GetPeripheralDisplacementCeiling() float64 {
	if c.PeripheralDisplacementCeiling == nil {
		return 0.10
	}
	return *c.PeripheralDisplacementCeiling
}

// GetMinFPS returns the min_fps value or the default.
func (c *TuningConfig) GetMinFPS() float64 {
	if c.MinFPS == nil {
		return 5
	}
	return *c.MinFPS
}

// GetMaxFPS returns the max_fps value or the default.
func (c *TuningConfig) GetMaxFPS() float64 {
	if c.MaxFPS == nil {
		return 30
	}
	return *c.MaxFPS
}

// GetWindowSize returns the window_size value or the default.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 10
	}
	return *c.WindowSize
}

// GetPressureThreshold returns the pressure_threshold value or the default.
func (c *TuningConfig) GetPressureThreshold() float64 {
	if c.PressureThreshold == nil {
		return 1.0
	}
	return *c.PressureThreshold
}

// GetRelaxThreshold returns the relax_threshold value or the default.
func (c *TuningConfig) GetRelaxThreshold() float64 {
	if c.RelaxThreshold == nil {
		return 0.5
	}
	return *c.RelaxThreshold
}

// GetDecayFactor returns the decay_factor value or the default.
func (c *TuningConfig) GetDecayFactor() float64 {
	if c.DecayFactor == nil {
		return 0.85
	}
	return *c.DecayFactor
}

// GetGrowthFactor returns the growth_factor value or the default.
func (c *TuningConfig) GetGrowthFactor() float64 {
	if c.GrowthFactor == nil {
		return 1.1
	}
	return *c.GrowthFactor
}

// GetDecreaseCooldown returns the decrease_cooldown value or the default.
func (c *TuningConfig) GetDecreaseCooldown() int {
	if c.DecreaseCooldown == nil {
		return 10
	}
	return *c.DecreaseCooldown
}

// GetIncreaseCooldown returns the increase_cooldown value or the default.
func (c *TuningConfig) GetIncreaseCooldown() int {
	if c.IncreaseCooldown == nil {
		return 30
	}
	return *c.IncreaseCooldown
}

// GetDetectTimeout parses and returns the DetectTimeout as a time.Duration.
// Zero means "derive from the frame interval".
func (c *TuningConfig) GetDetectTimeout() time.Duration {
	if c.DetectTimeout == nil || *c.DetectTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.DetectTimeout)
	if err != nil {
		return 0
	}
	return d
}
