package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTuningConfig(t *testing.T) {
	t.Parallel()

	t.Run("partial config keeps defaults for the rest", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.json", `{"confidence_threshold": 0.7, "detect_timeout": "50ms"}`)
		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 0.7, cfg.GetConfidenceThreshold())
		assert.Equal(t, 50*time.Millisecond, cfg.GetDetectTimeout())
		// Untouched fields fall back.
		assert.Equal(t, 0.6, cfg.GetPrimaryWeight())
		assert.Equal(t, 60, cfg.GetHistorySize())
		assert.Equal(t, 30.0, cfg.GetMaxFPS())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.yaml", `{}`)
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, ".json extension")
	})

	t.Run("rejects missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.json", `{"confidence_threshold": }`)
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.json", `{"confidence_threshold": 1.5}`)
		_, err := LoadTuningConfig(path)
		assert.ErrorContains(t, err, "confidence_threshold")
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	f := func(v float64) *float64 { return &v }
	i := func(v int) *int { return &v }
	s := func(v string) *string { return &v }

	t.Run("empty config is valid", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, EmptyTuningConfig().Validate())
	})

	tests := []struct {
		name string
		cfg  TuningConfig
	}{
		{"threshold above one", TuningConfig{ConfidenceThreshold: f(1.2)}},
		{"negative relax threshold", TuningConfig{RelaxThreshold: f(-0.1)}},
		{"zero weight", TuningConfig{PrimaryWeight: f(0)}},
		{"negative disagreement scale", TuningConfig{DisagreementScale: f(-1)}},
		{"min above max", TuningConfig{MinFPS: f(20), MaxFPS: f(10)}},
		{"decay of one", TuningConfig{DecayFactor: f(1)}},
		{"growth of one", TuningConfig{GrowthFactor: f(1)}},
		{"history of one", TuningConfig{HistorySize: i(1)}},
		{"zero window", TuningConfig{WindowSize: i(0)}},
		{"unparseable timeout", TuningConfig{DetectTimeout: s("fifty ms")}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Error(t, tt.cfg.Validate())
		})
	}

	t.Run("sensible overrides pass", func(t *testing.T) {
		t.Parallel()
		cfg := TuningConfig{
			ConfidenceThreshold: f(0.4),
			MinFPS:              f(10),
			MaxFPS:              f(25),
			DecayFactor:         f(0.9),
			GrowthFactor:        f(1.05),
			HistorySize:         i(30),
			DetectTimeout:       s("75ms"),
		}
		assert.NoError(t, cfg.Validate())
	})
}

func TestGetDetectTimeout(t *testing.T) {
	t.Parallel()
	s := func(v string) *string { return &v }

	assert.Equal(t, time.Duration(0), EmptyTuningConfig().GetDetectTimeout())
	assert.Equal(t, time.Duration(0), (&TuningConfig{DetectTimeout: s("")}).GetDetectTimeout())
	assert.Equal(t, 75*time.Millisecond, (&TuningConfig{DetectTimeout: s("75ms")}).GetDetectTimeout())
}
