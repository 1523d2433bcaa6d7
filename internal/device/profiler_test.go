package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		signals Signals
		want    Tier
	}{
		{"two cores", Signals{Cores: 2, MemoryGB: 8, Class: ClassDesktop}, TierLow},
		{"two gigabytes", Signals{Cores: 8, MemoryGB: 2, Class: ClassDesktop}, TierLow},
		{"budget phone", Signals{Cores: 2, MemoryGB: 2, Class: ClassMobile}, TierLow},
		{"mobile never classifies high", Signals{Cores: 10, MemoryGB: 12, Class: ClassMobile}, TierMedium},
		{"tablet never classifies high", Signals{Cores: 8, MemoryGB: 8, Class: ClassTablet}, TierMedium},
		{"four cores", Signals{Cores: 4, MemoryGB: 8, Class: ClassDesktop}, TierMedium},
		{"four gigabytes", Signals{Cores: 8, MemoryGB: 4, Class: ClassDesktop}, TierMedium},
		{"unknown cores stays conservative", Signals{MemoryGB: 16, Class: ClassDesktop}, TierMedium},
		{"unknown memory stays conservative", Signals{Cores: 8, Class: ClassDesktop}, TierMedium},
		{"no signals at all", Signals{}, TierMedium},
		{"capable desktop", Signals{Cores: 8, MemoryGB: 16, Class: ClassDesktop}, TierHigh},
		{"capable unknown class", Signals{Cores: 12, MemoryGB: 32}, TierHigh},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.signals).Tier)
		})
	}
}

func TestTierProfiles(t *testing.T) {
	t.Parallel()

	low := Classify(Signals{Cores: 2})
	assert.Equal(t, Resolution{Width: 640, Height: 480}, low.Resolution)
	assert.Equal(t, 15.0, low.TargetFPS)
	assert.Equal(t, 0, low.ModelComplexity)
	assert.False(t, low.EnsembleEnabled)
	assert.Equal(t, 0.5, low.SmoothingFactor)

	high := Classify(Signals{Cores: 8, MemoryGB: 16, Class: ClassDesktop})
	assert.Equal(t, Resolution{Width: 1280, Height: 720}, high.Resolution)
	assert.Equal(t, 30.0, high.TargetFPS)
	assert.Equal(t, 2, high.ModelComplexity)
	assert.True(t, high.EnsembleEnabled)
	assert.Equal(t, 0.7, high.SmoothingFactor)

	// Only the high tier runs both detectors.
	medium := Classify(Signals{})
	assert.False(t, medium.EnsembleEnabled)
	assert.Equal(t, 0.6, medium.SmoothingFactor)
}

func TestProfilerCaching(t *testing.T) {
	t.Parallel()

	calls := 0
	signals := Signals{Cores: 8, MemoryGB: 16, Class: ClassDesktop}
	p := NewProfiler(func() Signals {
		calls++
		return signals
	})

	first := p.Profile()
	require.Equal(t, TierHigh, first.Tier)

	// Changing the underlying signals does not affect the cached profile.
	signals = Signals{Cores: 2}
	assert.Equal(t, TierHigh, p.Profile().Tier)
	assert.Equal(t, 1, calls)

	p.Reset()
	assert.Equal(t, TierLow, p.Profile().Tier)
	assert.Equal(t, 2, calls)
}

func TestHostSignals(t *testing.T) {
	t.Run("memory and class from environment", func(t *testing.T) {
		t.Setenv("MOTION_MEMORY_GB", "7.5")
		t.Setenv("MOTION_DEVICE_CLASS", "tablet")
		sig := HostSignals()
		assert.Equal(t, 7.5, sig.MemoryGB)
		assert.Equal(t, ClassTablet, sig.Class)
		assert.Greater(t, sig.Cores, 0)
	})

	t.Run("garbage hints ignored", func(t *testing.T) {
		t.Setenv("MOTION_MEMORY_GB", "lots")
		t.Setenv("MOTION_DEVICE_CLASS", "mainframe")
		sig := HostSignals()
		assert.Equal(t, 0.0, sig.MemoryGB)
		assert.Equal(t, ClassUnknown, sig.Class)
	})
}
