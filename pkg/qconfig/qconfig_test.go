package qconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	t.Setenv("QUALIFIER_PROJECT_ROOT", "")
	t.Setenv("QUALIFIER_HEALTHY_THRESHOLD", "")
	t.Setenv("QUALIFIER_CLAMP_MIN", "")
	t.Setenv("QUALIFIER_CLAMP_MAX", "")
	t.Setenv("QUALIFIER_OTEL_ENABLED", "")

	cfg := Load()
	assert.Equal(t, DefaultHealthyThreshold, cfg.HealthyThreshold)
	assert.Equal(t, DefaultClampMin, cfg.ClampMin)
	assert.Equal(t, DefaultClampMax, cfg.ClampMax)
	assert.False(t, cfg.OTelEnabled)
}

func TestLoad_ReadsOverrides(t *testing.T) {
	t.Setenv("QUALIFIER_HEALTHY_THRESHOLD", "50")
	t.Setenv("QUALIFIER_OTEL_ENABLED", "true")

	cfg := Load()
	assert.Equal(t, int32(50), cfg.HealthyThreshold)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoad_IgnoresUnparseableOverride(t *testing.T) {
	t.Setenv("QUALIFIER_HEALTHY_THRESHOLD", "not-a-number")
	cfg := Load()
	assert.Equal(t, DefaultHealthyThreshold, cfg.HealthyThreshold)
}
