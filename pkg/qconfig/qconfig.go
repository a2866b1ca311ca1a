// Package qconfig loads Qualifier's runtime configuration from
// environment variables, the same plain load-with-defaults idiom the
// teacher uses for its own server configuration.
package qconfig

import (
	"os"
	"strconv"
)

// DefaultHealthyThreshold is the effective-score floor at or above
// which a subject is labeled "healthy" (§4.6) when
// QUALIFIER_HEALTHY_THRESHOLD is unset. spec.md §9 left the choice
// between 50 and 60 open; 60 was picked as the fixed default with this
// variable covering callers who want the older boundary.
const DefaultHealthyThreshold int32 = 60

// DefaultClampMin and DefaultClampMax are the raw-score clamp bounds
// from §4.4, overridable for callers with a different scoring scale.
const (
	DefaultClampMin int32 = -100
	DefaultClampMax int32 = 100
)

// Config holds the environment-derived settings every Qualifier
// entry point reads once at startup.
type Config struct {
	ProjectRoot      string
	HealthyThreshold int32
	ClampMin         int32
	ClampMax         int32
	OTelEnabled      bool
}

// Load reads QUALIFIER_PROJECT_ROOT, QUALIFIER_HEALTHY_THRESHOLD,
// QUALIFIER_CLAMP_MIN, QUALIFIER_CLAMP_MAX, and QUALIFIER_OTEL_ENABLED,
// falling back to defaults for anything unset or unparseable.
func Load() *Config {
	return &Config{
		ProjectRoot:      os.Getenv("QUALIFIER_PROJECT_ROOT"),
		HealthyThreshold: envInt32("QUALIFIER_HEALTHY_THRESHOLD", DefaultHealthyThreshold),
		ClampMin:         envInt32("QUALIFIER_CLAMP_MIN", DefaultClampMin),
		ClampMax:         envInt32("QUALIFIER_CLAMP_MAX", DefaultClampMax),
		OTelEnabled:      os.Getenv("QUALIFIER_OTEL_ENABLED") == "true",
	}
}

func envInt32(name string, fallback int32) int32 {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(n)
}
