package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/michellexbui/BirdBeaks/internal/interp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	// A missing file is fine; everything comes from defaults.
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != ":8080" {
		t.Errorf("default port = %q, want :8080", cfg.Server.Port)
	}
	if cfg.Interp.WeightingScheme != string(interp.SchemeGaussian) {
		t.Errorf("default scheme = %q, want gaussian", cfg.Interp.WeightingScheme)
	}
	if cfg.Interp.MinContributors != 3 {
		t.Errorf("default min contributors = %d, want 3", cfg.Interp.MinContributors)
	}
	if got := cfg.AlignmentTolerance(); got != 30*time.Minute {
		t.Errorf("default alignment tolerance = %v, want 30m", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":9090"
database:
  path: "/tmp/test.db"
interp:
  weighting_scheme: "inverse-power"
  decay_parameter: 2
  max_influence_radius_km: 800
  alignment_tolerance_seconds: 600
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != ":9090" {
		t.Errorf("port = %q, want :9090", cfg.Server.Port)
	}
	ep := cfg.EngineParams()
	if ep.Scheme != interp.SchemeInversePower || ep.DecayParameter != 2 || ep.MaxInfluenceRadiusKm != 800 {
		t.Errorf("engine params = %+v", ep)
	}
	// Untouched keys keep their defaults.
	if ep.MinContributors != 3 {
		t.Errorf("min contributors = %d, want default 3", ep.MinContributors)
	}
	if got := cfg.AlignmentTolerance(); got != 10*time.Minute {
		t.Errorf("alignment tolerance = %v, want 10m", got)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad scheme", "interp:\n  weighting_scheme: \"spline\"\n"},
		{"negative decay", "interp:\n  decay_parameter: -1\n"},
		{"zero radius", "interp:\n  max_influence_radius_km: 0\n"},
		{"coverage above one", "interp:\n  coverage_threshold: 1.5\n"},
		{"zero tolerance", "interp:\n  alignment_tolerance_seconds: 0\n"},
		{"empty port", "server:\n  port: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestQualityParams(t *testing.T) {
	path := writeConfig(t, `
interp:
  coverage_threshold: 0.7
  outlier_mad_multiplier: 4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	qp := cfg.QualityParams()
	if qp.CoverageThreshold != 0.7 || qp.OutlierMADMultiplier != 4 {
		t.Errorf("quality params = %+v", qp)
	}
}
