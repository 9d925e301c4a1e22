package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDefault_Values(t *testing.T) {
	c := Default()
	if c == nil {
		t.Fatal("Default() returned nil")
	}
	if c.Scan.Reference != "Sosala" || c.Scan.Baseline != "Jita" {
		t.Errorf("Reference/Baseline = %q/%q, want Sosala/Jita", c.Scan.Reference, c.Scan.Baseline)
	}
	if c.Scan.MaxJumps != 4 {
		t.Errorf("MaxJumps = %d, want 4", c.Scan.MaxJumps)
	}
	if !c.Scan.MinPrice.Equal(decimal.NewFromInt(100_000_000)) {
		t.Errorf("MinPrice = %s, want 100000000", c.Scan.MinPrice)
	}
	if c.MetadataTTL != 6*time.Hour {
		t.Errorf("MetadataTTL = %v, want 6h", c.MetadataTTL)
	}
	if c.RequestSpacing != 250*time.Millisecond || c.RequestTimeout != 10*time.Second || c.MaxAttempts != 3 {
		t.Errorf("ESI = %v/%v/%d", c.RequestSpacing, c.RequestTimeout, c.MaxAttempts)
	}
	if c.Scan.Concurrency != 8 || c.Scan.MaxFailureRatio != 0.5 {
		t.Errorf("Concurrency/MaxFailureRatio = %d/%v", c.Scan.Concurrency, c.Scan.MaxFailureRatio)
	}
	if c.SnapshotMaxAge != time.Hour || c.Source != SourceAuto {
		t.Errorf("SnapshotMaxAge/Source = %v/%q", c.SnapshotMaxAge, c.Source)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HULLSCOUT_REFERENCE", "Amarr")
	t.Setenv("HULLSCOUT_MAX_JUMPS", "2")
	t.Setenv("HULLSCOUT_MIN_PRICE", "150000000.50")
	t.Setenv("HULLSCOUT_SOURCE", "live")
	t.Setenv("HULLSCOUT_METADATA_TTL", "30m")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "Amarr", c.Scan.Reference)
	require.Equal(t, 2, c.Scan.MaxJumps)
	require.Equal(t, "150000000.5", c.Scan.MinPrice.String())
	require.Equal(t, SourceLive, c.Source)
	require.Equal(t, 30*time.Minute, c.MetadataTTL)
	require.Equal(t, "Jita", c.Scan.Baseline)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HULLSCOUT_SOURCE", "carrier-pigeon")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HULLSCOUT_REQUEST_TIMEOUT", "soon")
	_, err := Load()
	require.ErrorContains(t, err, "env.Parse")
}

func TestScanConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ScanConfig)
		ok     bool
	}{
		{"defaults", func(*ScanConfig) {}, true},
		{"zero jumps", func(s *ScanConfig) { s.MaxJumps = 0 }, true},
		{"negative jumps", func(s *ScanConfig) { s.MaxJumps = -1 }, false},
		{"empty reference", func(s *ScanConfig) { s.Reference = "" }, false},
		{"empty types", func(s *ScanConfig) { s.Types = "" }, false},
		{"zero workers", func(s *ScanConfig) { s.Concurrency = 0 }, false},
		{"ratio above one", func(s *ScanConfig) { s.MaxFailureRatio = 1.5 }, false},
		{"security floor", func(s *ScanConfig) { s.MinRouteSecurity = 0.5 }, true},
		{"negative min price", func(s *ScanConfig) { s.MinPrice = decimal.NewFromInt(-1) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default().Scan
			tt.mutate(&s)
			err := s.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
