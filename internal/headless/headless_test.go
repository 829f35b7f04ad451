package headless

import "testing"

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.MaxPages != DefaultMaxPages {
		t.Errorf("MaxPages = %d, want %d", cfg.MaxPages, DefaultMaxPages)
	}
	if cfg.NavigateTimeout != DefaultNavigateTimeout {
		t.Errorf("NavigateTimeout = %v, want %v", cfg.NavigateTimeout, DefaultNavigateTimeout)
	}
	if cfg.StabilityWait != DefaultStabilityWait {
		t.Errorf("StabilityWait = %v, want %v", cfg.StabilityWait, DefaultStabilityWait)
	}
}

func TestConfig_WithDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{MaxPages: 9, UserAgent: "custom-agent"}.withDefaults()

	if cfg.MaxPages != 9 {
		t.Errorf("expected explicit MaxPages to survive defaulting, got %d", cfg.MaxPages)
	}
	if cfg.UserAgent != "custom-agent" {
		t.Errorf("expected UserAgent to be preserved, got %q", cfg.UserAgent)
	}
}
