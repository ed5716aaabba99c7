package config

import (
	"os"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}

	if cfg.Endpoints.Primary.BaseURL != "http://localhost:1234/v1" {
		t.Errorf("unexpected primary endpoint: %s", cfg.Endpoints.Primary.BaseURL)
	}
	if time.Duration(cfg.Endpoints.ProbeTimeout) != time.Second {
		t.Errorf("expected 1s probe timeout, got %v", cfg.Endpoints.ProbeTimeout)
	}
	if cfg.Models["standard"].CostMultiplier != 1 || cfg.Models["thinking"].CostMultiplier != 3 {
		t.Errorf("unexpected cost multipliers: %+v", cfg.Models)
	}
	if cfg.InitialTokens != 5000 {
		t.Errorf("expected 5000 initial tokens, got %d", cfg.InitialTokens)
	}
}

func TestLoadFromBytesExpandsEnv(t *testing.T) {
	os.Setenv("HELIX_TEST_KEY", "secret-123")
	defer os.Unsetenv("HELIX_TEST_KEY")

	cfg, err := LoadFromBytes([]byte(`
endpoints:
  primary:
    kind: openai
    base_url: http://localhost:9999/v1
    api_key: ${HELIX_TEST_KEY}
  probe_timeout: 2s
models:
  standard:
    id: test-model
    cost_multiplier: 2
default_model: standard
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Endpoints.Primary.APIKey != "secret-123" {
		t.Errorf("env not expanded: %q", cfg.Endpoints.Primary.APIKey)
	}
	if cfg.Models["standard"].CostMultiplier != 2 {
		t.Errorf("model override lost: %+v", cfg.Models["standard"])
	}
	if time.Duration(cfg.Endpoints.ProbeTimeout) != 2*time.Second {
		t.Errorf("probe_timeout = %v, want 2s", time.Duration(cfg.Endpoints.ProbeTimeout))
	}
}

func TestInvalidModels(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero multiplier", "models:\n  bad:\n    id: m\n    cost_multiplier: 0\n"},
		{"negative multiplier", "models:\n  bad:\n    id: m\n    cost_multiplier: -1\n"},
		{"missing id", "models:\n  bad:\n    cost_multiplier: 1\n"},
		{"unknown default", "default_model: nope\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadFromBytes([]byte(tc.yaml)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
