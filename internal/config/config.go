// Package config loads the Helix engine configuration from YAML with
// environment variable expansion.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Endpoint kinds understood by the resolver.
const (
	KindOpenAI = "openai" // OpenAI-compatible chat completions (LM Studio, vLLM, ...)
	KindOllama = "ollama" // Ollama native API
)

// Duration is a time.Duration that decodes YAML strings like "1s" or
// "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Endpoint describes a single inference endpoint candidate.
type Endpoint struct {
	Kind    string `yaml:"kind"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// Endpoints ranks the candidates: primary is probed, secondary is the
// fallback that is assumed nominally reachable.
type Endpoints struct {
	Primary      Endpoint `yaml:"primary"`
	Secondary    Endpoint `yaml:"secondary"`
	ProbeTimeout Duration `yaml:"probe_timeout,omitempty"`
}

// ModelProfile is one entry of the closed model enumeration. Unknown keys
// are a configuration error, never a runtime one.
type ModelProfile struct {
	ID             string `yaml:"id"`
	CostMultiplier int    `yaml:"cost_multiplier"`
	DisplayTag     string `yaml:"display_tag,omitempty"`
}

// Prompts holds the base system instructions per surface kind.
type Prompts struct {
	Chat string `yaml:"chat,omitempty"`
	Fix  string `yaml:"fix,omitempty"`
}

// Compose bounds the system prompt assembly.
type Compose struct {
	Budget        int `yaml:"budget,omitempty"`         // total size budget, runes
	AttachmentCap int `yaml:"attachment_cap,omitempty"` // truncated attachment size, runes
}

// Database points at the SQLite store.
type Database struct {
	Path string `yaml:"path,omitempty"`
}

// Config is the root configuration. Loaded once at startup; immutable
// thereafter.
type Config struct {
	Endpoints     Endpoints               `yaml:"endpoints"`
	Models        map[string]ModelProfile `yaml:"models"`
	DefaultModel  string                  `yaml:"default_model,omitempty"`
	Prompts       Prompts                 `yaml:"prompts"`
	Compose       Compose                 `yaml:"compose"`
	Database      Database                `yaml:"database"`
	InitialTokens int                     `yaml:"initial_tokens,omitempty"`
	Temperature   float64                 `yaml:"temperature,omitempty"`
	LogLevel      string                  `yaml:"log_level,omitempty"`
}

// Default returns the built-in configuration: a local LM Studio style
// endpoint with a public fallback, and the stock model pair.
func Default() Config {
	return Config{
		Endpoints: Endpoints{
			Primary:      Endpoint{Kind: KindOpenAI, BaseURL: "http://localhost:1234/v1", APIKey: "lm-studio"},
			Secondary:    Endpoint{Kind: KindOpenAI, BaseURL: os.Getenv("HELIX_PUBLIC_URL"), APIKey: "lm-studio"},
			ProbeTimeout: Duration(time.Second),
		},
		Models: map[string]ModelProfile{
			"standard": {ID: "hermes-3-llama-3.1-8b", CostMultiplier: 1, DisplayTag: "fast"},
			"thinking": {ID: "glm-4.1v-9b-thinking", CostMultiplier: 3, DisplayTag: "thinking"},
		},
		DefaultModel: "standard",
		Prompts: Prompts{
			Chat: "You are Helix, an intelligent AI assistant. Answer clearly.",
			Fix:  "Output ONLY the corrected version. Do NOT explain.",
		},
		Compose:       Compose{Budget: 6000, AttachmentCap: 500},
		Database:      Database{Path: "./data/helix.db"},
		InitialTokens: 5000,
		Temperature:   0.7,
	}
}

// Load reads a YAML config file, expands ${ENV} references, and merges it
// over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return finalize(Default())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finalize(Default())
		}
		return Default(), fmt.Errorf("read config: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML config bytes with environment variable
// expansion applied first.
func LoadFromBytes(data []byte) (Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return finalize(cfg)
}

// finalize applies defaults for zero values and validates the model table.
func finalize(cfg Config) (Config, error) {
	if cfg.Endpoints.ProbeTimeout <= 0 {
		cfg.Endpoints.ProbeTimeout = Duration(time.Second)
	}
	if cfg.Compose.Budget <= 0 {
		cfg.Compose.Budget = 6000
	}
	if cfg.Compose.AttachmentCap <= 0 {
		cfg.Compose.AttachmentCap = 500
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/helix.db"
	}
	if cfg.InitialTokens <= 0 {
		cfg.InitialTokens = 5000
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}

	if len(cfg.Models) == 0 {
		return cfg, fmt.Errorf("config: no models defined")
	}
	for key, p := range cfg.Models {
		if p.ID == "" {
			return cfg, fmt.Errorf("config: model %q has no id", key)
		}
		if p.CostMultiplier <= 0 {
			return cfg, fmt.Errorf("config: model %q has non-positive cost_multiplier %d", key, p.CostMultiplier)
		}
	}
	if cfg.DefaultModel == "" {
		if _, ok := cfg.Models["standard"]; !ok {
			return cfg, fmt.Errorf("config: default_model is required")
		}
		cfg.DefaultModel = "standard"
	}
	if _, ok := cfg.Models[cfg.DefaultModel]; !ok {
		return cfg, fmt.Errorf("config: default_model %q is not defined", cfg.DefaultModel)
	}
	return cfg, nil
}
