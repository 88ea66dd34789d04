package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults_Valid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v", err)
	}
	if cfg.Build.MaxPapers != 30 || cfg.Build.PerPaperLimit != 10 {
		t.Errorf("build defaults = %+v", cfg.Build)
	}
	if cfg.Classify.Cap != 20 || cfg.Classify.Concurrency != 5 {
		t.Errorf("classify defaults = %+v", cfg.Classify)
	}
	if !cfg.Build.Strict() {
		t.Error("strict failure marking should default to true")
	}
}

func TestCooldown(t *testing.T) {
	cfg := Defaults()
	tests := []struct {
		source string
		want   time.Duration
	}{
		{SourceSemanticScholar, 5 * time.Minute},
		{SourceOpenAlex, time.Minute},
		{SourceArXiv, time.Minute},
	}
	for _, tt := range tests {
		if got := cfg.Cooldown(tt.source); got != tt.want {
			t.Errorf("Cooldown(%s) = %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero max papers", func(c *Config) { c.Build.MaxPapers = 0 }, ErrInvalidMaxPapers},
		{"negative depth", func(c *Config) { c.Build.MaxDepth = -1 }, ErrInvalidMaxDepth},
		{"zero limit", func(c *Config) { c.Build.PerPaperLimit = 0 }, ErrInvalidLimit},
		{"negative cap", func(c *Config) { c.Classify.Cap = -1 }, ErrInvalidCap},
		{"zero concurrency", func(c *Config) { c.Classify.Concurrency = 0 }, ErrInvalidConcurrency},
		{"unknown source", func(c *Config) { c.Sources.PaperChain = []string{"pubmed"} }, ErrUnknownSource},
		{"bad provider", func(c *Config) { c.LLM.Provider = "gpt" }, ErrInvalidProvider},
		{"zero cap allowed", func(c *Config) { c.Classify.Cap = 0 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	want := "/custom/config/cite/config.yml"
	if got := GlobalConfigPath(); got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Build.MaxPapers != 30 {
		t.Errorf("MaxPapers = %d, want default 30", cfg.Build.MaxPapers)
	}
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `
sources:
  s2_api_key: file-key
  neighbor_chain: [openalex]
build:
  max_papers: 50
  pacing_delay: 250ms
  strict_failure_marking: false
cooldowns:
  openalex: 2m
classify:
  concurrency: 3
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("S2_API_KEY", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sources.S2APIKey != "file-key" {
		t.Errorf("S2APIKey = %q, want file-key", cfg.Sources.S2APIKey)
	}
	if len(cfg.Sources.NeighborChain) != 1 || cfg.Sources.NeighborChain[0] != SourceOpenAlex {
		t.Errorf("NeighborChain = %v", cfg.Sources.NeighborChain)
	}
	if cfg.Build.MaxPapers != 50 || cfg.Build.PacingDelay != 250*time.Millisecond {
		t.Errorf("Build = %+v", cfg.Build)
	}
	if cfg.Build.Strict() {
		t.Error("Strict() = true, want false from file")
	}
	if cfg.Build.PerPaperLimit != 10 {
		t.Errorf("PerPaperLimit = %d, want default 10 kept", cfg.Build.PerPaperLimit)
	}
	if cfg.Cooldown(SourceOpenAlex) != 2*time.Minute {
		t.Errorf("openalex cooldown = %v, want 2m", cfg.Cooldown(SourceOpenAlex))
	}
	if cfg.Cooldown(SourceSemanticScholar) != 5*time.Minute {
		t.Errorf("s2 cooldown = %v, want default 5m kept", cfg.Cooldown(SourceSemanticScholar))
	}
	if cfg.Classify.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", cfg.Classify.Concurrency)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("sources:\n  s2_api_key: file-key\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("S2_API_KEY", "env-key")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sources.S2APIKey != "env-key" {
		t.Errorf("S2APIKey = %q, want env-key", cfg.Sources.S2APIKey)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q, want gpt-4o-mini", cfg.LLM.Model)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("build: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on invalid YAML")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("build:\n  max_papers: -3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if !errors.Is(err, ErrInvalidMaxPapers) {
		t.Errorf("Load() error = %v, want ErrInvalidMaxPapers", err)
	}
}

func TestLoadGlobalConfig_Cached(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	first, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	second, _ := LoadGlobalConfig()
	if first != second {
		t.Error("LoadGlobalConfig() should return the cached config")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got := ExpandPath("~/data"); got != filepath.Join(home, "data") {
		t.Errorf("ExpandPath(~/data) = %q", got)
	}
	if got := ExpandPath("/abs"); got != "/abs" {
		t.Errorf("ExpandPath(/abs) = %q", got)
	}
}

func TestGetConfigValue(t *testing.T) {
	t.Setenv("TEST_CONFIG_KEY", "from-env")
	if got := GetConfigValue("TEST_CONFIG_KEY", "from-config"); got != "from-env" {
		t.Errorf("GetConfigValue() = %q, want from-env", got)
	}
	t.Setenv("TEST_CONFIG_KEY", "")
	if got := GetConfigValue("TEST_CONFIG_KEY", "from-config"); got != "from-config" {
		t.Errorf("GetConfigValue() = %q, want from-config", got)
	}
}
