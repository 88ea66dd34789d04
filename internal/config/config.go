// Package config handles global configuration for citethreads.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Source names used in chains, cooldowns and progress messages.
const (
	SourceSemanticScholar = "semantic_scholar"
	SourceOpenAlex        = "openalex"
	SourceCrossref        = "crossref"
	SourceArXiv           = "arxiv"
	SourceASTA            = "asta"
)

// KnownSources lists every source name the resolver can be configured with.
var KnownSources = []string{SourceSemanticScholar, SourceOpenAlex, SourceCrossref, SourceArXiv, SourceASTA}

// Config represents configuration stored in ~/.config/cite/config.yml.
type Config struct {
	DataDir   string                   `yaml:"data_dir,omitempty"`
	Log       LogConfig                `yaml:"log"`
	Sources   SourcesConfig            `yaml:"sources"`
	LLM       LLMConfig                `yaml:"llm"`
	Build     BuildConfig              `yaml:"build"`
	Classify  ClassifyConfig           `yaml:"classify"`
	Cooldowns map[string]time.Duration `yaml:"cooldowns,omitempty"`
	Server    ServerConfig             `yaml:"server"`
	Redis     RedisConfig              `yaml:"redis"`
	Neo4j     Neo4jConfig              `yaml:"neo4j"`
}

type LogConfig struct {
	Mode  string `yaml:"mode,omitempty"`  // dev or prod
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
}

// SourcesConfig holds API credentials and fallback chain order.
type SourcesConfig struct {
	S2APIKey   string `yaml:"s2_api_key,omitempty"`
	ASTAAPIKey string `yaml:"asta_api_key,omitempty"`
	Mailto     string `yaml:"mailto,omitempty"` // polite-pool contact for OpenAlex and Crossref

	// PaperChain is the fallback order for single-paper lookups.
	PaperChain []string `yaml:"paper_chain,omitempty"`
	// NeighborChain is the fallback order for reference and citation lookups.
	NeighborChain []string `yaml:"neighbor_chain,omitempty"`
}

// LLMConfig selects the text-completion backend used for classification.
type LLMConfig struct {
	Provider    string        `yaml:"provider,omitempty"` // openai, ollama, claude, none
	BaseURL     string        `yaml:"base_url,omitempty"`
	Model       string        `yaml:"model,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty"`
	Temperature float32       `yaml:"temperature,omitempty"`
	MaxTokens   int           `yaml:"max_tokens,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

type BuildConfig struct {
	MaxPapers     int           `yaml:"max_papers,omitempty"`
	MaxDepth      int           `yaml:"max_depth,omitempty"`
	Direction     string        `yaml:"direction,omitempty"`
	PerPaperLimit int           `yaml:"per_paper_limit,omitempty"`
	PacingDelay   time.Duration `yaml:"pacing_delay,omitempty"`
	CallTimeout   time.Duration `yaml:"call_timeout,omitempty"`

	// StrictFailureMarking marks Semantic Scholar limited when a paper fetch
	// fails with a transport error or invalid response, not just on explicit
	// rate-limit responses. A missing paper never marks it.
	StrictFailureMarking *bool `yaml:"strict_failure_marking,omitempty"`
}

type ClassifyConfig struct {
	Cap         int           `yaml:"cap,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
	CacheTTL    time.Duration `yaml:"cache_ttl,omitempty"` // Redis cache only
}

type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// DefaultCooldownKey is the Cooldowns entry used for sources without their own.
const DefaultCooldownKey = "default"

// Defaults returns the built-in configuration.
func Defaults() *Config {
	strict := true
	return &Config{
		DataDir: "./data",
		Log:     LogConfig{Mode: "dev", Level: "info"},
		Sources: SourcesConfig{
			PaperChain:    []string{SourceSemanticScholar, SourceOpenAlex, SourceCrossref, SourceArXiv},
			NeighborChain: []string{SourceSemanticScholar, SourceOpenAlex},
		},
		LLM: LLMConfig{
			Provider:    "openai",
			BaseURL:     "https://api.siliconflow.cn/v1",
			Model:       "deepseek-ai/DeepSeek-V3",
			Temperature: 0.1,
			MaxTokens:   300,
			Timeout:     60 * time.Second,
		},
		Build: BuildConfig{
			MaxPapers:            30,
			MaxDepth:             1,
			Direction:            "both",
			PerPaperLimit:        10,
			PacingDelay:          800 * time.Millisecond,
			CallTimeout:          20 * time.Second,
			StrictFailureMarking: &strict,
		},
		Classify: ClassifyConfig{
			Cap:         20,
			Concurrency: 5,
			CacheTTL:    7 * 24 * time.Hour,
		},
		Cooldowns: map[string]time.Duration{
			SourceSemanticScholar: 5 * time.Minute,
			SourceOpenAlex:        time.Minute,
			DefaultCooldownKey:    time.Minute,
		},
		Server: ServerConfig{Addr: ":8000"},
	}
}

// Cooldown returns the cooldown configured for a source, falling back to
// the default entry.
func (c *Config) Cooldown(source string) time.Duration {
	if d, ok := c.Cooldowns[source]; ok {
		return d
	}
	return c.Cooldowns[DefaultCooldownKey]
}

// Strict reports whether failure marking is enabled.
func (b BuildConfig) Strict() bool {
	return b.StrictFailureMarking == nil || *b.StrictFailureMarking
}

// Validation errors.
var (
	ErrInvalidMaxPapers   = errors.New("build.max_papers must be positive")
	ErrInvalidMaxDepth    = errors.New("build.max_depth must not be negative")
	ErrInvalidLimit       = errors.New("build.per_paper_limit must be positive")
	ErrInvalidCap         = errors.New("classify.cap must not be negative")
	ErrInvalidConcurrency = errors.New("classify.concurrency must be positive")
	ErrUnknownSource      = errors.New("unknown source")
	ErrInvalidProvider    = errors.New("llm.provider must be one of openai, ollama, claude, none")
)

// Validate rejects nonsensical values.
func (c *Config) Validate() error {
	if c.Build.MaxPapers <= 0 {
		return ErrInvalidMaxPapers
	}
	if c.Build.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.Build.PerPaperLimit <= 0 {
		return ErrInvalidLimit
	}
	if c.Classify.Cap < 0 {
		return ErrInvalidCap
	}
	if c.Classify.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	for _, chain := range [][]string{c.Sources.PaperChain, c.Sources.NeighborChain} {
		for _, name := range chain {
			if !isKnownSource(name) {
				return fmt.Errorf("%w: %s", ErrUnknownSource, name)
			}
		}
	}
	switch c.LLM.Provider {
	case "", "openai", "ollama", "claude", "none":
	default:
		return fmt.Errorf("%w (got %q)", ErrInvalidProvider, c.LLM.Provider)
	}
	return nil
}

func isKnownSource(name string) bool {
	for _, s := range KnownSources {
		if s == name {
			return true
		}
	}
	return false
}
