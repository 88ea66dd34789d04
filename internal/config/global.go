package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "cite"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *Config

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/cite/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file, layered over
// Defaults() and under environment overrides.
// A missing file is not an error.
func LoadGlobalConfig() (*Config, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}
	cfg, err := Load(GlobalConfigPath())
	if err != nil {
		return nil, err
	}
	globalConfigCache = cfg
	return cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// Load reads the config file at path over the defaults, applies environment
// overrides and validates the result. An empty or missing path yields the
// defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.DataDir = ExpandPath(cfg.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// envOverride binds an environment variable to a config field.
type envOverride struct {
	key   string
	field *string
}

// envOverrides lists environment variables in ascending priority: later
// entries win when several are set for the same field.
func (c *Config) envOverrides() []envOverride {
	return []envOverride{
		{"SEMANTIC_SCHOLAR_API_KEY", &c.Sources.S2APIKey},
		{"S2_API_KEY", &c.Sources.S2APIKey},
		{"ASTA_API_KEY", &c.Sources.ASTAAPIKey},
		{"CITE_MAILTO", &c.Sources.Mailto},
		{"LLM_PROVIDER", &c.LLM.Provider},
		{"LLM_BASE_URL", &c.LLM.BaseURL},
		{"LLM_MODEL", &c.LLM.Model},
		{"SILICONFLOW_API_KEY", &c.LLM.APIKey},
		{"OPENAI_API_KEY", &c.LLM.APIKey},
		{"CITE_DATA_DIR", &c.DataDir},
		{"CITE_LOG_MODE", &c.Log.Mode},
		{"CITE_LOG_LEVEL", &c.Log.Level},
		{"CITE_ADDR", &c.Server.Addr},
		{"REDIS_ADDR", &c.Redis.Addr},
		{"REDIS_PASSWORD", &c.Redis.Password},
		{"NEO4J_URI", &c.Neo4j.URI},
		{"NEO4J_USER", &c.Neo4j.User},
		{"NEO4J_PASSWORD", &c.Neo4j.Password},
		{"NEO4J_DATABASE", &c.Neo4j.Database},
	}
}

// applyEnv overrides config values with non-empty environment variables.
func (c *Config) applyEnv() {
	for _, o := range c.envOverrides() {
		if v := os.Getenv(o.key); v != "" {
			*o.field = v
		}
	}
}

// GetConfigValue returns the environment variable if set, otherwise the
// config value.
func GetConfigValue(envKey, configValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return configValue
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}

// ProjectsDir returns the directory holding the project database.
func (c *Config) ProjectsDir() string {
	return filepath.Join(c.DataDir, "projects")
}

// DBPath returns the path to the SQLite project database.
func (c *Config) DBPath() string {
	return filepath.Join(c.ProjectsDir(), "citethreads.db")
}
