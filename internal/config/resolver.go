// Package config resolves runtime settings from all sources with a
// fixed precedence: CLI flag > TRIAGE_* environment variable >
// ~/.triage/config.yaml > built-in default. Every resolved value keeps
// its provenance so `triage config` style debugging stays possible.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is one setting plus where it came from.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI flag values into resolution.
type ResolveOptions struct {
	ConfigPath string
	CLIDBPath  string
	CLIEmbed   string
	CLIRules   string
}

// ResolvedConfig is the full resolved settings set.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath    ResolvedValue `json:"db_path"`
	Embed     ResolvedValue `json:"embed"`      // provider/model
	RulesPath ResolvedValue `json:"rules_path"` // category taxonomy override
}

type fileConfig struct {
	DBPath string `yaml:"db_path"`
	Rules  string `yaml:"rules"`
	Embed  struct {
		Provider string `yaml:"provider"`
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"embed"`
}

// DefaultConfigPath is ~/.triage/config.yaml.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".triage", "config.yaml")
}

// Resolve loads the config file (if present) and layers env vars and
// CLI flags over it. A missing config file is not an error; a
// malformed one is.
func Resolve(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.RulesPath, cfg.Rules, SourceConfig, path)
		apply(&out.Embed, cfg.Embed.Provider, SourceConfig, path)

		// Endpoint and key from the file surface through the env vars
		// the embed client already reads.
		if cfg.Embed.Endpoint != "" && os.Getenv("TRIAGE_EMBED_ENDPOINT") == "" {
			os.Setenv("TRIAGE_EMBED_ENDPOINT", cfg.Embed.Endpoint)
		}
		if cfg.Embed.APIKey != "" && os.Getenv("TRIAGE_EMBED_API_KEY") == "" {
			os.Setenv("TRIAGE_EMBED_API_KEY", cfg.Embed.APIKey)
		}
	}

	applyEnv(&out.DBPath, "TRIAGE_DB")
	applyEnv(&out.RulesPath, "TRIAGE_RULES")
	applyEnv(&out.Embed, "TRIAGE_EMBED")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.RulesPath, opts.CLIRules, SourceCLI, "--rules")
	apply(&out.Embed, opts.CLIEmbed, SourceCLI, "--embed")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	if out.RulesPath.Value != "" {
		out.RulesPath.Value = expandUserPath(out.RulesPath.Value)
	}
	return out, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
