// Package config loads the project-level configuration for the design
// automation workflow from a YAML file. Every field has a working default so
// a missing config file is not an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no explicit path is given.
const DefaultPath = "config.yaml"

// Browser holds the defaults applied to every browser session the workflow
// opens. ProfileDir and ConnectURL mirror the session options of the same
// name; per-command flags override them.
type Browser struct {
	Headless       bool   `yaml:"headless"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
	ProfileDir     string `yaml:"profile_dir"`
	ConnectURL     string `yaml:"connect_url"`
}

// OpenAI configures the direct-API path of the GPT operator. The key itself
// never lives in the file: APIKeyEnv names the environment variable to read.
type OpenAI struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Config is the full project configuration.
type Config struct {
	ChatGPTURL      string  `yaml:"chatgpt_url"`
	AuraStartURL    string  `yaml:"aura_start_url"`
	VariantStartURL string  `yaml:"variant_start_url"`
	RunsDir         string  `yaml:"runs_dir"`
	Browser         Browser `yaml:"browser"`
	OpenAI          OpenAI  `yaml:"openai"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ChatGPTURL:      "https://chatgpt.com",
		AuraStartURL:    "https://www.aura.build/",
		VariantStartURL: "https://variant.com/projects",
		RunsDir:         "runs",
		Browser: Browser{
			Headless:       false,
			ViewportWidth:  1280,
			ViewportHeight: 720,
		},
		OpenAI: OpenAI{
			Model:     "gpt-4o",
			APIKeyEnv: "OPENAI_API_KEY",
		},
	}
}

// Load reads the configuration at path, filling unset fields from Default.
// A missing file yields the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults backfills zero-valued fields after unmarshalling, so a file
// that sets only one key does not blank the rest.
func (c *Config) applyDefaults() {
	d := Default()
	if c.ChatGPTURL == "" {
		c.ChatGPTURL = d.ChatGPTURL
	}
	if c.AuraStartURL == "" {
		c.AuraStartURL = d.AuraStartURL
	}
	if c.VariantStartURL == "" {
		c.VariantStartURL = d.VariantStartURL
	}
	if c.RunsDir == "" {
		c.RunsDir = d.RunsDir
	}
	if c.Browser.ViewportWidth == 0 {
		c.Browser.ViewportWidth = d.Browser.ViewportWidth
	}
	if c.Browser.ViewportHeight == 0 {
		c.Browser.ViewportHeight = d.Browser.ViewportHeight
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = d.OpenAI.Model
	}
	if c.OpenAI.APIKeyEnv == "" {
		c.OpenAI.APIKeyEnv = d.OpenAI.APIKeyEnv
	}
}

// APIKey resolves the OpenAI API key from the configured environment
// variable. Empty means the direct-API path is unavailable.
func (c *Config) APIKey() string {
	return os.Getenv(c.OpenAI.APIKeyEnv)
}
