// Package config loads the bankforge.yaml run configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/caldw/bankforge/core/errors"
)

// LinkEntry is one event link in the config file.
type LinkEntry struct {
	Source string `yaml:"source"`
	Dest   string `yaml:"dest"`
}

// Config is the full run configuration.
type Config struct {
	// SourceBank and DestBank are paths to the soundbank json files.
	SourceBank string `yaml:"source_bank"`
	DestBank   string `yaml:"dest_bank"`

	// SourceWemDir and DestWemDir hold the banks' media payloads.
	SourceWemDir string `yaml:"source_wem_dir"`
	DestWemDir   string `yaml:"dest_wem_dir"`

	// Links lists events inline; LinksFile points to a .links file.
	// Exactly one of the two must be set.
	Links     []LinkEntry `yaml:"links"`
	LinksFile string      `yaml:"links_file"`

	// EnableWrite commits results to disk. Off by default so a run is a
	// dry run unless asked otherwise.
	EnableWrite bool `yaml:"enable_write"`

	// NoQuestions skips every interactive prompt, taking the safe choice.
	NoQuestions bool `yaml:"no_questions"`

	// LedgerPath enables the ported-event ledger when set.
	LedgerPath string `yaml:"ledger_path"`

	// HistoryDir enables compressed bank archives when set.
	HistoryDir string `yaml:"history_dir"`

	// SoundbanksInfo optionally points at SoundbanksInfo.xml.
	SoundbanksInfo string `yaml:"soundbanks_info"`

	// VerifyThreshold overrides the large-integer cutoff used during
	// verification. Zero keeps the default.
	VerifyThreshold int64 `yaml:"verify_threshold"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &errors.ParseError{Format: "yaml", Path: path, Message: "invalid config", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and mutually exclusive options.
func (c *Config) Validate() error {
	if c.SourceBank == "" {
		return &errors.ConfigError{Field: "source_bank", Message: "required"}
	}
	if c.DestBank == "" {
		return &errors.ConfigError{Field: "dest_bank", Message: "required"}
	}
	if len(c.Links) == 0 && c.LinksFile == "" {
		return &errors.ConfigError{Field: "links", Message: "provide links or links_file"}
	}
	if len(c.Links) > 0 && c.LinksFile != "" {
		return &errors.ConfigError{Field: "links", Message: "links and links_file are mutually exclusive"}
	}
	for i, l := range c.Links {
		if l.Source == "" {
			return &errors.ConfigError{Field: fmt.Sprintf("links[%d].source", i), Message: "required"}
		}
	}
	if c.VerifyThreshold < 0 {
		return &errors.ConfigError{Field: "verify_threshold", Message: "must be non-negative"}
	}
	return nil
}
