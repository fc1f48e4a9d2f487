// Package config loads optional run defaults for ewsub from an .ewsubrc
// file. Everything has a sensible zero value; the file only exists to pin
// preferences like color mode or tables to skip.
package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no config file is given explicitly.
const DefaultPath = ".ewsubrc"

// Config holds run defaults. All fields are optional.
type Config struct {
	// NoColor disables colored diff output.
	NoColor bool `yaml:"no_color" hcl:"no_color,optional"`

	// ProgressStep is the number of processed cells between progress
	// updates. Zero means the built-in default.
	ProgressStep int `yaml:"progress_step" hcl:"progress_step,optional"`

	// IncludeTables limits the scan to tables matching any of these glob
	// patterns. Empty means all tables.
	IncludeTables []string `yaml:"include_tables" hcl:"include_tables,optional"`

	// ExcludeTables skips tables matching any of these glob patterns.
	// Exclusion wins over inclusion.
	ExcludeTables []string `yaml:"exclude_tables" hcl:"exclude_tables,optional"`
}

// Load reads the config file at path. The format is determined by the file
// extension; a bare .ewsubrc is tried as YAML first, then HCL. When path is
// empty and no .ewsubrc exists, an empty Config is returned.
func Load(ctx context.Context, path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &Config{}, nil
		}
		return nil, errors.Errorf("reading config file: %w", err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = loadYAML(data)
	case ".hcl":
		cfg, err = loadHCL(data, path)
	default:
		// Try YAML first, then HCL.
		cfg, err = loadYAML(data)
		if err != nil {
			var hclErr error
			cfg, hclErr = loadHCL(data, path)
			if hclErr != nil {
				return nil, errors.Errorf("parsing %s as YAML or HCL: %w", path, err)
			}
			err = nil
		}
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, errors.Errorf("validating config %s: %w", path, err)
	}

	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

func loadYAML(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

func loadHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var cfg Config
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &cfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for _, g := range append(append([]string{}, c.IncludeTables...), c.ExcludeTables...) {
		if !doublestar.ValidatePattern(g) {
			return errors.Errorf("invalid table glob %q", g)
		}
	}
	if c.ProgressStep < 0 {
		return errors.Errorf("progress_step must not be negative")
	}
	return nil
}

// TableFilter builds the table predicate for the scan: nil when no globs are
// configured, so the engine can skip filtering entirely.
func (c *Config) TableFilter() func(table string) bool {
	if len(c.IncludeTables) == 0 && len(c.ExcludeTables) == 0 {
		return nil
	}

	matchAny := func(globs []string, name string) bool {
		for _, g := range globs {
			if ok, err := doublestar.Match(g, name); err == nil && ok {
				return true
			}
		}
		return false
	}

	return func(table string) bool {
		if matchAny(c.ExcludeTables, table) {
			return false
		}
		if len(c.IncludeTables) == 0 {
			return true
		}
		return matchAny(c.IncludeTables, table)
	}
}
