// Package config loads simulation settings from TOML or YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds the complete simulation configuration.
type Config struct {
	Operator Operator `toml:"operator" yaml:"operator"`
	Solver   Solver   `toml:"solver" yaml:"solver"`
	Sweep    Sweep    `toml:"sweep" yaml:"sweep"`
	Logging  Logging  `toml:"logging" yaml:"logging"`
}

// Operator selects the integral equation and its integration accuracy.
type Operator struct {
	Kind                string  `toml:"kind" yaml:"kind"`   // efie, mfie, tmfie, pmchwt, ctf
	Basis               string  `toml:"basis" yaml:"basis"` // rwg or loop_star
	QuadratureOrder     int     `toml:"quadrature_order" yaml:"quadrature_order"`
	SingularTerms       int     `toml:"singular_terms" yaml:"singular_terms"`
	SingularityAccuracy float64 `toml:"singularity_accuracy" yaml:"singularity_accuracy"`
	NearOrder           int     `toml:"near_order" yaml:"near_order"`
}

// Solver holds the mode search settings.
type Solver struct {
	NumModes  int     `toml:"num_modes" yaml:"num_modes"`
	LambdaTol float64 `toml:"lambda_tol" yaml:"lambda_tol"`
	MaxIter   int     `toml:"max_iter" yaml:"max_iter"`
	Weight    string  `toml:"weight" yaml:"weight"` // max element, rayleigh symmetric
	StaticTol float64 `toml:"static_tol" yaml:"static_tol"`
}

type Sweep struct {
	Workers int `toml:"workers" yaml:"workers"` // <= 0 uses one per CPU
}

type Logging struct {
	Level  string `toml:"level" yaml:"level"`   // debug, info, warn, error
	Format string `toml:"format" yaml:"format"` // text or json
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// Load reads path, choosing the decoder by extension (.toml, .yaml, .yml),
// fills unset fields with defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	var c Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&c); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: unsupported file extension %q", ErrInvalidConfig, ext)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Operator.Kind == "" {
		c.Operator.Kind = "efie"
	}
	if c.Operator.Basis == "" {
		c.Operator.Basis = "rwg"
	}
	if c.Operator.QuadratureOrder == 0 {
		c.Operator.QuadratureOrder = 3
	}
	if c.Operator.SingularTerms == 0 {
		c.Operator.SingularTerms = 2
	}
	if c.Operator.SingularityAccuracy == 0 {
		c.Operator.SingularityAccuracy = 1e-5
	}
	if c.Operator.NearOrder == 0 {
		c.Operator.NearOrder = 8
	}
	if c.Solver.NumModes == 0 {
		c.Solver.NumModes = 2
	}
	if c.Solver.LambdaTol == 0 {
		c.Solver.LambdaTol = 1e-8
	}
	if c.Solver.MaxIter == 0 {
		c.Solver.MaxIter = 50
	}
	if c.Solver.Weight == "" {
		c.Solver.Weight = "max element"
	}
	if c.Solver.StaticTol == 0 {
		c.Solver.StaticTol = 1e-4
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	switch strings.ToLower(c.Operator.Kind) {
	case "efie", "mfie", "tmfie", "pmchwt", "ctf":
	default:
		check(false, "operator.kind %q", c.Operator.Kind)
	}
	switch strings.ReplaceAll(strings.ToLower(c.Operator.Basis), " ", "_") {
	case "rwg", "loop_star":
	default:
		check(false, "operator.basis %q", c.Operator.Basis)
	}
	check(c.Operator.QuadratureOrder >= 1 && c.Operator.QuadratureOrder <= 20,
		"operator.quadrature_order %d outside [1, 20]", c.Operator.QuadratureOrder)
	check(c.Operator.SingularTerms >= 1, "operator.singular_terms %d < 1", c.Operator.SingularTerms)
	check(c.Operator.SingularityAccuracy > 0 && c.Operator.SingularityAccuracy < 1,
		"operator.singularity_accuracy %g outside (0, 1)", c.Operator.SingularityAccuracy)
	check(c.Operator.NearOrder >= 1, "operator.near_order %d < 1", c.Operator.NearOrder)
	check(c.Solver.NumModes >= 1, "solver.num_modes %d < 1", c.Solver.NumModes)
	check(c.Solver.LambdaTol > 0, "solver.lambda_tol %g <= 0", c.Solver.LambdaTol)
	check(c.Solver.MaxIter >= 1, "solver.max_iter %d < 1", c.Solver.MaxIter)
	check(c.Solver.StaticTol > 0 && c.Solver.StaticTol < 1,
		"solver.static_tol %g outside (0, 1)", c.Solver.StaticTol)
	switch strings.ReplaceAll(strings.ToLower(c.Solver.Weight), "_", " ") {
	case "max element", "rayleigh symmetric":
	default:
		check(false, "solver.weight %q", c.Solver.Weight)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		check(false, "logging.level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		check(false, "logging.format %q", c.Logging.Format)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
