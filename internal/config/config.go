package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/spider-scale/internal/catalog"
	"github.com/danielpatrickdp/spider-scale/internal/failure"
	"github.com/danielpatrickdp/spider-scale/internal/scaling"
	"github.com/danielpatrickdp/spider-scale/internal/simulation"
)

// #region load
// Load reads a YAML file over the defaults and validates the result. An empty
// path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv parses process settings from the environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// #endregion load

// #region validate
// Validate checks every section. Callers treat a failure as fatal.
func (c Config) Validate() error {
	if err := c.Scaling.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := catalog.New(c.FailureModes...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	s := c.Sweep
	if !(s.MinSize > 0 && s.MaxSize > s.MinSize) {
		return fmt.Errorf("%w: sweep range [%v, %v] must be positive and increasing", ErrInvalidConfig, s.MinSize, s.MaxSize)
	}
	if s.Points < 2 {
		return fmt.Errorf("%w: sweep needs at least 2 points, got %d", ErrInvalidConfig, s.Points)
	}

	for name, r := range map[string]Range{
		"o2_fraction":        c.Environment.O2Fraction,
		"gravity_multiplier": c.Environment.GravityMultiplier,
	} {
		if !(r.Min > 0 && r.Max >= r.Min && r.Contains(r.Default)) {
			return fmt.Errorf("%w: %s range %+v", ErrInvalidConfig, name, r)
		}
	}

	if len(c.Species) == 0 {
		return fmt.Errorf("%w: no species presets", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Species))
	for _, sp := range c.Species {
		if sp.Key == "" || seen[sp.Key] {
			return fmt.Errorf("%w: species key %q empty or duplicated", ErrInvalidConfig, sp.Key)
		}
		seen[sp.Key] = true
		if !(sp.BaselineLength > 0) {
			return fmt.Errorf("%w: species %s baseline %v must be positive", ErrInvalidConfig, sp.Key, sp.BaselineLength)
		}
	}
	return nil
}

// #endregion validate

// #region lookups
// LookupSpecies finds a preset by key.
func (c Config) LookupSpecies(key string) (Species, bool) {
	for _, sp := range c.Species {
		if sp.Key == key {
			return sp, true
		}
	}
	return Species{}, false
}

// DefaultInput returns the starting parameters for sp: body at baseline,
// default environment, simple mode.
func (c Config) DefaultInput(sp Species) scaling.ModelInput {
	return scaling.ModelInput{
		BodyLength:        sp.BaselineLength,
		BaselineLength:    sp.BaselineLength,
		O2Fraction:        c.Environment.O2Fraction.Default,
		GravityMultiplier: c.Environment.GravityMultiplier.Default,
		Mode:              scaling.ModeSimple,
	}
}

// #endregion lookups

// #region build
// Build assembles the facade described by c. The machine and model share one
// catalog.
func (c Config) Build(opts ...failure.Option) (*simulation.Facade, error) {
	cat, err := catalog.New(c.FailureModes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	model, err := scaling.NewModel(c.Scaling, cat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return simulation.New(model, failure.NewMachine(cat, opts...), c.Sweep), nil
}

// #endregion build
