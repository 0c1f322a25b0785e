package config

import (
	"errors"

	"github.com/danielpatrickdp/spider-scale/internal/catalog"
	"github.com/danielpatrickdp/spider-scale/internal/scaling"
	"github.com/danielpatrickdp/spider-scale/internal/simulation"
)

// #region species
// Species is a preset baseline body length.
type Species struct {
	Key            string  `yaml:"key"`
	Name           string  `yaml:"name"`
	BaselineLength float64 `yaml:"baseline_length"` // meters
}

// DefaultSpecies returns the built-in presets. The first entry is the default.
func DefaultSpecies() []Species {
	return []Species{
		{Key: "house_spider", Name: "House spider", BaselineLength: 0.008},
		{Key: "jumping_spider", Name: "Jumping spider", BaselineLength: 0.006},
		{Key: "orb_weaver", Name: "Orb weaver", BaselineLength: 0.020},
		{Key: "wolf_spider", Name: "Wolf spider", BaselineLength: 0.025},
		{Key: "goliath_birdeater", Name: "Goliath birdeater", BaselineLength: 0.120},
	}
}

// #endregion species

// #region environment
// Range is a closed interval with a default inside it.
type Range struct {
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Default float64 `yaml:"default"`
}

// Contains reports whether v is inside the interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// EnvironmentConfig bounds the environment controls.
type EnvironmentConfig struct {
	O2Fraction        Range `yaml:"o2_fraction"`
	GravityMultiplier Range `yaml:"gravity_multiplier"`
}

// DefaultEnvironmentConfig returns present-day Earth with the slider ranges.
func DefaultEnvironmentConfig() EnvironmentConfig {
	return EnvironmentConfig{
		O2Fraction:        Range{Min: 0.10, Max: 0.35, Default: 0.21},
		GravityMultiplier: Range{Min: 0.5, Max: 3.0, Default: 1.0},
	}
}

// #endregion environment

// #region config
// Config bundles every static input of the simulator.
type Config struct {
	Scaling      scaling.Params                  `yaml:"scaling"`
	Sweep        simulation.SweepConfig          `yaml:"sweep"`
	Environment  EnvironmentConfig               `yaml:"environment"`
	Species      []Species                       `yaml:"species"`
	FailureModes []catalog.FailureModeDefinition `yaml:"failure_modes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Scaling:      scaling.DefaultParams(),
		Sweep:        simulation.DefaultSweepConfig(),
		Environment:  DefaultEnvironmentConfig(),
		Species:      DefaultSpecies(),
		FailureModes: catalog.DefaultDefinitions(),
	}
}

// #endregion config

// #region env
// Env holds process settings read from the environment.
type Env struct {
	DBPath     string `env:"SPIDERSCALE_DB" envDefault:":memory:"`
	ConfigPath string `env:"SPIDERSCALE_CONFIG"`
	LogLevel   string `env:"SPIDERSCALE_LOG_LEVEL" envDefault:"info"`
	Species    string `env:"SPIDERSCALE_SPECIES" envDefault:"house_spider"`
}

// #endregion env

// #region errors
// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// #endregion errors
