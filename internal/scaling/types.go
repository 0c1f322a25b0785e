package scaling

import (
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/spider-scale/internal/catalog"
)

// #region mode
// Mode selects the model complexity.
type Mode string

const (
	ModeSimple   Mode = "simple"
	ModeExtended Mode = "extended"
)

// ParseMode converts a user-supplied string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSimple, ModeExtended:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want simple|extended)", s)
}

// #endregion mode

// #region model-input
// ModelInput is the immutable parameter set for one evaluation.
type ModelInput struct {
	BodyLength        float64 `json:"body_length"`     // meters
	BaselineLength    float64 `json:"baseline_length"` // meters, species reference length
	O2Fraction        float64 `json:"o2_fraction"`
	GravityMultiplier float64 `json:"gravity_multiplier"`
	Mode              Mode    `json:"mode"`
}

// ErrInvalidInput marks a ModelInput that would make ComputeModel produce
// non-finite output.
var ErrInvalidInput = errors.New("scaling: invalid model input")

// Validate rejects non-positive or non-finite parameters and unknown modes.
// ComputeModel does not call it; callers at the input boundary do.
func (in ModelInput) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"body_length", in.BodyLength},
		{"baseline_length", in.BaselineLength},
		{"o2_fraction", in.O2Fraction},
		{"gravity_multiplier", in.GravityMultiplier},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
			return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidInput, f.name, f.v)
		}
	}
	if in.Mode != ModeSimple && in.Mode != ModeExtended {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, in.Mode)
	}
	return nil
}

// #endregion model-input

// #region scores
// Proxies holds the dimensionless capacity-adequacy score per subsystem.
// 1.0 is baseline adequacy; values above 1 are allowed.
type Proxies struct {
	Respiration float64 `json:"respiration"`
	Hydraulics  float64 `json:"hydraulics"`
	Exoskeleton float64 `json:"exoskeleton"`
	Locomotion  float64 `json:"locomotion"`
}

// Get returns the proxy for sub.
func (p Proxies) Get(sub catalog.Subsystem) float64 {
	switch sub {
	case catalog.Respiration:
		return p.Respiration
	case catalog.Hydraulics:
		return p.Hydraulics
	case catalog.Exoskeleton:
		return p.Exoskeleton
	case catalog.Locomotion:
		return p.Locomotion
	}
	return math.NaN()
}

// HealthScores holds the 0-100 health per subsystem.
type HealthScores struct {
	Respiration float64 `json:"respiration"`
	Hydraulics  float64 `json:"hydraulics"`
	Exoskeleton float64 `json:"exoskeleton"`
	Locomotion  float64 `json:"locomotion"`
}

// Get returns the health score for sub.
func (h HealthScores) Get(sub catalog.Subsystem) float64 {
	switch sub {
	case catalog.Respiration:
		return h.Respiration
	case catalog.Hydraulics:
		return h.Hydraulics
	case catalog.Exoskeleton:
		return h.Exoskeleton
	case catalog.Locomotion:
		return h.Locomotion
	}
	return math.NaN()
}

// FailureFlags is the stateless per-subsystem "below threshold" view. It is
// independent of the failure event history.
type FailureFlags struct {
	Respiration bool `json:"respiration"`
	Hydraulics  bool `json:"hydraulics"`
	Exoskeleton bool `json:"exoskeleton"`
	Locomotion  bool `json:"locomotion"`
}

// Any reports whether at least one flag is set.
func (f FailureFlags) Any() bool {
	return f.Respiration || f.Hydraulics || f.Exoskeleton || f.Locomotion
}

// #endregion scores

// #region model-output
// ModelOutput is the result of one ComputeModel call.
type ModelOutput struct {
	ScaleFactor    float64      `json:"scale_factor"`
	Mass           float64      `json:"mass"`
	SurfaceArea    float64      `json:"surface_area"`
	WeightFactor   float64      `json:"weight_factor"`
	Proxies        Proxies      `json:"proxies"`
	Health         HealthScores `json:"health"`
	ViabilityIndex float64      `json:"viability_index"`
	Flags          FailureFlags `json:"flags"`
}

// #endregion model-output

// #region params
// Exponents are the per-mode power-law exponents of the scale factor.
type Exponents struct {
	HydraulicsSize   float64 `yaml:"hydraulics_size"`
	HydraulicsWeight float64 `yaml:"hydraulics_weight"`
	Exoskeleton      float64 `yaml:"exoskeleton"`
	Locomotion       float64 `yaml:"locomotion"`
}

// HealthParams shapes the proxy to health mapping.
type HealthParams struct {
	ClampMax          float64 `yaml:"clamp_max"`          // proxy is clamped to [0, ClampMax]
	LinearFloor       float64 `yaml:"linear_floor"`       // simple: health 0 at or below
	LinearCeiling     float64 `yaml:"linear_ceiling"`     // simple: health 100 at or above
	LogisticSteepness float64 `yaml:"logistic_steepness"` // extended
	LogisticMidpoint  float64 `yaml:"logistic_midpoint"`  // extended
}

// ViabilityWeights weight each subsystem in the viability index. Must sum to 1.
type ViabilityWeights struct {
	Respiration float64 `yaml:"respiration"`
	Hydraulics  float64 `yaml:"hydraulics"`
	Exoskeleton float64 `yaml:"exoskeleton"`
	Locomotion  float64 `yaml:"locomotion"`
}

// Sum returns the total weight.
func (w ViabilityWeights) Sum() float64 {
	return w.Respiration + w.Hydraulics + w.Exoskeleton + w.Locomotion
}

// Params holds every tunable of the scaling model.
type Params struct {
	Simple      Exponents        `yaml:"simple"`
	Extended    Exponents        `yaml:"extended"`
	DiffusionK  float64          `yaml:"diffusion_k"`  // extended respiration penalty
	ReferenceO2 float64          `yaml:"reference_o2"` // O2 fraction giving respiration 1.0 at s=1
	Health      HealthParams     `yaml:"health"`
	Weights     ViabilityWeights `yaml:"weights"`
	Epsilon     float64          `yaml:"epsilon"` // added before the log in the viability index
}

// DefaultParams returns the calibrated defaults.
func DefaultParams() Params {
	return Params{
		Simple: Exponents{
			HydraulicsSize:   0,
			HydraulicsWeight: 0.65,
			Exoskeleton:      1.0,
			Locomotion:       0.85,
		},
		Extended: Exponents{
			HydraulicsSize:   0.3,
			HydraulicsWeight: 0.65,
			Exoskeleton:      1.3,
			Locomotion:       1.1,
		},
		DiffusionK:  0.15,
		ReferenceO2: 0.21,
		Health: HealthParams{
			ClampMax:          1.2,
			LinearFloor:       0.3,
			LinearCeiling:     1.0,
			LogisticSteepness: 8,
			LogisticMidpoint:  0.6,
		},
		Weights: ViabilityWeights{
			Respiration: 0.35,
			Hydraulics:  0.20,
			Exoskeleton: 0.30,
			Locomotion:  0.15,
		},
		Epsilon: 1e-6,
	}
}

// #endregion params

// #region params-errors
// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("scaling: invalid parameters")

// weightSumTolerance bounds floating-point drift in the weight sum check.
const weightSumTolerance = 1e-9

// #endregion params-errors
