package scaling

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/spider-scale/internal/catalog"
)

// #region validate-params
// Validate checks the invariants the formulas depend on.
func (p Params) Validate() error {
	w := p.Weights
	for name, v := range map[string]float64{
		"respiration": w.Respiration,
		"hydraulics":  w.Hydraulics,
		"exoskeleton": w.Exoskeleton,
		"locomotion":  w.Locomotion,
	} {
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("%w: weight %s is %v", ErrInvalidParams, name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("%w: viability weights sum to %v, want 1", ErrInvalidParams, sum)
	}
	if !(p.Epsilon > 0) {
		return fmt.Errorf("%w: epsilon must be positive, got %v", ErrInvalidParams, p.Epsilon)
	}
	if !(p.ReferenceO2 > 0) {
		return fmt.Errorf("%w: reference_o2 must be positive, got %v", ErrInvalidParams, p.ReferenceO2)
	}
	if math.IsNaN(p.DiffusionK) || p.DiffusionK < 0 {
		return fmt.Errorf("%w: diffusion_k must be non-negative, got %v", ErrInvalidParams, p.DiffusionK)
	}
	h := p.Health
	if !(h.LinearFloor >= 0 && h.LinearFloor < h.LinearCeiling) {
		return fmt.Errorf("%w: linear floor %v must be in [0, ceiling %v)", ErrInvalidParams, h.LinearFloor, h.LinearCeiling)
	}
	if !(h.ClampMax >= h.LinearCeiling) {
		return fmt.Errorf("%w: clamp_max %v below linear ceiling %v", ErrInvalidParams, h.ClampMax, h.LinearCeiling)
	}
	if !(h.LogisticSteepness > 0) {
		return fmt.Errorf("%w: logistic steepness must be positive, got %v", ErrInvalidParams, h.LogisticSteepness)
	}
	for mode, e := range map[Mode]Exponents{ModeSimple: p.Simple, ModeExtended: p.Extended} {
		for _, v := range []float64{e.HydraulicsSize, e.HydraulicsWeight, e.Exoskeleton, e.Locomotion} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("%w: %s exponents must be finite and non-negative: %+v", ErrInvalidParams, mode, e)
			}
		}
	}
	return nil
}

// #endregion validate-params

// #region model
// Model evaluates the scaling laws with a fixed parameter set and catalog.
// It holds no mutable state and is safe for concurrent use.
type Model struct {
	params  Params
	catalog *catalog.Catalog
}

// NewModel validates params and returns a Model.
func NewModel(params Params, cat *catalog.Catalog) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, fmt.Errorf("%w: nil catalog", ErrInvalidParams)
	}
	return &Model{params: params, catalog: cat}, nil
}

// MustNewModel is like NewModel but panics on invalid configuration.
func MustNewModel(params Params, cat *catalog.Catalog) *Model {
	m, err := NewModel(params, cat)
	if err != nil {
		panic(err)
	}
	return m
}

// Params returns the model's parameters.
func (m *Model) Params() Params {
	return m.params
}

// Catalog returns the catalog used for the legacy failure flags.
func (m *Model) Catalog() *catalog.Catalog {
	return m.catalog
}

// #endregion model

// #region compute-model
// ComputeModel converts in into a ModelOutput. It is pure and total: degenerate
// inputs (zero baseline, non-positive O2 or gravity) yield NaN or Inf rather
// than an error. Use ModelInput.Validate at the boundary to reject them.
func (m *Model) ComputeModel(in ModelInput) ModelOutput {
	s := in.BodyLength / in.BaselineLength
	g := in.GravityMultiplier
	mass := s * s * s
	weight := mass * g

	exp := m.params.Simple
	if in.Mode == ModeExtended {
		exp = m.params.Extended
	}

	respiration := (in.O2Fraction / m.params.ReferenceO2) * (1 / s)
	if in.Mode == ModeExtended {
		respiration *= 1 / (1 + m.params.DiffusionK*(s-1))
	}

	proxies := Proxies{
		Respiration: respiration,
		Hydraulics:  math.Pow(s, exp.HydraulicsSize) / math.Pow(weight, exp.HydraulicsWeight),
		Exoskeleton: 1 / (math.Pow(s, exp.Exoskeleton) * g),
		Locomotion:  1 / (math.Pow(s, exp.Locomotion) * g),
	}

	health := HealthScores{
		Respiration: m.ProxyToHealth(proxies.Respiration, in.Mode),
		Hydraulics:  m.ProxyToHealth(proxies.Hydraulics, in.Mode),
		Exoskeleton: m.ProxyToHealth(proxies.Exoskeleton, in.Mode),
		Locomotion:  m.ProxyToHealth(proxies.Locomotion, in.Mode),
	}

	return ModelOutput{
		ScaleFactor:    s,
		Mass:           mass,
		SurfaceArea:    s * s,
		WeightFactor:   weight,
		Proxies:        proxies,
		Health:         health,
		ViabilityIndex: m.ViabilityIndex(health),
		Flags:          m.flags(proxies),
	}
}

// #endregion compute-model

// #region health
// ProxyToHealth maps a proxy onto [0, 100]. The proxy is first clamped to
// [0, ClampMax]. Simple mode is a linear ramp that is exactly 0 at or below
// LinearFloor and exactly 100 at or above LinearCeiling. Extended mode is a
// logistic curve that never reaches either bound.
func (m *Model) ProxyToHealth(proxy float64, mode Mode) float64 {
	h := m.params.Health
	p := clamp(proxy, 0, h.ClampMax)

	if mode == ModeExtended {
		return 100 * sigmoid(h.LogisticSteepness*(p-h.LogisticMidpoint))
	}

	switch {
	case p <= h.LinearFloor:
		return 0
	case p >= h.LinearCeiling:
		return 100
	}
	return 100 * clamp((p-h.LinearFloor)/(h.LinearCeiling-h.LinearFloor), 0, 1)
}

// ViabilityIndex is the weighted geometric mean of the health fractions,
// scaled to 100: 100 * exp(sum(w_i * ln(h_i/100 + eps))).
func (m *Model) ViabilityIndex(h HealthScores) float64 {
	w := m.params.Weights
	eps := m.params.Epsilon
	sum := w.Respiration*math.Log(h.Respiration/100+eps) +
		w.Hydraulics*math.Log(h.Hydraulics/100+eps) +
		w.Exoskeleton*math.Log(h.Exoskeleton/100+eps) +
		w.Locomotion*math.Log(h.Locomotion/100+eps)
	return 100 * math.Exp(sum)
}

// #endregion health

// #region flags
func (m *Model) flags(p Proxies) FailureFlags {
	return FailureFlags{
		Respiration: p.Respiration < m.catalog.Threshold(catalog.Respiration),
		Hydraulics:  p.Hydraulics < m.catalog.Threshold(catalog.Hydraulics),
		Exoskeleton: p.Exoskeleton < m.catalog.Threshold(catalog.Exoskeleton),
		Locomotion:  p.Locomotion < m.catalog.Threshold(catalog.Locomotion),
	}
}

// #endregion flags

// #region defaults
var defaultModel = MustNewModel(DefaultParams(), catalog.Default())

// Default returns the model built from DefaultParams and the default catalog.
func Default() *Model {
	return defaultModel
}

// ComputeModel evaluates in with the default model.
func ComputeModel(in ModelInput) ModelOutput {
	return defaultModel.ComputeModel(in)
}

// ProxyToHealth maps proxy with the default model's health parameters.
func ProxyToHealth(proxy float64, mode Mode) float64 {
	return defaultModel.ProxyToHealth(proxy, mode)
}

// ViabilityIndex aggregates h with the default weights.
func ViabilityIndex(h HealthScores) float64 {
	return defaultModel.ViabilityIndex(h)
}

// #endregion defaults

// #region helpers
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// #endregion helpers
