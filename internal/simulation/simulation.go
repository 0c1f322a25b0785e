package simulation

import (
	"math"
	"sort"

	"github.com/danielpatrickdp/spider-scale/internal/failure"
	"github.com/danielpatrickdp/spider-scale/internal/scaling"
)

// #region facade
// Facade evaluates the model at a point and over size sweeps.
type Facade struct {
	model   *scaling.Model
	machine *failure.Machine
	sweep   SweepConfig
}

// New creates a facade. The machine must share the model's catalog so that
// failure points and live failure detection agree.
func New(model *scaling.Model, machine *failure.Machine, sweep SweepConfig) *Facade {
	return &Facade{model: model, machine: machine, sweep: sweep}
}

// Default returns a facade over the default model, catalog and sweep.
func Default() *Facade {
	return New(scaling.Default(), failure.NewMachine(scaling.Default().Catalog()), DefaultSweepConfig())
}

// Model returns the underlying scaling model.
func (f *Facade) Model() *scaling.Model {
	return f.model
}

// Machine returns the failure state machine.
func (f *Facade) Machine() *failure.Machine {
	return f.machine
}

// SweepConfig returns the configured sweep range.
func (f *Facade) SweepConfig() SweepConfig {
	return f.sweep
}

// #endregion facade

// #region compute
// ComputeAt evaluates the model at a single point.
func (f *Facade) ComputeAt(in scaling.ModelInput) scaling.ModelOutput {
	return f.model.ComputeModel(in)
}

// ComputeModelArray evaluates each size with the other parameters fixed.
// Elements are independent of each other.
func (f *Facade) ComputeModelArray(sizes []float64, baselineLength, o2Fraction, gravityMultiplier float64, mode scaling.Mode) []scaling.ModelOutput {
	out := make([]scaling.ModelOutput, len(sizes))
	for i, size := range sizes {
		out[i] = f.model.ComputeModel(scaling.ModelInput{
			BodyLength:        size,
			BaselineLength:    baselineLength,
			O2Fraction:        o2Fraction,
			GravityMultiplier: gravityMultiplier,
			Mode:              mode,
		})
	}
	return out
}

// #endregion compute

// #region size-array
// GenerateSizeArray returns count log-spaced values from min to max. Both
// endpoints are exact when count >= 2. count == 1 yields [min]; count <= 0
// yields an empty slice.
func GenerateSizeArray(min, max float64, count int) []float64 {
	if count <= 0 {
		return []float64{}
	}
	if count == 1 {
		return []float64{min}
	}

	out := make([]float64, count)
	logMin, logMax := math.Log(min), math.Log(max)
	step := (logMax - logMin) / float64(count-1)
	for i := range out {
		out[i] = math.Exp(logMin + step*float64(i))
	}
	out[0] = min
	out[count-1] = max
	return out
}

// #endregion size-array

// #region failure-points
// GetAllFailurePoints sweeps the configured size range and returns the first
// failing size per catalog entry, ascending by size. Entries that never fail
// inside the range are omitted.
func (f *Facade) GetAllFailurePoints(baselineLength, o2Fraction, gravityMultiplier float64, mode scaling.Mode) []FailurePoint {
	sizes := GenerateSizeArray(f.sweep.MinSize, f.sweep.MaxSize, f.sweep.Points)
	outputs := f.ComputeModelArray(sizes, baselineLength, o2Fraction, gravityMultiplier, mode)
	return f.FailurePointsFor(sizes, outputs)
}

// FailurePointsFor scans a precomputed sweep. sizes and outputs must be
// parallel and ascending by size.
func (f *Facade) FailurePointsFor(sizes []float64, outputs []scaling.ModelOutput) []FailurePoint {
	n := min(len(sizes), len(outputs))
	var points []FailurePoint
	for _, def := range f.machine.Catalog().Definitions() {
		for i := 0; i < n; i++ {
			proxy := outputs[i].Proxies.Get(def.Subsystem)
			if proxy < def.ProxyThreshold {
				points = append(points, FailurePoint{
					FailureID:   def.ID,
					Subsystem:   def.Subsystem,
					Severity:    def.Severity,
					Index:       i,
					Size:        sizes[i],
					ScaleFactor: outputs[i].ScaleFactor,
					ProxyValue:  proxy,
					Threshold:   def.ProxyThreshold,
				})
				break
			}
		}
	}
	// Stable so equal sizes keep catalog order.
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Size < points[j].Size
	})
	return points
}

// ComputeSweep evaluates the configured sweep and its failure points.
func (f *Facade) ComputeSweep(baselineLength, o2Fraction, gravityMultiplier float64, mode scaling.Mode) Sweep {
	sizes := GenerateSizeArray(f.sweep.MinSize, f.sweep.MaxSize, f.sweep.Points)
	outputs := f.ComputeModelArray(sizes, baselineLength, o2Fraction, gravityMultiplier, mode)
	return Sweep{
		BaselineLength:    baselineLength,
		O2Fraction:        o2Fraction,
		GravityMultiplier: gravityMultiplier,
		Mode:              mode,
		Sizes:             sizes,
		Outputs:           outputs,
		FailurePoints:     f.FailurePointsFor(sizes, outputs),
	}
}

// #endregion failure-points

// #region defaults
var defaultFacade = Default()

// ComputeModelArray evaluates sizes with the default model.
func ComputeModelArray(sizes []float64, baselineLength, o2Fraction, gravityMultiplier float64, mode scaling.Mode) []scaling.ModelOutput {
	return defaultFacade.ComputeModelArray(sizes, baselineLength, o2Fraction, gravityMultiplier, mode)
}

// GetAllFailurePoints sweeps the default range with the default model.
func GetAllFailurePoints(baselineLength, o2Fraction, gravityMultiplier float64, mode scaling.Mode) []FailurePoint {
	return defaultFacade.GetAllFailurePoints(baselineLength, o2Fraction, gravityMultiplier, mode)
}

// #endregion defaults
