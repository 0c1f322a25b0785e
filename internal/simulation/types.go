package simulation

import (
	"github.com/danielpatrickdp/spider-scale/internal/catalog"
	"github.com/danielpatrickdp/spider-scale/internal/scaling"
)

// #region sweep-config
// SweepConfig is the size range swept for charts and failure points.
type SweepConfig struct {
	MinSize float64 `yaml:"min_size"` // meters
	MaxSize float64 `yaml:"max_size"` // meters
	Points  int     `yaml:"points"`
}

// DefaultSweepConfig spans 5 mm to 3 m in 100 log-spaced points.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		MinSize: 0.005,
		MaxSize: 3.0,
		Points:  100,
	}
}

// #endregion sweep-config

// #region failure-point
// FailurePoint marks the first swept size at which a failure mode's proxy
// drops below its threshold. Chart annotation only; it does not feed the
// failure state machine.
type FailurePoint struct {
	FailureID   string            `json:"failure_id"`
	Subsystem   catalog.Subsystem `json:"subsystem"`
	Severity    catalog.Severity  `json:"severity"`
	Index       int               `json:"index"` // position in the sweep
	Size        float64           `json:"size"`
	ScaleFactor float64           `json:"scale_factor"`
	ProxyValue  float64           `json:"proxy_value"`
	Threshold   float64           `json:"threshold"`
}

// #endregion failure-point

// #region sweep
// Sweep bundles everything a chart needs for one parameter set.
type Sweep struct {
	BaselineLength    float64               `json:"baseline_length"`
	O2Fraction        float64               `json:"o2_fraction"`
	GravityMultiplier float64               `json:"gravity_multiplier"`
	Mode              scaling.Mode          `json:"mode"`
	Sizes             []float64             `json:"sizes"`
	Outputs           []scaling.ModelOutput `json:"outputs"`
	FailurePoints     []FailurePoint        `json:"failure_points"`
}

// #endregion sweep
