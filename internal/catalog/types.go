package catalog

import "errors"

// #region subsystem
// Subsystem names one physiological subsystem tracked by the model.
type Subsystem string

const (
	Respiration Subsystem = "respiration"
	Hydraulics  Subsystem = "hydraulics"
	Exoskeleton Subsystem = "exoskeleton"
	Locomotion  Subsystem = "locomotion"
)

// Subsystems is the fixed evaluation order. Failure detection, history updates
// and catalog iteration all walk subsystems in this order.
var Subsystems = []Subsystem{Respiration, Hydraulics, Exoskeleton, Locomotion}

// Valid reports whether s is one of the four known subsystems.
func (s Subsystem) Valid() bool {
	switch s {
	case Respiration, Hydraulics, Exoskeleton, Locomotion:
		return true
	}
	return false
}

// #endregion subsystem

// #region severity
// Severity gates whether an active failure may auto-resolve.
type Severity string

const (
	SeveritySoft         Severity = "soft"         // resolves when the proxy recovers
	SeverityHard         Severity = "hard"         // latched for the rest of the session
	SeverityCatastrophic Severity = "catastrophic" // latched and flagged irreversible
)

// Valid reports whether s is one of the three enumerated severities.
func (s Severity) Valid() bool {
	switch s {
	case SeveritySoft, SeverityHard, SeverityCatastrophic:
		return true
	}
	return false
}

// Resolvable reports whether an active failure of this severity may resolve.
func (s Severity) Resolvable() bool {
	return s == SeveritySoft
}

// #endregion severity

// #region definition
// FailureModeDefinition is one static catalog entry. Only ID, Subsystem,
// Severity and ProxyThreshold carry semantics; the text fields are for display.
type FailureModeDefinition struct {
	ID             string    `json:"id" yaml:"id"`
	Subsystem      Subsystem `json:"subsystem" yaml:"subsystem"`
	Severity       Severity  `json:"severity" yaml:"severity"`
	ProxyThreshold float64   `json:"proxy_threshold" yaml:"proxy_threshold"` // triggers when proxy < threshold
	Title          string    `json:"title" yaml:"title"`
	Description    string    `json:"description" yaml:"description"`
	RecoveryHint   string    `json:"recovery_hint" yaml:"recovery_hint"`
}

// #endregion definition

// #region errors
// ErrInvalidDefinition is returned when a catalog fails construction-time validation.
var ErrInvalidDefinition = errors.New("catalog: invalid failure mode definition")

// #endregion errors
