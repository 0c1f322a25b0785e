package catalog

// Failure ids of the built-in catalog.
const (
	RespiratoryHypoxia    = "respiratory_hypoxia"
	HemolymphPressureLoss = "hemolymph_pressure_loss"
	ExoskeletonBuckling   = "exoskeleton_buckling"
	LocomotorCollapse     = "locomotor_collapse"
)

// DefaultDefinitions returns the built-in failure modes, one per subsystem.
func DefaultDefinitions() []FailureModeDefinition {
	return []FailureModeDefinition{
		{
			ID:             RespiratoryHypoxia,
			Subsystem:      Respiration,
			Severity:       SeveritySoft,
			ProxyThreshold: 0.50,
			Title:          "Respiratory hypoxia",
			Description: "Book lungs and tracheae rely on passive diffusion. Oxygen demand grows " +
				"with volume while gas-exchange surface grows with area, so tissues starve.",
			RecoveryHint: "Shrink the body or raise atmospheric oxygen.",
		},
		{
			ID:             HemolymphPressureLoss,
			Subsystem:      Hydraulics,
			Severity:       SeverityHard,
			ProxyThreshold: 0.35,
			Title:          "Hemolymph pressure loss",
			Description: "Legs extend by hemolymph pressure. At this weight the pressure needed " +
				"exceeds what the prosoma can generate and the joints stop extending.",
			RecoveryHint: "Damage persists for the session; reset to recover.",
		},
		{
			ID:             ExoskeletonBuckling,
			Subsystem:      Exoskeleton,
			Severity:       SeverityCatastrophic,
			ProxyThreshold: 0.25,
			Title:          "Exoskeleton buckling",
			Description: "Cuticle strength scales with cross-section while load scales with " +
				"mass. The exoskeleton fractures under its own weight.",
			RecoveryHint: "Irreversible. Reset the simulation.",
		},
		{
			ID:             LocomotorCollapse,
			Subsystem:      Locomotion,
			Severity:       SeveritySoft,
			ProxyThreshold: 0.40,
			Title:          "Locomotor collapse",
			Description: "Muscle force cannot lift the body fast enough to walk; the spider " +
				"can only drag itself.",
			RecoveryHint: "Reduce size or gravity.",
		},
	}
}

var defaultCatalog = MustNew(DefaultDefinitions()...)

// Default returns the built-in catalog. It is validated at package init and
// the process panics if the built-in table is inconsistent.
func Default() *Catalog {
	return defaultCatalog
}
