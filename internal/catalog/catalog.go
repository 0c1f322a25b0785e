package catalog

import (
	"fmt"
	"math"
)

// #region catalog
// Catalog is a read-only registry of failure modes keyed by id and subsystem.
type Catalog struct {
	defs        []FailureModeDefinition // subsystem order, then declaration order
	byID        map[string]int
	bySubsystem map[Subsystem][]string
}

// New validates defs and builds a catalog. Every subsystem must be covered by
// at least one definition so that detection can never reference a missing entry.
func New(defs ...FailureModeDefinition) (*Catalog, error) {
	c := &Catalog{
		byID:        make(map[string]int, len(defs)),
		bySubsystem: make(map[Subsystem][]string, len(Subsystems)),
	}

	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: empty id", ErrInvalidDefinition)
		}
		if !d.Subsystem.Valid() {
			return nil, fmt.Errorf("%w: %s: unknown subsystem %q", ErrInvalidDefinition, d.ID, d.Subsystem)
		}
		if !d.Severity.Valid() {
			return nil, fmt.Errorf("%w: %s: unknown severity %q", ErrInvalidDefinition, d.ID, d.Severity)
		}
		if math.IsNaN(d.ProxyThreshold) || d.ProxyThreshold <= 0 || d.ProxyThreshold >= 1 {
			return nil, fmt.Errorf("%w: %s: threshold %v outside (0, 1)", ErrInvalidDefinition, d.ID, d.ProxyThreshold)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidDefinition, d.ID)
		}
		c.byID[d.ID] = -1
		c.bySubsystem[d.Subsystem] = append(c.bySubsystem[d.Subsystem], d.ID)
	}

	for _, sub := range Subsystems {
		if len(c.bySubsystem[sub]) == 0 {
			return nil, fmt.Errorf("%w: no failure mode for subsystem %s", ErrInvalidDefinition, sub)
		}
	}

	// Reorder into evaluation order so iteration is deterministic.
	index := make(map[string]FailureModeDefinition, len(defs))
	for _, d := range defs {
		index[d.ID] = d
	}
	for _, sub := range Subsystems {
		for _, id := range c.bySubsystem[sub] {
			c.byID[id] = len(c.defs)
			c.defs = append(c.defs, index[id])
		}
	}
	return c, nil
}

// MustNew is like New but panics on invalid input. Use for static catalogs
// built at package init.
func MustNew(defs ...FailureModeDefinition) *Catalog {
	c, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

// #endregion catalog

// #region lookups
// Lookup returns the definition for id.
func (c *Catalog) Lookup(id string) (FailureModeDefinition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return FailureModeDefinition{}, false
	}
	return c.defs[i], true
}

// ForSubsystem returns the definitions governing sub, in declaration order.
func (c *Catalog) ForSubsystem(sub Subsystem) []FailureModeDefinition {
	ids := c.bySubsystem[sub]
	out := make([]FailureModeDefinition, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.defs[c.byID[id]])
	}
	return out
}

// Threshold returns the highest threshold among sub's definitions, so a proxy
// below it means at least one of sub's modes is failing. The legacy boolean
// flags on a model output use it.
func (c *Catalog) Threshold(sub Subsystem) float64 {
	var max float64
	for _, id := range c.bySubsystem[sub] {
		if t := c.defs[c.byID[id]].ProxyThreshold; t > max {
			max = t
		}
	}
	return max
}

// Definitions returns a copy of all definitions in catalog iteration order.
func (c *Catalog) Definitions() []FailureModeDefinition {
	out := make([]FailureModeDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// IDs returns all failure ids in catalog iteration order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.defs))
	for i, d := range c.defs {
		out[i] = d.ID
	}
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// FailureModes returns the catalog as a map keyed by failure id.
func (c *Catalog) FailureModes() map[string]FailureModeDefinition {
	out := make(map[string]FailureModeDefinition, len(c.defs))
	for _, d := range c.defs {
		out[d.ID] = d
	}
	return out
}

// #endregion lookups
