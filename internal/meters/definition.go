package meters

import (
	"fmt"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

// Logic selects how a filter's criteria combine.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// Filter selects the aspect subset a meter aggregates. Each non-empty set
// is one criterion; empty sets are absent, not vacuously true.
type Filter struct {
	NatalBodies   []contracts.Body       `yaml:"natal_bodies,omitempty" json:"natal_bodies,omitempty"`
	NatalHouses   []int                  `yaml:"natal_houses,omitempty" json:"natal_houses,omitempty"`
	TransitBodies []contracts.Body       `yaml:"transit_bodies,omitempty" json:"transit_bodies,omitempty"`
	AspectTypes   []contracts.AspectType `yaml:"aspect_types,omitempty" json:"aspect_types,omitempty"`
	Logic         Logic                  `yaml:"logic" json:"logic"`
}

// Matches applies the filter to one aspect.
func (f *Filter) Matches(a *contracts.TransitAspect) bool {
	type criterion struct {
		present bool
		hit     bool
	}
	criteria := []criterion{
		{len(f.NatalBodies) > 0, containsBody(f.NatalBodies, a.NatalBody)},
		{len(f.NatalHouses) > 0, containsInt(f.NatalHouses, a.NatalHouse)},
		{len(f.TransitBodies) > 0, containsBody(f.TransitBodies, a.TransitBody)},
		{len(f.AspectTypes) > 0, containsAspect(f.AspectTypes, a.Type)},
	}

	any := false
	switch f.Logic {
	case LogicOr:
		for _, c := range criteria {
			if !c.present {
				continue
			}
			any = true
			if c.hit {
				return true
			}
		}
		return !any // a filter with no criteria matches everything
	default: // and
		for _, c := range criteria {
			if c.present && !c.hit {
				return false
			}
		}
		return true
	}
}

// Empty reports whether the filter carries no criteria at all.
func (f *Filter) Empty() bool {
	return len(f.NatalBodies) == 0 && len(f.NatalHouses) == 0 &&
		len(f.TransitBodies) == 0 && len(f.AspectTypes) == 0
}

// Validate checks criterion contents.
func (f *Filter) Validate() error {
	if f.Logic != LogicAnd && f.Logic != LogicOr {
		return fmt.Errorf("filter logic %q must be and/or", f.Logic)
	}
	for _, h := range f.NatalHouses {
		if h < 1 || h > 12 {
			return fmt.Errorf("filter house %d out of 1-12", h)
		}
	}
	for _, b := range f.NatalBodies {
		if !knownBody(b) {
			return fmt.Errorf("filter natal body %q unknown", b)
		}
	}
	for _, b := range f.TransitBodies {
		if !knownBody(b) {
			return fmt.Errorf("filter transit body %q unknown", b)
		}
	}
	for _, at := range f.AspectTypes {
		if !knownAspect(at) {
			return fmt.Errorf("filter aspect type %q unknown", at)
		}
	}
	return nil
}

// Definition is one meter's identity, filter, and aggregation policy.
type Definition struct {
	ID    contracts.MeterID `yaml:"id" json:"id"`
	Group contracts.GroupID `yaml:"group" json:"group"`
	// Tier is the presentation tier; same-tier meters compete for
	// attention and must stay distinguishable.
	Tier int `yaml:"tier" json:"tier"`
	// Governor is the planet whose transit retrograde halves this
	// meter's harmony. Empty means no governor rule.
	Governor contracts.Body `yaml:"governor,omitempty" json:"governor,omitempty"`
	// Weight is the meter's importance inside its group average.
	Weight float64 `yaml:"weight" json:"weight"`
	Filter Filter  `yaml:"filter" json:"filter"`
}

// Validate checks one definition.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("meter id missing")
	}
	if d.Group == "" {
		return fmt.Errorf("meter %s: group missing", d.ID)
	}
	if d.Tier < 1 {
		return fmt.Errorf("meter %s: tier %d must be >= 1", d.ID, d.Tier)
	}
	if d.Weight <= 0 {
		return fmt.Errorf("meter %s: weight must be positive", d.ID)
	}
	if d.Governor != "" && !knownBody(d.Governor) {
		return fmt.Errorf("meter %s: governor %q unknown", d.ID, d.Governor)
	}
	if d.Filter.Empty() {
		return fmt.Errorf("meter %s: filter has no criteria", d.ID)
	}
	if err := d.Filter.Validate(); err != nil {
		return fmt.Errorf("meter %s: %w", d.ID, err)
	}
	return nil
}

func containsBody(set []contracts.Body, b contracts.Body) bool {
	for _, v := range set {
		if v == b {
			return true
		}
	}
	return false
}

func containsInt(set []int, n int) bool {
	for _, v := range set {
		if v == n {
			return true
		}
	}
	return false
}

func containsAspect(set []contracts.AspectType, a contracts.AspectType) bool {
	for _, v := range set {
		if v == a {
			return true
		}
	}
	return false
}

func knownBody(b contracts.Body) bool {
	return containsBody(contracts.Bodies, b)
}

func knownAspect(a contracts.AspectType) bool {
	return containsAspect(contracts.AspectTypes, a)
}
