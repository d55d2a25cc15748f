package meters

import (
	"fmt"
	"sort"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

// Group ids of the fixed life-domain taxonomy.
const (
	GroupMind  contracts.GroupID = "mind"
	GroupHeart contracts.GroupID = "heart"
	GroupDrive contracts.GroupID = "drive"
	GroupBody  contracts.GroupID = "body"
)

// GroupIDs lists the taxonomy in presentation order.
var GroupIDs = []contracts.GroupID{GroupMind, GroupHeart, GroupDrive, GroupBody}

// BuiltinDefinitions returns the shipped meter taxonomy. A config file can
// replace it wholesale; the aggregator never special-cases individual ids.
func BuiltinDefinitions() []Definition {
	return []Definition{
		// mind
		{
			ID: "clarity", Group: GroupMind, Tier: 1, Governor: contracts.Mercury, Weight: 1.2,
			Filter: Filter{
				NatalBodies:   []contracts.Body{contracts.Mercury, contracts.Moon},
				TransitBodies: []contracts.Body{contracts.Mercury, contracts.Saturn, contracts.Uranus, contracts.Jupiter},
				Logic:         LogicAnd,
			},
		},
		{
			ID: "creativity", Group: GroupMind, Tier: 2, Governor: contracts.Venus, Weight: 1.0,
			Filter: Filter{
				NatalBodies: []contracts.Body{contracts.Venus, contracts.Sun, contracts.Neptune},
				NatalHouses: []int{5},
				Logic:       LogicOr,
			},
		},
		{
			ID: "intuition", Group: GroupMind, Tier: 2, Governor: contracts.Neptune, Weight: 0.8,
			Filter: Filter{
				NatalBodies:   []contracts.Body{contracts.Moon, contracts.Neptune},
				TransitBodies: []contracts.Body{contracts.Moon, contracts.Neptune, contracts.Pluto, contracts.Uranus},
				Logic:         LogicAnd,
			},
		},

		// heart
		{
			ID: "romance", Group: GroupHeart, Tier: 1, Governor: contracts.Venus, Weight: 1.2,
			Filter: Filter{
				NatalBodies:   []contracts.Body{contracts.Venus, contracts.Moon},
				TransitBodies: []contracts.Body{contracts.Venus, contracts.Mars, contracts.Jupiter, contracts.Neptune},
				Logic:         LogicAnd,
			},
		},
		{
			ID: "connection", Group: GroupHeart, Tier: 2, Governor: contracts.Moon, Weight: 1.0,
			Filter: Filter{
				NatalBodies: []contracts.Body{contracts.Moon, contracts.Venus},
				NatalHouses: []int{7, 11},
				Logic:       LogicOr,
			},
		},
		{
			ID: "passion", Group: GroupHeart, Tier: 2, Governor: contracts.Mars, Weight: 0.9,
			Filter: Filter{
				NatalBodies:   []contracts.Body{contracts.Mars, contracts.Venus, contracts.Pluto},
				TransitBodies: []contracts.Body{contracts.Mars, contracts.Venus, contracts.Pluto},
				AspectTypes:   []contracts.AspectType{contracts.Conjunction, contracts.Square, contracts.Trine, contracts.Opposition},
				Logic:         LogicAnd,
			},
		},

		// drive
		{
			ID: "career", Group: GroupDrive, Tier: 1, Governor: contracts.Saturn, Weight: 1.3,
			Filter: Filter{
				NatalBodies: []contracts.Body{contracts.Saturn, contracts.Sun},
				NatalHouses: []int{10, 6},
				Logic:       LogicOr,
			},
		},
		{
			ID: "ambition", Group: GroupDrive, Tier: 2, Governor: contracts.Mars, Weight: 1.0,
			Filter: Filter{
				NatalBodies:   []contracts.Body{contracts.Sun, contracts.Mars, contracts.Jupiter},
				TransitBodies: []contracts.Body{contracts.Mars, contracts.Saturn, contracts.Jupiter, contracts.Pluto},
				Logic:         LogicAnd,
			},
		},
		{
			ID: "finances", Group: GroupDrive, Tier: 2, Governor: contracts.Jupiter, Weight: 1.1,
			Filter: Filter{
				NatalBodies: []contracts.Body{contracts.Venus, contracts.Jupiter},
				NatalHouses: []int{2, 8},
				Logic:       LogicOr,
			},
		},

		// body
		{
			ID: "energy", Group: GroupBody, Tier: 1, Governor: contracts.Mars, Weight: 1.2,
			Filter: Filter{
				NatalBodies:   []contracts.Body{contracts.Sun, contracts.Mars},
				TransitBodies: []contracts.Body{contracts.Sun, contracts.Mars, contracts.Jupiter, contracts.Saturn},
				Logic:         LogicAnd,
			},
		},
		{
			ID: "resilience", Group: GroupBody, Tier: 2, Governor: contracts.Saturn, Weight: 1.0,
			Filter: Filter{
				NatalBodies:   []contracts.Body{contracts.Saturn, contracts.Moon},
				TransitBodies: []contracts.Body{contracts.Saturn, contracts.Pluto, contracts.Neptune, contracts.Mars},
				Logic:         LogicAnd,
			},
		},
		{
			ID: "balance", Group: GroupBody, Tier: 2, Governor: contracts.Venus, Weight: 0.9,
			Filter: Filter{
				NatalBodies: []contracts.Body{contracts.Moon, contracts.Saturn},
				NatalHouses: []int{1, 4},
				Logic:       LogicOr,
			},
		},
	}
}

// Registry is the loaded meter taxonomy, indexed for the hot path.
type Registry struct {
	defs    []Definition
	byID    map[contracts.MeterID]*Definition
	byGroup map[contracts.GroupID][]*Definition
}

// NewRegistry validates and indexes a definition set.
func NewRegistry(defs []Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("registry: no meter definitions")
	}
	r := &Registry{
		defs:    make([]Definition, len(defs)),
		byID:    make(map[contracts.MeterID]*Definition, len(defs)),
		byGroup: make(map[contracts.GroupID][]*Definition),
	}
	copy(r.defs, defs)
	for i := range r.defs {
		d := &r.defs[i]
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate meter id %s", d.ID)
		}
		if !knownGroup(d.Group) {
			return nil, fmt.Errorf("registry: meter %s references unknown group %s", d.ID, d.Group)
		}
		r.byID[d.ID] = d
		r.byGroup[d.Group] = append(r.byGroup[d.Group], d)
	}
	for _, gid := range GroupIDs {
		n := len(r.byGroup[gid])
		if n < 3 || n > 4 {
			return nil, fmt.Errorf("registry: group %s has %d meters, want 3-4", gid, n)
		}
	}
	return r, nil
}

// Default returns a registry over the builtin taxonomy.
func Default() *Registry {
	r, err := NewRegistry(BuiltinDefinitions())
	if err != nil {
		// The builtin table is compiled in; failing here is a programming
		// error, not a runtime condition.
		panic(fmt.Sprintf("builtin meter definitions invalid: %v", err))
	}
	return r
}

// All returns definitions in registration order.
func (r *Registry) All() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Get returns the definition for id.
func (r *Registry) Get(id contracts.MeterID) (*Definition, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contracts.ErrUnknownMeter, id)
	}
	return d, nil
}

// Group returns a group's member definitions in registration order.
func (r *Registry) Group(id contracts.GroupID) []*Definition {
	return r.byGroup[id]
}

// IDs returns all meter ids sorted for deterministic iteration.
func (r *Registry) IDs() []contracts.MeterID {
	ids := make([]contracts.MeterID, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SameTier returns pairs of distinct meter ids sharing a tier, the pairs
// the distinguishability audit checks.
func (r *Registry) SameTier() [][2]contracts.MeterID {
	byTier := make(map[int][]contracts.MeterID)
	for _, d := range r.defs {
		byTier[d.Tier] = append(byTier[d.Tier], d.ID)
	}
	var pairs [][2]contracts.MeterID
	tiers := make([]int, 0, len(byTier))
	for t := range byTier {
		tiers = append(tiers, t)
	}
	sort.Ints(tiers)
	for _, t := range tiers {
		ids := byTier[t]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				pairs = append(pairs, [2]contracts.MeterID{ids[i], ids[j]})
			}
		}
	}
	return pairs
}

func knownGroup(g contracts.GroupID) bool {
	for _, gid := range GroupIDs {
		if gid == g {
			return true
		}
	}
	return false
}
