package meters

import (
	"time"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

// Combine produces group readings by weighted-averaging member meters'
// normalized scores. Weights come from the meter definitions and are not
// uniform; a group's trend is classified later from its own series, never
// by averaging member trends.
func Combine(registry *Registry, date time.Time, readings map[contracts.MeterID]*contracts.MeterReading) map[contracts.GroupID]*contracts.GroupReading {
	out := make(map[contracts.GroupID]*contracts.GroupReading, len(GroupIDs))
	for _, gid := range GroupIDs {
		members := registry.Group(gid)
		if len(members) == 0 {
			continue
		}
		var wSum, intensity, harmony, unified float64
		for _, def := range members {
			r, ok := readings[def.ID]
			if !ok {
				continue
			}
			wSum += def.Weight
			intensity += def.Weight * r.Intensity
			harmony += def.Weight * r.Harmony
			unified += def.Weight * r.Unified
		}
		if wSum == 0 {
			continue
		}
		out[gid] = &contracts.GroupReading{
			Group:     gid,
			Date:      date,
			Intensity: intensity / wSum,
			Harmony:   harmony / wSum,
			Unified:   unified / wSum,
		}
	}
	return out
}
