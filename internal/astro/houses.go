package astro

// HouseClass groups the twelve houses by angular strength.
type HouseClass string

const (
	HouseAngular   HouseClass = "angular"   // 1, 4, 7, 10
	HouseSuccedent HouseClass = "succedent" // 2, 5, 8, 11
	HouseCadent    HouseClass = "cadent"    // 3, 6, 9, 12
)

// ClassOfHouse classifies a house number. Out-of-range input is treated
// as cadent, the weakest class.
func ClassOfHouse(house int) HouseClass {
	switch house {
	case 1, 4, 7, 10:
		return HouseAngular
	case 2, 5, 8, 11:
		return HouseSuccedent
	default:
		return HouseCadent
	}
}

// HouseFor locates a longitude within the chart's house cusps.
// Cusps wrap the ecliptic, so the match is the cusp whose arc to the next
// cusp contains the longitude. Returns 0 when cusps are unset.
func HouseFor(longitude float64, cusps [12]float64) int {
	allZero := true
	for _, c := range cusps {
		if c != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return 0
	}
	lon := normalizeLongitude(longitude)
	for i := 0; i < 12; i++ {
		start := normalizeLongitude(cusps[i])
		end := normalizeLongitude(cusps[(i+1)%12])
		if arcContains(start, end, lon) {
			return i + 1
		}
	}
	return 0
}

func normalizeLongitude(lon float64) float64 {
	for lon < 0 {
		lon += 360
	}
	for lon >= 360 {
		lon -= 360
	}
	return lon
}

// arcContains reports whether lon lies on the forward arc from start to end.
func arcContains(start, end, lon float64) bool {
	if start <= end {
		return lon >= start && lon < end
	}
	// Arc crosses 0 Aries.
	return lon >= start || lon < end
}
