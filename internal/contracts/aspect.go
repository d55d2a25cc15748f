package contracts

// AspectType is the angular relationship class between two bodies.
type AspectType string

const (
	Conjunction AspectType = "conjunction" // 0
	Sextile     AspectType = "sextile"     // 60
	Square      AspectType = "square"      // 90
	Trine       AspectType = "trine"       // 120
	Opposition  AspectType = "opposition"  // 180
)

// AspectTypes lists the recognized aspects in angle order.
var AspectTypes = []AspectType{Conjunction, Sextile, Square, Trine, Opposition}

// Angle returns the exact aspect angle in degrees.
func (a AspectType) Angle() float64 {
	switch a {
	case Conjunction:
		return 0
	case Sextile:
		return 60
	case Square:
		return 90
	case Trine:
		return 120
	case Opposition:
		return 180
	}
	return 0
}

// Phase describes whether the transiting body is closing on the exact
// angle or has already passed it.
type Phase string

const (
	Applying   Phase = "applying"
	Separating Phase = "separating"
)

// TransitAspect is one detected transit-to-natal contact for a target date.
// Immutable once built; every scoring stage reads, none write.
type TransitAspect struct {
	TransitBody Body       `json:"transit_body"`
	NatalBody   Body       `json:"natal_body"`
	NatalSign   Sign       `json:"natal_sign"`
	// NatalHouse is the house the natal body occupies, 0 when unknown.
	NatalHouse int        `json:"natal_house"`
	Type       AspectType `json:"type"`
	// Orb is the absolute deviation from the exact angle, in degrees.
	Orb float64 `json:"orb"`
	// MaxOrb is the allowed deviation for this pairing; Orb <= MaxOrb.
	MaxOrb float64 `json:"max_orb"`
	Phase  Phase   `json:"phase"`
	// TransitRetrograde reports the transiting body's motion, which the
	// meter governor inspects independently of power scoring.
	TransitRetrograde bool `json:"transit_retrograde"`
	// DaysToStation is the number of days until the transiting body's next
	// station, nil when the ephemeris reports none inside its horizon.
	DaysToStation *float64 `json:"days_to_station,omitempty"`
}

// Closeness measures how exact the contact is, in [0, 1].
// 1 at partile, 0 at the orb limit.
func (t *TransitAspect) Closeness() float64 {
	if t.MaxOrb <= 0 {
		return 0
	}
	c := 1 - t.Orb/t.MaxOrb
	if c < 0 {
		return 0
	}
	return c
}

// AspectContribution is one aspect's scored effect, ready for aggregation.
type AspectContribution struct {
	Aspect TransitAspect `json:"aspect"`
	// Weightage is the structural importance of the contact (W >= 0).
	Weightage float64 `json:"weightage"`
	// Power is the momentary strength of the contact (P >= 0).
	Power float64 `json:"power"`
	// Quality is the signed benefic/malefic character, in [-1, 1].
	Quality float64 `json:"quality"`
	// Label is a display-ready description, e.g.
	// "transit saturn square natal sun (applying)".
	Label string `json:"label"`
}

// Intensity returns the unsigned contribution W*P. Never negative.
func (c *AspectContribution) Intensity() float64 {
	return c.Weightage * c.Power
}

// Valence returns the signed contribution W*P*Q. Sign comes from Quality alone.
func (c *AspectContribution) Valence() float64 {
	return c.Weightage * c.Power * c.Quality
}
