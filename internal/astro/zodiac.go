package astro

import (
	"math"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

// Dignity is the classical strength classification of a body in a sign.
type Dignity string

const (
	DignityDomicile   Dignity = "domicile"
	DignityExaltation Dignity = "exaltation"
	DignityDetriment  Dignity = "detriment"
	DignityFall       Dignity = "fall"
	DignityPeregrine  Dignity = "peregrine" // no essential dignity
)

// domiciles maps each body to the sign(s) it rules. Modern rulerships.
var domiciles = map[contracts.Body][]contracts.Sign{
	contracts.Sun:     {contracts.Leo},
	contracts.Moon:    {contracts.Cancer},
	contracts.Mercury: {contracts.Gemini, contracts.Virgo},
	contracts.Venus:   {contracts.Taurus, contracts.Libra},
	contracts.Mars:    {contracts.Aries, contracts.Scorpio},
	contracts.Jupiter: {contracts.Sagittarius, contracts.Pisces},
	contracts.Saturn:  {contracts.Capricorn, contracts.Aquarius},
	contracts.Uranus:  {contracts.Aquarius},
	contracts.Neptune: {contracts.Pisces},
	contracts.Pluto:   {contracts.Scorpio},
}

// exaltations maps the traditional seven to their exaltation sign.
var exaltations = map[contracts.Body]contracts.Sign{
	contracts.Sun:     contracts.Aries,
	contracts.Moon:    contracts.Taurus,
	contracts.Mercury: contracts.Virgo,
	contracts.Venus:   contracts.Pisces,
	contracts.Mars:    contracts.Capricorn,
	contracts.Jupiter: contracts.Cancer,
	contracts.Saturn:  contracts.Libra,
}

// rulers maps each sign to its modern ruling body, used for the chart ruler.
var rulers = map[contracts.Sign]contracts.Body{
	contracts.Aries:       contracts.Mars,
	contracts.Taurus:      contracts.Venus,
	contracts.Gemini:      contracts.Mercury,
	contracts.Cancer:      contracts.Moon,
	contracts.Leo:         contracts.Sun,
	contracts.Virgo:       contracts.Mercury,
	contracts.Libra:       contracts.Venus,
	contracts.Scorpio:     contracts.Pluto,
	contracts.Sagittarius: contracts.Jupiter,
	contracts.Capricorn:   contracts.Saturn,
	contracts.Aquarius:    contracts.Uranus,
	contracts.Pisces:      contracts.Neptune,
}

// signIndex gives each sign its ecliptic position for opposite lookups.
var signIndex = func() map[contracts.Sign]int {
	m := make(map[contracts.Sign]int, len(contracts.Signs))
	for i, s := range contracts.Signs {
		m[s] = i
	}
	return m
}()

// SignFor returns the zodiac sign containing an ecliptic longitude.
func SignFor(longitude float64) contracts.Sign {
	lon := math.Mod(longitude, 360)
	if lon < 0 {
		lon += 360
	}
	return contracts.Signs[int(lon/30)%12]
}

// OppositeSign returns the sign 180 degrees across the zodiac.
func OppositeSign(s contracts.Sign) contracts.Sign {
	idx, ok := signIndex[s]
	if !ok {
		return s
	}
	return contracts.Signs[(idx+6)%12]
}

// DignityOf classifies a body's essential dignity in a sign.
// Domicile and exaltation can overlap in theory; domicile wins.
func DignityOf(body contracts.Body, sign contracts.Sign) Dignity {
	for _, s := range domiciles[body] {
		if s == sign {
			return DignityDomicile
		}
		if OppositeSign(s) == sign {
			return DignityDetriment
		}
	}
	if ex, ok := exaltations[body]; ok {
		if ex == sign {
			return DignityExaltation
		}
		if OppositeSign(ex) == sign {
			return DignityFall
		}
	}
	return DignityPeregrine
}

// RulerOf returns the body ruling a sign.
func RulerOf(sign contracts.Sign) contracts.Body {
	return rulers[sign]
}

// ChartRuler returns the ruler of the chart's ascendant sign.
func ChartRuler(chart *contracts.NatalChart) contracts.Body {
	return RulerOf(chart.Ascendant)
}
