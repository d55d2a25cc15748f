package astro

import (
	"testing"

	"github.com/ebursztein/arca-backend/internal/contracts"
)

func TestSignFor(t *testing.T) {
	tests := []struct {
		name string
		lon  float64
		want contracts.Sign
	}{
		{"zero aries", 0, contracts.Aries},
		{"end of aries", 29.99, contracts.Aries},
		{"start of taurus", 30, contracts.Taurus},
		{"mid leo", 135.5, contracts.Leo},
		{"end of zodiac", 359.9, contracts.Pisces},
		{"wraps past 360", 365, contracts.Aries},
		{"negative wraps", -10, contracts.Pisces},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SignFor(tt.lon); got != tt.want {
				t.Errorf("SignFor(%.2f) = %s, want %s", tt.lon, got, tt.want)
			}
		})
	}
}

func TestDignityOf(t *testing.T) {
	tests := []struct {
		name string
		body contracts.Body
		sign contracts.Sign
		want Dignity
	}{
		{"sun in leo", contracts.Sun, contracts.Leo, DignityDomicile},
		{"sun in aquarius", contracts.Sun, contracts.Aquarius, DignityDetriment},
		{"sun in aries", contracts.Sun, contracts.Aries, DignityExaltation},
		{"sun in libra", contracts.Sun, contracts.Libra, DignityFall},
		{"mercury in gemini", contracts.Mercury, contracts.Gemini, DignityDomicile},
		{"mercury in virgo", contracts.Mercury, contracts.Virgo, DignityDomicile},
		{"moon in scorpio", contracts.Moon, contracts.Scorpio, DignityFall},
		{"venus in virgo", contracts.Venus, contracts.Virgo, DignityFall},
		{"mars in capricorn", contracts.Mars, contracts.Capricorn, DignityExaltation},
		{"saturn in cancer", contracts.Saturn, contracts.Cancer, DignityDetriment},
		{"jupiter in leo", contracts.Jupiter, contracts.Leo, DignityPeregrine},
		{"pluto in scorpio", contracts.Pluto, contracts.Scorpio, DignityDomicile},
		{"pluto in taurus", contracts.Pluto, contracts.Taurus, DignityDetriment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DignityOf(tt.body, tt.sign); got != tt.want {
				t.Errorf("DignityOf(%s, %s) = %s, want %s", tt.body, tt.sign, got, tt.want)
			}
		})
	}
}

func TestMercuryVirgoDomicileWinsOverExaltation(t *testing.T) {
	// Mercury is both domiciled and exalted in Virgo; domicile must win.
	if got := DignityOf(contracts.Mercury, contracts.Virgo); got != DignityDomicile {
		t.Errorf("DignityOf(mercury, virgo) = %s, want domicile", got)
	}
}

func TestChartRuler(t *testing.T) {
	chart := &contracts.NatalChart{Ascendant: contracts.Virgo}
	if got := ChartRuler(chart); got != contracts.Mercury {
		t.Errorf("ChartRuler(virgo asc) = %s, want mercury", got)
	}
	chart.Ascendant = contracts.Scorpio
	if got := ChartRuler(chart); got != contracts.Pluto {
		t.Errorf("ChartRuler(scorpio asc) = %s, want pluto", got)
	}
}

func TestClassOfHouse(t *testing.T) {
	angular := []int{1, 4, 7, 10}
	for _, h := range angular {
		if got := ClassOfHouse(h); got != HouseAngular {
			t.Errorf("ClassOfHouse(%d) = %s, want angular", h, got)
		}
	}
	succedent := []int{2, 5, 8, 11}
	for _, h := range succedent {
		if got := ClassOfHouse(h); got != HouseSuccedent {
			t.Errorf("ClassOfHouse(%d) = %s, want succedent", h, got)
		}
	}
	cadent := []int{3, 6, 9, 12}
	for _, h := range cadent {
		if got := ClassOfHouse(h); got != HouseCadent {
			t.Errorf("ClassOfHouse(%d) = %s, want cadent", h, got)
		}
	}
}

func TestHouseFor(t *testing.T) {
	// Equal 30-degree houses starting at 0 Aries.
	var cusps [12]float64
	for i := range cusps {
		cusps[i] = float64(i) * 30
	}
	if got := HouseFor(15, cusps); got != 1 {
		t.Errorf("HouseFor(15) = %d, want 1", got)
	}
	if got := HouseFor(345, cusps); got != 12 {
		t.Errorf("HouseFor(345) = %d, want 12", got)
	}

	// Shifted cusps so house 11 wraps across 0 Aries.
	for i := range cusps {
		cusps[i] = normalizeLongitude(float64(i)*30 + 40)
	}
	if got := HouseFor(5, cusps); got != 11 {
		t.Errorf("HouseFor(5) with wrapped cusps = %d, want 11", got)
	}
	if got := HouseFor(15, cusps); got != 12 {
		t.Errorf("HouseFor(15) with wrapped cusps = %d, want 12", got)
	}
	if got := HouseFor(45, cusps); got != 1 {
		t.Errorf("HouseFor(45) with shifted cusps = %d, want 1", got)
	}

	// Unset cusps mean no house information.
	if got := HouseFor(100, [12]float64{}); got != 0 {
		t.Errorf("HouseFor with zero cusps = %d, want 0", got)
	}
}
