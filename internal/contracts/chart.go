package contracts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Body identifies a celestial body used in scoring.
type Body string

const (
	Sun     Body = "sun"
	Moon    Body = "moon"
	Mercury Body = "mercury"
	Venus   Body = "venus"
	Mars    Body = "mars"
	Jupiter Body = "jupiter"
	Saturn  Body = "saturn"
	Uranus  Body = "uranus"
	Neptune Body = "neptune"
	Pluto   Body = "pluto"
)

// Bodies lists every scored body in traditional order.
// Order matters: deterministic iteration keeps repeated runs bit-identical.
var Bodies = []Body{Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto}

// Sign is a zodiac sign.
type Sign string

const (
	Aries       Sign = "aries"
	Taurus      Sign = "taurus"
	Gemini      Sign = "gemini"
	Cancer      Sign = "cancer"
	Leo         Sign = "leo"
	Virgo       Sign = "virgo"
	Libra       Sign = "libra"
	Scorpio     Sign = "scorpio"
	Sagittarius Sign = "sagittarius"
	Capricorn   Sign = "capricorn"
	Aquarius    Sign = "aquarius"
	Pisces      Sign = "pisces"
)

// Signs lists the zodiac in ecliptic order, 30 degrees each from 0 Aries.
var Signs = []Sign{Aries, Taurus, Gemini, Cancer, Leo, Virgo, Libra, Scorpio, Sagittarius, Capricorn, Aquarius, Pisces}

// Position is one body's placement in a chart.
type Position struct {
	Body       Body    `json:"body"`
	Longitude  float64 `json:"longitude"`   // ecliptic degrees [0, 360)
	Speed      float64 `json:"speed"`       // degrees/day, negative while retrograde
	Sign       Sign    `json:"sign"`
	House      int     `json:"house"`       // 1-12, 0 when houses are not computed
	Retrograde bool    `json:"retrograde"`
	// DaysToStation is the number of days until the body's next retrograde
	// station, when the upstream ephemeris reports one inside its horizon.
	DaysToStation *float64 `json:"days_to_station,omitempty"`
}

// BirthData identifies a natal chart request to the chart collaborator.
type BirthData struct {
	Datetime  time.Time `json:"datetime"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// NatalChart is the fixed personal reference chart.
// Produced entirely by the external chart collaborator; never mutated here.
type NatalChart struct {
	Birth      BirthData         `json:"birth"`
	Positions  map[Body]Position `json:"positions"`
	HouseCusps [12]float64       `json:"house_cusps"` // cusp longitude per house, 1-indexed via idx+1
	Ascendant  Sign              `json:"ascendant"`
}

// TransitChart holds the moving bodies for one target date.
type TransitChart struct {
	Date      time.Time         `json:"date"`
	Positions map[Body]Position `json:"positions"`
}

// Fingerprint returns a stable hash of the natal chart, used as a cache key
// component. Positions are folded in body order so the hash is deterministic.
func (n *NatalChart) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%.4f|%.4f|%s", n.Birth.Datetime.UTC().Format(time.RFC3339), n.Birth.Latitude, n.Birth.Longitude, n.Ascendant)
	for _, b := range Bodies {
		p := n.Positions[b]
		fmt.Fprintf(h, "|%s:%.4f:%d", b, p.Longitude, p.House)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ChartSource is the chart-computation collaborator boundary.
// This core never computes ephemeris positions itself.
type ChartSource interface {
	Natal(ctx context.Context, birth BirthData) (*NatalChart, error)
	Transits(ctx context.Context, date time.Time) (*TransitChart, error)
}
