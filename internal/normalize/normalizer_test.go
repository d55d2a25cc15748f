package normalize

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/ebursztein/arca-backend/internal/contracts"
	"github.com/ebursztein/arca-backend/internal/scoring"
)

func testTable() *contracts.CalibrationTable {
	return &contracts.CalibrationTable{
		Version:   "test-2025.1",
		CreatedAt: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Meters: map[contracts.MeterID]*contracts.MeterCalibration{
			"clarity": {
				Intensity: contracts.Curve{
					Ranks:  []float64{10, 50, 90, 99},
					Values: []float64{2, 10, 40, 80},
				},
				HarmonyPositive: contracts.Curve{
					Ranks:  []float64{50, 99},
					Values: []float64{5, 30},
				},
				HarmonyNegative: contracts.Curve{
					Ranks:  []float64{50, 99},
					Values: []float64{4, 25},
				},
			},
		},
	}
}

func testNormalizer(table *contracts.CalibrationTable) *Normalizer {
	return New(table, scoring.DefaultWeights(), DefaultConfig())
}

func TestIntensityInterpolation(t *testing.T) {
	n := testNormalizer(testTable())
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"zero", 0, 0},
		{"at p10", 2, 10},
		{"at p50", 10, 50},
		{"midway p50-p90", 25, 70},
		{"at p90", 40, 90},
		{"at p99", 80, 99},
		{"below p10 anchors to origin", 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, uncal := n.Intensity("clarity", tt.raw)
			if uncal {
				t.Fatal("calibrated meter flagged uncalibrated")
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Intensity(%v) = %.4f, want %.4f", tt.raw, got, tt.want)
			}
		})
	}
}

func TestIntensityOutlierCompression(t *testing.T) {
	n := testNormalizer(testTable())

	// Double the p99 breakpoint: 99 + 6*tanh(ln 2) = 99 + 6*0.6 = 102.6.
	got, _ := n.Intensity("clarity", 160)
	if math.Abs(got-102.6) > 1e-9 {
		t.Errorf("Intensity(160) = %.6f, want 102.6", got)
	}

	// The margin bounds the overflow no matter how extreme the day.
	extreme, _ := n.Intensity("clarity", 1e9)
	if extreme <= 100 || extreme >= 105 {
		t.Errorf("Intensity(1e9) = %.4f, want in (100, 105)", extreme)
	}
}

func TestIntensityMonotonic(t *testing.T) {
	n := testNormalizer(testTable())
	prev := -1.0
	for raw := 0.0; raw <= 400; raw += 0.25 {
		got, _ := n.Intensity("clarity", raw)
		if got < prev-1e-12 {
			t.Fatalf("Intensity not monotonic at raw=%.2f: %.6f < %.6f", raw, got, prev)
		}
		prev = got
	}
}

func TestHarmonyZeroAnchor(t *testing.T) {
	// Raw zero must map to exactly 50 with or without calibration.
	calibrated := testNormalizer(testTable())
	if got, _ := calibrated.Harmony("clarity", 0); got != 50.0 {
		t.Errorf("calibrated Harmony(0) = %v, want exactly 50", got)
	}
	if got, _ := calibrated.Harmony("unknown-meter", 0); got != 50.0 {
		t.Errorf("unknown meter Harmony(0) = %v, want exactly 50", got)
	}
	uncalibrated := testNormalizer(nil)
	if got, _ := uncalibrated.Harmony("clarity", 0); got != 50.0 {
		t.Errorf("uncalibrated Harmony(0) = %v, want exactly 50", got)
	}
}

func TestHarmonyTails(t *testing.T) {
	n := testNormalizer(testTable())
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"positive p50", 5, 75},    // side 50 -> 50 + 25
		{"positive p99", 30, 99.5}, // side 99 -> 50 + 49.5
		{"negative p50", -4, 25},   // side 50 -> 50 - 25
		{"negative p99", -25, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := n.Harmony("clarity", tt.raw)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Harmony(%v) = %.4f, want %.4f", tt.raw, got, tt.want)
			}
		})
	}

	// Tails stay inside (0, 100) even on extreme days.
	hi, _ := n.Harmony("clarity", 1e9)
	if hi <= 99.5 || hi >= 100 {
		t.Errorf("Harmony(1e9) = %.6f, want in (99.5, 100)", hi)
	}
	lo, _ := n.Harmony("clarity", -1e9)
	if lo >= 0.5 || lo <= 0 {
		t.Errorf("Harmony(-1e9) = %.6f, want in (0, 0.5)", lo)
	}
}

func TestHarmonyMonotonic(t *testing.T) {
	n := testNormalizer(testTable())
	prev := -1.0
	for raw := -100.0; raw <= 100; raw += 0.25 {
		got, _ := n.Harmony("clarity", raw)
		if got < prev-1e-12 {
			t.Fatalf("Harmony not monotonic at raw=%.2f: %.6f < %.6f", raw, got, prev)
		}
		prev = got
	}
}

func TestUncalibratedFallback(t *testing.T) {
	n := testNormalizer(testTable())

	got, uncal := n.Intensity("brand-new-meter", 50)
	if !uncal {
		t.Error("missing calibration entry must flag uncalibrated")
	}
	if got <= 0 || got >= 100 {
		t.Errorf("fallback Intensity(50) = %.4f, want in (0, 100)", got)
	}

	h, uncalH := n.Harmony("brand-new-meter", -20)
	if !uncalH {
		t.Error("missing calibration entry must flag uncalibrated harmony")
	}
	if h >= 50 || h < 0 {
		t.Errorf("fallback Harmony(-20) = %.4f, want in [0, 50)", h)
	}

	// Nil table: everything falls back, nothing fails.
	bare := testNormalizer(nil)
	v, uncal := bare.Intensity("clarity", 10)
	if !uncal || v < 0 {
		t.Errorf("nil table Intensity = (%.4f, %v), want uncalibrated non-negative", v, uncal)
	}
}

func TestApplyFillsReadingAndLabels(t *testing.T) {
	n := testNormalizer(testTable())
	r := &contracts.MeterReading{
		Meter:        "clarity",
		RawIntensity: 25,
		RawValence:   5,
	}
	n.Apply(r)
	if math.Abs(r.Intensity-70) > 1e-9 {
		t.Errorf("Intensity = %.4f, want 70", r.Intensity)
	}
	if math.Abs(r.Harmony-75) > 1e-9 {
		t.Errorf("Harmony = %.4f, want 75", r.Harmony)
	}
	if r.Uncalibrated {
		t.Error("calibrated reading flagged uncalibrated")
	}
	if r.IntensityLabel != "strong" {
		t.Errorf("IntensityLabel = %q, want strong", r.IntensityLabel)
	}
	if r.HarmonyLabel != "supportive" {
		t.Errorf("HarmonyLabel = %q, want supportive", r.HarmonyLabel)
	}
}

func TestApplyDeterministic(t *testing.T) {
	n := testNormalizer(testTable())
	a := &contracts.MeterReading{Meter: "clarity", RawIntensity: 33.3, RawValence: -7.7}
	b := &contracts.MeterReading{Meter: "clarity", RawIntensity: 33.3, RawValence: -7.7}
	n.Apply(a)
	n.Apply(b)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical raw readings normalized differently")
	}
}

func TestBuckets(t *testing.T) {
	intensity := []struct {
		v    float64
		want string
	}{
		{0, "quiet"}, {14.9, "quiet"}, {15, "mild"}, {39.9, "mild"},
		{40, "active"}, {69.9, "active"}, {70, "strong"}, {89.9, "strong"},
		{90, "exceptional"}, {104, "exceptional"},
	}
	for _, tt := range intensity {
		if got := IntensityBucket(tt.v); got != tt.want {
			t.Errorf("IntensityBucket(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
	harmony := []struct {
		v    float64
		want string
	}{
		{0, "tense"}, {24.9, "tense"}, {25, "challenging"}, {44.9, "challenging"},
		{45, "neutral"}, {50, "neutral"}, {55, "neutral"}, {55.1, "supportive"},
		{75, "supportive"}, {75.1, "flowing"}, {100, "flowing"},
	}
	for _, tt := range harmony {
		if got := HarmonyBucket(tt.v); got != tt.want {
			t.Errorf("HarmonyBucket(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
