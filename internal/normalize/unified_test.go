package normalize

import (
	"math"
	"testing"
)

func symmetricCombiner() *Combiner {
	return NewCombiner(DefaultCombinerConfig(), SymmetricAsymmetry())
}

func TestUnifiedNeutralHarmonyIsZero(t *testing.T) {
	c := symmetricCombiner()
	for _, intensity := range []float64{0, 10, 50, 100, 104} {
		if got := c.Unified(intensity, 50); got != 0 {
			t.Errorf("Unified(%v, 50) = %.6f, want 0", intensity, got)
		}
	}
}

func TestUnifiedDirectionFollowsHarmony(t *testing.T) {
	c := symmetricCombiner()
	if got := c.Unified(60, 72); got <= 0 {
		t.Errorf("Unified above-neutral harmony = %.4f, want positive", got)
	}
	if got := c.Unified(60, 31); got >= 0 {
		t.Errorf("Unified below-neutral harmony = %.4f, want negative", got)
	}
}

func TestUnifiedSymmetricMirror(t *testing.T) {
	c := symmetricCombiner()
	for _, intensity := range []float64{0, 25, 50, 75, 100} {
		for _, d := range []float64{5, 15, 30, 50} {
			up := c.Unified(intensity, 50+d)
			down := c.Unified(intensity, 50-d)
			if math.Abs(up+down) > 1e-9 {
				t.Errorf("symmetric combiner not mirrored at i=%v d=%v: %v vs %v", intensity, d, up, down)
			}
		}
	}
}

func TestUnifiedAsymmetryAmplifiesPositive(t *testing.T) {
	asym := NewCombiner(DefaultCombinerConfig(), DefaultAsymmetry())
	sym := symmetricCombiner()

	up := asym.Unified(70, 80)
	if up <= sym.Unified(70, 80) {
		t.Errorf("positive gain should amplify: asym %.4f vs sym %.4f", up, sym.Unified(70, 80))
	}
	// NegativeGain < 1 softens bad days, so the asymmetric value sits
	// closer to zero (greater) than the symmetric one.
	down := asym.Unified(70, 20)
	if down <= sym.Unified(70, 20) {
		t.Errorf("negative gain should soften: asym %.4f vs sym %.4f", down, sym.Unified(70, 20))
	}
}

func TestUnifiedBounded(t *testing.T) {
	c := NewCombiner(DefaultCombinerConfig(), DefaultAsymmetry())
	for _, intensity := range []float64{0, 50, 100, 200} {
		for _, harmony := range []float64{0, 10, 50, 90, 100} {
			got := c.Unified(intensity, harmony)
			if got <= -100 || got >= 100 {
				t.Errorf("Unified(%v, %v) = %.4f, out of (-100, 100)", intensity, harmony, got)
			}
		}
	}
}

func TestUnifiedFloorKeepsQuietDaysAlive(t *testing.T) {
	c := symmetricCombiner()
	got := c.Unified(0, 90)
	if got <= 0 {
		t.Errorf("Unified(0, 90) = %.4f, want positive despite zero intensity", got)
	}
	louder := c.Unified(80, 90)
	if louder <= got {
		t.Errorf("intensity must raise magnitude: %.4f vs %.4f", louder, got)
	}
}

func TestUnifiedMonotonicInHarmony(t *testing.T) {
	c := symmetricCombiner()
	prev := math.Inf(-1)
	for h := 0.0; h <= 100; h += 0.5 {
		got := c.Unified(65, h)
		if got < prev {
			t.Fatalf("Unified not monotonic in harmony at %v: %.6f < %.6f", h, got, prev)
		}
		prev = got
	}
}
