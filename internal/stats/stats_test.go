package stats

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestHistogramScenario(t *testing.T) {
	h := NewHistogram(10, 0, 10)
	values := []float64{0.0, 0.5, 1.0, 4.0, 4.5, 4.7, 4.9, 5.0, 5.0, 5.0, 9.1, 10.0}
	outOfRange := []float64{-1, -1e-9, 10 + 1e9, 11}
	h.AddAll(values)
	h.AddAll(outOfRange)

	want := []int64{2, 1, 0, 0, 4, 3, 0, 0, 0, 2}
	if diff := cmp.Diff(want, h.Counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestHistogramExcludesNaNInf(t *testing.T) {
	h := NewHistogram(5, 0, 5)
	h.AddAll([]float64{1, 2, math.NaN(), math.Inf(1), math.Inf(-1), 3})
	if got := h.Sum(); got != 3 {
		t.Errorf("Sum() = %d, want 3", got)
	}
}

func TestHistogramMergeEquivalentToConcatenation(t *testing.T) {
	a := NewHistogram(4, 0, 8)
	b := NewHistogram(4, 0, 8)
	all := NewHistogram(4, 0, 8)

	av := []float64{0.5, 1.5, 7.9}
	bv := []float64{2.2, 6.6, 6.7}
	a.AddAll(av)
	b.AddAll(bv)
	all.AddAll(av)
	all.AddAll(bv)

	a.Merge(b)
	if diff := cmp.Diff(all.Counts, a.Counts); diff != "" {
		t.Fatalf("merged histogram mismatch (-want +got):\n%s", diff)
	}
}

func TestBasicStatsJoinAssociativeCommutative(t *testing.T) {
	a := NewBasicStatsAccumulator()
	a.AddAll([]float64{1, 2, 3})
	b := NewBasicStatsAccumulator()
	b.AddAll([]float64{4, 5})
	c := NewBasicStatsAccumulator()
	c.AddAll([]float64{6, 7, 8, 9})

	ab := Join(a, b)
	abc1 := Join(ab, c)
	bc := Join(b, c)
	abc2 := Join(a, bc)
	abc3 := Join(Join(b, a), c)

	opt := cmpopts.EquateApprox(0, 1e-9)
	if diff := cmp.Diff(abc1, abc2, opt); diff != "" {
		t.Errorf("associativity mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(abc1, abc3, opt); diff != "" {
		t.Errorf("commutativity mismatch (-want +got):\n%s", diff)
	}

	all := NewBasicStatsAccumulator()
	all.AddAll([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9})
	if diff := cmp.Diff(all, abc1, opt); diff != "" {
		t.Errorf("joined stats mismatch vs direct accumulation (-want +got):\n%s", diff)
	}
}

func TestBasicStatsSkipsNaNInf(t *testing.T) {
	b := NewBasicStatsAccumulator()
	b.AddAll([]float64{1, math.NaN(), math.Inf(1), 3})
	if b.NumPixels != 2 {
		t.Errorf("NumPixels = %d, want 2", b.NumPixels)
	}
	if b.Mean != 2 {
		t.Errorf("Mean = %f, want 2", b.Mean)
	}
}
