package runstats

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestSignalRing_MeanVariance(t *testing.T) {
	r := NewSignalRing(8)
	samples := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	for _, s := range samples {
		r.Push(s)
	}

	wantMean, wantVar := stat.MeanVariance(toFloat64(samples), nil)
	// stat.MeanVariance is the *sample* variance (N-1 divisor); the ring
	// uses the population variance (N divisor), matching SignalRing.
	wantPopVar := wantVar * float64(len(samples)-1) / float64(len(samples))

	if got := float64(r.Mean()); math.Abs(got-wantMean) > 1e-4 {
		t.Errorf("Mean() = %v, want %v", got, wantMean)
	}
	if got := float64(r.Variance()); math.Abs(got-wantPopVar) > 1e-4 {
		t.Errorf("Variance() = %v, want %v", got, wantPopVar)
	}
}

func TestSignalRing_Overwrite(t *testing.T) {
	r := NewSignalRing(4)
	for i := 0; i < 4; i++ {
		r.Push(0)
	}
	// Ring is always full — overwrite every slot with the same value and
	// check the running sums track exactly.
	for _, v := range []float32{10, 10, 10, 10} {
		r.Push(v)
	}
	if r.Mean() != 10 {
		t.Errorf("Mean() = %v, want 10", r.Mean())
	}
	if r.Variance() != 0 {
		t.Errorf("Variance() = %v, want 0", r.Variance())
	}
}

func TestSignalRing_VarianceNeverNegative(t *testing.T) {
	r := NewSignalRing(4)
	r.Push(1e6)
	r.Push(-1e6)
	r.Push(1e6)
	r.Push(-1e6)
	if r.Variance() < 0 {
		t.Errorf("Variance() = %v, want >= 0", r.Variance())
	}
}

func TestSignalRing_Reset(t *testing.T) {
	r := NewSignalRing(4)
	r.Push(5)
	r.Push(5)
	r.Reset()
	if r.Mean() != 0 || r.Variance() != 0 {
		t.Errorf("after Reset: mean=%v var=%v, want 0 0", r.Mean(), r.Variance())
	}
}

func TestWindow_FillAndEvict(t *testing.T) {
	w := NewWindow(5)
	if w.Fill() != 0 {
		t.Fatalf("Fill() = %d, want 0", w.Fill())
	}

	for i := 1; i <= 3; i++ {
		w.Push(float32(i))
	}
	if w.Fill() != 3 {
		t.Errorf("Fill() = %d, want 3", w.Fill())
	}
	wantMean, _ := stat.MeanVariance([]float64{1, 2, 3}, nil)
	if got := float64(w.Mean()); math.Abs(got-wantMean) > 1e-6 {
		t.Errorf("Mean() = %v, want %v", got, wantMean)
	}

	w.EvictOldest()
	if w.Fill() != 2 {
		t.Errorf("Fill() after evict = %d, want 2", w.Fill())
	}
	if got := float64(w.Mean()); math.Abs(got-2.5) > 1e-6 {
		t.Errorf("Mean() after evict = %v, want 2.5", got)
	}
}

func TestWindow_Wraparound(t *testing.T) {
	w := NewWindow(3)
	for i := 1; i <= 5; i++ {
		w.Push(float32(i))
	}
	// Capacity 3, pushed 1..5: window holds {3,4,5}.
	if w.Fill() != 3 {
		t.Fatalf("Fill() = %d, want 3", w.Fill())
	}
	wantMean, _ := stat.MeanVariance([]float64{3, 4, 5}, nil)
	if got := float64(w.Mean()); math.Abs(got-wantMean) > 1e-6 {
		t.Errorf("Mean() = %v, want %v", got, wantMean)
	}
}

func TestWindow_EmptyIsZero(t *testing.T) {
	w := NewWindow(4)
	if w.Mean() != 0 || w.Variance() != 0 {
		t.Errorf("empty window: mean=%v var=%v, want 0 0", w.Mean(), w.Variance())
	}
	w.EvictOldest() // must not panic on empty
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
