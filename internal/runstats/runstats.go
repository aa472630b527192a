// Package runstats maintains O(1) incremental mean/variance over fixed
// windows of float32 samples: the breathing-signal ring (always full,
// fixed size) and the accelerometer-magnitude window (variable fill,
// time-bounded).
package runstats

import "math"

// SignalRing is a fixed-capacity ring treated as always fully populated
// (pre-filled with zeros at construction): its divisor is always the
// full capacity.
type SignalRing struct {
	values     []float32
	capacity   int
	index      int
	sum        float64
	sumSquares float64
}

// NewSignalRing creates a ring of the given capacity, pre-filled with zeros.
func NewSignalRing(capacity int) *SignalRing {
	return &SignalRing{
		values:   make([]float32, capacity),
		capacity: capacity,
	}
}

// Push overwrites the next slot and updates the running sums in O(1).
func (r *SignalRing) Push(v float32) {
	outgoing := r.values[r.index]
	r.sum += float64(v) - float64(outgoing)
	r.sumSquares += float64(v)*float64(v) - float64(outgoing)*float64(outgoing)
	r.values[r.index] = v
	r.index = (r.index + 1) % r.capacity
}

// Mean returns the current mean over the full capacity.
func (r *SignalRing) Mean() float32 {
	return float32(r.sum / float64(r.capacity))
}

// Variance returns the current (population) variance, floored at zero.
func (r *SignalRing) Variance() float32 {
	mean := r.sum / float64(r.capacity)
	v := r.sumSquares/float64(r.capacity) - mean*mean
	if v < 0 {
		v = 0
	}
	return float32(v)
}

// StdDev returns the current standard deviation.
func (r *SignalRing) StdDev() float32 {
	v := r.Variance()
	if v <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(v)))
}

// Reset clears the ring back to all-zero, fully-populated state.
func (r *SignalRing) Reset() {
	for i := range r.values {
		r.values[i] = 0
	}
	r.index = 0
	r.sum = 0
	r.sumSquares = 0
}

// Window is a variable-fill, fixed-capacity ring whose mean/variance divisor
// is the current fill count rather than the full capacity — used for the
// 5 s accelerometer-magnitude buffer, which starts empty each session.
type Window struct {
	values     []float32
	capacity   int
	index      int
	fill       int
	sum        float64
	sumSquares float64
}

// NewWindow creates a variable-fill window of the given capacity.
func NewWindow(capacity int) *Window {
	return &Window{
		values:   make([]float32, capacity),
		capacity: capacity,
	}
}

// Push adds a sample, evicting the oldest once the window is at capacity.
func (w *Window) Push(v float32) {
	if w.fill < w.capacity {
		w.values[w.index] = v
		w.sum += float64(v)
		w.sumSquares += float64(v) * float64(v)
		w.index = (w.index + 1) % w.capacity
		w.fill++
		return
	}
	outgoing := w.values[w.index]
	w.sum += float64(v) - float64(outgoing)
	w.sumSquares += float64(v)*float64(v) - float64(outgoing)*float64(outgoing)
	w.values[w.index] = v
	w.index = (w.index + 1) % w.capacity
}

// Fill returns the current number of populated samples.
func (w *Window) Fill() int {
	return w.fill
}

// Mean returns the current mean over the current fill count (0 if empty).
func (w *Window) Mean() float32 {
	if w.fill == 0 {
		return 0
	}
	return float32(w.sum / float64(w.fill))
}

// Variance returns the current (population) variance over the current fill
// count, floored at zero (0 if empty).
func (w *Window) Variance() float32 {
	if w.fill == 0 {
		return 0
	}
	mean := w.sum / float64(w.fill)
	v := w.sumSquares/float64(w.fill) - mean*mean
	if v < 0 {
		v = 0
	}
	return float32(v)
}

// Reset empties the window.
func (w *Window) Reset() {
	for i := range w.values {
		w.values[i] = 0
	}
	w.index = 0
	w.fill = 0
	w.sum = 0
	w.sumSquares = 0
}

// EvictOldest drops the single oldest sample from a variable-fill window
// that is not necessarily at capacity (used when eviction is driven by a
// timestamp predicate in the caller rather than by capacity pressure).
// It is a no-op on an empty window.
func (w *Window) EvictOldest() {
	if w.fill == 0 {
		return
	}
	// The "oldest" slot for a window not yet at capacity is always slot 0
	// of the logical sequence, i.e. (index - fill + capacity) % capacity.
	oldestIdx := (w.index - w.fill + w.capacity) % w.capacity
	outgoing := w.values[oldestIdx]
	w.sum -= float64(outgoing)
	w.sumSquares -= float64(outgoing) * float64(outgoing)
	w.values[oldestIdx] = 0
	w.fill--
}
