// Package breath implements the adaptive-threshold hysteresis peak detector
// and the 60 s sliding breath-cycle history with its derived
// BPM/regularity/SNR metrics.
package breath

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/respirosync/core/internal/ringbuf"
	"github.com/respirosync/core/internal/runstats"
)

const (
	minCycleGapMs uint64 = 500
	maxCycleGapMs uint64 = 6000
	historyMs     uint64 = 60000
	historyCap           = 120 // 60000 / minCycleGapMs: the most cycles a 60 s window can hold
	bpmWindowMs   uint64 = 30000
	hysteresisEps        = 1e-6
	minSigma             = 1e-6
)

// Cycle is one detected breath cycle.
type Cycle struct {
	TMs        uint64
	DurationMs float32
	Amplitude  float32
}

// Detector is the peak/breath-cycle state machine (C5). It owns the 256
// sample breathing-signal ring used to derive the adaptive threshold.
type Detector struct {
	signal *runstats.SignalRing

	inPeak        bool
	lastPeakTime  uint64
	lastPeakValue float32
	threshold     float32
}

// NewDetector creates a detector with a signal ring of the given capacity
// (256 by default).
func NewDetector(ringCapacity int) *Detector {
	return &Detector{signal: runstats.NewSignalRing(ringCapacity)}
}

// Step pushes one bandpass-filtered sample into the detector. It returns the
// emitted cycle, if any, and whether a breath was in fact emitted.
func (d *Detector) Step(x float32, tMs uint64) (Cycle, bool) {
	d.signal.Push(x)
	mean := d.signal.Mean()
	sigma := d.signal.StdDev()
	d.threshold = mean + 0.6*sigma

	if !d.inPeak {
		if x > d.threshold {
			d.inPeak = true
			emitted, cycle := d.tryEmit(x, tMs, sigma)
			d.lastPeakValue = x
			if emitted {
				return cycle, true
			}
			d.lastPeakTime = tMs
			return Cycle{}, false
		}
		return Cycle{}, false
	}

	// in_peak -> idle
	if x < 0.8*d.threshold-hysteresisEps {
		d.inPeak = false
	}
	return Cycle{}, false
}

// tryEmit implements the rising-edge emission rule: a cycle is only emitted
// if the previous peak time is known and the gap lies in (500, 6000) ms.
// lastPeakTime is always overwritten on transition regardless of emission.
func (d *Detector) tryEmit(x float32, tMs uint64, sigma float32) (bool, Cycle) {
	emit := false
	var cycle Cycle
	if d.lastPeakTime > 0 && tMs >= d.lastPeakTime {
		gap := tMs - d.lastPeakTime
		if gap > minCycleGapMs && gap < maxCycleGapMs {
			denom := sigma
			if denom < minSigma {
				denom = minSigma
			}
			cycle = Cycle{
				TMs:        tMs,
				DurationMs: float32(gap),
				Amplitude:  x / denom,
			}
			emit = true
		}
	}
	d.lastPeakTime = tMs
	return emit, cycle
}

// Reset clears the detector's state machine and signal ring.
func (d *Detector) Reset() {
	d.signal.Reset()
	d.inPeak = false
	d.lastPeakTime = 0
	d.lastPeakValue = 0
	d.threshold = 0
}

// Threshold returns the current adaptive threshold, mostly for tests.
func (d *Detector) Threshold() float32 {
	return d.threshold
}

// History is the 60 s sliding deque of breath cycles (C6) plus the derived
// BPM/regularity/SNR metrics.
type History struct {
	cycles *ringbuf.Buffer[Cycle]
}

// NewHistory creates an empty history bounded to historyCap entries — the
// most cycles that can exist in a 60 s window at the minimum 500 ms cycle
// spacing.
func NewHistory() *History {
	return &History{cycles: ringbuf.New[Cycle](historyCap)}
}

// Insert appends a new cycle and evicts everything older than 60 s from the
// front.
func (h *History) Insert(c Cycle) {
	// The ring is capacity-bounded; drop the oldest entry to make room if a
	// push would otherwise fail. At cycle spacings just over 500 ms the ring
	// can already hold historyCap entries before this insert; with
	// non-decreasing timestamps the entry dropped here is one the eviction
	// below would remove anyway, and Insert never loses the newest cycle.
	for h.cycles.Len() >= historyCap {
		h.cycles.Pop()
	}
	h.cycles.Push(c)
	h.evict(c.TMs)
}

func (h *History) evict(nowMs uint64) {
	for {
		front, ok := h.cycles.Front()
		if !ok {
			return
		}
		if nowMs >= historyMs && front.TMs < nowMs-historyMs+0 {
			h.cycles.Pop()
			continue
		}
		return
	}
}

// Len returns the number of cycles currently in the window.
func (h *History) Len() int {
	return h.cycles.Len()
}

// Reset empties the history.
func (h *History) Reset() {
	h.cycles.Reset()
}

// BPM computes breaths-per-minute from durations within the 30 s preceding
// the newest cycle, newest-first. The reference point is the newest
// cycle's own timestamp rather than the query time, so a query arriving
// long after the last breath still reports the rate that was current when
// breathing stopped. Requires at least 3 entries.
func (h *History) BPM() float32 {
	all := h.cycles.Snapshot()
	if len(all) < 3 {
		return 0
	}

	anchor := all[len(all)-1].TMs

	var sum float64
	var count int
	for i := len(all) - 1; i >= 0; i-- {
		c := all[i]
		if anchor < c.TMs || anchor-c.TMs > bpmWindowMs {
			break
		}
		sum += float64(c.DurationMs)
		count++
	}
	if count == 0 {
		return 0
	}
	avg := sum / float64(count)
	if avg < minSigma {
		return 0
	}
	return float32(60000.0 / avg)
}

// Regularity computes 1-CV of all current cycle durations. Requires at
// least 5 entries.
func (h *History) Regularity() float32 {
	all := h.cycles.Snapshot()
	if len(all) < 5 {
		return 0
	}
	durations := make([]float64, len(all))
	for i, c := range all {
		durations[i] = float64(c.DurationMs)
	}
	mean, variance := stat.PopMeanVariance(durations, nil)
	if mean < minSigma {
		return 0
	}
	cv := math.Sqrt(variance) / mean
	reg := 1 - cv
	return float32(clamp01(reg))
}

// SNR computes mean(amplitude)/stddev(amplitude). Requires at least 3
// entries.
func (h *History) SNR() float32 {
	all := h.cycles.Snapshot()
	if len(all) < 3 {
		return 0
	}
	amps := make([]float64, len(all))
	for i, c := range all {
		amps[i] = float64(c.Amplitude)
	}
	mean, variance := stat.PopMeanVariance(amps, nil)
	std := math.Sqrt(variance)
	if std < minSigma {
		return 0
	}
	return float32(mean / std)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
