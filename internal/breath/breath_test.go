package breath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_NoEmissionBelowThreshold(t *testing.T) {
	d := NewDetector(256)
	for i := uint64(0); i < 300; i++ {
		_, emitted := d.Step(0, i*20)
		assert.False(t, emitted)
	}
}

func TestDetector_EmitsOnSecondValidPeak(t *testing.T) {
	d := NewDetector(8)
	// Warm the ring with a quiet baseline so the threshold is meaningful.
	for i := 0; i < 8; i++ {
		d.Step(0, uint64(i)*20)
	}

	// First spike: idle -> in_peak, but no prior peak time, so no emission.
	_, emitted := d.Step(5, 1000)
	assert.False(t, emitted, "first spike should not emit (no prior peak)")

	// Drop back below 0.8*threshold to return to idle.
	d.Step(-5, 1020)

	// Second spike 2000ms later (within 500-6000ms window): should emit.
	cycle, emitted := d.Step(5, 3000)
	require.True(t, emitted, "second spike should emit a cycle")
	assert.Equal(t, uint64(3000), cycle.TMs)
	assert.Equal(t, float32(2000), cycle.DurationMs)
}

func TestDetector_RejectsGapOutsideWindow(t *testing.T) {
	d := NewDetector(8)
	for i := 0; i < 8; i++ {
		d.Step(0, uint64(i)*20)
	}
	d.Step(5, 1000)
	d.Step(-5, 1020)
	// Gap of only 100ms: below the 500ms minimum.
	_, emitted := d.Step(5, 1100)
	assert.False(t, emitted, "too-close peak should not emit")
}

func TestDetector_TieAtThresholdDoesNotTrigger(t *testing.T) {
	d := NewDetector(8)
	for i := 0; i < 8; i++ {
		d.Step(0, uint64(i)*20)
	}
	threshold := d.Threshold()
	_, emitted := d.Step(threshold, 1000)
	assert.False(t, emitted)
	assert.False(t, d.inPeak, "x == threshold must not trigger rising edge")
}

func TestDetector_Reset(t *testing.T) {
	d := NewDetector(8)
	for i := 0; i < 8; i++ {
		d.Step(5, uint64(i)*20)
	}
	d.Reset()
	assert.False(t, d.inPeak)
	assert.Equal(t, uint64(0), d.lastPeakTime)
	assert.Equal(t, float32(0), d.Threshold())
}

func TestHistory_EmptyMetricsAreZero(t *testing.T) {
	h := NewHistory()
	assert.Equal(t, float32(0), h.BPM())
	assert.Equal(t, float32(0), h.Regularity())
	assert.Equal(t, float32(0), h.SNR())
}

func TestHistory_BPMRequiresThreeEntries(t *testing.T) {
	h := NewHistory()
	h.Insert(Cycle{TMs: 1000, DurationMs: 4000, Amplitude: 1})
	h.Insert(Cycle{TMs: 5000, DurationMs: 4000, Amplitude: 1})
	assert.Equal(t, float32(0), h.BPM(), "only 2 entries, BPM must be 0")

	h.Insert(Cycle{TMs: 9000, DurationMs: 4000, Amplitude: 1})
	bpm := h.BPM()
	assert.InDelta(t, 15.0, bpm, 0.01, "4000ms avg duration -> 15 BPM")
}

func TestHistory_EvictsOlderThan60s(t *testing.T) {
	h := NewHistory()
	h.Insert(Cycle{TMs: 1000, DurationMs: 4000, Amplitude: 1})
	h.Insert(Cycle{TMs: 65000, DurationMs: 4000, Amplitude: 1})
	// front (t=1000) is older than 65000-60000=5000, must be evicted.
	assert.Equal(t, 1, h.Len())
}

func TestHistory_RegularityRequiresFiveEntries(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 4; i++ {
		h.Insert(Cycle{TMs: uint64(i+1) * 1000, DurationMs: 4000, Amplitude: 1})
	}
	assert.Equal(t, float32(0), h.Regularity())

	h.Insert(Cycle{TMs: 5000, DurationMs: 4000, Amplitude: 1})
	assert.InDelta(t, 1.0, h.Regularity(), 0.01, "perfectly uniform durations -> regularity 1")
}

func TestHistory_SNRRequiresThreeEntries(t *testing.T) {
	h := NewHistory()
	h.Insert(Cycle{TMs: 1000, DurationMs: 1000, Amplitude: 2})
	h.Insert(Cycle{TMs: 2000, DurationMs: 1000, Amplitude: 2})
	assert.Equal(t, float32(0), h.SNR())

	h.Insert(Cycle{TMs: 3000, DurationMs: 1000, Amplitude: 2})
	assert.Equal(t, float32(0), h.SNR(), "zero variance amplitude -> SNR floor 0")
}

func TestHistory_CapacityNeverExceedsInvariantBound(t *testing.T) {
	h := NewHistory()
	for i := uint64(0); i < 200; i++ {
		h.Insert(Cycle{TMs: i * 500, DurationMs: 500, Amplitude: 1})
	}
	assert.LessOrEqual(t, h.Len(), historyCap)
}
