// Package respiro implements the engine orchestrator: a single-threaded,
// push-on-ingest pipeline that owns gravity, bandpass, phase-memory, and
// breath-cycle sub-components, computing metrics lazily on query.
package respiro

import (
	"math"

	"github.com/google/uuid"

	"github.com/respirosync/core/internal/biquad"
	"github.com/respirosync/core/internal/breath"
	"github.com/respirosync/core/internal/gravity"
	"github.com/respirosync/core/internal/phasememory"
	"github.com/respirosync/core/internal/ringbuf"
	"github.com/respirosync/core/internal/runstats"
	"github.com/respirosync/core/internal/stage"
)

type sample struct {
	x, y, z float32
	tMs     uint64
}

// Engine owns all respiratory-pipeline sub-component state for one
// monitoring session. It is not internally synchronized: at most one
// thread of control may touch an instance at a time.
type Engine struct {
	cfg EngineConfig

	gravityTracker *gravity.Tracker
	bandpass       *biquad.Filter
	phase          *phasememory.Operator
	detector       *breath.Detector
	history        *breath.History

	accelSamples *ringbuf.Buffer[sample]
	gyroSamples  *ringbuf.Buffer[sample]
	magWindow    *runstats.Window

	lastBreathTime uint64
	sessionStartMs uint64
	sessionID      uuid.UUID
}

// New creates an Engine with the given configuration. The engine starts in
// a freshly-reset state equivalent to an immediate start_session(0); call
// StartSession to begin a real session with its own timestamp and session
// ID.
func New(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	deqCap := int(cfg.SampleRateHz*float64(cfg.WindowMs)/1000.0) * 2
	if deqCap < 64 {
		deqCap = 64
	}

	e := &Engine{
		cfg:            cfg,
		gravityTracker: gravity.New(),
		bandpass:       biquad.New(),
		phase:          phasememory.New(cfg.CarrierHz, cfg.SampleRateHz, cfg.Sensitivity),
		detector:       breath.NewDetector(cfg.SignalRingSize),
		history:        breath.NewHistory(),
		accelSamples:   ringbuf.New[sample](deqCap),
		gyroSamples:    ringbuf.New[sample](deqCap),
		magWindow:      runstats.NewWindow(deqCap),
	}
	return e, nil
}

// StartSession resets every sub-component's state together and begins a
// new session at tMs. It is idempotent: calling it repeatedly always
// yields the same freshly-reset pipeline state; only the session ID
// differs, since each call stamps a new one.
func (e *Engine) StartSession(tMs uint64) {
	e.gravityTracker.Reset()
	e.bandpass.Reset()
	e.phase.Reset()
	e.detector.Reset()
	e.history.Reset()
	e.accelSamples.Reset()
	e.gyroSamples.Reset()
	e.magWindow.Reset()

	e.lastBreathTime = 0
	e.sessionStartMs = tMs
	e.sessionID = uuid.New()
}

// SessionID returns a fresh identifier stamped at the last StartSession
// call, for caller-side log/diagnostic correlation (C10 introspection). It
// is not part of the fixed C-ABI metrics record.
func (e *Engine) SessionID() uuid.UUID {
	return e.sessionID
}

// FeedAccel ingests one accelerometer sample. Non-finite components are
// silently dropped.
func (e *Engine) FeedAccel(x, y, z float32, tMs uint64) {
	if !finite3(x, y, z) {
		return
	}

	s := sample{x: x, y: y, z: z, tMs: tMs}
	pushEvicting(e.accelSamples, s, tMs, e.cfg.WindowMs)

	mag := magnitude(x, y, z)
	e.magWindow.Push(mag)
	for e.magWindow.Fill() > e.accelSamples.Len() {
		e.magWindow.EvictOldest()
	}

	chest := e.gravityTracker.Update(mag)
	if back, ok := e.gyroSamples.Back(); ok {
		chest += 0.1 * magnitude(back.x, back.y, back.z)
	}

	bp := e.bandpass.Process(chest)
	e.phase.Update(float64(bp))

	if cycle, emitted := e.detector.Step(bp, tMs); emitted {
		e.history.Insert(cycle)
		e.lastBreathTime = cycle.TMs
	}
}

// FeedGyro ingests one gyroscope sample. Only its sliding 5 s buffer is
// maintained; non-finite components and the sample's effect on anything
// besides that buffer are no-ops.
func (e *Engine) FeedGyro(x, y, z float32, tMs uint64) {
	if !finite3(x, y, z) {
		return
	}
	s := sample{x: x, y: y, z: z, tMs: tMs}
	pushEvicting(e.gyroSamples, s, tMs, e.cfg.WindowMs)
}

// Metrics assembles the current metrics snapshot at time tMs, per
// the combination formula below. It performs no mutation of engine state
// beyond what FeedAccel/FeedGyro already did.
func (e *Engine) Metrics(tMs uint64) Metrics {
	bpm := e.history.BPM()
	regularity := e.history.Regularity()
	n := e.history.Len()

	movementVariance := float32(0)
	if e.magWindow.Fill() > 10 {
		movementVariance = e.magWindow.Variance()
		if movementVariance < 0 {
			movementVariance = 0
		}
	}
	intensity := clampF32(10*movementVariance, 0, 1)

	snr := e.history.SNR()

	m := Metrics{
		CurrentStage:         stage.Classify(intensity, regularity, n),
		Confidence:           clampF32(float32(n)/20.0, 0, 1),
		BreathingRateBPM:     bpm,
		BreathingRegularity:  regularity,
		MovementIntensity:    intensity,
		BreathCyclesDetected: n,
		PossibleApnea:        e.lastBreathTime > 0 && tMs > e.lastBreathTime && tMs-e.lastBreathTime > e.cfg.ApneaMs,
		SignalQuality:        stage.ClassifyQuality(snr, n, regularity),
		SignalNoiseRatio:     snr,
		InstabilityScore:     float32(e.phase.DeltaPhi()),
		InstabilityDetected:  e.phase.InstabilityDetected(),
	}
	return m
}

func finite3(x, y, z float32) bool {
	return isFinite(x) && isFinite(y) && isFinite(z)
}

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func magnitude(x, y, z float32) float32 {
	return float32(math.Sqrt(float64(x)*float64(x) + float64(y)*float64(y) + float64(z)*float64(z)))
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pushEvicting pushes s into buf, first evicting from the front anything
// older than windowMs relative to s.tMs, and defensively dropping the
// single oldest entry if the (generously sized) buffer is ever at
// capacity — the 5 s sliding window should never actually reach capacity
// at the documented sample rates.
func pushEvicting(buf *ringbuf.Buffer[sample], s sample, nowMs, windowMs uint64) {
	for {
		front, ok := buf.Front()
		if !ok {
			break
		}
		if nowMs >= windowMs && front.tMs < nowMs-windowMs {
			buf.Pop()
			continue
		}
		break
	}
	if !buf.Push(s) {
		buf.Pop()
		buf.Push(s)
	}
}

