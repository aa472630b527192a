// Package phasememory implements the phase-memory operator: an analytic
// signal approximation, unwrapped instantaneous phase velocity, a rolling
// phase-memory baseline, and the resulting ΔΦ instability metric.
package phasememory

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// M is the rolling phase-memory window length (~3 s @ 50 Hz).
	M = 150
	// BaselineSize is the calibration window length (~5 s @ 50 Hz).
	BaselineSize = 250
	// DefaultAlpha is the default instability sensitivity multiplier.
	DefaultAlpha = 2.0
	// minSigma is the floor on σ_ω, preserving invariant 4 even on
	// pathologically still calibration periods.
	minSigma = 1e-4
)

// Operator holds all phase-memory state for one engine session.
type Operator struct {
	omega0 float64 // carrier angular frequency (rad/s)
	dt     float64 // sample period (s)
	alpha  float64

	hasPrev   bool
	xPrev     float64
	thetaPrev float64

	omegaRing [M]float64
	ringIndex int
	ringCount int
	ringSum   float64

	baseline      [BaselineSize]float64
	baselineCount int
	baselineReady bool
	sigmaOmega    float64

	lastDeltaPhi float64
}

// New creates an Operator for a carrier frequency carrierHz (default 0.3 Hz)
// sampled at sampleRateHz (default 50 Hz) with the given sensitivity alpha.
func New(carrierHz, sampleRateHz, alpha float64) *Operator {
	return &Operator{
		omega0: 2 * math.Pi * carrierHz,
		dt:     1 / sampleRateHz,
		alpha:  alpha,
	}
}

// Update feeds one bandpass-filtered sample through the operator and
// returns the latest ΔΦ(t).
func (o *Operator) Update(x float64) float64 {
	if !o.hasPrev {
		o.hasPrev = true
		o.xPrev = x
		o.lastDeltaPhi = 0
		return 0
	}

	h := -(x - o.xPrev) / (o.omega0 * o.dt)
	o.xPrev = x

	theta := math.Atan2(h, x)
	dtheta := theta - o.thetaPrev
	dtheta = wrapToPi(dtheta)
	omega := dtheta / o.dt
	o.thetaPrev = theta

	o.pushOmega(omega)
	omegaBar := o.ringSum / float64(o.ringCount)
	o.lastDeltaPhi = math.Abs(omega - omegaBar)

	o.accumulateBaseline(omega)

	return o.lastDeltaPhi
}

// wrapToPi folds a phase difference into (-π, π] by repeated ±2π folding.
func wrapToPi(d float64) float64 {
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

func (o *Operator) pushOmega(omega float64) {
	if o.ringCount < M {
		o.omegaRing[o.ringIndex] = omega
		o.ringSum += omega
		o.ringIndex = (o.ringIndex + 1) % M
		o.ringCount++
		return
	}
	outgoing := o.omegaRing[o.ringIndex]
	o.ringSum += omega - outgoing
	o.omegaRing[o.ringIndex] = omega
	o.ringIndex = (o.ringIndex + 1) % M
}

func (o *Operator) accumulateBaseline(omega float64) {
	if o.baselineReady {
		return
	}
	if o.baselineCount < BaselineSize {
		o.baseline[o.baselineCount] = omega
		o.baselineCount++
	}
	if o.baselineCount == BaselineSize {
		_, variance := stat.PopMeanVariance(o.baseline[:], nil)
		sigma := math.Sqrt(variance)
		if sigma < minSigma {
			sigma = minSigma
		}
		o.sigmaOmega = sigma
		o.baselineReady = true
	}
}

// DeltaPhi returns the latest ΔΦ(t).
func (o *Operator) DeltaPhi() float64 {
	return o.lastDeltaPhi
}

// SigmaOmega returns the frozen baseline standard deviation, or 0 before
// the baseline has filled.
func (o *Operator) SigmaOmega() float64 {
	return o.sigmaOmega
}

// BaselineReady reports whether the calibration window has filled.
func (o *Operator) BaselineReady() bool {
	return o.baselineReady
}

// InstabilityDetected reports whether ΔΦ(t) exceeds α·σ_ω, which can only
// ever be true once the baseline has been established.
func (o *Operator) InstabilityDetected() bool {
	return o.baselineReady && o.lastDeltaPhi > o.alpha*o.sigmaOmega
}

// Reset clears all operator state back to a fresh session.
func (o *Operator) Reset() {
	o.hasPrev = false
	o.xPrev = 0
	o.thetaPrev = 0
	o.omegaRing = [M]float64{}
	o.ringIndex = 0
	o.ringCount = 0
	o.ringSum = 0
	o.baseline = [BaselineSize]float64{}
	o.baselineCount = 0
	o.baselineReady = false
	o.sigmaOmega = 0
	o.lastDeltaPhi = 0
}
