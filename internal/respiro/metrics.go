package respiro

import "github.com/respirosync/core/internal/stage"

// SleepStage and SignalQuality are re-exported from the stage package so
// callers of this package never need to import it directly.
type SleepStage = stage.SleepStage
type SignalQuality = stage.SignalQuality

const (
	Awake        = stage.Awake
	Light        = stage.Light
	Deep         = stage.Deep
	REM          = stage.REM
	StageUnknown = stage.Unknown
)

const (
	Excellent      = stage.Excellent
	Good           = stage.Good
	Fair           = stage.Fair
	Poor           = stage.Poor
	QualityUnknown = stage.QualityUnknown
)

// Metrics is the snapshot returned by Engine.Metrics. Field order matches
// the C-ABI metrics record exactly and is part of the contract:
// current_stage, confidence, breathing_rate_bpm,
// breathing_regularity, movement_intensity, breath_cycles_detected,
// possible_apnea, signal_quality, signal_noise_ratio, instability_score,
// instability_detected.
type Metrics struct {
	CurrentStage         SleepStage
	Confidence           float32
	BreathingRateBPM     float32
	BreathingRegularity  float32
	MovementIntensity    float32
	BreathCyclesDetected int
	PossibleApnea        bool
	SignalQuality        SignalQuality
	SignalNoiseRatio     float32
	InstabilityScore     float32
	InstabilityDetected  bool
}

// ZeroMetrics returns the safe-default metrics record used whenever
// get_metrics cannot proceed (null handle, internal fault).
func ZeroMetrics() Metrics {
	return Metrics{
		CurrentStage:  StageUnknown,
		SignalQuality: QualityUnknown,
	}
}
