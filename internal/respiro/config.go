package respiro

// EngineConfig holds the tunables that let the pipeline adapt to a
// different input sample rate: sample rate (affects Δt), carrier frequency
// ω₀, and the phase-memory instability sensitivity α. The bandpass
// coefficients are fixed for a 50 Hz input and do not follow SampleRateHz.
// It is passed once at construction and never mutated afterward.
type EngineConfig struct {
	SampleRateHz float64 // nominal input sample rate (50 Hz default)
	CarrierHz    float64 // phase-memory carrier frequency ω₀/2π (0.3 Hz default)
	Sensitivity  float64 // α in ΔΦ > α·σ_ω (2.0 default)

	SignalRingSize int // breathing-signal ring capacity (256 default)

	WindowMs uint64 // sensor sliding-window length (5000ms default)
	ApneaMs  uint64 // silence duration that flags possible apnea (10000ms default)
}

// DefaultEngineConfig returns the production-default configuration used by
// every sub-component's own documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SampleRateHz:   50,
		CarrierHz:      0.3,
		Sensitivity:    2.0,
		SignalRingSize: 256,
		WindowMs:       5000,
		ApneaMs:        10000,
	}
}

// Validate reports whether the configuration is usable. A non-positive
// sample rate or carrier frequency would make Δt/ω₀ degenerate.
func (c EngineConfig) Validate() error {
	if c.SampleRateHz <= 0 {
		return errInvalidConfig{field: "SampleRateHz"}
	}
	if c.CarrierHz <= 0 {
		return errInvalidConfig{field: "CarrierHz"}
	}
	if c.SignalRingSize <= 0 {
		return errInvalidConfig{field: "SignalRingSize"}
	}
	return nil
}

type errInvalidConfig struct{ field string }

func (e errInvalidConfig) Error() string {
	return "respiro: invalid EngineConfig." + e.field
}
