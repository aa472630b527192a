// Package stage implements the rule-based sleep-stage and signal-quality
// classifiers.
package stage

// SleepStage enumerates the classifier's possible outputs. Integer values
// are part of the C-ABI contract and must not be renumbered.
type SleepStage int

const (
	Awake   SleepStage = 0
	Light   SleepStage = 1
	Deep    SleepStage = 2
	REM     SleepStage = 3
	Unknown SleepStage = 4
)

func (s SleepStage) String() string {
	switch s {
	case Awake:
		return "Awake"
	case Light:
		return "LightSleep"
	case Deep:
		return "DeepSleep"
	case REM:
		return "REMSleep"
	default:
		return "Unknown"
	}
}

// SignalQuality enumerates the coarse signal-quality rating. Integer values
// are part of the C-ABI contract and must not be renumbered.
type SignalQuality int

const (
	Excellent      SignalQuality = 0
	Good           SignalQuality = 1
	Fair           SignalQuality = 2
	Poor           SignalQuality = 3
	QualityUnknown SignalQuality = 4
)

func (q SignalQuality) String() string {
	switch q {
	case Excellent:
		return "Excellent"
	case Good:
		return "Good"
	case Fair:
		return "Fair"
	case Poor:
		return "Poor"
	default:
		return "Unknown"
	}
}

// Classify evaluates the sleep-stage rule ladder against movement
// intensity m, breathing regularity r, and the number of breath cycles
// currently in history n.
func Classify(movementIntensity, regularity float32, sampleCount int) SleepStage {
	switch {
	case sampleCount < 5:
		return Unknown
	case movementIntensity > 0.4:
		return Awake
	case movementIntensity < 0.05 && regularity > 0.85:
		return Deep
	case movementIntensity > 0.15 && movementIntensity < 0.35:
		return REM
	default:
		return Light
	}
}

// ClassifyQuality evaluates the signal-quality rule table against the
// SNR, sample count, and regularity.
func ClassifyQuality(snr float32, sampleCount int, regularity float32) SignalQuality {
	switch {
	case sampleCount < 5:
		return QualityUnknown
	case snr > 5 && regularity > 0.7 && sampleCount >= 20:
		return Excellent
	case snr > 3 && regularity > 0.5 && sampleCount >= 10:
		return Good
	case snr > 1.5 && sampleCount >= 5:
		return Fair
	default:
		return Poor
	}
}
