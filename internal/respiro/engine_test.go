package respiro

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidConfigReturnsError(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.SampleRateHz = 0
	_, err := New(cfg)
	require.Error(t, err)

	cfg = DefaultEngineConfig()
	cfg.CarrierHz = -1
	_, err = New(cfg)
	require.Error(t, err)

	cfg = DefaultEngineConfig()
	cfg.SignalRingSize = 0
	_, err = New(cfg)
	require.Error(t, err)
}

func TestNew_DefaultConfigIsValid(t *testing.T) {
	e, err := New(DefaultEngineConfig())
	require.NoError(t, err)
	require.NotNil(t, e)
}

func TestEngine_ZeroSamplesYieldsUnknownStageAndQuality(t *testing.T) {
	e, err := New(DefaultEngineConfig())
	require.NoError(t, err)
	e.StartSession(0)

	m := e.Metrics(1000)
	assert.Equal(t, StageUnknown, m.CurrentStage)
	assert.Equal(t, QualityUnknown, m.SignalQuality)
	assert.Equal(t, float32(0), m.BreathingRateBPM)
	assert.Equal(t, 0, m.BreathCyclesDetected)
	assert.False(t, m.PossibleApnea)
}

func TestEngine_NonFiniteSamplesAreNoops(t *testing.T) {
	e1, _ := New(DefaultEngineConfig())
	e2, _ := New(DefaultEngineConfig())
	e1.StartSession(0)
	e2.StartSession(0)

	for i := uint64(0); i < 200; i++ {
		x := float32(9.81 + 0.1*math.Sin(float64(i)*0.05))
		e1.FeedAccel(x, 0, 0, i*20)
		e2.FeedAccel(x, 0, 0, i*20)

		e1.FeedAccel(float32(math.NaN()), float32(math.Inf(1)), 0, i*20)
	}

	m1 := e1.Metrics(4000)
	m2 := e2.Metrics(4000)
	if diff := cmp.Diff(m2, m1); diff != "" {
		t.Errorf("non-finite samples changed engine state (-want +got):\n%s", diff)
	}
}

func TestEngine_StartSessionResetsState(t *testing.T) {
	e, err := New(DefaultEngineConfig())
	require.NoError(t, err)
	e.StartSession(0)

	for i := uint64(0); i < 500; i++ {
		x := float32(9.81 + 0.3*math.Sin(float64(i)*0.05))
		e.FeedAccel(x, 0.1, 0.2, i*20)
		e.FeedGyro(0.01, 0.02, 0.03, i*20)
	}

	baseline := e.Metrics(0)
	e.StartSession(99999)
	reset := e.Metrics(99999)

	assert.Equal(t, baseline.CurrentStage, reset.CurrentStage)
	assert.Equal(t, baseline.SignalQuality, reset.SignalQuality)
	assert.Equal(t, 0, reset.BreathCyclesDetected)
	assert.Equal(t, float32(0), reset.BreathingRateBPM)
	assert.Equal(t, float32(0), reset.MovementIntensity)
	assert.False(t, reset.PossibleApnea)
}

func TestEngine_SessionIDsAreUnique(t *testing.T) {
	e, err := New(DefaultEngineConfig())
	require.NoError(t, err)

	e.StartSession(0)
	first := e.SessionID()
	e.StartSession(1000)
	second := e.SessionID()

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, first.String(), "00000000-0000-0000-0000-000000000000")
}

func TestEngine_MetricsFieldsStayBounded(t *testing.T) {
	e, err := New(DefaultEngineConfig())
	require.NoError(t, err)
	e.StartSession(0)

	for i := uint64(0); i < 3000; i++ {
		tMs := i * 20
		ax := float32(9.81 + 0.4*math.Sin(float64(i)*0.031) + 0.05*math.Sin(float64(i)*1.7))
		ay := float32(0.2 * math.Cos(float64(i)*0.02))
		az := float32(0.1 * math.Sin(float64(i)*0.11))
		e.FeedAccel(ax, ay, az, tMs)
		e.FeedGyro(0.01, -0.02, 0.015, tMs)

		m := e.Metrics(tMs)
		assert.GreaterOrEqual(t, m.Confidence, float32(0))
		assert.LessOrEqual(t, m.Confidence, float32(1))
		assert.GreaterOrEqual(t, m.MovementIntensity, float32(0))
		assert.LessOrEqual(t, m.MovementIntensity, float32(1))
		assert.GreaterOrEqual(t, m.BreathingRegularity, float32(0))
		assert.LessOrEqual(t, m.BreathingRegularity, float32(1))
		assert.GreaterOrEqual(t, m.BreathingRateBPM, float32(0))
		assert.False(t, math.IsNaN(float64(m.InstabilityScore)))
		assert.False(t, math.IsInf(float64(m.InstabilityScore), 0))
	}
}

func TestEngine_Determinism(t *testing.T) {
	run := func() Metrics {
		e, _ := New(DefaultEngineConfig())
		e.StartSession(0)
		for i := uint64(0); i < 1000; i++ {
			tt := i * 20
			ax := float32(9.81 + 0.35*math.Sin(float64(i)*0.04))
			e.FeedAccel(ax, 0.05, -0.05, tt)
			e.FeedGyro(0.02, 0.0, -0.01, tt)
		}
		return e.Metrics(20000)
	}

	a := run()
	b := run()
	if diff := cmp.Diff(b, a); diff != "" {
		t.Errorf("identical input sequences produced different metrics (-want +got):\n%s", diff)
	}
}

func TestEngine_PossibleApneaAfterSilence(t *testing.T) {
	e, err := New(DefaultEngineConfig())
	require.NoError(t, err)
	e.StartSession(0)

	for i := uint64(0); i < 500; i++ {
		tt := i * 20
		ax := float32(9.81 + 0.4*math.Sin(float64(i)*0.05))
		e.FeedAccel(ax, 0, 0, tt)
	}

	quiet := e.Metrics(500*20 + 1)
	silent := e.Metrics(500*20 + 1 + DefaultEngineConfig().ApneaMs + 1)

	if quiet.BreathCyclesDetected > 0 {
		assert.True(t, silent.PossibleApnea)
	}
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "1.0.0", Version())
}

func TestZeroMetrics(t *testing.T) {
	m := ZeroMetrics()
	assert.Equal(t, StageUnknown, m.CurrentStage)
	assert.Equal(t, QualityUnknown, m.SignalQuality)
	assert.Equal(t, Metrics{CurrentStage: StageUnknown, SignalQuality: QualityUnknown}, m)
}
