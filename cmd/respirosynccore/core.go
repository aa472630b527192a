// Command respirosynccore is the cgo C-ABI boundary layer (C9): an
// opaque-handle surface over internal/respiro consumed by mobile-platform
// adapters. It owns nothing besides the handle registry; all pipeline
// state lives in the internal/respiro.Engine values it guards.
package main

/*
#include <stdint.h>

typedef struct {
	int32_t  current_stage;
	float    confidence;
	float    breathing_rate_bpm;
	float    breathing_regularity;
	float    movement_intensity;
	int32_t  breath_cycles_detected;
	uint8_t  possible_apnea;
	int32_t  signal_quality;
	float    signal_noise_ratio;
	float    instability_score;
	uint8_t  instability_detected;
} respirosync_metrics_t;
*/
import "C"

import (
	"log"
	"sync"

	"github.com/respirosync/core/internal/respiro"
)

var (
	registryMu sync.Mutex
	registry   = make(map[C.uintptr_t]*respiro.Engine)
	nextHandle C.uintptr_t = 1
)

// versionCString is allocated once and handed back by every call to
// respirosync_version; callers must not free it, matching the "static
// string" contract of the version() ABI.
var versionCString = C.CString(respiro.Version())

// recoverInto contains a panic inside one boundary call, logging it the way
// services in this codebase log recovered faults. It writes no output
// itself; respirosync_get_metrics fills its output with the safe-default
// record before doing any work that could fault.
func recoverInto(who string) {
	if r := recover(); r != nil {
		log.Printf("respirosync: recovered panic in %s: %v", who, r)
	}
}

func lookup(handle C.uintptr_t) *respiro.Engine {
	if handle == 0 {
		return nil
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[handle]
}

//export respirosync_create
func respirosync_create() C.uintptr_t {
	defer recoverInto("create")

	e, err := respiro.New(respiro.DefaultEngineConfig())
	if err != nil {
		return 0
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	h := nextHandle
	nextHandle++
	registry[h] = e
	return h
}

//export respirosync_destroy
func respirosync_destroy(handle C.uintptr_t) {
	defer recoverInto("destroy")

	if handle == 0 {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, handle)
}

//export respirosync_start_session
func respirosync_start_session(handle C.uintptr_t, tMs C.uint64_t) {
	defer recoverInto("start_session")

	e := lookup(handle)
	if e == nil {
		return
	}
	e.StartSession(uint64(tMs))
}

//export respirosync_feed_gyro
func respirosync_feed_gyro(handle C.uintptr_t, x, y, z C.float, tMs C.uint64_t) {
	defer recoverInto("feed_gyro")

	e := lookup(handle)
	if e == nil {
		return
	}
	e.FeedGyro(float32(x), float32(y), float32(z), uint64(tMs))
}

//export respirosync_feed_accel
func respirosync_feed_accel(handle C.uintptr_t, x, y, z C.float, tMs C.uint64_t) {
	defer recoverInto("feed_accel")

	e := lookup(handle)
	if e == nil {
		return
	}
	e.FeedAccel(float32(x), float32(y), float32(z), uint64(tMs))
}

//export respirosync_get_metrics
func respirosync_get_metrics(handle C.uintptr_t, tMs C.uint64_t, out *C.respirosync_metrics_t) {
	defer recoverInto("get_metrics")

	if out == nil {
		return
	}

	// Write the safe-default record first, so a fault while computing the
	// snapshot leaves that record in out.
	writeMetrics(out, respiro.ZeroMetrics())

	e := lookup(handle)
	if e == nil {
		return
	}

	m := e.Metrics(uint64(tMs))
	writeMetrics(out, m)
}

func writeMetrics(out *C.respirosync_metrics_t, m respiro.Metrics) {
	out.current_stage = C.int32_t(m.CurrentStage)
	out.confidence = C.float(m.Confidence)
	out.breathing_rate_bpm = C.float(m.BreathingRateBPM)
	out.breathing_regularity = C.float(m.BreathingRegularity)
	out.movement_intensity = C.float(m.MovementIntensity)
	out.breath_cycles_detected = C.int32_t(m.BreathCyclesDetected)
	out.possible_apnea = boolToUint8(m.PossibleApnea)
	out.signal_quality = C.int32_t(m.SignalQuality)
	out.signal_noise_ratio = C.float(m.SignalNoiseRatio)
	out.instability_score = C.float(m.InstabilityScore)
	out.instability_detected = boolToUint8(m.InstabilityDetected)
}

func boolToUint8(b bool) C.uint8_t {
	if b {
		return 1
	}
	return 0
}

//export respirosync_version
func respirosync_version() *C.char {
	return versionCString
}

// registrySize exposes the registry's live-handle count for tests; it is
// not part of the exported C-ABI.
func registrySize() int {
	registryMu.Lock()
	defer registryMu.Unlock()
	return len(registry)
}

// metricsT and the helpers below give core_test.go a cgo-free way to
// exercise the cgo boundary: the Go toolchain does not support
// `import "C"` inside _test.go files.
type metricsT struct {
	CurrentStage         int32
	Confidence           float32
	BreathingRateBPM     float32
	BreathingRegularity  float32
	MovementIntensity    float32
	BreathCyclesDetected int32
	PossibleApnea        uint8
	SignalQuality        int32
	SignalNoiseRatio     float32
	InstabilityScore     float32
	InstabilityDetected  uint8
}

func getMetricsForTest(handle C.uintptr_t, tMs uint64) metricsT {
	var out C.respirosync_metrics_t
	respirosync_get_metrics(handle, C.uint64_t(tMs), &out)
	return metricsT{
		CurrentStage:         int32(out.current_stage),
		Confidence:           float32(out.confidence),
		BreathingRateBPM:     float32(out.breathing_rate_bpm),
		BreathingRegularity:  float32(out.breathing_regularity),
		MovementIntensity:    float32(out.movement_intensity),
		BreathCyclesDetected: int32(out.breath_cycles_detected),
		PossibleApnea:        uint8(out.possible_apnea),
		SignalQuality:        int32(out.signal_quality),
		SignalNoiseRatio:     float32(out.signal_noise_ratio),
		InstabilityScore:     float32(out.instability_score),
		InstabilityDetected:  uint8(out.instability_detected),
	}
}

func versionStringForTest() string {
	return C.GoString(respirosync_version())
}

func msForTest(tMs uint64) C.uint64_t {
	return C.uint64_t(tMs)
}

func zeroHandleForTest() C.uintptr_t {
	return 0
}
