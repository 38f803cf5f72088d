package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

// Stage is the measurement of one named phase of a load.
type Stage struct {
	Name     string
	Duration time.Duration
	HeapMB   float64 // live heap at the end of the stage
	AllocMB  float64 // bytes allocated during the stage
	GCCount  uint32  // collections that ran during the stage
}

// Profiler records named stage durations and heap statistics for a load.
// Each finished stage is logged at Debug level through common.Logger.
// A nil *Profiler is valid and records nothing.
type Profiler struct {
	mu sync.Mutex

	stages []Stage

	current        string
	stageStart     time.Time
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with no recorded stages.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{}
}

// Begin closes the running stage, if any, and starts a new one.
//
// Parameters:
//   - name: the name of the stage
func (p *Profiler) Begin(name string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != "" {
		p.endLocked()
	}
	runtime.ReadMemStats(&p.memStats)
	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.current = name
	p.stageStart = time.Now()
}

// End closes the running stage.
//
// Returns:
//   - Stage: the finished stage, zero when no stage was running
func (p *Profiler) End() Stage {
	if p == nil {
		return Stage{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == "" {
		return Stage{}
	}
	return p.endLocked()
}

func (p *Profiler) endLocked() Stage {
	elapsed := time.Since(p.stageStart)
	runtime.ReadMemStats(&p.memStats)

	// Alloc: live heap. TotalAlloc: cumulative, its delta is the churn of the stage.
	st := Stage{
		Name:     p.current,
		Duration: elapsed,
		HeapMB:   float64(p.memStats.Alloc) / 1024 / 1024,
		AllocMB:  float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024,
		GCCount:  p.memStats.NumGC - p.lastGCCount,
	}
	p.stages = append(p.stages, st)
	p.current = ""

	common.Logger().Debug("[Profiler] stage finished",
		"stage", st.Name,
		"duration", st.Duration,
		"heap_mb", st.HeapMB,
		"alloc_mb", st.AllocMB,
		"gc", st.GCCount,
	)
	return st
}

// Stages returns a copy of the finished stages in order.
func (p *Profiler) Stages() []Stage {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Stage(nil), p.stages...)
}

// Total returns the summed duration of the finished stages.
func (p *Profiler) Total() time.Duration {
	var total time.Duration
	for _, st := range p.Stages() {
		total += st.Duration
	}
	return total
}

// Reset discards every recorded stage and any running one.
func (p *Profiler) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = nil
	p.current = ""
}
