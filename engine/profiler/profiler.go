package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// StageTiming is the measurement of one named stage.
type StageTiming struct {
	Stage     string
	Duration  time.Duration
	HeapDelta int64 // bytes of live heap gained (negative if a GC ran mid-stage)
	Allocated uint64
}

// Profiler records wall-clock duration and heap usage of named stages, e.g. the stages of one asset load.
// It is safe for concurrent use.
type Profiler struct {
	mu         sync.Mutex
	stages     []StageTiming
	readMemory bool
}

// NewProfiler creates a new Profiler.
//
// Parameters:
//   - readMemory: true to sample runtime.MemStats around every stage (stops the world briefly)
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(readMemory bool) *Profiler {
	return &Profiler{readMemory: readMemory}
}

// Start begins timing a stage. Call the returned function when the stage ends.
//
// Parameters:
//   - stage: the stage name
//
// Returns:
//   - func(): stops the timer and records the stage
func (p *Profiler) Start(stage string) func() {
	var before runtime.MemStats
	if p.readMemory {
		runtime.ReadMemStats(&before)
	}
	start := time.Now()

	return func() {
		t := StageTiming{Stage: stage, Duration: time.Since(start)}
		if p.readMemory {
			var after runtime.MemStats
			runtime.ReadMemStats(&after)
			t.HeapDelta = int64(after.Alloc) - int64(before.Alloc)
			t.Allocated = after.TotalAlloc - before.TotalAlloc
		}

		p.mu.Lock()
		p.stages = append(p.stages, t)
		p.mu.Unlock()
	}
}

// Stages returns a copy of the recorded stages in completion order.
//
// Returns:
//   - []StageTiming: the recorded stages
func (p *Profiler) Stages() []StageTiming {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StageTiming, len(p.stages))
	copy(out, p.stages)
	return out
}

// Total returns the summed duration of every recorded stage.
func (p *Profiler) Total() time.Duration {
	var total time.Duration
	for _, s := range p.Stages() {
		total += s.Duration
	}
	return total
}

// Report logs every recorded stage at debug level, followed by the total.
//
// Parameters:
//   - logger: the destination logger
//   - keyvals: extra key/value context attached to every line
func (p *Profiler) Report(logger *log.Logger, keyvals ...any) {
	if logger == nil || logger.GetLevel() > log.DebugLevel {
		return
	}
	for _, s := range p.Stages() {
		kv := append([]any{"stage", s.Stage, "took", s.Duration}, keyvals...)
		if p.readMemory {
			kv = append(kv, "heap_kb", s.HeapDelta/1024, "alloc_kb", s.Allocated/1024)
		}
		logger.Debug("stage complete", kv...)
	}
	logger.Debug("load complete", append([]any{"took", p.Total()}, keyvals...)...)
}
