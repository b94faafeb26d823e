package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
)

// CacheStats is a snapshot of a pipeline cache, reported alongside frame statistics.
type CacheStats struct {
	Name    string
	Entries int
	Hits    uint64
	Misses  uint64
}

// Report is one interval of frame statistics.
type Report struct {
	FPS         float64
	FrameTime   time.Duration
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	Caches      []CacheStats
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Outputs stats to the engine logger at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	caches         func() []CacheStats
	last           Report
}

// NewProfiler creates a new Profiler reporting once per interval.
// An interval <= 0 defaults to 1 second.
//
// Parameters:
//   - interval: the reporting interval
//   - caches: optional source of pipeline cache statistics, may be nil
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(interval time.Duration, caches func() []CacheStats) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: interval,
		caches:         caches,
	}
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	return p.tick(time.Now())
}

// Last returns the most recent report, zero before the first interval elapsed.
func (p *Profiler) Last() Report {
	return p.last
}

func (p *Profiler) tick(now time.Time) bool {
	p.frameCount++
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	r := Report{
		FPS:       float64(p.frameCount) / elapsed.Seconds(),
		FrameTime: elapsed / time.Duration(p.frameCount),
		HeapMB:    float64(p.memStats.Alloc) / 1024 / 1024,
		GCCount:   p.memStats.NumGC,
	}
	r.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses.
	if r.GCCount > 0 {
		r.LastPauseUs = p.memStats.PauseNs[(r.GCCount+255)%256] / 1000
		start := p.lastGCCount
		if r.GCCount-start > 256 {
			start = r.GCCount - 256
		}
		for i := start; i < r.GCCount; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}
	if p.caches != nil {
		r.Caches = p.caches()
	}

	log := logger.Logger()
	log.Info("profiler",
		"fps", r.FPS,
		"frame_time", r.FrameTime,
		"heap_mb", r.HeapMB,
		"alloc_rate_mb", r.AllocRateMB,
		"gc", r.GCCount,
		"gc_last_us", r.LastPauseUs,
		"gc_max_us", r.MaxPauseUs,
	)
	for _, c := range r.Caches {
		log.Info("profiler cache", "cache", c.Name, "entries", c.Entries, "hits", c.Hits, "misses", c.Misses)
	}

	p.last = r
	p.frameCount = 0
	p.lastTime = now
	p.lastGCCount = r.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
