package app

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/guidoenr/backdrop/internal/params"
)

// profiler appends per-section frame timings and per-scene counters as CSV
// rows, and keeps running totals for each scene it saw.
type profiler struct {
	mu      sync.Mutex
	file    *os.File
	logger  *log.Logger
	tick    uint64
	start   time.Time
	last    time.Time
	enabled bool

	scene  params.Scene
	base   sceneCounters
	totals map[params.Scene]*sceneCounters
}

// sceneCounters is what a scene produced while profiled.
type sceneCounters struct {
	Ticks   uint64
	Frames  uint64
	Meteors uint64
}

// meteorCounter is implemented by scenes that launch meteors.
type meteorCounter interface {
	Meteors() uint64
}

func newProfiler(path string, logger *log.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if logger != nil {
			logger.Printf("profiler disabled: %v", err)
		}
		return nil
	}
	p := &profiler{
		file:    f,
		logger:  logger,
		enabled: true,
		totals:  make(map[params.Scene]*sceneCounters),
	}
	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		fmt.Fprintln(p.file, "timestamp,tick,scene,section,value")
	}
	return p
}

func (p *profiler) beginFrame(scene params.Scene) {
	if p == nil || !p.enabled {
		return
	}
	now := time.Now()
	p.tick++
	p.start = now
	p.last = now
	p.setScene(scene)
}

func (p *profiler) setScene(scene params.Scene) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if scene != p.scene {
		p.scene = scene
		p.base = sceneCounters{}
	}
}

func (p *profiler) markSection(name string) {
	if p == nil || !p.enabled {
		return
	}
	now := time.Now()
	delta := now.Sub(p.last).Seconds() * 1000
	p.last = now
	p.write(name, fmt.Sprintf("%.3f", delta))
}

// endFrame closes the tick with its total time and what the scene drew.
// frames and meteors are the scene's running counts.
func (p *profiler) endFrame(scene params.Scene, frames, meteors uint64) {
	if p == nil || !p.enabled {
		return
	}
	p.write("frame_total", fmt.Sprintf("%.3f", time.Since(p.start).Seconds()*1000))
	p.setScene(scene)

	p.mu.Lock()
	// a fresh renderer starts counting from zero again
	if frames < p.base.Frames || meteors < p.base.Meteors {
		p.base = sceneCounters{}
	}
	df, dm := frames-p.base.Frames, meteors-p.base.Meteors
	p.base.Frames, p.base.Meteors = frames, meteors
	t := p.totals[p.scene]
	if t == nil {
		t = &sceneCounters{}
		p.totals[p.scene] = t
	}
	t.Ticks++
	t.Frames += df
	t.Meteors += dm
	p.mu.Unlock()

	p.write("scene_frames", fmt.Sprint(df))
	p.write("meteors", fmt.Sprint(dm))
}

// counters returns the totals recorded for scene.
func (p *profiler) counters(scene params.Scene) sceneCounters {
	if p == nil {
		return sceneCounters{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if t := p.totals[scene]; t != nil {
		return *t
	}
	return sceneCounters{}
}

func (p *profiler) Close() error {
	if p == nil || !p.enabled {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = false
	if p.logger != nil {
		names := make([]string, 0, len(p.totals))
		for name := range p.totals {
			names = append(names, string(name))
		}
		sort.Strings(names)
		for _, name := range names {
			t := p.totals[params.Scene(name)]
			p.logger.Printf("profile %s: %d ticks, %d frames, %d meteors", name, t.Ticks, t.Frames, t.Meteors)
		}
	}
	if p.file == nil {
		return nil
	}
	return p.file.Close()
}

func (p *profiler) write(section, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return
	}
	timestamp := time.Now().Format(time.RFC3339Nano)
	if _, err := fmt.Fprintf(p.file, "%s,%d,%s,%s,%s\n", timestamp, p.tick, p.scene, section, value); err != nil && p.logger != nil {
		p.logger.Printf("profiler write: %v", err)
		p.file = nil
	}
}
