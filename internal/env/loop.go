package env

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Loop is the reference Host. Host-side setters are safe from any goroutine;
// their effects and all renderer callbacks happen inside Step.
type Loop struct {
	mu sync.Mutex

	now        time.Time
	viewport   Viewport
	hidden     bool
	appearance Appearance
	scrollY    float64
	pointerX   float64
	pointerY   float64

	tasks []func()

	nextFrame int
	frames    map[int]func(time.Time)

	nextTimer int
	timers    map[int]*timer

	resize     handlers[Viewport]
	visibility handlers[bool]
	appear     handlers[Appearance]
	scroll     handlers[float64]
	pointer    handlers[[2]float64]
}

type timer struct {
	id  int
	due time.Time
	fn  func()
}

// NewLoop creates a loop with the given initial viewport.
func NewLoop(vp Viewport) *Loop {
	return &Loop{
		now:      time.Now(),
		viewport: sanitizeViewport(vp),
		frames:   make(map[int]func(time.Time)),
		timers:   make(map[int]*timer),
	}
}

// Step runs one turn of the loop at the given instant: queued host tasks
// first, then due timers, then the frame callbacks requested before this call.
func (l *Loop) Step(now time.Time) {
	l.mu.Lock()
	if now.After(l.now) {
		l.now = now
	}
	tasks := l.tasks
	l.tasks = nil
	l.mu.Unlock()

	for _, task := range tasks {
		task()
	}

	l.fireTimers()

	l.mu.Lock()
	ids := make([]int, 0, len(l.frames))
	for id := range l.frames {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	frameTime := l.now
	l.mu.Unlock()

	for _, id := range ids {
		l.mu.Lock()
		cb, ok := l.frames[id]
		delete(l.frames, id)
		l.mu.Unlock()
		if ok {
			cb(frameTime)
		}
	}
}

func (l *Loop) fireTimers() {
	l.mu.Lock()
	due := make([]*timer, 0, len(l.timers))
	for _, t := range l.timers {
		if !t.due.After(l.now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].id < due[j].id
		}
		return due[i].due.Before(due[j].due)
	})
	l.mu.Unlock()

	for _, t := range due {
		l.mu.Lock()
		_, live := l.timers[t.id]
		delete(l.timers, t.id)
		l.mu.Unlock()
		if live {
			t.fn()
		}
	}
}

// Run steps the loop on a ticker until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second / 60
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			l.Step(now)
		}
	}
}

// Pending reports how many frame requests and timers are outstanding.
func (l *Loop) Pending() (frames, timers int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames), len(l.timers)
}

func (l *Loop) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// RequestFrame schedules cb for the next Step and returns a handle for CancelFrame.
func (l *Loop) RequestFrame(cb func(now time.Time)) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextFrame++
	l.frames[l.nextFrame] = cb
	return l.nextFrame
}

func (l *Loop) CancelFrame(id int) {
	l.mu.Lock()
	delete(l.frames, id)
	l.mu.Unlock()
}

// AfterFunc runs fn on the first Step at or after now+d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextTimer++
	l.timers[l.nextTimer] = &timer{id: l.nextTimer, due: l.now.Add(d), fn: fn}
	return l.nextTimer
}

// StopTimer cancels a pending timer and reports whether it was still pending.
func (l *Loop) StopTimer(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.timers[id]; !ok {
		return false
	}
	delete(l.timers, id)
	return true
}

// Post queues fn for the start of the next Step.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
}

func (l *Loop) Viewport() Viewport {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.viewport
}

func (l *Loop) Hidden() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hidden
}

func (l *Loop) Appearance() Appearance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appearance
}

func (l *Loop) ScrollY() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scrollY
}

func (l *Loop) Pointer() (float64, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pointerX, l.pointerY
}

// Resize queues a viewport change.
func (l *Loop) Resize(width, height, dpr float64) {
	vp := sanitizeViewport(Viewport{Width: width, Height: height, DPR: dpr})
	l.Post(func() {
		l.mu.Lock()
		l.viewport = vp
		l.mu.Unlock()
		dispatch(l, &l.resize, vp)
	})
}

// SetHidden queues a visibility change. Listeners only hear actual transitions.
func (l *Loop) SetHidden(hidden bool) {
	l.Post(func() {
		l.mu.Lock()
		changed := l.hidden != hidden
		l.hidden = hidden
		l.mu.Unlock()
		if changed {
			dispatch(l, &l.visibility, hidden)
		}
	})
}

// SetAppearance queues a theme change.
func (l *Loop) SetAppearance(a Appearance) {
	l.Post(func() {
		l.mu.Lock()
		l.appearance = a
		l.mu.Unlock()
		dispatch(l, &l.appear, a)
	})
}

// Scroll queues a vertical scroll position update.
func (l *Loop) Scroll(y float64) {
	l.Post(func() {
		l.mu.Lock()
		l.scrollY = y
		l.mu.Unlock()
		dispatch(l, &l.scroll, y)
	})
}

// PointerMove queues a pointer position in logical viewport pixels.
func (l *Loop) PointerMove(x, y float64) {
	l.Post(func() {
		l.mu.Lock()
		l.pointerX, l.pointerY = x, y
		l.mu.Unlock()
		dispatch(l, &l.pointer, [2]float64{x, y})
	})
}

func (l *Loop) OnResize(fn func(Viewport)) func() {
	return subscribe(l, &l.resize, fn)
}

func (l *Loop) OnVisibilityChange(fn func(hidden bool)) func() {
	return subscribe(l, &l.visibility, fn)
}

func (l *Loop) OnAppearanceChange(fn func(Appearance)) func() {
	return subscribe(l, &l.appear, fn)
}

func (l *Loop) OnScroll(fn func(y float64)) func() {
	return subscribe(l, &l.scroll, fn)
}

func (l *Loop) OnPointerMove(fn func(x, y float64)) func() {
	return subscribe(l, &l.pointer, func(p [2]float64) { fn(p[0], p[1]) })
}

// Listeners reports the number of live subscriptions across all signals.
func (l *Loop) Listeners() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.resize.fns) + len(l.visibility.fns) + len(l.appear.fns) + len(l.scroll.fns) + len(l.pointer.fns)
}

type handlers[T any] struct {
	next int
	fns  map[int]func(T)
}

func (h *handlers[T]) ids() []int {
	ids := make([]int, 0, len(h.fns))
	for id := range h.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// dispatch calls listeners in subscription order, skipping any that were
// cancelled by an earlier listener in the same dispatch.
func dispatch[T any](l *Loop, h *handlers[T], v T) {
	l.mu.Lock()
	ids := h.ids()
	l.mu.Unlock()
	for _, id := range ids {
		l.mu.Lock()
		fn, ok := h.fns[id]
		l.mu.Unlock()
		if ok {
			fn(v)
		}
	}
}

func subscribe[T any](l *Loop, h *handlers[T], fn func(T)) func() {
	l.mu.Lock()
	if h.fns == nil {
		h.fns = make(map[int]func(T))
	}
	h.next++
	id := h.next
	h.fns[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(h.fns, id)
			l.mu.Unlock()
		})
	}
}
