package app

import (
	"sync"
	"sync/atomic"
	"time"
)

// blinkInterval is the cursor blink half-period.
const blinkInterval = 500 * time.Millisecond

// Scheduler drives frame production at the display refresh rate.
// PTY readers and commands set a shared dirty flag; on each tick the
// scheduler posts a single Wakeup when the flag is set or an overlay
// animation (cursor blink) is due. Renders that overrun a refresh
// interval are never cancelled: the flag stays set and the next tick
// schedules the next frame.
type Scheduler struct {
	interval time.Duration
	dirty    atomic.Bool

	// needsBlink asks the app whether any active terminal currently
	// shows a blinking cursor.
	needsBlink func() bool
	notify     func()

	lastBlinkOn atomic.Bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// newScheduler creates a scheduler ticking at refreshHz.
func newScheduler(refreshHz int, needsBlink func() bool, notify func()) *Scheduler {
	if refreshHz <= 0 {
		refreshHz = 60
	}
	return &Scheduler{
		interval:   time.Second / time.Duration(refreshHz),
		needsBlink: needsBlink,
		notify:     notify,
		stop:       make(chan struct{}),
	}
}

// start launches the tick loop (the display-link analogue).
func (s *Scheduler) start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if s.dueAt(now) {
				s.notify()
			}
		case <-s.stop:
			return
		}
	}
}

// dueAt decides whether this tick produces a wakeup: content damage
// since the last frame, or a blink phase flip on a visible blinking
// cursor.
func (s *Scheduler) dueAt(now time.Time) bool {
	due := s.dirty.Swap(false)

	if s.needsBlink() {
		on := BlinkPhase(now)
		if s.lastBlinkOn.Swap(on) != on {
			due = true
		}
	}
	return due
}

// MarkDirty coalesces a damage signal into the next tick.
func (s *Scheduler) MarkDirty() {
	s.dirty.Store(true)
}

// Dirty reports whether a wakeup is pending.
func (s *Scheduler) Dirty() bool {
	return s.dirty.Load()
}

// close stops the tick loop.
func (s *Scheduler) close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

// BlinkPhase derives the cursor blink phase from the wall clock; it is
// never stored in terminal state.
func BlinkPhase(now time.Time) bool {
	return (now.UnixMilli()/int64(blinkInterval/time.Millisecond))%2 == 0
}
