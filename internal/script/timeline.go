// Package script cues scene actions at simulation times, so hosts can run
// scripted presentation beats: camera moves, body entrances, rate changes.
package script

import (
	"fmt"
	"sort"
	"sync"

	"github.com/BewareOfTheRocks/rockviz/timectrl"
)

// Timeline schedules callbacks to run at specific simulation times.
//
// The driving loop advances the clock and then calls RunDue once per frame.
// Cues sharing a time run in the order they were scheduled.
type Timeline interface {
	// Schedule registers a callback f to run at simulation time at. It
	// returns an opaque cue ID usable with Cancel.
	Schedule(at float64, f func()) (id string)

	// Cancel drops a scheduled cue. It is a no-op if the ID is unknown or
	// the cue already ran.
	Cancel(id string)

	// Now returns the current simulation time from the underlying clock.
	Now() float64

	// RunDue executes every cue whose time is <= Now(), earliest first.
	// Safe to call repeatedly; a cue runs at most once.
	RunDue()

	// Pending reports how many cues are still waiting.
	Pending() int
}

type cue struct {
	id        string
	when      float64
	f         func()
	cancelled bool
}

// timeline keeps cues ordered earliest first and runs them against a
// SimClock.
type timeline struct {
	clock timectrl.SimClock

	mu      sync.Mutex
	counter uint64
	cues    []*cue
	index   map[string]*cue
}

// NewTimeline creates a timeline backed by the given clock. Normal runs pass
// the TimeController; tests pass a fake SimClock.
func NewTimeline(clock timectrl.SimClock) Timeline {
	return &timeline{
		clock: clock,
		index: make(map[string]*cue),
	}
}

func (tl *timeline) Schedule(at float64, f func()) (id string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.counter++
	id = fmt.Sprintf("cue-%d", tl.counter)

	c := &cue{id: id, when: at, f: f}
	tl.addCueLocked(c)
	tl.index[id] = c
	return id
}

// addCueLocked inserts a cue keeping the slice ordered by time, after any
// cue already holding the same time. Caller must hold tl.mu.
func (tl *timeline) addCueLocked(c *cue) {
	idx := sort.Search(len(tl.cues), func(i int) bool {
		return tl.cues[i].when > c.when
	})
	tl.cues = append(tl.cues, nil)
	copy(tl.cues[idx+1:], tl.cues[idx:])
	tl.cues[idx] = c
}

func (tl *timeline) Cancel(id string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	c, ok := tl.index[id]
	if !ok {
		return
	}
	c.cancelled = true
	delete(tl.index, id)
	// Removal from the ordered slice is lazy; RunDue discards cancelled
	// cues as it reaches them.
}

func (tl *timeline) Now() float64 {
	return tl.clock.Now()
}

func (tl *timeline) RunDue() {
	for {
		tl.mu.Lock()
		c := tl.popDueLocked()
		if c == nil {
			tl.mu.Unlock()
			return
		}
		delete(tl.index, c.id)
		tl.mu.Unlock()

		// Run the cue outside the lock so it may schedule or cancel others.
		// A cue scheduled for a past time from inside a callback still runs
		// in this same sweep.
		if c.f != nil {
			c.f()
		}
	}
}

// popDueLocked removes and returns the earliest due cue, discarding
// cancelled ones along the way. Caller must hold tl.mu.
func (tl *timeline) popDueLocked() *cue {
	now := tl.clock.Now()
	for len(tl.cues) > 0 {
		c := tl.cues[0]
		if c.cancelled {
			tl.cues = tl.cues[1:]
			continue
		}
		if c.when > now {
			return nil
		}
		tl.cues = tl.cues[1:]
		return c
	}
	return nil
}

func (tl *timeline) Pending() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	n := 0
	for _, c := range tl.cues {
		if !c.cancelled {
			n++
		}
	}
	return n
}
