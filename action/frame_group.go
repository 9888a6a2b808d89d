package action

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
)

// FrameGroup is the action log. Actions are recorded in bursts bracketed by
// BeginRecording and EndRecording; each finished burst becomes one group
// waiting to be committed.
//
// Recording and committing may happen on different goroutines. RecordFunc
// assigns ids under the log's mutex, so id order always matches record
// order and every group holds higher ids than the groups before it. The
// mutex is never held while actions are applied.
type FrameGroup struct {
	nextID atomic.Int64

	mu        sync.Mutex
	recording *group
	completed []*group
	pending   int
}

type group struct {
	actions []Action
	// implicit groups collect actions recorded outside a burst.
	implicit bool
}

// NewFrameGroup creates an empty action log.
func NewFrameGroup() *FrameGroup {
	return &FrameGroup{}
}

// GenID returns a fresh, strictly increasing action id.
func (g *FrameGroup) GenID() int64 {
	return g.nextID.Add(1)
}

// BeginRecording opens a burst. Recording is not reentrant: calling
// BeginRecording while a burst is open panics.
func (g *FrameGroup) BeginRecording() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.recording != nil {
		panic("action: BeginRecording called while recording")
	}
	g.recording = &group{}
}

// EndRecording closes the open burst and queues it for commit. It panics
// when no burst is open.
func (g *FrameGroup) EndRecording() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.recording == nil {
		panic("action: EndRecording called without BeginRecording")
	}
	g.completed = append(g.completed, g.recording)
	g.recording = nil
}

// IsRecording reports whether a burst is open.
func (g *FrameGroup) IsRecording() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.recording != nil
}

// Record appends a to the open burst. Outside a burst the action joins an
// implicit group that is already complete, so it is picked up by the next
// commit. It reports whether a burst was open.
//
// The caller owns a's id. Producers that need id order to follow record
// order use RecordFunc.
func (g *FrameGroup) Record(a Action) (inBurst bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.appendLocked(a)
}

// RecordFunc allocates the next id and records mk(id) in one step. It
// returns the id and whether a burst was open.
func (g *FrameGroup) RecordFunc(mk func(id int64) Action) (id int64, inBurst bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id = g.nextID.Add(1)
	return id, g.appendLocked(mk(id))
}

func (g *FrameGroup) appendLocked(a Action) bool {
	g.pending++
	if g.recording != nil {
		g.recording.actions = append(g.recording.actions, a)
		return true
	}
	if n := len(g.completed); n > 0 && g.completed[n-1].implicit {
		g.completed[n-1].actions = append(g.completed[n-1].actions, a)
		return false
	}
	g.completed = append(g.completed, &group{actions: []Action{a}, implicit: true})
	return false
}

// Pending returns the number of recorded actions not yet committed.
func (g *FrameGroup) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// Completed returns the number of finished groups waiting for commit.
func (g *FrameGroup) Completed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.completed)
}

// Result summarizes one commit.
type Result struct {
	// Applied counts actions whose target existed.
	Applied int
	// Dropped counts actions whose target layer was already gone.
	Dropped int
	// Groups counts the groups drained.
	Groups int
	// Structural counts applied actions that changed parent links.
	Structural int
}

// Total returns the number of actions taken from the log.
func (r Result) Total() int { return r.Applied + r.Dropped }

// Commit drains the oldest completed group, sorts its actions by id and
// applies them to t in that order.
//
// With forceFlushAll, every completed group and the actions of a burst that
// is still open are applied, repeating until the log holds nothing. The open
// burst itself stays open. This is used on teardown to bring the tree to a
// fully applied state.
func (g *FrameGroup) Commit(t Target, forceFlushAll bool) Result {
	var res Result
	if !forceFlushAll {
		batch, groups := g.take(takeOldest)
		res.Groups = groups
		apply(t, batch, &res)
		return res
	}
	for {
		batch, groups := g.take(takeAll)
		if groups == 0 && len(batch) == 0 {
			return res
		}
		res.Groups += groups
		apply(t, batch, &res)
	}
}

// CommitCompleted drains every completed group and applies their actions
// as one batch sorted by id. A burst that is still open is left alone.
func (g *FrameGroup) CommitCompleted(t Target) Result {
	batch, groups := g.take(takeCompleted)
	res := Result{Groups: groups}
	apply(t, batch, &res)
	return res
}

type takeMode uint8

const (
	takeOldest takeMode = iota
	takeCompleted
	takeAll
)

// take removes actions from the log under the lock.
func (g *FrameGroup) take(mode takeMode) ([]Action, int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if mode == takeOldest {
		if len(g.completed) == 0 {
			return nil, 0
		}
		grp := g.completed[0]
		g.completed[0] = nil
		g.completed = g.completed[1:]
		g.pending -= len(grp.actions)
		return grp.actions, 1
	}

	var batch []Action
	groups := len(g.completed)
	for _, grp := range g.completed {
		batch = append(batch, grp.actions...)
	}
	g.completed = nil
	if mode == takeAll && g.recording != nil && len(g.recording.actions) > 0 {
		batch = append(batch, g.recording.actions...)
		g.recording.actions = nil
	}
	g.pending -= len(batch)
	return batch, groups
}

func apply(t Target, batch []Action, res *Result) {
	slices.SortStableFunc(batch, func(a, b Action) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	for _, a := range batch {
		if !a.Apply(t) {
			res.Dropped++
			continue
		}
		res.Applied++
		if a.Kind().Structural() {
			res.Structural++
		}
	}
}
