// Package scheduler implements the per-tenant task scheduler: a
// persistent once/interval/cron task store, a fixed-interval tick loop,
// and a four-lane fair-scheduling queue that apportions concurrency
// between direct user turns, cron firings, sub-agent spawns, and
// inter-agent delegation so that none can starve the others.
package scheduler

import (
	"container/list"
	"sync"
	"time"
)

// Lane identifies one of the four priority queues a scheduled unit of
// work is dispatched through.
type Lane int

const (
	LaneMain Lane = iota
	LaneCron
	LaneSubagent
	LaneDelegate
	laneCount
)

func (l Lane) String() string {
	switch l {
	case LaneMain:
		return "main"
	case LaneCron:
		return "cron"
	case LaneSubagent:
		return "subagent"
	case LaneDelegate:
		return "delegate"
	default:
		return "unknown"
	}
}

// maxConcurrent is the per-lane concurrency cap, indexed by Lane.
var maxConcurrent = [laneCount]int{
	LaneMain:     4,
	LaneCron:     2,
	LaneSubagent: 3,
	LaneDelegate: 2,
}

// LaneTask is one unit of work queued through the lane scheduler.
type LaneTask struct {
	ID        string
	Lane      Lane
	AgentName string
	Input     string
	SessionID string
	QueuedAt  time.Time
}

type laneState struct {
	queue          *list.List
	active         int
	maxConcurrent  int
	totalProcessed uint64
}

func newLaneState(max int) *laneState {
	return &laneState{queue: list.New(), maxConcurrent: max}
}

func (s *laneState) canRun() bool {
	return s.active < s.maxConcurrent && s.queue.Len() > 0
}

// LaneScheduler apportions concurrency across the four priority lanes.
// Main is drained before Cron, Cron before Subagent, Subagent before
// Delegate — but only up to each lane's own concurrency cap, so a flood
// of cron tasks or delegated sub-agent spawns can never starve direct
// user traffic.
type LaneScheduler struct {
	mu    sync.Mutex
	lanes [laneCount]*laneState
}

// NewLaneScheduler builds a lane scheduler with the default concurrency
// caps (Main=4, Cron=2, Subagent=3, Delegate=2).
func NewLaneScheduler() *LaneScheduler {
	ls := &LaneScheduler{}
	for i := Lane(0); i < laneCount; i++ {
		ls.lanes[i] = newLaneState(maxConcurrent[i])
	}
	return ls
}

// Submit enqueues a task onto its lane.
func (ls *LaneScheduler) Submit(task LaneTask) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.lanes[task.Lane].queue.PushBack(task)
}

// Next pops the highest-priority task whose lane both has a queued item
// and has a free concurrency slot. Returns false if nothing is runnable.
func (ls *LaneScheduler) Next() (LaneTask, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for i := Lane(0); i < laneCount; i++ {
		state := ls.lanes[i]
		if !state.canRun() {
			continue
		}
		front := state.queue.Front()
		state.queue.Remove(front)
		state.active++
		return front.Value.(LaneTask), true
	}
	return LaneTask{}, false
}

// Complete frees one concurrency slot in the given lane.
func (ls *LaneScheduler) Complete(lane Lane) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	state := ls.lanes[lane]
	if state.active > 0 {
		state.active--
	}
	state.totalProcessed++
}

// LaneStats reports the current occupancy of one lane.
type LaneStats struct {
	Lane           Lane
	Queued         int
	Active         int
	MaxConcurrent  int
	TotalProcessed uint64
}

// Stats returns current occupancy for every lane, in priority order.
func (ls *LaneScheduler) Stats() []LaneStats {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([]LaneStats, laneCount)
	for i := Lane(0); i < laneCount; i++ {
		state := ls.lanes[i]
		out[i] = LaneStats{
			Lane:           i,
			Queued:         state.queue.Len(),
			Active:         state.active,
			MaxConcurrent:  state.maxConcurrent,
			TotalProcessed: state.totalProcessed,
		}
	}
	return out
}

// TotalPending returns the queued-plus-active count across every lane.
func (ls *LaneScheduler) TotalPending() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	total := 0
	for i := Lane(0); i < laneCount; i++ {
		total += ls.lanes[i].queue.Len() + ls.lanes[i].active
	}
	return total
}
