package merge

import (
	"sync"
	"sync/atomic"
)

// Phase is the process-wide position in the shutdown sequence. Transitions
// only move forward.
type Phase int32

const (
	Traversing Phase = iota
	HashingDrain
	WritingDrain
	Done
)

func (p Phase) String() string {
	switch p {
	case Traversing:
		return "traversing"
	case HashingDrain:
		return "hashing-drain"
	case WritingDrain:
		return "writing-drain"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// pipeline is the state shared by reference between the traversal driver
// and both pools: the two "finished" flags and the arena hand-off between
// hash workers and write workers.
type pipeline struct {
	phase         atomic.Int32
	traversalDone atomic.Bool
	hashingDone   atomic.Bool

	// mu guards arena; cond is signaled whenever a path is appended or
	// a flag that write workers wait on changes.
	mu    sync.Mutex
	cond  *sync.Cond
	arena *PathArena

	stats *Stats
	log   *Logger
}

func newPipeline(arena *PathArena, stats *Stats, log *Logger) *pipeline {
	p := &pipeline{
		arena: arena,
		stats: stats,
		log:   log,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *pipeline) Phase() Phase {
	return Phase(p.phase.Load())
}

func (p *pipeline) advance(to Phase) {
	for {
		cur := p.phase.Load()
		if Phase(cur) >= to || p.phase.CompareAndSwap(cur, int32(to)) {
			return
		}
	}
}

// handOff appends path to the arena and wakes one writer. It returns false
// when the arena rejected the path.
func (p *pipeline) handOff(path string) bool {
	p.mu.Lock()
	ok := p.arena.Append(path)
	p.mu.Unlock()

	if ok {
		p.cond.Signal()
	}
	return ok
}

// finishTraversal marks the walk complete. The hash pool's Notify wakes its
// workers.
func (p *pipeline) finishTraversal() {
	p.traversalDone.Store(true)
	p.advance(HashingDrain)
}

// finishHashing marks every hash worker joined and wakes all writers so
// they drain the arena and exit.
func (p *pipeline) finishHashing() {
	p.hashingDone.Store(true)
	p.advance(WritingDrain)

	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}
