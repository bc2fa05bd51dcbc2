package merge

// PathArena is a fixed-capacity stack of candidate paths waiting to be
// written. All slots are allocated once at construction; Append never grows
// the backing slice, so a full arena rejects new paths instead of buffering
// them without bound.
//
// PathArena is not safe for concurrent use. Callers hold the hand-off lock
// across any Empty/Last/PopLast sequence.
type PathArena struct {
	slots      []string
	count      int
	maxPathLen int
}

// NewPathArena creates an arena with room for capacity paths of at most
// maxPathLen bytes each.
func NewPathArena(capacity, maxPathLen int) *PathArena {
	return &PathArena{
		slots:      make([]string, capacity),
		maxPathLen: maxPathLen,
	}
}

// Append stores path in the next free slot. It returns false when the arena
// is full or when path does not fit in a slot.
func (a *PathArena) Append(path string) bool {
	if a.count == len(a.slots) || len(path) > a.maxPathLen {
		return false
	}
	a.slots[a.count] = path
	a.count++
	return true
}

// Last returns the most recently appended path. Requires a non-empty arena.
func (a *PathArena) Last() string {
	return a.slots[a.count-1]
}

// PopLast clears the most recently appended slot. Requires a non-empty arena.
func (a *PathArena) PopLast() {
	a.count--
	a.slots[a.count] = ""
}

func (a *PathArena) Empty() bool { return a.count == 0 }

func (a *PathArena) Len() int { return a.count }

func (a *PathArena) Cap() int { return len(a.slots) }
