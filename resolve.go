package rangepatch

import (
	"slices"
	"sort"
	"sync"
)

// Resolve reduces candidates to a set that can be turned into an edit script: no two
// members overlap in the old buffer, none overlap in the new buffer, and their order
// is the same in both. Whenever two candidates cross or overlap the longer one is
// kept; equal lengths go to the earlier old offset, then the earlier new offset.
//
// The result is sorted by Old.Start and depends only on the set of candidates, not on
// their order. Resolving a resolved set returns it unchanged.
func Resolve(candidates []Match) []Match {
	order := slices.Clone(candidates)
	sort.Slice(order, func(i, j int) bool {
		return order[i].outranks(order[j])
	})

	// kept never overlaps or crosses itself, so it is sorted by Old.Start and
	// New.Start at once and a candidate only needs to be compared with the members
	// on either side of its insertion point.
	var kept []Match
	for _, m := range order {
		i := sort.Search(len(kept), func(k int) bool { return kept[k].Old.Start >= m.Old.Start })
		if crossesNeighbour(kept, i, m) || overlapsNeighbour(kept, i, m) {
			continue
		}
		kept = slices.Insert(kept, i, m)
	}

	return kept
}

func crossesNeighbour(kept []Match, i int, m Match) bool {
	return (i > 0 && kept[i-1].Crosses(m)) || (i < len(kept) && kept[i].Crosses(m))
}

func overlapsNeighbour(kept []Match, i int, m Match) bool {
	for _, k := range []int{i - 1, i} {
		if k < 0 || k >= len(kept) {
			continue
		}
		if kept[k].Old.Overlaps(m.Old) || kept[k].New.Overlaps(m.New) {
			return true
		}
	}
	return false
}

// batch collects one worker's candidates between merges.
//
// admit is first come, first served: a candidate overlapping anything already in the
// batch is deferred regardless of its length. Deferred candidates still reach the
// accepted set's candidate pool, so they are only kept out of the live view.
type batch struct {
	members  []Match
	deferred []Match
}

func (b *batch) admit(m Match) bool {
	for _, a := range b.members {
		if a.Old.Overlaps(m.Old) || a.New.Overlaps(m.New) {
			b.deferred = append(b.deferred, m)
			return false
		}
	}
	b.members = append(b.members, m)
	return true
}

func (b *batch) len() int {
	return len(b.members) + len(b.deferred)
}

func (b *batch) reset() {
	b.members = b.members[:0]
	b.deferred = b.deferred[:0]
}

// acceptedSet is the shared result of all workers.
type acceptedSet struct {
	mu      sync.Mutex
	members []Match            // resolved view of everything admitted so far
	pool    map[Match]struct{} // every distinct candidate ever merged
}

func newAcceptedSet() *acceptedSet {
	return &acceptedSet{pool: make(map[Match]struct{})}
}

// merge folds b into the set and resolves it. It returns how many members the set
// gained (negative if the batch displaced more than it added).
func (s *acceptedSet) merge(b *batch) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range b.members {
		s.pool[m] = struct{}{}
	}
	for _, m := range b.deferred {
		s.pool[m] = struct{}{}
	}

	before := len(s.members)
	live := make([]Match, 0, len(s.members)+len(b.members))
	live = append(live, s.members...)
	live = append(live, b.members...)
	s.members = Resolve(live)

	return len(s.members) - before
}

func (s *acceptedSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// freeze resolves every candidate ever merged, deferred and displaced ones included,
// and returns the final set sorted by Old.Start.
func (s *acceptedSet) freeze() []Match {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]Match, 0, len(s.pool))
	for m := range s.pool {
		all = append(all, m)
	}
	s.members = Resolve(all)

	return slices.Clone(s.members)
}
