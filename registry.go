package rangepatch

import "sync"

const registryShards = 64

// runRegistry remembers maximal runs that have already been found, keyed by diagonal.
// Expanding any anchor inside a known run on the same diagonal yields that run again,
// so workers consult the registry to skip such anchors. A stale answer only costs a
// redundant expansion.
type runRegistry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	sync.RWMutex
	runs map[int][]Range // diagonal -> old-side ranges
}

func newRunRegistry() *runRegistry {
	r := new(runRegistry)
	for i := range r.shards {
		r.shards[i].runs = make(map[int][]Range)
	}
	return r
}

func (r *runRegistry) shard(diag int) *registryShard {
	return &r.shards[uint(diag)%registryShards]
}

func (r *runRegistry) add(m Match) {
	d := m.diagonal()
	sh := r.shard(d)
	sh.Lock()
	sh.runs[d] = append(sh.runs[d], m.Old)
	sh.Unlock()
}

// lookup returns the old-side range of a known run containing the anchor (o, n).
func (r *runRegistry) lookup(o, n int) (Range, bool) {
	d := n - o
	sh := r.shard(d)
	sh.RLock()
	defer sh.RUnlock()

	for _, run := range sh.runs[d] {
		if run.Contains(o) {
			return run, true
		}
	}
	return Range{}, false
}
