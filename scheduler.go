package rangepatch

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Progress is a snapshot of a running search, delivered through WithProgress.
type Progress struct {
	Workers map[int]float64 // busy slot id -> percent of its sub-range searched
	Elapsed time.Duration
	Matches int // size of the live accepted set
}

// IDs returns the busy slot ids in ascending order.
func (p Progress) IDs() []int {
	ids := make([]int, 0, len(p.Workers))
	for id := range p.Workers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// task is a slice [lo, hi) of one bucket's old-side offsets, searched against every
// new-side offset of the same bucket.
type task struct {
	bucket bucketWork
	lo     int
	next   atomic.Int64
	hi     atomic.Int64 // lowered when the task is split
}

func newTask(b bucketWork, lo, hi int) *task {
	t := &task{bucket: b, lo: lo}
	t.next.Store(int64(lo))
	t.hi.Store(int64(hi))
	return t
}

func (t *task) percent() float64 {
	next, hi := t.next.Load(), t.hi.Load()
	if hi <= int64(t.lo) {
		return 100
	}
	return 100 * float64(next-int64(t.lo)) / float64(hi-int64(t.lo))
}

func (t *task) remaining() int64 {
	return t.hi.Load() - t.next.Load()
}

// splitRequest asks a running worker to hand the back half of its remaining work to a
// free slot. The worker answers on ack once it has tried.
type splitRequest struct {
	ack chan bool
}

type slot struct {
	task    *task // nil while idle
	split   chan splitRequest
	pending chan bool // ack channel of an unanswered split request
}

// pool is the fixed set of worker slots. Every state change happens under mu.
type pool struct {
	mu    sync.Mutex
	slots []slot
	wake  chan struct{}
}

func newPool(n int) *pool {
	p := &pool{
		slots: make([]slot, n),
		wake:  make(chan struct{}, 1),
	}
	for i := range p.slots {
		p.slots[i].split = make(chan splitRequest, 1)
	}
	return p
}

// acquire claims an idle slot for t. The scan and the claim form one critical
// section, so two callers can never be handed the same slot.
func (p *pool) acquire(t *task) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id := range p.slots {
		if p.slots[id].task == nil {
			p.slots[id].task = t
			return id, true
		}
	}
	return -1, false
}

func (p *pool) release(id int) {
	p.mu.Lock()
	s := &p.slots[id]
	s.task = nil
	select {
	case req := <-s.split:
		req.ack <- false
	default:
	}
	s.pending = nil
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *pool) free() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, s := range p.slots {
		if s.task == nil {
			n++
		}
	}
	return n
}

func (p *pool) idle() bool {
	return p.free() == len(p.slots)
}

func (p *pool) snapshot() map[int]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	busy := make(map[int]float64)
	for id, s := range p.slots {
		if s.task != nil {
			busy[id] = s.task.percent()
		}
	}
	return busy
}

// requestSplit sends a split request to the least progressed worker that has at least
// two old offsets left and no request outstanding.
func (p *pool) requestSplit() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	best := -1
	for id, s := range p.slots {
		if s.task == nil || s.pending != nil || s.task.remaining() < 2 {
			continue
		}
		if best < 0 || s.task.percent() < p.slots[best].task.percent() {
			best = id
		}
	}
	if best < 0 {
		return -1, false
	}

	ack := make(chan bool, 1)
	select {
	case p.slots[best].split <- splitRequest{ack: ack}:
		p.slots[best].pending = ack
		return best, true
	default:
		return -1, false
	}
}

// answered collects split acknowledgements and returns how many splits succeeded.
func (p *pool) answered() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for id := range p.slots {
		s := &p.slots[id]
		if s.pending == nil {
			continue
		}
		select {
		case ok := <-s.pending:
			s.pending = nil
			if ok {
				n++
			}
		default:
		}
	}
	return n
}

// scheduler drives the bucket search over a pool of workers.
type scheduler struct {
	cfg      config
	log      *zap.Logger
	old, new []byte
	pool     *pool
	accepted *acceptedSet
	known    *runRegistry

	ctx   context.Context
	group *errgroup.Group
}

func newScheduler(old, new []byte, cfg config) *scheduler {
	return &scheduler{
		cfg:      cfg,
		log:      cfg.logger,
		old:      old,
		new:      new,
		pool:     newPool(cfg.workers),
		accepted: newAcceptedSet(),
		known:    newRunRegistry(),
	}
}

// run searches every bucket shared by both buffers and returns the resolved matches
// sorted by old offset. It polls at cfg.pollInterval to dispatch buckets, rebalance
// and report progress, and returns once every bucket is done and every slot is idle.
func (s *scheduler) run(ctx context.Context, work []bucketWork) ([]Match, error) {
	s.group, s.ctx = errgroup.WithContext(ctx)

	ticker := time.NewTicker(s.cfg.pollInterval)
	defer ticker.Stop()

	start := time.Now()
	pending := work
	for {
		for len(pending) > 0 {
			t := newTask(pending[0], 0, len(pending[0].old))
			id, ok := s.pool.acquire(t)
			if !ok {
				break
			}
			s.log.Debug("dispatch bucket",
				zap.Int("worker", id),
				zap.Int("bucket", int(pending[0].value)),
				zap.Int("cost", pending[0].cost()))
			s.start(id, t)
			pending = pending[1:]
		}

		if n := s.pool.answered(); n > 0 {
			s.log.Debug("splits completed", zap.Int("count", n))
		}
		if len(pending) == 0 {
			s.rebalance()
		}
		s.report(start)

		if len(pending) == 0 && s.pool.idle() {
			break
		}

		select {
		case <-s.ctx.Done():
			err := s.group.Wait()
			if err == nil {
				err = ctx.Err()
			}
			return nil, err
		case <-ticker.C:
		case <-s.pool.wake:
		}
	}

	if err := s.group.Wait(); err != nil {
		return nil, err
	}

	matches := s.accepted.freeze()
	s.log.Debug("search complete",
		zap.Int("matches", len(matches)),
		zap.Duration("elapsed", time.Since(start)))
	s.report(start)

	return matches, nil
}

// rebalance asks busy workers to split while slots sit idle.
func (s *scheduler) rebalance() {
	for free := s.pool.free(); free > 0; free-- {
		id, ok := s.pool.requestSplit()
		if !ok {
			return
		}
		s.log.Debug("split requested", zap.Int("worker", id))
	}
}

func (s *scheduler) report(start time.Time) {
	if s.cfg.progress == nil {
		return
	}
	s.cfg.progress(Progress{
		Workers: s.pool.snapshot(),
		Elapsed: time.Since(start),
		Matches: s.accepted.len(),
	})
}

func (s *scheduler) start(id int, t *task) {
	s.group.Go(func() error {
		defer s.pool.release(id)
		return s.work(id, t)
	})
}

// work searches t. Each old offset is a checkpoint: cancellation and split requests
// are honoured there, and the batch is merged once it reaches cfg.flushSize.
func (s *scheduler) work(id int, t *task) error {
	var (
		b     batch
		found = make(map[int]Range) // diagonal -> last run seen by this worker
		split = s.pool.slots[id].split
	)

	for i := t.lo; i < int(t.hi.Load()); i++ {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		t.next.Store(int64(i))

		select {
		case req := <-split:
			req.ack <- s.split(id, t)
		default:
		}

		if b.len() >= s.cfg.flushSize {
			s.accepted.merge(&b)
			b.reset()
		}

		o := t.bucket.old[i]
		for _, n := range t.bucket.new {
			d := n - o
			if run, ok := found[d]; ok && run.Contains(o) {
				continue
			}
			if run, ok := s.known.lookup(o, n); ok {
				found[d] = run
				continue
			}

			m := expand(s.old, s.new, o, n)
			if m.Size > 1 {
				found[d] = m.Old
			}
			if m.Size < s.cfg.minMatch {
				continue
			}
			s.known.add(m)
			b.admit(m)
		}
	}
	t.next.Store(t.hi.Load())

	if b.len() > 0 {
		delta := s.accepted.merge(&b)
		s.log.Debug("merged batch",
			zap.Int("worker", id),
			zap.Int("bucket", int(t.bucket.value)),
			zap.Int("delta", delta))
	}

	return nil
}

// split moves the back half of t's remaining offsets to a new task on a free slot.
// It runs on t's own worker, which is the only writer of t.hi.
func (s *scheduler) split(id int, t *task) bool {
	next, hi := int(t.next.Load()), int(t.hi.Load())
	if hi-next < 2 {
		return false
	}
	mid := next + (hi-next)/2

	sibling := newTask(t.bucket, mid, hi)
	sid, ok := s.pool.acquire(sibling)
	if !ok {
		return false
	}
	t.hi.Store(int64(mid))

	s.log.Debug("split task",
		zap.Int("worker", id),
		zap.Int("sibling", sid),
		zap.Int("bucket", int(t.bucket.value)),
		zap.Int("mid", mid),
		zap.Int("hi", hi))
	s.start(sid, sibling)

	return true
}
