package rangepatch

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultWorkers      = 10
	DefaultMinMatch     = 5 // a Skip costs at least 4 bytes, so shorter runs never pay off
	DefaultPollInterval = 20 * time.Millisecond
	DefaultFlushSize    = 256
)

type config struct {
	workers       int
	minMatch      int
	pollInterval  time.Duration
	flushSize     int
	naiveFallback bool
	progress      func(Progress)
	logger        *zap.Logger
}

func newConfig(o []FuncOption) config {
	cfg := config{
		workers:      DefaultWorkers,
		minMatch:     DefaultMinMatch,
		pollInterval: DefaultPollInterval,
		flushSize:    DefaultFlushSize,
		logger:       zap.NewNop(),
	}

	for _, f := range o {
		f(&cfg)
	}

	return cfg
}

type FuncOption func(*config)

// WithWorkers sets the number of worker slots. Values below 1 are raised to 1.
func WithWorkers(n int) FuncOption {
	return func(o *config) {
		o.workers = max(1, n)
	}
}

// WithMinMatch sets the shortest common run that may become a Skip.
func WithMinMatch(n int) FuncOption {
	return func(o *config) {
		o.minMatch = max(1, n)
	}
}

func WithPollInterval(d time.Duration) FuncOption {
	return func(o *config) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithFlushSize sets how many candidates a worker collects before merging them into
// the shared set at its next checkpoint.
func WithFlushSize(n int) FuncOption {
	return func(o *config) {
		o.flushSize = max(1, n)
	}
}

// WithNaiveFallback replaces the computed operations with a single delete and insert
// whenever that encodes shorter.
func WithNaiveFallback() FuncOption {
	return func(o *config) {
		o.naiveFallback = true
	}
}

// WithProgress registers f to receive periodic snapshots while matching runs. f is
// called from a single goroutine.
func WithProgress(f func(Progress)) FuncOption {
	return func(o *config) {
		o.progress = f
	}
}

func WithLogger(l *zap.Logger) FuncOption {
	return func(o *config) {
		if l != nil {
			o.logger = l
		}
	}
}
