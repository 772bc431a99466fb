package rangepatch

import (
	"context"

	"go.uber.org/zap"
)

// Result is the outcome of Diff.
type Result struct {
	Ops     []Op
	Report  Report
	Matches []Match // resolved, sorted by Old.Start
}

// Diff finds the common runs of old and new and returns the operations that rebuild
// new from old. The result does not depend on the number of workers.
func Diff(ctx context.Context, old, new []byte, o ...FuncOption) (*Result, error) {
	cfg := newConfig(o)

	oldIdx := BuildIndex(old)
	newIdx := BuildIndex(new)
	work := sharedBuckets(oldIdx, newIdx)

	cfg.logger.Debug("indexed buffers",
		zap.Int("old_size", len(old)),
		zap.Int("new_size", len(new)),
		zap.Int("buckets", len(work)),
		zap.Int("workers", cfg.workers),
		zap.Int("min_match", cfg.minMatch))

	matches, err := newScheduler(old, new, cfg).run(ctx, work)
	if err != nil {
		return nil, err
	}

	ops, rep := Encode(old, new, matches)

	// If inputs are very different, the encoded operations can be longer than just
	// deleting everything and inserting new. Check whether this "naive" patch is
	// actually shorter.
	if cfg.naiveFallback {
		naive, naiveRep := Encode(old, new, nil)
		if encodedLen(naive) < encodedLen(ops) {
			cfg.logger.Debug("using naive patch",
				zap.Int("encoded", encodedLen(ops)),
				zap.Int("naive", encodedLen(naive)))
			ops, rep, matches = naive, naiveRep, nil
		}
	}

	return &Result{Ops: ops, Report: rep, Matches: matches}, nil
}
