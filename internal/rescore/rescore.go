// Package rescore runs full-corpus match rescoring in bounded chunks with
// checkpointing, so a 10,000-pair run interrupted halfway resumes instead
// of starting over.
package rescore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/match-cli/internal/model"
	"github.com/sells-group/match-cli/internal/scorer"
	"github.com/sells-group/match-cli/internal/store"
)

// Summary reports what one rescore run did.
type Summary struct {
	RunID      string `json:"run_id"`
	TotalPairs int64  `json:"total_pairs"`
	Scored     int64  `json:"scored"`
	Resumed    bool   `json:"resumed"`
	Completed  bool   `json:"completed"`
}

// Runner executes chunked rescoring over every unordered profile pair.
type Runner struct {
	store       store.Store
	agg         *scorer.Aggregator
	chunkSize   int
	concurrency int
}

// NewRunner creates a rescore runner.
func NewRunner(st store.Store, agg *scorer.Aggregator, chunkSize, concurrency int) *Runner {
	if chunkSize <= 0 {
		chunkSize = 250
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Runner{store: st, agg: agg, chunkSize: chunkSize, concurrency: concurrency}
}

// Run scores every pair of stored profiles under the given run id. If a
// checkpoint exists for the run id, scoring resumes after the last
// completed pair. Cancellation is chunk-granular: the current chunk
// finishes and the checkpoint is persisted before the run stops, so a
// half-computed pair is never persisted standalone.
func (r *Runner) Run(ctx context.Context, runID string, now time.Time) (*Summary, error) {
	ids, err := r.store.ListProfileIDs(ctx)
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*model.Profile, len(ids))
	for _, id := range ids {
		p, err := r.store.GetProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		profiles[id] = p
	}

	n := int64(len(ids))
	total := n * (n - 1) / 2
	sum := &Summary{RunID: runID, TotalPairs: total}

	start := int64(0)
	cp, err := r.store.GetCheckpoint(ctx, runID)
	switch {
	case err == nil:
		if cp.TotalPairs != total {
			return nil, eris.Errorf("rescore: checkpoint for run %s covers %d pairs but corpus now has %d; use a new run id", runID, cp.TotalPairs, total)
		}
		start = cp.LastPairIndex + 1
		sum.Resumed = true
		zap.L().Info("rescore: resuming from checkpoint",
			zap.String("run_id", runID),
			zap.Int64("last_pair_index", cp.LastPairIndex),
		)
	case errors.Is(err, store.ErrNotFound):
		// Fresh run.
	default:
		return nil, err
	}

	for chunkStart := start; chunkStart < total; chunkStart += int64(r.chunkSize) {
		chunkEnd := chunkStart + int64(r.chunkSize)
		if chunkEnd > total {
			chunkEnd = total
		}

		if err := r.scoreChunk(ctx, ids, profiles, chunkStart, chunkEnd, now, sum); err != nil {
			return sum, err
		}

		if err := r.store.SaveCheckpoint(ctx, store.Checkpoint{
			RunID:         runID,
			LastPairIndex: chunkEnd - 1,
			TotalPairs:    total,
		}); err != nil {
			return sum, err
		}

		// Chunk-granular cancellation: the chunk above completed and its
		// checkpoint is durable, so stopping here is always resumable.
		if ctx.Err() != nil {
			zap.L().Info("rescore: interrupted, checkpoint saved",
				zap.String("run_id", runID),
				zap.Int64("last_pair_index", chunkEnd-1),
			)
			return sum, nil
		}
	}

	if err := r.store.DeleteCheckpoint(ctx, runID); err != nil {
		return sum, err
	}
	sum.Completed = true

	zap.L().Info("rescore: complete",
		zap.String("run_id", runID),
		zap.Int64("pairs", sum.Scored),
	)
	return sum, nil
}

// scoreChunk scores pair indexes [from, to). Pairs within a chunk run
// concurrently; profiles are read-only and the embedding cache is safe to
// share, so no other coordination is needed.
func (r *Runner) scoreChunk(ctx context.Context, ids []string, profiles map[string]*model.Profile, from, to int64, now time.Time, sum *Summary) error {
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(r.concurrency)

	var scored atomic.Int64

	for idx := from; idx < to; idx++ {
		i, j := pairAt(idx, int64(len(ids)))
		pa, pb := profiles[ids[i]], profiles[ids[j]]

		g.Go(func() error {
			match, err := r.agg.ScorePair(gctx, pa, pb, now)
			if err != nil {
				// Only configuration errors reach here; they poison the
				// whole run rather than one pair.
				return eris.Wrapf(err, "rescore: pair %s/%s", pa.ID, pb.ID)
			}
			if err := r.store.SaveMatch(gctx, match); err != nil {
				return err
			}
			scored.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	sum.Scored += scored.Load()
	return nil
}

// pairAt maps a global pair index onto the (i, j) unordered pair, i < j,
// enumerated row by row over the sorted profile ids. The enumeration is
// deterministic, which is what makes checkpoint resume exact.
func pairAt(idx, n int64) (int64, int64) {
	i := int64(0)
	rowLen := n - 1
	for idx >= rowLen {
		idx -= rowLen
		i++
		rowLen--
	}
	return i, i + 1 + idx
}
