package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/coffersTech/nanolog/stalecheck/internal/logfile"
	"github.com/coffersTech/nanolog/stalecheck/internal/model"
)

// Pool runs submitted work on at most size goroutines. Submit blocks while
// the pool is saturated, which throttles the file reader feeding it. The
// first failing task cancels the pool context and is returned by Wait.
type Pool struct {
	g         *errgroup.Group
	ctx       context.Context
	submitted int64
}

func NewPool(ctx context.Context, size int) *Pool {
	if size < 1 {
		size = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(size)
	return &Pool{g: g, ctx: gctx}
}

// Context is canceled once any task fails.
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Submit admits fn, waiting for a free slot. It refuses new work after a
// task has failed. Submit must be called from a single goroutine.
func (p *Pool) Submit(fn func(ctx context.Context) error) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	p.submitted++
	p.g.Go(func() error {
		return fn(p.ctx)
	})
	return nil
}

// Wait joins every admitted task.
func (p *Pool) Wait() error {
	return p.g.Wait()
}

// Submitted returns how many tasks were admitted.
func (p *Pool) Submitted() int64 {
	return p.submitted
}

type batchFunc func(ctx context.Context, batch []model.LogRecord) error

// dispatcher reads sources in order and cuts their records into batches of
// block records. Batches span file boundaries; one short remainder batch is
// dispatched after the last file.
type dispatcher struct {
	reader  *logfile.Reader
	threads int
	block   int
	filter  RecordFilter
}

type dispatchResult struct {
	records int64
	batches int64
}

func (d dispatcher) run(ctx context.Context, sources []logfile.Source, work batchFunc) (dispatchResult, error) {
	var (
		pool  = NewPool(ctx, d.threads)
		block = d.block
		res   dispatchResult
	)
	if block < 1 {
		block = 1
	}
	batch := make([]model.LogRecord, 0, block)
	flush := func() error {
		b := batch
		batch = make([]model.LogRecord, 0, block)
		return pool.Submit(func(ctx context.Context) error {
			return work(ctx, b)
		})
	}

	var readErr error
	for _, src := range sources {
		readErr = d.reader.Each(pool.Context(), src, func(rec model.LogRecord) error {
			if d.filter != nil && !d.filter(rec) {
				return nil
			}
			res.records++
			batch = append(batch, rec)
			if len(batch) == block {
				return flush()
			}
			return nil
		})
		if readErr != nil {
			break
		}
	}
	if readErr == nil && len(batch) > 0 {
		readErr = flush()
	}

	waitErr := pool.Wait()
	res.batches = pool.Submitted()
	if waitErr != nil {
		return res, waitErr
	}
	return res, readErr
}
