package engine

import (
	"context"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"go.uber.org/atomic"
	"golang.org/x/xerrors"
)

var errProgressStopped = xerrors.New("progress reporter stopped")

// ProgressReporter logs the live read counters once per interval while
// phase 2 runs. Counter reads are racy snapshots, which is fine for display.
type ProgressReporter struct {
	logger  slog.Logger
	clock   quartz.Clock
	results *Results
	start   time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	waiter  quartz.Waiter
	stopped atomic.Bool
	ticks   atomic.Int64
}

// StartProgress begins reporting every interval until Stop.
func StartProgress(ctx context.Context, logger slog.Logger, clock quartz.Clock, interval time.Duration, results *Results) *ProgressReporter {
	ctx, cancel := context.WithCancel(ctx)
	p := &ProgressReporter{
		logger:  logger,
		clock:   clock,
		results: results,
		start:   clock.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	p.waiter = clock.TickerFunc(ctx, interval, p.tick, "progress")
	return p
}

func (p *ProgressReporter) tick() error {
	if p.stopped.Load() {
		return errProgressStopped
	}
	p.ticks.Inc()
	p.logger.Info(p.ctx, "validation progress",
		slog.F("elapsed", p.clock.Since(p.start).Round(time.Millisecond)),
		slog.F("processed", p.results.Processed()),
		slog.F("pruned", p.results.Pruned()),
	)
	return nil
}

// Ticks returns how many progress lines were emitted.
func (p *ProgressReporter) Ticks() int64 {
	return p.ticks.Load()
}

// Stop raises the stop flag and joins the reporter goroutine.
func (p *ProgressReporter) Stop() error {
	p.stopped.Store(true)
	p.cancel()
	err := p.waiter.Wait()
	if err == nil || xerrors.Is(err, context.Canceled) || xerrors.Is(err, errProgressStopped) {
		return nil
	}
	return err
}
