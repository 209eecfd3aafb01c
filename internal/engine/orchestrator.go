package engine

import (
	"context"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/coffersTech/nanolog/stalecheck/internal/logfile"
	"github.com/coffersTech/nanolog/stalecheck/internal/model"
)

// SnapshotWriterFunc persists sealed timelines. It lets the engine save
// snapshots without importing the storage package.
type SnapshotWriterFunc func(path string, ts *Timelines) error

// SnapshotReaderFunc loads a snapshot into ts and returns the number of
// intervals it held.
type SnapshotReaderFunc func(path string, ts *Timelines) (int64, error)

// Options configures one run.
type Options struct {
	MachineID   int
	ThreadCount int
	LogDir      string

	Update   PoolConfig
	Validate PoolConfig

	ProgressInterval time.Duration
	InitialCounts    map[string]int64

	// Store receives every write when set.
	Store RowStore

	SnapshotIn    string
	SnapshotOut   string
	ReadSnapshot  SnapshotReaderFunc
	WriteSnapshot SnapshotWriterFunc

	Markers *Markers
	Clock   quartz.Clock
}

// Orchestrator runs the write phase to completion, then the read phase, and
// folds the shared aggregates into a Report.
type Orchestrator struct {
	logger slog.Logger
	opts   Options
	clock  quartz.Clock

	reader    *logfile.Reader
	timelines *Timelines
	sessions  *SessionTracker
	results   *Results

	updateBatches   int64
	validateBatches int64
	progressTicks   int64
}

func NewOrchestrator(logger slog.Logger, opts Options) *Orchestrator {
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 10 * time.Second
	}
	if opts.ThreadCount < 1 {
		opts.ThreadCount = 1
	}
	return &Orchestrator{
		logger:    logger,
		opts:      opts,
		clock:     clock,
		reader:    logfile.NewReader(),
		timelines: NewTimelines(opts.InitialCounts),
		sessions:  NewSessionTracker(),
		results:   NewResults(),
	}
}

func (o *Orchestrator) Timelines() *Timelines         { return o.timelines }
func (o *Orchestrator) Sessions() *SessionTracker     { return o.sessions }
func (o *Orchestrator) Results() *Results             { return o.results }
func (o *Orchestrator) Batches() (update, read int64) { return o.updateBatches, o.validateBatches }
func (o *Orchestrator) ProgressTicks() int64          { return o.progressTicks }

// Run executes both phases. No read is judged before every write has been
// applied and the timelines are sealed.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	start := o.clock.Now()
	o.mark(ctx, MarkStartingValidation)

	if o.opts.Store != nil {
		if err := o.opts.Store.Provision(ctx); err != nil {
			return Report{}, xerrors.Errorf("provision store: %w", err)
		}
	}

	writes, err := o.runUpdates(ctx)
	if err != nil {
		return Report{}, err
	}
	o.mark(ctx, MarkUpdatesInDB)

	if o.opts.Store != nil {
		if err := o.opts.Store.BuildIndexes(ctx); err != nil {
			return Report{}, xerrors.Errorf("build store indexes: %w", err)
		}
	}
	o.timelines.Seal()
	if o.opts.SnapshotOut != "" && o.opts.WriteSnapshot != nil {
		if err := o.opts.WriteSnapshot(o.opts.SnapshotOut, o.timelines); err != nil {
			return Report{}, xerrors.Errorf("write snapshot: %w", err)
		}
		o.logger.Info(ctx, "timeline snapshot written", slog.F("path", o.opts.SnapshotOut))
	}
	updateTime := o.clock.Since(start)

	readStart := o.clock.Now()
	if err := o.runReads(ctx); err != nil {
		return Report{}, err
	}
	o.mark(ctx, MarkDoneReadCycles)
	o.mark(ctx, MarkDoneReadValidation)
	readTime := o.clock.Since(readStart)

	report := o.buildReport(writes)
	report.UpdateProcessingTime = updateTime.Milliseconds()
	report.ReadValidationTime = readTime.Milliseconds()
	report.ValidationTime = o.clock.Since(start).Milliseconds()
	o.mark(ctx, MarkPopulateStats)

	o.logger.Info(ctx, "validation complete",
		slog.F("run_id", report.RunID),
		slog.F("writes", report.NumWriteOps),
		slog.F("reads", report.NumReadOps),
		slog.F("stale", report.NumStaleOps),
		slog.F("pruned", report.NumPruned),
		slog.F("stale_sessions", report.NumStaleSessions),
		slog.F("elapsed_ms", report.ValidationTime),
		slog.F("progress_ticks", o.ProgressTicks()),
	)
	return report, nil
}

func (o *Orchestrator) runUpdates(ctx context.Context) (int64, error) {
	if o.opts.SnapshotIn != "" {
		if o.opts.ReadSnapshot == nil {
			return 0, xerrors.New("snapshot input configured without a reader")
		}
		if o.opts.Update.Filter != nil {
			return 0, xerrors.New("a write filter cannot apply to a loaded snapshot")
		}
		n, err := o.opts.ReadSnapshot(o.opts.SnapshotIn, o.timelines)
		if err != nil {
			return 0, xerrors.Errorf("load snapshot: %w", err)
		}
		o.logger.Info(ctx, "timeline snapshot loaded",
			slog.F("path", o.opts.SnapshotIn),
			slog.F("intervals", n),
			slog.F("resources", o.timelines.Len()),
		)
		return n, nil
	}

	sources := logfile.Discover(ctx, o.logger.Named("logfile"), o.opts.LogDir, model.KindWrite, o.opts.MachineID, o.opts.ThreadCount)
	ua := NewUpdateAggregator(o.logger.Named("ingest"), o.timelines, o.reader, o.opts.Update, o.opts.Store)
	n, err := ua.Ingest(ctx, sources)
	o.updateBatches = ua.Batches()
	return n, err
}

func (o *Orchestrator) runReads(ctx context.Context) error {
	sources := logfile.Discover(ctx, o.logger.Named("logfile"), o.opts.LogDir, model.KindRead, o.opts.MachineID, o.opts.ThreadCount)
	v := NewValidator(o.logger.Named("validate"), o.timelines, o.sessions, o.results, o.reader, o.opts.Validate)

	progress := StartProgress(ctx, o.logger.Named("progress"), o.clock, o.opts.ProgressInterval, o.results)
	_, err := v.Validate(ctx, sources)
	o.validateBatches = v.Batches()
	// The reporter is joined only after every validator has.
	if stopErr := progress.Stop(); stopErr != nil {
		o.logger.Warn(ctx, "progress reporter stopped with error", slog.Error(stopErr))
	}
	o.progressTicks = progress.Ticks()
	return err
}

func (o *Orchestrator) buildReport(writes int64) Report {
	r := Report{
		RunID:            uuid.NewString(),
		MachineID:        o.opts.MachineID,
		NumWriteOps:      writes,
		NumProcessed:     o.results.Processed(),
		NumStaleOps:      o.results.Stale(),
		NumPruned:        o.results.Pruned(),
		NumReadSessions:  o.sessions.Seen(),
		NumStaleSessions: o.sessions.Stale(),
		InputDigest:      o.reader.Digest(),
		ByOpType:         o.results.ByOpType(),
	}
	r.Recompute()
	return r
}

func (o *Orchestrator) mark(ctx context.Context, name string) {
	if err := o.opts.Markers.Mark(name); err != nil {
		o.logger.Warn(ctx, "rating marker not written", slog.F("marker", name), slog.Error(err))
	}
}
