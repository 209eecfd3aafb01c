package engine

import (
	"context"

	"cdr.dev/slog/v3"
	"golang.org/x/xerrors"

	"github.com/coffersTech/nanolog/stalecheck/internal/logfile"
	"github.com/coffersTech/nanolog/stalecheck/internal/model"
)

// RowStore is the relational sink that receives every write alongside the
// in-memory timelines. Implementations must be safe for concurrent use.
type RowStore interface {
	Provision(ctx context.Context) error
	InsertBatch(ctx context.Context, recs []model.LogRecord) error
	BuildIndexes(ctx context.Context) error
}

// PoolConfig sizes one phase.
type PoolConfig struct {
	Threads int
	Block   int
	Filter  RecordFilter
}

// UpdateAggregator ingests write logs into Timelines on a bounded pool.
type UpdateAggregator struct {
	logger    slog.Logger
	timelines *Timelines
	reader    *logfile.Reader
	cfg       PoolConfig
	store     RowStore

	batches int64
}

// NewUpdateAggregator returns an aggregator feeding ts. store may be nil.
func NewUpdateAggregator(logger slog.Logger, ts *Timelines, reader *logfile.Reader, cfg PoolConfig, store RowStore) *UpdateAggregator {
	return &UpdateAggregator{
		logger:    logger,
		timelines: ts,
		reader:    reader,
		cfg:       cfg,
		store:     store,
	}
}

// Ingest reads every source and returns the number of writes applied. It
// returns only after every dispatched batch has finished. A malformed line
// or a failed store insert aborts the phase.
func (u *UpdateAggregator) Ingest(ctx context.Context, sources []logfile.Source) (int64, error) {
	d := dispatcher{
		reader:  u.reader,
		threads: u.cfg.Threads,
		block:   u.cfg.Block,
		filter:  u.cfg.Filter,
	}
	res, err := d.run(ctx, sources, u.ingestBatch)
	u.batches = res.batches
	if err != nil {
		return res.records, xerrors.Errorf("ingest writes: %w", err)
	}

	u.logger.Info(ctx, "writes ingested",
		slog.F("files", len(sources)),
		slog.F("records", res.records),
		slog.F("batches", res.batches),
		slog.F("resources", u.timelines.Len()),
	)
	return res.records, nil
}

// Batches returns how many batches the last Ingest dispatched.
func (u *UpdateAggregator) Batches() int64 {
	return u.batches
}

func (u *UpdateAggregator) ingestBatch(ctx context.Context, batch []model.LogRecord) error {
	if u.store != nil {
		if err := u.store.InsertBatch(ctx, batch); err != nil {
			return xerrors.Errorf("store writes: %w", err)
		}
	}
	for i, rec := range batch {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		u.timelines.Apply(rec)
	}
	return nil
}
