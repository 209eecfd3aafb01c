package engine

import (
	"context"

	"cdr.dev/slog/v3"
	"golang.org/x/xerrors"

	"github.com/coffersTech/nanolog/stalecheck/internal/logfile"
	"github.com/coffersTech/nanolog/stalecheck/internal/model"
)

// Validator judges read logs against sealed Timelines on a bounded pool.
// It must only run after every write has been applied.
type Validator struct {
	logger    slog.Logger
	timelines *Timelines
	sessions  *SessionTracker
	results   *Results
	reader    *logfile.Reader
	cfg       PoolConfig

	batches int64
}

func NewValidator(logger slog.Logger, ts *Timelines, sessions *SessionTracker, results *Results, reader *logfile.Reader, cfg PoolConfig) *Validator {
	return &Validator{
		logger:    logger,
		timelines: ts,
		sessions:  sessions,
		results:   results,
		reader:    reader,
		cfg:       cfg,
	}
}

// Validate classifies every read of sources and returns how many reads were
// dispatched. Outcomes land in the shared Results and SessionTracker.
func (v *Validator) Validate(ctx context.Context, sources []logfile.Source) (int64, error) {
	d := dispatcher{
		reader:  v.reader,
		threads: v.cfg.Threads,
		block:   v.cfg.Block,
		filter:  v.cfg.Filter,
	}
	res, err := d.run(ctx, sources, v.validateBatch)
	v.batches = res.batches
	if err != nil {
		return res.records, xerrors.Errorf("validate reads: %w", err)
	}

	v.logger.Info(ctx, "reads validated",
		slog.F("files", len(sources)),
		slog.F("records", res.records),
		slog.F("batches", res.batches),
	)
	return res.records, nil
}

// Batches returns how many batches the last Validate dispatched.
func (v *Validator) Batches() int64 {
	return v.batches
}

func (v *Validator) validateBatch(ctx context.Context, batch []model.LogRecord) error {
	for i, rec := range batch {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		v.check(rec)
	}
	return nil
}

// check classifies one read and records its outcome. Reads of a resource
// that was never written, or that ended before its first write started,
// are pruned. Every read registers its session; stale ones also mark it.
func (v *Validator) check(rec model.LogRecord) Verdict {
	verdict := VerdictPruned
	if tl, ok := v.timelines.Lookup(rec.ResourceKey()); ok {
		verdict = tl.Classify(rec.EndTime, rec.Value)
	}
	v.results.Observe(rec.OpType, verdict)
	v.sessions.Record(rec.ThreadID, rec.SeqID, verdict == VerdictStale)
	return verdict
}
