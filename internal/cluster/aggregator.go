package cluster

import (
	"context"
	"os"

	"cdr.dev/slog/v3"
	"github.com/google/uuid"
	"github.com/valyala/fastjson"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/coffersTech/nanolog/stalecheck/internal/engine"
)

// Aggregator combines the reports written by the machines of one benchmark.
type Aggregator struct {
	logger  slog.Logger
	parsers fastjson.ParserPool
}

func NewAggregator(logger slog.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Merge reads every report concurrently and folds them into one. Counters
// add, ValidationTime is the slowest machine's, and ratios are recomputed
// from the summed counters. A report whose RunID was already merged is
// skipped.
func (a *Aggregator) Merge(ctx context.Context, paths []string) (engine.Report, error) {
	if len(paths) == 0 {
		return engine.Report{}, xerrors.New("no reports to merge")
	}

	parts := make([]engine.Report, len(paths))
	var eg errgroup.Group
	for i, path := range paths {
		eg.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return xerrors.Errorf("read report: %w", err)
			}
			r, err := a.Parse(data)
			if err != nil {
				return xerrors.Errorf("report %s: %w", path, err)
			}
			parts[i] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return engine.Report{}, err
	}

	total := engine.Report{
		RunID:     uuid.NewString(),
		MachineID: -1,
		ByOpType:  make(map[string]engine.OpStats),
	}
	seen := make(map[string]bool, len(parts))
	merged := 0
	for i, r := range parts {
		if r.RunID != "" && seen[r.RunID] {
			a.logger.Warn(ctx, "duplicate report skipped",
				slog.F("path", paths[i]),
				slog.F("run_id", r.RunID),
			)
			continue
		}
		seen[r.RunID] = true
		add(&total, r)
		merged++
	}
	total.Recompute()
	if len(total.ByOpType) == 0 {
		total.ByOpType = nil
	}

	a.logger.Info(ctx, "reports merged",
		slog.F("reports", merged),
		slog.F("reads", total.NumReadOps),
		slog.F("stale", total.NumStaleOps),
	)
	return total, nil
}

func add(total *engine.Report, r engine.Report) {
	total.NumProcessed += r.NumProcessed
	total.NumWriteOps += r.NumWriteOps
	total.NumStaleOps += r.NumStaleOps
	total.NumPruned += r.NumPruned
	total.NumReadSessions += r.NumReadSessions
	total.NumStaleSessions += r.NumStaleSessions
	total.ValidationTime = max(total.ValidationTime, r.ValidationTime)
	total.UpdateProcessingTime = max(total.UpdateProcessingTime, r.UpdateProcessingTime)
	total.ReadValidationTime = max(total.ReadValidationTime, r.ReadValidationTime)
	for op, s := range r.ByOpType {
		t := total.ByOpType[op]
		t.Processed += s.Processed
		t.Stale += s.Stale
		t.Pruned += s.Pruned
		total.ByOpType[op] = t
	}
	if r.RunID != "" {
		total.MergedRunIDs = append(total.MergedRunIDs, r.RunID)
	}
}

// Parse decodes one JSON report. Missing counters read as zero.
func (a *Aggregator) Parse(data []byte) (engine.Report, error) {
	p := a.parsers.Get()
	defer a.parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return engine.Report{}, xerrors.Errorf("parse json: %w", err)
	}
	if v.Type() != fastjson.TypeObject {
		return engine.Report{}, xerrors.New("report is not a json object")
	}

	r := engine.Report{
		NumReadOps:           v.GetInt64("NumReadOps"),
		NumProcessed:         v.GetInt64("NumProcessed"),
		NumWriteOps:          v.GetInt64("NumWriteOps"),
		NumStaleOps:          v.GetInt64("NumStaleOps"),
		NumPruned:            v.GetInt64("NumPruned"),
		NumReadSessions:      v.GetInt64("NumReadSessions"),
		NumStaleSessions:     v.GetInt64("NumStaleSessions"),
		ValidationTime:       v.GetInt64("ValidationTime"),
		UpdateProcessingTime: v.GetInt64("UpdateProcessingTime"),
		ReadValidationTime:   v.GetInt64("ReadValidationTime"),
		RunID:                string(v.GetStringBytes("RunID")),
		MachineID:            v.GetInt("MachineID"),
		InputDigest:          string(v.GetStringBytes("InputDigest")),
	}

	if ops := v.GetObject("ByOpType"); ops != nil {
		r.ByOpType = make(map[string]engine.OpStats, ops.Len())
		ops.Visit(func(key []byte, s *fastjson.Value) {
			r.ByOpType[string(key)] = engine.OpStats{
				Processed: s.GetInt64("processed"),
				Stale:     s.GetInt64("stale"),
				Pruned:    s.GetInt64("pruned"),
			}
		})
	}
	r.Recompute()
	return r, nil
}
