package engine

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// Report is the outcome of one validation run. The first eight counters are
// the classic statistics mapping; the rest ties the run to its inputs.
type Report struct {
	NumReadOps       int64 `json:"NumReadOps" yaml:"NumReadOps"`
	NumProcessed     int64 `json:"NumProcessed" yaml:"NumProcessed"`
	NumWriteOps      int64 `json:"NumWriteOps" yaml:"NumWriteOps"`
	NumStaleOps      int64 `json:"NumStaleOps" yaml:"NumStaleOps"`
	NumPruned        int64 `json:"NumPruned" yaml:"NumPruned"`
	NumReadSessions  int64 `json:"NumReadSessions" yaml:"NumReadSessions"`
	NumStaleSessions int64 `json:"NumStaleSessions" yaml:"NumStaleSessions"`
	ValidationTime   int64 `json:"ValidationTime" yaml:"ValidationTime"` // ms

	StalenessRatio        float64 `json:"StalenessRatio" yaml:"StalenessRatio"`
	SessionStalenessRatio float64 `json:"SessionStalenessRatio" yaml:"SessionStalenessRatio"`

	UpdateProcessingTime int64 `json:"UpdateProcessingTime" yaml:"UpdateProcessingTime"` // ms
	ReadValidationTime   int64 `json:"ReadValidationTime" yaml:"ReadValidationTime"`     // ms

	RunID       string             `json:"RunID" yaml:"RunID"`
	MachineID   int                `json:"MachineID" yaml:"MachineID"`
	InputDigest string             `json:"InputDigest,omitempty" yaml:"InputDigest,omitempty"`
	ByOpType    map[string]OpStats `json:"ByOpType,omitempty" yaml:"ByOpType,omitempty"`

	// MergedRunIDs lists the runs folded into a merged report.
	MergedRunIDs []string `json:"MergedRunIDs,omitempty" yaml:"MergedRunIDs,omitempty"`
}

// Stats returns the classic statistics mapping.
func (r Report) Stats() map[string]int64 {
	return map[string]int64{
		"NumReadOps":       r.NumReadOps,
		"NumProcessed":     r.NumProcessed,
		"NumWriteOps":      r.NumWriteOps,
		"NumStaleOps":      r.NumStaleOps,
		"NumPruned":        r.NumPruned,
		"NumReadSessions":  r.NumReadSessions,
		"NumStaleSessions": r.NumStaleSessions,
		"ValidationTime":   r.ValidationTime,
	}
}

// Recompute derives NumReadOps and both ratios from the raw counters.
func (r *Report) Recompute() {
	r.NumReadOps = r.NumProcessed + r.NumPruned
	r.StalenessRatio = ratio(r.NumStaleOps, r.NumReadOps)
	r.SessionStalenessRatio = ratio(r.NumStaleSessions, r.NumReadSessions)
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// Encode renders the report as json or yaml.
func (r Report) Encode(format string) ([]byte, error) {
	switch format {
	case "", "json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, xerrors.Errorf("encode json report: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml":
		data, err := yaml.Marshal(r)
		if err != nil {
			return nil, xerrors.Errorf("encode yaml report: %w", err)
		}
		return data, nil
	default:
		return nil, xerrors.Errorf("unknown report format %q", format)
	}
}

// SaveReport writes the encoded report to path atomically.
func SaveReport(path string, r Report, format string) error {
	data, err := r.Encode(format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return xerrors.Errorf("create report dir: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return xerrors.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return xerrors.Errorf("rename report: %w", err)
	}
	return nil
}
