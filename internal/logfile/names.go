package logfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cdr.dev/slog/v3"

	"github.com/coffersTech/nanolog/stalecheck/internal/model"
)

// zstdSuffix marks a compressed log file. Compressed files are read transparently.
const zstdSuffix = ".zst"

// Source is one worker log file.
type Source struct {
	Path        string
	Kind        model.Kind
	ThreadIndex int
}

// FileName returns the log file name a benchmark worker writes:
// update<machineId>-<thread>.txt or read<machineId>-<thread>.txt.
func FileName(kind model.Kind, machineID, thread int) string {
	prefix := "read"
	if kind == model.KindWrite {
		prefix = "update"
	}
	return fmt.Sprintf("%s%d-%d.txt", prefix, machineID, thread)
}

// Discover lists the log files of one kind for threads 0..threadCount-1.
// A missing file is logged and skipped so the run continues with the files
// that exist. The plain file wins over its .zst sibling when both exist.
func Discover(ctx context.Context, logger slog.Logger, dir string, kind model.Kind, machineID, threadCount int) []Source {
	sources := make([]Source, 0, threadCount)
	for i := 0; i < threadCount; i++ {
		path := filepath.Join(dir, FileName(kind, machineID, i))
		switch {
		case exists(path):
		case exists(path + zstdSuffix):
			path += zstdSuffix
		default:
			logger.Warn(ctx, "log file missing, skipping",
				slog.F("path", path),
				slog.F("kind", kind.String()),
			)
			continue
		}
		sources = append(sources, Source{Path: path, Kind: kind, ThreadIndex: i})
	}
	return sources
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
