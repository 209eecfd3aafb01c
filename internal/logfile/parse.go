package logfile

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/coffersTech/nanolog/stalecheck/internal/model"
)

const (
	writeFields = 9
	readFields  = 8
)

// ParseError reports a malformed log line. It is always fatal for a run.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Reason)
}

// ParseLine parses one comma separated log line of the given kind.
//
// Write lines: opType,seqId,threadId,rid,start,end,value,updateType,<unused>
// Read lines:  opType,seqId,threadId,rid,start,end,value,<unused>
func ParseLine(kind model.Kind, line string) (model.LogRecord, error) {
	fields := strings.Split(line, ",")
	want := readFields
	if kind == model.KindWrite {
		want = writeFields
	}
	if len(fields) != want {
		return model.LogRecord{}, xerrors.Errorf("expected %d fields for %s record, got %d", want, kind, len(fields))
	}

	var (
		rec  = model.LogRecord{OpType: strings.TrimSpace(fields[0]), Kind: kind}
		ints = []struct {
			name string
			dst  *int64
			raw  string
		}{
			{"seqId", &rec.SeqID, fields[1]},
			{"threadId", &rec.ThreadID, fields[2]},
			{"rid", &rec.RID, fields[3]},
			{"startTime", &rec.StartTime, fields[4]},
			{"endTime", &rec.EndTime, fields[5]},
			{"value", &rec.Value, fields[6]},
		}
	)
	for _, f := range ints {
		v, err := strconv.ParseInt(strings.TrimSpace(f.raw), 10, 64)
		if err != nil {
			return model.LogRecord{}, xerrors.Errorf("field %s: %q is not an integer", f.name, f.raw)
		}
		*f.dst = v
	}
	if rec.OpType == "" {
		return model.LogRecord{}, xerrors.New("empty opType")
	}
	if rec.EndTime < rec.StartTime {
		return model.LogRecord{}, xerrors.Errorf("endTime %d precedes startTime %d", rec.EndTime, rec.StartTime)
	}
	if kind == model.KindWrite {
		rec.UpdateType = strings.TrimSpace(fields[7])
		if rec.UpdateType == "" {
			return model.LogRecord{}, xerrors.New("empty updateType")
		}
	}
	return rec, nil
}
