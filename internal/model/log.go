package model

import (
	"strconv"
	"strings"
)

// Kind distinguishes write records from read records.
type Kind uint8

const (
	KindWrite Kind = iota + 1
	KindRead
)

func (k Kind) String() string {
	switch k {
	case KindWrite:
		return "write"
	case KindRead:
		return "read"
	default:
		return "unknown"
	}
}

// LogRecord is one parsed line of a benchmark worker log.
// Writes carry an UpdateType; reads leave it empty.
type LogRecord struct {
	OpType     string
	SeqID      int64
	ThreadID   int64
	RID        int64
	StartTime  int64
	EndTime    int64
	Value      int64
	UpdateType string
	Kind       Kind
}

// ResourceKey identifies the resource a record touches: opType + "-" + rid.
func (r LogRecord) ResourceKey() string {
	return r.OpType + "-" + strconv.FormatInt(r.RID, 10)
}

// IsInsert reports whether a write increments its resource.
func (r LogRecord) IsInsert() bool {
	return strings.EqualFold(r.UpdateType, "I")
}

// Delta is +1 for inserts and -1 for every other update type.
func (r LogRecord) Delta() int64 {
	if r.IsInsert() {
		return 1
	}
	return -1
}

// Accessors used by the record filter.
func (r LogRecord) GetOpType() string   { return r.OpType }
func (r LogRecord) GetRID() int64       { return r.RID }
func (r LogRecord) GetThreadID() int64  { return r.ThreadID }
func (r LogRecord) GetSeqID() int64     { return r.SeqID }
func (r LogRecord) GetStartTime() int64 { return r.StartTime }
func (r LogRecord) GetEndTime() int64   { return r.EndTime }
func (r LogRecord) GetValue() int64     { return r.Value }
func (r LogRecord) GetKey() string      { return r.ResourceKey() }
