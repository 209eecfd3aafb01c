package recql

import "strings"

// Node is the interface implemented by all AST nodes.
type Node interface {
	node()
}

// BinaryExpr is a logical AND or OR of two expressions.
type BinaryExpr struct {
	Op    string // "AND" or "OR"
	Left  Node
	Right Node
}

func (BinaryExpr) node() {}

// MatchExpr compares one record field against a literal. An empty Key is a
// substring search on the opType.
type MatchExpr struct {
	Key   Field
	Value string
	Op    string // "=", "!=", ">", ">=", "<", "<=" or "CONTAINS"

	// Num is Value parsed as an integer for numeric fields.
	Num int64
}

func (MatchExpr) node() {}

// NotExpr negates its inner expression.
type NotExpr struct {
	Expr Node
}

func (NotExpr) node() {}

// Field names a record attribute a query can reference.
type Field string

const (
	FieldNone     Field = ""
	FieldOpType   Field = "optype"
	FieldRID      Field = "rid"
	FieldThreadID Field = "thread"
	FieldSeqID    Field = "seq"
	FieldStart    Field = "start"
	FieldEnd      Field = "end"
	FieldValue    Field = "value"
	FieldKey      Field = "key"
)

// lookupField resolves a field name or alias, case-insensitively.
func lookupField(name string) (Field, bool) {
	switch strings.ToLower(name) {
	case "optype", "op":
		return FieldOpType, true
	case "rid":
		return FieldRID, true
	case "thread", "threadid":
		return FieldThreadID, true
	case "seq", "seqid":
		return FieldSeqID, true
	case "start", "starttime":
		return FieldStart, true
	case "end", "endtime":
		return FieldEnd, true
	case "value", "val":
		return FieldValue, true
	case "key":
		return FieldKey, true
	}
	return FieldNone, false
}

// Numeric reports whether the field holds an integer.
func (f Field) Numeric() bool {
	switch f {
	case FieldRID, FieldThreadID, FieldSeqID, FieldStart, FieldEnd, FieldValue:
		return true
	}
	return false
}
