package recql

import (
	"strings"
)

// Record is the view of a log record a query is evaluated against.
type Record interface {
	GetOpType() string
	GetRID() int64
	GetThreadID() int64
	GetSeqID() int64
	GetStartTime() int64
	GetEndTime() int64
	GetValue() int64
	GetKey() string
}

// Match evaluates node against rec. A nil node matches everything.
func Match(node Node, rec Record) bool {
	if node == nil {
		return true
	}

	switch n := node.(type) {
	case BinaryExpr:
		switch n.Op {
		case "AND":
			return Match(n.Left, rec) && Match(n.Right, rec)
		case "OR":
			return Match(n.Left, rec) || Match(n.Right, rec)
		}
		return false
	case MatchExpr:
		return evalMatch(n, rec)
	case NotExpr:
		return !Match(n.Expr, rec)
	default:
		return false
	}
}

func evalMatch(expr MatchExpr, rec Record) bool {
	if expr.Key == FieldNone {
		return containsIgnoreCase(rec.GetOpType(), expr.Value)
	}
	if expr.Key.Numeric() {
		return compare(numericField(expr.Key, rec), expr.Op, expr.Num)
	}

	var v string
	if expr.Key == FieldKey {
		v = rec.GetKey()
	} else {
		v = rec.GetOpType()
	}
	eq := strings.EqualFold(v, expr.Value)
	if expr.Op == "!=" {
		return !eq
	}
	return eq
}

func numericField(f Field, rec Record) int64 {
	switch f {
	case FieldRID:
		return rec.GetRID()
	case FieldThreadID:
		return rec.GetThreadID()
	case FieldSeqID:
		return rec.GetSeqID()
	case FieldStart:
		return rec.GetStartTime()
	case FieldEnd:
		return rec.GetEndTime()
	default:
		return rec.GetValue()
	}
}

func compare(got int64, op string, want int64) bool {
	switch op {
	case "=":
		return got == want
	case "!=":
		return got != want
	case ">":
		return got > want
	case ">=":
		return got >= want
	case "<":
		return got < want
	case "<=":
		return got <= want
	}
	return false
}

func containsIgnoreCase(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
