package engine

import (
	"github.com/coffersTech/nanolog/stalecheck/internal/model"
	"github.com/coffersTech/nanolog/stalecheck/internal/pkg/recql"
)

// RecordFilter decides whether a record takes part in the run. A nil filter
// admits everything.
type RecordFilter func(model.LogRecord) bool

// CompileFilter turns a recql query into a RecordFilter. An empty query
// yields a nil filter.
func CompileFilter(query string) (RecordFilter, error) {
	node, err := recql.Parse(query)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	return func(rec model.LogRecord) bool {
		return recql.Match(node, rec)
	}, nil
}
