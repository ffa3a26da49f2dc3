package testutils

import (
	"context"
)

type ExecutedQuery struct {
	Query  string
	Params map[string]any
}

// QueryExecutorStub answers queries with canned rows looked up by query text.
type QueryExecutorStub struct {
	Results  map[string][]map[string]any
	Executed []ExecutedQuery
	Err      error
}

func NewQueryExecutorStub() *QueryExecutorStub {
	return &QueryExecutorStub{Results: make(map[string][]map[string]any)}
}

func (e *QueryExecutorStub) On(query string, rows ...map[string]any) *QueryExecutorStub {
	e.Results[query] = rows
	return e
}

func (e *QueryExecutorStub) Execute(_ context.Context, query string, params map[string]any) ([]map[string]any, error) {
	e.Executed = append(e.Executed, ExecutedQuery{Query: query, Params: params})
	if e.Err != nil {
		return nil, e.Err
	}
	return e.Results[query], nil
}
