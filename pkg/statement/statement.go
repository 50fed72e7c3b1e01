// Package statement models PQL-style filter statements for the Ad Manager
// sites endpoint. A statement selects records; pagination is owned by the
// query planner, never by the caller.
package statement

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPaginationClause is returned when a statement already carries its own
// LIMIT or OFFSET clause.
var ErrPaginationClause = errors.New("limit and offset are not supported")

// Statement is a filter query plus optional bound parameter values.
// Statements are value types and never mutated after construction.
type Statement struct {
	Query  string
	Values map[string]any
}

// New creates a statement with the given query and bind values.
func New(query string, values map[string]any) Statement {
	return Statement{Query: query, Values: values}
}

// Validate rejects statements that already specify pagination.
// The check is case-insensitive and substring-based: a query mentioning
// "limit" anywhere is refused before any remote call is made.
func (s Statement) Validate() error {
	q := strings.ToLower(s.Query)
	if strings.Contains(q, "limit") || strings.Contains(q, "offset") {
		return ErrPaginationClause
	}
	return nil
}

// WithPagination returns a copy of the statement with a LIMIT/OFFSET clause
// appended. Bind values are carried unchanged.
func (s Statement) WithPagination(limit, offset int) Statement {
	query := strings.TrimSpace(s.Query)
	if query == "" {
		return Statement{
			Query:  fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset),
			Values: s.Values,
		}
	}
	return Statement{
		Query:  fmt.Sprintf("%s LIMIT %d OFFSET %d", query, limit, offset),
		Values: s.Values,
	}
}
