package orm

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNoResultRows is returned by StatementRecorder for every read.
var ErrNoResultRows = errors.New("recorder: reads return no rows")

// Statement is one statement seen by a StatementRecorder.
type Statement struct {
	SQL  string
	Args []any
}

// StatementRecorder is a Querier that keeps every statement instead of
// running it. Each write reports the next value of NextID as its insert id.
type StatementRecorder struct {
	Dialect    Dialect
	NextID     int64
	Statements []Statement
}

func NewStatementRecorder(d Dialect) *StatementRecorder {
	return &StatementRecorder{Dialect: d, NextID: 1}
}

func (r *StatementRecorder) QueryContext(_ context.Context, query string, args ...any) (*sql.Rows, error) {
	r.Statements = append(r.Statements, Statement{query, args})
	return nil, ErrNoResultRows
}

func (r *StatementRecorder) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	r.Statements = append(r.Statements, Statement{query, args})
	id := r.NextID
	r.NextID++
	return insertResult(id), nil
}

// Last returns the most recent statement, or the zero Statement.
func (r *StatementRecorder) Last() Statement {
	if len(r.Statements) == 0 {
		return Statement{}
	}
	return r.Statements[len(r.Statements)-1]
}

func (r *StatementRecorder) dialect() Dialect { return r.Dialect }

type insertResult int64

func (r insertResult) LastInsertId() (int64, error) { return int64(r), nil }
func (insertResult) RowsAffected() (int64, error)   { return 1, nil }
