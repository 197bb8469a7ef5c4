package ollie

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Query is a thin statement builder over one model's table. It constructs
// SQL text; execution and row materialization go through the Session.
type Query struct {
	session *Session
	model   Entity
	wheres  []string
	args    []any
	sorter  []string
	limit   int
	offset  int64
}

func (s *Session) Select(model Entity) *Query {
	return &Query{
		session: s,
		model:   model,
	}
}

// Where appends a parameterized clause; clauses join with AND.
func (q *Query) Where(clause string, args ...any) *Query {
	q.wheres = append(q.wheres, clause)
	q.args = append(q.args, args...)
	return q
}

// OrderBy takes column names, prefixed with "-" for descending order.
func (q *Query) OrderBy(fields ...string) *Query {
	q.sorter = append(q.sorter, fields...)
	return q
}

func (q *Query) Limit(limit int) *Query {
	q.limit = limit
	return q
}

func (q *Query) Offset(offset int64) *Query {
	q.offset = offset
	return q
}

// SQL returns the statement text and its arguments.
func (q *Query) SQL() (string, []any) {
	return q.sql("*")
}

func (q *Query) sql(expr string) (string, []any) {
	qry := strings.Builder{}
	qry.WriteString(fmt.Sprintf("SELECT %s FROM %s", expr, q.model.TableName()))

	if len(q.wheres) > 0 {
		qry.WriteString(" WHERE " + strings.Join(q.wheres, " AND "))
	}

	if sort := makeSortClause(q.sorter); sort != "" {
		qry.WriteString(" ORDER BY " + sort)
	}

	qry.WriteString(makeLimitOffsetClause(q.limit, q.offset))

	return qry.String(), q.args
}

func (q *Query) Fetch(ctx context.Context, options ...QueryOption) ([]Entity, error) {
	qry, args := q.SQL()
	return q.session.Query(ctx, q.model, qry, args, options...)
}

// FetchOne returns the first matching entity, or nil when nothing matches.
func (q *Query) FetchOne(ctx context.Context, options ...QueryOption) (Entity, error) {
	limited := *q
	limited.limit = 1

	entities, err := limited.Fetch(ctx, options...)
	if err != nil {
		return nil, err
	}

	if len(entities) == 0 {
		return nil, nil
	}

	return entities[0], nil
}

// FetchValue evaluates a single-column expression against the first matching
// row into dest, honoring the query's sort and offset. An empty result leaves
// dest untouched and is not an error.
func (q *Query) FetchValue(ctx context.Context, expr string, dest any, options ...QueryOption) error {
	opt := &queryOption{}
	for _, op := range options {
		op(opt)
	}

	limited := *q
	limited.limit = 1
	qry, args := limited.sql(expr)

	ext := q.session.ext(opt)
	err := ext.QueryRowxContext(ctx, ext.Rebind(qry), args...).Scan(dest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}

	return err
}

// Result is one delivery from FetchAsync.
type Result struct {
	Entities []Entity
	Err      error
}

// FetchAsync runs the fetch on its own goroutine and delivers the result on
// the returned channel. Cancelling the context suppresses delivery of an
// already-computed result; it does not interrupt the fetch itself.
func (q *Query) FetchAsync(ctx context.Context, options ...QueryOption) <-chan Result {
	out := make(chan Result, 1)

	go func() {
		defer close(out)

		entities, err := q.Fetch(ctx, options...)
		if ctx.Err() != nil {
			return
		}

		out <- Result{Entities: entities, Err: err}
	}()

	return out
}

func makeSortClause(sorter []string) string {
	if len(sorter) == 0 {
		return ""
	}

	var srt []string
	for _, s := range sorter {
		op := "ASC"
		field := s
		if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
			field = s[1:]
			if s[:1] == "-" {
				op = "DESC"
			}
		}

		srt = append(srt, fmt.Sprintf("%s %s", field, op))
	}

	return strings.Join(srt, ", ")
}

func makeLimitOffsetClause(limit int, offset int64) string {
	if limit < 0 {
		limit = 0
	}

	qry := strings.Builder{}

	if limit > 0 {
		qry.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	}

	if offset > 0 {
		qry.WriteString(fmt.Sprintf(" OFFSET %d", offset))
	}

	return qry.String()
}
