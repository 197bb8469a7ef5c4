package ollie

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
)

type Note struct {
	Model
	Title     string      `db:"title"`
	Body      null.String `db:"body"`
	Pinned    bool        `db:"pinned"`
	CreatedAt time.Time   `db:"created_at"`
}

func (n *Note) TableName() string { return "notes" }

type Person struct {
	Model
	Name    string  `db:"name"`
	Manager *Person `db:"manager"`
}

func (p *Person) TableName() string { return "people" }

type Payload struct {
	Model
	Data  []byte   `db:"data"`
	Ratio float64  `db:"ratio"`
	Scale float32  `db:"scale"`
	Total int32    `db:"total"`
	Big   int64    `db:"big"`
	Small int16    `db:"small"`
	Label string   `db:"label"`
	Hint  *string  `db:"hint"`
	Score null.Int `db:"score"`
}

func (p *Payload) TableName() string { return "payloads" }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r := NewRegistry()
	require.NoError(t, r.RegisterAdapter(TimeAdapter{}))
	require.NoError(t, r.RegisterAdapter(BoolAdapter{}))
	require.NoError(t, r.Register(&Note{}))
	require.NoError(t, r.Register(&Person{}))
	require.NoError(t, r.Register(&Payload{}))

	return r
}

func newTestSession(t *testing.T) *Session {
	t.Helper()

	db, err := ConnectSqlite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	session, err := NewSession(db, newTestRegistry(t))
	require.NoError(t, err)
	require.NoError(t, session.CreateTables(context.Background()))

	return session
}

func countRows(t *testing.T, session *Session, model Entity) int64 {
	t.Helper()

	var count int64
	require.NoError(t, session.Select(model).FetchValue(context.Background(), "COUNT(*)", &count))
	return count
}
