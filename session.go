package ollie

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jmoiron/sqlx"
)

// Session binds a compiled registry to an open store connection and owns the
// identity cache used for model-reference resolution. Independent sessions
// carry independent caches.
type Session struct {
	db       *sqlx.DB
	registry *Registry
	cache    *EntityCache
}

// NewSession compiles the registry, if not compiled yet, and wraps the
// connection. The caller keeps ownership of the connection.
func NewSession(db *sqlx.DB, registry *Registry) (*Session, error) {
	if err := registry.Compile(); err != nil {
		return nil, err
	}

	return &Session{
		db:       db,
		registry: registry,
		cache:    NewEntityCache(),
	}, nil
}

func (s *Session) Registry() *Registry { return s.registry }

func (s *Session) Cache() *EntityCache { return s.cache }

// CreateTables creates the table of every registered model, in registration
// order so referenced tables exist before their referrers. Safe to call on
// every startup.
func (s *Session) CreateTables(ctx context.Context) error {
	for _, md := range s.registry.Descriptors() {
		if _, err := s.db.ExecContext(ctx, md.Schema()); err != nil {
			return fmt.Errorf("create table %s: %w", md.TableName, err)
		}
	}

	return nil
}

func (s *Session) Begin(ctx context.Context) (Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &sqlTransaction{Tx: tx}, nil
}

// FindByID fetches one entity by identity. The model argument is a prototype
// naming the type; the returned entity is the cache's canonical instance.
func (s *Session) FindByID(ctx context.Context, model Entity, id int64, options ...QueryOption) (Entity, error) {
	adapter, err := s.registry.Adapter(model)
	if err != nil {
		return nil, err
	}

	qry := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", adapter.TableName(), IDColumn)
	entities, err := s.Query(ctx, model, qry, []any{id}, options...)
	if err != nil {
		return nil, err
	}

	if len(entities) == 0 {
		return nil, ErrNoRow
	}

	return entities[0], nil
}

// Query runs a raw statement and materializes every result row through the
// model's adapter. Result rows must include the identity column.
func (s *Session) Query(ctx context.Context, model Entity, sqlStr string, args []any, options ...QueryOption) ([]Entity, error) {
	adapter, err := s.registry.Adapter(model)
	if err != nil {
		return nil, err
	}

	opt := &queryOption{}
	for _, op := range options {
		op(opt)
	}

	ext := s.ext(opt)
	rows, err := ext.QueryxContext(ctx, ext.Rebind(sqlStr), args...)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	defer rows.Close()

	typ := adapter.Descriptor().Type
	var entities []Entity
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, wrapStoreError(err)
		}

		id, ok := asInt64(row[IDColumn])
		if !ok {
			return nil, fmt.Errorf("result rows for %s carry no %s column", typ, IDColumn)
		}

		entity, err := s.cache.Resolve(typ, id)
		if err != nil {
			return nil, err
		}

		if err := adapter.Load(entity, row, s.cache); err != nil {
			return nil, err
		}

		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(err)
	}

	return entities, nil
}

// Save persists the entity through its adapter and returns its identity.
func (s *Session) Save(ctx context.Context, model Entity, options ...QueryOption) (int64, error) {
	adapter, err := s.registry.Adapter(model)
	if err != nil {
		return 0, err
	}

	opt := &queryOption{}
	for _, op := range options {
		op(opt)
	}

	return adapter.Save(ctx, model, s.ext(opt))
}

// Delete removes the entity's row and evicts it from the identity cache.
func (s *Session) Delete(ctx context.Context, model Entity, options ...QueryOption) error {
	adapter, err := s.registry.Adapter(model)
	if err != nil {
		return err
	}

	opt := &queryOption{}
	for _, op := range options {
		op(opt)
	}

	id := model.model().ID
	if err := adapter.Delete(ctx, model, s.ext(opt)); err != nil {
		return err
	}

	s.cache.Remove(reflect.TypeOf(model).Elem(), id)
	return nil
}

func (s *Session) ext(opt *queryOption) sqlx.ExtContext {
	if opt.Tx != nil {
		if tx, ok := opt.Tx.(*sqlTransaction); ok {
			return tx.Tx
		}
	}

	return s.db
}

type sqlTransaction struct {
	Tx *sqlx.Tx
}

func (st *sqlTransaction) Commit(_ context.Context) error {
	return st.Tx.Commit()
}

func (st *sqlTransaction) Rollback(_ context.Context) error {
	return st.Tx.Rollback()
}
