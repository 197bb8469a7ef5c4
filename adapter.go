package ollie

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
)

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// EntityResolver returns the canonical in-memory instance for a model row,
// constructing and caching one on first access. Load uses it to resolve
// model references; the Session's entity cache is the usual implementation.
type EntityResolver interface {
	Resolve(typ reflect.Type, id int64) (Entity, error)
}

type loadFunc func(entity reflect.Value, row map[string]any, res EntityResolver) error

type valueFunc func(entity reflect.Value) (any, error)

// ModelAdapter is the compiled persistence unit for one model type. It is
// stateless and safe for unbounded concurrent reuse; all type mapping was
// resolved when the registry compiled, none happens per row.
type ModelAdapter struct {
	descriptor *ModelDescriptor
	schema     string

	loaders []loadFunc
	valuers map[string]valueFunc
	columns []string // non-identity column names, declaration order

	insertSQL string
	updateSQL string
	deleteSQL string
}

func newModelAdapter(md *ModelDescriptor) (*ModelAdapter, error) {
	adapter := &ModelAdapter{
		descriptor: md,
		schema:     md.Schema(),
		valuers:    make(map[string]valueFunc),
	}

	for _, col := range md.Columns {
		adapter.loaders = append(adapter.loaders, compileLoader(col))
		if col.IsKey {
			continue
		}

		adapter.valuers[col.Name] = compileValuer(col)
		adapter.columns = append(adapter.columns, col.Name)
	}

	if len(adapter.columns) == 0 {
		adapter.insertSQL = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", md.TableName)
	} else {
		placeholders := "?" + strings.Repeat(", ?", len(adapter.columns)-1)
		adapter.insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			md.TableName, strings.Join(adapter.columns, ", "), placeholders)

		sets := Map(adapter.columns, func(name string) string {
			return name + " = ?"
		})
		adapter.updateSQL = fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			md.TableName, strings.Join(sets, ", "), IDColumn)
	}

	adapter.deleteSQL = fmt.Sprintf("DELETE FROM %s WHERE %s = ?", md.TableName, IDColumn)

	return adapter, nil
}

func (a *ModelAdapter) TableName() string { return a.descriptor.TableName }

// Schema returns the CREATE TABLE IF NOT EXISTS statement for the model.
func (a *ModelAdapter) Schema() string { return a.schema }

func (a *ModelAdapter) Descriptor() *ModelDescriptor { return a.descriptor }

// Load populates the entity in place from one row. Rows are keyed by column
// name; assignment order across columns carries no meaning.
func (a *ModelAdapter) Load(entity Entity, row map[string]any, res EntityResolver) error {
	ev := reflect.ValueOf(entity).Elem()
	for _, load := range a.loaders {
		if err := load(ev, row, res); err != nil {
			return err
		}
	}

	return nil
}

// Values builds the column name to value map persisted by Save. Exposed so
// callers can inspect what a save would write.
func (a *ModelAdapter) Values(entity Entity) (map[string]any, error) {
	ev := reflect.ValueOf(entity).Elem()
	values := make(map[string]any, len(a.columns))
	for name, valuer := range a.valuers {
		val, err := valuer(ev)
		if err != nil {
			return nil, err
		}

		values[name] = val
	}

	return values, nil
}

// Save persists the entity and returns its identity. An entity without an
// identity is inserted and the generated identity assigned back onto it;
// an identified entity is updated in place. The decision and the assignment
// happen under the entity's lock, so two concurrent saves of the same
// unsaved entity cannot insert two rows.
func (a *ModelAdapter) Save(ctx context.Context, entity Entity, db sqlx.ExtContext) (int64, error) {
	values, err := a.Values(entity)
	if err != nil {
		return 0, err
	}

	args := Map(a.columns, func(name string) any {
		return values[name]
	})

	m := entity.model()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ID == 0 {
		res, err := db.ExecContext(ctx, db.Rebind(a.insertSQL), args...)
		if err != nil {
			return 0, wrapStoreError(err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return 0, wrapStoreError(err)
		}

		m.ID = id
		return id, nil
	}

	if a.updateSQL == "" {
		// only the identity column exists; nothing to update
		return m.ID, nil
	}

	args = append(args, m.ID)
	if _, err := db.ExecContext(ctx, db.Rebind(a.updateSQL), args...); err != nil {
		return 0, wrapStoreError(err)
	}

	return m.ID, nil
}

// Delete removes the entity's row. An entity with no identity fails fast
// rather than issuing a delete that matches nothing.
func (a *ModelAdapter) Delete(ctx context.Context, entity Entity, db sqlx.ExtContext) error {
	id := entity.model().ID
	if id == 0 {
		return ErrNoIdentity
	}

	if _, err := db.ExecContext(ctx, db.Rebind(a.deleteSQL), id); err != nil {
		return wrapStoreError(err)
	}

	return nil
}

func compileLoader(col ColumnDescriptor) loadFunc {
	if col.IsKey {
		return loadIdentity(col)
	}

	if col.IsModelReference {
		return loadReference(col)
	}

	if col.RequiresTypeAdapter() {
		return loadAdapted(col)
	}

	return loadPlain(col)
}

func loadIdentity(col ColumnDescriptor) loadFunc {
	return func(ev reflect.Value, row map[string]any, _ EntityResolver) error {
		raw, err := rowValue(row, col.Name)
		if err != nil {
			return err
		}

		if raw == nil {
			return nil
		}

		id, ok := asInt64(raw)
		if !ok {
			return fmt.Errorf("cannot read %T as identity for column %s", raw, col.Name)
		}

		ev.Addr().Interface().(Entity).model().ID = id
		return nil
	}
}

func loadReference(col ColumnDescriptor) loadFunc {
	return func(ev reflect.Value, row map[string]any, res EntityResolver) error {
		raw, err := rowValue(row, col.Name)
		if err != nil {
			return err
		}

		field := ev.Field(col.FieldIndex)
		if raw == nil {
			field.Set(reflect.Zero(col.FieldType))
			return nil
		}

		id, ok := asInt64(raw)
		if !ok {
			return fmt.Errorf("cannot read %T as reference for column %s", raw, col.Name)
		}

		ref, err := res.Resolve(col.RefType, id)
		if err != nil {
			return err
		}

		field.Set(reflect.ValueOf(ref))
		return nil
	}
}

func loadAdapted(col ColumnDescriptor) loadFunc {
	return func(ev reflect.Value, row map[string]any, _ EntityResolver) error {
		raw, err := rowValue(row, col.Name)
		if err != nil {
			return err
		}

		field := ev.Field(col.FieldIndex)
		if raw == nil {
			field.Set(reflect.Zero(col.FieldType))
			return nil
		}

		serialized, err := coerce(col.Kind, raw)
		if err != nil {
			return fmt.Errorf("column %s: %w", col.Name, err)
		}

		val, err := col.Adapter.Deserialize(serialized)
		if err != nil {
			return fmt.Errorf("column %s: %w", col.Name, err)
		}

		return setField(field, val)
	}
}

func loadPlain(col ColumnDescriptor) loadFunc {
	return func(ev reflect.Value, row map[string]any, _ EntityResolver) error {
		raw, err := rowValue(row, col.Name)
		if err != nil {
			return err
		}

		field := ev.Field(col.FieldIndex)
		if field.Addr().Type().Implements(scannerType) {
			return field.Addr().Interface().(sql.Scanner).Scan(raw)
		}

		if raw == nil {
			field.Set(reflect.Zero(col.FieldType))
			return nil
		}

		val, err := coerce(col.Kind, raw)
		if err != nil {
			return fmt.Errorf("column %s: %w", col.Name, err)
		}

		return setField(field, val)
	}
}

func compileValuer(col ColumnDescriptor) valueFunc {
	if col.IsModelReference {
		return func(ev reflect.Value) (any, error) {
			field := ev.Field(col.FieldIndex)
			if field.IsNil() {
				return nil, nil
			}

			// an unsaved reference has no identity yet; store null
			id := field.Interface().(Entity).model().ID
			if id == 0 {
				return nil, nil
			}

			return id, nil
		}
	}

	if col.RequiresTypeAdapter() {
		return func(ev reflect.Value) (any, error) {
			field := ev.Field(col.FieldIndex)
			if field.Kind() == reflect.Ptr {
				if field.IsNil() {
					return nil, nil
				}

				field = field.Elem()
			}

			return col.Adapter.Serialize(field.Interface())
		}
	}

	return func(ev reflect.Value) (any, error) {
		field := ev.Field(col.FieldIndex)
		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				return nil, nil
			}

			field = field.Elem()
		}

		val := field.Interface()
		if v, ok := val.(driver.Valuer); ok {
			return v.Value()
		}

		return val, nil
	}
}

// setField assigns a loaded value into a struct field, allocating through
// the pointer form when the field is nullable.
func setField(field reflect.Value, val any) error {
	vv := reflect.ValueOf(val)
	typ := field.Type()

	if typ.Kind() == reflect.Ptr {
		if !vv.Type().ConvertibleTo(typ.Elem()) {
			return fmt.Errorf("cannot assign %s into %s", vv.Type(), typ)
		}

		ptr := reflect.New(typ.Elem())
		ptr.Elem().Set(vv.Convert(typ.Elem()))
		field.Set(ptr)
		return nil
	}

	if !vv.Type().ConvertibleTo(typ) {
		return fmt.Errorf("cannot assign %s into %s", vv.Type(), typ)
	}

	field.Set(vv.Convert(typ))
	return nil
}

func rowValue(row map[string]any, name string) (any, error) {
	raw, ok := row[name]
	if !ok {
		return nil, fmt.Errorf("row has no column %s", name)
	}

	return raw, nil
}
