package ollie

import (
	"fmt"
	"reflect"
)

// ModelDescriptor is the immutable compile-time description of one model
// type. Columns are held in declaration order so schema and statement text
// are stable across builds.
type ModelDescriptor struct {
	Type      reflect.Type
	TableName string
	Columns   []ColumnDescriptor
}

func (md *ModelDescriptor) ColumnNames() []string {
	return Map(md.Columns, func(col ColumnDescriptor) string {
		return col.Name
	})
}

// Registry aggregates model descriptors and type adapters. Register every
// model and adapter first, then Compile resolves model references and builds
// one adapter per model. The registry is read-only after Compile.
type Registry struct {
	models   map[reflect.Type]*ModelDescriptor
	tables   map[string]reflect.Type
	adapters map[reflect.Type]TypeAdapter
	order    []reflect.Type
	compiled map[reflect.Type]*ModelAdapter
}

func NewRegistry() *Registry {
	return &Registry{
		models:   make(map[reflect.Type]*ModelDescriptor),
		tables:   make(map[string]reflect.Type),
		adapters: make(map[reflect.Type]TypeAdapter),
	}
}

// RegisterAdapter registers a type adapter, keyed by its deserialized type.
// The serialized type must carry a storage kind of its own.
func (r *Registry) RegisterAdapter(adapter TypeAdapter) error {
	if r.compiled != nil {
		return ErrCompiled
	}

	if _, ok := kindOf(adapter.SerializedType()); !ok {
		return fmt.Errorf("adapter for %s serializes to %s, which has no storage kind",
			adapter.DeserializedType(), adapter.SerializedType())
	}

	r.adapters[adapter.DeserializedType()] = adapter
	return nil
}

// Register resolves the model's columns and records its descriptor. The
// argument is a prototype pointer, e.g. Register(&Note{}).
func (r *Registry) Register(model Entity) error {
	if r.compiled != nil {
		return ErrCompiled
	}

	typ := reflect.TypeOf(model)
	if typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("model must be a pointer to struct, got %s", typ)
	}
	typ = typ.Elem()

	table := model.TableName()
	if table == "" {
		return fmt.Errorf("model %s declares no table name", typ)
	}

	if existing, ok := r.tables[table]; ok {
		return &DuplicateTableNameError{Table: table, Existing: existing, Dup: typ}
	}

	if _, ok := r.models[typ]; ok {
		return fmt.Errorf("model %s registered twice", typ)
	}

	columns := []ColumnDescriptor{identityColumn()}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if skipField(field) {
			continue
		}

		col, err := resolveColumn(typ, field, i, r.adapters)
		if err != nil {
			return err
		}

		columns = append(columns, col)
	}

	r.models[typ] = &ModelDescriptor{
		Type:      typ,
		TableName: table,
		Columns:   columns,
	}
	r.tables[table] = typ
	r.order = append(r.order, typ)

	return nil
}

// Compile resolves every model reference against the registered models and
// builds the per-model adapters. Registration happens in two phases so
// mutually referencing models compile regardless of registration order.
func (r *Registry) Compile() error {
	if r.compiled != nil {
		return nil
	}

	for _, typ := range r.order {
		md := r.models[typ]
		for i := range md.Columns {
			col := &md.Columns[i]
			if !col.IsModelReference {
				continue
			}

			target, ok := r.models[col.RefType]
			if !ok {
				return fmt.Errorf("%s.%s references unregistered model %s",
					typ.Name(), col.FieldName, col.RefType)
			}

			col.RefTable = target.TableName
		}
	}

	compiled := make(map[reflect.Type]*ModelAdapter, len(r.order))
	for _, typ := range r.order {
		adapter, err := newModelAdapter(r.models[typ])
		if err != nil {
			return err
		}

		compiled[typ] = adapter
	}

	r.compiled = compiled
	return nil
}

// Adapter returns the compiled adapter for the model's type.
func (r *Registry) Adapter(model Entity) (*ModelAdapter, error) {
	return r.adapterFor(reflect.TypeOf(model).Elem())
}

func (r *Registry) adapterFor(typ reflect.Type) (*ModelAdapter, error) {
	if r.compiled == nil {
		return nil, fmt.Errorf("registry is not compiled")
	}

	adapter, ok := r.compiled[typ]
	if !ok {
		return nil, fmt.Errorf("model %s is not registered", typ)
	}

	return adapter, nil
}

// Descriptors returns every model descriptor in registration order.
func (r *Registry) Descriptors() []*ModelDescriptor {
	return Map(r.order, func(typ reflect.Type) *ModelDescriptor {
		return r.models[typ]
	})
}
