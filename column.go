package ollie

import (
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"
)

var entityType = reflect.TypeOf((*Entity)(nil)).Elem()

// ColumnDescriptor is the resolved mapping of one struct field to one
// storage column. A column is exactly one of plain, model reference or
// adapter backed; the three outcomes never combine.
type ColumnDescriptor struct {
	Name       string
	FieldName  string
	FieldIndex int
	FieldType  reflect.Type

	Kind     Kind
	Nullable bool
	IsKey    bool

	// model reference: the field's type is itself a model, persisted as
	// the referenced row's identity
	IsModelReference bool
	RefType          reflect.Type
	RefTable         string

	// adapter backed: Kind is the adapter's serialized kind
	Adapter TypeAdapter
}

func (c ColumnDescriptor) RequiresTypeAdapter() bool {
	return c.Adapter != nil
}

// definition returns the column's clause in the table schema.
func (c ColumnDescriptor) definition() string {
	if c.IsKey {
		return c.Name + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	def := c.Name + " " + c.Kind.SQLType()
	if !c.Nullable {
		def += " NOT NULL"
	}

	return def
}

// identityColumn is the fixed descriptor for the reserved identity column.
func identityColumn() ColumnDescriptor {
	return ColumnDescriptor{
		Name:      IDColumn,
		FieldName: "ID",
		Kind:      KindInt64,
		IsKey:     true,
	}
}

// resolveColumn resolves one field declaration, or fails when the type has
// no storage mapping. Resolution order: model reference, type adapter,
// storage kind table.
func resolveColumn(model reflect.Type, field reflect.StructField, index int, adapters map[reflect.Type]TypeAdapter) (ColumnDescriptor, error) {
	col := ColumnDescriptor{
		Name:       columnName(field),
		FieldName:  field.Name,
		FieldIndex: index,
		FieldType:  field.Type,
	}

	if field.Type.Kind() == reflect.Ptr && field.Type.Implements(entityType) {
		col.IsModelReference = true
		col.RefType = field.Type.Elem()
		col.Kind = KindInt64
		col.Nullable = true
		return col, nil
	}

	if adapter, nullable, ok := adapterFor(field.Type, adapters); ok {
		entry, ok := kindOf(adapter.SerializedType())
		if !ok {
			// adapters do not chain; the serialized type must be native
			return col, &UnsupportedColumnTypeError{
				Model: model.Name(),
				Field: field.Name,
				Type:  adapter.SerializedType(),
			}
		}

		col.Adapter = adapter
		col.Kind = entry.kind
		col.Nullable = nullable
		return col, nil
	}

	if entry, ok := kindOf(field.Type); ok {
		col.Kind = entry.kind
		col.Nullable = entry.nullable
		return col, nil
	}

	return col, &UnsupportedColumnTypeError{
		Model: model.Name(),
		Field: field.Name,
		Type:  field.Type,
	}
}

// adapterFor looks up the adapter for a declared type. The pointer form of a
// registered deserialized type resolves to the same adapter as nullable.
func adapterFor(typ reflect.Type, adapters map[reflect.Type]TypeAdapter) (TypeAdapter, bool, bool) {
	if a, ok := adapters[typ]; ok {
		return a, false, true
	}

	if typ.Kind() == reflect.Ptr {
		if a, ok := adapters[typ.Elem()]; ok {
			return a, true, true
		}
	}

	return nil, false, false
}

func columnName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("db"); ok {
		if name := strings.TrimSpace(strings.Split(tag, ",")[0]); name != "" {
			return name
		}
	}

	return strcase.ToSnake(field.Name)
}

func skipField(field reflect.StructField) bool {
	if field.Anonymous || field.PkgPath != "" {
		return true
	}

	return field.Tag.Get("db") == "-"
}
