package ollie

import (
	"fmt"
	"strings"
)

// Schema returns the table definition for the model. Creation is idempotent;
// schema evolution is out of scope, so no ALTER or DROP is ever emitted.
func (md *ModelDescriptor) Schema() string {
	defs := Map(md.Columns, func(col ColumnDescriptor) string {
		return col.definition()
	})

	refs := Filter(md.Columns, func(col ColumnDescriptor) bool {
		return col.IsModelReference
	})

	for _, col := range refs {
		defs = append(defs, fmt.Sprintf("FOREIGN KEY(%s) REFERENCES %s(%s)",
			col.Name, col.RefTable, IDColumn))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", md.TableName, strings.Join(defs, ", "))
}
