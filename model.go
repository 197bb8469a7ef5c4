package ollie

import "sync"

// IDColumn is the reserved identity column present on every table.
const IDColumn = "_id"

// Model is the base of every persisted type. Embed it as a value in the
// model struct; the embedded identity is managed by the generated adapter.
type Model struct {
	ID int64

	// guards the insert-or-update decision and the identity assignment
	mu sync.Mutex
}

func (m *Model) model() *Model { return m }

// Entity is implemented by every model type. The model() method is only
// satisfiable by embedding Model, so all entities carry an identity.
type Entity interface {
	TableName() string
	model() *Model
}
