package ollie

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNoRow            = errors.New("no row")
	ErrNoIdentity       = errors.New("entity has no identity")
	ErrCompiled         = errors.New("registry already compiled")
	ErrKeyAlreadyExists = errors.New("key already exists")
)

// UnsupportedColumnTypeError reports a field whose type has no storage kind,
// no registered type adapter and is not a model reference.
type UnsupportedColumnTypeError struct {
	Model string
	Field string
	Type  reflect.Type
}

func (e *UnsupportedColumnTypeError) Error() string {
	return fmt.Sprintf("unsupported column type %s for %s.%s", e.Type, e.Model, e.Field)
}

// DuplicateTableNameError reports two model types declaring the same table.
type DuplicateTableNameError struct {
	Table    string
	Existing reflect.Type
	Dup      reflect.Type
}

func (e *DuplicateTableNameError) Error() string {
	return fmt.Sprintf("duplicate table name %q declared by %s and %s", e.Table, e.Existing, e.Dup)
}

// wrapStoreError maps well-known store failures onto the package sentinels;
// everything else passes through unchanged.
func wrapStoreError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w. %s", ErrNoRow, err.Error())
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w. %s", ErrKeyAlreadyExists, err.Error())
	}

	return err
}
