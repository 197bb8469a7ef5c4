package ollie

import (
	"fmt"
	"reflect"
	"time"
)

// TypeAdapter converts between an in-memory type the store cannot hold and a
// serialized type it can. Adapters are registered on a Registry and looked up
// by their deserialized type; they do not chain, so the serialized type must
// itself carry a storage kind.
type TypeAdapter interface {
	DeserializedType() reflect.Type
	SerializedType() reflect.Type
	Serialize(value any) (any, error)
	Deserialize(value any) (any, error)
}

// TimeAdapter persists time.Time as unix milliseconds.
type TimeAdapter struct{}

func (TimeAdapter) DeserializedType() reflect.Type { return reflect.TypeOf(time.Time{}) }

func (TimeAdapter) SerializedType() reflect.Type { return reflect.TypeOf(int64(0)) }

func (TimeAdapter) Serialize(value any) (any, error) {
	t, ok := value.(time.Time)
	if !ok {
		return nil, fmt.Errorf("expecting time.Time, got %T", value)
	}

	return t.UnixMilli(), nil
}

func (TimeAdapter) Deserialize(value any) (any, error) {
	ms, ok := value.(int64)
	if !ok {
		return nil, fmt.Errorf("expecting int64, got %T", value)
	}

	return time.UnixMilli(ms).UTC(), nil
}

// BoolAdapter persists bool as 0/1.
type BoolAdapter struct{}

func (BoolAdapter) DeserializedType() reflect.Type { return reflect.TypeOf(false) }

func (BoolAdapter) SerializedType() reflect.Type { return reflect.TypeOf(int64(0)) }

func (BoolAdapter) Serialize(value any) (any, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("expecting bool, got %T", value)
	}

	if b {
		return int64(1), nil
	}

	return int64(0), nil
}

func (BoolAdapter) Deserialize(value any) (any, error) {
	n, ok := value.(int64)
	if !ok {
		return nil, fmt.Errorf("expecting int64, got %T", value)
	}

	return n != 0, nil
}
