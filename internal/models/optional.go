package models

type optionalState uint8

const (
	optUnset optionalState = iota
	optNull
	optValue
)

// Optional distinguishes "leave unchanged" (Unset) from "clear" (Null) and "set to" (Some).
// The zero value is Unset.
type Optional[T any] struct {
	state optionalState
	value T
}

func Unset[T any]() Optional[T] {
	return Optional[T]{}
}

func Null[T any]() Optional[T] {
	return Optional[T]{state: optNull}
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{state: optValue, value: v}
}

// IsSet reports whether the field was provided at all, as null or a value
func (o Optional[T]) IsSet() bool {
	return o.state != optUnset
}

func (o Optional[T]) IsNull() bool {
	return o.state == optNull
}

// Get returns the value and true only in the Some state
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.state == optValue
}

// Ptr returns nil for Null and a pointer to the value for Some. Callers check IsSet first.
func (o Optional[T]) Ptr() *T {
	if o.state != optValue {
		return nil
	}
	v := o.value
	return &v
}
