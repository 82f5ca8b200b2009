package adapter

import (
	"fmt"
	"reflect"
)

// Optional lifts t to a pointer. A nil pointer encodes as absent, and an
// encoded value equal to absent (or nil) decodes as a nil pointer. Absent keys
// decode as a nil pointer too.
func Optional[F any](t Transformer[F], absent any) Transformer[*F] {
	return Transform(
		func(p *F) (any, error) {
			if p == nil {
				return absent, nil
			}
			return t.forward(*p)
		},
		func(v any) (*F, error) {
			if v == nil || reflect.DeepEqual(v, absent) {
				return nil, nil
			}
			f, err := t.reverse(v)
			if err != nil {
				return nil, err
			}
			return &f, nil
		},
	).WithDefault(absent)
}

// Array maps elem over a slice and wraps the result in an encoded array.
// Absent keys decode as an empty slice.
func Array[E any](elem Transformer[E]) Transformer[[]E] {
	return Transform(
		func(s []E) (any, error) {
			out := make([]any, len(s))
			for i, e := range s {
				v, err := elem.forward(e)
				if err != nil {
					return nil, atKey(fmt.Sprintf("[%d]", i), err)
				}
				out[i] = v
			}
			return out, nil
		},
		func(v any) ([]E, error) {
			arr, ok := v.([]any)
			if !ok {
				return nil, kindError("array", v)
			}
			out := make([]E, len(arr))
			for i, raw := range arr {
				e, err := elem.reverse(raw)
				if err != nil {
					return nil, atKey(fmt.Sprintf("[%d]", i), err)
				}
				out[i] = e
			}
			return out, nil
		},
	).WithDefault([]any{})
}

// Field binds one map key of a record of type T.
type Field[T any] struct {
	key      string
	encode   func(T) (any, error)
	decode   func(T, any) (T, error)
	fallback func() (any, bool)
}

// Key returns the map key of the field.
func (f Field[T]) Key() string {
	return f.key
}

// Bind pairs a getter and a functional setter on T with a Transformer for the
// field's native type F.
func Bind[T, F any](key string, get func(T) F, set func(T, F) T, t Transformer[F]) Field[T] {
	return Field[T]{
		key: key,
		encode: func(rec T) (any, error) {
			return t.forward(get(rec))
		},
		decode: func(rec T, v any) (T, error) {
			f, err := t.reverse(v)
			if err != nil {
				return rec, err
			}
			return set(rec, f), nil
		},
		fallback: t.Default,
	}
}

// Adapter converts records of type T to and from string-keyed wire maps.
type Adapter[T any] struct {
	fields []Field[T]
}

// For builds an Adapter from fields. Fields are encoded and decoded in the
// order given.
func For[T any](fields ...Field[T]) *Adapter[T] {
	return &Adapter[T]{fields: fields}
}

// Keys returns the field keys in order.
func (a *Adapter[T]) Keys() []string {
	keys := make([]string, len(a.fields))
	for i, f := range a.fields {
		keys[i] = f.key
	}
	return keys
}

// Encode builds the wire map for v. The first failing field aborts the encode.
func (a *Adapter[T]) Encode(v T) (map[string]any, error) {
	out := make(map[string]any, len(a.fields))
	for _, f := range a.fields {
		encoded, err := f.encode(v)
		if err != nil {
			return nil, atKey(f.key, err)
		}
		out[f.key] = encoded
	}
	return out, nil
}

// Decode applies the fields of the encoded map to prev in order and returns
// the updated record. Absent keys use the field's default; an absent key with
// no default is an ErrMissingKey. The first failing field aborts the decode
// and prev is returned unchanged.
func (a *Adapter[T]) Decode(prev T, encoded any) (T, error) {
	m, ok := encoded.(map[string]any)
	if !ok {
		return prev, kindError("map", encoded)
	}

	cur := prev
	for _, f := range a.fields {
		raw, present := m[f.key]
		if !present {
			fallback, ok := f.fallback()
			if !ok {
				return prev, &FieldError{Key: f.key, Err: ErrMissingKey}
			}
			raw = fallback
		}
		next, err := f.decode(cur, raw)
		if err != nil {
			return prev, atKey(f.key, err)
		}
		cur = next
	}
	return cur, nil
}

// Nested returns a Transformer that encodes records with a and decodes them
// starting from zero(). It has no default.
func Nested[T any](a *Adapter[T], zero func() T) Transformer[T] {
	return Transform(
		func(v T) (any, error) {
			return a.Encode(v)
		},
		func(v any) (T, error) {
			return a.Decode(zero(), v)
		},
	)
}
