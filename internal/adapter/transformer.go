// Package adapter maps typed records to and from wire values declaratively.
//
// A Transformer converts one native value to an encoded value and back. A
// Field binds a map key to a getter, a functional setter and a Transformer.
// An Adapter is an ordered list of Fields; it is itself usable as a
// Transformer, so records nest.
//
//	var timeAdapter = adapter.For(
//		adapter.Bind("hour", func(t T) int { return t.Hour }, func(t T, h int) T { t.Hour = h; return t }, adapter.Int()),
//		...
//	)
//
// Every transform reports failure through its error result.
package adapter

import (
	"errors"
	"fmt"
	"strings"

	"medrx/internal/wire"
)

var (
	// ErrMissingKey is returned when a field without a default is absent.
	ErrMissingKey = errors.New("missing key")

	// ErrKind is returned when an encoded value has the wrong kind.
	ErrKind = errors.New("wrong kind")

	// ErrRange is returned when an encoded integer does not fit the native type.
	ErrRange = errors.New("value out of range")

	// ErrExtensionType is returned when an extension blob carries another type code.
	ErrExtensionType = errors.New("extension type mismatch")
)

// FieldError locates a failure at a key path such as "schedule.days" or "times[2].hour".
type FieldError struct {
	Key string
	Err error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// atKey prefixes err's key path with key.
func atKey(key string, err error) error {
	if fe, ok := err.(*FieldError); ok {
		sep := "."
		if strings.HasPrefix(fe.Key, "[") {
			sep = ""
		}
		return &FieldError{Key: key + sep + fe.Key, Err: fe.Err}
	}
	return &FieldError{Key: key, Err: err}
}

func kindError(want string, got any) error {
	return fmt.Errorf("%w: want %s, got %s", ErrKind, want, wire.KindOf(got))
}

// Transformer converts a native value of type F to and from an encoded wire value.
type Transformer[F any] struct {
	forward func(F) (any, error)
	reverse func(any) (F, error)

	fallback    any
	hasFallback bool
}

// Transform builds a Transformer from a forward and a reverse function. The
// result has no default, so a Field using it is required.
func Transform[F any](forward func(F) (any, error), reverse func(any) (F, error)) Transformer[F] {
	return Transformer[F]{forward: forward, reverse: reverse}
}

// Encode converts a native value to its encoded form.
func (t Transformer[F]) Encode(v F) (any, error) {
	return t.forward(v)
}

// Decode converts an encoded value back to its native form.
func (t Transformer[F]) Decode(v any) (F, error) {
	return t.reverse(v)
}

// WithDefault returns a copy of t that decodes v when the key is absent.
func (t Transformer[F]) WithDefault(v any) Transformer[F] {
	t.fallback = v
	t.hasFallback = true
	return t
}

// Required returns a copy of t without a default.
func (t Transformer[F]) Required() Transformer[F] {
	t.fallback = nil
	t.hasFallback = false
	return t
}

// Default returns the encoded value substituted for an absent key.
func (t Transformer[F]) Default() (any, bool) {
	return t.fallback, t.hasFallback
}

// Map derives a Transformer for B from one for A. to runs before encoding and
// from runs after decoding. The default of t carries over.
func Map[A, B any](t Transformer[A], to func(B) (A, error), from func(A) (B, error)) Transformer[B] {
	return Transformer[B]{
		forward: func(b B) (any, error) {
			a, err := to(b)
			if err != nil {
				return nil, err
			}
			return t.forward(a)
		},
		reverse: func(v any) (B, error) {
			a, err := t.reverse(v)
			if err != nil {
				var zero B
				return zero, err
			}
			return from(a)
		},
		fallback:    t.fallback,
		hasFallback: t.hasFallback,
	}
}
