package adapter

import (
	"fmt"
	"math"
	"time"

	"medrx/internal/wire"
)

// Bool transforms a bool. Absent keys decode as false.
func Bool() Transformer[bool] {
	return Transform(
		func(v bool) (any, error) { return v, nil },
		func(v any) (bool, error) {
			b, ok := v.(bool)
			if !ok {
				return false, kindError("bool", v)
			}
			return b, nil
		},
	).WithDefault(false)
}

// String transforms a string. Absent keys decode as "".
func String() Transformer[string] {
	return Transform(
		func(v string) (any, error) { return v, nil },
		func(v any) (string, error) {
			s, ok := v.(string)
			if !ok {
				return "", kindError("string", v)
			}
			return s, nil
		},
	).WithDefault("")
}

// Bytes passes a binary blob through unmodified. Absent keys and nil decode as nil.
func Bytes() Transformer[[]byte] {
	return Transform(
		func(v []byte) (any, error) { return v, nil },
		func(v any) ([]byte, error) {
			switch b := v.(type) {
			case nil:
				return nil, nil
			case []byte:
				return b, nil
			default:
				return nil, kindError("binary", v)
			}
		},
	).WithDefault(nil)
}

// Float64 transforms a float64. Integers are accepted on decode. Absent keys decode as 0.
func Float64() Transformer[float64] {
	return Transform(
		func(v float64) (any, error) { return v, nil },
		func(v any) (float64, error) {
			switch f := v.(type) {
			case float64:
				return f, nil
			case float32:
				return float64(f), nil
			case int64:
				return float64(f), nil
			case uint64:
				return float64(f), nil
			default:
				return 0, kindError("float", v)
			}
		},
	).WithDefault(float64(0))
}

// integer is the set of native integer types Integer can transform.
type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Integer transforms any integer type. Signed types encode as signed integers
// and unsigned types as unsigned integers; decode accepts either and rejects
// values that do not fit N. Absent keys decode as 0.
func Integer[N integer]() Transformer[N] {
	var probe N
	probe--
	signed := probe < 0

	return Transform(
		func(v N) (any, error) {
			if signed {
				return int64(v), nil
			}
			return uint64(v), nil
		},
		func(v any) (N, error) {
			switch i := v.(type) {
			case int64:
				n := N(i)
				if int64(n) != i || (!signed && i < 0) {
					return 0, fmt.Errorf("%w: %d", ErrRange, i)
				}
				return n, nil
			case uint64:
				n := N(i)
				if uint64(n) != i || (signed && n < 0) {
					return 0, fmt.Errorf("%w: %d", ErrRange, i)
				}
				return n, nil
			default:
				return 0, kindError("integer", v)
			}
		},
	).WithDefault(int64(0))
}

// Int transforms an int.
func Int() Transformer[int] {
	return Integer[int]()
}

// Ranged restricts an integer Transformer to [lo, hi] in both directions.
func Ranged[N integer](t Transformer[N], lo, hi N) Transformer[N] {
	check := func(v N) (N, error) {
		if v < lo || v > hi {
			return v, fmt.Errorf("%w: %d not in [%d, %d]", ErrRange, v, lo, hi)
		}
		return v, nil
	}
	return Map(t, check, check)
}

// Date transforms a time.Time as a float64 count of seconds since the Unix
// epoch. Decoded times are in UTC with microsecond precision.
func Date() Transformer[time.Time] {
	return Map(Float64(),
		func(t time.Time) (float64, error) {
			return float64(t.UnixMicro()) / 1e6, nil
		},
		func(secs float64) (time.Time, error) {
			if math.IsNaN(secs) || math.IsInf(secs, 0) {
				return time.Time{}, fmt.Errorf("%w: %v is not a valid date", ErrRange, secs)
			}
			return time.UnixMicro(int64(math.Round(secs * 1e6))).UTC(), nil
		},
	).Required()
}

// Extension tags a binary blob with an application type code. Decode rejects
// blobs tagged with any other code.
func Extension(code int8) Transformer[[]byte] {
	return Transform(
		func(v []byte) (any, error) {
			return wire.Ext{Type: code, Data: v}, nil
		},
		func(v any) ([]byte, error) {
			ext, ok := v.(wire.Ext)
			if !ok {
				return nil, kindError("extension", v)
			}
			if ext.Type != code {
				return nil, fmt.Errorf("%w: want %d, got %d", ErrExtensionType, code, ext.Type)
			}
			return ext.Data, nil
		},
	)
}

// ExtensionOf stores a native value as a typed extension using the given
// binary marshalling functions.
func ExtensionOf[F any](code int8, marshal func(F) ([]byte, error), unmarshal func([]byte) (F, error)) Transformer[F] {
	return Map(Extension(code), marshal, unmarshal)
}
