// Package wire reads and writes the self-describing binary value encoding used
// for medication files (MessagePack).
//
// Decoded values use a fixed set of Go types:
//
//	nil, bool, int64, uint64, float64, string, []byte,
//	[]any, map[string]any, Ext
//
// Signed integers decode as int64 and unsigned integers as uint64. Map keys
// must be strings.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// maxDepth bounds nesting so corrupt input cannot exhaust the stack.
const maxDepth = 64

// Ext is a typed extension blob: opaque bytes tagged with an application type code.
type Ext struct {
	Type int8
	Data []byte
}

// Marshal encodes v. Map keys are written in sorted order so the output is
// deterministic.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := encodeValue(enc, &buf, v, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(enc *msgpack.Encoder, buf *bytes.Buffer, v any, depth int) error {
	if depth > maxDepth {
		return errors.New("value nested too deeply")
	}
	switch v := v.(type) {
	case nil:
		return enc.EncodeNil()
	case bool:
		return enc.EncodeBool(v)
	case int:
		return enc.EncodeInt(int64(v))
	case int8:
		return enc.EncodeInt(int64(v))
	case int16:
		return enc.EncodeInt(int64(v))
	case int32:
		return enc.EncodeInt(int64(v))
	case int64:
		return enc.EncodeInt(v)
	case uint:
		return enc.EncodeUint(uint64(v))
	case uint8:
		return enc.EncodeUint(uint64(v))
	case uint16:
		return enc.EncodeUint(uint64(v))
	case uint32:
		return enc.EncodeUint(uint64(v))
	case uint64:
		return enc.EncodeUint(v)
	case float32:
		return enc.EncodeFloat32(v)
	case float64:
		return enc.EncodeFloat64(v)
	case string:
		return enc.EncodeString(v)
	case []byte:
		return enc.EncodeBytes(v)
	case []any:
		if err := enc.EncodeArrayLen(len(v)); err != nil {
			return err
		}
		for i, elem := range v {
			if err := encodeValue(enc, buf, elem, depth+1); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		if err := enc.EncodeMapLen(len(keys)); err != nil {
			return err
		}
		for _, k := range keys {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := encodeValue(enc, buf, v[k], depth+1); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
		return nil
	case Ext:
		if err := enc.EncodeExtHeader(v.Type, len(v.Data)); err != nil {
			return err
		}
		_, err := buf.Write(v.Data)
		return err
	default:
		return fmt.Errorf("cannot encode value of type %T", v)
	}
}

// Parse decodes one complete value from data. Trailing bytes are an error.
func Parse(data []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	v, err := parseValue(dec, len(data), 0)
	if err != nil {
		return nil, fmt.Errorf("parsing value: %w", err)
	}
	if _, err := dec.PeekCode(); !errors.Is(err, io.EOF) {
		return nil, errors.New("parsing value: trailing data after value")
	}
	return v, nil
}

// parseValue reads the next value. limit caps slice preallocation to the input size.
func parseValue(dec *msgpack.Decoder, limit int, depth int) (any, error) {
	if depth > maxDepth {
		return nil, errors.New("value nested too deeply")
	}
	c, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case c == msgpcode.Nil:
		return nil, dec.DecodeNil()
	case c == msgpcode.False || c == msgpcode.True:
		return dec.DecodeBool()
	case msgpcode.IsFixedNum(c), c == msgpcode.Int8, c == msgpcode.Int16, c == msgpcode.Int32, c == msgpcode.Int64:
		return dec.DecodeInt64()
	case c == msgpcode.Uint8, c == msgpcode.Uint16, c == msgpcode.Uint32, c == msgpcode.Uint64:
		return dec.DecodeUint64()
	case c == msgpcode.Float, c == msgpcode.Double:
		return dec.DecodeFloat64()
	case msgpcode.IsString(c):
		return dec.DecodeString()
	case msgpcode.IsBin(c):
		return dec.DecodeBytes()
	case msgpcode.IsFixedArray(c), c == msgpcode.Array16, c == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, min(n, limit))
		for i := 0; i < n; i++ {
			elem, err := parseValue(dec, limit, depth+1)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, elem)
		}
		return out, nil
	case msgpcode.IsFixedMap(c), c == msgpcode.Map16, c == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, min(n, limit))
		for i := 0; i < n; i++ {
			k, err := parseValue(dec, limit, depth+1)
			if err != nil {
				return nil, err
			}
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("map key must be a string, got %s", KindOf(k))
			}
			v, err := parseValue(dec, limit, depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = v
		}
		return out, nil
	case msgpcode.IsExt(c):
		typ, n, err := dec.DecodeExtHeader()
		if err != nil {
			return nil, err
		}
		if n > limit {
			return nil, fmt.Errorf("extension length %d exceeds input", n)
		}
		data := make([]byte, n)
		if err := dec.ReadFull(data); err != nil {
			return nil, err
		}
		return Ext{Type: typ, Data: data}, nil
	default:
		return nil, fmt.Errorf("unexpected code 0x%02x", c)
	}
}

// KindOf names the encoded kind of a decoded value for error messages.
func KindOf(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "bool"
	case int, int8, int16, int32, int64:
		return "int"
	case uint, uint8, uint16, uint32, uint64:
		return "uint"
	case float32, float64:
		return "float"
	case string:
		return "string"
	case []byte:
		return "binary"
	case []any:
		return "array"
	case map[string]any:
		return "map"
	case Ext:
		return "extension"
	default:
		return fmt.Sprintf("%T", v)
	}
}
