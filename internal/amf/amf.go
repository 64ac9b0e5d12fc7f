// Package amf decodes AMF0 values as found in FLV script tags. Only the
// decode side is implemented; the toolkit never writes AMF.
package amf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"streamprobe/internal/cursor"
)

// AMF0 type markers.
const (
	MarkerNumber      = 0x00
	MarkerBoolean     = 0x01
	MarkerString      = 0x02
	MarkerObject      = 0x03
	MarkerMovieClip   = 0x04
	MarkerNull        = 0x05
	MarkerUndefined   = 0x06
	MarkerReference   = 0x07
	MarkerECMAArray   = 0x08
	MarkerObjectEnd   = 0x09
	MarkerStrictArray = 0x0A
	MarkerDate        = 0x0B
	MarkerLongString  = 0x0C
)

var (
	// ErrMalformed is returned when the encoded bytes do not match their
	// declared structure: a length field running past the payload, a
	// missing object-end terminator, and the like.
	ErrMalformed = errors.New("amf: malformed value")

	// ErrUnsupportedType is returned for markers whose body length cannot
	// be determined, making it impossible to skip past them.
	ErrUnsupportedType = errors.New("amf: unsupported type")
)

// Value is a decoded AMF0 value. The concrete type is one of float64,
// bool, string, []Pair (objects and ECMA arrays), []Value (strict
// arrays), or nil (null and undefined).
type Value any

// Pair is one property of an object or ECMA array. Order of appearance
// is preserved.
type Pair struct {
	Key   string
	Value Value
}

// DecodeValue decodes a single marker-prefixed value at the cursor
// position. The cursor is left on the first byte after the value.
func DecodeValue(cur *cursor.Cursor) (Value, error) {
	marker, err := cur.Byte()
	if err != nil {
		return nil, fmt.Errorf("%w: missing type marker", ErrMalformed)
	}

	switch marker {
	case MarkerNumber:
		bits, err := cur.Uint64()
		if err != nil {
			return nil, fmt.Errorf("%w: short number", ErrMalformed)
		}
		return math.Float64frombits(bits), nil

	case MarkerBoolean:
		b, err := cur.Byte()
		if err != nil {
			return nil, fmt.Errorf("%w: short boolean", ErrMalformed)
		}
		return b != 0, nil

	case MarkerString:
		return decodeShortString(cur)

	case MarkerLongString:
		n, err := cur.Uint32()
		if err != nil {
			return nil, fmt.Errorf("%w: short long-string length", ErrMalformed)
		}
		b, err := cur.Consume(int(n))
		if err != nil {
			return nil, fmt.Errorf("%w: long string length %d exceeds payload", ErrMalformed, n)
		}
		return string(b), nil

	case MarkerObject:
		return decodePairs(cur)

	case MarkerECMAArray:
		// The count is advisory; properties end at the 00 00 09
		// terminator regardless.
		if err := cur.Skip(4); err != nil {
			return nil, fmt.Errorf("%w: short ECMA array count", ErrMalformed)
		}
		return decodePairs(cur)

	case MarkerStrictArray:
		n, err := cur.Uint32()
		if err != nil {
			return nil, fmt.Errorf("%w: short strict array count", ErrMalformed)
		}
		vals := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, err := DecodeValue(cur)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return vals, nil

	case MarkerNull, MarkerUndefined:
		return nil, nil

	case MarkerDate:
		// 8-byte timestamp plus a 2-byte timezone nobody uses.
		if err := cur.Skip(10); err != nil {
			return nil, fmt.Errorf("%w: short date", ErrMalformed)
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: marker 0x%02X", ErrUnsupportedType, marker)
	}
}

// DecodeString decodes a marker-prefixed string value. FLV script tags
// start with one as the metadata name.
func DecodeString(cur *cursor.Cursor) (string, error) {
	marker, err := cur.Byte()
	if err != nil {
		return "", fmt.Errorf("%w: missing type marker", ErrMalformed)
	}
	if marker != MarkerString {
		return "", fmt.Errorf("%w: expected string, got marker 0x%02X", ErrMalformed, marker)
	}
	return decodeShortString(cur)
}

// DecodeECMAArray decodes a marker-prefixed ECMA array into its ordered
// property list.
func DecodeECMAArray(cur *cursor.Cursor) ([]Pair, error) {
	marker, err := cur.Byte()
	if err != nil {
		return nil, fmt.Errorf("%w: missing type marker", ErrMalformed)
	}
	if marker != MarkerECMAArray {
		return nil, fmt.Errorf("%w: expected ECMA array, got marker 0x%02X", ErrMalformed, marker)
	}
	if err := cur.Skip(4); err != nil {
		return nil, fmt.Errorf("%w: short ECMA array count", ErrMalformed)
	}
	return decodePairs(cur)
}

// decodePairs reads key/value properties until the 00 00 09 object-end
// terminator, consuming the terminator.
func decodePairs(cur *cursor.Cursor) ([]Pair, error) {
	var pairs []Pair
	for {
		end, err := cur.Peek(3)
		if err != nil {
			return nil, fmt.Errorf("%w: missing object end", ErrMalformed)
		}
		if end[0] == 0x00 && end[1] == 0x00 && end[2] == MarkerObjectEnd {
			_ = cur.Skip(3)
			return pairs, nil
		}

		key, err := decodeShortString(cur)
		if err != nil {
			return nil, err
		}
		val, err := DecodeValue(cur)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, Pair{Key: key, Value: val})
	}
}

// decodeShortString reads a u16-length-prefixed string body (no marker).
func decodeShortString(cur *cursor.Cursor) (string, error) {
	lb, err := cur.Consume(2)
	if err != nil {
		return "", fmt.Errorf("%w: short string length", ErrMalformed)
	}
	n := int(binary.BigEndian.Uint16(lb))
	b, err := cur.Consume(n)
	if err != nil {
		return "", fmt.Errorf("%w: string length %d exceeds payload", ErrMalformed, n)
	}
	return string(b), nil
}
