// Package cursor provides an advancing view over a byte buffer with
// explicit position tracking, used by every scanner in place of hidden
// file-handle state.
package cursor

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a read would run past the end of the
// underlying buffer.
var ErrShortBuffer = errors.New("cursor: short buffer")

// ErrOutOfRange is returned when a seek or rewind targets a position
// outside [0, Len].
var ErrOutOfRange = errors.New("cursor: position out of range")

// Cursor is an advancing view over a byte buffer. It borrows the buffer;
// slices returned by Peek and Consume alias it and are only valid for the
// buffer's lifetime.
type Cursor struct {
	buf []byte
	pos int
}

// New creates a cursor positioned at the start of buf.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the current position.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the total buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns the number of unconsumed bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Exhausted reports whether all bytes have been consumed.
func (c *Cursor) Exhausted() bool { return c.pos >= len(c.buf) }

// Bytes returns the unconsumed remainder of the buffer without advancing.
func (c *Cursor) Bytes() []byte { return c.buf[c.pos:] }

// Peek returns the next n bytes without advancing.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if c.Remaining() < n {
		return nil, ErrShortBuffer
	}
	return c.buf[c.pos : c.pos+n], nil
}

// Byte consumes and returns a single byte.
func (c *Cursor) Byte() (byte, error) {
	if c.Exhausted() {
		return 0, ErrShortBuffer
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// Consume advances past the next n bytes and returns them.
func (c *Cursor) Consume(n int) ([]byte, error) {
	if c.Remaining() < n {
		return nil, ErrShortBuffer
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Skip advances past n bytes without returning them.
func (c *Cursor) Skip(n int) error {
	if c.Remaining() < n {
		return ErrShortBuffer
	}
	c.pos += n
	return nil
}

// Rewind moves the position back by n bytes.
func (c *Cursor) Rewind(n int) error {
	if n < 0 || n > c.pos {
		return ErrOutOfRange
	}
	c.pos -= n
	return nil
}

// Seek sets the position to an absolute offset.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return ErrOutOfRange
	}
	c.pos = pos
	return nil
}

// Uint16 consumes a big-endian 16-bit integer.
func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.Consume(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Uint24 consumes a big-endian 24-bit integer.
func (c *Cursor) Uint24() (uint32, error) {
	b, err := c.Consume(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

// Uint32 consumes a big-endian 32-bit integer.
func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.Consume(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Uint64 consumes a big-endian 64-bit integer.
func (c *Cursor) Uint64() (uint64, error) {
	b, err := c.Consume(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}
