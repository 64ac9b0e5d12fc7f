// Package flv demuxes FLV container files into tags and decodes the
// audio, video, and script payloads far enough to describe them. A small
// Muxer re-emits selected tags, which is enough to strip a file down to
// its video track.
package flv

import (
	"errors"
	"fmt"

	"streamprobe/internal/cursor"
)

// HeaderLen is the fixed size of the FLV file header. DataOffset in a
// valid file is at least this.
const HeaderLen = 9

// TagHeaderLen is the fixed size of a tag header preceding each payload.
const TagHeaderLen = 11

// TagType identifies the payload carried by a tag.
type TagType uint8

const (
	TagAudio  TagType = 8
	TagVideo  TagType = 9
	TagScript TagType = 18
)

// String returns the display name of the tag type.
func (t TagType) String() string {
	switch t {
	case TagAudio:
		return "AUDIO"
	case TagVideo:
		return "VIDEO"
	case TagScript:
		return "SCRIPT"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrBadSignature is returned when the file does not begin with "FLV".
	ErrBadSignature = errors.New("flv: bad signature")

	// ErrMalformed is returned when sizes inside the file contradict each
	// other, such as a PreviousTagSize that does not match the tag it
	// follows.
	ErrMalformed = errors.New("flv: malformed file")

	// ErrTruncated is returned when the file ends inside a tag whose
	// header promised more bytes.
	ErrTruncated = errors.New("flv: truncated tag")

	// ErrUnsupportedTagType marks a tag whose type byte is not audio,
	// video, or script. The tag is still skipped cleanly.
	ErrUnsupportedTagType = errors.New("flv: unsupported tag type")
)

// Header is the 9-byte FLV file header.
type Header struct {
	Version    uint8
	Flags      uint8
	DataOffset uint32
}

// HasAudio reports whether the header declares an audio track.
func (h Header) HasAudio() bool { return h.Flags&0x04 != 0 }

// HasVideo reports whether the header declares a video track.
func (h Header) HasVideo() bool { return h.Flags&0x01 != 0 }

// ParseHeader decodes the file header at the cursor position and skips
// to DataOffset, where the first PreviousTagSize begins.
func ParseHeader(cur *cursor.Cursor) (Header, error) {
	sig, err := cur.Consume(3)
	if err != nil {
		return Header{}, fmt.Errorf("%w: file shorter than header", ErrBadSignature)
	}
	if sig[0] != 'F' || sig[1] != 'L' || sig[2] != 'V' {
		return Header{}, ErrBadSignature
	}

	var h Header
	if h.Version, err = cur.Byte(); err != nil {
		return Header{}, fmt.Errorf("%w: file shorter than header", ErrBadSignature)
	}
	if h.Flags, err = cur.Byte(); err != nil {
		return Header{}, fmt.Errorf("%w: file shorter than header", ErrBadSignature)
	}
	if h.DataOffset, err = cur.Uint32(); err != nil {
		return Header{}, fmt.Errorf("%w: file shorter than header", ErrBadSignature)
	}
	if h.DataOffset < HeaderLen {
		return Header{}, fmt.Errorf("%w: data offset %d inside header", ErrMalformed, h.DataOffset)
	}
	if err := cur.Seek(int(h.DataOffset)); err != nil {
		return Header{}, fmt.Errorf("%w: data offset %d beyond file", ErrMalformed, h.DataOffset)
	}
	return h, nil
}

// Tag is one demuxed FLV tag. Data is the raw payload; exactly one of
// Audio, Video, or Script is populated when the payload decoded cleanly.
type Tag struct {
	Type        TagType
	DataSize    uint32
	Timestamp   uint32 // milliseconds, extension byte included
	StreamID    uint32
	Data        []byte
	PrevTagSize uint32 // PreviousTagSize field read before this tag

	Audio  *AudioInfo
	Video  *VideoInfo
	Script *ScriptMetadata
}
