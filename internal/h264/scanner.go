// Package h264 splits an H.264 Annex B byte stream into NAL units using
// 3-byte (0x000001) and 4-byte (0x00000001) start codes.
package h264

import (
	"errors"
	"io"

	"streamprobe/internal/cursor"
)

// NAL unit type constants as defined in ITU-T H.264 Table 7-1.
const (
	TypeSlice      = 1
	TypeDPA        = 2
	TypeDPB        = 3
	TypeDPC        = 4
	TypeIDR        = 5
	TypeSEI        = 6
	TypeSPS        = 7
	TypePPS        = 8
	TypeAUD        = 9
	TypeEOSeq      = 10
	TypeEOStream   = 11
	TypeFillerData = 12
)

// ErrNoStartCode is returned when the stream does not begin with an
// Annex B start code. This is unrecoverable: without an initial start
// code the bytes cannot be framed.
var ErrNoStartCode = errors.New("h264: no start code")

// Unit is a single NAL unit extracted from an Annex B stream. Payload
// excludes the start code and aliases the scanned buffer.
type Unit struct {
	Offset       int // byte offset of the start code in the stream
	StartCodeLen int // 3 or 4
	Forbidden    bool
	RefIDC       uint8 // 0..3
	Type         uint8 // 0..31, low 5 bits of the first payload byte
	Payload      []byte
}

// IsKeyframe reports whether the unit is an IDR slice.
func (u Unit) IsKeyframe() bool { return u.Type == TypeIDR }

// TypeName returns a short display name for the unit's NAL type.
func TypeName(t uint8) string {
	switch t {
	case TypeSlice:
		return "SLICE"
	case TypeDPA:
		return "DPA"
	case TypeDPB:
		return "DPB"
	case TypeDPC:
		return "DPC"
	case TypeIDR:
		return "IDR"
	case TypeSEI:
		return "SEI"
	case TypeSPS:
		return "SPS"
	case TypePPS:
		return "PPS"
	case TypeAUD:
		return "AUD"
	case TypeEOSeq:
		return "EOSEQ"
	case TypeEOStream:
		return "EOSTREAM"
	case TypeFillerData:
		return "FILL"
	default:
		return "UNKNOWN"
	}
}

// RefIDCName returns the display name for a nal_ref_idc priority value.
func RefIDCName(idc uint8) string {
	switch idc {
	case 0:
		return "DISPOS"
	case 1:
		return "LOW"
	case 2:
		return "HIGH"
	case 3:
		return "HIGHEST"
	default:
		return "UNKNOWN"
	}
}

func isStartCode3(b []byte) bool {
	return len(b) >= 3 && b[0] == 0 && b[1] == 0 && b[2] == 1
}

func isStartCode4(b []byte) bool {
	return len(b) >= 4 && b[0] == 0 && b[1] == 0 && b[2] == 0 && b[3] == 1
}

// NextUnit extracts the NAL unit beginning at the cursor position. The
// cursor must be positioned on a start code; on success it is left on the
// first byte of the following start code (or at end of stream for the
// final unit), so successive calls consume the stream without overlap.
//
// Returns io.EOF once the stream is exhausted, and ErrNoStartCode if the
// current position does not hold a start code.
func NextUnit(cur *cursor.Cursor) (Unit, error) {
	if cur.Exhausted() {
		return Unit{}, io.EOF
	}

	buf := cur.Bytes()
	unit := Unit{Offset: cur.Pos()}
	switch {
	case isStartCode3(buf):
		unit.StartCodeLen = 3
	case isStartCode4(buf):
		unit.StartCodeLen = 4
	default:
		return Unit{}, ErrNoStartCode
	}

	// Scan for the next start code. The 4-byte pattern is tested first at
	// each offset: a trailing 0x000001 match would otherwise split one
	// byte too late when the code is really 0x00000001.
	start := unit.StartCodeLen
	end := len(buf)
	for i := start; i+3 <= len(buf); i++ {
		if isStartCode4(buf[i:]) || isStartCode3(buf[i:]) {
			end = i
			break
		}
	}

	unit.Payload = buf[start:end]
	if len(unit.Payload) > 0 {
		hdr := unit.Payload[0]
		unit.Forbidden = hdr&0x80 != 0
		unit.RefIDC = (hdr >> 5) & 0x03
		unit.Type = hdr & 0x1F
	}

	// Position the cursor on the next start code so no bytes are consumed
	// twice. Seek is in range by construction.
	if err := cur.Seek(unit.Offset + end); err != nil {
		return Unit{}, err
	}
	return unit, nil
}
