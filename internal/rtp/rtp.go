// Package rtp decodes the fixed RTP header of a received datagram.
// Payload handling is left to the caller; for MP2T the payload is a run
// of 188-byte transport stream packets.
package rtp

import (
	"errors"
	"fmt"
)

// HeaderLen is the fixed RTP header size. CSRC entries, when present,
// follow it.
const HeaderLen = 12

// PayloadTypeMP2T is the static payload type for MPEG-2 transport
// streams (RFC 3551).
const PayloadTypeMP2T = 33

// ErrShortDatagram is returned when a datagram is smaller than the fixed
// header.
var ErrShortDatagram = errors.New("rtp: datagram shorter than header")

// ErrBadVersion is returned for any version other than 2.
var ErrBadVersion = errors.New("rtp: unsupported version")

// Header is the fixed 12-byte RTP header.
type Header struct {
	Version        uint8
	Padding        bool
	Extension      bool
	CSRCCount      uint8
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
}

// PayloadOffset returns the offset of the payload within the datagram,
// accounting for CSRC entries. Header extensions are not parsed; streams
// probed here do not carry them.
func (h Header) PayloadOffset() int {
	return HeaderLen + 4*int(h.CSRCCount)
}

// ParseHeader decodes the fixed header of a datagram.
func ParseHeader(datagram []byte) (Header, error) {
	if len(datagram) < HeaderLen {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortDatagram, len(datagram))
	}

	h := Header{
		Version:        datagram[0] >> 6,
		Padding:        datagram[0]&0x20 != 0,
		Extension:      datagram[0]&0x10 != 0,
		CSRCCount:      datagram[0] & 0x0F,
		Marker:         datagram[1]&0x80 != 0,
		PayloadType:    datagram[1] & 0x7F,
		SequenceNumber: uint16(datagram[2])<<8 | uint16(datagram[3]),
		Timestamp: uint32(datagram[4])<<24 | uint32(datagram[5])<<16 |
			uint32(datagram[6])<<8 | uint32(datagram[7]),
		SSRC: uint32(datagram[8])<<24 | uint32(datagram[9])<<16 |
			uint32(datagram[10])<<8 | uint32(datagram[11]),
	}
	if h.Version != 2 {
		return Header{}, fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}
	return h, nil
}

// PayloadTypeName returns the RFC 3551 name of a static payload type, or
// "dynamic"/"unknown" for the rest.
func PayloadTypeName(pt uint8) string {
	switch pt {
	case 0:
		return "PCMU"
	case 3:
		return "GSM"
	case 4:
		return "G723"
	case 5, 6, 16, 17:
		return "DVI4"
	case 7:
		return "LPC"
	case 8:
		return "PCMA"
	case 9:
		return "G722"
	case 10, 11:
		return "L16"
	case 12:
		return "QCELP"
	case 13:
		return "CN"
	case 14:
		return "MPA"
	case 15:
		return "G728"
	case 18:
		return "G729"
	case 25:
		return "CelB"
	case 26:
		return "JPEG"
	case 28:
		return "nv"
	case 31:
		return "H261"
	case 32:
		return "MPV"
	case PayloadTypeMP2T:
		return "MP2T"
	case 34:
		return "H263"
	default:
		if pt >= 96 {
			return "dynamic"
		}
		return "unknown"
	}
}
