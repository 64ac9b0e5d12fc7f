// Package mpegts splits transport stream bytes into 188-byte packets and
// decodes their headers. PSI tables and PES reassembly are out of scope;
// the probe reports packet-level structure only.
package mpegts

import (
	"errors"
	"fmt"
)

const (
	// PacketSize is the fixed transport packet length.
	PacketSize = 188

	// SyncByte begins every transport packet.
	SyncByte = 0x47
)

// Adaptation field control values from the 2-bit header field.
const (
	AFCReserved    = 0
	AFCPayloadOnly = 1
	AFCFieldOnly   = 2
	AFCBoth        = 3
)

// ErrBadSync is returned when a buffer does not begin with the sync byte.
var ErrBadSync = errors.New("mpegts: bad sync byte")

// ErrBadLength is returned when a buffer is not exactly one packet long.
var ErrBadLength = errors.New("mpegts: bad packet length")

// SyncLostError reports a desync while rescanning an RTP payload: the
// stride index where the sync byte was missing. Packets before the
// stride were parsed successfully.
type SyncLostError struct {
	Stride int
	Byte   byte
}

func (e *SyncLostError) Error() string {
	return fmt.Sprintf("mpegts: sync lost at stride %d, byte 0x%02X", e.Stride, e.Byte)
}

// Packet is one decoded transport packet. Payload excludes the header
// and any adaptation field, and aliases the parsed buffer.
type Packet struct {
	TransportError bool
	PayloadStart   bool
	Priority       bool
	PID            uint16
	Scrambling     uint8
	AFC            uint8
	CC             uint8
	Payload        []byte
}

// HasPayload reports whether the adaptation field control admits a
// payload.
func (p *Packet) HasPayload() bool {
	return p.AFC == AFCPayloadOnly || p.AFC == AFCBoth
}

// ParsePacket decodes a single 188-byte transport packet.
func ParsePacket(buf []byte) (*Packet, error) {
	if len(buf) != PacketSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadLength, len(buf))
	}
	if buf[0] != SyncByte {
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadSync, buf[0])
	}

	p := &Packet{
		TransportError: buf[1]&0x80 != 0,
		PayloadStart:   buf[1]&0x40 != 0,
		Priority:       buf[1]&0x20 != 0,
		PID:            uint16(buf[1]&0x1F)<<8 | uint16(buf[2]),
		Scrambling:     (buf[3] >> 6) & 0x03,
		AFC:            (buf[3] >> 4) & 0x03,
		CC:             buf[3] & 0x0F,
	}

	offset := 4
	if p.AFC == AFCFieldOnly || p.AFC == AFCBoth {
		afLen := int(buf[offset])
		offset += 1 + afLen
		if offset > PacketSize {
			offset = PacketSize
		}
	}
	if p.HasPayload() && offset < PacketSize {
		p.Payload = buf[offset:]
	}
	return p, nil
}

// Rescan walks payload in 188-byte strides, parsing each stride as a
// transport packet. On a missing sync byte or a short final stride it
// returns the packets parsed so far together with a *SyncLostError, so a
// caller can keep the good packets and count the desync.
func Rescan(payload []byte) ([]*Packet, error) {
	var packets []*Packet
	for stride := 0; stride*PacketSize < len(payload); stride++ {
		chunk := payload[stride*PacketSize:]
		if len(chunk) < PacketSize {
			return packets, &SyncLostError{Stride: stride, Byte: chunk[0]}
		}
		pkt, err := ParsePacket(chunk[:PacketSize])
		if err != nil {
			return packets, &SyncLostError{Stride: stride, Byte: chunk[0]}
		}
		packets = append(packets, pkt)
	}
	return packets, nil
}
