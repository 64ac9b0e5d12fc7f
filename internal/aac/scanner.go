// Package aac extracts AAC frames from ADTS byte streams. The scanner
// finds the 12-bit 0xFFF sync word in an arbitrary-sized buffer and cuts
// one fixed-length frame at a time; unconsumed bytes are carried forward
// by Reader across reads.
package aac

import (
	"errors"
	"fmt"
	"io"
)

// headerLen is the fixed ADTS header size without CRC. A frame's declared
// length always includes the header (9 bytes when a CRC is present).
const headerLen = 7

// AAC sample rate index table (ISO 14496-3).
var sampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350,
}

var (
	// ErrNeedMoreData signals that the buffer ends before the current
	// frame's declared length. Nothing is consumed; the caller should
	// append more bytes and retry with the remainder intact.
	ErrNeedMoreData = errors.New("adts: need more data")

	// ErrNoSyncWord is returned when the buffer holds no 0xFFF sync word.
	ErrNoSyncWord = errors.New("adts: no sync word")

	// ErrMalformedHeader is returned when a header's declared frame
	// length is smaller than the header itself.
	ErrMalformedHeader = errors.New("adts: malformed header")

	// ErrTruncated is returned by Reader when the stream ends inside a
	// frame whose declared length exceeds the remaining bytes.
	ErrTruncated = errors.New("adts: truncated frame")
)

// Frame is a single ADTS frame. Data holds the complete frame including
// the header, copied out of the scan buffer.
type Frame struct {
	Profile           uint8 // 0..3, MPEG-4 audio object type minus 1
	SamplingFreqIndex uint8 // 0..15
	ChannelConfig     uint8 // 0..7
	ProtectionAbsent  bool
	FrameLength       uint16 // includes the 7- or 9-byte header
	Data              []byte
}

// SampleRate returns the sampling rate in Hz, or 0 for a reserved index.
func (f Frame) SampleRate() int {
	if int(f.SamplingFreqIndex) < len(sampleRates) {
		return sampleRates[f.SamplingFreqIndex]
	}
	return 0
}

// ProfileName returns the display name of the audio object type.
func (f Frame) ProfileName() string {
	switch f.Profile {
	case 0:
		return "Main"
	case 1:
		return "LC"
	case 2:
		return "SSR"
	default:
		return "unknown"
	}
}

// ChannelName returns a display string for the channel configuration.
func (f Frame) ChannelName() string {
	switch f.ChannelConfig {
	case 0:
		return "AOT specific config"
	case 7:
		return "8 channels"
	default:
		return fmt.Sprintf("%d channels", f.ChannelConfig)
	}
}

// NextFrame scans buf for an ADTS sync word and extracts one complete
// frame, returning the frame and the number of bytes consumed (sync
// offset plus frame length). When the frame's declared length runs past
// the end of buf it returns ErrNeedMoreData and consumes nothing.
func NextFrame(buf []byte) (Frame, int, error) {
	off := 0
	for {
		if len(buf)-off < headerLen {
			// A sync word could still start in the unscanned tail.
			for i := off; i < len(buf); i++ {
				if buf[i] == 0xFF {
					return Frame{}, 0, ErrNeedMoreData
				}
			}
			return Frame{}, 0, ErrNoSyncWord
		}
		if buf[off] == 0xFF && buf[off+1]&0xF0 == 0xF0 {
			break
		}
		off++
	}

	hdr := buf[off:]

	// frame_length is a 13-bit field spanning bytes 3-5: the low 2 bits
	// of byte 3, all of byte 4, and the top 3 bits of byte 5.
	frameLen := int(hdr[3]&0x03)<<11 | int(hdr[4])<<3 | int(hdr[5]>>5)
	if frameLen < headerLen {
		return Frame{}, 0, ErrMalformedHeader
	}
	if frameLen > len(buf)-off {
		return Frame{}, 0, ErrNeedMoreData
	}

	f := Frame{
		Profile:           hdr[2] >> 6,
		SamplingFreqIndex: (hdr[2] >> 2) & 0x0F,
		ChannelConfig:     (hdr[2]&0x01)<<2 | hdr[3]>>6,
		ProtectionAbsent:  hdr[1]&0x01 == 1,
		FrameLength:       uint16(frameLen),
		Data:              append([]byte(nil), hdr[:frameLen]...),
	}
	return f, off + frameLen, nil
}

// Reader extracts ADTS frames from an io.Reader, carrying unconsumed
// bytes forward between reads. It owns the carry buffer; callers must not
// share a Reader across goroutines.
type Reader struct {
	src io.Reader
	buf []byte
	eof bool
}

// NewReader creates a Reader over src.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src}
}

// Leftover returns the number of carried bytes not yet part of a frame.
func (r *Reader) Leftover() int { return len(r.buf) }

// Next returns the next complete frame. It returns io.EOF at a clean end
// of stream, ErrTruncated when the stream ends inside a declared frame,
// and ErrNoSyncWord when the remaining bytes contain no sync word.
func (r *Reader) Next() (Frame, error) {
	for {
		if len(r.buf) > 0 {
			f, n, err := NextFrame(r.buf)
			switch {
			case err == nil:
				// Shift the remainder down so the carry buffer stays
				// small and sync offsets remain intact.
				r.buf = append(r.buf[:0], r.buf[n:]...)
				return f, nil
			case errors.Is(err, ErrNeedMoreData):
				if r.eof {
					return Frame{}, ErrTruncated
				}
			case errors.Is(err, ErrNoSyncWord):
				if r.eof {
					return Frame{}, ErrNoSyncWord
				}
			default:
				return Frame{}, err
			}
		}
		if r.eof {
			return Frame{}, io.EOF
		}

		chunk := make([]byte, 64*1024)
		n, err := r.src.Read(chunk)
		r.buf = append(r.buf, chunk[:n]...)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return Frame{}, fmt.Errorf("adts: read: %w", err)
			}
			r.eof = true
		}
	}
}
