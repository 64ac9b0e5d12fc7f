package aac

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/icza/bitio"
)

// makeFrame builds a complete ADTS frame field by field, so test
// expectations are not derived from the scanner's own shift arithmetic.
func makeFrame(t *testing.T, profile, sfi, channels uint64, payloadLen int) []byte {
	t.Helper()

	frameLen := uint64(7 + payloadLen)
	var buf bytes.Buffer
	w := bitio.NewWriter(&buf)

	w.WriteBits(0xFFF, 12) // syncword
	w.WriteBits(0, 1)      // MPEG-4
	w.WriteBits(0, 2)      // layer
	w.WriteBits(1, 1)      // protection absent
	w.WriteBits(profile, 2)
	w.WriteBits(sfi, 4)
	w.WriteBits(0, 1) // private
	w.WriteBits(channels, 3)
	w.WriteBits(0, 1) // original/copy
	w.WriteBits(0, 1) // home
	w.WriteBits(0, 1) // copyright id bit
	w.WriteBits(0, 1) // copyright id start
	w.WriteBits(frameLen, 13)
	w.WriteBits(0x7FF, 11) // buffer fullness
	w.WriteBits(0, 2)      // raw blocks minus one

	if err := w.Close(); err != nil {
		t.Fatalf("bitio close: %v", err)
	}
	out := buf.Bytes()
	for i := 0; i < payloadLen; i++ {
		out = append(out, byte(i))
	}
	return out
}

func TestNextFrameHeaderFields(t *testing.T) {
	t.Parallel()

	hdr := []byte{0xFF, 0xF1, 0x50, 0x80, 0x2E, 0x3F, 0xFC}
	stream := append(append([]byte{}, hdr...), make([]byte, 369-7)...)

	f, n, err := NextFrame(stream)
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if n != 369 {
		t.Errorf("consumed = %d, want 369", n)
	}
	if f.Profile != 1 || f.ProfileName() != "LC" {
		t.Errorf("profile = %d (%s), want 1 (LC)", f.Profile, f.ProfileName())
	}
	if f.SamplingFreqIndex != 4 || f.SampleRate() != 44100 {
		t.Errorf("sfi = %d rate = %d, want 4 and 44100", f.SamplingFreqIndex, f.SampleRate())
	}
	if f.ChannelConfig != 2 {
		t.Errorf("channels = %d, want 2", f.ChannelConfig)
	}
	if f.FrameLength != 369 {
		t.Errorf("frame length = %d, want 369", f.FrameLength)
	}
	if !f.ProtectionAbsent {
		t.Error("protection absent bit not decoded")
	}
}

func TestNextFrameMatchesBitPackedHeader(t *testing.T) {
	t.Parallel()

	stream := makeFrame(t, 1, 7, 2, 100)
	f, n, err := NextFrame(stream)
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if n != len(stream) {
		t.Errorf("consumed = %d, want %d", n, len(stream))
	}
	if f.Profile != 1 {
		t.Errorf("profile = %d, want 1", f.Profile)
	}
	if f.SamplingFreqIndex != 7 || f.SampleRate() != 22050 {
		t.Errorf("sfi = %d rate = %d, want 7 and 22050", f.SamplingFreqIndex, f.SampleRate())
	}
	if f.ChannelConfig != 2 {
		t.Errorf("channels = %d, want 2", f.ChannelConfig)
	}
	if int(f.FrameLength) != len(stream) {
		t.Errorf("frame length = %d, want %d", f.FrameLength, len(stream))
	}
}

func TestNextFrameSkipsGarbage(t *testing.T) {
	t.Parallel()

	frame := makeFrame(t, 1, 4, 2, 10)
	stream := append([]byte{0x00, 0x11, 0x22}, frame...)

	f, n, err := NextFrame(stream)
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if n != len(stream) {
		t.Errorf("consumed = %d, want %d", n, len(stream))
	}
	if !bytes.Equal(f.Data, frame) {
		t.Error("frame data does not match input frame")
	}
}

func TestNeedMoreDataConsumesNothing(t *testing.T) {
	t.Parallel()

	frame := makeFrame(t, 1, 4, 2, 50)
	_, n, err := NextFrame(frame[:20])
	if !errors.Is(err, ErrNeedMoreData) {
		t.Fatalf("err = %v, want ErrNeedMoreData", err)
	}
	if n != 0 {
		t.Errorf("consumed = %d, want 0", n)
	}

	// Fewer than 7 bytes with a sync start is also incomplete.
	_, n, err = NextFrame(frame[:3])
	if !errors.Is(err, ErrNeedMoreData) || n != 0 {
		t.Errorf("short header: err = %v n = %d", err, n)
	}
}

func TestNoSyncWord(t *testing.T) {
	t.Parallel()

	_, _, err := NextFrame([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})
	if !errors.Is(err, ErrNoSyncWord) {
		t.Errorf("err = %v, want ErrNoSyncWord", err)
	}
}

func TestMalformedFrameLength(t *testing.T) {
	t.Parallel()

	// Declared length 1 is smaller than the header itself.
	hdr := []byte{0xFF, 0xF1, 0x50, 0x00, 0x00, 0x20, 0xFC, 0x00}
	_, _, err := NextFrame(hdr)
	if !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("err = %v, want ErrMalformedHeader", err)
	}
}

func TestConsumedSumsToStreamLength(t *testing.T) {
	t.Parallel()

	var stream []byte
	for i := 0; i < 5; i++ {
		stream = append(stream, makeFrame(t, 1, 4, 2, 20+i)...)
	}

	total := 0
	frames := 0
	rest := stream
	for len(rest) > 0 {
		_, n, err := NextFrame(rest)
		if err != nil {
			t.Fatalf("frame %d: %v", frames, err)
		}
		total += n
		frames++
		rest = rest[n:]
	}
	if frames != 5 {
		t.Errorf("frames = %d, want 5", frames)
	}
	if total != len(stream) {
		t.Errorf("consumed %d of %d bytes", total, len(stream))
	}
}

func TestReaderCarriesPartialFrames(t *testing.T) {
	t.Parallel()

	var stream []byte
	for i := 0; i < 3; i++ {
		stream = append(stream, makeFrame(t, 1, 4, 2, 40)...)
	}

	// One-byte reads force the carry path on every frame.
	rd := NewReader(iotest(stream))
	count := 0
	for {
		f, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if f.FrameLength != 47 {
			t.Errorf("frame length = %d, want 47", f.FrameLength)
		}
		count++
	}
	if count != 3 {
		t.Errorf("frames = %d, want 3", count)
	}
}

func TestReaderTruncatedTail(t *testing.T) {
	t.Parallel()

	frame := makeFrame(t, 1, 4, 2, 40)
	stream := append(append([]byte{}, frame...), frame[:10]...)

	rd := NewReader(bytes.NewReader(stream))
	if _, err := rd.Next(); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if _, err := rd.Next(); !errors.Is(err, ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
	if rd.Leftover() != 10 {
		t.Errorf("leftover = %d, want 10", rd.Leftover())
	}
}

// iotest wraps a byte slice in a reader that yields one byte per call.
func iotest(b []byte) io.Reader {
	return &oneByteReader{buf: b}
}

type oneByteReader struct {
	buf []byte
	pos int
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.buf) {
		return 0, io.EOF
	}
	p[0] = r.buf[r.pos]
	r.pos++
	return 1, nil
}
