package probe

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"streamprobe/internal/flv"
	"streamprobe/internal/mpegts"
	"streamprobe/internal/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunH264CountsUnits(t *testing.T) {
	t.Parallel()

	stream := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42,
		0x00, 0x00, 0x00, 0x01, 0x68, 0xCE,
		0x00, 0x00, 0x01, 0x65, 0x11, 0x22,
	}
	sum, err := RunH264(testLogger(), bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("RunH264: %v", err)
	}
	if sum.Units != 3 {
		t.Errorf("units = %d, want 3", sum.Units)
	}
	if sum.Bytes != uint64(len(stream)) {
		t.Errorf("bytes = %d, want %d", sum.Bytes, len(stream))
	}
}

func TestRunH264RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := RunH264(testLogger(), bytes.NewReader([]byte{1, 2, 3, 4}))
	if err == nil {
		t.Fatal("RunH264 accepted a stream with no start code")
	}
}

func TestRunADTS(t *testing.T) {
	t.Parallel()

	// Two minimal frames: 7-byte header declaring length 9, 2 data bytes.
	frame := []byte{0xFF, 0xF1, 0x50, 0x80, 0x01, 0x3F, 0xFC, 0xAB, 0xCD}
	stream := append(append([]byte{}, frame...), frame...)

	sum, err := RunADTS(testLogger(), bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("RunADTS: %v", err)
	}
	if sum.Units != 2 {
		t.Errorf("frames = %d, want 2", sum.Units)
	}
	if sum.Bytes != uint64(len(stream)) {
		t.Errorf("bytes = %d, want %d", sum.Bytes, len(stream))
	}
}

func TestRunFLVWithOutputs(t *testing.T) {
	t.Parallel()

	var src bytes.Buffer
	mux, err := flv.NewMuxer(&src, 1, 0x05)
	if err != nil {
		t.Fatalf("NewMuxer: %v", err)
	}
	audio := flv.Tag{Type: flv.TagAudio, DataSize: 3, Data: []byte{0x2F, 0xAA, 0xBB}}
	video := flv.Tag{Type: flv.TagVideo, DataSize: 2, Timestamp: 40, Data: []byte{0x17, 0xCC}}
	for _, tag := range []flv.Tag{audio, video} {
		if err := mux.WriteTag(tag); err != nil {
			t.Fatalf("WriteTag: %v", err)
		}
	}
	if err := mux.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var videoOut, audioOut bytes.Buffer
	sum, err := RunFLV(testLogger(), &src, FLVOptions{VideoOut: &videoOut, AudioOut: &audioOut})
	if err != nil {
		t.Fatalf("RunFLV: %v", err)
	}
	if sum.Units != 2 {
		t.Errorf("tags = %d, want 2", sum.Units)
	}
	if !bytes.Equal(audioOut.Bytes(), []byte{0xAA, 0xBB}) {
		t.Errorf("audio out = %X, want AABB", audioOut.Bytes())
	}

	// The video output is itself a demuxable video-only file.
	vdmx, err := flv.NewDemuxer(videoOut.Bytes())
	if err != nil {
		t.Fatalf("video out not demuxable: %v", err)
	}
	tag, err := vdmx.NextTag()
	if err != nil {
		t.Fatalf("video out NextTag: %v", err)
	}
	if tag.Video == nil || tag.Timestamp != 40 {
		t.Errorf("video out tag = %+v", tag)
	}
}

// fakeSource yields canned datagrams then io.EOF.
type fakeSource struct {
	datagrams [][]byte
	pos       int
}

func (f *fakeSource) Receive(ctx context.Context) (source.Datagram, error) {
	if f.pos >= len(f.datagrams) {
		return source.Datagram{}, io.EOF
	}
	d := f.datagrams[f.pos]
	f.pos++
	return source.Datagram{Data: d}, nil
}

func (f *fakeSource) Close() error { return nil }

func tsPacket(cc uint8) []byte {
	buf := make([]byte, mpegts.PacketSize)
	buf[0] = mpegts.SyncByte
	buf[1] = 0x01
	buf[2] = 0x00
	buf[3] = 0x10 | cc
	return buf
}

func rtpDatagram(seq uint8, tsPackets ...[]byte) []byte {
	d := []byte{0x80, 0x21, 0x00, seq, 0, 0, 0, 100, 0, 0, 0, 1}
	for _, p := range tsPackets {
		d = append(d, p...)
	}
	return d
}

func TestRunRTPRescansPayload(t *testing.T) {
	t.Parallel()

	src := &fakeSource{datagrams: [][]byte{
		rtpDatagram(1, tsPacket(0), tsPacket(1)),
		rtpDatagram(2, tsPacket(2)),
	}}

	var dump bytes.Buffer
	sum, err := RunRTP(context.Background(), testLogger(), src, RTPOptions{
		ParseRTP:    true,
		TSDump:      &dump,
		SourceLabel: "udp",
	})
	if err != nil {
		t.Fatalf("RunRTP: %v", err)
	}
	if sum.Datagrams != 2 {
		t.Errorf("datagrams = %d, want 2", sum.Datagrams)
	}
	if sum.Units != 3 {
		t.Errorf("ts packets = %d, want 3", sum.Units)
	}
	if sum.Desyncs != 0 {
		t.Errorf("desyncs = %d, want 0", sum.Desyncs)
	}
	if dump.Len() != 3*mpegts.PacketSize {
		t.Errorf("dump = %d bytes, want %d", dump.Len(), 3*mpegts.PacketSize)
	}
}

func TestRunRTPCountsDesyncs(t *testing.T) {
	t.Parallel()

	good := tsPacket(0)
	bad := make([]byte, mpegts.PacketSize)
	bad[0] = 0x00

	src := &fakeSource{datagrams: [][]byte{
		rtpDatagram(1, good, bad),
		rtpDatagram(2, tsPacket(1)),
	}}

	sum, err := RunRTP(context.Background(), testLogger(), src, RTPOptions{
		ParseRTP:    true,
		SourceLabel: "udp",
	})
	if err != nil {
		t.Fatalf("RunRTP: %v", err)
	}
	if sum.Desyncs != 1 {
		t.Errorf("desyncs = %d, want 1", sum.Desyncs)
	}
	// The good packet before the desync and the next datagram both count.
	if sum.Units != 2 {
		t.Errorf("ts packets = %d, want 2", sum.Units)
	}
}

func TestRunRTPSkipsNonTSPayloadTypes(t *testing.T) {
	t.Parallel()

	opus := []byte{0x80, 0x60, 0x00, 0x01, 0, 0, 0, 0, 0, 0, 0, 9}
	opus = append(opus, 0xDE, 0xAD)

	src := &fakeSource{datagrams: [][]byte{opus}}
	sum, err := RunRTP(context.Background(), testLogger(), src, RTPOptions{
		ParseRTP:    true,
		SourceLabel: "udp",
	})
	if err != nil {
		t.Fatalf("RunRTP: %v", err)
	}
	if sum.Datagrams != 1 || sum.Units != 0 {
		t.Errorf("datagrams = %d units = %d, want 1 and 0", sum.Datagrams, sum.Units)
	}
}

func TestRunRTPRawTSMode(t *testing.T) {
	t.Parallel()

	chunk := append(tsPacket(0), tsPacket(1)...)
	src := &fakeSource{datagrams: [][]byte{chunk}}

	sum, err := RunRTP(context.Background(), testLogger(), src, RTPOptions{
		ParseRTP:    false,
		SourceLabel: "srt",
	})
	if err != nil {
		t.Fatalf("RunRTP: %v", err)
	}
	if sum.Units != 2 {
		t.Errorf("ts packets = %d, want 2", sum.Units)
	}
}

func TestRunRTPUndecodableDatagram(t *testing.T) {
	t.Parallel()

	src := &fakeSource{datagrams: [][]byte{{0x01, 0x02}}}
	sum, err := RunRTP(context.Background(), testLogger(), src, RTPOptions{
		ParseRTP:    true,
		SourceLabel: "udp",
	})
	if err != nil {
		t.Fatalf("RunRTP: %v", err)
	}
	if sum.DecodeErrors != 1 {
		t.Errorf("decode errors = %d, want 1", sum.DecodeErrors)
	}
}
