package flv

import (
	"fmt"
	"io"

	"streamprobe/internal/cursor"
)

// Demuxer pulls tags out of a fully buffered FLV file.
type Demuxer struct {
	cur      *cursor.Cursor
	header   Header
	lastSize uint32 // 11 + DataSize of the previously returned tag
}

// NewDemuxer parses the file header and positions the demuxer on the
// first PreviousTagSize field.
func NewDemuxer(buf []byte) (*Demuxer, error) {
	cur := cursor.New(buf)
	h, err := ParseHeader(cur)
	if err != nil {
		return nil, err
	}
	return &Demuxer{cur: cur, header: h}, nil
}

// Header returns the parsed file header.
func (d *Demuxer) Header() Header { return d.header }

// Pos returns the current byte offset in the file.
func (d *Demuxer) Pos() int { return d.cur.Pos() }

// NextTag returns the next tag in file order. It returns io.EOF at a
// clean end of file and ErrTruncated when the file ends inside a tag.
//
// A tag whose payload fails to decode is still returned alongside the
// decode error; the demuxer stays synchronized and the next call
// proceeds to the following tag. Only io.EOF, ErrTruncated, and
// ErrMalformed size mismatches mean the tag is unusable.
func (d *Demuxer) NextTag() (Tag, error) {
	if d.cur.Exhausted() {
		return Tag{}, io.EOF
	}

	prevSize, err := d.cur.Uint32()
	if err != nil {
		return Tag{}, fmt.Errorf("%w: file ends inside PreviousTagSize", ErrTruncated)
	}
	if prevSize != d.lastSize {
		return Tag{}, fmt.Errorf("%w: PreviousTagSize %d, expected %d at offset %d",
			ErrMalformed, prevSize, d.lastSize, d.cur.Pos()-4)
	}
	if d.cur.Exhausted() {
		// A trailing PreviousTagSize after the last tag is a clean end.
		return Tag{}, io.EOF
	}

	hdr, err := d.cur.Consume(TagHeaderLen)
	if err != nil {
		return Tag{}, fmt.Errorf("%w: file ends inside tag header", ErrTruncated)
	}

	tag := Tag{
		Type:        TagType(hdr[0]),
		DataSize:    uint32(hdr[1])<<16 | uint32(hdr[2])<<8 | uint32(hdr[3]),
		Timestamp:   uint32(hdr[7])<<24 | uint32(hdr[4])<<16 | uint32(hdr[5])<<8 | uint32(hdr[6]),
		StreamID:    uint32(hdr[8])<<16 | uint32(hdr[9])<<8 | uint32(hdr[10]),
		PrevTagSize: prevSize,
	}

	tag.Data, err = d.cur.Consume(int(tag.DataSize))
	if err != nil {
		return Tag{}, fmt.Errorf("%w: tag at offset %d declares %d payload bytes, %d remain",
			ErrTruncated, d.cur.Pos()-TagHeaderLen, tag.DataSize, d.cur.Remaining())
	}
	d.lastSize = TagHeaderLen + tag.DataSize

	switch tag.Type {
	case TagAudio:
		tag.Audio, err = decodeAudio(tag.Data)
	case TagVideo:
		tag.Video, err = decodeVideo(tag.Data)
	case TagScript:
		tag.Script, err = decodeScript(tag.Data)
	default:
		err = fmt.Errorf("%w: type %d at offset %d",
			ErrUnsupportedTagType, tag.Type, d.cur.Pos()-int(tag.DataSize)-TagHeaderLen)
	}
	return tag, err
}

// ExtractAudioStream writes the elementary audio data of a tag to w,
// skipping the one-byte flags header. For MP3 audio the concatenated
// output is a playable stream.
func ExtractAudioStream(tag Tag, w io.Writer) error {
	if tag.Type != TagAudio {
		return fmt.Errorf("flv: cannot extract audio from %s tag", tag.Type)
	}
	if len(tag.Data) < 1 {
		return fmt.Errorf("%w: empty audio payload", ErrMalformed)
	}
	if _, err := w.Write(tag.Data[1:]); err != nil {
		return fmt.Errorf("flv: write audio stream: %w", err)
	}
	return nil
}

// Muxer writes an FLV file consisting of a header and a chosen subset of
// tags, recomputing each PreviousTagSize.
type Muxer struct {
	w        io.Writer
	lastSize uint32
}

// NewMuxer writes the file header for the given version and flags and
// returns a muxer ready for WriteTag. DataOffset is always HeaderLen.
func NewMuxer(w io.Writer, version, flags uint8) (*Muxer, error) {
	hdr := [HeaderLen]byte{'F', 'L', 'V', version, flags, 0, 0, 0, HeaderLen}
	if _, err := w.Write(hdr[:]); err != nil {
		return nil, fmt.Errorf("flv: write header: %w", err)
	}
	return &Muxer{w: w}, nil
}

// WriteTag emits the PreviousTagSize field, a rebuilt tag header, and
// the tag's payload.
func (m *Muxer) WriteTag(tag Tag) error {
	if len(tag.Data) != int(tag.DataSize) {
		return fmt.Errorf("%w: tag declares %d bytes, payload holds %d",
			ErrMalformed, tag.DataSize, len(tag.Data))
	}

	var buf [4 + TagHeaderLen]byte
	buf[0] = byte(m.lastSize >> 24)
	buf[1] = byte(m.lastSize >> 16)
	buf[2] = byte(m.lastSize >> 8)
	buf[3] = byte(m.lastSize)
	buf[4] = byte(tag.Type)
	buf[5] = byte(tag.DataSize >> 16)
	buf[6] = byte(tag.DataSize >> 8)
	buf[7] = byte(tag.DataSize)
	buf[8] = byte(tag.Timestamp >> 16)
	buf[9] = byte(tag.Timestamp >> 8)
	buf[10] = byte(tag.Timestamp)
	buf[11] = byte(tag.Timestamp >> 24)
	buf[12] = byte(tag.StreamID >> 16)
	buf[13] = byte(tag.StreamID >> 8)
	buf[14] = byte(tag.StreamID)

	if _, err := m.w.Write(buf[:]); err != nil {
		return fmt.Errorf("flv: write tag header: %w", err)
	}
	if _, err := m.w.Write(tag.Data); err != nil {
		return fmt.Errorf("flv: write tag payload: %w", err)
	}
	m.lastSize = TagHeaderLen + tag.DataSize
	return nil
}

// Close writes the final PreviousTagSize so the file round-trips through
// NextTag's cross-check.
func (m *Muxer) Close() error {
	var buf [4]byte
	buf[0] = byte(m.lastSize >> 24)
	buf[1] = byte(m.lastSize >> 16)
	buf[2] = byte(m.lastSize >> 8)
	buf[3] = byte(m.lastSize)
	if _, err := m.w.Write(buf[:]); err != nil {
		return fmt.Errorf("flv: write trailer: %w", err)
	}
	return nil
}
