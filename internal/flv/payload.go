package flv

import (
	"fmt"

	"streamprobe/internal/amf"
	"streamprobe/internal/cursor"
)

// AudioInfo describes the flags byte leading every audio tag payload.
type AudioInfo struct {
	SoundFormat uint8 // 0..15
	SoundRate   uint8 // 0..3
	SoundSize   uint8 // 0 = 8-bit, 1 = 16-bit
	SoundType   uint8 // 0 = mono, 1 = stereo
}

// FormatName returns the display name of the sound format.
func (a AudioInfo) FormatName() string {
	switch a.SoundFormat {
	case 0:
		return "Linear PCM, platform endian"
	case 1:
		return "ADPCM"
	case 2:
		return "MP3"
	case 3:
		return "Linear PCM, little endian"
	case 4:
		return "Nellymoser 16-kHz mono"
	case 5:
		return "Nellymoser 8-kHz mono"
	case 6:
		return "Nellymoser"
	case 7:
		return "G.711 A-law"
	case 8:
		return "G.711 mu-law"
	case 10:
		return "AAC"
	case 11:
		return "Speex"
	case 14:
		return "MP3 8-kHz"
	case 15:
		return "Device-specific"
	default:
		return "UNKNOWN"
	}
}

// RateName returns the display name of the sound rate.
func (a AudioInfo) RateName() string {
	switch a.SoundRate {
	case 0:
		return "5.5 kHz"
	case 1:
		return "11 kHz"
	case 2:
		return "22 kHz"
	case 3:
		return "44 kHz"
	default:
		return "UNKNOWN"
	}
}

// SizeName returns the display name of the sample size.
func (a AudioInfo) SizeName() string {
	switch a.SoundSize {
	case 0:
		return "8 bit"
	case 1:
		return "16 bit"
	default:
		return "UNKNOWN"
	}
}

// TypeName returns the display name of the channel layout.
func (a AudioInfo) TypeName() string {
	switch a.SoundType {
	case 0:
		return "mono"
	case 1:
		return "stereo"
	default:
		return "UNKNOWN"
	}
}

// VideoInfo describes the flags byte leading every video tag payload.
type VideoInfo struct {
	FrameType uint8 // 1..5
	CodecID   uint8 // 1..7
}

// IsKeyframe reports whether the tag holds a seekable keyframe.
func (v VideoInfo) IsKeyframe() bool { return v.FrameType == 1 }

// FrameTypeName returns the display name of the frame type.
func (v VideoInfo) FrameTypeName() string {
	switch v.FrameType {
	case 1:
		return "keyframe"
	case 2:
		return "inter frame"
	case 3:
		return "disposable inter frame"
	case 4:
		return "generated keyframe"
	case 5:
		return "video info/command frame"
	default:
		return "UNKNOWN"
	}
}

// CodecName returns the display name of the video codec.
func (v VideoInfo) CodecName() string {
	switch v.CodecID {
	case 1:
		return "JPEG"
	case 2:
		return "Sorenson H.263"
	case 3:
		return "Screen video"
	case 4:
		return "On2 VP6"
	case 5:
		return "On2 VP6 with alpha"
	case 6:
		return "Screen video version 2"
	case 7:
		return "AVC"
	default:
		return "UNKNOWN"
	}
}

// ScriptMetadata is a decoded script tag: the metadata name (almost
// always "onMetaData") and its property list in file order.
type ScriptMetadata struct {
	Name  string
	Pairs []amf.Pair
}

// Lookup returns the value for key, or nil when absent.
func (s *ScriptMetadata) Lookup(key string) amf.Value {
	for _, p := range s.Pairs {
		if p.Key == key {
			return p.Value
		}
	}
	return nil
}

// Number returns the float64 value for key when present and numeric.
func (s *ScriptMetadata) Number(key string) (float64, bool) {
	v, ok := s.Lookup(key).(float64)
	return v, ok
}

// WellKnownKeys lists the onMetaData properties encoders commonly emit.
// Probing reports these first, in this order, before any others.
var WellKnownKeys = []string{
	"duration", "width", "height", "videodatarate", "framerate",
	"videocodecid", "audiodatarate", "audiosamplerate", "audiosamplesize",
	"stereo", "audiocodecid", "filesize",
}

func decodeAudio(data []byte) (*AudioInfo, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty audio payload", ErrMalformed)
	}
	flags := data[0]
	return &AudioInfo{
		SoundFormat: flags >> 4,
		SoundRate:   (flags >> 2) & 0x03,
		SoundSize:   (flags >> 1) & 0x01,
		SoundType:   flags & 0x01,
	}, nil
}

func decodeVideo(data []byte) (*VideoInfo, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty video payload", ErrMalformed)
	}
	flags := data[0]
	return &VideoInfo{
		FrameType: flags >> 4,
		CodecID:   flags & 0x0F,
	}, nil
}

func decodeScript(data []byte) (*ScriptMetadata, error) {
	cur := cursor.New(data)

	name, err := amf.DecodeString(cur)
	if err != nil {
		return nil, fmt.Errorf("flv: script tag name: %w", err)
	}
	pairs, err := amf.DecodeECMAArray(cur)
	if err != nil {
		return nil, fmt.Errorf("flv: script tag %q: %w", name, err)
	}
	if !cur.Exhausted() {
		return nil, fmt.Errorf("%w: script tag %q has %d trailing bytes",
			ErrMalformed, name, cur.Remaining())
	}
	return &ScriptMetadata{Name: name, Pairs: pairs}, nil
}
