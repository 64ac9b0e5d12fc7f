package probe

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"streamprobe/internal/flv"
	"streamprobe/internal/metrics"
)

// FLVOptions selects the optional outputs of an FLV probe.
type FLVOptions struct {
	VideoOut io.Writer // video-only FLV re-mux
	AudioOut io.Writer // raw audio elementary stream
}

// RunFLV demuxes an FLV file, logging every tag. Tags with undecodable
// payloads are counted and skipped; framing failures end the run.
func RunFLV(log *slog.Logger, r io.Reader, opts FLVOptions) (Summary, error) {
	log = log.With("component", "flv-probe")

	buf, err := io.ReadAll(r)
	if err != nil {
		return Summary{}, fmt.Errorf("probe: read input: %w", err)
	}

	dmx, err := flv.NewDemuxer(buf)
	if err != nil {
		return Summary{}, fmt.Errorf("probe: flv: %w", err)
	}
	h := dmx.Header()
	log.Info("header", "version", h.Version, "audio", h.HasAudio(), "video", h.HasVideo())

	var mux *flv.Muxer
	if opts.VideoOut != nil {
		mux, err = flv.NewMuxer(opts.VideoOut, h.Version, 0x01)
		if err != nil {
			return Summary{}, fmt.Errorf("probe: flv: %w", err)
		}
	}

	var sum Summary
	for {
		tag, err := dmx.NextTag()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && tag.Data == nil {
			return sum, fmt.Errorf("probe: flv at offset %d: %w", dmx.Pos(), err)
		}

		sum.Units++
		sum.Bytes += uint64(flv.TagHeaderLen + tag.DataSize)
		metrics.UnitsTotal.WithLabelValues("flv_tag").Inc()
		metrics.BytesTotal.WithLabelValues("flv_tag").Add(float64(flv.TagHeaderLen + tag.DataSize))

		if err != nil {
			sum.DecodeErrors++
			metrics.DecodeErrorsTotal.WithLabelValues("flv_tag").Inc()
			log.Warn("undecodable tag payload",
				"type", tag.Type.String(), "size", tag.DataSize, "error", err)
			continue
		}

		logTag(log, tag)

		switch {
		case tag.Video != nil && mux != nil:
			if err := mux.WriteTag(tag); err != nil {
				return sum, fmt.Errorf("probe: flv video out: %w", err)
			}
		case tag.Audio != nil && opts.AudioOut != nil:
			if err := flv.ExtractAudioStream(tag, opts.AudioOut); err != nil {
				return sum, fmt.Errorf("probe: flv audio out: %w", err)
			}
		}
	}

	if mux != nil {
		if err := mux.Close(); err != nil {
			return sum, fmt.Errorf("probe: flv video out: %w", err)
		}
	}
	log.Info("done", "tags", sum.Units, "bytes", sum.Bytes, "decode_errors", sum.DecodeErrors)
	return sum, nil
}

func logTag(log *slog.Logger, tag flv.Tag) {
	attrs := []any{
		"type", tag.Type.String(),
		"size", tag.DataSize,
		"timestamp_ms", tag.Timestamp,
	}
	switch {
	case tag.Audio != nil:
		attrs = append(attrs,
			"format", tag.Audio.FormatName(),
			"rate", tag.Audio.RateName(),
			"bits", tag.Audio.SizeName(),
			"channels", tag.Audio.TypeName())
	case tag.Video != nil:
		attrs = append(attrs,
			"frame", tag.Video.FrameTypeName(),
			"codec", tag.Video.CodecName())
	case tag.Script != nil:
		attrs = append(attrs, "name", tag.Script.Name)
	}
	log.Info("tag", attrs...)

	if tag.Script != nil {
		logMetadata(log, tag.Script)
	}
}

// logMetadata reports the well-known onMetaData keys first, then any
// extras in file order.
func logMetadata(log *slog.Logger, s *flv.ScriptMetadata) {
	known := make(map[string]bool, len(flv.WellKnownKeys))
	for _, key := range flv.WellKnownKeys {
		known[key] = true
		if v := s.Lookup(key); v != nil {
			log.Info("metadata", "key", key, "value", v)
		}
	}
	for _, p := range s.Pairs {
		if !known[p.Key] {
			log.Info("metadata", "key", p.Key, "value", p.Value)
		}
	}
}
