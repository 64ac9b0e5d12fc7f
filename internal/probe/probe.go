// Package probe runs one demux session per input format, logging a
// record per extracted unit and collecting counters. Runners are
// synchronous; live inputs stop on context cancellation or source EOF.
package probe

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"streamprobe/internal/aac"
	"streamprobe/internal/cursor"
	"streamprobe/internal/h264"
	"streamprobe/internal/metrics"
)

// Summary is the final tally of a probe session.
type Summary struct {
	Units        uint64 // NAL units, ADTS frames, FLV tags, or TS packets
	Bytes        uint64 // input bytes consumed
	Datagrams    uint64 // live sources only
	Desyncs      uint64 // TS sync losses inside RTP payloads
	DecodeErrors uint64 // recoverable payload decode failures
}

// RunH264 scans an Annex B elementary stream and logs every NAL unit.
func RunH264(log *slog.Logger, r io.Reader) (Summary, error) {
	log = log.With("component", "h264-probe")

	buf, err := io.ReadAll(r)
	if err != nil {
		return Summary{}, fmt.Errorf("probe: read input: %w", err)
	}

	var sum Summary
	cur := cursor.New(buf)
	for {
		unit, err := h264.NextUnit(cur)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("probe: h264 at offset %d: %w", cur.Pos(), err)
		}

		sum.Units++
		sum.Bytes += uint64(unit.StartCodeLen + len(unit.Payload))
		metrics.UnitsTotal.WithLabelValues("nal").Inc()
		metrics.BytesTotal.WithLabelValues("nal").Add(float64(unit.StartCodeLen + len(unit.Payload)))

		log.Info("nal",
			"offset", unit.Offset,
			"type", h264.TypeName(unit.Type),
			"ref_idc", h264.RefIDCName(unit.RefIDC),
			"start_code", unit.StartCodeLen,
			"size", len(unit.Payload),
			"keyframe", unit.IsKeyframe())
	}

	if sum.Bytes != uint64(len(buf)) {
		return sum, fmt.Errorf("probe: h264 consumed %d of %d bytes", sum.Bytes, len(buf))
	}
	log.Info("done", "units", sum.Units, "bytes", sum.Bytes)
	return sum, nil
}

// RunADTS scans an ADTS stream and logs every AAC frame. A partial frame
// at end of stream is logged and tolerated.
func RunADTS(log *slog.Logger, r io.Reader) (Summary, error) {
	log = log.With("component", "adts-probe")

	var sum Summary
	rd := aac.NewReader(r)
	for {
		frame, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, aac.ErrTruncated) {
			log.Warn("stream ends inside a frame", "leftover_bytes", rd.Leftover())
			break
		}
		if err != nil {
			return sum, fmt.Errorf("probe: adts: %w", err)
		}

		sum.Units++
		sum.Bytes += uint64(frame.FrameLength)
		metrics.UnitsTotal.WithLabelValues("adts_frame").Inc()
		metrics.BytesTotal.WithLabelValues("adts_frame").Add(float64(frame.FrameLength))

		log.Info("adts",
			"profile", frame.ProfileName(),
			"sample_rate", frame.SampleRate(),
			"channels", frame.ChannelName(),
			"crc", !frame.ProtectionAbsent,
			"size", frame.FrameLength)
	}

	log.Info("done", "frames", sum.Units, "bytes", sum.Bytes)
	return sum, nil
}
