package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"streamprobe/internal/metrics"
	"streamprobe/internal/mpegts"
	"streamprobe/internal/rtp"
	"streamprobe/internal/source"
)

// RTPOptions controls how live datagrams are interpreted.
type RTPOptions struct {
	// ParseRTP treats each datagram as an RTP packet whose payload holds
	// TS packets. When false, datagrams are raw TS chunks, which is what
	// SRT publishers send.
	ParseRTP bool

	// TSDump receives every recovered TS packet verbatim.
	TSDump io.Writer

	// SourceLabel names the source kind in metrics ("udp" or "srt").
	SourceLabel string
}

// RunRTP receives datagrams until the source reports io.EOF or ctx is
// cancelled, logging each RTP header and the TS packets inside. A TS
// desync inside one datagram is counted and logged; the session
// continues with the next datagram.
func RunRTP(ctx context.Context, log *slog.Logger, src source.Source, opts RTPOptions) (Summary, error) {
	log = log.With("component", "rtp-probe")

	var sum Summary
	for {
		dg, err := src.Receive(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("probe: receive: %w", err)
		}

		sum.Datagrams++
		sum.Bytes += uint64(len(dg.Data))
		metrics.DatagramsTotal.WithLabelValues(opts.SourceLabel).Inc()

		payload := dg.Data
		if opts.ParseRTP {
			hdr, err := rtp.ParseHeader(dg.Data)
			if err != nil {
				sum.DecodeErrors++
				metrics.DecodeErrorsTotal.WithLabelValues("rtp_packet").Inc()
				log.Warn("undecodable datagram", "from", dg.Addr, "size", len(dg.Data), "error", err)
				continue
			}

			metrics.UnitsTotal.WithLabelValues("rtp_packet").Inc()
			metrics.BytesTotal.WithLabelValues("rtp_packet").Add(float64(len(dg.Data)))
			log.Info("rtp",
				"from", dg.Addr,
				"payload_type", rtp.PayloadTypeName(hdr.PayloadType),
				"seq", hdr.SequenceNumber,
				"timestamp", hdr.Timestamp,
				"ssrc", hdr.SSRC,
				"marker", hdr.Marker,
				"size", len(dg.Data))

			if hdr.PayloadType != rtp.PayloadTypeMP2T {
				continue
			}
			payload = dg.Data[hdr.PayloadOffset():]
		}

		packets, err := mpegts.Rescan(payload)
		var lost *mpegts.SyncLostError
		if errors.As(err, &lost) {
			sum.Desyncs++
			metrics.DesyncsTotal.Inc()
			log.Warn("ts sync lost", "stride", lost.Stride, "byte", fmt.Sprintf("0x%02X", lost.Byte))
		}

		for _, pkt := range packets {
			sum.Units++
			metrics.UnitsTotal.WithLabelValues("ts_packet").Inc()
			log.Debug("ts",
				"pid", pkt.PID,
				"pusi", pkt.PayloadStart,
				"afc", pkt.AFC,
				"cc", pkt.CC)
		}
		if opts.TSDump != nil && len(packets) > 0 {
			n := len(packets) * mpegts.PacketSize
			if _, err := opts.TSDump.Write(payload[:n]); err != nil {
				return sum, fmt.Errorf("probe: ts dump: %w", err)
			}
		}
	}

	log.Info("done",
		"datagrams", sum.Datagrams,
		"ts_packets", sum.Units,
		"bytes", sum.Bytes,
		"desyncs", sum.Desyncs)
	return sum, nil
}
