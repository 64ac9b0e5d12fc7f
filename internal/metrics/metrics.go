// Package metrics exposes Prometheus collectors for probe sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UnitsTotal counts extracted units by format: nal, adts_frame,
	// flv_tag, rtp_packet, ts_packet.
	UnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamprobe_units_total",
		Help: "Extracted units by format.",
	}, []string{"format"})

	// BytesTotal counts input bytes consumed by format.
	BytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamprobe_bytes_total",
		Help: "Input bytes consumed by format.",
	}, []string{"format"})

	// DesyncsTotal counts sync losses while rescanning RTP payloads as
	// transport stream packets.
	DesyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamprobe_ts_desyncs_total",
		Help: "Transport stream sync losses inside RTP payloads.",
	})

	// DecodeErrorsTotal counts recoverable payload decode failures.
	DecodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamprobe_decode_errors_total",
		Help: "Recoverable payload decode failures by format.",
	}, []string{"format"})

	// DatagramsTotal counts datagrams received from live sources.
	DatagramsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamprobe_datagrams_total",
		Help: "Datagrams received by source kind.",
	}, []string{"source"})
)

// Handler serves the default registry, mounted at /metrics by the CLI.
func Handler() http.Handler {
	return promhttp.Handler()
}
