// Package metrics exposes Prometheus counters for the decoding pipeline.
// Collectors are registered once on the default registry; the CLI decides
// whether to serve them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DecoderMetrics holds the per-protocol pipeline collectors.
type DecoderMetrics struct {
	FramesDecoded   *prometheus.CounterVec // completed frames, by protocol
	SyncLosses      *prometheus.CounterVec // resyncs after a failed frame, by protocol
	Uncorrectable   *prometheus.CounterVec // header fields beyond FEC radius, by protocol
	ErrorsCorrected *prometheus.CounterVec // bit errors corrected, by protocol
	Messages        *prometheus.CounterVec // emitted messages, by protocol and kind
	Incomplete      *prometheus.CounterVec // messages flushed by timeout, by protocol
	BitsConsumed    *prometheus.CounterVec // input bits consumed, by protocol
}

// New registers and returns the pipeline collectors.
func New() *DecoderMetrics {
	return &DecoderMetrics{
		FramesDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dvdecode_frames_decoded_total",
			Help: "Completed link-layer frames",
		}, []string{"protocol"}),
		SyncLosses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dvdecode_sync_losses_total",
			Help: "Frames dropped by resync",
		}, []string{"protocol"}),
		Uncorrectable: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dvdecode_uncorrectable_total",
			Help: "Header fields beyond the FEC correction radius",
		}, []string{"protocol"}),
		ErrorsCorrected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dvdecode_errors_corrected_total",
			Help: "Bit errors corrected by FEC",
		}, []string{"protocol"}),
		Messages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dvdecode_messages_total",
			Help: "Assembled messages emitted",
		}, []string{"protocol", "kind"}),
		Incomplete: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dvdecode_messages_incomplete_total",
			Help: "Partial messages flushed by inactivity timeout",
		}, []string{"protocol"}),
		BitsConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dvdecode_bits_consumed_total",
			Help: "Input bits consumed by the decoder",
		}, []string{"protocol"}),
	}
}
