package observability

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pmiettinen/libsbp/internal/protocol/stream"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultDecoded     = "decoded"
	ResultUnknown     = "unknown"
	ResultDecodeError = "decode_error"
)

var (
	registerOnce sync.Once

	streamFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sbp",
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Frames taken off a stream, by msg_type and outcome.",
		},
		[]string{"stream", "msg_type", "result"},
	)
	streamCRCErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sbp",
			Subsystem: "stream",
			Name:      "crc_errors_total",
			Help:      "Candidate frames that failed the checksum.",
		},
		[]string{"stream"},
	)
	streamSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sbp",
			Subsystem: "stream",
			Name:      "skipped_bytes_total",
			Help:      "Bytes discarded while resynchronizing.",
		},
		[]string{"stream"},
	)
	captureFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sbp",
			Subsystem: "capture",
			Name:      "frames_total",
			Help:      "Frames appended to the capture store.",
		},
		[]string{"session"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sbp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sbp",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(streamFrames, streamCRCErrors, streamSkipped, captureFrames, httpRequests, httpDuration)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordCapture(session string, frames int) {
	RegisterMetrics()
	captureFrames.WithLabelValues(session).Add(float64(frames))
}

// StreamMetrics feeds stream.Reader events into the stream counters under
// one stream label.
type StreamMetrics struct {
	name string
}

var _ stream.Observer = (*StreamMetrics)(nil)

func NewStreamMetrics(name string) *StreamMetrics {
	RegisterMetrics()
	return &StreamMetrics{name: name}
}

func (m *StreamMetrics) OnMessage(msgType uint16) {
	streamFrames.WithLabelValues(m.name, msgTypeLabel(msgType), ResultDecoded).Inc()
}

func (m *StreamMetrics) OnUnknown(msgType uint16) {
	streamFrames.WithLabelValues(m.name, msgTypeLabel(msgType), ResultUnknown).Inc()
}

func (m *StreamMetrics) OnDecodeError(msgType uint16) {
	streamFrames.WithLabelValues(m.name, msgTypeLabel(msgType), ResultDecodeError).Inc()
}

func (m *StreamMetrics) OnCRCError() {
	streamCRCErrors.WithLabelValues(m.name).Inc()
}

func (m *StreamMetrics) OnSkipped(n int) {
	streamSkipped.WithLabelValues(m.name).Add(float64(n))
}

func msgTypeLabel(msgType uint16) string {
	return fmt.Sprintf("0x%04X", msgType)
}
