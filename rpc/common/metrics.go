package common

import (
	"fmt"
	"net/http"

	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Prometheus Metrics
// --------------------------------------------------------------------------

// RecordDecodeError counts a failed decode by its error class
func RecordDecodeError(err error) {
	name := fmt.Sprintf(`dctl_decode_errors_total{class=%q}`, protocol.ErrorClass(err))
	metrics.GetOrCreateCounter(name).Inc()
}

// RecordControl counts a served control by opcode and outcome
func RecordControl(opcode protocol.Opcode, status int32) {
	outcome := "ok"
	if status != 0 {
		outcome = "failed"
	}
	name := fmt.Sprintf(`dctl_control_requests_total{opcode=%q,outcome=%q}`, opcode.String(), outcome)
	metrics.GetOrCreateCounter(name).Inc()
}

// ObservePacketSize records the size of a packet read ("in") or written ("out") by a transport
func ObservePacketSize(direction string, size int) {
	name := fmt.Sprintf(`dctl_packet_size_bytes{direction=%q}`, direction)
	metrics.GetOrCreateHistogram(name).Update(float64(size))
}

// MetricsHandler writes all metrics in the prometheus text format
func MetricsHandler(w http.ResponseWriter, _ *http.Request) {
	metrics.WritePrometheus(w, true)
}

// ServeMetrics serves MetricsHandler on endpoint under /metrics. It blocks like http.ListenAndServe.
func ServeMetrics(endpoint string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", MetricsHandler)
	return http.ListenAndServe(endpoint, mux)
}
