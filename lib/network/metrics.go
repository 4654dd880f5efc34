package network

import (
	"github.com/VictoriaMetrics/metrics"
)

// Counters live in the default metrics set; callers can expose them with
// metrics.WritePrometheus (the serve command does this when configured with a
// metrics endpoint).
var (
	metricBytesSent           = metrics.NewCounter(`netq_bytes_sent_total`)
	metricBytesReceived       = metrics.NewCounter(`netq_bytes_received_total`)
	metricConnectionsDialed   = metrics.NewCounter(`netq_connections_dialed_total`)
	metricConnectionsAccepted = metrics.NewCounter(`netq_connections_accepted_total`)
)
