package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector using Prometheus metrics,
// labeled by protocol rather than assuming a single server.
type PrometheusCollector struct {
	connectionsTotal  *prometheus.CounterVec
	connectionsActive *prometheus.GaugeVec
	tlsEstablished    *prometheus.CounterVec

	authAttemptsTotal *prometheus.CounterVec
	commandsTotal     *prometheus.CounterVec

	messagesRetrievedTotal *prometheus.CounterVec
	messagesSizeBytes      prometheus.Histogram

	sendStatusTotal *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics
// registered against reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailcore_connections_total",
			Help: "Total number of connections opened, by protocol.",
		}, []string{"protocol"}),
		connectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mailcore_connections_active",
			Help: "Number of currently active connections, by protocol.",
		}, []string{"protocol"}),
		tlsEstablished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailcore_tls_established_total",
			Help: "Total number of TLS upgrades completed, by protocol.",
		}, []string{"protocol"}),

		authAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailcore_auth_attempts_total",
			Help: "Total number of authentication attempts, by protocol/mechanism/result.",
		}, []string{"protocol", "mechanism", "result"}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailcore_commands_total",
			Help: "Total number of protocol commands issued, by protocol/command.",
		}, []string{"protocol", "command"}),

		messagesRetrievedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailcore_messages_retrieved_total",
			Help: "Total number of message bodies retrieved, by protocol.",
		}, []string{"protocol"}),
		messagesSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailcore_messages_size_bytes",
			Help:    "Size of retrieved message bodies in bytes.",
			Buckets: []float64{1024, 10240, 102400, 1048576, 10485760, 26214400, 52428800},
		}),

		sendStatusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailcore_smtp_send_status_total",
			Help: "Total number of SMTP per-recipient send results, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.tlsEstablished,
		c.authAttemptsTotal,
		c.commandsTotal,
		c.messagesRetrievedTotal,
		c.messagesSizeBytes,
		c.sendStatusTotal,
	)

	return c
}

func (c *PrometheusCollector) ConnectionOpened(protocol string) {
	c.connectionsTotal.WithLabelValues(protocol).Inc()
	c.connectionsActive.WithLabelValues(protocol).Inc()
}

func (c *PrometheusCollector) ConnectionClosed(protocol string) {
	c.connectionsActive.WithLabelValues(protocol).Dec()
}

func (c *PrometheusCollector) TLSEstablished(protocol string) {
	c.tlsEstablished.WithLabelValues(protocol).Inc()
}

func (c *PrometheusCollector) AuthAttempt(protocol, mechanism string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttemptsTotal.WithLabelValues(protocol, mechanism, result).Inc()
}

func (c *PrometheusCollector) CommandProcessed(protocol, command string) {
	c.commandsTotal.WithLabelValues(protocol, command).Inc()
}

func (c *PrometheusCollector) MessageRetrieved(protocol string, sizeBytes int64) {
	c.messagesRetrievedTotal.WithLabelValues(protocol).Inc()
	c.messagesSizeBytes.Observe(float64(sizeBytes))
}

func (c *PrometheusCollector) SendStatus(result string) {
	c.sendStatusTotal.WithLabelValues(result).Inc()
}
