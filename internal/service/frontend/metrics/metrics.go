// Package metrics exposes the Prometheus registry served on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector reports process-level gauges: build info and uptime.
type Collector struct {
	version   string
	startTime time.Time

	infoDesc   *prometheus.Desc
	uptimeDesc *prometheus.Desc
}

// NewCollector creates a collector stamped with the build version.
func NewCollector(version string) *Collector {
	return &Collector{
		version:   version,
		startTime: time.Now(),
		infoDesc: prometheus.NewDesc(
			"mnemo_info",
			"Build information.",
			[]string{"version"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"mnemo_uptime_seconds",
			"Seconds since the server started.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.infoDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.infoDesc, prometheus.GaugeValue, 1, c.version)
	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.GaugeValue, time.Since(c.startTime).Seconds())
}

// Registry bundles the Prometheus registry with the HTTP request counter
// fed by the Middleware.
type Registry struct {
	*prometheus.Registry

	requests *prometheus.CounterVec
}

// NewRegistry builds a registry with the app collector plus the standard
// Go and process collectors.
func NewRegistry(c *Collector) *Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mnemo_http_requests_total",
		Help: "HTTP requests served, by method and status code.",
	}, []string{"method", "code"})
	r.MustRegister(requests)

	return &Registry{Registry: r, requests: requests}
}

// Middleware counts every served request.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req)
		r.requests.WithLabelValues(req.Method, strconv.Itoa(sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer so SSE keeps working behind
// the counting wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
