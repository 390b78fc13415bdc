package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"netpulse/internal/analytics"
	"netpulse/internal/models"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netpulse_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netpulse_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netpulse_ticks_total",
		Help: "Total number of sampling rounds",
	})

	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netpulse_records_total",
		Help: "Total number of ping records by node and outcome",
	}, []string{"node", "outcome"})

	anomaliesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netpulse_anomalies_detected_total",
		Help: "Total number of records flagged as anomalies",
	})

	sessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netpulse_sessions_total",
		Help: "Total number of completed monitoring sessions",
	})

	nodeLatency = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netpulse_node_latency_ms",
		Help: "Latency of the most recent successful probe",
	}, []string{"node"})

	qualityScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netpulse_quality_score",
		Help: "Quality score of the live and session windows",
	}, []string{"window"})

	lossRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netpulse_packet_loss_rate_pct",
		Help: "Packet loss rate of the live and session windows",
	}, []string{"window"})

	jitter = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netpulse_jitter_ms",
		Help: "Latency standard deviation of the live and session windows",
	}, []string{"window"})
)

// ObserveTick records one sampling round.
func ObserveTick(batch []models.PingRecord, live, session models.AggregatedStats) {
	ticksTotal.Inc()
	for _, r := range batch {
		outcome := "ok"
		switch {
		case r.Status == models.StatusDown:
			outcome = "down"
		case r.PacketLoss:
			outcome = "loss"
		default:
			nodeLatency.WithLabelValues(r.NodeID).Set(float64(r.LatencyMs))
		}
		recordsTotal.WithLabelValues(r.NodeID, outcome).Inc()
		if analytics.IsAnomaly(r) {
			anomaliesDetected.Inc()
		}
	}
	setWindow("live", live)
	setWindow("session", session)
}

// ObserveSessionEnd counts a finished session and clears per-node gauges.
func ObserveSessionEnd() {
	sessionsTotal.Inc()
	nodeLatency.Reset()
}

func setWindow(window string, s models.AggregatedStats) {
	qualityScore.WithLabelValues(window).Set(float64(s.Score))
	lossRate.WithLabelValues(window).Set(s.PacketLossRatePct)
	jitter.WithLabelValues(window).Set(float64(s.JitterMs))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush passes through so streaming handlers keep working.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades through.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware counts requests and observes their duration, labelled by
// route template rather than raw path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}
