package metrics

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "market_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "market_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	tokensMinted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market_layer",
			Subsystem: "market",
			Name:      "tokens_minted_total",
			Help:      "Total number of tokens minted.",
		},
	)

	listingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market_layer",
			Subsystem: "market",
			Name:      "listings_created_total",
			Help:      "Total number of listings created.",
		},
	)

	salesCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market_layer",
			Subsystem: "market",
			Name:      "sales_completed_total",
			Help:      "Total number of completed market sales.",
		},
	)

	feesCollectedWei = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market_layer",
			Subsystem: "market",
			Name:      "fees_collected_wei_total",
			Help:      "Total listing fees routed to the operator, in wei.",
		},
	)

	saleVolumeWei = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market_layer",
			Subsystem: "market",
			Name:      "sale_volume_wei_total",
			Help:      "Total sale payments forwarded to sellers, in wei.",
		},
	)

	unsoldListings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "market_layer",
			Subsystem: "market",
			Name:      "unsold_listings",
			Help:      "Current number of unsold listings.",
		},
	)

	soldListings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "market_layer",
			Subsystem: "market",
			Name:      "sold_listings",
			Help:      "Current number of sold listings.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		tokensMinted,
		listingsCreated,
		salesCompleted,
		feesCollectedWei,
		saleVolumeWei,
		unsoldListings,
		soldListings,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordMint counts a successful mint.
func RecordMint() {
	tokensMinted.Inc()
}

// RecordListingCreated counts a listing and the fee routed to the operator.
func RecordListingCreated(fee *big.Int) {
	listingsCreated.Inc()
	feesCollectedWei.Add(weiFloat(fee))
}

// RecordSale counts a completed sale and its volume.
func RecordSale(price *big.Int) {
	salesCompleted.Inc()
	saleVolumeWei.Add(weiFloat(price))
}

// SetListingCounts refreshes the listing state gauges.
func SetListingCounts(unsold, sold int) {
	unsoldListings.Set(float64(unsold))
	soldListings.Set(float64(sold))
}

func weiFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses identifier segments so metric cardinality stays
// bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "tokens", "wallets":
		if len(parts) > 1 {
			parts[1] = ":id"
		}
	case "market":
		if len(parts) > 2 && (parts[1] == "owned" || parts[1] == "created") {
			parts[2] = ":address"
		}
	}
	return "/" + strings.Join(parts, "/")
}
