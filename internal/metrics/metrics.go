package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Auth flow metrics

	SignupsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "account",
		Name:      "signups_total",
		Help:      "Total accounts created.",
	})

	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "account",
		Name:      "logins_total",
		Help:      "Total login attempts, by outcome.",
	}, []string{"outcome"})

	TokenVerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "account",
		Name:      "token_verifications_total",
		Help:      "Bearer token verifications in the auth middleware, by result.",
	}, []string{"result"})

	PasswordResetsRequestedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "account",
		Name:      "password_resets_requested_total",
		Help:      "Total password reset tokens issued.",
	})

	PasswordResetsConsumedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "account",
		Name:      "password_resets_consumed_total",
		Help:      "Total reset token consumptions, by outcome.",
	}, []string{"outcome"})

	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "account",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limiter, by limiter name.",
	}, []string{"limiter"})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "account",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "account",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		SignupsTotal,
		LoginsTotal,
		TokenVerificationsTotal,
		PasswordResetsRequestedTotal,
		PasswordResetsConsumedTotal,
		RateLimitedTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string, checker healthHandler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if checker != nil {
		mux.HandleFunc("/healthz", checker.LivenessHTTP)
		mux.HandleFunc("/readyz", checker.ReadinessHTTP)
	}
	return &http.Server{Addr: addr, Handler: mux}
}

type healthHandler interface {
	LivenessHTTP(w http.ResponseWriter, r *http.Request)
	ReadinessHTTP(w http.ResponseWriter, r *http.Request)
}
