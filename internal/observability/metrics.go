package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	TokenVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dinogames_token_verifications_total",
		Help: "Bearer token verifications by result",
	}, []string{"result"})

	CredentialExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dinogames_management_credential_exchanges_total",
		Help: "Client-credentials exchanges against the identity provider by result",
	}, []string{"result"})

	AdminRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dinogames_management_api_requests_total",
		Help: "Management API calls by operation and HTTP status",
	}, []string{"operation", "status"})

	AdminRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dinogames_management_api_request_duration_seconds",
		Help:    "Latency of Management API calls",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.0, 10), // 10ms to ~5s
	}, []string{"operation"})

	EmailVerificationRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinogames_email_not_verified_rejections_total",
		Help: "Requests rejected because the caller's email is not verified",
	})

	ThrottledRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dinogames_throttled_requests_total",
		Help: "Requests rejected by the per-client throttle",
	})
)
