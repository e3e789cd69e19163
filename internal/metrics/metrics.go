package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	apiRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "firmament",
			Name:      "api_request_duration_seconds",
			Help:      "Latency of booking API calls by method and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "firmament",
			Name:      "availability_cache_hits_total",
			Help:      "Count of availability responses served from Redis.",
		},
	)

	staleResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firmament",
			Name:      "availability_stale_responses_total",
			Help:      "Count of availability responses discarded because a newer load superseded them.",
		},
		[]string{"view"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firmament",
			Name:      "booking_submissions_total",
			Help:      "Count of wizard submissions by result.",
		},
		[]string{"result"},
	)

	payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firmament",
			Name:      "booking_payments_total",
			Help:      "Count of payment attempts by result.",
		},
		[]string{"result"},
	)

	documentsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firmament",
			Name:      "documents_rejected_total",
			Help:      "Count of attachments rejected before upload.",
		},
		[]string{"reason"},
	)

	unblocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firmament",
			Name:      "schedule_unblock_total",
			Help:      "Count of single block removals by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(apiRequests, cacheHits, staleResponses, submissions, payments, documentsRejected, unblocks)
	})
}

func ObserveAPIRequest(method, status string, d time.Duration) {
	apiRequests.WithLabelValues(method, status).Observe(d.Seconds())
}

func IncCacheHit() {
	cacheHits.Inc()
}

func IncStaleResponse(view string) {
	staleResponses.WithLabelValues(view).Inc()
}

func IncSubmission(result string) {
	submissions.WithLabelValues(result).Inc()
}

func IncPayment(result string) {
	payments.WithLabelValues(result).Inc()
}

func IncDocumentRejected(reason string) {
	documentsRejected.WithLabelValues(reason).Inc()
}

func IncUnblock(result string) {
	unblocks.WithLabelValues(result).Inc()
}
