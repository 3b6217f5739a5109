package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	// Notification lifecycle
	NotificationsReceived  prometheus.CounterVec // by channel
	NotificationsHandled   prometheus.Counter
	NotificationsDismissed prometheus.Counter
	DuplicatesDropped      prometheus.Counter
	InvalidPayloadsDropped prometheus.CounterVec // by reason
	CrossSessionRetracted  prometheus.Counter

	// Resume state machine
	ResumeAttempts     prometheus.CounterVec // by outcome: ok, error, timeout
	ResumeBlockedAuth  prometheus.Counter
	ResumeSkipped      prometheus.CounterVec // by reason
	LoadingWatchdog    prometheus.Counter
	QueueDepth         prometheus.Gauge
	NavigationsBlocked prometheus.Counter

	// Photo fetch
	PhotoFetchRetries   prometheus.Counter
	PhotoFetchExhausted prometheus.Counter

	// Sessions
	ActiveSessions prometheus.Gauge

	// HTTP surface
	HTTPRequestsTotal   prometheus.CounterVec // by method, path, status
	HTTPRequestDuration prometheus.HistogramVec
	RateLimitExceeded   prometheus.CounterVec // by path
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			NotificationsReceived: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pimapos_notifications_received_total",
					Help: "Notifications accepted into the queue, by source channel",
				},
				[]string{"channel"},
			),
			NotificationsHandled: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pimapos_notifications_handled_total",
				Help: "Notifications marked handled with verified persistence",
			}),
			NotificationsDismissed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pimapos_notifications_dismissed_total",
				Help: "Notifications dismissed without handling",
			}),
			DuplicatesDropped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pimapos_notifications_duplicates_dropped_total",
				Help: "Incoming notifications dropped by (transaction, event) dedup",
			}),
			InvalidPayloadsDropped: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pimapos_realtime_invalid_payloads_total",
					Help: "Realtime payloads rejected by validation, by reason",
				},
				[]string{"reason"},
			),
			CrossSessionRetracted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pimapos_notifications_cross_session_retracted_total",
				Help: "Local queue entries retracted because another session handled or dismissed them",
			}),
			ResumeAttempts: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pimapos_resume_attempts_total",
					Help: "Resume executions by outcome",
				},
				[]string{"outcome"},
			),
			ResumeBlockedAuth: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pimapos_resume_blocked_auth_total",
				Help: "Resume triggers skipped because authentication was loading",
			}),
			ResumeSkipped: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pimapos_resume_skipped_total",
					Help: "Resume triggers skipped before execution, by reason",
				},
				[]string{"reason"},
			),
			LoadingWatchdog: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pimapos_loading_watchdog_fired_total",
				Help: "Times the loading watchdog forced the loading flag off",
			}),
			QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "pimapos_notification_queue_depth",
				Help: "Current number of unhandled notifications in the local queue",
			}),
			NavigationsBlocked: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pimapos_navigations_blocked_total",
				Help: "Navigation attempts refused while notifications were pending",
			}),
			PhotoFetchRetries: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pimapos_photo_fetch_retries_total",
				Help: "Photo fetch retry attempts",
			}),
			PhotoFetchExhausted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pimapos_photo_fetch_exhausted_total",
				Help: "Photo fetches that gave up after the retry budget",
			}),
			ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "pimapos_active_sessions",
				Help: "Operator sessions with a recent heartbeat",
			}),
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pimapos_http_requests_total",
					Help: "HTTP requests served",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "pimapos_http_request_duration_seconds",
					Help:    "HTTP request latency",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),
			RateLimitExceeded: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pimapos_rate_limit_exceeded_total",
					Help: "Requests refused by the rate limiter",
				},
				[]string{"path"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it if needed.
func Get() *Metrics {
	return Initialize()
}
