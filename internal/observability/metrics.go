package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	controlCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuraflow",
			Subsystem: "control",
			Name:      "calls_total",
			Help:      "Control-plane exchanges by side, action and reply status.",
		},
		[]string{"side", "action", "status"},
	)
	controlDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "neuraflow",
			Subsystem: "control",
			Name:      "call_duration_seconds",
			Help:      "Control-plane exchange duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"side", "action"},
	)
	streamMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuraflow",
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Data-plane messages by direction and outcome.",
		},
		[]string{"direction", "outcome"},
	)
	streamBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuraflow",
			Subsystem: "stream",
			Name:      "bytes_total",
			Help:      "Data-plane payload bytes by direction.",
		},
		[]string{"direction"},
	)
	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuraflow",
			Subsystem: "broker",
			Name:      "registrations_total",
			Help:      "Identities allocated by the broker per service name.",
		},
		[]string{"service"},
	)
	registeredServices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "neuraflow",
			Subsystem: "broker",
			Name:      "registered_services",
			Help:      "Service names currently present in the broker registry.",
		},
	)
	sinkMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "neuraflow",
			Subsystem: "broker",
			Name:      "sink_messages_total",
			Help:      "Messages received on the broker default sink.",
		},
	)
	registrationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuraflow",
			Subsystem: "worker",
			Name:      "registration_attempts_total",
			Help:      "Worker registration attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuraflow",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"component", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "neuraflow",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component", "method", "route", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			controlCalls,
			controlDuration,
			streamMessages,
			streamBytes,
			registrations,
			registeredServices,
			sinkMessages,
			registrationAttempts,
			httpRequests,
			httpDuration,
		)
	})
}

// RecordControlCall records one control exchange. side is "server" or "client".
func RecordControlCall(side, action, status string, duration time.Duration) {
	RegisterMetrics()
	controlCalls.WithLabelValues(side, action, status).Inc()
	controlDuration.WithLabelValues(side, action).Observe(duration.Seconds())
}

// RecordStreamMessage records one data-plane message. direction is "in" or "out".
func RecordStreamMessage(direction string, size int, delivered bool) {
	RegisterMetrics()
	outcome := "ok"
	if !delivered {
		outcome = "failed"
	}
	streamMessages.WithLabelValues(direction, outcome).Inc()
	if delivered {
		streamBytes.WithLabelValues(direction).Add(float64(size))
	}
}

func RecordRegistration(service string, registered int) {
	RegisterMetrics()
	registrations.WithLabelValues(service).Inc()
	registeredServices.Set(float64(registered))
}

func RecordSinkMessage() {
	RegisterMetrics()
	sinkMessages.Inc()
}

func RecordRegistrationAttempt(service string, success bool) {
	RegisterMetrics()
	outcome := "retry"
	if success {
		outcome = "registered"
	}
	registrationAttempts.WithLabelValues(service, outcome).Inc()
}

func RecordHTTPRequest(component, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(component, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(component, method, route, statusLabel).Observe(duration.Seconds())
}
