// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatd_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Realtime metrics
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatd_online_users",
			Help: "Users with a registered live connection (anonymous sockets excluded)",
		},
	)

	PresenceBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatd_presence_broadcasts_total",
			Help: "Online-set broadcasts",
		},
	)

	ConnectionsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_connections_dropped_total",
			Help: "Live connections unregistered",
		},
		[]string{"reason"},
	)

	PushesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_pushes_dropped_total",
			Help: "Notifications dropped on a full or closed queue",
		},
		[]string{"event"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_messages_sent_total",
			Help: "Messages persisted",
		},
		[]string{"kind"}, // "text" or "image"
	)

	MessagesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatd_messages_seen_total",
			Help: "Messages flipped to seen",
		},
	)

	UploadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatd_upload_failures_total",
			Help: "Image uploads that failed",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatd_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)
)
