// Package metrics exposes Prometheus collectors for the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal 按方法、路由和状态码统计请求数。
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipebox_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration 请求耗时分布。
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recipebox_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// ImageUploadsTotal 成功的图片上传次数。
	ImageUploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recipebox_image_uploads_total",
		Help: "Total number of successful recipe image uploads.",
	})

	// ImageUploadBytes 成功上传的图片总字节数。
	ImageUploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recipebox_image_upload_bytes_total",
		Help: "Total bytes of successfully uploaded recipe images.",
	})

	// RateLimitRejectedTotal 被限流拒绝的请求数。
	RateLimitRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recipebox_ratelimit_rejected_total",
		Help: "Total number of requests rejected by the rate limiter.",
	})
)
