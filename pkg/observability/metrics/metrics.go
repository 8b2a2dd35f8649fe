/*
 * Copyright 2024 The Thumbcache Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics defines the thumbcache-instrumented Prometheus metrics
// and provides the handler for the metrics endpoint
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricNamespace   = "thumbcache"
	cacheSubsystem    = "cache"
	fetchSubsystem    = "fetch"
	frontendSubsystem = "frontend"
)

// Default histogram buckets used by thumbcache
var defaultBuckets = []float64{0.05, 0.1, 0.5, 1, 5, 10, 20}

// FrontendRequestStatus is a Counter of front end requests that have been processed with their status
var FrontendRequestStatus *prometheus.CounterVec

// FrontendRequestDuration is a Histogram that tracks the time it takes to process a request
var FrontendRequestDuration *prometheus.HistogramVec

// FetchRequestStatus is a Counter of origin fetches performed, labeled by outcome
var FetchRequestStatus *prometheus.CounterVec

// FetchRequestDuration is a Histogram of time required in seconds to fetch and decode an image
var FetchRequestDuration *prometheus.HistogramVec

// FetchCollapsedRequests is a Counter of requests that joined an already-pending fetch
// rather than starting their own
var FetchCollapsedRequests *prometheus.CounterVec

// CacheObjectOperations is a Counter of operations (in # of objects) performed on a thumbcache cache
var CacheObjectOperations *prometheus.CounterVec

// CacheByteOperations is a Counter of operations (in # of bytes) performed on a thumbcache cache
var CacheByteOperations *prometheus.CounterVec

// CacheEvents is a Counter of events performed on a thumbcache cache
var CacheEvents *prometheus.CounterVec

// CacheObjects is a Gauge representing the number of objects in a thumbcache cache
var CacheObjects *prometheus.GaugeVec

// CacheBytes is a Gauge representing the number of bytes in a thumbcache cache
var CacheBytes *prometheus.GaugeVec

// CacheMaxObjects is a Gauge representing the cache's max object threshold for triggering an eviction exercise
var CacheMaxObjects *prometheus.GaugeVec

// CacheMaxBytes is a Gauge representing the cache's max byte threshold for triggering an eviction exercise
var CacheMaxBytes *prometheus.GaugeVec

var onceInit sync.Once

// Init initializes the instrumented metrics; it is safe to call more than once
func Init() {
	onceInit.Do(registerMetrics)
}

func registerMetrics() {

	FrontendRequestStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "requests_total",
			Help:      "Count of front end requests handled by thumbcache",
		},
		[]string{"method", "path", "http_status"},
	)

	FrontendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "requests_duration_seconds",
			Help:      "Histogram of front end request durations handled by thumbcache",
			Buckets:   defaultBuckets,
		},
		[]string{"method", "path", "http_status"},
	)

	FetchRequestStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: fetchSubsystem,
			Name:      "requests_total",
			Help:      "Count of origin image fetches performed by thumbcache",
		},
		[]string{"status"},
	)

	FetchRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Subsystem: fetchSubsystem,
			Name:      "requests_duration_seconds",
			Help:      "Histogram of origin fetch-and-decode durations",
			Buckets:   defaultBuckets,
		},
		[]string{"status"},
	)

	FetchCollapsedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: fetchSubsystem,
			Name:      "collapsed_requests_total",
			Help:      "Count of requests that joined an already-pending fetch for the same key",
		},
		[]string{"status"},
	)

	CacheObjectOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "operation_objects_total",
			Help:      "Count (in # of objects) of operations performed on a thumbcache cache",
		},
		[]string{"cache_name", "cache_type", "operation", "status"},
	)

	CacheByteOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "operation_bytes_total",
			Help:      "Count (in bytes) of operations performed on a thumbcache cache",
		},
		[]string{"cache_name", "cache_type", "operation", "status"},
	)

	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "events_total",
			Help:      "Count of events performed on a thumbcache cache",
		},
		[]string{"cache_name", "cache_type", "event", "reason"},
	)

	CacheObjects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "usage_objects",
			Help:      "Number of objects in a thumbcache cache",
		},
		[]string{"cache_name", "cache_type"},
	)

	CacheBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "usage_bytes",
			Help:      "Number of bytes in a thumbcache cache",
		},
		[]string{"cache_name", "cache_type"},
	)

	CacheMaxObjects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "max_usage_objects",
			Help:      "Object threshold that triggers an eviction exercise on a thumbcache cache",
		},
		[]string{"cache_name", "cache_type"},
	)

	CacheMaxBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: cacheSubsystem,
			Name:      "max_usage_bytes",
			Help:      "Byte threshold that triggers an eviction exercise on a thumbcache cache",
		},
		[]string{"cache_name", "cache_type"},
	)

	prometheus.MustRegister(
		FrontendRequestStatus,
		FrontendRequestDuration,
		FetchRequestStatus,
		FetchRequestDuration,
		FetchCollapsedRequests,
		CacheObjectOperations,
		CacheByteOperations,
		CacheEvents,
		CacheObjects,
		CacheBytes,
		CacheMaxObjects,
		CacheMaxBytes,
	)
}

// Handler returns the HTTP handler for the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
