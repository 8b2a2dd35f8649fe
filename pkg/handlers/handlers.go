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

// Package handlers provides the HTTP frontend consumed by the presentation
// layer: image lookup-or-fetch plus stats, purge, ping and metrics
// endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lanternmedia/thumbcache/pkg/cache/tiered"
	"github.com/lanternmedia/thumbcache/pkg/fetch"
	"github.com/lanternmedia/thumbcache/pkg/loader"
	"github.com/lanternmedia/thumbcache/pkg/observability/logging"
	"github.com/lanternmedia/thumbcache/pkg/observability/metrics"
	"github.com/lanternmedia/thumbcache/pkg/runtime"
)

// Handler serves the thumbcache HTTP frontend
type Handler struct {
	cache       *tiered.Cache
	coordinator *fetch.Coordinator
	client      *http.Client
	log         *logging.Logger
}

// New returns a new frontend Handler over the provided cache and coordinator
func New(c *tiered.Cache, co *fetch.Coordinator, httpClient *http.Client, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.ConsoleLogger("info")
	}
	return &Handler{cache: c, coordinator: co, client: httpClient, log: logger}
}

// Router returns the frontend route table
func (h *Handler) Router(metricsEnabled bool) http.Handler {
	r := chi.NewRouter()
	r.Use(h.observe)
	r.Get("/image", h.imageHandler)
	r.Delete("/image", h.removeHandler)
	r.Get("/stats", h.statsHandler)
	r.Post("/purge", h.purgeHandler)
	r.Get("/ping", pingHandler)
	if metricsEnabled {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
	return r
}

// imageHandler performs a lookup-or-fetch for the url query parameter and
// responds with the encoded image bytes
func (h *Handler) imageHandler(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("url")
	if identifier == "" {
		http.Error(w, "url parameter required", http.StatusBadRequest)
		return
	}

	// each request is its own session; supersession applies to long-lived
	// loaders embedded in a client, not to one-shot HTTP requests
	l := loader.New(h.cache, h.coordinator, h.client, h.log)
	img, err := l.Load(r.Context(), identifier)
	if err != nil {
		switch {
		case errors.Is(err, loader.ErrCancelled):
			// client went away; nothing useful to write
			return
		case errors.Is(err, fetch.ErrDownloadFailed):
			http.Error(w, "download failed", http.StatusBadGateway)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "image/"+img.Format())
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Encoded())))
	w.Write(img.Encoded())
}

// removeHandler removes the url query parameter's entry from both tiers
func (h *Handler) removeHandler(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("url")
	if identifier == "" {
		http.Error(w, "url parameter required", http.StatusBadRequest)
		return
	}
	h.cache.Remove(identifier)
	w.WriteHeader(http.StatusNoContent)
}

// statsHandler reports the usage of both tiers and the in-flight fetch count
func (h *Handler) statsHandler(w http.ResponseWriter, _ *http.Request) {
	s := h.cache.Stats()
	resp := statsResponse{
		MemoryByteSize:    s.MemoryByteSize,
		MemoryEntryCount:  s.MemoryEntryCount,
		PersistByteSize:   s.PersistByteSize,
		PersistEntryCount: s.PersistEntryCount,
		InFlightFetches:   h.coordinator.InFlight(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type statsResponse struct {
	MemoryByteSize    int64 `json:"memory_byte_size"`
	MemoryEntryCount  int64 `json:"memory_entry_count"`
	PersistByteSize   int64 `json:"persist_byte_size"`
	PersistEntryCount int64 `json:"persist_entry_count"`
	InFlightFetches   int   `json:"inflight_fetches"`
}

// purgeHandler empties both tiers
func (h *Handler) purgeHandler(w http.ResponseWriter, _ *http.Request) {
	if err := h.cache.Clear(); err != nil {
		h.log.Error("purge failed", logging.Pairs{"detail": err.Error()})
		http.Error(w, "purge failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(runtime.ApplicationName + " " + runtime.ApplicationVersion + " pong"))
}

// observe is a middleware recording request counts and durations
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cw := &countingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(cw, r)
		status := strconv.Itoa(cw.status)
		metrics.FrontendRequestStatus.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.FrontendRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).
			Observe(time.Since(start).Seconds())
	})
}

type countingWriter struct {
	http.ResponseWriter
	status int
}

func (c *countingWriter) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}
