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

// Package fetch collapses concurrent fetch requests for the same cache key
// into a single shared operation: at most one fetch per key is in flight at
// any time, and every concurrent caller observes that fetch's outcome.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lanternmedia/thumbcache/pkg/media"
	"github.com/lanternmedia/thumbcache/pkg/observability/logging"
	"github.com/lanternmedia/thumbcache/pkg/observability/metrics"
)

// FetchFunc performs the actual retrieval and decode of a resource. The
// provided context belongs to the shared flight, not to any one caller.
type FetchFunc func(ctx context.Context) (*media.Image, error)

// Coordinator deduplicates concurrent fetches by cache key. Outcomes,
// including failures, are never retained: the registry entry is removed the
// moment a flight completes, so the next caller always starts fresh.
type Coordinator struct {
	mtx      sync.Mutex
	inflight map[string]*flight
	log      *logging.Logger
}

// flight is one shared in-flight fetch and the state its waiters observe
type flight struct {
	done   chan struct{}
	img    *media.Image
	err    error
	refs   int
	cancel context.CancelFunc
}

// NewCoordinator returns a new fetch Coordinator
func NewCoordinator(logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.ConsoleLogger("info")
	}
	return &Coordinator{
		inflight: make(map[string]*flight),
		log:      logger,
	}
}

// Fetch returns the image for the provided key, invoking fetchFn at most
// once per key system-wide regardless of how many callers arrive
// concurrently. A caller whose ctx is cancelled stops waiting without
// affecting the shared fetch unless it was the last waiter, in which case
// the shared fetch is cancelled too. All waiters of a failed fetch receive
// ErrDownloadFailed.
func (c *Coordinator) Fetch(ctx context.Context, cacheKey string, fetchFn FetchFunc) (*media.Image, error) {
	c.mtx.Lock()
	f, ok := c.inflight[cacheKey]
	if ok {
		f.refs++
		c.mtx.Unlock()
		metrics.FetchCollapsedRequests.WithLabelValues("joined").Inc()
		c.log.Debug("fetch collapsed into pending flight", logging.Pairs{"key": cacheKey})
	} else {
		// the flight runs on its own context so one caller's cancellation
		// cannot kill a fetch other callers depend on
		fctx, cancel := context.WithCancel(context.Background())
		f = &flight{done: make(chan struct{}), refs: 1, cancel: cancel}
		c.inflight[cacheKey] = f
		c.mtx.Unlock()
		go c.run(fctx, cacheKey, f, fetchFn)
	}

	select {
	case <-f.done:
		if f.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, f.err)
		}
		return f.img, nil
	case <-ctx.Done():
		c.abandon(cacheKey, f)
		return nil, ctx.Err()
	}
}

// run executes the shared fetch and publishes its outcome. The registry
// entry is removed unconditionally, success or failure, before waiters are
// released.
func (c *Coordinator) run(fctx context.Context, cacheKey string, f *flight, fetchFn FetchFunc) {
	start := time.Now()
	f.img, f.err = fetchFn(fctx)
	f.cancel()

	c.mtx.Lock()
	delete(c.inflight, cacheKey)
	c.mtx.Unlock()

	status := "success"
	if f.err != nil {
		status = "failure"
		c.log.Debug("shared fetch failed", logging.Pairs{"key": cacheKey, "detail": f.err.Error()})
	}
	metrics.FetchRequestStatus.WithLabelValues(status).Inc()
	metrics.FetchRequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	close(f.done)
}

// abandon releases one waiter's interest in a flight; the shared fetch is
// cancelled only when no waiters remain
func (c *Coordinator) abandon(cacheKey string, f *flight) {
	c.mtx.Lock()
	f.refs--
	last := f.refs == 0
	c.mtx.Unlock()
	if last {
		metrics.FetchCollapsedRequests.WithLabelValues("abandoned").Inc()
		f.cancel()
	}
}

// InFlight returns the number of fetches currently pending
func (c *Coordinator) InFlight() int {
	c.mtx.Lock()
	n := len(c.inflight)
	c.mtx.Unlock()
	return n
}
