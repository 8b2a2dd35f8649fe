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

// Package loader orchestrates a single caller's image request: it consults
// the two-tier cache, delegates misses to the fetch coordinator, stores
// successful results back, and keeps each owner's latest request the only
// one whose outcome is published.
package loader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lanternmedia/thumbcache/pkg/cache/key"
	"github.com/lanternmedia/thumbcache/pkg/cache/tiered"
	"github.com/lanternmedia/thumbcache/pkg/fetch"
	"github.com/lanternmedia/thumbcache/pkg/media"
	"github.com/lanternmedia/thumbcache/pkg/observability/logging"
	"github.com/lanternmedia/thumbcache/pkg/observability/tracing"
)

// ErrCancelled indicates the session was superseded or cancelled before its
// outcome could be published
var ErrCancelled = errors.New("load cancelled")

// Loader owns a sequence of load sessions for one caller (e.g., one
// on-screen image slot). Starting a new load supersedes and cancels the
// previous one; cancellation is local and never stops a shared fetch that
// other loaders are waiting on.
type Loader struct {
	cache       *tiered.Cache
	coordinator *fetch.Coordinator
	client      *http.Client
	log         *logging.Logger

	mtx    sync.Mutex
	cancel context.CancelFunc
}

// New returns a new Loader. A nil httpClient uses http.DefaultClient.
func New(c *tiered.Cache, co *fetch.Coordinator, httpClient *http.Client, logger *logging.Logger) *Loader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = logging.ConsoleLogger("info")
	}
	return &Loader{cache: c, coordinator: co, client: httpClient, log: logger}
}

// Load loads the image for the provided identifier, cancelling any prior
// session owned by this Loader. An empty identifier settles immediately
// with neither an image nor an error. A cache hit returns synchronously
// with no network activity; a miss is delegated to the fetch coordinator
// and the result is stored back into both tiers. When the session is
// cancelled or superseded before the fetch resolves, Load returns
// ErrCancelled and the outcome is discarded, even though the shared fetch
// may continue for other waiters.
func (l *Loader) Load(ctx context.Context, identifier string) (*media.Image, error) {
	l.mtx.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	sctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mtx.Unlock()

	if identifier == "" {
		return nil, nil
	}

	if img, err := l.cache.Lookup(identifier); err == nil {
		return img, nil
	}

	img, err := l.coordinator.Fetch(sctx, key.Checksum(identifier),
		func(fctx context.Context) (*media.Image, error) {
			return l.fetchOrigin(fctx, identifier)
		})

	if sctx.Err() != nil {
		// superseded or cancelled: the terminal state is never published
		return nil, ErrCancelled
	}
	if err != nil {
		l.log.Debug("load failed", logging.Pairs{"identifier": identifier, "detail": err.Error()})
		return nil, err
	}

	l.cache.Store(identifier, img)
	return img, nil
}

// Cancel marks the current session cancelled. It has no effect on in-flight
// shared fetches with other waiters, or on persistent writes already queued.
func (l *Loader) Cancel() {
	l.mtx.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.mtx.Unlock()
}

// fetchOrigin retrieves and fully decodes the image at the identifier URL.
// It runs inside the coordinator's shared flight, off the caller's path.
func (l *Loader) fetchOrigin(ctx context.Context, identifier string) (*media.Image, error) {
	ctx, span := tracing.Tracer().Start(ctx, "fetchOrigin")
	defer span.End()
	span.SetAttributes(attribute.String("identifier", identifier))

	u, err := url.Parse(identifier)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fetch.ErrInvalidIdentifier
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, identifier, nil)
	if err != nil {
		return nil, fetch.ErrInvalidIdentifier
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &fetch.BadStatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	img, err := media.Decode(body)
	if err != nil {
		return nil, err
	}
	l.log.Debug("origin fetch complete", logging.Pairs{
		"identifier": identifier, "bytes": strconv.Itoa(len(body)),
		"dimensions": strconv.Itoa(img.Width()) + "x" + strconv.Itoa(img.Height())})
	return img, nil
}
