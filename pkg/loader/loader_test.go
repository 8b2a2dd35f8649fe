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

package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lanternmedia/thumbcache/pkg/cache/filesystem"
	"github.com/lanternmedia/thumbcache/pkg/cache/index"
	"github.com/lanternmedia/thumbcache/pkg/cache/memory"
	"github.com/lanternmedia/thumbcache/pkg/cache/tiered"
	"github.com/lanternmedia/thumbcache/pkg/fetch"
	"github.com/lanternmedia/thumbcache/pkg/media"
	"github.com/lanternmedia/thumbcache/pkg/observability/logging"
	"github.com/lanternmedia/thumbcache/pkg/observability/metrics"
	"github.com/lanternmedia/thumbcache/pkg/testutil"
)

func init() {
	metrics.Init()
}

func newTestCache(t *testing.T) *tiered.Cache {
	logger := logging.ConsoleLogger("error")
	mem := memory.New("default", index.Options{MaxSizeBytes: 1 << 20}, logger)
	disk := filesystem.New("default", filesystem.Options{CachePath: t.TempDir()}, logger)
	c := tiered.New("default", mem, disk, logger)
	if err := c.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	return c
}

func newTestLoader(t *testing.T) *Loader {
	return New(newTestCache(t), fetch.NewCoordinator(logging.ConsoleLogger("error")),
		nil, logging.ConsoleLogger("error"))
}

// newOrigin returns a test origin serving a PNG and a counter of requests
// it has answered
func newOrigin(t *testing.T) (*httptest.Server, *int32) {
	var hits int32
	encoded := testutil.EncodedImage(12, 12)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(encoded)
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

func TestLoad(t *testing.T) {
	ts, hits := newOrigin(t)
	l := newTestLoader(t)

	img, err := l.Load(context.Background(), ts.URL+"/a.png")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if img.Width() != 12 || img.Height() != 12 {
		t.Errorf("expected 12x12 image, got %dx%d", img.Width(), img.Height())
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("expected 1 origin request, got %d", n)
	}
}

func TestLoadCacheHitSkipsOrigin(t *testing.T) {
	ts, hits := newOrigin(t)
	l := newTestLoader(t)
	id := ts.URL + "/a.png"

	first, err := l.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	second, err := l.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if second != first {
		t.Error("expected the cached image by reference")
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("expected 1 origin request total, got %d", n)
	}
}

func TestLoadEmptyIdentifier(t *testing.T) {
	l := newTestLoader(t)
	img, err := l.Load(context.Background(), "")
	if img != nil || err != nil {
		t.Errorf("expected empty identifier to settle with neither image nor error, got %v %v", img, err)
	}
}

func TestLoadInvalidIdentifier(t *testing.T) {
	l := newTestLoader(t)
	_, err := l.Load(context.Background(), "not a url")
	if !errors.Is(err, fetch.ErrDownloadFailed) {
		t.Errorf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestLoadBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	t.Cleanup(ts.Close)

	l := newTestLoader(t)
	_, err := l.Load(context.Background(), ts.URL+"/missing.png")
	if !errors.Is(err, fetch.ErrDownloadFailed) {
		t.Errorf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestLoadUndecodablePayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>surprise</html>"))
	}))
	t.Cleanup(ts.Close)

	l := newTestLoader(t)
	_, err := l.Load(context.Background(), ts.URL+"/a.png")
	if !errors.Is(err, fetch.ErrDownloadFailed) {
		t.Errorf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestLoadFailureIsNotCached(t *testing.T) {
	var hits int32
	encoded := testutil.EncodedImage(12, 12)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// fail the first request, succeed afterwards
		if atomic.AddInt32(&hits, 1) == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.Write(encoded)
	}))
	t.Cleanup(ts.Close)

	l := newTestLoader(t)
	id := ts.URL + "/a.png"

	if _, err := l.Load(context.Background(), id); !errors.Is(err, fetch.ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
	img, err := l.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected load error after transient failure: %v", err)
	}
	if img == nil {
		t.Fatal("expected an image after transient failure")
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("expected 2 origin requests, got %d", n)
	}
}

func TestCancel(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Write(testutil.EncodedImage(12, 12))
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	l := newTestLoader(t)
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), ts.URL+"/a.png")
		errCh <- err
	}()

	// wait for the session to reach the coordinator before cancelling
	for l.coordinator.InFlight() != 1 {
		time.Sleep(time.Millisecond)
	}
	l.Cancel()

	if err := <-errCh; !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestLoadSupersedesPriorSession(t *testing.T) {
	release := make(chan struct{})
	encoded := testutil.EncodedImage(12, 12)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow.png" {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		w.Write(encoded)
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	l := newTestLoader(t)
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), ts.URL+"/slow.png")
		errCh <- err
	}()
	for l.coordinator.InFlight() != 1 {
		time.Sleep(time.Millisecond)
	}

	// a new load on the same loader supersedes the blocked one
	img, err := l.Load(context.Background(), ts.URL+"/fast.png")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if img == nil {
		t.Fatal("expected an image from the superseding load")
	}
	if err := <-errCh; !errors.Is(err, ErrCancelled) {
		t.Errorf("expected superseded load to return ErrCancelled, got %v", err)
	}
}

func TestCancellationIsolation(t *testing.T) {
	release := make(chan struct{})
	encoded := testutil.EncodedImage(12, 12)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Write(encoded)
	}))
	t.Cleanup(ts.Close)

	// two loaders share a cache and coordinator, as two screen slots would
	c := newTestCache(t)
	co := fetch.NewCoordinator(logging.ConsoleLogger("error"))
	logger := logging.ConsoleLogger("error")
	la := New(c, co, nil, logger)
	lb := New(c, co, nil, logger)
	id := ts.URL + "/shared.png"

	errA := make(chan error, 1)
	go func() {
		_, err := la.Load(context.Background(), id)
		errA <- err
	}()
	for co.InFlight() != 1 {
		time.Sleep(time.Millisecond)
	}

	resB := make(chan *media.Image, 1)
	go func() {
		img, err := lb.Load(context.Background(), id)
		if err != nil {
			t.Errorf("unexpected load error: %v", err)
		}
		resB <- img
	}()
	// give loader B time to join the shared flight
	time.Sleep(100 * time.Millisecond)

	// loader A walks away; loader B still depends on the shared fetch
	la.Cancel()
	if err := <-errA; !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}

	close(release)
	if img := <-resB; img == nil {
		t.Error("expected the remaining loader to receive the image")
	}
}
