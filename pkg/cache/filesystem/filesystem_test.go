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

package filesystem

import (
	"bytes"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/lanternmedia/thumbcache/pkg/cache"
	"github.com/lanternmedia/thumbcache/pkg/cache/key"
	"github.com/lanternmedia/thumbcache/pkg/observability/logging"
	"github.com/lanternmedia/thumbcache/pkg/observability/metrics"
)

func init() {
	metrics.Init()
}

func newTestCache(t *testing.T, o Options) *Cache {
	if o.CachePath == "" {
		o.CachePath = t.TempDir()
	}
	c := New("default", o, logging.ConsoleLogger("error"))
	if err := c.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	return c
}

func TestConnectUnwriteablePath(t *testing.T) {
	c := New("default", Options{CachePath: "/proc/thumbcache-test"},
		logging.ConsoleLogger("error"))
	if err := c.Connect(); err == nil {
		t.Error("expected error for unwriteable cache path")
		c.Close()
	}
}

func TestStoreRetrieve(t *testing.T) {
	c := newTestCache(t, Options{})
	defer c.Close()

	data := []byte("encoded image bytes")
	if err := c.storeSync("a", data); err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}

	got, err := c.Retrieve("a")
	if err != nil {
		t.Fatalf("unexpected retrieve error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("expected %q got %q", data, got)
	}

	if _, err := c.Retrieve("missing"); err != cache.ErrKNF {
		t.Errorf("expected error %v, got %v", cache.ErrKNF, err)
	}
}

func TestStoreAsync(t *testing.T) {
	c := newTestCache(t, Options{})

	if err := c.Store("a", []byte("payload")); err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	if err := c.Store("", nil); err == nil {
		t.Error("expected error for empty cache key")
	}

	// Close drains the write queue, after which the entry is durable
	c.Close()
	got, err := c.Retrieve("a")
	if err != nil {
		t.Fatalf("unexpected retrieve error: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("expected payload, got %q", got)
	}
}

func TestRemove(t *testing.T) {
	c := newTestCache(t, Options{})
	defer c.Close()

	c.storeSync("a", []byte("x"))
	c.Remove("a")
	if _, err := c.Retrieve("a"); err != cache.ErrKNF {
		t.Errorf("expected error %v, got %v", cache.ErrKNF, err)
	}
}

func TestBulkRemove(t *testing.T) {
	c := newTestCache(t, Options{})
	defer c.Close()

	c.storeSync("a", []byte("x"))
	c.storeSync("b", []byte("y"))
	c.BulkRemove([]string{"a", "b"})
	if _, objectCount := c.Usage(); objectCount != 0 {
		t.Errorf("expected 0 objects, got %d", objectCount)
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, Options{})
	defer c.Close()

	c.storeSync("a", []byte("x"))
	c.storeSync("b", []byte("y"))
	if err := c.Clear(); err != nil {
		t.Fatalf("unexpected clear error: %v", err)
	}
	byteSize, objectCount := c.Usage()
	if byteSize != 0 || objectCount != 0 {
		t.Errorf("expected empty cache, got %d bytes %d objects", byteSize, objectCount)
	}
}

func TestUsage(t *testing.T) {
	c := newTestCache(t, Options{})
	defer c.Close()

	c.storeSync("a", make([]byte, 10))
	c.storeSync("b", make([]byte, 30))
	byteSize, objectCount := c.Usage()
	if byteSize != 40 || objectCount != 2 {
		t.Errorf("expected 40 bytes 2 objects, got %d bytes %d objects", byteSize, objectCount)
	}

	// files not produced by the tier are excluded
	os.WriteFile(c.Options.CachePath+"/stray.tmp", []byte("zz"), 0644)
	if _, objectCount := c.Usage(); objectCount != 2 {
		t.Errorf("expected stray file to be excluded, got %d objects", objectCount)
	}
}

func TestSweepBySize(t *testing.T) {
	c := newTestCache(t, Options{MaxSizeBytes: 100})
	defer c.Close()

	// ten 20-byte entries with strictly increasing mtimes
	now := time.Now()
	for i := 0; i < 10; i++ {
		k := fmt.Sprintf("entry%d", i)
		c.storeSync(k, make([]byte, 20))
		mt := now.Add(time.Duration(i-10) * time.Minute)
		os.Chtimes(key.Filename(c.Options.CachePath, k), mt, mt)
	}

	c.SweepBySize()

	// 200 bytes swept to at most 80% of the 100 byte budget
	byteSize, _ := c.Usage()
	if byteSize > 80 {
		t.Errorf("expected usage at most 80 bytes after sweep, got %d", byteSize)
	}

	// the oldest-modified entries went first, the newest survive
	if _, err := c.Retrieve("entry0"); err != cache.ErrKNF {
		t.Errorf("expected oldest entry swept, got %v", err)
	}
	if _, err := c.Retrieve("entry9"); err != nil {
		t.Errorf("expected newest entry retained, got %v", err)
	}
}

func TestSweepBySizeUnderBudget(t *testing.T) {
	c := newTestCache(t, Options{MaxSizeBytes: 100})
	defer c.Close()

	c.storeSync("a", make([]byte, 50))
	c.SweepBySize()
	if _, objectCount := c.Usage(); objectCount != 1 {
		t.Errorf("expected entry retained under budget, got %d objects", objectCount)
	}
}

func TestSweepByAge(t *testing.T) {
	c := newTestCache(t, Options{})
	defer c.Close()

	c.storeSync("old", []byte("x"))
	c.storeSync("new", []byte("y"))
	stale := time.Now().Add(-48 * time.Hour)
	os.Chtimes(key.Filename(c.Options.CachePath, "old"), stale, stale)

	c.SweepByAge(24 * time.Hour)

	if _, err := c.Retrieve("old"); err != cache.ErrKNF {
		t.Errorf("expected stale entry swept, got %v", err)
	}
	if _, err := c.Retrieve("new"); err != nil {
		t.Errorf("expected fresh entry retained, got %v", err)
	}
}

func TestConnectSweepsByAge(t *testing.T) {
	dir := t.TempDir()

	seed := New("default", Options{CachePath: dir}, logging.ConsoleLogger("error"))
	if err := seed.Connect(); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	seed.storeSync("stale", []byte("x"))
	seed.Close()
	old := time.Now().Add(-48 * time.Hour)
	os.Chtimes(key.Filename(dir, "stale"), old, old)

	c := newTestCache(t, Options{CachePath: dir, MaxAge: 24 * time.Hour})
	defer c.Close()
	if _, err := c.Retrieve("stale"); err != cache.ErrKNF {
		t.Errorf("expected stale entry swept at startup, got %v", err)
	}
}
