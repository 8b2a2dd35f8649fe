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

package tracing

import (
	"context"
	"testing"
)

func TestRegisterStdout(t *testing.T) {
	flush, err := RegisterStdout(1)
	if err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	if flush == nil {
		t.Fatal("expected non-nil flusher")
	}

	_, span := Tracer().Start(context.Background(), "test-span")
	span.End()

	if err := flush(context.Background()); err != nil {
		t.Errorf("unexpected flush error: %v", err)
	}
}

func TestTracerWithoutProvider(t *testing.T) {
	// before any provider is registered the default no-op tracer is
	// returned, so instrumented paths never fail
	if Tracer() == nil {
		t.Error("expected non-nil tracer")
	}
}
