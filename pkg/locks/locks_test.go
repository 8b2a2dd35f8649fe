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

package locks

import (
	"sync"
	"testing"
)

func TestNamedLocker(t *testing.T) {
	locker := NewNamedLocker()

	const iterations = 1000
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < iterations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nl, err := locker.Acquire("test")
			if err != nil {
				t.Errorf("unexpected acquire error: %v", err)
				return
			}
			counter++
			nl.Release()
		}()
	}
	wg.Wait()

	if counter != iterations {
		t.Errorf("expected counter %d, got %d", iterations, counter)
	}
}

func TestAcquireEmptyName(t *testing.T) {
	locker := NewNamedLocker()
	if _, err := locker.Acquire(""); err == nil {
		t.Error("expected error for empty lock name")
	}
}

func TestIndependentNames(t *testing.T) {
	locker := NewNamedLocker()

	// a held lock on one name must not block another name
	a, err := locker.Acquire("a")
	if err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}
	b, err := locker.Acquire("b")
	if err != nil {
		t.Fatalf("unexpected acquire error: %v", err)
	}
	b.Release()
	a.Release()
}
