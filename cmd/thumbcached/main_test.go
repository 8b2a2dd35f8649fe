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

package main

import (
	"strings"
	"testing"
)

func TestRunPrintVersion(t *testing.T) {
	if err := run([]string{"-version"}); err != nil {
		t.Errorf("expected version print to exit cleanly, got %v", err)
	}
}

func TestRunBadConfig(t *testing.T) {
	if err := run([]string{"-config", "/nonexistent/thumbcache.yaml"}); err == nil {
		t.Error("expected error for missing config file")
	}
	if err := run([]string{"-provider", "redis"}); err == nil {
		t.Error("expected error for invalid provider")
	}
}

func TestUsageText(t *testing.T) {
	if !strings.Contains(usageText, applicationName) {
		t.Error("expected usage text to name the application")
	}
	for _, f := range []string{"-config", "-log-level", "-port", "-provider", "-version"} {
		if !strings.Contains(usageText, f) {
			t.Errorf("expected usage text to document %s", f)
		}
	}
}
