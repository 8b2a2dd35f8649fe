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

package media

import (
	"bytes"
	"testing"

	"github.com/lanternmedia/thumbcache/pkg/testutil"
)

func TestDecode(t *testing.T) {
	encoded := testutil.EncodedImage(8, 6)
	img, err := Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	if img.Width() != 8 || img.Height() != 6 {
		t.Errorf("expected 8x6 image, got %dx%d", img.Width(), img.Height())
	}
	if img.Format() != "png" {
		t.Errorf("expected format png, got %s", img.Format())
	}
	if img.Pixels() == nil {
		t.Error("expected decoded pixels")
	}
	if !bytes.Equal(img.Encoded(), encoded) {
		t.Error("expected Encoded to return the original payload")
	}
}

func TestDecodeNotDecodable(t *testing.T) {
	if _, err := Decode([]byte("<html>not found</html>")); err != ErrNotDecodable {
		t.Errorf("expected error %v, got %v", ErrNotDecodable, err)
	}
	if _, err := Decode(nil); err != ErrNotDecodable {
		t.Errorf("expected error %v, got %v", ErrNotDecodable, err)
	}
}

func TestSize(t *testing.T) {
	img, err := Decode(testutil.EncodedImage(10, 10))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	// accounted cost is the decoded pixel footprint, not the encoded length
	if img.Size() != 10*10*4 {
		t.Errorf("expected size 400, got %d", img.Size())
	}
}
