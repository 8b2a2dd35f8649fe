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

// Package media provides the decoded image handle cached and served by
// thumbcache. The handle is a narrow value type: dimensions, estimated
// memory cost, and the original encoded bytes for persistence.
package media

import (
	"bytes"
	"errors"
	"image"

	// register the decoders for the formats a media catalog serves
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ErrNotDecodable indicates the payload could not be decoded as an image
var ErrNotDecodable = errors.New("payload is not a decodable image")

// bytesPerPixel is the memory cost basis for a decoded pixel (RGBA)
const bytesPerPixel = 4

// Image is an immutable decoded image along with its original encoded bytes
type Image struct {
	pixels  image.Image
	encoded []byte
	format  string
}

// Decode fully decodes the provided encoded bytes into an Image. Decoding
// happens here, up front, so the first display of the image never pays a
// lazy-decode hitch.
func Decode(encoded []byte) (*Image, error) {
	if len(encoded) == 0 {
		return nil, ErrNotDecodable
	}
	px, format, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, ErrNotDecodable
	}
	return &Image{pixels: px, encoded: encoded, format: format}, nil
}

// Width returns the image width in pixels
func (i *Image) Width() int {
	return i.pixels.Bounds().Dx()
}

// Height returns the image height in pixels
func (i *Image) Height() int {
	return i.pixels.Bounds().Dy()
}

// Format returns the encoded format name (e.g., "jpeg")
func (i *Image) Format() string {
	return i.format
}

// Pixels returns the decoded pixel data
func (i *Image) Pixels() image.Image {
	return i.pixels
}

// Encoded returns the original encoded bytes
func (i *Image) Encoded() []byte {
	return i.encoded
}

// Size returns the estimated in-memory cost of the decoded pixels in bytes
// (pixel area x bytes per pixel), to assist with cache size management
func (i *Image) Size() int {
	return i.Width() * i.Height() * bytesPerPixel
}
