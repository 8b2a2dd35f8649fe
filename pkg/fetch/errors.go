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

package fetch

import (
	"errors"
	"fmt"
)

// ErrDownloadFailed is the generic failure delivered to every waiter of a
// failed shared fetch; the underlying cause is wrapped where known
var ErrDownloadFailed = errors.New("download failed")

// ErrInvalidIdentifier indicates the resource identifier is not a usable
// absolute URL
var ErrInvalidIdentifier = errors.New("invalid resource identifier")

// BadStatusError indicates the origin responded with a non-2xx status
type BadStatusError struct {
	Code int
}

func (e *BadStatusError) Error() string {
	return fmt.Sprintf("origin responded with status %d", e.Code)
}
