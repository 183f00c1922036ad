// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chainhead

import "errors"

// ErrNotPinned is returned for block-scoped requests whose hash is not in the
// session's pinned set. The check happens locally and nothing is sent to the
// server
var ErrNotPinned = errors.New("block is not pinned")

// ErrFollowStopped is returned when the follow session has ended. Pins and
// in-flight operations do not survive the session that created them
var ErrFollowStopped = errors.New("follow session stopped")

// ErrInaccessible is returned when the server could not fetch the data needed
// by an operation. The block stays pinned and the request may succeed if
// repeated
var ErrInaccessible = errors.New("operation data inaccessible")

// ErrLimitReached is returned when the server kept rejecting an operation for
// being at its concurrency limit after repeated attempts
var ErrLimitReached = errors.New("server operation limit reached")

// ErrEventOverflow is reported to event subscribers that fall too far behind
// the follow stream. The subscription is closed when this happens
var ErrEventOverflow = errors.New("event queue overflow")

// ErrRuntimeNotFollowed is returned for runtime queries on a session that was
// started without runtime reporting
var ErrRuntimeNotFollowed = errors.New("session does not report runtime information")

// ErrTransactionTimeout is returned when a submitted transaction does not
// reach a terminal status within the configured transaction timeout
var ErrTransactionTimeout = errors.New("timeout waiting for transaction finalization")

// OperationError is a failure reported by the server for a single operation.
// The block stays pinned and other operations are unaffected
type OperationError struct {
	Reason string
}

func (e OperationError) Error() string {
	return "operation error: " + e.Reason
}
