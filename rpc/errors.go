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

package rpc

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// ErrClientShutdown is returned when an operation is attempted while the client is shutting down
var ErrClientShutdown = errors.New("client is shutting down")

// ErrClientNotStarted is returned when an operation is attempted before the client is started
var ErrClientNotStarted = errors.New("client not started")

// ErrDisconnected is delivered to subscriptions when the underlying connection is lost. It
// marks the boundary between the old notification stream and the replacement one that starts
// after a successful reconnect
var ErrDisconnected = errors.New("connection lost, reconnecting")

// ErrRetriesExhausted is returned when the reconnection budget is used up. The client is no
// good after this and needs to be replaced
var ErrRetriesExhausted = errors.New(
	"connection retry budget exhausted, client needs restart",
)

// ErrSubscriptionOverflow is delivered when a subscription's notification queue exceeds its
// limit because the consumer isn't keeping up
var ErrSubscriptionOverflow = errors.New(
	"subscription notification queue overflow",
)

// errConnClosed signals internally that a send raced with connection teardown
var errConnClosed = errors.New("connection closed")

// Error is an error object returned by the server for a single call. These are surfaced
// verbatim and never retried
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e Error) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// ProtocolError represents a malformed message from the server. It's fatal to the affected
// subscription or call only, not to the connection
type ProtocolError struct {
	Reason string
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}
