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

package rpcmock

import (
	"time"

	"github.com/blinklabs-io/gosubstrate/rpc"
)

// Conversation scripts the expected requests and server pushes for one client
// connection
type Conversation []ConversationEntry

// ConversationEntry is implemented by the conversation entry types understood by
// Server
type ConversationEntry interface {
	isConversationEntry()
}

// ConversationEntryRequest matches the next inbound request against Method (and
// Params, when non-nil) and replies with Result or Error. NoReply consumes the
// request and leaves it unanswered
type ConversationEntryRequest struct {
	Method  string
	Params  any
	Result  any
	Error   *rpc.Error
	NoReply bool
}

// ConversationEntryNotify pushes a subscription notification to the client.
// A non-zero Delay holds the notification back, which lets a script separate
// pushes whose relative timing matters
type ConversationEntryNotify struct {
	Method         string
	SubscriptionId string
	Result         any
	Delay          time.Duration
}

// ConversationEntryDrop abruptly severs the connection, without a websocket close
// handshake, so the client sees a failed transport
type ConversationEntryDrop struct{}

func (ConversationEntryRequest) isConversationEntry() {}

func (ConversationEntryNotify) isConversationEntry() {}

func (ConversationEntryDrop) isConversationEntry() {}
