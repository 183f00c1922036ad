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

package legacy

import (
	"fmt"
	"sync"

	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/rpc"
	json "github.com/goccy/go-json"
)

// HeaderMessage is one item from a header subscription. Exactly one of
// Header and Err is set. An Err of rpc.ErrDisconnected is a reconnect
// boundary, not a terminal failure: the subscription was re-established and
// headers continue afterward
type HeaderMessage struct {
	Header *chain.Header
	Err    error
}

// HeaderSubscription delivers decoded block headers from one of the header
// subscription methods. Notifications carry only the header; the block hash
// is recovered by hashing its encoded form
type HeaderSubscription struct {
	rpcSub   *rpc.Subscription
	msgChan  chan HeaderMessage
	stopChan chan struct{}
	onceStop sync.Once
}

func newHeaderSubscription(rpcSub *rpc.Subscription) *HeaderSubscription {
	s := &HeaderSubscription{
		rpcSub:   rpcSub,
		msgChan:  make(chan HeaderMessage),
		stopChan: make(chan struct{}),
	}
	go s.decodeLoop()
	return s
}

// Chan returns the channel headers are delivered on. It closes when the
// subscription ends
func (s *HeaderSubscription) Chan() <-chan HeaderMessage {
	return s.msgChan
}

// Unsubscribe ends the subscription and closes the delivery channel
func (s *HeaderSubscription) Unsubscribe() {
	s.onceStop.Do(func() {
		close(s.stopChan)
	})
	s.rpcSub.Unsubscribe()
}

func (s *HeaderSubscription) decodeLoop() {
	defer close(s.msgChan)
	for msg := range s.rpcSub.Chan() {
		var out HeaderMessage
		if msg.Err != nil {
			out.Err = msg.Err
		} else if err := json.Unmarshal(msg.Result, &out.Header); err != nil {
			out.Err = fmt.Errorf("decode header notification: %w", err)
		}
		select {
		case s.msgChan <- out:
		case <-s.stopChan:
			return
		}
	}
}

// RuntimeVersionMessage is one item from a runtime version subscription.
// Exactly one of Version and Err is set
type RuntimeVersionMessage struct {
	Version *chain.RuntimeVersion
	Err     error
}

// RuntimeVersionSubscription delivers decoded runtime versions as the node
// reports upgrades
type RuntimeVersionSubscription struct {
	rpcSub   *rpc.Subscription
	msgChan  chan RuntimeVersionMessage
	stopChan chan struct{}
	onceStop sync.Once
}

func newRuntimeVersionSubscription(
	rpcSub *rpc.Subscription,
) *RuntimeVersionSubscription {
	s := &RuntimeVersionSubscription{
		rpcSub:   rpcSub,
		msgChan:  make(chan RuntimeVersionMessage),
		stopChan: make(chan struct{}),
	}
	go s.decodeLoop()
	return s
}

func (s *RuntimeVersionSubscription) Chan() <-chan RuntimeVersionMessage {
	return s.msgChan
}

func (s *RuntimeVersionSubscription) Unsubscribe() {
	s.onceStop.Do(func() {
		close(s.stopChan)
	})
	s.rpcSub.Unsubscribe()
}

func (s *RuntimeVersionSubscription) decodeLoop() {
	defer close(s.msgChan)
	for msg := range s.rpcSub.Chan() {
		var out RuntimeVersionMessage
		if msg.Err != nil {
			out.Err = msg.Err
		} else if err := json.Unmarshal(msg.Result, &out.Version); err != nil {
			out.Err = fmt.Errorf(
				"decode runtime version notification: %w",
				err,
			)
		}
		select {
		case s.msgChan <- out:
		case <-s.stopChan:
			return
		}
	}
}

// TransactionStatusMessage is one item from an extrinsic watch. Exactly one
// of Status and Err is set
type TransactionStatusMessage struct {
	Status TransactionStatus
	Err    error
}

// TransactionStatusSubscription delivers decoded pool statuses for one
// watched extrinsic. The node ends the stream itself after a terminal status
type TransactionStatusSubscription struct {
	rpcSub   *rpc.Subscription
	msgChan  chan TransactionStatusMessage
	stopChan chan struct{}
	onceStop sync.Once
}

func newTransactionStatusSubscription(
	rpcSub *rpc.Subscription,
) *TransactionStatusSubscription {
	s := &TransactionStatusSubscription{
		rpcSub:   rpcSub,
		msgChan:  make(chan TransactionStatusMessage),
		stopChan: make(chan struct{}),
	}
	go s.decodeLoop()
	return s
}

func (s *TransactionStatusSubscription) Chan() <-chan TransactionStatusMessage {
	return s.msgChan
}

func (s *TransactionStatusSubscription) Unsubscribe() {
	s.onceStop.Do(func() {
		close(s.stopChan)
	})
	s.rpcSub.Unsubscribe()
}

func (s *TransactionStatusSubscription) decodeLoop() {
	defer close(s.msgChan)
	for msg := range s.rpcSub.Chan() {
		var out TransactionStatusMessage
		if msg.Err != nil {
			out.Err = msg.Err
		} else if err := json.Unmarshal(msg.Result, &out.Status); err != nil {
			out.Err = fmt.Errorf(
				"decode transaction status notification: %w",
				err,
			)
		}
		select {
		case s.msgChan <- out:
		case <-s.stopChan:
			return
		}
	}
}
