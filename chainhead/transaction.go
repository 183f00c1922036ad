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

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/rpc"
	json "github.com/goccy/go-json"
)

const (
	TransactionEventTypeValidated              = "validated"
	TransactionEventTypeBroadcasted            = "broadcasted"
	TransactionEventTypeBestChainBlockIncluded = "bestChainBlockIncluded"
	TransactionEventTypeFinalized              = "finalized"
	TransactionEventTypeError                  = "error"
	TransactionEventTypeInvalid                = "invalid"
	TransactionEventTypeDropped                = "dropped"
)

// TransactionBlock identifies where in a block a transaction landed. The
// server reports the index as a decimal string since it may exceed what a
// JSON number can carry
type TransactionBlock struct {
	Hash  chain.Hash `json:"hash"`
	Index uint64     `json:"index"`
}

func (t *TransactionBlock) UnmarshalJSON(data []byte) error {
	var tmpBlock struct {
		Hash  chain.Hash      `json:"hash"`
		Index json.RawMessage `json:"index"`
	}
	if err := json.Unmarshal(data, &tmpBlock); err != nil {
		return err
	}
	index, err := strconv.ParseUint(
		strings.Trim(string(tmpBlock.Index), `"`),
		10,
		64,
	)
	if err != nil {
		return fmt.Errorf("transaction block index: %w", err)
	}
	t.Hash = tmpBlock.Hash
	t.Index = index
	return nil
}

// TransactionWatchEvent is one update in a submitted transaction's
// lifecycle. Block is set for bestChainBlockIncluded (nil there means the
// transaction left the best chain) and finalized; Error carries the server's
// detail for error, invalid, and dropped
type TransactionWatchEvent struct {
	Event string            `json:"event"`
	Block *TransactionBlock `json:"block,omitempty"`
	Error string            `json:"error,omitempty"`
}

// Terminal reports whether no further updates follow this event
func (e *TransactionWatchEvent) Terminal() bool {
	switch e.Event {
	case TransactionEventTypeFinalized,
		TransactionEventTypeError,
		TransactionEventTypeInvalid,
		TransactionEventTypeDropped:
		return true
	}
	return false
}

// SubmitTransaction submits an extrinsic and reports its lifecycle through
// statusFunc until a terminal event. The finalized event is held back until
// the session has pinned the block it names, so a caller acting on that
// event can immediately query the block. A non-nil error from statusFunc
// abandons the watch
func (s *Session) SubmitTransaction(
	ctx context.Context,
	extrinsic chain.Bytes,
	statusFunc func(TransactionWatchEvent) error,
) error {
	// Watch follow events before submitting so the block the transaction
	// finalizes in cannot slip past unseen
	watcher, err := s.Watch(ctx)
	if err != nil {
		return err
	}
	defer watcher.Cancel()
	s.logger.Debug(
		"submitting transaction",
		"component", "chainhead",
		"subscription_id", s.followId,
		"tx_hash", chain.Blake2b256Hash(extrinsic),
	)
	sub, err := s.client.rpcClient.Subscribe(
		ctx,
		MethodSubmitAndWatch,
		MethodUnwatch,
		[]any{extrinsic},
		rpc.WithResubscribe(false),
	)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()
	timer := time.NewTimer(s.config.TransactionTimeout)
	defer timer.Stop()
	finalizedSeen := map[chain.Hash]struct{}{}
	var heldFinalized *TransactionWatchEvent
	for {
		if heldFinalized != nil {
			if _, ok := finalizedSeen[heldFinalized.Block.Hash]; ok {
				return statusFunc(*heldFinalized)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrTransactionTimeout
		case err := <-watcher.Errors():
			return err
		case event, ok := <-watcher.Chan():
			if !ok {
				return ErrFollowStopped
			}
			switch ev := event.(type) {
			case *EventInitialized:
				for _, blockHash := range ev.FinalizedBlockHashes {
					finalizedSeen[blockHash] = struct{}{}
				}
			case *EventFinalized:
				for _, blockHash := range ev.FinalizedBlockHashes {
					finalizedSeen[blockHash] = struct{}{}
				}
			case *EventStop:
				return ErrFollowStopped
			}
		case msg, ok := <-sub.Chan():
			if !ok {
				return errors.New(
					"transaction watch ended before terminal status",
				)
			}
			if msg.Err != nil {
				return msg.Err
			}
			var event TransactionWatchEvent
			if err := json.Unmarshal(msg.Result, &event); err != nil {
				return rpc.ProtocolError{
					Reason: fmt.Sprintf(
						"malformed transaction status: %s",
						err,
					),
				}
			}
			switch event.Event {
			case TransactionEventTypeFinalized:
				if event.Block == nil {
					return rpc.ProtocolError{
						Reason: "finalized transaction status without block",
					}
				}
				heldFinalized = &event
			case TransactionEventTypeError,
				TransactionEventTypeInvalid,
				TransactionEventTypeDropped:
				return statusFunc(event)
			case TransactionEventTypeValidated,
				TransactionEventTypeBroadcasted,
				TransactionEventTypeBestChainBlockIncluded:
				if err := statusFunc(event); err != nil {
					return err
				}
			default:
				return rpc.ProtocolError{
					Reason: fmt.Sprintf(
						"unknown transaction status: %s",
						event.Event,
					),
				}
			}
		}
	}
}
