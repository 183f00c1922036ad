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
	"fmt"
	"time"

	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/rpc"
	"github.com/jpillora/backoff"
)

// Body fetches the extrinsics of a pinned block. Fails with ErrNotPinned
// without contacting the server when the hash is not pinned
func (s *Session) Body(
	ctx context.Context,
	blockHash chain.Hash,
) ([]chain.Bytes, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()
	handle, err := s.attachOperation(ctx, blockHash)
	if err != nil {
		return nil, err
	}
	defer s.detachOperation(handle)
	resp, err := s.startOperation(
		ctx,
		MethodBody,
		[]any{s.followId, blockHash},
	)
	if err != nil {
		return nil, err
	}
	s.claimOperation(handle, resp.OperationId)
	for {
		select {
		case <-ctx.Done():
			s.stopOperation(resp.OperationId)
			return nil, ctx.Err()
		case err := <-handle.errorChan:
			return nil, err
		case event := <-handle.eventChan:
			switch ev := event.(type) {
			case *EventOperationBodyDone:
				return ev.Value, nil
			case *EventOperationError:
				return nil, OperationError{Reason: ev.Error}
			case *EventOperationInaccessible:
				return nil, ErrInaccessible
			}
		}
	}
}

// Call executes a runtime function against a pinned block and returns its
// raw output
func (s *Session) Call(
	ctx context.Context,
	blockHash chain.Hash,
	function string,
	callParams chain.Bytes,
) (chain.Bytes, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()
	handle, err := s.attachOperation(ctx, blockHash)
	if err != nil {
		return nil, err
	}
	defer s.detachOperation(handle)
	resp, err := s.startOperation(
		ctx,
		MethodCall,
		[]any{s.followId, blockHash, function, callParams},
	)
	if err != nil {
		return nil, err
	}
	s.claimOperation(handle, resp.OperationId)
	for {
		select {
		case <-ctx.Done():
			s.stopOperation(resp.OperationId)
			return nil, ctx.Err()
		case err := <-handle.errorChan:
			return nil, err
		case event := <-handle.eventChan:
			switch ev := event.(type) {
			case *EventOperationCallDone:
				return ev.Output, nil
			case *EventOperationError:
				return nil, OperationError{Reason: ev.Error}
			case *EventOperationInaccessible:
				return nil, ErrInaccessible
			}
		}
	}
}

// Storage runs a storage operation against a pinned block, handing each
// batch of results to itemsFunc as it arrives. When the server pauses the
// operation it is resumed immediately. A non-nil error from itemsFunc stops
// the operation early and is returned to the caller
func (s *Session) Storage(
	ctx context.Context,
	blockHash chain.Hash,
	queries []StorageQuery,
	itemsFunc func([]StorageResultItem) error,
) error {
	// No default deadline here; an iteration over a large key space is
	// paced by the server and legitimately open-ended
	handle, err := s.attachOperation(ctx, blockHash)
	if err != nil {
		return err
	}
	defer s.detachOperation(handle)
	resp, err := s.startOperation(
		ctx,
		MethodStorage,
		[]any{s.followId, blockHash, queries, nil},
	)
	if err != nil {
		return err
	}
	if resp.DiscardedItems > 0 {
		s.logger.Debug(
			"storage operation discarded items",
			"component", "chainhead",
			"subscription_id", s.followId,
			"operation_id", resp.OperationId,
			"discarded", resp.DiscardedItems,
		)
	}
	s.claimOperation(handle, resp.OperationId)
	for {
		select {
		case <-ctx.Done():
			s.stopOperation(resp.OperationId)
			return ctx.Err()
		case err := <-handle.errorChan:
			return err
		case event := <-handle.eventChan:
			switch ev := event.(type) {
			case *EventOperationStorageItems:
				if err := itemsFunc(ev.Items); err != nil {
					s.stopOperation(resp.OperationId)
					return err
				}
			case *EventOperationWaitingForContinue:
				// Resume right away; a paused operation occupies server
				// resources until continued or stopped
				err := s.client.rpcClient.Call(
					ctx,
					MethodContinue,
					[]any{s.followId, resp.OperationId},
					nil,
				)
				if err != nil {
					s.stopOperation(resp.OperationId)
					return err
				}
			case *EventOperationStorageDone:
				return nil
			case *EventOperationError:
				return OperationError{Reason: ev.Error}
			case *EventOperationInaccessible:
				return ErrInaccessible
			}
		}
	}
}

// StorageValue fetches a single storage value from a pinned block. A nil
// result with nil error means the key has no value at that block
func (s *Session) StorageValue(
	ctx context.Context,
	blockHash chain.Hash,
	key chain.Bytes,
) (chain.Bytes, error) {
	var value chain.Bytes
	err := s.Storage(
		ctx,
		blockHash,
		[]StorageQuery{{Key: key, Type: StorageQueryTypeValue}},
		func(items []StorageResultItem) error {
			for _, item := range items {
				if item.Value != nil {
					value = item.Value
				}
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Header fetches the header of a pinned block. This is a plain request
// rather than an asynchronous operation; the server answers directly with
// the encoded header
func (s *Session) Header(
	ctx context.Context,
	blockHash chain.Hash,
) (*chain.Header, error) {
	ctx, cancel := s.operationContext(ctx)
	defer cancel()
	if !s.Pinned(blockHash) {
		if s.State() == SessionStateStopped {
			return nil, ErrFollowStopped
		}
		return nil, ErrNotPinned
	}
	var headerHex *chain.Bytes
	err := s.client.rpcClient.Call(
		ctx,
		MethodHeader,
		[]any{s.followId, blockHash},
		&headerHex,
	)
	if err != nil {
		return nil, err
	}
	if headerHex == nil {
		// The server no longer holds the block
		return nil, ErrNotPinned
	}
	header, err := chain.NewHeaderFromBytes(*headerHex)
	if err != nil {
		return nil, rpc.ProtocolError{
			Reason: fmt.Sprintf("malformed header: %s", err),
		}
	}
	return header, nil
}

// attachOperation registers an operation event receiver after verifying the
// block is pinned. The check and the registration happen in a single event
// loop step, so an operation on an unpinned block can never reach the server
func (s *Session) attachOperation(
	ctx context.Context,
	blockHash chain.Hash,
) (*operationHandle, error) {
	handle := &operationHandle{
		eventChan: make(chan FollowEvent, s.config.EventQueueLimit),
		errorChan: make(chan error, 1),
	}
	req := &attachRequest{
		blockHash:  blockHash,
		handle:     handle,
		resultChan: make(chan error, 1),
	}
	select {
	case s.attachChan <- req:
	case <-s.doneChan:
		return nil, ErrFollowStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case err := <-req.resultChan:
		if err != nil {
			return nil, err
		}
		return handle, nil
	case <-s.doneChan:
		return nil, ErrFollowStopped
	}
}

func (s *Session) detachOperation(handle *operationHandle) {
	select {
	case s.detachChan <- handle:
	case <-s.doneChan:
	}
}

func (s *Session) claimOperation(handle *operationHandle, operationId string) {
	select {
	case s.claimChan <- &claimRequest{handle: handle, operationId: operationId}:
	case <-s.doneChan:
	}
}

// startOperation issues the operation method call, retrying with backoff
// while the server reports that its operation limit is reached
func (s *Session) startOperation(
	ctx context.Context,
	method string,
	params []any,
) (*MethodResponse, error) {
	retryBackoff := &backoff.Backoff{
		Min:    10 * time.Millisecond,
		Max:    time.Second,
		Factor: 2,
		Jitter: true,
	}
	for range operationRetryLimit {
		var resp MethodResponse
		if err := s.client.rpcClient.Call(ctx, method, params, &resp); err != nil {
			return nil, err
		}
		switch resp.Result {
		case MethodResponseStarted:
			return &resp, nil
		case MethodResponseLimitReached:
			select {
			case <-time.After(retryBackoff.Duration()):
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-s.doneChan:
				return nil, ErrFollowStopped
			}
		default:
			return nil, rpc.ProtocolError{
				Reason: fmt.Sprintf(
					"unknown method response result: %s",
					resp.Result,
				),
			}
		}
	}
	return nil, ErrLimitReached
}

// stopOperation tells the server to abandon a running operation. Runs off
// the caller's goroutine since the caller is usually unwinding with a dead
// context
func (s *Session) stopOperation(operationId string) {
	if !s.trackBackground() {
		return
	}
	go func() {
		defer s.waitGroup.Done()
		ctx, cancel := context.WithTimeout(s.backgroundCtx, unpinTimeout)
		defer cancel()
		err := s.client.rpcClient.Call(
			ctx,
			MethodStopOperation,
			[]any{s.followId, operationId},
			nil,
		)
		if err != nil {
			s.logger.Debug(
				"stop operation failed",
				"component", "chainhead",
				"subscription_id", s.followId,
				"operation_id", operationId,
				"error", err,
			)
		}
	}()
}

// operationContext applies the configured operation timeout when the caller
// did not set a deadline of its own
func (s *Session) operationContext(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.config.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.OperationTimeout)
}
