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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/gosubstrate/backend"
	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/rpc"
)

const defaultStreamBuffer = 16

// Backend implements the backend.Backend capability set on the legacy method
// surface. It is stateless: nothing is pinned, refs carry no lease, and any
// block the node retains is fetchable at any time. Transient connection
// failures are absorbed by the transport's request replay and subscription
// restoration, so requests here are issued exactly once
type Backend struct {
	client *Client
	logger *slog.Logger

	closeMutex sync.Mutex
	closeChan  chan struct{}
	closed     bool

	genesisMutex sync.Mutex
	genesisHash  *chain.Hash
}

var _ backend.Backend = (*Backend)(nil)

// NewBackend returns a Backend driving chain operations through the legacy
// methods on the given client
func NewBackend(client *Client) *Backend {
	return &Backend{
		client:    client,
		logger:    client.logger,
		closeChan: make(chan struct{}),
	}
}

func (b *Backend) checkClosed() error {
	b.closeMutex.Lock()
	defer b.closeMutex.Unlock()
	if b.closed {
		return backend.ErrBackendClosed
	}
	return nil
}

// Close ends every stream produced by this backend and fails subsequent
// operations
func (b *Backend) Close() error {
	b.closeMutex.Lock()
	defer b.closeMutex.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.closeChan)
	return nil
}

// interrupted reports whether a stream producer should stop between
// requests: the backend closed or the context ended (failing the stream),
// or the consumer stopped the stream
func interrupted(
	ctx context.Context,
	closeChan <-chan struct{},
	done <-chan struct{},
	fail func(error),
) bool {
	select {
	case <-closeChan:
		fail(backend.ErrBackendClosed)
		return true
	case <-done:
		return true
	case <-ctx.Done():
		fail(ctx.Err())
		return true
	default:
		return false
	}
}

// GenesisHash returns the chain's genesis hash, cached after the first fetch
func (b *Backend) GenesisHash(ctx context.Context) (chain.Hash, error) {
	if err := b.checkClosed(); err != nil {
		return chain.Hash{}, err
	}
	b.genesisMutex.Lock()
	defer b.genesisMutex.Unlock()
	if b.genesisHash != nil {
		return *b.genesisHash, nil
	}
	genesisNumber := NumberOrHex(0)
	genesisHash, err := b.client.BlockHash(ctx, &genesisNumber)
	if err != nil {
		return chain.Hash{}, err
	}
	b.genesisHash = &genesisHash
	return genesisHash, nil
}

// BlockHeader fetches the header of the given block
func (b *Backend) BlockHeader(
	ctx context.Context,
	blockHash chain.Hash,
) (*chain.Header, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	return b.client.Header(ctx, &blockHash)
}

// BlockBody fetches the extrinsics of the given block
func (b *Backend) BlockBody(
	ctx context.Context,
	blockHash chain.Hash,
) ([]chain.Bytes, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	details, err := b.client.Block(ctx, &blockHash)
	if err != nil {
		return nil, err
	}
	return details.Block.Extrinsics, nil
}

// LatestFinalizedBlock returns a ref for the most recently finalized block.
// The ref carries no lease; the node serves old blocks without one
func (b *Backend) LatestFinalizedBlock(
	ctx context.Context,
) (backend.BlockRef, error) {
	if err := b.checkClosed(); err != nil {
		return backend.BlockRef{}, err
	}
	blockHash, err := b.client.FinalizedHead(ctx)
	if err != nil {
		return backend.BlockRef{}, err
	}
	return backend.NewBlockRef(blockHash), nil
}

// CurrentRuntimeVersion returns the runtime version at the latest finalized
// block
func (b *Backend) CurrentRuntimeVersion(
	ctx context.Context,
) (*chain.RuntimeVersion, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	blockHash, err := b.client.FinalizedHead(ctx)
	if err != nil {
		return nil, err
	}
	return b.client.RuntimeVersion(ctx, &blockHash)
}

// RuntimeVersions streams runtime versions as upgrades take effect, starting
// with the current one. Consecutive duplicate versions are suppressed, which
// also absorbs the re-reported current version after a reconnect
func (b *Backend) RuntimeVersions(
	ctx context.Context,
) (*backend.RuntimeVersionStream, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	sub, err := b.client.SubscribeRuntimeVersion(ctx)
	if err != nil {
		return nil, err
	}
	stream := backend.NewRuntimeVersionStream(defaultStreamBuffer, nil)
	go b.runRuntimeVersions(ctx, stream, sub)
	return stream, nil
}

func (b *Backend) runRuntimeVersions(
	ctx context.Context,
	stream *backend.RuntimeVersionStream,
	sub *RuntimeVersionSubscription,
) {
	defer sub.Unsubscribe()
	var lastVersion *chain.RuntimeVersion
	for {
		select {
		case <-b.closeChan:
			stream.Fail(backend.ErrBackendClosed)
			return
		case <-stream.Done():
			return
		case <-ctx.Done():
			stream.Fail(ctx.Err())
			return
		case msg, ok := <-sub.Chan():
			if !ok {
				stream.Finish()
				return
			}
			if msg.Err != nil {
				if errors.Is(msg.Err, rpc.ErrDisconnected) {
					continue
				}
				stream.Fail(msg.Err)
				return
			}
			if lastVersion != nil &&
				lastVersion.SpecVersion == msg.Version.SpecVersion &&
				lastVersion.TransactionVersion == msg.Version.TransactionVersion {
				continue
			}
			lastVersion = msg.Version
			if !stream.Send(msg.Version) {
				return
			}
		}
	}
}

// StorageValues streams the values present for the given keys at a block.
// Keys with no value at that block produce no entry
func (b *Backend) StorageValues(
	ctx context.Context,
	blockHash chain.Hash,
	keys []chain.Bytes,
) (*backend.StorageStream, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	stream := backend.NewStorageStream(defaultStreamBuffer, nil)
	go func() {
		for _, key := range keys {
			if interrupted(ctx, b.closeChan, stream.Done(), stream.Fail) {
				return
			}
			value, err := b.client.Storage(ctx, key, &blockHash)
			if err != nil {
				stream.Fail(err)
				return
			}
			if value == nil {
				continue
			}
			entry := backend.StorageEntry{Key: key, Value: value}
			if !stream.Send(entry) {
				return
			}
		}
		stream.Finish()
	}()
	return stream, nil
}

// StorageIterate streams every storage entry under a key prefix at a block.
// The node has no iteration primitive, so iteration is synthesized from
// range queries: each page of keys comes from state_getKeysPaged resuming
// after the previous page's last key, and the page's values come from one
// state_queryStorageAt
func (b *Backend) StorageIterate(
	ctx context.Context,
	blockHash chain.Hash,
	prefix chain.Bytes,
	pageSize uint32,
) (*backend.StorageStream, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	if pageSize == 0 {
		pageSize = b.client.config.StoragePageSize
	}
	stream := backend.NewStorageStream(defaultStreamBuffer, nil)
	go b.runStorageIterate(ctx, stream, blockHash, prefix, pageSize)
	return stream, nil
}

func (b *Backend) runStorageIterate(
	ctx context.Context,
	stream *backend.StorageStream,
	blockHash chain.Hash,
	prefix chain.Bytes,
	pageSize uint32,
) {
	var startKey chain.Bytes
	for {
		if interrupted(ctx, b.closeChan, stream.Done(), stream.Fail) {
			return
		}
		keys, err := b.client.KeysPaged(
			ctx,
			prefix,
			pageSize,
			startKey,
			&blockHash,
		)
		if err != nil {
			stream.Fail(err)
			return
		}
		// Some nodes include the resume key in the page it resumes from
		if startKey != nil && len(keys) > 0 &&
			bytes.Equal(keys[0], startKey) {
			keys = keys[1:]
		}
		if len(keys) == 0 {
			stream.Finish()
			return
		}
		startKey = keys[len(keys)-1]
		if !b.sendPageValues(ctx, stream, keys, blockHash) {
			return
		}
	}
}

// sendPageValues fetches and delivers the values for one page of keys.
// Returns false when the stream is done
func (b *Backend) sendPageValues(
	ctx context.Context,
	stream *backend.StorageStream,
	keys []chain.Bytes,
	blockHash chain.Hash,
) bool {
	changeSets, err := b.client.QueryStorageAt(ctx, keys, &blockHash)
	if err != nil {
		stream.Fail(err)
		return false
	}
	for _, changeSet := range changeSets {
		for _, change := range changeSet.Changes {
			if change.Value == nil {
				continue
			}
			entry := backend.StorageEntry{
				Key:   change.Key,
				Value: change.Value,
			}
			if !stream.Send(entry) {
				return false
			}
		}
	}
	return true
}

// Call executes a runtime API function at a block and returns its opaque
// result
func (b *Backend) Call(
	ctx context.Context,
	blockHash chain.Hash,
	function string,
	args chain.Bytes,
) (chain.Bytes, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	return b.client.Call(ctx, function, args, &blockHash)
}

// SubmitTransaction submits an extrinsic and streams its lifecycle statuses
// until a terminal one. A lost connection fails the stream since the
// transaction's fate can no longer be tracked reliably
func (b *Backend) SubmitTransaction(
	ctx context.Context,
	tx chain.Bytes,
) (*backend.TransactionStatusStream, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	b.logger.Debug(
		"submitting transaction",
		"component", "legacy",
		"tx_hash", chain.Blake2b256Hash(tx),
	)
	sub, err := b.client.WatchExtrinsic(ctx, tx)
	if err != nil {
		return nil, err
	}
	stream := backend.NewTransactionStatusStream(defaultStreamBuffer, nil)
	go b.runTransactionWatch(ctx, stream, sub)
	return stream, nil
}

func (b *Backend) runTransactionWatch(
	ctx context.Context,
	stream *backend.TransactionStatusStream,
	sub *TransactionStatusSubscription,
) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-b.closeChan:
			stream.Fail(backend.ErrBackendClosed)
			return
		case <-stream.Done():
			return
		case <-ctx.Done():
			stream.Fail(ctx.Err())
			return
		case msg, ok := <-sub.Chan():
			if !ok {
				stream.Fail(ErrWatchEnded)
				return
			}
			if msg.Err != nil {
				stream.Fail(msg.Err)
				return
			}
			status, ok := transactionStatusFromNative(msg.Status)
			if !ok {
				continue
			}
			if !stream.Send(status) {
				return
			}
			if status.IsTerminal() {
				stream.Finish()
				return
			}
		}
	}
}

// transactionStatusFromNative maps a native pool status onto the unified
// status set. future has no counterpart and is dropped; the pool statuses
// that end the native watch map onto the unified terminal statuses
func transactionStatusFromNative(
	status TransactionStatus,
) (backend.TransactionStatus, bool) {
	switch status.Status {
	case TransactionStatusReady:
		return backend.TransactionStatus{
			Kind: backend.TransactionStatusValidated,
		}, true
	case TransactionStatusBroadcast:
		return backend.TransactionStatus{
			Kind: backend.TransactionStatusBroadcasted,
		}, true
	case TransactionStatusInBlock:
		return backend.TransactionStatus{
			Kind:  backend.TransactionStatusInBestBlock,
			Block: status.Block,
		}, true
	case TransactionStatusRetracted:
		return backend.TransactionStatus{
			Kind: backend.TransactionStatusNoLongerInBestBlock,
		}, true
	case TransactionStatusFinalityTimeout:
		return backend.TransactionStatus{
			Kind:   backend.TransactionStatusDropped,
			Reason: "finality timeout",
		}, true
	case TransactionStatusFinalized:
		return backend.TransactionStatus{
			Kind:  backend.TransactionStatusInFinalizedBlock,
			Block: status.Block,
		}, true
	case TransactionStatusUsurped:
		return backend.TransactionStatus{
			Kind:   backend.TransactionStatusInvalid,
			Reason: "usurped by a transaction with the same nonce",
		}, true
	case TransactionStatusDropped:
		return backend.TransactionStatus{
			Kind:   backend.TransactionStatusDropped,
			Reason: "transaction dropped from the pool",
		}, true
	case TransactionStatusInvalid:
		return backend.TransactionStatus{
			Kind:   backend.TransactionStatusInvalid,
			Reason: "transaction no longer valid",
		}, true
	}
	return backend.TransactionStatus{}, false
}

// AllHeaders streams the headers of all announced blocks
func (b *Backend) AllHeaders(ctx context.Context) (*backend.HeaderStream, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	sub, err := b.client.SubscribeAllHeads(ctx)
	if err != nil {
		return nil, err
	}
	stream := backend.NewHeaderStream(defaultStreamBuffer, nil)
	go b.runHeaderStream(ctx, stream, sub)
	return stream, nil
}

// BestHeaders streams the headers of new best blocks
func (b *Backend) BestHeaders(ctx context.Context) (*backend.HeaderStream, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	sub, err := b.client.SubscribeNewHeads(ctx)
	if err != nil {
		return nil, err
	}
	stream := backend.NewHeaderStream(defaultStreamBuffer, nil)
	go b.runHeaderStream(ctx, stream, sub)
	return stream, nil
}

// FinalizedHeaders streams the headers of newly finalized blocks, including
// any the node skipped announcing
func (b *Backend) FinalizedHeaders(
	ctx context.Context,
) (*backend.HeaderStream, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	sub, err := b.client.SubscribeFinalizedHeads(ctx)
	if err != nil {
		return nil, err
	}
	stream := backend.NewHeaderStream(defaultStreamBuffer, nil)
	go b.runFinalizedHeaderStream(ctx, stream, sub)
	return stream, nil
}

// runHeaderStream delivers announced headers as they arrive. Header
// notifications do not carry the block hash, so each ref's hash comes from
// hashing the encoded header
func (b *Backend) runHeaderStream(
	ctx context.Context,
	stream *backend.HeaderStream,
	sub *HeaderSubscription,
) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-b.closeChan:
			stream.Fail(backend.ErrBackendClosed)
			return
		case <-stream.Done():
			return
		case <-ctx.Done():
			stream.Fail(ctx.Err())
			return
		case msg, ok := <-sub.Chan():
			if !ok {
				stream.Finish()
				return
			}
			if msg.Err != nil {
				if errors.Is(msg.Err, rpc.ErrDisconnected) {
					continue
				}
				stream.Fail(msg.Err)
				return
			}
			update := backend.HeaderUpdate{
				Header: msg.Header,
				Ref:    backend.NewBlockRef(msg.Header.Hash()),
			}
			if !stream.Send(update) {
				return
			}
		}
	}
}

// runFinalizedHeaderStream delivers finalized headers, filling in announced
// gaps. When several blocks finalize at once the node announces only the
// newest, so the skipped ancestors are fetched by walking parent hashes and
// delivered oldest first. Announcements at or below the last delivered
// height are dropped, which absorbs the re-announced head after a reconnect
func (b *Backend) runFinalizedHeaderStream(
	ctx context.Context,
	stream *backend.HeaderStream,
	sub *HeaderSubscription,
) {
	defer sub.Unsubscribe()
	var lastNumber uint64
	var haveLast bool
	for {
		select {
		case <-b.closeChan:
			stream.Fail(backend.ErrBackendClosed)
			return
		case <-stream.Done():
			return
		case <-ctx.Done():
			stream.Fail(ctx.Err())
			return
		case msg, ok := <-sub.Chan():
			if !ok {
				stream.Finish()
				return
			}
			if msg.Err != nil {
				if errors.Is(msg.Err, rpc.ErrDisconnected) {
					continue
				}
				stream.Fail(msg.Err)
				return
			}
			number := uint64(msg.Header.Number)
			if haveLast && number <= lastNumber {
				continue
			}
			if haveLast && number > lastNumber+1 {
				if !b.sendBackfill(ctx, stream, msg.Header, lastNumber) {
					return
				}
			}
			lastNumber = number
			haveLast = true
			update := backend.HeaderUpdate{
				Header: msg.Header,
				Ref:    backend.NewBlockRef(msg.Header.Hash()),
			}
			if !stream.Send(update) {
				return
			}
		}
	}
}

// sendBackfill fetches the headers between the last delivered block and the
// given one by walking parent hashes, then delivers them oldest first.
// Returns false when the stream is done
func (b *Backend) sendBackfill(
	ctx context.Context,
	stream *backend.HeaderStream,
	header *chain.Header,
	lastNumber uint64,
) bool {
	gap := make([]backend.HeaderUpdate, 0, uint64(header.Number)-lastNumber-1)
	parentHash := header.ParentHash
	for number := uint64(header.Number) - 1; number > lastNumber; number-- {
		if interrupted(ctx, b.closeChan, stream.Done(), stream.Fail) {
			return false
		}
		parent, err := b.client.Header(ctx, &parentHash)
		if err != nil {
			stream.Fail(err)
			return false
		}
		gap = append(gap, backend.HeaderUpdate{
			Header: parent,
			Ref:    backend.NewBlockRef(parentHash),
		})
		parentHash = parent.ParentHash
	}
	for i := len(gap) - 1; i >= 0; i-- {
		if !stream.Send(gap[i]) {
			return false
		}
	}
	return true
}
