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
	"log/slog"
	"sync"

	"github.com/blinklabs-io/gosubstrate/backend"
	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/rpc"
)

const defaultStreamBuffer = 16

// errStreamStopped aborts a running operation when the consumer stops its
// stream. Never returned to callers
var errStreamStopped = errors.New("stream stopped by consumer")

// Backend implements the backend.Backend capability set on top of the
// chainHead protocol. A single follow session backs all operations at a
// time; a session lost to transport failure or a server stop is replaced
// lazily by the next operation that needs one
type Backend struct {
	client *Client
	logger *slog.Logger

	sessionMutex   sync.Mutex
	currentSession *Session
	closed         bool

	genesisMutex sync.Mutex
	genesisHash  *chain.Hash
}

var _ backend.Backend = (*Backend)(nil)

// NewBackend returns a Backend driving chain operations through the
// chainHead protocol on the given client
func NewBackend(client *Client) *Backend {
	return &Backend{
		client: client,
		logger: client.logger,
	}
}

// session returns the live follow session, starting one when none exists or
// the previous one has ended
func (b *Backend) session(ctx context.Context) (*Session, error) {
	b.sessionMutex.Lock()
	defer b.sessionMutex.Unlock()
	if b.closed {
		return nil, backend.ErrBackendClosed
	}
	if b.currentSession != nil {
		select {
		case <-b.currentSession.Done():
			b.currentSession = nil
		default:
			return b.currentSession, nil
		}
	}
	session, err := b.client.Follow(ctx)
	if err != nil {
		return nil, err
	}
	b.currentSession = session
	return session, nil
}

func (b *Backend) checkClosed() error {
	b.sessionMutex.Lock()
	defer b.sessionMutex.Unlock()
	if b.closed {
		return backend.ErrBackendClosed
	}
	return nil
}

// Close ends the current session, which fails any in-flight operations and
// ends every stream produced by this backend
func (b *Backend) Close() error {
	b.sessionMutex.Lock()
	if b.closed {
		b.sessionMutex.Unlock()
		return nil
	}
	b.closed = true
	session := b.currentSession
	b.currentSession = nil
	b.sessionMutex.Unlock()
	if session != nil {
		session.Close()
	}
	return nil
}

// retryableSessionError reports whether an operation failure came from
// losing the session rather than from the operation itself
func retryableSessionError(err error) bool {
	return errors.Is(err, ErrFollowStopped) || errors.Is(err, rpc.ErrDisconnected)
}

// withSession runs fn against the live session, replacing the session and
// retrying when it is lost mid-operation. ErrNotPinned is never retried
// since a replacement session cannot resurrect the old session's pins
func (b *Backend) withSession(
	ctx context.Context,
	fn func(*Session) error,
) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		session, err := b.session(ctx)
		if err != nil {
			return err
		}
		err = fn(session)
		if err == nil {
			return nil
		}
		if !retryableSessionError(err) {
			return err
		}
		b.logger.Debug(
			"retrying operation after follow session loss",
			"component", "chainhead",
			"error", err,
		)
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
	var genesisHash chain.Hash
	err := b.client.rpcClient.Call(
		ctx,
		MethodChainSpecGenesisHash,
		nil,
		&genesisHash,
	)
	if err != nil {
		return chain.Hash{}, err
	}
	b.genesisHash = &genesisHash
	return genesisHash, nil
}

// BlockHeader fetches the header of a block the backend has pinned
func (b *Backend) BlockHeader(
	ctx context.Context,
	blockHash chain.Hash,
) (*chain.Header, error) {
	var header *chain.Header
	err := b.withSession(ctx, func(session *Session) error {
		var sessionErr error
		header, sessionErr = session.Header(ctx, blockHash)
		return sessionErr
	})
	if err != nil {
		return nil, err
	}
	return header, nil
}

// BlockBody fetches the extrinsics of a block the backend has pinned
func (b *Backend) BlockBody(
	ctx context.Context,
	blockHash chain.Hash,
) ([]chain.Bytes, error) {
	var body []chain.Bytes
	err := b.withSession(ctx, func(session *Session) error {
		var sessionErr error
		body, sessionErr = session.Body(ctx, blockHash)
		return sessionErr
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// LatestFinalizedBlock returns a ref holding a pin lease on the most
// recently finalized block. Release the ref once the block is no longer
// needed so the retention window can reclaim it
func (b *Backend) LatestFinalizedBlock(
	ctx context.Context,
) (backend.BlockRef, error) {
	var ref backend.BlockRef
	err := b.withSession(ctx, func(session *Session) error {
		blockHash, release, sessionErr := session.LeaseLatestFinalized(ctx)
		if sessionErr != nil {
			return sessionErr
		}
		ref = backend.NewBlockRefWithRelease(blockHash, release)
		return nil
	})
	if err != nil {
		return backend.BlockRef{}, err
	}
	return ref, nil
}

// CurrentRuntimeVersion returns the runtime version in effect at the latest
// finalized block, waiting for the session to learn it when necessary
func (b *Backend) CurrentRuntimeVersion(
	ctx context.Context,
) (*chain.RuntimeVersion, error) {
	var version *chain.RuntimeVersion
	err := b.withSession(ctx, func(session *Session) error {
		sub, sessionErr := session.WatchRuntime(ctx)
		if sessionErr != nil {
			return sessionErr
		}
		defer sub.Cancel()
		select {
		case v, ok := <-sub.Chan():
			if !ok {
				return ErrFollowStopped
			}
			version = v
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// RuntimeVersions streams runtime versions as they take effect at finalized
// blocks, starting with the current one. The stream survives session
// replacement; consecutive duplicate versions are suppressed
func (b *Backend) RuntimeVersions(
	ctx context.Context,
) (*backend.RuntimeVersionStream, error) {
	if !b.client.config.FollowRuntime {
		return nil, ErrRuntimeNotFollowed
	}
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	stream := backend.NewRuntimeVersionStream(defaultStreamBuffer, nil)
	go b.runRuntimeVersions(ctx, stream)
	return stream, nil
}

func (b *Backend) runRuntimeVersions(
	ctx context.Context,
	stream *backend.RuntimeVersionStream,
) {
	var lastVersion *chain.RuntimeVersion
	for {
		session, err := b.session(ctx)
		if err != nil {
			stream.Fail(err)
			return
		}
		sub, err := session.WatchRuntime(ctx)
		if err != nil {
			if retryableSessionError(err) {
				continue
			}
			stream.Fail(err)
			return
		}
		if !b.consumeRuntimeVersions(ctx, stream, sub, &lastVersion) {
			return
		}
	}
}

// consumeRuntimeVersions drains one session's runtime subscription into the
// stream. Returns true when the session ended and a fresh one should be
// attached, false when the stream itself is done
func (b *Backend) consumeRuntimeVersions(
	ctx context.Context,
	stream *backend.RuntimeVersionStream,
	sub *RuntimeSubscription,
	lastVersion **chain.RuntimeVersion,
) bool {
	defer sub.Cancel()
	for {
		select {
		case <-stream.Done():
			return false
		case <-ctx.Done():
			stream.Fail(ctx.Err())
			return false
		case version, ok := <-sub.Chan():
			if !ok {
				return true
			}
			if *lastVersion != nil &&
				(*lastVersion).SpecVersion == version.SpecVersion &&
				(*lastVersion).TransactionVersion == version.TransactionVersion {
				continue
			}
			*lastVersion = version
			if !stream.Send(version) {
				return false
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
	queries := make([]StorageQuery, 0, len(keys))
	for _, key := range keys {
		queries = append(queries, StorageQuery{
			Key:  key,
			Type: StorageQueryTypeValue,
		})
	}
	return b.storageStream(ctx, blockHash, queries), nil
}

// StorageIterate streams every storage entry under a key prefix at a block.
// The server paces descendant iteration itself, so pageSize only shapes
// backends that page explicitly
func (b *Backend) StorageIterate(
	ctx context.Context,
	blockHash chain.Hash,
	prefix chain.Bytes,
	pageSize uint32,
) (*backend.StorageStream, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	queries := []StorageQuery{
		{Key: prefix, Type: StorageQueryTypeDescendantsValues},
	}
	return b.storageStream(ctx, blockHash, queries), nil
}

func (b *Backend) storageStream(
	ctx context.Context,
	blockHash chain.Hash,
	queries []StorageQuery,
) *backend.StorageStream {
	stream := backend.NewStorageStream(defaultStreamBuffer, nil)
	go func() {
		delivered := false
		for {
			if err := ctx.Err(); err != nil {
				stream.Fail(err)
				return
			}
			session, err := b.session(ctx)
			if err != nil {
				stream.Fail(err)
				return
			}
			err = session.Storage(
				ctx,
				blockHash,
				queries,
				func(items []StorageResultItem) error {
					for _, item := range items {
						if item.Value == nil {
							continue
						}
						delivered = true
						entry := backend.StorageEntry{
							Key:   item.Key,
							Value: item.Value,
						}
						if !stream.Send(entry) {
							return errStreamStopped
						}
					}
					return nil
				},
			)
			switch {
			case err == nil:
				stream.Finish()
				return
			case errors.Is(err, errStreamStopped):
				return
			case retryableSessionError(err) && !delivered:
				// Safe to run again from scratch; nothing was delivered
				continue
			default:
				stream.Fail(err)
				return
			}
		}
	}()
	return stream
}

// Call executes a runtime API function at a block the backend has pinned
func (b *Backend) Call(
	ctx context.Context,
	blockHash chain.Hash,
	function string,
	args chain.Bytes,
) (chain.Bytes, error) {
	var output chain.Bytes
	err := b.withSession(ctx, func(session *Session) error {
		var sessionErr error
		output, sessionErr = session.Call(ctx, blockHash, function, args)
		return sessionErr
	})
	if err != nil {
		return nil, err
	}
	return output, nil
}

// SubmitTransaction submits an extrinsic and streams its lifecycle statuses
// until a terminal one. The stream is bound to the session alive at
// submission time; losing that session fails the stream since the
// transaction's fate can no longer be tracked reliably
func (b *Backend) SubmitTransaction(
	ctx context.Context,
	tx chain.Bytes,
) (*backend.TransactionStatusStream, error) {
	session, err := b.session(ctx)
	if err != nil {
		return nil, err
	}
	stream := backend.NewTransactionStatusStream(defaultStreamBuffer, nil)
	go func() {
		err := session.SubmitTransaction(
			ctx,
			tx,
			func(event TransactionWatchEvent) error {
				status, ok := transactionStatusFromEvent(event)
				if !ok {
					return nil
				}
				if !stream.Send(status) {
					return errStreamStopped
				}
				return nil
			},
		)
		switch {
		case err == nil:
			stream.Finish()
		case errors.Is(err, errStreamStopped):
		default:
			stream.Fail(err)
		}
	}()
	return stream, nil
}

func transactionStatusFromEvent(
	event TransactionWatchEvent,
) (backend.TransactionStatus, bool) {
	switch event.Event {
	case TransactionEventTypeValidated:
		return backend.TransactionStatus{
			Kind: backend.TransactionStatusValidated,
		}, true
	case TransactionEventTypeBroadcasted:
		return backend.TransactionStatus{
			Kind: backend.TransactionStatusBroadcasted,
		}, true
	case TransactionEventTypeBestChainBlockIncluded:
		if event.Block == nil {
			return backend.TransactionStatus{
				Kind: backend.TransactionStatusNoLongerInBestBlock,
			}, true
		}
		return backend.TransactionStatus{
			Kind:  backend.TransactionStatusInBestBlock,
			Block: event.Block.Hash,
		}, true
	case TransactionEventTypeFinalized:
		return backend.TransactionStatus{
			Kind:  backend.TransactionStatusInFinalizedBlock,
			Block: event.Block.Hash,
		}, true
	case TransactionEventTypeError:
		return backend.TransactionStatus{
			Kind:   backend.TransactionStatusError,
			Reason: event.Error,
		}, true
	case TransactionEventTypeInvalid:
		return backend.TransactionStatus{
			Kind:   backend.TransactionStatusInvalid,
			Reason: event.Error,
		}, true
	case TransactionEventTypeDropped:
		return backend.TransactionStatus{
			Kind:   backend.TransactionStatusDropped,
			Reason: event.Error,
		}, true
	}
	return backend.TransactionStatus{}, false
}

// AllHeaders streams the header of every announced block, including the
// finalized blocks reported at session start
func (b *Backend) AllHeaders(ctx context.Context) (*backend.HeaderStream, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	return b.headerStream(ctx, headerFilterAll), nil
}

// BestHeaders streams the header of each new best block
func (b *Backend) BestHeaders(ctx context.Context) (*backend.HeaderStream, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	return b.headerStream(ctx, headerFilterBest), nil
}

// FinalizedHeaders streams the header of each newly finalized block
func (b *Backend) FinalizedHeaders(
	ctx context.Context,
) (*backend.HeaderStream, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	return b.headerStream(ctx, headerFilterFinalized), nil
}

func headerFilterAll(event FollowEvent) []chain.Hash {
	switch ev := event.(type) {
	case *EventInitialized:
		return ev.FinalizedBlockHashes
	case *EventNewBlock:
		return []chain.Hash{ev.BlockHash}
	}
	return nil
}

func headerFilterBest(event FollowEvent) []chain.Hash {
	switch ev := event.(type) {
	case *EventInitialized:
		return ev.FinalizedBlockHashes
	case *EventBestBlockChanged:
		return []chain.Hash{ev.BestBlockHash}
	}
	return nil
}

func headerFilterFinalized(event FollowEvent) []chain.Hash {
	switch ev := event.(type) {
	case *EventInitialized:
		return ev.FinalizedBlockHashes
	case *EventFinalized:
		return ev.FinalizedBlockHashes
	}
	return nil
}

func (b *Backend) headerStream(
	ctx context.Context,
	filter func(FollowEvent) []chain.Hash,
) *backend.HeaderStream {
	stream := backend.NewHeaderStream(defaultStreamBuffer, nil)
	go b.runHeaderStream(ctx, stream, filter)
	return stream
}

func (b *Backend) runHeaderStream(
	ctx context.Context,
	stream *backend.HeaderStream,
	filter func(FollowEvent) []chain.Hash,
) {
	var lastSent chain.Hash
	for {
		session, err := b.session(ctx)
		if err != nil {
			stream.Fail(err)
			return
		}
		watcher, err := session.Watch(ctx)
		if err != nil {
			if retryableSessionError(err) {
				continue
			}
			stream.Fail(err)
			return
		}
		if !b.consumeHeaderEvents(ctx, stream, session, watcher, filter, &lastSent) {
			return
		}
	}
}

// consumeHeaderEvents drains one session's follow events into a header
// stream. Returns true when the session ended and a fresh one should be
// attached, false when the stream itself is done. A fresh session reports
// the latest finalized block again, so the last delivered hash is tracked to
// suppress that replay
func (b *Backend) consumeHeaderEvents(
	ctx context.Context,
	stream *backend.HeaderStream,
	session *Session,
	watcher *EventSubscription,
	filter func(FollowEvent) []chain.Hash,
	lastSent *chain.Hash,
) bool {
	defer watcher.Cancel()
	for {
		select {
		case <-stream.Done():
			return false
		case <-ctx.Done():
			stream.Fail(ctx.Err())
			return false
		case err := <-watcher.Errors():
			stream.Fail(err)
			return false
		case event, ok := <-watcher.Chan():
			if !ok {
				return true
			}
			if _, isStop := event.(*EventStop); isStop {
				return true
			}
			for _, blockHash := range filter(event) {
				if blockHash == *lastSent {
					continue
				}
				release, err := session.LeaseBlock(ctx, blockHash)
				if err != nil {
					if errors.Is(err, ErrNotPinned) {
						// Pruned before we got to it
						continue
					}
					if retryableSessionError(err) {
						return true
					}
					stream.Fail(err)
					return false
				}
				header, err := session.Header(ctx, blockHash)
				if err != nil {
					release()
					if errors.Is(err, ErrNotPinned) {
						continue
					}
					if retryableSessionError(err) {
						return true
					}
					stream.Fail(err)
					return false
				}
				*lastSent = blockHash
				update := backend.HeaderUpdate{
					Header: header,
					Ref:    backend.NewBlockRefWithRelease(blockHash, release),
				}
				if !stream.Send(update) {
					release()
					return false
				}
			}
		}
	}
}
