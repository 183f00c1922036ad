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

// Package backend defines the capability interface that chain backends
// implement, along with the block refs, streams, and transaction status
// vocabulary shared by the implementations. Callers work entirely in terms
// of this package: block pinning, operation ids, and the shape of the
// underlying RPC interface never leak through it.
package backend

import (
	"context"
	"errors"

	"github.com/blinklabs-io/gosubstrate/chain"
)

// ErrBackendClosed is returned for operations on a backend that has been closed
var ErrBackendClosed = errors.New("backend is closed")

// Backend is the set of chain operations every backend generation provides.
// Methods taking a block hash require the block to be reachable under the
// backend's retention rules: under chainHead that means pinned, so holding the
// BlockRef that announced a block is what keeps it queryable
type Backend interface {
	// GenesisHash returns the hash of the chain's genesis block
	GenesisHash(ctx context.Context) (chain.Hash, error)
	// BlockHeader fetches the header of the given block
	BlockHeader(ctx context.Context, blockHash chain.Hash) (*chain.Header, error)
	// BlockBody fetches the extrinsics of the given block
	BlockBody(ctx context.Context, blockHash chain.Hash) ([]chain.Bytes, error)
	// LatestFinalizedBlock returns a ref for the most recently finalized block
	LatestFinalizedBlock(ctx context.Context) (BlockRef, error)
	// CurrentRuntimeVersion returns the runtime version at the latest
	// finalized block
	CurrentRuntimeVersion(ctx context.Context) (*chain.RuntimeVersion, error)
	// RuntimeVersions streams runtime versions as they take effect, starting
	// with the current one
	RuntimeVersions(ctx context.Context) (*RuntimeVersionStream, error)
	// StorageValues streams the values for the given storage keys at a block
	StorageValues(
		ctx context.Context,
		blockHash chain.Hash,
		keys []chain.Bytes,
	) (*StorageStream, error)
	// StorageIterate streams all storage entries under a key prefix at a
	// block, fetching lazily in pages of pageSize
	StorageIterate(
		ctx context.Context,
		blockHash chain.Hash,
		prefix chain.Bytes,
		pageSize uint32,
	) (*StorageStream, error)
	// Call executes a runtime API function at a block and returns its opaque
	// result
	Call(
		ctx context.Context,
		blockHash chain.Hash,
		function string,
		args chain.Bytes,
	) (chain.Bytes, error)
	// SubmitTransaction submits an extrinsic and streams its lifecycle status
	// updates until a terminal one
	SubmitTransaction(
		ctx context.Context,
		tx chain.Bytes,
	) (*TransactionStatusStream, error)
	// AllHeaders streams the headers of all announced blocks
	AllHeaders(ctx context.Context) (*HeaderStream, error)
	// BestHeaders streams the headers of new best blocks
	BestHeaders(ctx context.Context) (*HeaderStream, error)
	// FinalizedHeaders streams the headers of newly finalized blocks
	FinalizedHeaders(ctx context.Context) (*HeaderStream, error)
	// Close tears the backend down, ending every stream it produced
	Close() error
}
