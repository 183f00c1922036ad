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
	"context"
	"log/slog"

	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/rpc"
)

// Client provides typed access to the legacy RPC methods over a shared RPC
// client. Optional block hash arguments are pointers; passing nil asks the
// node to answer against its current best block
type Client struct {
	config    *Config
	rpcClient *rpc.Client
	logger    *slog.Logger
}

// NewClient returns a new legacy client wrapping the provided RPC client
func NewClient(rpcClient *rpc.Client, cfg *Config) *Client {
	if cfg == nil {
		tmpCfg := NewConfig()
		cfg = &tmpCfg
	}
	// Provide our own defaults for various settings if not specified
	if cfg.StoragePageSize == 0 {
		cfg.StoragePageSize = DefaultStoragePageSize
	}
	c := &Client{
		config:    cfg,
		rpcClient: rpcClient,
		logger:    cfg.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Header fetches a block header
func (c *Client) Header(
	ctx context.Context,
	blockHash *chain.Hash,
) (*chain.Header, error) {
	var header *chain.Header
	err := c.rpcClient.Call(
		ctx,
		MethodChainGetHeader,
		[]any{blockHash},
		&header,
	)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, ErrBlockNotFound
	}
	return header, nil
}

// Block fetches a block's header, body, and justifications
func (c *Client) Block(
	ctx context.Context,
	blockHash *chain.Hash,
) (*BlockDetails, error) {
	var details *BlockDetails
	err := c.rpcClient.Call(
		ctx,
		MethodChainGetBlock,
		[]any{blockHash},
		&details,
	)
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, ErrBlockNotFound
	}
	return details, nil
}

// BlockHash returns the hash of the block at the given height on the best
// chain. A nil number means the current best block
func (c *Client) BlockHash(
	ctx context.Context,
	number *NumberOrHex,
) (chain.Hash, error) {
	var blockHash *chain.Hash
	err := c.rpcClient.Call(
		ctx,
		MethodChainGetBlockHash,
		[]any{number},
		&blockHash,
	)
	if err != nil {
		return chain.Hash{}, err
	}
	if blockHash == nil {
		return chain.Hash{}, ErrBlockNotFound
	}
	return *blockHash, nil
}

// FinalizedHead returns the hash of the most recently finalized block
func (c *Client) FinalizedHead(ctx context.Context) (chain.Hash, error) {
	var blockHash chain.Hash
	err := c.rpcClient.Call(
		ctx,
		MethodChainGetFinalizedHead,
		nil,
		&blockHash,
	)
	if err != nil {
		return chain.Hash{}, err
	}
	return blockHash, nil
}

// Storage fetches the value of a storage key. A nil result with no error
// means the key has no value at that block
func (c *Client) Storage(
	ctx context.Context,
	key chain.Bytes,
	blockHash *chain.Hash,
) (chain.Bytes, error) {
	var value *chain.Bytes
	err := c.rpcClient.Call(
		ctx,
		MethodStateGetStorage,
		[]any{key, blockHash},
		&value,
	)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	return *value, nil
}

// KeysPaged returns up to count storage keys under a prefix in lexicographic
// order, resuming after startKey when one is given
func (c *Client) KeysPaged(
	ctx context.Context,
	prefix chain.Bytes,
	count uint32,
	startKey chain.Bytes,
	blockHash *chain.Hash,
) ([]chain.Bytes, error) {
	params := []any{prefix, count, nil, blockHash}
	if startKey != nil {
		params[2] = startKey
	}
	var keys []chain.Bytes
	err := c.rpcClient.Call(ctx, MethodStateGetKeysPaged, params, &keys)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// QueryStorageAt returns the values of a batch of storage keys at a block
func (c *Client) QueryStorageAt(
	ctx context.Context,
	keys []chain.Bytes,
	blockHash *chain.Hash,
) ([]StorageChangeSet, error) {
	var changeSets []StorageChangeSet
	err := c.rpcClient.Call(
		ctx,
		MethodStateQueryStorageAt,
		[]any{keys, blockHash},
		&changeSets,
	)
	if err != nil {
		return nil, err
	}
	return changeSets, nil
}

// Metadata fetches the encoded runtime metadata blob
func (c *Client) Metadata(
	ctx context.Context,
	blockHash *chain.Hash,
) (chain.Bytes, error) {
	var metadata chain.Bytes
	err := c.rpcClient.Call(
		ctx,
		MethodStateGetMetadata,
		[]any{blockHash},
		&metadata,
	)
	if err != nil {
		return nil, err
	}
	return metadata, nil
}

// RuntimeVersion fetches the runtime version at a block
func (c *Client) RuntimeVersion(
	ctx context.Context,
	blockHash *chain.Hash,
) (*chain.RuntimeVersion, error) {
	var version chain.RuntimeVersion
	err := c.rpcClient.Call(
		ctx,
		MethodStateGetRuntimeVersion,
		[]any{blockHash},
		&version,
	)
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// Call executes a runtime API function at a block and returns its opaque
// result
func (c *Client) Call(
	ctx context.Context,
	function string,
	args chain.Bytes,
	blockHash *chain.Hash,
) (chain.Bytes, error) {
	var output chain.Bytes
	err := c.rpcClient.Call(
		ctx,
		MethodStateCall,
		[]any{function, args, blockHash},
		&output,
	)
	if err != nil {
		return nil, err
	}
	return output, nil
}

// SubmitExtrinsic submits an extrinsic to the node's pool and returns its
// hash. Use WatchExtrinsic to follow what happens to it afterward
func (c *Client) SubmitExtrinsic(
	ctx context.Context,
	extrinsic chain.Bytes,
) (chain.Hash, error) {
	var txHash chain.Hash
	err := c.rpcClient.Call(
		ctx,
		MethodAuthorSubmitExtrinsic,
		[]any{extrinsic},
		&txHash,
	)
	if err != nil {
		return chain.Hash{}, err
	}
	return txHash, nil
}

// SystemHealth reports the node's sync and peer state
func (c *Client) SystemHealth(ctx context.Context) (*SystemHealth, error) {
	var health SystemHealth
	err := c.rpcClient.Call(ctx, MethodSystemHealth, nil, &health)
	if err != nil {
		return nil, err
	}
	return &health, nil
}

// SystemChain returns the name of the chain the node is on
func (c *Client) SystemChain(ctx context.Context) (string, error) {
	var name string
	err := c.rpcClient.Call(ctx, MethodSystemChain, nil, &name)
	if err != nil {
		return "", err
	}
	return name, nil
}

// SystemName returns the node's implementation name
func (c *Client) SystemName(ctx context.Context) (string, error) {
	var name string
	err := c.rpcClient.Call(ctx, MethodSystemName, nil, &name)
	if err != nil {
		return "", err
	}
	return name, nil
}

// SystemVersion returns the node's implementation version
func (c *Client) SystemVersion(ctx context.Context) (string, error) {
	var version string
	err := c.rpcClient.Call(ctx, MethodSystemVersion, nil, &version)
	if err != nil {
		return "", err
	}
	return version, nil
}

// SystemProperties returns the chain's self-reported properties
func (c *Client) SystemProperties(
	ctx context.Context,
) (SystemProperties, error) {
	var properties SystemProperties
	err := c.rpcClient.Call(ctx, MethodSystemProperties, nil, &properties)
	if err != nil {
		return nil, err
	}
	return properties, nil
}

// AccountNextIndex returns the next transaction index (nonce) for an
// account, taking pool contents into account
func (c *Client) AccountNextIndex(
	ctx context.Context,
	account chain.Address,
) (uint64, error) {
	var index uint64
	err := c.rpcClient.Call(
		ctx,
		MethodSystemAccountNextIndex,
		[]any{account},
		&index,
	)
	if err != nil {
		return 0, err
	}
	return index, nil
}

// RpcMethods returns the names of the methods the node serves. Useful for
// probing which interface generations are available
func (c *Client) RpcMethods(ctx context.Context) (*MethodsResponse, error) {
	var methods MethodsResponse
	err := c.rpcClient.Call(ctx, MethodRpcMethods, nil, &methods)
	if err != nil {
		return nil, err
	}
	return &methods, nil
}

// SubscribeNewHeads subscribes to the headers of new best blocks
func (c *Client) SubscribeNewHeads(
	ctx context.Context,
) (*HeaderSubscription, error) {
	sub, err := c.rpcClient.Subscribe(
		ctx,
		MethodChainSubscribeNewHeads,
		MethodChainUnsubscribeNewHeads,
		nil,
	)
	if err != nil {
		return nil, err
	}
	c.logger.Debug(
		"subscribed to best block headers",
		"component", "legacy",
		"subscription_id", sub.ID(),
	)
	return newHeaderSubscription(sub), nil
}

// SubscribeAllHeads subscribes to the headers of all imported blocks
func (c *Client) SubscribeAllHeads(
	ctx context.Context,
) (*HeaderSubscription, error) {
	sub, err := c.rpcClient.Subscribe(
		ctx,
		MethodChainSubscribeAllHeads,
		MethodChainUnsubscribeAllHeads,
		nil,
	)
	if err != nil {
		return nil, err
	}
	c.logger.Debug(
		"subscribed to all block headers",
		"component", "legacy",
		"subscription_id", sub.ID(),
	)
	return newHeaderSubscription(sub), nil
}

// SubscribeFinalizedHeads subscribes to the headers of finalized blocks.
// When several blocks finalize at once the node announces only the newest
// one, so consumers wanting every header must fetch the skipped ancestors
// themselves
func (c *Client) SubscribeFinalizedHeads(
	ctx context.Context,
) (*HeaderSubscription, error) {
	sub, err := c.rpcClient.Subscribe(
		ctx,
		MethodChainSubscribeFinalizedHeads,
		MethodChainUnsubscribeFinalizedHeads,
		nil,
	)
	if err != nil {
		return nil, err
	}
	c.logger.Debug(
		"subscribed to finalized block headers",
		"component", "legacy",
		"subscription_id", sub.ID(),
	)
	return newHeaderSubscription(sub), nil
}

// SubscribeRuntimeVersion subscribes to runtime version changes. The first
// notification reports the version current at subscription time
func (c *Client) SubscribeRuntimeVersion(
	ctx context.Context,
) (*RuntimeVersionSubscription, error) {
	sub, err := c.rpcClient.Subscribe(
		ctx,
		MethodStateSubscribeRuntimeVersion,
		MethodStateUnsubscribeRuntimeVersion,
		nil,
	)
	if err != nil {
		return nil, err
	}
	c.logger.Debug(
		"subscribed to runtime version",
		"component", "legacy",
		"subscription_id", sub.ID(),
	)
	return newRuntimeVersionSubscription(sub), nil
}

// WatchExtrinsic submits an extrinsic and subscribes to its pool status
// updates. The subscription is not re-established after a reconnect since
// that would submit the extrinsic a second time; a lost connection ends the
// watch instead
func (c *Client) WatchExtrinsic(
	ctx context.Context,
	extrinsic chain.Bytes,
) (*TransactionStatusSubscription, error) {
	sub, err := c.rpcClient.Subscribe(
		ctx,
		MethodAuthorSubmitAndWatchExtrinsic,
		MethodAuthorUnwatchExtrinsic,
		[]any{extrinsic},
		rpc.WithResubscribe(false),
	)
	if err != nil {
		return nil, err
	}
	c.logger.Debug(
		"watching extrinsic",
		"component", "legacy",
		"subscription_id", sub.ID(),
	)
	return newTransactionStatusSubscription(sub), nil
}
