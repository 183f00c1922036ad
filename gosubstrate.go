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

// Package gosubstrate implements support for interacting with
// Substrate-based blockchain nodes over their JSON-RPC interface.
//
// Nodes speak one of two interface generations: the chainHead family with
// explicit block pinning, or the older stateless legacy methods. A Client
// connects over a reconnecting websocket, detects which generation the node
// serves, and exposes the chain through the same backend capability set
// either way.
//
// This package is the main entry point into this library. The other packages
// can be used outside of this one, but it's not a primary design goal.
package gosubstrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/gosubstrate/backend"
	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/chainhead"
	"github.com/blinklabs-io/gosubstrate/legacy"
	"github.com/blinklabs-io/gosubstrate/rpc"
)

// BackendKind selects which node interface generation backs a Client
type BackendKind int

const (
	// BackendAutoDetect probes the node's method list and picks the newest
	// generation it serves
	BackendAutoDetect BackendKind = 0
	// BackendChainHead forces the chainHead interface
	BackendChainHead BackendKind = 1
	// BackendLegacy forces the legacy interface
	BackendLegacy BackendKind = 2
)

func (k BackendKind) String() string {
	switch k {
	case BackendChainHead:
		return chainhead.ProtocolName
	case BackendLegacy:
		return legacy.ProtocolName
	}
	return "auto-detect"
}

// ErrNoEndpoints is returned by Dial when neither an endpoint nor a network
// with public endpoints was configured
var ErrNoEndpoints = errors.New("no endpoints configured")

// GenesisMismatchError is returned by Dial when the node reports a different
// genesis hash than the configured network expects, meaning the endpoint
// serves some other chain
type GenesisMismatchError struct {
	Expected chain.Hash
	Got      chain.Hash
}

func (e GenesisMismatchError) Error() string {
	return fmt.Sprintf(
		"node genesis hash %s does not match expected %s",
		e.Got,
		e.Expected,
	)
}

// ChainNameMismatchError is returned by Dial when the node reports a
// different chain name than the configured chain spec expects
type ChainNameMismatchError struct {
	Expected string
	Got      string
}

func (e ChainNameMismatchError) Error() string {
	return fmt.Sprintf(
		"node chain name %q does not match expected %q",
		e.Got,
		e.Expected,
	)
}

// The Client type is the top-level handle on a node: a reconnecting RPC
// client plus the backend matching the node's interface generation and the
// chain identity fetched at connect time
type Client struct {
	endpoints       []string
	network         Network
	chainSpec       *ChainSpec
	chainSpecFile   string
	backendKind     BackendKind
	logger          *slog.Logger
	connectTimeout  time.Duration
	requestTimeout  time.Duration
	keepAlivePeriod time.Duration
	maxReconnects   int
	followRuntime   bool
	retentionWindow uint32

	rpcClient    *rpc.Client
	ownsRPC      bool
	chainBackend backend.Backend
	genesisHash  chain.Hash
	chainName    string
	properties   map[string]any
	connected    bool
	onceClose    sync.Once
}

// NewClient returns a new Client object with the specified options. Call
// Dial to connect it
func NewClient(options ...ClientOptionFunc) (*Client, error) {
	c := &Client{
		backendKind:   BackendAutoDetect,
		followRuntime: true,
	}
	// Apply provided options functions
	for _, option := range options {
		option(c)
	}
	if c.backendKind != BackendAutoDetect &&
		c.backendKind != BackendChainHead &&
		c.backendKind != BackendLegacy {
		return nil, fmt.Errorf("unknown backend kind: %d", c.backendKind)
	}
	return c, nil
}

// New is an alias to NewClient
func New(options ...ClientOptionFunc) (*Client, error) {
	return NewClient(options...)
}

// Dial connects to the configured node, determines which interface
// generation it serves, and fetches and verifies the chain identity. An
// error is returned if the connection fails, a connection was already
// established, or the node turns out to be on the wrong chain
func (c *Client) Dial(ctx context.Context) error {
	if c.connected {
		return errors.New("a connection was already established")
	}
	if c.chainSpec == nil && c.chainSpecFile != "" {
		spec, err := NewChainSpecFromFile(c.chainSpecFile)
		if err != nil {
			return fmt.Errorf("load chain spec: %w", err)
		}
		c.chainSpec = spec
	}
	if c.rpcClient == nil {
		if err := c.dialRPC(ctx); err != nil {
			return err
		}
	}
	legacyCfg := legacy.NewConfig(c.legacyOptions()...)
	legacyClient := legacy.NewClient(c.rpcClient, &legacyCfg)
	kind, err := c.resolveBackendKind(ctx, legacyClient)
	if err != nil {
		c.teardown()
		return err
	}
	switch kind {
	case BackendChainHead:
		chainHeadCfg := chainhead.NewConfig(c.chainHeadOptions()...)
		c.chainBackend = chainhead.NewBackend(
			chainhead.NewClient(c.rpcClient, &chainHeadCfg),
		)
	case BackendLegacy:
		c.chainBackend = legacy.NewBackend(legacyClient)
	}
	if err := c.fetchIdentity(ctx, kind, legacyClient); err != nil {
		c.teardown()
		return fmt.Errorf("fetch chain identity: %w", err)
	}
	if err := c.verifyIdentity(); err != nil {
		c.teardown()
		return err
	}
	c.connected = true
	return nil
}

// dialRPC builds and connects the transport client from the configured
// endpoints, falling back to the network's public endpoints
func (c *Client) dialRPC(ctx context.Context) error {
	endpoints := c.endpoints
	if len(endpoints) == 0 {
		endpoints = c.network.PublicEndpoints
	}
	if len(endpoints) == 0 {
		return ErrNoEndpoints
	}
	rpcOptions := []rpc.ClientOptionFunc{rpc.WithEndpoints(endpoints...)}
	if c.logger != nil {
		rpcOptions = append(rpcOptions, rpc.WithLogger(c.logger))
	}
	if c.connectTimeout > 0 {
		rpcOptions = append(
			rpcOptions,
			rpc.WithConnectTimeout(c.connectTimeout),
		)
	}
	if c.requestTimeout > 0 {
		rpcOptions = append(
			rpcOptions,
			rpc.WithRequestTimeout(c.requestTimeout),
		)
	}
	if c.keepAlivePeriod > 0 {
		rpcOptions = append(
			rpcOptions,
			rpc.WithKeepAlivePeriod(c.keepAlivePeriod),
		)
	}
	if c.maxReconnects > 0 {
		rpcOptions = append(
			rpcOptions,
			rpc.WithMaxReconnectAttempts(c.maxReconnects),
		)
	}
	rpcClient, err := rpc.NewClient(rpcOptions...)
	if err != nil {
		return err
	}
	if err := rpcClient.Dial(ctx); err != nil {
		return err
	}
	c.rpcClient = rpcClient
	c.ownsRPC = true
	return nil
}

// resolveBackendKind returns the forced backend kind, or probes the node's
// method list to pick one
func (c *Client) resolveBackendKind(
	ctx context.Context,
	legacyClient *legacy.Client,
) (BackendKind, error) {
	if c.backendKind != BackendAutoDetect {
		return c.backendKind, nil
	}
	methods, err := legacyClient.RpcMethods(ctx)
	if err != nil {
		return 0, fmt.Errorf("probe node methods: %w", err)
	}
	kind := BackendLegacy
	if methods.Has(chainhead.MethodFollow) {
		kind = BackendChainHead
	}
	if c.logger != nil {
		c.logger.Debug(
			"detected node interface",
			"component", "client",
			"backend", kind.String(),
		)
	}
	return kind, nil
}

func (c *Client) legacyOptions() []legacy.LegacyOptionFunc {
	var options []legacy.LegacyOptionFunc
	if c.logger != nil {
		options = append(options, legacy.WithLogger(c.logger))
	}
	return options
}

func (c *Client) chainHeadOptions() []chainhead.ChainHeadOptionFunc {
	options := []chainhead.ChainHeadOptionFunc{
		chainhead.WithFollowRuntime(c.followRuntime),
		chainhead.WithRetentionWindow(c.retentionWindow),
	}
	if c.logger != nil {
		options = append(options, chainhead.WithLogger(c.logger))
	}
	return options
}

// fetchIdentity learns which chain the node is on: genesis hash through the
// backend, name and properties through the generation's native methods
func (c *Client) fetchIdentity(
	ctx context.Context,
	kind BackendKind,
	legacyClient *legacy.Client,
) error {
	genesisHash, err := c.chainBackend.GenesisHash(ctx)
	if err != nil {
		return err
	}
	c.genesisHash = genesisHash
	switch kind {
	case BackendChainHead:
		var chainName string
		err := c.rpcClient.Call(
			ctx,
			chainhead.MethodChainSpecChainName,
			nil,
			&chainName,
		)
		if err != nil {
			return err
		}
		c.chainName = chainName
		var properties map[string]any
		err = c.rpcClient.Call(
			ctx,
			chainhead.MethodChainSpecProperties,
			nil,
			&properties,
		)
		if err != nil {
			return err
		}
		c.properties = properties
	case BackendLegacy:
		chainName, err := legacyClient.SystemChain(ctx)
		if err != nil {
			return err
		}
		c.chainName = chainName
		properties, err := legacyClient.SystemProperties(ctx)
		if err != nil {
			return err
		}
		c.properties = properties
	}
	return nil
}

// verifyIdentity checks the fetched identity against whatever expectations
// were configured
func (c *Client) verifyIdentity() error {
	if c.network.GenesisHash != (chain.Hash{}) &&
		c.genesisHash != c.network.GenesisHash {
		return GenesisMismatchError{
			Expected: c.network.GenesisHash,
			Got:      c.genesisHash,
		}
	}
	if c.chainSpec != nil && c.chainSpec.Name != "" &&
		c.chainSpec.Name != c.chainName {
		return ChainNameMismatchError{
			Expected: c.chainSpec.Name,
			Got:      c.chainName,
		}
	}
	return nil
}

// teardown undoes a partial Dial. An injected transport client is left open
// since its lifecycle belongs to the caller until Dial succeeds
func (c *Client) teardown() {
	if c.chainBackend != nil {
		c.chainBackend.Close()
		c.chainBackend = nil
	}
	if c.ownsRPC && c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
		c.ownsRPC = false
	}
}

// Backend returns the chain backend. It is nil before Dial
func (c *Client) Backend() backend.Backend {
	return c.chainBackend
}

// RPC returns the underlying transport client for issuing raw calls
func (c *Client) RPC() *rpc.Client {
	return c.rpcClient
}

// GenesisHash returns the connected chain's genesis hash
func (c *Client) GenesisHash() chain.Hash {
	return c.genesisHash
}

// ChainName returns the connected chain's self-reported name
func (c *Client) ChainName() string {
	return c.chainName
}

// Properties returns the connected chain's self-reported properties, such as
// token symbol and SS58 address format
func (c *Client) Properties() map[string]any {
	return c.properties
}

// ErrorChan returns the channel carrying fatal asynchronous errors, such as
// an exhausted reconnection budget
func (c *Client) ErrorChan() <-chan error {
	if c.rpcClient == nil {
		return nil
	}
	return c.rpcClient.ErrorChan()
}

// Close shuts the client down, including an injected transport client
func (c *Client) Close() error {
	var err error
	c.onceClose.Do(func() {
		if c.chainBackend != nil {
			c.chainBackend.Close()
		}
		if c.rpcClient != nil {
			err = c.rpcClient.Close()
		}
	})
	return err
}
