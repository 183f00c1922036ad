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

// Package legacy implements the original flavor of the node RPC interface:
// stateless request/response methods plus simple subscription streams. There
// is no block pinning; any block the node still has is fetchable at any time
package legacy

import (
	"log/slog"
)

// ProtocolName is used in log output
const ProtocolName = "legacy"

// Method names
const (
	MethodChainGetHeader        = "chain_getHeader"
	MethodChainGetBlock         = "chain_getBlock"
	MethodChainGetBlockHash     = "chain_getBlockHash"
	MethodChainGetFinalizedHead = "chain_getFinalizedHead"

	MethodChainSubscribeNewHeads         = "chain_subscribeNewHeads"
	MethodChainUnsubscribeNewHeads       = "chain_unsubscribeNewHeads"
	MethodChainSubscribeAllHeads         = "chain_subscribeAllHeads"
	MethodChainUnsubscribeAllHeads       = "chain_unsubscribeAllHeads"
	MethodChainSubscribeFinalizedHeads   = "chain_subscribeFinalizedHeads"
	MethodChainUnsubscribeFinalizedHeads = "chain_unsubscribeFinalizedHeads"

	MethodStateGetStorage                = "state_getStorage"
	MethodStateGetKeysPaged              = "state_getKeysPaged"
	MethodStateQueryStorageAt            = "state_queryStorageAt"
	MethodStateGetMetadata               = "state_getMetadata"
	MethodStateGetRuntimeVersion         = "state_getRuntimeVersion"
	MethodStateSubscribeRuntimeVersion   = "state_subscribeRuntimeVersion"
	MethodStateUnsubscribeRuntimeVersion = "state_unsubscribeRuntimeVersion"
	MethodStateCall                      = "state_call"

	MethodAuthorSubmitExtrinsic         = "author_submitExtrinsic"
	MethodAuthorSubmitAndWatchExtrinsic = "author_submitAndWatchExtrinsic"
	MethodAuthorUnwatchExtrinsic        = "author_unwatchExtrinsic"

	MethodSystemHealth           = "system_health"
	MethodSystemChain            = "system_chain"
	MethodSystemName             = "system_name"
	MethodSystemVersion          = "system_version"
	MethodSystemProperties       = "system_properties"
	MethodSystemAccountNextIndex = "system_accountNextIndex"

	MethodRpcMethods = "rpc_methods"
)

const (
	// DefaultStoragePageSize is how many keys each state_getKeysPaged request
	// asks for while iterating storage
	DefaultStoragePageSize = 64
)

// Config is used to configure the legacy client behavior
type Config struct {
	Logger          *slog.Logger
	StoragePageSize uint32
}

// NewConfig returns a new legacy client config with the provided options
// applied
func NewConfig(options ...LegacyOptionFunc) Config {
	c := Config{
		StoragePageSize: DefaultStoragePageSize,
	}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// LegacyOptionFunc describes a function used to set legacy client options
type LegacyOptionFunc func(*Config)

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) LegacyOptionFunc {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithStoragePageSize specifies how many keys each storage iteration page
// asks the node for when the caller does not choose a page size
func WithStoragePageSize(pageSize uint32) LegacyOptionFunc {
	return func(c *Config) {
		c.StoragePageSize = pageSize
	}
}
