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

// Package chainhead implements the chainHead flavor of the node RPC
// interface: a follow subscription that reports chain progress, explicit
// block pinning, and asynchronous per-block operations multiplexed over the
// follow session
package chainhead

import (
	"log/slog"
	"time"
)

// ProtocolName is used in log output
const ProtocolName = "chain-head"

// Method names
const (
	MethodFollow        = "chainHead_v1_follow"
	MethodUnfollow      = "chainHead_v1_unfollow"
	MethodHeader        = "chainHead_v1_header"
	MethodBody          = "chainHead_v1_body"
	MethodCall          = "chainHead_v1_call"
	MethodStorage       = "chainHead_v1_storage"
	MethodContinue      = "chainHead_v1_continue"
	MethodStopOperation = "chainHead_v1_stopOperation"
	MethodUnpin         = "chainHead_v1_unpin"

	MethodSubmitAndWatch = "transactionWatch_v1_submitAndWatch"
	MethodUnwatch        = "transactionWatch_v1_unwatch"

	MethodChainSpecChainName   = "chainSpec_v1_chainName"
	MethodChainSpecGenesisHash = "chainSpec_v1_genesisHash"
	MethodChainSpecProperties  = "chainSpec_v1_properties"
)

// SessionState is one step in a follow session's lifecycle
type SessionState struct {
	Id   uint
	Name string
}

func (s SessionState) String() string {
	return s.Name
}

// Session lifecycle states
var (
	SessionStateUnfollowed = SessionState{Id: 1, Name: "Unfollowed"}
	SessionStateFollowing  = SessionState{Id: 2, Name: "Following"}
	SessionStateStopped    = SessionState{Id: 3, Name: "Stopped"}
)

// sessionStateTransitions enumerates the legal lifecycle changes. Stopped is
// terminal; following again means creating a new session with a fresh pinned
// set
var sessionStateTransitions = map[SessionState][]SessionState{
	SessionStateUnfollowed: {
		SessionStateFollowing,
		SessionStateStopped,
	},
	SessionStateFollowing: {
		SessionStateStopped,
	},
	SessionStateStopped: {},
}

const (
	DefaultOperationTimeout   = 60 * time.Second
	DefaultTransactionTimeout = 240 * time.Second
	DefaultEventQueueLimit    = 256

	// unpinTimeout bounds the background unpin batches
	unpinTimeout = 10 * time.Second

	// operationRetryLimit caps how many times an operation is re-sent when
	// the server reports limitReached
	operationRetryLimit = 10
)

// Config is used to configure the chainHead client behavior
type Config struct {
	Logger             *slog.Logger
	FollowRuntime      bool
	RetentionWindow    uint32
	OperationTimeout   time.Duration
	TransactionTimeout time.Duration
	EventQueueLimit    int
}

// NewConfig returns a new chainHead client config with the provided options
// applied
func NewConfig(options ...ChainHeadOptionFunc) Config {
	c := Config{
		FollowRuntime:      true,
		OperationTimeout:   DefaultOperationTimeout,
		TransactionTimeout: DefaultTransactionTimeout,
		EventQueueLimit:    DefaultEventQueueLimit,
	}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// ChainHeadOptionFunc describes a function used to set chainHead client
// options
type ChainHeadOptionFunc func(*Config)

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) ChainHeadOptionFunc {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithFollowRuntime specifies whether follow sessions report runtime
// information alongside blocks. The backend needs this enabled (the default)
// to answer runtime version queries
func WithFollowRuntime(followRuntime bool) ChainHeadOptionFunc {
	return func(c *Config) {
		c.FollowRuntime = followRuntime
	}
}

// WithRetentionWindow caps how many finalized blocks stay pinned. Finalized
// blocks that fall out of the window are unpinned once no block ref holds
// them. Zero (the default) retains pins for the whole session
func WithRetentionWindow(window uint32) ChainHeadOptionFunc {
	return func(c *Config) {
		c.RetentionWindow = window
	}
}

// WithOperationTimeout specifies the deadline applied to per-block operations
// when the caller's context does not carry one
func WithOperationTimeout(timeout time.Duration) ChainHeadOptionFunc {
	return func(c *Config) {
		c.OperationTimeout = timeout
	}
}

// WithTransactionTimeout specifies the overall budget for a submitted
// transaction to reach a finalized block before the watch is abandoned
func WithTransactionTimeout(timeout time.Duration) ChainHeadOptionFunc {
	return func(c *Config) {
		c.TransactionTimeout = timeout
	}
}

// WithEventQueueLimit specifies how many events may queue per subscriber
// before the subscriber is dropped for falling behind
func WithEventQueueLimit(limit int) ChainHeadOptionFunc {
	return func(c *Config) {
		c.EventQueueLimit = limit
	}
}
