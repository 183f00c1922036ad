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
	"log/slog"

	"github.com/blinklabs-io/gosubstrate/rpc"
)

// Client provides chainHead protocol access over a shared RPC client. It is
// cheap and carries no state of its own; all per-subscription state lives in
// the Session returned by Follow
type Client struct {
	config    *Config
	rpcClient *rpc.Client
	logger    *slog.Logger
}

// NewClient returns a new chainHead client wrapping the provided RPC client
func NewClient(rpcClient *rpc.Client, cfg *Config) *Client {
	if cfg == nil {
		tmpCfg := NewConfig()
		cfg = &tmpCfg
	}
	// Provide our own defaults for various settings if not specified
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = DefaultOperationTimeout
	}
	if cfg.TransactionTimeout == 0 {
		cfg.TransactionTimeout = DefaultTransactionTimeout
	}
	if cfg.EventQueueLimit <= 0 {
		cfg.EventQueueLimit = DefaultEventQueueLimit
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

// Follow starts a new follow subscription and returns the Session managing
// it. The subscription is not resubscribed across reconnects since the server
// state backing it (pins and operations) is lost with the connection; callers
// needing a continuous view should start a fresh session when the returned
// one ends
func (c *Client) Follow(ctx context.Context) (*Session, error) {
	s := newSession(c)
	sub, err := c.rpcClient.Subscribe(
		ctx,
		MethodFollow,
		MethodUnfollow,
		[]any{c.config.FollowRuntime},
		rpc.WithResubscribe(false),
	)
	if err != nil {
		return nil, err
	}
	s.rpcSub = sub
	s.followId = sub.ID()
	s.transition(SessionStateFollowing)
	c.logger.Debug(
		"following chain head",
		"component", "chainhead",
		"subscription_id", s.followId,
		"with_runtime", c.config.FollowRuntime,
	)
	go s.eventLoop()
	return s, nil
}
