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

package gosubstrate_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gosubstrate "github.com/blinklabs-io/gosubstrate"
	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/internal/test/rpcmock"
	"github.com/blinklabs-io/gosubstrate/legacy"
	"github.com/blinklabs-io/gosubstrate/rpc"
	"go.uber.org/goleak"
)

type testInnerFunc func(*testing.T, *rpcmock.Server, *gosubstrate.Client)

// runTest connects a transport client to a mock node and hands it to the
// client under test via WithRPCClient. The client takes ownership of the
// transport on a successful Dial, and transport Close is idempotent, so
// closing both below is safe in either outcome
func runTest(
	t *testing.T,
	conversations []rpcmock.Conversation,
	options []gosubstrate.ClientOptionFunc,
	innerFunc testInnerFunc,
) {
	defer goleak.VerifyNone(t)
	mockServer := rpcmock.NewServer(conversations...)
	defer mockServer.Close()
	rpcClient, err := rpc.NewClient(
		rpc.WithEndpoints(mockServer.URL()),
		rpc.WithRetryDelay(time.Millisecond, 10*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("unexpected error when creating transport client: %s", err)
	}
	dialCtx, dialCancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer dialCancel()
	if err := rpcClient.Dial(dialCtx); err != nil {
		t.Fatalf("unexpected error when connecting: %s", err)
	}
	options = append(
		[]gosubstrate.ClientOptionFunc{gosubstrate.WithRPCClient(rpcClient)},
		options...,
	)
	client, err := gosubstrate.NewClient(options...)
	if err != nil {
		t.Fatalf("unexpected error when creating client: %s", err)
	}
	innerFunc(t, mockServer, client)
	if err := client.Close(); err != nil {
		t.Fatalf("unexpected error when closing client: %s", err)
	}
	if err := rpcClient.Close(); err != nil {
		t.Fatalf("unexpected error when closing transport client: %s", err)
	}
	mockServer.Close()
	for err := range mockServer.ErrorChan() {
		t.Errorf("received unexpected mock error: %s", err)
	}
}

func testHash(b byte) chain.Hash {
	return chain.NewHash(bytes.Repeat([]byte{b}, chain.HashSize))
}

func dialContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClientDialChainHeadDetection(t *testing.T) {
	genesisHash := testHash(0x91)
	conversations := []rpcmock.Conversation{
		{
			rpcmock.ConversationEntryRequest{
				Method: "rpc_methods",
				Result: legacy.MethodsResponse{
					Methods: []string{
						"chainHead_v1_follow",
						"chainHead_v1_header",
						"chainSpec_v1_chainName",
						"chain_getBlockHash",
					},
				},
			},
			rpcmock.ConversationEntryRequest{
				Method: "chainSpec_v1_genesisHash",
				Result: genesisHash,
			},
			rpcmock.ConversationEntryRequest{
				Method: "chainSpec_v1_chainName",
				Result: "Westend",
			},
			rpcmock.ConversationEntryRequest{
				Method: "chainSpec_v1_properties",
				Result: map[string]any{
					"ss58Format":    42,
					"tokenDecimals": 12,
					"tokenSymbol":   "WND",
				},
			},
		},
	}
	runTest(
		t,
		conversations,
		nil,
		func(t *testing.T, mockServer *rpcmock.Server, client *gosubstrate.Client) {
			if err := client.Dial(dialContext(t)); err != nil {
				t.Fatalf("unexpected error when dialing: %s", err)
			}
			if client.GenesisHash() != genesisHash {
				t.Fatalf(
					"did not receive expected genesis hash: got %s, wanted %s",
					client.GenesisHash(),
					genesisHash,
				)
			}
			if client.ChainName() != "Westend" {
				t.Fatalf(
					"did not receive expected chain name: got %q",
					client.ChainName(),
				)
			}
			if symbol := client.Properties()["tokenSymbol"]; symbol != "WND" {
				t.Fatalf(
					"did not receive expected token symbol: got %v",
					symbol,
				)
			}
			if client.Backend() == nil {
				t.Fatal("expected a backend after dialing")
			}
			if client.RPC() == nil {
				t.Fatal("expected a transport client after dialing")
			}
			// A second Dial on a live client must be refused
			err := client.Dial(dialContext(t))
			if err == nil {
				t.Fatal("expected error when dialing twice, got none")
			}
		},
	)
}

func TestClientDialLegacyDetection(t *testing.T) {
	genesisHash := testHash(0x42)
	conversations := []rpcmock.Conversation{
		{
			rpcmock.ConversationEntryRequest{
				Method: "rpc_methods",
				Result: legacy.MethodsResponse{
					Methods: []string{
						"chain_getBlockHash",
						"chain_getHeader",
						"state_getStorage",
					},
				},
			},
			rpcmock.ConversationEntryRequest{
				Method: "chain_getBlockHash",
				Params: []any{"0x0"},
				Result: genesisHash,
			},
			rpcmock.ConversationEntryRequest{
				Method: "system_chain",
				Result: "Development",
			},
			rpcmock.ConversationEntryRequest{
				Method: "system_properties",
				Result: map[string]any{
					"ss58Format":    42,
					"tokenDecimals": 10,
					"tokenSymbol":   "UNIT",
				},
			},
		},
	}
	runTest(
		t,
		conversations,
		nil,
		func(t *testing.T, mockServer *rpcmock.Server, client *gosubstrate.Client) {
			if err := client.Dial(dialContext(t)); err != nil {
				t.Fatalf("unexpected error when dialing: %s", err)
			}
			if client.GenesisHash() != genesisHash {
				t.Fatalf(
					"did not receive expected genesis hash: got %s, wanted %s",
					client.GenesisHash(),
					genesisHash,
				)
			}
			if client.ChainName() != "Development" {
				t.Fatalf(
					"did not receive expected chain name: got %q",
					client.ChainName(),
				)
			}
		},
	)
}

func TestClientDialGenesisMismatch(t *testing.T) {
	conversations := []rpcmock.Conversation{
		{
			rpcmock.ConversationEntryRequest{
				Method: "chain_getBlockHash",
				Params: []any{"0x0"},
				Result: testHash(0x99),
			},
			rpcmock.ConversationEntryRequest{
				Method: "system_chain",
				Result: "Polkadot",
			},
			rpcmock.ConversationEntryRequest{
				Method: "system_properties",
				Result: map[string]any{},
			},
		},
	}
	options := []gosubstrate.ClientOptionFunc{
		gosubstrate.WithNetwork(gosubstrate.NetworkPolkadot),
		gosubstrate.WithBackendKind(gosubstrate.BackendLegacy),
	}
	runTest(
		t,
		conversations,
		options,
		func(t *testing.T, mockServer *rpcmock.Server, client *gosubstrate.Client) {
			err := client.Dial(dialContext(t))
			if err == nil {
				t.Fatal("expected error when dialing, got none")
			}
			var mismatchErr gosubstrate.GenesisMismatchError
			if !errors.As(err, &mismatchErr) {
				t.Fatalf("did not receive expected error type: got %s", err)
			}
			if mismatchErr.Expected != gosubstrate.NetworkPolkadot.GenesisHash {
				t.Fatalf(
					"did not receive expected hash in error: got %s",
					mismatchErr.Expected,
				)
			}
			if mismatchErr.Got != testHash(0x99) {
				t.Fatalf(
					"did not receive node hash in error: got %s",
					mismatchErr.Got,
				)
			}
		},
	)
}

func TestClientDialChainNameMismatch(t *testing.T) {
	conversations := []rpcmock.Conversation{
		{
			rpcmock.ConversationEntryRequest{
				Method: "chain_getBlockHash",
				Params: []any{"0x0"},
				Result: testHash(0x42),
			},
			rpcmock.ConversationEntryRequest{
				Method: "system_chain",
				Result: "Development",
			},
			rpcmock.ConversationEntryRequest{
				Method: "system_properties",
				Result: map[string]any{},
			},
		},
	}
	options := []gosubstrate.ClientOptionFunc{
		gosubstrate.WithChainSpec(&gosubstrate.ChainSpec{Name: "Westend"}),
		gosubstrate.WithBackendKind(gosubstrate.BackendLegacy),
	}
	runTest(
		t,
		conversations,
		options,
		func(t *testing.T, mockServer *rpcmock.Server, client *gosubstrate.Client) {
			err := client.Dial(dialContext(t))
			if err == nil {
				t.Fatal("expected error when dialing, got none")
			}
			var mismatchErr gosubstrate.ChainNameMismatchError
			if !errors.As(err, &mismatchErr) {
				t.Fatalf("did not receive expected error type: got %s", err)
			}
			if mismatchErr.Expected != "Westend" ||
				mismatchErr.Got != "Development" {
				t.Fatalf("did not receive expected error detail: %s", err)
			}
		},
	)
}

func TestClientNoEndpoints(t *testing.T) {
	defer goleak.VerifyNone(t)
	client, err := gosubstrate.NewClient()
	if err != nil {
		t.Fatalf("unexpected error when creating client: %s", err)
	}
	err = client.Dial(dialContext(t))
	if !errors.Is(err, gosubstrate.ErrNoEndpoints) {
		t.Fatalf("did not receive expected error: got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("unexpected error when closing client: %s", err)
	}
}

func TestClientInvalidBackendKind(t *testing.T) {
	_, err := gosubstrate.NewClient(
		gosubstrate.WithBackendKind(gosubstrate.BackendKind(42)),
	)
	if err == nil {
		t.Fatal("expected error when creating client, got none")
	}
	if !strings.Contains(err.Error(), "unknown backend kind") {
		t.Fatalf("did not receive expected error: got %s", err)
	}
}

func TestClientDoubleClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	client, err := gosubstrate.NewClient()
	if err != nil {
		t.Fatalf("unexpected error when creating client: %s", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("unexpected error on first close: %s", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %s", err)
	}
}

func TestBackendKindString(t *testing.T) {
	testDefs := []struct {
		kind     gosubstrate.BackendKind
		expected string
	}{
		{gosubstrate.BackendAutoDetect, "auto-detect"},
		{gosubstrate.BackendChainHead, "chain-head"},
		{gosubstrate.BackendLegacy, "legacy"},
	}
	for _, testDef := range testDefs {
		if testDef.kind.String() != testDef.expected {
			t.Fatalf(
				"did not receive expected string: got %q, wanted %q",
				testDef.kind.String(),
				testDef.expected,
			)
		}
	}
}
