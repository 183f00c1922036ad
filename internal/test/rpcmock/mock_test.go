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

package rpcmock

import (
	"context"
	"testing"

	"github.com/blinklabs-io/gosubstrate/rpc"
)

// Basic test of conversation mock functionality
func TestBasic(t *testing.T) {
	mockServer := NewServer(
		Conversation{
			ConversationEntryRequest{
				Method: "system_chain",
				Result: "Polkadot",
			},
		},
	)
	defer mockServer.Close()
	client, err := rpc.NewClient(
		rpc.WithEndpoints(mockServer.URL()),
	)
	if err != nil {
		t.Fatalf("unexpected error when creating client: %s", err)
	}
	if err := client.Dial(context.Background()); err != nil {
		t.Fatalf("unexpected error when connecting: %s", err)
	}
	var chainName string
	if err := client.Call(context.Background(), "system_chain", nil, &chainName); err != nil {
		t.Fatalf("unexpected error when calling: %s", err)
	}
	if chainName != "Polkadot" {
		t.Fatalf(
			"did not receive expected result: got %q, wanted %q",
			chainName,
			"Polkadot",
		)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("unexpected error when closing client: %s", err)
	}
	select {
	case err, ok := <-mockServer.ErrorChan():
		if ok && err != nil {
			t.Fatalf("received unexpected mock error: %s", err)
		}
	default:
	}
}
