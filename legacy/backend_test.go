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

package legacy_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blinklabs-io/gosubstrate/backend"
	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/internal/test/rpcmock"
	"github.com/blinklabs-io/gosubstrate/legacy"
)

func readHeaderUpdate(
	t *testing.T,
	stream *backend.HeaderStream,
) backend.HeaderUpdate {
	t.Helper()
	select {
	case update, ok := <-stream.Chan():
		if !ok {
			t.Fatalf("header stream closed unexpectedly")
		}
		return update
	case err := <-stream.Errors():
		t.Fatalf("received unexpected stream error: %s", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for header update")
	}
	return backend.HeaderUpdate{}
}

func readStorageEntries(
	t *testing.T,
	stream *backend.StorageStream,
) []backend.StorageEntry {
	t.Helper()
	var entries []backend.StorageEntry
	for {
		select {
		case entry, ok := <-stream.Chan():
			if !ok {
				select {
				case err := <-stream.Errors():
					t.Fatalf("received unexpected stream error: %s", err)
				default:
				}
				return entries
			}
			entries = append(entries, entry)
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for storage entry")
		}
	}
}

func readTransactionStatuses(
	t *testing.T,
	stream *backend.TransactionStatusStream,
) []backend.TransactionStatus {
	t.Helper()
	var statuses []backend.TransactionStatus
	for {
		select {
		case status, ok := <-stream.Chan():
			if !ok {
				select {
				case err := <-stream.Errors():
					t.Fatalf("received unexpected stream error: %s", err)
				default:
				}
				return statuses
			}
			statuses = append(statuses, status)
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for transaction status")
		}
	}
}

func readRuntimeVersion(
	t *testing.T,
	stream *backend.RuntimeVersionStream,
) *chain.RuntimeVersion {
	t.Helper()
	select {
	case version, ok := <-stream.Chan():
		if !ok {
			t.Fatalf("runtime version stream closed unexpectedly")
		}
		return version
	case err := <-stream.Errors():
		t.Fatalf("received unexpected stream error: %s", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for runtime version")
	}
	return nil
}

func TestBackendBlockOps(t *testing.T) {
	genesisHash := testHash(0x9f)
	blockHash := testHash(0x31)
	conversations := []rpcmock.Conversation{
		{
			rpcmock.ConversationEntryRequest{
				Method: "chain_getBlockHash",
				Params: []any{"0x0"},
				Result: testHashHex(0x9f),
			},
			rpcmock.ConversationEntryRequest{
				Method: "chain_getFinalizedHead",
				Result: testHashHex(0x31),
			},
			rpcmock.ConversationEntryRequest{
				Method: "chain_getHeader",
				Params: []any{testHashHex(0x31)},
				Result: testHeader(testHash(0x30), 1),
			},
			rpcmock.ConversationEntryRequest{
				Method: "chain_getBlock",
				Params: []any{testHashHex(0x31)},
				Result: legacy.BlockDetails{
					Block: legacy.Block{
						Header:     *testHeader(testHash(0x30), 1),
						Extrinsics: []chain.Bytes{{0x01, 0x02}},
					},
				},
			},
			rpcmock.ConversationEntryRequest{
				Method: "state_call",
				Params: []any{"Core_version", "0x", testHashHex(0x31)},
				Result: "0xff",
			},
			rpcmock.ConversationEntryRequest{
				Method: "chain_getFinalizedHead",
				Result: testHashHex(0x31),
			},
			rpcmock.ConversationEntryRequest{
				Method: "state_getRuntimeVersion",
				Params: []any{testHashHex(0x31)},
				Result: map[string]any{
					"specName":           "westend",
					"implName":           "parity-westend",
					"specVersion":        9430,
					"implVersion":        0,
					"transactionVersion": 24,
					"apis":               []any{},
				},
			},
		},
	}
	runTest(t, conversations, nil, func(t *testing.T, mockServer *rpcmock.Server, client *legacy.Client) {
		b := legacy.NewBackend(client)
		genesis, err := b.GenesisHash(context.Background())
		if err != nil {
			t.Fatalf("unexpected error when fetching genesis hash: %s", err)
		}
		if genesis != genesisHash {
			t.Fatalf("did not receive expected genesis hash: %s", genesis)
		}
		ref, err := b.LatestFinalizedBlock(context.Background())
		if err != nil {
			t.Fatalf(
				"unexpected error when fetching latest finalized: %s",
				err,
			)
		}
		if ref.Hash() != blockHash {
			t.Fatalf("did not receive expected block hash: %s", ref.Hash())
		}
		header, err := b.BlockHeader(context.Background(), ref.Hash())
		if err != nil {
			t.Fatalf("unexpected error when fetching header: %s", err)
		}
		if header.Number != 1 || header.ParentHash != testHash(0x30) {
			t.Fatalf("did not receive expected header: %+v", header)
		}
		body, err := b.BlockBody(context.Background(), ref.Hash())
		if err != nil {
			t.Fatalf("unexpected error when fetching body: %s", err)
		}
		if len(body) != 1 || !bytes.Equal(body[0], []byte{0x01, 0x02}) {
			t.Fatalf("did not receive expected body: %v", body)
		}
		output, err := b.Call(
			context.Background(),
			ref.Hash(),
			"Core_version",
			chain.Bytes{},
		)
		if err != nil {
			t.Fatalf("unexpected error when calling runtime: %s", err)
		}
		if !bytes.Equal(output, []byte{0xff}) {
			t.Fatalf("did not receive expected call output: %v", output)
		}
		version, err := b.CurrentRuntimeVersion(context.Background())
		if err != nil {
			t.Fatalf(
				"unexpected error when fetching runtime version: %s",
				err,
			)
		}
		if version.SpecVersion != 9430 {
			t.Fatalf("did not receive expected runtime version: %+v", version)
		}
		// Second fetch is answered from cache without touching the server
		cached, err := b.GenesisHash(context.Background())
		if err != nil {
			t.Fatalf("unexpected error when fetching genesis hash: %s", err)
		}
		if cached != genesisHash {
			t.Fatalf("did not receive expected genesis hash: %s", cached)
		}
		ref.Release()
		if err := b.Close(); err != nil {
			t.Fatalf("unexpected error when closing backend: %s", err)
		}
		if _, err := b.GenesisHash(context.Background()); !errors.Is(err, backend.ErrBackendClosed) {
			t.Fatalf("did not receive expected error: %s", err)
		}
		if _, err := b.LatestFinalizedBlock(context.Background()); !errors.Is(err, backend.ErrBackendClosed) {
			t.Fatalf("did not receive expected error: %s", err)
		}
	})
}

func TestBackendStorageValues(t *testing.T) {
	blockHash := testHash(0x51)
	conversations := []rpcmock.Conversation{
		{
			rpcmock.ConversationEntryRequest{
				Method: "state_getStorage",
				Params: []any{"0x0101", testHashHex(0x51)},
				Result: "0xaa",
			},
			// The second key has no value on chain
			rpcmock.ConversationEntryRequest{
				Method: "state_getStorage",
				Params: []any{"0x0102", testHashHex(0x51)},
				Result: nil,
			},
			rpcmock.ConversationEntryRequest{
				Method: "state_getStorage",
				Params: []any{"0x0103", testHashHex(0x51)},
				Result: "0xcc",
			},
		},
	}
	runTest(t, conversations, nil, func(t *testing.T, mockServer *rpcmock.Server, client *legacy.Client) {
		b := legacy.NewBackend(client)
		stream, err := b.StorageValues(
			context.Background(),
			blockHash,
			[]chain.Bytes{{0x01, 0x01}, {0x01, 0x02}, {0x01, 0x03}},
		)
		if err != nil {
			t.Fatalf("unexpected error when streaming storage: %s", err)
		}
		entries := readStorageEntries(t, stream)
		if len(entries) != 2 {
			t.Fatalf("did not receive expected entries: %+v", entries)
		}
		if !bytes.Equal(entries[0].Key, []byte{0x01, 0x01}) ||
			!bytes.Equal(entries[0].Value, []byte{0xaa}) {
			t.Fatalf("did not receive expected entry: %+v", entries[0])
		}
		if !bytes.Equal(entries[1].Key, []byte{0x01, 0x03}) ||
			!bytes.Equal(entries[1].Value, []byte{0xcc}) {
			t.Fatalf("did not receive expected entry: %+v", entries[1])
		}
		if err := b.Close(); err != nil {
			t.Fatalf("unexpected error when closing backend: %s", err)
		}
	})
}

// storageKeysRequest scripts one state_getKeysPaged exchange
func storageKeysRequest(
	count int,
	startKey any,
	blockHex string,
	keys ...string,
) rpcmock.ConversationEntryRequest {
	return rpcmock.ConversationEntryRequest{
		Method: "state_getKeysPaged",
		Params: []any{"0x01", count, startKey, blockHex},
		Result: keys,
	}
}

// storageQueryRequest scripts one state_queryStorageAt exchange returning
// value 0xa0+i for key i
func storageQueryRequest(
	blockHash chain.Hash,
	keys ...chain.Bytes,
) rpcmock.ConversationEntryRequest {
	changes := make([]legacy.StorageChange, 0, len(keys))
	for _, key := range keys {
		changes = append(changes, legacy.StorageChange{
			Key:   key,
			Value: chain.Bytes{0xa0 + key[len(key)-1]},
		})
	}
	return rpcmock.ConversationEntryRequest{
		Method: "state_queryStorageAt",
		Params: []any{keys, blockHash.String()},
		Result: []legacy.StorageChangeSet{
			{Block: blockHash, Changes: changes},
		},
	}
}

// Iterating the same prefix with different page sizes must produce the same
// entries in the same order, including when the node repeats the resume key
// at the start of a page
func TestBackendStorageIteratePageSizes(t *testing.T) {
	blockHash := testHash(0x52)
	blockHex := testHashHex(0x52)
	key1 := chain.Bytes{0x01, 0x01}
	key2 := chain.Bytes{0x01, 0x02}
	key3 := chain.Bytes{0x01, 0x03}
	conversations := []rpcmock.Conversation{
		{
			// Whole prefix in one page
			storageKeysRequest(3, nil, blockHex, "0x0101", "0x0102", "0x0103"),
			storageQueryRequest(blockHash, key1, key2, key3),
			storageKeysRequest(3, "0x0103", blockHex),
			// One key per page
			storageKeysRequest(1, nil, blockHex, "0x0101"),
			storageQueryRequest(blockHash, key1),
			storageKeysRequest(1, "0x0101", blockHex, "0x0102"),
			storageQueryRequest(blockHash, key2),
			storageKeysRequest(1, "0x0102", blockHex, "0x0103"),
			storageQueryRequest(blockHash, key3),
			storageKeysRequest(1, "0x0103", blockHex),
			// Pages that repeat the resume key as their first element
			storageKeysRequest(2, nil, blockHex, "0x0101", "0x0102"),
			storageQueryRequest(blockHash, key1, key2),
			storageKeysRequest(2, "0x0102", blockHex, "0x0102", "0x0103"),
			storageQueryRequest(blockHash, key3),
			storageKeysRequest(2, "0x0103", blockHex, "0x0103"),
		},
	}
	runTest(t, conversations, nil, func(t *testing.T, mockServer *rpcmock.Server, client *legacy.Client) {
		b := legacy.NewBackend(client)
		var results [][]backend.StorageEntry
		for _, pageSize := range []uint32{3, 1, 2} {
			stream, err := b.StorageIterate(
				context.Background(),
				blockHash,
				chain.Bytes{0x01},
				pageSize,
			)
			if err != nil {
				t.Fatalf("unexpected error when iterating storage: %s", err)
			}
			results = append(results, readStorageEntries(t, stream))
		}
		for _, entries := range results {
			if len(entries) != 3 {
				t.Fatalf("did not receive expected entries: %+v", entries)
			}
			for i, entry := range entries {
				if !bytes.Equal(entry.Key, results[0][i].Key) ||
					!bytes.Equal(entry.Value, results[0][i].Value) {
					t.Fatalf(
						"entries differ between page sizes: %+v vs %+v",
						entry,
						results[0][i],
					)
				}
			}
		}
		if err := b.Close(); err != nil {
			t.Fatalf("unexpected error when closing backend: %s", err)
		}
	})
}

func TestBackendAllHeaders(t *testing.T) {
	header1 := testHeader(testHash(0x40), 1)
	header2 := testHeader(header1.Hash(), 2)
	conversations := []rpcmock.Conversation{
		{
			rpcmock.ConversationEntryRequest{
				Method: "chain_subscribeAllHeads",
				Result: "a1",
			},
			notifyHeader("chain_allHead", "a1", header1),
			notifyHeader("chain_allHead", "a1", header2),
			rpcmock.ConversationEntryRequest{
				Method: "chain_unsubscribeAllHeads",
				Params: []any{"a1"},
				Result: true,
			},
		},
	}
	runTest(t, conversations, nil, func(t *testing.T, mockServer *rpcmock.Server, client *legacy.Client) {
		b := legacy.NewBackend(client)
		stream, err := b.AllHeaders(context.Background())
		if err != nil {
			t.Fatalf("unexpected error when streaming headers: %s", err)
		}
		update := readHeaderUpdate(t, stream)
		if update.Ref.Hash() != header1.Hash() || update.Header.Number != 1 {
			t.Fatalf("did not receive expected header update: %+v", update)
		}
		update.Ref.Release()
		update = readHeaderUpdate(t, stream)
		if update.Ref.Hash() != header2.Hash() || update.Header.Number != 2 {
			t.Fatalf("did not receive expected header update: %+v", update)
		}
		update.Ref.Release()
		stream.Stop()
		waitMockEntries(t, mockServer, 4)
		if err := b.Close(); err != nil {
			t.Fatalf("unexpected error when closing backend: %s", err)
		}
	})
}

func TestBackendBestHeaders(t *testing.T) {
	header1 := testHeader(testHash(0x40), 1)
	conversations := []rpcmock.Conversation{
		{
			rpcmock.ConversationEntryRequest{
				Method: "chain_subscribeNewHeads",
				Result: "h1",
			},
			notifyHeader("chain_newHead", "h1", header1),
			rpcmock.ConversationEntryRequest{
				Method: "chain_unsubscribeNewHeads",
				Params: []any{"h1"},
				Result: true,
			},
		},
	}
	runTest(t, conversations, nil, func(t *testing.T, mockServer *rpcmock.Server, client *legacy.Client) {
		b := legacy.NewBackend(client)
		stream, err := b.BestHeaders(context.Background())
		if err != nil {
			t.Fatalf("unexpected error when streaming headers: %s", err)
		}
		update := readHeaderUpdate(t, stream)
		if update.Ref.Hash() != header1.Hash() || update.Header.Number != 1 {
			t.Fatalf("did not receive expected header update: %+v", update)
		}
		update.Ref.Release()
		stream.Stop()
		waitMockEntries(t, mockServer, 3)
		if err := b.Close(); err != nil {
			t.Fatalf("unexpected error when closing backend: %s", err)
		}
	})
}

// When several blocks finalize at once the node announces only the newest,
// so the stream must fetch and deliver the skipped ancestors first. A
// re-announced height is delivered only once
func TestBackendFinalizedHeadersBackfill(t *testing.T) {
	header5 := testHeader(testHash(0x50), 5)
	header6 := testHeader(header5.Hash(), 6)
	header7 := testHeader(header6.Hash(), 7)
	header8 := testHeader(header7.Hash(), 8)
	conversations := []rpcmock.Conversation{
		{
			rpcmock.ConversationEntryRequest{
				Method: "chain_subscribeFinalizedHeads",
				Result: "f1",
			},
			notifyHeader("chain_finalizedHead", "f1", header5),
			// Heights 6 and 7 finalize together; only 7 is announced
			notifyHeader("chain_finalizedHead", "f1", header7),
			rpcmock.ConversationEntryRequest{
				Method: "chain_getHeader",
				Params: []any{header6.Hash().String()},
				Result: header6,
			},
			notifyHeader("chain_finalizedHead", "f1", header7),
			notifyHeader("chain_finalizedHead", "f1", header8),
			rpcmock.ConversationEntryRequest{
				Method: "chain_unsubscribeFinalizedHeads",
				Params: []any{"f1"},
				Result: true,
			},
		},
	}
	runTest(t, conversations, nil, func(t *testing.T, mockServer *rpcmock.Server, client *legacy.Client) {
		b := legacy.NewBackend(client)
		stream, err := b.FinalizedHeaders(context.Background())
		if err != nil {
			t.Fatalf("unexpected error when streaming headers: %s", err)
		}
		for i, expected := range []*chain.Header{
			header5,
			header6,
			header7,
			header8,
		} {
			update := readHeaderUpdate(t, stream)
			if update.Ref.Hash() != expected.Hash() ||
				update.Header.Number != expected.Number {
				t.Fatalf(
					"did not receive expected header update %d: %+v",
					i,
					update,
				)
			}
			update.Ref.Release()
		}
		stream.Stop()
		waitMockEntries(t, mockServer, 7)
		if err := b.Close(); err != nil {
			t.Fatalf("unexpected error when closing backend: %s", err)
		}
	})
}

func TestBackendSubmitTransaction(t *testing.T) {
	conversations := []rpcmock.Conversation{
		{
			rpcmock.ConversationEntryRequest{
				Method: "author_submitAndWatchExtrinsic",
				Params: []any{"0x0102"},
				Result: "w1",
			},
			rpcmock.ConversationEntryNotify{
				Method:         "author_extrinsicUpdate",
				SubscriptionId: "w1",
				Result:         "ready",
			},
			rpcmock.ConversationEntryNotify{
				Method:         "author_extrinsicUpdate",
				SubscriptionId: "w1",
				Result:         map[string]any{"broadcast": []string{"12D3KooWA"}},
			},
			rpcmock.ConversationEntryNotify{
				Method:         "author_extrinsicUpdate",
				SubscriptionId: "w1",
				Result:         map[string]any{"inBlock": testHashHex(0x71)},
			},
			// The including block fell off the best chain before finality
			rpcmock.ConversationEntryNotify{
				Method:         "author_extrinsicUpdate",
				SubscriptionId: "w1",
				Result:         map[string]any{"retracted": testHashHex(0x71)},
			},
			rpcmock.ConversationEntryNotify{
				Method:         "author_extrinsicUpdate",
				SubscriptionId: "w1",
				Result:         map[string]any{"inBlock": testHashHex(0x72)},
			},
			rpcmock.ConversationEntryNotify{
				Method:         "author_extrinsicUpdate",
				SubscriptionId: "w1",
				Result:         map[string]any{"finalized": testHashHex(0x72)},
			},
			rpcmock.ConversationEntryRequest{
				Method: "author_unwatchExtrinsic",
				Params: []any{"w1"},
				Result: true,
			},
		},
	}
	runTest(t, conversations, nil, func(t *testing.T, mockServer *rpcmock.Server, client *legacy.Client) {
		b := legacy.NewBackend(client)
		stream, err := b.SubmitTransaction(
			context.Background(),
			chain.Bytes{0x01, 0x02},
		)
		if err != nil {
			t.Fatalf("unexpected error when submitting transaction: %s", err)
		}
		statuses := readTransactionStatuses(t, stream)
		expected := []backend.TransactionStatus{
			{Kind: backend.TransactionStatusValidated},
			{Kind: backend.TransactionStatusBroadcasted},
			{
				Kind:  backend.TransactionStatusInBestBlock,
				Block: testHash(0x71),
			},
			{Kind: backend.TransactionStatusNoLongerInBestBlock},
			{
				Kind:  backend.TransactionStatusInBestBlock,
				Block: testHash(0x72),
			},
			{
				Kind:  backend.TransactionStatusInFinalizedBlock,
				Block: testHash(0x72),
			},
		}
		if len(statuses) != len(expected) {
			t.Fatalf("did not receive expected statuses: %+v", statuses)
		}
		for i, status := range statuses {
			if status != expected[i] {
				t.Fatalf(
					"did not receive expected status %d: %+v",
					i,
					status,
				)
			}
		}
		waitMockEntries(t, mockServer, 8)
		if err := b.Close(); err != nil {
			t.Fatalf("unexpected error when closing backend: %s", err)
		}
	})
}

func TestBackendRuntimeVersions(t *testing.T) {
	conversations := []rpcmock.Conversation{
		{
			rpcmock.ConversationEntryRequest{
				Method: "state_subscribeRuntimeVersion",
				Result: "rv1",
			},
			rpcmock.ConversationEntryNotify{
				Method:         "state_runtimeVersion",
				SubscriptionId: "rv1",
				Result: map[string]any{
					"specName":           "westend",
					"specVersion":        9430,
					"transactionVersion": 24,
					"apis":               []any{},
				},
			},
			// Nodes re-report the current version; duplicates are dropped
			rpcmock.ConversationEntryNotify{
				Method:         "state_runtimeVersion",
				SubscriptionId: "rv1",
				Result: map[string]any{
					"specName":           "westend",
					"specVersion":        9430,
					"transactionVersion": 24,
					"apis":               []any{},
				},
			},
			rpcmock.ConversationEntryNotify{
				Method:         "state_runtimeVersion",
				SubscriptionId: "rv1",
				Result: map[string]any{
					"specName":           "westend",
					"specVersion":        9431,
					"transactionVersion": 24,
					"apis":               []any{},
				},
			},
			rpcmock.ConversationEntryRequest{
				Method: "state_unsubscribeRuntimeVersion",
				Params: []any{"rv1"},
				Result: true,
			},
		},
	}
	runTest(t, conversations, nil, func(t *testing.T, mockServer *rpcmock.Server, client *legacy.Client) {
		b := legacy.NewBackend(client)
		stream, err := b.RuntimeVersions(context.Background())
		if err != nil {
			t.Fatalf("unexpected error when streaming versions: %s", err)
		}
		version := readRuntimeVersion(t, stream)
		if version.SpecVersion != 9430 {
			t.Fatalf("did not receive expected version: %+v", version)
		}
		version = readRuntimeVersion(t, stream)
		if version.SpecVersion != 9431 {
			t.Fatalf("did not receive expected version: %+v", version)
		}
		stream.Stop()
		waitMockEntries(t, mockServer, 5)
		if err := b.Close(); err != nil {
			t.Fatalf("unexpected error when closing backend: %s", err)
		}
	})
}
