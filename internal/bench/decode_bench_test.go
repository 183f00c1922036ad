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

package bench

import (
	"testing"

	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/chainhead"
	"github.com/blinklabs-io/gosubstrate/legacy"
	json "github.com/goccy/go-json"
)

// BenchmarkHeaderDecode benchmarks JSON header decode, the hottest decode
// path for clients following the chain through header subscriptions
func BenchmarkHeaderDecode(b *testing.B) {
	data := []byte(HeaderJson)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var header chain.Header
		if err := json.Unmarshal(data, &header); err != nil {
			b.Fatalf("failed to decode header: %s", err)
		}
	}
}

// BenchmarkHeaderHash benchmarks re-encoding a decoded header and hashing it,
// which is how headers received as JSON learn their block hash
func BenchmarkHeaderHash(b *testing.B) {
	header := MustDecodeHeader()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = header.Hash()
	}
}

// BenchmarkHeaderRoundTrip benchmarks decoding a header from its encoded
// form, the shape the newer node interface serves headers in
func BenchmarkHeaderRoundTrip(b *testing.B) {
	data := MustDecodeHeader().Bytes()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := chain.NewHeaderFromBytes(data); err != nil {
			b.Fatalf("failed to decode header bytes: %s", err)
		}
	}
}

// BenchmarkFollowEventDecode benchmarks follow notification decode by event
// kind. Every notification on a follow subscription passes through this path
func BenchmarkFollowEventDecode(b *testing.B) {
	events := []struct {
		name string
		data []byte
	}{
		{"Initialized", []byte(InitializedEventJson)},
		{"NewBlock", []byte(NewBlockEventJson)},
		{"BestBlockChanged", []byte(BestBlockEventJson)},
		{"Finalized", []byte(FinalizedEventJson)},
		{"OperationStorageItems", []byte(StorageItemsEventJson)},
	}
	for _, event := range events {
		b.Run(event.name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := chainhead.NewFollowEventFromJson(event.data); err != nil {
					b.Fatalf("failed to decode event: %s", err)
				}
			}
		})
	}
}

// BenchmarkStorageChangeSetDecode benchmarks change set decode on the older
// node interface's storage query path
func BenchmarkStorageChangeSetDecode(b *testing.B) {
	data := []byte(StorageChangeSetJson)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var changeSet legacy.StorageChangeSet
		if err := json.Unmarshal(data, &changeSet); err != nil {
			b.Fatalf("failed to decode change set: %s", err)
		}
	}
}

// BenchmarkTransactionStatusDecode benchmarks submission status decode
func BenchmarkTransactionStatusDecode(b *testing.B) {
	data := []byte(TransactionStatusJson)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var status legacy.TransactionStatus
		if err := json.Unmarshal(data, &status); err != nil {
			b.Fatalf("failed to decode status: %s", err)
		}
	}
}
