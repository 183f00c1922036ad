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

//go:build profile

// Profiling integration tests. These are designed to generate pprof profiles
// for analysis of CPU and memory usage in the decode paths. They are guarded
// by the "profile" build tag so they don't run in normal test suites.
//
// Usage:
//
//	# Generate CPU profile for follow event decode
//	go test -tags=profile -run=TestProfileFollowEventDecode \
//	    -cpuprofile=cpu_event.prof ./internal/bench/...
//
//	# Generate memory profile for header decode
//	go test -tags=profile -run=TestProfileHeaderDecode \
//	    -memprofile=mem_header.prof ./internal/bench/...
//
//	# Analyze profiles
//	go tool pprof -http=localhost:8080 cpu_event.prof
package bench

import (
	"testing"

	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/chainhead"
	json "github.com/goccy/go-json"
)

const (
	// profileIterations is the number of iterations to run for each profile
	// test. Higher values produce more accurate profiles but take longer.
	profileIterations = 10000
)

// TestProfileHeaderDecode generates CPU/memory profiles for JSON header
// decode plus the re-encode and hash that identifies the block.
func TestProfileHeaderDecode(t *testing.T) {
	data := []byte(HeaderJson)
	for i := 0; i < profileIterations; i++ {
		var header chain.Header
		if err := json.Unmarshal(data, &header); err != nil {
			t.Fatalf("failed to decode header: %s", err)
		}
		_ = header.Hash()
	}
}

// TestProfileFollowEventDecode generates CPU/memory profiles for follow
// notification decode across the event kinds seen in steady-state operation.
func TestProfileFollowEventDecode(t *testing.T) {
	events := [][]byte{
		[]byte(NewBlockEventJson),
		[]byte(BestBlockEventJson),
		[]byte(FinalizedEventJson),
		[]byte(StorageItemsEventJson),
	}
	for i := 0; i < profileIterations; i++ {
		for _, data := range events {
			if _, err := chainhead.NewFollowEventFromJson(data); err != nil {
				t.Fatalf("failed to decode event: %s", err)
			}
		}
	}
}
