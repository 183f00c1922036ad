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
	"reflect"
	"testing"

	gosubstrate "github.com/blinklabs-io/gosubstrate"
	"github.com/blinklabs-io/gosubstrate/chain"
)

func TestNetworkByName(t *testing.T) {
	network := gosubstrate.NetworkByName("polkadot")
	if !reflect.DeepEqual(network, gosubstrate.NetworkPolkadot) {
		t.Fatalf(
			"did not get expected network: got %s, wanted %s",
			network,
			gosubstrate.NetworkPolkadot,
		)
	}
	network = gosubstrate.NetworkByName("nonexistent")
	if !reflect.DeepEqual(network, gosubstrate.NetworkInvalid) {
		t.Fatalf("did not get invalid network for unknown name: got %s", network)
	}
}

func TestNetworkByGenesisHash(t *testing.T) {
	network := gosubstrate.NetworkByGenesisHash(
		gosubstrate.NetworkKusama.GenesisHash,
	)
	if !reflect.DeepEqual(network, gosubstrate.NetworkKusama) {
		t.Fatalf(
			"did not get expected network: got %s, wanted %s",
			network,
			gosubstrate.NetworkKusama,
		)
	}
	// The local network has no genesis hash, so a zero hash must not match it
	network = gosubstrate.NetworkByGenesisHash(chain.Hash{})
	if !reflect.DeepEqual(network, gosubstrate.NetworkInvalid) {
		t.Fatalf("did not get invalid network for zero hash: got %s", network)
	}
}
