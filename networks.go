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

package gosubstrate

import "github.com/blinklabs-io/gosubstrate/chain"

// Network definitions
var (
	NetworkPolkadot = Network{
		Name:       "polkadot",
		SS58Prefix: 0,
		GenesisHash: mustHash(
			"0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3",
		),
		PublicEndpoints: []string{
			"wss://rpc.polkadot.io",
			"wss://polkadot-rpc.dwellir.com",
		},
	}
	NetworkKusama = Network{
		Name:       "kusama",
		SS58Prefix: 2,
		GenesisHash: mustHash(
			"0xb0a8d493285c2df73290dfb7e61f870f17b41801197a149ca93654499ea3dafe",
		),
		PublicEndpoints: []string{
			"wss://kusama-rpc.polkadot.io",
			"wss://kusama-rpc.dwellir.com",
		},
	}
	NetworkWestend = Network{
		Name:       "westend",
		SS58Prefix: 42,
		GenesisHash: mustHash(
			"0xe143f23803ac50e8f6f8e62695d1ce9e4e1d68aa36c1cd2cfd15340213f3423e",
		),
		PublicEndpoints: []string{
			"wss://westend-rpc.polkadot.io",
		},
	}
	// NetworkLocal points at a development node. It carries no genesis hash
	// since every dev chain generates its own
	NetworkLocal = Network{
		Name:       "local",
		SS58Prefix: 42,
		PublicEndpoints: []string{
			"ws://127.0.0.1:9944",
		},
	}

	NetworkInvalid = Network{
		Name: "invalid",
	} // NetworkInvalid is used as a return value for lookup functions when a network isn't found
)

// List of valid networks for use in lookup functions
var networks = []Network{
	NetworkPolkadot,
	NetworkKusama,
	NetworkWestend,
	NetworkLocal,
}

// NetworkByName returns a predefined network by name
func NetworkByName(name string) Network {
	for _, network := range networks {
		if network.Name == name {
			return network
		}
	}
	return NetworkInvalid
}

// NetworkByGenesisHash returns a predefined network by genesis hash
func NetworkByGenesisHash(genesisHash chain.Hash) Network {
	for _, network := range networks {
		if network.GenesisHash == genesisHash &&
			network.GenesisHash != (chain.Hash{}) {
			return network
		}
	}
	return NetworkInvalid
}

// Network represents a Substrate-based chain
type Network struct {
	Name            string
	GenesisHash     chain.Hash
	SS58Prefix      uint16 // address format used for SS58 encoding
	PublicEndpoints []string
}

func (n Network) String() string {
	return n.Name
}

func mustHash(s string) chain.Hash {
	h, err := chain.NewHashFromHexString(s)
	if err != nil {
		panic(err)
	}
	return h
}
