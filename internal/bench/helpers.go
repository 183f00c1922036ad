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

// Package bench provides decode benchmarks and allocation regression tests
// for the JSON message types that dominate the wire.
package bench

import (
	"fmt"

	"github.com/blinklabs-io/gosubstrate/chain"
	json "github.com/goccy/go-json"
)

// Wire fixtures. The header carries a BABE pre-runtime digest and seal the
// way production headers do, so decode work is representative
const (
	HeaderJson = `{
		"parentHash": "0x4c5df25fc7c1f1fb67912b2b6f7a3d0ec20f7cf5bcbbd29c4d4b18b339215868",
		"number": "0x12d4b6",
		"stateRoot": "0xb1e9b5dcd5c4a61e23e4b0ff0f69d6bfbdd6c42f38a3c2ffb53c3bc7435181d0",
		"extrinsicsRoot": "0x7c5e6f2e1e4b1de1db9f423cbd50e0b3e9e4aa3c587f2f1e1c9de0dfae9a8f96",
		"digest": {
			"logs": [
				"0x0642414245b501032a0000006aba0f1100000000c2c7d2fc2b9e8d3afd3b4a75de1bbd26e419689dc9b55d410fd4ee3b9a7b2e32de3127db7b1cb2e64fa4c1e0e4b1cd7d5b73a2a41ed0f8b6bd21b1c9ec67b65dea59a2f79d4e50b5a3d1c1f8cf99a6ef2c6d3a3a9f6ff1bb37e06f678f6b9c38",
				"0x05424142450101a6e2f2b7f2a25f18d1c76a8f33ab82dd26a6f7ea4a68c640dd24ab2bd9ffc15d4bd61d51eb9246bc5f2c4db131f691986e02d583a76a8c8c965e19e2b4957e86"
			]
		}
	}`

	InitializedEventJson = `{
		"event": "initialized",
		"finalizedBlockHashes": [
			"0x4c5df25fc7c1f1fb67912b2b6f7a3d0ec20f7cf5bcbbd29c4d4b18b339215868"
		],
		"finalizedBlockRuntime": {
			"type": "valid",
			"spec": {
				"specName": "westend",
				"implName": "parity-westend",
				"specVersion": 9430,
				"implVersion": 0,
				"transactionVersion": 24,
				"apis": [
					["0xdf6acb689907609b", 4],
					["0x37e397fc7c91f5e4", 2],
					["0x40fe3ad401f8959a", 6],
					["0xd2bc9897eed08f15", 3]
				]
			}
		}
	}`

	NewBlockEventJson = `{
		"event": "newBlock",
		"blockHash": "0x9a2be240212fec332e4f3c91c5b32e937b76e1a7d06a5a02d52dda8cb6bdd2bb",
		"parentBlockHash": "0x4c5df25fc7c1f1fb67912b2b6f7a3d0ec20f7cf5bcbbd29c4d4b18b339215868"
	}`

	BestBlockEventJson = `{
		"event": "bestBlockChanged",
		"bestBlockHash": "0x9a2be240212fec332e4f3c91c5b32e937b76e1a7d06a5a02d52dda8cb6bdd2bb"
	}`

	FinalizedEventJson = `{
		"event": "finalized",
		"finalizedBlockHashes": [
			"0x9a2be240212fec332e4f3c91c5b32e937b76e1a7d06a5a02d52dda8cb6bdd2bb"
		],
		"prunedBlockHashes": [
			"0x1dd0eb1f1184c5113131b97a2f8cd0267b716afd65bbf8a2d7dc859b33b0a9bf"
		]
	}`

	StorageItemsEventJson = `{
		"event": "operationStorageItems",
		"operationId": "op-17",
		"items": [
			{
				"key": "0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9",
				"value": "0x0000000001000000000000005095cee51a0f000000000000000000"
			},
			{
				"key": "0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371daa",
				"value": "0x04000000000000000000000000000000e803000000000000"
			},
			{
				"key": "0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371dab",
				"value": "0x16000000"
			}
		]
	}`

	StorageChangeSetJson = `{
		"block": "0x9a2be240212fec332e4f3c91c5b32e937b76e1a7d06a5a02d52dda8cb6bdd2bb",
		"changes": [
			["0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9", "0x0000000001000000000000005095cee51a0f000000000000000000"],
			["0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371daa", null],
			["0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371dab", "0x16000000"]
		]
	}`

	TransactionStatusJson = `{
		"inBlock": "0x9a2be240212fec332e4f3c91c5b32e937b76e1a7d06a5a02d52dda8cb6bdd2bb"
	}`
)

// MustDecodeHeader decodes the header fixture and panics on error. Use it in
// benchmark setup code
func MustDecodeHeader() *chain.Header {
	var header chain.Header
	if err := json.Unmarshal([]byte(HeaderJson), &header); err != nil {
		panic(fmt.Sprintf("failed to decode header fixture: %s", err))
	}
	return &header
}
