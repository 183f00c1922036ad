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

package chain_test

import (
	"testing"

	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/internal/test"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashJson(t *testing.T) {
	hashHex := "0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3"
	var h chain.Hash
	err := json.Unmarshal([]byte(`"`+hashHex+`"`), &h)
	require.NoError(t, err)
	assert.Equal(t, test.DecodeHexString(hashHex), h.Bytes())
	assert.Equal(t, hashHex, h.String())
	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Equal(t, `"`+hashHex+`"`, string(data))
}

func TestHashFromHexStringBadLength(t *testing.T) {
	_, err := chain.NewHashFromHexString("0x1234")
	assert.ErrorContains(t, err, "invalid hash length")
}

func TestBlockNumberJson(t *testing.T) {
	testDefs := []struct {
		jsonData    string
		expectedNum chain.BlockNumber
	}{
		{
			jsonData:    `"0x12d687"`,
			expectedNum: 1234567,
		},
		{
			jsonData:    `"0x0"`,
			expectedNum: 0,
		},
		{
			jsonData:    `1234567`,
			expectedNum: 1234567,
		},
	}
	for _, testDef := range testDefs {
		var n chain.BlockNumber
		err := json.Unmarshal([]byte(testDef.jsonData), &n)
		require.NoError(t, err)
		assert.Equal(t, testDef.expectedNum, n)
	}
}

func TestBytesJson(t *testing.T) {
	var b chain.Bytes
	err := json.Unmarshal([]byte(`"0x00deadbeef"`), &b)
	require.NoError(t, err)
	assert.Equal(t, test.DecodeHexString("00deadbeef"), []byte(b))
	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, `"0x00deadbeef"`, string(data))
}

func TestRuntimeVersionJson(t *testing.T) {
	// The older interface reports APIs as [id, version] pairs
	legacyJson := `{
		"specName": "westend",
		"implName": "parity-westend",
		"authoringVersion": 2,
		"specVersion": 9122,
		"implVersion": 0,
		"transactionVersion": 7,
		"stateVersion": 1,
		"apis": [["0xdf6acb689907609b", 3], ["0x37e397fc7c91f5e4", 1]]
	}`
	var legacyVersion chain.RuntimeVersion
	err := json.Unmarshal([]byte(legacyJson), &legacyVersion)
	require.NoError(t, err)
	assert.Equal(t, "westend", legacyVersion.SpecName)
	assert.Equal(t, uint32(9122), legacyVersion.SpecVersion)
	assert.Equal(t, uint32(7), legacyVersion.TransactionVersion)
	require.Len(t, legacyVersion.Apis, 2)
	assert.Equal(
		t,
		test.DecodeHexString("df6acb689907609b"),
		[]byte(legacyVersion.Apis[0].Id),
	)
	assert.Equal(t, uint32(3), legacyVersion.Apis[0].Version)

	// The newer interface reports APIs as an id-to-version object
	newJson := `{
		"specName": "westend",
		"implName": "parity-westend",
		"specVersion": 9122,
		"implVersion": 0,
		"transactionVersion": 7,
		"apis": {"0xdf6acb689907609b": 3}
	}`
	var newVersion chain.RuntimeVersion
	err = json.Unmarshal([]byte(newJson), &newVersion)
	require.NoError(t, err)
	require.Len(t, newVersion.Apis, 1)
	assert.Equal(t, uint32(3), newVersion.Apis[0].Version)
}

func TestHeaderJson(t *testing.T) {
	headerJson := `{
		"parentHash": "0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3",
		"number": "0x1",
		"stateRoot": "0x0e1a56b3b3f5e29b0fbd1d2c869a8b542dbfa34ca56b3a9bd0be5efbb2c87a96",
		"extrinsicsRoot": "0x03170a2e7597b7b7e3d84c05391d139a62b157e78786d8c082f29dcf4c111314",
		"digest": {"logs": ["0x0642414245"]}
	}`
	var header chain.Header
	err := json.Unmarshal([]byte(headerJson), &header)
	require.NoError(t, err)
	assert.Equal(t, chain.BlockNumber(1), header.Number)
	assert.Equal(
		t,
		"0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3",
		header.ParentHash.String(),
	)
	require.Len(t, header.Digest.Logs, 1)
}

func TestAddressEncode(t *testing.T) {
	// Well-known //Alice development key
	alicePubKey := test.DecodeHexString(
		"d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d",
	)
	testDefs := []struct {
		prefix       uint16
		expectedAddr string
	}{
		{
			prefix:       chain.SS58PrefixGeneric,
			expectedAddr: "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
		},
		{
			prefix:       chain.SS58PrefixPolkadot,
			expectedAddr: "15oF4uVJwmo4TdGW7VfQxNLavjCXviqxT9S1MgbjMNHr6Sp5",
		},
	}
	for _, testDef := range testDefs {
		addr, err := chain.NewAddress(testDef.prefix, alicePubKey)
		require.NoError(t, err)
		assert.Equal(t, testDef.expectedAddr, addr.String())
	}
}

func TestAddressDecode(t *testing.T) {
	addr, err := chain.NewAddressFromString(
		"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
	)
	require.NoError(t, err)
	assert.Equal(t, uint16(chain.SS58PrefixGeneric), addr.Prefix())
	assert.Equal(
		t,
		test.DecodeHexString(
			"d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d",
		),
		addr.PubKey(),
	)
}

func TestAddressDecodeBadChecksum(t *testing.T) {
	// Same address as above with the final character changed
	_, err := chain.NewAddressFromString(
		"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ",
	)
	assert.ErrorIs(t, err, chain.ErrInvalidAddress)
}

func TestAddressWidePrefixRoundTrip(t *testing.T) {
	pubKey := test.DecodeHexString(
		"d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d",
	)
	// Prefixes of 64 and up use the two-byte encoding
	for _, prefix := range []uint16{64, 255, 2254, 16383} {
		addr, err := chain.NewAddress(prefix, pubKey)
		require.NoError(t, err)
		decoded, err := chain.NewAddressFromString(addr.String())
		require.NoError(t, err)
		assert.Equal(t, prefix, decoded.Prefix())
		assert.Equal(t, pubKey, decoded.PubKey())
	}
}

func TestHeaderFromBytes(t *testing.T) {
	// 32-byte parent hash, compact block number 1234567 (4-byte mode),
	// 32-byte state root, 32-byte extrinsics root, then two digest logs:
	// a PreRuntime(BABE) item and a Seal(BABE) item
	parentHex := "1111111111111111111111111111111111111111111111111111111111111111"
	stateHex := "2222222222222222222222222222222222222222222222222222222222222222"
	extrinsicsHex := "3333333333333333333333333333333333333333333333333333333333333333"
	preRuntimeHex := "064241424510deadbeef"
	sealHex := "0542414245200102030405060708"
	headerData := test.DecodeHexString(
		parentHex + "9e5a4b00" + stateHex + extrinsicsHex +
			"08" + preRuntimeHex + sealHex,
	)
	header, err := chain.NewHeaderFromBytes(headerData)
	require.NoError(t, err)
	assert.Equal(t, "0x"+parentHex, header.ParentHash.String())
	assert.Equal(t, chain.BlockNumber(1234567), header.Number)
	assert.Equal(t, "0x"+stateHex, header.StateRoot.String())
	assert.Equal(t, "0x"+extrinsicsHex, header.ExtrinsicsRoot.String())
	require.Len(t, header.Digest.Logs, 2)
	assert.Equal(t, "0x"+preRuntimeHex, header.Digest.Logs[0].String())
	assert.Equal(t, "0x"+sealHex, header.Digest.Logs[1].String())
}

func TestHeaderFromBytesGenesisShape(t *testing.T) {
	// A genesis-style header: number 0 and an empty digest
	zeroHex := "0000000000000000000000000000000000000000000000000000000000000000"
	headerData := test.DecodeHexString(
		zeroHex + "00" + zeroHex + zeroHex + "00",
	)
	header, err := chain.NewHeaderFromBytes(headerData)
	require.NoError(t, err)
	assert.Equal(t, chain.BlockNumber(0), header.Number)
	assert.Empty(t, header.Digest.Logs)
}

func TestHeaderBytesRoundTrip(t *testing.T) {
	parentHex := "1111111111111111111111111111111111111111111111111111111111111111"
	stateHex := "2222222222222222222222222222222222222222222222222222222222222222"
	extrinsicsHex := "3333333333333333333333333333333333333333333333333333333333333333"
	headerData := test.DecodeHexString(
		parentHex + "9e5a4b00" + stateHex + extrinsicsHex +
			"08" + "064241424510deadbeef" + "0542414245200102030405060708",
	)
	header, err := chain.NewHeaderFromBytes(headerData)
	require.NoError(t, err)
	assert.Equal(t, headerData, header.Bytes())
	assert.Equal(t, chain.Blake2b256Hash(headerData), header.Hash())
}

func TestHeaderNumberRoundTrip(t *testing.T) {
	// Each compact encoding mode gets exercised at and around its boundary
	numbers := []uint64{
		0, 1, 63, 64, 16383, 16384, 1 << 29, 1 << 30, 1 << 40,
	}
	for _, number := range numbers {
		header := &chain.Header{Number: chain.BlockNumber(number)}
		decoded, err := chain.NewHeaderFromBytes(header.Bytes())
		require.NoError(t, err, "number %d", number)
		assert.Equal(
			t,
			chain.BlockNumber(number),
			decoded.Number,
			"number %d",
			number,
		)
	}
}

func TestHeaderFromBytesErrors(t *testing.T) {
	zeroHex := "0000000000000000000000000000000000000000000000000000000000000000"
	testDefs := []struct {
		name        string
		dataHex     string
		expectedErr string
	}{
		{
			name:        "truncated",
			dataHex:     zeroHex + "00" + "2222",
			expectedErr: "header too short",
		},
		{
			name:        "unknown digest item",
			dataHex:     zeroHex + "00" + zeroHex + zeroHex + "04" + "ff",
			expectedErr: "unknown digest item type 255",
		},
		{
			name:        "trailing data",
			dataHex:     zeroHex + "00" + zeroHex + zeroHex + "00" + "abcd",
			expectedErr: "trailing bytes",
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := chain.NewHeaderFromBytes(
				test.DecodeHexString(testDef.dataHex),
			)
			assert.ErrorContains(t, err, testDef.expectedErr)
		})
	}
}

func TestBlake2b256Hash(t *testing.T) {
	// blake2b-256 of an empty input
	assert.Equal(
		t,
		"0x0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8",
		chain.Blake2b256Hash(nil).String(),
	)
}
