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

package chain

import (
	"fmt"
)

// Header is a block header as reported by the node
type Header struct {
	ParentHash     Hash        `json:"parentHash"`
	Number         BlockNumber `json:"number"`
	StateRoot      Hash        `json:"stateRoot"`
	ExtrinsicsRoot Hash        `json:"extrinsicsRoot"`
	Digest         Digest      `json:"digest"`
}

// Digest carries the consensus log items attached to a header. The items
// are opaque SCALE payloads
type Digest struct {
	Logs []Bytes `json:"logs"`
}

// Digest item type tags. Each log keeps its tag byte so the encoded form
// matches what nodes report in JSON headers
const (
	digestItemOther              = 0
	digestItemChangesTrieRoot    = 2
	digestItemConsensus          = 4
	digestItemSeal               = 5
	digestItemPreRuntime         = 6
	digestItemRuntimeEnvUpdated  = 8
	digestItemConsensusEngineLen = 4
)

// Bytes returns the header's encoded form, rebuilt from the decoded fields
func (h *Header) Bytes() []byte {
	data := make([]byte, 0, 3*HashSize+8)
	data = append(data, h.ParentHash.Bytes()...)
	data = append(data, encodeCompact(uint64(h.Number))...)
	data = append(data, h.StateRoot.Bytes()...)
	data = append(data, h.ExtrinsicsRoot.Bytes()...)
	data = append(data, encodeCompact(uint64(len(h.Digest.Logs)))...)
	for _, item := range h.Digest.Logs {
		data = append(data, item...)
	}
	return data
}

// Hash returns the header's block hash. Nodes identify blocks by the digest
// of the encoded header, so headers received as JSON need this to learn
// which block they describe
func (h *Header) Hash() Hash {
	return Blake2b256Hash(h.Bytes())
}

// NewHeaderFromBytes decodes a header from its encoded form. The newer node
// interface serves headers this way rather than as JSON. Only the header
// envelope is interpreted; digest logs are split but kept opaque
func NewHeaderFromBytes(data []byte) (*Header, error) {
	h := &Header{}
	if len(data) < HashSize {
		return nil, fmt.Errorf("header too short: %d bytes", len(data))
	}
	h.ParentHash = NewHash(data[:HashSize])
	offset := HashSize
	number, n, err := decodeCompact(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("decode block number: %w", err)
	}
	offset += n
	if len(data) < offset+2*HashSize {
		return nil, fmt.Errorf("header too short: %d bytes", len(data))
	}
	h.Number = BlockNumber(number)
	h.StateRoot = NewHash(data[offset : offset+HashSize])
	offset += HashSize
	h.ExtrinsicsRoot = NewHash(data[offset : offset+HashSize])
	offset += HashSize
	logCount, n, err := decodeCompact(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("decode digest length: %w", err)
	}
	offset += n
	for i := uint64(0); i < logCount; i++ {
		logLen, err := digestItemLength(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("decode digest log %d: %w", i, err)
		}
		h.Digest.Logs = append(
			h.Digest.Logs,
			Bytes(data[offset:offset+logLen]),
		)
		offset += logLen
	}
	if offset != len(data) {
		return nil, fmt.Errorf(
			"%d trailing bytes after header",
			len(data)-offset,
		)
	}
	return h, nil
}

// digestItemLength returns the encoded size of the digest item at the start
// of data, tag byte included
func digestItemLength(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("missing digest item tag")
	}
	offset := 1
	switch data[0] {
	case digestItemRuntimeEnvUpdated:
		// Tag only
	case digestItemChangesTrieRoot:
		offset += HashSize
	case digestItemConsensus, digestItemSeal, digestItemPreRuntime:
		offset += digestItemConsensusEngineLen
		fallthrough
	case digestItemOther:
		payloadLen, n, err := decodeCompact(data[offset:])
		if err != nil {
			return 0, err
		}
		offset += n + int(payloadLen)
	default:
		return 0, fmt.Errorf("unknown digest item type %d", data[0])
	}
	if offset > len(data) {
		return 0, fmt.Errorf("digest item truncated")
	}
	return offset, nil
}

// encodeCompact encodes an unsigned integer in compact form
func encodeCompact(val uint64) []byte {
	switch {
	case val < 1<<6:
		return []byte{byte(val) << 2}
	case val < 1<<14:
		v := uint16(val)<<2 | 1
		return []byte{byte(v), byte(v >> 8)}
	case val < 1<<30:
		v := uint32(val)<<2 | 2
		return []byte{
			byte(v),
			byte(v >> 8),
			byte(v >> 16),
			byte(v >> 24),
		}
	default:
		data := []byte{0}
		for val > 0 {
			data = append(data, byte(val))
			val >>= 8
		}
		data[0] = byte(len(data)-5)<<2 | 0x3
		return data
	}
}

// decodeCompact decodes a compact-encoded unsigned integer, returning the
// value and the number of bytes consumed. Values wider than 64 bits are
// rejected; nothing in a header needs them
func decodeCompact(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("missing compact integer")
	}
	switch data[0] & 0x3 {
	case 0:
		return uint64(data[0] >> 2), 1, nil
	case 1:
		if len(data) < 2 {
			return 0, 0, fmt.Errorf("compact integer truncated")
		}
		val := (uint64(data[0]) | uint64(data[1])<<8) >> 2
		return val, 2, nil
	case 2:
		if len(data) < 4 {
			return 0, 0, fmt.Errorf("compact integer truncated")
		}
		val := (uint64(data[0]) | uint64(data[1])<<8 |
			uint64(data[2])<<16 | uint64(data[3])<<24) >> 2
		return val, 4, nil
	default:
		byteCount := int(data[0]>>2) + 4
		if byteCount > 8 {
			return 0, 0, fmt.Errorf(
				"compact integer too wide: %d bytes",
				byteCount,
			)
		}
		if len(data) < 1+byteCount {
			return 0, 0, fmt.Errorf("compact integer truncated")
		}
		var val uint64
		for i := range byteCount {
			val |= uint64(data[1+i]) << (8 * i)
		}
		return val, 1 + byteCount, nil
	}
}
