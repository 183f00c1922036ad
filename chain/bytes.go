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
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Bytes is a byte slice that rides the wire as a 0x-prefixed hex string.
// Storage keys and values, call arguments and results, and extrinsics are
// all opaque SCALE payloads carried in this form
type Bytes []byte

func NewBytesFromHexString(s string) (Bytes, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, err
	}
	return Bytes(data), nil
}

func (b Bytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	tmpData, err := NewBytesFromHexString(s)
	if err != nil {
		return err
	}
	*b = tmpData
	return nil
}

// BlockNumber is a block height. Nodes report heights as 0x-prefixed hex
// strings, but older methods and chain specs use plain JSON numbers, so
// both forms are accepted
type BlockNumber uint64

func (n BlockNumber) String() string {
	return strconv.FormatUint(uint64(n), 10)
}

func (n BlockNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%x", uint64(n)))
}

func (n *BlockNumber) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] != '"' {
		var tmpNum uint64
		if err := json.Unmarshal(data, &tmpNum); err != nil {
			return err
		}
		*n = BlockNumber(tmpNum)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	tmpNum, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return fmt.Errorf("invalid block number %q: %w", s, err)
	}
	*n = BlockNumber(tmpNum)
	return nil
}
