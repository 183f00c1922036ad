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
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/crypto/blake2b"
)

const HashSize = 32

// Hash is a 32-byte block or extrinsic hash
type Hash [HashSize]byte

func NewHash(data []byte) Hash {
	h := Hash{}
	copy(h[:], data)
	return h
}

// NewHashFromHexString decodes a hex string, with or without the 0x
// prefix, into a Hash
func NewHashFromHexString(s string) (Hash, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Hash{}, err
	}
	if len(data) != HashSize {
		return Hash{}, fmt.Errorf(
			"invalid hash length: expected %d bytes, got %d",
			HashSize,
			len(data),
		)
	}
	return NewHash(data), nil
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	tmpHash, err := NewHashFromHexString(s)
	if err != nil {
		return err
	}
	*h = tmpHash
	return nil
}

// Blake2b256Hash generates a Blake2b-256 hash from the provided data. It's
// used to derive the reported hash of a submitted extrinsic
func Blake2b256Hash(data []byte) Hash {
	tmpHash, err := blake2b.New(HashSize, nil)
	if err != nil {
		panic(
			fmt.Sprintf(
				"unexpected error generating empty blake2b hash: %s",
				err,
			),
		)
	}
	tmpHash.Write(data)
	return NewHash(tmpHash.Sum(nil))
}
