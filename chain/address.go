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
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	json "github.com/goccy/go-json"
	"golang.org/x/crypto/blake2b"
)

const (
	// SS58 network prefixes for the well-known chains
	SS58PrefixPolkadot = 0
	SS58PrefixKusama   = 2
	SS58PrefixGeneric  = 42

	// Domain separator mixed into the address checksum
	ss58ChecksumPrefix = "SS58PRE"

	ss58ChecksumSize = 2
	ss58MaxPrefix    = 0x3fff
)

var ErrInvalidAddress = errors.New("invalid address")

// Address is an SS58-encoded account: a network prefix plus a 32-byte
// public key, with a truncated blake2b-512 checksum
type Address struct {
	prefix uint16
	pubKey [HashSize]byte
}

func NewAddress(prefix uint16, pubKey []byte) (Address, error) {
	if prefix > ss58MaxPrefix {
		return Address{}, fmt.Errorf(
			"%w: network prefix %d out of range",
			ErrInvalidAddress,
			prefix,
		)
	}
	if len(pubKey) != HashSize {
		return Address{}, fmt.Errorf(
			"%w: expected %d-byte public key, got %d",
			ErrInvalidAddress,
			HashSize,
			len(pubKey),
		)
	}
	a := Address{prefix: prefix}
	copy(a.pubKey[:], pubKey)
	return a, nil
}

func NewAddressFromString(s string) (Address, error) {
	data := base58.Decode(s)
	if len(data) == 0 {
		return Address{}, fmt.Errorf("%w: not base58", ErrInvalidAddress)
	}
	var prefix uint16
	var prefixLen int
	switch {
	case data[0] < 64:
		prefix = uint16(data[0])
		prefixLen = 1
	case data[0] < 128:
		if len(data) < 2 {
			return Address{}, fmt.Errorf(
				"%w: truncated network prefix",
				ErrInvalidAddress,
			)
		}
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0b0011_1111
		prefix = uint16(lower) | (uint16(upper) << 8)
		prefixLen = 2
	default:
		return Address{}, fmt.Errorf(
			"%w: reserved network prefix byte %#02x",
			ErrInvalidAddress,
			data[0],
		)
	}
	if len(data) != prefixLen+HashSize+ss58ChecksumSize {
		return Address{}, fmt.Errorf(
			"%w: unexpected payload length %d",
			ErrInvalidAddress,
			len(data),
		)
	}
	body := data[:len(data)-ss58ChecksumSize]
	checksum := data[len(data)-ss58ChecksumSize:]
	if !bytes.Equal(checksum, ss58Checksum(body)) {
		return Address{}, fmt.Errorf("%w: bad checksum", ErrInvalidAddress)
	}
	return NewAddress(prefix, body[prefixLen:])
}

func (a Address) Prefix() uint16 {
	return a.prefix
}

func (a Address) PubKey() []byte {
	return a.pubKey[:]
}

func (a Address) String() string {
	var body []byte
	if a.prefix < 64 {
		body = []byte{byte(a.prefix)}
	} else {
		body = []byte{
			0b0100_0000 | byte((a.prefix&0b0000_0000_1111_1100)>>2),
			byte(a.prefix>>8) | (byte(a.prefix&0b0000_0000_0000_0011) << 6),
		}
	}
	body = append(body, a.pubKey[:]...)
	body = append(body, ss58Checksum(body)...)
	return base58.Encode(body)
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	tmpAddr, err := NewAddressFromString(s)
	if err != nil {
		return err
	}
	*a = tmpAddr
	return nil
}

func ss58Checksum(body []byte) []byte {
	tmpHash, err := blake2b.New512(nil)
	if err != nil {
		panic(
			fmt.Sprintf(
				"unexpected error generating empty blake2b hash: %s",
				err,
			),
		)
	}
	tmpHash.Write([]byte(ss58ChecksumPrefix))
	tmpHash.Write(body)
	return tmpHash.Sum(nil)[:ss58ChecksumSize]
}
