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

package legacy

import (
	"fmt"

	"github.com/blinklabs-io/gosubstrate/chain"
	json "github.com/goccy/go-json"
)

// NumberOrHex is the block number form accepted by the legacy methods. Nodes
// speak both plain JSON numbers and 0x-prefixed hex strings, which
// chain.BlockNumber already handles
type NumberOrHex = chain.BlockNumber

// BlockDetails is the response to a chain_getBlock request
type BlockDetails struct {
	Block          Block                `json:"block"`
	Justifications []BlockJustification `json:"justifications"`
}

// Block carries a header together with the extrinsics of its body
type Block struct {
	Header     chain.Header  `json:"header"`
	Extrinsics []chain.Bytes `json:"extrinsics"`
}

// BlockJustification is a finality proof attached to a block, tagged with the
// consensus engine that produced it. The node serializes both parts as plain
// byte arrays rather than hex
type BlockJustification struct {
	EngineId      [4]byte
	Justification []byte
}

func (j *BlockJustification) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf(
			"expected justification pair, got %d elements",
			len(pair),
		)
	}
	if err := json.Unmarshal(pair[0], &j.EngineId); err != nil {
		return fmt.Errorf("decode justification engine id: %w", err)
	}
	var rawBytes []uint16
	if err := json.Unmarshal(pair[1], &rawBytes); err != nil {
		return fmt.Errorf("decode justification bytes: %w", err)
	}
	j.Justification = make([]byte, 0, len(rawBytes))
	for _, b := range rawBytes {
		if b > 0xff {
			return fmt.Errorf("justification byte out of range: %d", b)
		}
		j.Justification = append(j.Justification, byte(b))
	}
	return nil
}

func (j BlockJustification) MarshalJSON() ([]byte, error) {
	engineId := make([]uint16, len(j.EngineId))
	for i, b := range j.EngineId {
		engineId[i] = uint16(b)
	}
	justification := make([]uint16, len(j.Justification))
	for i, b := range j.Justification {
		justification[i] = uint16(b)
	}
	return json.Marshal([]any{engineId, justification})
}

// SystemHealth is the response to a system_health request
type SystemHealth struct {
	Peers           int  `json:"peers"`
	IsSyncing       bool `json:"isSyncing"`
	ShouldHavePeers bool `json:"shouldHavePeers"`
}

// SystemProperties is the free-form property object a chain reports about
// itself: token symbol, token decimals, address format, and whatever else the
// chain spec carries
type SystemProperties map[string]any

// MethodsResponse is the response to an rpc_methods request
type MethodsResponse struct {
	Methods []string `json:"methods"`
}

// Has reports whether the named method appeared in the response
func (r MethodsResponse) Has(method string) bool {
	for _, m := range r.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// StorageChangeSet reports the values of a set of storage keys at one block
type StorageChangeSet struct {
	Block   chain.Hash      `json:"block"`
	Changes []StorageChange `json:"changes"`
}

// StorageChange is one key and its value from a change set. The node
// serializes each change as a two-element array. A nil Value means the key
// has no value at that block
type StorageChange struct {
	Key   chain.Bytes
	Value chain.Bytes
}

func (c *StorageChange) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf(
			"expected storage change pair, got %d elements",
			len(pair),
		)
	}
	if err := json.Unmarshal(pair[0], &c.Key); err != nil {
		return fmt.Errorf("decode storage change key: %w", err)
	}
	if string(pair[1]) == "null" {
		c.Value = nil
		return nil
	}
	if err := json.Unmarshal(pair[1], &c.Value); err != nil {
		return fmt.Errorf("decode storage change value: %w", err)
	}
	return nil
}

func (c StorageChange) MarshalJSON() ([]byte, error) {
	if c.Value == nil {
		return json.Marshal([]any{c.Key, nil})
	}
	return json.Marshal([]any{c.Key, c.Value})
}

// Transaction status tags reported on an author_submitAndWatchExtrinsic
// subscription
const (
	TransactionStatusFuture          = "future"
	TransactionStatusReady           = "ready"
	TransactionStatusBroadcast       = "broadcast"
	TransactionStatusInBlock         = "inBlock"
	TransactionStatusRetracted       = "retracted"
	TransactionStatusFinalityTimeout = "finalityTimeout"
	TransactionStatusFinalized       = "finalized"
	TransactionStatusUsurped         = "usurped"
	TransactionStatusDropped         = "dropped"
	TransactionStatusInvalid         = "invalid"
)

// TransactionStatus is one update in a watched transaction's pool lifecycle.
// The node externally tags these: statuses without a payload arrive as bare
// strings, the rest as single-key objects. Block is set for the inBlock,
// retracted, finalityTimeout, finalized, and usurped statuses; Peers for
// broadcast
type TransactionStatus struct {
	Status string
	Block  chain.Hash
	Peers  []string
}

func (s *TransactionStatus) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return err
		}
		switch tag {
		case TransactionStatusFuture,
			TransactionStatusReady,
			TransactionStatusDropped,
			TransactionStatusInvalid:
			s.Status = tag
			return nil
		}
		return fmt.Errorf("unknown transaction status: %s", tag)
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf(
			"expected single-key transaction status, got %d keys",
			len(tagged),
		)
	}
	for tag, payload := range tagged {
		switch tag {
		case TransactionStatusBroadcast:
			s.Status = tag
			return json.Unmarshal(payload, &s.Peers)
		case TransactionStatusInBlock,
			TransactionStatusRetracted,
			TransactionStatusFinalityTimeout,
			TransactionStatusFinalized,
			TransactionStatusUsurped:
			s.Status = tag
			return json.Unmarshal(payload, &s.Block)
		default:
			return fmt.Errorf("unknown transaction status: %s", tag)
		}
	}
	return fmt.Errorf("empty transaction status")
}

// Terminal reports whether the node ends the watch after this status
func (s TransactionStatus) Terminal() bool {
	switch s.Status {
	case TransactionStatusFinalityTimeout,
		TransactionStatusFinalized,
		TransactionStatusUsurped,
		TransactionStatusDropped,
		TransactionStatusInvalid:
		return true
	}
	return false
}
