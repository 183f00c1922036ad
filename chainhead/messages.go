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

package chainhead

import (
	"fmt"

	"github.com/blinklabs-io/gosubstrate/chain"
	json "github.com/goccy/go-json"
)

// Event types reported on a follow subscription
const (
	EventTypeInitialized                 = "initialized"
	EventTypeNewBlock                    = "newBlock"
	EventTypeBestBlockChanged            = "bestBlockChanged"
	EventTypeFinalized                   = "finalized"
	EventTypeOperationBodyDone           = "operationBodyDone"
	EventTypeOperationCallDone           = "operationCallDone"
	EventTypeOperationStorageItems       = "operationStorageItems"
	EventTypeOperationWaitingForContinue = "operationWaitingForContinue"
	EventTypeOperationStorageDone        = "operationStorageDone"
	EventTypeOperationInaccessible       = "operationInaccessible"
	EventTypeOperationError              = "operationError"
	EventTypeStop                        = "stop"
)

// FollowEvent is the interface shared by all events reported on a follow
// subscription
type FollowEvent interface {
	EventType() string
}

// NewFollowEventFromJson parses a follow subscription notification into the
// event type indicated by its "event" tag
func NewFollowEventFromJson(data []byte) (FollowEvent, error) {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%s: decode error: %w", ProtocolName, err)
	}
	var ret FollowEvent
	switch envelope.Event {
	case EventTypeInitialized:
		ret = &EventInitialized{}
	case EventTypeNewBlock:
		ret = &EventNewBlock{}
	case EventTypeBestBlockChanged:
		ret = &EventBestBlockChanged{}
	case EventTypeFinalized:
		ret = &EventFinalized{}
	case EventTypeOperationBodyDone:
		ret = &EventOperationBodyDone{}
	case EventTypeOperationCallDone:
		ret = &EventOperationCallDone{}
	case EventTypeOperationStorageItems:
		ret = &EventOperationStorageItems{}
	case EventTypeOperationWaitingForContinue:
		ret = &EventOperationWaitingForContinue{}
	case EventTypeOperationStorageDone:
		ret = &EventOperationStorageDone{}
	case EventTypeOperationInaccessible:
		ret = &EventOperationInaccessible{}
	case EventTypeOperationError:
		ret = &EventOperationError{}
	case EventTypeStop:
		ret = &EventStop{}
	default:
		return nil, fmt.Errorf(
			"%s: unknown event type: %s",
			ProtocolName,
			envelope.Event,
		)
	}
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("%s: decode error: %w", ProtocolName, err)
	}
	return ret, nil
}

// EventInitialized reports the current finalized blocks when a follow
// subscription opens
type EventInitialized struct {
	Event                 string        `json:"event"`
	FinalizedBlockHashes  []chain.Hash  `json:"finalizedBlockHashes"`
	FinalizedBlockRuntime *RuntimeEvent `json:"finalizedBlockRuntime,omitempty"`
}

func (e *EventInitialized) EventType() string {
	return EventTypeInitialized
}

func (e *EventInitialized) UnmarshalJSON(data []byte) error {
	// Older servers report a single finalizedBlockHash instead of the list
	type tEventInitialized EventInitialized
	var tmp struct {
		tEventInitialized
		FinalizedBlockHash *chain.Hash `json:"finalizedBlockHash"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*e = EventInitialized(tmp.tEventInitialized)
	if len(e.FinalizedBlockHashes) == 0 && tmp.FinalizedBlockHash != nil {
		e.FinalizedBlockHashes = []chain.Hash{*tmp.FinalizedBlockHash}
	}
	return nil
}

// EventNewBlock announces a new non-finalized block
type EventNewBlock struct {
	Event           string        `json:"event"`
	BlockHash       chain.Hash    `json:"blockHash"`
	ParentBlockHash chain.Hash    `json:"parentBlockHash"`
	NewRuntime      *RuntimeEvent `json:"newRuntime,omitempty"`
}

func (e *EventNewBlock) EventType() string {
	return EventTypeNewBlock
}

// EventBestBlockChanged announces a new best block
type EventBestBlockChanged struct {
	Event         string     `json:"event"`
	BestBlockHash chain.Hash `json:"bestBlockHash"`
}

func (e *EventBestBlockChanged) EventType() string {
	return EventTypeBestBlockChanged
}

// EventFinalized announces newly finalized blocks along with the fork blocks
// pruned by those finalizations
type EventFinalized struct {
	Event                string       `json:"event"`
	FinalizedBlockHashes []chain.Hash `json:"finalizedBlockHashes"`
	PrunedBlockHashes    []chain.Hash `json:"prunedBlockHashes"`
}

func (e *EventFinalized) EventType() string {
	return EventTypeFinalized
}

// EventOperationBodyDone carries the extrinsics for a completed body
// operation
type EventOperationBodyDone struct {
	Event       string        `json:"event"`
	OperationId string        `json:"operationId"`
	Value       []chain.Bytes `json:"value"`
}

func (e *EventOperationBodyDone) EventType() string {
	return EventTypeOperationBodyDone
}

// EventOperationCallDone carries the output of a completed runtime call
// operation
type EventOperationCallDone struct {
	Event       string      `json:"event"`
	OperationId string      `json:"operationId"`
	Output      chain.Bytes `json:"output"`
}

func (e *EventOperationCallDone) EventType() string {
	return EventTypeOperationCallDone
}

// EventOperationStorageItems carries one page of results for a storage
// operation
type EventOperationStorageItems struct {
	Event       string              `json:"event"`
	OperationId string              `json:"operationId"`
	Items       []StorageResultItem `json:"items"`
}

func (e *EventOperationStorageItems) EventType() string {
	return EventTypeOperationStorageItems
}

// EventOperationWaitingForContinue indicates the server has paused a storage
// operation until the client acknowledges the items received so far
type EventOperationWaitingForContinue struct {
	Event       string `json:"event"`
	OperationId string `json:"operationId"`
}

func (e *EventOperationWaitingForContinue) EventType() string {
	return EventTypeOperationWaitingForContinue
}

// EventOperationStorageDone indicates a storage operation has delivered all
// of its items
type EventOperationStorageDone struct {
	Event       string `json:"event"`
	OperationId string `json:"operationId"`
}

func (e *EventOperationStorageDone) EventType() string {
	return EventTypeOperationStorageDone
}

// EventOperationInaccessible indicates the data for an operation could not be
// retrieved from the network
type EventOperationInaccessible struct {
	Event       string `json:"event"`
	OperationId string `json:"operationId"`
}

func (e *EventOperationInaccessible) EventType() string {
	return EventTypeOperationInaccessible
}

// EventOperationError indicates an operation failed on the server
type EventOperationError struct {
	Event       string `json:"event"`
	OperationId string `json:"operationId"`
	Error       string `json:"error"`
}

func (e *EventOperationError) EventType() string {
	return EventTypeOperationError
}

// EventStop indicates the server has ended the follow subscription. Every
// pin and pending operation scoped to it is dead
type EventStop struct {
	Event string `json:"event"`
}

func (e *EventStop) EventType() string {
	return EventTypeStop
}

// operationEventId returns the operation id carried by operation-scoped
// events
func operationEventId(event FollowEvent) (string, bool) {
	switch e := event.(type) {
	case *EventOperationBodyDone:
		return e.OperationId, true
	case *EventOperationCallDone:
		return e.OperationId, true
	case *EventOperationStorageItems:
		return e.OperationId, true
	case *EventOperationWaitingForContinue:
		return e.OperationId, true
	case *EventOperationStorageDone:
		return e.OperationId, true
	case *EventOperationInaccessible:
		return e.OperationId, true
	case *EventOperationError:
		return e.OperationId, true
	}
	return "", false
}

// Method response results
const (
	MethodResponseStarted      = "started"
	MethodResponseLimitReached = "limitReached"
)

// MethodResponse is the immediate reply to a body, call, or storage request.
// The operation either started, with events to follow under OperationId, or
// was rejected because the server is at its operation limit
type MethodResponse struct {
	Result         string `json:"result"`
	OperationId    string `json:"operationId,omitempty"`
	DiscardedItems int    `json:"discardedItems,omitempty"`
}

// StorageQueryType selects what a storage query fetches for its key
type StorageQueryType string

const (
	StorageQueryTypeValue              StorageQueryType = "value"
	StorageQueryTypeHash               StorageQueryType = "hash"
	StorageQueryTypeClosestMerkleValue StorageQueryType = "closestDescendantMerkleValue"
	StorageQueryTypeDescendantsValues  StorageQueryType = "descendantsValues"
	StorageQueryTypeDescendantsHashes  StorageQueryType = "descendantsHashes"
)

// StorageQuery is one item of a storage operation request
type StorageQuery struct {
	Key  chain.Bytes      `json:"key"`
	Type StorageQueryType `json:"type"`
}

// StorageResultItem is one result of a storage operation. Exactly one of the
// optional fields is populated, matching the query type
type StorageResultItem struct {
	Key                          chain.Bytes `json:"key"`
	Value                        chain.Bytes `json:"value,omitempty"`
	Hash                         chain.Bytes `json:"hash,omitempty"`
	ClosestDescendantMerkleValue chain.Bytes `json:"closestDescendantMerkleValue,omitempty"`
}

// Runtime event types
const (
	RuntimeEventTypeValid   = "valid"
	RuntimeEventTypeInvalid = "invalid"
)

// RuntimeEvent reports the runtime of a block on follow subscriptions opened
// with runtime reporting
type RuntimeEvent struct {
	Type  string       `json:"type"`
	Spec  *RuntimeSpec `json:"spec,omitempty"`
	Error string       `json:"error,omitempty"`
}

// RuntimeVersion returns the runtime version carried by a valid runtime
// event, or nil for invalid ones
func (r *RuntimeEvent) RuntimeVersion() *chain.RuntimeVersion {
	if r == nil || r.Type != RuntimeEventTypeValid || r.Spec == nil {
		return nil
	}
	return r.Spec.RuntimeVersion()
}

// RuntimeSpec describes a block's runtime
type RuntimeSpec struct {
	SpecName           string            `json:"specName"`
	ImplName           string            `json:"implName"`
	SpecVersion        uint32            `json:"specVersion"`
	ImplVersion        uint32            `json:"implVersion"`
	TransactionVersion uint32            `json:"transactionVersion"`
	Apis               chain.ApiVersions `json:"apis"`
}

// RuntimeVersion converts the spec into the common runtime version type
func (r *RuntimeSpec) RuntimeVersion() *chain.RuntimeVersion {
	return &chain.RuntimeVersion{
		SpecName:           r.SpecName,
		ImplName:           r.ImplName,
		SpecVersion:        r.SpecVersion,
		ImplVersion:        r.ImplVersion,
		TransactionVersion: r.TransactionVersion,
		Apis:               r.Apis,
	}
}

// newRuntimeSpec converts a runtime version back into spec form for
// snapshot events handed to late subscribers
func newRuntimeSpec(version *chain.RuntimeVersion) *RuntimeSpec {
	return &RuntimeSpec{
		SpecName:           version.SpecName,
		ImplName:           version.ImplName,
		SpecVersion:        version.SpecVersion,
		ImplVersion:        version.ImplVersion,
		TransactionVersion: version.TransactionVersion,
		Apis:               version.Apis,
	}
}
