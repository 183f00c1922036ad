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

package backend

import (
	"sync"

	"github.com/blinklabs-io/gosubstrate/chain"
)

// HeaderUpdate pairs an announced block header with a ref to the block it
// describes. Holding the ref keeps the block queryable under backends with
// pinning; release it once the block is no longer needed
type HeaderUpdate struct {
	Header *chain.Header
	Ref    BlockRef
}

// StorageEntry is one key/value pair from a storage stream
type StorageEntry struct {
	Key   chain.Bytes
	Value chain.Bytes
}

// streamCore carries the lifecycle shared by the typed streams: a terminal
// error slot and consumer-initiated stop. The item channel lives in the typed
// wrapper. Consumer contract: read Chan() until it closes, then drain
// Errors() to learn whether the stream ended cleanly. Producer contract:
// Send/Fail/Finish come from a single goroutine, which watches Done() to
// notice a consumer stop
type streamCore struct {
	errorChan chan error
	doneChan  chan struct{}
	onceStop  sync.Once
	onStop    func()
}

func newStreamCore(onStop func()) streamCore {
	return streamCore{
		errorChan: make(chan error, 1),
		doneChan:  make(chan struct{}),
		onStop:    onStop,
	}
}

// Errors returns the channel carrying the stream's terminal error, if any.
// Drain it after the item channel closes
func (s *streamCore) Errors() <-chan error {
	return s.errorChan
}

// Stop ends the consumer's interest in the stream. The producer notices and
// releases whatever feeds it
func (s *streamCore) Stop() {
	s.onceStop.Do(func() {
		close(s.doneChan)
		if s.onStop != nil {
			s.onStop()
		}
	})
}

// Done returns the channel closed by Stop
func (s *streamCore) Done() <-chan struct{} {
	return s.doneChan
}

func (s *streamCore) setError(err error) {
	select {
	case s.errorChan <- err:
	default:
	}
}

// HeaderStream is a stream of block header announcements
type HeaderStream struct {
	streamCore
	itemChan   chan HeaderUpdate
	onceFinish sync.Once
}

// NewHeaderStream returns a HeaderStream with the given delivery buffer. The
// onStop function, if any, runs once when the consumer calls Stop
func NewHeaderStream(bufferSize int, onStop func()) *HeaderStream {
	return &HeaderStream{
		streamCore: newStreamCore(onStop),
		itemChan:   make(chan HeaderUpdate, bufferSize),
	}
}

// Chan returns the channel headers are delivered on. It closes when the
// stream ends
func (s *HeaderStream) Chan() <-chan HeaderUpdate {
	return s.itemChan
}

// Send delivers one item, pacing to the consumer. It reports false once the
// consumer has stopped the stream
func (s *HeaderStream) Send(item HeaderUpdate) bool {
	select {
	case s.itemChan <- item:
		return true
	case <-s.doneChan:
		return false
	}
}

// Fail records a terminal error and ends the stream
func (s *HeaderStream) Fail(err error) {
	s.setError(err)
	s.Finish()
}

// Finish ends the stream cleanly
func (s *HeaderStream) Finish() {
	s.onceFinish.Do(func() {
		close(s.itemChan)
	})
}

// StorageStream is a stream of storage key/value entries
type StorageStream struct {
	streamCore
	itemChan   chan StorageEntry
	onceFinish sync.Once
}

func NewStorageStream(bufferSize int, onStop func()) *StorageStream {
	return &StorageStream{
		streamCore: newStreamCore(onStop),
		itemChan:   make(chan StorageEntry, bufferSize),
	}
}

func (s *StorageStream) Chan() <-chan StorageEntry {
	return s.itemChan
}

func (s *StorageStream) Send(item StorageEntry) bool {
	select {
	case s.itemChan <- item:
		return true
	case <-s.doneChan:
		return false
	}
}

func (s *StorageStream) Fail(err error) {
	s.setError(err)
	s.Finish()
}

func (s *StorageStream) Finish() {
	s.onceFinish.Do(func() {
		close(s.itemChan)
	})
}

// RuntimeVersionStream is a stream of runtime versions as they take effect
type RuntimeVersionStream struct {
	streamCore
	itemChan   chan *chain.RuntimeVersion
	onceFinish sync.Once
}

func NewRuntimeVersionStream(
	bufferSize int,
	onStop func(),
) *RuntimeVersionStream {
	return &RuntimeVersionStream{
		streamCore: newStreamCore(onStop),
		itemChan:   make(chan *chain.RuntimeVersion, bufferSize),
	}
}

func (s *RuntimeVersionStream) Chan() <-chan *chain.RuntimeVersion {
	return s.itemChan
}

func (s *RuntimeVersionStream) Send(item *chain.RuntimeVersion) bool {
	select {
	case s.itemChan <- item:
		return true
	case <-s.doneChan:
		return false
	}
}

func (s *RuntimeVersionStream) Fail(err error) {
	s.setError(err)
	s.Finish()
}

func (s *RuntimeVersionStream) Finish() {
	s.onceFinish.Do(func() {
		close(s.itemChan)
	})
}

// TransactionStatusStream is a stream of submission lifecycle updates for one
// transaction. It ends after a terminal status
type TransactionStatusStream struct {
	streamCore
	itemChan   chan TransactionStatus
	onceFinish sync.Once
}

func NewTransactionStatusStream(
	bufferSize int,
	onStop func(),
) *TransactionStatusStream {
	return &TransactionStatusStream{
		streamCore: newStreamCore(onStop),
		itemChan:   make(chan TransactionStatus, bufferSize),
	}
}

func (s *TransactionStatusStream) Chan() <-chan TransactionStatus {
	return s.itemChan
}

func (s *TransactionStatusStream) Send(item TransactionStatus) bool {
	select {
	case s.itemChan <- item:
		return true
	case <-s.doneChan:
		return false
	}
}

func (s *TransactionStatusStream) Fail(err error) {
	s.setError(err)
	s.Finish()
}

func (s *TransactionStatusStream) Finish() {
	s.onceFinish.Do(func() {
		close(s.itemChan)
	})
}
