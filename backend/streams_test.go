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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestHeaderStreamSendAndFinish(t *testing.T) {
	defer goleak.VerifyNone(t)
	stream := NewHeaderStream(4, nil)
	go func() {
		for i := uint64(1); i <= 3; i++ {
			stream.Send(HeaderUpdate{
				Header: &chain.Header{Number: chain.BlockNumber(i)},
				Ref:    NewBlockRef(chain.Hash{byte(i)}),
			})
		}
		stream.Finish()
	}()
	var numbers []uint64
	for item := range stream.Chan() {
		numbers = append(numbers, uint64(item.Header.Number))
	}
	assert.Equal(t, []uint64{1, 2, 3}, numbers)
	select {
	case err := <-stream.Errors():
		t.Fatalf("received unexpected error: %s", err)
	default:
	}
}

func TestStreamStopUnblocksProducer(t *testing.T) {
	defer goleak.VerifyNone(t)
	var stopCalls atomic.Int32
	stream := NewStorageStream(0, func() {
		stopCalls.Add(1)
	})
	sendResult := make(chan bool, 2)
	go func() {
		// Unbuffered channel with no consumer, so this blocks until Stop
		sendResult <- stream.Send(StorageEntry{Key: chain.Bytes{0x01}})
		sendResult <- stream.Send(StorageEntry{Key: chain.Bytes{0x02}})
		stream.Finish()
	}()
	time.Sleep(50 * time.Millisecond)
	stream.Stop()
	stream.Stop()
	for range 2 {
		select {
		case delivered := <-sendResult:
			assert.False(t, delivered)
		case <-time.After(5 * time.Second):
			t.Fatalf("producer still blocked after stop")
		}
	}
	assert.Equal(t, int32(1), stopCalls.Load())
}

func TestStreamFail(t *testing.T) {
	defer goleak.VerifyNone(t)
	expectedErr := errors.New("follow session ended")
	stream := NewRuntimeVersionStream(1, nil)
	stream.Send(&chain.RuntimeVersion{SpecVersion: 100})
	stream.Fail(expectedErr)
	var got []*chain.RuntimeVersion
	for item := range stream.Chan() {
		got = append(got, item)
	}
	require.Len(t, got, 1)
	assert.Equal(t, uint32(100), got[0].SpecVersion)
	select {
	case err := <-stream.Errors():
		assert.Equal(t, expectedErr, err)
	default:
		t.Fatalf("did not receive expected error")
	}
}

func TestTransactionStatusStreamTerminal(t *testing.T) {
	defer goleak.VerifyNone(t)
	stream := NewTransactionStatusStream(8, nil)
	statuses := []TransactionStatus{
		{Kind: TransactionStatusValidated},
		{Kind: TransactionStatusInBestBlock, Block: chain.Hash{0x01}},
		{Kind: TransactionStatusInFinalizedBlock, Block: chain.Hash{0x01}},
	}
	go func() {
		for _, status := range statuses {
			stream.Send(status)
			if status.IsTerminal() {
				break
			}
		}
		stream.Finish()
	}()
	var got []TransactionStatus
	for status := range stream.Chan() {
		got = append(got, status)
	}
	require.Len(t, got, 3)
	assert.False(t, got[0].IsTerminal())
	assert.False(t, got[1].IsTerminal())
	assert.True(t, got[2].IsTerminal())
}

func TestTransactionStatusString(t *testing.T) {
	blockHash, err := chain.NewHashFromHexString(
		"0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3",
	)
	require.NoError(t, err)
	testDefs := []struct {
		status   TransactionStatus
		expected string
	}{
		{
			status:   TransactionStatus{Kind: TransactionStatusValidated},
			expected: "validated",
		},
		{
			status: TransactionStatus{
				Kind:  TransactionStatusInBestBlock,
				Block: blockHash,
			},
			expected: "inBestBlock(0x91b171bb158e2d3848fa23a9f1c25182fb8e20313b2c1eb49219da7a70ce90c3)",
		},
		{
			status: TransactionStatus{
				Kind:   TransactionStatusInvalid,
				Reason: "bad signature",
			},
			expected: "invalid(bad signature)",
		},
	}
	for _, testDef := range testDefs {
		assert.Equal(t, testDef.expected, testDef.status.String())
	}
}

func TestBlockRefRelease(t *testing.T) {
	var releases atomic.Int32
	ref := NewBlockRefWithRelease(chain.Hash{0x01}, func() {
		releases.Add(1)
	})
	refCopy := ref
	ref.Release()
	refCopy.Release()
	ref.Release()
	assert.Equal(t, int32(1), releases.Load())
	// Refs without a lease are inert
	plain := NewBlockRef(chain.Hash{0x02})
	plain.Release()
	assert.Equal(t, chain.Hash{0x02}, plain.Hash())
}
