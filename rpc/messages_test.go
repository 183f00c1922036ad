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

package rpc

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestEncoding(t *testing.T) {
	req, err := NewRequest(7, "system_health", nil)
	require.NoError(t, err)
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(
		t,
		`{"jsonrpc":"2.0","id":7,"method":"system_health"}`,
		string(data),
	)
	req, err = NewRequest(8, "chain_getBlockHash", []any{42})
	require.NoError(t, err)
	data, err = json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(
		t,
		`{"jsonrpc":"2.0","id":8,"method":"chain_getBlockHash","params":[42]}`,
		string(data),
	)
}

func TestInboundMessageReply(t *testing.T) {
	var msg inboundMessage
	err := json.Unmarshal(
		[]byte(`{"jsonrpc":"2.0","id":3,"result":"0xdeadbeef"}`),
		&msg,
	)
	require.NoError(t, err)
	require.NotNil(t, msg.Id)
	assert.Equal(t, uint64(3), *msg.Id)
	assert.Equal(t, `"0xdeadbeef"`, string(msg.Result))
	assert.Nil(t, msg.Error)
	assert.Empty(t, msg.Method)
}

func TestInboundMessageErrorReply(t *testing.T) {
	var msg inboundMessage
	err := json.Unmarshal(
		[]byte(
			`{"jsonrpc":"2.0","id":4,"error":{"code":-32601,"message":"Method not found"}}`,
		),
		&msg,
	)
	require.NoError(t, err)
	require.NotNil(t, msg.Id)
	require.NotNil(t, msg.Error)
	assert.Equal(t, -32601, msg.Error.Code)
	assert.Equal(
		t,
		"server error -32601: Method not found",
		msg.Error.Error(),
	)
}

func TestInboundMessageNotification(t *testing.T) {
	var msg inboundMessage
	err := json.Unmarshal(
		[]byte(
			`{"jsonrpc":"2.0","method":"chain_newHead","params":{"subscription":"abc123","result":{"number":"0x1"}}}`,
		),
		&msg,
	)
	require.NoError(t, err)
	assert.Nil(t, msg.Id)
	assert.Equal(t, "chain_newHead", msg.Method)
	var params NotificationParams
	require.NoError(t, json.Unmarshal(msg.Params, &params))
	serverId, err := subscriptionIdString(params.Subscription)
	require.NoError(t, err)
	assert.Equal(t, "abc123", serverId)
}

func TestNotificationEncoding(t *testing.T) {
	notification, err := NewNotification("chain_newHead", "sub1", "payload")
	require.NoError(t, err)
	data, err := json.Marshal(notification)
	require.NoError(t, err)
	assert.JSONEq(
		t,
		`{"jsonrpc":"2.0","method":"chain_newHead","params":{"subscription":"sub1","result":"payload"}}`,
		string(data),
	)
}

func TestSubscriptionIdString(t *testing.T) {
	testDefs := []struct {
		raw         string
		expected    string
		expectError bool
	}{
		{raw: `"abc123"`, expected: "abc123"},
		{raw: `42`, expected: "42"},
		{raw: `""`, expectError: true},
		{raw: `null`, expectError: true},
		{raw: ``, expectError: true},
		{raw: `{"foo":1}`, expectError: true},
	}
	for _, testDef := range testDefs {
		serverId, err := subscriptionIdString(json.RawMessage(testDef.raw))
		if testDef.expectError {
			assert.Error(t, err, "raw %q", testDef.raw)
			continue
		}
		require.NoError(t, err, "raw %q", testDef.raw)
		assert.Equal(t, testDef.expected, serverId)
	}
}
