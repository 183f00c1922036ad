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

// Package rpc implements the JSON-RPC 2.0 client transport used to talk to
// a Substrate node over a persistent websocket, including transparent
// reconnection with request replay and subscription restoration.
package rpc

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

const jsonRpcVersion = "2.0"

// Request is an outbound JSON-RPC 2.0 call envelope. Request ids come from a
// client-wide counter, so an id is never reused across reconnects
type Request struct {
	JsonRpc string          `json:"jsonrpc"`
	Id      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func NewRequest(id uint64, method string, params any) (*Request, error) {
	r := &Request{
		JsonRpc: jsonRpcVersion,
		Id:      id,
		Method:  method,
	}
	if params != nil {
		tmpParams, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params for %s: %w", method, err)
		}
		r.Params = tmpParams
	}
	return r, nil
}

// Response is an inbound JSON-RPC 2.0 reply envelope, correlated to a
// request by id
type Response struct {
	JsonRpc string          `json:"jsonrpc"`
	Id      *uint64         `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

func NewResponse(id uint64, result any) (*Response, error) {
	tmpResult, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{
		JsonRpc: jsonRpcVersion,
		Id:      &id,
		Result:  tmpResult,
	}, nil
}

func NewErrorResponse(id uint64, respErr *Error) *Response {
	return &Response{
		JsonRpc: jsonRpcVersion,
		Id:      &id,
		Error:   respErr,
	}
}

// Notification is a server push for an active subscription
type Notification struct {
	JsonRpc string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  NotificationParams `json:"params"`
}

type NotificationParams struct {
	Subscription json.RawMessage `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

func NewNotification(
	method string,
	subscriptionId string,
	result any,
) (*Notification, error) {
	tmpSubId, err := json.Marshal(subscriptionId)
	if err != nil {
		return nil, err
	}
	tmpResult, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Notification{
		JsonRpc: jsonRpcVersion,
		Method:  method,
		Params: NotificationParams{
			Subscription: tmpSubId,
			Result:       tmpResult,
		},
	}, nil
}

// inboundMessage is the union of the reply and notification shapes. A
// non-nil id marks a reply, a non-empty method marks a notification
type inboundMessage struct {
	JsonRpc string          `json:"jsonrpc"`
	Id      *uint64         `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// subscriptionIdString normalizes a server-assigned subscription id, which
// some methods report as a JSON string and others as a number
func subscriptionIdString(raw json.RawMessage) (string, error) {
	tmpRaw := strings.TrimSpace(string(raw))
	if tmpRaw == "" || tmpRaw == "null" {
		return "", fmt.Errorf("missing subscription id")
	}
	if tmpRaw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		if s == "" {
			return "", fmt.Errorf("empty subscription id")
		}
		return s, nil
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid subscription id %s: %w", tmpRaw, err)
	}
	return tmpRaw, nil
}
