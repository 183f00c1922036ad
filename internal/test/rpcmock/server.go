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

package rpcmock

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/blinklabs-io/gosubstrate/rpc"
)

const requestReadTimeout = 10 * time.Second

// Server mocks a JSON-RPC websocket node for tests. Each successive client
// connection plays the next scripted conversation, which makes reconnect behavior
// testable: drop the first connection mid-script and script the second one's
// expectations separately. Script violations are delivered on ErrorChan rather than
// panicking, since http handlers swallow panics
type Server struct {
	httpServer    *httptest.Server
	conversations []Conversation
	errorChan     chan error
	onceClose     sync.Once
	mutex         sync.Mutex
	connCount     int
	entriesPlayed int
	conns         map[*websocket.Conn]struct{}
}

// NewServer returns a started Server that plays one conversation per successive
// connection
func NewServer(conversations ...Conversation) *Server {
	s := &Server{
		conversations: conversations,
		errorChan:     make(chan error, 10),
		conns:         make(map[*websocket.Conn]struct{}),
	}
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.handleConnection))
	return s
}

// URL returns the server's URL. It carries an http scheme, which the client
// rewrites to ws
func (s *Server) URL() string {
	return s.httpServer.URL
}

// ErrorChan returns the channel that script violations are delivered on. It's
// closed on shutdown
func (s *Server) ErrorChan() <-chan error {
	return s.errorChan
}

// ConnectionCount returns how many websocket connections have been accepted
func (s *Server) ConnectionCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.connCount
}

// EntriesPlayed returns how many conversation entries have completed across all
// connections. Tests use it to wait for requests the client issues from
// background goroutines before moving the script along
func (s *Server) EntriesPlayed() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.entriesPlayed
}

// Close force-closes any live connections and shuts the server down
func (s *Server) Close() {
	s.onceClose.Do(func() {
		s.mutex.Lock()
		for ws := range s.conns {
			ws.UnderlyingConn().Close()
		}
		s.mutex.Unlock()
		s.httpServer.Close()
		close(s.errorChan)
	})
}

func (s *Server) sendError(err error) {
	select {
	case s.errorChan <- err:
	default:
	}
}

func (s *Server) markEntryPlayed() {
	s.mutex.Lock()
	s.entriesPlayed++
	s.mutex.Unlock()
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	connIndex := s.connCount
	s.connCount++
	s.mutex.Unlock()
	if connIndex >= len(s.conversations) {
		s.sendError(
			fmt.Errorf(
				"unexpected connection %d: no conversation scripted",
				connIndex+1,
			),
		)
		http.Error(w, "no conversation scripted", http.StatusServiceUnavailable)
		return
	}
	upgrader := websocket.Upgrader{}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.sendError(fmt.Errorf("websocket upgrade: %w", err))
		return
	}
	s.mutex.Lock()
	s.conns[ws] = struct{}{}
	s.mutex.Unlock()
	defer func() {
		s.mutex.Lock()
		delete(s.conns, ws)
		s.mutex.Unlock()
		ws.Close()
	}()
	s.runConversation(ws, connIndex, s.conversations[connIndex])
}

func (s *Server) runConversation(
	ws *websocket.Conn,
	connIndex int,
	conversation Conversation,
) {
	for entryIndex, entry := range conversation {
		var err error
		switch e := entry.(type) {
		case ConversationEntryRequest:
			err = s.processRequestEntry(ws, e)
		case ConversationEntryNotify:
			err = s.processNotifyEntry(ws, e)
		case ConversationEntryDrop:
			ws.UnderlyingConn().Close()
			s.markEntryPlayed()
			return
		default:
			err = fmt.Errorf("unknown conversation entry type: %#v", entry)
		}
		if err != nil {
			s.sendError(
				fmt.Errorf(
					"connection %d entry %d: %w",
					connIndex+1,
					entryIndex,
					err,
				),
			)
			return
		}
		s.markEntryPlayed()
	}
	// Conversation complete. Keep reading so pings are answered and the close
	// handshake works. Any further request from the client is a script violation
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req rpc.Request
		if err := json.Unmarshal(data, &req); err == nil && req.Method != "" {
			s.sendError(
				fmt.Errorf(
					"connection %d: unscripted request %s after conversation end",
					connIndex+1,
					req.Method,
				),
			)
		}
	}
}

func (s *Server) processRequestEntry(
	ws *websocket.Conn,
	entry ConversationEntryRequest,
) error {
	if err := ws.SetReadDeadline(time.Now().Add(requestReadTimeout)); err != nil {
		return err
	}
	_, data, err := ws.ReadMessage()
	if err != nil {
		return fmt.Errorf("waiting for %s request: %w", entry.Method, err)
	}
	if err := ws.SetReadDeadline(time.Time{}); err != nil {
		return err
	}
	var req rpc.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parsing request: %w", err)
	}
	if req.Method != entry.Method {
		return fmt.Errorf(
			"request method did not match expected value: expected %s, got %s",
			entry.Method,
			req.Method,
		)
	}
	if entry.Params != nil {
		expected, err := canonicalize(entry.Params)
		if err != nil {
			return err
		}
		var got any
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &got); err != nil {
				return fmt.Errorf("parsing request params: %w", err)
			}
		}
		if !reflect.DeepEqual(got, expected) {
			return fmt.Errorf(
				"%s params did not match expected value: expected %#v, got %#v",
				entry.Method,
				expected,
				got,
			)
		}
	}
	if entry.NoReply {
		return nil
	}
	var resp *rpc.Response
	if entry.Error != nil {
		resp = rpc.NewErrorResponse(req.Id, entry.Error)
	} else {
		resp, err = rpc.NewResponse(req.Id, entry.Result)
		if err != nil {
			return err
		}
	}
	return s.writeJson(ws, resp)
}

func (s *Server) processNotifyEntry(
	ws *websocket.Conn,
	entry ConversationEntryNotify,
) error {
	if entry.Delay > 0 {
		time.Sleep(entry.Delay)
	}
	notification, err := rpc.NewNotification(
		entry.Method,
		entry.SubscriptionId,
		entry.Result,
	)
	if err != nil {
		return err
	}
	return s.writeJson(ws, notification)
}

func (s *Server) writeJson(ws *websocket.Conn, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, data)
}

// canonicalize round-trips a value through JSON so scripted params compare equal
// to parsed ones regardless of their Go types
func canonicalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
