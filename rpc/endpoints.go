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
	"fmt"
	"net/url"
	"sync"
)

// normalizeEndpoint validates an endpoint URL and rewrites http(s) schemes to their
// websocket equivalents
func normalizeEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "ws", "wss":
		// Nothing to do
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf(
			"unsupported endpoint scheme %q in %q",
			u.Scheme,
			endpoint,
		)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return u.String(), nil
}

// endpointRotation tracks the configured endpoints and hands them out round-robin,
// along with per-endpoint failure counts for diagnostics
type endpointRotation struct {
	mutex     sync.Mutex
	endpoints []string
	nextIndex int
	failures  map[string]int
}

func newEndpointRotation(endpoints []string) *endpointRotation {
	return &endpointRotation{
		endpoints: endpoints,
		failures:  make(map[string]int),
	}
}

// next returns the endpoint to try for the next connection attempt
func (e *endpointRotation) next() string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	endpoint := e.endpoints[e.nextIndex]
	e.nextIndex = (e.nextIndex + 1) % len(e.endpoints)
	return endpoint
}

func (e *endpointRotation) recordFailure(endpoint string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.failures[endpoint]++
}

func (e *endpointRotation) recordSuccess(endpoint string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.failures, endpoint)
}

// failureCount returns the consecutive failure count for an endpoint
func (e *endpointRotation) failureCount(endpoint string) int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.failures[endpoint]
}
