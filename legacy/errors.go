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

import "errors"

// ErrBlockNotFound is returned when the node does not know the requested
// block. Legacy nodes prune old block bodies, so this can happen for blocks
// that were once fetchable
var ErrBlockNotFound = errors.New("block not found")

// ErrWatchEnded is returned when a transaction watch ends without the node
// reporting a terminal status
var ErrWatchEnded = errors.New("transaction watch ended unexpectedly")
