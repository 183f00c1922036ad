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

// BlockRef identifies a block by hash and may hold a lease that keeps the
// block queryable for as long as the ref is alive. Refs are value types that
// share their lease, so copies count as one holder
type BlockRef struct {
	hash    chain.Hash
	release *releaseHandle
}

type releaseHandle struct {
	once sync.Once
	fn   func()
}

// NewBlockRef returns a ref without a lease. Release is a no-op
func NewBlockRef(blockHash chain.Hash) BlockRef {
	return BlockRef{
		hash: blockHash,
	}
}

// NewBlockRefWithRelease returns a ref whose lease is returned by calling the
// provided function exactly once
func NewBlockRefWithRelease(blockHash chain.Hash, release func()) BlockRef {
	return BlockRef{
		hash: blockHash,
		release: &releaseHandle{
			fn: release,
		},
	}
}

// Hash returns the hash of the referenced block
func (r BlockRef) Hash() chain.Hash {
	return r.hash
}

// Release gives up the ref's lease, if any. The block may stop being
// queryable afterward. Safe to call any number of times
func (r BlockRef) Release() {
	if r.release != nil {
		r.release.once.Do(r.release.fn)
	}
}

func (r BlockRef) String() string {
	return r.hash.String()
}
