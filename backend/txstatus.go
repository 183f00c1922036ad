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
	"fmt"

	"github.com/blinklabs-io/gosubstrate/chain"
)

// TransactionStatusKind enumerates the unified transaction lifecycle
// statuses. Both backend generations map their native status vocabularies
// onto this set
type TransactionStatusKind uint

const (
	TransactionStatusNone                TransactionStatusKind = 0
	TransactionStatusValidated           TransactionStatusKind = 1
	TransactionStatusBroadcasted         TransactionStatusKind = 2
	TransactionStatusInBestBlock         TransactionStatusKind = 3
	TransactionStatusNoLongerInBestBlock TransactionStatusKind = 4
	TransactionStatusInFinalizedBlock    TransactionStatusKind = 5
	TransactionStatusDropped             TransactionStatusKind = 6
	TransactionStatusInvalid             TransactionStatusKind = 7
	TransactionStatusError               TransactionStatusKind = 8
)

func (k TransactionStatusKind) String() string {
	switch k {
	case TransactionStatusValidated:
		return "validated"
	case TransactionStatusBroadcasted:
		return "broadcasted"
	case TransactionStatusInBestBlock:
		return "inBestBlock"
	case TransactionStatusNoLongerInBestBlock:
		return "noLongerInBestBlock"
	case TransactionStatusInFinalizedBlock:
		return "inFinalizedBlock"
	case TransactionStatusDropped:
		return "dropped"
	case TransactionStatusInvalid:
		return "invalid"
	case TransactionStatusError:
		return "error"
	}
	return "unknown"
}

// TransactionStatus is one update in a transaction's submission lifecycle.
// Block is set for the InBestBlock and InFinalizedBlock kinds; Reason carries
// the server's detail for Dropped, Invalid, and Error
type TransactionStatus struct {
	Kind   TransactionStatusKind
	Block  chain.Hash
	Reason string
}

// IsTerminal reports whether no further status updates follow this one
func (s TransactionStatus) IsTerminal() bool {
	switch s.Kind {
	case TransactionStatusInFinalizedBlock,
		TransactionStatusDropped,
		TransactionStatusInvalid,
		TransactionStatusError:
		return true
	}
	return false
}

func (s TransactionStatus) String() string {
	switch s.Kind {
	case TransactionStatusInBestBlock, TransactionStatusInFinalizedBlock:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Block)
	case TransactionStatusDropped, TransactionStatusInvalid, TransactionStatusError:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Reason)
	}
	return s.Kind.String()
}
