// Package ledger defines the transaction boundary to the ledger network and
// an HTTP gateway client implementing it. Connection bootstrapping, identity
// enrollment and transport security live behind the gateway; this package
// only speaks its request/response surface.
package ledger

import (
	"context"
	"errors"
	"strings"
)

// ErrWriteConflict is the optimistic-concurrency violation returned when two
// concurrent transactions mutate overlapping ledger state. It is
// specifically distinguishable from other failures because it alone drives
// the submitter's retry decision.
var ErrWriteConflict = errors.New("write conflict")

// conflictMarker is the conflict code the ledger embeds in error responses.
const conflictMarker = "MVCC_READ_CONFLICT"

// IsWriteConflict reports whether err is an optimistic-concurrency
// violation, either the sentinel or a gateway response carrying the ledger's
// conflict marker.
func IsWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWriteConflict) {
		return true
	}
	return strings.Contains(err.Error(), conflictMarker)
}

// Contract is one resolved contract handle: an authenticated connection
// bound to a named contract, able to initialize an instance and submit
// transactions against it.
type Contract interface {
	// Init performs the one-time initialization call and returns the
	// instance id assigned by the contract.
	Init(ctx context.Context, params []byte) (string, error)
	// Submit invokes the named transaction with the given payload.
	Submit(ctx context.Context, transaction string, payload []byte) ([]byte, error)
}

// Resolver resolves a logical identity and contract name to a contract
// handle. Implementations cache by (identity, contract); callers must not
// assume a fresh connection per call.
type Resolver interface {
	ResolveContract(ctx context.Context, identity, contractName string) (Contract, error)
}
