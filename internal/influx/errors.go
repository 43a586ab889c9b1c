package influx

import (
	"errors"
	"fmt"
)

// Sentinel errors for influx client operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, influx.ErrConnectFailed) {
//	    // abort startup
//	}
var (
	// ErrNotConnected indicates an operation that needs a live driver was
	// called before Connect.
	ErrNotConnected = errors.New("influx: client not connected")

	// ErrConnectFailed is the single coarse failure Connect returns; the
	// root cause is logged, not carried.
	ErrConnectFailed = errors.New("influx: connect failed")

	// ErrNilRows indicates InsertRows was called with a nil row list,
	// which is a caller contract violation (an empty list is a no-op).
	ErrNilRows = errors.New("influx: row list must not be nil")

	// ErrMissingTableName indicates InsertRows was called without a
	// table name.
	ErrMissingTableName = errors.New("influx: table name is required")

	// ErrNilQuery indicates Execute was called with a nil query.
	ErrNilQuery = errors.New("influx: selection query is required")

	// ErrServer indicates the server rejected a request.
	ErrServer = errors.New("influx: server error")

	// ErrTransport indicates a request never completed (connection
	// refused, dropped mid-request, timeout).
	ErrTransport = errors.New("influx: transport error")

	// ErrTransferIncomplete indicates one or more bulk transfer queries
	// failed and need manual retry.
	ErrTransferIncomplete = errors.New("influx: transfer incomplete")
)

// PartialWriteError reports a write the server accepted only partially,
// dropping points that fell outside the target retention policy. The
// drop count decides severity: below the configured threshold this is
// expected during catch-up writes, at or above it the batch needs
// manual attention.
type PartialWriteError struct {
	// Dropped is the number of points the server discarded.
	Dropped int
}

// Error implements the error interface.
func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("influx: partial write: %d points beyond retention policy dropped", e.Dropped)
}
