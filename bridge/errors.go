package bridge

import "errors"

// Coordinator errors.
var (
	// ErrNonExistingSwap is returned when a counterparty completion refers
	// to a bridge transfer id the swap map does not know.
	ErrNonExistingSwap = errors.New("swap does not exist for bridge transfer id")

	// ErrSwapAlreadyExists is returned when a bridge transfer is started
	// for an id that is already being executed.
	ErrSwapAlreadyExists = errors.New("swap already exists for bridge transfer id")

	// ErrStreamClosed is returned by Next once both chain observers have
	// terminated and the swap maps are empty.
	ErrStreamClosed = errors.New("bridge event stream closed")
)
