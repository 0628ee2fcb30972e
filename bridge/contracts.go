package bridge

import "context"

// InitiatorContract is the source-chain side of the swap contract. Calls
// return once the chain has acknowledged submission; finalization is
// observed through the chain's event stream.
type InitiatorContract[A, H comparable] interface {
	// InitiateBridgeTransfer locks the initiator's assets under the hash
	// lock and time lock. The recipient is an address on the destination
	// chain, carried as raw bytes.
	InitiateBridgeTransfer(ctx context.Context, initiator A, recipient []byte, hashLock H, timeLock TimeLock, amount Amount) error

	// CompleteBridgeTransfer claims the locked assets by revealing the
	// pre-image of the hash lock.
	CompleteBridgeTransfer(ctx context.Context, bridgeTransferID H, preImage HashLockPreImage) error

	// RefundBridgeTransfer reclaims the assets after the time lock expired.
	RefundBridgeTransfer(ctx context.Context, bridgeTransferID H) error
}

// CounterpartyContract is the destination-chain side of the swap contract.
type CounterpartyContract[A, H comparable] interface {
	// LockBridgeTransfer locks matching assets for the recipient under the
	// same hash lock, keyed by the transfer id issued on the source chain.
	LockBridgeTransfer(ctx context.Context, bridgeTransferID H, hashLock H, timeLock TimeLock, recipient A, amount Amount) error

	// CompleteBridgeTransfer releases the locked assets to the recipient by
	// revealing the pre-image.
	CompleteBridgeTransfer(ctx context.Context, bridgeTransferID H, preImage HashLockPreImage) error

	// AbortBridgeTransfer cancels the lock after the time lock expired.
	AbortBridgeTransfer(ctx context.Context, bridgeTransferID H) error
}

// BlockchainService bundles everything the coordinator needs from one
// chain: the two contract handles and the finalized-event stream.
//
// The stream must deliver each finalized event at least once and preserve
// on-chain order per bridge transfer id; no ordering is guaranteed across
// ids. Closing the channel signals that the observer has terminated and
// will never produce events again.
type BlockchainService[A, H comparable] interface {
	InitiatorContract() InitiatorContract[A, H]
	CounterpartyContract() CounterpartyContract[A, H]
	Events() <-chan ContractEvent[A, H]
}
