// Package bridge implements the coordinator that drives hash-time-locked
// atomic swaps between two independent blockchains.
//
// A user locks assets on the source chain under a hash lock and time lock;
// the coordinator observes that event, locks equivalent assets on the
// destination chain under the same hash lock, and once the claim on the
// destination chain reveals the pre-image, completes the swap on the source
// chain. Swaps flow in either direction concurrently.
//
// The package is generic over the two chains' address and hash types. Chain
// adapters (see chains/evm and chains/svm) provide the concrete types,
// the contract handles, and the event stream; the Converter value carries
// the canonical cross-chain type mapping agreed by the two contracts.
package bridge

import "bytes"

// TimeLock is an expiry in seconds or block height, depending on the chain.
// The coordinator treats it opaquely and copies it across chains.
type TimeLock uint64

// Amount is an opaque integer asset amount. No arithmetic is performed on it.
type Amount uint64

// HashLockPreImage is the secret whose hash equals the hash lock. Revealing
// it on the destination chain enables the claim on the source chain. The
// coordinator forwards it verbatim and never verifies it against the lock.
type HashLockPreImage []byte

// Equal reports whether two pre-images are byte-identical.
func (p HashLockPreImage) Equal(other HashLockPreImage) bool {
	return bytes.Equal(p, other)
}

// BridgeTransferDetails describes a swap as initiated on the source chain.
// The recipient address is carried as raw bytes because it names an account
// on the destination chain, whose concrete address type the source chain
// does not know.
type BridgeTransferDetails[A, H comparable] struct {
	BridgeTransferID H
	InitiatorAddress A
	RecipientAddress []byte
	HashLock         H
	TimeLock         TimeLock
	Amount           Amount
}

// LockDetails describes the counterparty-side lock on the destination chain.
// It mirrors BridgeTransferDetails with the roles of the typed and raw
// addresses swapped: the recipient lives on this chain, the initiator is
// carried as raw bytes.
type LockDetails[A, H comparable] struct {
	BridgeTransferID H
	InitiatorAddress []byte
	RecipientAddress A
	HashLock         H
	TimeLock         TimeLock
	Amount           Amount
}

// CounterpartyCompletedDetails is the destination-side completion: the lock
// details plus the revealed pre-image. The lock's time lock is not carried.
type CounterpartyCompletedDetails[A, H comparable] struct {
	BridgeTransferID H
	InitiatorAddress []byte
	RecipientAddress A
	HashLock         H
	Secret           HashLockPreImage
	Amount           Amount
}

// CompletedFromLockDetails builds completion details from a lock and the
// secret revealed by the claim.
func CompletedFromLockDetails[A, H comparable](lock LockDetails[A, H], secret HashLockPreImage) CounterpartyCompletedDetails[A, H] {
	return CounterpartyCompletedDetails[A, H]{
		BridgeTransferID: lock.BridgeTransferID,
		InitiatorAddress: lock.InitiatorAddress,
		RecipientAddress: lock.RecipientAddress,
		HashLock:         lock.HashLock,
		Secret:           secret,
		Amount:           lock.Amount,
	}
}

// Converter carries the canonical cross-chain type mapping for one swap
// direction, from the initiator chain (AFrom, HFrom) to the counterparty
// chain (ATo, HTo). All functions must be total and consistent with the
// address and hash representations the two on-chain contracts agree on;
// HashToInitiator must invert HashToCounterparty.
type Converter[AFrom, HFrom, ATo, HTo comparable] struct {
	HashToCounterparty    func(HFrom) HTo
	HashToInitiator       func(HTo) HFrom
	AddressToCounterparty func(AFrom) ATo
	AddressToInitiator    func(ATo) AFrom

	// AddressFromBytes reconstructs a counterparty-chain address from the
	// raw recipient bytes carried in BridgeTransferDetails.
	AddressFromBytes func([]byte) ATo
}
