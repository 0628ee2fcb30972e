// Package chaintest provides an in-process simulated blockchain for
// exercising the bridge coordinator without a node. A Chain holds the
// contract state for both swap roles and fans finalized events out to
// listeners; a Client implements both contract interfaces against it, with
// injectable failures; a Service bundles a client and an event feed into a
// bridge.BlockchainService.
package chaintest

import (
	"sync"

	"github.com/boymaas/atomic-bridge/bridge"
)

// Chain is a simulated blockchain generic over its address and hash types.
// Transfer ids are produced by the caller-supplied generator, which lets
// tests keep ids deterministic.
type Chain[A, H comparable] struct {
	name  string
	genID func() H

	mu        sync.Mutex
	transfers map[H]bridge.BridgeTransferDetails[A, H]
	locks     map[H]bridge.LockDetails[A, H]
	listeners []chan bridge.ContractEvent[A, H]
	closed    bool
}

// NewChain creates a simulated chain. genID must return a fresh transfer id
// on every call.
func NewChain[A, H comparable](name string, genID func() H) *Chain[A, H] {
	return &Chain[A, H]{
		name:      name,
		genID:     genID,
		transfers: make(map[H]bridge.BridgeTransferDetails[A, H]),
		locks:     make(map[H]bridge.LockDetails[A, H]),
	}
}

// Name returns the chain's display name.
func (c *Chain[A, H]) Name() string { return c.name }

// AddEventListener registers a new finalized-event feed. Events emitted
// before registration are not replayed.
func (c *Chain[A, H]) AddEventListener() <-chan bridge.ContractEvent[A, H] {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan bridge.ContractEvent[A, H], 64)
	c.listeners = append(c.listeners, ch)
	return ch
}

// Close terminates all event feeds, simulating observer shutdown.
func (c *Chain[A, H]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.listeners {
		close(ch)
	}
}

func (c *Chain[A, H]) broadcast(ev bridge.ContractEvent[A, H]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, ch := range c.listeners {
		ch <- ev
	}
}

// Initiate records an initiator-side transfer and emits Initiated. It
// returns the generated bridge transfer id.
func (c *Chain[A, H]) Initiate(initiator A, recipient []byte, hashLock H, timeLock bridge.TimeLock, amount bridge.Amount) H {
	c.mu.Lock()
	id := c.genID()
	details := bridge.BridgeTransferDetails[A, H]{
		BridgeTransferID: id,
		InitiatorAddress: initiator,
		RecipientAddress: recipient,
		HashLock:         hashLock,
		TimeLock:         timeLock,
		Amount:           amount,
	}
	c.transfers[id] = details
	c.mu.Unlock()

	c.broadcast(bridge.ContractEvent[A, H]{
		Initiator: &bridge.InitiatorEvent[A, H]{
			Kind:    bridge.InitiatorEventInitiated,
			Details: details,
		},
	})
	return id
}

// EmitInitiated re-broadcasts an Initiated event for stored details,
// simulating at-least-once delivery by the observer.
func (c *Chain[A, H]) EmitInitiated(id H) bool {
	c.mu.Lock()
	details, ok := c.transfers[id]
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.broadcast(bridge.ContractEvent[A, H]{
		Initiator: &bridge.InitiatorEvent[A, H]{
			Kind:    bridge.InitiatorEventInitiated,
			Details: details,
		},
	})
	return true
}

// CompleteInitiator emits the initiator-side Completed event for id.
func (c *Chain[A, H]) CompleteInitiator(id H) {
	c.broadcast(bridge.ContractEvent[A, H]{
		Initiator: &bridge.InitiatorEvent[A, H]{
			Kind:             bridge.InitiatorEventCompleted,
			BridgeTransferID: id,
		},
	})
}

// RefundInitiator emits the initiator-side Refunded event for id.
func (c *Chain[A, H]) RefundInitiator(id H) {
	c.broadcast(bridge.ContractEvent[A, H]{
		Initiator: &bridge.InitiatorEvent[A, H]{
			Kind:             bridge.InitiatorEventRefunded,
			BridgeTransferID: id,
		},
	})
}

// Lock records a counterparty-side lock and emits Locked.
func (c *Chain[A, H]) Lock(id H, hashLock H, timeLock bridge.TimeLock, recipient A, amount bridge.Amount) {
	details := bridge.LockDetails[A, H]{
		BridgeTransferID: id,
		RecipientAddress: recipient,
		HashLock:         hashLock,
		TimeLock:         timeLock,
		Amount:           amount,
	}
	c.mu.Lock()
	c.locks[id] = details
	c.mu.Unlock()

	c.broadcast(bridge.ContractEvent[A, H]{
		Counterparty: &bridge.CounterpartyEvent[A, H]{
			Kind: bridge.CounterpartyEventLocked,
			Lock: details,
		},
	})
}

// CompleteCounterparty emits the counterparty-side Completed event with the
// revealed secret. It returns false when no lock exists for id.
func (c *Chain[A, H]) CompleteCounterparty(id H, secret bridge.HashLockPreImage) bool {
	c.mu.Lock()
	lock, ok := c.locks[id]
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.broadcast(bridge.ContractEvent[A, H]{
		Counterparty: &bridge.CounterpartyEvent[A, H]{
			Kind:      bridge.CounterpartyEventCompleted,
			Completed: bridge.CompletedFromLockDetails(lock, secret),
		},
	})
	return true
}

// EmitCounterpartyCompleted broadcasts a counterparty Completed event for
// details that were never locked on this chain, simulating a foreign or
// already-gone swap.
func (c *Chain[A, H]) EmitCounterpartyCompleted(details bridge.CounterpartyCompletedDetails[A, H]) {
	c.broadcast(bridge.ContractEvent[A, H]{
		Counterparty: &bridge.CounterpartyEvent[A, H]{
			Kind:      bridge.CounterpartyEventCompleted,
			Completed: details,
		},
	})
}

// AbortCounterparty emits the counterparty-side Aborted event for id.
func (c *Chain[A, H]) AbortCounterparty(id H) {
	c.broadcast(bridge.ContractEvent[A, H]{
		Counterparty: &bridge.CounterpartyEvent[A, H]{
			Kind:             bridge.CounterpartyEventAborted,
			BridgeTransferID: id,
		},
	})
}
