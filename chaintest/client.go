package chaintest

import (
	"context"
	"sync"

	"github.com/boymaas/atomic-bridge/bridge"
)

// Client implements both contract interfaces against a simulated chain.
// Failures can be injected per call site to exercise error paths.
type Client[A, H comparable] struct {
	chain *Chain[A, H]

	mu              sync.Mutex
	nextLockErr     error
	nextCompleteErr error
	lastInitiatedID H
	haveInitiated   bool
}

var _ bridge.InitiatorContract[struct{}, struct{}] = (*Client[struct{}, struct{}])(nil)
var _ bridge.CounterpartyContract[struct{}, struct{}] = (*Client[struct{}, struct{}])(nil)

// NewClient creates a client bound to the chain.
func NewClient[A, H comparable](chain *Chain[A, H]) *Client[A, H] {
	return &Client[A, H]{chain: chain}
}

// FailNextLock makes the next LockBridgeTransfer call return err instead of
// locking.
func (c *Client[A, H]) FailNextLock(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextLockErr = err
}

// FailNextComplete makes the next CompleteBridgeTransfer call (either role)
// return err.
func (c *Client[A, H]) FailNextComplete(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextCompleteErr = err
}

// LastInitiatedID returns the transfer id generated by the most recent
// InitiateBridgeTransfer call on this client.
func (c *Client[A, H]) LastInitiatedID() (H, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastInitiatedID, c.haveInitiated
}

// InitiateBridgeTransfer implements bridge.InitiatorContract.
func (c *Client[A, H]) InitiateBridgeTransfer(ctx context.Context, initiator A, recipient []byte, hashLock H, timeLock bridge.TimeLock, amount bridge.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := c.chain.Initiate(initiator, recipient, hashLock, timeLock, amount)
	c.mu.Lock()
	c.lastInitiatedID = id
	c.haveInitiated = true
	c.mu.Unlock()
	return nil
}

// CompleteBridgeTransfer implements both contract interfaces. If the chain
// holds a lock for id, it releases the lock and emits the counterparty
// Completed event carrying the secret; otherwise it emits the
// initiator-side Completed event, which carries only the id. The pre-image
// is not checked against the hash lock.
func (c *Client[A, H]) CompleteBridgeTransfer(ctx context.Context, id H, preImage bridge.HashLockPreImage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if err := c.nextCompleteErr; err != nil {
		c.nextCompleteErr = nil
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if c.chain.CompleteCounterparty(id, preImage) {
		return nil
	}
	c.chain.CompleteInitiator(id)
	return nil
}

// RefundBridgeTransfer implements bridge.InitiatorContract.
func (c *Client[A, H]) RefundBridgeTransfer(ctx context.Context, id H) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.chain.RefundInitiator(id)
	return nil
}

// LockBridgeTransfer implements bridge.CounterpartyContract.
func (c *Client[A, H]) LockBridgeTransfer(ctx context.Context, id H, hashLock H, timeLock bridge.TimeLock, recipient A, amount bridge.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if err := c.nextLockErr; err != nil {
		c.nextLockErr = nil
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.chain.Lock(id, hashLock, timeLock, recipient, amount)
	return nil
}

// AbortBridgeTransfer implements bridge.CounterpartyContract.
func (c *Client[A, H]) AbortBridgeTransfer(ctx context.Context, id H) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.chain.AbortCounterparty(id)
	return nil
}

// Service bundles a client and an event feed into a
// bridge.BlockchainService.
type Service[A, H comparable] struct {
	client *Client[A, H]
	events <-chan bridge.ContractEvent[A, H]
}

var _ bridge.BlockchainService[struct{}, struct{}] = (*Service[struct{}, struct{}])(nil)

// NewService creates a blockchain service over the chain, registering a
// fresh event listener for the coordinator.
func NewService[A, H comparable](chain *Chain[A, H]) (*Service[A, H], *Client[A, H]) {
	client := NewClient(chain)
	return &Service[A, H]{
		client: client,
		events: chain.AddEventListener(),
	}, client
}

// InitiatorContract implements bridge.BlockchainService.
func (s *Service[A, H]) InitiatorContract() bridge.InitiatorContract[A, H] { return s.client }

// CounterpartyContract implements bridge.BlockchainService.
func (s *Service[A, H]) CounterpartyContract() bridge.CounterpartyContract[A, H] { return s.client }

// Events implements bridge.BlockchainService.
func (s *Service[A, H]) Events() <-chan bridge.ContractEvent[A, H] { return s.events }
