package bridge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boymaas/atomic-bridge/bridge"
)

// Happy path, B1 to B2: initiate on B1, observe the counterparty lock on
// B2, claim on B2 with the pre-image, and watch the coordinator complete
// the transfer back on B1.
func TestBridgeServiceIntegrationB1ToB2(t *testing.T) {
	h := setupBridgeService(t)

	// Step 1: the initiator time-locks assets on blockchain 1.
	id := initiateOnB1(t, h)

	ev := nextEvent(t, h)
	require.NotNil(t, ev.B1Initiator)
	require.NotNil(t, ev.B1Initiator.Contract)
	require.Equal(t, bridge.InitiatorEventInitiated, ev.B1Initiator.Contract.Kind)
	require.Equal(t, bridge.BridgeTransferDetails[B1Address, B1Hash]{
		BridgeTransferID: id,
		InitiatorAddress: B1Address("initiator"),
		RecipientAddress: []byte("recipient"),
		HashLock:         B1Hash("hash_lock"),
		TimeLock:         100,
		Amount:           1000,
	}, ev.B1Initiator.Contract.Details)

	// Step 2: the coordinator locks matching assets on blockchain 2 with
	// the converted id and hash lock.
	ev = nextEvent(t, h)
	require.NotNil(t, ev.B2Counterparty)
	require.NotNil(t, ev.B2Counterparty.Contract)
	require.Equal(t, bridge.CounterpartyEventLocked, ev.B2Counterparty.Contract.Kind)
	require.Equal(t, bridge.LockDetails[B2Address, B2Hash]{
		BridgeTransferID: B2Hash(id),
		RecipientAddress: B2Address("recipient"),
		HashLock:         B2Hash("hash_lock"),
		TimeLock:         100,
		Amount:           1000,
	}, ev.B2Counterparty.Contract.Lock)

	// Step 3: the recipient claims on blockchain 2, revealing the secret.
	err := h.client2.CompleteBridgeTransfer(context.Background(),
		B2Hash(id), bridge.HashLockPreImage("hash_lock"))
	require.NoError(t, err)

	ev = nextEvent(t, h)
	require.NotNil(t, ev.B2Counterparty)
	require.NotNil(t, ev.B2Counterparty.Contract)
	require.Equal(t, bridge.CounterpartyEventCompleted, ev.B2Counterparty.Contract.Kind)
	require.Equal(t, bridge.CounterpartyCompletedDetails[B2Address, B2Hash]{
		BridgeTransferID: B2Hash(id),
		RecipientAddress: B2Address("recipient"),
		HashLock:         B2Hash("hash_lock"),
		Secret:           bridge.HashLockPreImage("hash_lock"),
		Amount:           1000,
	}, ev.B2Counterparty.Contract.Completed)

	// Step 4: the coordinator claims on blockchain 1 with the same secret.
	ev = nextEvent(t, h)
	require.NotNil(t, ev.B1Initiator)
	require.NotNil(t, ev.B1Initiator.Contract)
	require.Equal(t, bridge.InitiatorEventCompleted, ev.B1Initiator.Contract.Kind)
	require.Equal(t, id, ev.B1Initiator.Contract.BridgeTransferID)

	// The entry is gone once the initiator-side completion is observed.
	assert.False(t, h.svc.ActiveSwapsB1ToB2.AlreadyExecuting(id))
	assert.Equal(t, 0, h.svc.ActiveSwapsB1ToB2.Len())
}

// Mirror of the happy path with the directions reversed.
func TestBridgeServiceIntegrationB2ToB1(t *testing.T) {
	h := setupBridgeService(t)

	id := initiateOnB2(t, h)

	ev := nextEvent(t, h)
	require.NotNil(t, ev.B2Initiator)
	require.NotNil(t, ev.B2Initiator.Contract)
	require.Equal(t, bridge.InitiatorEventInitiated, ev.B2Initiator.Contract.Kind)
	require.Equal(t, id, ev.B2Initiator.Contract.Details.BridgeTransferID)

	ev = nextEvent(t, h)
	require.NotNil(t, ev.B1Counterparty)
	require.NotNil(t, ev.B1Counterparty.Contract)
	require.Equal(t, bridge.CounterpartyEventLocked, ev.B1Counterparty.Contract.Kind)
	require.Equal(t, bridge.LockDetails[B1Address, B1Hash]{
		BridgeTransferID: B1Hash(id),
		RecipientAddress: B1Address("recipient"),
		HashLock:         B1Hash("hash_lock"),
		TimeLock:         100,
		Amount:           1000,
	}, ev.B1Counterparty.Contract.Lock)

	err := h.client1.CompleteBridgeTransfer(context.Background(),
		B1Hash(id), bridge.HashLockPreImage("hash_lock"))
	require.NoError(t, err)

	ev = nextEvent(t, h)
	require.NotNil(t, ev.B1Counterparty)
	require.NotNil(t, ev.B1Counterparty.Contract)
	require.Equal(t, bridge.CounterpartyEventCompleted, ev.B1Counterparty.Contract.Kind)
	require.True(t, ev.B1Counterparty.Contract.Completed.Secret.Equal(bridge.HashLockPreImage("hash_lock")))

	ev = nextEvent(t, h)
	require.NotNil(t, ev.B2Initiator)
	require.NotNil(t, ev.B2Initiator.Contract)
	require.Equal(t, bridge.InitiatorEventCompleted, ev.B2Initiator.Contract.Kind)
	require.Equal(t, id, ev.B2Initiator.Contract.BridgeTransferID)

	assert.Equal(t, 0, h.svc.ActiveSwapsB2ToB1.Len())
}

// A duplicate Initiated for a known id yields exactly one AlreadyPresent
// warning and no second lock action.
func TestBridgeServiceDuplicateInitiate(t *testing.T) {
	h := setupBridgeService(t)

	id := initiateOnB1(t, h)

	ev := nextEvent(t, h)
	require.NotNil(t, ev.B1Initiator)
	require.NotNil(t, ev.B1Initiator.Contract)
	require.Equal(t, bridge.InitiatorEventInitiated, ev.B1Initiator.Contract.Kind)

	// The observer redelivers the same finalized event.
	require.True(t, h.chain1.EmitInitiated(id))

	ev = nextEvent(t, h)
	require.NotNil(t, ev.B1Initiator)
	require.NotNil(t, ev.B1Initiator.Warn)
	require.Equal(t, bridge.InitiatorWarnAlreadyPresent, ev.B1Initiator.Warn.Kind)
	require.Equal(t, id, ev.B1Initiator.Warn.Details.BridgeTransferID)

	// Exactly one lock follows, from the first Initiated.
	ev = nextEvent(t, h)
	require.NotNil(t, ev.B2Counterparty)
	require.NotNil(t, ev.B2Counterparty.Contract)
	require.Equal(t, bridge.CounterpartyEventLocked, ev.B2Counterparty.Contract.Kind)

	expectNoEvent(t, h)
	assert.Equal(t, 1, h.svc.ActiveSwapsB1ToB2.Len())
}

// A counterparty completion for an id that was never initiated yields a
// CannotCompleteUnexistingSwap warning and no initiator action.
func TestBridgeServiceOrphanCounterpartyCompletion(t *testing.T) {
	h := setupBridgeService(t)

	orphan := bridge.CounterpartyCompletedDetails[B2Address, B2Hash]{
		BridgeTransferID: B2Hash("never-initiated"),
		RecipientAddress: B2Address("recipient"),
		HashLock:         B2Hash("hash_lock"),
		Secret:           bridge.HashLockPreImage("hash_lock"),
		Amount:           1000,
	}
	h.chain2.EmitCounterpartyCompleted(orphan)

	ev := nextEvent(t, h)
	require.NotNil(t, ev.B2Counterparty)
	require.NotNil(t, ev.B2Counterparty.Warn)
	require.Equal(t, bridge.CounterpartyWarnCannotCompleteUnexistingSwap, ev.B2Counterparty.Warn.Kind)
	require.Equal(t, orphan, ev.B2Counterparty.Warn.Details)

	expectNoEvent(t, h)
	assert.Equal(t, 0, h.svc.ActiveSwapsB1ToB2.Len())
	assert.Equal(t, 0, h.svc.ActiveSwapsB2ToB1.Len())
}

// A failing lock on the destination chain surfaces on the active-swap
// sub-stream; the entry stays in place and no Locked event follows.
func TestBridgeServiceLockFailureSurfaced(t *testing.T) {
	type hookCall struct {
		dir  bridge.Direction
		kind bridge.ActiveSwapEventKind
		err  error
	}
	hookCalls := make(chan hookCall, 16)
	h := setupBridgeService(t, bridge.WithSwapEventHook(
		func(dir bridge.Direction, kind bridge.ActiveSwapEventKind, id string, err error) {
			hookCalls <- hookCall{dir: dir, kind: kind, err: err}
		}))

	lockErr := errors.New("lock rejected by contract")
	h.client2.FailNextLock(lockErr)

	id := initiateOnB1(t, h)

	ev := nextEvent(t, h)
	require.NotNil(t, ev.B1Initiator)
	require.NotNil(t, ev.B1Initiator.Contract)
	require.Equal(t, bridge.InitiatorEventInitiated, ev.B1Initiator.Contract.Kind)

	// No Locked event follows; polling drains the error outcome instead.
	expectNoEvent(t, h)

	select {
	case call := <-hookCalls:
		require.Equal(t, bridge.DirectionB1ToB2, call.dir)
		require.Equal(t, bridge.BridgeAssetsLockingError, call.kind)
		require.ErrorIs(t, call.err, lockErr)
	case <-time.After(time.Second):
		t.Fatal("no locking error surfaced on the active-swap sub-stream")
	}

	// The entry remains in its phase, with the failure counted.
	require.True(t, h.svc.ActiveSwapsB1ToB2.AlreadyExecuting(id))
	phase, ok := h.svc.ActiveSwapsB1ToB2.Phase(id)
	require.True(t, ok)
	assert.Equal(t, bridge.PhaseLockingOnCounterparty, phase)

	snaps := h.svc.ActiveSwapsB1ToB2.Snapshot()
	require.Len(t, snaps, 1)
	assert.Equal(t, 1, snaps[0].RetryCount)
}

// Initiated events for distinct ids are emitted in observation order;
// their subsequent locks may interleave but cover both ids.
func TestBridgeServiceInterleavedTransfers(t *testing.T) {
	h := setupBridgeService(t)

	idA := initiateOnB1(t, h)
	idB := initiateOnB1(t, h)
	require.NotEqual(t, idA, idB)

	ev := nextEvent(t, h)
	require.NotNil(t, ev.B1Initiator)
	require.Equal(t, idA, ev.B1Initiator.Contract.Details.BridgeTransferID)

	ev = nextEvent(t, h)
	require.NotNil(t, ev.B1Initiator)
	require.Equal(t, idB, ev.B1Initiator.Contract.Details.BridgeTransferID)

	locked := make(map[B2Hash]bool)
	for i := 0; i < 2; i++ {
		ev = nextEvent(t, h)
		require.NotNil(t, ev.B2Counterparty)
		require.NotNil(t, ev.B2Counterparty.Contract)
		require.Equal(t, bridge.CounterpartyEventLocked, ev.B2Counterparty.Contract.Kind)
		locked[ev.B2Counterparty.Contract.Lock.BridgeTransferID] = true
	}
	assert.True(t, locked[B2Hash(idA)])
	assert.True(t, locked[B2Hash(idB)])
	assert.Equal(t, 2, h.svc.ActiveSwapsB1ToB2.Len())
}

// Polling with no observer activity produces no events.
func TestBridgeServiceIdlePollIsNoOp(t *testing.T) {
	h := setupBridgeService(t)
	expectNoEvent(t, h)
	assert.Equal(t, 0, h.svc.ActiveSwapsB1ToB2.Len())
	assert.Equal(t, 0, h.svc.ActiveSwapsB2ToB1.Len())
}

// A Refunded observation removes the entry and passes the event through.
func TestBridgeServiceRefundRemovesSwap(t *testing.T) {
	h := setupBridgeService(t)

	id := initiateOnB1(t, h)
	ev := nextEvent(t, h)
	require.NotNil(t, ev.B1Initiator)

	h.chain1.RefundInitiator(id)

	for {
		ev = nextEvent(t, h)
		if ev.B1Initiator != nil && ev.B1Initiator.Contract != nil &&
			ev.B1Initiator.Contract.Kind == bridge.InitiatorEventRefunded {
			break
		}
		// The lock for the in-flight swap may surface first.
		require.NotNil(t, ev.B2Counterparty)
	}

	assert.False(t, h.svc.ActiveSwapsB1ToB2.AlreadyExecuting(id))
}

// An Aborted observation on the destination chain removes the entry.
func TestBridgeServiceAbortRemovesSwap(t *testing.T) {
	h := setupBridgeService(t)

	id := initiateOnB1(t, h)
	ev := nextEvent(t, h)
	require.NotNil(t, ev.B1Initiator)

	// Drain the lock event for the swap.
	ev = nextEvent(t, h)
	require.NotNil(t, ev.B2Counterparty)
	require.Equal(t, bridge.CounterpartyEventLocked, ev.B2Counterparty.Contract.Kind)

	h.chain2.AbortCounterparty(B2Hash(id))

	ev = nextEvent(t, h)
	require.NotNil(t, ev.B2Counterparty)
	require.NotNil(t, ev.B2Counterparty.Contract)
	require.Equal(t, bridge.CounterpartyEventAborted, ev.B2Counterparty.Contract.Kind)

	assert.False(t, h.svc.ActiveSwapsB1ToB2.AlreadyExecuting(id))
}

// Once both observers terminate and the maps are empty, the merged stream
// reports closure instead of blocking.
func TestBridgeServiceStreamClosure(t *testing.T) {
	h := setupBridgeService(t)

	h.chain1.Close()
	h.chain2.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := h.svc.Next(ctx)
	require.ErrorIs(t, err, bridge.ErrStreamClosed)
}

// The pre-image revealed on the destination chain is forwarded verbatim to
// the source-chain completion.
func TestBridgeServicePreImageForwardedVerbatim(t *testing.T) {
	h := setupBridgeService(t)

	id := initiateOnB1(t, h)
	nextEvent(t, h) // Initiated
	nextEvent(t, h) // Locked

	secret := bridge.HashLockPreImage("hash_lock")
	require.NoError(t, h.client2.CompleteBridgeTransfer(context.Background(), B2Hash(id), secret))

	ev := nextEvent(t, h)
	require.NotNil(t, ev.B2Counterparty)
	require.True(t, ev.B2Counterparty.Contract.Completed.Secret.Equal(secret))

	// The mock chain records the initiator-side claim as a Completed event
	// for the same id. It does not check the pre-image, so this step shows
	// that the claim was made, not which secret it carried.
	ev = nextEvent(t, h)
	require.NotNil(t, ev.B1Initiator)
	require.Equal(t, bridge.InitiatorEventCompleted, ev.B1Initiator.Contract.Kind)
	require.Equal(t, id, ev.B1Initiator.Contract.BridgeTransferID)
}
