package bridge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/boymaas/atomic-bridge/bridge"
)

func TestCompletedFromLockDetails(t *testing.T) {
	lock := bridge.LockDetails[B2Address, B2Hash]{
		BridgeTransferID: B2Hash("id-1"),
		InitiatorAddress: []byte("initiator"),
		RecipientAddress: B2Address("recipient"),
		HashLock:         B2Hash("hash_lock"),
		TimeLock:         100,
		Amount:           1000,
	}
	secret := bridge.HashLockPreImage("hash_lock")

	completed := bridge.CompletedFromLockDetails(lock, secret)
	assert.Equal(t, bridge.CounterpartyCompletedDetails[B2Address, B2Hash]{
		BridgeTransferID: B2Hash("id-1"),
		InitiatorAddress: []byte("initiator"),
		RecipientAddress: B2Address("recipient"),
		HashLock:         B2Hash("hash_lock"),
		Secret:           secret,
		Amount:           1000,
	}, completed)
}

func TestHashLockPreImageEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  bridge.HashLockPreImage
		equal bool
	}{
		{"identical", bridge.HashLockPreImage("secret"), bridge.HashLockPreImage("secret"), true},
		{"different", bridge.HashLockPreImage("secret"), bridge.HashLockPreImage("other"), false},
		{"both empty", nil, bridge.HashLockPreImage{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
		})
	}
}

func TestSwapPhaseOrdering(t *testing.T) {
	phases := []bridge.SwapPhase{
		bridge.PhaseLockingOnCounterparty,
		bridge.PhaseWaitingForCounterpartyCompletion,
		bridge.PhaseCompletingOnInitiator,
		bridge.PhaseDone,
	}
	for i := 1; i < len(phases); i++ {
		assert.Less(t, phases[i-1], phases[i])
	}
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "initiated", bridge.InitiatorEventInitiated.String())
	assert.Equal(t, "locked", bridge.CounterpartyEventLocked.String())
	assert.Equal(t, "assets_locking_error", bridge.BridgeAssetsLockingError.String())
	assert.Equal(t, "completing_on_initiator", bridge.PhaseCompletingOnInitiator.String())
	assert.Equal(t, "b2_to_b1", bridge.DirectionB2ToB1.String())
}
