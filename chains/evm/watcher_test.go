package evm

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boymaas/atomic-bridge/bridge"
)

func testWatcher(t *testing.T) (*Watcher, abi.ABI) {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(bridgeABI))
	require.NoError(t, err)
	w := NewWatcher(nil, parsed,
		common.HexToAddress("0x01"), common.HexToAddress("0x02"), zap.NewNop())
	return w, parsed
}

func TestDecodeInitiatedLog(t *testing.T) {
	w, parsed := testWatcher(t)

	id := common.HexToHash("0xaaaa")
	initiator := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	hashLock := common.HexToHash("0xbbbb")

	def := parsed.Events["BridgeTransferInitiated"]
	data, err := def.Inputs.NonIndexed().Pack(
		[]byte("recipient"), [32]byte(hashLock), big.NewInt(100), big.NewInt(1000))
	require.NoError(t, err)

	ev, ok := w.decode(types.Log{
		Topics: []common.Hash{def.ID, id, common.BytesToHash(initiator.Bytes())},
		Data:   data,
	})
	require.True(t, ok)
	require.NotNil(t, ev.Initiator)
	assert.Equal(t, bridge.InitiatorEventInitiated, ev.Initiator.Kind)
	assert.Equal(t, bridge.BridgeTransferDetails[common.Address, common.Hash]{
		BridgeTransferID: id,
		InitiatorAddress: initiator,
		RecipientAddress: []byte("recipient"),
		HashLock:         hashLock,
		TimeLock:         100,
		Amount:           1000,
	}, ev.Initiator.Details)
}

func TestDecodeCompletedLog(t *testing.T) {
	w, parsed := testWatcher(t)

	id := common.HexToHash("0xaaaa")
	def := parsed.Events["BridgeTransferCompleted"]

	ev, ok := w.decode(types.Log{Topics: []common.Hash{def.ID, id}})
	require.True(t, ok)
	require.NotNil(t, ev.Initiator)
	assert.Equal(t, bridge.InitiatorEventCompleted, ev.Initiator.Kind)
	assert.Equal(t, id, ev.Initiator.BridgeTransferID)
}

func TestDecodeLockCompletedLog(t *testing.T) {
	w, parsed := testWatcher(t)

	id := common.HexToHash("0xaaaa")
	recipient := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	hashLock := common.HexToHash("0xbbbb")

	def := parsed.Events["BridgeTransferLockCompleted"]
	data, err := def.Inputs.NonIndexed().Pack(
		[]byte("initiator"), [32]byte(hashLock), []byte("secret"), big.NewInt(1000))
	require.NoError(t, err)

	ev, ok := w.decode(types.Log{
		Topics: []common.Hash{def.ID, id, common.BytesToHash(recipient.Bytes())},
		Data:   data,
	})
	require.True(t, ok)
	require.NotNil(t, ev.Counterparty)
	assert.Equal(t, bridge.CounterpartyEventCompleted, ev.Counterparty.Kind)
	assert.Equal(t, bridge.CounterpartyCompletedDetails[common.Address, common.Hash]{
		BridgeTransferID: id,
		RecipientAddress: recipient,
		InitiatorAddress: []byte("initiator"),
		HashLock:         hashLock,
		Secret:           bridge.HashLockPreImage("secret"),
		Amount:           1000,
	}, ev.Counterparty.Completed)
}

func TestDecodeIgnoresForeignLogs(t *testing.T) {
	w, _ := testWatcher(t)

	_, ok := w.decode(types.Log{Topics: []common.Hash{common.HexToHash("0x1234")}})
	assert.False(t, ok)

	_, ok = w.decode(types.Log{})
	assert.False(t, ok)
}
