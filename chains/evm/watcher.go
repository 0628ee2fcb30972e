package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/boymaas/atomic-bridge/bridge"
)

// Watcher subscribes to the two swap contracts' logs and decodes them into
// coordinator events. Log order per transfer id follows on-chain order,
// satisfying the observer contract.
type Watcher struct {
	client           *ethclient.Client
	abi              abi.ABI
	initiatorAddr    common.Address
	counterpartyAddr common.Address
	events           chan bridge.ContractEvent[common.Address, common.Hash]
	logger           *zap.Logger
}

// NewWatcher prepares a watcher; Run starts delivery.
func NewWatcher(client *ethclient.Client, parsed abi.ABI, initiatorAddr, counterpartyAddr common.Address, logger *zap.Logger) *Watcher {
	return &Watcher{
		client:           client,
		abi:              parsed,
		initiatorAddr:    initiatorAddr,
		counterpartyAddr: counterpartyAddr,
		events:           make(chan bridge.ContractEvent[common.Address, common.Hash], 128),
		logger:           logger,
	}
}

// Events is the decoded event stream. The channel closes when Run returns.
func (w *Watcher) Events() <-chan bridge.ContractEvent[common.Address, common.Hash] {
	return w.events
}

// Run subscribes and delivers events until ctx ends or the subscription
// fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	logs := make(chan types.Log, 128)
	sub, err := w.client.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{w.initiatorAddr, w.counterpartyAddr},
	}, logs)
	if err != nil {
		return fmt.Errorf("subscribe contract logs: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("contract log subscription: %w", err)
		case lg := <-logs:
			if lg.Removed {
				continue
			}
			ev, ok := w.decode(lg)
			if !ok {
				continue
			}
			select {
			case w.events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (w *Watcher) decode(lg types.Log) (bridge.ContractEvent[common.Address, common.Hash], bool) {
	var zero bridge.ContractEvent[common.Address, common.Hash]
	if len(lg.Topics) == 0 {
		return zero, false
	}

	def, err := w.abi.EventByID(lg.Topics[0])
	if err != nil {
		w.logger.Debug("unrecognized log topic", zap.Stringer("topic", lg.Topics[0]))
		return zero, false
	}

	vals, err := def.Inputs.NonIndexed().Unpack(lg.Data)
	if err != nil {
		w.logger.Warn("undecodable contract log",
			zap.String("event", def.Name), zap.Error(err))
		return zero, false
	}

	switch def.Name {
	case "BridgeTransferInitiated":
		if len(lg.Topics) < 3 || len(vals) < 4 {
			return zero, false
		}
		return bridge.ContractEvent[common.Address, common.Hash]{
			Initiator: &bridge.InitiatorEvent[common.Address, common.Hash]{
				Kind: bridge.InitiatorEventInitiated,
				Details: bridge.BridgeTransferDetails[common.Address, common.Hash]{
					BridgeTransferID: lg.Topics[1],
					InitiatorAddress: common.BytesToAddress(lg.Topics[2].Bytes()),
					RecipientAddress: vals[0].([]byte),
					HashLock:         common.Hash(vals[1].([32]byte)),
					TimeLock:         bridge.TimeLock(vals[2].(*big.Int).Uint64()),
					Amount:           bridge.Amount(vals[3].(*big.Int).Uint64()),
				},
			},
		}, true

	case "BridgeTransferCompleted":
		if len(lg.Topics) < 2 {
			return zero, false
		}
		return bridge.ContractEvent[common.Address, common.Hash]{
			Initiator: &bridge.InitiatorEvent[common.Address, common.Hash]{
				Kind:             bridge.InitiatorEventCompleted,
				BridgeTransferID: lg.Topics[1],
			},
		}, true

	case "BridgeTransferRefunded":
		if len(lg.Topics) < 2 {
			return zero, false
		}
		return bridge.ContractEvent[common.Address, common.Hash]{
			Initiator: &bridge.InitiatorEvent[common.Address, common.Hash]{
				Kind:             bridge.InitiatorEventRefunded,
				BridgeTransferID: lg.Topics[1],
			},
		}, true

	case "BridgeTransferLocked":
		if len(lg.Topics) < 3 || len(vals) < 4 {
			return zero, false
		}
		return bridge.ContractEvent[common.Address, common.Hash]{
			Counterparty: &bridge.CounterpartyEvent[common.Address, common.Hash]{
				Kind: bridge.CounterpartyEventLocked,
				Lock: bridge.LockDetails[common.Address, common.Hash]{
					BridgeTransferID: lg.Topics[1],
					RecipientAddress: common.BytesToAddress(lg.Topics[2].Bytes()),
					InitiatorAddress: vals[0].([]byte),
					HashLock:         common.Hash(vals[1].([32]byte)),
					TimeLock:         bridge.TimeLock(vals[2].(*big.Int).Uint64()),
					Amount:           bridge.Amount(vals[3].(*big.Int).Uint64()),
				},
			},
		}, true

	case "BridgeTransferLockCompleted":
		if len(lg.Topics) < 3 || len(vals) < 4 {
			return zero, false
		}
		return bridge.ContractEvent[common.Address, common.Hash]{
			Counterparty: &bridge.CounterpartyEvent[common.Address, common.Hash]{
				Kind: bridge.CounterpartyEventCompleted,
				Completed: bridge.CounterpartyCompletedDetails[common.Address, common.Hash]{
					BridgeTransferID: lg.Topics[1],
					RecipientAddress: common.BytesToAddress(lg.Topics[2].Bytes()),
					InitiatorAddress: vals[0].([]byte),
					HashLock:         common.Hash(vals[1].([32]byte)),
					Secret:           bridge.HashLockPreImage(vals[2].([]byte)),
					Amount:           bridge.Amount(vals[3].(*big.Int).Uint64()),
				},
			},
		}, true

	case "BridgeTransferLockAborted":
		if len(lg.Topics) < 2 {
			return zero, false
		}
		return bridge.ContractEvent[common.Address, common.Hash]{
			Counterparty: &bridge.CounterpartyEvent[common.Address, common.Hash]{
				Kind:             bridge.CounterpartyEventAborted,
				BridgeTransferID: lg.Topics[1],
			},
		}, true
	}
	return zero, false
}
