// Package evm adapts an EVM chain to the bridge coordinator. Addresses and
// hashes are go-ethereum's common types; the two swap contracts are reached
// through packed ABI calls signed by an HD-wallet signer, and finalized
// contract logs are decoded into coordinator events by the Watcher.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/boymaas/atomic-bridge/bridge"
)

// Address and Hash are the chain's opaque value types as seen by the
// coordinator.
type (
	Address = common.Address
	Hash    = common.Hash
)

// bridgeABI describes the two swap contracts. The initiator contract locks
// the source assets; the counterparty contract locks the matching assets on
// this chain when it acts as a destination.
const bridgeABI = `[
	{"type":"function","name":"initiateBridgeTransfer","stateMutability":"nonpayable","inputs":[{"name":"recipient","type":"bytes"},{"name":"hashLock","type":"bytes32"},{"name":"timeLock","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"completeBridgeTransfer","stateMutability":"nonpayable","inputs":[{"name":"bridgeTransferId","type":"bytes32"},{"name":"preImage","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"refundBridgeTransfer","stateMutability":"nonpayable","inputs":[{"name":"bridgeTransferId","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"lockBridgeTransfer","stateMutability":"nonpayable","inputs":[{"name":"bridgeTransferId","type":"bytes32"},{"name":"hashLock","type":"bytes32"},{"name":"timeLock","type":"uint256"},{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"abortBridgeTransfer","stateMutability":"nonpayable","inputs":[{"name":"bridgeTransferId","type":"bytes32"}],"outputs":[]},
	{"type":"event","name":"BridgeTransferInitiated","inputs":[{"name":"bridgeTransferId","type":"bytes32","indexed":true},{"name":"initiator","type":"address","indexed":true},{"name":"recipient","type":"bytes","indexed":false},{"name":"hashLock","type":"bytes32","indexed":false},{"name":"timeLock","type":"uint256","indexed":false},{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"BridgeTransferCompleted","inputs":[{"name":"bridgeTransferId","type":"bytes32","indexed":true}]},
	{"type":"event","name":"BridgeTransferRefunded","inputs":[{"name":"bridgeTransferId","type":"bytes32","indexed":true}]},
	{"type":"event","name":"BridgeTransferLocked","inputs":[{"name":"bridgeTransferId","type":"bytes32","indexed":true},{"name":"recipient","type":"address","indexed":true},{"name":"initiator","type":"bytes","indexed":false},{"name":"hashLock","type":"bytes32","indexed":false},{"name":"timeLock","type":"uint256","indexed":false},{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"BridgeTransferLockCompleted","inputs":[{"name":"bridgeTransferId","type":"bytes32","indexed":true},{"name":"recipient","type":"address","indexed":true},{"name":"initiator","type":"bytes","indexed":false},{"name":"hashLock","type":"bytes32","indexed":false},{"name":"preImage","type":"bytes","indexed":false},{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"BridgeTransferLockAborted","inputs":[{"name":"bridgeTransferId","type":"bytes32","indexed":true}]}
]`

// Config describes one EVM chain deployment.
type Config struct {
	// RPCURL is a websocket endpoint; log subscriptions require it.
	RPCURL string
	// Mnemonic is the BIP-39 seed phrase funding the coordinator's txs.
	Mnemonic string
	// AccountIndex selects the HD wallet account. Defaults to 0.
	AccountIndex int
	// InitiatorContract and CounterpartyContract are the deployed swap
	// contract addresses.
	InitiatorContract    common.Address
	CounterpartyContract common.Address
}

// Service is the chain's bridge.BlockchainService implementation.
type Service struct {
	contracts *Contracts
	watcher   *Watcher
	client    *ethclient.Client
}

var _ bridge.BlockchainService[common.Address, common.Hash] = (*Service)(nil)

// Dial connects to the chain, derives the signing account and prepares the
// contract handles and watcher. Run must be called to start event delivery.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc %q: %w", cfg.RPCURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	signer, err := NewSigner(cfg.Mnemonic, cfg.AccountIndex, client, chainID)
	if err != nil {
		client.Close()
		return nil, err
	}

	parsed, err := abi.JSON(strings.NewReader(bridgeABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse bridge abi: %w", err)
	}

	logger.Info("evm adapter connected",
		zap.String("rpc", cfg.RPCURL),
		zap.Stringer("chain_id", chainID),
		zap.Stringer("signer", signer.Address()))

	return &Service{
		contracts: &Contracts{
			signer:           signer,
			abi:              parsed,
			initiatorAddr:    cfg.InitiatorContract,
			counterpartyAddr: cfg.CounterpartyContract,
			logger:           logger,
		},
		watcher: NewWatcher(client, parsed, cfg.InitiatorContract, cfg.CounterpartyContract, logger),
		client:  client,
	}, nil
}

// Run starts log observation; it blocks until ctx ends or the subscription
// fails, closing the event channel on exit.
func (s *Service) Run(ctx context.Context) error {
	return s.watcher.Run(ctx)
}

// InitiatorContract implements bridge.BlockchainService.
func (s *Service) InitiatorContract() bridge.InitiatorContract[common.Address, common.Hash] {
	return s.contracts
}

// CounterpartyContract implements bridge.BlockchainService.
func (s *Service) CounterpartyContract() bridge.CounterpartyContract[common.Address, common.Hash] {
	return s.contracts
}

// Events implements bridge.BlockchainService.
func (s *Service) Events() <-chan bridge.ContractEvent[common.Address, common.Hash] {
	return s.watcher.Events()
}

// Close releases the RPC connection.
func (s *Service) Close() {
	s.client.Close()
}

// Contracts submits swap contract calls on behalf of the coordinator.
type Contracts struct {
	signer           *Signer
	abi              abi.ABI
	initiatorAddr    common.Address
	counterpartyAddr common.Address
	logger           *zap.Logger
}

var _ bridge.InitiatorContract[common.Address, common.Hash] = (*Contracts)(nil)
var _ bridge.CounterpartyContract[common.Address, common.Hash] = (*Contracts)(nil)

// InitiateBridgeTransfer implements bridge.InitiatorContract. The initiator
// argument is informational; the transaction sender is the signer account.
func (c *Contracts) InitiateBridgeTransfer(ctx context.Context, _ common.Address, recipient []byte, hashLock common.Hash, timeLock bridge.TimeLock, amount bridge.Amount) error {
	data, err := c.abi.Pack("initiateBridgeTransfer",
		recipient, [32]byte(hashLock),
		new(big.Int).SetUint64(uint64(timeLock)),
		new(big.Int).SetUint64(uint64(amount)))
	if err != nil {
		return fmt.Errorf("pack initiateBridgeTransfer: %w", err)
	}
	return c.submit(ctx, c.initiatorAddr, "initiateBridgeTransfer", data)
}

// CompleteBridgeTransfer claims a transfer by revealing its pre-image. The
// call is always submitted to the initiator contract, also when it is
// reached through the CounterpartyContract interface; locks held by the
// counterparty contract are not claimed through this method. The
// coordinator only calls it for the initiator side.
func (c *Contracts) CompleteBridgeTransfer(ctx context.Context, bridgeTransferID common.Hash, preImage bridge.HashLockPreImage) error {
	data, err := c.abi.Pack("completeBridgeTransfer", [32]byte(bridgeTransferID), []byte(preImage))
	if err != nil {
		return fmt.Errorf("pack completeBridgeTransfer: %w", err)
	}
	return c.submit(ctx, c.initiatorAddr, "completeBridgeTransfer", data)
}

// RefundBridgeTransfer implements bridge.InitiatorContract.
func (c *Contracts) RefundBridgeTransfer(ctx context.Context, bridgeTransferID common.Hash) error {
	data, err := c.abi.Pack("refundBridgeTransfer", [32]byte(bridgeTransferID))
	if err != nil {
		return fmt.Errorf("pack refundBridgeTransfer: %w", err)
	}
	return c.submit(ctx, c.initiatorAddr, "refundBridgeTransfer", data)
}

// LockBridgeTransfer implements bridge.CounterpartyContract.
func (c *Contracts) LockBridgeTransfer(ctx context.Context, bridgeTransferID common.Hash, hashLock common.Hash, timeLock bridge.TimeLock, recipient common.Address, amount bridge.Amount) error {
	data, err := c.abi.Pack("lockBridgeTransfer",
		[32]byte(bridgeTransferID), [32]byte(hashLock),
		new(big.Int).SetUint64(uint64(timeLock)),
		recipient,
		new(big.Int).SetUint64(uint64(amount)))
	if err != nil {
		return fmt.Errorf("pack lockBridgeTransfer: %w", err)
	}
	return c.submit(ctx, c.counterpartyAddr, "lockBridgeTransfer", data)
}

// AbortBridgeTransfer implements bridge.CounterpartyContract.
func (c *Contracts) AbortBridgeTransfer(ctx context.Context, bridgeTransferID common.Hash) error {
	data, err := c.abi.Pack("abortBridgeTransfer", [32]byte(bridgeTransferID))
	if err != nil {
		return fmt.Errorf("pack abortBridgeTransfer: %w", err)
	}
	return c.submit(ctx, c.counterpartyAddr, "abortBridgeTransfer", data)
}

func (c *Contracts) submit(ctx context.Context, to common.Address, method string, data []byte) error {
	txHash, err := c.signer.SendTransaction(ctx, to, data)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	c.logger.Debug("submitted contract call",
		zap.String("method", method),
		zap.Stringer("contract", to),
		zap.Stringer("tx", txHash))
	return nil
}
