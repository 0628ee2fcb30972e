// Package svm adapts a Solana chain to the bridge coordinator. Addresses
// are program-derived public keys and hashes are 32-byte values; the swap
// program is driven with hand-built instructions and observed through its
// log lines over the websocket RPC.
package svm

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/boymaas/atomic-bridge/bridge"
)

// Address and Hash are the chain's opaque value types as seen by the
// coordinator.
type (
	Address = solana.PublicKey
	Hash    = solana.Hash
)

// Instruction tags of the swap program, one per entry point.
const (
	instrInitiate byte = iota
	instrCompleteInitiator
	instrRefund
	instrLock
	instrCompleteCounterparty
	instrAbort
)

// Config describes one Solana deployment of the swap program.
type Config struct {
	RPCURL string
	WSURL  string
	// PrivateKey funds and signs the coordinator's transactions.
	PrivateKey solana.PrivateKey
	// Program is the deployed swap program id.
	Program solana.PublicKey
}

// Service is the chain's bridge.BlockchainService implementation.
type Service struct {
	contracts *Contracts
	watcher   *Watcher
}

var _ bridge.BlockchainService[solana.PublicKey, solana.Hash] = (*Service)(nil)

// Dial prepares the program client and watcher. Run must be called to
// start event delivery.
func Dial(cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := rpc.New(cfg.RPCURL)
	return &Service{
		contracts: &Contracts{
			rpc:     client,
			program: cfg.Program,
			signer:  cfg.PrivateKey,
			logger:  logger,
		},
		watcher: NewWatcher(cfg.WSURL, cfg.Program, logger),
	}
}

// Run starts log observation; it blocks until ctx ends or the subscription
// fails, closing the event channel on exit.
func (s *Service) Run(ctx context.Context) error {
	return s.watcher.Run(ctx)
}

// InitiatorContract implements bridge.BlockchainService.
func (s *Service) InitiatorContract() bridge.InitiatorContract[solana.PublicKey, solana.Hash] {
	return s.contracts
}

// CounterpartyContract implements bridge.BlockchainService.
func (s *Service) CounterpartyContract() bridge.CounterpartyContract[solana.PublicKey, solana.Hash] {
	return s.contracts
}

// Events implements bridge.BlockchainService.
func (s *Service) Events() <-chan bridge.ContractEvent[solana.PublicKey, solana.Hash] {
	return s.watcher.Events()
}

// Contracts submits swap program instructions on behalf of the
// coordinator.
type Contracts struct {
	rpc     *rpc.Client
	program solana.PublicKey
	signer  solana.PrivateKey
	logger  *zap.Logger
}

var _ bridge.InitiatorContract[solana.PublicKey, solana.Hash] = (*Contracts)(nil)
var _ bridge.CounterpartyContract[solana.PublicKey, solana.Hash] = (*Contracts)(nil)

// InitiateBridgeTransfer implements bridge.InitiatorContract.
func (c *Contracts) InitiateBridgeTransfer(ctx context.Context, initiator solana.PublicKey, recipient []byte, hashLock solana.Hash, timeLock bridge.TimeLock, amount bridge.Amount) error {
	data := encodeInstruction(instrInitiate, func(buf []byte) []byte {
		buf = append(buf, initiator.Bytes()...)
		buf = appendBytes(buf, recipient)
		buf = append(buf, hashLock[:]...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(timeLock))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(amount))
		return buf
	})
	return c.submit(ctx, "initiate_bridge_transfer", data)
}

// CompleteBridgeTransfer implements both contract roles; the program routes
// by the transfer id's owning account.
func (c *Contracts) CompleteBridgeTransfer(ctx context.Context, bridgeTransferID solana.Hash, preImage bridge.HashLockPreImage) error {
	data := encodeInstruction(instrCompleteInitiator, func(buf []byte) []byte {
		buf = append(buf, bridgeTransferID[:]...)
		buf = appendBytes(buf, preImage)
		return buf
	})
	return c.submit(ctx, "complete_bridge_transfer", data)
}

// RefundBridgeTransfer implements bridge.InitiatorContract.
func (c *Contracts) RefundBridgeTransfer(ctx context.Context, bridgeTransferID solana.Hash) error {
	data := encodeInstruction(instrRefund, func(buf []byte) []byte {
		return append(buf, bridgeTransferID[:]...)
	})
	return c.submit(ctx, "refund_bridge_transfer", data)
}

// LockBridgeTransfer implements bridge.CounterpartyContract.
func (c *Contracts) LockBridgeTransfer(ctx context.Context, bridgeTransferID solana.Hash, hashLock solana.Hash, timeLock bridge.TimeLock, recipient solana.PublicKey, amount bridge.Amount) error {
	data := encodeInstruction(instrLock, func(buf []byte) []byte {
		buf = append(buf, bridgeTransferID[:]...)
		buf = append(buf, hashLock[:]...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(timeLock))
		buf = append(buf, recipient.Bytes()...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(amount))
		return buf
	})
	return c.submit(ctx, "lock_bridge_transfer", data)
}

// AbortBridgeTransfer implements bridge.CounterpartyContract.
func (c *Contracts) AbortBridgeTransfer(ctx context.Context, bridgeTransferID solana.Hash) error {
	data := encodeInstruction(instrAbort, func(buf []byte) []byte {
		return append(buf, bridgeTransferID[:]...)
	})
	return c.submit(ctx, "abort_bridge_transfer", data)
}

func (c *Contracts) submit(ctx context.Context, name string, data []byte) error {
	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return fmt.Errorf("%s: latest blockhash: %w", name, err)
	}

	inst := solana.NewInstruction(c.program, solana.AccountMetaSlice{
		solana.NewAccountMeta(c.signer.PublicKey(), true, true),
	}, data)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{inst},
		recent.Value.Blockhash,
		solana.TransactionPayer(c.signer.PublicKey()),
	)
	if err != nil {
		return fmt.Errorf("%s: build transaction: %w", name, err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.signer.PublicKey()) {
			return &c.signer
		}
		return nil
	}); err != nil {
		return fmt.Errorf("%s: sign transaction: %w", name, err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return fmt.Errorf("%s: send transaction: %w", name, err)
	}

	c.logger.Debug("submitted program instruction",
		zap.String("instruction", name),
		zap.Stringer("signature", sig))
	return nil
}

// encodeInstruction builds tag-prefixed instruction data.
func encodeInstruction(tag byte, fill func([]byte) []byte) []byte {
	return fill([]byte{tag})
}

// appendBytes appends a length-prefixed byte slice.
func appendBytes(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}
