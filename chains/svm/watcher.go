package svm

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/boymaas/atomic-bridge/bridge"
)

// logPrefix marks swap program log lines carrying a coordinator event.
const logPrefix = "Program log: bridge:"

// Watcher subscribes to the swap program's logs and decodes the bridge:*
// lines into coordinator events.
//
// Line formats, fields space-separated:
//
//	bridge:initiated <id> <initiator> <recipient-hex> <hash_lock> <time_lock> <amount>
//	bridge:completed <id>
//	bridge:refunded <id>
//	bridge:locked <id> <recipient> <initiator-hex> <hash_lock> <time_lock> <amount>
//	bridge:lock_completed <id> <recipient> <initiator-hex> <hash_lock> <pre_image-hex> <amount>
//	bridge:lock_aborted <id>
//
// where <id> and <hash_lock> are base58 32-byte values and addresses are
// base58 public keys.
type Watcher struct {
	wsURL   string
	program solana.PublicKey
	events  chan bridge.ContractEvent[solana.PublicKey, solana.Hash]
	logger  *zap.Logger
}

// NewWatcher prepares a watcher; Run starts delivery.
func NewWatcher(wsURL string, program solana.PublicKey, logger *zap.Logger) *Watcher {
	return &Watcher{
		wsURL:   wsURL,
		program: program,
		events:  make(chan bridge.ContractEvent[solana.PublicKey, solana.Hash], 128),
		logger:  logger,
	}
}

// Events is the decoded event stream. The channel closes when Run returns.
func (w *Watcher) Events() <-chan bridge.ContractEvent[solana.PublicKey, solana.Hash] {
	return w.events
}

// Run subscribes and delivers events until ctx ends or the subscription
// fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	client, err := ws.Connect(ctx, w.wsURL)
	if err != nil {
		return fmt.Errorf("connect solana ws %q: %w", w.wsURL, err)
	}
	defer client.Close()

	sub, err := client.LogsSubscribeMentions(w.program, rpc.CommitmentFinalized)
	if err != nil {
		return fmt.Errorf("subscribe program logs: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		result, err := sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("program log subscription: %w", err)
		}
		if result.Value.Err != nil {
			continue
		}
		for _, line := range result.Value.Logs {
			ev, ok := w.decodeLine(line)
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

func (w *Watcher) decodeLine(line string) (bridge.ContractEvent[solana.PublicKey, solana.Hash], bool) {
	var zero bridge.ContractEvent[solana.PublicKey, solana.Hash]
	if !strings.HasPrefix(line, logPrefix) {
		return zero, false
	}
	fields := strings.Fields(strings.TrimPrefix(line, logPrefix))
	if len(fields) == 0 {
		return zero, false
	}

	ev, err := decodeFields(fields[0], fields[1:])
	if err != nil {
		w.logger.Warn("undecodable program log line",
			zap.String("line", line), zap.Error(err))
		return zero, false
	}
	return ev, true
}

func decodeFields(kind string, args []string) (bridge.ContractEvent[solana.PublicKey, solana.Hash], error) {
	var zero bridge.ContractEvent[solana.PublicKey, solana.Hash]
	switch kind {
	case "initiated":
		if len(args) != 6 {
			return zero, fmt.Errorf("initiated: want 6 fields, got %d", len(args))
		}
		id, err := solana.HashFromBase58(args[0])
		if err != nil {
			return zero, fmt.Errorf("transfer id: %w", err)
		}
		initiator, err := solana.PublicKeyFromBase58(args[1])
		if err != nil {
			return zero, fmt.Errorf("initiator: %w", err)
		}
		recipient, err := hex.DecodeString(args[2])
		if err != nil {
			return zero, fmt.Errorf("recipient: %w", err)
		}
		hashLock, err := solana.HashFromBase58(args[3])
		if err != nil {
			return zero, fmt.Errorf("hash lock: %w", err)
		}
		timeLock, err := strconv.ParseUint(args[4], 10, 64)
		if err != nil {
			return zero, fmt.Errorf("time lock: %w", err)
		}
		amount, err := strconv.ParseUint(args[5], 10, 64)
		if err != nil {
			return zero, fmt.Errorf("amount: %w", err)
		}
		return bridge.ContractEvent[solana.PublicKey, solana.Hash]{
			Initiator: &bridge.InitiatorEvent[solana.PublicKey, solana.Hash]{
				Kind: bridge.InitiatorEventInitiated,
				Details: bridge.BridgeTransferDetails[solana.PublicKey, solana.Hash]{
					BridgeTransferID: id,
					InitiatorAddress: initiator,
					RecipientAddress: recipient,
					HashLock:         hashLock,
					TimeLock:         bridge.TimeLock(timeLock),
					Amount:           bridge.Amount(amount),
				},
			},
		}, nil

	case "completed", "refunded":
		if len(args) != 1 {
			return zero, fmt.Errorf("%s: want 1 field, got %d", kind, len(args))
		}
		id, err := solana.HashFromBase58(args[0])
		if err != nil {
			return zero, fmt.Errorf("transfer id: %w", err)
		}
		k := bridge.InitiatorEventCompleted
		if kind == "refunded" {
			k = bridge.InitiatorEventRefunded
		}
		return bridge.ContractEvent[solana.PublicKey, solana.Hash]{
			Initiator: &bridge.InitiatorEvent[solana.PublicKey, solana.Hash]{
				Kind:             k,
				BridgeTransferID: id,
			},
		}, nil

	case "locked":
		if len(args) != 6 {
			return zero, fmt.Errorf("locked: want 6 fields, got %d", len(args))
		}
		id, err := solana.HashFromBase58(args[0])
		if err != nil {
			return zero, fmt.Errorf("transfer id: %w", err)
		}
		recipient, err := solana.PublicKeyFromBase58(args[1])
		if err != nil {
			return zero, fmt.Errorf("recipient: %w", err)
		}
		initiator, err := hex.DecodeString(args[2])
		if err != nil {
			return zero, fmt.Errorf("initiator: %w", err)
		}
		hashLock, err := solana.HashFromBase58(args[3])
		if err != nil {
			return zero, fmt.Errorf("hash lock: %w", err)
		}
		timeLock, err := strconv.ParseUint(args[4], 10, 64)
		if err != nil {
			return zero, fmt.Errorf("time lock: %w", err)
		}
		amount, err := strconv.ParseUint(args[5], 10, 64)
		if err != nil {
			return zero, fmt.Errorf("amount: %w", err)
		}
		return bridge.ContractEvent[solana.PublicKey, solana.Hash]{
			Counterparty: &bridge.CounterpartyEvent[solana.PublicKey, solana.Hash]{
				Kind: bridge.CounterpartyEventLocked,
				Lock: bridge.LockDetails[solana.PublicKey, solana.Hash]{
					BridgeTransferID: id,
					RecipientAddress: recipient,
					InitiatorAddress: initiator,
					HashLock:         hashLock,
					TimeLock:         bridge.TimeLock(timeLock),
					Amount:           bridge.Amount(amount),
				},
			},
		}, nil

	case "lock_completed":
		if len(args) != 6 {
			return zero, fmt.Errorf("lock_completed: want 6 fields, got %d", len(args))
		}
		id, err := solana.HashFromBase58(args[0])
		if err != nil {
			return zero, fmt.Errorf("transfer id: %w", err)
		}
		recipient, err := solana.PublicKeyFromBase58(args[1])
		if err != nil {
			return zero, fmt.Errorf("recipient: %w", err)
		}
		initiator, err := hex.DecodeString(args[2])
		if err != nil {
			return zero, fmt.Errorf("initiator: %w", err)
		}
		hashLock, err := solana.HashFromBase58(args[3])
		if err != nil {
			return zero, fmt.Errorf("hash lock: %w", err)
		}
		preImage, err := hex.DecodeString(args[4])
		if err != nil {
			return zero, fmt.Errorf("pre-image: %w", err)
		}
		amount, err := strconv.ParseUint(args[5], 10, 64)
		if err != nil {
			return zero, fmt.Errorf("amount: %w", err)
		}
		return bridge.ContractEvent[solana.PublicKey, solana.Hash]{
			Counterparty: &bridge.CounterpartyEvent[solana.PublicKey, solana.Hash]{
				Kind: bridge.CounterpartyEventCompleted,
				Completed: bridge.CounterpartyCompletedDetails[solana.PublicKey, solana.Hash]{
					BridgeTransferID: id,
					RecipientAddress: recipient,
					InitiatorAddress: initiator,
					HashLock:         hashLock,
					Secret:           bridge.HashLockPreImage(preImage),
					Amount:           bridge.Amount(amount),
				},
			},
		}, nil

	case "lock_aborted":
		if len(args) != 1 {
			return zero, fmt.Errorf("lock_aborted: want 1 field, got %d", len(args))
		}
		id, err := solana.HashFromBase58(args[0])
		if err != nil {
			return zero, fmt.Errorf("transfer id: %w", err)
		}
		return bridge.ContractEvent[solana.PublicKey, solana.Hash]{
			Counterparty: &bridge.CounterpartyEvent[solana.PublicKey, solana.Hash]{
				Kind:             bridge.CounterpartyEventAborted,
				BridgeTransferID: id,
			},
		}, nil
	}
	return zero, fmt.Errorf("unknown event kind %q", kind)
}
