package bridge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// SwapPhase is the progress of one active swap. Transitions are monotonic:
// a swap never moves to an earlier phase.
type SwapPhase int

const (
	PhaseLockingOnCounterparty SwapPhase = iota + 1
	PhaseWaitingForCounterpartyCompletion
	PhaseCompletingOnInitiator
	PhaseDone
)

// String implements fmt.Stringer.
func (p SwapPhase) String() string {
	switch p {
	case PhaseLockingOnCounterparty:
		return "locking_on_counterparty"
	case PhaseWaitingForCounterpartyCompletion:
		return "waiting_for_counterparty_completion"
	case PhaseCompletingOnInitiator:
		return "completing_on_initiator"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// ActiveSwap is the in-memory record of one in-flight swap, keyed in its
// map by the initiator-side bridge transfer id.
type ActiveSwap[A, H comparable] struct {
	Details BridgeTransferDetails[A, H]
	Phase   SwapPhase

	// RetryCount counts failed actions. No automatic retry is issued; the
	// entry stays in its phase and the count is exposed in snapshots for
	// host-level policy.
	RetryCount int

	actionInFlight bool
}

// SwapSnapshot is a read-only, non-generic view of an active swap, suitable
// for status APIs.
type SwapSnapshot struct {
	BridgeTransferID string `json:"bridgeTransferId"`
	Phase            string `json:"phase"`
	Amount           uint64 `json:"amount"`
	RetryCount       int    `json:"retryCount"`
	ActionInFlight   bool   `json:"actionInFlight"`
}

// MapOption configures an ActiveSwapMap.
type MapOption func(*mapConfig)

type mapConfig struct {
	logger  *zap.Logger
	journal Journal
	buffer  int
}

// WithMapLogger sets the map's logger. Defaults to a no-op logger.
func WithMapLogger(logger *zap.Logger) MapOption {
	return func(c *mapConfig) { c.logger = logger }
}

// WithMapJournal sets the journal that records swap mutations.
func WithMapJournal(j Journal) MapOption {
	return func(c *mapConfig) { c.journal = j }
}

// WithEventBuffer sets the capacity of the action-outcome channel.
func WithEventBuffer(n int) MapOption {
	return func(c *mapConfig) { c.buffer = n }
}

// ActiveSwapMap is the directional registry of in-flight swaps for one
// (source, destination) chain pairing. It owns the swap entries, issues the
// counterparty-side actions on the destination chain, and reports action
// outcomes on its Events channel.
//
// Per entry, at most one action is in flight at any time, and the outcome
// of a contract call becomes observable only through the Events channel.
type ActiveSwapMap[AFrom, HFrom, ATo, HTo comparable] struct {
	initiator    InitiatorContract[AFrom, HFrom]
	counterparty CounterpartyContract[ATo, HTo]
	convert      Converter[AFrom, HFrom, ATo, HTo]

	logger  *zap.Logger
	journal Journal

	mu    sync.Mutex
	swaps map[HFrom]*ActiveSwap[AFrom, HFrom]

	events chan ActiveSwapEvent[HFrom]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewActiveSwapMap builds a swap map driving locks on the given
// counterparty contract and completions on the given initiator contract,
// translating types through convert.
func NewActiveSwapMap[AFrom, HFrom, ATo, HTo comparable](
	initiator InitiatorContract[AFrom, HFrom],
	counterparty CounterpartyContract[ATo, HTo],
	convert Converter[AFrom, HFrom, ATo, HTo],
	opts ...MapOption,
) *ActiveSwapMap[AFrom, HFrom, ATo, HTo] {
	cfg := mapConfig{
		logger:  zap.NewNop(),
		journal: nopJournal{},
		buffer:  64,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ActiveSwapMap[AFrom, HFrom, ATo, HTo]{
		initiator:    initiator,
		counterparty: counterparty,
		convert:      convert,
		logger:       cfg.logger,
		journal:      cfg.journal,
		swaps:        make(map[HFrom]*ActiveSwap[AFrom, HFrom]),
		events:       make(chan ActiveSwapEvent[HFrom], cfg.buffer),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Events is the map's action-outcome stream.
func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) Events() <-chan ActiveSwapEvent[HFrom] {
	return m.events
}

// AlreadyExecuting reports whether a swap with the given id is in the map.
func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) AlreadyExecuting(bridgeTransferID HFrom) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.swaps[bridgeTransferID]
	return ok
}

// Len returns the number of in-flight swaps.
func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.swaps)
}

// PendingEvents returns the number of buffered action outcomes not yet
// consumed from the Events channel.
func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) PendingEvents() int {
	return len(m.events)
}

// Snapshot returns a stable view of all in-flight swaps.
func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) Snapshot() []SwapSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SwapSnapshot, 0, len(m.swaps))
	for id, swap := range m.swaps {
		out = append(out, SwapSnapshot{
			BridgeTransferID: fmt.Sprint(id),
			Phase:            swap.Phase.String(),
			Amount:           uint64(swap.Details.Amount),
			RetryCount:       swap.RetryCount,
			ActionInFlight:   swap.actionInFlight,
		})
	}
	return out
}

// Phase returns the phase of the swap with the given id.
func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) Phase(bridgeTransferID HFrom) (SwapPhase, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	swap, ok := m.swaps[bridgeTransferID]
	if !ok {
		return 0, false
	}
	return swap.Phase, true
}

// StartBridgeTransfer inserts a new swap entry for the initiated transfer
// and begins the lock action on the destination counterparty contract. It
// returns ErrSwapAlreadyExists if the id is already being executed.
func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) StartBridgeTransfer(details BridgeTransferDetails[AFrom, HFrom]) error {
	id := details.BridgeTransferID

	m.mu.Lock()
	if _, ok := m.swaps[id]; ok {
		m.mu.Unlock()
		return ErrSwapAlreadyExists
	}
	m.swaps[id] = &ActiveSwap[AFrom, HFrom]{
		Details:        details,
		Phase:          PhaseLockingOnCounterparty,
		actionInFlight: true,
	}
	m.mu.Unlock()

	m.logger.Debug("starting bridge transfer",
		zap.Any("bridge_transfer_id", id),
		zap.Uint64("amount", uint64(details.Amount)))
	m.journalStarted(id, details.Amount)

	lockID := m.convert.HashToCounterparty(id)
	hashLock := m.convert.HashToCounterparty(details.HashLock)
	recipient := m.convert.AddressFromBytes(details.RecipientAddress)
	timeLock := details.TimeLock
	amount := details.Amount

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.counterparty.LockBridgeTransfer(m.ctx, lockID, hashLock, timeLock, recipient, amount)
		m.finishAction(id, err, PhaseWaitingForCounterpartyCompletion)
		if err != nil {
			m.emit(ActiveSwapEvent[HFrom]{Kind: BridgeAssetsLockingError, BridgeTransferID: id, Err: err})
			return
		}
		m.emit(ActiveSwapEvent[HFrom]{Kind: BridgeAssetsLocked, BridgeTransferID: id})
	}()
	return nil
}

// CompleteBridgeTransfer reacts to a counterparty Completed observation:
// it transitions the swap to CompletingOnInitiator and begins the complete
// action on the source initiator contract, supplying the revealed
// pre-image. It returns ErrNonExistingSwap when the id is unknown. A
// repeated completion for a swap already completing is a no-op, keeping at
// most one action in flight.
func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) CompleteBridgeTransfer(details CounterpartyCompletedDetails[ATo, HTo]) error {
	id := m.convert.HashToInitiator(details.BridgeTransferID)

	m.mu.Lock()
	swap, ok := m.swaps[id]
	if !ok {
		m.mu.Unlock()
		return ErrNonExistingSwap
	}
	if swap.Phase >= PhaseCompletingOnInitiator {
		m.mu.Unlock()
		return nil
	}
	swap.Phase = PhaseCompletingOnInitiator
	swap.actionInFlight = true
	m.mu.Unlock()

	m.logger.Debug("completing bridge transfer on initiator chain",
		zap.Any("bridge_transfer_id", id))
	m.journalPhase(id, PhaseCompletingOnInitiator)

	secret := details.Secret

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.initiator.CompleteBridgeTransfer(m.ctx, id, secret)
		m.finishAction(id, err, PhaseCompletingOnInitiator)
		if err != nil {
			m.emit(ActiveSwapEvent[HFrom]{Kind: BridgeAssetsCompletingError, BridgeTransferID: id, Err: err})
			return
		}
		m.emit(ActiveSwapEvent[HFrom]{Kind: BridgeAssetsCompleted, BridgeTransferID: id})
	}()
	return nil
}

// finish marks the swap done and removes it, in response to an observed
// initiator-side Completed event. Returns false if the id is unknown.
func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) finish(bridgeTransferID HFrom) bool {
	m.mu.Lock()
	swap, ok := m.swaps[bridgeTransferID]
	if ok {
		swap.Phase = PhaseDone
		delete(m.swaps, bridgeTransferID)
	}
	m.mu.Unlock()
	if ok {
		m.journalRemoved(bridgeTransferID)
	}
	return ok
}

// drop removes the swap without completing it, in response to an observed
// Refunded or Aborted event. Returns false if the id is unknown.
func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) drop(bridgeTransferID HFrom) bool {
	m.mu.Lock()
	_, ok := m.swaps[bridgeTransferID]
	if ok {
		delete(m.swaps, bridgeTransferID)
	}
	m.mu.Unlock()
	if ok {
		m.journalRemoved(bridgeTransferID)
	}
	return ok
}

// finishAction clears the in-flight flag and advances the phase on
// success; failures increment the retry count and hold the phase.
func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) finishAction(bridgeTransferID HFrom, err error, next SwapPhase) {
	advanced := false
	m.mu.Lock()
	if swap, ok := m.swaps[bridgeTransferID]; ok {
		swap.actionInFlight = false
		if err != nil {
			swap.RetryCount++
		} else if swap.Phase < next {
			swap.Phase = next
			advanced = true
		}
	}
	m.mu.Unlock()
	if advanced {
		m.journalPhase(bridgeTransferID, next)
	}
}

func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) emit(ev ActiveSwapEvent[HFrom]) {
	select {
	case m.events <- ev:
	case <-m.ctx.Done():
	}
}

func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) journalStarted(id HFrom, amount Amount) {
	if err := m.journal.SwapStarted(m.ctx, fmt.Sprint(id), amount); err != nil {
		m.logger.Warn("journal write failed", zap.Any("bridge_transfer_id", id), zap.Error(err))
	}
}

func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) journalPhase(id HFrom, phase SwapPhase) {
	if err := m.journal.SwapPhase(m.ctx, fmt.Sprint(id), phase); err != nil {
		m.logger.Warn("journal write failed", zap.Any("bridge_transfer_id", id), zap.Error(err))
	}
}

func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) journalRemoved(id HFrom) {
	if err := m.journal.SwapRemoved(m.ctx, fmt.Sprint(id)); err != nil {
		m.logger.Warn("journal write failed", zap.Any("bridge_transfer_id", id), zap.Error(err))
	}
}

// Close cancels all in-flight actions and waits for their goroutines to
// exit. In-flight contract submissions already accepted by a chain are not
// rolled back.
func (m *ActiveSwapMap[AFrom, HFrom, ATo, HTo]) Close() {
	m.cancel()
	m.wg.Wait()
}
