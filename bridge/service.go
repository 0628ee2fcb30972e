package bridge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Direction identifies one of the two swap directions served by a
// BridgeService.
type Direction int

const (
	DirectionB1ToB2 Direction = iota + 1
	DirectionB2ToB1
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case DirectionB1ToB2:
		return "b1_to_b2"
	case DirectionB2ToB1:
		return "b2_to_b1"
	}
	return "unknown"
}

// SwapEventHook observes action outcomes drained from the swap maps. These
// outcomes are not part of the merged stream; the hook exists for metrics
// and tests. It is called from within Next and must not block.
type SwapEventHook func(dir Direction, kind ActiveSwapEventKind, bridgeTransferID string, err error)

// Option configures a BridgeService.
type Option func(*config)

type config struct {
	logger  *zap.Logger
	journal Journal
	hook    SwapEventHook
	buffer  int
}

// WithLogger sets the service logger, also passed down to both swap maps.
// Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithJournal records swap map mutations to the given journal.
func WithJournal(j Journal) Option {
	return func(c *config) { c.journal = j }
}

// WithSwapEventHook installs a hook observing drained action outcomes.
func WithSwapEventHook(hook SwapEventHook) Option {
	return func(c *config) { c.hook = hook }
}

// WithActionBuffer sets the swap maps' action-outcome channel capacity.
func WithActionBuffer(n int) Option {
	return func(c *config) { c.buffer = n }
}

// BridgeService composes two chains and the two directional swap maps into
// a single merged event stream, advanced by calling Next.
//
// The service owns its swap maps and observer channels exclusively; all
// mutation happens inside Next, from a single caller goroutine.
type BridgeService[A1, H1, A2, H2 comparable] struct {
	blockchain1 BlockchainService[A1, H1]
	blockchain2 BlockchainService[A2, H2]

	ActiveSwapsB1ToB2 *ActiveSwapMap[A1, H1, A2, H2]
	ActiveSwapsB2ToB1 *ActiveSwapMap[A2, H2, A1, H1]

	logger *zap.Logger
	hook   SwapEventHook

	// Receive channels; set to nil once the source reports closed so that
	// select ignores them.
	swapEvents1  <-chan ActiveSwapEvent[H1]
	swapEvents2  <-chan ActiveSwapEvent[H2]
	chain1Events <-chan ContractEvent[A1, H1]
	chain2Events <-chan ContractEvent[A2, H2]
}

// New builds a BridgeService over the two chains. convB1ToB2 and convB2ToB1
// are the canonical cross-chain conversions for the respective swap
// directions; each must invert the other's hash mapping.
func New[A1, H1, A2, H2 comparable](
	blockchain1 BlockchainService[A1, H1],
	blockchain2 BlockchainService[A2, H2],
	convB1ToB2 Converter[A1, H1, A2, H2],
	convB2ToB1 Converter[A2, H2, A1, H1],
	opts ...Option,
) *BridgeService[A1, H1, A2, H2] {
	cfg := config{
		logger: zap.NewNop(),
		buffer: 64,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	mapOpts := []MapOption{
		WithMapLogger(cfg.logger),
		WithEventBuffer(cfg.buffer),
	}
	if cfg.journal != nil {
		mapOpts = append(mapOpts, WithMapJournal(cfg.journal))
	}

	s := &BridgeService[A1, H1, A2, H2]{
		blockchain1: blockchain1,
		blockchain2: blockchain2,
		ActiveSwapsB1ToB2: NewActiveSwapMap(
			blockchain1.InitiatorContract(),
			blockchain2.CounterpartyContract(),
			convB1ToB2,
			mapOpts...,
		),
		ActiveSwapsB2ToB1: NewActiveSwapMap(
			blockchain2.InitiatorContract(),
			blockchain1.CounterpartyContract(),
			convB2ToB1,
			mapOpts...,
		),
		logger: cfg.logger,
		hook:   cfg.hook,
	}
	s.swapEvents1 = s.ActiveSwapsB1ToB2.Events()
	s.swapEvents2 = s.ActiveSwapsB2ToB1.Events()
	s.chain1Events = blockchain1.Events()
	s.chain2Events = blockchain2.Events()
	return s
}

// Next advances the merged stream and returns the next externally visible
// event. Sources are inspected in a fixed order — swap map B1→B2, swap map
// B2→B1, observer B1, observer B2 — so internal action outcomes are drained
// before new observer events trigger new actions in the same step, and at
// most one external event is produced per step.
//
// Next returns ctx.Err() when the context ends, and ErrStreamClosed once
// both observers have terminated, both swap maps are empty, and all action
// outcomes have been drained. Action errors never propagate; they surface
// only as logs and hook calls.
func (s *BridgeService[A1, H1, A2, H2]) Next(ctx context.Context) (Event[A1, H1, A2, H2], error) {
	var zero Event[A1, H1, A2, H2]
	for {
		progressed := false

		select {
		case ev, ok := <-s.swapEvents1:
			if !ok {
				s.swapEvents1 = nil
			} else {
				s.handleSwapEvent(DirectionB1ToB2, ev.Kind, fmt.Sprint(ev.BridgeTransferID), ev.Err)
			}
			progressed = true
		default:
		}

		select {
		case ev, ok := <-s.swapEvents2:
			if !ok {
				s.swapEvents2 = nil
			} else {
				s.handleSwapEvent(DirectionB2ToB1, ev.Kind, fmt.Sprint(ev.BridgeTransferID), ev.Err)
			}
			progressed = true
		default:
		}

		select {
		case ev, ok := <-s.chain1Events:
			if !ok {
				s.chain1Events = nil
				s.logger.Debug("blockchain 1 observer terminated")
			} else if out, emit := s.handleBlockchain1Event(ev); emit {
				return out, nil
			}
			progressed = true
		default:
		}

		select {
		case ev, ok := <-s.chain2Events:
			if !ok {
				s.chain2Events = nil
				s.logger.Debug("blockchain 2 observer terminated")
			} else if out, emit := s.handleBlockchain2Event(ev); emit {
				return out, nil
			}
			progressed = true
		default:
		}

		if s.done() {
			return zero, ErrStreamClosed
		}
		if progressed {
			continue
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case ev, ok := <-s.swapEvents1:
			if !ok {
				s.swapEvents1 = nil
			} else {
				s.handleSwapEvent(DirectionB1ToB2, ev.Kind, fmt.Sprint(ev.BridgeTransferID), ev.Err)
			}
		case ev, ok := <-s.swapEvents2:
			if !ok {
				s.swapEvents2 = nil
			} else {
				s.handleSwapEvent(DirectionB2ToB1, ev.Kind, fmt.Sprint(ev.BridgeTransferID), ev.Err)
			}
		case ev, ok := <-s.chain1Events:
			if !ok {
				s.chain1Events = nil
			} else if out, emit := s.handleBlockchain1Event(ev); emit {
				return out, nil
			}
		case ev, ok := <-s.chain2Events:
			if !ok {
				s.chain2Events = nil
			} else if out, emit := s.handleBlockchain2Event(ev); emit {
				return out, nil
			}
		}
	}
}

// done reports stream termination: both observers closed, both maps empty,
// and no buffered action outcomes left.
func (s *BridgeService[A1, H1, A2, H2]) done() bool {
	return s.chain1Events == nil && s.chain2Events == nil &&
		s.ActiveSwapsB1ToB2.Len() == 0 && s.ActiveSwapsB2ToB1.Len() == 0 &&
		s.ActiveSwapsB1ToB2.PendingEvents() == 0 && s.ActiveSwapsB2ToB1.PendingEvents() == 0
}

// handleSwapEvent logs one drained action outcome and forwards it to the
// hook. Action outcomes produce nothing externally observable.
func (s *BridgeService[A1, H1, A2, H2]) handleSwapEvent(dir Direction, kind ActiveSwapEventKind, id string, err error) {
	switch kind {
	case BridgeAssetsLocked:
		s.logger.Debug("bridge assets locked",
			zap.Stringer("direction", dir), zap.String("bridge_transfer_id", id))
	case BridgeAssetsCompleted:
		s.logger.Debug("bridge assets completed",
			zap.Stringer("direction", dir), zap.String("bridge_transfer_id", id))
	case BridgeAssetsLockingError:
		s.logger.Warn("error locking bridge assets",
			zap.Stringer("direction", dir), zap.String("bridge_transfer_id", id), zap.Error(err))
	case BridgeAssetsCompletingError:
		s.logger.Warn("error completing bridge assets",
			zap.Stringer("direction", dir), zap.String("bridge_transfer_id", id), zap.Error(err))
	}
	if s.hook != nil {
		s.hook(dir, kind, id, err)
	}
}

func (s *BridgeService[A1, H1, A2, H2]) handleBlockchain1Event(ev ContractEvent[A1, H1]) (Event[A1, H1, A2, H2], bool) {
	var zero Event[A1, H1, A2, H2]
	switch {
	case ev.Initiator != nil:
		if out := handleInitiatorEvent(*ev.Initiator, s.ActiveSwapsB1ToB2, s.logger); out != nil {
			return Event[A1, H1, A2, H2]{B1Initiator: out}, true
		}
	case ev.Counterparty != nil:
		if out := handleCounterpartyEvent(*ev.Counterparty, s.ActiveSwapsB2ToB1, s.logger); out != nil {
			return Event[A1, H1, A2, H2]{B1Counterparty: out}, true
		}
	}
	return zero, false
}

func (s *BridgeService[A1, H1, A2, H2]) handleBlockchain2Event(ev ContractEvent[A2, H2]) (Event[A1, H1, A2, H2], bool) {
	var zero Event[A1, H1, A2, H2]
	switch {
	case ev.Initiator != nil:
		if out := handleInitiatorEvent(*ev.Initiator, s.ActiveSwapsB2ToB1, s.logger); out != nil {
			return Event[A1, H1, A2, H2]{B2Initiator: out}, true
		}
	case ev.Counterparty != nil:
		if out := handleCounterpartyEvent(*ev.Counterparty, s.ActiveSwapsB1ToB2, s.logger); out != nil {
			return Event[A1, H1, A2, H2]{B2Counterparty: out}, true
		}
	}
	return zero, false
}

// handleInitiatorEvent applies one initiator-side observation to the swap
// map that starts swaps on this chain, and returns the external emission.
func handleInitiatorEvent[AFrom, HFrom, ATo, HTo comparable](
	ev InitiatorEvent[AFrom, HFrom],
	swaps *ActiveSwapMap[AFrom, HFrom, ATo, HTo],
	logger *zap.Logger,
) *InitiatorOutcome[AFrom, HFrom] {
	switch ev.Kind {
	case InitiatorEventInitiated:
		if swaps.AlreadyExecuting(ev.Details.BridgeTransferID) {
			logger.Warn("bridge transfer already present, monitoring should only return the event once",
				zap.Any("bridge_transfer_id", ev.Details.BridgeTransferID))
			return &InitiatorOutcome[AFrom, HFrom]{
				Warn: &InitiatorWarn[AFrom, HFrom]{
					Kind:    InitiatorWarnAlreadyPresent,
					Details: ev.Details,
				},
			}
		}
		if err := swaps.StartBridgeTransfer(ev.Details); err != nil {
			logger.Warn("could not start bridge transfer",
				zap.Any("bridge_transfer_id", ev.Details.BridgeTransferID), zap.Error(err))
			return &InitiatorOutcome[AFrom, HFrom]{
				Warn: &InitiatorWarn[AFrom, HFrom]{
					Kind:    InitiatorWarnAlreadyPresent,
					Details: ev.Details,
				},
			}
		}
		return &InitiatorOutcome[AFrom, HFrom]{Contract: &ev}

	case InitiatorEventCompleted:
		if swaps.finish(ev.BridgeTransferID) {
			logger.Debug("bridge transfer done",
				zap.Any("bridge_transfer_id", ev.BridgeTransferID))
		}
		return &InitiatorOutcome[AFrom, HFrom]{Contract: &ev}

	case InitiatorEventRefunded:
		if swaps.drop(ev.BridgeTransferID) {
			logger.Warn("bridge transfer refunded on initiator chain, swap abandoned",
				zap.Any("bridge_transfer_id", ev.BridgeTransferID))
		}
		return &InitiatorOutcome[AFrom, HFrom]{Contract: &ev}
	}
	return nil
}

// handleCounterpartyEvent applies one counterparty-side observation to the
// swap map whose destination is this chain, and returns the external
// emission.
func handleCounterpartyEvent[AFrom, HFrom, ATo, HTo comparable](
	ev CounterpartyEvent[ATo, HTo],
	swaps *ActiveSwapMap[AFrom, HFrom, ATo, HTo],
	logger *zap.Logger,
) *CounterpartyOutcome[ATo, HTo] {
	switch ev.Kind {
	case CounterpartyEventLocked:
		return &CounterpartyOutcome[ATo, HTo]{Contract: &ev}

	case CounterpartyEventCompleted:
		if err := swaps.CompleteBridgeTransfer(ev.Completed); err != nil {
			logger.Warn("error completing bridge transfer",
				zap.Any("bridge_transfer_id", ev.Completed.BridgeTransferID), zap.Error(err))
			if errors.Is(err, ErrNonExistingSwap) {
				return &CounterpartyOutcome[ATo, HTo]{
					Warn: &CounterpartyWarn[ATo, HTo]{
						Kind:    CounterpartyWarnCannotCompleteUnexistingSwap,
						Details: ev.Completed,
					},
				}
			}
		}
		return &CounterpartyOutcome[ATo, HTo]{Contract: &ev}

	case CounterpartyEventAborted:
		if swaps.drop(swaps.convert.HashToInitiator(ev.BridgeTransferID)) {
			logger.Warn("bridge transfer aborted on counterparty chain, swap abandoned",
				zap.Any("bridge_transfer_id", ev.BridgeTransferID))
		}
		return &CounterpartyOutcome[ATo, HTo]{Contract: &ev}
	}
	return nil
}

// Close cancels all in-flight actions on both swap maps and waits for them
// to exit. Submissions already accepted by a chain are not rolled back;
// recovery runs through the refund path.
func (s *BridgeService[A1, H1, A2, H2]) Close() {
	s.ActiveSwapsB1ToB2.Close()
	s.ActiveSwapsB2ToB1.Close()
}
