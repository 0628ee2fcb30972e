package bridge

import "context"

// Journal records swap map mutations so a host can rebuild the in-flight
// set after a restart. Implementations live outside the coordinator (see
// internal/journal); entries are keyed by the stringified bridge transfer
// id. Journal errors are logged and never block swap progress.
type Journal interface {
	SwapStarted(ctx context.Context, bridgeTransferID string, amount Amount) error
	SwapPhase(ctx context.Context, bridgeTransferID string, phase SwapPhase) error
	SwapRemoved(ctx context.Context, bridgeTransferID string) error
}

type nopJournal struct{}

func (nopJournal) SwapStarted(context.Context, string, Amount) error  { return nil }
func (nopJournal) SwapPhase(context.Context, string, SwapPhase) error { return nil }
func (nopJournal) SwapRemoved(context.Context, string) error          { return nil }
