// Command bridged runs the atomic bridge coordinator between an EVM chain
// and a Solana chain, exposing a status API beside the merged event loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/boymaas/atomic-bridge/bridge"
	"github.com/boymaas/atomic-bridge/chains"
	"github.com/boymaas/atomic-bridge/chains/evm"
	"github.com/boymaas/atomic-bridge/chains/svm"
	"github.com/boymaas/atomic-bridge/internal/config"
	"github.com/boymaas/atomic-bridge/internal/journal"
	"github.com/boymaas/atomic-bridge/internal/metrics"
	"github.com/boymaas/atomic-bridge/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bridged:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := buildLogger(cfg.Environment)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	evmService, err := evm.Dial(ctx, evm.Config{
		RPCURL:               cfg.EVMRPC,
		Mnemonic:             cfg.EVMMnemonic,
		AccountIndex:         cfg.EVMAccountIndex,
		InitiatorContract:    common.HexToAddress(cfg.EVMInitiatorContract),
		CounterpartyContract: common.HexToAddress(cfg.EVMCounterpartyContract),
	}, logger.Named("evm"))
	if err != nil {
		return err
	}
	defer evmService.Close()

	solanaKey, err := solana.PrivateKeyFromBase58(cfg.SolanaPrivateKey)
	if err != nil {
		return fmt.Errorf("parse solana private key: %w", err)
	}
	program, err := solana.PublicKeyFromBase58(cfg.SolanaBridgeProgram)
	if err != nil {
		return fmt.Errorf("parse solana bridge program: %w", err)
	}
	svmService := svm.Dial(svm.Config{
		RPCURL:     cfg.SolanaRPC,
		WSURL:      cfg.SolanaWS,
		PrivateKey: solanaKey,
		Program:    program,
	}, logger.Named("svm"))

	var swapJournal bridge.Journal
	if cfg.RedisURL != "" {
		redisJournal, err := journal.NewRedis(cfg.RedisURL)
		if err != nil {
			return err
		}
		if err := redisJournal.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		defer redisJournal.Close()
		swapJournal = redisJournal
	} else {
		swapJournal = journal.NewMemory()
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	svc := bridge.New(evmService, svmService,
		chains.EVMToSolana(), chains.SolanaToEVM(),
		bridge.WithLogger(logger.Named("bridge")),
		bridge.WithJournal(swapJournal),
		bridge.WithSwapEventHook(m.SwapEventHook()),
	)
	defer svc.Close()

	watcherErrs := make(chan error, 2)
	go func() { watcherErrs <- evmService.Run(ctx) }()
	go func() { watcherErrs <- svmService.Run(ctx) }()

	router := server.New(cfg.Environment, func() map[string][]bridge.SwapSnapshot {
		return map[string][]bridge.SwapSnapshot{
			bridge.DirectionB1ToB2.String(): svc.ActiveSwapsB1ToB2.Snapshot(),
			bridge.DirectionB2ToB1.String(): svc.ActiveSwapsB2ToB1.Snapshot(),
		}
	}, m)
	go func() {
		if err := router.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error("status server stopped", zap.Error(err))
		}
	}()

	logger.Info("bridge coordinator running",
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.Port))

	go func() {
		for err := range watcherErrs {
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("chain watcher stopped", zap.Error(err))
			}
		}
	}()

	for {
		ev, err := svc.Next(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			logger.Info("shutting down")
			return nil
		case errors.Is(err, bridge.ErrStreamClosed):
			logger.Info("event stream closed, all swaps settled")
			return nil
		case err != nil:
			return fmt.Errorf("event loop: %w", err)
		}

		logEvent(logger, m, ev)
		m.SetActiveSwaps(bridge.DirectionB1ToB2.String(), svc.ActiveSwapsB1ToB2.Len())
		m.SetActiveSwaps(bridge.DirectionB2ToB1.String(), svc.ActiveSwapsB2ToB1.Len())
	}
}

func buildLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// logEvent reports one externally visible coordinator event and feeds the
// event counters.
func logEvent(logger *zap.Logger, m *metrics.Metrics, ev bridge.Event[common.Address, common.Hash, solana.PublicKey, solana.Hash]) {
	switch {
	case ev.B1Initiator != nil:
		logOutcome(logger, m, "b1_initiator", ev.B1Initiator.Contract != nil, initiatorKind(ev.B1Initiator))
	case ev.B1Counterparty != nil:
		logOutcome(logger, m, "b1_counterparty", ev.B1Counterparty.Contract != nil, counterpartyKind(ev.B1Counterparty))
	case ev.B2Initiator != nil:
		logOutcome(logger, m, "b2_initiator", ev.B2Initiator.Contract != nil, initiatorKind(ev.B2Initiator))
	case ev.B2Counterparty != nil:
		logOutcome(logger, m, "b2_counterparty", ev.B2Counterparty.Contract != nil, counterpartyKind(ev.B2Counterparty))
	}
}

func initiatorKind[A, H comparable](o *bridge.InitiatorOutcome[A, H]) string {
	if o.Contract != nil {
		return o.Contract.Kind.String()
	}
	return "already_present"
}

func counterpartyKind[A, H comparable](o *bridge.CounterpartyOutcome[A, H]) string {
	if o.Contract != nil {
		return o.Contract.Kind.String()
	}
	return "cannot_complete_unexisting_swap"
}

func logOutcome(logger *zap.Logger, m *metrics.Metrics, side string, contract bool, kind string) {
	if contract {
		logger.Info("contract event", zap.String("side", side), zap.String("kind", kind))
		m.RecordEvent(side, kind)
		return
	}
	logger.Warn("coordinator warning", zap.String("side", side), zap.String("kind", kind))
	m.RecordWarning(side, kind)
}
