package bridge_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/boymaas/atomic-bridge/bridge"
	"github.com/boymaas/atomic-bridge/chaintest"
)

// Per-chain opaque test types. Conversion between the chains retags the
// underlying value, which keeps expected values readable in assertions.
type (
	B1Address string
	B1Hash    string
	B2Address string
	B2Hash    string
)

func convB1ToB2() bridge.Converter[B1Address, B1Hash, B2Address, B2Hash] {
	return bridge.Converter[B1Address, B1Hash, B2Address, B2Hash]{
		HashToCounterparty:    func(h B1Hash) B2Hash { return B2Hash(h) },
		HashToInitiator:       func(h B2Hash) B1Hash { return B1Hash(h) },
		AddressToCounterparty: func(a B1Address) B2Address { return B2Address(a) },
		AddressToInitiator:    func(a B2Address) B1Address { return B1Address(a) },
		AddressFromBytes:      func(b []byte) B2Address { return B2Address(b) },
	}
}

func convB2ToB1() bridge.Converter[B2Address, B2Hash, B1Address, B1Hash] {
	return bridge.Converter[B2Address, B2Hash, B1Address, B1Hash]{
		HashToCounterparty:    func(h B2Hash) B1Hash { return B1Hash(h) },
		HashToInitiator:       func(h B1Hash) B2Hash { return B2Hash(h) },
		AddressToCounterparty: func(a B2Address) B1Address { return B1Address(a) },
		AddressToInitiator:    func(a B1Address) B2Address { return B2Address(a) },
		AddressFromBytes:      func(b []byte) B1Address { return B1Address(b) },
	}
}

type bridgeHarness struct {
	svc     *bridge.BridgeService[B1Address, B1Hash, B2Address, B2Hash]
	chain1  *chaintest.Chain[B1Address, B1Hash]
	chain2  *chaintest.Chain[B2Address, B2Hash]
	client1 *chaintest.Client[B1Address, B1Hash]
	client2 *chaintest.Client[B2Address, B2Hash]
}

func setupBridgeService(t *testing.T, opts ...bridge.Option) *bridgeHarness {
	t.Helper()

	var n1, n2 int
	chain1 := chaintest.NewChain[B1Address, B1Hash]("blockchain_1", func() B1Hash {
		n1++
		return B1Hash(fmt.Sprintf("b1-transfer-%d", n1))
	})
	chain2 := chaintest.NewChain[B2Address, B2Hash]("blockchain_2", func() B2Hash {
		n2++
		return B2Hash(fmt.Sprintf("b2-transfer-%d", n2))
	})

	service1, client1 := chaintest.NewService(chain1)
	service2, client2 := chaintest.NewService(chain2)

	opts = append([]bridge.Option{bridge.WithLogger(zaptest.NewLogger(t))}, opts...)
	svc := bridge.New(service1, service2, convB1ToB2(), convB2ToB1(), opts...)

	t.Cleanup(svc.Close)
	t.Cleanup(chain1.Close)
	t.Cleanup(chain2.Close)

	return &bridgeHarness{
		svc:     svc,
		chain1:  chain1,
		chain2:  chain2,
		client1: client1,
		client2: client2,
	}
}

// nextEvent drains one externally visible event, failing the test if none
// arrives in time.
func nextEvent(t *testing.T, h *bridgeHarness) bridge.Event[B1Address, B1Hash, B2Address, B2Hash] {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := h.svc.Next(ctx)
	require.NoError(t, err, "expected an event from the merged stream")
	return ev
}

// expectNoEvent polls the merged stream briefly and asserts it stays quiet.
// Internal action outcomes may still be drained while polling.
func expectNoEvent(t *testing.T, h *bridgeHarness) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ev, err := h.svc.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded, "unexpected event: %+v", ev)
}

func initiateOnB1(t *testing.T, h *bridgeHarness) B1Hash {
	t.Helper()
	err := h.client1.InitiateBridgeTransfer(context.Background(),
		B1Address("initiator"), []byte("recipient"), B1Hash("hash_lock"), 100, 1000)
	require.NoError(t, err)
	id, ok := h.client1.LastInitiatedID()
	require.True(t, ok)
	return id
}

func initiateOnB2(t *testing.T, h *bridgeHarness) B2Hash {
	t.Helper()
	err := h.client2.InitiateBridgeTransfer(context.Background(),
		B2Address("initiator"), []byte("recipient"), B2Hash("hash_lock"), 100, 1000)
	require.NoError(t, err)
	id, ok := h.client2.LastInitiatedID()
	require.True(t, ok)
	return id
}
