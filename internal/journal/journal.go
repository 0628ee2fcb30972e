// Package journal persists swap map mutations so a host can rebuild the
// in-flight set after a restart. Replay is idempotent with respect to the
// coordinator's dedup: re-inserting a known id is a no-op there.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/boymaas/atomic-bridge/bridge"
)

// Entry is one journaled swap record.
type Entry struct {
	BridgeTransferID string `json:"bridgeTransferId"`
	Phase            string `json:"phase"`
	Amount           uint64 `json:"amount"`
}

// Memory is an in-process journal, the default when no Redis is
// configured. It doubles as the test implementation.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
}

var _ bridge.Journal = (*Memory)(nil)

// NewMemory creates an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// SwapStarted implements bridge.Journal.
func (m *Memory) SwapStarted(_ context.Context, id string, amount bridge.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = Entry{
		BridgeTransferID: id,
		Phase:            bridge.PhaseLockingOnCounterparty.String(),
		Amount:           uint64(amount),
	}
	return nil
}

// SwapPhase implements bridge.Journal.
func (m *Memory) SwapPhase(_ context.Context, id string, phase bridge.SwapPhase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		e = Entry{BridgeTransferID: id}
	}
	e.Phase = phase.String()
	m.entries[id] = e
	return nil
}

// SwapRemoved implements bridge.Journal.
func (m *Memory) SwapRemoved(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Replay returns all journaled entries.
func (m *Memory) Replay(context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

// Redis journals swaps into Redis under a key prefix, surviving daemon
// restarts.
type Redis struct {
	client *redis.Client
	prefix string
}

var _ bridge.Journal = (*Redis)(nil)

// NewRedis connects to the Redis URL (redis://host:port/db).
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{
		client: redis.NewClient(opts),
		prefix: "bridge:swap:",
	}, nil
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key(id string) string {
	return r.prefix + id
}

func (r *Redis) write(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	if err := r.client.Set(ctx, r.key(e.BridgeTransferID), raw, 0).Err(); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return nil
}

// SwapStarted implements bridge.Journal.
func (r *Redis) SwapStarted(ctx context.Context, id string, amount bridge.Amount) error {
	return r.write(ctx, Entry{
		BridgeTransferID: id,
		Phase:            bridge.PhaseLockingOnCounterparty.String(),
		Amount:           uint64(amount),
	})
}

// SwapPhase implements bridge.Journal.
func (r *Redis) SwapPhase(ctx context.Context, id string, phase bridge.SwapPhase) error {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	e := Entry{BridgeTransferID: id}
	if err == nil {
		if uerr := json.Unmarshal(raw, &e); uerr != nil {
			e = Entry{BridgeTransferID: id}
		}
	} else if err != redis.Nil {
		return fmt.Errorf("read journal entry: %w", err)
	}
	e.Phase = phase.String()
	return r.write(ctx, e)
}

// SwapRemoved implements bridge.Journal.
func (r *Redis) SwapRemoved(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("delete journal entry: %w", err)
	}
	return nil
}

// Replay scans all journaled entries.
func (r *Redis) Replay(ctx context.Context) ([]Entry, error) {
	var out []Entry
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read journal entry: %w", err)
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("parse journal entry %q: %w", iter.Val(), err)
		}
		out = append(out, e)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return out, nil
}
