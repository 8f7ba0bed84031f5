// Package api implements the subscription broadcaster: per-account
// subscriber sets fed from a typed event channel, a WebSocket sink adapter,
// and the periodic per-account snapshot job that runs while anyone is
// subscribed.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"alpha-arena/pkg/types"
)

// Sink is an opaque subscriber accepting JSON messages. Implemented by the
// WebSocket adapter in ws.go and by test fakes.
type Sink interface {
	Send(message []byte) error
	Close() error
}

// SnapshotFunc builds the periodic account view pushed to subscribers.
type SnapshotFunc func(accountID int64) (any, error)

// Hub owns the account → subscriber-set mapping. Sends that fail remove
// the subscriber silently; broadcasting to an account with no subscribers
// is a no-op. The first subscriber for an account schedules its periodic
// snapshot job; the last unsubscribe cancels it.
type Hub struct {
	mu       sync.Mutex
	subs     map[int64]map[uuid.UUID]Sink
	jobs     map[int64]cron.EntryID
	cron     *cron.Cron
	schedule string
	snapFn   SnapshotFunc
	logger   *slog.Logger
	started  bool
}

// NewHub creates the hub. pushInterval is the cadence of the periodic
// account snapshot job.
func NewHub(snapFn SnapshotFunc, pushInterval time.Duration, logger *slog.Logger) *Hub {
	if pushInterval <= 0 {
		pushInterval = 30 * time.Second
	}
	return &Hub{
		subs:     make(map[int64]map[uuid.UUID]Sink),
		jobs:     make(map[int64]cron.EntryID),
		cron:     cron.New(),
		schedule: fmt.Sprintf("@every %s", pushInterval),
		snapFn:   snapFn,
		logger:   logger.With("component", "hub"),
	}
}

// Subscribe registers a sink for an account and returns its id.
func (h *Hub) Subscribe(accountID int64, sink Sink) uuid.UUID {
	id := uuid.New()

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[accountID]
	if !ok {
		set = make(map[uuid.UUID]Sink)
		h.subs[accountID] = set
		h.scheduleLocked(accountID)
	}
	set[id] = sink
	h.logger.Info("subscriber added", "account_id", accountID, "subscriber", id)
	return id
}

// Unsubscribe removes a sink. The sink is closed; the account's snapshot
// job is cancelled when its set empties.
func (h *Hub) Unsubscribe(accountID int64, id uuid.UUID) {
	h.mu.Lock()
	sink, ok := h.subs[accountID][id]
	if ok {
		delete(h.subs[accountID], id)
		if len(h.subs[accountID]) == 0 {
			delete(h.subs, accountID)
			h.cancelLocked(accountID)
		}
	}
	h.mu.Unlock()

	if ok {
		sink.Close()
		h.logger.Info("subscriber removed", "account_id", accountID, "subscriber", id)
	}
}

// HasSubscribers reports whether anyone is listening at all. The snapshot
// service consults this before building arena updates.
func (h *Hub) HasSubscribers() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs) > 0
}

// Broadcast sends a payload to one account's subscribers.
func (h *Hub) Broadcast(accountID int64, payload any) {
	message, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal broadcast failed", "account_id", accountID, "error", err)
		return
	}
	h.send(accountID, message)
}

// BroadcastAll sends a payload to every subscriber of every account.
func (h *Hub) BroadcastAll(payload any) {
	message, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal broadcast failed", "error", err)
		return
	}

	h.mu.Lock()
	accountIDs := make([]int64, 0, len(h.subs))
	for accountID := range h.subs {
		accountIDs = append(accountIDs, accountID)
	}
	h.mu.Unlock()

	for _, accountID := range accountIDs {
		h.send(accountID, message)
	}
}

func (h *Hub) send(accountID int64, message []byte) {
	h.mu.Lock()
	set := h.subs[accountID]
	targets := make(map[uuid.UUID]Sink, len(set))
	for id, sink := range set {
		targets[id] = sink
	}
	h.mu.Unlock()

	for id, sink := range targets {
		if err := sink.Send(message); err != nil {
			h.logger.Warn("send failed, removing subscriber",
				"account_id", accountID, "subscriber", id, "error", err)
			h.Unsubscribe(accountID, id)
		}
	}
}

// Run consumes the typed event channel until ctx is cancelled. The
// executor and snapshot service publish here instead of importing the hub.
func (h *Hub) Run(ctx context.Context, events <-chan types.StreamEvent) {
	h.mu.Lock()
	if !h.started {
		h.cron.Start()
		h.started = true
	}
	h.mu.Unlock()

	h.logger.Info("broadcaster started")
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case ev := <-events:
			h.route(ev)
		}
	}
}

func (h *Hub) route(ev types.StreamEvent) {
	if ev.Kind == types.StreamArena || ev.AccountID == 0 {
		h.BroadcastAll(ev)
		return
	}
	h.Broadcast(ev.AccountID, ev)
}

func (h *Hub) shutdown() {
	h.cron.Stop()

	h.mu.Lock()
	var sinks []Sink
	for _, set := range h.subs {
		for _, sink := range set {
			sinks = append(sinks, sink)
		}
	}
	h.subs = make(map[int64]map[uuid.UUID]Sink)
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Close()
	}
	h.logger.Info("broadcaster stopped")
}

// scheduleLocked registers the periodic snapshot job for an account.
// Caller holds mu.
func (h *Hub) scheduleLocked(accountID int64) {
	if h.snapFn == nil {
		return
	}
	entryID, err := h.cron.AddFunc(h.schedule, func() { h.pushSnapshot(accountID) })
	if err != nil {
		h.logger.Error("schedule snapshot job failed", "account_id", accountID, "error", err)
		return
	}
	h.jobs[accountID] = entryID
}

func (h *Hub) cancelLocked(accountID int64) {
	if entryID, ok := h.jobs[accountID]; ok {
		h.cron.Remove(entryID)
		delete(h.jobs, accountID)
	}
}

func (h *Hub) pushSnapshot(accountID int64) {
	payload, err := h.snapFn(accountID)
	if err != nil {
		h.logger.Warn("account snapshot build failed", "account_id", accountID, "error", err)
		return
	}
	h.Broadcast(accountID, payload)
}
