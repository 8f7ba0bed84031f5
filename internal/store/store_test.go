package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpha-arena/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestAccount(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	id, err := s.CreateAccount(types.Account{
		Name:        name,
		Active:      true,
		AutoTrading: true,
		Model:       "gpt-4o",
		BaseURL:     "https://api.openai.com/v1",
		APIKey:      "sk-test",
	})
	require.NoError(t, err)
	return id
}

func TestAccountRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	id := createTestAccount(t, s, "alpha")

	got, err := s.GetAccount(id)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)
	assert.True(t, got.Active)
	assert.True(t, got.AutoTrading)
	assert.Equal(t, "gpt-4o", got.Model)

	got.AutoTrading = false
	got.ExchangeAPIKey = "ek"
	got.ExchangeSecret = "es"
	require.NoError(t, s.UpdateAccount(got))

	again, err := s.GetAccount(id)
	require.NoError(t, err)
	assert.False(t, again.AutoTrading)
	assert.True(t, again.HasExchangeKeys())
}

func TestActiveAccountsFiltersInactive(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	a := createTestAccount(t, s, "active")
	b := createTestAccount(t, s, "parked")
	parked, err := s.GetAccount(b)
	require.NoError(t, err)
	parked.Active = false
	require.NoError(t, s.UpdateAccount(parked))

	accounts, err := s.ActiveAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, a, accounts[0].ID)
}

func TestStrategyConfigUpsert(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	id := createTestAccount(t, s, "alpha")

	_, err := s.GetStrategyConfig(id)
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	cfg := types.StrategyConfig{
		AccountID:       id,
		Mode:            types.TriggerInterval,
		IntervalSeconds: 120,
		TickBatchSize:   10,
		Enabled:         true,
	}
	require.NoError(t, s.UpsertStrategyConfig(cfg))

	got, err := s.GetStrategyConfig(id)
	require.NoError(t, err)
	assert.Equal(t, types.TriggerInterval, got.Mode)
	assert.Equal(t, 120, got.IntervalSeconds)
	assert.Nil(t, got.LastTriggerAt)

	// Second upsert hits the conflict path, not a duplicate row.
	cfg.Mode = types.TriggerTickBatch
	cfg.TickBatchSize = 5
	require.NoError(t, s.UpsertStrategyConfig(cfg))

	got, err = s.GetStrategyConfig(id)
	require.NoError(t, err)
	assert.Equal(t, types.TriggerTickBatch, got.Mode)
	assert.Equal(t, 5, got.TickBatchSize)
}

func TestTouchLastTrigger(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	id := createTestAccount(t, s, "alpha")
	require.NoError(t, s.UpsertStrategyConfig(types.StrategyConfig{AccountID: id, Mode: types.TriggerRealtime, Enabled: true}))

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.TouchLastTrigger(id, at))

	got, err := s.GetStrategyConfig(id)
	require.NoError(t, err)
	require.NotNil(t, got.LastTriggerAt)
	assert.True(t, got.LastTriggerAt.Equal(at))
}

func TestDecisionLogRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	id := createTestAccount(t, s, "alpha")

	_, err := s.InsertDecision(types.DecisionRecord{
		AccountID:     id,
		DecisionTime:  time.Now().UTC(),
		Operation:     types.OpBuy,
		Symbol:        "BTC",
		TargetPortion: 0.25,
		TotalBalance:  1000,
		Executed:      true,
		OrderID:       "42",
		Reason:        "momentum",
	})
	require.NoError(t, err)

	_, err = s.InsertDecision(types.DecisionRecord{
		AccountID:    id,
		DecisionTime: time.Now().UTC().Add(time.Second),
		Operation:    types.OpHold,
		Executed:     true,
	})
	require.NoError(t, err)

	records, err := s.RecentDecisions(id, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, types.OpHold, records[0].Operation)
	assert.Empty(t, records[0].Symbol)
	assert.Equal(t, types.OpBuy, records[1].Operation)
	assert.Equal(t, "42", records[1].OrderID)
}

func TestSnapshotRetention(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	id := createTestAccount(t, s, "alpha")

	now := time.Now().UTC()
	old := types.AssetSnapshot{AccountID: id, Cash: 100, TotalAssets: 100, EventTime: now.Add(-31 * 24 * time.Hour)}
	fresh := types.AssetSnapshot{AccountID: id, Cash: 200, TotalAssets: 200, EventTime: now}
	require.NoError(t, s.InsertSnapshot(old))
	require.NoError(t, s.InsertSnapshot(fresh))

	removed, err := s.SweepSnapshots(30*24*time.Hour, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	snaps, err := s.SnapshotsSince(id, now.Add(-60*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 200.0, snaps[0].Cash)
}

func TestPromptSeedingAndBinding(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	id := createTestAccount(t, s, "alpha")

	tmpl := types.PromptTemplate{Key: "default", Name: "Default", Text: "v1", SystemText: "v1"}
	require.NoError(t, s.SeedPromptTemplate(tmpl))

	// Seeding again must not clobber user edits to the current text.
	tmpl.Text = "v2"
	require.NoError(t, s.SeedPromptTemplate(tmpl))
	got, err := s.GetPromptTemplate("default")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Text)

	key, err := s.TemplateKeyForAccount(id)
	require.NoError(t, err)
	assert.Equal(t, "default", key)

	require.NoError(t, s.SeedPromptTemplate(types.PromptTemplate{Key: "pro", Name: "Pro", Text: "p", SystemText: "p"}))
	require.NoError(t, s.BindPromptTemplate(id, "pro"))
	key, err = s.TemplateKeyForAccount(id)
	require.NoError(t, err)
	assert.Equal(t, "pro", key)
}

func TestTickRetentionSweep(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	now := time.Now().UTC()
	require.NoError(t, s.InsertTick(types.Tick{Symbol: "BTC", Venue: "binance", Price: 1, EventTime: now.Add(-2 * time.Hour)}, time.Hour))
	require.NoError(t, s.InsertTick(types.Tick{Symbol: "BTC", Venue: "binance", Price: 2, EventTime: now}, time.Hour))

	ticks, err := s.TicksSince("BTC", now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, 2.0, ticks[0].Price)
}
