package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/state"
	"github.com/tokenuniverse/paper-engine/internal/store"
)

func TestLoad_Missing(t *testing.T) {
	var v []string
	err := state.Load(context.Background(), store.NewMemoryStore(), state.KeyWatchlist, &v)
	assert.ErrorIs(t, err, state.ErrMissing)

	useDefault, fatal := state.Fallback(err)
	assert.True(t, useDefault)
	assert.NoError(t, fatal)
}

func TestLoad_Corrupt(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(ctx, state.KeyTrades, []byte("not-json")))

	var trades []model.Trade
	err := state.Load(ctx, st, state.KeyTrades, &trades)
	require.Error(t, err)
	assert.True(t, state.IsCorrupt(err))

	var ce *state.CorruptionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, state.KeyTrades, ce.Key)

	useDefault, fatal := state.Fallback(err)
	assert.True(t, useDefault)
	assert.NoError(t, fatal)
}

func TestFallback_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	useDefault, fatal := state.Fallback(boom)
	assert.False(t, useDefault)
	assert.Equal(t, boom, fatal)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	in := []string{"a", "b"}
	require.NoError(t, state.Save(ctx, st, state.KeyWatchlist, in))

	var out []string
	require.NoError(t, state.Load(ctx, st, state.KeyWatchlist, &out))
	assert.Equal(t, in, out)
}

func TestMigrate_ImportsLegacyKeys(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(ctx, state.LegacyKeyWatchlist, []byte(`["mintA","mintB"]`)))
	require.NoError(t, st.Set(ctx, state.LegacyKeyPositions, []byte(
		`[{"token":"mintA","qty":2,"entry":"1.5"},{"qty":3,"entry":1},{"token":"mintZ","qty":0,"entry":1},null]`)))

	ran, err := state.NewMigrator(st, nil).Migrate(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	var watch []string
	require.NoError(t, state.Load(ctx, st, state.KeyWatchlist, &watch))
	assert.Equal(t, []string{"mintA", "mintB"}, watch)

	var trades []model.Trade
	require.NoError(t, state.Load(ctx, st, state.KeyTrades, &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, "mintA", trades[0].TokenMint)
	assert.Equal(t, model.SideBuy, trades[0].Side)
	assert.Equal(t, model.SourceMigration, trades[0].Source)
	assert.True(t, trades[0].Qty.Equal(decimal.NewFromInt(2)))
	assert.True(t, trades[0].PriceUSD.Equal(decimal.RequireFromString("1.5")))
	assert.NotEmpty(t, trades[0].ID)

	raw, err := st.Get(ctx, state.KeySchemaVersion)
	require.NoError(t, err)
	var v int
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, state.CurrentSchema, v)
}

func TestMigrate_IdempotentAtCurrentVersion(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	m := state.NewMigrator(st, nil)

	ran, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	// Legacy data appearing later is not re-imported.
	require.NoError(t, st.Set(ctx, state.LegacyKeyWatchlist, []byte(`["late"]`)))
	ran, err = m.Migrate(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	_, err = st.Get(ctx, state.KeyWatchlist)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMigrate_CorruptLegacyIsSkipped(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(ctx, state.LegacyKeyPositions, []byte(`{{`)))
	require.NoError(t, st.Set(ctx, state.KeySchemaVersion, []byte(`"garbage"`)))

	ran, err := state.NewMigrator(st, nil).Migrate(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	_, err = st.Get(ctx, state.KeyTrades)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
