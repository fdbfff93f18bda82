package app_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenuniverse/paper-engine/internal/app"
	"github.com/tokenuniverse/paper-engine/internal/config"
	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/position"
	"github.com/tokenuniverse/paper-engine/internal/state"
)

func TestWire_MemoryBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store.Backend = config.BackendMemory

	deps, cleanup, err := app.Wire(context.Background(), &cfg, nil)
	require.NoError(t, err)
	defer cleanup()

	w, err := deps.Wallet.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10000", w.CashUSD.String())

	v, err := state.NewMigrator(deps.Store, nil).SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.CurrentSchema, v)
}

func TestWire_FileBackendMigratesLegacyState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	legacy := map[string]string{
		state.LegacyKeyWatchlist: `["A","B"]`,
		state.LegacyKeyPositions: `[{"token":"A","qty":2,"entry":10}]`,
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg := config.Defaults()
	cfg.Store.Path = path

	deps, cleanup, err := app.Wire(context.Background(), &cfg, nil)
	require.NoError(t, err)

	ctx := context.Background()
	list, err := deps.Watchlist.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, list)

	trades, err := deps.Ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, model.SourceMigration, trades[0].Source)

	res, err := deps.Executor.Execute(ctx, tradeReq("A", "SELL", "1", "12"))
	require.NoError(t, err)
	require.True(t, res.OK, res.Error)
	cleanup()

	// Reopening sees the flushed state and does not migrate twice.
	deps, cleanup, err = app.Wire(ctx, &cfg, nil)
	require.NoError(t, err)
	defer cleanup()

	trades, err = deps.Ledger.List(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
	a, ok := position.Find(position.Derive(trades), "A")
	require.True(t, ok)
	assert.Equal(t, "1", a.Qty.String())
}

func TestWire_BadRedisURL(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store.Backend = config.BackendMemory
	cfg.Store.RedisURL = "://nope"

	_, _, err := app.Wire(context.Background(), &cfg, nil)
	assert.Error(t, err)
}
