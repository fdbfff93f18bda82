// Package watchlist stores the ordered set of watched token identifiers.
package watchlist

import (
	"context"
	"log/slog"
	"slices"

	"github.com/tokenuniverse/paper-engine/internal/state"
	"github.com/tokenuniverse/paper-engine/internal/store"
)

// Watchlist persists watched mints in insertion order. Toggle is the only
// insertion path, which keeps entries unique.
type Watchlist struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a watchlist over st.
func New(st store.Store, logger *slog.Logger) *Watchlist {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchlist{store: st, logger: logger.With("component", "watchlist")}
}

// List returns the watched mints. A missing or corrupt list reads as empty.
func (w *Watchlist) List(ctx context.Context) ([]string, error) {
	var mints []string
	err := state.Load(ctx, w.store, state.KeyWatchlist, &mints)
	useDefault, fatal := state.Fallback(err)
	if fatal != nil {
		return nil, fatal
	}
	if useDefault || mints == nil {
		if state.IsCorrupt(err) {
			w.logger.Warn("watchlist unreadable, treating as empty", "err", err)
		}
		return []string{}, nil
	}
	return mints, nil
}

// Toggle removes mint if watched, appends it otherwise, and returns the new
// list together with whether mint is now watched.
func (w *Watchlist) Toggle(ctx context.Context, mint string) ([]string, bool, error) {
	mints, err := w.List(ctx)
	if err != nil {
		return nil, false, err
	}

	watched := false
	if i := slices.Index(mints, mint); i >= 0 {
		mints = slices.Delete(mints, i, i+1)
	} else {
		mints = append(mints, mint)
		watched = true
	}

	if err := state.Save(ctx, w.store, state.KeyWatchlist, mints); err != nil {
		return nil, false, err
	}
	return mints, watched, nil
}

// Contains reports whether mint is watched.
func (w *Watchlist) Contains(ctx context.Context, mint string) (bool, error) {
	mints, err := w.List(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(mints, mint), nil
}

// Clear empties the watchlist.
func (w *Watchlist) Clear(ctx context.Context) error {
	return state.Save(ctx, w.store, state.KeyWatchlist, []string{})
}
