// Package state maps the engine's typed documents onto the key/value store:
// namespaced keys, JSON encoding and explicit corruption reporting.
//
// Readers never fail on bad data. Load reports it as a *CorruptionError and
// the caller substitutes its default; the next write heals the key.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tokenuniverse/paper-engine/internal/store"
)

// Namespace prefixes every key written by the current schema.
const Namespace = "token_universe:v1:"

// Keys of the persisted state surface.
const (
	KeySchemaVersion = Namespace + "schema_version"
	KeyWatchlist     = Namespace + "watchlist"
	KeyTrades        = Namespace + "trades"
	KeyPrefs         = Namespace + "prefs"
	KeyWallet        = Namespace + "wallet"
)

// ErrMissing is returned by Load when the key has never been written.
var ErrMissing = errors.New("state: value missing")

// CorruptionError reports a stored value that could not be decoded.
type CorruptionError struct {
	Key string
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("state: corrupt value at %s: %v", e.Key, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// IsCorrupt reports whether err is a *CorruptionError.
func IsCorrupt(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// Load decodes the JSON value at key into dst. It returns ErrMissing for an
// absent key, a *CorruptionError for an undecodable one, and any other error
// from the underlying store unchanged.
func Load(ctx context.Context, st store.Store, key string, dst any) error {
	raw, err := st.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return ErrMissing
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &CorruptionError{Key: key, Err: err}
	}
	return nil
}

// Save encodes v as JSON and writes it at key.
func Save(ctx context.Context, st store.Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := st.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Fallback classifies a Load error for readers that substitute a default.
// It returns true when the default should be used, and the error to propagate
// otherwise (nil when the load succeeded).
func Fallback(err error) (useDefault bool, fatal error) {
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrMissing), IsCorrupt(err):
		return true, nil
	default:
		return false, err
	}
}
