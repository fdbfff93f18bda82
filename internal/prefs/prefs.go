// Package prefs stores the user's display and quick-trade preferences.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/state"
	"github.com/tokenuniverse/paper-engine/internal/store"
)

// QuickPercentCount is the number of quick-trade buttons.
const QuickPercentCount = 4

var (
	ErrInvalidMetric        = errors.New("prefs: metric must be mcap or price")
	ErrInvalidDensity       = errors.New("prefs: density must be comfortable or dense")
	ErrInvalidQuote         = errors.New("prefs: quote must not be empty")
	ErrInvalidQuickPercents = errors.New("prefs: quick percents must be 4 values in (0, 100]")
)

// Defaults returns the preferences of a fresh install.
func Defaults() model.Preferences {
	return model.Preferences{
		Metric:        model.MetricMarketCap,
		Density:       model.DensityComfortable,
		Quote:         "USDC",
		QuickPercents: []float64{25, 50, 75, 100},
	}
}

// Patch holds optional overrides; nil fields keep the prior value.
type Patch struct {
	Metric        *string   `json:"metric,omitempty"`
	Density       *string   `json:"density,omitempty"`
	Quote         *string   `json:"quote,omitempty"`
	QuickPercents []float64 `json:"quickPercents,omitempty"`
}

// Apply shallow-merges p onto cur and validates the result.
func Apply(cur model.Preferences, p Patch) (model.Preferences, error) {
	next := cur
	next.QuickPercents = slices.Clone(cur.QuickPercents)
	if p.Metric != nil {
		next.Metric = *p.Metric
	}
	if p.Density != nil {
		next.Density = *p.Density
	}
	if p.Quote != nil {
		next.Quote = *p.Quote
	}
	if p.QuickPercents != nil {
		next.QuickPercents = slices.Clone(p.QuickPercents)
	}
	if err := Validate(next); err != nil {
		return cur, err
	}
	return next, nil
}

// Validate checks every field.
func Validate(p model.Preferences) error {
	switch p.Metric {
	case model.MetricMarketCap, model.MetricPrice:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMetric, p.Metric)
	}
	switch p.Density {
	case model.DensityComfortable, model.DensityDense:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDensity, p.Density)
	}
	if p.Quote == "" {
		return ErrInvalidQuote
	}
	if len(p.QuickPercents) != QuickPercentCount {
		return ErrInvalidQuickPercents
	}
	for _, v := range p.QuickPercents {
		if !(v > 0 && v <= 100) {
			return fmt.Errorf("%w: %v", ErrInvalidQuickPercents, v)
		}
	}
	return nil
}

// Store persists preferences.
type Store struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a preference store over st.
func New(st store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{store: st, logger: logger.With("component", "prefs")}
}

// Get returns the stored preferences. Missing fields are filled from the
// defaults; a missing, corrupt or invalid document reads as the defaults.
func (s *Store) Get(ctx context.Context) (model.Preferences, error) {
	var patch Patch
	err := state.Load(ctx, s.store, state.KeyPrefs, &patch)
	useDefault, fatal := state.Fallback(err)
	if fatal != nil {
		return model.Preferences{}, fatal
	}
	if useDefault {
		if state.IsCorrupt(err) {
			s.logger.Warn("preferences unreadable, using defaults", "err", err)
		}
		return Defaults(), nil
	}

	p, err := Apply(Defaults(), patch)
	if err != nil {
		s.logger.Warn("stored preferences invalid, using defaults", "err", err)
		return Defaults(), nil
	}
	return p, nil
}

// Update merges p onto the current preferences and persists the result.
// An invalid patch leaves the stored value unchanged.
func (s *Store) Update(ctx context.Context, p Patch) (model.Preferences, error) {
	cur, err := s.Get(ctx)
	if err != nil {
		return model.Preferences{}, err
	}
	next, err := Apply(cur, p)
	if err != nil {
		return cur, err
	}
	if err := state.Save(ctx, s.store, state.KeyPrefs, next); err != nil {
		return cur, err
	}
	return next, nil
}

// Reset restores the defaults.
func (s *Store) Reset(ctx context.Context) (model.Preferences, error) {
	def := Defaults()
	if err := state.Save(ctx, s.store, state.KeyPrefs, def); err != nil {
		return model.Preferences{}, err
	}
	return def, nil
}
