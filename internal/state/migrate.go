package state

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/store"
)

// CurrentSchema is the schema version every component assumes.
const CurrentSchema = 1

// Keys written by builds that predate the namespaced schema.
const (
	LegacyKeyWatchlist = "token_universe_watchlist"
	LegacyKeyPositions = "token_universe_positions"
)

// legacyPosition is the pre-ledger position record.
type legacyPosition struct {
	Token string          `json:"token"`
	Qty   decimal.Decimal `json:"qty"`
	Entry decimal.Decimal `json:"entry"`
}

// Migrator upgrades on-disk state to CurrentSchema. It runs once at startup,
// before any other component touches the store.
type Migrator struct {
	store  store.Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// NewMigrator creates a migrator over st.
func NewMigrator(st store.Store, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		store:  st,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		logger: logger.With("component", "migrator"),
	}
}

// SchemaVersion returns the stored version, 0 when absent or unreadable.
func (m *Migrator) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := Load(ctx, m.store, KeySchemaVersion, &v)
	if useDefault, fatal := Fallback(err); fatal != nil {
		return 0, fatal
	} else if useDefault {
		return 0, nil
	}
	return v, nil
}

// Migrate imports legacy keys when the stored schema is older than
// CurrentSchema and then stamps the version. The import is best effort:
// unreadable legacy values are skipped. It reports whether anything ran.
func (m *Migrator) Migrate(ctx context.Context) (bool, error) {
	v, err := m.SchemaVersion(ctx)
	if err != nil {
		return false, err
	}
	if v == CurrentSchema {
		return false, nil
	}

	var oldWatch []string
	if err := Load(ctx, m.store, LegacyKeyWatchlist, &oldWatch); err == nil && oldWatch != nil {
		if err := Save(ctx, m.store, KeyWatchlist, oldWatch); err != nil {
			return false, err
		}
		m.logger.Info("imported legacy watchlist", "tokens", len(oldWatch))
	} else if err != nil && !errors.Is(err, ErrMissing) {
		m.logger.Warn("skipping legacy watchlist", "err", err)
	}

	var oldPos []*legacyPosition
	if err := Load(ctx, m.store, LegacyKeyPositions, &oldPos); err == nil && len(oldPos) > 0 {
		trades := m.convertPositions(oldPos)
		if len(trades) > 0 {
			if err := Save(ctx, m.store, KeyTrades, trades); err != nil {
				return false, err
			}
		}
		m.logger.Info("converted legacy positions", "positions", len(oldPos), "trades", len(trades))
	} else if err != nil && !errors.Is(err, ErrMissing) {
		m.logger.Warn("skipping legacy positions", "err", err)
	}

	if err := Save(ctx, m.store, KeySchemaVersion, CurrentSchema); err != nil {
		return false, err
	}
	m.logger.Info("state migrated", "from", v, "to", CurrentSchema)
	return true, nil
}

// convertPositions turns each legacy position into a single BUY at its entry
// price. Records that would violate the trade invariant are dropped.
func (m *Migrator) convertPositions(oldPos []*legacyPosition) []model.Trade {
	ts := m.now().UnixMilli()
	trades := make([]model.Trade, 0, len(oldPos))
	for _, p := range oldPos {
		if p == nil || p.Token == "" {
			continue
		}
		if !p.Qty.IsPositive() || !p.Entry.IsPositive() {
			continue
		}
		trades = append(trades, model.Trade{
			ID:        m.newID(),
			TokenMint: p.Token,
			Side:      model.SideBuy,
			Qty:       p.Qty,
			PriceUSD:  p.Entry,
			Timestamp: ts,
			Source:    model.SourceMigration,
		})
	}
	return trades
}
