package wallet_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tokenuniverse/paper-engine/internal/state"
	"github.com/tokenuniverse/paper-engine/internal/store"
	"github.com/tokenuniverse/paper-engine/internal/wallet"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestGet_SeedsDefaultOnFirstUse(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	w := wallet.New(ms, decimal.Zero, nil)

	got, err := w.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CashUSD.Equal(d(10000)) {
		t.Errorf("expected default 10000, got %s", got.CashUSD)
	}
	if _, err := ms.Get(ctx, state.KeyWallet); err != nil {
		t.Errorf("default wallet should be persisted: %v", err)
	}
}

func TestGet_MalformedFallsBack(t *testing.T) {
	ctx := context.Background()
	for name, raw := range map[string]string{
		"garbage":       `%%%`,
		"missing field": `{}`,
		"wrong type":    `{"cashUsd":{"x":1}}`,
	} {
		t.Run(name, func(t *testing.T) {
			ms := store.NewMemoryStore()
			ms.Set(ctx, state.KeyWallet, []byte(raw))
			w := wallet.New(ms, d(500), nil)

			got, err := w.Get(ctx)
			if err != nil {
				t.Fatalf("malformed wallet must not fail: %v", err)
			}
			if !got.CashUSD.Equal(d(500)) {
				t.Errorf("expected default 500, got %s", got.CashUSD)
			}
		})
	}
}

func TestSet_PersistsAndMerges(t *testing.T) {
	ctx := context.Background()
	w := wallet.New(store.NewMemoryStore(), decimal.Zero, nil)

	cash := d(9760)
	got, err := w.Set(ctx, wallet.Patch{CashUSD: &cash})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !got.CashUSD.Equal(cash) {
		t.Errorf("expected 9760, got %s", got.CashUSD)
	}

	reread, _ := w.Get(ctx)
	if !reread.CashUSD.Equal(cash) {
		t.Errorf("expected persisted 9760, got %s", reread.CashUSD)
	}

	// An empty patch merges onto defaults.
	reset, _ := w.Set(ctx, wallet.Patch{})
	if !reset.CashUSD.Equal(d(10000)) {
		t.Errorf("expected default after empty patch, got %s", reset.CashUSD)
	}
}

func TestFormatUSD(t *testing.T) {
	if got := wallet.FormatUSD(d(9752)); got != "$9,752.00" {
		t.Errorf("got %q", got)
	}
	if got := wallet.FormatUSD(d(0.005)); got != "$0.01" {
		t.Errorf("got %q", got)
	}
}
