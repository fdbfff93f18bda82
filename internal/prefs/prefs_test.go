package prefs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/prefs"
	"github.com/tokenuniverse/paper-engine/internal/state"
	"github.com/tokenuniverse/paper-engine/internal/store"
)

func ptr[T any](v T) *T { return &v }

func TestApply_ShallowMerge(t *testing.T) {
	got, err := prefs.Apply(prefs.Defaults(), prefs.Patch{Density: ptr(model.DensityDense)})
	require.NoError(t, err)
	assert.Equal(t, model.DensityDense, got.Density)
	assert.Equal(t, model.MetricMarketCap, got.Metric)
	assert.Equal(t, "USDC", got.Quote)
	assert.Equal(t, []float64{25, 50, 75, 100}, got.QuickPercents)
}

func TestApply_Rejects(t *testing.T) {
	cases := map[string]prefs.Patch{
		"metric":        {Metric: ptr("volume")},
		"density":       {Density: ptr("huge")},
		"quote":         {Quote: ptr("")},
		"too few":       {QuickPercents: []float64{10, 20}},
		"zero percent":  {QuickPercents: []float64{0, 20, 30, 40}},
		"over hundred":  {QuickPercents: []float64{10, 20, 30, 101}},
		"empty percent": {QuickPercents: []float64{}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			cur := prefs.Defaults()
			got, err := prefs.Apply(cur, p)
			assert.Error(t, err)
			assert.Equal(t, cur, got)
		})
	}
}

func TestApply_DoesNotAliasPercents(t *testing.T) {
	in := []float64{10, 20, 30, 40}
	got, err := prefs.Apply(prefs.Defaults(), prefs.Patch{QuickPercents: in})
	require.NoError(t, err)
	in[0] = 99
	assert.Equal(t, float64(10), got.QuickPercents[0])
}

func TestStore_UpdateAndGet(t *testing.T) {
	ctx := context.Background()
	s := prefs.New(store.NewMemoryStore(), nil)

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, prefs.Defaults(), got)

	_, err = s.Update(ctx, prefs.Patch{Metric: ptr(model.MetricPrice)})
	require.NoError(t, err)
	_, err = s.Update(ctx, prefs.Patch{QuickPercents: []float64{5, 10, 50, 100}})
	require.NoError(t, err)

	got, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.MetricPrice, got.Metric)
	assert.Equal(t, []float64{5, 10, 50, 100}, got.QuickPercents)

	_, err = s.Update(ctx, prefs.Patch{Metric: ptr("bogus")})
	assert.ErrorIs(t, err, prefs.ErrInvalidMetric)
	got, _ = s.Get(ctx)
	assert.Equal(t, model.MetricPrice, got.Metric, "rejected patch must not persist")

	got, err = s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, prefs.Defaults(), got)
}

func TestStore_PartialDocumentFilledFromDefaults(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	require.NoError(t, ms.Set(ctx, state.KeyPrefs, []byte(`{"metric":"price"}`)))

	got, err := prefs.New(ms, nil).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.MetricPrice, got.Metric)
	assert.Equal(t, model.DensityComfortable, got.Density)
	assert.Len(t, got.QuickPercents, prefs.QuickPercentCount)
}

func TestStore_CorruptReadsDefaults(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	require.NoError(t, ms.Set(ctx, state.KeyPrefs, []byte(`[1,2`)))

	got, err := prefs.New(ms, nil).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, prefs.Defaults(), got)
}
