package feed_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenuniverse/paper-engine/internal/feed"
	"github.com/tokenuniverse/paper-engine/internal/model"
)

// fakeFetcher returns a fixed price, failing the calls listed in failOn
// (1-based). If gate is set, each fetch blocks until it receives, regardless
// of its context, and records the context error it saw on release.
type fakeFetcher struct {
	price  decimal.Decimal
	failOn map[int32]bool
	gate   chan struct{}
	calls  atomic.Int32

	mu     sync.Mutex
	ctxErr []error
}

func (f *fakeFetcher) FetchToken(ctx context.Context, tokenMint string) (*model.Quote, error) {
	n := f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
		f.mu.Lock()
		f.ctxErr = append(f.ctxErr, ctx.Err())
		f.mu.Unlock()
	}
	if f.failOn[n] {
		return nil, errors.New("upstream down")
	}
	return &model.Quote{TokenMint: tokenMint, PriceUSD: f.price}, nil
}

type collector struct {
	mu      sync.Mutex
	updates []feed.Update
}

func (c *collector) add(u feed.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

func TestStart_FetchesImmediatelyAndRepeats(t *testing.T) {
	f := &fakeFetcher{price: decimal.NewFromInt(200)}
	var c collector

	h := feed.Start(context.Background(), f, feed.Options{
		TokenMint: "A",
		Interval:  10 * time.Millisecond,
		OnUpdate:  c.add,
	})
	defer h.Cancel()

	require.Eventually(t, func() bool { return c.len() >= 3 }, time.Second, 5*time.Millisecond)

	c.mu.Lock()
	first := c.updates[0]
	c.mu.Unlock()
	assert.Equal(t, "A", first.TokenMint)
	assert.True(t, first.PriceUSD.Equal(decimal.NewFromInt(200)))
	assert.NotNil(t, first.Quote)
}

func TestStart_FailedTickIsSkipped(t *testing.T) {
	f := &fakeFetcher{price: decimal.NewFromInt(1), failOn: map[int32]bool{1: true}}
	var c collector

	h := feed.Start(context.Background(), f, feed.Options{
		TokenMint: "A",
		Interval:  10 * time.Millisecond,
		OnUpdate:  c.add,
	})
	defer h.Cancel()

	require.Eventually(t, func() bool { return c.len() >= 1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, f.calls.Load(), int32(2), "first fetch failed, so the first update comes from a later tick")
}

func TestCancel_DiscardsInFlightResult(t *testing.T) {
	f := &fakeFetcher{price: decimal.NewFromInt(5), gate: make(chan struct{})}
	var c collector

	h := feed.Start(context.Background(), f, feed.Options{
		TokenMint: "A",
		Interval:  time.Hour,
		OnUpdate:  c.add,
	})
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	h.Cancel()

	// The fetch completes with a good quote after Cancel has returned.
	select {
	case f.gate <- struct{}{}:
	case <-time.After(time.Second):
		t.Fatal("fetch was not waiting on the gate")
	}

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("feed goroutine did not exit")
	}
	assert.Equal(t, 0, c.len())

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.ctxErr, 1)
	assert.NoError(t, f.ctxErr[0], "cancel must not abort the in-flight fetch")
}

func TestCancel_Idempotent(t *testing.T) {
	f := &fakeFetcher{price: decimal.NewFromInt(1)}
	h := feed.Start(context.Background(), f, feed.Options{TokenMint: "A", Interval: time.Hour})
	h.Cancel()
	h.Cancel()
	h.Stop()
	<-h.Done()
}

func TestStop_FromCallback(t *testing.T) {
	f := &fakeFetcher{price: decimal.NewFromInt(1)}
	var h *feed.Handle
	var mu sync.Mutex
	var n int

	started := make(chan struct{})
	h = feed.Start(context.Background(), f, feed.Options{
		TokenMint: "A",
		Interval:  time.Millisecond,
		OnUpdate: func(feed.Update) {
			<-started
			mu.Lock()
			n++
			mu.Unlock()
			h.Stop()
		},
	})
	close(started)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("feed did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, n)
}

func TestManager_ReplacesSlot(t *testing.T) {
	f := &fakeFetcher{price: decimal.NewFromInt(1)}
	m := feed.NewManager(f, time.Hour, time.Second, nil)
	defer m.Close()

	var a, b collector
	first := m.Start(context.Background(), "conn-1", "A", a.add)
	m.Start(context.Background(), "conn-1", "B", b.add)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("previous feed still running")
	}

	mint, ok := m.Active("conn-1")
	require.True(t, ok)
	assert.Equal(t, "B", mint)
	assert.Equal(t, 1, m.Len())

	require.Eventually(t, func() bool { return b.len() == 1 }, time.Second, time.Millisecond)
	b.mu.Lock()
	assert.Equal(t, "B", b.updates[0].TokenMint)
	b.mu.Unlock()

	m.Stop("conn-1")
	_, ok = m.Active("conn-1")
	assert.False(t, ok)
}

func TestPriceBook(t *testing.T) {
	b := feed.NewPriceBook()
	now := time.Now()

	_, ok := b.Latest("A", 0)
	assert.False(t, ok)

	b.Record(feed.Update{TokenMint: "A", PriceUSD: decimal.NewFromInt(2), At: now})
	b.Record(feed.Update{TokenMint: "A", PriceUSD: decimal.NewFromInt(1), At: now.Add(-time.Minute)})

	p, ok := b.Latest("A", 0)
	require.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromInt(2)), "older updates never overwrite newer ones")

	b.Record(feed.Update{TokenMint: "B", PriceUSD: decimal.NewFromInt(3), At: now.Add(-time.Hour)})
	_, ok = b.Latest("B", time.Minute)
	assert.False(t, ok, "stale prices are ignored")
}
