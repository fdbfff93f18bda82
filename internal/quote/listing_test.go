package quote_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenuniverse/paper-engine/internal/mint"
	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/quote"
)

var listNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func pair(base, quoteSym string, liq float64) quote.Pair {
	p := quote.Pair{
		ChainID:     "solana",
		PairAddress: base + "-" + quoteSym,
		BaseToken:   model.Token{Address: base, Symbol: base},
		QuoteToken:  model.Token{Symbol: quoteSym},
		PriceUSD:    "1",
	}
	p.Liquidity.USD = liq
	return p
}

func addrs(pairs []quote.Pair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.PairAddress
	}
	return out
}

func TestBestPerToken(t *testing.T) {
	pairs := []quote.Pair{
		pair("A", "SOL", 100),
		pair("A", "USDC", 100),
		pair("B", "SOL", 500),
		pair("A", "USDT", 50),
		pair("C", "USDC", 100),
		pair("", "USDC", 9000),
	}
	got := quote.BestPerToken(pairs, []string{"USDC", "USDT", "SOL"}, 0)
	assert.Equal(t, []string{"B-SOL", "A-USDC", "C-USDC"}, addrs(got))

	got = quote.BestPerToken(pairs, []string{"SOL", "USDT"}, 2)
	assert.Equal(t, []string{"B-SOL", "A-SOL"}, addrs(got))
}

func TestFilter(t *testing.T) {
	fresh := pair("F", "USDC", 100)
	fresh.Volume.H24 = 50
	fresh.PairCreatedAt = listNow.Add(-2 * time.Hour).UnixMilli()
	old := pair("O", "USDC", 100)
	old.Volume.H24 = 50
	old.PairCreatedAt = listNow.Add(-72 * time.Hour).UnixMilli()
	unknown := pair("U", "USDC", 100)
	unknown.Volume.H24 = 50
	thin := pair("T", "USDC", 10)
	thin.Volume.H24 = 50

	pairs := []quote.Pair{fresh, old, unknown, thin}
	got := quote.Filter(pairs, quote.ListOptions{MinLiquidity: 50, MinVolume: 10, MaxAgeHours: 24}, listNow)
	assert.Equal(t, []string{"F-USDC", "U-USDC"}, addrs(got), "pairs with no creation time pass the age filter")

	got = quote.Filter(pairs, quote.ListOptions{MinVolume: 60}, listNow)
	assert.Empty(t, got)
}

func TestSortPairs(t *testing.T) {
	a := pair("A", "USDC", 10)
	a.Volume.H24 = 300
	a.PriceChange.H24 = -5
	a.PairCreatedAt = 1
	a.MarketCap = 1
	b := pair("B", "USDC", 30)
	b.Volume.H24 = 100
	b.PriceChange.H24 = 40
	b.PairCreatedAt = 3
	b.FDV = 900
	c := pair("C", "USDC", 20)
	c.Volume.H24 = 200
	c.Txns.H24.Buys = 7
	c.PairCreatedAt = 2

	tests := []struct {
		by   string
		want []string
	}{
		{"", []string{"B-USDC", "C-USDC", "A-USDC"}},
		{quote.SortLiquidity, []string{"B-USDC", "C-USDC", "A-USDC"}},
		{quote.SortVolume, []string{"A-USDC", "C-USDC", "B-USDC"}},
		{quote.SortAge, []string{"B-USDC", "C-USDC", "A-USDC"}},
		{quote.SortChange, []string{"B-USDC", "C-USDC", "A-USDC"}},
		{quote.SortTxns, []string{"C-USDC", "A-USDC", "B-USDC"}},
		{quote.SortMarketCap, []string{"B-USDC", "A-USDC", "C-USDC"}},
	}
	for _, tt := range tests {
		t.Run("by="+tt.by, func(t *testing.T) {
			pairs := []quote.Pair{a, b, c}
			quote.SortPairs(pairs, tt.by)
			assert.Equal(t, tt.want, addrs(pairs))
		})
	}
}

const searchJSON = `{"pairs":[
 {"chainId":"solana","pairAddress":"bonk-sol","priceUsd":"0.00002",
  "baseToken":{"address":"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263","symbol":"BONK"},
  "quoteToken":{"symbol":"SOL"},"liquidity":{"usd":2000000},"volume":{"h24":3000000}},
 {"chainId":"solana","pairAddress":"bonk-usdc","priceUsd":"0.00002",
  "baseToken":{"address":"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263","symbol":"BONK"},
  "quoteToken":{"symbol":"USDC"},"liquidity":{"usd":500000}},
 {"chainId":"solana","pairAddress":"fake-sol","priceUsd":"1",
  "baseToken":{"address":"FakeBonk111111111111111111111111111111111111","symbol":"BONK2"},
  "quoteToken":{"symbol":"SOL"},"liquidity":{"usd":1000}},
 {"chainId":"ethereum","pairAddress":"eth","priceUsd":"1",
  "baseToken":{"address":"0xbonk","symbol":"BONK"},"liquidity":{"usd":90000000}}
]}`

func newListingServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch {
		case r.URL.Path == "/latest/dex/search":
			if r.URL.Query().Get("q") != "bonk" {
				http.Error(w, "bad query", http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, searchJSON)
		case r.URL.Path == "/token-boosts/top/v1":
			fmt.Fprint(w, `[{"chainId":"solana","tokenAddress":"Boost1"},{"chainId":"base","tokenAddress":"0xother"},{"chainId":"solana","tokenAddress":"Boost2"}]`)
		case r.URL.Path == "/token-profiles/latest/v1":
			fmt.Fprint(w, `{"data":[{"chainId":"solana","tokenAddress":"Grad1"}]}`)
		case strings.HasPrefix(r.URL.Path, "/tokens/v1/solana/"):
			var out []string
			for _, a := range strings.Split(strings.TrimPrefix(r.URL.Path, "/tokens/v1/solana/"), ",") {
				out = append(out, fmt.Sprintf(`{"chainId":"solana","pairAddress":"%s-pair","priceUsd":"1","baseToken":{"address":"%s","symbol":"X"},"quoteToken":{"symbol":"SOL"},"liquidity":{"usd":%d}}`, a, a, len(a)*1000))
			}
			fmt.Fprint(w, "["+strings.Join(out, ",")+"]")
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newListingClient(srv *httptest.Server) *quote.Client {
	return quote.NewClient(quote.Config{
		BaseURL:      srv.URL + "/latest/dex",
		DiscoveryURL: srv.URL,
		Now:          func() time.Time { return listNow },
	})
}

func TestSearch(t *testing.T) {
	var hits atomic.Int32
	c := newListingClient(newListingServer(t, &hits))
	ctx := context.Background()

	qs, err := c.Search(ctx, "bonk", quote.ListOptions{})
	require.NoError(t, err)
	require.Len(t, qs, 2, "one pair per token, solana only")
	assert.Equal(t, "bonk-sol", qs[0].PairAddress)
	assert.Equal(t, mint.Bonk, qs[0].TokenMint)
	assert.True(t, qs[0].Verified)
	assert.NotEmpty(t, qs[0].RiskLabel)
	assert.False(t, qs[1].Verified)

	_, err = c.Search(ctx, "bonk", quote.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "repeat search is cached")

	qs, err = c.Search(ctx, "bonk", quote.ListOptions{MinLiquidity: 10_000})
	require.NoError(t, err)
	require.Len(t, qs, 1)

	qs, err = c.Search(ctx, "  ", quote.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, qs)

	_, err = c.Search(ctx, "other", quote.ListOptions{})
	require.Error(t, err)
}

func TestDiscover(t *testing.T) {
	var hits atomic.Int32
	c := newListingClient(newListingServer(t, &hits))
	ctx := context.Background()

	qs, err := c.Discover(ctx, quote.TabTrending, quote.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Boost1-pair", "Boost2-pair"}, pairAddrs(qs))

	qs, err = c.Discover(ctx, "Graduated", quote.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Grad1-pair"}, pairAddrs(qs))

	qs, err = c.Discover(ctx, quote.TabVerified, quote.ListOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, qs)
	for _, q := range qs {
		assert.True(t, q.Verified, q.TokenMint)
	}

	_, err = c.Discover(ctx, "unknown", quote.ListOptions{})
	assert.True(t, errors.Is(err, quote.ErrUnknownTab))
}

func pairAddrs(qs []model.Quote) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.PairAddress
	}
	return out
}
