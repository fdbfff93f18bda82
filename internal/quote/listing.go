package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tokenuniverse/paper-engine/internal/metrics"
	"github.com/tokenuniverse/paper-engine/internal/mint"
	"github.com/tokenuniverse/paper-engine/internal/model"
)

// Discovery tabs.
const (
	TabTrending  = "trending"
	TabGraduated = "graduated"
	TabVerified  = "verified"
)

// Listing sort keys. Every sort is descending.
const (
	SortLiquidity = "liq"
	SortMarketCap = "mcap"
	SortVolume    = "vol"
	SortAge       = "age" // newest first
	SortChange    = "h24"
	SortTxns      = "txns"
)

const (
	searchTTL  = 15 * time.Second
	listingTTL = 20 * time.Second

	// DexScreener accepts at most this many addresses per batch token call.
	tokensPerBatch = 30
)

// ErrUnknownTab is returned by Discover for a tab it does not serve.
var ErrUnknownTab = errors.New("quote: unknown discovery tab")

// Lister serves token search and discovery listings.
type Lister interface {
	Search(ctx context.Context, query string, o ListOptions) ([]model.Quote, error)
	Discover(ctx context.Context, tab string, o ListOptions) ([]model.Quote, error)
}

// ListOptions filters and orders a listing.
type ListOptions struct {
	Sort         string
	MinLiquidity float64
	MinVolume    float64
	MaxAgeHours  float64 // zero means no limit
	Quote        string  // preferred quote token symbol; ties go to it
}

func (o ListOptions) key() string {
	return fmt.Sprintf("%s:%g:%g:%g:%s", o.Sort, o.MinLiquidity, o.MinVolume, o.MaxAgeHours, o.Quote)
}

// quotePref ranks quote tokens when two pairs have equal liquidity.
func (o ListOptions) quotePref() []string {
	if o.Quote == "" {
		return []string{"USDC", "USDT", "SOL"}
	}
	return []string{o.Quote, "USDT", "SOL"}
}

// tabSpec bounds a discovery listing: how many tokens survive dedupe and how
// many are returned.
type tabSpec struct {
	dedupe, limit int
}

var tabs = map[string]tabSpec{
	TabTrending:  {dedupe: 120, limit: 48},
	TabGraduated: {dedupe: 200, limit: 36},
	TabVerified:  {dedupe: 80, limit: 36},
}

var searchSpec = tabSpec{dedupe: 80, limit: 36}

// Search returns the best pair per token for tokens matching query by
// symbol, name or address.
func (c *Client) Search(ctx context.Context, query string, o ListOptions) ([]model.Quote, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Quote{}, nil
	}
	return c.listing(ctx, "search:"+query+":"+o.key(), searchTTL, func(ctx context.Context) ([]Pair, error) {
		var body struct {
			Pairs []Pair `json:"pairs"`
		}
		if err := c.getJSON(ctx, c.baseURL+"/search?q="+url.QueryEscape(query), &body); err != nil {
			return nil, fmt.Errorf("dexscreener search %q: %w", query, err)
		}
		return body.Pairs, nil
	}, searchSpec, o)
}

// Discover returns a curated listing: trending (top boosted tokens),
// graduated (latest token profiles) or verified (the verified list).
func (c *Client) Discover(ctx context.Context, tab string, o ListOptions) ([]model.Quote, error) {
	tab = strings.ToLower(strings.TrimSpace(tab))
	spec, ok := tabs[tab]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	return c.listing(ctx, "disc:"+tab+":"+o.key(), listingTTL, func(ctx context.Context) ([]Pair, error) {
		var addrs []string
		switch tab {
		case TabTrending:
			items, err := c.tokenList(ctx, "/token-boosts/top/v1")
			if err != nil {
				return nil, err
			}
			addrs = items
		case TabGraduated:
			items, err := c.tokenList(ctx, "/token-profiles/latest/v1")
			if err != nil {
				return nil, err
			}
			addrs = items
		case TabVerified:
			addrs = mint.VerifiedMints()
		}
		return c.pairsForTokens(ctx, addrs)
	}, spec, o)
}

func (c *Client) listing(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) ([]Pair, error), spec tabSpec, o ListOptions) ([]model.Quote, error) {
	if qs, ok := c.listings.get(key); ok {
		return qs, nil
	}
	v, err, _ := c.group.Do("list:"+key, func() (any, error) {
		pairs, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		now := c.now()
		pairs = onChain(pairs, c.chainID)
		pairs = BestPerToken(pairs, o.quotePref(), spec.dedupe)
		pairs = Filter(pairs, o, now)
		SortPairs(pairs, o.Sort)
		if len(pairs) > spec.limit {
			pairs = pairs[:spec.limit]
		}
		qs := make([]model.Quote, len(pairs))
		for i := range pairs {
			qs[i] = *pairs[i].toQuote(pairs[i].BaseToken.Address, now)
		}
		c.listings.set(key, qs, ttl)
		return qs, nil
	})
	if err != nil {
		metrics.QuoteFetchErrors.Inc()
		return nil, err
	}
	return v.([]model.Quote), nil
}

// tokenList reads the token addresses on the configured chain from a
// discovery endpoint.
func (c *Client) tokenList(ctx context.Context, path string) ([]string, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, c.discoveryURL+path, &raw); err != nil {
		return nil, fmt.Errorf("dexscreener %s: %w", path, err)
	}
	var out []string
	for _, item := range normalizeList(raw) {
		var entry struct {
			ChainID      string `json:"chainId"`
			TokenAddress string `json:"tokenAddress"`
		}
		if json.Unmarshal(item, &entry) != nil || entry.TokenAddress == "" {
			continue
		}
		if c.chainID != "" && !strings.EqualFold(entry.ChainID, c.chainID) {
			continue
		}
		out = append(out, entry.TokenAddress)
	}
	return out, nil
}

// pairsForTokens fetches every pair of the first tokensPerBatch addresses in
// one call.
func (c *Client) pairsForTokens(ctx context.Context, addrs []string) ([]Pair, error) {
	addrs = slices.DeleteFunc(slices.Clone(addrs), func(s string) bool { return s == "" })
	if len(addrs) > tokensPerBatch {
		addrs = addrs[:tokensPerBatch]
	}
	if len(addrs) == 0 {
		return nil, nil
	}
	endpoint := fmt.Sprintf("%s/tokens/v1/%s/%s", c.discoveryURL, url.PathEscape(c.chainID), strings.Join(addrs, ","))
	var raw json.RawMessage
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("dexscreener batch tokens: %w", err)
	}
	var pairs []Pair
	for _, item := range normalizeList(raw) {
		var p Pair
		if json.Unmarshal(item, &p) == nil {
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

// normalizeList accepts a bare array, an object wrapping one under a common
// key, or a single object.
func normalizeList(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return nil
	}
	for _, k := range []string{"data", "tokens", "profiles", "results", "items", "pairs"} {
		if v, ok := obj[k]; ok && json.Unmarshal(v, &list) == nil {
			return list
		}
	}
	return []json.RawMessage{raw}
}

func onChain(pairs []Pair, chainID string) []Pair {
	if chainID == "" {
		return pairs
	}
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.ChainID == chainID {
			out = append(out, p)
		}
	}
	return out
}

func quoteRank(pref []string, p *Pair) int {
	sym := strings.ToUpper(p.QuoteToken.Symbol)
	for i, s := range pref {
		if strings.ToUpper(s) == sym {
			return i
		}
	}
	return len(pref)
}

// BestPerToken keeps the most liquid pair of each base token, preferring
// the earlier quote token in pref on equal liquidity. The result is ordered
// by liquidity and capped at limit.
func BestPerToken(pairs []Pair, pref []string, limit int) []Pair {
	index := make(map[string]int)
	var out []Pair
	for _, p := range pairs {
		base := p.BaseToken.Address
		if base == "" {
			continue
		}
		i, ok := index[base]
		if !ok {
			index[base] = len(out)
			out = append(out, p)
			continue
		}
		cur := &out[i]
		if p.Liquidity.USD > cur.Liquidity.USD ||
			(p.Liquidity.USD == cur.Liquidity.USD && quoteRank(pref, &p) < quoteRank(pref, cur)) {
			out[i] = p
		}
	}
	slices.SortStableFunc(out, func(a, b Pair) int {
		switch {
		case a.Liquidity.USD > b.Liquidity.USD:
			return -1
		case a.Liquidity.USD < b.Liquidity.USD:
			return 1
		}
		return quoteRank(pref, &a) - quoteRank(pref, &b)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Filter drops pairs below the liquidity or volume floor, or older than
// MaxAgeHours. Pairs with no creation time pass the age check.
func Filter(pairs []Pair, o ListOptions, now time.Time) []Pair {
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Liquidity.USD < o.MinLiquidity || p.Volume.H24 < o.MinVolume {
			continue
		}
		if o.MaxAgeHours > 0 && p.PairCreatedAt > 0 {
			age := now.Sub(time.UnixMilli(p.PairCreatedAt)).Hours()
			if age > o.MaxAgeHours {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// SortPairs orders pairs descending by the given key. Unknown keys sort by
// liquidity.
func SortPairs(pairs []Pair, by string) {
	var key func(*Pair) float64
	switch strings.ToLower(by) {
	case SortMarketCap:
		key = func(p *Pair) float64 {
			if p.MarketCap != 0 {
				return p.MarketCap
			}
			return p.FDV
		}
	case SortVolume:
		key = func(p *Pair) float64 { return p.Volume.H24 }
	case SortAge:
		key = func(p *Pair) float64 { return float64(p.PairCreatedAt) }
	case SortChange:
		key = func(p *Pair) float64 { return p.PriceChange.H24 }
	case SortTxns:
		key = func(p *Pair) float64 { return float64(p.Txns.H24.Buys + p.Txns.H24.Sells) }
	default:
		key = func(p *Pair) float64 { return p.Liquidity.USD }
	}
	slices.SortStableFunc(pairs, func(a, b Pair) int {
		ka, kb := key(&a), key(&b)
		switch {
		case ka > kb:
			return -1
		case ka < kb:
			return 1
		}
		return 0
	})
}

type listingEntry struct {
	quotes    []model.Quote
	expiresAt time.Time
}

// listingCache holds recent listings in process.
type listingCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]listingEntry
}

func newListingCache(now func() time.Time) *listingCache {
	return &listingCache{now: now, entries: make(map[string]listingEntry)}
}

func (c *listingCache) get(key string) ([]model.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.quotes, true
}

func (c *listingCache) set(key string, qs []model.Quote, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = listingEntry{quotes: qs, expiresAt: c.now().Add(ttl)}
}
