// Package quote fetches best-pair market quotes for tokens from the
// DexScreener public API.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tokenuniverse/paper-engine/internal/metrics"
	"github.com/tokenuniverse/paper-engine/internal/mint"
	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/risk"
)

const (
	DefaultBaseURL      = "https://api.dexscreener.com/latest/dex"
	DefaultDiscoveryURL = "https://api.dexscreener.com"
	DefaultChainID      = "solana"
	DefaultCacheTTL     = 20 * time.Second
	DefaultMaxBatch     = 60
	DefaultConcurrency  = 8
)

var (
	// ErrNotFound means no pair on the configured chain quotes the token.
	ErrNotFound = errors.New("quote: no pair found")

	// ErrInvalidMint means the identifier is not a mint address.
	ErrInvalidMint = errors.New("quote: invalid token mint")
)

// Source is the quote source the engine depends on.
type Source interface {
	// FetchToken returns the best pair for one token.
	FetchToken(ctx context.Context, tokenMint string) (*model.Quote, error)

	// FetchBestPairs returns one entry per input identifier, in input order;
	// entries are nil where no quote is available.
	FetchBestPairs(ctx context.Context, tokenMints []string) ([]*model.Quote, error)
}

// Config configures a Client.
type Config struct {
	BaseURL      string
	DiscoveryURL string // token-boosts, token-profiles and batch token endpoints
	ChainID      string
	CacheTTL     time.Duration
	MaxBatch     int
	Concurrency  int
	HTTPClient   *http.Client
	Cache        Cache
	Logger       *slog.Logger
	Now          func() time.Time
}

// Client queries DexScreener. Lookups are cached for CacheTTL and concurrent
// lookups of the same token share one request.
type Client struct {
	baseURL      string
	discoveryURL string
	chainID      string
	ttl          time.Duration
	maxBatch     int
	concurrency  int
	http         *http.Client
	cache        Cache
	group        singleflight.Group
	listings     *listingCache
	now          func() time.Time
	logger       *slog.Logger
}

// NewClient creates a client, filling unset config fields with defaults.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		discoveryURL: strings.TrimRight(cfg.DiscoveryURL, "/"),
		chainID:      cfg.ChainID,
		ttl:          cfg.CacheTTL,
		maxBatch:     cfg.MaxBatch,
		concurrency:  cfg.Concurrency,
		http:         cfg.HTTPClient,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.discoveryURL == "" {
		c.discoveryURL = DefaultDiscoveryURL
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.listings = newListingCache(c.now)
	if c.chainID == "" {
		c.chainID = DefaultChainID
	}
	if c.ttl <= 0 {
		c.ttl = DefaultCacheTTL
	}
	if c.maxBatch <= 0 {
		c.maxBatch = DefaultMaxBatch
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultConcurrency
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 12 * time.Second}
	}
	if c.cache == nil {
		c.cache = NewMemoryCache()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "quote")
	return c
}

// FetchToken returns the most liquid pair for tokenMint on the configured
// chain.
func (c *Client) FetchToken(ctx context.Context, tokenMint string) (*model.Quote, error) {
	m, err := mint.Parse(tokenMint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	addr := m.Address

	if q, ok := c.cache.Get(ctx, addr); ok {
		if q == nil {
			return nil, ErrNotFound
		}
		return q, nil
	}

	v, err, _ := c.group.Do(addr, func() (any, error) {
		pairs, err := c.tokenPairs(ctx, addr)
		if err != nil {
			return nil, err
		}
		best := PickBest(pairs, c.chainID)
		var q *model.Quote
		if best != nil {
			q = best.toQuote(addr, c.now())
		}
		// Misses are cached too so an unknown token is not hammered.
		c.cache.Set(ctx, addr, q, c.ttl)
		return q, nil
	})
	if err != nil {
		metrics.QuoteFetchErrors.Inc()
		return nil, err
	}
	q, _ := v.(*model.Quote)
	if q == nil {
		return nil, ErrNotFound
	}
	return q, nil
}

// FetchBestPairs quotes up to MaxBatch tokens concurrently. Identifiers past
// the cap, invalid identifiers and failed lookups yield nil entries.
func (c *Client) FetchBestPairs(ctx context.Context, tokenMints []string) ([]*model.Quote, error) {
	out := make([]*model.Quote, len(tokenMints))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, tm := range tokenMints {
		if i >= c.maxBatch {
			break
		}
		g.Go(func() error {
			q, err := c.FetchToken(gctx, tm)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Debug("batch quote skipped", "mint", tm, "err", err)
				return nil
			}
			out[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// tokenPairs calls GET {base}/tokens/{addr}.
func (c *Client) tokenPairs(ctx context.Context, addr string) ([]Pair, error) {
	var body struct {
		Pairs []Pair `json:"pairs"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/tokens/"+url.PathEscape(addr), &body); err != nil {
		return nil, fmt.Errorf("dexscreener token %s: %w", addr, err)
	}
	return body.Pairs, nil
}

// getJSON decodes the response of a GET on endpoint into dst.
func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.QuoteLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// Pair is the subset of a DexScreener pair the engine reads.
type Pair struct {
	ChainID     string      `json:"chainId"`
	DexID       string      `json:"dexId"`
	PairAddress string      `json:"pairAddress"`
	BaseToken   model.Token `json:"baseToken"`
	QuoteToken  model.Token `json:"quoteToken"`
	PriceUSD    string      `json:"priceUsd"`
	MarketCap   float64     `json:"marketCap"`
	FDV         float64     `json:"fdv"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange model.PriceChange `json:"priceChange"`
	Txns        struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
	PairCreatedAt int64 `json:"pairCreatedAt"`
}

// toQuote converts p into a quote for tokenMint, annotated with the verified
// flag and a risk score as of now.
func (p *Pair) toQuote(tokenMint string, now time.Time) *model.Quote {
	price, err := decimal.NewFromString(p.PriceUSD)
	if err != nil {
		price = decimal.Zero
	}
	mcap := p.MarketCap
	if mcap == 0 {
		mcap = p.FDV
	}
	base := p.BaseToken.Address
	if base == "" {
		base = tokenMint
	}
	verified := mint.IsVerified(base)
	txns := p.Txns.H24.Buys + p.Txns.H24.Sells
	r := risk.Score(risk.Input{
		LiquidityUSD:   p.Liquidity.USD,
		VolumeH24:      p.Volume.H24,
		TxnsH24:        txns,
		PairCreatedAt:  p.PairCreatedAt,
		PriceChangeH24: p.PriceChange.H24,
		Verified:       verified,
	}, now)
	return &model.Quote{
		TokenMint:    tokenMint,
		PriceUSD:     price,
		MarketCap:    mcap,
		LiquidityUSD: p.Liquidity.USD,
		VolumeH24:    p.Volume.H24,
		PriceChange:  p.PriceChange,
		PairAddress:  p.PairAddress,
		DexID:        p.DexID,
		ChainID:      p.ChainID,
		BaseToken:    p.BaseToken,
		QuoteToken:   p.QuoteToken,
		TxnsH24:      txns,
		CreatedAt:    p.PairCreatedAt,
		Verified:     verified,
		RiskScore:    r.Score,
		RiskLabel:    string(r.Label),
	}
}

// PickBest returns the pair on chainID with the most USD liquidity, or nil.
// The first pair wins ties. An empty chainID accepts every chain.
func PickBest(pairs []Pair, chainID string) *Pair {
	var best *Pair
	for i := range pairs {
		p := &pairs[i]
		if chainID != "" && p.ChainID != chainID {
			continue
		}
		if best == nil || p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	return best
}
