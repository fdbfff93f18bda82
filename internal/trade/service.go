package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tokenuniverse/paper-engine/internal/feed"
	"github.com/tokenuniverse/paper-engine/internal/ledger"
	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/position"
	"github.com/tokenuniverse/paper-engine/internal/prefs"
	"github.com/tokenuniverse/paper-engine/internal/quote"
	"github.com/tokenuniverse/paper-engine/internal/wallet"
	"github.com/tokenuniverse/paper-engine/internal/watchlist"
)

// ErrPriceUnavailable is returned when a trade omits its price and no live
// price can be found.
var ErrPriceUnavailable = errors.New("Live price unavailable. Try again.")

// DefaultPriceMaxAge bounds how old a feed price may be when it stands in for
// a price the trade request omitted.
const DefaultPriceMaxAge = 30 * time.Second

// Service serves the engine's HTTP API.
type Service struct {
	exec      *Executor
	ledger    *ledger.Ledger
	wallet    *wallet.Wallet
	prefs     *prefs.Store
	watchlist *watchlist.Watchlist
	quotes    quote.Source
	listings  quote.Lister
	prices    *feed.PriceBook
	maxAge    time.Duration
	logger    *slog.Logger
}

// Deps bundles the collaborators of a Service. Quotes and Prices may be
// nil; trades then require an explicit price. Listings backs search and
// discovery.
type Deps struct {
	Executor    *Executor
	Ledger      *ledger.Ledger
	Wallet      *wallet.Wallet
	Prefs       *prefs.Store
	Watchlist   *watchlist.Watchlist
	Quotes      quote.Source
	Listings    quote.Lister
	Prices      *feed.PriceBook
	PriceMaxAge time.Duration
	Logger      *slog.Logger
}

// NewService creates a new HTTP service.
func NewService(d Deps) *Service {
	s := &Service{
		exec:      d.Executor,
		ledger:    d.Ledger,
		wallet:    d.Wallet,
		prefs:     d.Prefs,
		watchlist: d.Watchlist,
		quotes:    d.Quotes,
		listings:  d.Listings,
		prices:    d.Prices,
		maxAge:    d.PriceMaxAge,
		logger:    d.Logger,
	}
	if s.maxAge <= 0 {
		s.maxAge = DefaultPriceMaxAge
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Routes registers the API on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/trade", s.ExecuteTrade)
	r.Post("/seed", s.Seed)
	r.Get("/trades", s.ListTrades)
	r.Delete("/trades", s.ClearTrades)
	r.Get("/positions", s.GetPositions)
	r.Get("/portfolio", s.GetPortfolio)
	r.Get("/wallet", s.GetWallet)
	r.Get("/prefs", s.GetPrefs)
	r.Patch("/prefs", s.PatchPrefs)
	r.Delete("/prefs", s.ResetPrefs)
	r.Get("/watchlist", s.GetWatchlist)
	r.Post("/watchlist/{mint}/toggle", s.ToggleWatchlist)
	r.Get("/quote/{mint}", s.GetQuote)
	r.Get("/quotes", s.GetQuotes)
	r.Get("/search", s.Search)
	r.Get("/discover/{tab}", s.Discover)
}

// TradeRequest is the JSON body for POST /trade. PriceUSD may be omitted, in
// which case the latest live price is used. AmountUSD sizes the trade in
// dollars when Qty is omitted.
type TradeRequest struct {
	TokenMint string          `json:"tokenMint"`
	Side      string          `json:"side"`
	Qty       decimal.Decimal `json:"qty"`
	AmountUSD decimal.Decimal `json:"amountUsd"`
	PriceUSD  decimal.Decimal `json:"priceUsd"`
}

// ExecuteTrade handles POST /api/v1/trade
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	price := req.PriceUSD
	if price.IsZero() && strings.TrimSpace(req.TokenMint) != "" {
		p, err := s.livePrice(ctx, strings.TrimSpace(req.TokenMint))
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, Result{OK: false, Error: err.Error()})
			return
		}
		price = p
	}

	qty := req.Qty
	if qty.IsZero() && req.AmountUSD.IsPositive() && price.IsPositive() {
		qty = req.AmountUSD.Div(price)
	}

	res, err := s.exec.Execute(ctx, Request{
		TokenMint: req.TokenMint,
		Side:      req.Side,
		Qty:       qty,
		PriceUSD:  price,
	})
	if err != nil {
		writeError(w, "failed to record trade", http.StatusInternalServerError)
		return
	}
	if !res.OK {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// livePrice returns the freshest feed price for tokenMint, falling back to a
// single immediate fetch.
func (s *Service) livePrice(ctx context.Context, tokenMint string) (decimal.Decimal, error) {
	if s.prices != nil {
		if p, ok := s.prices.Latest(tokenMint, s.maxAge); ok && p.IsPositive() {
			return p, nil
		}
	}
	if s.quotes == nil {
		return decimal.Zero, ErrPriceUnavailable
	}
	q, err := s.quotes.FetchToken(ctx, tokenMint)
	if err != nil || q == nil || !q.PriceUSD.IsPositive() {
		s.logger.Info("live price unavailable", "mint", tokenMint, "err", err)
		return decimal.Zero, ErrPriceUnavailable
	}
	if s.prices != nil {
		s.prices.Record(feed.Update{TokenMint: tokenMint, PriceUSD: q.PriceUSD, Quote: q, At: time.Now()})
	}
	return q.PriceUSD, nil
}

// Seed handles POST /api/v1/seed
func (s *Service) Seed(w http.ResponseWriter, r *http.Request) {
	results, err := s.exec.Seed(r.Context())
	if err != nil {
		writeError(w, "failed to seed demo trades", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// ListTrades handles GET /api/v1/trades
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.ledger.List(r.Context())
	if err != nil {
		writeError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

// ClearTrades handles DELETE /api/v1/trades. The wallet is left alone.
func (s *Service) ClearTrades(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Clear(r.Context()); err != nil {
		writeError(w, "failed to clear trades", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPositions handles GET /api/v1/positions
func (s *Service) GetPositions(w http.ResponseWriter, r *http.Request) {
	trades, err := s.ledger.List(r.Context())
	if err != nil {
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, position.Derive(trades))
}

// GetPortfolio handles GET /api/v1/portfolio
// Positions are marked to market with one batch quote lookup; positions the
// quote source cannot price are reported unpriced.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	trades, err := s.ledger.List(ctx)
	if err != nil {
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}
	cash, err := s.wallet.Get(ctx)
	if err != nil {
		writeError(w, "failed to load wallet", http.StatusInternalServerError)
		return
	}

	positions := position.Derive(trades)
	quotes := s.batchQuotes(ctx, position.Mints(positions))
	writeJSON(w, http.StatusOK, position.Value(positions, quotes, cash.CashUSD))
}

func (s *Service) batchQuotes(ctx context.Context, mints []string) map[string]model.Quote {
	out := make(map[string]model.Quote, len(mints))
	if s.quotes == nil || len(mints) == 0 {
		return out
	}
	qs, err := s.quotes.FetchBestPairs(ctx, mints)
	if err != nil {
		s.logger.Warn("batch quote failed", "err", err)
		return out
	}
	for i, q := range qs {
		if q != nil {
			out[mints[i]] = *q
		}
	}
	return out
}

// GetWallet handles GET /api/v1/wallet
func (s *Service) GetWallet(w http.ResponseWriter, r *http.Request) {
	wl, err := s.wallet.Get(r.Context())
	if err != nil {
		writeError(w, "failed to load wallet", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cashUsd": wl.CashUSD,
		"display": wallet.FormatUSD(wl.CashUSD),
	})
}

// GetPrefs handles GET /api/v1/prefs
func (s *Service) GetPrefs(w http.ResponseWriter, r *http.Request) {
	p, err := s.prefs.Get(r.Context())
	if err != nil {
		writeError(w, "failed to load preferences", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PatchPrefs handles PATCH /api/v1/prefs
func (s *Service) PatchPrefs(w http.ResponseWriter, r *http.Request) {
	var patch prefs.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p, err := s.prefs.Update(r.Context(), patch)
	if err != nil {
		if isPrefsValidation(err) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, "failed to save preferences", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func isPrefsValidation(err error) bool {
	return errors.Is(err, prefs.ErrInvalidMetric) ||
		errors.Is(err, prefs.ErrInvalidDensity) ||
		errors.Is(err, prefs.ErrInvalidQuote) ||
		errors.Is(err, prefs.ErrInvalidQuickPercents)
}

// ResetPrefs handles DELETE /api/v1/prefs
func (s *Service) ResetPrefs(w http.ResponseWriter, r *http.Request) {
	p, err := s.prefs.Reset(r.Context())
	if err != nil {
		writeError(w, "failed to reset preferences", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetWatchlist handles GET /api/v1/watchlist
func (s *Service) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	list, err := s.watchlist.List(r.Context())
	if err != nil {
		writeError(w, "failed to load watchlist", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ToggleWatchlist handles POST /api/v1/watchlist/{mint}/toggle
func (s *Service) ToggleWatchlist(w http.ResponseWriter, r *http.Request) {
	m := strings.TrimSpace(chi.URLParam(r, "mint"))
	if m == "" {
		writeError(w, "Missing token mint.", http.StatusBadRequest)
		return
	}
	list, watched, err := s.watchlist.Toggle(r.Context(), m)
	if err != nil {
		writeError(w, "failed to update watchlist", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"watchlist": list,
		"watched":   watched,
	})
}

// GetQuote handles GET /api/v1/quote/{mint}
func (s *Service) GetQuote(w http.ResponseWriter, r *http.Request) {
	if s.quotes == nil {
		writeError(w, "quote source not configured", http.StatusServiceUnavailable)
		return
	}
	q, err := s.quotes.FetchToken(r.Context(), chi.URLParam(r, "mint"))
	switch {
	case errors.Is(err, quote.ErrInvalidMint):
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, quote.ErrNotFound):
		writeError(w, "no pair found for token", http.StatusNotFound)
		return
	case err != nil:
		writeError(w, ErrPriceUnavailable.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// GetQuotes handles GET /api/v1/quotes?tokens=a,b,c
// The response has one entry per requested token, null where unavailable.
func (s *Service) GetQuotes(w http.ResponseWriter, r *http.Request) {
	if s.quotes == nil {
		writeError(w, "quote source not configured", http.StatusServiceUnavailable)
		return
	}
	var mints []string
	for _, m := range strings.Split(r.URL.Query().Get("tokens"), ",") {
		if m = strings.TrimSpace(m); m != "" {
			mints = append(mints, m)
		}
	}
	if len(mints) == 0 {
		writeError(w, "tokens query parameter is required", http.StatusBadRequest)
		return
	}
	qs, err := s.quotes.FetchBestPairs(r.Context(), mints)
	if err != nil {
		writeError(w, "quote lookup cancelled", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

// Search handles GET /api/v1/search?q=&sort=&minLiq=&minVol=&maxAgeH=&quote=
func (s *Service) Search(w http.ResponseWriter, r *http.Request) {
	if s.listings == nil {
		writeError(w, "listing source not configured", http.StatusServiceUnavailable)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}
	qs, err := s.listings.Search(r.Context(), q, listOptions(r))
	if err != nil {
		s.logger.Warn("search failed", "q", q, "err", err)
		writeError(w, "search unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": qs})
}

// Discover handles GET /api/v1/discover/{tab} for the trending, graduated
// and verified tabs. Any other tab serves trending.
func (s *Service) Discover(w http.ResponseWriter, r *http.Request) {
	if s.listings == nil {
		writeError(w, "listing source not configured", http.StatusServiceUnavailable)
		return
	}
	tab := strings.ToLower(chi.URLParam(r, "tab"))
	switch tab {
	case quote.TabTrending, quote.TabGraduated, quote.TabVerified:
	default:
		tab = quote.TabTrending
	}
	qs, err := s.listings.Discover(r.Context(), tab, listOptions(r))
	if err != nil {
		s.logger.Warn("discover failed", "tab", tab, "err", err)
		writeError(w, "discovery unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tab": tab, "results": qs})
}

// listOptions reads listing filters from the query string. Unparsable
// numbers are ignored.
func listOptions(r *http.Request) quote.ListOptions {
	v := r.URL.Query()
	num := func(key string) float64 {
		f, err := strconv.ParseFloat(v.Get(key), 64)
		if err != nil || f < 0 {
			return 0
		}
		return f
	}
	return quote.ListOptions{
		Sort:         v.Get("sort"),
		MinLiquidity: num("minLiq"),
		MinVolume:    num("minVol"),
		MaxAgeHours:  num("maxAgeH"),
		Quote:        strings.ToUpper(strings.TrimSpace(v.Get("quote"))),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
