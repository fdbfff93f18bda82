// Package cli implements the paper command line: trades, positions, wallet,
// watchlist, preferences, live prices and token discovery against the local
// state file.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/tokenuniverse/paper-engine/internal/app"
	"github.com/tokenuniverse/paper-engine/internal/config"
	"github.com/tokenuniverse/paper-engine/internal/trade"
)

// Env is shared by every command.
type Env struct {
	ConfigPath string
	Out        io.Writer
	Err        io.Writer
	Logger     *slog.Logger

	// Wire builds the engine. Nil means load ConfigPath and call app.Wire.
	Wire func(ctx context.Context) (*app.Dependencies, func(), error)
}

// Register adds every command to c.
func Register(c *subcommands.Commander, env *Env) {
	c.Register(&tradeCmd{env: env, side: "BUY"}, "trading")
	c.Register(&tradeCmd{env: env, side: "SELL"}, "trading")
	c.Register(&seedCmd{env: env}, "trading")
	c.Register(&clearCmd{env: env}, "trading")

	c.Register(&positionsCmd{env: env}, "portfolio")
	c.Register(&walletCmd{env: env}, "portfolio")
	c.Register(&tradesCmd{env: env}, "portfolio")

	c.Register(&watchCmd{env: env}, "tokens")
	c.Register(&watchlistCmd{env: env}, "tokens")
	c.Register(&priceCmd{env: env}, "tokens")
	c.Register(&searchCmd{env: env}, "tokens")
	c.Register(&discoverCmd{env: env}, "tokens")

	c.Register(&prefsCmd{env: env}, "settings")
}

func (e *Env) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

func (e *Env) errw() io.Writer {
	if e.Err == nil {
		return os.Stderr
	}
	return e.Err
}

func (e *Env) open(ctx context.Context) (*app.Dependencies, func(), error) {
	if e.Wire != nil {
		return e.Wire(ctx)
	}
	cfg, err := config.Load(e.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return app.Wire(ctx, cfg, e.Logger)
}

// fail prints err and maps it to an exit status.
func (e *Env) fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(e.errw(), "Error:", err)
	return subcommands.ExitFailure
}

func (e *Env) table() *tabwriter.Writer {
	return tabwriter.NewWriter(e.out(), 0, 0, 2, ' ', 0)
}

// decimalFlag is a flag.Value holding a decimal.
type decimalFlag struct {
	v decimal.Decimal
}

func (d *decimalFlag) String() string { return d.v.String() }

func (d *decimalFlag) Set(s string) error {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return errors.New("not a number")
	}
	d.v = v
	return nil
}

// resolvePrice returns price when set, otherwise one live lookup.
func resolvePrice(ctx context.Context, deps *app.Dependencies, tokenMint string, price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsPositive() {
		return price, nil
	}
	q, err := deps.Quotes.FetchToken(ctx, tokenMint)
	if err != nil || !q.PriceUSD.IsPositive() {
		return decimal.Zero, trade.ErrPriceUnavailable
	}
	return q.PriceUSD, nil
}
