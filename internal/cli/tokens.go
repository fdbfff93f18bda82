package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"

	"github.com/tokenuniverse/paper-engine/internal/feed"
	"github.com/tokenuniverse/paper-engine/internal/trade"
)

type watchCmd struct {
	env *Env
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "add or remove a token from the watchlist" }
func (*watchCmd) Usage() string {
	return `paper watch <mint>

  Toggles the token: it is added when absent and removed when present.
`
}
func (*watchCmd) SetFlags(*flag.FlagSet) {}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(c.env.errw(), "Error: expected exactly one token mint")
		return subcommands.ExitUsageError
	}
	deps, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	defer cleanup()

	_, watched, err := deps.Watchlist.Toggle(ctx, f.Arg(0))
	if err != nil {
		return c.env.fail(err)
	}
	if watched {
		fmt.Fprintf(c.env.out(), "watching %s\n", f.Arg(0))
	} else {
		fmt.Fprintf(c.env.out(), "unwatched %s\n", f.Arg(0))
	}
	return subcommands.ExitSuccess
}

type watchlistCmd struct {
	env    *Env
	quotes bool
}

func (*watchlistCmd) Name() string     { return "watchlist" }
func (*watchlistCmd) Synopsis() string { return "list watched tokens" }
func (*watchlistCmd) Usage() string {
	return `paper watchlist [-quotes]
`
}

func (c *watchlistCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.quotes, "quotes", false, "Include live prices.")
}

func (c *watchlistCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	deps, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	defer cleanup()

	mints, err := deps.Watchlist.List(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	if !c.quotes {
		for _, m := range mints {
			fmt.Fprintln(c.env.out(), m)
		}
		return subcommands.ExitSuccess
	}

	qs, err := deps.Quotes.FetchBestPairs(ctx, mints)
	if err != nil {
		return c.env.fail(err)
	}
	tw := c.env.table()
	fmt.Fprintln(tw, "MINT\tSYMBOL\tPRICE\tMCAP\tLIQUIDITY\t24H")
	for i, m := range mints {
		q := qs[i]
		if q == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\n", m)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%.0f\t%+.2f%%\n",
			m, q.BaseToken.Symbol, q.PriceUSD, q.MarketCap, q.LiquidityUSD, q.PriceChange.H24)
	}
	tw.Flush()
	return subcommands.ExitSuccess
}

type priceCmd struct {
	env      *Env
	follow   bool
	interval time.Duration
}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "show the live price of a token" }
func (*priceCmd) Usage() string {
	return `paper price <mint> [-follow] [-interval <d>]

  Prints the best-pair price. With -follow, keeps polling until interrupted.
`
}

func (c *priceCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.follow, "follow", false, "Keep printing updates until interrupted.")
	f.DurationVar(&c.interval, "interval", feed.DefaultInterval, "Polling interval with -follow.")
}

func (c *priceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(c.env.errw(), "Error: expected exactly one token mint")
		return subcommands.ExitUsageError
	}
	tokenMint := f.Arg(0)

	deps, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	defer cleanup()

	if !c.follow {
		q, err := deps.Quotes.FetchToken(ctx, tokenMint)
		if err != nil {
			fmt.Fprintln(c.env.errw(), trade.ErrPriceUnavailable)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(c.env.out(), "%s %s $%s (%s on %s)\n", q.BaseToken.Symbol, tokenMint, q.PriceUSD, q.DexID, q.ChainID)
		return subcommands.ExitSuccess
	}

	h := feed.Start(ctx, deps.Quotes, feed.Options{
		TokenMint: tokenMint,
		Interval:  c.interval,
		OnUpdate: func(u feed.Update) {
			fmt.Fprintf(c.env.out(), "%s %s $%s\n", u.At.Format(time.TimeOnly), u.TokenMint, u.PriceUSD)
		},
		Logger: c.env.Logger,
	})
	<-ctx.Done()
	h.Cancel()
	return subcommands.ExitSuccess
}
