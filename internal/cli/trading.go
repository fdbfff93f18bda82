package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/tokenuniverse/paper-engine/internal/trade"
	"github.com/tokenuniverse/paper-engine/internal/wallet"
)

type tradeCmd struct {
	env   *Env
	side  string
	qty   decimalFlag
	usd   decimalFlag
	price decimalFlag
}

func (c *tradeCmd) Name() string { return strings.ToLower(c.side) }
func (c *tradeCmd) Synopsis() string {
	return fmt.Sprintf("paper-%s a token at the live or given price", strings.ToLower(c.side))
}
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`paper %s <mint> (-qty <n> | -usd <amount>) [-price <usd>]

  Records a %s in the trade ledger and moves cash. Without -price the best
  live quote is used.
`, strings.ToLower(c.side), c.side)
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&c.qty, "qty", "Token quantity.")
	f.Var(&c.usd, "usd", "Trade size in USD, converted at the trade price. Ignored when -qty is set.")
	f.Var(&c.price, "price", "Price per token in USD. Defaults to the live price.")
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	price, err := resolvePrice(ctx, deps, tokenMint, c.price.v)
	if err != nil {
		return c.env.fail(err)
	}
	qty := c.qty.v
	if qty.IsZero() && c.usd.v.IsPositive() {
		qty = c.usd.v.Div(price)
	}

	res, err := deps.Executor.Execute(ctx, trade.Request{
		TokenMint: tokenMint,
		Side:      c.side,
		Qty:       qty,
		PriceUSD:  price,
	})
	if err != nil {
		return c.env.fail(err)
	}
	if !res.OK {
		fmt.Fprintln(c.env.errw(), res.Error)
		return subcommands.ExitFailure
	}

	t := res.Trade
	fmt.Fprintf(c.env.out(), "%s %s %s @ %s = %s\n", t.Side, t.Qty, t.TokenMint, t.PriceUSD, wallet.FormatUSD(t.Total()))
	fmt.Fprintf(c.env.out(), "cash: %s\n", wallet.FormatUSD(res.Wallet.CashUSD))
	return subcommands.ExitSuccess
}

type seedCmd struct {
	env *Env
}

func (*seedCmd) Name() string     { return "seed" }
func (*seedCmd) Synopsis() string { return "buy the demo holdings" }
func (*seedCmd) Usage() string {
	return `paper seed

  Buys 1.2 SOL at $200 and 800,000 BONK at $0.00001.
`
}
func (*seedCmd) SetFlags(*flag.FlagSet) {}

func (c *seedCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	deps, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	defer cleanup()

	results, err := deps.Executor.Seed(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	for _, res := range results {
		if !res.OK {
			fmt.Fprintln(c.env.errw(), res.Error)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(c.env.out(), "%s %s %s @ %s\n", res.Trade.Side, res.Trade.Qty, res.Trade.TokenMint, res.Trade.PriceUSD)
	}
	return subcommands.ExitSuccess
}

type clearCmd struct {
	env         *Env
	resetWallet bool
}

func (*clearCmd) Name() string     { return "clear" }
func (*clearCmd) Synopsis() string { return "erase the trade ledger" }
func (*clearCmd) Usage() string {
	return `paper clear [-wallet]

  Erases every trade. The cash balance is kept unless -wallet is given.
`
}

func (c *clearCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.resetWallet, "wallet", false, "Also restore the starting cash balance.")
}

func (c *clearCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	deps, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	defer cleanup()

	if err := deps.Ledger.Clear(ctx); err != nil {
		return c.env.fail(err)
	}
	fmt.Fprintln(c.env.out(), "trades cleared")
	if c.resetWallet {
		w, err := deps.Wallet.Reset(ctx)
		if err != nil {
			return c.env.fail(err)
		}
		fmt.Fprintf(c.env.out(), "cash: %s\n", wallet.FormatUSD(w.CashUSD))
	}
	return subcommands.ExitSuccess
}
