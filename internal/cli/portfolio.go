package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"

	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/position"
	"github.com/tokenuniverse/paper-engine/internal/wallet"
)

type positionsCmd struct {
	env   *Env
	value bool
}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "list open positions derived from the ledger" }
func (*positionsCmd) Usage() string {
	return `paper positions [-value]

  Lists open positions in the order they were first traded. With -value,
  positions are marked to market with live quotes.
`
}

func (c *positionsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.value, "value", false, "Mark positions to market with live quotes.")
}

func (c *positionsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	deps, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	defer cleanup()

	trades, err := deps.Ledger.List(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	positions := position.Derive(trades)
	if len(positions) == 0 {
		fmt.Fprintln(c.env.out(), "no open positions")
		return subcommands.ExitSuccess
	}

	tw := c.env.table()
	if !c.value {
		fmt.Fprintln(tw, "MINT\tQTY\tENTRY\tCOST")
		for _, p := range positions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.TokenMint, p.Qty, p.EntryPriceUSD.Round(8), wallet.FormatUSD(p.Cost))
		}
		tw.Flush()
		return subcommands.ExitSuccess
	}

	w, err := deps.Wallet.Get(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	quotes := make(map[string]model.Quote, len(positions))
	mints := position.Mints(positions)
	if qs, err := deps.Quotes.FetchBestPairs(ctx, mints); err == nil {
		for i, q := range qs {
			if q != nil {
				quotes[mints[i]] = *q
			}
		}
	}
	pf := position.Value(positions, quotes, w.CashUSD)

	fmt.Fprintln(tw, "MINT\tSYMBOL\tQTY\tENTRY\tPRICE\tVALUE\tPNL\tPNL%\tRISK")
	for _, pv := range pf.Positions {
		if !pv.Priced {
			fmt.Fprintf(tw, "%s\t-\t%s\t%s\t-\t-\t-\t-\t-\n", pv.TokenMint, pv.Qty, pv.EntryPriceUSD.Round(8))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s%%\t%s\n",
			pv.TokenMint, pv.Symbol, pv.Qty, pv.EntryPriceUSD.Round(8), pv.PriceUSD,
			wallet.FormatUSD(pv.ValueUSD), wallet.FormatUSD(pv.UnrealizedPnL), pv.PnLPercent.StringFixed(2),
			riskCell(pv.RiskScore, pv.RiskLabel))
	}
	tw.Flush()
	fmt.Fprintf(c.env.out(), "cash %s  positions %s  equity %s\n",
		wallet.FormatUSD(pf.CashUSD), wallet.FormatUSD(pf.PositionsValueUSD), wallet.FormatUSD(pf.EquityUSD))
	return subcommands.ExitSuccess
}

type walletCmd struct {
	env *Env
}

func (*walletCmd) Name() string     { return "wallet" }
func (*walletCmd) Synopsis() string { return "show the cash balance" }
func (*walletCmd) Usage() string {
	return `paper wallet
`
}
func (*walletCmd) SetFlags(*flag.FlagSet) {}

func (c *walletCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	deps, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	defer cleanup()

	w, err := deps.Wallet.Get(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	fmt.Fprintf(c.env.out(), "cash: %s\n", wallet.FormatUSD(w.CashUSD))
	return subcommands.ExitSuccess
}

type tradesCmd struct {
	env  *Env
	tail int
}

func (*tradesCmd) Name() string     { return "trades" }
func (*tradesCmd) Synopsis() string { return "list the trade ledger" }
func (*tradesCmd) Usage() string {
	return `paper trades [-tail <n>]

  Lists trades in the order they were executed.
`
}

func (c *tradesCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.tail, "tail", 0, "Show only the last N trades.")
}

func (c *tradesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	deps, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	defer cleanup()

	trades, err := deps.Ledger.List(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	if c.tail > 0 && len(trades) > c.tail {
		trades = trades[len(trades)-c.tail:]
	}

	tw := c.env.table()
	fmt.Fprintln(tw, "TIME\tSIDE\tMINT\tQTY\tPRICE\tTOTAL\tSOURCE")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			time.UnixMilli(t.Timestamp).UTC().Format(time.DateTime),
			t.Side, t.TokenMint, t.Qty, t.PriceUSD, wallet.FormatUSD(t.Total()), t.Source)
	}
	tw.Flush()
	return subcommands.ExitSuccess
}
