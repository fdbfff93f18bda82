package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/tokenuniverse/paper-engine/internal/model"
	"github.com/tokenuniverse/paper-engine/internal/quote"
)

// listFlags are the filters shared by search and discover.
type listFlags struct {
	sort   string
	minLiq float64
	minVol float64
	maxAge float64
	quote  string
}

func (l *listFlags) register(f *flag.FlagSet) {
	f.StringVar(&l.sort, "sort", quote.SortLiquidity, "Order by liq, mcap, vol, age, h24 or txns.")
	f.Float64Var(&l.minLiq, "min-liq", 0, "Minimum liquidity in USD.")
	f.Float64Var(&l.minVol, "min-vol", 0, "Minimum 24h volume in USD.")
	f.Float64Var(&l.maxAge, "max-age", 0, "Maximum pair age in hours.")
	f.StringVar(&l.quote, "quote", "", "Preferred quote token symbol.")
}

func (l *listFlags) options() quote.ListOptions {
	return quote.ListOptions{
		Sort:         l.sort,
		MinLiquidity: l.minLiq,
		MinVolume:    l.minVol,
		MaxAgeHours:  l.maxAge,
		Quote:        strings.ToUpper(l.quote),
	}
}

type searchCmd struct {
	env *Env
	listFlags
}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "search tokens by symbol, name or address" }
func (*searchCmd) Usage() string {
	return `paper search [-sort <key>] [-min-liq <usd>] [-min-vol <usd>] [-max-age <h>] <query>
`
}

func (c *searchCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	query := strings.TrimSpace(strings.Join(f.Args(), " "))
	if query == "" {
		fmt.Fprintln(c.env.errw(), "Error: expected a search query")
		return subcommands.ExitUsageError
	}
	deps, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	defer cleanup()

	qs, err := deps.Quotes.Search(ctx, query, c.options())
	if err != nil {
		return c.env.fail(err)
	}
	printListing(c.env, qs)
	return subcommands.ExitSuccess
}

type discoverCmd struct {
	env *Env
	listFlags
}

func (*discoverCmd) Name() string     { return "discover" }
func (*discoverCmd) Synopsis() string { return "list trending, graduated or verified tokens" }
func (*discoverCmd) Usage() string {
	return `paper discover [-sort <key>] [-min-liq <usd>] [-min-vol <usd>] [-max-age <h>] [trending|graduated|verified]
`
}

func (c *discoverCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *discoverCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	tab := quote.TabTrending
	switch f.NArg() {
	case 0:
	case 1:
		tab = strings.ToLower(f.Arg(0))
	default:
		fmt.Fprintln(c.env.errw(), "Error: expected at most one tab")
		return subcommands.ExitUsageError
	}
	deps, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	defer cleanup()

	qs, err := deps.Quotes.Discover(ctx, tab, c.options())
	if err != nil {
		return c.env.fail(err)
	}
	printListing(c.env, qs)
	return subcommands.ExitSuccess
}

func printListing(env *Env, qs []model.Quote) {
	if len(qs) == 0 {
		fmt.Fprintln(env.out(), "no tokens found")
		return
	}
	tw := env.table()
	fmt.Fprintln(tw, "SYMBOL\tMINT\tPRICE\tLIQUIDITY\tVOL 24H\t24H\tRISK\tVERIFIED")
	for _, q := range qs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%.0f\t%+.2f%%\t%s\t%s\n",
			q.BaseToken.Symbol, q.TokenMint, q.PriceUSD, q.LiquidityUSD, q.VolumeH24,
			q.PriceChange.H24, riskCell(q.RiskScore, q.RiskLabel), yesNo(q.Verified))
	}
	tw.Flush()
}

func riskCell(score int, label string) string {
	if label == "" {
		return "-"
	}
	return fmt.Sprintf("%d %s", score, label)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
