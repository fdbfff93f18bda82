package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"github.com/tokenuniverse/paper-engine/internal/prefs"
)

type prefsCmd struct {
	env     *Env
	metric  string
	density string
	quote   string
	quick   string
	reset   bool
}

func (*prefsCmd) Name() string     { return "prefs" }
func (*prefsCmd) Synopsis() string { return "show or change display preferences" }
func (*prefsCmd) Usage() string {
	return `paper prefs [-metric mcap|price] [-density comfortable|dense] [-quote <symbol>] [-quick 25,50,75,100] [-reset]

  Without flags, prints the current preferences.
`
}

func (c *prefsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.metric, "metric", "", "Headline metric: mcap or price.")
	f.StringVar(&c.density, "density", "", "List density: comfortable or dense.")
	f.StringVar(&c.quote, "quote", "", "Quote currency symbol.")
	f.StringVar(&c.quick, "quick", "", "Four comma-separated quick-trade percentages.")
	f.BoolVar(&c.reset, "reset", false, "Restore the defaults.")
}

func (c *prefsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var patch prefs.Patch
	changed := false
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "metric":
			patch.Metric = &c.metric
		case "density":
			patch.Density = &c.density
		case "quote":
			patch.Quote = &c.quote
		default:
			return
		}
		changed = true
	})
	if c.quick != "" {
		qp, err := parsePercents(c.quick)
		if err != nil {
			fmt.Fprintln(c.env.errw(), "Error:", err)
			return subcommands.ExitUsageError
		}
		patch.QuickPercents = qp
		changed = true
	}

	deps, cleanup, err := c.env.open(ctx)
	if err != nil {
		return c.env.fail(err)
	}
	defer cleanup()

	p, err := deps.Prefs.Get(ctx)
	switch {
	case c.reset:
		p, err = deps.Prefs.Reset(ctx)
	case changed:
		p, err = deps.Prefs.Update(ctx, patch)
	}
	if err != nil {
		return c.env.fail(err)
	}

	fmt.Fprintf(c.env.out(), "metric:  %s\ndensity: %s\nquote:   %s\nquick:   %s\n",
		p.Metric, p.Density, p.Quote, formatPercents(p.QuickPercents))
	return subcommands.ExitSuccess
}

func parsePercents(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("bad percentage %q", part)
		}
		out = append(out, v)
	}
	return out, nil
}

func formatPercents(ps []float64) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = strconv.FormatFloat(p, 'f', -1, 64) + "%"
	}
	return strings.Join(parts, " ")
}
