package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/netshaper/rush/pkg/rush/engine"
)

// reportColors highlights the numbers an operator scans for first in a
// load/link report: high loss rates and non-zero drop counts. Colors are
// disabled outright when stdout isn't a terminal.
type reportColors struct {
	enabled bool
	warn    *color.Color
	bad     *color.Color
}

func newReportColors() *reportColors {
	enabled := term.IsTerminal(int(os.Stdout.Fd()))
	return &reportColors{
		enabled: enabled,
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed, color.Bold),
	}
}

func (c *reportColors) lossRate(rate uint64) string {
	text := fmt.Sprintf("%d%%", rate)
	switch {
	case !c.enabled || rate == 0:
		return text
	case rate >= 10:
		return c.bad.Sprint(text)
	default:
		return c.warn.Sprint(text)
	}
}

func (c *reportColors) dropCount(n uint64) string {
	text := fmt.Sprintf("%d", n)
	if c.enabled && n > 0 {
		return c.bad.Sprint(text)
	}
	return text
}

// printLinkReport prints one line per live link, highlighting loss rate
// and drop counts, the CLI-facing equivalent of engine.ReportLinks.
func printLinkReport(e *engine.Engine, colors *reportColors) {
	seen := make(map[string]bool)
	for _, name := range append(e.InhaleOrder(), e.ExhaleOrder()...) {
		if seen[name] {
			continue
		}
		seen[name] = true
		app, ok := e.App(name)
		if !ok {
			continue
		}
		for portName, l := range app.Output {
			rate := engine.LossRate(l.TxDrop, l.TxPackets)
			fmt.Printf("%s.%s: sent=%d drop=%s loss=%s\n",
				name, portName, l.TxPackets, colors.dropCount(l.TxDrop), colors.lossRate(rate))
		}
	}
}
