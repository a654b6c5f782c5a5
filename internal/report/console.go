package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/wonny/aegis/taa/internal/contracts"
)

const (
	doubleLine = "═══════════════════════════════════════════════════════════"
	singleLine = "───────────────────────────────────────────────────────────"
)

// ConsoleTable prints a human-readable monthly allocation table
type ConsoleTable struct {
	w    io.Writer
	last int // 0 = 전체, N = 마지막 N개월만
}

// NewConsoleTable creates a console sink; last limits output to the final N months
func NewConsoleTable(w io.Writer, last int) *ConsoleTable {
	return &ConsoleTable{w: w, last: last}
}

// Publish implements contracts.ReportSink
func (c *ConsoleTable) Publish(ctx context.Context, run contracts.RunInfo, records []contracts.DecisionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	shown := records
	if c.last > 0 && len(shown) > c.last {
		shown = shown[len(shown)-c.last:]
	}

	var b strings.Builder
	fmt.Fprintln(&b, doubleLine)
	fmt.Fprintf(&b, "  %s  (run %s)\n", strings.ToUpper(run.StrategyID), shortID(run.RunID))
	fmt.Fprintln(&b, singleLine)
	fmt.Fprintf(&b, "  As of     : %s\n", run.AsOf.Format("2006-01-02"))
	fmt.Fprintf(&b, "  Config    : %s\n", shortID(run.ConfigHash))
	fmt.Fprintf(&b, "  Decisions : %d (showing %d)\n", len(records), len(shown))
	fmt.Fprintln(&b, singleLine)

	for _, rec := range shown {
		fmt.Fprintf(&b, "  %s  %-9s  %s\n", rec.Label, rec.Regime, FormatAllocation(rec))
	}
	fmt.Fprintln(&b, doubleLine)

	_, err := io.WriteString(c.w, b.String())
	return err
}

// FormatAllocation renders "SPY 50.0% | BIL 50.0%" (+ cash)
func FormatAllocation(rec contracts.DecisionRecord) string {
	parts := make([]string, 0, len(rec.Positions)+1)
	for _, p := range rec.Positions {
		parts = append(parts, fmt.Sprintf("%s %.1f%%", p.Symbol, p.Weight*100))
	}
	if rec.Cash > 0 {
		parts = append(parts, fmt.Sprintf("Cash(%s) %.1f%%", rec.CashSymbol, rec.Cash*100))
	}
	return strings.Join(parts, " | ")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
