package cli

import (
	"fmt"
	"strings"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/persistence"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Theme colors
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	positiveStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	negativeStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	warnStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)
)

// SeparatorRow splits a table body with a horizontal rule.
var SeparatorRow = []string{"---"}

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(48).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table. The first column is left aligned
// and the others, which hold amounts, right aligned.
func RenderTable(t Table) string {
	numCols := len(t.Headers)
	if numCols == 0 && len(t.Rows) > 0 {
		numCols = len(t.Rows[0])
	}
	if numCols == 0 {
		return ""
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < numCols && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	rule := func(left, mid, right string) {
		b.WriteString(dimStyle.Render(left))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render(mid))
			}
		}
		b.WriteString(dimStyle.Render(right))
		b.WriteString("\n")
	}

	rule("╭", "┬", "╮")
	if len(t.Headers) > 0 {
		b.WriteString(dimStyle.Render("│"))
		for i, h := range t.Headers {
			b.WriteString(headerStyle.Render(" " + pad(h, widths[i], i > 0) + " "))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
		rule("├", "┼", "┤")
	}

	for _, row := range t.Rows {
		if len(row) == 1 && row[0] == SeparatorRow[0] {
			rule("├", "┼", "┤")
			continue
		}
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(" " + pad(cell, widths[i], i > 0) + " ")
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
	}
	rule("╰", "┴", "╯")

	return b.String()
}

// pad fills s to width display cells. Styled cells carry escape codes, so
// the width is measured with lipgloss rather than len.
func pad(s string, width int, right bool) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

// Money renders an amount in the plain value colour.
func Money(d decimal.Decimal) string {
	return valueStyle.Render(core.FormatMoney(d))
}

// Balance renders an amount green when it is zero or positive and red
// otherwise.
func Balance(d decimal.Decimal) string {
	if d.IsNegative() {
		return negativeStyle.Render(core.FormatMoney(d))
	}
	return positiveStyle.Render(core.FormatMoney(d))
}

// Muted renders secondary text.
func Muted(s string) string { return mutedStyle.Render(s) }

// RenderMonth renders the month summary: totals, the top categories and
// the fixed expense states.
func RenderMonth(label string, totals ledger.Totals, breakdown []ledger.CategoryTotal, fixed []ledger.FixedExpenseState, topN int) string {
	var b strings.Builder
	b.WriteString(RenderTitle(label))
	b.WriteString("\n")

	b.WriteString(RenderTable(Table{
		Title:   "Totals",
		Headers: []string{"", "Amount"},
		Rows: [][]string{
			{"Income", Money(totals.TotalIncome)},
			{"Fixed expenses", Money(totals.TotalFixedExpenses)},
			{"Variable expenses", Money(totals.TotalVariableExpenses)},
			SeparatorRow,
			{"Balance", Balance(totals.Balance)},
		},
	}))

	if len(breakdown) > 0 {
		if topN > 0 && len(breakdown) > topN {
			breakdown = breakdown[:topN]
		}
		rows := make([][]string, 0, len(breakdown))
		for _, c := range breakdown {
			rows = append(rows, []string{c.Name, Money(c.Total), fmt.Sprintf("%d%%", c.Percent)})
		}
		b.WriteString(RenderTable(Table{Title: "Top categories", Headers: []string{"Category", "Spent", "Share"}, Rows: rows}))
	}

	if len(fixed) > 0 {
		rows := make([][]string, 0, len(fixed))
		for _, f := range fixed {
			state := positiveStyle.Render("counted")
			switch {
			case !f.Enabled:
				state = Muted("disabled")
			case !f.ActiveForMonth:
				state = warnStyle.Render("off this month")
			case !f.Applies:
				state = Muted("not counted")
			}
			rows = append(rows, []string{f.Description, Money(f.Amount), state, Muted(f.ID)})
		}
		b.WriteString(RenderTable(Table{Title: "Fixed expenses", Headers: []string{"Description", "Amount", "State", "ID"}, Rows: rows}))
	}
	return b.String()
}

// RenderHistory renders one row per month with the running balance.
func RenderHistory(entries []ledger.HistoryEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Label,
			Money(e.TotalIncome),
			Money(e.TotalExpenses),
			Balance(e.Balance),
			Balance(e.CumulativeBalance),
		})
	}
	return RenderTable(Table{
		Title:   "History",
		Headers: []string{"Month", "Income", "Expenses", "Balance", "Cumulative"},
		Rows:    rows,
	})
}

// RenderSyncStatus renders the sync indicator on one line.
func RenderSyncStatus(r persistence.StatusReport) string {
	var status string
	switch r.Status {
	case persistence.StatusSynced, persistence.StatusIdle:
		status = positiveStyle.Render(string(r.Status))
	case persistence.StatusSyncing:
		status = warnStyle.Render(string(r.Status))
	default:
		status = negativeStyle.Render(string(r.Status))
	}
	line := fmt.Sprintf("sync: %s  version: %d", status, r.Version)
	if !r.LastSyncAt.IsZero() {
		line += Muted("  last: " + r.LastSyncAt.Local().Format("2006-01-02 15:04:05"))
	}
	if r.LastError != "" {
		line += "\n" + negativeStyle.Render("error: "+r.LastError)
	}
	return line
}
