package google

import (
	"fmt"
	"strings"

	"budget/internal/core"
	ports "budget/internal/sheets"

	"github.com/shopspring/decimal"
)

// parseSummary converts a values matrix (as returned by the Sheets API)
// into summary rows. Columns are located by header name so reordered
// sheets still read; rows whose month does not parse are skipped.
func parseSummary(values [][]interface{}) ([]ports.SummaryRow, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	cols := make([]int, len(ports.Header))
	var missing []string
	for i, name := range ports.Header {
		cols[i] = indexOf(headers, name)
		if cols[i] == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected summary header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	out := make([]ports.SummaryRow, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		month, err := core.ParseMonth(safeGet(row, cols[0]))
		if err != nil {
			continue
		}
		r := ports.SummaryRow{Month: month, Label: safeGet(row, cols[1])}
		amounts := []*decimal.Decimal{&r.Income, &r.Fixed, &r.Variable, &r.Balance, &r.Cumulative}
		for j, dst := range amounts {
			*dst = parseCell(safeGet(row, cols[j+2]))
		}
		out = append(out, r)
	}
	return out, nil
}

// parseCell reads a numeric cell. Decimal commas are accepted; blanks and
// garbage read as zero.
func parseCell(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Round(2)
}
