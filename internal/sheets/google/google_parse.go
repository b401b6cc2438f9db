package google

import (
	"fmt"
	"strconv"
	"strings"

	"mybudget/internal/core"
	ports "mybudget/internal/sheets"
)

// Column layout: A budget, B transaction, C date, D type, E frequency,
// F amount in display units, G line count, H notes.

func formatRow(r ports.Row) []any {
	return []any{
		r.BudgetID,
		r.TransactionID,
		r.Date.String(),
		string(r.Type),
		string(r.Frequency.OrDefault()),
		core.ToDisplay(r.Amount.Decimal()).StringFixed(2),
		r.Lines,
		r.Notes,
	}
}

// parseRow converts one values row back into a Row. Rows whose key
// columns are not numeric (headers, cleared rows) report false.
func parseRow(values []any) (ports.Row, bool) {
	cols := toStrings(values)
	if len(cols) < 6 {
		return ports.Row{}, false
	}
	budgetID, err1 := strconv.ParseInt(cols[0], 10, 64)
	txID, err2 := strconv.ParseInt(cols[1], 10, 64)
	if err1 != nil || err2 != nil {
		return ports.Row{}, false
	}
	date, err := core.ParseDate(cols[2])
	if err != nil {
		return ports.Row{}, false
	}
	amount, err := core.ParseDisplayAmount(cols[5])
	if err != nil {
		return ports.Row{}, false
	}

	r := ports.Row{
		BudgetID:      budgetID,
		TransactionID: txID,
		Date:          date,
		Type:          core.TransactionType(cols[3]),
		Frequency:     core.Frequency(cols[4]).OrDefault(),
		Amount:        amount,
	}
	if len(cols) > 6 {
		r.Lines, _ = strconv.Atoi(cols[6])
	}
	if len(cols) > 7 {
		r.Notes = cols[7]
	}
	return r, true
}

// findRow returns the 1-based sheet row holding the transaction, or 0.
func findRow(keys [][]any, budgetID, transactionID int64) int {
	wantBudget := strconv.FormatInt(budgetID, 10)
	wantTx := strconv.FormatInt(transactionID, 10)
	for i, values := range keys {
		cols := toStrings(values)
		if len(cols) < 2 {
			continue
		}
		if cols[0] == wantBudget && cols[1] == wantTx {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
