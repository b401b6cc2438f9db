package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mybudget/internal/sheets"
)

type key struct {
	budgetID      int64
	transactionID int64
}

// Mirror is an in-process ledger mirror, used when no spreadsheet is
// configured and in tests.
type Mirror struct {
	mu   sync.Mutex
	rows map[key]sheets.Row
	refs map[key]int
	next int
}

var (
	_ sheets.LedgerMirror = (*Mirror)(nil)
	_ sheets.MirrorReader = (*Mirror)(nil)
)

func New() *Mirror {
	return &Mirror{rows: map[key]sheets.Row{}, refs: map[key]int{}}
}

// Upsert stores the row and returns a synthetic row reference that stays
// stable across updates of the same transaction.
func (m *Mirror) Upsert(_ context.Context, row sheets.Row) (string, error) {
	if row.BudgetID <= 0 || row.TransactionID <= 0 {
		return "", fmt.Errorf("mirror row needs budget and transaction ids")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{row.BudgetID, row.TransactionID}
	ref, ok := m.refs[k]
	if !ok {
		m.next++
		ref = m.next
		m.refs[k] = ref
	}
	m.rows[k] = row
	return fmt.Sprintf("mem:%d", ref), nil
}

func (m *Mirror) Remove(_ context.Context, budgetID, transactionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{budgetID, transactionID}
	delete(m.rows, k)
	delete(m.refs, k)
	return nil
}

// List returns the budget's rows ordered by transaction id.
func (m *Mirror) List(_ context.Context, budgetID int64) ([]sheets.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sheets.Row, 0)
	for k, r := range m.rows {
		if k.budgetID == budgetID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out, nil
}

// Len reports the number of mirrored rows across budgets.
func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
