package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mybudget/internal/core"
	"mybudget/internal/middleware/ratelimit"
	"mybudget/internal/storage"
)

type apiFixture struct {
	t      *testing.T
	store  *storage.Store
	srv    *Server
	budget core.Budget
	token  string
}

func newAPIFixture(t *testing.T, deps Dependencies) *apiFixture {
	t.Helper()
	ctx := context.Background()
	store, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	deps.Store = store
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &apiFixture{t: t, store: store, srv: srv}
}

func (f *apiFixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) decode(rr *httptest.ResponseRecorder, wantStatus int, v any) {
	f.t.Helper()
	if rr.Code != wantStatus {
		f.t.Fatalf("status = %d, want %d: %s", rr.Code, wantStatus, rr.Body.String())
	}
	if v == nil {
		return
	}
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		f.t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func (f *apiFixture) budgetPath(suffix string) string {
	return "/api/budgets/" + strconv.FormatInt(f.budget.ID, 10) + suffix
}

// seed creates a budget with one account and two categories through the API.
func (f *apiFixture) seed() (account core.Account, food, salary core.Category) {
	f.t.Helper()
	f.decode(f.do(http.MethodPost, "/api/budgets", `{"name":"Household"}`), http.StatusCreated, &f.budget)
	f.decode(f.do(http.MethodPost, f.budgetPath("/accounts"), `{"name":"Checking","type":"checking"}`), http.StatusCreated, &account)
	f.decode(f.do(http.MethodPost, f.budgetPath("/categories"), `{"name":"Food","type":"expense"}`), http.StatusCreated, &food)
	f.decode(f.do(http.MethodPost, f.budgetPath("/categories"), `{"name":"Salary","type":"income"}`), http.StatusCreated, &salary)
	return account, food, salary
}

func txBody(accountID int64, typ string, lines ...string) string {
	return `{"account_id":` + strconv.FormatInt(accountID, 10) +
		`,"date":"2025-03-15","type":"` + typ + `","lines":[` + strings.Join(lines, ",") + `]}`
}

func lineJSON(categoryID int64, amount int64) string {
	if categoryID == 0 {
		return `{"amount":` + strconv.FormatInt(amount, 10) + `}`
	}
	return `{"category_id":` + strconv.FormatInt(categoryID, 10) + `,"amount":` + strconv.FormatInt(amount, 10) + `}`
}

func TestHealthAndReady(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := f.do(http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing request id", path)
		}
	}
}

func TestUnknownEndpoint(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	var body ErrorBody
	f.decode(f.do(http.MethodGet, "/api/nothing/here", ""), http.StatusNotFound, &body)
	if body.Error != "not_found" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestReadyReportsClosedStore(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	f.store.Close()
	if rr := f.do(http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestCreateTransactionRoundTrip(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	account, food, salary := f.seed()

	var created createTransactionResponse
	f.decode(f.do(http.MethodPost, f.budgetPath("/transactions"),
		txBody(account.ID, "income", lineJSON(salary.ID, 1000), lineJSON(food.ID, -300))),
		http.StatusCreated, &created)

	if created.Transaction.Amount.Cents != 700 || len(created.Transaction.Lines) != 2 {
		t.Fatalf("created = %+v", created.Transaction)
	}
	if created.Transaction.Lines[0].LineOrder != 1 || created.Transaction.Lines[1].LineOrder != 2 {
		t.Errorf("lines out of order: %+v", created.Transaction.Lines)
	}
	if created.Account == nil || created.Account.Balance.Cents != 700 {
		t.Errorf("account = %+v, want balance 700", created.Account)
	}

	var read core.Transaction
	f.decode(f.do(http.MethodGet, f.budgetPath("/transactions/"+strconv.FormatInt(created.Transaction.ID, 10)), ""),
		http.StatusOK, &read)
	if read.Amount.Cents != 700 || len(read.Lines) != 2 {
		t.Errorf("read = %+v", read)
	}
}

func TestCreateTransactionErrors(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	account, food, _ := f.seed()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   string
	}{
		{"no lines", txBody(account.ID, "expense"), http.StatusBadRequest, "validation"},
		{"bad date", `{"date":"15/03/2025","type":"expense","lines":[{"amount":-1}]}`, http.StatusBadRequest, "validation"},
		{"unknown field", `{"date":"2025-03-15","type":"expense","amount":5,"lines":[{"amount":-1}]}`, http.StatusBadRequest, "validation"},
		{"missing category", txBody(account.ID, "expense", lineJSON(9999, -100)), http.StatusUnprocessableEntity, "referential"},
		{"missing account", txBody(424242, "expense", lineJSON(food.ID, -100)), http.StatusUnprocessableEntity, "referential"},
		{"budget mismatch", `{"budget_id":999,"date":"2025-03-15","type":"expense","lines":[{"amount":-1}]}`, http.StatusBadRequest, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body ErrorBody
			f.decode(f.do(http.MethodPost, f.budgetPath("/transactions"), tt.body), tt.wantStatus, &body)
			if body.Error != tt.wantKind {
				t.Errorf("error = %q, want %q", body.Error, tt.wantKind)
			}
		})
	}

	// a rejected write leaves nothing behind
	var txs []core.Transaction
	f.decode(f.do(http.MethodGet, f.budgetPath("/transactions"), ""), http.StatusOK, &txs)
	if len(txs) != 0 {
		t.Errorf("transactions after failed writes = %d", len(txs))
	}
	var acc []core.Account
	f.decode(f.do(http.MethodGet, f.budgetPath("/accounts"), ""), http.StatusOK, &acc)
	if acc[0].Balance.Cents != 0 {
		t.Errorf("balance = %d, want 0", acc[0].Balance.Cents)
	}
}

func TestListTransactionsFilterAndOrder(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	account, food, salary := f.seed()

	for _, body := range []string{
		txBody(account.ID, "expense", lineJSON(food.ID, -100)),
		txBody(account.ID, "income", lineJSON(salary.ID, 500)),
		txBody(account.ID, "expense", lineJSON(food.ID, -200)),
	} {
		f.decode(f.do(http.MethodPost, f.budgetPath("/transactions"), body), http.StatusCreated, nil)
	}

	var expenses []core.Transaction
	f.decode(f.do(http.MethodGet, f.budgetPath("/transactions?type=expense"), ""), http.StatusOK, &expenses)
	if len(expenses) != 2 {
		t.Fatalf("expenses = %d, want 2", len(expenses))
	}
	if expenses[0].ID < expenses[1].ID {
		t.Errorf("same-date rows not in id DESC order: %d, %d", expenses[0].ID, expenses[1].ID)
	}

	if rr := f.do(http.MethodGet, f.budgetPath("/transactions?type=refund"), ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad type status = %d", rr.Code)
	}
}

func TestIdempotentCreate(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	account, food, _ := f.seed()
	body := txBody(account.ID, "expense", lineJSON(food.ID, -250))

	first := f.do(http.MethodPost, f.budgetPath("/transactions"), body, "Idempotency-Key", "abc-1")
	second := f.do(http.MethodPost, f.budgetPath("/transactions"), body, "Idempotency-Key", "abc-1")

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("statuses = %d, %d", first.Code, second.Code)
	}
	if second.Header().Get(replayedHeader) != "true" {
		t.Error("second response not marked as replayed")
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Errorf("replayed body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}

	var txs []core.Transaction
	f.decode(f.do(http.MethodGet, f.budgetPath("/transactions"), ""), http.StatusOK, &txs)
	if len(txs) != 1 {
		t.Errorf("transactions = %d, want 1", len(txs))
	}

	reused := f.do(http.MethodPost, f.budgetPath("/transactions"),
		txBody(account.ID, "expense", lineJSON(food.ID, -999)), "Idempotency-Key", "abc-1")
	if reused.Code != http.StatusConflict {
		t.Errorf("reused key status = %d, want 409", reused.Code)
	}
}

func TestIdempotentCreateConcurrent(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	account, food, _ := f.seed()
	body := txBody(account.ID, "expense", lineJSON(food.ID, -10))

	var wg sync.WaitGroup
	codes := make([]int, 5)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = f.do(http.MethodPost, f.budgetPath("/transactions"), body, "Idempotency-Key", "same").Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusCreated {
			t.Errorf("request %d status = %d", i, code)
		}
	}
	var txs []core.Transaction
	f.decode(f.do(http.MethodGet, f.budgetPath("/transactions"), ""), http.StatusOK, &txs)
	if len(txs) != 1 {
		t.Errorf("transactions = %d, want 1", len(txs))
	}
}

func TestLineMutations(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	account, food, salary := f.seed()

	var created createTransactionResponse
	f.decode(f.do(http.MethodPost, f.budgetPath("/transactions"),
		txBody(account.ID, "expense", lineJSON(food.ID, -100))), http.StatusCreated, &created)
	txPath := f.budgetPath("/transactions/" + strconv.FormatInt(created.Transaction.ID, 10))

	var added core.Line
	f.decode(f.do(http.MethodPost, txPath+"/lines", lineJSON(food.ID, -50)), http.StatusCreated, &added)
	if added.LineOrder != 2 {
		t.Errorf("added line order = %d, want 2", added.LineOrder)
	}

	linePath := txPath + "/lines/" + strconv.FormatInt(added.ID, 10)
	var updated core.Line
	f.decode(f.do(http.MethodPut, linePath, `{"amount":-80,"category_id":`+strconv.FormatInt(salary.ID, 10)+`}`), http.StatusOK, &updated)
	if updated.Amount.Cents != -80 {
		t.Errorf("updated amount = %d", updated.Amount.Cents)
	}

	var acc []core.Account
	f.decode(f.do(http.MethodGet, f.budgetPath("/accounts"), ""), http.StatusOK, &acc)
	if acc[0].Balance.Cents != -180 {
		t.Errorf("balance after update = %d, want -180", acc[0].Balance.Cents)
	}

	f.decode(f.do(http.MethodDelete, linePath, ""), http.StatusOK, nil)
	var tx core.Transaction
	f.decode(f.do(http.MethodGet, txPath, ""), http.StatusOK, &tx)
	if tx.Amount.Cents != -100 || len(tx.Lines) != 1 {
		t.Errorf("transaction after delete = %+v", tx)
	}

	f.decode(f.do(http.MethodDelete, txPath, ""), http.StatusOK, nil)
	f.decode(f.do(http.MethodGet, f.budgetPath("/accounts"), ""), http.StatusOK, &acc)
	if acc[0].Balance.Cents != 0 {
		t.Errorf("balance after delete = %d, want 0", acc[0].Balance.Cents)
	}
	if rr := f.do(http.MethodGet, txPath, ""); rr.Code != http.StatusNotFound {
		t.Errorf("deleted transaction status = %d", rr.Code)
	}
}

func TestCategoryDeleteGuardAndReassign(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	account, food, _ := f.seed()

	var groceries core.Category
	f.decode(f.do(http.MethodPost, f.budgetPath("/categories"), `{"name":"Groceries","type":"expense"}`), http.StatusCreated, &groceries)
	for i := 0; i < 3; i++ {
		f.decode(f.do(http.MethodPost, f.budgetPath("/transactions"),
			txBody(account.ID, "expense", lineJSON(food.ID, -100))), http.StatusCreated, nil)
	}

	foodPath := f.budgetPath("/categories/" + strconv.FormatInt(food.ID, 10))

	var stats categoryStatsDTO
	f.decode(f.do(http.MethodGet, foodPath+"/stats", ""), http.StatusOK, &stats)
	if stats.LineCount != 3 || !stats.Total.Equal(decimal.RequireFromString("-3")) {
		t.Errorf("stats = %+v", stats)
	}

	var inUse ErrorBody
	f.decode(f.do(http.MethodDelete, foodPath, ""), http.StatusConflict, &inUse)
	if inUse.Error != "in_use" || inUse.Count != 3 {
		t.Errorf("in use body = %+v", inUse)
	}

	var moved map[string]int64
	f.decode(f.do(http.MethodPost, foodPath+"/reassign", `{"to_category_id":`+strconv.FormatInt(groceries.ID, 10)+`}`), http.StatusOK, &moved)
	if moved["reassigned"] != 3 {
		t.Errorf("reassigned = %d", moved["reassigned"])
	}

	f.decode(f.do(http.MethodDelete, foodPath, ""), http.StatusOK, nil)
}

func TestCategoryConflict(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	f.seed()

	var body ErrorBody
	f.decode(f.do(http.MethodPost, f.budgetPath("/categories"), `{"name":"food","type":"expense"}`), http.StatusConflict, &body)
	if body.Error != "conflict" {
		t.Errorf("error = %q", body.Error)
	}

	if rr := f.do(http.MethodPost, f.budgetPath("/categories"), `{"name":"Fun","type":"transfer"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad type status = %d", rr.Code)
	}
}

func TestReports(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	account, food, salary := f.seed()

	var tag core.Tag
	f.decode(f.do(http.MethodPost, f.budgetPath("/tags"), `{"name":"vacation"}`), http.StatusCreated, &tag)

	f.decode(f.do(http.MethodPost, f.budgetPath("/transactions"),
		txBody(account.ID, "income", lineJSON(salary.ID, 500000))), http.StatusCreated, nil)
	f.decode(f.do(http.MethodPost, f.budgetPath("/transactions"),
		`{"account_id":`+strconv.FormatInt(account.ID, 10)+`,"date":"2025-03-20","type":"expense","tag_ids":[`+
			strconv.FormatInt(tag.ID, 10)+`],"lines":[`+lineJSON(food.ID, -12345)+`]}`), http.StatusCreated, nil)

	var summary summaryDTO
	f.decode(f.do(http.MethodGet, f.budgetPath("/summary?month=2025-03"), ""), http.StatusOK, &summary)
	if !summary.Income.Equal(decimal.RequireFromString("5000")) ||
		!summary.Expense.Equal(decimal.RequireFromString("123.45")) ||
		!summary.Net.Equal(decimal.RequireFromString("4876.55")) {
		t.Errorf("summary = %+v", summary)
	}

	var empty summaryDTO
	f.decode(f.do(http.MethodGet, f.budgetPath("/summary?month=2025-04"), ""), http.StatusOK, &empty)
	if !empty.Income.IsZero() || !empty.Expense.IsZero() {
		t.Errorf("april summary = %+v", empty)
	}

	var series []monthDTO
	f.decode(f.do(http.MethodGet, f.budgetPath("/monthly?start=2025-02&months=3"), ""), http.StatusOK, &series)
	if len(series) != 3 || !series[1].Income.Equal(decimal.RequireFromString("5000")) || !series[0].Income.IsZero() {
		t.Errorf("series = %+v", series)
	}

	var catTotals []categoryTotalDTO
	f.decode(f.do(http.MethodGet, f.budgetPath("/totals/categories"), ""), http.StatusOK, &catTotals)
	if len(catTotals) == 0 {
		t.Fatal("no category totals")
	}

	var tagTotals []tagTotalDTO
	f.decode(f.do(http.MethodGet, f.budgetPath("/totals/tags"), ""), http.StatusOK, &tagTotals)
	if len(tagTotals) != 1 || !tagTotals[0].Total.Equal(decimal.RequireFromString("-123.45")) {
		t.Errorf("tag totals = %+v", tagTotals)
	}

	var dash dashboardDTO
	f.decode(f.do(http.MethodGet, f.budgetPath("/dashboard?month=2025-03"), ""), http.StatusOK, &dash)
	if len(dash.Monthly) != 12 || !dash.Summary.Net.Equal(summary.Net) {
		t.Errorf("dashboard = %+v", dash)
	}

	if rr := f.do(http.MethodGet, f.budgetPath("/summary?month=March"), ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad month status = %d", rr.Code)
	}
}

func TestUpcomingPayments(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	account, food, salary := f.seed()

	f.decode(f.do(http.MethodPost, f.budgetPath("/transactions"),
		`{"account_id":`+strconv.FormatInt(account.ID, 10)+`,"date":"2025-01-31","type":"expense","frequency":"monthly","notes":"rent","lines":[`+
			lineJSON(food.ID, -12345)+`]}`), http.StatusCreated, nil)
	f.decode(f.do(http.MethodPost, f.budgetPath("/transactions"),
		txBody(account.ID, "income", lineJSON(salary.ID, 500000))), http.StatusCreated, nil)

	var upcoming []upcomingDTO
	f.decode(f.do(http.MethodGet, f.budgetPath("/upcoming?from=2025-02-10&days=30"), ""), http.StatusOK, &upcoming)
	if len(upcoming) != 1 {
		t.Fatalf("upcoming = %+v, want only the rent", upcoming)
	}
	if upcoming[0].DueDate.String() != "2025-02-28" || upcoming[0].Notes != "rent" ||
		!upcoming[0].Amount.Equal(decimal.RequireFromString("-123.45")) {
		t.Errorf("rent = %+v", upcoming[0])
	}

	f.decode(f.do(http.MethodGet, f.budgetPath("/upcoming?from=2025-03-01&days=31"), ""), http.StatusOK, &upcoming)
	if len(upcoming) != 2 || upcoming[0].DueDate.String() != "2025-03-15" || upcoming[1].DueDate.String() != "2025-03-31" {
		t.Errorf("march upcoming = %+v", upcoming)
	}

	for _, q := range []string{"days=0", "days=1000", "from=tomorrow"} {
		if rr := f.do(http.MethodGet, f.budgetPath("/upcoming?"+q), ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", q, rr.Code)
		}
	}
}

func TestSavingGoals(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	f.seed()

	var goal core.SavingGoal
	f.decode(f.do(http.MethodPost, f.budgetPath("/goals"), `{"name":"Holiday","target_amount":150000}`), http.StatusCreated, &goal)
	if goal.Target.Cents != 150000 || goal.Current.Cents != 0 {
		t.Fatalf("goal = %+v", goal)
	}
	goalPath := f.budgetPath("/goals/" + strconv.FormatInt(goal.ID, 10))

	f.decode(f.do(http.MethodPost, goalPath+"/contribute", `{"amount":2500}`), http.StatusOK, &goal)
	if goal.Current.Cents != 2500 {
		t.Errorf("after contribution current = %d, want 2500", goal.Current.Cents)
	}
	if rr := f.do(http.MethodPost, goalPath+"/contribute", `{"amount":-5000}`); rr.Code != http.StatusBadRequest {
		t.Errorf("overdrawn withdrawal status = %d, want 400", rr.Code)
	}

	f.decode(f.do(http.MethodPut, goalPath, `{"name":"Summer","target_amount":200000,"current_amount":2500}`), http.StatusOK, &goal)
	if goal.Name != "Summer" || goal.Target.Cents != 200000 {
		t.Errorf("updated goal = %+v", goal)
	}

	for _, body := range []string{`{"name":"","target_amount":100}`, `{"name":"Car","target_amount":0}`, `{"name":"Car","target_amount":100,"current_amount":-1}`} {
		if rr := f.do(http.MethodPost, f.budgetPath("/goals"), body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", body, rr.Code)
		}
	}

	var goals []core.SavingGoal
	f.decode(f.do(http.MethodGet, f.budgetPath("/goals"), ""), http.StatusOK, &goals)
	if len(goals) != 1 || goals[0].ID != goal.ID {
		t.Errorf("goals = %+v", goals)
	}

	f.decode(f.do(http.MethodDelete, goalPath, ""), http.StatusOK, nil)
	if rr := f.do(http.MethodDelete, goalPath, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestBudgetLifecycle(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	f.seed()

	var budgets []core.Budget
	f.decode(f.do(http.MethodGet, "/api/budgets", ""), http.StatusOK, &budgets)
	if len(budgets) != 1 {
		t.Fatalf("budgets = %d", len(budgets))
	}

	f.decode(f.do(http.MethodDelete, f.budgetPath(""), ""), http.StatusOK, nil)
	if rr := f.do(http.MethodGet, f.budgetPath(""), ""); rr.Code != http.StatusNotFound {
		t.Errorf("deleted budget status = %d", rr.Code)
	}
	if rr := f.do(http.MethodGet, f.budgetPath("/accounts"), ""); rr.Code != http.StatusNotFound {
		t.Errorf("deleted budget accounts status = %d", rr.Code)
	}

	if rr := f.do(http.MethodPost, "/api/budgets", `{"name":"   "}`); rr.Code != http.StatusBadRequest {
		t.Errorf("blank name status = %d", rr.Code)
	}
}

func TestRecalculateRepairsDrift(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	account, food, _ := f.seed()
	f.decode(f.do(http.MethodPost, f.budgetPath("/transactions"),
		txBody(account.ID, "expense", lineJSON(food.ID, -250))), http.StatusCreated, nil)

	ctx := context.Background()
	if err := f.store.WithTx(ctx, "corrupt", func(tx *storage.Tx) error {
		return tx.SetAccountBalance(ctx, account.ID, core.Cents(999))
	}); err != nil {
		t.Fatal(err)
	}

	var report struct {
		Accounts []core.BalanceDrift `json:"accounts"`
		Repaired bool                `json:"repaired"`
	}
	f.decode(f.do(http.MethodPost, "/api/admin/recalculate", ""), http.StatusOK, &report)
	if len(report.Accounts) != 1 || !report.Repaired {
		t.Fatalf("report = %+v", report)
	}

	acc, err := f.store.GetAccount(ctx, f.budget.ID, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if acc.Balance.Cents != -250 {
		t.Errorf("balance = %d, want -250", acc.Balance.Cents)
	}
}

func TestAuthScopesBudgets(t *testing.T) {
	secret := strings.Repeat("s", 32)
	f := newAPIFixture(t, Dependencies{JWTSecret: secret})
	auth := NewAuthenticator(secret)

	if rr := f.do(http.MethodGet, "/api/budgets", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rr.Code)
	}
	if rr := f.do(http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Errorf("health requires no token, got %d", rr.Code)
	}

	alice, err := auth.IssueToken(7, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	bob, err := auth.IssueToken(8, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	f.token = alice
	f.seed()
	if f.budget.UserID != 7 {
		t.Errorf("budget owner = %d, want 7", f.budget.UserID)
	}

	f.token = bob
	if rr := f.do(http.MethodGet, f.budgetPath(""), ""); rr.Code != http.StatusNotFound {
		t.Errorf("other user's budget status = %d, want 404", rr.Code)
	}
	var budgets []core.Budget
	f.decode(f.do(http.MethodGet, "/api/budgets", ""), http.StatusOK, &budgets)
	if len(budgets) != 0 {
		t.Errorf("bob sees %d budgets", len(budgets))
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	limited := newAPIFixture(t, Dependencies{RateLimit: ratelimit.Config{RequestsPerWindow: 2, Window: time.Minute}})
	for i := 0; i < 2; i++ {
		if rr := limited.do(http.MethodPost, "/api/budgets", `{"name":"b`+strconv.Itoa(i)+`"}`); rr.Code != http.StatusCreated {
			t.Fatalf("request %d status = %d", i, rr.Code)
		}
	}
	rr := limited.do(http.MethodPost, "/api/budgets", `{"name":"b3"}`)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Errorf("third write status = %d, Retry-After %q", rr.Code, rr.Header().Get("Retry-After"))
	}
	if rr := limited.do(http.MethodGet, "/api/budgets", ""); rr.Code != http.StatusOK {
		t.Errorf("reads are not limited, got %d", rr.Code)
	}
}

func TestSecurityHeadersAndDetection(t *testing.T) {
	f := newAPIFixture(t, Dependencies{})
	rr := f.do(http.MethodGet, "/api/budgets", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("headers = %v", rr.Header())
	}

	rr = f.do(http.MethodGet, "/api/budgets?q=1+union+select+password", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("suspicious query status = %d, want 400", rr.Code)
	}
}
