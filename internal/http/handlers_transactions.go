package http

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mybudget/internal/cache"
	"mybudget/internal/core"
	"mybudget/internal/log"
	"mybudget/internal/storage"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 128
	maxListLimit      = 1000
)

func (s *Server) registerTransactionRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/budgets/{id}/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/budgets/{id}/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/budgets/{id}/transactions/{txID}", s.handleGetTransaction)
	mux.HandleFunc("DELETE /api/budgets/{id}/transactions/{txID}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/budgets/{id}/transactions/{txID}/lines", s.handleAddLine)
	mux.HandleFunc("PUT /api/budgets/{id}/transactions/{txID}/lines/{lineID}", s.handleUpdateLine)
	mux.HandleFunc("DELETE /api/budgets/{id}/transactions/{txID}/lines/{lineID}", s.handleDeleteLine)
}

// createTransactionResponse returns the stored transaction and the
// account whose balance it moved.
type createTransactionResponse struct {
	Transaction core.Transaction `json:"transaction"`
	Account     *core.Account    `json:"account"`
}

// handleCreateTransaction writes a transaction atomically. With an
// Idempotency-Key header a repeated request gets the first response back
// instead of a second transaction.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	const op = "create transaction"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key == "" {
		resp, err := s.createTransaction(r, b.ID, body)
		if err != nil {
			writeError(w, r, op, err)
			return
		}
		writeRaw(w, resp.Status, nil, resp.Body)
		return
	}
	if len(key) > maxIdempotencyKey {
		writeError(w, r, op, core.Invalid(op, "%s longer than %d characters", idempotencyHeader, maxIdempotencyKey))
		return
	}

	sum := sha256.Sum256(body)
	scope := strconv.FormatInt(UserIDFromContext(r.Context()), 10) + ":" + idString(b.ID) + ":" + key
	resp, replayed, err := s.idempotency.Do(scope, hex.EncodeToString(sum[:]), func() (cache.Response, error) {
		return s.createTransaction(r, b.ID, body)
	})
	if errors.Is(err, cache.ErrKeyReused) {
		writeError(w, r, op, core.Conflict(op, idempotencyHeader+" was already used with a different request body"))
		return
	}
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	headers := map[string]string{}
	if replayed {
		headers[replayedHeader] = "true"
		log.FromContext(r.Context()).InfoContext(r.Context(), "Idempotent create replayed",
			log.FieldBudgetID, b.ID, "idempotency_key", key)
	}
	writeRaw(w, resp.Status, headers, resp.Body)
}

func (s *Server) createTransaction(r *http.Request, budgetID int64, body []byte) (cache.Response, error) {
	const op = "create transaction"
	var req core.TransactionRequest
	if err := unmarshalStrict(body, &req); err != nil {
		return cache.Response{}, err
	}
	if req.BudgetID != 0 && req.BudgetID != budgetID {
		return cache.Response{}, core.Invalid(op, "budget_id %d does not match the path", req.BudgetID)
	}
	req.BudgetID = budgetID
	req.Notes = sanitizeInput(req.Notes)

	created, err := s.writer.Create(r.Context(), req)
	if err != nil {
		return cache.Response{}, err
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).LogTransactionWritten(r.Context(), op,
		budgetID, created.ID, created.Amount.Cents, len(created.Lines))

	out := createTransactionResponse{Transaction: created}
	if created.AccountID != nil {
		acc, err := s.store.GetAccount(r.Context(), budgetID, *created.AccountID)
		if err != nil {
			return cache.Response{}, err
		}
		out.Account = &acc
	}

	payload, err := NewJSONResponse().Body(out).Bytes()
	if err != nil {
		return cache.Response{}, err
	}
	return cache.Response{Status: http.StatusCreated, Body: payload}, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	const op = "list transactions"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	query := r.URL.Query()
	filter := storage.TransactionFilter{BudgetID: b.ID}
	if filter.Type, err = parseTypeParam(query); err != nil {
		writeError(w, r, op, err)
		return
	}
	if filter.Month, err = parseMonthParam(query, "month"); err != nil {
		writeError(w, r, op, err)
		return
	}
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 1 || n > maxListLimit {
			writeError(w, r, op, core.Invalid(op, "limit must be between 1 and %d", maxListLimit))
			return
		}
		filter.Limit = n
	}

	txs, err := s.store.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(txs))
}

// transactionFor resolves {id} and {txID}.
func (s *Server) transactionFor(r *http.Request) (budgetID, transactionID int64, err error) {
	b, err := s.budgetFor(r)
	if err != nil {
		return 0, 0, err
	}
	transactionID, err = pathID(r, "txID")
	if err != nil {
		return 0, 0, err
	}
	return b.ID, transactionID, nil
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	budgetID, txID, err := s.transactionFor(r)
	if err != nil {
		writeError(w, r, "get transaction", err)
		return
	}
	tx, err := s.store.GetTransaction(r.Context(), budgetID, txID)
	if err != nil {
		writeError(w, r, "get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	budgetID, txID, err := s.transactionFor(r)
	if err != nil {
		writeError(w, r, "delete transaction", err)
		return
	}
	if err := s.writer.Delete(r.Context(), budgetID, txID); err != nil {
		writeError(w, r, "delete transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAddLine(w http.ResponseWriter, r *http.Request) {
	const op = "add line"
	budgetID, txID, err := s.transactionFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	var req core.LineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, op, err)
		return
	}
	req.Note = sanitizeInput(req.Note)
	line, err := s.writer.AddLine(r.Context(), budgetID, txID, req)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (s *Server) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	const op = "update line"
	budgetID, txID, err := s.transactionFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	lineID, err := pathID(r, "lineID")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	var upd core.LineUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, op, err)
		return
	}
	if upd.Note != nil {
		note := sanitizeInput(*upd.Note)
		upd.Note = &note
	}
	line, err := s.writer.UpdateLine(r.Context(), budgetID, txID, lineID, upd)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (s *Server) handleDeleteLine(w http.ResponseWriter, r *http.Request) {
	const op = "delete line"
	budgetID, txID, err := s.transactionFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	lineID, err := pathID(r, "lineID")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	if err := s.writer.DeleteLine(r.Context(), budgetID, txID, lineID); err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
