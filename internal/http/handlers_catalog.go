package http

import (
	"net/http"
	"strings"

	"mybudget/internal/core"
)

func (s *Server) registerCatalogRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/budgets/{id}/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/budgets/{id}/accounts", s.handleCreateAccount)
	mux.HandleFunc("PUT /api/budgets/{id}/accounts/{accountID}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/budgets/{id}/accounts/{accountID}", s.handleDeleteAccount)

	mux.HandleFunc("GET /api/budgets/{id}/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/budgets/{id}/categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /api/budgets/{id}/categories/{categoryID}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/budgets/{id}/categories/{categoryID}", s.handleDeleteCategory)
	mux.HandleFunc("GET /api/budgets/{id}/categories/{categoryID}/stats", s.handleCategoryStats)
	mux.HandleFunc("POST /api/budgets/{id}/categories/{categoryID}/reassign", s.handleReassignCategory)

	mux.HandleFunc("GET /api/budgets/{id}/tags", s.handleListTags)
	mux.HandleFunc("POST /api/budgets/{id}/tags", s.handleCreateTag)
}

type accountRequest struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

func (req accountRequest) normalize(op string) (name, typ string, err error) {
	name = sanitizeInput(req.Name)
	if err := core.ValidateName(op, name); err != nil {
		return "", "", err
	}
	typ = strings.ToLower(sanitizeInput(req.Type))
	if len(typ) > 50 {
		return "", "", core.Invalid(op, "type too long (max 50 characters)")
	}
	return name, typ, nil
}

type categoryRequest struct {
	Name string            `json:"name"`
	Type core.CategoryType `json:"type"`
}

func (req categoryRequest) normalize(op string) (string, core.CategoryType, error) {
	name := sanitizeInput(req.Name)
	if err := core.ValidateName(op, name); err != nil {
		return "", "", err
	}
	typ := core.CategoryType(strings.ToLower(string(req.Type)))
	if !typ.IsValid() {
		return "", "", core.Invalid(op, "type must be income or expense")
	}
	return name, typ, nil
}

type reassignRequest struct {
	ToCategoryID int64 `json:"to_category_id"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, "list accounts", err)
		return
	}
	accounts, err := s.store.ListAccounts(r.Context(), b.ID)
	if err != nil {
		writeError(w, r, "list accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(accounts))
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	const op = "create account"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, op, err)
		return
	}
	name, typ, err := req.normalize(op)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	acc, err := s.store.CreateAccount(r.Context(), b.ID, name, typ)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	const op = "update account"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	accountID, err := pathID(r, "accountID")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, op, err)
		return
	}
	name, typ, err := req.normalize(op)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	acc, err := s.store.UpdateAccount(r.Context(), b.ID, accountID, name, typ)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	const op = "delete account"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	accountID, err := pathID(r, "accountID")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	if err := s.store.DeleteAccount(r.Context(), b.ID, accountID); err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, "list categories", err)
		return
	}
	cats, err := s.store.ListCategories(r.Context(), b.ID)
	if err != nil {
		writeError(w, r, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(cats))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	const op = "create category"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, op, err)
		return
	}
	name, typ, err := req.normalize(op)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	cat, err := s.store.CreateCategory(r.Context(), b.ID, name, typ)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	const op = "update category"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, op, err)
		return
	}
	name, typ, err := req.normalize(op)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	cat, err := s.store.UpdateCategory(r.Context(), b.ID, categoryID, name, typ)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// handleDeleteCategory refuses while lines reference the category; the
// 409 body carries the line count.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	const op = "delete category"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	if err := s.store.DeleteCategory(r.Context(), b.ID, categoryID); err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	const op = "category stats"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	stats, err := s.reports.CategoryStats(r.Context(), b.ID, categoryID)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryStatsDTO(stats))
}

func (s *Server) handleReassignCategory(w http.ResponseWriter, r *http.Request) {
	const op = "reassign category"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	var req reassignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, op, err)
		return
	}
	if err := core.ValidateID(op, "to_category_id", req.ToCategoryID); err != nil {
		writeError(w, r, op, err)
		return
	}
	moved, err := s.writer.ReassignCategoryLines(r.Context(), b.ID, categoryID, req.ToCategoryID)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"reassigned": moved})
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, "list tags", err)
		return
	}
	tags, err := s.store.ListTags(r.Context(), b.ID)
	if err != nil {
		writeError(w, r, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(tags))
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	const op = "create tag"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, op, err)
		return
	}
	name := sanitizeInput(req.Name)
	if err := core.ValidateName(op, name); err != nil {
		writeError(w, r, op, err)
		return
	}
	tag, err := s.store.CreateTag(r.Context(), b.ID, name)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}
