package http

import (
	"net/http"

	"mybudget/internal/core"
	"mybudget/internal/log"
)

func (s *Server) registerBudgetRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("GET /api/budgets/{id}", s.handleGetBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)
}

type nameRequest struct {
	Name string `json:"name"`
}

// budgetFor resolves the {id} path value to a live budget owned by the
// caller. Budgets of other users are reported as missing.
func (s *Server) budgetFor(r *http.Request) (core.Budget, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return core.Budget{}, err
	}
	b, err := s.store.GetBudget(r.Context(), id)
	if err != nil {
		return core.Budget{}, err
	}
	if s.auth.Enabled() && b.UserID != UserIDFromContext(r.Context()) {
		return core.Budget{}, core.NotFound("get budget", "budget %d not found", id)
	}
	return b, nil
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "create budget", err)
		return
	}
	name := sanitizeInput(req.Name)
	if err := core.ValidateName("create budget", name); err != nil {
		writeError(w, r, "create budget", err)
		return
	}
	b, err := s.store.CreateBudget(r.Context(), UserIDFromContext(r.Context()), name)
	if err != nil {
		writeError(w, r, "create budget", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Budget created", log.FieldBudgetID, b.ID)
	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/budgets/"+idString(b.ID)).
		Body(b).Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.store.ListBudgets(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, "list budgets", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(budgets))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, "get budget", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, "delete budget", err)
		return
	}
	if err := s.store.SoftDeleteBudget(r.Context(), b.ID); err != nil {
		writeError(w, r, "delete budget", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Budget deleted", log.FieldBudgetID, b.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
