package http

import (
	"net/http"

	"mybudget/internal/core"
)

func (s *Server) registerPlanningRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/budgets/{id}/upcoming", s.handleUpcoming)

	mux.HandleFunc("GET /api/budgets/{id}/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/budgets/{id}/goals", s.handleCreateGoal)
	mux.HandleFunc("PUT /api/budgets/{id}/goals/{goalID}", s.handleUpdateGoal)
	mux.HandleFunc("DELETE /api/budgets/{id}/goals/{goalID}", s.handleDeleteGoal)
	mux.HandleFunc("POST /api/budgets/{id}/goals/{goalID}/contribute", s.handleContributeGoal)
}

type contributeRequest struct {
	Amount core.Money `json:"amount"`
}

func decodeGoal(w http.ResponseWriter, r *http.Request, op string) (core.GoalRequest, error) {
	var req core.GoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	req.Name = sanitizeInput(req.Name)
	return req, req.Validate(op)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	const op = "upcoming payments"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	params, err := ParseUpcomingParams(r.URL.Query())
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	payments, err := s.reports.Upcoming(r.Context(), b.ID, params.From, params.Days)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toUpcomingDTOs(payments))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, "list goals", err)
		return
	}
	goals, err := s.store.ListGoals(r.Context(), b.ID)
	if err != nil {
		writeError(w, r, "list goals", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(goals))
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	const op = "create goal"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	req, err := decodeGoal(w, r, op)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	goal, err := s.store.CreateGoal(r.Context(), b.ID, req)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	const op = "update goal"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	goalID, err := pathID(r, "goalID")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	req, err := decodeGoal(w, r, op)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	goal, err := s.store.UpdateGoal(r.Context(), b.ID, goalID, req)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleContributeGoal(w http.ResponseWriter, r *http.Request) {
	const op = "contribute goal"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	goalID, err := pathID(r, "goalID")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	var req contributeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, op, err)
		return
	}
	if req.Amount.IsZero() {
		writeError(w, r, op, core.Invalid(op, "amount must be non-zero"))
		return
	}
	goal, err := s.store.ContributeGoal(r.Context(), b.ID, goalID, req.Amount)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	const op = "delete goal"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	goalID, err := pathID(r, "goalID")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	if err := s.store.DeleteGoal(r.Context(), b.ID, goalID); err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
