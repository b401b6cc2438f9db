package http

import (
	"net/http"
)

func (s *Server) registerReportRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/budgets/{id}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/budgets/{id}/monthly", s.handleMonthly)
	mux.HandleFunc("GET /api/budgets/{id}/totals/categories", s.handleCategoryTotals)
	mux.HandleFunc("GET /api/budgets/{id}/totals/tags", s.handleTagTotals)
	mux.HandleFunc("GET /api/budgets/{id}/dashboard", s.handleDashboard)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	const op = "summary"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	month, err := parseMonthParam(r.URL.Query(), "month")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	summary, err := s.reports.Summary(r.Context(), b.ID, month)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	const op = "monthly series"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	params, err := ParseSeriesParams(r.URL.Query())
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	series, err := s.reports.MonthlySeries(r.Context(), b.ID, params.Start, params.Months)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthDTOs(series))
}

func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, "category totals", err)
		return
	}
	totals, err := s.reports.CategoryTotals(r.Context(), b.ID)
	if err != nil {
		writeError(w, r, "category totals", err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryTotalDTOs(totals))
}

func (s *Server) handleTagTotals(w http.ResponseWriter, r *http.Request) {
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, "tag totals", err)
		return
	}
	totals, err := s.reports.TagTotals(r.Context(), b.ID)
	if err != nil {
		writeError(w, r, "tag totals", err)
		return
	}
	writeJSON(w, http.StatusOK, toTagTotalDTOs(totals))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "dashboard"
	b, err := s.budgetFor(r)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	month, err := parseMonthParam(r.URL.Query(), "month")
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	d, err := s.reports.Dashboard(r.Context(), b.ID, month)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d))
}
