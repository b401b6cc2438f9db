package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mybudget/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/budgets/1").
		Body(map[string]int{"budget_id": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d", w.Code)
	}
	if w.Header().Get("Location") != "/api/budgets/1" {
		t.Errorf("Location = %q", w.Header().Get("Location"))
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if strings.TrimSpace(w.Body.String()) != `{"budget_id":1}` {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilderEncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]any{"bad": make(chan int)}).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestErrorFrom(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		check      func(t *testing.T, body ErrorBody)
	}{
		{
			name:       "validation",
			err:        core.Invalid("create transaction", "a transaction needs at least one line"),
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation",
			check: func(t *testing.T, body ErrorBody) {
				if body.Detail != "a transaction needs at least one line" {
					t.Errorf("detail = %q", body.Detail)
				}
			},
		},
		{
			name:       "not found",
			err:        core.NotFound("get budget", "budget 9 not found"),
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
		{
			name:       "referential",
			err:        core.BadReference("create transaction", "category 9999 does not exist"),
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "referential",
		},
		{
			name:       "conflict with similar names",
			err:        core.Conflict("create category", "category already exists", "Food", "Foods"),
			wantStatus: http.StatusConflict,
			wantKind:   "conflict",
			check: func(t *testing.T, body ErrorBody) {
				if len(body.Similar) != 2 {
					t.Errorf("similar = %v", body.Similar)
				}
			},
		},
		{
			name:       "in use carries count",
			err:        core.InUse("delete category", "category is used by 3 transaction lines", 3),
			wantStatus: http.StatusConflict,
			wantKind:   "in_use",
			check: func(t *testing.T, body ErrorBody) {
				if body.Count != 3 {
					t.Errorf("count = %d, want 3", body.Count)
				}
			},
		},
		{
			name:       "retryable storage",
			err:        core.StorageFailure("create transaction", errors.New("database is locked"), true),
			wantStatus: http.StatusServiceUnavailable,
			wantKind:   "storage",
			check: func(t *testing.T, body ErrorBody) {
				if strings.Contains(body.Detail, "locked") {
					t.Errorf("driver error leaked: %q", body.Detail)
				}
			},
		},
		{
			name:       "storage",
			err:        core.StorageFailure("list accounts", errors.New("disk I/O error"), false),
			wantStatus: http.StatusInternalServerError,
			wantKind:   "storage",
			check: func(t *testing.T, body ErrorBody) {
				if body.Detail != "" {
					t.Errorf("detail = %q, want empty", body.Detail)
				}
			},
		},
		{
			name:       "unclassified",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   "storage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFrom(tt.err).Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body ErrorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tt.wantKind {
				t.Errorf("error = %q, want %q", body.Error, tt.wantKind)
			}
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestErrorFromRetryableSetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFrom(core.StorageFailure("op", errors.New("busy"), true)).Write(w)
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestUnauthorizedError(t *testing.T) {
	w := httptest.NewRecorder()
	UnauthorizedError("missing bearer token").Write(w)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer") {
		t.Errorf("WWW-Authenticate = %q", w.Header().Get("WWW-Authenticate"))
	}
}
