// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data: JSON bodies, path identifiers and report query parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mybudget/internal/core"
)

const maxBodyBytes = 1 << 20

const (
	maxSeriesMonths = 120
	maxUpcomingDays = 366
)

// decodeJSON reads a single JSON object into v. Unknown fields are
// rejected so typos in amounts or ids do not pass silently.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	const op = "decode request"
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.Invalid(op, "request body is empty")
		case errors.As(err, &maxErr):
			return core.Invalid(op, "request body exceeds %d bytes", maxErr.Limit)
		default:
			return core.Invalid(op, "malformed JSON: %s", err.Error())
		}
	}
	if dec.More() {
		return core.Invalid(op, "request body must contain a single JSON object")
	}
	return nil
}

// readBody reads the raw body for handlers that need it twice.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, core.Invalid("read request", "request body exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}

// unmarshalStrict is decodeJSON over an already read body.
func unmarshalStrict(body []byte, v any) error {
	const op = "decode request"
	if len(strings.TrimSpace(string(body))) == 0 {
		return core.Invalid(op, "request body is empty")
	}
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.Invalid(op, "malformed JSON: %s", err.Error())
	}
	return nil
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid("parse path", "%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

// parseMonthParam reads an optional YYYY-MM query parameter.
func parseMonthParam(query url.Values, name string) (*core.Month, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return nil, nil
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return nil, core.Invalid("parse query", "%s", err.Error())
	}
	return &m, nil
}

// SeriesParams holds the monthly series window.
type SeriesParams struct {
	Start  core.Month
	Months int
}

// ParseSeriesParams reads start (YYYY-MM) and months. Missing values fall
// back to the service defaults.
func ParseSeriesParams(query url.Values) (SeriesParams, error) {
	var p SeriesParams
	start, err := parseMonthParam(query, "start")
	if err != nil {
		return p, err
	}
	if start != nil {
		p.Start = *start
	}
	if v := strings.TrimSpace(query.Get("months")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSeriesMonths {
			return p, core.Invalid("parse query", "months must be between 1 and %d", maxSeriesMonths)
		}
		p.Months = n
	}
	return p, nil
}

// UpcomingParams holds the look-ahead window of the upcoming payments list.
type UpcomingParams struct {
	From core.Date
	Days int
}

// ParseUpcomingParams reads from (YYYY-MM-DD) and days. Missing values
// fall back to today and the service default.
func ParseUpcomingParams(query url.Values) (UpcomingParams, error) {
	var p UpcomingParams
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return p, core.Invalid("parse query", "%s", err.Error())
		}
		p.From = d
	}
	if v := strings.TrimSpace(query.Get("days")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxUpcomingDays {
			return p, core.Invalid("parse query", "days must be between 1 and %d", maxUpcomingDays)
		}
		p.Days = n
	}
	return p, nil
}

// parseTypeParam reads an optional transaction type filter.
func parseTypeParam(query url.Values) (core.TransactionType, error) {
	v := core.TransactionType(strings.ToLower(strings.TrimSpace(query.Get("type"))))
	if v == "" {
		return "", nil
	}
	if !v.IsValid() {
		return "", core.Invalid("parse query", "type must be one of income, expense, transfer")
	}
	return v, nil
}

// sanitizeInput removes control characters except tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func idString(id int64) string {
	return fmt.Sprintf("%d", id)
}
