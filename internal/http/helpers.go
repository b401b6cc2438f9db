package http

import (
	"github.com/shopspring/decimal"

	"mybudget/internal/core"
)

// Report payloads carry display units. Entities keep minor units.

type summaryDTO struct {
	BudgetID int64           `json:"budget_id"`
	Month    *core.Month     `json:"month,omitempty"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
	Net      decimal.Decimal `json:"net"`
}

type monthDTO struct {
	Month   core.Month      `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

type categoryTotalDTO struct {
	CategoryID int64             `json:"category_id"`
	Name       string            `json:"name"`
	Type       core.CategoryType `json:"type"`
	Total      decimal.Decimal   `json:"total"`
}

type tagTotalDTO struct {
	TagID int64           `json:"tag_id"`
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
}

type categoryStatsDTO struct {
	CategoryID int64           `json:"category_id"`
	LineCount  int64           `json:"line_count"`
	Total      decimal.Decimal `json:"total"`
}

type upcomingDTO struct {
	TransactionID int64                `json:"transaction_id"`
	Notes         string               `json:"notes"`
	Type          core.TransactionType `json:"type"`
	Frequency     core.Frequency       `json:"frequency"`
	DueDate       core.Date            `json:"due_date"`
	Amount        decimal.Decimal      `json:"amount"`
}

type dashboardDTO struct {
	Summary    summaryDTO         `json:"summary"`
	Monthly    []monthDTO         `json:"monthly"`
	Categories []categoryTotalDTO `json:"categories"`
}

func toSummaryDTO(s core.Summary) summaryDTO {
	return summaryDTO{
		BudgetID: s.BudgetID,
		Month:    s.Month,
		Income:   core.ToDisplay(s.Income),
		Expense:  core.ToDisplay(s.Expense),
		Net:      core.ToDisplay(s.Net),
	}
}

func toMonthDTOs(buckets []core.MonthBucket) []monthDTO {
	out := make([]monthDTO, len(buckets))
	for i, b := range buckets {
		out[i] = monthDTO{Month: b.Month, Income: core.ToDisplay(b.Income), Expense: core.ToDisplay(b.Expense)}
	}
	return out
}

func toCategoryTotalDTOs(totals []core.CategoryTotal) []categoryTotalDTO {
	out := make([]categoryTotalDTO, len(totals))
	for i, t := range totals {
		out[i] = categoryTotalDTO{CategoryID: t.CategoryID, Name: t.Name, Type: t.Type, Total: core.ToDisplay(t.Total.Decimal())}
	}
	return out
}

func toTagTotalDTOs(totals []core.TagTotal) []tagTotalDTO {
	out := make([]tagTotalDTO, len(totals))
	for i, t := range totals {
		out[i] = tagTotalDTO{TagID: t.TagID, Name: t.Name, Total: core.ToDisplay(t.Total.Decimal())}
	}
	return out
}

func toCategoryStatsDTO(s core.CategoryStats) categoryStatsDTO {
	return categoryStatsDTO{CategoryID: s.CategoryID, LineCount: s.LineCount, Total: core.ToDisplay(s.Total.Decimal())}
}

func toUpcomingDTOs(payments []core.UpcomingPayment) []upcomingDTO {
	out := make([]upcomingDTO, len(payments))
	for i, p := range payments {
		out[i] = upcomingDTO{
			TransactionID: p.TransactionID,
			Notes:         p.Notes,
			Type:          p.Type,
			Frequency:     p.Frequency,
			DueDate:       p.DueDate,
			Amount:        core.ToDisplay(p.Amount.Decimal()),
		}
	}
	return out
}

func toDashboardDTO(d core.Dashboard) dashboardDTO {
	return dashboardDTO{
		Summary:    toSummaryDTO(d.Summary),
		Monthly:    toMonthDTOs(d.Monthly),
		Categories: toCategoryTotalDTOs(d.Categories),
	}
}

// emptyIfNil keeps list responses as [] rather than null.
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
