// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the wire
// representations of transactions and dashboard summaries.

package http

import (
	"encoding/json"
	"net/http"
	"time"

	"fintrack/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value to be encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response. A nil body writes only the status.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, core.ErrNotFound.Error())
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal server error")
}

func UnauthorizedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "unauthorized").
		Header("WWW-Authenticate", `Bearer realm="fintrack"`)
}

// ValidationErrorResponse creates a 422 listing every invalid field.
func ValidationErrorResponse(verr *core.ValidationError) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Body(errorBody{Error: "validation failed", Fields: verr.Fields})
}

type transactionJSON struct {
	ID          int64     `json:"id"`
	Date        string    `json:"date"`
	Type        core.Kind `json:"type"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

type listJSON struct {
	Transactions []transactionJSON `json:"transactions"`
	CurrentSort  core.SortKey      `json:"current_sort"`
}

type categoryTotalJSON struct {
	Category string `json:"category"`
	Total    string `json:"total"`
}

type summaryJSON struct {
	Month             string              `json:"month"`
	MonthOptions      []string            `json:"month_options"`
	IncomeTotal       string              `json:"income_total"`
	ExpenseTotal      string              `json:"expense_total"`
	Net               string              `json:"net"`
	IncomeByCategory  []categoryTotalJSON `json:"income_by_category"`
	ExpenseByCategory []categoryTotalJSON `json:"expense_by_category"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		Date:        t.Date.String(),
		Type:        t.Kind,
		Category:    t.Category,
		Description: t.Description,
		Amount:      core.FormatAmount(t.Amount),
		CreatedAt:   t.CreatedAt.UTC(),
	}
}

func toListJSON(items []core.Transaction, sort core.SortKey) listJSON {
	out := listJSON{Transactions: make([]transactionJSON, 0, len(items)), CurrentSort: sort}
	for _, t := range items {
		out.Transactions = append(out.Transactions, toTransactionJSON(t))
	}
	return out
}

func toCategoryJSON(rows []core.CategoryTotal) []categoryTotalJSON {
	out := make([]categoryTotalJSON, 0, len(rows))
	for _, r := range rows {
		out = append(out, categoryTotalJSON{Category: r.Category, Total: core.FormatAmount(r.Total)})
	}
	return out
}

func toSummaryJSON(s core.DashboardSummary) summaryJSON {
	options := s.MonthOptions
	if options == nil {
		options = []string{}
	}
	return summaryJSON{
		Month:             s.Month,
		MonthOptions:      options,
		IncomeTotal:       core.FormatAmount(s.IncomeTotal),
		ExpenseTotal:      core.FormatAmount(s.ExpenseTotal),
		Net:               core.FormatAmount(s.Net),
		IncomeByCategory:  toCategoryJSON(s.IncomeByCategory),
		ExpenseByCategory: toCategoryJSON(s.ExpenseByCategory),
	}
}
