package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Month is a calendar year+month used to restrict dashboard aggregation.
type Month struct {
	Year  int
	Month time.Month
}

// Filter selects the rows a dashboard aggregates over. A nil Month means
// the owner's full history.
type Filter struct {
	Owner string
	Month *Month
}

// CategoryTotal represents an amount aggregated by category name.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// DashboardSummary is the aggregated view of an owner's transactions.
type DashboardSummary struct {
	// Month is the effective "YYYY-MM" filter, empty when none applied.
	Month             string
	MonthOptions      []string
	IncomeTotal       decimal.Decimal
	ExpenseTotal      decimal.Decimal
	Net               decimal.Decimal
	IncomeByCategory  []CategoryTotal
	ExpenseByCategory []CategoryTotal
}

// ParseMonth parses a "YYYY-MM" string. Anything that is not exactly two
// dash-separated integers reports false; callers treat that as "no filter".
// Well-formed values outside the calendar ("2024-13") parse, but the
// resulting Month is not Valid and matches no transaction.
func ParseMonth(s string) (Month, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Month{}, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Month{}, false
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Month{}, false
	}
	return Month{Year: year, Month: time.Month(month)}, true
}

// Valid reports whether m names a real calendar month.
func (m Month) Valid() bool {
	return m.Year >= 1 && m.Year <= 9999 && m.Month >= time.January && m.Month <= time.December
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Range returns the half-open date range [first day, first day of next month).
// An invalid month yields an empty range.
func (m Month) Range() (start, end Date) {
	if !m.Valid() {
		return Date{}, Date{}
	}
	first := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
	return Date{Time: first}, Date{Time: first.AddDate(0, 1, 0)}
}

// Contains reports whether d falls within the month.
func (m Month) Contains(d Date) bool {
	return m.Valid() && d.Year() == m.Year && d.Month() == m.Month
}

// NewSummary returns a zero-state summary: zero totals and empty, non-nil lists.
func NewSummary() DashboardSummary {
	return DashboardSummary{
		MonthOptions:      []string{},
		IncomeTotal:       decimal.Zero,
		ExpenseTotal:      decimal.Zero,
		Net:               decimal.Zero,
		IncomeByCategory:  []CategoryTotal{},
		ExpenseByCategory: []CategoryTotal{},
	}
}

// Summarize aggregates an owner's full transaction history in memory. month
// may be nil. It is the reference behaviour the SQL stores reproduce.
func Summarize(all []Transaction, month *Month) DashboardSummary {
	s := NewSummary()
	if month != nil {
		s.Month = month.String()
	}

	dates := make([]Date, 0, len(all))
	income := map[string]decimal.Decimal{}
	expense := map[string]decimal.Decimal{}
	for _, t := range all {
		dates = append(dates, t.Date)
		if month != nil && !month.Contains(t.Date) {
			continue
		}
		switch t.Kind {
		case KindIncome:
			s.IncomeTotal = s.IncomeTotal.Add(t.Amount)
			income[t.Category] = sumOr(income, t.Category).Add(t.Amount)
		case KindExpense:
			s.ExpenseTotal = s.ExpenseTotal.Add(t.Amount)
			expense[t.Category] = sumOr(expense, t.Category).Add(t.Amount)
		}
	}
	s.Net = s.IncomeTotal.Sub(s.ExpenseTotal)
	s.IncomeByCategory = breakdown(income)
	s.ExpenseByCategory = breakdown(expense)
	s.MonthOptions = MonthOptions(dates)
	return s
}

func sumOr(m map[string]decimal.Decimal, k string) decimal.Decimal {
	if v, ok := m[k]; ok {
		return v
	}
	return decimal.Zero
}

func breakdown(totals map[string]decimal.Decimal) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(totals))
	for c, t := range totals {
		out = append(out, CategoryTotal{Category: c, Total: t})
	}
	SortBreakdown(out)
	return out
}

// SortBreakdown orders category totals by total descending, then by
// category name ascending.
func SortBreakdown(rows []CategoryTotal) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Total.Cmp(rows[j].Total); c != 0 {
			return c > 0
		}
		return rows[i].Category < rows[j].Category
	})
}

// MonthOptions returns the distinct "YYYY-MM" months of dates, most recent
// first.
func MonthOptions(dates []Date) []string {
	sorted := append([]Date(nil), dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].After(sorted[j].Time) })

	out := []string{}
	seen := map[string]struct{}{}
	for _, d := range sorted {
		key := d.MonthKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
