package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

const (
	MaxCategoryLength    = 100
	MaxDescriptionLength = 255
)

type (
	// Kind classifies a transaction as income or expense.
	Kind string

	Date struct {
		time.Time
	}

	// Transaction is a single income or expense record owned by one user.
	Transaction struct {
		ID          int64
		Owner       string
		Date        Date
		Kind        Kind
		Category    string
		Description string
		Amount      decimal.Decimal
		CreatedAt   time.Time
	}

	// Fields holds the editable part of a transaction. Create and update
	// both take a full set of fields.
	Fields struct {
		Date        Date
		Kind        Kind
		Category    string
		Description string
		Amount      decimal.Decimal
	}

	// RawFields carries unparsed user input, as submitted by a form or JSON body.
	RawFields struct {
		Date        string
		Type        string
		Category    string
		Description string
		Amount      string
	}
)

var (
	ErrNotFound      = errors.New("transaction not found")
	ErrEmptyOwner    = errors.New("owner is required")
	ErrInvalidDate   = errors.New("enter a valid date")
	ErrInvalidKind   = errors.New("select a valid type (income or expense)")
	ErrEmptyCategory = errors.New("category is required")
)

// ValidationError reports every invalid field of a submission at once.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid transaction: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field string, err error) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = err.Error()
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Valid reports whether k is one of the two defined kinds.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// MonthKey returns the "YYYY-MM" month the date falls in.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Normalize trims the free-text fields.
func (f Fields) Normalize() Fields {
	f.Category = strings.TrimSpace(f.Category)
	f.Description = strings.TrimSpace(f.Description)
	return f
}

// Validate checks every field and returns a *ValidationError listing all
// problems, or nil.
func (f Fields) Validate() error {
	verr := &ValidationError{}
	if err := f.Date.Validate(); err != nil {
		verr.add("date", err)
	}
	if !f.Kind.Valid() {
		verr.add("type", ErrInvalidKind)
	}
	if err := validateCategory(f.Category); err != nil {
		verr.add("category", err)
	}
	if n := utf8.RuneCountInString(f.Description); n > MaxDescriptionLength {
		verr.add("description", fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength))
	}
	if err := ValidateAmount(f.Amount); err != nil {
		verr.add("amount", err)
	}
	return verr.orNil()
}

func validateCategory(c string) error {
	if strings.TrimSpace(c) == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(c) > MaxCategoryLength {
		return fmt.Errorf("category too long (max %d characters)", MaxCategoryLength)
	}
	return nil
}

// ParseFields converts raw input into normalized, validated Fields. Parse
// failures and validation failures are reported together.
func ParseFields(raw RawFields) (Fields, error) {
	verr := &ValidationError{}
	f := Fields{
		Kind:        Kind(strings.TrimSpace(raw.Type)),
		Category:    raw.Category,
		Description: raw.Description,
	}
	if d, err := ParseDate(raw.Date); err != nil {
		verr.add("date", err)
	} else {
		f.Date = d
	}
	if a, err := ParseAmount(raw.Amount); err != nil {
		verr.add("amount", err)
	} else {
		f.Amount = a
	}

	f = f.Normalize()
	if err := f.Validate(); err != nil {
		var fieldErrs *ValidationError
		if errors.As(err, &fieldErrs) {
			for field, msg := range fieldErrs.Fields {
				verr.add(field, errors.New(msg))
			}
		}
	}
	if err := verr.orNil(); err != nil {
		return Fields{}, err
	}
	return f, nil
}

// Apply replaces every editable field of t with f.
func (t Transaction) Apply(f Fields) Transaction {
	t.Date = f.Date
	t.Kind = f.Kind
	t.Category = f.Category
	t.Description = f.Description
	t.Amount = f.Amount
	return t
}
