package storage

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// dbDate reads a DATE column (time.Time from PostgreSQL) or a TEXT column
// holding "YYYY-MM-DD" (SQLite).
type dbDate struct {
	core.Date
}

func (d *dbDate) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Date = core.NewDate(v.Year(), int(v.Month()), v.Day())
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("scan date: unsupported type %T", src)
}

func (d *dbDate) parse(s string) error {
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("scan date %q: %w", s, err)
	}
	d.Date = core.Date{Time: t}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateTime,
}

// dbTime reads a timestamp stored natively or as text.
type dbTime struct {
	time.Time
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("scan timestamp: unsupported type %T", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("scan timestamp %q: unrecognised format", s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const transactionColumns = "id, owner, date, kind, category, description, amount_cents, created_at"

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		date    dbDate
		created dbTime
		kind    string
		cents   int64
	)
	if err := row.Scan(&t.ID, &t.Owner, &date, &kind, &t.Category, &t.Description, &cents, &created); err != nil {
		return core.Transaction{}, err
	}
	t.Date = date.Date
	t.Kind = core.Kind(kind)
	t.Amount = core.FromCents(cents)
	t.CreatedAt = created.Time
	return t, nil
}
