package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Repository persists transactions in SQLite or PostgreSQL.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLiteRepository opens (creating if needed) the database file at
// dbPath and applies pending migrations.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	repo, err := open(DialectSQLite, dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers and avoids SQLITE_BUSY.
	repo.db.SetMaxOpenConns(1)
	return repo, nil
}

// NewPostgresRepository connects to dsn and applies pending migrations.
func NewPostgresRepository(dsn string) (*Repository, error) {
	return open(DialectPostgres, dsn)
}

func open(d Dialect, dsn string) (*Repository, error) {
	db, err := sql.Open(string(d), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: d}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Dialect() Dialect {
	return r.dialect
}

// Create inserts t and returns it with the assigned id.
func (r *Repository) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	// PostgreSQL keeps microseconds; match it so the returned value round-trips.
	t.CreatedAt = t.CreatedAt.UTC().Truncate(time.Microsecond)
	q := r.dialect.rebind(`INSERT INTO transactions
		(owner, date, kind, category, description, amount_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := r.db.QueryRowContext(ctx, q,
		t.Owner,
		t.Date.String(),
		string(t.Kind),
		t.Category,
		t.Description,
		core.ToCents(t.Amount),
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Scan(&t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved",
		"id", t.ID,
		"owner", t.Owner,
		"kind", t.Kind,
		"amount_cents", core.ToCents(t.Amount))
	return t, nil
}

// Get returns the transaction with id owned by owner, or core.ErrNotFound.
func (r *Repository) Get(ctx context.Context, owner string, id int64) (core.Transaction, error) {
	q := r.dialect.rebind(`SELECT ` + transactionColumns + ` FROM transactions WHERE id = ? AND owner = ?`)
	t, err := scanTransaction(r.db.QueryRowContext(ctx, q, id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// Update replaces the editable fields of an owned row. Owner and creation
// time are left untouched.
func (r *Repository) Update(ctx context.Context, owner string, id int64, f core.Fields) (core.Transaction, error) {
	q := r.dialect.rebind(`UPDATE transactions
		SET date = ?, kind = ?, category = ?, description = ?, amount_cents = ?
		WHERE id = ? AND owner = ?
		RETURNING ` + transactionColumns)
	t, err := scanTransaction(r.db.QueryRowContext(ctx, q,
		f.Date.String(),
		string(f.Kind),
		f.Category,
		f.Description,
		core.ToCents(f.Amount),
		id,
		owner,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}
	return t, nil
}

// Delete removes an owned row.
func (r *Repository) Delete(ctx context.Context, owner string, id int64) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`DELETE FROM transactions WHERE id = ? AND owner = ?`), id, owner)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// List returns every transaction of owner in the order given by sort.
func (r *Repository) List(ctx context.Context, owner string, sort core.SortKey) ([]core.Transaction, error) {
	q := r.dialect.rebind(`SELECT ` + transactionColumns + ` FROM transactions WHERE owner = ? ` + orderBy(sort))
	rows, err := r.db.QueryContext(ctx, q, owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// Summarize computes the dashboard for f inside one transaction so totals,
// breakdowns and month options reflect the same snapshot.
func (r *Repository) Summarize(ctx context.Context, f core.Filter) (core.DashboardSummary, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: r.dialect.readOnlyTx()})
	if err != nil {
		return core.DashboardSummary{}, fmt.Errorf("begin summary: %w", err)
	}
	defer tx.Rollback()

	s := core.NewSummary()
	where := "WHERE owner = ?"
	args := []any{f.Owner}
	if f.Month != nil {
		start, end := f.Month.Range()
		where += " AND date >= ? AND date < ?"
		args = append(args, start.String(), end.String())
		s.Month = f.Month.String()
	}

	if err := r.sumCategories(ctx, tx, where, args, &s); err != nil {
		return core.DashboardSummary{}, err
	}
	if s.MonthOptions, err = r.monthOptions(ctx, tx, f.Owner); err != nil {
		return core.DashboardSummary{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.DashboardSummary{}, fmt.Errorf("commit summary: %w", err)
	}
	return s, nil
}

// sumCategories fills per-category breakdowns and derives type totals and
// net from them.
func (r *Repository) sumCategories(ctx context.Context, tx *sql.Tx, where string, args []any, s *core.DashboardSummary) error {
	q := r.dialect.rebind(`SELECT kind, category, COALESCE(SUM(amount_cents), 0)
		FROM transactions ` + where + `
		GROUP BY kind, category`)
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, category string
			cents          int64
		)
		if err := rows.Scan(&kind, &category, &cents); err != nil {
			return fmt.Errorf("scan category sum: %w", err)
		}
		row := core.CategoryTotal{Category: category, Total: core.FromCents(cents)}
		switch core.Kind(kind) {
		case core.KindIncome:
			s.IncomeTotal = s.IncomeTotal.Add(row.Total)
			s.IncomeByCategory = append(s.IncomeByCategory, row)
		case core.KindExpense:
			s.ExpenseTotal = s.ExpenseTotal.Add(row.Total)
			s.ExpenseByCategory = append(s.ExpenseByCategory, row)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sum by category: %w", err)
	}

	core.SortBreakdown(s.IncomeByCategory)
	core.SortBreakdown(s.ExpenseByCategory)
	s.Net = s.IncomeTotal.Sub(s.ExpenseTotal)
	return nil
}

func (r *Repository) monthOptions(ctx context.Context, tx *sql.Tx, owner string) ([]string, error) {
	q := r.dialect.rebind(`SELECT DISTINCT ` + r.dialect.monthExpr() + ` AS month
		FROM transactions WHERE owner = ?
		ORDER BY month DESC`)
	rows, err := tx.QueryContext(ctx, q, owner)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	return out, nil
}
