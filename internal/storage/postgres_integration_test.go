//go:build integration
// +build integration

package storage

import (
	"context"
	"testing"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("fintrack"),
		postgres.WithUsername("fintrack"),
		postgres.WithPassword("fintrack"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := NewPostgresRepository(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestPostgresRepositoryRoundTrip(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	mk := func(owner string, kind core.Kind, category, amount string, y, m, d int) core.Transaction {
		created, err := repo.Create(ctx, core.Transaction{
			Owner:    owner,
			Date:     core.NewDate(y, m, d),
			Kind:     kind,
			Category: category,
			Amount:   decimal.RequireFromString(amount),
		})
		require.NoError(t, err)
		return created
	}

	salary := mk("alice", core.KindIncome, "Salary", "1000.00", 2024, 1, 5)
	mk("alice", core.KindExpense, "Rent", "500.00", 2024, 1, 1)
	mk("alice", core.KindExpense, "Food", "50.00", 2024, 2, 10)
	mk("bob", core.KindExpense, "Food", "3.00", 2024, 1, 2)

	got, err := repo.Get(ctx, "alice", salary.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", got.Date.String())
	assert.Equal(t, "1000.00", core.FormatAmount(got.Amount))

	_, err = repo.Get(ctx, "bob", salary.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := repo.List(ctx, "alice", core.SortAmountDesc)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, salary.ID, list[0].ID)

	month, _ := core.ParseMonth("2024-01")
	s, err := repo.Summarize(ctx, core.Filter{Owner: "alice", Month: &month})
	require.NoError(t, err)
	assert.Equal(t, "1000.00", core.FormatAmount(s.IncomeTotal))
	assert.Equal(t, "500.00", core.FormatAmount(s.ExpenseTotal))
	assert.Equal(t, "500.00", core.FormatAmount(s.Net))
	assert.Equal(t, []string{"2024-02", "2024-01"}, s.MonthOptions)

	updated, err := repo.Update(ctx, "alice", salary.ID, core.Fields{
		Date:     core.NewDate(2024, 2, 1),
		Kind:     core.KindIncome,
		Category: "Bonus",
		Amount:   decimal.RequireFromString("250.25"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Bonus", updated.Category)
	assert.True(t, salary.CreatedAt.Equal(updated.CreatedAt))

	require.NoError(t, repo.Delete(ctx, "alice", salary.ID))
	assert.ErrorIs(t, repo.Delete(ctx, "alice", salary.ID), core.ErrNotFound)
	require.NoError(t, repo.Ping(ctx))
}
