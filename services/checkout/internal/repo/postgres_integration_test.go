//go:build integration

package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/services/checkout/internal/models"
	"github.com/Skotchmaster/storefront/services/checkout/internal/repo"
)

const migrationsTable = "checkout_schema_migrations"

func postgresRepo(t *testing.T) *repo.GormRepo {
	t.Helper()
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("checkout"),
		postgres.WithUsername("checkout"),
		postgres.WithPassword("checkout"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pg.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, pkgdb.Migrate(dsn, repo.Migrations, repo.MigrationsDir, migrationsTable))
	// a second run finds nothing to apply
	require.NoError(t, pkgdb.Migrate(dsn, repo.Migrations, repo.MigrationsDir, migrationsTable))

	db, err := pkgdb.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(db) })
	return &repo.GormRepo{DB: db}
}

func TestPostgres_MigratedSchema(t *testing.T) {
	r := postgresRepo(t)
	ctx := context.Background()

	customerID := uuid.New()
	q := &models.Quote{CustomerID: &customerID}
	require.NoError(t, r.CreateQuote(ctx, q))

	t.Run("one open quote per customer", func(t *testing.T) {
		err := r.CreateQuote(ctx, &models.Quote{CustomerID: &customerID})
		require.ErrorIs(t, err, repo.ErrDuplicate)
	})

	t.Run("items and totals round trip", func(t *testing.T) {
		p := &models.Product{Name: "Mug", SKU: "MUG-1", Price: decimal.RequireFromString("7.25"), Available: true}
		require.NoError(t, r.DB.WithContext(ctx).Create(p).Error)

		require.NoError(t, r.CreateQuoteItem(ctx, &models.QuoteItem{
			QuoteID: q.ID, ProductID: p.ID, ProductName: p.Name, SKU: p.SKU, Quantity: 3, UnitPrice: p.Price,
		}))
		q.Tax = decimal.RequireFromString("1.99")
		require.NoError(t, r.UpdateQuote(ctx, q))

		got, err := r.FindOpenQuoteByCustomer(ctx, customerID)
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.True(t, got.Subtotal().Equal(decimal.RequireFromString("21.75")))
		assert.True(t, got.Tax.Equal(decimal.RequireFromString("1.99")))
		assert.Equal(t, q.Version, got.Version)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		stale := *q
		require.NoError(t, r.UpdateQuote(ctx, q))
		require.ErrorIs(t, r.UpdateQuote(ctx, &stale), repo.ErrConflict)
	})

	t.Run("closed quote frees the slot", func(t *testing.T) {
		require.NoError(t, r.CloseQuote(ctx, q))
		require.NoError(t, r.CreateQuote(ctx, &models.Quote{CustomerID: &customerID}))
	})
}
