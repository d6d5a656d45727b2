// Package pgtest opens the integration database named by TEST_POSTGRES_DSN.
package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-orders/internal/postgres"
)

// DB skips the test when no database is configured.
func DB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.Connect(ctx, dsn, postgres.Options{LockTimeout: 2 * time.Second})
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(ctx, db))
	t.Cleanup(db.Close)
	return db
}

// Product inserts a product and returns its id. basePrice may be empty.
func Product(t *testing.T, db *pgxpool.Pool, basePrice string, tracked bool) string {
	t.Helper()
	id := uuid.NewString()
	var price *string
	if basePrice != "" {
		price = &basePrice
	}
	_, err := db.Exec(context.Background(),
		`INSERT INTO products(id, name, base_price, tracks_inventory) VALUES ($1, $2, $3, $4)`,
		id, "test-"+id[:8], price, tracked)
	require.NoError(t, err)
	return id
}

func DrinkVariant(t *testing.T, db *pgxpool.Pool, productID string, hot bool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(context.Background(),
		`INSERT INTO drink_variants(id, product_id, is_hot) VALUES ($1, $2, $3)`, id, productID, hot)
	require.NoError(t, err)
	return id
}
