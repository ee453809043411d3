package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/google/logger"
	_ "github.com/lib/pq"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"cocktail-voucher/internal/config"
)

// Open connects to the store behind driver and verifies the connection.
func Open(ctx context.Context, driver, dsn, authToken string) (*sql.DB, error) {
	if driver == config.DriverLibSQL && authToken != "" {
		var err error
		dsn, err = withAuthToken(dsn, authToken)
		if err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}

	if driver == config.DriverSQLite {
		// One connection keeps ":memory:" databases shared and writes serialized.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}

	return conn, nil
}

func withAuthToken(dsn, token string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	q := u.Query()
	q.Set("authToken", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// schema is executed statement by statement; not every driver accepts batches.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS spacebar_registration (
		phone_number TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cocktail_total (
		drink_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		alcoholic INTEGER NOT NULL DEFAULT 0,
		quantity INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS drinks (
		phone_number TEXT PRIMARY KEY,
		alcoholic BOOLEAN NOT NULL DEFAULT FALSE,
		cocktail_id INTEGER REFERENCES cocktail_total(drink_id),
		first_drink_claimed BOOLEAN NOT NULL DEFAULT FALSE,
		second_drink_claimed BOOLEAN NOT NULL DEFAULT FALSE,
		third_drink_claimed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cocktail_total_alcoholic ON cocktail_total(alcoholic)`,
}

// CreateTables creates the registration, catalog and drinks tables.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateTables(ctx context.Context, conn *sql.DB) error {
	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			logger.Errorf("Error creating tables: %v", err)
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
