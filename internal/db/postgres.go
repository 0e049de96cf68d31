package db

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func ConnectPostgres() *pgxpool.Pool {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatal(err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		log.Fatal(err)
	}

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal("Postgres connection failed:", err)
	}

	log.Println("✅ Connected to PostgreSQL")

	// Initialize schema
	if err := initSchema(db); err != nil {
		log.Fatal("Failed to initialize schema:", err)
	}

	return db
}

// initSchema creates or updates the database schema
func initSchema(db *pgxpool.Pool) error {
	ctx := context.Background()

	// -------------------------------
	// WINES
	// -------------------------------
	// The unique index on cache_key, not application logic, is what
	// keeps concurrent ingestion runs from inserting duplicate rows.
	winesTableSQL := `
		CREATE TABLE IF NOT EXISTS wines (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			vintage VARCHAR(10) NOT NULL DEFAULT '',
			producer VARCHAR(255) NOT NULL DEFAULT '',
			region VARCHAR(255) NOT NULL DEFAULT '',
			country VARCHAR(255) NOT NULL DEFAULT '',
			varietals VARCHAR(500) NOT NULL DEFAULT '',
			cache_key VARCHAR(600) NOT NULL,
			attributes JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.Exec(ctx, winesTableSQL); err != nil {
		return err
	}

	if _, err := db.Exec(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_wines_cache_key
		ON wines (cache_key)
	`); err != nil {
		return err
	}

	// search hits name most often
	if _, err := db.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_wines_name
		ON wines (name)
	`); err != nil {
		return err
	}

	log.Println("✅ Schema initialized successfully")
	return nil
}
