package database

import (
	"context"
	"embed"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies every ordered SQL migration file that is not yet
// recorded in the ledger, then normalizes any legacy uppercase status
// values left behind by an older schema. Each migration's statements and
// its ledger insert commit as one transaction: a failure partway through
// a file leaves neither the schema change nor the ledger row behind.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			name VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		name := strings.TrimSuffix(file, filepath.Ext(file))

		var count int
		if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM migrations WHERE name = $1", name).Scan(&count); err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		if err := applyMigration(ctx, pool, name, string(content)); err != nil {
			return err
		}
		log.Printf("applied migration %s", name)
	}

	return normalizeStatuses(ctx, pool)
}

// applyMigration runs one migration file's statements and records it in
// the ledger inside a single transaction.
func applyMigration(ctx context.Context, pool *pgxpool.Pool, name, sql string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", name, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to run migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO migrations (name) VALUES ($1)", name); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", name, err)
	}
	return nil
}

// normalizeStatuses repairs legacy uppercase status values. Idempotent:
// running it twice touches zero rows the second time.
func normalizeStatuses(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `UPDATE queue_tasks SET status = lower(status) WHERE status <> lower(status)`); err != nil {
		return fmt.Errorf("failed to normalize task statuses: %w", err)
	}
	if _, err := pool.Exec(ctx, `UPDATE queue_items SET status = lower(status) WHERE status <> lower(status)`); err != nil {
		return fmt.Errorf("failed to normalize item statuses: %w", err)
	}
	return nil
}
