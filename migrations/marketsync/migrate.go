package marketsync

import (
	"database/sql"
	"fmt"
	"log"
)

const (
	MigrationsSchemaMigration = "migrations.schema"
	MarketsyncSchemaMigration = "marketsync.schema"
	IdentifierPoolMigration   = "marketsync.identifier_pool"
	BatchesMigration          = "marketsync.batches"
	ChunksMigration           = "marketsync.chunks"
	SnapshotsMigration        = "marketsync.snapshots"
	UnmappedMigration         = "marketsync.unmapped"
	SpecCacheMigration        = "marketsync.spec_cache"
)

// MigrationsSchema создаёт схему и таблицу учёта миграций; применяется
// первой и не проверяет собственное наличие в учёте.
type MigrationsSchema struct{}

func (m *MigrationsSchema) UpMigration(db *sql.DB) error {
	query :=
		`
        CREATE SCHEMA IF NOT EXISTS migrations;

        CREATE TABLE IF NOT EXISTS migrations.migrations (
            name VARCHAR(255) PRIMARY KEY,
            time TIMESTAMP WITH TIME ZONE NOT NULL
        );
        `
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create migrations bookkeeping: %w", err)
	}
	log.Printf("Migration '%s' completed successfully.", MigrationsSchemaMigration)
	return nil
}

type MarketsyncSchema struct{}

func (m *MarketsyncSchema) UpMigration(db *sql.DB) error {
	applied, err := migrationApplied(db, MarketsyncSchemaMigration)
	if err != nil {
		return err
	}
	if applied {
		log.Printf("Migration '%s' already completed. Skipping.", MarketsyncSchemaMigration)
		return nil
	}

	query :=
		`
        CREATE SCHEMA IF NOT EXISTS marketsync;
        `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create marketsync schema: %w", err)
	}
	return markApplied(db, MarketsyncSchemaMigration)
}

type IdentifierPoolTable struct{}

func (m *IdentifierPoolTable) UpMigration(db *sql.DB) error {
	applied, err := migrationApplied(db, IdentifierPoolMigration)
	if err != nil {
		return err
	}
	if applied {
		log.Printf("Migration '%s' already completed. Skipping.", IdentifierPoolMigration)
		return nil
	}

	// Уникальный индекс по product_id -- опора идемпотентности пула:
	// из двух конкурентных привязок выживает ровно одна.
	query :=
		`
        CREATE TABLE IF NOT EXISTS marketsync.identifier_pool (
            value BIGINT PRIMARY KEY,
            consumed BOOLEAN NOT NULL DEFAULT FALSE,
            product_id INTEGER,
            consumed_at TIMESTAMP WITH TIME ZONE
        );

        CREATE UNIQUE INDEX IF NOT EXISTS identifier_pool_product_id_idx
        ON marketsync.identifier_pool(product_id)
        WHERE product_id IS NOT NULL;

        CREATE INDEX IF NOT EXISTS identifier_pool_free_idx
        ON marketsync.identifier_pool(value)
        WHERE consumed = FALSE;
        `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create marketsync.identifier_pool table: %w", err)
	}
	return markApplied(db, IdentifierPoolMigration)
}

type BatchesTable struct{}

func (m *BatchesTable) UpMigration(db *sql.DB) error {
	applied, err := migrationApplied(db, BatchesMigration)
	if err != nil {
		return err
	}
	if applied {
		log.Printf("Migration '%s' already completed. Skipping.", BatchesMigration)
		return nil
	}

	query :=
		`
        CREATE TABLE IF NOT EXISTS marketsync.batches (
            id UUID PRIMARY KEY,
            created_at TIMESTAMP WITH TIME ZONE NOT NULL
        );
        `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create marketsync.batches table: %w", err)
	}
	return markApplied(db, BatchesMigration)
}

type ChunksTable struct{}

func (m *ChunksTable) UpMigration(db *sql.DB) error {
	applied, err := migrationApplied(db, ChunksMigration)
	if err != nil {
		return err
	}
	if applied {
		log.Printf("Migration '%s' already completed. Skipping.", ChunksMigration)
		return nil
	}

	query :=
		`
        CREATE TABLE IF NOT EXISTS marketsync.chunks (
            id VARCHAR(64) PRIMARY KEY,
            batch_id UUID NOT NULL REFERENCES marketsync.batches(id) ON DELETE CASCADE,
            seq INTEGER NOT NULL,
            product_ids INTEGER[] NOT NULL,
            feed_id VARCHAR(128),
            submitted_at TIMESTAMP WITH TIME ZONE,
            status VARCHAR(16) NOT NULL DEFAULT 'PLANNED',
            CONSTRAINT unique_batch_seq UNIQUE(batch_id, seq)
        );

        CREATE INDEX IF NOT EXISTS chunks_batch_id_idx
        ON marketsync.chunks(batch_id);
        `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create marketsync.chunks table: %w", err)
	}
	return markApplied(db, ChunksMigration)
}

type SnapshotsTable struct{}

func (m *SnapshotsTable) UpMigration(db *sql.DB) error {
	applied, err := migrationApplied(db, SnapshotsMigration)
	if err != nil {
		return err
	}
	if applied {
		log.Printf("Migration '%s' already completed. Skipping.", SnapshotsMigration)
		return nil
	}

	// Один снапшот на чанк: новый опрос перезаписывает строку целиком,
	// слияние со старыми наблюдениями делается до записи.
	query :=
		`
        CREATE TABLE IF NOT EXISTS marketsync.snapshots (
            chunk_id VARCHAR(64) PRIMARY KEY REFERENCES marketsync.chunks(id) ON DELETE CASCADE,
            feed_id VARCHAR(128) NOT NULL,
            feed_status VARCHAR(32) NOT NULL,
            polled_at TIMESTAMP WITH TIME ZONE NOT NULL,
            items_received INTEGER NOT NULL,
            items_succeeded INTEGER NOT NULL,
            items_failed INTEGER NOT NULL,
            items_in_progress INTEGER NOT NULL,
            items JSONB NOT NULL,
            incomplete BOOLEAN NOT NULL DEFAULT FALSE
        );
        `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create marketsync.snapshots table: %w", err)
	}
	return markApplied(db, SnapshotsMigration)
}

type UnmappedTable struct{}

func (m *UnmappedTable) UpMigration(db *sql.DB) error {
	applied, err := migrationApplied(db, UnmappedMigration)
	if err != nil {
		return err
	}
	if applied {
		log.Printf("Migration '%s' already completed. Skipping.", UnmappedMigration)
		return nil
	}

	query :=
		`
        CREATE TABLE IF NOT EXISTS marketsync.unmapped (
            batch_id UUID NOT NULL REFERENCES marketsync.batches(id) ON DELETE CASCADE,
            product_id INTEGER NOT NULL,
            reason TEXT NOT NULL,
            CONSTRAINT unique_batch_product UNIQUE(batch_id, product_id)
        );
        `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create marketsync.unmapped table: %w", err)
	}
	return markApplied(db, UnmappedMigration)
}

type SpecCacheTable struct{}

func (m *SpecCacheTable) UpMigration(db *sql.DB) error {
	applied, err := migrationApplied(db, SpecCacheMigration)
	if err != nil {
		return err
	}
	if applied {
		log.Printf("Migration '%s' already completed. Skipping.", SpecCacheMigration)
		return nil
	}

	query :=
		`
        CREATE TABLE IF NOT EXISTS marketsync.spec_cache (
            category VARCHAR(255) NOT NULL,
            field VARCHAR(255) NOT NULL,
            type VARCHAR(32) NOT NULL,
            required_level VARCHAR(32) NOT NULL DEFAULT '',
            allowed_values TEXT[],
            fetched_at TIMESTAMP WITH TIME ZONE NOT NULL,
            CONSTRAINT unique_category_field UNIQUE(category, field)
        );
        `
	_, err = db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create marketsync.spec_cache table: %w", err)
	}
	return markApplied(db, SpecCacheMigration)
}

func migrationApplied(db *sql.DB, name string) (bool, error) {
	var migrationExists bool
	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", name).Scan(&migrationExists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return migrationExists, nil
}

func markApplied(db *sql.DB, name string) error {
	_, err := db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", name)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", name, err)
	}
	log.Printf("Migration '%s' completed successfully.", name)
	return nil
}
