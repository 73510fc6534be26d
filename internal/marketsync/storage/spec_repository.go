package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/pkg/logger"
)

// SpecRepository -- персистентная копия спецификаций категорий.
// Переживает рестарт сервиса и отдаёт последнюю известную схему, когда
// маркетплейс недоступен.
type SpecRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewSpecRepository(db *sql.DB, log logger.Logger) *SpecRepository {
	return &SpecRepository{db: db, log: log}
}

// SaveCategorySpecs перезаписывает сохранённую схему категории целиком:
// частичное обновление оставило бы в таблице поля, исчезнувшие из схемы.
func (r *SpecRepository) SaveCategorySpecs(ctx context.Context, category string, specs map[string]models.FieldSpec) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting spec transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM marketsync.spec_cache WHERE category = $1", category)
	if err != nil {
		return fmt.Errorf("clearing persisted specs for category %q: %w", category, err)
	}

	for _, spec := range specs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO marketsync.spec_cache
                 (category, field, type, required_level, allowed_values, fetched_at)
             VALUES ($1, $2, $3, $4, $5, current_timestamp)`,
			category, spec.Field, spec.Type, spec.Required, pq.Array(spec.AllowedValues))
		if err != nil {
			return fmt.Errorf("persisting spec for field %q: %w", spec.Field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing specs for category %q: %w", category, err)
	}
	r.log.Log("persisted %d field specs for category %q", len(specs), category)
	return nil
}

// LoadCategorySpecs возвращает nil, nil при отсутствии сохранённой копии.
func (r *SpecRepository) LoadCategorySpecs(ctx context.Context, category string) (map[string]models.FieldSpec, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT field, type, required_level, allowed_values
         FROM marketsync.spec_cache
         WHERE category = $1`,
		category)
	if err != nil {
		return nil, fmt.Errorf("loading persisted specs for category %q: %w", category, err)
	}
	defer rows.Close()

	specs := make(map[string]models.FieldSpec)
	for rows.Next() {
		spec := models.FieldSpec{Category: category}
		var allowed pq.StringArray
		if err := rows.Scan(&spec.Field, &spec.Type, &spec.Required, &allowed); err != nil {
			return nil, fmt.Errorf("scanning persisted spec: %w", err)
		}
		spec.AllowedValues = allowed
		specs[spec.Field] = spec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, nil
	}
	return specs, nil
}
