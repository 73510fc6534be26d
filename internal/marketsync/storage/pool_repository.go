package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gomarketfeed_api/internal/marketsync/business/services/pool"
	"gomarketfeed_api/pkg/logger"
)

// PoolRepository -- postgres-хранилище пула идентификаторов.
type PoolRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewPoolRepository(db *sql.DB, log logger.Logger) *PoolRepository {
	return &PoolRepository{db: db, log: log}
}

func (r *PoolRepository) IdentifierByProduct(ctx context.Context, productID int) (int64, bool, error) {
	var value int64
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM marketsync.identifier_pool WHERE product_id = $1",
		productID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("selecting pool binding: %w", err)
	}
	return value, true, nil
}

// ClaimNext атомарно забирает наименьшую свободную запись пула.
// FOR UPDATE SKIP LOCKED исключает выдачу одной записи двум конкурентным
// вызовам: проигравший просто берёт следующую свободную.
func (r *PoolRepository) ClaimNext(ctx context.Context, productID int) (int64, error) {
	var value int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE marketsync.identifier_pool
         SET consumed = TRUE, product_id = $1, consumed_at = current_timestamp
         WHERE value = (
             SELECT value FROM marketsync.identifier_pool
             WHERE consumed = FALSE
             ORDER BY value
             LIMIT 1
             FOR UPDATE SKIP LOCKED
         )
         RETURNING value`,
		productID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, pool.ErrPoolExhausted
	}
	if err != nil {
		return 0, fmt.Errorf("claiming pool record: %w", err)
	}
	return value, nil
}

// SeedRange добавляет в пул диапазон значений [from, to]. Уже существующие
// значения пропускаются; используется при первичной загрузке купленных
// диапазонов идентификаторов.
func (r *PoolRepository) SeedRange(ctx context.Context, from, to int64) (int64, error) {
	if from > to {
		return 0, fmt.Errorf("invalid range: %d > %d", from, to)
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO marketsync.identifier_pool (value)
         SELECT generate_series($1::bigint, $2::bigint)
         ON CONFLICT (value) DO NOTHING`,
		from, to)
	if err != nil {
		return 0, fmt.Errorf("seeding pool range: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	r.log.Log("seeded %d pool identifiers in range [%d, %d]", inserted, from, to)
	return inserted, nil
}

// FreeCount -- сколько идентификаторов ещё не потреблено.
func (r *PoolRepository) FreeCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM marketsync.identifier_pool WHERE consumed = FALSE").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting free pool records: %w", err)
	}
	return count, nil
}
