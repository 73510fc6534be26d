package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/pkg/logger"
)

// BatchRepository -- postgres-хранилище батчей, чанков и снапшотов статуса.
type BatchRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewBatchRepository(db *sql.DB, log logger.Logger) *BatchRepository {
	return &BatchRepository{db: db, log: log}
}

// CreateBatch пишет батч с чанками и корзиной unmapped одной транзакцией:
// полузаписанный батч хуже незаписанного.
func (r *BatchRepository) CreateBatch(ctx context.Context, batch *models.Batch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting batch transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO marketsync.batches (id, created_at) VALUES ($1, $2)",
		batch.ID, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting batch %s: %w", batch.ID, err)
	}

	for _, chunk := range batch.Chunks {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO marketsync.chunks (id, batch_id, seq, product_ids, status)
             VALUES ($1, $2, $3, $4, $5)`,
			chunk.ID, chunk.BatchID, chunk.Seq, pq.Array(chunk.ProductIDs), chunk.Status)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
		}
	}

	for _, unmapped := range batch.Unmapped {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO marketsync.unmapped (batch_id, product_id, reason) VALUES ($1, $2, $3)",
			batch.ID, unmapped.ProductID, unmapped.Reason)
		if err != nil {
			return fmt.Errorf("inserting unmapped product %d: %w", unmapped.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch %s: %w", batch.ID, err)
	}
	r.log.Log("persisted batch %s: %d chunks, %d unmapped", batch.ID, len(batch.Chunks), len(batch.Unmapped))
	return nil
}

// SetChunkFeedID привязывает чанк к фиду однократно. Повторный вызов с тем же
// feedId -- no-op; с другим -- ошибка: чанк уже живёт в другом фиде.
func (r *BatchRepository) SetChunkFeedID(ctx context.Context, chunkID, feedID string, submittedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE marketsync.chunks
         SET feed_id = $2, submitted_at = $3, status = $4
         WHERE id = $1 AND feed_id IS NULL`,
		chunkID, feedID, submittedAt, models.ChunkSubmitted)
	if err != nil {
		return fmt.Errorf("binding chunk %s to feed %s: %w", chunkID, feedID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var existing sql.NullString
	err = r.db.QueryRowContext(ctx,
		"SELECT feed_id FROM marketsync.chunks WHERE id = $1", chunkID).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("chunk %s does not exist", chunkID)
	}
	if err != nil {
		return fmt.Errorf("checking existing feed id of chunk %s: %w", chunkID, err)
	}
	if existing.Valid && existing.String == feedID {
		return nil
	}
	return fmt.Errorf("chunk %s is already bound to feed %s", chunkID, existing.String)
}

func (r *BatchRepository) UpdateChunkStatus(ctx context.Context, chunkID string, status models.ChunkStatus) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE marketsync.chunks SET status = $2 WHERE id = $1",
		chunkID, status)
	if err != nil {
		return fmt.Errorf("updating status of chunk %s: %w", chunkID, err)
	}
	return nil
}

func (r *BatchRepository) SaveSnapshot(ctx context.Context, chunkID string, snapshot *models.StatusSnapshot) error {
	items, err := json.Marshal(snapshot.Items)
	if err != nil {
		return fmt.Errorf("encoding snapshot items: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO marketsync.snapshots
             (chunk_id, feed_id, feed_status, polled_at,
              items_received, items_succeeded, items_failed, items_in_progress,
              items, incomplete)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
         ON CONFLICT (chunk_id) DO UPDATE SET
             feed_status = EXCLUDED.feed_status,
             polled_at = EXCLUDED.polled_at,
             items_received = EXCLUDED.items_received,
             items_succeeded = EXCLUDED.items_succeeded,
             items_failed = EXCLUDED.items_failed,
             items_in_progress = EXCLUDED.items_in_progress,
             items = EXCLUDED.items,
             incomplete = EXCLUDED.incomplete`,
		chunkID, snapshot.FeedID, snapshot.FeedStatus, snapshot.PolledAt,
		snapshot.ItemsReceived, snapshot.ItemsSucceeded, snapshot.ItemsFailed, snapshot.ItemsInProgress,
		items, snapshot.Incomplete)
	if err != nil {
		return fmt.Errorf("saving snapshot of chunk %s: %w", chunkID, err)
	}
	return nil
}

func (r *BatchRepository) ChunkByID(ctx context.Context, chunkID string) (*models.Chunk, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.batch_id, c.seq, c.product_ids, c.feed_id, c.submitted_at, c.status,
                s.feed_id, s.feed_status, s.polled_at,
                s.items_received, s.items_succeeded, s.items_failed, s.items_in_progress,
                s.items, s.incomplete
         FROM marketsync.chunks c
         LEFT JOIN marketsync.snapshots s ON s.chunk_id = c.id
         WHERE c.id = $1`,
		chunkID)

	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting chunk %s: %w", chunkID, err)
	}
	return chunk, nil
}

func (r *BatchRepository) BatchChunks(ctx context.Context, batchID string) ([]models.Chunk, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.batch_id, c.seq, c.product_ids, c.feed_id, c.submitted_at, c.status,
                s.feed_id, s.feed_status, s.polled_at,
                s.items_received, s.items_succeeded, s.items_failed, s.items_in_progress,
                s.items, s.incomplete
         FROM marketsync.chunks c
         LEFT JOIN marketsync.snapshots s ON s.chunk_id = c.id
         WHERE c.batch_id = $1
         ORDER BY c.seq`,
		batchID)
	if err != nil {
		return nil, fmt.Errorf("selecting chunks of batch %s: %w", batchID, err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk of batch %s: %w", batchID, err)
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

func (r *BatchRepository) BatchUnmapped(ctx context.Context, batchID string) ([]models.UnmappedProduct, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT product_id, reason FROM marketsync.unmapped WHERE batch_id = $1 ORDER BY product_id",
		batchID)
	if err != nil {
		return nil, fmt.Errorf("selecting unmapped products of batch %s: %w", batchID, err)
	}
	defer rows.Close()

	var unmapped []models.UnmappedProduct
	for rows.Next() {
		var product models.UnmappedProduct
		if err := rows.Scan(&product.ProductID, &product.Reason); err != nil {
			return nil, fmt.Errorf("scanning unmapped product: %w", err)
		}
		unmapped = append(unmapped, product)
	}
	return unmapped, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row rowScanner) (*models.Chunk, error) {
	var (
		chunk       models.Chunk
		productIDs  pq.Int64Array
		feedID      sql.NullString
		submittedAt sql.NullTime

		snapFeedID     sql.NullString
		snapFeedStatus sql.NullString
		snapPolledAt   sql.NullTime
		snapReceived   sql.NullInt64
		snapSucceeded  sql.NullInt64
		snapFailed     sql.NullInt64
		snapInProgress sql.NullInt64
		snapItems      []byte
		snapIncomplete sql.NullBool
	)

	err := row.Scan(
		&chunk.ID, &chunk.BatchID, &chunk.Seq, &productIDs, &feedID, &submittedAt, &chunk.Status,
		&snapFeedID, &snapFeedStatus, &snapPolledAt,
		&snapReceived, &snapSucceeded, &snapFailed, &snapInProgress,
		&snapItems, &snapIncomplete)
	if err != nil {
		return nil, err
	}

	chunk.ProductIDs = make([]int, 0, len(productIDs))
	for _, id := range productIDs {
		chunk.ProductIDs = append(chunk.ProductIDs, int(id))
	}
	if feedID.Valid {
		chunk.FeedID = feedID.String
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		chunk.SubmittedAt = &t
	}

	if snapFeedID.Valid {
		snapshot := &models.StatusSnapshot{
			FeedID:          snapFeedID.String,
			FeedStatus:      snapFeedStatus.String,
			PolledAt:        snapPolledAt.Time,
			ItemsReceived:   int(snapReceived.Int64),
			ItemsSucceeded:  int(snapSucceeded.Int64),
			ItemsFailed:     int(snapFailed.Int64),
			ItemsInProgress: int(snapInProgress.Int64),
			Incomplete:      snapIncomplete.Bool,
		}
		if len(snapItems) > 0 {
			if err := json.Unmarshal(snapItems, &snapshot.Items); err != nil {
				return nil, fmt.Errorf("decoding snapshot items: %w", err)
			}
		}
		chunk.Snapshot = snapshot
	}
	return &chunk, nil
}
