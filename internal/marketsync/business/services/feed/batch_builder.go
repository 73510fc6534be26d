package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gomarketfeed_api/config/values"
	"gomarketfeed_api/internal/marketsync/business/dto/request"
	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/internal/marketsync/business/services"
	"gomarketfeed_api/internal/marketsync/business/services/mapping"
	"gomarketfeed_api/internal/marketsync/business/services/pool"
	"gomarketfeed_api/metrics"
	"gomarketfeed_api/pkg/logger"
)

// BuiltChunk -- чанк вместе с готовыми payload'ами его товаров.
type BuiltChunk struct {
	Chunk models.Chunk
	Items []request.ItemPayload
}

// BuiltBatch -- результат сборки: батч для персистенции и чанки с payload'ами
// для отправки. Порядок чанков совпадает с Batch.Chunks.
type BuiltBatch struct {
	Batch  models.Batch
	Chunks []BuiltChunk
}

// BatchBuilder превращает список ID товаров в батч: маппит каждый товар,
// выдаёт идентификатор из пула и нарезает результат на чанки размером не
// больше лимита маркетплейса.
type BatchBuilder struct {
	source services.ProductSource
	pool   *pool.IdentifierPool
	mapper *mapping.ItemMapper
	values values.MarketValues
	stats  *metrics.SyncMetrics
	log    logger.Logger
}

func NewBatchBuilder(source services.ProductSource, idPool *pool.IdentifierPool, mapper *mapping.ItemMapper, v values.MarketValues, stats *metrics.SyncMetrics, log logger.Logger) *BatchBuilder {
	return &BatchBuilder{
		source: source,
		pool:   idPool,
		mapper: mapper,
		values: v,
		stats:  stats,
		log:    log,
	}
}

// Build собирает батч. Товар без правил маппинга или без идентификатора
// уходит в корзину unmapped с причиной -- один такой товар не валит батч.
// Инфраструктурные ошибки (хранилище, контекст) батч валят.
func (b *BatchBuilder) Build(ctx context.Context, productIDs []int) (*BuiltBatch, error) {
	batchID := uuid.NewString()
	batch := models.Batch{
		ID:        batchID,
		CreatedAt: time.Now().UTC(),
	}

	type mappedProduct struct {
		productID int
		payload   request.ItemPayload
	}
	mapped := make([]mappedProduct, 0, len(productIDs))

	seen := make(map[int]struct{}, len(productIDs))
	for _, productID := range productIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, duplicate := seen[productID]; duplicate {
			continue
		}
		seen[productID] = struct{}{}

		payload, reason, err := b.buildItem(ctx, productID)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			b.log.Warn("batch %s: product %d skipped: %s", batchID, productID, reason)
			batch.Unmapped = append(batch.Unmapped, models.UnmappedProduct{ProductID: productID, Reason: reason})
			if b.stats != nil {
				b.stats.UnmappedCount.Add(1)
			}
			continue
		}

		mapped = append(mapped, mappedProduct{productID: productID, payload: *payload})
		if b.stats != nil {
			b.stats.MappedCount.Add(1)
		}
	}

	built := &BuiltBatch{Batch: batch}
	chunkSize := b.values.ChunkSize
	for offset := 0; offset < len(mapped); offset += chunkSize {
		end := offset + chunkSize
		if end > len(mapped) {
			end = len(mapped)
		}

		seq := len(built.Chunks)
		chunk := models.Chunk{
			ID:      models.ChunkID(batchID, seq),
			BatchID: batchID,
			Seq:     seq,
			Status:  models.ChunkPlanned,
		}
		items := make([]request.ItemPayload, 0, end-offset)
		for _, m := range mapped[offset:end] {
			chunk.ProductIDs = append(chunk.ProductIDs, m.productID)
			items = append(items, m.payload)
		}

		built.Batch.Chunks = append(built.Batch.Chunks, chunk)
		built.Chunks = append(built.Chunks, BuiltChunk{Chunk: chunk, Items: items})
	}

	b.log.Log("batch %s: %d products mapped into %d chunks, %d unmapped",
		batchID, len(mapped), len(built.Chunks), len(built.Batch.Unmapped))
	return built, nil
}

// buildItem маппит один товар. Пустая причина -- успех; непустая -- товар
// в unmapped; ошибка -- инфраструктурный сбой.
func (b *BatchBuilder) buildItem(ctx context.Context, productID int) (*request.ItemPayload, string, error) {
	product, err := b.source.ProductByID(ctx, productID)
	if err != nil {
		return nil, "", fmt.Errorf("loading product %d: %w", productID, err)
	}
	if product == nil {
		return nil, "product not found", nil
	}

	categoryID, ok := product.PrimaryCategoryID()
	if !ok {
		return nil, "product has no category", nil
	}

	ruleSet, err := b.source.RuleSetByCategory(ctx, categoryID)
	if err != nil {
		return nil, "", fmt.Errorf("loading rule set for category %d: %w", categoryID, err)
	}
	if ruleSet == nil {
		return nil, fmt.Sprintf("no mapping rules for category %d", categoryID), nil
	}

	identifier, err := b.pool.Allocate(ctx, productID)
	if errors.Is(err, pool.ErrPoolExhausted) {
		return nil, "identifier pool exhausted", nil
	}
	if err != nil {
		return nil, "", err
	}

	item, err := b.mapper.Map(ctx, product, *ruleSet, identifier)
	if err != nil {
		return nil, "", fmt.Errorf("mapping product %d: %w", productID, err)
	}
	for _, warning := range item.Warnings {
		b.log.Warn("product %d field %q (%s): %s", productID, warning.Field, warning.Category, warning.Reason)
	}
	return &item.Payload, "", nil
}
