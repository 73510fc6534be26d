package pool

import (
	"context"
	"errors"
	"fmt"

	"gomarketfeed_api/metrics"
	"gomarketfeed_api/pkg/logger"
)

// ErrPoolExhausted -- в пуле не осталось свободных идентификаторов.
// Решение (блокироваться, алертить, пропустить товар) принимает вызывающий.
var ErrPoolExhausted = errors.New("identifier pool exhausted")

// Repository -- хранилище записей пула. ClaimNext обязан быть атомарным:
// два конкурентных вызова не могут получить одну и ту же запись.
type Repository interface {
	// IdentifierByProduct возвращает уже привязанный идентификатор, если есть.
	IdentifierByProduct(ctx context.Context, productID int) (int64, bool, error)
	// ClaimNext помечает одну свободную запись потреблённой и привязывает её
	// к товару. Возвращает ErrPoolExhausted, когда свободных записей нет.
	ClaimNext(ctx context.Context, productID int) (int64, error)
}

// IdentifierPool выдаёт внешние идентификаторы товаров из конечного пула.
// Повторный Allocate для того же товара возвращает уже привязанное значение,
// не расходуя новую запись.
type IdentifierPool struct {
	repo Repository
	log  logger.Logger
}

func NewIdentifierPool(repo Repository, log logger.Logger) *IdentifierPool {
	return &IdentifierPool{repo: repo, log: log}
}

func (p *IdentifierPool) Allocate(ctx context.Context, productID int) (int64, error) {
	existing, ok, err := p.repo.IdentifierByProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("looking up identifier for product %d: %w", productID, err)
	}
	if ok {
		metrics.RecordPoolAllocation("existing")
		return existing, nil
	}

	value, err := p.repo.ClaimNext(ctx, productID)
	if errors.Is(err, ErrPoolExhausted) {
		metrics.RecordPoolAllocation("exhausted")
		p.log.Error("identifier pool exhausted (product %d)", productID)
		return 0, err
	}
	if err != nil {
		// Гонка двух пересекающихся sync-запусков по одному товару:
		// уникальный индекс по product_id оставляет ровно одну привязку,
		// проигравший перечитывает её.
		existing, ok, lookupErr := p.repo.IdentifierByProduct(ctx, productID)
		if lookupErr == nil && ok {
			metrics.RecordPoolAllocation("existing")
			return existing, nil
		}
		return 0, fmt.Errorf("claiming identifier for product %d: %w", productID, err)
	}

	metrics.RecordPoolAllocation("claimed")
	p.log.Log("allocated identifier %d for product %d", value, productID)
	return value, nil
}
