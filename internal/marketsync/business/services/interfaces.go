package services

import (
	"context"

	"gomarketfeed_api/internal/marketsync/business/models"
)

// ProductSource -- витрина: товары и наборы правил по категориям.
// Для движка синхронизации источник только на чтение.
type ProductSource interface {
	ProductByID(ctx context.Context, id int) (*models.Product, error)
	// RuleSetByCategory возвращает nil, nil когда маппинг для категории
	// не настроен: такой товар уходит в корзину unmapped.
	RuleSetByCategory(ctx context.Context, categoryID int) (*models.RuleSet, error)
}

// AttachmentResolver переводит локальный ID вложения в публичный URL.
type AttachmentResolver interface {
	AttachmentURL(id int) (string, error)
}
