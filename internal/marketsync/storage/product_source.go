package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/pkg/logger"
)

// ProductSource читает товары витрины из postgres и наборы правил из
// загруженной конфигурации. Для движка синхронизации источник только на
// чтение: таблицы storefront.* принадлежат витрине, мы их не мигрируем.
type ProductSource struct {
	db       *sql.DB
	ruleSets map[int]models.RuleSet
	log      logger.Logger
}

func NewProductSource(db *sql.DB, ruleSets map[int]models.RuleSet, log logger.Logger) *ProductSource {
	return &ProductSource{db: db, ruleSets: ruleSets, log: log}
}

// ProductByID возвращает nil, nil для несуществующего товара.
func (s *ProductSource) ProductByID(ctx context.Context, id int) (*models.Product, error) {
	product := &models.Product{ID: id}
	var (
		galleryIDs   pq.Int64Array
		externalURLs pq.StringArray
		categoryIDs  pq.Int64Array
		publishedAt  sql.NullTime
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT sku, name, description, brand, price, weight,
                category_ids, published_at,
                main_image_id, gallery_image_ids, external_image_urls
         FROM storefront.products
         WHERE id = $1`,
		id).Scan(
		&product.SKU, &product.Name, &product.Description, &product.Brand,
		&product.Price, &product.Weight,
		&categoryIDs, &publishedAt,
		&product.MainImageID, &galleryIDs, &externalURLs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting product %d: %w", id, err)
	}

	for _, categoryID := range categoryIDs {
		product.CategoryIDs = append(product.CategoryIDs, int(categoryID))
	}
	for _, galleryID := range galleryIDs {
		product.GalleryImageIDs = append(product.GalleryImageIDs, int(galleryID))
	}
	product.ExternalImageURLs = externalURLs
	if publishedAt.Valid {
		t := publishedAt.Time
		product.PublishedAt = &t
	}

	attributes, err := s.productAttributes(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Attributes = attributes
	return product, nil
}

func (s *ProductSource) productAttributes(ctx context.Context, productID int) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, value FROM storefront.product_attributes WHERE product_id = $1",
		productID)
	if err != nil {
		return nil, fmt.Errorf("selecting attributes of product %d: %w", productID, err)
	}
	defer rows.Close()

	attributes := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning attribute of product %d: %w", productID, err)
		}
		attributes[name] = value
	}
	return attributes, rows.Err()
}

// RuleSetByCategory возвращает nil, nil для категории без настроенного
// маппинга: такой товар уходит в корзину unmapped.
func (s *ProductSource) RuleSetByCategory(_ context.Context, categoryID int) (*models.RuleSet, error) {
	ruleSet, ok := s.ruleSets[categoryID]
	if !ok {
		return nil, nil
	}
	return &ruleSet, nil
}

// AttachmentStore резолвит локальные вложения витрины в публичные URL.
type AttachmentStore struct {
	db *sql.DB
}

func NewAttachmentStore(db *sql.DB) *AttachmentStore {
	return &AttachmentStore{db: db}
}

func (s *AttachmentStore) AttachmentURL(id int) (string, error) {
	var attachmentURL string
	err := s.db.QueryRow(
		"SELECT url FROM storefront.attachments WHERE id = $1",
		id).Scan(&attachmentURL)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("attachment %d not found", id)
	}
	if err != nil {
		return "", fmt.Errorf("selecting attachment %d: %w", id, err)
	}
	return attachmentURL, nil
}
