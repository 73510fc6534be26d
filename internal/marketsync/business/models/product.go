package models

import (
	"strings"
	"time"
)

// Product -- товар витрины так, как его видит движок синхронизации.
// Read-only: источником является коллаборатор ProductSource.
type Product struct {
	ID          int
	SKU         string
	Name        string
	Description string
	Brand       string
	Price       float64
	Weight      float64

	CategoryIDs []int
	Attributes  map[string]string

	PublishedAt *time.Time

	// Ссылки на изображения. Неотрицательный ID -- локальное вложение,
	// отрицательный -- индекс во внешнем списке: idx = -id - 1.
	MainImageID       int
	GalleryImageIDs   []int
	ExternalImageURLs []string
}

// Attribute возвращает значение атрибута без хвостовых пробелов; пустая
// строка означает отсутствие.
func (p *Product) Attribute(name string) string {
	if p.Attributes == nil {
		return ""
	}
	return strings.TrimSpace(p.Attributes[name])
}

// PrimaryCategoryID -- категория, по которой подбирается набор правил.
func (p *Product) PrimaryCategoryID() (int, bool) {
	if len(p.CategoryIDs) == 0 {
		return 0, false
	}
	return p.CategoryIDs[0], true
}
