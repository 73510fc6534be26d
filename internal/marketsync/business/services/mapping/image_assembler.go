package mapping

import (
	"fmt"
	"net/url"

	"gomarketfeed_api/config/values"
	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/internal/marketsync/business/services"
	"gomarketfeed_api/metrics"
	"gomarketfeed_api/pkg/logger"
)

// Assembly -- собранный набор изображений товара. Shortfall > 0 означает,
// что даже с плейсхолдерами до минимума маркетплейса не дотянули; это
// отдаётся наверх, а не глотается.
type Assembly struct {
	MainImageURL       string
	SecondaryImageURLs []string
	Shortfall          int
}

// ImageAssembler собирает главное изображение и галерею, добирая нехватку
// настроенными плейсхолдерами в фиксированном порядке приоритета.
type ImageAssembler struct {
	attachments services.AttachmentResolver
	values      values.MarketValues
	log         logger.Logger
}

func NewImageAssembler(attachments services.AttachmentResolver, v values.MarketValues, log logger.Logger) *ImageAssembler {
	return &ImageAssembler{
		attachments: attachments,
		values:      v,
		log:         log,
	}
}

func (a *ImageAssembler) Assemble(p *models.Product) (Assembly, error) {
	assembly := Assembly{}

	mainURL, err := a.resolveRef(p, p.MainImageID)
	if err != nil {
		a.log.Warn("product %d: main image unresolved: %v", p.ID, err)
	} else if isWellFormedURL(mainURL) {
		assembly.MainImageURL = mainURL
	}

	seen := make(map[string]struct{})
	if assembly.MainImageURL != "" {
		seen[assembly.MainImageURL] = struct{}{}
	}

	for _, id := range p.GalleryImageIDs {
		imageURL, err := a.resolveRef(p, id)
		if err != nil {
			a.log.Warn("product %d: gallery image %d unresolved: %v", p.ID, id, err)
			continue
		}
		if !isWellFormedURL(imageURL) {
			a.log.Warn("product %d: dropping malformed gallery url %q", p.ID, imageURL)
			continue
		}
		if _, duplicate := seen[imageURL]; duplicate {
			continue
		}
		seen[imageURL] = struct{}{}
		assembly.SecondaryImageURLs = append(assembly.SecondaryImageURLs, imageURL)
	}

	// Плейсхолдеры в фиксированном порядке: сначала первый, потом второй.
	// Невалидный или ненастроенный плейсхолдер пропускается без ошибки.
	minimum := a.values.MinSecondaryImages
	for _, placeholder := range []string{a.values.PlaceholderImage1, a.values.PlaceholderImage2} {
		if len(assembly.SecondaryImageURLs) >= minimum {
			break
		}
		if placeholder == "" || !isWellFormedURL(placeholder) {
			continue
		}
		// Плейсхолдер, совпавший с естественной галереей, дал бы меньше
		// различных изображений, чем заявляет счётчик.
		if _, duplicate := seen[placeholder]; duplicate {
			a.log.Warn("product %d: placeholder %q already present in gallery, skipping", p.ID, placeholder)
			continue
		}
		seen[placeholder] = struct{}{}
		assembly.SecondaryImageURLs = append(assembly.SecondaryImageURLs, placeholder)
	}

	if len(assembly.SecondaryImageURLs) < minimum {
		assembly.Shortfall = minimum - len(assembly.SecondaryImageURLs)
		metrics.RecordImageShortfall()
		a.log.Warn("product %d: image set is %d short of the marketplace minimum %d",
			p.ID, assembly.Shortfall, minimum)
	}

	// Пост-проверка различимости: дубликат здесь -- дефект сборки.
	if deduped := dedupeURLs(assembly.SecondaryImageURLs); len(deduped) != len(assembly.SecondaryImageURLs) {
		a.log.Error("product %d: duplicate urls detected after assembly, deduplicating", p.ID)
		assembly.SecondaryImageURLs = deduped
	}

	return assembly, nil
}

// resolveRef переводит ссылку на изображение в URL: неотрицательный ID --
// локальное вложение, отрицательный -- индекс во внешнем списке.
func (a *ImageAssembler) resolveRef(p *models.Product, id int) (string, error) {
	if id >= 0 {
		return a.attachments.AttachmentURL(id)
	}
	idx := -id - 1
	if idx >= len(p.ExternalImageURLs) {
		return "", fmt.Errorf("external image index %d out of range (%d urls)", idx, len(p.ExternalImageURLs))
	}
	return p.ExternalImageURLs[idx], nil
}

func isWellFormedURL(candidate string) bool {
	if candidate == "" {
		return false
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func dedupeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	result := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		result = append(result, u)
	}
	return result
}
