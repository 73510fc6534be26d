package mapping

import (
	"context"
	"errors"
	"fmt"

	"gomarketfeed_api/config/values"
	"gomarketfeed_api/internal/marketsync/business/dto/request"
	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/internal/marketsync/business/services/specs"
	"gomarketfeed_api/metrics"
	"gomarketfeed_api/pkg/business/service"
	"gomarketfeed_api/pkg/logger"
)

// SpecValidator -- срез SpecService, нужный маппингу.
type SpecValidator interface {
	GetFieldSpec(ctx context.Context, category, field string) (*models.FieldSpec, error)
	Validate(ctx context.Context, category, field string, candidate interface{}) (specs.Result, error)
}

// Warning -- структурированное предупреждение по одному полю: одно битое
// поле не должно блокировать остальные пятьдесят.
type Warning struct {
	Field    string
	Category string
	Value    interface{}
	Reason   string
}

// MappedItem -- готовый payload одного товара плюс накопленные предупреждения.
type MappedItem struct {
	Payload  request.ItemPayload
	Warnings []Warning
}

// Лимиты длины текстовых полей, которые чистим перед отправкой.
var textCleanupLimits = map[string]int{
	"productName":      100,
	"shortDescription": 4000,
}

// ItemMapper строит payload маркетплейса для одного товара по набору правил
// его категории.
type ItemMapper struct {
	fields *FieldMapper
	images *ImageAssembler
	specs  SpecValidator
	text   service.ITextService
	values values.MarketValues
	log    logger.Logger
}

func NewItemMapper(fields *FieldMapper, images *ImageAssembler, validator SpecValidator, text service.ITextService, v values.MarketValues, log logger.Logger) *ItemMapper {
	return &ItemMapper{
		fields: fields,
		images: images,
		specs:  validator,
		text:   text,
		values: v,
		log:    log,
	}
}

func (m *ItemMapper) Map(ctx context.Context, p *models.Product, ruleSet models.RuleSet, identifier int64) (*MappedItem, error) {
	item := &MappedItem{}
	visible := make(map[string]interface{}, len(ruleSet.Rules))

	var assembly *Assembly
	ensureAssembly := func() (*Assembly, error) {
		if assembly != nil {
			return assembly, nil
		}
		built, err := m.images.Assemble(p)
		if err != nil {
			return nil, err
		}
		if built.Shortfall > 0 {
			// Недобор до минимума -- часть отчёта по товару, а не только
			// строка в логе сборщика.
			item.Warnings = append(item.Warnings, Warning{
				Field:    models.FieldSecondaryImageURLs,
				Category: ruleSet.Category,
				Reason:   fmt.Sprintf("image set is %d short of the marketplace minimum", built.Shortfall),
			})
		}
		assembly = &built
		return assembly, nil
	}

	for _, rule := range ruleSet.Rules {
		if rule.IsImageField() {
			built, err := ensureAssembly()
			if err != nil {
				item.Warnings = append(item.Warnings, Warning{
					Field:    rule.Field,
					Category: ruleSet.Category,
					Reason:   fmt.Sprintf("image assembly failed: %v", err),
				})
				continue
			}
			var value interface{}
			if rule.Field == models.FieldMainImageURL && built.MainImageURL != "" {
				value = built.MainImageURL
			}
			if rule.Field == models.FieldSecondaryImageURLs && len(built.SecondaryImageURLs) > 0 {
				value = built.SecondaryImageURLs
			}
			if value == nil {
				continue
			}
			// Собранные изображения проходят ту же проверку по спецификации,
			// что и остальные поля: инвариант visible-секции один для всех.
			m.placeValidated(ctx, item, visible, ruleSet.Category, rule.Field, value)
			continue
		}

		value, err := m.fields.Resolve(rule, p)
		if err != nil {
			var mappingErr *MappingError
			if errors.As(err, &mappingErr) {
				// Дефект конфигурации правил, а не товара.
				m.log.Error("category %q: %v", ruleSet.Category, err)
			}
			item.Warnings = append(item.Warnings, Warning{
				Field:    rule.Field,
				Category: ruleSet.Category,
				Reason:   err.Error(),
			})
			continue
		}
		if isEmptyValue(value) {
			// Маркетплейс отвергает явные null/пустые значения
			// опциональных полей; безопасное поведение -- пропуск.
			continue
		}

		if limit, ok := textCleanupLimits[rule.Field]; ok {
			if text, isString := value.(string); isString {
				value = m.text.ClearAndReduce(text, limit)
				if isEmptyValue(value) {
					continue
				}
			}
		}

		m.placeValidated(ctx, item, visible, ruleSet.Category, rule.Field, value)
	}

	item.Payload = request.ItemPayload{
		Orderable: request.Orderable{
			SKU: p.SKU,
			ProductIdentifiers: request.ProductIdentifiers{
				ProductIDType: m.values.ProductIDType,
				ProductID:     formatIdentifier(identifier),
			},
			Price: request.Price{
				Currency: m.values.Currency,
				Amount:   p.Price,
			},
		},
		Visible: m.wrapVisible(ruleSet.Category, visible),
	}

	metrics.RecordItemMapped(ruleSet.Category)
	return item, nil
}

// placeValidated прогоняет значение через спецификацию категории и кладёт
// его в visible-секцию. Отвергнутое поле опускается с предупреждением,
// авто-ремонт проходит с предупреждением.
func (m *ItemMapper) placeValidated(ctx context.Context, item *MappedItem, visible map[string]interface{}, category, field string, value interface{}) {
	result, err := m.specs.Validate(ctx, category, field, value)
	if err != nil {
		// Кэш спецификаций советующий: при недоступной схеме поле
		// уходит как есть, финальную проверку сделает маркетплейс.
		m.log.Warn("category %q field %q: spec validation unavailable: %v", category, field, err)
		visible[field] = value
		return
	}

	switch {
	case result.Valid:
		visible[field] = result.Corrected
	case result.AutoRepaired:
		visible[field] = result.Corrected
		item.Warnings = append(item.Warnings, Warning{
			Field:    field,
			Category: category,
			Value:    value,
			Reason:   "auto-repaired: " + result.Message,
		})
	default:
		metrics.RecordValidationFailure(category, field)
		item.Warnings = append(item.Warnings, Warning{
			Field:    field,
			Category: category,
			Value:    value,
			Reason:   result.Message,
		})
	}
}

// wrapVisible вкладывает visible-структуру под имя категории для рынков со
// вложенной схемой; переключатель рыночный, не категорийный.
func (m *ItemMapper) wrapVisible(category string, visible map[string]interface{}) map[string]interface{} {
	if !m.values.CategoryNestedVisible {
		return visible
	}
	return map[string]interface{}{category: visible}
}

// formatIdentifier дополняет числовой идентификатор нулями до 14 знаков
// (формат GTIN-14).
func formatIdentifier(identifier int64) string {
	return fmt.Sprintf("%014d", identifier)
}

// isEmptyValue: nil, пустая строка, пустой список или список из одних
// пустых строк.
func isEmptyValue(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		for _, element := range v {
			if element != "" {
				return false
			}
		}
		return true
	case []interface{}:
		for _, element := range v {
			if !isEmptyValue(element) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		return len(v) == 0
	default:
		return false
	}
}
