package models

import (
	"gomarketfeed_api/pkg/logger"
)

type MappingKind string

const (
	MappingStatic         MappingKind = "static"
	MappingAttribute      MappingKind = "attribute"
	MappingAutoGenerate   MappingKind = "auto_generate"
	MappingPatternExtract MappingKind = "pattern_extract"
)

type OutputFormat string

const (
	FormatScalar    OutputFormat = "scalar"
	FormatList      OutputFormat = "list"
	FormatLocalized OutputFormat = "localized"
)

// Зарезервированные поля схемы, которые заполняет сборщик изображений,
// а не правила маппинга.
const (
	FieldMainImageURL       = "mainImageUrl"
	FieldSecondaryImageURLs = "productSecondaryImageURL"
)

// FieldRule -- одно правило маппинга: целевое поле схемы маркетплейса
// и способ получения значения из товара.
type FieldRule struct {
	Field  string       `yaml:"field" json:"field"`
	Kind   MappingKind  `yaml:"kind" json:"kind"`
	Source string       `yaml:"source" json:"source"`
	Format OutputFormat `yaml:"format,omitempty" json:"format,omitempty"`

	// Только для pattern_extract.
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	// Суффикс единицы измерения для извлечённого значения; пустой --
	// отдаём голую capture-группу.
	Unit string `yaml:"unit,omitempty" json:"unit,omitempty"`
}

func (r FieldRule) IsImageField() bool {
	return r.Field == FieldMainImageURL || r.Field == FieldSecondaryImageURLs
}

// RuleSet -- упорядоченный набор правил для одной категории витрины.
// Имена целевых полей внутри набора уникальны.
type RuleSet struct {
	CategoryID int
	Category   string
	Rules      []FieldRule
}

// NewRuleSet дедуплицирует правила по целевому полю (последнее определение
// выигрывает) и предупреждает о дублях на этапе загрузки конфигурации,
// чтобы движок не зависел от порядка применения.
func NewRuleSet(categoryID int, category string, rules []FieldRule, log logger.Logger) RuleSet {
	seen := make(map[string]int, len(rules))
	deduped := make([]FieldRule, 0, len(rules))

	for _, rule := range rules {
		if idx, ok := seen[rule.Field]; ok {
			if log != nil {
				log.Warn("duplicate rule for field %q in category %q: keeping the last definition", rule.Field, category)
			}
			deduped[idx] = rule
			continue
		}
		seen[rule.Field] = len(deduped)
		deduped = append(deduped, rule)
	}

	return RuleSet{
		CategoryID: categoryID,
		Category:   category,
		Rules:      deduped,
	}
}
