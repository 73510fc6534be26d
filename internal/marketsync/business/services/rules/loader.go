package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/pkg/logger"
)

type categoryRules struct {
	CategoryID int                `yaml:"category-id"`
	Category   string             `yaml:"category"`
	Rules      []models.FieldRule `yaml:"rules"`
}

type rulesFile struct {
	Categories []categoryRules `yaml:"categories"`
}

// LoadFile читает наборы правил маппинга из yaml-файла. Дубликаты полей
// внутри категории схлопываются при загрузке (последнее определение
// выигрывает), дубликат категории -- ошибка конфигурации.
func LoadFile(filename string, log logger.Logger) (map[int]models.RuleSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", filename, err)
	}

	var parsed rulesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", filename, err)
	}
	if len(parsed.Categories) == 0 {
		return nil, fmt.Errorf("rules file %s defines no categories", filename)
	}

	ruleSets := make(map[int]models.RuleSet, len(parsed.Categories))
	for _, category := range parsed.Categories {
		if category.Category == "" {
			return nil, fmt.Errorf("category %d has no name", category.CategoryID)
		}
		if _, duplicate := ruleSets[category.CategoryID]; duplicate {
			return nil, fmt.Errorf("category %d is defined twice", category.CategoryID)
		}
		if err := validateRules(category); err != nil {
			return nil, err
		}
		ruleSets[category.CategoryID] = models.NewRuleSet(category.CategoryID, category.Category, category.Rules, log)
	}

	log.Log("loaded mapping rules for %d categories from %s", len(ruleSets), filename)
	return ruleSets, nil
}

func validateRules(category categoryRules) error {
	for _, rule := range category.Rules {
		if rule.Field == "" {
			return fmt.Errorf("category %q: rule with empty target field", category.Category)
		}
		if rule.IsImageField() {
			// Поля изображений заполняет сборщик, kind и source не нужны.
			continue
		}
		switch rule.Kind {
		case models.MappingStatic, models.MappingAttribute, models.MappingAutoGenerate:
			if rule.Source == "" {
				return fmt.Errorf("category %q field %q: %s rule without source", category.Category, rule.Field, rule.Kind)
			}
		case models.MappingPatternExtract:
			if rule.Source == "" || rule.Pattern == "" {
				return fmt.Errorf("category %q field %q: pattern_extract rule needs source and pattern", category.Category, rule.Field)
			}
		default:
			return fmt.Errorf("category %q field %q: unknown mapping kind %q", category.Category, rule.Field, rule.Kind)
		}
	}
	return nil
}
