package mapping

import (
	"fmt"
	"regexp"
	"sync"

	"golang.org/x/text/language"

	"gomarketfeed_api/config/values"
	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/pkg/logger"
)

// MappingError -- ошибка конфигурации правила (неизвестный генератор, битый
// паттерн). Поле опускается, ошибка логируется как дефект конфигурации.
type MappingError struct {
	Field  string
	Kind   models.MappingKind
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping rule for field %q (%s): %s", e.Field, e.Kind, e.Reason)
}

// MarketContext -- рыночная конфигурация, доступная резолверам и генераторам.
type MarketContext struct {
	Values values.MarketValues
	Locale language.Tag
}

func NewMarketContext(v values.MarketValues) MarketContext {
	tag, err := language.Parse(v.Locale)
	if err != nil {
		tag = language.English
	}
	return MarketContext{Values: v, Locale: tag}
}

// ResolverFunc -- чистая функция (правило, товар, контекст) -> значение.
// nil-значение означает «поля нет», а не ошибку.
type ResolverFunc func(rule models.FieldRule, p *models.Product, mctx MarketContext) (interface{}, error)

// FieldMapper резолвит одно правило маппинга в значение-кандидат.
// Диспетчеризация по kind -- явная таблица, добавление варианта аддитивно.
type FieldMapper struct {
	resolvers  map[models.MappingKind]ResolverFunc
	generators map[string]GeneratorFunc
	mctx       MarketContext
	log        logger.Logger

	patternMu sync.Mutex
	patterns  map[string]*regexp.Regexp
}

func NewFieldMapper(mctx MarketContext, log logger.Logger) *FieldMapper {
	m := &FieldMapper{
		generators: defaultGenerators(),
		mctx:       mctx,
		log:        log,
		patterns:   make(map[string]*regexp.Regexp),
	}
	m.resolvers = map[models.MappingKind]ResolverFunc{
		models.MappingStatic:         resolveStatic,
		models.MappingAttribute:      resolveAttribute,
		models.MappingAutoGenerate:   m.resolveAutoGenerate,
		models.MappingPatternExtract: m.resolvePatternExtract,
	}
	return m
}

// RegisterGenerator добавляет именованный генератор; используется рынками
// с собственными производными полями.
func (m *FieldMapper) RegisterGenerator(name string, fn GeneratorFunc) {
	m.generators[name] = fn
}

// Resolve возвращает значение-кандидат или nil, если источник пуст.
func (m *FieldMapper) Resolve(rule models.FieldRule, p *models.Product) (interface{}, error) {
	resolver, ok := m.resolvers[rule.Kind]
	if !ok {
		return nil, &MappingError{Field: rule.Field, Kind: rule.Kind, Reason: "unknown mapping kind"}
	}

	value, err := resolver(rule, p, m.mctx)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	return applyFormat(rule, value, m.mctx), nil
}

func resolveStatic(rule models.FieldRule, _ *models.Product, _ MarketContext) (interface{}, error) {
	if rule.Source == "" {
		return nil, nil
	}
	return rule.Source, nil
}

func resolveAttribute(rule models.FieldRule, p *models.Product, _ MarketContext) (interface{}, error) {
	value := p.Attribute(rule.Source)
	if value == "" {
		return nil, nil
	}
	return value, nil
}

func (m *FieldMapper) resolveAutoGenerate(rule models.FieldRule, p *models.Product, mctx MarketContext) (interface{}, error) {
	generator, ok := m.generators[rule.Source]
	if !ok {
		return nil, &MappingError{Field: rule.Field, Kind: rule.Kind, Reason: fmt.Sprintf("unknown generator %q", rule.Source)}
	}
	// Генераторы чистые: отсутствие входов -> nil, не ошибка.
	return generator(p, mctx), nil
}

// resolvePatternExtract применяет capture-паттерн к строковому значению
// атрибута и возвращает первую группу. Единица измерения из исходного текста
// отбрасывается; суффикс добавляется только если правило задаёт Unit явно.
func (m *FieldMapper) resolvePatternExtract(rule models.FieldRule, p *models.Product, _ MarketContext) (interface{}, error) {
	raw := p.Attribute(rule.Source)
	if raw == "" {
		return nil, nil
	}

	pattern, err := m.compiledPattern(rule.Pattern)
	if err != nil {
		return nil, &MappingError{Field: rule.Field, Kind: rule.Kind, Reason: fmt.Sprintf("invalid pattern %q: %v", rule.Pattern, err)}
	}

	match := pattern.FindStringSubmatch(raw)
	if len(match) < 2 {
		return nil, nil
	}

	extracted := match[1]
	if rule.Unit != "" {
		extracted = extracted + " " + rule.Unit
	}
	return extracted, nil
}

func (m *FieldMapper) compiledPattern(pattern string) (*regexp.Regexp, error) {
	m.patternMu.Lock()
	defer m.patternMu.Unlock()

	if compiled, ok := m.patterns[pattern]; ok {
		return compiled, nil
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	m.patterns[pattern] = compiled
	return compiled, nil
}

// applyFormat применяет подсказку формата вывода из правила.
func applyFormat(rule models.FieldRule, value interface{}, mctx MarketContext) interface{} {
	switch rule.Format {
	case models.FormatList:
		if _, ok := value.([]interface{}); ok {
			return value
		}
		return []interface{}{value}
	case models.FormatLocalized:
		if _, ok := value.(map[string]interface{}); ok {
			return value
		}
		return map[string]interface{}{mctx.Locale.String(): value}
	default:
		return value
	}
}
