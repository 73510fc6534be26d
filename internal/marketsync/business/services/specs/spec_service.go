package specs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/metrics"
	"gomarketfeed_api/pkg/logger"
)

// Fetcher -- источник спецификаций (см. SpecClient).
type Fetcher interface {
	FetchCategorySpecs(ctx context.Context, category string) (map[string]models.FieldSpec, error)
}

// Store -- персистентная копия спецификаций: переживает рестарт и подменяет
// маркетплейс, когда тот недоступен. LoadCategorySpecs возвращает nil, nil
// при отсутствии сохранённой копии.
type Store interface {
	SaveCategorySpecs(ctx context.Context, category string, specs map[string]models.FieldSpec) error
	LoadCategorySpecs(ctx context.Context, category string) (map[string]models.FieldSpec, error)
}

// Result -- вердикт валидации одного значения.
type Result struct {
	Valid bool
	// Corrected: приведённое значение при успехе, либо авто-ремонт
	// (первое разрешённое) при провале allowed-set проверки.
	Corrected    interface{}
	AutoRepaired bool
	Message      string
}

// versionedEntry: значение + версия + момент загрузки. Версия сверяется при
// записи, чтобы fetch, начатый до Invalidate, не перезаписал кэш после него.
type versionedEntry struct {
	specs     map[string]models.FieldSpec
	version   uint64
	fetchedAt time.Time
}

// SpecService кэширует спецификации категорий и валидирует кандидатов.
// Кэш советующий: устаревание допустимо, маркетплейс проверит сам, а
// последствие видно в статусе фида.
type SpecService struct {
	fetcher Fetcher
	store   Store
	cache   *gocache.Cache

	mu       sync.Mutex
	versions map[string]uint64

	defaultLocale string
	log           logger.Logger
}

func NewSpecService(fetcher Fetcher, defaultLocale string, log logger.Logger) *SpecService {
	return &SpecService{
		fetcher:       fetcher,
		cache:         gocache.New(gocache.NoExpiration, 10*time.Minute),
		versions:      make(map[string]uint64),
		defaultLocale: defaultLocale,
		log:           log,
	}
}

// WithStore подключает персистентную копию спецификаций.
func (s *SpecService) WithStore(store Store) *SpecService {
	s.store = store
	return s
}

func (s *SpecService) currentVersion(category string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[category]
}

// Invalidate поднимает версию категории и выбрасывает её из кэша.
// Вызывается админским инструментарием после смены схемы маркетплейса.
func (s *SpecService) Invalidate(category string) {
	s.mu.Lock()
	s.versions[category]++
	version := s.versions[category]
	s.mu.Unlock()

	s.cache.Delete(category)
	s.log.Log("spec cache invalidated for category %q (version %d)", category, version)
}

// CategorySpecs возвращает спеки категории, при необходимости загружая их.
func (s *SpecService) CategorySpecs(ctx context.Context, category string) (map[string]models.FieldSpec, error) {
	if cached, ok := s.cache.Get(category); ok {
		entry := cached.(*versionedEntry)
		if entry.version == s.currentVersion(category) {
			return entry.specs, nil
		}
	}

	version := s.currentVersion(category)
	specs, err := s.fetcher.FetchCategorySpecs(ctx, category)
	if err != nil {
		if persisted := s.loadPersisted(ctx, category); persisted != nil {
			s.log.Warn("marketplace spec fetch failed for category %q, serving persisted copy: %v", category, err)
			return persisted, nil
		}
		return nil, fmt.Errorf("loading specs for category %q: %w", category, err)
	}

	s.mu.Lock()
	fresh := s.versions[category] == version
	s.mu.Unlock()
	if fresh {
		s.cache.Set(category, &versionedEntry{
			specs:     specs,
			version:   version,
			fetchedAt: time.Now(),
		}, gocache.NoExpiration)
		if s.store != nil {
			if err := s.store.SaveCategorySpecs(ctx, category, specs); err != nil {
				s.log.Warn("persisting specs for category %q: %v", category, err)
			}
		}
	} else {
		// Инвалидация случилась во время загрузки: результат отдаём,
		// но в кэш и в хранилище не кладём.
		s.log.Warn("discarding stale spec fetch for category %q", category)
	}

	return specs, nil
}

func (s *SpecService) loadPersisted(ctx context.Context, category string) map[string]models.FieldSpec {
	if s.store == nil {
		return nil
	}
	persisted, err := s.store.LoadCategorySpecs(ctx, category)
	if err != nil {
		s.log.Warn("loading persisted specs for category %q: %v", category, err)
		return nil
	}
	return persisted
}

// GetFieldSpec возвращает nil, nil когда спецификации для поля нет:
// кэшированная схема может быть неполной, неизвестные поля проходят без
// проверки.
func (s *SpecService) GetFieldSpec(ctx context.Context, category, field string) (*models.FieldSpec, error) {
	specs, err := s.CategorySpecs(ctx, category)
	if err != nil {
		return nil, err
	}
	spec, ok := specs[field]
	if !ok {
		return nil, nil
	}
	return &spec, nil
}

// Validate приводит кандидата к типу из спецификации и проверяет allowed-set.
func (s *SpecService) Validate(ctx context.Context, category, field string, candidate interface{}) (Result, error) {
	spec, err := s.GetFieldSpec(ctx, category, field)
	if err != nil {
		return Result{}, err
	}
	if spec == nil {
		return Result{Valid: true, Corrected: candidate}, nil
	}
	return s.validateAgainst(*spec, candidate), nil
}

func (s *SpecService) validateAgainst(spec models.FieldSpec, candidate interface{}) Result {
	coerced, ok, reason := s.coerce(spec, candidate)
	if !ok {
		return Result{
			Valid:   false,
			Message: fmt.Sprintf("field %q: %s", spec.Field, reason),
		}
	}

	if len(spec.AllowedValues) > 0 {
		if violation, violated := firstDisallowed(spec, coerced); violated {
			result := Result{
				Valid: false,
				Message: fmt.Sprintf("field %q: value %q is not in allowed set [%s]",
					spec.Field, violation, strings.Join(spec.AllowedValues, ", ")),
			}
			if defaultValue, hasDefault := spec.DefaultValue(); hasDefault {
				// Авто-ремонт молча меняет намерение мерчанта,
				// поэтому логируется отдельно от обычного прохода.
				result.Corrected = repairedValue(spec, defaultValue)
				result.AutoRepaired = true
				metrics.RecordAutoRepair(spec.Category, spec.Field)
				s.log.Warn("auto-repair: category %q field %q value %q replaced with default %q",
					spec.Category, spec.Field, violation, defaultValue)
			}
			return result
		}
	}

	return Result{Valid: true, Corrected: coerced}
}

// coerce приводит кандидата к заявленному типу. Скаляр при array-типе
// оборачивается в список; список из ровно одного элемента при скалярном
// типе разворачивается, более длинный -- невалиден.
func (s *SpecService) coerce(spec models.FieldSpec, candidate interface{}) (interface{}, bool, string) {
	list, isList := asList(candidate)

	if spec.Type == models.SpecArray {
		if isList {
			return list, true, ""
		}
		return []interface{}{candidate}, true, ""
	}

	if spec.Type == models.SpecLocalized {
		switch v := candidate.(type) {
		case map[string]interface{}:
			return v, true, ""
		case map[string]string:
			converted := make(map[string]interface{}, len(v))
			for locale, value := range v {
				converted[locale] = value
			}
			return converted, true, ""
		default:
			return map[string]interface{}{s.defaultLocale: candidate}, true, ""
		}
	}

	scalar := candidate
	if isList {
		if len(list) != 1 {
			return nil, false, fmt.Sprintf("cannot unwrap list of %d elements into %s", len(list), spec.Type)
		}
		scalar = list[0]
	}

	switch spec.Type {
	case models.SpecString:
		return fmt.Sprintf("%v", scalar), true, ""
	case models.SpecNumber:
		switch v := scalar.(type) {
		case float64:
			return v, true, ""
		case float32:
			return float64(v), true, ""
		case int:
			return float64(v), true, ""
		case int64:
			return float64(v), true, ""
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, false, fmt.Sprintf("value %q is not a number", v)
			}
			return parsed, true, ""
		default:
			return nil, false, fmt.Sprintf("value of type %T is not a number", scalar)
		}
	case models.SpecBoolean:
		switch v := scalar.(type) {
		case bool:
			return v, true, ""
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, false, fmt.Sprintf("value %q is not a boolean", v)
			}
			return parsed, true, ""
		default:
			return nil, false, fmt.Sprintf("value of type %T is not a boolean", scalar)
		}
	default:
		// Неизвестный тип спецификации: пропускаем как есть, финальную
		// проверку сделает маркетплейс.
		return candidate, true, ""
	}
}

// firstDisallowed возвращает первое значение вне allowed-set.
// Сравнение точное и регистрозависимое.
func firstDisallowed(spec models.FieldSpec, coerced interface{}) (string, bool) {
	if list, ok := asList(coerced); ok {
		for _, element := range list {
			candidate := fmt.Sprintf("%v", element)
			if !spec.Allows(candidate) {
				return candidate, true
			}
		}
		return "", false
	}
	candidate := fmt.Sprintf("%v", coerced)
	if !spec.Allows(candidate) {
		return candidate, true
	}
	return "", false
}

func repairedValue(spec models.FieldSpec, defaultValue string) interface{} {
	if spec.Type == models.SpecArray {
		return []interface{}{defaultValue}
	}
	return defaultValue
}

func asList(candidate interface{}) ([]interface{}, bool) {
	switch v := candidate.(type) {
	case []interface{}:
		return v, true
	case []string:
		converted := make([]interface{}, len(v))
		for i, element := range v {
			converted[i] = element
		}
		return converted, true
	default:
		return nil, false
	}
}
