package mapping

import (
	"errors"
	"io"
	"reflect"
	"testing"

	"gomarketfeed_api/config/values"
	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/pkg/logger"
)

func testMapper() *FieldMapper {
	v := values.MarketValues{Locale: "en", FulfillmentLagDays: 1}
	return NewFieldMapper(NewMarketContext(v.WithDefaults()), logger.NewBaseLogger(io.Discard, "[test]"))
}

func TestFieldMapper_Resolve_static(t *testing.T) {
	t.Parallel()

	m := testMapper()
	value, err := m.Resolve(models.FieldRule{Field: "condition", Kind: models.MappingStatic, Source: "New"}, &models.Product{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "New" {
		t.Errorf("got %#v, want %q", value, "New")
	}
}

func TestFieldMapper_Resolve_missingAttributeIsAbsentNotError(t *testing.T) {
	t.Parallel()

	m := testMapper()
	p := &models.Product{Attributes: map[string]string{"color": "  "}}
	value, err := m.Resolve(models.FieldRule{Field: "color", Kind: models.MappingAttribute, Source: "color"}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != nil {
		t.Errorf("blank attribute must resolve to nil, got %#v", value)
	}
}

func TestFieldMapper_Resolve_patternExtract(t *testing.T) {
	t.Parallel()

	m := testMapper()
	p := &models.Product{Attributes: map[string]string{"dimensions": "Width: 45 cm"}}

	value, err := m.Resolve(models.FieldRule{
		Field:   "assembledProductWidth",
		Kind:    models.MappingPatternExtract,
		Source:  "dimensions",
		Pattern: `(\d+)`,
	}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "45" {
		t.Errorf("bare extraction = %#v, want %q", value, "45")
	}

	value, err = m.Resolve(models.FieldRule{
		Field:   "assembledProductWidth",
		Kind:    models.MappingPatternExtract,
		Source:  "dimensions",
		Pattern: `(\d+)`,
		Unit:    "in",
	}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "45 in" {
		t.Errorf("unit-suffixed extraction = %#v, want %q", value, "45 in")
	}
}

func TestFieldMapper_Resolve_patternWithoutMatchIsAbsent(t *testing.T) {
	t.Parallel()

	m := testMapper()
	p := &models.Product{Attributes: map[string]string{"dimensions": "unknown"}}
	value, err := m.Resolve(models.FieldRule{
		Field:   "assembledProductWidth",
		Kind:    models.MappingPatternExtract,
		Source:  "dimensions",
		Pattern: `(\d+)`,
	}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != nil {
		t.Errorf("no capture match must resolve to nil, got %#v", value)
	}
}

func TestFieldMapper_Resolve_invalidPatternIsMappingError(t *testing.T) {
	t.Parallel()

	m := testMapper()
	p := &models.Product{Attributes: map[string]string{"dimensions": "45"}}
	_, err := m.Resolve(models.FieldRule{
		Field:   "assembledProductWidth",
		Kind:    models.MappingPatternExtract,
		Source:  "dimensions",
		Pattern: `([`,
	}, p)

	var mappingErr *MappingError
	if !errors.As(err, &mappingErr) {
		t.Fatalf("got %v, want *MappingError", err)
	}
	if mappingErr.Field != "assembledProductWidth" {
		t.Errorf("error field = %q", mappingErr.Field)
	}
}

func TestFieldMapper_Resolve_unknownGeneratorIsMappingError(t *testing.T) {
	t.Parallel()

	m := testMapper()
	_, err := m.Resolve(models.FieldRule{Field: "x", Kind: models.MappingAutoGenerate, Source: "no_such_generator"}, &models.Product{})

	var mappingErr *MappingError
	if !errors.As(err, &mappingErr) {
		t.Fatalf("got %v, want *MappingError", err)
	}
}

func TestFieldMapper_Resolve_brandTitleGenerator(t *testing.T) {
	t.Parallel()

	m := testMapper()
	p := &models.Product{Brand: "acme corp"}
	value, err := m.Resolve(models.FieldRule{Field: "brand", Kind: models.MappingAutoGenerate, Source: "brand_title"}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "Acme Corp" {
		t.Errorf("got %#v, want %q", value, "Acme Corp")
	}
}

func TestFieldMapper_Resolve_listFormatWrapsScalar(t *testing.T) {
	t.Parallel()

	m := testMapper()
	p := &models.Product{Attributes: map[string]string{"material": "Leather"}}
	value, err := m.Resolve(models.FieldRule{
		Field:  "material",
		Kind:   models.MappingAttribute,
		Source: "material",
		Format: models.FormatList,
	}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(value, []interface{}{"Leather"}) {
		t.Errorf("got %#v, want [Leather]", value)
	}
}

func TestFieldMapper_RegisterGenerator(t *testing.T) {
	t.Parallel()

	m := testMapper()
	m.RegisterGenerator("constant_answer", func(_ *models.Product, _ MarketContext) interface{} {
		return "42"
	})
	value, err := m.Resolve(models.FieldRule{Field: "answer", Kind: models.MappingAutoGenerate, Source: "constant_answer"}, &models.Product{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "42" {
		t.Errorf("got %#v, want %q", value, "42")
	}
}
