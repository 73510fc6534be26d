package mapping

import (
	"context"
	"io"
	"reflect"
	"testing"

	"gomarketfeed_api/config/values"
	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/internal/marketsync/business/services/specs"
	"gomarketfeed_api/pkg/business/service"
	"gomarketfeed_api/pkg/logger"
)

// fakeValidator отвергает поля из rejected и пропускает остальное как есть.
type fakeValidator struct {
	rejected map[string]string
	repaired map[string]interface{}
	calls    []string
}

func (f *fakeValidator) GetFieldSpec(_ context.Context, category, field string) (*models.FieldSpec, error) {
	return nil, nil
}

func (f *fakeValidator) Validate(_ context.Context, _, field string, candidate interface{}) (specs.Result, error) {
	f.calls = append(f.calls, field)
	if reason, ok := f.rejected[field]; ok {
		return specs.Result{Valid: false, Message: reason}, nil
	}
	if corrected, ok := f.repaired[field]; ok {
		return specs.Result{AutoRepaired: true, Corrected: corrected, Message: "value not in allowed set"}, nil
	}
	return specs.Result{Valid: true, Corrected: candidate}, nil
}

func chairValues(nested bool) values.MarketValues {
	v := values.MarketValues{
		CategoryNestedVisible: nested,
		PlaceholderImage1:     "https://cdn.example.com/placeholder-1.jpg",
		PlaceholderImage2:     "https://cdn.example.com/placeholder-2.jpg",
	}
	return v.WithDefaults()
}

func newTestItemMapper(v values.MarketValues, validator SpecValidator) *ItemMapper {
	log := logger.NewBaseLogger(io.Discard, "[test]")
	mctx := NewMarketContext(v)
	attachments := galleryAttachments(4)
	return NewItemMapper(
		NewFieldMapper(mctx, log),
		NewImageAssembler(attachments, v, log),
		validator,
		service.NewTextService(),
		v,
		log,
	)
}

func chairRuleSet() models.RuleSet {
	return models.RuleSet{
		CategoryID: 11,
		Category:   "Chairs",
		Rules: []models.FieldRule{
			{Field: "productName", Kind: models.MappingAttribute, Source: "title"},
			{Field: "seatMaterial", Kind: models.MappingAttribute, Source: "material"},
			{Field: "color", Kind: models.MappingAttribute, Source: "color"},
			{Field: models.FieldMainImageURL},
			{Field: models.FieldSecondaryImageURLs},
		},
	}
}

func chairProduct() *models.Product {
	return &models.Product{
		ID:    7,
		SKU:   "CHAIR-7",
		Price: 129.99,
		Attributes: map[string]string{
			"title":    "Oak Chair",
			"material": "Leather",
		},
		CategoryIDs:     []int{11},
		MainImageID:     0,
		GalleryImageIDs: []int{1, 2, 3, 4},
	}
}

func TestItemMapper_Map_buildsOrderableAndVisible(t *testing.T) {
	t.Parallel()

	validator := &fakeValidator{}
	m := newTestItemMapper(chairValues(false), validator)
	item, err := m.Map(context.Background(), chairProduct(), chairRuleSet(), 411)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	orderable := item.Payload.Orderable
	if orderable.SKU != "CHAIR-7" {
		t.Errorf("sku = %q", orderable.SKU)
	}
	if orderable.ProductIdentifiers.ProductIDType != "GTIN" {
		t.Errorf("id type = %q", orderable.ProductIdentifiers.ProductIDType)
	}
	if orderable.ProductIdentifiers.ProductID != "00000000000411" {
		t.Errorf("identifier = %q, want zero-padded GTIN-14", orderable.ProductIdentifiers.ProductID)
	}
	if orderable.Price.Currency != "USD" || orderable.Price.Amount != 129.99 {
		t.Errorf("price = %+v", orderable.Price)
	}

	if item.Payload.Visible["productName"] != "Oak Chair" {
		t.Errorf("productName = %#v", item.Payload.Visible["productName"])
	}
	if item.Payload.Visible["seatMaterial"] != "Leather" {
		t.Errorf("seatMaterial = %#v", item.Payload.Visible["seatMaterial"])
	}
	if item.Payload.Visible[models.FieldMainImageURL] != "https://cdn.example.com/main.jpg" {
		t.Errorf("main image = %#v", item.Payload.Visible[models.FieldMainImageURL])
	}
	gallery, ok := item.Payload.Visible[models.FieldSecondaryImageURLs].([]string)
	if !ok || len(gallery) != 5 {
		t.Errorf("gallery = %#v, want 5 urls", item.Payload.Visible[models.FieldSecondaryImageURLs])
	}
}

func TestItemMapper_Map_emptyFieldSkippedWithoutValidation(t *testing.T) {
	t.Parallel()

	validator := &fakeValidator{}
	m := newTestItemMapper(chairValues(false), validator)
	item, err := m.Map(context.Background(), chairProduct(), chairRuleSet(), 411)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, present := item.Payload.Visible["color"]; present {
		t.Error("absent attribute must not produce a visible field")
	}
	for _, field := range validator.calls {
		if field == "color" {
			t.Error("validator must not see fields that resolved to empty")
		}
	}
	if len(item.Warnings) != 0 {
		t.Errorf("skipping an empty optional field is not a warning, got %+v", item.Warnings)
	}
}

func TestItemMapper_Map_invalidFieldOmittedWithWarning(t *testing.T) {
	t.Parallel()

	validator := &fakeValidator{rejected: map[string]string{"seatMaterial": "value not in allowed set"}}
	m := newTestItemMapper(chairValues(false), validator)
	item, err := m.Map(context.Background(), chairProduct(), chairRuleSet(), 411)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, present := item.Payload.Visible["seatMaterial"]; present {
		t.Error("rejected field must be omitted from the payload")
	}
	if _, present := item.Payload.Visible["productName"]; !present {
		t.Error("one rejected field must not block the rest")
	}

	var found bool
	for _, w := range item.Warnings {
		if w.Field == "seatMaterial" && w.Category == "Chairs" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a structured warning for seatMaterial, got %+v", item.Warnings)
	}
}

func TestItemMapper_Map_autoRepairedFieldKeptWithWarning(t *testing.T) {
	t.Parallel()

	validator := &fakeValidator{repaired: map[string]interface{}{"seatMaterial": []interface{}{"Leather"}}}
	m := newTestItemMapper(chairValues(false), validator)
	item, err := m.Map(context.Background(), chairProduct(), chairRuleSet(), 411)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(item.Payload.Visible["seatMaterial"], []interface{}{"Leather"}) {
		t.Errorf("seatMaterial = %#v, want the repaired value", item.Payload.Visible["seatMaterial"])
	}

	var found bool
	for _, w := range item.Warnings {
		if w.Field == "seatMaterial" {
			found = true
		}
	}
	if !found {
		t.Errorf("auto-repair must surface a warning, got %+v", item.Warnings)
	}
}

func TestItemMapper_Map_imageFieldsValidatedLikeAnyOther(t *testing.T) {
	t.Parallel()

	validator := &fakeValidator{rejected: map[string]string{models.FieldMainImageURL: "host not allowed"}}
	m := newTestItemMapper(chairValues(false), validator)
	item, err := m.Map(context.Background(), chairProduct(), chairRuleSet(), 411)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	validated := make(map[string]bool, len(validator.calls))
	for _, field := range validator.calls {
		validated[field] = true
	}
	if !validated[models.FieldMainImageURL] || !validated[models.FieldSecondaryImageURLs] {
		t.Errorf("image fields must pass through spec validation, validated: %v", validator.calls)
	}

	if _, present := item.Payload.Visible[models.FieldMainImageURL]; present {
		t.Error("rejected image field must be omitted from the payload")
	}
	if _, present := item.Payload.Visible[models.FieldSecondaryImageURLs]; !present {
		t.Error("rejecting the main image must not drop the gallery")
	}

	var found bool
	for _, w := range item.Warnings {
		if w.Field == models.FieldMainImageURL && w.Reason == "host not allowed" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a structured warning for the rejected image field, got %+v", item.Warnings)
	}
}

func TestItemMapper_Map_imageShortfallSurfacesWarning(t *testing.T) {
	t.Parallel()

	// Без плейсхолдеров: две естественные картинки при минимуме пять.
	v := values.MarketValues{}.WithDefaults()
	log := logger.NewBaseLogger(io.Discard, "[test]")
	m := NewItemMapper(
		NewFieldMapper(NewMarketContext(v), log),
		NewImageAssembler(galleryAttachments(2), v, log),
		&fakeValidator{},
		service.NewTextService(),
		v,
		log,
	)

	p := chairProduct()
	p.GalleryImageIDs = []int{1, 2}
	item, err := m.Map(context.Background(), p, chairRuleSet(), 411)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var shortfalls int
	for _, w := range item.Warnings {
		if w.Field == models.FieldSecondaryImageURLs && w.Reason == "image set is 3 short of the marketplace minimum" {
			shortfalls++
		}
	}
	if shortfalls != 1 {
		t.Errorf("want exactly one shortfall warning despite two image rules, got %d in %+v", shortfalls, item.Warnings)
	}
}

func TestItemMapper_Map_nestedVisibleSection(t *testing.T) {
	t.Parallel()

	m := newTestItemMapper(chairValues(true), &fakeValidator{})
	item, err := m.Map(context.Background(), chairProduct(), chairRuleSet(), 411)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nested, ok := item.Payload.Visible["Chairs"].(map[string]interface{})
	if !ok {
		t.Fatalf("visible = %#v, want fields nested under the category name", item.Payload.Visible)
	}
	if nested["productName"] != "Oak Chair" {
		t.Errorf("nested productName = %#v", nested["productName"])
	}
}
