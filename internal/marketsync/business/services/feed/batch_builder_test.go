package feed

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"gomarketfeed_api/config/values"
	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/internal/marketsync/business/services/mapping"
	"gomarketfeed_api/internal/marketsync/business/services/pool"
	"gomarketfeed_api/internal/marketsync/business/services/specs"
	"gomarketfeed_api/pkg/business/service"
	"gomarketfeed_api/pkg/logger"
)

type fakeSource struct {
	unmappedCategories map[int]bool
}

func (f *fakeSource) ProductByID(_ context.Context, id int) (*models.Product, error) {
	return &models.Product{
		ID:          id,
		SKU:         fmt.Sprintf("SKU-%d", id),
		Price:       10,
		CategoryIDs: []int{id % 3},
		Attributes:  map[string]string{"title": fmt.Sprintf("Product %d", id)},
		MainImageID: -1,
		ExternalImageURLs: []string{
			fmt.Sprintf("https://img.example.com/%d.jpg", id),
		},
	}, nil
}

func (f *fakeSource) RuleSetByCategory(_ context.Context, categoryID int) (*models.RuleSet, error) {
	if f.unmappedCategories[categoryID] {
		return nil, nil
	}
	return &models.RuleSet{
		CategoryID: categoryID,
		Category:   fmt.Sprintf("Category-%d", categoryID),
		Rules: []models.FieldRule{
			{Field: "productName", Kind: models.MappingAttribute, Source: "title"},
		},
	}, nil
}

type fakePoolRepo struct {
	mu       sync.Mutex
	capacity int
	next     int64
	bindings map[int]int64
}

func (f *fakePoolRepo) IdentifierByProduct(_ context.Context, productID int) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.bindings[productID]
	return value, ok, nil
}

func (f *fakePoolRepo) ClaimNext(_ context.Context, productID int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bindings) >= f.capacity {
		return 0, pool.ErrPoolExhausted
	}
	f.next++
	if f.bindings == nil {
		f.bindings = make(map[int]int64)
	}
	f.bindings[productID] = f.next
	return f.next, nil
}

type passValidator struct{}

func (passValidator) GetFieldSpec(_ context.Context, _, _ string) (*models.FieldSpec, error) {
	return nil, nil
}

func (passValidator) Validate(_ context.Context, _, _ string, candidate interface{}) (specs.Result, error) {
	return specs.Result{Valid: true, Corrected: candidate}, nil
}

type noAttachments struct{}

func (noAttachments) AttachmentURL(id int) (string, error) {
	return "", fmt.Errorf("attachment %d not found", id)
}

func newTestBuilder(source *fakeSource, capacity int) *BatchBuilder {
	log := logger.NewBaseLogger(io.Discard, "[test]")
	v := values.MarketValues{}.WithDefaults()
	mctx := mapping.NewMarketContext(v)
	mapper := mapping.NewItemMapper(
		mapping.NewFieldMapper(mctx, log),
		mapping.NewImageAssembler(noAttachments{}, v, log),
		passValidator{},
		service.NewTextService(),
		v,
		log,
	)
	idPool := pool.NewIdentifierPool(&fakePoolRepo{capacity: capacity}, log)
	return NewBatchBuilder(source, idPool, mapper, v, nil, log)
}

func TestBatchBuilder_Build_partitionsIntoChunks(t *testing.T) {
	t.Parallel()

	productIDs := make([]int, 0, 450)
	for id := 3; len(productIDs) < 450; id += 3 {
		// Все товары в категории 0, чтобы ни один не ушёл в unmapped.
		productIDs = append(productIDs, id)
	}

	built, err := newTestBuilder(&fakeSource{}, 1000).Build(context.Background(), productIDs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(built.Chunks) != 3 {
		t.Fatalf("chunk count = %d, want 3", len(built.Chunks))
	}
	wantSizes := []int{200, 200, 50}
	total := make(map[int]int)
	for i, chunk := range built.Chunks {
		if len(chunk.Items) != wantSizes[i] {
			t.Errorf("chunk %d size = %d, want %d", i, len(chunk.Items), wantSizes[i])
		}
		if chunk.Chunk.ID != models.ChunkID(built.Batch.ID, i) {
			t.Errorf("chunk %d id = %q", i, chunk.Chunk.ID)
		}
		if chunk.Chunk.Status != models.ChunkPlanned {
			t.Errorf("chunk %d status = %q, want PLANNED", i, chunk.Chunk.Status)
		}
		for _, productID := range chunk.Chunk.ProductIDs {
			total[productID]++
		}
	}
	for productID, count := range total {
		if count != 1 {
			t.Errorf("product %d appears in %d chunks", productID, count)
		}
	}
	if len(total) != 450 {
		t.Errorf("products across chunks = %d, want 450", len(total))
	}
}

func TestBatchBuilder_Build_unmappedCategoryGoesToBucket(t *testing.T) {
	t.Parallel()

	source := &fakeSource{unmappedCategories: map[int]bool{1: true}}
	// id=3 -> категория 0 (замаплена), id=4 -> категория 1 (нет).
	built, err := newTestBuilder(source, 1000).Build(context.Background(), []int{3, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(built.Chunks) != 1 || len(built.Chunks[0].Items) != 1 {
		t.Fatalf("mapped items = %+v, want exactly one", built.Chunks)
	}
	if len(built.Batch.Unmapped) != 1 || built.Batch.Unmapped[0].ProductID != 4 {
		t.Fatalf("unmapped = %+v, want product 4", built.Batch.Unmapped)
	}
	if built.Batch.Unmapped[0].Reason == "" {
		t.Error("unmapped product must carry a reason")
	}
}

func TestBatchBuilder_Build_poolExhaustionSkipsProduct(t *testing.T) {
	t.Parallel()

	built, err := newTestBuilder(&fakeSource{}, 1).Build(context.Background(), []int{3, 6})
	if err != nil {
		t.Fatalf("pool exhaustion must not fail the batch: %v", err)
	}

	if len(built.Chunks) != 1 || len(built.Chunks[0].Items) != 1 {
		t.Fatalf("mapped items = %+v, want exactly one", built.Chunks)
	}
	if len(built.Batch.Unmapped) != 1 || built.Batch.Unmapped[0].ProductID != 6 {
		t.Fatalf("unmapped = %+v, want product 6", built.Batch.Unmapped)
	}
}

func TestBatchBuilder_Build_deduplicatesInput(t *testing.T) {
	t.Parallel()

	built, err := newTestBuilder(&fakeSource{}, 1000).Build(context.Background(), []int{3, 3, 3, 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(built.Chunks) != 1 || len(built.Chunks[0].Items) != 2 {
		t.Fatalf("mapped items = %d, want 2 after dedupe", len(built.Chunks[0].Items))
	}
}
