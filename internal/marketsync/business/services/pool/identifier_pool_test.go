package pool

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"gomarketfeed_api/pkg/logger"
)

// fakePoolRepo хранит пул в памяти; ClaimNext атомарен за счёт мьютекса,
// как атомарный conditional update в БД.
type fakePoolRepo struct {
	mu        sync.Mutex
	free      []int64
	byProduct map[int]int64
}

func newFakePoolRepo(values ...int64) *fakePoolRepo {
	return &fakePoolRepo{
		free:      values,
		byProduct: make(map[int]int64),
	}
}

func (f *fakePoolRepo) IdentifierByProduct(ctx context.Context, productID int) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byProduct[productID]
	return v, ok, nil
}

func (f *fakePoolRepo) ClaimNext(ctx context.Context, productID int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byProduct[productID]; ok {
		return 0, errors.New("duplicate binding for product")
	}
	if len(f.free) == 0 {
		return 0, ErrPoolExhausted
	}
	v := f.free[0]
	f.free = f.free[1:]
	f.byProduct[productID] = v
	return v, nil
}

func testLogger() logger.Logger {
	return logger.NewBaseLogger(io.Discard, "[test]")
}

func TestIdentifierPool_Allocate_isIdempotentPerProduct(t *testing.T) {
	t.Parallel()

	repo := newFakePoolRepo(100, 101, 102)
	p := NewIdentifierPool(repo, testLogger())

	first, err := p.Allocate(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Allocate(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("repeated allocate returned %d, want %d", second, first)
	}
	if got := len(repo.free); got != 2 {
		t.Errorf("pool consumed %d entries, want 1", 3-got)
	}
}

func TestIdentifierPool_Allocate_concurrentDistinctProducts(t *testing.T) {
	t.Parallel()

	const n = 20
	values := make([]int64, n)
	for i := range values {
		values[i] = int64(1000 + i)
	}
	repo := newFakePoolRepo(values...)
	p := NewIdentifierPool(repo, testLogger())

	var wg sync.WaitGroup
	results := make([]int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := p.Allocate(context.Background(), i)
			if err != nil {
				t.Errorf("allocate product %d: %v", i, err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]int, n)
	for i, v := range results {
		if prev, ok := seen[v]; ok {
			t.Errorf("identifier %d claimed by both product %d and product %d", v, prev, i)
		}
		seen[v] = i
	}
	if len(repo.free) != 0 {
		t.Errorf("expected pool drained, %d entries left", len(repo.free))
	}
}

func TestIdentifierPool_Allocate_exhausted(t *testing.T) {
	t.Parallel()

	repo := newFakePoolRepo(500)
	p := NewIdentifierPool(repo, testLogger())

	if _, err := p.Allocate(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := p.Allocate(context.Background(), 2)
	if !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("got error %v, want ErrPoolExhausted", err)
	}
}

func TestIdentifierPool_Allocate_lostRaceFallsBackToExistingBinding(t *testing.T) {
	t.Parallel()

	repo := newFakePoolRepo(900)
	p := NewIdentifierPool(repo, testLogger())

	// Симулируем проигранную гонку: запись уже привязана, ClaimNext падает
	// на уникальном индексе.
	repo.byProduct[42] = 900
	repo.free = nil

	// IdentifierByProduct найдёт привязку раньше ClaimNext.
	v, err := p.Allocate(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 900 {
		t.Errorf("got %d, want 900", v)
	}
}
