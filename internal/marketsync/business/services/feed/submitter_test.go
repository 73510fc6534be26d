package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gomarketfeed_api/config/values"
	"gomarketfeed_api/internal/marketsync/business/dto/request"
	"gomarketfeed_api/internal/marketsync/business/dto/response"
	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/internal/marketsync/business/services"
	"gomarketfeed_api/pkg/logger"
)

type fakeSubmitRepo struct {
	mu    sync.Mutex
	calls map[string]string
	fail  error
}

func (f *fakeSubmitRepo) SetChunkFeedID(_ context.Context, chunkID, feedID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if f.calls == nil {
		f.calls = make(map[string]string)
	}
	f.calls[chunkID] = feedID
	return nil
}

func newTestSubmitter(baseUrl string, repo SubmitRepository, escalate []string) *FeedSubmitter {
	v := values.MarketValues{Mart: "TESTMART"}.WithDefaults()
	return NewFeedSubmitter(
		baseUrl,
		services.NewTokenAuth("test-key"),
		repo,
		v,
		NewWarningPolicy(escalate),
		nil,
		logger.NewBaseLogger(io.Discard, "[test]"),
	)
}

func testItems(n int) []request.ItemPayload {
	items := make([]request.ItemPayload, n)
	for i := range items {
		items[i] = request.ItemPayload{Orderable: request.Orderable{SKU: "SKU"}}
	}
	return items
}

func TestFeedSubmitter_Submit_feedIDWithWarningsIsAccepted(t *testing.T) {
	t.Parallel()

	var envelope request.FeedEnvelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			t.Errorf("decoding envelope: %v", err)
		}
		json.NewEncoder(w).Encode(response.FeedSubmitResponse{
			FeedID: "FEED-1",
			Warnings: []response.FeedWarning{
				{Code: "MISSING_RECOMMENDED", Field: "color"},
			},
		})
	}))
	defer server.Close()

	repo := &fakeSubmitRepo{}
	chunk := &models.Chunk{ID: "batch-0", Status: models.ChunkPlanned}
	err := newTestSubmitter(server.URL, repo, nil).Submit(context.Background(), chunk, testItems(2))
	if err != nil {
		t.Fatalf("a feedId with warnings means accepted, got error: %v", err)
	}

	if chunk.FeedID != "FEED-1" {
		t.Errorf("chunk feed id = %q", chunk.FeedID)
	}
	if chunk.Status != models.ChunkSubmitted {
		t.Errorf("chunk status = %q, want SUBMITTED", chunk.Status)
	}
	if chunk.SubmittedAt == nil {
		t.Error("submitted timestamp not set")
	}
	if repo.calls["batch-0"] != "FEED-1" {
		t.Errorf("persisted feed id = %q", repo.calls["batch-0"])
	}
	if envelope.Header.Mart != "TESTMART" || envelope.Header.Version != "4.2" {
		t.Errorf("envelope header = %+v", envelope.Header)
	}
}

func TestFeedSubmitter_Submit_missingFeedIDIsSubmissionError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(response.FeedSubmitResponse{
			Errors: []response.FeedWarning{{Code: "INVALID_FEED", Description: "empty mart"}},
		})
	}))
	defer server.Close()

	chunk := &models.Chunk{ID: "batch-0", Status: models.ChunkPlanned}
	err := newTestSubmitter(server.URL, &fakeSubmitRepo{}, nil).Submit(context.Background(), chunk, testItems(1))

	var submissionErr *SubmissionError
	if !errors.As(err, &submissionErr) {
		t.Fatalf("got %v, want *SubmissionError", err)
	}
	if submissionErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status code = %d", submissionErr.StatusCode)
	}
	if chunk.Status != models.ChunkError {
		t.Errorf("chunk status = %q, want ERROR", chunk.Status)
	}
}

func TestFeedSubmitter_Submit_escalatedWarningFailsSubmission(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(response.FeedSubmitResponse{
			FeedID:   "FEED-2",
			Warnings: []response.FeedWarning{{Code: "PRICE_OUT_OF_RANGE"}},
		})
	}))
	defer server.Close()

	repo := &fakeSubmitRepo{}
	chunk := &models.Chunk{ID: "batch-0", Status: models.ChunkPlanned}
	err := newTestSubmitter(server.URL, repo, []string{"PRICE_OUT_OF_RANGE"}).Submit(context.Background(), chunk, testItems(1))

	var submissionErr *SubmissionError
	if !errors.As(err, &submissionErr) {
		t.Fatalf("got %v, want *SubmissionError for escalated warning", err)
	}
	if len(repo.calls) != 0 {
		t.Error("escalated submission must not persist a feed id")
	}
}

func TestFeedSubmitter_Submit_persistenceFailureKeepsFeedBinding(t *testing.T) {
	t.Parallel()

	var uploads int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		uploads++
		json.NewEncoder(w).Encode(response.FeedSubmitResponse{FeedID: "FEED-3"})
	}))
	defer server.Close()

	repo := &fakeSubmitRepo{fail: errors.New("connection reset")}
	chunk := &models.Chunk{ID: "batch-0", Status: models.ChunkPlanned}
	submitter := newTestSubmitter(server.URL, repo, nil)

	if err := submitter.Submit(context.Background(), chunk, testItems(1)); err == nil {
		t.Fatal("expected an error when the feed binding cannot be persisted")
	}
	if chunk.FeedID != "FEED-3" {
		t.Errorf("chunk feed id = %q, accepted feed must stay bound in memory", chunk.FeedID)
	}
	if chunk.Status != models.ChunkSubmitted {
		t.Errorf("chunk status = %q, want SUBMITTED", chunk.Status)
	}

	// Повторная попытка не должна создать второй фид с теми же товарами.
	if err := submitter.Submit(context.Background(), chunk, testItems(1)); err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if uploads != 1 {
		t.Errorf("marketplace hit %d times, want 1", uploads)
	}
}

func TestFeedSubmitter_Submit_alreadySubmittedChunkIsNoop(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("already submitted chunk must not hit the marketplace")
	}))
	defer server.Close()

	repo := &fakeSubmitRepo{}
	chunk := &models.Chunk{ID: "batch-0", FeedID: "FEED-OLD", Status: models.ChunkSubmitted}
	if err := newTestSubmitter(server.URL, repo, nil).Submit(context.Background(), chunk, testItems(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunk.FeedID != "FEED-OLD" {
		t.Errorf("feed id changed to %q", chunk.FeedID)
	}
	if len(repo.calls) != 0 {
		t.Error("noop submit must not touch the repository")
	}
}
