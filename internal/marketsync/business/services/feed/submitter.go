package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"gomarketfeed_api/config/values"
	"gomarketfeed_api/internal/marketsync/business/dto/request"
	"gomarketfeed_api/internal/marketsync/business/dto/response"
	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/internal/marketsync/business/services"
	"gomarketfeed_api/metrics"
	"gomarketfeed_api/pkg/logger"
)

const feedPathTemplate = "%s/feeds?feedType=item"

// Лимит отправок фидов: маркетплейс режет частые загрузки жёстче,
// чем чтение статусов.
const feedSubmitRate = 10

// SubmissionError -- отказ маркетплейса принять фид целиком: нет feedId.
type SubmissionError struct {
	StatusCode int
	Reason     string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("feed submission rejected (status %d): %s", e.StatusCode, e.Reason)
}

// SubmitRepository фиксирует привязку чанка к фиду. Привязка однократная:
// повторная попытка для уже отправленного чанка ничего не перезаписывает.
type SubmitRepository interface {
	SetChunkFeedID(ctx context.Context, chunkID, feedID string, submittedAt time.Time) error
}

// WarningPolicy решает, какие предупреждения маркетплейса при принятом фиде
// считать провалом отправки.
type WarningPolicy struct {
	escalate map[string]struct{}
}

func NewWarningPolicy(codes []string) WarningPolicy {
	escalate := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		escalate[code] = struct{}{}
	}
	return WarningPolicy{escalate: escalate}
}

// Escalates возвращает первый код предупреждения из эскалируемого списка.
func (p WarningPolicy) Escalates(warnings []response.FeedWarning) (string, bool) {
	for _, warning := range warnings {
		if _, ok := p.escalate[warning.Code]; ok {
			return warning.Code, true
		}
	}
	return "", false
}

// FeedSubmitter отправляет чанк как один фид маркетплейса.
// feedId в ответе означает «принято», даже с предупреждениями: вердикт по
// товарам выносит асинхронный пайплайн, его читает Reconciler.
type FeedSubmitter struct {
	baseUrl string
	auth    services.MarketplaceAuth
	repo    SubmitRepository
	limiter *rate.Limiter
	client  *http.Client
	values  values.MarketValues
	policy  WarningPolicy
	stats   *metrics.SyncMetrics
	log     logger.Logger
}

func NewFeedSubmitter(baseUrl string, auth services.MarketplaceAuth, repo SubmitRepository, v values.MarketValues, policy WarningPolicy, stats *metrics.SyncMetrics, log logger.Logger) *FeedSubmitter {
	return &FeedSubmitter{
		baseUrl: baseUrl,
		auth:    auth,
		repo:    repo,
		limiter: rate.NewLimiter(rate.Every(time.Minute/feedSubmitRate), feedSubmitRate),
		client:  &http.Client{Timeout: 60 * time.Second},
		values:  v,
		policy:  policy,
		stats:   stats,
		log:     log,
	}
}

// Submit отправляет чанк и мутирует его: FeedID, SubmittedAt, Status.
// Для чанка с уже выставленным FeedID это no-op -- повторная отправка
// создала бы на маркетплейсе второй фид с теми же товарами.
func (s *FeedSubmitter) Submit(ctx context.Context, chunk *models.Chunk, items []request.ItemPayload) error {
	if chunk.FeedID != "" {
		s.log.Log("chunk %s already submitted as feed %s, skipping", chunk.ID, chunk.FeedID)
		return nil
	}
	if len(items) == 0 {
		return fmt.Errorf("chunk %s has no items to submit", chunk.ID)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	envelope := request.FeedEnvelope{
		Header: request.FeedHeader{
			Mart:    s.values.Mart,
			Locale:  s.values.Locale,
			Version: s.values.SchemaVersion,
		},
		Items: items,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding feed envelope: %w", err)
	}

	requestUrl := fmt.Sprintf(feedPathTemplate, s.baseUrl)
	req, err := http.NewRequestWithContext(ctx, "POST", requestUrl, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth.Sign(req)

	resp, err := s.client.Do(req)
	if err != nil {
		s.recordFailure(chunk, "transport")
		return fmt.Errorf("submitting chunk %s: %w", chunk.ID, err)
	}
	defer resp.Body.Close()

	submitResponse, decodeErr := decodeSubmitResponse(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest || decodeErr != nil || submitResponse.FeedID == "" {
		s.recordFailure(chunk, "rejected")
		return &SubmissionError{
			StatusCode: resp.StatusCode,
			Reason:     rejectionReason(submitResponse, decodeErr),
		}
	}

	for _, warning := range submitResponse.Warnings {
		s.log.Warn("chunk %s: marketplace warning %s (%s): %s",
			chunk.ID, warning.Code, warning.Field, warning.Description)
	}
	if code, escalated := s.policy.Escalates(submitResponse.Warnings); escalated {
		s.recordFailure(chunk, "escalated")
		return &SubmissionError{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("warning %s is configured as fatal", code),
		}
	}

	// Фид уже принят маркетплейсом: привязку на чанке выставляем до записи
	// в базу, иначе повторный Submit после отказа репозитория загрузил бы
	// второй фид с теми же товарами.
	submittedAt := time.Now().UTC()
	chunk.FeedID = submitResponse.FeedID
	chunk.SubmittedAt = &submittedAt
	chunk.Status = models.ChunkSubmitted

	if err := s.repo.SetChunkFeedID(ctx, chunk.ID, submitResponse.FeedID, submittedAt); err != nil {
		s.log.Error("chunk %s accepted as feed %s but binding not persisted: %v", chunk.ID, chunk.FeedID, err)
		return fmt.Errorf("persisting feed id for chunk %s: %w", chunk.ID, err)
	}

	metrics.RecordSubmission("accepted")
	if s.stats != nil {
		s.stats.SubmittedChunks.Add(1)
	}
	s.log.Log("chunk %s accepted as feed %s (%d items, %d warnings)",
		chunk.ID, chunk.FeedID, len(items), len(submitResponse.Warnings))
	return nil
}

func (s *FeedSubmitter) recordFailure(chunk *models.Chunk, outcome string) {
	chunk.Status = models.ChunkError
	metrics.RecordSubmission(outcome)
	if s.stats != nil {
		s.stats.FailedChunks.Add(1)
	}
}

func decodeSubmitResponse(body io.Reader) (response.FeedSubmitResponse, error) {
	var submitResponse response.FeedSubmitResponse
	err := json.NewDecoder(body).Decode(&submitResponse)
	return submitResponse, err
}

func rejectionReason(submitResponse response.FeedSubmitResponse, decodeErr error) string {
	if decodeErr != nil {
		return fmt.Sprintf("undecodable response: %v", decodeErr)
	}
	if len(submitResponse.Errors) > 0 {
		first := submitResponse.Errors[0]
		return fmt.Sprintf("%s: %s", first.Code, first.Description)
	}
	return "response carries no feedId"
}
