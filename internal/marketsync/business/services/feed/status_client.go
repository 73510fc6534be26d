package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"gomarketfeed_api/internal/marketsync/business/dto/response"
	"gomarketfeed_api/internal/marketsync/business/services"
	"gomarketfeed_api/pkg/logger"
)

const statusPathTemplate = "%s/feeds/%s/status?includeDetails=true&offset=%d&limit=%d"

const statusRequestRate = 30

// StatusClient читает одну страницу статуса фида у маркетплейса.
type StatusClient struct {
	baseUrl string
	auth    services.MarketplaceAuth
	limiter *rate.Limiter
	client  *http.Client
	log     logger.Logger
}

func NewStatusClient(baseUrl string, auth services.MarketplaceAuth, log logger.Logger) *StatusClient {
	return &StatusClient{
		baseUrl: baseUrl,
		auth:    auth,
		limiter: rate.NewLimiter(rate.Every(time.Minute/statusRequestRate), statusRequestRate),
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

func (c *StatusClient) FetchFeedStatus(ctx context.Context, feedID string, offset, limit int) (*response.FeedStatusResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	requestUrl := fmt.Sprintf(statusPathTemplate, c.baseUrl, url.PathEscape(feedID), offset, limit)
	req, err := http.NewRequestWithContext(ctx, "GET", requestUrl, nil)
	if err != nil {
		return nil, err
	}
	c.auth.Sign(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching status for feed %s: %w", feedID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %s", resp.Status)
	}

	var statusResponse response.FeedStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&statusResponse); err != nil {
		return nil, fmt.Errorf("decoding status response: %w", err)
	}
	return &statusResponse, nil
}
