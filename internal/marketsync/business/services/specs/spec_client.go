package specs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"gomarketfeed_api/internal/marketsync/business/dto/response"
	"gomarketfeed_api/internal/marketsync/business/models"
	"gomarketfeed_api/internal/marketsync/business/services"
	"gomarketfeed_api/pkg/logger"
)

const specPathTemplate = "%s/items/spec?category=%s"

// Лимит запросов к ручке спецификаций: схемы меняются редко,
// чаще дёргать её нет смысла.
const specRequestRate = 5

// SpecClient забирает спецификации полей категории у маркетплейса.
type SpecClient struct {
	baseUrl string
	auth    services.MarketplaceAuth
	limiter *rate.Limiter
	client  *http.Client
	log     logger.Logger
}

func NewSpecClient(baseUrl string, auth services.MarketplaceAuth, log logger.Logger) *SpecClient {
	return &SpecClient{
		baseUrl: baseUrl,
		auth:    auth,
		limiter: rate.NewLimiter(rate.Every(time.Minute/specRequestRate), specRequestRate),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (c *SpecClient) FetchCategorySpecs(ctx context.Context, category string) (map[string]models.FieldSpec, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	requestUrl := fmt.Sprintf(specPathTemplate, c.baseUrl, url.QueryEscape(category))
	req, err := http.NewRequestWithContext(ctx, "GET", requestUrl, nil)
	if err != nil {
		return nil, err
	}
	c.auth.Sign(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching specs for category %q: %w", category, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %s", resp.Status)
	}

	var specResponse response.CategorySpecResponse
	if err := json.NewDecoder(resp.Body).Decode(&specResponse); err != nil {
		return nil, fmt.Errorf("decoding spec response: %w", err)
	}

	specs := make(map[string]models.FieldSpec, len(specResponse.Fields))
	for _, field := range specResponse.Fields {
		specs[field.Name] = models.FieldSpec{
			Category:      category,
			Field:         field.Name,
			Type:          models.SpecType(field.Type),
			Required:      models.RequiredLevel(field.RequiredLevel),
			AllowedValues: field.AllowedValues,
		}
	}

	c.log.Log("fetched %d field specs for category %q", len(specs), category)
	return specs, nil
}
