package response

// FeedSubmitResponse -- ответ маркетплейса на загрузку фида. FeedID вместе
// с предупреждениями означает «принято»: окончательный вердикт выносит
// асинхронный пайплайн маркетплейса.
type FeedSubmitResponse struct {
	FeedID   string        `json:"feedId"`
	Warnings []FeedWarning `json:"warnings,omitempty"`
	Errors   []FeedWarning `json:"errors,omitempty"`
}

type FeedWarning struct {
	Code        string `json:"code"`
	Field       string `json:"field,omitempty"`
	Description string `json:"description,omitempty"`
}

// FeedStatusResponse -- агрегаты плюс пагинированный список по-товарных
// результатов. Пагинация сходится, когда суммарная длина ItemDetails по
// страницам достигает ItemsReceived.
type FeedStatusResponse struct {
	FeedID          string `json:"feedId"`
	FeedStatus      string `json:"feedStatus"`
	ItemsReceived   int    `json:"itemsReceived"`
	ItemsSucceeded  int    `json:"itemsSucceeded"`
	ItemsFailed     int    `json:"itemsFailed"`
	ItemsProcessing int    `json:"itemsProcessing"`

	ItemDetails ItemDetails `json:"itemDetails"`
}

type ItemDetails struct {
	ItemIngestionStatus []ItemIngestionStatus `json:"itemIngestionStatus"`
}

type ItemIngestionStatus struct {
	SKU             string           `json:"sku"`
	IngestionStatus string           `json:"ingestionStatus"`
	IngestionErrors []IngestionError `json:"ingestionErrors,omitempty"`
}

type IngestionError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}
