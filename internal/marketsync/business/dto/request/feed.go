package request

// Формат конверта диктуется маркетплейсом; менять форму нельзя,
// иначе фид не принимается.

type FeedEnvelope struct {
	Header FeedHeader    `json:"ItemFeedHeader"`
	Items  []ItemPayload `json:"Item"`
}

type FeedHeader struct {
	Mart    string `json:"mart"`
	Locale  string `json:"locale"`
	Version string `json:"version"`
}

// ItemPayload -- один товар фида: orderable-секция с идентификаторами и
// ценой и visible-секция с провалидированными полями. Visible может быть
// вложена на один уровень под имя категории -- зависит от рынка.
type ItemPayload struct {
	Orderable Orderable              `json:"Orderable"`
	Visible   map[string]interface{} `json:"Visible"`
}

type Orderable struct {
	SKU                string             `json:"sku"`
	ProductIdentifiers ProductIdentifiers `json:"productIdentifiers"`
	Price              Price              `json:"price"`
}

type ProductIdentifiers struct {
	ProductIDType string `json:"productIdType"`
	ProductID     string `json:"productId"`
}

type Price struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}
