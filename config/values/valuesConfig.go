package values

type Config interface {
}

// MarketValues -- настройки целевого маркетплейса, которые не приходят из его схемы.
type MarketValues struct {
	Mart          string `yaml:"mart"`
	Locale        string `yaml:"locale"`
	SchemaVersion string `yaml:"schema-version"`

	// Visible-секция вкладывается под имя категории (зависит от рынка, не от категории).
	CategoryNestedVisible bool `yaml:"category-nested-visible"`

	ProductIDType string `yaml:"product-id-type"`
	Currency      string `yaml:"currency"`

	ChunkSize       int `yaml:"chunk-size"`
	StatusPageLimit int `yaml:"status-page-limit"`
	StatusMaxPages  int `yaml:"status-max-pages"`

	MinSecondaryImages int    `yaml:"min-secondary-images"`
	PlaceholderImage1  string `yaml:"placeholder-image-1"`
	PlaceholderImage2  string `yaml:"placeholder-image-2"`

	FulfillmentLagDays  int    `yaml:"fulfillment-lag-days"`
	FulfillmentCenterID string `yaml:"fulfillment-center-id"`
}

// WithDefaults заполняет нулевые поля наблюдаемыми требованиями маркетплейса.
func (v MarketValues) WithDefaults() MarketValues {
	if v.Locale == "" {
		v.Locale = "en"
	}
	if v.SchemaVersion == "" {
		v.SchemaVersion = "4.2"
	}
	if v.ProductIDType == "" {
		v.ProductIDType = "GTIN"
	}
	if v.Currency == "" {
		v.Currency = "USD"
	}
	if v.ChunkSize == 0 {
		v.ChunkSize = 200
	}
	if v.StatusPageLimit == 0 {
		v.StatusPageLimit = 50
	}
	if v.StatusMaxPages == 0 {
		v.StatusMaxPages = 20
	}
	if v.MinSecondaryImages == 0 {
		v.MinSecondaryImages = 5
	}
	if v.FulfillmentLagDays == 0 {
		v.FulfillmentLagDays = 1
	}
	return v
}

type EscalationValues struct {
	// Коды предупреждений, при которых сабмит считается проваленным.
	EscalateWarningCodes []string `yaml:"escalate-warning-codes"`
}
