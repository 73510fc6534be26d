package mapping

import (
	"strconv"

	"golang.org/x/text/cases"

	"gomarketfeed_api/internal/marketsync/business/models"
)

// GeneratorFunc -- чистая функция (товар, рыночный контекст) -> значение.
// Возвращает nil, когда обязательных входов нет; исключений не бросает.
type GeneratorFunc func(p *models.Product, mctx MarketContext) interface{}

// Каталог генераторов фиксированный и явный: добавление нового -- строка в
// карте, а не ветка в switch.
func defaultGenerators() map[string]GeneratorFunc {
	return map[string]GeneratorFunc{
		"fulfillment_lag":    generateFulfillmentLag,
		"release_date":       generateReleaseDate,
		"fulfillment_center": generateFulfillmentCenter,
		"brand_title":        generateBrandTitle,
		"ship_weight":        generateShipWeight,
	}
}

// Срок отгрузки из конфигурации магазина.
func generateFulfillmentLag(_ *models.Product, mctx MarketContext) interface{} {
	if mctx.Values.FulfillmentLagDays <= 0 {
		return nil
	}
	return strconv.Itoa(mctx.Values.FulfillmentLagDays)
}

// Дата релиза из даты публикации товара на витрине.
func generateReleaseDate(p *models.Product, _ MarketContext) interface{} {
	if p.PublishedAt == nil {
		return nil
	}
	return p.PublishedAt.Format("2006-01-02")
}

// Идентификатор фулфилмент-центра из рыночной конфигурации.
func generateFulfillmentCenter(_ *models.Product, mctx MarketContext) interface{} {
	if mctx.Values.FulfillmentCenterID == "" {
		return nil
	}
	return mctx.Values.FulfillmentCenterID
}

// Бренд с локале-зависимой капитализацией.
func generateBrandTitle(p *models.Product, mctx MarketContext) interface{} {
	if p.Brand == "" {
		return nil
	}
	return cases.Title(mctx.Locale).String(p.Brand)
}

// Вес отгрузки; маркетплейс ждёт строку с фиксированной точностью.
func generateShipWeight(p *models.Product, _ MarketContext) interface{} {
	if p.Weight <= 0 {
		return nil
	}
	return strconv.FormatFloat(p.Weight, 'f', 2, 64)
}
