package services

import (
	"net/http"
)

// MarketplaceAuth подписывает исходящие запросы к API маркетплейса.
// Получение и ротация токена -- вне движка синхронизации.
type MarketplaceAuth interface {
	Sign(request *http.Request)
}

// TokenAuth -- статический токен доступа из конфигурации.
type TokenAuth struct {
	token string
}

func NewTokenAuth(token string) *TokenAuth {
	if token == "" {
		return nil
	}
	return &TokenAuth{token: token}
}

func (t *TokenAuth) Sign(request *http.Request) {
	request.Header.Set("Authorization", "Bearer "+t.token)
}
