package web

import (
	"log"
	"net/http"

	"gomarketfeed_api/internal/marketsync/app/web/handlers"
	"gomarketfeed_api/metrics"
	"gomarketfeed_api/pkg/middleware"
)

// SetupRoutes регистрирует маршруты движка синхронизации на mux.
// Каждый обработчик проверяется Ping'ом до регистрации: поднимать сервис
// с мёртвой базой бессмысленно.
func SetupRoutes(mux *http.ServeMux, syncHandler *handlers.SyncHandler, specHandler *handlers.SpecHandler, poolHandler *handlers.PoolHandler) {
	for _, handler := range []handlers.Handler{syncHandler, specHandler, poolHandler} {
		if err := handler.Ping(); err != nil {
			log.Fatalf("Failed to ping database: %v", err)
		}
	}

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, middleware.PrometheusMiddleware(handlerFunc))
	}

	handle("/api/sync", syncHandler.SyncProductsHandler)
	handle("/api/sync/poll", syncHandler.PollChunkHandler)
	handle("/api/batches/report", syncHandler.BatchReportHandler)

	handle("/api/specs", specHandler.CategorySpecsHandler)
	handle("/api/specs/invalidate", specHandler.InvalidateHandler)

	handle("/api/pool/seed", poolHandler.SeedPoolHandler)
	handle("/api/pool/status", poolHandler.PoolStatusHandler)

	handle("/api/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	mux.Handle("/metrics", metrics.MetricsHandler())
}
