package app

import (
	"log"
	"net/http"
	"time"

	"gomarketfeed_api/config"
	"gomarketfeed_api/internal/marketsync/app/web"
	"gomarketfeed_api/internal/marketsync/app/web/handlers"
	"gomarketfeed_api/internal/marketsync/business/services"
	"gomarketfeed_api/internal/marketsync/business/services/feed"
	"gomarketfeed_api/internal/marketsync/business/services/mapping"
	"gomarketfeed_api/internal/marketsync/business/services/pool"
	"gomarketfeed_api/internal/marketsync/business/services/rules"
	"gomarketfeed_api/internal/marketsync/business/services/specs"
	"gomarketfeed_api/internal/marketsync/storage"
	"gomarketfeed_api/metrics"
	migrate "gomarketfeed_api/migrations/marketsync"
	"gomarketfeed_api/pkg/business/service"
	"gomarketfeed_api/pkg/dbconnect"
	"gomarketfeed_api/pkg/dbconnect/migration"
	"gomarketfeed_api/pkg/logger"
)

// MarketSyncServer -- сборка движка синхронизации: миграции, сервисы,
// админские ручки.
type MarketSyncServer struct {
	dbconnect.Database
	config    config.MarketplaceConfig
	rulesPath string
	addr      string
	log       logger.Logger
}

func NewMarketSyncServer(connector dbconnect.Database, marketConfig config.MarketplaceConfig, rulesPath, addr string) *MarketSyncServer {
	return &MarketSyncServer{
		Database:  connector,
		config:    marketConfig,
		rulesPath: rulesPath,
		addr:      addr,
		log:       logger.NewLogger("[MarketSyncServer]"),
	}
}

func (s *MarketSyncServer) Run() {
	db, err := s.Connect()
	if err != nil {
		s.log.Error("Error connecting to PostgreSQL: %s", err)
		return
	}
	defer db.Close()

	migrationApply := []migration.MigrationInterface{
		&migrate.MigrationsSchema{},
		&migrate.MarketsyncSchema{},
		&migrate.IdentifierPoolTable{},
		&migrate.BatchesTable{},
		&migrate.ChunksTable{},
		&migrate.SnapshotsTable{},
		&migrate.UnmappedTable{},
		&migrate.SpecCacheTable{},
	}
	for _, _migration := range migrationApply {
		if err := _migration.UpMigration(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	}
	s.log.Log("marketsync migrations applied successfully")

	ruleSets, err := rules.LoadFile(s.rulesPath, logger.NewLogger("[RulesLoader]"))
	if err != nil {
		log.Fatalf("Loading mapping rules failed: %v", err)
	}

	auth := services.NewTokenAuth(s.config.ApiKey)
	if auth == nil {
		log.Fatalf("Marketplace api key is not configured")
	}

	marketValues := s.config.Values
	stats := &metrics.SyncMetrics{}

	specService := specs.NewSpecService(
		specs.NewSpecClient(s.config.BaseUrl, auth, logger.NewLogger("[SpecClient]")),
		marketValues.Locale,
		logger.NewLogger("[SpecService]"),
	).WithStore(storage.NewSpecRepository(db, logger.NewLogger("[SpecRepository]")))

	mctx := mapping.NewMarketContext(marketValues)
	mapperLog := logger.NewLogger("[ItemMapper]")
	itemMapper := mapping.NewItemMapper(
		mapping.NewFieldMapper(mctx, mapperLog),
		mapping.NewImageAssembler(storage.NewAttachmentStore(db), marketValues, mapperLog),
		specService,
		service.NewTextService(),
		marketValues,
		mapperLog,
	)

	poolRepo := storage.NewPoolRepository(db, logger.NewLogger("[PoolRepository]"))
	identifierPool := pool.NewIdentifierPool(poolRepo, logger.NewLogger("[IdentifierPool]"))
	productSource := storage.NewProductSource(db, ruleSets, logger.NewLogger("[ProductSource]"))
	batchRepo := storage.NewBatchRepository(db, logger.NewLogger("[BatchRepository]"))

	builder := feed.NewBatchBuilder(productSource, identifierPool, itemMapper, marketValues, stats, logger.NewLogger("[BatchBuilder]"))
	submitter := feed.NewFeedSubmitter(
		s.config.BaseUrl,
		auth,
		batchRepo,
		marketValues,
		feed.NewWarningPolicy(s.config.Escalation.EscalateWarningCodes),
		stats,
		logger.NewLogger("[FeedSubmitter]"),
	)
	reconciler := feed.NewReconciler(
		feed.NewStatusClient(s.config.BaseUrl, auth, logger.NewLogger("[StatusClient]")),
		batchRepo,
		marketValues,
		stats,
		logger.NewLogger("[Reconciler]"),
	)

	mux := http.NewServeMux()
	web.SetupRoutes(mux,
		handlers.NewSyncHandler(s.Database, builder, submitter, reconciler, batchRepo, logger.NewLogger("[SyncHandler]")),
		handlers.NewSpecHandler(s.Database, specService, logger.NewLogger("[SpecHandler]")),
		handlers.NewPoolHandler(s.Database, poolRepo, logger.NewLogger("[PoolHandler]")),
	)

	server := &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	s.log.Log("marketsync server listening on %s", s.addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
