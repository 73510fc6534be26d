package main

import (
	"flag"
	"log"

	"gomarketfeed_api/config"
	"gomarketfeed_api/internal/marketsync/app"
	"gomarketfeed_api/pkg/dbconnect/postgres"
	"gomarketfeed_api/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the application config")
	rulesPath := flag.String("rules", "rules.yaml", "path to the category mapping rules")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	defer logger.Sync()

	appConfig, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("Config file %s not loaded (%v), falling back to environment", *configPath, err)
		appConfig = &config.AppConfig{
			Marketplace: *config.GetMarketplaceConfig(),
			Postgres:    *config.GetConfig(),
		}
		appConfig.Marketplace.Values = appConfig.Marketplace.Values.WithDefaults()
	}

	connector := postgres.NewPgConnector(&appConfig.Postgres, logger.NewLogger("[Postgres]"))
	server := app.NewMarketSyncServer(connector, appConfig.Marketplace, *rulesPath, *addr)
	server.Run()
}
