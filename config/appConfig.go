package config

import (
	"os"

	"gomarketfeed_api/config/values"

	"gopkg.in/yaml.v3"
)

type Config interface {
}

type MarketplaceConfig struct {
	ApiKey     string                  `yaml:"api_key"`
	BaseUrl    string                  `yaml:"base_url"`
	Values     values.MarketValues     `yaml:"default_values"`
	Escalation values.EscalationValues `yaml:"escalation"`
}

type AppConfig struct {
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Postgres    PostgresConfig    `yaml:"postgres"`
}

func LoadConfig(filename string) (*AppConfig, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	config := &AppConfig{}
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}
	config.Marketplace.Values = config.Marketplace.Values.WithDefaults()
	return config, nil
}
