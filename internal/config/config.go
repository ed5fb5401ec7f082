package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// TokenConfig describes one token ledger deployed at startup.
type TokenConfig struct {
	Name   string `mapstructure:"name"`
	Symbol string `mapstructure:"symbol"`
	Supply string `mapstructure:"supply"` // whole tokens, minted to the deployer
}

// Network maps deployed contract addresses for one network id, so external
// clients can locate the token and exchange instances they should talk to.
type Network struct {
	Exchange string            `mapstructure:"exchange"`
	Tokens   map[string]string `mapstructure:"tokens"` // symbol -> address
}

type Config struct {
	Server struct {
		Addr  string `mapstructure:"addr"`
		Debug bool   `mapstructure:"debug"`
	} `mapstructure:"server"`
	DB struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	JWT struct {
		Secret string `mapstructure:"secret"`
	} `mapstructure:"jwt"`
	Exchange struct {
		FeeAccount string `mapstructure:"fee_account"`
		FeePercent int64  `mapstructure:"fee_percent"`
	} `mapstructure:"exchange"`
	Seed struct {
		DeployerPassword string `mapstructure:"deployer_password"`
	} `mapstructure:"seed"`
	Tokens   []TokenConfig      `mapstructure:"tokens"`
	Networks map[string]Network `mapstructure:"networks"`
}

// Load reads config.yaml from the given directory, with environment variable
// overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.debug", false)
	v.SetDefault("exchange.fee_percent", 10)
	v.SetDefault("seed.deployer_password", "deployer-pass")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
