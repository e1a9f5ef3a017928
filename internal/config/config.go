package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Explorers struct {
		TronGridURL    string `yaml:"trongrid_url"`
		TronAPIKey     string `yaml:"tron_api_key"`
		USDTContract   string `yaml:"usdt_contract"`
		XRPScanURL     string `yaml:"xrpscan_url"`
		XRPLWSEndpoint string `yaml:"xrpl_ws_endpoint"`
		CardanoscanURL string `yaml:"cardanoscan_url"`
		CardanoAPIKey  string `yaml:"cardano_api_key"`
	} `yaml:"explorers"`
	Reconciler struct {
		IntervalSeconds int `yaml:"interval_seconds"`
		WindowMinutes   int `yaml:"window_minutes"`
		FetchLimit      int `yaml:"fetch_limit"`
	} `yaml:"reconciler"`
	Pricing struct {
		RefreshMinutes int    `yaml:"refresh_minutes"`
		SourceURL      string `yaml:"source_url"`
	} `yaml:"pricing"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Reconciler.IntervalSeconds <= 0 {
		cfg.Reconciler.IntervalSeconds = 30
	}
	if cfg.Reconciler.WindowMinutes <= 0 {
		cfg.Reconciler.WindowMinutes = 10
	}
	if cfg.Reconciler.FetchLimit <= 0 {
		cfg.Reconciler.FetchLimit = 50
	}
	if cfg.Pricing.RefreshMinutes <= 0 {
		cfg.Pricing.RefreshMinutes = 5
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("TRONGRID_URL"); v != "" {
		cfg.Explorers.TronGridURL = v
	}
	if v := os.Getenv("TRONGRID_API_KEY"); v != "" {
		cfg.Explorers.TronAPIKey = v
	}
	if v := os.Getenv("USDT_CONTRACT"); v != "" {
		cfg.Explorers.USDTContract = v
	}
	if v := os.Getenv("XRPSCAN_URL"); v != "" {
		cfg.Explorers.XRPScanURL = v
	}
	if v := os.Getenv("XRPL_WS_ENDPOINT"); v != "" {
		cfg.Explorers.XRPLWSEndpoint = v
	}
	if v := os.Getenv("CARDANOSCAN_URL"); v != "" {
		cfg.Explorers.CardanoscanURL = v
	}
	if v := os.Getenv("CARDANOSCAN_API_KEY"); v != "" {
		cfg.Explorers.CardanoAPIKey = v
	}
	if v := os.Getenv("RECONCILER_INTERVAL_SECONDS"); v != "" {
		cfg.Reconciler.IntervalSeconds = atoiOr(cfg.Reconciler.IntervalSeconds, v)
	}
	if v := os.Getenv("RECONCILER_WINDOW_MINUTES"); v != "" {
		cfg.Reconciler.WindowMinutes = atoiOr(cfg.Reconciler.WindowMinutes, v)
	}
	if v := os.Getenv("RECONCILER_FETCH_LIMIT"); v != "" {
		cfg.Reconciler.FetchLimit = atoiOr(cfg.Reconciler.FetchLimit, v)
	}
	if v := os.Getenv("PRICING_REFRESH_MINUTES"); v != "" {
		cfg.Pricing.RefreshMinutes = atoiOr(cfg.Pricing.RefreshMinutes, v)
	}
	if v := os.Getenv("PRICING_SOURCE_URL"); v != "" {
		cfg.Pricing.SourceURL = v
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
