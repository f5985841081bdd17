package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Common
	Env      string
	LogLevel string
	// API
	Port string
	// Rate cache
	TTL             time.Duration
	RefreshInterval time.Duration
	AdapterPriority []string
	Pairs           []string
	// Storage
	Storage     string
	DataDir     string
	DatabaseURL string
	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Kafka (trade events; empty brokers -> noop publisher)
	KafkaBrokers []string
	KafkaTopic   string
	// Quote sources
	CoinGeckoAPIBase    string
	ExchangeRateAPIBase string
	RequestTimeout      time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDef(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func csv(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads environment variables and applies defaults.
func Load() Config {
	return Config{
		Env:             getEnv("ENV", "local"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnv("PORT", "8080"),
		TTL:             time.Duration(atoiDef(getEnv("TTL_SECONDS", "300"), 300)) * time.Second,
		RefreshInterval: time.Duration(atoiDef(getEnv("REFRESH_INTERVAL_SECONDS", "60"), 60)) * time.Second,
		AdapterPriority: csv(getEnv("ADAPTER_PRIORITY", "coingecko,exchangerate")),
		Pairs: csv(getEnv("PAIRS",
			"BTC/USD,ETH/USD,SOL/USD,USDT/USD,EUR/USD,GBP/USD,RUB/USD")),
		Storage:             getEnv("STORAGE", "jsonfile"),
		DataDir:             getEnv("DATA_DIR", "data"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             atoiDef(getEnv("REDIS_DB", "0"), 0),
		KafkaBrokers:        csv(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "valutatrade.trades"),
		CoinGeckoAPIBase:    getEnv("COINGECKO_API_BASE", "https://api.coingecko.com/api/v3"),
		ExchangeRateAPIBase: getEnv("EXCHANGERATE_API_BASE", "https://api.exchangerate-api.com/v4/latest"),
		RequestTimeout:      time.Duration(atoiDef(getEnv("REQUEST_TIMEOUT_MS", "10000"), 10000)) * time.Millisecond,
	}
}
