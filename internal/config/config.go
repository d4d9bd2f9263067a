// Package config loads runtime settings from the environment and provides
// the static seed for a new game.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketsim/engine/internal/model"
)

const (
	defaultPort        = "8080"
	defaultGeminiModel = "gemini-2.5-flash"
	defaultNewsTimeout = 15 * time.Second
)

// DefaultStartingBalance is the cash a new game starts with.
var DefaultStartingBalance = decimal.NewFromInt(10000)

// Config holds process settings. Empty URLs and keys disable the matching
// backend.
type Config struct {
	Port            string
	DatabaseURL     string
	RedisURL        string
	GeminiAPIKey    string
	GeminiModel     string
	NewsTimeout     time.Duration
	Seed            int64
	StartingBalance decimal.Decimal
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{
		Port:            getenv("PORT", defaultPort),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getenv("GEMINI_MODEL", defaultGeminiModel),
		NewsTimeout:     defaultNewsTimeout,
		Seed:            time.Now().UnixNano(),
		StartingBalance: DefaultStartingBalance,
	}

	if v := os.Getenv("NEWS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("config: invalid NEWS_TIMEOUT %q", v)
		}
		cfg.NewsTimeout = d
	}

	if v := os.Getenv("SIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid SIM_SEED %q: %w", v, err)
		}
		cfg.Seed = seed
	}

	if v := os.Getenv("STARTING_BALANCE"); v != "" {
		bal, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid STARTING_BALANCE %q: %w", v, err)
		}
		if bal.IsNegative() {
			return Config{}, fmt.Errorf("config: STARTING_BALANCE must not be negative")
		}
		cfg.StartingBalance = bal
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// DefaultInstruments returns the seed instrument list for a new game.
func DefaultInstruments() []model.Instrument {
	return []model.Instrument{
		seedInstrument("TECH", "TechNova Solutions", "Technology", "150.25", "1.5", "145", "148", "150.25"),
		seedInstrument("ENER", "Global Energy Corp", "Energy", "85.50", "-0.6", "88", "86", "85.50"),
		seedInstrument("BIO", "BioGenix Labs", "Healthcare", "42.10", "1.4", "40", "41.5", "42.10"),
		seedInstrument("FIN", "Apex Financial Group", "Finance", "210.75", "-1.2", "215", "212", "210.75"),
		seedInstrument("AUTO", "Volt Motors", "Consumer Goods", "65.30", "5.3", "60", "62", "65.30"),
		seedInstrument("FOOD", "Organic Harvest", "Consumer Goods", "25.40", "1.6", "24.5", "25", "25.40"),
	}
}

func seedInstrument(symbol, name, sector, price, change string, history ...string) model.Instrument {
	h := make([]decimal.Decimal, len(history))
	for i, p := range history {
		h[i] = decimal.RequireFromString(p)
	}
	return model.Instrument{
		Symbol:  symbol,
		Name:    name,
		Sector:  sector,
		Price:   decimal.RequireFromString(price),
		History: h,
		Change:  decimal.RequireFromString(change),
	}
}
