package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrymomot/tradedesk/pkg/logger"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSupabase = "supabase"
	StoreMongo    = "mongo"
)

// Billing providers.
const (
	ProviderStub   = "stub"
	ProviderStripe = "stripe"
	ProviderPaddle = "paddle"
)

// AppConfig selects the implementations wired at startup. Backend specific
// settings live in each package's own Config.
type AppConfig struct {
	Env             string        `env:"APP_ENV" envDefault:"development"`
	ServiceName     string        `env:"APP_NAME" envDefault:"tradedesk"`
	StoreBackend    string        `env:"STORE_BACKEND" envDefault:"memory"`
	BillingProvider string        `env:"BILLING_PROVIDER" envDefault:"stub"`
	RedisCache      bool          `env:"REDIS_CACHE_ENABLED" envDefault:"false"`
	PollInterval    time.Duration `env:"STATUS_POLL_INTERVAL" envDefault:"60s"`
	Controllers     int           `env:"ACCESS_MAX_CONTROLLERS" envDefault:"10000"`
	RateBurst       int           `env:"RATE_LIMIT_BURST" envDefault:"10"`
	RateInterval    time.Duration `env:"RATE_LIMIT_INTERVAL" envDefault:"6s"`
	Logger          logger.Config
}

func (c AppConfig) validate() error {
	switch strings.ToLower(c.StoreBackend) {
	case StoreMemory, StorePostgres, StoreSupabase, StoreMongo:
	default:
		return fmt.Errorf("%w: STORE_BACKEND=%q", ErrUnknownBackend, c.StoreBackend)
	}
	switch strings.ToLower(c.BillingProvider) {
	case ProviderStub, ProviderStripe, ProviderPaddle:
	default:
		return fmt.Errorf("%w: BILLING_PROVIDER=%q", ErrUnknownProvider, c.BillingProvider)
	}
	if c.RateBurst < 0 || c.RateInterval < 0 {
		return fmt.Errorf("%w: rate limit values must not be negative", ErrInvalidConfig)
	}
	return nil
}
