package config

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/joho/godotenv"
)

// DevJWTSecret signs tokens when JWT_SECRET is not set
const DevJWTSecret = "recyclemart-dev-secret"

// Config contains application configuration
type Config struct {
	RunAddress   string
	DatabaseURI  string
	JWTSecret    string
	RedisAddr    string
	RedisChannel string
	S3Bucket     string
	S3Region     string
	LogMode      string

	StatsRefresh string
	CacheTTL     time.Duration

	AdminLogins      []string
	PendingEstimate  int
	MinPayoutCredits int
	CreditRates      map[models.WasteCategory]float64
}

// NewConfig creates a new configuration from .env, flags and environment variables
func NewConfig() (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	return Load(os.Args[1:], os.Getenv)
}

// Load parses flags from args, then lets non-empty environment variables override them
func Load(args []string, getenv func(string) string) (*Config, error) {
	var cfg Config
	var adminLogins, creditRates string

	// Parse flags
	fs := flag.NewFlagSet("recyclemart", flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", ":8080", "Server run address")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "Database URI, empty for the in-memory store")
	fs.StringVar(&cfg.JWTSecret, "s", DevJWTSecret, "JWT signing secret")
	fs.StringVar(&cfg.RedisAddr, "redis", "", "Redis address for the change feed")
	fs.StringVar(&cfg.RedisChannel, "redis-channel", "", "Redis channel for change events")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", "", "S3 bucket for waste photos")
	fs.StringVar(&cfg.S3Region, "s3-region", "", "S3 region")
	fs.StringVar(&cfg.LogMode, "log-mode", "dev", "Log mode: dev or prod")
	fs.StringVar(&cfg.StatsRefresh, "stats-refresh", "@every 30s", "Cron spec for stats refresh")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", 30*time.Second, "Projection cache TTL")
	fs.StringVar(&adminLogins, "admins", "", "Comma-separated logins registered as admins")
	fs.IntVar(&cfg.PendingEstimate, "pending-estimate", 5, "Credits estimated per pending submission")
	fs.IntVar(&cfg.MinPayoutCredits, "min-payout", 100, "Minimum available credits for payout eligibility")
	fs.StringVar(&creditRates, "credit-rates", "", "Per-kg credit rates, e.g. PET=4,HDPE=3.5")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override with env vars if present
	overrides := map[string]*string{
		"RUN_ADDRESS":   &cfg.RunAddress,
		"DATABASE_URI":  &cfg.DatabaseURI,
		"JWT_SECRET":    &cfg.JWTSecret,
		"REDIS_ADDR":    &cfg.RedisAddr,
		"REDIS_CHANNEL": &cfg.RedisChannel,
		"S3_BUCKET":     &cfg.S3Bucket,
		"S3_REGION":     &cfg.S3Region,
		"LOG_MODE":      &cfg.LogMode,
		"STATS_REFRESH": &cfg.StatsRefresh,
		"ADMIN_LOGINS":  &adminLogins,
		"CREDIT_RATES":  &creditRates,
	}
	for key, dst := range overrides {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = ttl
	}
	if err := envInt(getenv, "PENDING_CREDIT_ESTIMATE", &cfg.PendingEstimate); err != nil {
		return nil, err
	}
	if err := envInt(getenv, "MIN_PAYOUT_CREDITS", &cfg.MinPayoutCredits); err != nil {
		return nil, err
	}

	cfg.AdminLogins = splitList(adminLogins)

	rates, err := ParseCreditRates(creditRates)
	if err != nil {
		return nil, err
	}
	cfg.CreditRates = rates

	return &cfg, nil
}

// AdminSet returns the admin logins as a lookup set
func (c *Config) AdminSet() map[string]bool {
	set := make(map[string]bool, len(c.AdminLogins))
	for _, login := range c.AdminLogins {
		set[login] = true
	}
	return set
}

// ParseCreditRates parses "CATEGORY=rate" pairs separated by commas
func ParseCreditRates(raw string) (map[models.WasteCategory]float64, error) {
	rates := make(map[models.WasteCategory]float64)
	for _, pair := range splitList(raw) {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("credit rate %q: expected CATEGORY=rate", pair)
		}
		category, ok := models.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("credit rate %q: unknown category", pair)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
			return nil, fmt.Errorf("credit rate %q: rate must be a finite non-negative number", pair)
		}
		rates[category] = rate
	}
	return rates, nil
}

func envInt(getenv func(string) string, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fmt.Errorf("%s must be a non-negative integer", key)
	}
	*dst = n
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
