package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bankgame/internal/game"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type APIConfig struct {
	Addr               string
	DatabaseURL        string
	StatePath          string
	TokenSecret        string
	TokenTTL           time.Duration
	TickEvery          time.Duration
	DayLength          time.Duration
	PersistDebounce    time.Duration
	LeaderboardRefresh time.Duration
	LeaderboardSize    int
	MarketVolatility   string
	DepositRate        decimal.Decimal
	LoanRate           decimal.Decimal
	TradeFeeRate       decimal.Decimal
	StartingCash       decimal.Decimal
	CORSOrigins        []string
	RateLimit          float64
	LogLevel           string
	LogFile            string
}

type CLIConfig struct {
	APIBaseURL string
}

// loadDotEnv reads .env when present; a missing file is not an error.
func loadDotEnv() {
	_ = godotenv.Load()
}

func LoadAPIFromEnv() (APIConfig, error) {
	loadDotEnv()

	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("BANKGAME_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:               addr,
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		StatePath:          envDefault("BANKGAME_STATE_PATH", defaultStatePath()),
		TokenSecret:        strings.TrimSpace(os.Getenv("BANKGAME_TOKEN_SECRET")),
		TokenTTL:           envDurationDefault("BANKGAME_TOKEN_TTL", 7*24*time.Hour),
		TickEvery:          envDurationDefault("BANKGAME_TICK_EVERY", time.Second),
		DayLength:          envDurationDefault("BANKGAME_DAY_LENGTH", time.Minute),
		PersistDebounce:    envDurationDefault("BANKGAME_PERSIST_DEBOUNCE", 8*time.Second),
		LeaderboardRefresh: envDurationDefault("BANKGAME_LEADERBOARD_REFRESH", 10*time.Second),
		LeaderboardSize:    envIntDefault("BANKGAME_LEADERBOARD_SIZE", 100),
		MarketVolatility:   envVolatilityDefault(),
		DepositRate:        envDecimalDefault("BANKGAME_DEPOSIT_RATE", "0.01"),
		LoanRate:           envDecimalDefault("BANKGAME_LOAN_RATE", "0.005"),
		TradeFeeRate:       envDecimalDefault("BANKGAME_TRADE_FEE_RATE", "0"),
		StartingCash:       envDecimalDefault("BANKGAME_STARTING_CASH", "1000"),
		CORSOrigins:        envListDefault("BANKGAME_CORS_ORIGINS", []string{"*"}),
		RateLimit:          envFloatDefault("BANKGAME_RATE_LIMIT", 20),
		LogLevel:           envDefault("BANKGAME_LOG_LEVEL", "info"),
		LogFile:            strings.TrimSpace(os.Getenv("BANKGAME_LOG_FILE")),
	}
	return cfg, cfg.Validate()
}

func (c APIConfig) Validate() error {
	if c.TickEvery <= 0 {
		return fmt.Errorf("BANKGAME_TICK_EVERY must be > 0")
	}
	if c.DayLength < c.TickEvery {
		return fmt.Errorf("BANKGAME_DAY_LENGTH (%s) must be >= BANKGAME_TICK_EVERY (%s)", c.DayLength, c.TickEvery)
	}
	if c.PersistDebounce <= 0 {
		return fmt.Errorf("BANKGAME_PERSIST_DEBOUNCE must be > 0")
	}
	if c.DepositRate.IsNegative() || c.LoanRate.IsNegative() {
		return fmt.Errorf("interest rates must be >= 0")
	}
	if c.TradeFeeRate.IsNegative() || c.TradeFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("BANKGAME_TRADE_FEE_RATE must be in [0, 1)")
	}
	if !c.StartingCash.IsPositive() {
		return fmt.Errorf("BANKGAME_STARTING_CASH must be > 0")
	}
	if c.DatabaseURL == "" && c.StatePath == "" {
		return fmt.Errorf("either DATABASE_URL or BANKGAME_STATE_PATH is required")
	}
	return nil
}

// GameSettings maps the economy knobs onto the world settings.
func (c APIConfig) GameSettings() game.Settings {
	return game.Settings{
		StartingCash:    c.StartingCash,
		DepositRate:     c.DepositRate,
		LoanRate:        c.LoanRate,
		TradeFeeRate:    c.TradeFeeRate,
		DayLength:       c.DayLength,
		Volatility:      c.MarketVolatility,
		LeaderboardSize: c.LeaderboardSize,
	}
}

func LoadCLIFromEnv() CLIConfig {
	loadDotEnv()
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("BANKCTL_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func defaultStatePath() string {
	return filepath.Join("data", "bankgame.json")
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDecimalDefault(key, fallback string) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(fallback)
}

func envListDefault(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envVolatilityDefault() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("VOLATILITY")))
	if v == "" {
		v = strings.ToLower(strings.TrimSpace(os.Getenv("BANKGAME_MARKET_VOLATILITY")))
	}
	switch v {
	case "calm", "mor", "wild":
		return v
	default:
		return "mor"
	}
}
