// Package config loads process configuration from the environment (via
// .env file support) the way web3guy0-polybot/internal/config does:
// typed getEnv* helpers with defaults, no flag parsing.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"qtsw2exec/adapter"
)

// Config is the full set of dependencies main.go needs to wire the
// executor, journal, coordinator, lock, kill switch and admin surface.
type Config struct {
	ProjectRoot         string
	RunID               string
	CanonicalInstrument string
	ExecutionInstrument string

	AdapterMode adapter.Mode

	BinanceAPIKey    string
	BinanceSecretKey string

	LiveEnableToken     string
	LivePlaintextSecret string
	LiveHashedSecret    string

	AdminListenAddr string

	ExpectedQty        int
	MaxQty             int
	ContractMultiplier decimal.Decimal

	JournalDir     string
	IncidentDir    string
	KillSwitchPath string
}

// Load reads configuration from the process environment. Callers should
// call godotenv.Load() before Load() if a .env file is in play; Load
// itself only reads os.Getenv, keeping "load the .env file" (main.go)
// separate from "parse the environment" (config.Load).
func Load() (*Config, error) {
	cfg := &Config{
		ProjectRoot:         getEnv("QTSW2_PROJECT_ROOT", "."),
		RunID:               getEnv("QTSW2_RUN_ID", defaultRunID()),
		CanonicalInstrument: getEnv("QTSW2_CANONICAL_INSTRUMENT", "ES"),
		ExecutionInstrument: getEnv("QTSW2_EXECUTION_INSTRUMENT", "ESUSDT"),

		AdapterMode: adapter.Mode(getEnv("QTSW2_ADAPTER_MODE", string(adapter.ModeDryRun))),

		BinanceAPIKey:    os.Getenv("QTSW2_BINANCE_API_KEY"),
		BinanceSecretKey: os.Getenv("QTSW2_BINANCE_SECRET_KEY"),

		LiveEnableToken:     os.Getenv("QTSW2_LIVE_ENABLE_TOKEN"),
		LivePlaintextSecret: os.Getenv("QTSW2_LIVE_ENABLE_SECRET"),
		LiveHashedSecret:    os.Getenv("QTSW2_LIVE_ENABLE_SECRET_HASH"),

		AdminListenAddr: getEnv("QTSW2_ADMIN_LISTEN_ADDR", ":8090"),

		ExpectedQty:        getEnvInt("QTSW2_EXPECTED_QTY", 1),
		MaxQty:             getEnvInt("QTSW2_MAX_QTY", 1),
		ContractMultiplier: getEnvDecimal("QTSW2_CONTRACT_MULTIPLIER", decimal.NewFromInt(5)),

		JournalDir:     getEnv("QTSW2_JOURNAL_DIR", "data/execution_journals"),
		IncidentDir:    getEnv("QTSW2_INCIDENT_DIR", "data/execution_incidents"),
		KillSwitchPath: getEnv("QTSW2_KILL_SWITCH_PATH", "configs/robot/kill_switch.json"),
	}

	switch cfg.AdapterMode {
	case adapter.ModeDryRun, adapter.ModeSim, adapter.ModeLive:
	default:
		return nil, fmt.Errorf("config: unknown QTSW2_ADAPTER_MODE %q", cfg.AdapterMode)
	}
	if cfg.AdapterMode == adapter.ModeSim && (cfg.BinanceAPIKey == "" || cfg.BinanceSecretKey == "") {
		return nil, fmt.Errorf("config: SIM mode requires QTSW2_BINANCE_API_KEY and QTSW2_BINANCE_SECRET_KEY")
	}

	return cfg, nil
}

func defaultRunID() string {
	return "run-" + uuid.NewString()
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return defaultValue
}
