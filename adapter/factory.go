package adapter

import (
	"context"
	"fmt"

	"qtsw2exec/events"
)

// Mode selects which concrete brokerage binding to construct.
type Mode string

const (
	ModeDryRun Mode = "DRYRUN"
	ModeSim    Mode = "SIM"
	ModeLive   Mode = "LIVE"
)

// FactoryConfig carries the inputs each mode's concrete construction
// needs. Fields irrelevant to the selected mode are ignored.
type FactoryConfig struct {
	Mode Mode
	Sink events.Sink

	// SIM
	BinanceAPIKey    string
	BinanceSecretKey string

	// LIVE
	LiveEnableToken    string
	LivePlaintextSecret string
	LiveHashedSecret   string
}

// New constructs the ExecutionAdapter for cfg.Mode. SIM additionally
// verifies the sandboxed account before returning; a verification
// failure is fail-closed and returned as an error rather
// than a half-usable adapter.
func New(ctx context.Context, cfg FactoryConfig) (ExecutionAdapter, error) {
	switch cfg.Mode {
	case ModeDryRun, "":
		return NewNullAdapter(), nil

	case ModeSim:
		sim := NewSimAdapter(cfg.BinanceAPIKey, cfg.BinanceSecretKey, cfg.Sink)
		if err := sim.VerifySimAccount(ctx); err != nil {
			return nil, fmt.Errorf("adapter: factory refusing SIM mode: %w", err)
		}
		return sim, nil

	case ModeLive:
		err := VerifyEnableToken(cfg.LiveEnableToken, cfg.LivePlaintextSecret, cfg.LiveHashedSecret)
		enabled := err == nil
		return NewLiveAdapter(enabled), nil

	default:
		return nil, fmt.Errorf("adapter: unknown mode %q", cfg.Mode)
	}
}
