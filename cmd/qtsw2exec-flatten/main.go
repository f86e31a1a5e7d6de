// Command qtsw2exec-flatten is the manual emergency flatten path: an
// operator-run tool that closes every position on an instrument outside
// the normal fail-closed escalation, gated by a TOTP code so an
// unattended terminal can't trigger it by accident.
//
// It is deliberately a separate binary from qtsw2exec rather than an
// admin HTTP route: an emergency flatten is a break-glass action an
// operator runs by hand, with the code freshly read off an authenticator
// app, not something exposed on a network-reachable endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"qtsw2exec/adapter"
	"qtsw2exec/config"
	"qtsw2exec/events"
	"qtsw2exec/executor"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	instrument := flag.String("instrument", "", "execution instrument to flatten, e.g. ESUSDT")
	code := flag.String("code", "", "current 6-digit TOTP code from the operator's authenticator app")
	flag.Parse()

	if *instrument == "" || *code == "" {
		fmt.Fprintln(os.Stderr, "usage: qtsw2exec-flatten -instrument=ESUSDT -code=123456")
		os.Exit(2)
	}

	secret := os.Getenv("QTSW2_TOTP_SECRET")
	if secret == "" {
		log.Fatal().Msg("QTSW2_TOTP_SECRET is not set; refusing to run an ungated manual flatten")
	}
	valid, err := totp.ValidateCustom(*code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("TOTP validation error")
	}
	if !valid {
		log.Fatal().Msg("TOTP code rejected; manual emergency flatten denied")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ad, err := adapter.New(ctx, adapter.FactoryConfig{
		Mode:                cfg.AdapterMode,
		BinanceAPIKey:       cfg.BinanceAPIKey,
		BinanceSecretKey:    cfg.BinanceSecretKey,
		LiveEnableToken:     cfg.LiveEnableToken,
		LivePlaintextSecret: cfg.LivePlaintextSecret,
		LiveHashedSecret:    cfg.LiveHashedSecret,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct execution adapter")
	}

	sink := events.NewZerologSink(os.Stdout, cfg.RunID)
	flatten := executor.RetryingFlattenInstrument(ad, sink)

	log.Warn().Str("instrument", *instrument).Msg("manual emergency flatten authorized, executing")
	if err := flatten(*instrument, time.Now().UTC()); err != nil {
		log.Fatal().Err(err).Str("instrument", *instrument).Msg("manual emergency flatten failed")
	}
	log.Info().Str("instrument", *instrument).Msg("manual emergency flatten completed")
}
