// Command qtsw2exec is the execution and lifecycle subsystem process: it
// acquires the canonical market lock, wires the journal, coordinator,
// executor and brokerage adapter, and serves the admin HTTP surface until
// signalled to stop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"qtsw2exec/adapter"
	"qtsw2exec/apiserver"
	"qtsw2exec/config"
	"qtsw2exec/coordinator"
	"qtsw2exec/events"
	"qtsw2exec/executor"
	"qtsw2exec/journal"
	"qtsw2exec/killswitch"
	"qtsw2exec/lock"
	"qtsw2exec/summary"
)

// watchdogInterval is how often RunWatchdog sweeps tracked intents for
// unprotected fills stuck past the unprotected-position timeout.
const watchdogInterval = 1 * time.Second

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Info().
		Str("run_id", cfg.RunID).
		Str("canonical_instrument", cfg.CanonicalInstrument).
		Str("execution_instrument", cfg.ExecutionInstrument).
		Str("adapter_mode", string(cfg.AdapterMode)).
		Msg("qtsw2exec starting")

	sink := events.NewZerologSink(os.Stdout, cfg.RunID)
	console := events.NewIncidentConsole()

	marketLock, err := lock.Acquire(cfg.ProjectRoot, cfg.CanonicalInstrument, cfg.RunID)
	if err != nil {
		sink.Emit(events.CanonicalMarketLockFailed, events.Fields{
			"canonical_instrument": cfg.CanonicalInstrument, "run_id": cfg.RunID, "error": err.Error(),
		})
		log.Fatal().Err(err).Msg("failed to acquire canonical market lock")
	}
	defer func() {
		if err := marketLock.Dispose(); err != nil {
			log.Warn().Err(err).Msg("failed to release canonical market lock")
		}
	}()

	if marketLock.Reclaimed {
		sink.Emit(events.CanonicalMarketLockStale, events.Fields{
			"canonical_instrument": cfg.CanonicalInstrument, "run_id": cfg.RunID,
		})
	}
	sink.Emit(events.CanonicalMarketLockAcquired, events.Fields{
		"canonical_instrument": cfg.CanonicalInstrument, "run_id": cfg.RunID,
	})

	ks := killswitch.New(cfg.KillSwitchPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ad, err := adapter.New(ctx, adapter.FactoryConfig{
		Mode:                cfg.AdapterMode,
		Sink:                sink,
		BinanceAPIKey:       cfg.BinanceAPIKey,
		BinanceSecretKey:    cfg.BinanceSecretKey,
		LiveEnableToken:     cfg.LiveEnableToken,
		LivePlaintextSecret: cfg.LivePlaintextSecret,
		LiveHashedSecret:    cfg.LiveHashedSecret,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct execution adapter")
	}

	idx, err := journal.OpenIndex(cfg.JournalDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open journal accelerator index")
	}
	defer idx.Close()

	sum := summary.New()

	// The coordinator's flatten callbacks only need the adapter and sink,
	// so they're built before the executor that will set its stand-down
	// callback in below — breaking the construction cycle between the two.
	flattenIntent := executor.RetryingFlatten(ad, sink)
	flattenInstrument := executor.RetryingFlattenInstrument(ad, sink)

	var standDownHolder struct {
		fn coordinator.StandDownFunc
	}
	journalStandDown := func(stream, reason string) {
		if standDownHolder.fn != nil {
			standDownHolder.fn(stream, reason)
		}
	}

	j := journal.New(cfg.JournalDir, sink, journalStandDown, idx)

	coord := coordinator.New(ad, flattenIntent, flattenInstrument, nil, sink)

	exec := executor.New(j, coord, ks, ad, sink, console, sum, cfg.IncidentDir, nil)
	coord.SetStandDown(exec.StandDownStream)
	standDownHolder.fn = exec.StandDownStream

	apiSrv := apiserver.New(sum, ks)
	go func() {
		if err := apiSrv.Router().Run(cfg.AdminListenAddr); err != nil {
			log.Error().Err(err).Msg("admin HTTP surface stopped")
		}
	}()

	watchdogTicker := time.NewTicker(watchdogInterval)
	defer watchdogTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-watchdogTicker.C:
				exec.RunWatchdog()
			}
		}
	}()

	log.Info().Str("admin_listen_addr", cfg.AdminListenAddr).Msg("qtsw2exec ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()
	sink.Emit(events.CanonicalMarketLockReleased, events.Fields{
		"canonical_instrument": cfg.CanonicalInstrument, "run_id": cfg.RunID,
	})
}
