package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearQtsw2Env(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				key := kv[:i]
				if len(key) > 6 && key[:6] == "QTSW2_" {
					old, had := os.LookupEnv(key)
					require.NoError(t, os.Unsetenv(key))
					t.Cleanup(func() {
						if had {
							os.Setenv(key, old)
						}
					})
				}
				break
			}
		}
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearQtsw2Env(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ES", cfg.CanonicalInstrument)
	assert.Equal(t, "ESUSDT", cfg.ExecutionInstrument)
	assert.Equal(t, 1, cfg.ExpectedQty)
	assert.Equal(t, ":8090", cfg.AdminListenAddr)
}

func TestLoadRejectsUnknownAdapterMode(t *testing.T) {
	clearQtsw2Env(t)
	t.Setenv("QTSW2_ADAPTER_MODE", "BOGUS")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresBinanceCredentialsForSimMode(t *testing.T) {
	clearQtsw2Env(t)
	t.Setenv("QTSW2_ADAPTER_MODE", "SIM")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("QTSW2_BINANCE_API_KEY", "key")
	t.Setenv("QTSW2_BINANCE_SECRET_KEY", "secret")

	_, err = Load()
	assert.NoError(t, err)
}

func TestGetEnvDecimalFallsBackOnUnparseable(t *testing.T) {
	clearQtsw2Env(t)
	t.Setenv("QTSW2_CONTRACT_MULTIPLIER", "not-a-decimal")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.ContractMultiplier.IsPositive())
}
