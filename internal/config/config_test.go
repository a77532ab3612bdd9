package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("DEPLOYMENTS_PATH", filepath.Join(dir, "deployments.json"))
	t.Setenv("DATA_DIR", dir)
	t.Setenv("HMAC_SECRET", "secret")
	return dir
}

func TestLoadLocalDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendLocal, cfg.Chain.Backend)
	assert.Equal(t, 3000, cfg.Service.HTTPPort)
	assert.Equal(t, time.Minute, cfg.Service.HMACClockSkew)
	assert.Equal(t, filepath.Join(dir, "dlq"), cfg.Service.DLQPath)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialBackoff)
	assert.Empty(t, cfg.Events.KafkaBrokers)
}

func TestLoadReadsEnvFileAndDeployments(t *testing.T) {
	dir := isolate(t)

	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("KAFKA_BROKERS=k1:9092, k2:9092\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)

	var dep DeploymentConfig
	dep.Network = "baseMainnet"
	dep.Admin = "0x0d0D5Ff3cFeF8B7B2b1cAC6B6C27Fd0846c09361"
	dep.Operator = "0x381c031baa5995d0cc52386508050ac947780815"
	dep.Contracts.RubyscoreDeposit = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	require.NoError(t, SaveDeployments(filepath.Join(dir, "deployments.json"), dep))

	t.Setenv("CHAIN_BACKEND", "chain")
	t.Setenv("CHAIN_PRIVATE_KEY", "0x01")
	t.Cleanup(func() {
		os.Unsetenv("KAFKA_BROKERS")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "https://mainnet.base.org", cfg.Chain.RPCURL)
	assert.Equal(t, int64(8453), cfg.Deployment.ChainID)
	assert.Equal(t, "0x01", cfg.Chain.OperatorKey)
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", cfg.ContractAddress().Hex())
}

func TestValidate(t *testing.T) {
	isolate(t)

	t.Setenv("CHAIN_BACKEND", "chain")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CHAIN_BACKEND", "carrier-pigeon")
	_, err = Load()
	assert.ErrorContains(t, err, "unknown chain backend")

	t.Setenv("CHAIN_BACKEND", "local")
	t.Setenv("SNAPSHOT_INTERVAL_SECONDS", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "SNAPSHOT_INTERVAL_SECONDS")

	t.Setenv("SNAPSHOT_INTERVAL_SECONDS", "-5")
	_, err = Load()
	assert.ErrorContains(t, err, "SNAPSHOT_INTERVAL_SECONDS")

	t.Setenv("SNAPSHOT_INTERVAL_SECONDS", "30")
	t.Setenv("HMAC_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "HMAC_SECRET")
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_INT", "42")
	t.Setenv("X_BAD_INT", "forty")
	t.Setenv("X_BOOL", "no")

	assert.Equal(t, 42, envOrInt("X_INT", 1))
	assert.Equal(t, 1, envOrInt("X_BAD_INT", 1))
	assert.False(t, envOrBool("X_BOOL", true))
	assert.True(t, envOrBool("X_UNSET", true))
	assert.Nil(t, envOrList("X_UNSET"))
}
