package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"rubyscore/internal/logging"
	"rubyscore/internal/networks"
)

const (
	BackendLocal = "local"
	BackendChain = "chain"
)

// DeploymentConfig represents deployments.json as written by `rubyscore deploy`.
type DeploymentConfig struct {
	Network   string `json:"network"`
	ChainID   int64  `json:"chainId"`
	Deployer  string `json:"deployer"`
	Admin     string `json:"admin"`
	Operator  string `json:"operator"`
	TxHash    string `json:"txHash,omitempty"`
	Block     uint64 `json:"block,omitempty"`
	Contracts struct {
		RubyscoreDeposit string `json:"Rubyscore_Deposit"`
	} `json:"contracts"`
}

// AppConfig ties together deployment info, environment and derived values.
type AppConfig struct {
	Deployment DeploymentConfig
	Service    ServiceConfig
	Chain      ChainConfig
	Retry      RetryConfig
	Storage    StorageConfig
	Events     EventsConfig
	Logging    logging.Config
}

type ServiceConfig struct {
	HTTPPort             int
	HMACSecret           string
	HMACClockSkew        time.Duration
	IdempotencyWindow    time.Duration
	IdempotencyStorePath string
	DLQPath              string
	SnapshotPath         string
	SnapshotInterval     time.Duration
	ShutdownTimeout      time.Duration
}

type ChainConfig struct {
	Backend         string
	Network         string
	NetworksOverlay string
	RPCURL          string
	// PrivateKey is the service account that sends transactions.
	PrivateKey string
	// OperatorKey signs claim tokens. Defaults to PrivateKey.
	OperatorKey string
	WaitMined   bool
}

type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier int
}

type StorageConfig struct {
	PostgresDSN string
	RedisURL    string
}

type EventsConfig struct {
	BufferSize   int
	KafkaBrokers []string
	KafkaTopic   string
	NATSURL      string
	NATSSubject  string
}

const (
	defaultDeploymentsPath = "deployments.json"
	defaultEnvFile         = ".env"
)

// Load aggregates configuration from .env, disk and environment.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(envOr("ENV_FILE", defaultEnvFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	deploymentsPath := envOr("DEPLOYMENTS_PATH", defaultDeploymentsPath)
	deployCfg, err := LoadDeployments(deploymentsPath)
	if errors.Is(err, os.ErrNotExist) {
		deployCfg, err = &DeploymentConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load deployments: %w", err)
	}

	dataDir := envOr("DATA_DIR", filepath.Join(os.TempDir(), "rubyscore"))
	serviceCfg := ServiceConfig{
		HTTPPort:             envOrInt("API_HTTP_PORT", 3000),
		HMACSecret:           envOr("HMAC_SECRET", ""),
		HMACClockSkew:        time.Duration(envOrInt("HMAC_CLOCK_SKEW_SECONDS", 60)) * time.Second,
		IdempotencyWindow:    time.Duration(envOrInt("IDEMPOTENCY_WINDOW_SECONDS", 86400)) * time.Second,
		IdempotencyStorePath: envOr("IDEMPOTENCY_STORE_PATH", filepath.Join(dataDir, "idempotency.json")),
		DLQPath:              envOr("DLQ_PATH", filepath.Join(dataDir, "dlq")),
		SnapshotPath:         envOr("SNAPSHOT_PATH", filepath.Join(dataDir, "ledger.db")),
		SnapshotInterval:     time.Duration(envOrInt("SNAPSHOT_INTERVAL_SECONDS", 30)) * time.Second,
		ShutdownTimeout:      time.Duration(envOrInt("SHUTDOWN_TIMEOUT_SECONDS", 15)) * time.Second,
	}

	chainCfg := ChainConfig{
		Backend:         strings.ToLower(envOr("CHAIN_BACKEND", BackendLocal)),
		Network:         envOr("CHAIN_NETWORK", deployCfg.Network),
		NetworksOverlay: envOr("NETWORKS_OVERLAY", ""),
		RPCURL:          envOr("CHAIN_RPC_URL", ""),
		PrivateKey:      envOr("CHAIN_PRIVATE_KEY", ""),
		WaitMined:       envOrBool("CHAIN_WAIT_MINED", true),
	}
	chainCfg.OperatorKey = envOr("OPERATOR_PRIVATE_KEY", chainCfg.PrivateKey)

	retryCfg := RetryConfig{
		MaxAttempts:       envOrInt("RETRY_MAX_ATTEMPTS", 3),
		InitialBackoff:    time.Duration(envOrInt("RETRY_INITIAL_BACKOFF_MS", 500)) * time.Millisecond,
		MaxBackoff:        time.Duration(envOrInt("RETRY_MAX_BACKOFF_MS", 5000)) * time.Millisecond,
		BackoffMultiplier: envOrInt("RETRY_BACKOFF_MULTIPLIER", 2),
	}

	cfg := &AppConfig{
		Deployment: *deployCfg,
		Service:    serviceCfg,
		Chain:      chainCfg,
		Retry:      retryCfg,
		Storage: StorageConfig{
			PostgresDSN: envOr("POSTGRES_DSN", ""),
			RedisURL:    envOr("REDIS_URL", ""),
		},
		Events: EventsConfig{
			BufferSize:   envOrInt("EVENTS_BUFFER_SIZE", 1024),
			KafkaBrokers: envOrList("KAFKA_BROKERS"),
			KafkaTopic:   envOr("KAFKA_TOPIC", "rubyscore.deposit.events"),
			NATSURL:      envOr("NATS_URL", ""),
			NATSSubject:  envOr("NATS_SUBJECT", "rubyscore.events"),
		},
		Logging: logging.Config{
			Level: envOr("LOG_LEVEL", "info"),
			File:  envOr("LOG_FILE", ""),
		},
	}

	if err := cfg.resolveRPC(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveRPC fills Chain.RPCURL and Deployment.ChainID from the network
// registry when they are not set explicitly.
func (c *AppConfig) resolveRPC() error {
	if c.Chain.Network == "" {
		return nil
	}
	registry := networks.Default()
	if c.Chain.NetworksOverlay != "" {
		if err := registry.LoadOverlay(c.Chain.NetworksOverlay); err != nil {
			return err
		}
	}
	n, err := registry.Lookup(c.Chain.Network)
	if err != nil {
		return err
	}
	if c.Deployment.ChainID == 0 {
		c.Deployment.ChainID = int64(n.ChainID)
	}
	if c.Chain.RPCURL != "" {
		return nil
	}
	n, err = n.Resolve(os.LookupEnv)
	if err != nil {
		return err
	}
	c.Chain.RPCURL = n.RPCURL
	return nil
}

func (c *AppConfig) Validate() error {
	switch c.Chain.Backend {
	case BackendLocal:
		if c.Service.SnapshotInterval <= 0 {
			return fmt.Errorf("SNAPSHOT_INTERVAL_SECONDS must be positive, got %s", c.Service.SnapshotInterval)
		}
	case BackendChain:
		if c.Chain.RPCURL == "" {
			return errors.New("chain backend needs CHAIN_RPC_URL or CHAIN_NETWORK")
		}
		if !common.IsHexAddress(c.Deployment.Contracts.RubyscoreDeposit) {
			return errors.New("chain backend needs the Rubyscore_Deposit address in deployments")
		}
		if c.Chain.PrivateKey == "" {
			return errors.New("chain backend needs CHAIN_PRIVATE_KEY")
		}
	default:
		return fmt.Errorf("unknown chain backend %q", c.Chain.Backend)
	}
	if c.Service.HMACSecret == "" {
		return errors.New("HMAC_SECRET is required")
	}
	for name, addr := range map[string]string{"admin": c.Deployment.Admin, "operator": c.Deployment.Operator} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("deployment %s %q is not an address", name, addr)
		}
	}
	return nil
}

// ContractAddress is the zero address when no deployment is configured.
func (c *AppConfig) ContractAddress() common.Address {
	return common.HexToAddress(c.Deployment.Contracts.RubyscoreDeposit)
}

func LoadDeployments(path string) (*DeploymentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DeploymentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveDeployments writes cfg to path, creating parent directories.
func SaveDeployments(path string, cfg DeploymentConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	switch strings.ToLower(envOr(key, "")) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return fallback
}

func envOrList(key string) []string {
	var out []string
	for _, part := range strings.Split(envOr(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
