package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rubyscore/internal/claimsig"
	"rubyscore/internal/config"
	"rubyscore/internal/deposit"
	"rubyscore/internal/events"
	"rubyscore/internal/idempotency"
	"rubyscore/internal/ledger"
	"rubyscore/internal/logging"
	"rubyscore/internal/networks"
	"rubyscore/internal/server"
	"rubyscore/internal/statestore"
)

const hardhatChainID = 31337

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rubyscore-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	store, err := openIdempotencyStore(ctx, cfg, &cleanup)
	if err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}

	publishers, journal, err := openPublishers(ctx, cfg, &cleanup)
	if err != nil {
		return fmt.Errorf("event publishers: %w", err)
	}
	relay := events.NewRelay(events.RelayConfig{BufferSize: cfg.Events.BufferSize}, logger, publishers...)

	registry := networks.Default()
	if cfg.Chain.NetworksOverlay != "" {
		if err := registry.LoadOverlay(cfg.Chain.NetworksOverlay); err != nil {
			return fmt.Errorf("networks overlay: %w", err)
		}
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithJournal(journal),
		server.WithNetworks(registry),
		server.WithRelay(relay),
	}

	// Background work outlives the HTTP server so in-flight requests still
	// reach the relay and the final snapshot.
	bgCtx, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBackground()
	g, gctx := errgroup.WithContext(ctx)

	var client deposit.Client
	switch cfg.Chain.Backend {
	case config.BackendChain:
		eth, err := deposit.NewEthClient(ctx, deposit.EthClientConfig{
			RPCURL:        cfg.Chain.RPCURL,
			PrivateKeyHex: cfg.Chain.PrivateKey,
			Contract:      cfg.Deployment.Contracts.RubyscoreDeposit,
			WaitMined:     cfg.Chain.WaitMined,
		})
		if err != nil {
			return fmt.Errorf("eth client: %w", err)
		}
		cleanup = append(cleanup, eth.Close)
		client = eth

		key, err := deposit.ParsePrivateKey(cfg.Chain.OperatorKey)
		if err != nil {
			return fmt.Errorf("operator key: %w", err)
		}
		opts = append(opts, server.WithClaimSigner(key, claimsig.NewDomain(eth.ChainID(), cfg.ContractAddress())))
		logger.Info("using chain backend",
			zap.String("rpc", cfg.Chain.RPCURL),
			zap.String("contract", cfg.ContractAddress().Hex()),
			zap.String("account", eth.Address().Hex()))

	default:
		key, err := serviceKey(cfg, logger)
		if err != nil {
			return err
		}
		service := crypto.PubkeyToAddress(key.PublicKey)
		admin := service
		if cfg.Deployment.Admin != "" {
			admin = common.HexToAddress(cfg.Deployment.Admin)
		}
		domain := claimsig.NewDomain(localChainID(cfg), cfg.ContractAddress())

		l, err := ledger.New(admin, service, claimsig.NewVerifier(domain),
			ledger.WithSink(relay),
			ledger.WithTransferor(ledger.NewWallets()),
			ledger.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("ledger: %w", err)
		}

		snapshots, err := statestore.OpenBolt(cfg.Service.SnapshotPath)
		if err != nil {
			return fmt.Errorf("snapshot store: %w", err)
		}
		cleanup = append(cleanup, func() { _ = snapshots.Close() })
		st, ok, err := snapshots.Load()
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if ok {
			l.Restore(st, service)
			logger.Info("ledger restored",
				zap.String("path", cfg.Service.SnapshotPath),
				zap.String("reserve", l.Reserve().Dec()),
				zap.Uint64("next_seq", st.NextSeq))
		}
		g.Go(func() error {
			return snapshots.Keep(bgCtx, l, cfg.Service.SnapshotInterval, logger.Named("snapshots"))
		})

		client = deposit.NewLocalClient(l, service)
		opts = append(opts, server.WithClaimSigner(key, domain))
		logger.Info("using local ledger",
			zap.String("service", service.Hex()),
			zap.String("admin", admin.Hex()),
			zap.String("chain_id", domain.ChainID.String()))
	}

	apiServer := server.NewServer(cfg, client, store, opts...)

	g.Go(func() error { return relay.Run(bgCtx) })
	g.Go(apiServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Service.ShutdownTimeout)
		defer cancel()
		err := apiServer.Shutdown(shutdownCtx)
		stopBackground()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openIdempotencyStore(ctx context.Context, cfg *config.AppConfig, cleanup *[]func()) (idempotency.Store, error) {
	switch {
	case cfg.Storage.PostgresDSN != "":
		pg, err := idempotency.NewPostgresStore(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		*cleanup = append(*cleanup, pg.Close)
		return pg, nil
	case cfg.Storage.RedisURL != "":
		rs, err := idempotency.NewRedisStore(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, err
		}
		*cleanup = append(*cleanup, func() { _ = rs.Close() })
		return rs, nil
	}
	return idempotency.NewFileStore(cfg.Service.IdempotencyStorePath)
}

// openPublishers always returns a queryable journal: Postgres when a DSN is
// configured, memory otherwise. Kafka and NATS are added when configured.
func openPublishers(ctx context.Context, cfg *config.AppConfig, cleanup *[]func()) ([]events.Publisher, events.Journal, error) {
	var (
		journal    events.Journal
		publishers []events.Publisher
	)
	if cfg.Storage.PostgresDSN != "" {
		pj, err := events.NewPostgresJournal(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		*cleanup = append(*cleanup, pj.Close)
		journal = pj
	} else {
		journal = events.NewMemoryJournal()
	}
	publishers = append(publishers, journal)

	if len(cfg.Events.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		*cleanup = append(*cleanup, func() { _ = kp.Close() })
		publishers = append(publishers, kp)
	}
	if cfg.Events.NATSURL != "" {
		np, err := events.NewNATSPublisher(events.NATSConfig{
			URL:     cfg.Events.NATSURL,
			Subject: cfg.Events.NATSSubject,
			Name:    "rubyscore-server",
		})
		if err != nil {
			return nil, nil, err
		}
		*cleanup = append(*cleanup, np.Close)
		publishers = append(publishers, np)
	}
	return publishers, journal, nil
}

// serviceKey is the account the local ledger treats as its operator. Without
// a configured key an ephemeral one is generated, so issued claims do not
// survive a restart.
func serviceKey(cfg *config.AppConfig, logger *zap.Logger) (*ecdsa.PrivateKey, error) {
	if cfg.Chain.OperatorKey != "" {
		key, err := deposit.ParsePrivateKey(cfg.Chain.OperatorKey)
		if err != nil {
			return nil, fmt.Errorf("service key: %w", err)
		}
		return key, nil
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	logger.Warn("no CHAIN_PRIVATE_KEY set, using an ephemeral service key",
		zap.String("address", crypto.PubkeyToAddress(key.PublicKey).Hex()))
	return key, nil
}

func localChainID(cfg *config.AppConfig) *big.Int {
	if cfg.Deployment.ChainID > 0 {
		return big.NewInt(cfg.Deployment.ChainID)
	}
	return big.NewInt(hardhatChainID)
}
