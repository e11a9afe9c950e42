// internal/bot/runner.go
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openclaw/copytrader/internal/config"
	"github.com/openclaw/copytrader/internal/dex"
	"github.com/openclaw/copytrader/internal/engine"
	"github.com/openclaw/copytrader/internal/events"
	"github.com/openclaw/copytrader/internal/helius"
	"github.com/openclaw/copytrader/internal/metrics"
	"github.com/openclaw/copytrader/internal/position"
	"github.com/openclaw/copytrader/internal/pricing"
	"github.com/openclaw/copytrader/internal/storage"
	"github.com/openclaw/copytrader/internal/storage/postgres"
	"github.com/openclaw/copytrader/internal/strategy"
	"github.com/openclaw/copytrader/internal/wallet"
	"github.com/openclaw/copytrader/internal/watch"
	solanapool "github.com/openclaw/copytrader/pkg/blockchain/solana"
)

// Runner assembles the full engine from configuration and owns its
// lifecycle.
type Runner struct {
	logger     *zap.Logger
	cfg        *config.Config
	store      storage.Storage
	engine     *engine.Engine
	bus        *events.Bus
	metricsSrv *metrics.Server
	shutdownCh chan os.Signal
}

func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{
		logger:     logger,
		shutdownCh: make(chan os.Signal, 1),
	}
}

// Initialize loads configuration and wires every component. No network
// traffic is generated beyond the initial database connection.
func (r *Runner) Initialize(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	r.cfg = cfg

	w, err := wallet.NewWallet(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	r.logger.Info("🔑 Trading wallet loaded", zap.String("address", w.String()))

	store, err := postgres.New(cfg.PostgresURL, r.logger)
	if err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate storage: %w", err)
	}
	r.store = store

	rotator, err := helius.NewKeyRotator(cfg.HeliusAPIKeys, cfg.KeyBudgetPerMinute, r.logger)
	if err != nil {
		return fmt.Errorf("key rotator: %w", err)
	}
	heliusClient := helius.NewClient(cfg.HeliusBaseURL, rotator, r.logger)

	pool, err := solanapool.NewRPCPool(cfg.RPCList, r.logger)
	if err != nil {
		return fmt.Errorf("rpc pool: %w", err)
	}
	rpcClient := pool.Healthy(ctx)
	oracle := pricing.NewOracle(cfg.JupiterPriceURL, rpcClient, r.logger)
	tokenInfo := pricing.NewInfoClient(cfg.DexScreenerURL, r.logger)
	trader := dex.NewClient(cfg.JupiterQuoteURL, cfg.JupiterSwapURL, rpcClient, w, r.logger)

	wallets, err := loadWallets(cfg.WalletsFile)
	if err != nil {
		return fmt.Errorf("load watched wallets: %w", err)
	}
	r.logger.Info("📋 Watched wallets loaded",
		zap.Int("count", len(wallets)), zap.String("file", cfg.WalletsFile))
	roster := watch.NewRoster(wallets)

	strat := strategy.New(cfg.Strategy)

	manager, err := position.NewManager(ctx, store.Positions(), cfg.Strategy.MaxPositions,
		cfg.StartingBalance, cfg.GoalBalance, r.logger)
	if err != nil {
		return fmt.Errorf("position manager: %w", err)
	}

	monitor := watch.NewMonitor(roster, heliusClient, tokenInfo, store.Signals(), watch.Options{
		CycleDelay:  cfg.MonitorCycleDelay,
		WalletDelay: cfg.WalletDelay,
		MaxTxAge:    time.Duration(cfg.MaxTxAgeMinutes) * time.Minute,
		MinBuySOL:   cfg.MinBuySOL,
		AccumWindow: time.Duration(cfg.AccumulationWindow) * time.Minute,
		MinWinRate:  cfg.Strategy.MinRecentWinRate,
	}, r.logger)

	var stream *watch.Stream
	if cfg.WebSocketURL != "" {
		stream = watch.NewStream(cfg.WebSocketURL, roster, monitor, r.logger)
	}

	r.bus = events.NewBus(r.logger, 256)
	attachJournal(r.bus, r.logger)

	r.engine = engine.New(monitor, stream, store.Signals(), strat, manager,
		trader, oracle, r.bus, w.PublicKey, engine.Options{
			QueuePoll:      cfg.QueuePoll,
			PositionTick:   cfg.PositionTick,
			BalanceRefresh: cfg.BalanceRefresh,
		}, r.logger)

	if cfg.MetricsAddr != "" {
		r.metricsSrv = metrics.NewServer(cfg.MetricsAddr, r.logger)
	}
	return nil
}

// Run starts the engine and blocks until a termination signal arrives or
// the engine fails.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sig := <-r.shutdownCh
		r.logger.Info("📡 Signal received: " + sig.String())
		cancel()
	}()

	g, runCtx := errgroup.WithContext(runCtx)
	g.Go(func() error { return r.engine.Run(runCtx) })
	if r.metricsSrv != nil {
		g.Go(func() error { return r.metricsSrv.Run(runCtx) })
	}
	return g.Wait()
}

// Shutdown releases held resources.
func (r *Runner) Shutdown(ctx context.Context) {
	r.logger.Info("👋 Shutting down gracefully")

	if r.bus != nil {
		if err := r.bus.Shutdown(ctx); err != nil {
			r.logger.Warn("Event bus shutdown incomplete", zap.Error(err))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("Storage close failed", zap.Error(err))
		}
	}
	if err := r.logger.Sync(); err != nil {
		if !os.IsNotExist(err) &&
			err.Error() != "sync /dev/stdout: invalid argument" &&
			err.Error() != "sync /dev/stderr: inappropriate ioctl for device" {
			fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
		}
	}
}

// loadWallets reads the watched wallet roster from a JSON file.
func loadWallets(path string) ([]watch.QualifiedWallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wallets []watch.QualifiedWallet
	if err := json.Unmarshal(data, &wallets); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("no wallets in %s", path)
	}
	return wallets, nil
}
