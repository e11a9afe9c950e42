// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/openclaw/copytrader/internal/strategy"
)

type Config struct {
	RPCList       []string `mapstructure:"rpc_list"`
	WebSocketURL  string   `mapstructure:"websocket_url"`
	PostgresURL   string   `mapstructure:"postgres_url"`
	PrivateKey    string   `mapstructure:"private_key"`
	HeliusAPIKeys []string `mapstructure:"helius_api_keys"`
	HeliusBaseURL string   `mapstructure:"helius_base_url"`

	JupiterQuoteURL string `mapstructure:"jupiter_quote_url"`
	JupiterSwapURL  string `mapstructure:"jupiter_swap_url"`
	JupiterPriceURL string `mapstructure:"jupiter_price_url"`
	DexScreenerURL  string `mapstructure:"dexscreener_url"`

	MetricsAddr string `mapstructure:"metrics_addr"`
	WalletsFile string `mapstructure:"wallets_file"`

	MonitorCycleDelay time.Duration `mapstructure:"monitor_cycle_delay"`
	WalletDelay       time.Duration `mapstructure:"wallet_delay"`
	PositionTick      time.Duration `mapstructure:"position_tick"`
	BalanceRefresh    time.Duration `mapstructure:"balance_refresh"`
	QueuePoll         time.Duration `mapstructure:"queue_poll"`

	KeyBudgetPerMinute int     `mapstructure:"key_budget_per_minute"`
	MaxTxAgeMinutes    int     `mapstructure:"max_tx_age_minutes"`
	MinBuySOL          float64 `mapstructure:"min_buy_sol"`
	AccumulationWindow int     `mapstructure:"accumulation_window_minutes"`

	StartingBalance float64 `mapstructure:"starting_balance"`
	GoalBalance     float64 `mapstructure:"goal_balance"`

	Strategy strategy.Config `mapstructure:"strategy"`
}

const (
	DefaultMonitorCycleDelay  = 30 * time.Second
	DefaultWalletDelay        = 500 * time.Millisecond
	DefaultPositionTick       = 15 * time.Second
	DefaultBalanceRefresh     = 60 * time.Second
	DefaultQueuePoll          = 2 * time.Second
	DefaultKeyBudgetPerMinute = 5500
	DefaultMaxTxAgeMinutes    = 5
	DefaultMinBuySOL          = 1.0
	DefaultAccumulationWindow = 30
	DefaultGoalBalance        = 100.0
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	sc := strategy.DefaultConfig()
	defaults := map[string]interface{}{
		"monitor_cycle_delay":         DefaultMonitorCycleDelay,
		"wallet_delay":                DefaultWalletDelay,
		"position_tick":               DefaultPositionTick,
		"balance_refresh":             DefaultBalanceRefresh,
		"queue_poll":                  DefaultQueuePoll,
		"key_budget_per_minute":       DefaultKeyBudgetPerMinute,
		"max_tx_age_minutes":          DefaultMaxTxAgeMinutes,
		"min_buy_sol":                 DefaultMinBuySOL,
		"accumulation_window_minutes": DefaultAccumulationWindow,
		"goal_balance":                DefaultGoalBalance,
		"metrics_addr":                "",
		"wallets_file":                "configs/wallets.json",

		"strategy.position_size_percent": sc.PositionSizePercent,
		"strategy.max_positions":         sc.MaxPositions,
		"strategy.min_liquidity_usd":     sc.MinLiquidityUSD,
		"strategy.min_efficiency_score":  sc.MinEfficiencyScore,
		"strategy.min_recent_win_rate":   sc.MinRecentWinRate,
		"strategy.stop_loss_percent":     sc.StopLossPercent,
		"strategy.tp1_percent":           sc.TP1Percent,
		"strategy.tp1_sell_percent":      sc.TP1SellPercent,
		"strategy.tp2_percent":           sc.TP2Percent,
		"strategy.tp2_sell_percent":      sc.TP2SellPercent,
		"strategy.momentum_threshold":    sc.MomentumThreshold,
		"strategy.stagnation_window":     sc.StagnationWindow,
		"strategy.stagnation_threshold":  sc.StagnationThreshold,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.PrivateKey == "" {
		return errors.New("missing private key: set COPYTRADER_PRIVATE_KEY")
	}
	if len(cfg.HeliusAPIKeys) == 0 {
		return errors.New("helius_api_keys is empty")
	}
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if cfg.WebSocketURL != "" {
		if err := validateURLWithCache(cfg.WebSocketURL, "ws"); err != nil {
			return errors.New("invalid WebSocket URL protocol")
		}
	}
	if cfg.PostgresURL == "" {
		return errors.New("postgres_url is empty")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.MonitorCycleDelay <= 0 {
		return errors.New("invalid monitor_cycle_delay")
	}
	if cfg.PositionTick <= 0 {
		return errors.New("invalid position_tick")
	}
	if cfg.QueuePoll <= 0 {
		return errors.New("invalid queue_poll")
	}
	if cfg.KeyBudgetPerMinute <= 0 {
		return errors.New("invalid key_budget_per_minute")
	}
	if cfg.MinBuySOL <= 0 {
		return errors.New("invalid min_buy_sol")
	}
	if cfg.AccumulationWindow <= 0 {
		return errors.New("invalid accumulation_window_minutes")
	}
	if cfg.StartingBalance < 0 {
		return errors.New("invalid starting_balance")
	}
	if err := cfg.Strategy.Validate(); err != nil {
		return err
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

// Secrets never live in the config file. They are read from the
// environment only.
func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("COPYTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if key := v.GetString("PRIVATE_KEY"); key != "" {
		cfg.PrivateKey = key
	}
	if pg := v.GetString("POSTGRES_URL"); pg != "" {
		cfg.PostgresURL = pg
	}
	if keys := v.GetString("HELIUS_API_KEYS"); keys != "" {
		cfg.HeliusAPIKeys = splitList(keys)
	}
	if rpcs := v.GetString("RPC_LIST"); rpcs != "" {
		cfg.RPCList = splitList(rpcs)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if clean := strings.TrimSpace(item); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
