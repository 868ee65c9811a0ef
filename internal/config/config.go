package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"deunifi/internal/chain"
	"deunifi/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Contracts ContractsConfig `mapstructure:"contracts"`
	Swap      SwapConfig      `mapstructure:"swap"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// EthereumConfig covers on-chain data access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ContractsConfig pins the protocol contract addresses.
type ContractsConfig struct {
	Manager        string `mapstructure:"manager"`
	Vat            string `mapstructure:"vat"`
	Spotter        string `mapstructure:"spotter"`
	Jug            string `mapstructure:"jug"`
	IlkRegistry    string `mapstructure:"ilk_registry"`
	UniswapFactory string `mapstructure:"uniswap_factory"`
	UniswapRouter  string `mapstructure:"uniswap_router"`
	PoolProvider   string `mapstructure:"pool_provider"`
	Psm            string `mapstructure:"psm"`
	FeeManager     string `mapstructure:"fee_manager"`
	Dai            string `mapstructure:"dai"`
	DaiJoin        string `mapstructure:"dai_join"`
	Weth           string `mapstructure:"weth"`
	DsProxyActions string `mapstructure:"ds_proxy_actions"`
}

// SwapConfig tunes route discovery.
type SwapConfig struct {
	Intermediates []string `mapstructure:"intermediates"`
	UsePsm        bool     `mapstructure:"use_psm"`
}

// PlannerConfig sets operation planning defaults.
type PlannerConfig struct {
	SlippageTolerancePct float64 `mapstructure:"slippage_tolerance_pct"`
	DeadlineMinutes      int     `mapstructure:"deadline_minutes"`
}

// WatcherConfig governs block polling cadence.
type WatcherConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// VaultConfig selects the vault to monitor.
type VaultConfig struct {
	Ilk   string `mapstructure:"ilk"`
	Cdp   int64  `mapstructure:"cdp"`
	Owner string `mapstructure:"owner"`
}

// AlertingConfig defines risk thresholds and routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	MinRatio float64        `mapstructure:"min_collateralization_ratio"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEUNIFI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "deunifi")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("ethereum.request_timeout", "10s")

	// Mainnet deployments.
	v.SetDefault("contracts.manager", "0x5ef30b9986345249bc32d8928B7ee64DE9435E39")
	v.SetDefault("contracts.vat", "0x35D1b3F3D7966A1DFe207aa4514C12a259A0492B")
	v.SetDefault("contracts.spotter", "0x65C79fcB50Ca1594B025960e539eD7A9a6D434A3")
	v.SetDefault("contracts.jug", "0x19c0976f590D67707E62397C87829d896Dc0f1F1")
	v.SetDefault("contracts.ilk_registry", "0x5a464C28D19848f44199D003BeF5ecc87d090F87")
	v.SetDefault("contracts.uniswap_factory", "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	v.SetDefault("contracts.uniswap_router", "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	v.SetDefault("contracts.pool_provider", "0xB53C1a33016B2DC2fF3653530bfF1848a515c8c5")
	v.SetDefault("contracts.psm", "0x89B78CfA322F6C5dE0aBcEecab66Aee45393cC5A")
	v.SetDefault("contracts.dai", "0x6B175474E89094C44Da98b954EedeAC495271d0F")
	v.SetDefault("contracts.dai_join", "0x9759A6Ac90977b93B58547b4A71c78317f391A28")
	v.SetDefault("contracts.weth", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("contracts.ds_proxy_actions", "0x82ecD135Dce65Fbc6DbdD0e4237E0AF93FFD5038")

	v.SetDefault("swap.intermediates", []string{"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"})
	v.SetDefault("swap.use_psm", true)

	v.SetDefault("planner.slippage_tolerance_pct", 1.0)
	v.SetDefault("planner.deadline_minutes", 20)

	v.SetDefault("watcher.poll_interval", "6s")
	v.SetDefault("watcher.startup_delay", "0s")
	v.SetDefault("watcher.advisory_lock_key", int64(0x64657566))

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_collateralization_ratio", 1.8)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Watcher.PollInterval <= 0 {
		return fmt.Errorf("watcher.poll_interval must be greater than zero")
	}
	if c.Planner.SlippageTolerancePct < 0 || c.Planner.SlippageTolerancePct > 100 {
		return fmt.Errorf("planner.slippage_tolerance_pct must be within [0, 100]")
	}
	if c.Alerting.MinRatio < 0 {
		return fmt.Errorf("alerting.min_collateralization_ratio cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if _, err := c.Contracts.Addresses(); err != nil {
		return err
	}
	if c.Vault.Owner != "" && !common.IsHexAddress(c.Vault.Owner) {
		return fmt.Errorf("vault.owner is not a valid address: %s", c.Vault.Owner)
	}
	return nil
}

// Addresses resolves the configured contract addresses.
func (c ContractsConfig) Addresses() (chain.Addresses, error) {
	var addrs chain.Addresses
	required := []struct {
		name  string
		value string
		dest  *common.Address
	}{
		{"contracts.manager", c.Manager, &addrs.Manager},
		{"contracts.vat", c.Vat, &addrs.Vat},
		{"contracts.spotter", c.Spotter, &addrs.Spotter},
		{"contracts.jug", c.Jug, &addrs.Jug},
		{"contracts.ilk_registry", c.IlkRegistry, &addrs.IlkRegistry},
		{"contracts.uniswap_factory", c.UniswapFactory, &addrs.UniswapFactory},
		{"contracts.uniswap_router", c.UniswapRouter, &addrs.UniswapRouter},
		{"contracts.pool_provider", c.PoolProvider, &addrs.PoolProvider},
		{"contracts.psm", c.Psm, &addrs.Psm},
		{"contracts.dai", c.Dai, &addrs.Dai},
		{"contracts.dai_join", c.DaiJoin, &addrs.DaiJoin},
		{"contracts.weth", c.Weth, &addrs.Weth},
		{"contracts.ds_proxy_actions", c.DsProxyActions, &addrs.DsProxyActions},
	}
	for _, entry := range required {
		if !common.IsHexAddress(entry.value) {
			return chain.Addresses{}, fmt.Errorf("%s is not a valid address: %s", entry.name, entry.value)
		}
		*entry.dest = common.HexToAddress(entry.value)
	}

	// Optional: the service fee contract is not deployed on every network.
	if c.FeeManager != "" {
		if !common.IsHexAddress(c.FeeManager) {
			return chain.Addresses{}, fmt.Errorf("contracts.fee_manager is not a valid address: %s", c.FeeManager)
		}
		addrs.FeeManager = common.HexToAddress(c.FeeManager)
	}

	return addrs, nil
}

// IntermediateAddresses resolves the configured routing hop addresses.
func (c SwapConfig) IntermediateAddresses() ([]common.Address, error) {
	hops := make([]common.Address, 0, len(c.Intermediates))
	for _, raw := range c.Intermediates {
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("swap.intermediates entry is not a valid address: %s", raw)
		}
		hops = append(hops, common.HexToAddress(raw))
	}
	return hops, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
