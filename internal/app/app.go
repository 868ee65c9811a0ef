package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"deunifi/internal/alerting"
	"deunifi/internal/chain"
	"deunifi/internal/config"
	"deunifi/internal/planner"
	"deunifi/internal/service"
	"deunifi/internal/storage"
	"deunifi/internal/swap"
	"deunifi/internal/vault"
	"deunifi/internal/watcher"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) dial(ctx context.Context) (*ethclient.Client, error) {
	if a.Config.Ethereum.RPCURL == "" {
		return nil, errors.New("ethereum.rpc_url is required")
	}
	if timeout := a.Config.Ethereum.RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	client, err := ethclient.DialContext(ctx, a.Config.Ethereum.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	return client, nil
}

func (a *App) newReader(client *ethclient.Client) (*chain.Reader, error) {
	addrs, err := a.Config.Contracts.Addresses()
	if err != nil {
		return nil, err
	}
	return chain.NewReader(client, addrs, a.Config.Ethereum.RequestTimeout, a.Logger), nil
}

func (a *App) newQuoter(reader *chain.Reader) (*swap.Router, error) {
	hops, err := a.Config.Swap.IntermediateAddresses()
	if err != nil {
		return nil, err
	}
	return swap.NewRouter(reader, swap.Options{
		Dai:           reader.Addresses().Dai,
		Intermediates: hops,
		DirectPath:    true,
		UsePsm:        a.Config.Swap.UsePsm,
	}, a.Logger), nil
}

func (a *App) newPlanner(reader *chain.Reader) (*planner.Planner, error) {
	quoter, err := a.newQuoter(reader)
	if err != nil {
		return nil, err
	}
	addrs := reader.Addresses()
	return planner.NewPlanner(quoter, reader, reader, addrs.Dai, addrs.Weth, a.Logger), nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) vaultRef() (vault.Ref, error) {
	if a.Config.Vault.Ilk == "" {
		return vault.Ref{}, errors.New("vault.ilk is required")
	}
	ref := vault.Ref{Ilk: a.Config.Vault.Ilk}
	if a.Config.Vault.Cdp > 0 {
		ref.Cdp = big.NewInt(a.Config.Vault.Cdp)
	}
	return ref, nil
}

// Run executes the long-running vault monitor.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ref, err := a.vaultRef()
	if err != nil {
		return err
	}

	client, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	reader, err := a.newReader(client)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	w := watcher.New(watcher.Options{
		PollInterval: a.Config.Watcher.PollInterval,
		StartupDelay: a.Config.Watcher.StartupDelay,
	}, reader, a.Logger)

	loader := vault.NewLoader(reader, a.Logger)
	notifier := a.newNotifier()

	var sampleStore storage.VaultSampleStore
	var alertStore storage.RiskAlertStore
	if store != nil {
		sampleStore = store
		alertStore = store
	}

	svc := service.New(a.Config, w, loader, ref, sampleStore, alertStore, notifier, a.Logger)

	a.Logger.Info().Str("ilk", ref.Ilk).Msg("starting vault monitor")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("vault monitor stopped")
	return nil
}

// parseWad converts a human decimal amount ("1.5") to an 18-decimal integer.
func parseWad(text string) (*big.Int, error) {
	if text == "" {
		return new(big.Int), nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", text, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative: %s", text)
	}
	return d.Shift(18).BigInt(), nil
}

// toleranceFromPct converts a percentage into the planner's ratio unit.
func toleranceFromPct(pct float64) *big.Int {
	return decimal.NewFromFloat(pct).Shift(4).BigInt()
}

func formatWad(v *big.Int) string {
	return decimal.NewFromBigInt(v, -18).StringFixed(6)
}

func formatRay(v *big.Int) string {
	return decimal.NewFromBigInt(v, -27).StringFixed(6)
}

func formatRad(v *big.Int) string {
	return decimal.NewFromBigInt(v, -45).StringFixed(2)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func parseAddress(flag, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", flag, value)
	}
	return common.HexToAddress(value), nil
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	FromBlock int64
	ToBlock   int64
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// VaultsOptions configure the vault listing command.
type VaultsOptions struct {
	Owner string
}

// QuoteOptions configure a one-off swap quote.
type QuoteOptions struct {
	TokenFrom string
	TokenTo   string
	AmountTo  string
}
