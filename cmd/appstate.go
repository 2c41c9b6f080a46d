package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/teleportdao/teleswap-engine/bridge"
	"github.com/teleportdao/teleswap-engine/config"
	"github.com/teleportdao/teleswap-engine/decimals"
	"github.com/teleportdao/teleswap-engine/engine"
	"github.com/teleportdao/teleswap-engine/fees"
	"github.com/teleportdao/teleswap-engine/filler"
	"github.com/teleportdao/teleswap-engine/registry"
	"github.com/teleportdao/teleswap-engine/swap"
	"github.com/teleportdao/teleswap-engine/types"
	"github.com/teleportdao/teleswap-engine/vault"
)

// AppState is the modifiable state of the application.
type AppState struct {
	Config *config.Config

	ConfigPath string

	EnvFile string

	Debug bool

	LogLevel string

	Logger log.Logger
}

func NewAppState() *AppState {
	return &AppState{}
}

// InitAppState checks if a logger and config are present. If not, it adds them to the AppState
func (a *AppState) InitAppState() {
	if a.Logger == nil {
		a.InitLogger()
	}
	if a.Config == nil {
		a.loadConfigFile()
	}
}

func (a *AppState) InitLogger() {
	// info level is default
	level := zerolog.InfoLevel
	switch a.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// a.Debug overrides a.loglevel
	if a.Debug {
		a.Logger = log.NewLogger(os.Stdout, log.LevelOption(zerolog.DebugLevel))
	} else {
		a.Logger = log.NewLogger(os.Stdout, log.LevelOption(level))
	}
}

// loadConfigFile loads a configuration into the AppState. It uses the AppState ConfigPath
// to determine file path to config.
func (a *AppState) loadConfigFile() {
	if a.Logger == nil {
		a.InitLogger()
	}
	cfg, err := config.Parse(a.ConfigPath)
	if err != nil {
		a.Logger.Error("unable to parse config file", "location", a.ConfigPath, "err", err)
		os.Exit(1)
	}
	a.Logger.Info("successfully parsed config file", "location", a.ConfigPath)
	a.Config = cfg
}

// Engine bundles the orchestrator with the components the admin API
// reconfigures at runtime.
type Engine struct {
	Orchestrator *engine.Orchestrator
	Fees         *fees.Engine
	Normalizer   *decimals.Normalizer
	Messenger    *bridge.Messenger
	Market       *filler.Market
	Vault        *vault.FailureVault
}

// BuildEngine assembles the settlement engine from the loaded config and
// the supplied collaborators.
func (a *AppState) BuildEngine(
	collab engine.Collaborators,
	adapter types.ExchangeAdapter,
	metrics *engine.PromMetrics,
) (*Engine, error) {
	cfg := a.Config

	feeEngine := fees.NewEngine(cfg.Fees.ProtocolRate, cfg.Fees.DefaultLockerRate, cfg.Fees.BridgeRate)
	boundaries := make([]math.Int, len(cfg.Fees.TierBoundaries))
	for i, raw := range cfg.Fees.TierBoundaries {
		b, ok := math.NewIntFromString(raw)
		if !ok {
			return nil, fmt.Errorf("invalid tier boundary %q", raw)
		}
		boundaries[i] = b
	}
	if err := feeEngine.SetTierBoundaries(boundaries); err != nil {
		return nil, err
	}
	for _, override := range cfg.Fees.TierOverrides {
		key := fees.TierKey{
			Domain:       override.Domain,
			Asset:        common.HexToAddress(override.Asset),
			ThirdPartyID: override.ThirdPartyID,
			Tier:         override.Tier,
		}
		if err := feeEngine.SetTierRate(key, override.Rate); err != nil {
			return nil, err
		}
	}

	normalizer := decimals.NewNormalizer(cfg.Decimals.Pivot)
	for _, ad := range cfg.Decimals.Assets {
		normalizer.SetAssetDecimals(common.HexToAddress(ad.Asset), decimals.AssetDecimals{
			Pivot:  ad.Pivot,
			Remote: ad.Remote,
		})
	}

	messenger := bridge.NewMessenger(
		common.HexToAddress(cfg.Transport.Trusted),
		cfg.Transport.MinDispatchBudget,
		a.Logger,
	)
	for name, dc := range cfg.Domains {
		if dc.BinaryEncoding {
			a.Logger.Debug("using binary message encoding", "domain", name)
			messenger.SetBinaryEncoding(dc.Domain, true)
		}
	}

	params := engine.Params{
		LocalDomain:   cfg.Intermediary.Domain,
		EngineAddress: common.HexToAddress(cfg.Intermediary.EngineAddress),
		Treasury:      common.HexToAddress(cfg.Intermediary.Treasury),
		Quarantine:    common.HexToAddress(cfg.Intermediary.Quarantine),
		WrappedNative: common.HexToAddress(cfg.Intermediary.WrappedNative),
		FillWindow:    cfg.Transport.FillWindow,
		BridgeFeeRate: cfg.Fees.BridgeRate,
	}

	market := filler.NewMarket(collab.Ledger, params.LocalDomain, params.WrappedNative, a.Logger)
	failVault := vault.New()

	orch := engine.New(
		params,
		a.Logger,
		registry.New(),
		feeEngine,
		swap.NewExecutor(adapter, a.Logger),
		failVault,
		market,
		messenger,
		normalizer,
		collab,
		metrics,
	)

	return &Engine{
		Orchestrator: orch,
		Fees:         feeEngine,
		Normalizer:   normalizer,
		Messenger:    messenger,
		Market:       market,
		Vault:        failVault,
	}, nil
}
