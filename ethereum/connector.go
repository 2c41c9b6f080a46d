// Package ethereum drives the engine's contracts on the intermediary
// network: the asset ledger router, the bridge transport and the deposit
// proof verifier.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/teleportdao/teleswap-engine/config"
	"github.com/teleportdao/teleswap-engine/types"
)

var (
	_ types.AssetLedger       = (*Connector)(nil)
	_ types.BridgeTransport   = (*Connector)(nil)
	_ types.ProofVerifier     = (*Connector)(nil)
	_ types.ExchangeAdapter   = (*Connector)(nil)
	_ types.RewardDistributor = (*Connector)(nil)
)

type Connector struct {
	chainID              int64
	rpcURL               string
	wsURL                string
	privateKey           *ecdsa.PrivateKey
	signerAddress        string
	maxRetries           int
	retryIntervalSeconds int

	logger log.Logger

	mu        sync.Mutex
	rpcClient *ethclient.Client
	wsClient  *ethclient.Client

	ledger      *bind.BoundContract
	transport   *bind.BoundContract
	verifier    *bind.BoundContract
	exchange    *bind.BoundContract
	distributor *bind.BoundContract // nil when not configured
}

func NewConnector(cfg config.ConnectorConfig, privateKey string, logger log.Logger) (*Connector, error) {
	privEcdsaKey, signerAddress, err := GetEcdsaKeyAddress(privateKey)
	if err != nil {
		return nil, err
	}
	return &Connector{
		chainID:              cfg.ChainID,
		rpcURL:               cfg.RPC,
		wsURL:                cfg.WS,
		privateKey:           privEcdsaKey,
		signerAddress:        signerAddress,
		maxRetries:           cfg.MaxRetries,
		retryIntervalSeconds: cfg.RetryIntervalSeconds,
		logger:               logger.With("chain_id", cfg.ChainID),
	}, nil
}

// InitializeClients dials the RPC endpoints and binds the contracts.
func (c *Connector) InitializeClients(ctx context.Context, cfg config.ConnectorConfig) error {
	var err error

	c.rpcClient, err = ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return fmt.Errorf("unable to initialize rpc client: %w", err)
	}
	if c.wsURL != "" {
		c.wsClient, err = ethclient.DialContext(ctx, c.wsURL)
		if err != nil {
			return fmt.Errorf("unable to initialize websocket client: %w", err)
		}
	}

	backend := NewContractBackendWrapper(c.rpcClient, c.logger)

	c.ledger, err = bindContract(cfg.Ledger, ledgerABI, backend)
	if err != nil {
		return fmt.Errorf("unable to bind ledger contract: %w", err)
	}
	c.transport, err = bindContract(cfg.Transport, transportABI, backend)
	if err != nil {
		return fmt.Errorf("unable to bind transport contract: %w", err)
	}
	c.verifier, err = bindContract(cfg.Verifier, verifierABI, backend)
	if err != nil {
		return fmt.Errorf("unable to bind verifier contract: %w", err)
	}
	c.exchange, err = bindContract(cfg.Exchange, exchangeABI, backend)
	if err != nil {
		return fmt.Errorf("unable to bind exchange contract: %w", err)
	}
	if cfg.Distributor != "" {
		c.distributor, err = bindContract(cfg.Distributor, distributorABI, backend)
		if err != nil {
			return fmt.Errorf("unable to bind distributor contract: %w", err)
		}
	}
	return nil
}

func (c *Connector) CloseClients() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
	if c.wsClient != nil {
		c.wsClient.Close()
	}
}

// HasDistributor reports whether a reward distributor contract is bound.
func (c *Connector) HasDistributor() bool {
	return c.distributor != nil
}

func bindContract(address, abiJSON string, backend bind.ContractBackend) (*bind.BoundContract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(common.HexToAddress(address), parsed, backend, backend, backend), nil
}

// transact sends one contract call, retrying with a refreshed nonce. The
// sender lock is held across the nonce lookup and send so concurrent
// workers cannot race the account nonce.
func (c *Connector) transact(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) error {
	auth, err := bind.NewKeyedTransactorWithChainID(c.privateKey, big.NewInt(c.chainID))
	if err != nil {
		return fmt.Errorf("unable to create auth: %w", err)
	}
	auth.Context = ctx

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		c.mu.Lock()
		nonce, nonceErr := GetEthereumAccountNonce(c.rpcURL, c.signerAddress)
		if nonceErr == nil {
			auth.Nonce = big.NewInt(nonce)
		}
		tx, err := contract.Transact(auth, method, args...)
		c.mu.Unlock()

		if err == nil {
			c.logger.Info("transaction broadcast", "method", method, "tx", tx.Hash().Hex())
			return nil
		}
		lastErr = err
		c.logger.Error("error during broadcast", "method", method, "err", err)

		if attempt != c.maxRetries {
			c.logger.Info(fmt.Sprintf("retrying in %d seconds", c.retryIntervalSeconds))
			time.Sleep(time.Duration(c.retryIntervalSeconds) * time.Second)
		}
	}
	return fmt.Errorf("reached max number of broadcast attempts for %s: %w", method, lastErr)
}

func (c *Connector) call(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := contract.Call(opts, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	return out, nil
}
