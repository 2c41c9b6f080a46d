package ethereum

import (
	"context"

	"cosmossdk.io/log"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ContractBackendWrapper logs every outbound transaction before handing it
// to the underlying client.
type ContractBackendWrapper struct {
	*ethclient.Client
	logger log.Logger
}

func NewContractBackendWrapper(client *ethclient.Client, logger log.Logger) *ContractBackendWrapper {
	return &ContractBackendWrapper{
		Client: client,
		logger: logger,
	}
}

func (c *ContractBackendWrapper) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.logger.Debug("sending transaction", "tx", tx.Hash().Hex(), "nonce", tx.Nonce(), "to", tx.To())
	return c.Client.SendTransaction(ctx, tx)
}
