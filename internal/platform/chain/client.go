package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is a connection to a ledger node with the contract bound
type Client struct {
	eth      *ethclient.Client
	contract *Contract
	bound    *bind.BoundContract
	logger   *slog.Logger
}

// Dial connects to the node at rpcURL and checks it serves the expected chain
func Dial(ctx context.Context, rpcURL, contractAddress string, chainID int64, logger *slog.Logger) (*Client, error) {
	contract, err := NewContract(contractAddress)
	if err != nil {
		return nil, err
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger node: %w", err)
	}

	remoteChainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	if remoteChainID.Cmp(big.NewInt(chainID)) != 0 {
		eth.Close()
		return nil, fmt.Errorf("ledger node serves chain %s, expected %d", remoteChainID, chainID)
	}

	logger.Info("Connected to ledger node", "chain_id", chainID, "contract", contract.Address.Hex())

	return &Client{
		eth:      eth,
		contract: contract,
		bound:    bind.NewBoundContract(contract.Address, contract.ABI, eth, eth, eth),
		logger:   logger,
	}, nil
}

// Contract returns the bound contract description
func (c *Client) Contract() *Contract {
	return c.contract
}

// Reader returns a view-call reader over the bound contract
func (c *Client) Reader(callTimeout time.Duration) *ContractReader {
	return NewContractReader(c.bound, callTimeout, c.logger.With("component", "ledger_reader"))
}

// BindingTransport returns the direct-binding transport over this connection
func (c *Client) BindingTransport(gasBufferPercent uint64, receiptTimeout time.Duration) *BindingTransport {
	wait := func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		return bind.WaitMined(ctx, c.eth, tx)
	}
	return NewBindingTransport(c.contract, c.bound, c.eth, wait, gasBufferPercent, receiptTimeout, c.logger)
}

// Close releases the node connection
func (c *Client) Close() {
	c.eth.Close()
	c.logger.Info("Closed ledger node connection")
}
