package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrReceiptNotFound means the node has no receipt for the hash (yet).
var ErrReceiptNotFound = errors.New("transaction receipt not found")

// Reader is the read-only slice of the chain RPC the payment verifier needs.
// *ethclient.Client satisfies it directly; EthReader adds timeouts and error mapping.
type Reader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

type EthReader struct {
	client  *ethclient.Client
	timeout time.Duration
}

func Dial(ctx context.Context, rpcURL string, timeout time.Duration) (*EthReader, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	return &EthReader{client: client, timeout: timeout}, nil
}

func (r *EthReader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *EthReader) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	receipt, err := r.client.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get receipt %s: %w", txHash.Hex(), err)
	}
	return receipt, nil
}

func (r *EthReader) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get block number: %w", err)
	}
	return n, nil
}

func (r *EthReader) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	logs, err := r.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("filter logs: %w", err)
	}
	return logs, nil
}

// Ping checks the RPC endpoint answers, used at startup and by /health.
func (r *EthReader) Ping(ctx context.Context) error {
	_, err := r.BlockNumber(ctx)
	return err
}

func (r *EthReader) Close() {
	r.client.Close()
}
