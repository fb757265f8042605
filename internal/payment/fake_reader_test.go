package payment

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"clawnema/internal/chain"
)

var (
	testToken  = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	testWallet = common.HexToAddress("0xC1a9000000000000000000000000000000000001")
	payer      = common.HexToAddress("0x00000000000000000000000000000000000000b0")

	errRPC = errors.New("connection refused")
)

type receiptAnswer struct {
	receipt *types.Receipt
	err     error
}

// fakeReader serves scripted receipt answers per hash; once a script runs out
// the last answer repeats.
type fakeReader struct {
	mu         sync.Mutex
	receipts   map[common.Hash][]receiptAnswer
	calls      map[common.Hash]int
	head       uint64
	headErr    error
	logs       []types.Log
	logsErr    error
	lastFilter ethereum.FilterQuery
	filterHits int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		receipts: map[common.Hash][]receiptAnswer{},
		calls:    map[common.Hash]int{},
		head:     1_000,
	}
}

func (f *fakeReader) script(hash common.Hash, answers ...receiptAnswer) {
	f.receipts[hash] = answers
}

func (f *fakeReader) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[h]
	f.calls[h] = n + 1

	answers, ok := f.receipts[h]
	if !ok || len(answers) == 0 {
		return nil, chain.ErrReceiptNotFound
	}
	if n >= len(answers) {
		n = len(answers) - 1
	}
	return answers[n].receipt, answers[n].err
}

func (f *fakeReader) BlockNumber(context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fakeReader) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = q
	f.filterHits++
	return f.logs, f.logsErr
}

func (f *fakeReader) receiptCalls(h common.Hash) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[h]
}

type usedSet map[string]bool

func (u usedSet) IsTxUsed(_ context.Context, txHash string) (bool, error) {
	return u[strings.ToLower(txHash)], nil
}

type failingUsed struct{}

func (failingUsed) IsTxUsed(context.Context, string) (bool, error) {
	return false, errors.New("database is locked")
}

func hashOf(b byte) common.Hash {
	var h common.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func transfer(txHash common.Hash, to common.Address, amount int64) types.Log {
	return types.Log{
		Address: testToken,
		Topics:  []common.Hash{chain.TransferEventTopic, chain.AddressTopic(payer), chain.AddressTopic(to)},
		Data:    common.LeftPadBytes(big.NewInt(amount).Bytes(), 32),
		TxHash:  txHash,
	}
}

func okReceipt(txHash common.Hash, logs ...types.Log) *types.Receipt {
	r := &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash}
	for i := range logs {
		lg := logs[i]
		r.Logs = append(r.Logs, &lg)
	}
	return r
}
