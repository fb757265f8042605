package payment

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"clawnema/internal/chain"
	"clawnema/internal/logger"
	"clawnema/internal/models"
)

// LogScanStrategy looks for a recent unclaimed transfer to the wallet. It covers
// user operation hashes, which the node cannot resolve to a receipt.
type LogScanStrategy struct {
	Reader   chain.Reader
	Used     UsedChecker
	Lookback uint64
	// BindSender accepts a match only when the claimed reference shows up in the
	// matched transaction's receipt (e.g. as the UserOperationEvent hash topic).
	BindSender bool
	Logger     *logger.Logger
}

func (s *LogScanStrategy) Name() string {
	return models.VerificationLogScan
}

func (s *LogScanStrategy) Check(ctx context.Context, claim Claim) Result {
	head, err := s.Reader.BlockNumber(ctx)
	if err != nil {
		return Result{Outcome: Inconclusive, Err: err}
	}
	from := uint64(0)
	if head > s.Lookback {
		from = head - s.Lookback
	}

	logs, err := s.Reader.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{claim.Token},
		Topics:    [][]common.Hash{{chain.TransferEventTopic}, nil, {chain.AddressTopic(claim.Wallet)}},
	})
	if err != nil {
		return Result{Outcome: Inconclusive, Err: err}
	}
	s.Logger.LogPayment(s.Name(), claim.Ref, fmt.Sprintf("%d transfer logs to wallet in blocks %d-%d", len(logs), from, head))

	var best *big.Int
	for _, lg := range logs {
		if lg.Removed || !chain.IsTransferTo(lg, claim.Token, claim.Wallet) {
			continue
		}
		amount := chain.DecodeTransferAmount(lg)
		if amount.Sign() == 0 {
			continue
		}
		if amount.Cmp(claim.Expected) < 0 {
			if best == nil || amount.Cmp(best) > 0 {
				best = amount
			}
			continue
		}

		txHash := strings.ToLower(lg.TxHash.Hex())
		used, err := s.Used.IsTxUsed(ctx, txHash)
		if err != nil {
			return Result{Outcome: Inconclusive, Err: fmt.Errorf("ledger lookup: %w", err)}
		}
		if used {
			s.Logger.LogPayment(s.Name(), txHash, "transfer already backs a ticket, skipping")
			continue
		}

		if s.BindSender {
			bound, err := s.bound(ctx, claim.Ref, lg)
			if err != nil {
				return Result{Outcome: Inconclusive, Err: err}
			}
			if !bound {
				s.Logger.LogPayment(s.Name(), txHash, "transfer does not reference the claimed operation, skipping")
				continue
			}
		}

		return Result{Outcome: Matched, TxHash: txHash, Amount: amount}
	}

	return Result{Outcome: NoMatch, Amount: best}
}

func (s *LogScanStrategy) bound(ctx context.Context, ref string, lg types.Log) (bool, error) {
	refHash := common.HexToHash(ref)
	if lg.TxHash == refHash {
		return true, nil
	}
	receipt, err := s.Reader.TransactionReceipt(ctx, lg.TxHash)
	if err != nil {
		return false, fmt.Errorf("receipt for %s: %w", lg.TxHash.Hex(), err)
	}
	return chain.ReferencesHash(receipt, refHash), nil
}
