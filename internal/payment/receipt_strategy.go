package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"clawnema/internal/chain"
	"clawnema/internal/logger"
	"clawnema/internal/models"
)

// ReceiptStrategy resolves the claimed reference as a plain transaction hash
// and sums the token transfers to the wallet inside its receipt.
type ReceiptStrategy struct {
	Reader   chain.Reader
	Attempts int
	Delay    time.Duration
	// Timer drives the wait between lookups; nil uses a real timer.
	Timer  backoff.Timer
	Logger *logger.Logger
}

var errNotIndexed = errors.New("receipt not indexed yet")

func (s *ReceiptStrategy) Name() string {
	return models.VerificationReceipt
}

func (s *ReceiptStrategy) Check(ctx context.Context, claim Claim) Result {
	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}

	hash := common.HexToHash(claim.Ref)
	var (
		receipt *types.Receipt
		lastErr error
		attempt int
	)
	answered := false

	lookup := func() error {
		attempt++
		r, err := s.Reader.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && r != nil:
			receipt = r
			return nil
		case err == nil || errors.Is(err, chain.ErrReceiptNotFound):
			answered = true
			s.Logger.Debug("PAYMENT", fmt.Sprintf("receipt for %s not indexed yet (attempt %d/%d)", claim.Ref, attempt, attempts))
			return errNotIndexed
		default:
			lastErr = err
			s.Logger.Warn("PAYMENT", fmt.Sprintf("receipt lookup failed (attempt %d/%d): %v", attempt, attempts, err))
			return err
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.Delay), uint64(attempts-1)),
		ctx,
	)
	_ = backoff.RetryNotifyWithTimer(lookup, policy, nil, s.Timer)

	if receipt != nil {
		return s.evaluate(claim, receipt)
	}
	if err := ctx.Err(); err != nil {
		return Result{Outcome: Inconclusive, Err: err}
	}
	// One clean "not found" answer is enough to call it a miss; only a run of
	// pure RPC failures leaves the question open.
	if answered {
		return Result{Outcome: NoMatch}
	}
	return Result{Outcome: Inconclusive, Err: fmt.Errorf("receipt lookup: %w", lastErr)}
}

func (s *ReceiptStrategy) evaluate(claim Claim, receipt *types.Receipt) Result {
	if receipt.Status == types.ReceiptStatusFailed {
		s.Logger.LogPayment(s.Name(), claim.Ref, "receipt status is reverted")
		return Result{Outcome: Rejected, Err: errors.New("transaction reverted")}
	}

	total := new(big.Int)
	for _, lg := range receipt.Logs {
		if lg == nil || !chain.IsTransferTo(*lg, claim.Token, claim.Wallet) {
			continue
		}
		amount := chain.DecodeTransferAmount(*lg)
		total.Add(total, amount)
		s.Logger.Debug("PAYMENT", fmt.Sprintf("receipt transfer of %s units to wallet", amount))
	}

	if total.Sign() == 0 {
		return Result{Outcome: NoMatch}
	}
	if total.Cmp(claim.Expected) < 0 {
		s.Logger.LogPayment(s.Name(), claim.Ref, fmt.Sprintf("receipt sum %s below expected %s", total, claim.Expected))
		return Result{Outcome: NoMatch, Amount: total}
	}
	return Result{Outcome: Matched, TxHash: claim.Ref, Amount: total}
}
