package payment

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"

	"clawnema/internal/chain"
	"clawnema/internal/logger"
	"clawnema/internal/models"
)

type Options struct {
	Wallet          string
	Token           string
	Decimals        int
	ReceiptAttempts int
	RetryDelay      time.Duration
	LogScanBlocks   uint64
	AllowSimulated  bool
	SimulatedPrefix string
	BindSender      bool
	Timer           backoff.Timer
}

// Verification is a proven payment.
type Verification struct {
	CanonicalTxID string
	Amount        *big.Int
	Method        string
}

type Verifier struct {
	Strategies      []Strategy
	Wallet          string
	Token           common.Address
	Decimals        int
	AllowSimulated  bool
	SimulatedPrefix string
	Logger          *logger.Logger
	Metrics         *Metrics
	now             func() time.Time
}

// NewVerifier builds the default chain: direct receipt lookup, then a scan of
// recent transfer logs.
func NewVerifier(opts Options, reader chain.Reader, used UsedChecker, l *logger.Logger, m *Metrics) *Verifier {
	return &Verifier{
		Strategies: []Strategy{
			&ReceiptStrategy{
				Reader:   reader,
				Attempts: opts.ReceiptAttempts,
				Delay:    opts.RetryDelay,
				Timer:    opts.Timer,
				Logger:   l,
			},
			&LogScanStrategy{
				Reader:     reader,
				Used:       used,
				Lookback:   opts.LogScanBlocks,
				BindSender: opts.BindSender,
				Logger:     l,
			},
		},
		Wallet:          opts.Wallet,
		Token:           common.HexToAddress(opts.Token),
		Decimals:        opts.Decimals,
		AllowSimulated:  opts.AllowSimulated,
		SimulatedPrefix: opts.SimulatedPrefix,
		Logger:          l,
		Metrics:         m,
		now:             time.Now,
	}
}

// NormalizeRef trims and lower-cases a claimed transaction reference so the
// same payment always maps to the same ledger key.
func NormalizeRef(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}

// IsSimulated reports whether ref takes the non-production bypass.
func (v *Verifier) IsSimulated(ref string) bool {
	return v.AllowSimulated && v.SimulatedPrefix != "" && strings.HasPrefix(ref, strings.ToLower(v.SimulatedPrefix))
}

// Verify proves that claimedRef paid at least the theater's current price to
// the operator wallet. Every failure is a *VerificationError.
func (v *Verifier) Verify(ctx context.Context, theater *models.Theater, claimedRef string) (*Verification, error) {
	start := v.now()
	ref := NormalizeRef(claimedRef)

	expected, err := ToSmallestUnit(theater.TicketPriceUSDC, v.Decimals)
	if err != nil {
		return nil, &VerificationError{Kind: KindVerifierUnavailable, Decimals: v.Decimals, Err: err}
	}
	// A zero expectation would be met by any transfer, including zero-value spam.
	if expected.Sign() <= 0 {
		v.Logger.LogSecurity("UNPAYABLE_PRICE", fmt.Sprintf("theater %s price %v rounds to %s units", theater.ID, theater.TicketPriceUSDC, expected))
		return nil, &VerificationError{Kind: KindPriceNotPayable, Expected: expected, Decimals: v.Decimals}
	}

	if v.IsSimulated(ref) {
		v.Logger.LogSecurity("SIMULATED_PAYMENT", fmt.Sprintf("accepting %s for theater %s without on-chain verification", ref, theater.ID))
		v.Metrics.observe([]Result{{Strategy: models.VerificationSimulated, Outcome: Matched}})
		return &Verification{CanonicalTxID: ref, Amount: expected, Method: models.VerificationSimulated}, nil
	}

	if !chain.IsAddress(v.Wallet) {
		return nil, &VerificationError{Kind: KindWalletNotConfigured, Decimals: v.Decimals}
	}
	if !chain.IsHash(ref) {
		return nil, &VerificationError{Kind: KindInvalidReference, Decimals: v.Decimals}
	}

	claim := Claim{
		Ref:      ref,
		Wallet:   common.HexToAddress(v.Wallet),
		Token:    v.Token,
		Expected: expected,
	}

	res, results := FirstMatch(ctx, claim, v.Strategies...)
	v.Metrics.observe(results)

	verr := v.explain(claim, res, results)
	if v.Metrics != nil {
		label := "success"
		if verr != nil {
			label = string(verr.Kind)
		}
		v.Metrics.Duration.WithLabelValues(label).Observe(v.now().Sub(start).Seconds())
	}
	if verr != nil {
		v.Logger.LogPayment("verify", ref, verr.Error())
		return nil, verr
	}

	v.Logger.LogPayment(res.Strategy, res.TxHash, fmt.Sprintf("verified %s units for theater %s", res.Amount, theater.ID))
	return &Verification{CanonicalTxID: res.TxHash, Amount: res.Amount, Method: res.Strategy}, nil
}

func (v *Verifier) explain(claim Claim, res Result, results []Result) *VerificationError {
	base := VerificationError{Expected: claim.Expected, Decimals: v.Decimals, Wallet: v.Wallet}

	switch res.Outcome {
	case Matched:
		return nil
	case Rejected:
		base.Kind = KindTransactionReverted
		base.Err = res.Err
		return &base
	}

	var best *big.Int
	inconclusive := 0
	var cause error
	for _, r := range results {
		if r.Amount != nil && (best == nil || r.Amount.Cmp(best) > 0) {
			best = r.Amount
		}
		if r.Outcome == Inconclusive {
			inconclusive++
			if cause == nil {
				cause = r.Err
			}
		}
	}

	switch {
	case best != nil:
		base.Kind = KindInsufficientPayment
		base.Found = best
	case inconclusive > 0:
		base.Kind = KindVerifierUnavailable
		base.Err = cause
	default:
		base.Kind = KindTransactionNotFound
	}
	return &base
}
