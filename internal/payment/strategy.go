package payment

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type Outcome int

const (
	// NoMatch means the strategy looked and found no qualifying payment.
	NoMatch Outcome = iota
	// Matched means a sufficient payment was found and bound to TxHash.
	Matched
	// Inconclusive means the strategy could not determine truth (upstream failure).
	Inconclusive
	// Rejected is terminal: the claim is provably invalid and no later strategy may run.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Inconclusive:
		return "inconclusive"
	case Rejected:
		return "rejected"
	default:
		return "no_match"
	}
}

// Claim is one verification request, already normalised.
type Claim struct {
	Ref      string
	Wallet   common.Address
	Token    common.Address
	Expected *big.Int
}

type Result struct {
	Strategy string
	Outcome  Outcome
	TxHash   string
	Amount   *big.Int
	Err      error
}

type Strategy interface {
	Name() string
	Check(ctx context.Context, claim Claim) Result
}

// UsedChecker answers whether a canonical transaction id already backs a ticket.
type UsedChecker interface {
	IsTxUsed(ctx context.Context, txHash string) (bool, error)
}

// FirstMatch runs strategies in order and stops at the first Matched or Rejected
// result. All results are returned so the caller can explain a failure.
func FirstMatch(ctx context.Context, claim Claim, strategies ...Strategy) (Result, []Result) {
	results := make([]Result, 0, len(strategies))
	for _, s := range strategies {
		res := s.Check(ctx, claim)
		res.Strategy = s.Name()
		results = append(results, res)
		if res.Outcome == Matched || res.Outcome == Rejected {
			return res, results
		}
		if ctx.Err() != nil {
			break
		}
	}
	return Result{Outcome: NoMatch}, results
}
