package payment

import (
	"errors"
	"fmt"
	"math/big"
)

type ErrorKind string

const (
	KindTransactionNotFound ErrorKind = "TransactionNotFound"
	KindInsufficientPayment ErrorKind = "InsufficientPayment"
	KindTransactionReverted ErrorKind = "TransactionReverted"
	KindVerifierUnavailable ErrorKind = "VerifierUnavailable"
	KindWalletNotConfigured ErrorKind = "WalletNotConfigured"
	KindInvalidReference    ErrorKind = "InvalidReference"
	KindPriceNotPayable     ErrorKind = "PriceNotPayable"
)

// VerificationError is the only error type Verify returns.
type VerificationError struct {
	Kind     ErrorKind
	Expected *big.Int
	Found    *big.Int
	Decimals int
	Wallet   string
	Err      error
}

func (e *VerificationError) Error() string {
	switch e.Kind {
	case KindTransactionReverted:
		return "Transaction was reverted on-chain."
	case KindVerifierUnavailable:
		return "Payment verification is temporarily unavailable. Please retry shortly."
	case KindWalletNotConfigured:
		return "Server wallet not configured"
	case KindPriceNotPayable:
		return "Theater price is below the smallest payable amount"
	case KindInvalidReference:
		return "tx_hash must be a 0x-prefixed 32-byte transaction or user operation hash"
	}

	found := "no transfer"
	if e.Found != nil && e.Found.Sign() > 0 {
		found = FormatUnits(e.Found, e.Decimals) + " USDC"
	}
	return fmt.Sprintf("Invalid payment. Expected %s USDC sent to %s. Found: %s. If you just sent payment, try again in 30 seconds.",
		FormatUnits(e.Expected, e.Decimals), e.Wallet, found)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Shortfall is Expected minus Found, or nil when nothing was found.
func (e *VerificationError) Shortfall() *big.Int {
	if e.Expected == nil || e.Found == nil {
		return nil
	}
	return new(big.Int).Sub(e.Expected, e.Found)
}

// Details is the structured part of the error body a caller can act on.
func (e *VerificationError) Details() map[string]interface{} {
	details := map[string]interface{}{"reason": string(e.Kind)}
	if e.Expected != nil {
		details["expected_usdc"] = FormatUnits(e.Expected, e.Decimals)
		details["expected_units"] = e.Expected.String()
	}
	if e.Found != nil {
		details["found_usdc"] = FormatUnits(e.Found, e.Decimals)
		details["found_units"] = e.Found.String()
		if s := e.Shortfall(); s != nil && s.Sign() > 0 {
			details["shortfall_units"] = s.String()
		}
	}
	if e.Kind == KindTransactionNotFound || e.Kind == KindInsufficientPayment || e.Kind == KindVerifierUnavailable {
		details["retry_after"] = 30
	}
	return details
}

// IsKind reports whether err is a VerificationError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var ve *VerificationError
	return errors.As(err, &ve) && ve.Kind == k
}
