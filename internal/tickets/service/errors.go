package tickets

import (
	"errors"
	"net/http"

	"clawnema/internal/payment"
)

type PurchaseKind string

const (
	KindInvalidRequest       PurchaseKind = "InvalidRequest"
	KindDuplicateTransaction PurchaseKind = "DuplicateTransaction"
	KindTheaterNotFound      PurchaseKind = "TheaterNotFound"
	KindPayment              PurchaseKind = "Payment"
	KindInternal             PurchaseKind = "Internal"
)

// PurchaseError is what Purchase returns for every failed gate. For KindPayment,
// Err is a *payment.VerificationError.
type PurchaseError struct {
	Kind    PurchaseKind
	Message string
	Err     error
}

func (e *PurchaseError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *PurchaseError) Unwrap() error {
	return e.Err
}

// Status maps the error to the HTTP status returned by /buy-ticket.
func (e *PurchaseError) Status() int {
	switch e.Kind {
	case KindInvalidRequest, KindDuplicateTransaction:
		return http.StatusBadRequest
	case KindTheaterNotFound:
		return http.StatusNotFound
	case KindPayment:
		var ve *payment.VerificationError
		if errors.As(e.Err, &ve) {
			switch ve.Kind {
			case payment.KindVerifierUnavailable, payment.KindWalletNotConfigured, payment.KindPriceNotPayable:
				return http.StatusServiceUnavailable
			}
		}
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Details carries the structured fields an agent needs to decide whether to retry.
func (e *PurchaseError) Details() map[string]interface{} {
	var ve *payment.VerificationError
	if errors.As(e.Err, &ve) {
		return ve.Details()
	}
	return map[string]interface{}{"reason": string(e.Kind)}
}
