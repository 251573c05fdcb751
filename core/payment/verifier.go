// Package payment verifies service-fee payments claimed by API callers.
// A payment is a transaction on the ledger's chain calling the payment
// contract; the verifier checks payer, amount, service type and a
// single-use nonce before any gated operation runs.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	ServiceTraining  = "TRAINING"
	ServiceInference = "INFERENCE"
)

// ErrPaymentInvalid wraps every verification failure. Verification
// fails closed: configuration gaps and dependency errors reject the
// payment rather than waving it through.
var ErrPaymentInvalid = errors.New("payment verification failed")

// Payment is a decoded fee-payment transaction.
type Payment struct {
	Payer   string // sender address
	Amount  *big.Int
	Service string // service type string passed to the contract
	Nonce   string
}

// TxReader resolves a transaction hash into a decoded Payment.
// Implemented by the FVM client.
type TxReader interface {
	PaymentByTx(ctx context.Context, txHash string) (*Payment, error)
}

// NonceRegistry tracks consumed payment nonces. Consume returns false
// when the nonce was already used.
type NonceRegistry interface {
	Consume(ctx context.Context, nonce string) (bool, error)
}

// Verifier validates claimed fee payments.
type Verifier struct {
	reader TxReader
	nonces NonceRegistry
	fees   map[string]*big.Int // service type -> required fee in wei
}

// NewVerifier creates a verifier. fees maps service types to required
// amounts; a service type with no entry always fails verification.
func NewVerifier(reader TxReader, nonces NonceRegistry, fees map[string]*big.Int) *Verifier {
	return &Verifier{reader: reader, nonces: nonces, fees: fees}
}

// Verify checks the claimed transaction against the expected payer, the
// configured fee for service, and the claimed nonce, then consumes the
// nonce.
func (v *Verifier) Verify(ctx context.Context, txHash, expectedPayer, service, claimedNonce string) error {
	if txHash == "" {
		return fmt.Errorf("%w: no payment transaction supplied", ErrPaymentInvalid)
	}

	fee, ok := v.fees[service]
	if !ok || fee == nil {
		return fmt.Errorf("%w: no fee configured for service %q", ErrPaymentInvalid, service)
	}

	pay, err := v.reader.PaymentByTx(ctx, txHash)
	if err != nil {
		return fmt.Errorf("%w: could not resolve transaction %s: %v", ErrPaymentInvalid, txHash, err)
	}

	if !strings.EqualFold(pay.Payer, expectedPayer) {
		return fmt.Errorf("%w: transaction sender %s is not the requesting account", ErrPaymentInvalid, pay.Payer)
	}
	if pay.Service != service {
		return fmt.Errorf("%w: transaction paid for service %q, expected %q", ErrPaymentInvalid, pay.Service, service)
	}
	if pay.Amount == nil || pay.Amount.Cmp(fee) < 0 {
		return fmt.Errorf("%w: amount %v below required fee %v", ErrPaymentInvalid, pay.Amount, fee)
	}
	if pay.Nonce != claimedNonce {
		return fmt.Errorf("%w: nonce mismatch", ErrPaymentInvalid)
	}

	fresh, err := v.nonces.Consume(ctx, pay.Nonce)
	if err != nil {
		return fmt.Errorf("%w: nonce registry unavailable: %v", ErrPaymentInvalid, err)
	}
	if !fresh {
		return fmt.Errorf("%w: payment nonce already used", ErrPaymentInvalid)
	}
	return nil
}
