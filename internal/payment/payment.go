// Package payment confirms server-issued payment sessions. The booking
// wizard only sees the Widget boundary; Stripe is the production widget.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSecret means the client secret does not name a payment intent.
	ErrInvalidSecret = errors.New("invalid payment client secret")
	// ErrNoPaymentMethod means no payment method was supplied.
	ErrNoPaymentMethod = errors.New("no payment method supplied")
	// ErrActionRequired means the card needs authentication the client cannot perform.
	ErrActionRequired = errors.New("payment requires additional authentication")
)

// Result is a successfully confirmed payment.
type Result struct {
	PaymentIntentID string
	Status          string
}

// Widget confirms the payment session bound to clientSecret.
type Widget interface {
	Confirm(ctx context.Context, clientSecret string) (*Result, error)
}

// Provider builds a widget for a payment method chosen by the user.
type Provider interface {
	Widget(paymentMethod string) Widget
}

// DeclinedError is a payment rejected by the processor.
type DeclinedError struct {
	Message string
	Code    string
	Err     error
}

func (e *DeclinedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("payment declined (%s)", e.Code)
}

func (e *DeclinedError) Unwrap() error { return e.Err }

// IntentID extracts the payment intent ID from a client secret of the form
// "<id>_secret_<nonce>".
func IntentID(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || id == "" {
		return "", ErrInvalidSecret
	}
	return id, nil
}
