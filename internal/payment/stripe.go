package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// Stripe confirms payment intents with the publishable key, as a browser
// widget would.
type Stripe struct {
	publishableKey string
	returnURL      string
	backend        stripe.Backend
}

// NewStripe creates a provider. A nil backend uses the live Stripe API.
func NewStripe(publishableKey, returnURL string, backend stripe.Backend) *Stripe {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &Stripe{publishableKey: publishableKey, returnURL: returnURL, backend: backend}
}

// Widget returns a widget paying with paymentMethod (a pm_... ID).
func (s *Stripe) Widget(paymentMethod string) Widget {
	return &StripeWidget{stripe: s, paymentMethod: paymentMethod}
}

// StripeWidget confirms one payment intent with a fixed payment method.
type StripeWidget struct {
	stripe        *Stripe
	paymentMethod string
}

// Confirm confirms the intent named by clientSecret.
func (w *StripeWidget) Confirm(ctx context.Context, clientSecret string) (*Result, error) {
	id, err := IntentID(clientSecret)
	if err != nil {
		return nil, err
	}
	if w.paymentMethod == "" {
		return nil, ErrNoPaymentMethod
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(w.paymentMethod),
	}
	params.Context = ctx
	if w.stripe.returnURL != "" {
		params.ReturnURL = stripe.String(w.stripe.returnURL)
	}
	params.AddExtra("client_secret", clientSecret)

	client := paymentintent.Client{B: w.stripe.backend, Key: w.stripe.publishableKey}
	pi, err := client.Confirm(id, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			return nil, &DeclinedError{Message: se.Msg, Code: string(se.Code), Err: err}
		}
		return nil, fmt.Errorf("confirm payment intent: %w", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing:
		return &Result{PaymentIntentID: pi.ID, Status: string(pi.Status)}, nil
	case stripe.PaymentIntentStatusRequiresAction:
		return nil, ErrActionRequired
	default:
		return nil, &DeclinedError{Message: fmt.Sprintf("payment not completed: %s", pi.Status), Code: string(pi.Status)}
	}
}
