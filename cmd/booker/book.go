package main

import (
	"context"
	"os"

	"firmament/internal/booking"
	"firmament/internal/console"
)

func runBook(ctx context.Context, a *app) error {
	s := a.newSession()
	if a.payments == nil {
		a.logger.Warn().Msg("stripe.publishable_key is not set, payment step will be unavailable")
	}
	c := console.New(os.Stdin, os.Stdout, booking.NewHandler(a.payments), s.Wizard, s.Notices, a.logger)
	return c.Run(ctx)
}
