// Package pricing holds the static consultation price table.
package pricing

import (
	"fmt"

	"firmament/internal/model"
)

// Table maps currency and duration to a price.
type Table map[model.Currency]map[model.Duration]float64

// Default returns the built-in price table.
func Default() Table {
	return Table{
		model.CurrencyCAD: {
			model.Duration30: 50,
			model.Duration60: 90,
			model.Duration90: 130,
		},
		model.CurrencyMAD: {
			model.Duration30: 500,
			model.Duration60: 900,
			model.Duration90: 1300,
		},
	}
}

// Price returns the amount for (c, d). A zero duration prices at 0.
func (t Table) Price(c model.Currency, d model.Duration) float64 {
	if d == 0 {
		return 0
	}
	return t[c][d]
}

// Validate checks that every currency has a positive price for every duration.
func (t Table) Validate() error {
	for _, c := range model.Currencies {
		row, ok := t[c]
		if !ok {
			return fmt.Errorf("pricing: missing currency %s", c)
		}
		for _, d := range model.Durations {
			if row[d] <= 0 {
				return fmt.Errorf("pricing: %s has no price for %d minutes", c, int(d))
			}
		}
	}
	return nil
}

// Format renders an amount with its currency, e.g. "90 CAD".
func Format(amount float64, c model.Currency) string {
	if amount == float64(int64(amount)) {
		return fmt.Sprintf("%d %s", int64(amount), c)
	}
	return fmt.Sprintf("%.2f %s", amount, c)
}
