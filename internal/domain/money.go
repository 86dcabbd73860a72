package domain

import (
	"github.com/Rhymond/go-money"
)

// Currency is the denomination of an asset-flow account.
type Currency string

const (
	KRW Currency = money.KRW
	USD Currency = money.USD
)

// Valid reports whether c is a currency accounts may be held in.
func (c Currency) Valid() bool {
	if c != KRW && c != USD {
		return false
	}
	return money.GetCurrency(string(c)) != nil
}

// LedgerCurrency is the currency every transaction amount is expressed in.
const LedgerCurrency = KRW

// FormatAmount renders an amount of whole currency units, e.g. "₩1,300,000"
// or "$1,000.00".
func FormatAmount(amount int64, c Currency) string {
	if !c.Valid() {
		c = LedgerCurrency
	}
	return money.NewFromFloat(float64(amount), string(c)).Display()
}
