package models

// Currency is an ISO 4217 code from the closed set the engine supports.
// Amounts tagged with a currency are always integer minor units of it.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	INR Currency = "INR"
	JPY Currency = "JPY"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
)

// SupportedCurrencies lists every currency the engine accepts, in a stable
// order suitable for display.
var SupportedCurrencies = []Currency{USD, EUR, GBP, INR, JPY, CAD, AUD}

// Supported reports whether c is one of the supported currency codes.
func (c Currency) Supported() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}
