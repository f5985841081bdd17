package domain

import "regexp"

// Currency registry. Fiat and crypto are kept apart because the two quote
// sources cover disjoint sets of codes.
var fiatCurrencies = map[string]string{
	"USD": "US Dollar",
	"EUR": "Euro",
	"GBP": "British Pound Sterling",
	"RUB": "Russian Ruble",
}

var cryptoCurrencies = map[string]string{
	"BTC":  "Bitcoin",
	"ETH":  "Ethereum",
	"SOL":  "Solana",
	"USDT": "Tether",
}

var codeRe = regexp.MustCompile(`^[A-Z]{2,5}$`)

func IsFiat(code string) bool   { _, ok := fiatCurrencies[code]; return ok }
func IsCrypto(code string) bool { _, ok := cryptoCurrencies[code]; return ok }

func IsSupportedCurrency(code string) bool {
	return IsFiat(code) || IsCrypto(code)
}

// CurrencyName returns the display name for a registered code.
func CurrencyName(code string) (string, bool) {
	if n, ok := fiatCurrencies[code]; ok {
		return n, true
	}
	n, ok := cryptoCurrencies[code]
	return n, ok
}

// SupportedCurrencies lists every registered code, fiat first.
func SupportedCurrencies() []string {
	out := make([]string, 0, len(fiatCurrencies)+len(cryptoCurrencies))
	for c := range fiatCurrencies {
		out = append(out, c)
	}
	for c := range cryptoCurrencies {
		out = append(out, c)
	}
	return out
}

func validCurrencyCode(code string) bool {
	return codeRe.MatchString(code)
}
