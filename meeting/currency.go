package meeting

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY - Canonical symbol + ISO code
// =============================================================================

// Currency is a normalized currency. Symbol is what presentation shows; Code
// is the ISO code used for rate lookup.
type Currency struct {
	Symbol string
	Code   string
}

var (
	NIS = Currency{Symbol: "₪", Code: "NIS"}
	USD = Currency{Symbol: "$", Code: "USD"}
	EUR = Currency{Symbol: "€", Code: "EUR"}
	GBP = Currency{Symbol: "£", Code: "GBP"}
	CAD = Currency{Symbol: "C$", Code: "CAD"}
	AUD = Currency{Symbol: "A$", Code: "AUD"}
	JPY = Currency{Symbol: "¥", Code: "JPY"}
)

var currencyByISO = map[string]Currency{
	"NIS": NIS,
	"ILS": NIS,
	"USD": USD,
	"EUR": EUR,
	"GBP": GBP,
	"CAD": CAD,
	"AUD": AUD,
	"JPY": JPY,
}

var currencyBySymbol = map[string]Currency{
	NIS.Symbol: NIS,
	USD.Symbol: USD,
	EUR.Symbol: EUR,
	GBP.Symbol: GBP,
	CAD.Symbol: CAD,
	AUD.Symbol: AUD,
	JPY.Symbol: JPY,
}

// currencyByID is the numeric id table used by the lead sources.
var currencyByID = map[int]Currency{
	1: NIS,
	2: EUR,
	3: USD,
	4: GBP,
}

// ResolveCurrency maps any of {symbol, ISO code, numeric id} to a Currency.
// Order: a canonical symbol is returned unchanged; then the ISO code; then
// the numeric id; then NIS.
func ResolveCurrency(code string, id int) Currency {
	code = strings.TrimSpace(code)
	if c, ok := currencyBySymbol[code]; ok {
		return c
	}
	if code != "" {
		if c, ok := currencyByISO[strings.ToUpper(code)]; ok {
			return c
		}
	}
	if c, ok := currencyByID[id]; ok {
		return c
	}
	return NIS
}

// =============================================================================
// RATES - Approximate conversion to NIS
// =============================================================================

// Rates converts to NIS at fixed approximate rates. These are not a live feed;
// totals built from them are indicative only.
type Rates map[string]decimal.Decimal

func DefaultRates() Rates {
	return Rates{
		"NIS": decimal.NewFromInt(1),
		"USD": decimal.RequireFromString("3.7"),
		"EUR": decimal.RequireFromString("4.0"),
		"GBP": decimal.RequireFromString("4.7"),
		"CAD": decimal.RequireFromString("2.7"),
		"AUD": decimal.RequireFromString("2.4"),
		"JPY": decimal.RequireFromString("0.025"),
	}
}

// WithOverrides returns a copy of r with the given ISO -> rate entries applied.
// Unknown codes are accepted; non-positive rates are ignored.
func (r Rates) WithOverrides(overrides map[string]float64) Rates {
	out := make(Rates, len(r)+len(overrides))
	for k, v := range r {
		out[k] = v
	}
	for code, rate := range overrides {
		if rate <= 0 {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(code))
		if c, ok := currencyByISO[key]; ok {
			key = c.Code
		}
		out[key] = decimal.NewFromFloat(rate)
	}
	return out
}

// ToNIS converts amount to NIS. A zero or negative amount converts to zero.
// A currency with no known rate converts at 1.
func (r Rates) ToNIS(amount decimal.Decimal, c Currency) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	rate, ok := r[c.Code]
	if !ok {
		rate = decimal.NewFromInt(1)
	}
	return amount.Mul(rate)
}

// Total sums the NIS-equivalent balance of every meeting's subject.
func (r Rates) Total(meetings []Meeting) decimal.Decimal {
	total := decimal.Zero
	for _, m := range meetings {
		total = total.Add(r.ToNIS(m.Subject.Balance, m.Subject.Currency))
	}
	return total
}

// ParseAmount parses a source balance column. Unparseable or empty values
// are zero, which contributes nothing to totals.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
