// Package instrument classifies trading symbols and resolves the contract
// multiplier and margin ratio used for settlement.
package instrument

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	Equity  Kind = "equity"
	Futures Kind = "futures"
	Option  Kind = "option"
	Fund    Kind = "fund"
)

// Margined reports whether instruments of this kind settle against a margin
// deposit instead of full notional.
func (k Kind) Margined() bool {
	return k == Futures || k == Option
}

// ErrUnknownProduct is returned together with a usable default Spec when a
// futures or option symbol names a product that is not in the table.
var ErrUnknownProduct = errors.New("unknown product")

// Spec is the resolved settlement description of one symbol.
type Spec struct {
	Symbol      string
	Kind        Kind
	Product     string
	Multiplier  int
	Margined    bool
	MarginRatio decimal.Decimal
}

var (
	optionRe    = regexp.MustCompile(`^([A-Z]{1,2})(\d{3,4})-?([CP])-?(\d+)$`)
	futuresRe   = regexp.MustCompile(`^([A-Z]{1,2})(\d{3,4})$`)
	sixDigitRe  = regexp.MustCompile(`^\d{6}$`)
	etfOptionRe = regexp.MustCompile(`^100\d{5}$`)
	marketTagRe = regexp.MustCompile(`^(SH|SZ|BJ)(\d{6})$`)
)

// fund code ranges on the Shanghai and Shenzhen exchanges (ETF and LOF).
var fundPrefixes = []string{"15", "16", "18", "50", "51", "52", "56", "58"}

// Rules is a pure symbol lookup. It is safe for concurrent use once built.
type Rules struct {
	products map[string]Product
}

// NewRules builds a rule set from the default product table plus overrides.
// An override with the same code replaces the default entry.
func NewRules(overrides ...Product) *Rules {
	products := make(map[string]Product, len(Products)+len(overrides))
	for code, p := range Products {
		products[code] = p
	}
	for _, p := range overrides {
		code := strings.ToUpper(strings.TrimSpace(p.Code))
		p.Code = code
		products[code] = p
	}
	return &Rules{products: products}
}

// Normalize upper-cases a symbol and strips exchange tags such as
// "600519.SH" or "sh600519".
func Normalize(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.LastIndex(s, "."); i > 0 {
		switch s[i+1:] {
		case "SH", "SZ", "BJ", "SS", "SHFE", "DCE", "CZCE", "CFFEX", "INE", "GFEX":
			s = s[:i]
		}
	}
	if m := marketTagRe.FindStringSubmatch(s); m != nil {
		s = m[2]
	}
	return s
}

// Classify returns the instrument kind of symbol and the product code for
// margined kinds.
func (r *Rules) Classify(symbol string) (Kind, string) {
	s := Normalize(symbol)

	if m := optionRe.FindStringSubmatch(s); m != nil {
		return Option, m[1]
	}
	if etfOptionRe.MatchString(s) {
		return Option, etfOptionProduct
	}
	if m := futuresRe.FindStringSubmatch(s); m != nil {
		return Futures, m[1]
	}
	if sixDigitRe.MatchString(s) {
		for _, prefix := range fundPrefixes {
			if strings.HasPrefix(s, prefix) {
				return Fund, ""
			}
		}
	}
	return Equity, ""
}

// Resolve returns the settlement spec for symbol. For an unknown futures or
// option product it returns the cash default together with an error wrapping
// ErrUnknownProduct; the returned Spec is still usable.
func (r *Rules) Resolve(symbol string) (Spec, error) {
	kind, code := r.Classify(symbol)
	spec := Spec{
		Symbol:      Normalize(symbol),
		Kind:        kind,
		Product:     code,
		Multiplier:  1,
		MarginRatio: decimal.NewFromInt(1),
	}
	if !kind.Margined() {
		return spec, nil
	}

	p, ok := r.products[code]
	if !ok || p.Multiplier <= 0 {
		return spec, fmt.Errorf("%w: %s (product %q)", ErrUnknownProduct, spec.Symbol, code)
	}
	spec.Multiplier = p.Multiplier
	spec.Margined = true
	spec.MarginRatio = decimal.NewFromFloat(p.MarginRatio)
	return spec, nil
}

// Multiplier returns the contract multiplier, 1 for cash instruments and
// unknown products.
func (r *Rules) Multiplier(symbol string) int {
	spec, _ := r.Resolve(symbol)
	return spec.Multiplier
}

// IsMargined reports whether symbol settles against margin.
func (r *Rules) IsMargined(symbol string) bool {
	spec, _ := r.Resolve(symbol)
	return spec.Margined
}

// MarginRatio returns the margin fraction of notional, 1 for cash instruments.
func (r *Rules) MarginRatio(symbol string) decimal.Decimal {
	spec, _ := r.Resolve(symbol)
	return spec.MarginRatio
}
