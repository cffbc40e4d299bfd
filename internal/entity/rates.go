package entity

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Rate field names.
const (
	RateNRC               = "nrc"
	RateMRC               = "mrc"
	RatePPM               = "ppm"
	RatePPMFix            = "ppm_fix"
	RatePPMMobile         = "ppm_mobile"
	RatePPMPayphone       = "ppm_payphone"
	RateIncomingPPM       = "incoming_ppm"
	RateOutgoingPPMFix    = "outgoing_ppm_fix"
	RateOutgoingPPMMobile = "outgoing_ppm_mobile"
	RateARC               = "arc"
	RateMO                = "mo"
	RateMT                = "mt"
	RateIncomingSMS       = "incoming_sms"
	RateOutgoingSMS       = "outgoing_sms"
)

var relevantFields = map[ProductCode][]string{
	ProductDID:           {RateNRC, RateMRC, RatePPM},
	ProductFreephone:     {RateNRC, RateMRC, RatePPMFix, RatePPMMobile, RatePPMPayphone},
	ProductUnivFreephone: {RateNRC, RateMRC, RatePPMFix, RatePPMMobile, RatePPMPayphone},
	ProductTwoWayVoice:   {RateNRC, RateMRC, RateIncomingPPM, RateOutgoingPPMFix, RateOutgoingPPMMobile},
	ProductTwoWaySMS:     {RateNRC, RateMRC, RateARC, RateMO, RateMT},
	ProductMobile:        {RateNRC, RateMRC, RateIncomingPPM, RateOutgoingPPMFix, RateOutgoingPPMMobile, RateIncomingSMS, RateOutgoingSMS},
}

// RelevantFields returns the rate fields a product code may carry, or nil for
// an unknown code.
func RelevantFields(code ProductCode) []string {
	fields := relevantFields[code]
	if fields == nil {
		return nil
	}
	return append([]string(nil), fields...)
}

// KnownProduct reports whether code has a relevant-field set.
func KnownProduct(code ProductCode) bool {
	_, ok := relevantFields[code]
	return ok
}

// Rates is a sparse set of positive per-unit rates keyed by field name.
type Rates map[string]decimal.Decimal

// ParseAmount parses a currency-formatted string such as "$1,250.50".
// ok is false for empty or unparsable input.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// RatesFromInput keeps only the fields relevant to code whose values parse to
// a positive amount. Everything else is dropped.
func RatesFromInput(code ProductCode, raw map[string]string) Rates {
	out := Rates{}
	for _, field := range relevantFields[code] {
		value, ok := raw[field]
		if !ok {
			continue
		}
		amount, ok := ParseAmount(value)
		if !ok || !amount.IsPositive() {
			continue
		}
		out[field] = amount
	}
	return out
}

// Relevant returns a copy of r restricted to the fields relevant to code.
func (r Rates) Relevant(code ProductCode) Rates {
	out := Rates{}
	for _, field := range relevantFields[code] {
		if v, ok := r[field]; ok && v.IsPositive() {
			out[field] = v
		}
	}
	return out
}

// Overlay returns a copy of r where every field present in top replaces r's.
func (r Rates) Overlay(top Rates) Rates {
	out := make(Rates, len(r)+len(top))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}

// FillGaps returns a copy of r with fields missing from r taken from other.
func (r Rates) FillGaps(other Rates) Rates {
	out := make(Rates, len(r)+len(other))
	for k, v := range other {
		out[k] = v
	}
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Sum adds every populated rate.
func (r Rates) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, k := range r.Fields() {
		total = total.Add(r[k])
	}
	return total
}

// Get returns the rate for field and whether it is populated.
func (r Rates) Get(field string) (decimal.Decimal, bool) {
	v, ok := r[field]
	return v, ok
}

// Fields returns the populated field names in sorted order.
func (r Rates) Fields() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
