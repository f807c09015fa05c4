package jpostcode

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxResults caps a lookup's result size unless LookupOptions.NoLimit is set.
const MaxResults = 10

// newCodeLen is the length of a normalized code that is looked up directly.
// Any other length goes through the legacy code table.
const newCodeLen = 7

// Address is one resolved lookup result.
type Address struct {
	Code       string `json:"code"` // 7 digits, zero padded
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Area       string `json:"area"`
}

// LookupOptions configures a lookup.
type LookupOptions struct {
	NoLimit bool // return every match instead of at most MaxResults
}

// Lookup resolves a postal code to addresses. A 7-digit code resolves
// directly; a 3 or 5 digit legacy code resolves through every 7-digit code
// it expands to, in insertion order. Codes shorter than 3 digits are zero
// padded first, so "1" and "001" are the same legacy code.
//
// Lookup never fails: unknown or malformed codes return an empty slice.
func (idx *Index) Lookup(code string, opts ...LookupOptions) []Address {
	var options LookupOptions
	if len(opts) > 0 {
		options = opts[0]
	}
	return idx.lookupNormalized(Normalize(code), options)
}

// LookupValue is Lookup for a string or integer-like value. A nil value
// returns an empty slice.
func (idx *Index) LookupValue(code any, opts ...LookupOptions) []Address {
	normalized, err := NormalizeValue(code)
	if err != nil {
		return []Address{}
	}
	var options LookupOptions
	if len(opts) > 0 {
		options = opts[0]
	}
	return idx.lookupNormalized(normalized, options)
}

func (idx *Index) lookupNormalized(normalized string, opts LookupOptions) []Address {
	results := []Address{}
	if idx == nil || normalized == "" {
		return results
	}

	padded := normalized
	if len(padded) < 3 {
		padded = strings.Repeat("0", 3-len(padded)) + padded
	}
	n, err := strconv.ParseUint(padded, 10, 32)
	if err != nil {
		return results
	}
	numeric := uint32(n)

	limit := -1
	if !opts.NoLimit {
		limit = MaxResults
	}

	if len(normalized) == newCodeLen {
		return idx.appendResolved(results, numeric, limit)
	}
	for _, code := range idx.redirects[numeric] {
		if limit >= 0 && len(results) >= limit {
			break
		}
		results = idx.appendResolved(results, code, limit)
	}
	return results
}

// appendResolved appends the addresses stored for code, stopping once
// results holds limit entries. A negative limit means no limit.
func (idx *Index) appendResolved(results []Address, code uint32, limit int) []Address {
	triples, ok := idx.byNewCode[code]
	if !ok {
		return results
	}
	formatted := fmt.Sprintf("%07d", code)
	for _, t := range triples {
		if limit >= 0 && len(results) >= limit {
			break
		}
		results = append(results, Address{
			Code:       formatted,
			Prefecture: idx.PrefectureName(t.Prefecture),
			City:       idx.CityName(t.City),
			Area:       idx.AreaName(t.Area),
		})
	}
	return results
}
