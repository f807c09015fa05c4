package jpostcode

import (
	"errors"
	"fmt"
	"slices"
)

// knownAddress is a lookup that must hold for every region containing it.
type knownAddress struct {
	query   string
	want    Address
	regions []Region
}

// knownAddresses are used to validate a freshly built index.
var knownAddresses = []knownAddress{
	{
		query:   "1500031",
		want:    Address{Code: "1500031", Prefecture: "東京都", City: "渋谷区", Area: "桜丘町"},
		regions: []Region{RegionNational, RegionMetro, RegionKanto, RegionTokyo, RegionTest},
	},
	{
		query:   "0010000",
		want:    Address{Code: "0010000", Prefecture: "北海道", City: "札幌市北区", Area: "以下に掲載がない場合"},
		regions: []Region{RegionNational, RegionTest},
	},
}

// ValidateIndex checks idx for structural integrity and, for regions that
// contain them, resolves a set of well-known codes.
func ValidateIndex(region Region, idx *Index) error {
	if !region.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
	if idx == nil || idx.CodeCount() == 0 {
		return fmt.Errorf("%s index is empty", region)
	}
	if err := checkStructure(idx); err != nil {
		return fmt.Errorf("%s index: %w", region, err)
	}

	for _, k := range knownAddresses {
		if !slices.Contains(k.regions, region) {
			continue
		}
		got := idx.Lookup(k.query)
		if len(got) != 1 || got[0] != k.want {
			return fmt.Errorf("lookup(%q) = %v, want [%v]", k.query, got, k.want)
		}
	}
	return nil
}

// checkStructure verifies the invariants every built index holds.
func checkStructure(idx *Index) error {
	var errs []error
	for code, triples := range idx.byNewCode {
		if len(triples) == 0 {
			errs = append(errs, fmt.Errorf("code %07d has no entries", code))
		}
		for i, t := range triples {
			if int(t.Prefecture) >= len(idx.prefectures) || int(t.City) >= len(idx.cities) || int(t.Area) >= len(idx.areas) {
				errs = append(errs, fmt.Errorf("code %07d references unknown name id", code))
			}
			if slices.Contains(triples[:i], t) {
				errs = append(errs, fmt.Errorf("code %07d stores a duplicate entry", code))
			}
		}
	}
	for legacy, targets := range idx.redirects {
		for i, target := range targets {
			if _, ok := idx.byNewCode[target]; !ok {
				errs = append(errs, fmt.Errorf("legacy code %d redirects to missing code %07d", legacy, target))
			}
			if slices.Contains(targets[:i], target) {
				errs = append(errs, fmt.Errorf("legacy code %d redirects to %07d twice", legacy, target))
			}
		}
	}
	return errors.Join(errs...)
}
