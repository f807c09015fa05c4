package jpostcode

import "sort"

// NameID is a dense ID into one of the index's name tables. IDs are only
// meaningful within the index that assigned them.
type NameID uint32

// Triple references one named address bound to a 7-digit code.
type Triple struct {
	Prefecture NameID
	City       NameID
	Area       NameID
}

// Index is an immutable postal code index for one region. It is built by a
// Builder or decoded from a blob and never mutated afterwards, so any number
// of goroutines may call Lookup concurrently.
type Index struct {
	byNewCode   map[uint32][]Triple // 7-digit code -> triples in dataset order
	redirects   map[uint32][]uint32 // 3/5-digit legacy code -> 7-digit codes
	prefectures []string            // NameID -> prefecture name
	cities      []string            // NameID -> city name
	areas       []string            // NameID -> area name
}

// Entries returns the triples stored for a 7-digit code. The returned slice
// is shared with the index and must not be modified.
func (idx *Index) Entries(code uint32) []Triple {
	return idx.byNewCode[code]
}

// Redirects returns the 7-digit codes a legacy code expands to, in insertion
// order. The returned slice is shared with the index and must not be modified.
func (idx *Index) Redirects(legacy uint32) []uint32 {
	return idx.redirects[legacy]
}

// PrefectureName returns the prefecture name for id, or "" if unknown.
func (idx *Index) PrefectureName(id NameID) string { return nameAt(idx.prefectures, id) }

// CityName returns the city name for id, or "" if unknown.
func (idx *Index) CityName(id NameID) string { return nameAt(idx.cities, id) }

// AreaName returns the area name for id, or "" if unknown.
func (idx *Index) AreaName(id NameID) string { return nameAt(idx.areas, id) }

func nameAt(names []string, id NameID) string {
	if int64(id) < int64(len(names)) {
		return names[id]
	}
	return ""
}

// CodeCount returns the number of distinct 7-digit codes.
func (idx *Index) CodeCount() int { return len(idx.byNewCode) }

// LegacyCodeCount returns the number of distinct legacy codes.
func (idx *Index) LegacyCodeCount() int { return len(idx.redirects) }

// EntryCount returns the total number of triples across all 7-digit codes.
func (idx *Index) EntryCount() int {
	n := 0
	for _, ts := range idx.byNewCode {
		n += len(ts)
	}
	return n
}

// NameCounts returns the sizes of the prefecture, city and area tables.
func (idx *Index) NameCounts() (prefectures, cities, areas int) {
	return len(idx.prefectures), len(idx.cities), len(idx.areas)
}

// Codes returns every 7-digit code in ascending order.
func (idx *Index) Codes() []uint32 {
	return sortedKeys(idx.byNewCode)
}

// LegacyCodes returns every legacy code in ascending order.
func (idx *Index) LegacyCodes() []uint32 {
	return sortedKeys(idx.redirects)
}

func sortedKeys[V any](m map[uint32]V) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
