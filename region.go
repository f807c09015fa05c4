package jpostcode

import (
	"fmt"
	"strings"
)

// Region identifies a configured subset of the dataset that is built into
// one independent index.
type Region string

// Supported regions.
const (
	RegionNational Region = "national"
	RegionMetro    Region = "metro"
	RegionKanto    Region = "kanto"
	RegionKansai   Region = "kansai"
	RegionNagoya   Region = "nagoya"
	RegionTokyo    Region = "tokyo"
	RegionKanagawa Region = "kanagawa"
	RegionChiba    Region = "chiba"
	RegionSaitama  Region = "saitama"
	RegionOsaka    Region = "osaka"
	RegionNara     Region = "nara"
	RegionKyoto    Region = "kyoto"
	RegionHyogo    Region = "hyogo"
	RegionAichi    Region = "aichi"
	RegionTest     Region = "test"
)

// Archive file names published by Japan Post under the kogaki download path.
const (
	archiveNational = "ken_all.zip"
	archiveTokyo    = "13tokyo.zip"
	archiveChiba    = "12chiba.zip"
	archiveSaitama  = "11saitam.zip"
	archiveKanagawa = "14kanaga.zip"
	archiveOsaka    = "27osaka.zip"
	archiveKyoto    = "26kyouto.zip"
	archiveNara     = "29nara.zip"
	archiveHyogo    = "28hyogo.zip"
	archiveAichi    = "23aichi.zip"
)

var (
	kantoArchives  = []string{archiveTokyo, archiveChiba, archiveSaitama, archiveKanagawa}
	kansaiArchives = []string{archiveOsaka, archiveKyoto, archiveNara, archiveHyogo}
	nagoyaArchives = []string{archiveAichi}
)

// testLegacyPrefixes selects Hokkaido's 001 (Sapporo Kita-ku) and Tokyo's
// 150 (Shibuya-ku) legacy areas out of the national dataset.
var testLegacyPrefixes = []string{"001", "150"}

type regionSpec struct {
	archives []string
	prefixes []string
}

var regionSpecs = map[Region]regionSpec{
	RegionNational: {archives: []string{archiveNational}},
	RegionMetro:    {archives: concat(kantoArchives, kansaiArchives, nagoyaArchives)},
	RegionKanto:    {archives: kantoArchives},
	RegionKansai:   {archives: kansaiArchives},
	RegionNagoya:   {archives: nagoyaArchives},
	RegionTokyo:    {archives: []string{archiveTokyo}},
	RegionKanagawa: {archives: []string{archiveKanagawa}},
	RegionChiba:    {archives: []string{archiveChiba}},
	RegionSaitama:  {archives: []string{archiveSaitama}},
	RegionOsaka:    {archives: []string{archiveOsaka}},
	RegionNara:     {archives: []string{archiveNara}},
	RegionKyoto:    {archives: []string{archiveKyoto}},
	RegionHyogo:    {archives: []string{archiveHyogo}},
	RegionAichi:    {archives: []string{archiveAichi}},
	RegionTest:     {archives: []string{archiveNational}, prefixes: testLegacyPrefixes},
}

// regionOrder is the order Regions reports.
var regionOrder = []Region{
	RegionNational, RegionMetro, RegionKanto, RegionKansai, RegionTokyo,
	RegionKanagawa, RegionChiba, RegionSaitama, RegionOsaka, RegionNara,
	RegionKyoto, RegionHyogo, RegionAichi, RegionNagoya, RegionTest,
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// Regions returns every supported region.
func Regions() []Region {
	return append([]Region(nil), regionOrder...)
}

// ParseRegion returns the Region named by name. Names are case-insensitive.
// Unknown names fail with ErrInvalidRegion; there is no default region.
func ParseRegion(name string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := regionSpecs[r]; !ok {
		return "", fmt.Errorf("%w: %q (want one of %s)", ErrInvalidRegion, name, regionList())
	}
	return r, nil
}

func regionList() string {
	names := make([]string, len(regionOrder))
	for i, r := range regionOrder {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

// Valid reports whether r is a supported region.
func (r Region) Valid() bool {
	_, ok := regionSpecs[r]
	return ok
}

// Archives returns the Japan Post archive files the region is built from.
func (r Region) Archives() []string {
	return append([]string(nil), regionSpecs[r].archives...)
}

// LegacyPrefixes returns the legacy code prefixes that restrict the region,
// or nil when every row of its archives is kept.
func (r Region) LegacyPrefixes() []string {
	return append([]string(nil), regionSpecs[r].prefixes...)
}

// BuildOptions returns the builder options the region needs.
func (r Region) BuildOptions() []BuildOption {
	if p := r.LegacyPrefixes(); len(p) > 0 {
		return []BuildOption{WithLegacyPrefixes(p...)}
	}
	return nil
}

func (r Region) String() string { return string(r) }
