package jpostcode

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildStats reports what a build consumed and produced.
type BuildStats struct {
	Rows       int // rows passed to Add
	Skipped    int // rows rejected by the legacy prefix filter
	Entries    int // triples added across all 7-digit codes
	Duplicates int // rows whose triple was already stored for their code
	Codes      int // distinct 7-digit codes
}

// BuildOption configures a Builder.
type BuildOption func(*Builder)

// WithLegacyPrefixes keeps only rows whose legacy code starts with one of the
// given prefixes. It is used to build the reduced test region.
func WithLegacyPrefixes(prefixes ...string) BuildOption {
	return func(b *Builder) {
		b.prefixes = append([]string(nil), prefixes...)
	}
}

// Builder accumulates raw rows into an Index. Rows must arrive sorted by
// 7-digit code (see SortRecords). A Builder is single use and not safe for
// concurrent use.
type Builder struct {
	prefixes []string

	prefectures *nameTable[NameID]
	cities      *nameTable[NameID]
	areas       *nameTable[NameID]

	byNewCode map[uint32][]Triple
	redirects map[uint32][]uint32
	edges     map[uint64]struct{} // legacy<<32 | code, for redirect dedup

	stats BuildStats
	built bool
}

// NewBuilder returns an empty Builder.
func NewBuilder(opts ...BuildOption) *Builder {
	b := &Builder{
		prefectures: newNameTable[NameID]("prefecture", 64),
		cities:      newNameTable[NameID]("city", 2048),
		areas:       newNameTable[NameID]("area", 65536),
		byNewCode:   make(map[uint32][]Triple),
		redirects:   make(map[uint32][]uint32),
		edges:       make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add consumes one row. Rows filtered out by WithLegacyPrefixes are counted
// and ignored. A row whose codes are not numeric fails with ErrMalformedRecord.
func (b *Builder) Add(r Record) error {
	if b.built {
		return ErrBuilderClosed
	}
	b.stats.Rows++
	if !b.accepts(r.LegacyCode) {
		b.stats.Skipped++
		return nil
	}

	code, err := parseCode(r.Code, "code")
	if err != nil {
		return err
	}
	legacy, err := parseCode(r.LegacyCode, "legacy code")
	if err != nil {
		return err
	}

	edge := uint64(legacy)<<32 | uint64(code)
	if _, ok := b.edges[edge]; !ok {
		b.edges[edge] = struct{}{}
		b.redirects[legacy] = append(b.redirects[legacy], code)
	}

	var t Triple
	if t.Prefecture, err = b.prefectures.intern(r.Prefecture); err != nil {
		return err
	}
	if t.City, err = b.cities.intern(r.City); err != nil {
		return err
	}
	if t.Area, err = b.areas.intern(r.Area); err != nil {
		return err
	}

	// The same address can appear twice upstream; store it once per code.
	for _, existing := range b.byNewCode[code] {
		if existing == t {
			b.stats.Duplicates++
			return nil
		}
	}
	b.byNewCode[code] = append(b.byNewCode[code], t)
	b.stats.Entries++
	return nil
}

func (b *Builder) accepts(legacy string) bool {
	if len(b.prefixes) == 0 {
		return true
	}
	for _, p := range b.prefixes {
		if strings.HasPrefix(legacy, p) {
			return true
		}
	}
	return false
}

func parseCode(s, field string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedRecord, field, s)
	}
	return uint32(n), nil
}

// Build verifies the name tables and returns the finished Index. Nothing is
// returned when verification fails. The Builder cannot be reused.
func (b *Builder) Build() (*Index, BuildStats, error) {
	if b.built {
		return nil, BuildStats{}, ErrBuilderClosed
	}
	b.built = true

	for _, nt := range []*nameTable[NameID]{b.prefectures, b.cities, b.areas} {
		if err := nt.verify(); err != nil {
			return nil, b.stats, err
		}
	}

	idx := &Index{
		byNewCode:   b.byNewCode,
		redirects:   b.redirects,
		prefectures: b.prefectures.names(),
		cities:      b.cities.names(),
		areas:       b.areas.names(),
	}
	b.stats.Codes = len(idx.byNewCode)

	b.byNewCode, b.redirects, b.edges = nil, nil, nil
	return idx, b.stats, nil
}

// BuildIndex builds an Index from records already sorted by 7-digit code.
func BuildIndex(records []Record, opts ...BuildOption) (*Index, BuildStats, error) {
	b := NewBuilder(opts...)
	for i, r := range records {
		if err := b.Add(r); err != nil {
			return nil, b.stats, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return b.Build()
}
