package jpostcode

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Column positions in the Japan Post KEN_ALL format (15 columns). Columns 3-5
// carry half-width katakana readings and 9-14 are flags; neither is indexed.
const (
	colJISCode    = 0
	colLegacyCode = 1
	colCode       = 2
	colPrefecture = 6
	colCity       = 7
	colArea       = 8
	kenAllColumns = 15
)

// Record is one raw dataset row after character decoding. Codes are kept as
// the trimmed strings from the file; the Builder parses them.
type Record struct {
	JISCode    string // local government code (JIS X0401/X0402)
	LegacyCode string // 3 or 5 digit pre-1998 code
	Code       string // 7 digit code
	Prefecture string
	City       string
	Area       string
}

// ReadRecords parses UTF-8 KEN_ALL CSV rows. Rows with fewer columns than the
// format defines are rejected with ErrMalformedRecord.
func ReadRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var records []Record
	line := 0
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		line++
		if len(fields) < kenAllColumns {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d",
				ErrMalformedRecord, line, len(fields), kenAllColumns)
		}
		records = append(records, Record{
			JISCode:    strings.TrimSpace(fields[colJISCode]),
			LegacyCode: strings.TrimSpace(fields[colLegacyCode]),
			Code:       strings.TrimSpace(fields[colCode]),
			Prefecture: strings.TrimSpace(fields[colPrefecture]),
			City:       strings.TrimSpace(fields[colCity]),
			Area:       strings.TrimSpace(fields[colArea]),
		})
	}
	return records, nil
}

// ReadShiftJISRecords decodes Shift_JIS input, the encoding Japan Post
// publishes, and parses it with ReadRecords.
func ReadShiftJISRecords(r io.Reader) ([]Record, error) {
	return ReadRecords(transform.NewReader(r, japanese.ShiftJIS.NewDecoder()))
}

// SortRecords orders records by their 7-digit code, keeping the file order
// of rows that share a code. The Builder relies on this ordering.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Code < records[j].Code
	})
}
