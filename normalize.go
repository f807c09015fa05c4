package jpostcode

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Normalize converts a user supplied postal code into its canonical numeric
// form. Full-width digits, Latin letters and spaces are folded to ASCII,
// dash variants are treated as hyphens, and every hyphen and whitespace rune
// is removed. Leading zeros are kept: "００１２３" normalizes to "00123".
//
// Normalize never fails. Input that is not a postal code comes back as
// whatever remains after folding, and the lookup treats it as a miss.
func Normalize(code string) string {
	folded := width.Fold.String(code)
	return strings.Map(func(r rune) rune {
		if isDash(r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}

// isDash reports whether r is one of the dash characters found in postal
// codes typed on Japanese keyboards, including the katakana long sound mark.
func isDash(r rune) bool {
	switch r {
	case '-', // hyphen-minus (also the fold of U+FF0D)
		'‐', // hyphen
		'‑', // non-breaking hyphen
		'‒', // figure dash
		'–', // en dash
		'—', // em dash
		'―', // horizontal bar
		'−', // minus sign
		'ー', // katakana-hiragana prolonged sound mark
		'ｰ': // halfwidth prolonged sound mark
		return true
	}
	return false
}

// NormalizeValue normalizes a string or integer-like value. Strings, byte
// slices, fmt.Stringer values and every integer kind, including named types
// such as `type Code int`, are accepted. A nil
// value or any other type yields ErrInvalidInput.
func NormalizeValue(v any) (string, error) {
	var s string
	switch c := v.(type) {
	case nil:
		return "", ErrInvalidInput
	case string:
		s = c
	case []byte:
		s = string(c)
	case int:
		s = strconv.FormatInt(int64(c), 10)
	case int8:
		s = strconv.FormatInt(int64(c), 10)
	case int16:
		s = strconv.FormatInt(int64(c), 10)
	case int32:
		s = strconv.FormatInt(int64(c), 10)
	case int64:
		s = strconv.FormatInt(c, 10)
	case uint:
		s = strconv.FormatUint(uint64(c), 10)
	case uint8:
		s = strconv.FormatUint(uint64(c), 10)
	case uint16:
		s = strconv.FormatUint(uint64(c), 10)
	case uint32:
		s = strconv.FormatUint(uint64(c), 10)
	case uint64:
		s = strconv.FormatUint(c, 10)
	default:
		var ok bool
		if s, ok = namedValue(v); !ok {
			return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidInput, v)
		}
	}
	return Normalize(s), nil
}

// namedValue formats values of named integer or string types, falling back
// to fmt.Stringer for anything else.
func namedValue(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.String:
		return rv.String(), true
	}
	if st, ok := v.(fmt.Stringer); ok {
		return st.String(), true
	}
	return "", false
}
