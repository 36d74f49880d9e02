package internal

import (
	"regexp"
)

const (
	// A valid name must start with a letter, digit or underscore.
	// It may contain any character after that except control, slash and at,
	// which the layout policies use as separators.
	pattern = `^[\pL\pN_][^\pC/@]*$`
	// It may not end with a whitespace character, or be a reserved word.
	antiPattern = `(\pZ|^(u?byte|char|string|u?short|u?int|u?int64|float|double))$`
	// Names starting with _ and an upper case letter are reserved for
	// hidden bookkeeping attributes such as _FillValue.
	reservedPattern = `^_\p{Lu}`
)

var (
	re         = regexp.MustCompile(pattern)
	antiRe     = regexp.MustCompile(antiPattern)
	reservedRe = regexp.MustCompile(reservedPattern)
)

// IsValidName returns true if name can be used as a dimension, variable,
// group or attribute name segment.
func IsValidName(name string) bool {
	return re.MatchString(name) && !antiRe.MatchString(name)
}

// IsReservedName returns true for names the codecs keep for themselves.
func IsReservedName(name string) bool {
	return reservedRe.MatchString(name)
}
