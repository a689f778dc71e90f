// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vfd

import (
	"math"
	"strings"
)

// ParseLiteral parses a numeric literal of the form
//
//	[sign] digits ['.' digits] [('e'|'d') [sign] digits]
//
// or one of the named values nan, notanumber, inf, infty, infinity (the infinity
// forms may carry a leading '-'). Surrounding whitespace is ignored, letters are
// case-insensitive and 'd' is accepted as an exponent marker.
//
// ParseLiteral never fails: malformed input yields NaN. Callers detect bad input
// with math.IsNaN and math.IsInf.
func ParseLiteral(token string) float64 {
	return parseNormalized(normalizeLiteral(token))
}

// normalizeLiteral trims, lower-cases and rewrites 'd' exponent markers to 'e'.
func normalizeLiteral(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "d", "e")
}

// parseNormalized parses a token already passed through normalizeLiteral.
func parseNormalized(s string) float64 {
	switch s {
	case "", "nan", "notanumber":
		return math.NaN()
	case "inf", "infty", "infinity":
		return math.Inf(1)
	case "-inf", "-infty", "-infinity":
		return math.Inf(-1)
	}

	dot := strings.IndexByte(s, '.')
	exp := strings.IndexByte(s, 'e')
	if dot >= 0 && strings.IndexByte(s[dot+1:], '.') >= 0 {
		return math.NaN()
	}
	if exp >= 0 && strings.IndexByte(s[exp+1:], 'e') >= 0 {
		return math.NaN()
	}
	if dot >= 0 && exp >= 0 && exp < dot {
		return math.NaN()
	}

	mantissaEnd := len(s)
	if exp >= 0 {
		mantissaEnd = exp
	}
	intEnd := mantissaEnd
	if dot >= 0 {
		intEnd = dot
	}

	pos := 0
	negative := false
	if pos < intEnd && (s[pos] == '+' || s[pos] == '-') {
		negative = s[pos] == '-'
		pos++
	}

	value, intDigits, ok := digitRun(s[pos:intEnd])
	if !ok {
		return math.NaN()
	}

	fracDigits := 0
	if dot >= 0 {
		var fraction float64
		fraction, fracDigits, ok = digitRun(s[dot+1 : mantissaEnd])
		if !ok {
			return math.NaN()
		}
		value += fraction * math.Pow10(-fracDigits)
	}
	if intDigits+fracDigits == 0 {
		return math.NaN()
	}

	if exp >= 0 {
		e, ok := exponentRun(s[exp+1:])
		if !ok {
			return math.NaN()
		}
		// 0 * 10^huge would be NaN
		if value != 0 {
			value *= math.Pow10(e)
		}
	}

	if negative {
		value = -value
	}
	return value
}

// digitRun accumulates a run of decimal digits. An empty run is valid and has
// zero length; any non-digit rejects the run.
func digitRun(s string) (value float64, n int, ok bool) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, 0, false
		}
		value = value*10 + float64(c-'0')
	}
	return value, len(s), true
}

// exponentRun parses an optionally signed, non-empty exponent digit run.
func exponentRun(s string) (int, bool) {
	negative := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		negative = s[0] == '-'
		s = s[1:]
	}
	if len(s) == 0 {
		return 0, false
	}
	e := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		if e < maxExponent {
			e = e*10 + int(c-'0')
		}
	}
	if negative {
		e = -e
	}
	return e, true
}
