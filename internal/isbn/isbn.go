// Package isbn implements ISBN-10 and ISBN-13 validation and text extraction.
package isbn

import (
	"regexp"
	"strings"
)

// pattern matches ISBN-like sequences, hyphenated or not, with an optional
// 978/979 prefix and an optional trailing X check digit.
var pattern = regexp.MustCompile(`(978-?|979-?)?\d(-?[\dxX]){9}`)

// Normalize strips hyphens and spaces and upper-cases a trailing x.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return strings.ToUpper(s)
}

// IsValid10 reports whether s is a valid ISBN-10.
// s may contain hyphens; a trailing X counts as 10.
func IsValid10(s string) bool {
	s = Normalize(s)
	if len(s) != 10 {
		return false
	}

	sum := 0
	for i, ch := range s {
		var digit int
		switch {
		case ch >= '0' && ch <= '9':
			digit = int(ch - '0')
		case ch == 'X' && i == 9:
			digit = 10
		default:
			return false
		}
		sum += digit * (10 - i)
	}
	return sum%11 == 0
}

// IsValid13 reports whether s is a valid ISBN-13.
// s may contain hyphens.
func IsValid13(s string) bool {
	s = Normalize(s)
	if len(s) != 13 {
		return false
	}

	sum := 0
	for i, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
		digit := int(ch - '0')
		if i%2 == 1 {
			digit *= 3
		}
		sum += digit
	}
	return sum%10 == 0
}

// Extract scans text for ISBN candidates and returns the first valid
// ISBN-10 and ISBN-13 found, in their original (possibly hyphenated) form.
// Either result may be empty.
func Extract(text string) (isbn10, isbn13 string) {
	for _, match := range pattern.FindAllString(text, -1) {
		switch len(Normalize(match)) {
		case 10:
			if isbn10 == "" && IsValid10(match) {
				isbn10 = match
			}
		case 13:
			if isbn13 == "" && IsValid13(match) {
				isbn13 = match
			}
		}
		if isbn10 != "" && isbn13 != "" {
			break
		}
	}
	return isbn10, isbn13
}

// FromIdentifier validates a bare identifier string (digits with optional
// trailing X) as either ISBN form and returns it normalized, or "" if invalid.
func FromIdentifier(s string) string {
	n := Normalize(s)
	switch len(n) {
	case 10:
		if IsValid10(n) {
			return n
		}
	case 13:
		if IsValid13(n) {
			return n
		}
	}
	return ""
}
