// Package parser normalizes LOTL and per-country Trusted List XML into canonical
// records. Elements are matched by local name only: member states publish
// structurally identical lists under different namespace prefixes and declarations.
package parser

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"tlwatch/internal/trustlist/models"
)

// Element names in the LOTL schema.
const (
	elemOtherTSLPointer = "OtherTSLPointer"
	elemSchemeTerritory = "SchemeTerritory"
	elemTSLLocation     = "TSLLocation"
)

// ParseLOTL reads the LOTL document at path and returns its Trusted List pointers.
func ParseLOTL(path string) ([]models.Pointer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lotl document: %w", err)
	}
	defer f.Close()
	return DecodeLOTL(f, path)
}

// DecodeLOTL extracts pointers from a LOTL document. A pointer is kept only when
// its territory is exactly two characters and its location starts with "http".
// Pointers are deduplicated by (country, url), first occurrence first.
func DecodeLOTL(r io.Reader, document string) ([]models.Pointer, error) {
	root, line, err := decodeTree(r)
	if err != nil {
		return nil, &ParseError{Document: document, Line: line, Err: err}
	}

	seen := make(map[models.Pointer]struct{})
	var pointers []models.Pointer
	for _, p := range root.descendants(elemOtherTSLPointer) {
		cc := strings.ToUpper(p.firstText(elemSchemeTerritory))
		loc := p.firstText(elemTSLLocation)
		if !acceptPointer(cc, loc) {
			continue
		}
		ptr := models.Pointer{CountryCode: cc, TLURL: loc}
		if _, dup := seen[ptr]; dup {
			continue
		}
		seen[ptr] = struct{}{}
		pointers = append(pointers, ptr)
	}
	return pointers, nil
}

func acceptPointer(countryCode, location string) bool {
	return countryCode != "" &&
		location != "" &&
		strings.HasPrefix(location, "http") &&
		utf8.RuneCountInString(countryCode) == 2
}

// FilterCountries keeps the pointers whose country is in countries, preserving order.
// An empty filter keeps everything.
func FilterCountries(pointers []models.Pointer, countries []string) []models.Pointer {
	if len(countries) == 0 {
		return pointers
	}
	allowed := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		allowed[c] = struct{}{}
	}
	out := make([]models.Pointer, 0, len(pointers))
	for _, p := range pointers {
		if _, ok := allowed[p.CountryCode]; ok {
			out = append(out, p)
		}
	}
	return out
}
