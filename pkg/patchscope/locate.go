package patchscope

import (
	"strings"

	"github.com/r3d91ll/patchscope/pkg/model"
)

// NotFound is returned by the locators when no token matches the marker.
const NotFound = -1

// DefaultMarker is the placeholder token that receives the substituted vector.
const DefaultMarker = "?"

var spacePrefixes = []string{"Ġ", "▁"}

// FindMarker tokenizes text and returns the index of the first token that
// is the marker, or NotFound.
func FindMarker(tok model.Tokenizer, text, marker string) int {
	return FindMarkerIDs(tok, tok.Encode(text), marker)
}

// FindMarkerIDs is FindMarker over already encoded ids.
func FindMarkerIDs(tok model.Tokenizer, ids []int, marker string) int {
	want := strings.ToLower(strings.TrimSpace(marker))
	if want == "" {
		return NotFound
	}
	for i, id := range ids {
		if normalizePiece(tok.IDToToken(id)) == want {
			return i
		}
	}
	return NotFound
}

// normalizePiece strips whitespace and byte-level or sentencepiece space
// prefixes, then lowercases.
func normalizePiece(piece string) string {
	p := strings.TrimSpace(piece)
	for _, prefix := range spacePrefixes {
		if rest, ok := strings.CutPrefix(p, prefix); ok {
			p = rest
			break
		}
	}
	return strings.ToLower(strings.TrimSpace(p))
}
