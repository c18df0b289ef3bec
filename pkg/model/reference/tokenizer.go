package reference

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	perrors "github.com/r3d91ll/patchscope/pkg/errors"
)

//go:embed vocab.txt
var vocabFile string

// Space prefixes of the two supported piece styles.
const (
	SpaceByteLevel     = "Ġ"
	SpaceSentencePiece = "▁"
)

// Piece styles accepted by NewTokenizer.
const (
	StyleByteLevel     = "bytelevel"
	StyleSentencePiece = "sentencepiece"
)

const (
	bosID       = 0
	eosID       = 1
	firstByteID = 2
	firstWordID = firstByteID + 256
)

const punctuation = ".,:;?!'\"-()/"

// Tokenizer is a word-level tokenizer with a byte fallback, so every
// input encodes and Decode(Encode(s)) == s. A single space before a word
// or punctuation mark is folded into the piece as a style prefix.
type Tokenizer struct {
	style  string
	space  string
	pieces []string
	vocab  map[string]int
}

// NewTokenizer builds a tokenizer over the embedded word list.
func NewTokenizer(style string) (*Tokenizer, error) {
	var space string
	switch style {
	case StyleByteLevel, "":
		style, space = StyleByteLevel, SpaceByteLevel
	case StyleSentencePiece:
		space = SpaceSentencePiece
	default:
		return nil, perrors.UnknownStrategy(style).WithContext("kind", "tokenizer style")
	}

	t := &Tokenizer{style: style, space: space, vocab: make(map[string]int)}
	t.add("<s>")
	t.add("</s>")
	for b := 0; b < 256; b++ {
		t.add(fmt.Sprintf("<0x%02X>", b))
	}
	words := strings.Fields(vocabFile)
	for _, p := range punctuation {
		words = append(words, string(p))
	}
	for _, w := range words {
		t.add(w)
		t.add(space + w)
	}
	return t, nil
}

func (t *Tokenizer) add(piece string) {
	if _, ok := t.vocab[piece]; ok {
		return
	}
	t.vocab[piece] = len(t.pieces)
	t.pieces = append(t.pieces, piece)
}

// Size returns the vocabulary size.
func (t *Tokenizer) Size() int { return len(t.pieces) }

// Style returns the piece style.
func (t *Tokenizer) Style() string { return t.style }

// EOS returns the end-of-sequence id.
func (t *Tokenizer) EOS() int { return eosID }

// BOS returns the beginning-of-sequence id.
func (t *Tokenizer) BOS() int { return bosID }

// IDToToken returns the raw piece for id, or "" when out of range.
func (t *Tokenizer) IDToToken(id int) string {
	if id < 0 || id >= len(t.pieces) {
		return ""
	}
	return t.pieces[id]
}

// Generatable reports whether the model may emit id.
func (t *Tokenizer) Generatable(id int) bool {
	return id == eosID || id >= firstWordID
}

// Encode tokenizes text and prepends BOS.
func (t *Tokenizer) Encode(text string) []int {
	ids := []int{bosID}
	for i := 0; i < len(text); {
		start := i
		prefixed := false
		if text[i] == ' ' && i+1 < len(text) && !isSpaceByte(text[i+1]) {
			prefixed = true
			i++
		}

		r, size := utf8.DecodeRuneInString(text[i:])
		j := i + size
		switch {
		case isWordRune(r):
			for j < len(text) {
				r2, s2 := utf8.DecodeRuneInString(text[j:])
				if !isWordRune(r2) {
					break
				}
				j += s2
			}
		case unicode.IsSpace(r):
			ids = t.appendBytes(ids, text[start:j])
			i = j
			continue
		}

		piece := text[i:j]
		if prefixed {
			piece = t.space + piece
		}
		if id, ok := t.vocab[piece]; ok && (prefixed || !strings.HasPrefix(piece, t.space)) {
			ids = append(ids, id)
		} else {
			ids = t.appendBytes(ids, text[start:j])
		}
		i = j
	}
	return ids
}

func (t *Tokenizer) appendBytes(ids []int, s string) []int {
	for k := 0; k < len(s); k++ {
		ids = append(ids, firstByteID+int(s[k]))
	}
	return ids
}

// Decode renders ids as text.
func (t *Tokenizer) Decode(ids []int, skipSpecial bool) string {
	var buf []byte
	for _, id := range ids {
		switch {
		case id < 0 || id >= len(t.pieces):
			continue
		case id < firstByteID:
			if !skipSpecial {
				buf = append(buf, t.pieces[id]...)
			}
		case id < firstWordID:
			buf = append(buf, byte(id-firstByteID))
		default:
			p := t.pieces[id]
			if rest, ok := strings.CutPrefix(p, t.space); ok {
				buf = append(buf, ' ')
				p = rest
			}
			buf = append(buf, p...)
		}
	}
	return string(buf)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
