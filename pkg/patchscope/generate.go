package patchscope

import (
	"context"
	"strings"

	"github.com/r3d91ll/patchscope/pkg/model"
)

// Generation is the output of a greedy continuation.
type Generation struct {
	IDs       []int
	Text      string
	NewTokens string
}

// Suffix returns the trimmed part of text beyond prompt's length, or "" when
// text is not longer than prompt.
func Suffix(text, prompt string) string {
	if len(text) <= len(prompt) {
		return ""
	}
	return strings.TrimSpace(text[len(prompt):])
}

// Generate greedily continues prompt by at most maxNew tokens.
func Generate(ctx context.Context, m model.Model, prompt string, maxNew int) (Generation, error) {
	return generateIDs(ctx, m, m.Tokenizer().Encode(prompt), prompt, maxNew)
}

func generateIDs(ctx context.Context, m model.Model, ids []int, prompt string, maxNew int) (Generation, error) {
	out, err := m.Generate(ctx, ids, model.GenerateOptions{MaxNewTokens: maxNew})
	if err != nil {
		return Generation{}, err
	}
	text := m.Tokenizer().Decode(out, true)
	return Generation{IDs: out, Text: text, NewTokens: Suffix(text, prompt)}, nil
}
