package reference

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/model"
)

// ProviderName is the registry name of this provider.
const ProviderName = "reference"

// Register adds the reference provider to r.
func Register(r *model.Registry) error {
	return r.Register(ProviderName, Load)
}

// Load builds a reference model from an identifier of the form
// "reference/<layers>x<hidden>[/<style>]", e.g. "reference/28x48" or
// "reference/12x24/sentencepiece".
func Load(ctx context.Context, opts model.LoadOptions) (model.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	layers, hidden, style, err := ParseIdentifier(opts.Identifier)
	if err != nil {
		return nil, perrors.ModelLoadFailed(ProviderName, opts.Identifier, err)
	}
	return New(Options{
		Name:       opts.Name,
		Identifier: opts.Identifier,
		Layers:     layers,
		Hidden:     hidden,
		Seed:       seedFor(opts.Identifier),
		Decode:     opts.Decode,
		Style:      style,
		Logger:     opts.Logger,
	})
}

// ParseIdentifier splits a reference identifier into its geometry and
// tokenizer style.
func ParseIdentifier(id string) (layers, hidden int, style string, err error) {
	parts := strings.Split(id, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != ProviderName {
		return 0, 0, "", fmt.Errorf("malformed identifier %q", id)
	}
	if _, err := fmt.Sscanf(parts[1], "%dx%d", &layers, &hidden); err != nil {
		return 0, 0, "", fmt.Errorf("malformed geometry %q: %w", parts[1], err)
	}
	if layers < 1 || hidden < 2 {
		return 0, 0, "", fmt.Errorf("geometry %q too small", parts[1])
	}
	style = StyleByteLevel
	if len(parts) == 3 {
		style = parts[2]
	}
	return layers, hidden, style, nil
}

// seedFor derives the weight seed from the geometry only, so the decode
// strategy and tokenizer style never change the weights.
func seedFor(identifier string) uint64 {
	geometry := identifier
	if parts := strings.Split(identifier, "/"); len(parts) >= 2 {
		geometry = parts[1]
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(geometry))
	return h.Sum64()
}
