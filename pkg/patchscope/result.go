package patchscope

import "fmt"

// Pair is an (extract, inject) layer combination.
type Pair struct {
	Extract int `json:"extract_layer"`
	Inject  int `json:"inject_layer"`
}

func (p Pair) String() string { return fmt.Sprintf("L%d->L%d", p.Extract, p.Inject) }

// TemplateRef names the prompt template a request was built from.
type TemplateRef struct {
	Category string `json:"type"`
	Index    int    `json:"index"`
}

// Request is one patching operation.
type Request struct {
	SourcePrompt string
	TargetPrompt string
	ExtractLayer int
	InjectLayer  int
	Template     *TemplateRef
}

// Pair returns the request's layer combination.
func (r Request) Pair() Pair { return Pair{Extract: r.ExtractLayer, Inject: r.InjectLayer} }

// Result is the record of one patching operation.
type Result struct {
	ExtractLayer   int          `json:"extract_layer"`
	InjectLayer    int          `json:"inject_layer"`
	SourcePrompt   string       `json:"source_prompt"`
	TargetPrompt   string       `json:"target_prompt"`
	SourceToken    string       `json:"source_token"`
	PatchPosition  int          `json:"patch_position"`
	PatchApplied   bool         `json:"patch_applied"`
	SourceReprNorm float64      `json:"source_repr_norm"`
	NormBefore     float64      `json:"norm_before,omitempty"`
	NormAfter      float64      `json:"norm_after,omitempty"`
	GeneratedText  string       `json:"generated_text"`
	NewTokens      string       `json:"new_tokens"`
	Template       *TemplateRef `json:"template,omitempty"`
	Error          string       `json:"error,omitempty"`
	DurationMS     float64      `json:"duration_ms"`
}

// Pair returns the result's layer combination.
func (r *Result) Pair() Pair { return Pair{Extract: r.ExtractLayer, Inject: r.InjectLayer} }
