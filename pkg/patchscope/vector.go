package patchscope

import (
	"gonum.org/v1/gonum/floats"
)

// ActivationVector is an immutable hidden-state vector tagged with where it
// came from. Accessors return copies.
type ActivationVector struct {
	values []float64
	prompt string
	layer  int
	token  string
}

// NewActivationVector copies values into a new vector.
func NewActivationVector(values []float64, prompt string, layer int, token string) ActivationVector {
	return ActivationVector{
		values: append([]float64(nil), values...),
		prompt: prompt,
		layer:  layer,
		token:  token,
	}
}

// Values returns a copy of the vector's components.
func (v ActivationVector) Values() []float64 {
	return append([]float64(nil), v.values...)
}

// Len returns the vector's dimension.
func (v ActivationVector) Len() int { return len(v.values) }

// Prompt returns the source prompt.
func (v ActivationVector) Prompt() string { return v.prompt }

// Layer returns the extraction layer.
func (v ActivationVector) Layer() int { return v.layer }

// SourceToken returns the decoded last token of the source prompt.
func (v ActivationVector) SourceToken() string { return v.token }

// Norm returns the Euclidean norm.
func (v ActivationVector) Norm() float64 {
	if len(v.values) == 0 {
		return 0
	}
	return floats.Norm(v.values, 2)
}

// copyTo writes the components into dst and returns the number copied.
func (v ActivationVector) copyTo(dst []float64) int {
	return copy(dst, v.values)
}
