package patchscope

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/model"
)

// State is the lifecycle state of an Intervention.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateFired
	StateDisarmed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateArmed:
		return "ARMED"
	case StateFired:
		return "FIRED"
	case StateDisarmed:
		return "DISARMED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Intervention overwrites one row of one block's output with a source
// vector, at most once per arming.
//
// IDLE -> ARMED on Arm; ARMED -> FIRED on the first block invocation whose
// sequence length exceeds the position; any -> DISARMED on Disarm. Later
// invocations after FIRED leave the tensor untouched.
type Intervention struct {
	source   ActivationVector
	layer    int
	position int
	log      *zap.Logger

	mu          sync.Mutex
	state       State
	fired       bool
	invocations int
	normBefore  float64
	normAfter   float64
	err         error
	handle      model.Interception
}

// NewIntervention prepares an intervention in state IDLE.
func NewIntervention(source ActivationVector, layer, position int, log *zap.Logger) *Intervention {
	if log == nil {
		log = zap.NewNop()
	}
	return &Intervention{source: source, layer: layer, position: position, log: log}
}

// Arm registers the interception on m. The layer is validated before any
// state changes.
func (iv *Intervention) Arm(m model.Model) error {
	if iv.layer < 0 || iv.layer >= m.NumLayers() {
		return perrors.InvalidLayer("inject", iv.layer, m.NumLayers())
	}
	iv.mu.Lock()
	defer iv.mu.Unlock()
	if iv.state != StateIdle {
		return perrors.InterventionState("arm", iv.state.String())
	}
	h, err := m.Intercept(iv.layer, iv.intercept)
	if err != nil {
		return err
	}
	iv.handle = h
	iv.state = StateArmed
	return nil
}

func (iv *Intervention) intercept(hidden *model.Tensor) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	iv.invocations++
	if iv.state != StateArmed || hidden.Seq <= iv.position {
		return
	}
	if hidden.Dim != iv.source.Len() {
		iv.err = fmt.Errorf("source vector has %d components, layer output has %d", iv.source.Len(), hidden.Dim)
		iv.state = StateFired
		return
	}
	row := hidden.Row(iv.position)
	iv.normBefore = floats.Norm(row, 2)
	iv.source.copyTo(row)
	iv.normAfter = floats.Norm(row, 2)
	iv.fired = true
	iv.state = StateFired
	iv.log.Debug("patch applied",
		zap.Int("inject", iv.layer),
		zap.Int("position", iv.position),
		zap.Float64("norm_before", iv.normBefore),
		zap.Float64("norm_after", iv.normAfter))
}

// Disarm removes the interception. It is safe to call repeatedly and from
// any state.
func (iv *Intervention) Disarm() {
	iv.mu.Lock()
	h := iv.handle
	iv.handle = nil
	iv.state = StateDisarmed
	iv.mu.Unlock()
	if h != nil {
		h.Remove()
	}
}

// State returns the current state.
func (iv *Intervention) State() State {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.state
}

// Applied reports whether the substitution happened.
func (iv *Intervention) Applied() bool {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.fired
}

// Invocations returns how many times the block ran while armed or fired.
func (iv *Intervention) Invocations() int {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.invocations
}

// Norms returns the row norm before and after the substitution.
func (iv *Intervention) Norms() (before, after float64) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.normBefore, iv.normAfter
}

// Err returns a failure recorded during interception.
func (iv *Intervention) Err() error {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.err
}
