package experiment

import (
	"time"

	"github.com/r3d91ll/patchscope/pkg/analysis"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
)

// EventType names a run event. The values double as the labels written to
// the session history file.
type EventType string

const (
	EventExperimentStart    EventType = "EXPERIMENT_START"
	EventModelLoaded        EventType = "MODEL_LOADED"
	EventPhaseStart         EventType = "EXPERIMENT_PHASE_START"
	EventPatchSuccess       EventType = "PATCH_SUCCESS"
	EventPatchFailed        EventType = "PATCH_FAILED"
	EventPatchSkipped       EventType = "PATCH_SKIPPED"
	EventPatchRejected      EventType = "PATCH_REJECTED"
	EventAnalysisComplete   EventType = "ANALYSIS_COMPLETE"
	EventHotspotAnalysis    EventType = "HOTSPOT_ANALYSIS"
	EventExperimentComplete EventType = "EXPERIMENT_COMPLETE"
)

// Event is one observation emitted by a Runner. Only the payload fields
// relevant to Type are set.
type Event struct {
	Type       EventType
	Time       time.Time
	Experiment string
	Entity     string
	Message    string
	Data       map[string]any

	// Request is set for skipped and rejected requests.
	Request *patchscope.Request
	// Result and Bucket are set for PATCH_SUCCESS and PATCH_FAILED.
	Result *patchscope.Result
	Bucket analysis.Bucket

	Analysis *analysis.Analysis
	Hotspots *analysis.Hotspots
}

// Sink receives run events. Record is called synchronously from the
// runner's goroutine.
type Sink interface {
	Record(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Record calls f(e).
func (f SinkFunc) Record(e Event) { f(e) }

// Sinks fans an event out to every member in order.
type Sinks []Sink

// Record forwards e to each non-nil sink.
func (s Sinks) Record(e Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Record(e)
		}
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})
