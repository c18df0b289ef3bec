package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/r3d91ll/patchscope/pkg/analysis"
	"github.com/r3d91ll/patchscope/pkg/experiment"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func feed(r *Recorder) {
	ok := &patchscope.Result{PatchApplied: true, DurationMS: 12}
	bad := &patchscope.Result{Error: "boom", DurationMS: 3}
	for _, e := range []experiment.Event{
		{Type: experiment.EventPatchSuccess, Experiment: "sweep", Result: ok, Bucket: analysis.BucketStrong},
		{Type: experiment.EventPatchSuccess, Experiment: "sweep", Result: ok, Bucket: analysis.BucketWeak},
		{Type: experiment.EventPatchFailed, Experiment: "sweep", Result: bad, Bucket: analysis.BucketFailed},
		{Type: experiment.EventPatchSkipped, Experiment: "sweep"},
		{Type: experiment.EventPatchRejected, Experiment: "sweep"},
		{Type: experiment.EventPatchRejected, Experiment: "sweep"},
		{Type: experiment.EventAnalysisComplete, Experiment: "sweep", Entity: "Ada", Analysis: &analysis.Analysis{Summary: analysis.Summary{StrongCount: 4}}},
		{Type: experiment.EventExperimentComplete, Experiment: "sweep"},
	} {
		r.Record(e)
	}
}

func TestRecorder_Counts(t *testing.T) {
	r := New()
	feed(r)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.requests.WithLabelValues("sweep", OutcomeExecuted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("sweep", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("sweep", OutcomeSkipped)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.requests.WithLabelValues("sweep", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.buckets.WithLabelValues("sweep", "strong")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.strong.WithLabelValues("sweep", "Ada")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.experiments.WithLabelValues("sweep")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestRecorder_IgnoresResultlessEvents(t *testing.T) {
	r := New()
	r.Record(experiment.Event{Type: experiment.EventPatchSuccess, Experiment: "quick"})
	r.Record(experiment.Event{Type: experiment.EventAnalysisComplete, Experiment: "quick"})
	assert.Equal(t, 0, testutil.CollectAndCount(r.requests))
	assert.Equal(t, 0, testutil.CollectAndCount(r.strong))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	feed(r)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `patchscope_requests_total{experiment="sweep",outcome="rejected"} 2`), text)
	assert.Contains(t, text, "patchscope_patch_duration_seconds_bucket")
}
