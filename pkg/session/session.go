// Package session records a patchscope run: an append-only history file,
// a JSON snapshot of events, results and analyses, a human-readable
// summary and a CSV of results.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/r3d91ll/patchscope/pkg/analysis"
	"github.com/r3d91ll/patchscope/pkg/config"
	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/experiment"
	"github.com/r3d91ll/patchscope/pkg/export"
	"github.com/r3d91ll/patchscope/pkg/model"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
)

// Execution environments reported by Detect.
const (
	EnvColab      = "Google Colab"
	EnvKaggle     = "Kaggle"
	EnvCodespaces = "GitHub Codespaces"
	EnvLocal      = "Local"
)

// Detect names the execution environment from the process environment and
// working directory.
func Detect(getenv func(string) string, wd string) string {
	switch {
	case getenv("COLAB_GPU") != "":
		return EnvColab
	case strings.Contains(wd, "/kaggle/"):
		return EnvKaggle
	case getenv("CODESPACE_NAME") != "":
		return EnvCodespaces
	default:
		return EnvLocal
	}
}

// EventRecord is one entry of the snapshot's event list.
type EventRecord struct {
	Timestamp  time.Time      `json:"timestamp"`
	SessionID  string         `json:"session_id"`
	EventType  string         `json:"event_type"`
	Experiment string         `json:"experiment,omitempty"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data"`
}

// ResultRecord is a result with the run it belongs to.
type ResultRecord struct {
	Experiment string          `json:"experiment"`
	Entity     string          `json:"entity"`
	Bucket     analysis.Bucket `json:"bucket"`
	*patchscope.Result
}

// AnalysisRecord is the analysis of one run.
type AnalysisRecord struct {
	Experiment   string             `json:"experiment"`
	SourcePrompt string             `json:"source_prompt"`
	Timestamp    time.Time          `json:"timestamp"`
	Summary      analysis.Summary   `json:"summary"`
	Hotspots     *analysis.Hotspots `json:"hotspots,omitempty"`
}

// Summary is the final summary of the most recent experiment.
type Summary struct {
	ExperimentType string         `json:"experiment_type"`
	TotalTime      float64        `json:"total_time"`
	KeyFindings    map[string]any `json:"key_findings"`
	EndTime        time.Time      `json:"end_time"`
}

// Stats counts request outcomes seen by a Logger.
type Stats struct {
	Results  int `json:"results"`
	Applied  int `json:"successful_patches"`
	Skipped  int `json:"skipped"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}

// Requests is the number of requests observed.
func (s Stats) Requests() int { return s.Results + s.Skipped + s.Rejected }

// SuccessRate is the applied share of results as a percentage.
func (s Stats) SuccessRate() float64 {
	if s.Results == 0 {
		return 0
	}
	return float64(s.Applied) / float64(s.Results) * 100
}

// Snapshot is the JSON document written to the results file.
type Snapshot struct {
	SessionID       string           `json:"session_id"`
	ExperimentName  string           `json:"experiment_name"`
	StartTime       time.Time        `json:"start_time"`
	Environment     string           `json:"environment"`
	ModelInfo       *model.Info      `json:"model_info,omitempty"`
	Events          []EventRecord    `json:"events"`
	Results         []ResultRecord   `json:"results"`
	Analyses        []AnalysisRecord `json:"analyses"`
	Summary         *Summary         `json:"summary,omitempty"`
	Stats           Stats            `json:"stats"`
	Reproducibility *export.RunHash  `json:"reproducibility,omitempty"`
}

// Options configures a Logger.
type Options struct {
	Config     config.SessionConfig
	Experiment string
	// Environment overrides Detect when set.
	Environment string
	Logger      *zap.Logger
}

// Logger records experiment events to the session files. It implements
// experiment.Sink. Write failures are logged and never abort a run.
type Logger struct {
	cfg     config.SessionConfig
	dialect export.CSVDialect
	log     *zap.Logger
	now     func() time.Time

	mu   sync.Mutex
	snap Snapshot
}

var _ experiment.Sink = (*Logger)(nil)

// New creates a Logger and its export directory.
func New(opts Options) (*Logger, error) {
	dialect, err := export.ParseDialect(opts.Config.CSVDialect)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Environment == "" {
		wd, _ := os.Getwd()
		opts.Environment = Detect(os.Getenv, wd)
	}
	if opts.Config.ExportDir == "" {
		opts.Config.ExportDir = "."
	}
	if err := os.MkdirAll(opts.Config.ExportDir, 0755); err != nil {
		return nil, perrors.WriteFailed(opts.Config.ExportDir, err)
	}

	l := &Logger{
		cfg:     opts.Config,
		dialect: dialect,
		log:     opts.Logger,
		now:     time.Now,
	}
	l.snap = Snapshot{
		SessionID:      uuid.New().String(),
		ExperimentName: opts.Experiment,
		StartTime:      l.now(),
		Environment:    opts.Environment,
		Events:         make([]EventRecord, 0),
		Results:        make([]ResultRecord, 0),
		Analyses:       make([]AnalysisRecord, 0),
	}
	return l, nil
}

// ID returns the session id.
func (l *Logger) ID() string { return l.snap.SessionID }

// Environment returns the detected execution environment.
func (l *Logger) Environment() string { return l.snap.Environment }

// Stats returns the outcome counts so far.
func (l *Logger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap.Stats
}

// Paths returns the history, results, summary and CSV file paths.
func (l *Logger) Paths() (history, results, summary, csv string) {
	return l.path(l.cfg.HistoryFile), l.path(l.cfg.ResultsFile), l.path(l.cfg.SummaryFile), l.path(l.cfg.CSVFile)
}

func (l *Logger) path(name string) string {
	if name == "" {
		return ""
	}
	return filepath.Join(l.cfg.ExportDir, name)
}

// Record files an experiment event and appends it to the history file.
func (l *Logger) Record(e experiment.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = l.now()
	}
	data := e.Data
	switch e.Type {
	case experiment.EventModelLoaded:
		if info, ok := e.Data["model_info"].(model.Info); ok {
			l.snap.ModelInfo = &info
		}

	case experiment.EventPatchSuccess, experiment.EventPatchFailed:
		if e.Result != nil {
			l.snap.Results = append(l.snap.Results, ResultRecord{
				Experiment: e.Experiment,
				Entity:     e.Entity,
				Bucket:     e.Bucket,
				Result:     e.Result,
			})
			l.snap.Stats.Results++
			if e.Result.PatchApplied {
				l.snap.Stats.Applied++
			}
			if e.Result.Error != "" {
				l.snap.Stats.Failed++
			}
			data = map[string]any{"result": e.Result, "bucket": e.Bucket}
		}

	case experiment.EventPatchSkipped:
		l.snap.Stats.Skipped++

	case experiment.EventPatchRejected:
		l.snap.Stats.Rejected++

	case experiment.EventAnalysisComplete:
		if a := e.Analysis; a != nil {
			l.snap.Analyses = append(l.snap.Analyses, AnalysisRecord{
				Experiment:   e.Experiment,
				SourcePrompt: a.Entity,
				Timestamp:    e.Time,
				Summary:      a.Summary,
			})
			data = map[string]any{
				"source_prompt":        a.Entity,
				"summary":              a.Summary,
				"strong_matches_count": len(a.Strong),
				"best_results":         a.Strong[:min(3, len(a.Strong))],
			}
		}

	case experiment.EventHotspotAnalysis:
		if h := e.Hotspots; h != nil {
			if n := len(l.snap.Analyses); n > 0 && l.snap.Analyses[n-1].SourcePrompt == e.Entity {
				l.snap.Analyses[n-1].Hotspots = h
			}
			data = map[string]any{"hotspots": h}
		}

	case experiment.EventExperimentComplete:
		elapsed, _ := e.Data["duration_seconds"].(float64)
		l.snap.Summary = &Summary{
			ExperimentType: e.Experiment,
			TotalTime:      elapsed,
			KeyFindings:    e.Data,
			EndTime:        e.Time,
		}
	}

	rec := EventRecord{
		Timestamp:  e.Time,
		SessionID:  l.snap.SessionID,
		EventType:  string(e.Type),
		Experiment: e.Experiment,
		Message:    e.Message,
		Data:       data,
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	l.snap.Events = append(l.snap.Events, rec)
	l.appendHistory(rec)
}

// appendHistory writes "[timestamp] TYPE: message", followed by the event
// data when detailed logging is enabled.
func (l *Logger) appendHistory(rec EventRecord) {
	path := l.path(l.cfg.HistoryFile)
	if path == "" {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s\n", rec.Timestamp.Format(time.RFC3339Nano), rec.EventType, rec.Message)
	if l.cfg.DetailedLogging && len(rec.Data) > 0 {
		if data, err := json.MarshalIndent(rec.Data, "    ", "  "); err == nil {
			fmt.Fprintf(&b, "    Data: %s\n", data)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l.log.Warn("history write failed", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		l.log.Warn("history write failed", zap.String("path", path), zap.Error(err))
	}
}

// Snapshot returns a copy of the recorded session.
func (l *Logger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.snap
	s.Events = append([]EventRecord(nil), l.snap.Events...)
	s.Results = append([]ResultRecord(nil), l.snap.Results...)
	s.Analyses = append([]AnalysisRecord(nil), l.snap.Analyses...)
	return s
}

// Save writes the results snapshot, the summary file and the results CSV.
// hash may be nil.
func (l *Logger) Save(hash *export.RunHash) error {
	l.mu.Lock()
	l.snap.Reproducibility = hash
	l.mu.Unlock()
	snap := l.Snapshot()

	if path := l.path(l.cfg.ResultsFile); path != "" {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return perrors.IOWrap(err, perrors.ErrIOMarshalFailed, "failed to marshal session")
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return perrors.WriteFailed(path, err)
		}
	}

	if path := l.path(l.cfg.SummaryFile); path != "" {
		if err := os.WriteFile(path, []byte(renderSummary(snap)), 0644); err != nil {
			return perrors.WriteFailed(path, err)
		}
	}

	if path := l.path(l.cfg.CSVFile); path != "" {
		if err := l.writeCSV(path, snap); err != nil {
			return err
		}
	}

	l.log.Info("session saved",
		zap.String("session", snap.SessionID),
		zap.Int("results", len(snap.Results)),
		zap.String("dir", l.cfg.ExportDir))
	return nil
}

func (l *Logger) writeCSV(path string, snap Snapshot) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return perrors.WriteFailed(path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = perrors.WriteFailed(path, cerr)
		}
	}()

	rows := make([]*export.CSVRow, 0, len(snap.Results))
	for _, r := range snap.Results {
		rows = append(rows, export.RowFromResult(snap.SessionID, r.Experiment, r.Entity, string(r.Bucket), r.Result))
	}
	cfg := export.DefaultCSVConfig()
	cfg.Dialect = l.dialect
	cfg.IncludeGeneratedText = l.cfg.DetailedLogging
	if err := export.ExportResultsToCSV(f, rows, cfg); err != nil {
		return perrors.WriteFailed(path, err)
	}
	return nil
}
