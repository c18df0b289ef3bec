package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/r3d91ll/patchscope/pkg/activations"
	"github.com/r3d91ll/patchscope/pkg/config"
	"github.com/r3d91ll/patchscope/pkg/experiment"
	"github.com/r3d91ll/patchscope/pkg/export"
	"github.com/r3d91ll/patchscope/pkg/metrics"
	"github.com/r3d91ll/patchscope/pkg/model"
	"github.com/r3d91ll/patchscope/pkg/model/reference"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
	"github.com/r3d91ll/patchscope/pkg/session"
	"github.com/r3d91ll/patchscope/pkg/spinner"
)

// app holds everything one experiment invocation needs.
type app struct {
	cfg       *config.Config
	modelName string
	engine    *patchscope.Engine
	cache     *activations.Store
	runner    *experiment.Runner
	session   *session.Logger
	metrics   *metrics.Recorder
	server    *http.Server
	out       io.Writer
	log       *zap.Logger
	started   time.Time
}

// loadConfig loads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, path, err
	}
	if outDir != "" {
		cfg.Session.ExportDir = outDir
	}
	if seed != 0 {
		cfg.Sweep.Seed = seed
	}
	return cfg, path, nil
}

// newRegistry returns the provider registry with every built-in provider.
func newRegistry() (*model.Registry, error) {
	reg := model.NewRegistry()
	if err := reference.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func cliLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// newApp loads the configured model and wires the session logger, metrics
// and runner for one experiment mode.
func newApp(ctx context.Context, mode string, out io.Writer) (*app, error) {
	log := cliLogger()
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	name := modelName
	if name == "" {
		name = cfg.DefaultModel
	}
	mc, err := cfg.Model(name)
	if err != nil {
		return nil, err
	}
	reg, err := newRegistry()
	if err != nil {
		return nil, err
	}

	sp := spinner.New(fmt.Sprintf("Loading %s (%s)", name, mc.Identifier))
	sp.Start()
	opts := model.OptionsFromConfig(name, mc)
	opts.Logger = log
	m, err := reg.Load(ctx, opts)
	if err != nil {
		sp.Fail("Model load failed")
		return nil, err
	}
	info := m.Info()
	sp.Success(fmt.Sprintf("Loaded %s: %d layers, hidden size %d", name, info.Layers, info.Hidden))

	a := &app{
		cfg:       cfg,
		modelName: name,
		cache:     activations.NewStore(),
		metrics:   metrics.New(),
		out:       out,
		log:       log,
		started:   time.Now(),
	}
	a.engine = patchscope.NewEngine(m, patchscope.Options{
		ModelName:    name,
		MaxNewTokens: cfg.Generation.MaxNewTokens,
		Marker:       cfg.Generation.Marker,
		Cache:        a.cache,
		Logger:       log,
	})
	a.session, err = session.New(session.Options{Config: cfg.Session, Experiment: mode, Logger: log})
	if err != nil {
		return nil, err
	}
	a.runner = experiment.NewRunner(a.engine, cfg, experiment.Options{
		Sink: experiment.Sinks{a.session, a.metrics},
		Out:  out,
		Progress: func(total int, message string) experiment.Progress {
			return spinner.NewProgress(total, message)
		},
		Seed:   cfg.Sweep.Seed,
		Logger: log,
	})
	if err := a.serveMetrics(); err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "Session: %s (%s)\n", a.session.ID()[:8], a.session.Environment())
	a.runner.AnnounceModel()
	return a, nil
}

// serveMetrics exposes the recorder on --metrics-addr until close.
func (a *app) serveMetrics() error {
	if metricsAddr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", metricsAddr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	a.log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return nil
}

// hash is the reproducibility hash of everything run so far.
func (a *app) hash(mode string) *export.RunHash {
	end := time.Now()
	return export.NewHashBuilder().
		WithToolVersion(version).
		WithModel(a.modelName).
		WithExperiment(mode).
		WithSeed(a.runner.Seed()).
		WithRequestCount(a.session.Stats().Requests()).
		WithTimeRange(a.started, &end).
		WithConfig(a.cfg).
		Build()
}

// close saves the session files and stops the metrics server.
func (a *app) close(mode string) error {
	defer a.stopMetrics()

	st := a.cache.Stats()
	a.log.Debug("activation cache", zap.Int("entries", a.cache.Count()), zap.Float64("hit_rate", st.HitRate()))

	h := a.hash(mode)
	if err := a.session.Save(h); err != nil {
		return err
	}
	history, results, summary, csv := a.session.Paths()
	fmt.Fprintf(a.out, "\nSession saved (hash %s)\n", h.ShortHash())
	for _, p := range []string{history, results, summary, csv} {
		if p != "" {
			fmt.Fprintf(a.out, "  %s\n", p)
		}
	}
	return nil
}

func (a *app) stopMetrics() {
	if a.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = a.server.Shutdown(ctx)
}

// runMode runs one experiment mode and saves the session, including after
// an interrupt.
func runMode(cmd *cobra.Command, mode string, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, mode, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(a.out, "\nInterrupted after %d requests; saving partial results.\n", a.session.Stats().Requests())
	}
	if err := a.close(mode); err != nil {
		if runErr != nil {
			a.log.Error("failed to save session", zap.Error(err))
			return runErr
		}
		return err
	}
	return runErr
}
