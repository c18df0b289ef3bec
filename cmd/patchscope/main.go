// PatchScope - activation patching for transformer interpretability
//
// PatchScope extracts a hidden representation of a source entity at one
// layer and injects it at the placeholder of a target prompt at another
// layer, then reads what the model says about it.
//
// Components:
//   - patchscope: extraction, interception and patched generation
//   - sweep: layer pairs and strategic sweeps
//   - analysis: match buckets, hotspots and comparisons
//   - experiment: the experiment modes
//   - session: history, snapshots and CSV export
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/experiment"
)

const version = "0.3.0"

var (
	// Global flags
	configPath  string
	modelName   string
	verbose     bool
	seed        uint64
	outDir      string
	metricsAddr string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "patchscope",
	Short: "PatchScope - activation patching experiments",
	Long: `PatchScope patches hidden states of a source entity into the placeholder
of a target prompt and classifies what the model generates.

Run without arguments for the quick test over the fixed layer pairs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd, experiment.ModeQuick, func(ctx context.Context, a *app) error {
			_, err := a.runner.Quick(ctx, "")
			return err
		})
	},
}

// newLogger builds the CLI logger. Console output stays on stdout; log
// lines go to stderr at warn level unless verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ./patchscope.yaml)")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Configured model name (default: default_model)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "Seed for entity and template choice (default: sweep.seed)")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", "", "Export directory (default: session.export_dir)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	addModeCommands(rootCmd)
	rootCmd.AddCommand(shellCmd, validateCmd, initCmd, modelsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		perrors.Display(err)
		os.Exit(1)
	}
}
