package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/r3d91ll/patchscope/pkg/config"
	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/experiment"
	"github.com/r3d91ll/patchscope/pkg/shell"
	"github.com/r3d91ll/patchscope/pkg/sweep"
)

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

// addModeCommands registers one subcommand per experiment mode.
func addModeCommands(root *cobra.Command) {
	quickCmd := &cobra.Command{
		Use:   "quick [entity]",
		Short: "Patch the fixed quick-test layer pairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, experiment.ModeQuick, func(ctx context.Context, a *app) error {
				_, err := a.runner.Quick(ctx, joinArgs(args))
				return err
			})
		},
	}

	var subset string
	targetedCmd := &cobra.Command{
		Use:   "targeted [entity]",
		Short: "Patch every ordered pair of a layer subset",
		Long: `Patch every pair (extract, inject) with extract <= inject drawn from one
layer subset: targeted, early, mid or late.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, experiment.ModeTargeted, func(ctx context.Context, a *app) error {
				_, err := a.runner.Targeted(ctx, joinArgs(args), subset)
				return err
			})
		},
	}
	targetedCmd.Flags().StringVarP(&subset, "subset", "s", sweep.SubsetTargeted,
		"Layer subset ("+strings.Join(sweep.SubsetNames, ", ")+")")

	var maxPairs int
	sweepCmd := &cobra.Command{
		Use:   "sweep [entity]",
		Short: "Run the strategic layer sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, experiment.ModeSweep, func(ctx context.Context, a *app) error {
				_, err := a.runner.Sweep(ctx, joinArgs(args), maxPairs)
				return err
			})
		},
	}
	sweepCmd.Flags().IntVarP(&maxPairs, "max-pairs", "n", 0, "Cap on layer pairs (default: sweep.max_combinations)")

	comprehensiveCmd := &cobra.Command{
		Use:   "comprehensive",
		Short: "Run targeted, sweep and multi-prompt phases with key insights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, experiment.ModeComprehensive, func(ctx context.Context, a *app) error {
				_, err := a.runner.Comprehensive(ctx)
				return err
			})
		},
	}

	var count int
	var kind string
	multiCmd := &cobra.Command{
		Use:   "multi",
		Short: "Compare several sampled source entities on one target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, experiment.ModeMulti, func(ctx context.Context, a *app) error {
				_, err := a.runner.Multi(ctx, count, kind)
				return err
			})
		},
	}
	multiCmd.Flags().IntVarP(&count, "count", "n", 0, "Number of entities (default: sweep.multi_prompt_count)")
	multiCmd.Flags().StringVarP(&kind, "kind", "k", experiment.ModeTargeted, "Per-entity experiment (targeted, sweep)")

	var category string
	var templates int
	templateCmd := &cobra.Command{
		Use:     "patchscope [entity]",
		Aliases: []string{"template"},
		Short:   "Run the targeted grid over templates of one category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, experiment.ModeTemplate, func(ctx context.Context, a *app) error {
				_, err := a.runner.Template(ctx, joinArgs(args), category, templates)
				return err
			})
		},
	}
	templateCmd.Flags().StringVarP(&category, "category", "c", config.CategoryPatchscope, "Template category")
	templateCmd.Flags().IntVarP(&templates, "count", "n", 0, "Templates to use (default: sweep.templates_per_category)")

	templatesCmd := &cobra.Command{
		Use:   "templates [entity]",
		Short: "Compare every template category on one entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, experiment.ModeTemplates, func(ctx context.Context, a *app) error {
				_, err := a.runner.MultiTemplate(ctx, joinArgs(args))
				return err
			})
		},
	}

	root.AddCommand(quickCmd, targetedCmd, sweepCmd, comprehensiveCmd, multiCmd, templateCmd, templatesCmd)
}

var (
	shellEntity  string
	shellHistory string
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive console",
	Long: `Start the interactive console. Ctrl+C cancels the running command;
/quit or Ctrl+D leaves and saves the session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Interrupts belong to the console; only SIGTERM ends the session.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "shell", cmd.OutOrStdout())
		if err != nil {
			return err
		}
		history := shellHistory
		if history == "" {
			if home, err := os.UserHomeDir(); err == nil {
				history = filepath.Join(home, ".patchscope_history")
			}
		}
		sh, err := shell.New(a.runner, a.cfg, shell.Config{
			HistoryFile: history,
			Entity:      shellEntity,
			Out:         a.out,
			Color:       perrors.IsTTY(os.Stdout),
			Logger:      a.log,
		})
		if err != nil {
			a.stopMetrics()
			return err
		}
		runErr := sh.Run(ctx)
		if err := a.close("shell"); err != nil {
			return err
		}
		return runErr
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configured template categories and templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Config: %s\n\n", path)

		r := cfg.CheckTemplates()
		for _, c := range r.Categories {
			mark := "✓"
			if c.WithMarker != c.Templates {
				mark = "✗"
			}
			fmt.Fprintf(out, "  %s %-12s %d templates, %d with marker\n", mark, c.Category, c.Templates, c.WithMarker)
		}
		for _, m := range r.Missing {
			fmt.Fprintf(out, "  ✗ %-12s missing\n", m)
		}
		if len(r.Issues) > 0 {
			fmt.Fprintln(out, "\nIssues:")
			for _, is := range r.Issues {
				fmt.Fprintf(out, "  %s[%d]: %s\n    %q\n", is.Category, is.Index+1, is.Problem, is.Template)
			}
		}
		if !r.OK() {
			return perrors.Validation(perrors.ErrValidationInvalidValue,
				fmt.Sprintf("%d template issues, %d missing categories", len(r.Issues), len(r.Missing))).
				WithContext("path", path)
		}
		fmt.Fprintln(out, "\nAll templates valid.")
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at: %s\n", path)
			return nil
		}
		if err := config.InitConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config initialized at: %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "Edit this file to configure models, prompts and layers.")
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List configured models and available providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Models:")
		for _, name := range cfg.ModelNames() {
			mc, _ := cfg.Model(name)
			def := " "
			if name == cfg.DefaultModel {
				def = "*"
			}
			avail := "✓"
			if _, ok := reg.Get(mc.Provider); !ok {
				avail = "✗"
			}
			fmt.Fprintf(out, "  %s %s %-24s %s/%s (%s)\n", avail, def, name, mc.Provider, mc.Identifier, mc.DType)
		}
		fmt.Fprintf(out, "\nProviders: %s\n", strings.Join(reg.List(), ", "))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "PatchScope %s\n", version)
	},
}

func init() {
	shellCmd.Flags().StringVarP(&shellEntity, "entity", "e", "", "Initial source entity")
	shellCmd.Flags().StringVar(&shellHistory, "history", "", "History file (default: ~/.patchscope_history)")
}
