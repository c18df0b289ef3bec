// Package shell provides the interactive patchscope console.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/r3d91ll/patchscope/pkg/analysis"
	"github.com/r3d91ll/patchscope/pkg/config"
	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/experiment"
	"github.com/r3d91ll/patchscope/pkg/help"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
)

const prompt = "\033[32mpatchscope>\033[0m "

// Shell is the interactive console. It keeps a current entity and target
// template and accumulates results per entity across commands.
type Shell struct {
	runner   *experiment.Runner
	cfg      *config.Config
	out      io.Writer
	errs     *perrors.Formatter
	help     *help.Renderer
	prompter Prompter
	log      *zap.Logger
	rl       *readline.Instance

	entity  string
	target  string
	results map[string][]*patchscope.Result
	last    *analysis.Analysis
}

// Config holds shell configuration.
type Config struct {
	HistoryFile string
	// Entity is the initial source entity.
	Entity string
	Stdin  io.ReadCloser
	// Out receives command output. It should be the runner's writer too.
	Out    io.Writer
	Color  bool
	Logger *zap.Logger
}

// New creates a console driving runner.
func New(runner *experiment.Runner, cfg *config.Config, sc Config) (*Shell, error) {
	s := newShell(runner, cfg, sc)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     sc.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    NewCompleter(cfg),
		Stdin:           sc.Stdin,
		Stdout:          s.out,
	})
	if err != nil {
		return nil, perrors.IOWrap(err, perrors.ErrIOTerminal, "failed to start console")
	}
	s.rl = rl
	s.prompter = &ReadlinePrompter{rl: rl}
	return s, nil
}

// newShell builds the console state without a terminal.
func newShell(runner *experiment.Runner, cfg *config.Config, sc Config) *Shell {
	out := sc.Out
	if out == nil {
		out = os.Stdout
	}
	log := sc.Logger
	if log == nil {
		log = zap.NewNop()
	}
	entity := sc.Entity
	if entity == "" {
		entity = experiment.DefaultEntity
	}
	return &Shell{
		runner:   runner,
		cfg:      cfg,
		out:      out,
		errs:     &perrors.Formatter{UseColor: sc.Color, Writer: out, Indent: "  "},
		help:     help.NewRenderer(out),
		prompter: NewIOPrompter(os.Stdin, out),
		log:      log.Named("shell"),
		entity:   entity,
		target:   cfg.StandardTarget(),
		results:  make(map[string][]*patchscope.Result),
	}
}

// Run reads and executes commands until /quit, EOF or ctx is done.
// Ctrl+C during a command cancels that command only.
func (s *Shell) Run(ctx context.Context) error {
	defer s.rl.Close()
	s.banner()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		cmdCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		err = s.Exec(cmdCtx, line)
		stop()
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			s.errs.Display(err)
		}
	}
}

func (s *Shell) banner() {
	info := s.runner.Engine().Model().Info()
	box := help.NewBox(56)
	fmt.Fprintln(s.out, box.Top())
	fmt.Fprintln(s.out, box.RowCenter(help.Bold("PatchScope console")))
	fmt.Fprintln(s.out, box.Mid())
	fmt.Fprintln(s.out, box.Row(fmt.Sprintf(" Model:    %s (%d layers)", info.Name, info.Layers)))
	fmt.Fprintln(s.out, box.Row(" Entity:   "+s.entity))
	fmt.Fprintln(s.out, box.Row(" Template: "+analysis.Truncate(s.target, 42)))
	fmt.Fprintln(s.out, box.Bottom())
	fmt.Fprintln(s.out, "Type /help for commands, Tab to complete.")
	fmt.Fprintln(s.out)
}

var errQuit = errors.New("quit")

// Exec runs one console line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		fmt.Fprintln(s.out, "Commands start with /. Type /help to list them.")
		return nil
	}
	parts := strings.Fields(line)
	name, args := parts[0], parts[1:]
	if name == "/exit" {
		return errQuit
	}
	cmd, ok := help.GetCommand(name)
	if !ok {
		fmt.Fprintf(s.out, "Unknown command: %s (type /help)\n", name)
		return nil
	}
	s.log.Debug("command", zap.String("name", cmd.Name), zap.Strings("args", args))

	switch cmd.Name {
	case "/quit":
		return errQuit
	case "/help":
		if len(args) > 0 {
			s.help.RenderCommand(args[0])
		} else {
			s.help.RenderFull()
		}
		return nil
	case "/patch":
		return s.handlePatch(ctx, args)
	case "/sweep":
		return s.handleSweep(ctx, args)
	case "/targeted":
		return s.handleTargeted(ctx, args)
	case "/analyze":
		s.handleAnalyze()
		return nil
	case "/hotspots":
		s.handleHotspots()
		return nil
	case "/entity":
		s.handleEntity(args)
		return nil
	case "/template":
		return s.handleTemplate(args)
	case "/layers":
		s.handleLayers()
		return nil
	case "/clear":
		return s.handleClear()
	}
	return perrors.Internal("command registered without a handler: " + cmd.Name)
}

// Entity returns the current source entity.
func (s *Shell) Entity() string { return s.entity }

// Target returns the current target template.
func (s *Shell) Target() string { return s.target }

// Results returns the collected results of entity.
func (s *Shell) Results(entity string) []*patchscope.Result {
	return s.results[entity]
}

// collect adds a run's results to the entity's pool.
func (s *Shell) collect(run *experiment.Run) {
	if run == nil || len(run.Results) == 0 {
		return
	}
	s.results[run.Entity] = append(s.results[run.Entity], run.Results...)
	if run.Entity == s.entity {
		s.last = nil
	}
}
