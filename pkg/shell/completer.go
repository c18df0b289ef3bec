package shell

import (
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/r3d91ll/patchscope/pkg/config"
	"github.com/r3d91ll/patchscope/pkg/help"
)

// Completer completes command names and the arguments of commands that
// take a known value: entities for /entity, categories for /template,
// subsets for /targeted and command names for /help.
type Completer struct {
	commands   []string
	entities   []string
	categories []string
}

var _ readline.AutoCompleter = (*Completer)(nil)

// NewCompleter builds a completer from the registry and cfg's prompts.
func NewCompleter(cfg *config.Config) *Completer {
	c := &Completer{commands: help.Names()}
	sort.Strings(c.commands)
	if cfg != nil {
		c.entities = append(c.entities, cfg.Prompts.Sources...)
		c.categories = cfg.Categories()
	}
	return c
}

// Do implements readline.AutoCompleter. Candidates are the suffixes that
// complete the text before pos; length is the rune count of that text.
func (c *Completer) Do(line []rune, pos int) (newLine [][]rune, length int) {
	if pos <= 0 || len(line) == 0 {
		return nil, 0
	}
	text := string(line[:min(pos, len(line))])
	if !strings.HasPrefix(text, "/") {
		return nil, 0
	}

	name, rest, hasArgs := strings.Cut(text, " ")
	if !hasArgs {
		return complete(c.commands, strings.TrimPrefix(name, "/"))
	}
	cmd, ok := help.GetCommand(name)
	if !ok {
		return nil, 0
	}
	rest = strings.TrimLeft(rest, " ")

	switch cmd.Name {
	case "/entity":
		// Entities contain spaces, so the whole argument is the prefix.
		return complete(c.entities, rest)
	case "/template":
		if strings.Contains(rest, " ") {
			return nil, 0
		}
		return complete(c.categories, rest)
	case "/help":
		if strings.Contains(rest, " ") {
			return nil, 0
		}
		return complete(c.commands, rest)
	default:
		if len(cmd.Args) == 0 || strings.Contains(rest, " ") {
			return nil, 0
		}
		return complete(cmd.Args, rest)
	}
}

func complete(candidates []string, prefix string) ([][]rune, int) {
	var out [][]rune
	for _, cand := range candidates {
		if strings.HasPrefix(cand, prefix) {
			out = append(out, []rune(cand[len(prefix):]+" "))
		}
	}
	return out, len([]rune(prefix))
}
