package help

import "strings"

// Category groups console commands in help output.
type Category string

const (
	// CategoryPatching runs patches: /patch, /sweep, /targeted
	CategoryPatching Category = "patching"
	// CategoryAnalysis inspects collected results: /analyze, /hotspots
	CategoryAnalysis Category = "analysis"
	// CategoryState shows or changes console state: /entity, /template,
	// /layers, /clear
	CategoryState Category = "state"
	// CategoryGeneral holds /help and /quit.
	CategoryGeneral Category = "general"
)

// CategoryInfo is the display metadata of a category.
type CategoryInfo struct {
	DisplayName string
	Icon        string
}

// CategoryOrder is the order categories appear in the full listing.
var CategoryOrder = []Category{
	CategoryPatching,
	CategoryAnalysis,
	CategoryState,
	CategoryGeneral,
}

// Categories maps each category to its display metadata.
var Categories = map[Category]CategoryInfo{
	CategoryPatching: {DisplayName: "Activation Patching", Icon: "🧪"},
	CategoryAnalysis: {DisplayName: "Analysis", Icon: "🔍"},
	CategoryState:    {DisplayName: "Console State", Icon: "📋"},
	CategoryGeneral:  {DisplayName: "General", Icon: "ℹ️"},
}

// DisplayName returns the category's heading, or its raw name when unknown.
func (c Category) DisplayName() string {
	if info, ok := Categories[c]; ok {
		return info.DisplayName
	}
	return string(c)
}

// Icon returns the category's icon.
func (c Category) Icon() string {
	return Categories[c].Icon
}

// Command describes one console command.
type Command struct {
	// Name includes the leading slash.
	Name        string
	Shortcut    string
	Category    Category
	Description string
	Usage       string
	Examples    []Example
	// Args lists fixed argument values offered by tab completion.
	Args []string
}

// Example is a sample invocation.
type Example struct {
	Command     string
	Description string
}

// Commands is the console command registry.
var Commands = []Command{
	{
		Name:        "/patch",
		Shortcut:    "/p",
		Category:    CategoryPatching,
		Description: "Patch one layer pair into the current template",
		Usage:       "/patch <extract> <inject> [entity]",
		Examples: []Example{
			{Command: "/patch 14 21", Description: "Current entity, layer 14 into layer 21"},
			{Command: "/patch 7 14 Marie Curie", Description: "Patch a different entity"},
		},
	},
	{
		Name:        "/sweep",
		Category:    CategoryPatching,
		Description: "Strategic sweep over anchor layer pairs",
		Usage:       "/sweep [max_pairs]",
		Examples: []Example{
			{Command: "/sweep", Description: "Use sweep.max_combinations"},
			{Command: "/sweep 20", Description: "Keep 20 diverse pairs"},
		},
	},
	{
		Name:        "/targeted",
		Category:    CategoryPatching,
		Description: "Every pair of a named layer subset",
		Usage:       "/targeted [targeted|early|mid|late]",
		Examples: []Example{
			{Command: "/targeted late", Description: "Every 2nd late layer against each other"},
		},
		Args: []string{"targeted", "early", "mid", "late"},
	},
	{
		Name:        "/analyze",
		Shortcut:    "/a",
		Category:    CategoryAnalysis,
		Description: "Classify the current entity's collected results",
		Usage:       "/analyze",
	},
	{
		Name:        "/hotspots",
		Category:    CategoryAnalysis,
		Description: "Most productive layers and pairs among strong matches",
		Usage:       "/hotspots",
	},
	{
		Name:        "/entity",
		Category:    CategoryState,
		Description: "Show or set the source entity",
		Usage:       "/entity [name]",
		Examples: []Example{
			{Command: "/entity Ada Lovelace", Description: "Patch Ada Lovelace from now on"},
		},
	},
	{
		Name:        "/template",
		Category:    CategoryState,
		Description: "Show or set the target template",
		Usage:       "/template [category [n] | text containing the marker]",
		Examples: []Example{
			{Command: "/template patchscope 2", Description: "Second patchscope template"},
			{Command: "/template Tell me about ?", Description: "Literal template"},
		},
	},
	{
		Name:        "/layers",
		Shortcut:    "/l",
		Category:    CategoryState,
		Description: "Show model depth and configured layer subsets",
		Usage:       "/layers",
	},
	{
		Name:        "/clear",
		Category:    CategoryState,
		Description: "Discard the current entity's collected results",
		Usage:       "/clear",
	},
	{
		Name:        "/help",
		Shortcut:    "/h",
		Category:    CategoryGeneral,
		Description: "Show this help message",
		Usage:       "/help [command]",
		Examples: []Example{
			{Command: "/help patch", Description: "Show detailed /patch help"},
		},
	},
	{
		Name:        "/quit",
		Shortcut:    "/q",
		Category:    CategoryGeneral,
		Description: "Save the session and exit",
		Usage:       "/quit",
	},
}

// GetCommandsByCategory returns the commands of cat in registry order.
func GetCommandsByCategory(cat Category) []Command {
	var out []Command
	for _, cmd := range Commands {
		if cmd.Category == cat {
			out = append(out, cmd)
		}
	}
	return out
}

// GetCommand looks a command up by name or shortcut, with or without the
// leading slash.
func GetCommand(name string) (Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	for _, cmd := range Commands {
		if cmd.Name == name || (cmd.Shortcut != "" && cmd.Shortcut == name) {
			return cmd, true
		}
	}
	return Command{}, false
}

// Names returns every command name and shortcut without the slash, plus
// the "exit" alias.
func Names() []string {
	names := make([]string, 0, 2*len(Commands)+1)
	for _, cmd := range Commands {
		names = append(names, strings.TrimPrefix(cmd.Name, "/"))
		if cmd.Shortcut != "" {
			names = append(names, strings.TrimPrefix(cmd.Shortcut, "/"))
		}
	}
	return append(names, "exit")
}
