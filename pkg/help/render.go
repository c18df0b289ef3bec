package help

import (
	"fmt"
	"strings"
)

const (
	// commandColumnWidth fits the longest "/name (or /x)" entry.
	commandColumnWidth = 22
	// inlineExamples caps the examples shown in the full listing.
	inlineExamples = 2

	indentCategory = "  "
	indentCommand  = "    "
	indentExample  = "      "
)

// RenderFull writes every category followed by the tips section.
func (r *Renderer) RenderFull() {
	r.writeln("")
	r.writeln(Header(indentCategory + "PatchScope Commands"))
	r.writeln("")
	for _, cat := range CategoryOrder {
		r.renderCategory(cat)
	}
	r.RenderShortcuts()
}

// RenderCommand writes the detailed help of one command and reports
// whether it exists.
func (r *Renderer) RenderCommand(name string) bool {
	cmd, ok := GetCommand(name)
	if !ok {
		r.writeln(fmt.Sprintf(indentCategory+"Command '%s' not found. Use /help to see all commands.", name))
		return false
	}
	r.writeln("")
	r.writeln(indentCategory + CommandWithShortcut(cmd.Name, cmd.Shortcut))
	r.writeln(indentCategory + Dim(cmd.Description))
	r.writeln("")
	r.writeln(indentCategory + Bold("Usage:") + " " + Argument(cmd.Usage))
	r.writeln("")
	if len(cmd.Examples) > 0 {
		r.writeln(indentCategory + Bold("Examples:"))
		for _, ex := range cmd.Examples {
			r.writeln(indentCommand + ExampleLine(ex.Command, ex.Description))
		}
		r.writeln("")
	}
	return true
}

// RenderShortcuts writes aliases, input conventions and keys.
func (r *Renderer) RenderShortcuts() {
	r.writeln("")
	r.writeln(indentCategory + StyleCategory("💡 Shortcuts & Tips"))
	r.writeln(indentCategory + r.separator())
	bar := indentCommand + Dim(BoxVertical+" ")
	r.writeln(bar + Dim("Aliases: ") +
		Shortcut("/p") + Dim("→patch  ") +
		Shortcut("/a") + Dim("→analyze  ") +
		Shortcut("/q") + Dim("→quit  ") +
		Shortcut("/exit") + Dim("→quit"))
	r.writeln(bar + Dim("Layers:  ") +
		Argument("0-based") + Dim(" block indices, extract and inject may differ"))
	r.writeln(bar + Dim("Keys:    ") +
		Shortcut("Tab") + Dim(" complete  ") +
		Shortcut("Ctrl+C") + Dim(" cancel run  ") +
		Shortcut("Ctrl+D") + Dim(" exit"))
	r.writeln("")
}

func (r *Renderer) separator() string {
	return Dim(BoxTeeLeft + strings.Repeat(BoxHorizontal, commandColumnWidth+20))
}

func (r *Renderer) renderCategory(cat Category) {
	cmds := GetCommandsByCategory(cat)
	if len(cmds) == 0 {
		return
	}
	r.writeln(indentCategory + StyleCategory(cat.Icon()+" "+cat.DisplayName()))
	r.writeln(indentCategory + r.separator())
	for _, cmd := range cmds {
		name := PadRight(CommandWithShortcut(cmd.Name, cmd.Shortcut), commandColumnWidth)
		r.writeln(indentCommand + Dim(BoxVertical+" ") + name + Dim(cmd.Description))
		for _, ex := range cmd.Examples[:min(inlineExamples, len(cmd.Examples))] {
			r.writeln(indentExample + Dim(BoxVertical+"   e.g. ") + HighlightExampleCommand(ex.Command))
		}
	}
	r.writeln("")
}

func (r *Renderer) writeln(s string) {
	fmt.Fprintln(r.w, s)
}
