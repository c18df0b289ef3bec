// Package help renders the command reference of the patchscope console.
//
// Output is grouped by category, uses rounded box drawing for structure and
// ANSI color for scanning: cyan command names, yellow arguments and examples,
// gray descriptions. Terminals without color still read as plain text.
//
//	r := help.NewRenderer(os.Stdout)
//	r.RenderFull()           // every category plus tips
//	r.RenderCommand("patch") // one command with all examples
//
// The registry in commands.go is also the source of truth for tab
// completion in the console.
package help

import "io"

// Box drawing characters (rounded corners).
const (
	BoxTopLeft     = "╭"
	BoxTopRight    = "╮"
	BoxBottomLeft  = "╰"
	BoxBottomRight = "╯"
	BoxHorizontal  = "─"
	BoxVertical    = "│"
	BoxTeeLeft     = "├"
	BoxTeeRight    = "┤"
)

// ANSI color codes.
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorGray   = "\033[90m"
)

// Renderer writes help output to w.
type Renderer struct {
	w io.Writer
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}
