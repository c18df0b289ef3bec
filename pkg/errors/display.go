package errors

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[90m"
	colorBold   = "\033[1m"
)

// Formatter renders errors for humans, with optional color.
type Formatter struct {
	// UseColor enables ANSI color codes in output.
	UseColor bool

	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer

	// Indent is the prefix for context and suggestion lines.
	Indent string
}

// DefaultFormatter returns a Formatter writing to stderr, colored when
// stderr is a terminal.
func DefaultFormatter() *Formatter {
	return &Formatter{
		UseColor: IsTTY(os.Stderr),
		Writer:   os.Stderr,
		Indent:   "  ",
	}
}

// IsTTY returns true if the given file is a terminal.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (f *Formatter) paint(sb *strings.Builder, color, text string) {
	if f.UseColor {
		sb.WriteString(color)
		sb.WriteString(text)
		sb.WriteString(colorReset)
		return
	}
	sb.WriteString(text)
}

// Format renders err. PatchErrors show code, message, context, cause and
// suggestions; other errors render as a single line.
func (f *Formatter) Format(err error) string {
	if err == nil {
		return ""
	}
	var sb strings.Builder
	pe, ok := AsPatchError(err)
	if !ok {
		f.paint(&sb, colorRed, "Error: ")
		sb.WriteString(err.Error())
		return sb.String()
	}

	f.paint(&sb, colorRed+colorBold, "ERROR")
	f.paint(&sb, colorRed, " ["+pe.Code+"]: ")
	sb.WriteString(pe.Message)
	sb.WriteString("\n")

	keys := make([]string, 0, len(pe.Context))
	for k := range pe.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(f.Indent)
		f.paint(&sb, colorYellow, k+": ")
		sb.WriteString(pe.Context[k])
		sb.WriteString("\n")
	}

	if pe.Cause != nil {
		sb.WriteString(f.Indent)
		f.paint(&sb, colorDim, "cause: "+pe.Cause.Error())
		sb.WriteString("\n")
	}

	if pe.HasSuggestions() {
		if pe.HasContext() || pe.Cause != nil {
			sb.WriteString("\n")
		}
		for i, s := range pe.Suggestions {
			sb.WriteString(f.Indent)
			f.paint(&sb, colorCyan, "→ "+s)
			if i < len(pe.Suggestions)-1 {
				sb.WriteString("\n")
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Display writes a formatted error to the formatter's writer.
func (f *Formatter) Display(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(f.Writer, f.Format(err))
}

// Display writes a formatted error to stderr with default settings.
func Display(err error) {
	DefaultFormatter().Display(err)
}

// Sprint returns a formatted error string without colors.
func Sprint(err error) string {
	f := &Formatter{Writer: io.Discard, Indent: "  "}
	return f.Format(err)
}

// CategoryLabel returns a human-readable label for an error category.
func CategoryLabel(cat Category) string {
	switch cat {
	case CategoryConfig:
		return "Configuration Error"
	case CategoryModel:
		return "Model Error"
	case CategoryLayer:
		return "Layer Error"
	case CategoryMarker:
		return "Marker Error"
	case CategoryPatch:
		return "Patch Error"
	case CategorySweep:
		return "Sweep Error"
	case CategoryAnalysis:
		return "Analysis Error"
	case CategoryCommand:
		return "Command Error"
	case CategoryValidation:
		return "Validation Error"
	case CategoryIO:
		return "I/O Error"
	case CategoryInternal:
		return "Internal Error"
	default:
		return "Error"
	}
}
