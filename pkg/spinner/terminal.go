package spinner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// ANSI escape sequences.
const (
	hideCursor     = "\033[?25l"
	showCursor     = "\033[?25h"
	carriageReturn = "\r"

	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorReset = "\033[0m"

	symbolSuccess = "✓"
	symbolFailure = "✗"
)

// isTerminalWriter reports whether w is a file attached to a terminal.
func isTerminalWriter(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// line tracks the width of the last inline write so it can be blanked.
type line struct {
	w    io.Writer
	last int
}

func (l *line) write(s string) {
	l.clear()
	fmt.Fprint(l.w, s)
	l.last = len(s)
}

func (l *line) clear() {
	if l.last > 0 {
		fmt.Fprint(l.w, carriageReturn+strings.Repeat(" ", l.last)+carriageReturn)
		l.last = 0
	}
}

// finalLine renders the closing status line shared by spinners and bars.
func finalLine(tty bool, symbol, color, message string, elapsed time.Duration) string {
	if tty {
		symbol = color + symbol + colorReset
	}
	if elapsed > 0 {
		return fmt.Sprintf("%s %s %s\n", symbol, message, formatElapsed(elapsed))
	}
	return fmt.Sprintf("%s %s\n", symbol, message)
}

// formatElapsed renders "(1.2s)" below a minute and "(1m 30s)" above.
func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("(%.1fs)", d.Seconds())
	}
	return fmt.Sprintf("(%dm %ds)", int(d.Minutes()), int(d.Seconds())%60)
}

// formatETA renders the remaining-time estimate.
func formatETA(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("ETA: %ds", max(int(d.Seconds()+0.5), 1))
	case d < time.Hour:
		if s := int(d.Seconds()) % 60; s > 0 {
			return fmt.Sprintf("ETA: %dm %ds", int(d.Minutes()), s)
		}
		return fmt.Sprintf("ETA: %dm", int(d.Minutes()))
	default:
		if m := int(d.Minutes()) % 60; m > 0 {
			return fmt.Sprintf("ETA: %dh %dm", int(d.Hours()), m)
		}
		return fmt.Sprintf("ETA: %dh", int(d.Hours()))
	}
}
