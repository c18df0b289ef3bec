package help

import "strings"

// Header styles a section title (bold cyan).
func Header(text string) string {
	return ColorBold + ColorCyan + text + ColorReset
}

// StyleCategory styles a category heading (bold green).
func StyleCategory(text string) string {
	return ColorBold + ColorGreen + text + ColorReset
}

// StyleCommand styles a command name (cyan).
func StyleCommand(text string) string {
	return ColorCyan + text + ColorReset
}

// Argument styles arguments and examples (yellow).
func Argument(text string) string {
	return ColorYellow + text + ColorReset
}

// Shortcut styles a key or alias (bold yellow).
func Shortcut(text string) string {
	return ColorBold + ColorYellow + text + ColorReset
}

// Dim styles secondary text (gray).
func Dim(text string) string {
	return ColorGray + text + ColorReset
}

// Bold styles emphasized text.
func Bold(text string) string {
	return ColorBold + text + ColorReset
}

// CommandWithShortcut renders "/help (or /h)".
func CommandWithShortcut(cmd, shortcut string) string {
	if shortcut == "" {
		return StyleCommand(cmd)
	}
	return StyleCommand(cmd) + Dim(" (or ") + Shortcut(shortcut) + Dim(")")
}

// HighlightExampleCommand colors the command word cyan and its arguments
// yellow: "/patch 14 21" -> cyan("/patch") + yellow(" 14 21").
func HighlightExampleCommand(cmd string) string {
	name, args, _ := strings.Cut(cmd, " ")
	if name == "" {
		return ""
	}
	out := StyleCommand(name)
	if args = strings.TrimLeft(args, " "); args != "" {
		out += Argument(" " + args)
	}
	return out
}

// ExampleLine renders "  /patch 14 21 -> description".
func ExampleLine(cmd, desc string) string {
	return "  " + HighlightExampleCommand(cmd) + Dim(" -> ") + Dim(desc)
}
