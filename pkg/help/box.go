package help

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Box draws fixed-width bordered panels such as the console banner.
type Box struct {
	// Width is the inner width, borders excluded.
	Width int
}

// NewBox creates a box with the given inner width.
func NewBox(width int) *Box {
	return &Box{Width: width}
}

// Top returns ╭───╮.
func (b *Box) Top() string {
	return BoxTopLeft + strings.Repeat(BoxHorizontal, b.Width) + BoxTopRight
}

// Mid returns ├───┤.
func (b *Box) Mid() string {
	return BoxTeeLeft + strings.Repeat(BoxHorizontal, b.Width) + BoxTeeRight
}

// Bottom returns ╰───╯.
func (b *Box) Bottom() string {
	return BoxBottomLeft + strings.Repeat(BoxHorizontal, b.Width) + BoxBottomRight
}

// Row left-aligns content between vertical borders, truncating it to the
// box width.
func (b *Box) Row(content string) string {
	n := visibleLength(content)
	if n >= b.Width {
		return BoxVertical + truncateVisible(content, b.Width) + BoxVertical
	}
	return BoxVertical + content + strings.Repeat(" ", b.Width-n) + BoxVertical
}

// RowCenter centers content between vertical borders.
func (b *Box) RowCenter(content string) string {
	n := visibleLength(content)
	if n >= b.Width {
		return BoxVertical + truncateVisible(content, b.Width) + BoxVertical
	}
	left := (b.Width - n) / 2
	return BoxVertical + strings.Repeat(" ", left) + content + strings.Repeat(" ", b.Width-n-left) + BoxVertical
}

// visibleLength is the terminal cell width of s, escape sequences excluded.
func visibleLength(s string) int {
	return lipgloss.Width(s)
}

// truncateVisible cuts s to width visible runes, keeping escape sequences
// and closing any style left open.
func truncateVisible(s string, width int) string {
	var b strings.Builder
	visible := 0
	inEscape, open := false, false
	for _, r := range s {
		if r == '\033' {
			inEscape, open = true, true
			b.WriteRune(r)
			continue
		}
		if inEscape {
			b.WriteRune(r)
			if r == 'm' {
				inEscape = false
				open = !strings.HasSuffix(b.String(), ColorReset)
			}
			continue
		}
		if visible >= width {
			break
		}
		b.WriteRune(r)
		visible++
	}
	if open {
		b.WriteString(ColorReset)
	}
	return b.String()
}

// PadRight pads s with spaces to width visible runes.
func PadRight(s string, width int) string {
	if n := visibleLength(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
