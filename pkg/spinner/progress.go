// Package spinner draws terminal feedback for long model operations: an
// animated spinner while weights load and a progress bar over a batch of
// patch requests.
package spinner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	barFilled = "█"
	barEmpty  = "░"
)

// ProgressConfig configures a ProgressBar.
type ProgressConfig struct {
	// Total is the number of patch requests in the batch.
	Total   int
	Message string
	// Width of the bar in cells. Defaults to 20.
	Width int
	// ShowETA enables the remaining-time estimate once MinSamplesForETA
	// requests have finished.
	ShowETA          bool
	MinSamplesForETA int
	ShowElapsed      bool
	Writer           io.Writer
	// IsTTY overrides terminal detection on Writer.
	IsTTY *bool
}

// DefaultProgressConfig returns the configuration used by the CLI.
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		Total:            1,
		Message:          "Patching",
		Width:            20,
		ShowETA:          true,
		MinSamplesForETA: 2,
		ShowElapsed:      true,
		Writer:           os.Stderr,
	}
}

// ProgressBar tracks completed requests out of a known total.
// Output format: Patching [████████░░░░░░░░░░░░] 40% (8/20) (2.4s) ETA: 4s
type ProgressBar struct {
	mu      sync.Mutex
	config  ProgressConfig
	current int
	started time.Time
	active  bool
	tty     bool
	out     line
	now     func() time.Time
}

// NewProgress creates a bar over total requests with the default config.
func NewProgress(total int, message string) *ProgressBar {
	cfg := DefaultProgressConfig()
	cfg.Total = total
	cfg.Message = message
	return NewProgressWithConfig(cfg)
}

// NewProgressWithConfig creates a bar from cfg, filling unset fields.
func NewProgressWithConfig(cfg ProgressConfig) *ProgressBar {
	if cfg.Total <= 0 {
		cfg.Total = 1
	}
	if cfg.Width <= 0 {
		cfg.Width = 20
	}
	if cfg.MinSamplesForETA <= 0 {
		cfg.MinSamplesForETA = 2
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	tty := isTerminalWriter(cfg.Writer)
	if cfg.IsTTY != nil {
		tty = *cfg.IsTTY
	}
	return &ProgressBar{
		config: cfg,
		tty:    tty,
		out:    line{w: cfg.Writer},
		now:    time.Now,
	}
}

// Total returns the number of requests the bar expects.
func (p *ProgressBar) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.Total
}

// Current returns the number of finished requests.
func (p *ProgressBar) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// IsActive reports whether Start has been called without a matching
// Complete or Fail.
func (p *ProgressBar) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// IsTTY reports whether the bar renders inline.
func (p *ProgressBar) IsTTY() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tty
}

// Percentage returns progress in [0, 100].
func (p *ProgressBar) Percentage() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent()
}

func (p *ProgressBar) percent() float64 {
	return float64(p.current) / float64(p.config.Total) * 100
}

// Start shows the bar. Calling it twice is a no-op.
func (p *ProgressBar) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return
	}
	p.active = true
	p.started = p.now()
	p.current = 0
	if p.tty {
		fmt.Fprint(p.config.Writer, hideCursor)
		p.out.write(p.render())
		return
	}
	fmt.Fprintln(p.config.Writer, p.render())
}

// Increment records one finished request.
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(p.current + 1)
}

// Set moves progress to n, clamped to [0, Total]. Non-TTY output prints a
// line each time a tenth of the batch is crossed.
func (p *ProgressBar) Set(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(n)
}

func (p *ProgressBar) set(n int) {
	if !p.active {
		return
	}
	n = min(max(n, 0), p.config.Total)
	prev := p.current
	p.current = n
	if p.tty {
		p.out.write(p.render())
		return
	}
	if n*10/p.config.Total > prev*10/p.config.Total || (n == p.config.Total && prev != n) {
		fmt.Fprintln(p.config.Writer, p.render())
	}
}

// Complete stops the bar with a success line.
func (p *ProgressBar) Complete(message string) {
	p.finish(message, symbolSuccess, colorGreen)
}

// Fail stops the bar with a failure line.
func (p *ProgressBar) Fail(message string) {
	p.finish(message, symbolFailure, colorRed)
}

func (p *ProgressBar) finish(message, symbol, color string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if message == "" {
		message = p.config.Message + " complete"
	}
	var elapsed time.Duration
	if !p.started.IsZero() && p.config.ShowElapsed {
		elapsed = p.now().Sub(p.started)
	}
	if p.active && p.tty {
		p.out.clear()
		fmt.Fprint(p.config.Writer, showCursor)
	}
	p.active = false
	fmt.Fprint(p.config.Writer, finalLine(p.tty, symbol, color, message, elapsed))
}

// render builds the bar line. Caller holds mu.
func (p *ProgressBar) render() string {
	filled := p.current * p.config.Width / p.config.Total
	parts := []string{
		"[" + strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, p.config.Width-filled) + "]",
		fmt.Sprintf("%.0f%%", p.percent()),
		fmt.Sprintf("(%d/%d)", p.current, p.config.Total),
	}
	if p.config.Message != "" {
		parts = append([]string{p.config.Message}, parts...)
	}
	elapsed := p.now().Sub(p.started)
	if p.config.ShowElapsed {
		parts = append(parts, formatElapsed(elapsed))
	}
	if p.config.ShowETA && p.current >= p.config.MinSamplesForETA && p.current < p.config.Total {
		eta := elapsed / time.Duration(p.current) * time.Duration(p.config.Total-p.current)
		if eta > 0 {
			parts = append(parts, formatETA(eta))
		}
	}
	return strings.Join(parts, " ")
}
