package spinner

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// CharSet is a cycle of animation frames.
type CharSet []string

// Frame sets.
var (
	Braille = CharSet{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	Line    = CharSet{"|", "/", "-", "\\"}
)

// Config configures a Spinner.
type Config struct {
	CharSet     CharSet
	Message     string
	RefreshRate time.Duration
	ShowElapsed bool
	Writer      io.Writer
	// IsTTY overrides terminal detection on Writer. Off a terminal the
	// spinner prints its message once and does not animate.
	IsTTY *bool
}

// DefaultConfig returns the configuration used while loading a model.
func DefaultConfig() Config {
	return Config{
		CharSet:     Braille,
		Message:     "Loading model",
		RefreshRate: 80 * time.Millisecond,
		ShowElapsed: true,
		Writer:      os.Stderr,
	}
}

// Spinner animates a single status line for work of unknown length.
type Spinner struct {
	mu      sync.Mutex
	config  Config
	active  bool
	started time.Time
	frame   int
	tty     bool
	out     line
	stop    chan struct{}
	done    chan struct{}
}

// New creates a spinner showing message.
func New(message string) *Spinner {
	cfg := DefaultConfig()
	cfg.Message = message
	return NewWithConfig(cfg)
}

// NewWithConfig creates a spinner from cfg, filling unset fields.
func NewWithConfig(cfg Config) *Spinner {
	if len(cfg.CharSet) == 0 {
		cfg.CharSet = Braille
	}
	if cfg.RefreshRate <= 0 {
		cfg.RefreshRate = 80 * time.Millisecond
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	tty := isTerminalWriter(cfg.Writer)
	if cfg.IsTTY != nil {
		tty = *cfg.IsTTY
	}
	return &Spinner{config: cfg, tty: tty, out: line{w: cfg.Writer}}
}

// Message returns the current message.
func (s *Spinner) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Message
}

// IsActive reports whether the spinner is running.
func (s *Spinner) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Start begins animating. Calling it twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.started = time.Now()
	s.frame = 0
	if !s.tty {
		fmt.Fprintf(s.config.Writer, "%s...\n", s.config.Message)
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	fmt.Fprint(s.config.Writer, hideCursor)
	go s.spin(s.stop, s.done)
}

func (s *Spinner) spin(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.config.RefreshRate)
	defer ticker.Stop()
	s.draw()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.draw()
		}
	}
}

func (s *Spinner) draw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	text := s.config.CharSet[s.frame%len(s.config.CharSet)] + " " + s.config.Message
	s.frame++
	if s.config.ShowElapsed {
		text += " " + formatElapsed(time.Since(s.started))
	}
	s.out.write(text)
}

// Update replaces the message shown next to the animation.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Message = message
}

// Stop halts the animation and clears the line. It blocks until the
// animation goroutine has exited.
func (s *Spinner) Stop() {
	s.halt()
}

// Success stops the spinner and prints a success line. An empty message
// reuses the current one.
func (s *Spinner) Success(message string) {
	s.finish(message, symbolSuccess, colorGreen)
}

// Fail stops the spinner and prints a failure line.
func (s *Spinner) Fail(message string) {
	s.finish(message, symbolFailure, colorRed)
}

func (s *Spinner) finish(message, symbol, color string) {
	elapsed := s.halt()
	s.mu.Lock()
	defer s.mu.Unlock()
	if message == "" {
		message = s.config.Message
	}
	if !s.config.ShowElapsed {
		elapsed = 0
	}
	fmt.Fprint(s.config.Writer, finalLine(s.tty, symbol, color, message, elapsed))
}

// halt stops the goroutine if one is running and returns the elapsed time.
func (s *Spinner) halt() time.Duration {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return 0
	}
	s.active = false
	elapsed := time.Since(s.started)
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop == nil {
		return elapsed
	}
	close(stop)
	<-done

	s.mu.Lock()
	s.out.clear()
	fmt.Fprint(s.config.Writer, showCursor)
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	return elapsed
}
