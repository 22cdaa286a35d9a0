package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 100 * time.Millisecond

// Spinner draws an in-progress line on stderr while a resolution runs.
// External solver subprocesses are the only slow path in the CLI; everything
// else finishes before the first frame is drawn.
type Spinner struct {
	out     io.Writer
	message string

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	running  bool
	finished chan struct{}
	halt     sync.Once
}

func newSpinner(message string) *Spinner {
	return newSpinnerWithContext(context.Background(), message)
}

// newSpinnerWithContext ties the spinner to ctx so an interrupt clears the
// line before the command's own error handling prints.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	sctx, cancel := context.WithCancel(ctx)
	return &Spinner{
		out:      os.Stderr,
		message:  message,
		parent:   ctx,
		ctx:      sctx,
		cancel:   cancel,
		finished: make(chan struct{}),
	}
}

// Start begins the animation. Calling Start twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	go s.loop()
}

func (s *Spinner) loop() {
	defer close(s.finished)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-s.ctx.Done():
			s.clearLine()
			return
		case <-ticker.C:
			glyph := spinnerFrames[frame%len(spinnerFrames)]
			s.mu.Lock()
			fmt.Fprintf(s.out, "\r%s %s", styleIconSpinner.Render(glyph), StyleDim.Render(s.message))
			s.mu.Unlock()
		}
	}
}

// Stop halts the animation and clears the line. Idempotent; safe even when
// Start was never called.
func (s *Spinner) Stop() {
	s.halt.Do(func() {
		s.cancel()
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if running {
			<-s.finished
		}
		s.clearLine()
	})
}

// StopWithSuccess stops the spinner and prints a success line in its place.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	printSuccess("%s", message)
}

// StopWithError stops the spinner and prints an error line in its place.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

// Cancelled reports whether the surrounding command context was cancelled,
// as opposed to the spinner being stopped normally.
func (s *Spinner) Cancelled() bool {
	return s.parent.Err() != nil
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
}
