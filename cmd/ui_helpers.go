package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"indexsupply/cli/internal/terminal"
	"indexsupply/cli/pkg/indexsupply"
)

var spinnerFrames = []string{"-", "\\", "|", "/"}

// startSpinner draws a rotating frame followed by text on one line of f
// until the returned function is called. Nothing is drawn when f is not a
// terminal. The stop function clears the line and may be called more than
// once.
func startSpinner(f *os.File, text string) func() {
	if !terminal.IsTerminal(f) {
		return func() {}
	}
	maxWidth := terminal.Width(f) - 2
	if len(text) > maxWidth && maxWidth > 3 {
		text = text[:maxWidth-3] + "..."
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			line := spinnerFrames[i%len(spinnerFrames)] + " " + text
			select {
			case <-stop:
				fmt.Fprintf(f, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(f, "\r%s", line)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}

// startBlockFlag returns a cursor that always yields block when the flag
// was set, and nil otherwise.
func startBlockFlag(set bool, block uint64) indexsupply.CursorFunc {
	if !set {
		return nil
	}
	return func(context.Context) (uint64, error) { return block, nil }
}
