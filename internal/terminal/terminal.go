// Package terminal wraps the few raw terminal operations the CLI needs:
// detecting a TTY, reading a secret without echo and erasing a prompt.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or 80 when unknown.
func Width(f *os.File) int {
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// ReadSecret prints prompt to w and reads one line from in. Echo is disabled
// when in is a terminal.
func ReadSecret(w io.Writer, in *os.File, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	if IsTerminal(in) {
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ClearPreviousLines erases text of textLength characters that was echoed
// to w, plus the empty line left by Enter. width is the terminal width.
func ClearPreviousLines(w io.Writer, textLength, width int) {
	if width <= 0 {
		width = 80
	}
	lines := max(1, (textLength+width-1)/width) + 1

	for i := 0; i < lines; i++ {
		fmt.Fprint(w, "\r\x1b[2K") // start of line, clear it
		if i < lines-1 {
			fmt.Fprint(w, "\x1b[1A") // up one line
		}
	}
}
