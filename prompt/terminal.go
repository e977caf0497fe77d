// Package prompt implements the line oriented operator terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/ruteri/trustroot-signer/interfaces"
)

const (
	boldStart = "\x1b[1m"
	boldEnd   = "\x1b[0m"
)

// Terminal reads answers line by line and prints to the output writer.
type Terminal struct {
	in   *bufio.Reader
	out  io.Writer
	bold bool
}

// NewTerminal creates a terminal on the process standard streams. Prompts are
// emphasized when stdout is a terminal.
func NewTerminal() *Terminal {
	fd := os.Stdout.Fd()
	return NewTerminalWithStreams(os.Stdin, os.Stdout, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

// NewTerminalWithStreams creates a terminal on arbitrary streams.
func NewTerminalWithStreams(in io.Reader, out io.Writer, bold bool) *Terminal {
	return &Terminal{
		in:   bufio.NewReader(in),
		out:  out,
		bold: bold,
	}
}

func (t *Terminal) Echo(format string, args ...any) {
	fmt.Fprintf(t.out, format+"\n", args...)
}

func (t *Terminal) Ask(message, defaultValue string) (string, error) {
	text := message
	if defaultValue != "" {
		text = fmt.Sprintf("%s [%s]", message, defaultValue)
	}
	if t.bold {
		text = boldStart + text + boldEnd
	}
	fmt.Fprintf(t.out, "%s: ", text)

	line, err := t.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", interfaces.ErrAborted
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return defaultValue, nil
	}
	return line, nil
}

var _ interfaces.Prompt = (*Terminal)(nil)
