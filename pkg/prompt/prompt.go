// Package prompt reads answers from an interactive console.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ExitKeyword ends an input loop.
const ExitKeyword = "exit"

// ErrExit is returned when the user types the exit keyword or input ends.
var ErrExit = errors.New("exit requested")

// Console asks questions on out and reads answers from in.
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole wraps in and out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// Ask prints question and returns the trimmed answer. End of input with
// nothing typed yields ErrExit.
func (c *Console) Ask(question string) (string, error) {
	fmt.Fprint(c.out, question)
	line, err := c.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read answer: %w", err)
		}
		if line == "" {
			return "", ErrExit
		}
	}
	return line, nil
}

// IsExit reports whether answer is the exit keyword, ignoring case.
func IsExit(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), ExitKeyword)
}

// AskInputPath asks until the answer's base name matches pattern, ignoring
// case. Typing the exit keyword returns ErrExit.
func (c *Console) AskInputPath(pattern string) (string, error) {
	for {
		answer, err := c.Ask(fmt.Sprintf("Please enter the path to the csv file to use (or '%s' to quit): ", ExitKeyword))
		if err != nil {
			return "", err
		}
		if IsExit(answer) {
			return "", ErrExit
		}
		ok, err := filepath.Match(strings.ToLower(pattern), strings.ToLower(filepath.Base(answer)))
		if err != nil {
			return "", fmt.Errorf("input pattern %q: %w", pattern, err)
		}
		if ok && answer != "" {
			return answer, nil
		}
		fmt.Fprintf(c.out, "%q does not match %s\n", answer, pattern)
	}
}
