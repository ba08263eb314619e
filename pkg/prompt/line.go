package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Line prompts over a plain reader and writer, one answer per line.
type Line struct {
	in  *bufio.Reader
	out io.Writer

	// pending holds a read still in flight after its context was cancelled.
	// The next prompt takes its answer instead of starting a second read.
	pending chan readResult
}

type readResult struct {
	line string
	err  error
}

var _ Prompter = (*Line)(nil)

// NewLine creates a Line prompter.
func NewLine(in io.Reader, out io.Writer) *Line {
	return &Line{in: bufio.NewReader(in), out: out}
}

// Confirm accepts yes/no (or y/n, any case) and asks again on anything else.
func (l *Line) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		fmt.Fprintf(l.out, "%s ", question)
		answer, err := l.readLine(ctx)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		fmt.Fprintln(l.out, `Please enter "yes" or "no".`)
	}
}

// ChooseOne prints a numbered menu and accepts either an index (1-based) or
// an exact option name.
func (l *Line) ChooseOne(ctx context.Context, question string, options []string) (string, error) {
	if len(options) == 0 {
		return "", ErrNoOptions
	}

	for {
		for i, opt := range options {
			fmt.Fprintf(l.out, "%d. %s\n", i+1, opt)
		}
		fmt.Fprintf(l.out, "%s\n? ", question)

		answer, err := l.readLine(ctx)
		if err != nil {
			return "", err
		}
		if choice, ok := resolveChoice(answer, options); ok {
			return choice, nil
		}
		fmt.Fprintf(l.out, "You must choose one of [%s].\n", choiceList(options))
	}
}

// readLine blocks until a line arrives or ctx is done. The read itself
// cannot be interrupted, so it runs in its own goroutine.
func (l *Line) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.pending == nil {
		ch := make(chan readResult, 1)
		l.pending = ch
		go func() {
			line, err := l.in.ReadString('\n')
			ch <- readResult{line: line, err: err}
		}()
	}

	var res readResult
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res = <-l.pending:
		l.pending = nil
	}

	line := strings.TrimSpace(res.line)
	if res.err != nil {
		if res.err == io.EOF && line != "" {
			return line, nil
		}
		if res.err == io.EOF {
			return "", ErrAborted
		}
		return "", res.err
	}
	return line, nil
}

// resolveChoice maps an index or exact name to an option. An in-range
// index wins over an option with the same numeric name.
func resolveChoice(answer string, options []string) (string, bool) {
	if answer == "" {
		return "", false
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], true
		}
	}
	for _, opt := range options {
		if opt == answer {
			return opt, true
		}
	}
	return "", false
}

func choiceList(options []string) string {
	parts := make([]string, 0, 2*len(options))
	for i := range options {
		parts = append(parts, strconv.Itoa(i+1))
	}
	parts = append(parts, options...)
	return strings.Join(parts, ", ")
}
