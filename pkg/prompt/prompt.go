// Package prompt asks the operator yes/no questions and menu choices, either
// as plain line-oriented prompts or as small bubbletea programs.
package prompt

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ErrAborted is returned when the operator closes input or cancels a prompt.
var ErrAborted = errors.New("prompt aborted")

// ErrNoOptions is returned by ChooseOne when there is nothing to choose.
var ErrNoOptions = errors.New("no options to choose from")

// Prompter asks the operator questions.
type Prompter interface {
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, question string) (bool, error)

	// ChooseOne presents options and returns the one picked.
	ChooseOne(ctx context.Context, question string, options []string) (string, error)
}

// Auto returns a TUI prompter when in and out are both terminals, otherwise
// a Line prompter. noTUI forces the Line prompter.
func Auto(in io.Reader, out io.Writer, noTUI bool) Prompter {
	if !noTUI && isTerminal(in) && isTerminal(out) {
		return NewTUI(in, out)
	}
	return NewLine(in, out)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
