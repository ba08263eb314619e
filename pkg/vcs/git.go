// Package vcs inspects the local git working tree.
package vcs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotARepository is returned when the directory is not inside a git
// working tree.
var ErrNotARepository = errors.New("not a git repository")

// Repository is a git working tree rooted at (or containing) Dir.
type Repository struct {
	// Dir is the directory git runs in. Empty means the current directory.
	Dir string

	// Git is the git executable. Empty means "git" from PATH.
	Git string
}

// Status is the parsed porcelain status of a working tree.
type Status struct {
	// Staged lists paths with changes in the index.
	Staged []string

	// Unstaged lists paths modified in the working tree only.
	Unstaged []string

	// Untracked lists paths git does not track.
	Untracked []string
}

// HasStagedChanges reports whether the index differs from HEAD.
func (r Repository) HasStagedChanges(ctx context.Context) (bool, error) {
	st, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return len(st.Staged) > 0, nil
}

// Status runs `git status --porcelain` and parses its output.
func (r Repository) Status(ctx context.Context) (Status, error) {
	bin := r.Git
	if bin == "" {
		bin = "git"
	}

	cmd := exec.CommandContext(ctx, bin, "status", "--porcelain")
	cmd.Dir = r.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return Status{}, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(strings.ToLower(msg), "not a git repository") {
			return Status{}, fmt.Errorf("%s: %w", r.dirName(), ErrNotARepository)
		}
		if msg != "" {
			return Status{}, fmt.Errorf("git status failed in %s: %s: %w", r.dirName(), msg, err)
		}
		return Status{}, fmt.Errorf("git status failed in %s: %w", r.dirName(), err)
	}
	return ParsePorcelain(out), nil
}

func (r Repository) dirName() string {
	if r.Dir == "" {
		return "."
	}
	return r.Dir
}

// ParsePorcelain parses porcelain v1 status output.
//
// Each line is "XY path" where X is the index status and Y the working tree
// status. Any X other than ' ' or '?' is a staged change; "??" marks an
// untracked path. Renames keep the destination path.
func ParsePorcelain(out []byte) Status {
	var st Status
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if len(line) < 4 {
			continue
		}
		x, y := line[0], line[1]
		path := line[3:]
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+len(" -> "):]
		}

		switch {
		case x == '?' && y == '?':
			st.Untracked = append(st.Untracked, path)
			continue
		case x == '!':
			continue
		}
		if x != ' ' {
			st.Staged = append(st.Staged, path)
		}
		if y != ' ' {
			st.Unstaged = append(st.Unstaged, path)
		}
	}
	return st
}

// Available reports the git version string, or an error when git cannot be
// run.
func Available(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "--version").Output()
	if err != nil {
		return "", fmt.Errorf("git not available: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
