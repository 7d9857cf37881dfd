package initscript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExecFunc executes one SQL statement.
type ExecFunc func(ctx context.Context, stmt string) error

// ExecError reports the statement that failed while running a script.
type ExecError struct {
	Path      string
	Command   string
	Rewritten string
	Statement string
	Err       error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("Attempted to execute script at %s. Contents:\n%s\nRewritten to:\n%s\nCurrently executing:\n%s\nError:\n%v",
		e.Path, e.Command, e.Rewritten, e.Statement, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Read returns the script at path. A missing or unreadable file is an
// empty script.
func Read(path string) string {
	b, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		return ""
	}
	return string(b)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// DefaultPath returns the init script a CLI for the dialect reads by
// default.
func DefaultPath(d Dialect) string {
	name := ".duckdbrc"
	if d == SQLite {
		name = ".sqliterc"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, name)
}

// Run splits, rewrites and executes script, returning the number of
// statements executed. Execution stops at the first failure, which is
// returned as an *ExecError.
func Run(ctx context.Context, exec ExecFunc, path, script string, d Dialect) (int, error) {
	count := 0
	for _, cmd := range Split(script, d) {
		rewritten, err := Rewrite(cmd, d)
		if err != nil {
			return count, &ExecError{Path: path, Command: cmd.Text, Err: err}
		}
		for _, stmt := range Statements(rewritten) {
			if err := ctx.Err(); err != nil {
				return count, err
			}
			if err := exec(ctx, stmt); err != nil {
				return count, &ExecError{Path: path, Command: cmd.Text, Rewritten: rewritten, Statement: stmt, Err: err}
			}
			count++
		}
	}
	return count, nil
}

// Message is the informational note shown after a script ran. Zero
// executed statements produce no message.
func Message(count int, path string) string {
	switch count {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("Executed 1 command from %s", path)
	default:
		return fmt.Sprintf("Executed %d commands from %s", count, path)
	}
}

// IsExecError reports whether err came from executing a script.
func IsExecError(err error) bool {
	var e *ExecError
	return errors.As(err, &e)
}
