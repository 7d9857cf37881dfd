package initscript

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sadopc/sqlharbor/internal/quote"
)

// Rewrite converts one command into SQL. SQL blocks are returned
// unchanged. Recognized directives become equivalent SQL; all other
// directives become the empty string.
func Rewrite(cmd Command, d Dialect) (string, error) {
	if !cmd.Directive {
		return cmd.Text, nil
	}
	fields := strings.Fields(cmd.Text)
	args := fields[1:]
	switch {
	case fields[0] == ".open" && d == DuckDB:
		return rewriteDuckDBOpen(args), nil
	case fields[0] == ".open" && d == SQLite:
		return rewriteSQLiteOpen(args), nil
	case fields[0] == ".load" && d == SQLite:
		return rewriteLoad(args)
	default:
		return "", nil
	}
}

// rewriteDuckDBOpen attaches the file and makes it the default database.
// --readonly is the only supported option.
func rewriteDuckDBOpen(args []string) string {
	if len(args) == 0 {
		return "attach ':memory:'; use memory;"
	}
	option := ""
	path := args[0]
	if len(args) == 2 && args[0] == "--readonly" {
		option = " (READ_ONLY)"
		path = args[1]
	}
	alias := quote.IdentIfNeeded(stem(path))
	return fmt.Sprintf("attach %s%s as %s; use %s;", quote.Literal(path), option, alias, alias)
}

// rewriteSQLiteOpen attaches the file; SQLite has no USE, so the primary
// database stays the default. Options are ignored.
func rewriteSQLiteOpen(args []string) string {
	if len(args) == 0 || args[len(args)-1] == ":memory:" {
		return "attach ':memory:' as memory;"
	}
	path := args[len(args)-1]
	return fmt.Sprintf("attach %s as %s;", quote.Literal(path), quote.IdentIfNeeded(stem(path)))
}

func rewriteLoad(args []string) (string, error) {
	switch len(args) {
	case 1:
		return fmt.Sprintf("select load_extension(%s);", quote.Literal(args[0])), nil
	case 2:
		return fmt.Sprintf("select load_extension(%s, %s);", quote.Literal(args[0]), quote.Literal(args[1])), nil
	case 0:
		return "", fmt.Errorf("could not execute .load with no args")
	default:
		return "", fmt.Errorf("could not execute .load with args %v", args)
	}
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
