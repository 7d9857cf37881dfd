// Package initscript turns CLI-style initialization scripts (~/.duckdbrc,
// ~/.sqliterc) into SQL the database drivers can execute.
package initscript

import "strings"

// Dialect selects the directive vocabulary and terminators of a script.
type Dialect int

const (
	DuckDB Dialect = iota
	SQLite
)

// Command is one unit of a script: a single directive line, or a block of
// SQL lines.
type Command struct {
	Text      string
	Directive bool
}

// Split breaks a script into commands. A line starting with "." in its
// first column is a directive and becomes its own command; the SQL lines
// between directives stay together as one multi-line command. SQLite
// scripts may also end a SQL block with a line holding only "/" or "go".
// Commands are trimmed, and those left empty are dropped.
func Split(script string, d Dialect) []Command {
	lines := splitLines(script)
	var cmds []Command
	add := func(text string, directive bool) {
		if text = strings.TrimSpace(text); text != "" {
			cmds = append(cmds, Command{Text: text, Directive: directive})
		}
	}
	i := 0
	for j, line := range lines {
		switch {
		case strings.HasPrefix(line, "."):
			add(strings.Join(lines[i:j], "\n"), false)
			add(line, true)
			i = j + 1
		case d == SQLite && (line == "/" || line == "go"):
			add(strings.Join(lines[i:j], "\n"), false)
			i = j + 1
		}
	}
	add(strings.Join(lines[i:], "\n"), false)
	return cmds
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
