// Package quote is the single place where identifiers and string literals
// are spliced into SQL text.
package quote

import "strings"

// Ident quotes an identifier with double quotes (DuckDB, SQLite, Postgres).
// Embedded double quotes are doubled.
func Ident(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Backtick quotes an identifier with backticks (MySQL).
func Backtick(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// Literal renders s as a standard SQL string literal. Only single quotes
// are escaped; backslashes are literal in DuckDB, SQLite and Postgres
// (standard_conforming_strings).
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// MySQLLiteral renders s as a MySQL string literal, where backslash is an
// escape character unless NO_BACKSLASH_ESCAPES is set.
func MySQLLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// IdentIfNeeded leaves simple lower-case identifiers bare and quotes
// everything else.
func IdentIfNeeded(s string) string {
	if isBare(s) {
		return s
	}
	return Ident(s)
}

func isBare(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Strip removes one layer of surrounding quote characters (", ', `) from
// both ends of s.
func Strip(s string) string {
	return strings.Trim(s, "\"'`")
}
