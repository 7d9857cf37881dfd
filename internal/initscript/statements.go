package initscript

import "strings"

// Statements splits SQL text on semicolons that are outside quoted strings,
// quoted identifiers and comments. Empty statements are dropped and the
// rest are trimmed.
func Statements(sql string) []string {
	var (
		stmts []string
		start int
	)
	emit := func(end int) {
		if s := strings.TrimSpace(sql[start:end]); s != "" {
			stmts = append(stmts, s)
		}
	}
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(sql, i, c)
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 3
			}
		case c == ';':
			emit(i)
			start = i + 1
		}
	}
	if start < len(sql) {
		emit(len(sql))
	}
	return stmts
}

// skipQuoted returns the index of the quote closing the one at i. A
// doubled quote is an escaped quote. An unterminated quote runs to the end.
func skipQuoted(s string, i int, q byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j
	}
	return len(s)
}
