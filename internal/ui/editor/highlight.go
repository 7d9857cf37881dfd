// Package editor is the SQL buffer widget.
package editor

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sqlharbor/internal/theme"
)

// dialectLexers names the chroma lexer used for each adapter.
var dialectLexers = map[string]string{
	"duckdb":   "postgresql",
	"postgres": "postgresql",
	"mysql":    "mysql",
	"sqlite":   "sql",
}

// Highlighter tokenises SQL with chroma and styles it from a theme.
type Highlighter struct {
	lexer chroma.Lexer
}

// NewHighlighter returns a highlighter for the adapter's dialect. Unknown
// adapters get the PostgreSQL lexer, then generic SQL.
func NewHighlighter(adapterName string) *Highlighter {
	l := lexers.Get(dialectLexers[adapterName])
	if l == nil {
		l = lexers.Get("postgresql")
	}
	if l == nil {
		l = lexers.Get("sql")
	}
	if l == nil {
		l = lexers.Fallback
	}
	return &Highlighter{lexer: chroma.Coalesce(l)}
}

// Highlight styles sql token by token. Tokens spanning lines are styled
// per line so every newline is emitted bare.
func (h *Highlighter) Highlight(sql string, th *theme.Theme) string {
	if th == nil {
		return sql
	}
	iter, err := h.lexer.Tokenise(nil, sql)
	if err != nil {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) * 2)
	for _, tok := range iter.Tokens() {
		style, ok := styleFor(tok.Type, th)
		if !ok {
			b.WriteString(tok.Value)
			continue
		}
		for i, line := range strings.Split(tok.Value, "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(style.Render(line))
			}
		}
	}
	return b.String()
}

// styleFor maps a token type to a theme style; false means unstyled.
func styleFor(tt chroma.TokenType, th *theme.Theme) (lipgloss.Style, bool) {
	switch {
	// KeywordType is a Keyword too; SQL types get their own colour.
	case tt == chroma.KeywordType:
		return th.SQLType, true
	case tt == chroma.NameFunction || tt == chroma.NameBuiltin:
		return th.SQLFunction, true
	case isKeyword(tt):
		return th.SQLKeyword, true
	case isString(tt):
		return th.SQLString, true
	case isNumber(tt):
		return th.SQLNumber, true
	case isComment(tt):
		return th.SQLComment, true
	case tt == chroma.NameVariable || tt == chroma.LiteralStringName:
		return th.SQLIdentifier, true
	case tt == chroma.Operator || tt == chroma.OperatorWord:
		return th.SQLOperator, true
	default:
		return lipgloss.Style{}, false
	}
}

func isKeyword(tt chroma.TokenType) bool { return tt.InCategory(chroma.Keyword) }

func isString(tt chroma.TokenType) bool {
	return tt.InSubCategory(chroma.LiteralString) && tt != chroma.LiteralStringName
}

func isNumber(tt chroma.TokenType) bool { return tt.InSubCategory(chroma.LiteralNumber) }

func isComment(tt chroma.TokenType) bool { return tt.InCategory(chroma.Comment) }
