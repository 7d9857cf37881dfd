package completion

import "unicode"

// WordBefore returns the completable word ending at cursor in text: the
// run of identifier characters, member separators and identifier quotes
// immediately before the cursor. ok is false inside a string literal.
func WordBefore(text string, cursor int) (word string, ok bool) {
	runes := []rune(text)
	if cursor > len(runes) {
		cursor = len(runes)
	}
	if cursor < 0 {
		cursor = 0
	}
	before := runes[:cursor]
	if insideStringLiteral(before) {
		return "", false
	}
	i := len(before)
	for i > 0 && isWordRune(before[i-1]) {
		i--
	}
	return string(before[i:]), true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		r == '_' || r == '$' || r == '.' || r == ':' || r == '"' || r == '`'
}

// insideStringLiteral reports an unmatched single quote.
func insideStringLiteral(before []rune) bool {
	n := 0
	for _, r := range before {
		if r == '\'' {
			n++
		}
	}
	return n%2 != 0
}
