package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims input, collapses inner whitespace runs to one space and cuts
// it to maxLen runes. Customer names and addresses are mostly pt-BR text, so the cut
// never splits a multi-byte character.
func SanitizeString(input string, maxLen int) string {
	fields := strings.FieldsFunc(input, unicode.IsSpace)
	out := strings.Join(fields, " ")
	if maxLen > 0 && utf8.RuneCountInString(out) > maxLen {
		out = strings.TrimSpace(string([]rune(out)[:maxLen]))
	}
	return out
}

// SanitizeMultiline keeps line breaks, as in order notes, but trims every line.
func SanitizeMultiline(input string, maxLen int) string {
	lines := strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = SanitizeString(line, 0); line != "" {
			kept = append(kept, line)
		}
	}
	out := strings.Join(kept, "\n")
	if maxLen > 0 && utf8.RuneCountInString(out) > maxLen {
		out = strings.TrimSpace(string([]rune(out)[:maxLen]))
	}
	return out
}

// DigitsOnly strips everything but ASCII digits, for phone numbers typed with masks.
func DigitsOnly(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
