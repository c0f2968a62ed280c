package ics

import "strings"

// Unescape reverses TEXT value escaping in one left-to-right pass:
// `\\` -> `\`, `\,` -> `,`, `\;` -> `;`, `\n`/`\N` -> LF, `\t`/`\T` -> TAB.
// Unknown sequences are kept verbatim. The result is whitespace-trimmed.
func Unescape(value string) string {
	if !strings.Contains(value, `\`) {
		return strings.TrimSpace(value)
	}

	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' || i+1 == len(value) {
			b.WriteByte(c)
			continue
		}
		next := value[i+1]
		switch next {
		case '\\', ',', ';':
			b.WriteByte(next)
		case 'n', 'N':
			b.WriteByte('\n')
		case 't', 'T':
			b.WriteByte('\t')
		default:
			b.WriteByte(c)
			b.WriteByte(next)
		}
		i++
	}
	return strings.TrimSpace(b.String())
}
