package ics

import "strings"

// unfolder removes folded continuations first and normalizes what is left.
// strings.Replacer tries the old strings in argument order at each position,
// so the three-byte fold forms win over the bare line breaks.
var unfolder = strings.NewReplacer(
	"\r\n ", "",
	"\r\n\t", "",
	"\n ", "",
	"\n\t", "",
	"\r ", "",
	"\r\t", "",
	"\r\n", "\n",
	"\r", "\n",
)

// Unfold reassembles folded content lines: a line break (CRLF, LF or a lone
// CR) immediately followed by a single space or tab is deleted, and every
// remaining line break becomes "\n". Unfold is idempotent.
func Unfold(text string) string {
	if text == "" {
		return ""
	}
	out := unfolder.Replace(text)
	// An empty line followed by a fold can expose a new break+space pair.
	for strings.Contains(out, "\n ") || strings.Contains(out, "\n\t") {
		out = unfolder.Replace(out)
	}
	return out
}
