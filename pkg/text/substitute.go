package text

import "strings"

// Substitute implements find-all replacement for a literal needle.
//
// Case-sensitive mode is plain substring replacement. Case-insensitive mode
// cannot use strings.ReplaceAll (it would miss differently-cased
// occurrences), so it walks the value left to right with the shared folded
// find: on a hit it emits the replacement verbatim and advances past the
// matched span, otherwise the original bytes pass through untouched. Every
// occurrence is replaced exactly once.
func (p *plainPattern) Substitute(replacement, value string) string {
	if !p.fold {
		return strings.ReplaceAll(value, p.needle, replacement)
	}
	if p.needle == "" {
		return value
	}

	var b strings.Builder
	last := 0
	for last < len(value) {
		begin, end := p.findFrom(value, last)
		if begin < 0 {
			break
		}
		b.WriteString(value[last:begin])
		b.WriteString(replacement)
		last = end
	}
	b.WriteString(value[last:])
	return b.String()
}

// Substitute delegates to the regexp engine, which replaces every
// non-overlapping match left to right and expands $N group references in the
// replacement template.
func (p *regexPattern) Substitute(replacement, value string) string {
	return p.re.ReplaceAllString(value, replacement)
}
