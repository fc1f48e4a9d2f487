package text

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrDiffMisaligned reports a broken rendering invariant: the marked spans of
// a rendered string no longer concatenate back to the input. It indicates a
// bug in the offset bookkeeping, not a user error.
var ErrDiffMisaligned = errors.New("diff rendering misaligned")

// Span is a run of consecutive characters in a rendered string. Marked spans
// are the removed text (in the original) or the inserted text (in the new
// string); unmarked spans passed through the substitution untouched.
type Span struct {
	Text   string
	Marked bool
}

// Rendering is a position-aligned marked view of one substitution.
// Concatenating the spans of Original reproduces the original value exactly;
// concatenating the spans of New reproduces the substituted value exactly.
// Styling (colors, +/- prefixes) is the caller's concern.
type Rendering struct {
	Original []Span
	New      []Span
}

// markedBuilder accumulates spans, merging adjacent runs with the same mark.
type markedBuilder struct {
	spans []Span
}

func (b *markedBuilder) append(text string, marked bool) {
	if text == "" {
		return
	}
	if n := len(b.spans); n > 0 && b.spans[n-1].Marked == marked {
		b.spans[n-1].Text += text
		return
	}
	b.spans = append(b.spans, Span{Text: text, Marked: marked})
}

func (b *markedBuilder) joined() string {
	var sb strings.Builder
	for _, s := range b.spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Diff walks the plain-mode occurrences with the same folded find used by
// Matches. Each occurrence is marked removed in the original; the
// corresponding replacement-length window of the substituted string, shifted
// by the running length discrepancy, is marked inserted. Text between
// occurrences passes through unmarked on both sides.
func (p *plainPattern) Diff(replacement, original, substituted string) (Rendering, error) {
	var orig, next markedBuilder

	last := 0   // scan position in original
	offset := 0 // cumulative len(replacement) minus matched-span bytes so far

	if p.needle != "" {
		for last < len(original) {
			begin, end := p.findFrom(original, last)
			if begin < 0 {
				break
			}
			orig.append(original[last:begin], false)
			orig.append(original[begin:end], true)

			next.append(substituted[last+offset:begin+offset], false)
			next.append(substituted[begin+offset:begin+offset+len(replacement)], true)

			last = end
			offset += len(replacement) - (end - begin)
		}
	}
	orig.append(original[last:], false)
	next.append(substituted[last+offset:], false)

	return finishRendering(orig, next, original, substituted)
}

// Diff iterates the regex matches of the original left to right. The
// replacement text for each individual match is expanded exactly (group
// references included), which keeps the inserted window length correct even
// for zero-width matches and group-dependent replacements.
func (p *regexPattern) Diff(replacement, original, substituted string) (Rendering, error) {
	var orig, next markedBuilder

	last := 0
	offset := 0

	for _, m := range p.re.FindAllStringSubmatchIndex(original, -1) {
		start, end := m[0], m[1]
		expanded := string(p.re.ExpandString(nil, replacement, original, m))

		orig.append(original[last:start], false)
		orig.append(original[start:end], true)

		next.append(substituted[last+offset:start+offset], false)
		next.append(substituted[start+offset:start+offset+len(expanded)], true)

		last = end
		offset += len(expanded) - (end - start)
	}
	orig.append(original[last:], false)
	next.append(substituted[last+offset:], false)

	return finishRendering(orig, next, original, substituted)
}

// finishRendering asserts the reconstruction invariant before handing the
// spans back: dropping or duplicating a single character here would silently
// corrupt the preview.
func finishRendering(orig, next markedBuilder, original, substituted string) (Rendering, error) {
	if got := orig.joined(); got != original {
		return Rendering{}, errors.Errorf("%w: original rendered as %q, want %q", ErrDiffMisaligned, got, original)
	}
	if got := next.joined(); got != substituted {
		return Rendering{}, errors.Errorf("%w: new value rendered as %q, want %q", ErrDiffMisaligned, got, substituted)
	}
	return Rendering{Original: orig.spans, New: next.spans}, nil
}
