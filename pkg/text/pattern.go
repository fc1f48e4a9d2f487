package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gitlab.com/tozd/go/errors"
)

// ErrInvalidPattern is returned by Compile when the search expression cannot
// be used, e.g. a malformed regular expression. Callers must treat it as
// fatal: nothing has been scanned yet.
var ErrInvalidPattern = errors.New("invalid pattern")

// Options selects how the search expression is interpreted.
type Options struct {
	// Regex treats the expression as a regular expression instead of a
	// literal substring.
	Regex bool

	// IgnoreCase makes matching case-insensitive. For regex patterns this is
	// a compile-time flag; for plain patterns both sides are folded rune by
	// rune with the same rule used by Substitute and Diff.
	IgnoreCase bool
}

// Pattern is a compiled search specification. The two implementations (plain
// substring and regular expression) each carry their own matching,
// substitution and diff logic, chosen once at Compile time.
type Pattern interface {
	// Matches reports whether the pattern occurs anywhere in value.
	Matches(value string) bool

	// Substitute replaces every non-overlapping occurrence of the pattern in
	// value with replacement, left to right. Regex patterns expand $N group
	// references in replacement.
	Substitute(replacement, value string) string

	// Diff renders a position-aligned marked view of original vs substituted,
	// where substituted must be the output of Substitute for the same
	// replacement. See Rendering.
	Diff(replacement, original, substituted string) (Rendering, error)

	// Source returns the expression the pattern was compiled from.
	Source() string
}

// Compile builds a Pattern from a search expression. A malformed regular
// expression fails here, wrapped in ErrInvalidPattern, so a bad run aborts
// before any table is touched.
func Compile(expr string, opts Options) (Pattern, error) {
	if !opts.Regex {
		return &plainPattern{needle: expr, fold: opts.IgnoreCase}, nil
	}

	if opts.IgnoreCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return &regexPattern{re: re}, nil
}

// plainPattern matches a literal substring, optionally case-folded.
type plainPattern struct {
	needle string
	fold   bool
}

func (p *plainPattern) Source() string {
	return p.needle
}

func (p *plainPattern) Matches(value string) bool {
	begin, _ := p.findFrom(value, 0)
	return begin >= 0
}

// findFrom returns the byte span [begin, end) of the next occurrence of the
// needle at or after start, or (-1, -1). Both offsets are valid in value
// itself: case-insensitive matching folds rune by rune with unicode.ToLower,
// the single folding rule shared by Matches, Substitute and Diff, so a rune
// whose lowercase form has a different encoded length (İ, Ⱥ) still yields the
// original's byte boundaries. The matched span's byte length can therefore
// differ from len(p.needle); callers must advance to end, never by the
// needle's length.
func (p *plainPattern) findFrom(value string, start int) (int, int) {
	if !p.fold {
		idx := strings.Index(value[start:], p.needle)
		if idx < 0 {
			return -1, -1
		}
		return start + idx, start + idx + len(p.needle)
	}

	for i := start; ; {
		if end, ok := p.foldMatchAt(value, i); ok {
			return i, end
		}
		if i >= len(value) {
			return -1, -1
		}
		_, size := utf8.DecodeRuneInString(value[i:])
		i += size
	}
}

// foldMatchAt reports whether the needle matches at byte offset i of value
// under rune-wise lowercase folding, and the offset just past the match.
func (p *plainPattern) foldMatchAt(value string, i int) (int, bool) {
	for _, nr := range p.needle {
		if i >= len(value) {
			return 0, false
		}
		vr, size := utf8.DecodeRuneInString(value[i:])
		if unicode.ToLower(vr) != unicode.ToLower(nr) {
			return 0, false
		}
		i += size
	}
	return i, true
}

// regexPattern matches a compiled regular expression. Case-insensitivity is
// baked into the expression at Compile time via (?i).
type regexPattern struct {
	re *regexp.Regexp
}

func (p *regexPattern) Source() string {
	return p.re.String()
}

func (p *regexPattern) Matches(value string) bool {
	return p.re.MatchString(value)
}
