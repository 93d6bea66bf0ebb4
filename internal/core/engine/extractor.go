// Package engine turns vintage descriptions into one canonical table.
//
// Every function here is pure: no I/O, no shared state. Callers own the
// concurrency and the logging.
package engine

import (
	"regexp"
	"regexp/syntax"
	"strings"
	"unicode"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

// softBreak is the inline line break used by the map exports.
const softBreak = "<br>"

// Segments splits a description into trimmed, non-blank lines. Non-ASCII
// whitespace such as the no-break space is folded to a plain space first so
// that `\s` in the registry patterns matches it.
func Segments(text string) []string {
	text = strings.Map(foldSpace, strings.ReplaceAll(text, softBreak, "\n"))
	parts := strings.Split(text, "\n")
	segs := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

func foldSpace(r rune) rune {
	if r > unicode.MaxASCII && unicode.IsSpace(r) {
		return ' '
	}
	return r
}

// Extract recovers every patterned field of schema from text.
//
// Fields are resolved independently. For one field the candidate patterns are
// tried in order and each is scanned over the segments in order; the first hit
// wins. Fields with no hit are Missing.
func Extract(text domain.Text, schema *domain.VintageSchema) domain.ExtractedRow {
	row := make(domain.ExtractedRow, len(schema.Patterns))
	if !text.Valid {
		for _, fp := range schema.Patterns {
			row[fp.Field] = domain.Missing
		}
		return row
	}

	segs := Segments(text.String)
	for _, fp := range schema.Patterns {
		row[fp.Field] = matchField(fp.Patterns, segs)
	}
	return row
}

func matchField(patterns []*regexp.Regexp, segs []string) domain.Text {
	for _, re := range patterns {
		for _, seg := range segs {
			if v, ok := capture(re, seg); ok {
				return domain.Present(v)
			}
		}
	}
	return domain.Missing
}

// capture returns the text of the capture group that closed last in the
// match: the participating group with the greatest end offset, and among
// groups ending together the one whose closing parenthesis comes last in the
// pattern (an enclosing group closes after the groups it contains). A match
// where no group participated does not count.
func capture(re *regexp.Regexp, s string) (string, bool) {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return "", false
	}
	var rank []int
	best := -1
	for g := 1; g < len(loc)/2; g++ {
		if loc[2*g] < 0 {
			continue
		}
		if best >= 0 {
			end, bestEnd := loc[2*g+1], loc[2*best+1]
			if end < bestEnd {
				continue
			}
			if end == bestEnd {
				if rank == nil {
					rank = closeOrder(re)
				}
				if rank[g] < rank[best] {
					continue
				}
			}
		}
		best = g
	}
	if best < 0 {
		return "", false
	}
	return strings.TrimSpace(s[loc[2*best]:loc[2*best+1]]), true
}

// closeOrder ranks the capture groups of re by the position of their closing
// parenthesis: children before their parent, left before right.
func closeOrder(re *regexp.Regexp) []int {
	rank := make([]int, re.NumSubexp()+1)
	tree, err := syntax.Parse(re.String(), syntax.Perl)
	if err != nil {
		for g := range rank {
			rank[g] = g
		}
		return rank
	}
	n := 0
	var walk func(*syntax.Regexp)
	walk = func(r *syntax.Regexp) {
		for _, sub := range r.Sub {
			walk(sub)
		}
		if r.Op == syntax.OpCapture && r.Cap < len(rank) {
			n++
			rank[r.Cap] = n
		}
	}
	walk(tree)
	return rank
}
