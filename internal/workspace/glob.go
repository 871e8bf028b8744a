package workspace

import (
	"strings"

	"github.com/shellforge/execd/internal/request"
)

// tokenKind tags one element of a compiled path-segment pattern. Patterns
// are compiled into these small automata instead of delegating to the
// regexp package: a glob's '*' must never cross a '/', which a naive regexp
// translation is easy to get wrong.
type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokAny     // '?' — exactly one rune
	tokStar    // '*' — zero or more runes, never '/'
	tokClass   // '[...]' character class
)

type token struct {
	kind    tokenKind
	literal rune
	negate  bool
	ranges  []runeRange
}

type runeRange struct{ lo, hi rune }

func (t token) matches(r rune) bool {
	switch t.kind {
	case tokLiteral:
		return r == t.literal
	case tokAny:
		return true
	case tokClass:
		in := false
		for _, rg := range t.ranges {
			if r >= rg.lo && r <= rg.hi {
				in = true
				break
			}
		}
		if t.negate {
			return !in
		}
		return in
	}
	return false
}

// segment is either the recursive "**" marker (matches zero or more full
// path components) or a compiled single-component pattern.
type segment struct {
	recursive bool
	tokens    []token
}

// compilePattern splits a glob pattern on '/' and compiles each component,
// recognizing "**" only when it is a whole component.
func compilePattern(pattern string) ([]segment, error) {
	parts := strings.Split(pattern, "/")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		if p == "**" {
			segs = append(segs, segment{recursive: true})
			continue
		}
		toks, err := compileSegment(p)
		if err != nil {
			return nil, err
		}
		segs = append(segs, segment{tokens: toks})
	}
	return segs, nil
}

func compileSegment(seg string) ([]token, error) {
	var toks []token
	runes := []rune(seg)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			toks = append(toks, token{kind: tokStar})
		case '?':
			toks = append(toks, token{kind: tokAny})
		case '[':
			end := indexRune(runes, i+1, ']')
			if end < 0 {
				return nil, request.NewError(request.CodeInvalidType, "unterminated character class in glob %q", seg)
			}
			body := runes[i+1 : end]
			negate := false
			if len(body) > 0 && (body[0] == '!' || body[0] == '^') {
				negate = true
				body = body[1:]
			}
			var ranges []runeRange
			for j := 0; j < len(body); j++ {
				if j+2 < len(body) && body[j+1] == '-' {
					ranges = append(ranges, runeRange{lo: body[j], hi: body[j+2]})
					j += 2
				} else {
					ranges = append(ranges, runeRange{lo: body[j], hi: body[j]})
				}
			}
			toks = append(toks, token{kind: tokClass, negate: negate, ranges: ranges})
			i = end
		default:
			toks = append(toks, token{kind: tokLiteral, literal: runes[i]})
		}
	}
	return toks, nil
}

func indexRune(runes []rune, start int, target rune) int {
	for i := start; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

// matchComponent runs the compiled token NFA against one path component via
// a standard wildcard-matching DP: dp[i][j] is whether tokens[:i] matches
// name[:j]. '*' is the only token that can consume zero runes, so it is the
// only one needing the "skip this token" transition.
func matchComponent(tokens []token, name string) bool {
	runes := []rune(name)
	n, m := len(tokens), len(runes)
	dp := make([][]bool, n+1)
	for i := range dp {
		dp[i] = make([]bool, m+1)
	}
	dp[0][0] = true
	for i := 1; i <= n; i++ {
		if tokens[i-1].kind == tokStar {
			dp[i][0] = dp[i-1][0]
		}
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			t := tokens[i-1]
			if t.kind == tokStar {
				dp[i][j] = dp[i][j-1] || dp[i-1][j]
			} else {
				dp[i][j] = dp[i-1][j-1] && t.matches(runes[j-1])
			}
		}
	}
	return dp[n][m]
}

// matchPath matches compiled pattern segments against path components,
// treating a recursive "**" segment as matching any number (including
// zero) of remaining components before the rest of the pattern resumes.
func matchPath(segs []segment, components []string) bool {
	if len(segs) == 0 {
		return len(components) == 0
	}
	head := segs[0]
	if head.recursive {
		for k := 0; k <= len(components); k++ {
			if matchPath(segs[1:], components[k:]) {
				return true
			}
		}
		return false
	}
	if len(components) == 0 {
		return false
	}
	if !matchComponent(head.tokens, components[0]) {
		return false
	}
	return matchPath(segs[1:], components[1:])
}
