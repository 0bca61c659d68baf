// Package classfilter decides whether a loaded class is eligible for
// bytecode instrumentation, from a compiled list of include/exclude
// matchers. Pattern compilation follows §3: a bare "*" matches one dotted
// path segment, "**" matches any substring including dots, and a
// wildcard-free pattern is treated as a package prefix.
package classfilter

import (
	"regexp"
	"strings"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"
)

// builtinExcludes are always rejected regardless of user configuration:
// runtime internals, this instrumentation library's own package, and the
// managed-runtime libraries commonly loaded alongside application code.
var builtinExcludes = []string{
	"java.**",
	"javax.**",
	"jdk.**",
	"sun.**",
	"com.sun.**",
	"org.springframework.boot.loader.**",
	"ch.qos.logback.**",
	"org.slf4j.**",
	"net.bytebuddy.**",
	"reprodprobe.**",
}

// matcher tests a candidate class name against one compiled pattern.
type matcher interface {
	Match(class string) bool
	String() string
}

// wildcardMatcher backs patterns built only from "**" (or no wildcard at
// all, once normalized to a "**"-suffixed prefix). "**" matches any
// substring including dots, which is exactly go-wildcard's single "*"
// token, so those patterns are delegated straight to go-wildcard.
type wildcardMatcher struct {
	raw     string
	pattern string
}

func (m wildcardMatcher) Match(class string) bool { return wildcard.Match(m.pattern, class) }
func (m wildcardMatcher) String() string          { return m.raw }

// segmentMatcher backs patterns containing a single-segment "*" token,
// which go-wildcard has no equivalent for (its "*" always crosses dots).
// These compile to a regexp instead.
type segmentMatcher struct {
	raw string
	re  *regexp.Regexp
}

func (m segmentMatcher) Match(class string) bool { return m.re.MatchString(class) }
func (m segmentMatcher) String() string          { return m.raw }

// Compile turns a glob/prefix pattern into a matcher, per §3:
//   - "*"  matches one path segment (non-dot characters)
//   - "**" matches any substring including dots
//   - a pattern with no wildcard characters is a package prefix,
//     equivalent to appending ".**"
func Compile(pattern string) matcher {
	normalized := normalizePattern(pattern)
	if !strings.Contains(stripDoubleStars(normalized), "*") {
		return wildcardMatcher{raw: pattern, pattern: strings.ReplaceAll(normalized, "**", "*")}
	}
	return segmentMatcher{raw: pattern, re: ToRegex(pattern)}
}

// normalizePattern appends ".**" to a wildcard-free pattern so it behaves
// as a package prefix.
func normalizePattern(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if !strings.Contains(pattern, "*") {
		pattern += ".**"
	}
	return pattern
}

// stripDoubleStars removes "**" occurrences so the caller can test whether
// any single-segment "*" remains.
func stripDoubleStars(pattern string) string {
	return strings.ReplaceAll(pattern, "**", "")
}

// ToRegex compiles a glob/prefix pattern into the anchored regexp it
// denotes, applying the same wildcard-free-prefix normalization as
// Compile. Exported so the translation itself is directly testable.
func ToRegex(pattern string) *regexp.Regexp {
	normalized := normalizePattern(pattern)
	var b strings.Builder
	runes := []rune(normalized)
	for i := 0; i < len(runes); i++ {
		switch {
		case runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '*':
			b.WriteString(".*")
			i++
		case runes[i] == '*':
			b.WriteString(`[^.]*`)
		case strings.ContainsRune(`.+?()[]{}|^$\`, runes[i]):
			b.WriteByte('\\')
			b.WriteRune(runes[i])
		default:
			b.WriteRune(runes[i])
		}
	}
	return regexp.MustCompile("^" + b.String() + "$")
}

// Filter holds ordered include and exclude matchers compiled once at agent
// start.
type Filter struct {
	includes []matcher
	excludes []matcher
}

// New compiles the given include/exclude glob lists plus the built-in
// excludes.
func New(includes, excludes []string) *Filter {
	f := &Filter{}
	for _, p := range includes {
		if p = strings.TrimSpace(p); p != "" {
			f.includes = append(f.includes, Compile(p))
		}
	}
	for _, p := range excludes {
		if p = strings.TrimSpace(p); p != "" {
			f.excludes = append(f.excludes, Compile(p))
		}
	}
	for _, p := range builtinExcludes {
		f.excludes = append(f.excludes, Compile(p))
	}
	return f
}

// Accepts decides whether class c is instrumentable: it must be non-empty,
// match no exclude (built-in or user-supplied), and match at least one
// include.
func (f *Filter) Accepts(c string) bool {
	if c == "" {
		return false
	}
	for _, m := range f.excludes {
		if m.Match(c) {
			return false
		}
	}
	for _, m := range f.includes {
		if m.Match(c) {
			return true
		}
	}
	return false
}
