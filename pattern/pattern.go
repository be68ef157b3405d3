// Package pattern compiles placeholder templates such as "foo.{bar}" or
// "/users/{id=\d+}/{tab?}" into anchored regular expressions.
//
// The same compiler serves both event names and request paths; the only
// difference is the separator character, which bounds the default
// placeholder expression and decides which literal is absorbed by an
// optional placeholder.
//
// Supported placeholder forms:
//
//	{name}          default expression, [^<sep>]+
//	{name=a|b}      inline expression
//	{=o{2}}         anonymous placeholder with an inline expression
//	{name?}         optional placeholder (a preceding separator becomes optional too)
//
// External constraints passed to Compile take precedence over inline
// expressions, which is how Where / WhereIn on registrations are applied.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Params holds the values extracted from a matched input, keyed by placeholder name.
type Params map[string]string

// Get returns the value for name, or the empty string when it is absent.
func (p Params) Get(name string) string {
	return p[name]
}

// Options configures a Builder.
type Options struct {
	// Separator delimits segments, "." for events and "/" for paths.
	Separator byte

	// DefaultRegex is used for placeholders with no inline or external
	// constraint. Empty means [^<Separator>]+.
	DefaultRegex string

	// CaseInsensitive compiles every pattern with the (?i) flag.
	CaseInsensitive bool
}

// EventOptions returns the options used for event names.
func EventOptions() Options {
	return Options{Separator: '.'}
}

// PathOptions returns the options used for request paths.
func PathOptions() Options {
	return Options{Separator: '/'}
}

// DomainOptions returns the options used for host names.
func DomainOptions() Options {
	return Options{Separator: '.', CaseInsensitive: true}
}

// Builder compiles patterns. A Builder is immutable and safe for concurrent use.
type Builder struct {
	opts         Options
	defaultRegex string
}

// NewBuilder creates a Builder from opts.
func NewBuilder(opts Options) *Builder {
	if opts.Separator == 0 {
		opts.Separator = '/'
	}
	def := opts.DefaultRegex
	if def == "" {
		def = "[^" + regexp.QuoteMeta(string(opts.Separator)) + "]+"
	}
	return &Builder{opts: opts, defaultRegex: def}
}

// Options returns the options the builder was created with.
func (b *Builder) Options() Options {
	return b.opts
}

// Separator returns the segment separator.
func (b *Builder) Separator() byte {
	return b.opts.Separator
}

// Compiled is the result of compiling a pattern.
type Compiled struct {
	Pattern      string
	Regex        *regexp.Regexp
	Placeholders []string

	// groups[i] is the submatch index of Placeholders[i].
	groups []int
}

// Match reports whether input matches the whole pattern and returns the
// extracted placeholder values. Optional placeholders that did not
// participate in the match are left out of the result.
func (c *Compiled) Match(input string) (Params, bool) {
	loc := c.Regex.FindStringSubmatchIndex(input)
	if loc == nil {
		return nil, false
	}
	params := make(Params, len(c.Placeholders))
	for i, name := range c.Placeholders {
		if name == "" {
			continue
		}
		g := c.groups[i]
		if g < 0 || 2*g+1 >= len(loc) || loc[2*g] < 0 {
			continue
		}
		params[name] = input[loc[2*g]:loc[2*g+1]]
	}
	return params, true
}

// MatchString reports whether input matches without extracting values.
func (c *Compiled) MatchString(input string) bool {
	return c.Regex.MatchString(input)
}

// String returns the compiled expression.
func (c *Compiled) String() string {
	return c.Regex.String()
}

// Compile turns pattern into an anchored regular expression. constraints
// maps placeholder names to expressions that replace inline or default ones.
func (b *Builder) Compile(pattern string, constraints map[string]string) (*Compiled, error) {
	var sb strings.Builder
	if b.opts.CaseInsensitive {
		sb.WriteString("(?i)")
	}
	sb.WriteByte('^')

	sep := string(b.opts.Separator)
	seen := make(map[string]bool)
	var names []string
	last := 0

	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '}':
			return nil, newPatternError(pattern, ErrUnbalancedBraces, "unexpected '}' at offset %d", i)
		case '{':
		default:
			continue
		}

		end, err := closingBrace(pattern, i)
		if err != nil {
			return nil, err
		}

		name, inline, optional := splitPlaceholder(pattern[i+1 : end])
		if name != "" {
			if !validName(name) {
				return nil, newPatternError(pattern, ErrInvalidPlaceholderName, "%q", name)
			}
			if seen[name] {
				return nil, newPatternError(pattern, ErrDuplicatePlaceholder, "%q", name)
			}
			seen[name] = true
		}

		expr := b.defaultRegex
		if inline != "" {
			expr = inline
		}
		if c, ok := constraints[name]; ok && name != "" && c != "" {
			expr = c
		}

		literal := pattern[last:i]
		prefix := ""
		if optional && strings.HasSuffix(literal, sep) {
			literal = strings.TrimSuffix(literal, sep)
			prefix = sep
		}
		sb.WriteString(regexp.QuoteMeta(literal))

		group := fmt.Sprintf("(?P<p%d>%s)", len(names), expr)
		if optional {
			sb.WriteString("(?:" + regexp.QuoteMeta(prefix) + group + ")?")
		} else {
			sb.WriteString(group)
		}

		names = append(names, name)
		last = end + 1
		i = end
	}

	sb.WriteString(regexp.QuoteMeta(pattern[last:]))
	sb.WriteByte('$')

	return Restore(pattern, sb.String(), names)
}

// Restore rebuilds a Compiled from an expression produced by Compile, as
// stored in a dispatcher snapshot.
func Restore(pattern, expr string, placeholders []string) (*Compiled, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Reason: err.Error(), Err: ErrInvalidRegex}
	}
	groups := make([]int, len(placeholders))
	for i := range placeholders {
		groups[i] = re.SubexpIndex(fmt.Sprintf("p%d", i))
	}
	return &Compiled{
		Pattern:      pattern,
		Regex:        re,
		Placeholders: append([]string(nil), placeholders...),
		groups:       groups,
	}, nil
}

// Join quotes every value and joins them as alternatives.
func Join(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return strings.Join(quoted, "|")
}

// closingBrace returns the index of the brace closing the one at start.
// Braces nest, and a backslash escapes the next byte.
func closingBrace(pattern string, start int) (int, error) {
	depth := 0
	for j := start; j < len(pattern); j++ {
		switch pattern[j] {
		case '\\':
			j++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j, nil
			}
		}
	}
	return 0, newPatternError(pattern, ErrUnbalancedBraces, "'{' at offset %d is never closed", start)
}

func splitPlaceholder(body string) (name, inline string, optional bool) {
	name = body
	if idx := strings.IndexByte(body, '='); idx >= 0 {
		name, inline = body[:idx], body[idx+1:]
	}
	name = strings.TrimSpace(name)
	if strings.HasSuffix(name, "?") {
		optional = true
		name = strings.TrimSuffix(name, "?")
	}
	return name, inline, optional
}

func validName(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
