// Package sanitize redacts literal parameter values from captured operation
// text before it is attached to a span.
//
// The grammar is permissive and best-effort: it only needs to find numeric,
// string and list literals, not validate SQL. Anything it cannot make sense
// of is returned verbatim with a first-token summary, counted, and never an
// error, because a statement the sanitizer chokes on must not break the
// request that carried it.
//
// A Sanitizer is built once from process-wide configuration and shared
// read-only across goroutines.
package sanitize

import (
	"strings"

	"github.com/traceweave/traceweave/internal/monitoring"
)

// Placeholder replaces every redacted literal.
const Placeholder = "?"

// Operation is the sanitized form of one captured statement.
type Operation struct {
	// Summary classifies the statement: operation keyword plus primary
	// target, e.g. "SELECT users".
	Summary string

	// Sanitized is the statement with literals replaced by Placeholder.
	// With sanitization disabled it is the raw text.
	Sanitized string

	// Original holds the raw text, retained only when sanitization is
	// disabled.
	Original string
}

// Sanitizer normalizes operation text. Construct once via New and reuse; it
// holds no mutable state.
type Sanitizer struct {
	enabled bool
	metrics *monitoring.Metrics
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithMetrics overrides the internal counters, used by tests.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Sanitizer) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a sanitizer. When enabled is false, Sanitize passes text
// through untouched.
func New(enabled bool, opts ...Option) *Sanitizer {
	s := &Sanitizer{
		enabled: enabled,
		metrics: monitoring.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether redaction is active.
func (s *Sanitizer) Enabled() bool {
	return s.enabled
}

// Sanitize normalizes raw operation text. Pure and deterministic; never
// panics on malformed input.
func (s *Sanitizer) Sanitize(raw string) Operation {
	if !s.enabled {
		return Operation{
			Summary:   summarize(raw),
			Sanitized: raw,
			Original:  raw,
		}
	}

	redacted, ok := redact(raw)
	if !ok {
		s.metrics.SanitizeFallback.Inc()
		return Operation{
			Summary:   firstToken(raw),
			Sanitized: raw,
		}
	}

	return Operation{
		Summary:   summarize(redacted),
		Sanitized: redacted,
	}
}

// redact rewrites raw with literals replaced by Placeholder. Returns false
// on input the scanner cannot finish, e.g. an unterminated string.
func redact(raw string) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))

	runes := []rune(raw)
	// prevSignificant is the last non-space rune copied out, used to tell
	// a numeric literal from a digit inside an identifier and a negative
	// sign from a minus operator.
	var prevSignificant rune

	for i := 0; i < len(runes); {
		c := runes[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end, ok := scanQuoted(runes, i)
			if !ok {
				return "", false
			}
			if c == '`' {
				// Backtick-quoted names are identifiers, not values.
				b.WriteString(string(runes[i:end]))
			} else {
				b.WriteString(Placeholder)
			}
			prevSignificant = c
			i = end
		case c >= '0' && c <= '9' && !isIdentRune(prevSignificant):
			i = scanNumber(runes, i)
			b.WriteString(Placeholder)
			prevSignificant = '?'
		case c == '-' && i+1 < len(runes) && runes[i+1] >= '0' && runes[i+1] <= '9' && isSignContext(prevSignificant):
			i = scanNumber(runes, i+1)
			b.WriteString(Placeholder)
			prevSignificant = '?'
		default:
			b.WriteRune(c)
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				prevSignificant = c
			}
			i++
		}
	}
	return b.String(), true
}

// scanQuoted consumes a quoted region starting at start, honoring doubled
// quotes ('it''s') and backslash escapes. Returns the index past the closing
// quote, or false if the quote never closes.
func scanQuoted(runes []rune, start int) (int, bool) {
	quote := runes[start]
	for i := start + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			i++ // skip the escaped rune
		case quote:
			if i+1 < len(runes) && runes[i+1] == quote {
				i++ // doubled quote stays inside the literal
				continue
			}
			return i + 1, true
		}
	}
	return 0, false
}

// scanNumber consumes digits, one radix point, an exponent and hex forms,
// returning the index past the literal.
func scanNumber(runes []rune, start int) int {
	i := start
	if i+1 < len(runes) && runes[i] == '0' && (runes[i+1] == 'x' || runes[i+1] == 'X') {
		i += 2
		for i < len(runes) && isHexRune(runes[i]) {
			i++
		}
		return i
	}

	seenDot := false
	for i < len(runes) {
		c := runes[i]
		switch {
		case c >= '0' && c <= '9':
			i++
		case c == '.' && !seenDot:
			seenDot = true
			i++
		case (c == 'e' || c == 'E') && i+1 < len(runes) && (runes[i+1] == '+' || runes[i+1] == '-' || (runes[i+1] >= '0' && runes[i+1] <= '9')):
			i++
			if runes[i] == '+' || runes[i] == '-' {
				i++
			}
		default:
			return i
		}
	}
	return i
}

func isHexRune(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentRune(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// isSignContext reports whether a minus before a digit reads as a sign
// rather than a subtraction.
func isSignContext(prev rune) bool {
	switch prev {
	case 0, '=', '<', '>', '(', ',', '+', '-', '*', '/':
		return true
	}
	return false
}

// summarize derives "VERB target" from (already sanitized) statement text.
func summarize(text string) string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return ""
	}

	verb := strings.ToUpper(tokens[0])
	var target string

	switch verb {
	case "SELECT", "DELETE":
		target = tokenAfterKeyword(tokens, "from")
	case "INSERT", "REPLACE", "MERGE":
		target = tokenAfterKeyword(tokens, "into")
	case "UPDATE", "CALL":
		target = identifierAt(tokens, 1)
	case "CREATE", "DROP", "ALTER", "TRUNCATE":
		if t := tokenAfterKeyword(tokens, "table"); t != "" {
			target = t
		} else if t := tokenAfterKeyword(tokens, "index"); t != "" {
			target = t
		}
	}

	if target == "" {
		return verb
	}
	return verb + " " + target
}

// firstToken is the degraded summary used when redaction failed.
func firstToken(raw string) string {
	tokens := tokenize(raw)
	if len(tokens) == 0 {
		return ""
	}
	return strings.ToUpper(tokens[0])
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(c rune) bool {
		return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ';'
	})
}

func tokenAfterKeyword(tokens []string, keyword string) string {
	for i, tok := range tokens {
		if strings.EqualFold(tok, keyword) {
			return identifierAt(tokens, i+1)
		}
	}
	return ""
}

// identifierAt returns the token at idx stripped of quoting and trailing
// punctuation, or "" when it does not look like a name (e.g. a subquery).
func identifierAt(tokens []string, idx int) string {
	if idx >= len(tokens) {
		return ""
	}
	tok := tokens[idx]
	if paren := strings.IndexByte(tok, '('); paren >= 0 {
		// "users(a,b)" names a table, "(select" opens a subquery.
		tok = tok[:paren]
	}
	tok = strings.Trim(strings.TrimRight(tok, ","), "`\"")
	if tok == "" || tok == Placeholder {
		return ""
	}
	return tok
}
