package makeconf

import (
	"fmt"
	"io"
	"os"
)

// LookupEnv resolves a key against the process-wide environment. It matches
// the signature of os.LookupEnv so tests can supply a fake environment.
type LookupEnv func(key string) (string, bool)

// Option configures Load and Parse behaviour.
type Option func(*parser)

// WithLookupEnv overrides the environment used as the interpolation fallback,
// primarily for tests.
func WithLookupEnv(lookup LookupEnv) Option {
	return func(p *parser) {
		p.lookupEnv = lookup
	}
}

// Load reads and parses the configuration file at path.
func Load(path string, opts ...Option) (*ConfigSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}
	return parse(string(data), opts)
}

// Parse reads a complete configuration document from r.
func Parse(r io.Reader, opts ...Option) (*ConfigSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(string(data), opts)
}

type parser struct {
	input     string
	pos       int
	line      int
	set       *ConfigSet
	lookupEnv LookupEnv
}

func parse(input string, opts []Option) (*ConfigSet, error) {
	p := &parser{
		input:     input,
		line:      1,
		set:       newConfigSet(),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.set, nil
}

func (p *parser) run() error {
	for p.pos < len(p.input) {
		p.skipBlank()
		if p.pos >= len(p.input) {
			break
		}
		switch c := p.input[p.pos]; {
		case c == '\n':
			p.advanceLine()
		case c == '#':
			p.skipToEOL()
		default:
			if err := p.parseAssignment(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *parser) parseAssignment() error {
	key, ok := p.scanIdentifier()
	if !ok || p.pos >= len(p.input) || p.input[p.pos] != '=' {
		return lineError(p.line, ErrMalformedLine)
	}
	p.pos++ // '='

	value, err := p.scanValue()
	if err != nil {
		return err
	}
	p.set.set(key, value)
	return nil
}

// scanIdentifier consumes an uppercase shell identifier: [A-Z_][A-Z0-9_]*.
func (p *parser) scanIdentifier() (string, bool) {
	start := p.pos
	for p.pos < len(p.input) && isIdentByte(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start || p.input[start] >= '0' && p.input[start] <= '9' {
		return "", false
	}
	return p.input[start:p.pos], true
}

func (p *parser) scanValue() (string, error) {
	if p.pos < len(p.input) {
		switch p.input[p.pos] {
		case '\'':
			return p.scanQuoted('\'')
		case '"':
			raw, err := p.scanQuoted('"')
			if err != nil {
				return "", err
			}
			return p.expand(raw), nil
		}
	}
	return p.scanUnquoted(), nil
}

// scanUnquoted consumes the remainder of the line. A '#' preceded by
// whitespace starts a trailing comment; surrounding whitespace is trimmed.
func (p *parser) scanUnquoted() string {
	start := p.pos
	end := -1
	for p.pos < len(p.input) && p.input[p.pos] != '\n' {
		if p.input[p.pos] == '#' && p.pos > start && isBlankByte(p.input[p.pos-1]) {
			end = p.pos
			p.skipToEOL()
			break
		}
		p.pos++
	}
	if end < 0 {
		end = p.pos
	}
	return trimBlank(p.input[start:end])
}

// scanQuoted consumes a value delimited by quote, which may span multiple
// physical lines. Only trailing whitespace or a comment may follow the
// closing quote on its line.
func (p *parser) scanQuoted(quote byte) (string, error) {
	openLine := p.line
	p.pos++ // opening quote
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == quote {
			raw := p.input[start:p.pos]
			p.pos++
			if err := p.expectEOL(); err != nil {
				return "", err
			}
			return raw, nil
		}
		if c == '\n' {
			p.line++
		}
		p.pos++
	}
	return "", lineError(openLine, ErrUnterminatedQuote)
}

// expectEOL verifies that nothing but whitespace or a comment follows on the
// current line, and consumes through the newline.
func (p *parser) expectEOL() error {
	p.skipBlank()
	if p.pos < len(p.input) {
		switch p.input[p.pos] {
		case '\n':
			p.advanceLine()
		case '#':
			p.skipToEOL()
		default:
			return lineError(p.line, ErrMalformedLine)
		}
	}
	return nil
}

// expand substitutes $KEY and ${KEY} references with the value of KEY resolved
// against earlier assignments, then the environment, then the empty string.
// A '$' that does not introduce a valid reference stays literal.
func (p *parser) expand(raw string) string {
	var out []byte
	for i := 0; i < len(raw); {
		c := raw[i]
		if c != '$' {
			out = append(out, c)
			i++
			continue
		}
		key, next := scanReference(raw, i+1)
		if key == "" {
			out = append(out, '$')
			i++
			continue
		}
		out = append(out, p.resolve(key)...)
		i = next
	}
	return string(out)
}

// scanReference reads an interpolation reference starting after the '$' at
// raw[i:]. It returns the referenced key and the index of the first byte past
// the reference, or "" when no valid reference starts there.
func scanReference(raw string, i int) (string, int) {
	if i < len(raw) && raw[i] == '{' {
		end := i + 1
		for end < len(raw) && isIdentByte(raw[end]) {
			end++
		}
		if end == i+1 || end >= len(raw) || raw[end] != '}' || isDigitByte(raw[i+1]) {
			return "", i
		}
		return raw[i+1 : end], end + 1
	}
	end := i
	for end < len(raw) && isIdentByte(raw[end]) {
		end++
	}
	if end == i || isDigitByte(raw[i]) {
		return "", i
	}
	return raw[i:end], end
}

func (p *parser) resolve(key string) string {
	if value, ok := p.set.Get(key); ok {
		return value
	}
	if value, ok := p.lookupEnv(key); ok {
		return value
	}
	return ""
}

func (p *parser) skipBlank() {
	for p.pos < len(p.input) && isBlankByte(p.input[p.pos]) {
		p.pos++
	}
}

func (p *parser) skipToEOL() {
	for p.pos < len(p.input) && p.input[p.pos] != '\n' {
		p.pos++
	}
	if p.pos < len(p.input) {
		p.advanceLine()
	}
}

func (p *parser) advanceLine() {
	p.pos++
	p.line++
}

func isIdentByte(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

func isDigitByte(c byte) bool {
	return c >= '0' && c <= '9'
}

func isBlankByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func trimBlank(s string) string {
	start := 0
	for start < len(s) && isBlankByte(s[start]) {
		start++
	}
	end := len(s)
	for end > start && isBlankByte(s[end-1]) {
		end--
	}
	return s[start:end]
}
