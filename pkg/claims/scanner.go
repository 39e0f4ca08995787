package claims

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrMalformedJSON is returned for structurally broken input: unbalanced
// brackets, unterminated strings, truncated escapes, trailing data or an
// allow-listed claim carrying a value of the wrong type
var ErrMalformedJSON = errors.New("malformed json")

// GetToken scans a single top-level JSON object and returns the allow-listed
// claims it contains. Keys may appear in any order; when a key repeats, the
// last occurrence wins. A null value resets the claim to its zero value.
//
// String values are copied verbatim apart from the \" and \\ escapes. Object
// keys containing escapes are rejected so that no key can alias a claim name
// under a different spelling.
func GetToken(data []byte) (*Token, error) {
	s := &scanner{data: data}
	tok := &Token{}

	s.skipSpace()
	if !s.consume('{') {
		return nil, s.errorf("expected '{'")
	}
	s.skipSpace()
	if s.consume('}') {
		return tok, s.end()
	}

	for {
		s.skipSpace()
		key, escaped, err := s.readString()
		if err != nil {
			return nil, err
		}
		if escaped {
			return nil, s.errorf("escaped object key")
		}
		s.skipSpace()
		if !s.consume(':') {
			return nil, s.errorf("expected ':' after key %q", key)
		}
		s.skipSpace()

		if f, ok := fields[string(key)]; ok {
			err = s.readClaim(tok, f, string(key))
		} else {
			err = s.skipValue()
		}
		if err != nil {
			return nil, err
		}

		s.skipSpace()
		if s.consume(',') {
			continue
		}
		if s.consume('}') {
			return tok, s.end()
		}
		return nil, s.errorf("expected ',' or '}'")
	}
}

type scanner struct {
	data []byte
	pos  int
}

func (s *scanner) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", ErrMalformedJSON, fmt.Sprintf(format, args...), s.pos)
}

func (s *scanner) peek() (byte, bool) {
	if s.pos >= len(s.data) {
		return 0, false
	}
	return s.data[s.pos], true
}

func (s *scanner) consume(c byte) bool {
	if s.pos < len(s.data) && s.data[s.pos] == c {
		s.pos++
		return true
	}
	return false
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.data) {
		switch s.data[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) end() error {
	s.skipSpace()
	if s.pos != len(s.data) {
		return s.errorf("trailing data after object")
	}
	return nil
}

// readString consumes a quoted string and returns its raw contents without
// the quotes, and whether any escape sequence occurred
func (s *scanner) readString() ([]byte, bool, error) {
	if !s.consume('"') {
		return nil, false, s.errorf("expected string")
	}
	start := s.pos
	escaped := false
	for s.pos < len(s.data) {
		switch s.data[s.pos] {
		case '"':
			raw := s.data[start:s.pos]
			s.pos++
			return raw, escaped, nil
		case '\\':
			if s.pos+1 >= len(s.data) {
				s.pos = len(s.data)
				return nil, false, s.errorf("truncated escape")
			}
			escaped = true
			s.pos += 2
		default:
			s.pos++
		}
	}
	return nil, false, s.errorf("unterminated string")
}

// unquote resolves only the \" and \\ escapes; everything else is kept as is
func unquote(raw []byte, escaped bool) string {
	if !escaped {
		return string(raw)
	}
	var b bytes.Buffer
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) && (raw[i+1] == '"' || raw[i+1] == '\\') {
			i++
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

func (s *scanner) readNull() bool {
	if bytes.HasPrefix(s.data[s.pos:], []byte("null")) {
		s.pos += 4
		return true
	}
	return false
}

func (s *scanner) readClaim(tok *Token, f field, key string) error {
	if s.readNull() {
		switch f.kind {
		case kindString, kindAudience:
			*f.str(tok) = ""
		case kindInt:
			*f.num(tok) = 0
		case kindBool:
			*f.flag(tok) = false
		}
		return nil
	}

	c, ok := s.peek()
	if !ok {
		return s.errorf("missing value for %q", key)
	}

	switch f.kind {
	case kindString:
		if c != '"' {
			return s.errorf("claim %q must be a string", key)
		}
		raw, escaped, err := s.readString()
		if err != nil {
			return err
		}
		*f.str(tok) = unquote(raw, escaped)

	case kindAudience:
		v, err := s.readAudience(key)
		if err != nil {
			return err
		}
		*f.str(tok) = v

	case kindInt:
		n, err := s.readInt(key)
		if err != nil {
			return err
		}
		*f.num(tok) = n

	case kindBool:
		v, err := s.readBool(key)
		if err != nil {
			return err
		}
		*f.flag(tok) = v
	}
	return nil
}

// readAudience accepts a string or an array of strings, keeping the first
// element of an array
func (s *scanner) readAudience(key string) (string, error) {
	if !s.consume('[') {
		if c, _ := s.peek(); c != '"' {
			return "", s.errorf("claim %q must be a string or array of strings", key)
		}
		raw, escaped, err := s.readString()
		if err != nil {
			return "", err
		}
		return unquote(raw, escaped), nil
	}

	first := ""
	s.skipSpace()
	if s.consume(']') {
		return first, nil
	}
	for i := 0; ; i++ {
		s.skipSpace()
		raw, escaped, err := s.readString()
		if err != nil {
			return "", err
		}
		if i == 0 {
			first = unquote(raw, escaped)
		}
		s.skipSpace()
		if s.consume(',') {
			continue
		}
		if s.consume(']') {
			return first, nil
		}
		return "", s.errorf("expected ',' or ']' in %q", key)
	}
}

func (s *scanner) readBool(key string) (bool, error) {
	switch {
	case bytes.HasPrefix(s.data[s.pos:], []byte("true")):
		s.pos += 4
		return true, nil
	case bytes.HasPrefix(s.data[s.pos:], []byte("false")):
		s.pos += 5
		return false, nil
	}
	// some issuers send email_verified as a string
	if c, _ := s.peek(); c == '"' {
		raw, _, err := s.readString()
		if err != nil {
			return false, err
		}
		switch string(raw) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, s.errorf("claim %q must be a boolean", key)
}

func (s *scanner) numberLiteral() []byte {
	start := s.pos
	for s.pos < len(s.data) {
		switch c := s.data[s.pos]; {
		case c >= '0' && c <= '9', c == '-', c == '+', c == '.', c == 'e', c == 'E':
			s.pos++
		default:
			return s.data[start:s.pos]
		}
	}
	return s.data[start:s.pos]
}

func (s *scanner) readInt(key string) (int64, error) {
	c, _ := s.peek()
	if c != '-' && (c < '0' || c > '9') {
		return 0, s.errorf("claim %q must be a number", key)
	}
	lit := string(s.numberLiteral())
	if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, s.errorf("claim %q has invalid number %q", key, lit)
	}
	return int64(f), nil
}

// skipValue steps over a value of any type. Nested containers are tracked
// with an explicit stack of closing brackets rather than recursion.
func (s *scanner) skipValue() error {
	c, ok := s.peek()
	if !ok {
		return s.errorf("missing value")
	}

	switch {
	case c == '"':
		_, _, err := s.readString()
		return err
	case c == '{' || c == '[':
		return s.skipContainer()
	case c == '-' || (c >= '0' && c <= '9'):
		s.numberLiteral()
		return nil
	}

	for _, lit := range []string{"true", "false", "null"} {
		if bytes.HasPrefix(s.data[s.pos:], []byte(lit)) {
			s.pos += len(lit)
			return nil
		}
	}
	return s.errorf("unexpected character %q", c)
}

func (s *scanner) skipContainer() error {
	var closers []byte
	for s.pos < len(s.data) {
		switch c := s.data[s.pos]; c {
		case '"':
			if _, _, err := s.readString(); err != nil {
				return err
			}
			continue
		case '{':
			closers = append(closers, '}')
		case '[':
			closers = append(closers, ']')
		case '}', ']':
			if len(closers) == 0 || closers[len(closers)-1] != c {
				return s.errorf("unbalanced %q", c)
			}
			closers = closers[:len(closers)-1]
			if len(closers) == 0 {
				s.pos++
				return nil
			}
		}
		s.pos++
	}
	return s.errorf("unterminated container")
}
