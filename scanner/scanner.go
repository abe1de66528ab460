// Package scanner tokenizes PDF syntax. The parser layers object assembly on
// top; the scanner itself only understands lexical structure.
package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

type TokenType int

const (
	TokenDictOpen  TokenType = iota // '<<'
	TokenDictClose                  // '>>'
	TokenArrayOpen                  // '['
	TokenArrayClose                 // ']'
	TokenName                       // '/Name'
	TokenString                     // literal or hex string
	TokenNumber                     // integer or real
	TokenKeyword                    // obj, endobj, stream, R, true, false, null, ...
)

type Token struct {
	Type TokenType
	// Text holds names, keywords and the textual form of numbers.
	Text string
	// Bytes holds decoded string payloads.
	Bytes []byte
	// Hex marks strings written in <...> notation.
	Hex bool
	Pos int64
}

// IsKeyword reports whether the token is the given keyword.
func (t Token) IsKeyword(kw string) bool { return t.Type == TokenKeyword && t.Text == kw }

// Int parses a number token as an integer.
func (t Token) Int() (int64, bool) {
	v, err := strconv.ParseInt(t.Text, 10, 64)
	return v, err == nil
}

// Float parses a number token as a real.
func (t Token) Float() (float64, bool) {
	v, err := strconv.ParseFloat(t.Text, 64)
	return v, err == nil
}

// Config bounds lexical structures so corrupted input cannot force huge
// allocations.
type Config struct {
	MaxStringLength int64
	MaxStreamLength int64
}

const (
	defaultMaxString = 16 << 20
	defaultMaxStream = 512 << 20
)

// Scanner reads tokens from an in-memory PDF byte slice.
type Scanner struct {
	data []byte
	pos  int64
	cfg  Config
}

func New(data []byte, cfg Config) *Scanner {
	if cfg.MaxStringLength <= 0 {
		cfg.MaxStringLength = defaultMaxString
	}
	if cfg.MaxStreamLength <= 0 {
		cfg.MaxStreamLength = defaultMaxStream
	}
	return &Scanner{data: data, cfg: cfg}
}

func (s *Scanner) Position() int64 { return s.pos }

func (s *Scanner) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return errors.New("scanner: seek out of range")
	}
	s.pos = offset
	return nil
}

func isWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *Scanner) skipWSAndComments() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		return
	}
}

// Next returns the next token, or io.EOF when the input is exhausted.
func (s *Scanner) Next() (Token, error) {
	s.skipWSAndComments()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDictOpen, Text: "<<", Pos: start}, nil
		}
		return s.scanHexString(start)
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenDictClose, Text: ">>", Pos: start}, nil
		}
		s.pos++
		return Token{}, fmt.Errorf("scanner: stray '>' at %d", start)
	case '[':
		s.pos++
		return Token{Type: TokenArrayOpen, Text: "[", Pos: start}, nil
	case ']':
		s.pos++
		return Token{Type: TokenArrayClose, Text: "]", Pos: start}, nil
	case '(':
		return s.scanLiteralString(start)
	case '/':
		return s.scanName(start)
	case '{', '}', ')':
		s.pos++
		return Token{Type: TokenKeyword, Text: string(c), Pos: start}, nil
	}
	if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
		return s.scanNumber(start)
	}
	return s.scanKeyword(start)
}

func (s *Scanner) peek(ahead int64) byte {
	if s.pos+ahead >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+ahead]
}

func (s *Scanner) scanNumber(start int64) (Token, error) {
	s.pos++
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '+' || c == '-' {
			s.pos++
			continue
		}
		break
	}
	return Token{Type: TokenNumber, Text: string(s.data[start:s.pos]), Pos: start}, nil
}

func (s *Scanner) scanName(start int64) (Token, error) {
	s.pos++ // '/'
	var out []byte
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) {
			if hi, ok1 := hexVal(s.data[s.pos+1]); ok1 {
				if lo, ok2 := hexVal(s.data[s.pos+2]); ok2 {
					out = append(out, hi<<4|lo)
					s.pos += 3
					continue
				}
			}
		}
		out = append(out, c)
		s.pos++
	}
	return Token{Type: TokenName, Text: string(out), Pos: start}, nil
}

func (s *Scanner) scanKeyword(start int64) (Token, error) {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		s.pos++
	}
	if s.pos == start {
		s.pos++
		return Token{}, fmt.Errorf("scanner: unexpected byte %q at %d", s.data[start], start)
	}
	return Token{Type: TokenKeyword, Text: string(s.data[start:s.pos]), Pos: start}, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func (s *Scanner) scanHexString(start int64) (Token, error) {
	s.pos++ // '<'
	var out []byte
	var hi byte
	haveHi := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if haveHi {
				out = append(out, hi<<4)
			}
			return Token{Type: TokenString, Bytes: out, Hex: true, Pos: start}, nil
		}
		v, ok := hexVal(c)
		if !ok {
			continue
		}
		if haveHi {
			out = append(out, hi<<4|v)
			haveHi = false
		} else {
			hi = v
			haveHi = true
		}
		if int64(len(out)) > s.cfg.MaxStringLength {
			return Token{}, errors.New("scanner: hex string exceeds limit")
		}
	}
	return Token{}, errors.New("scanner: unterminated hex string")
}

func (s *Scanner) scanLiteralString(start int64) (Token, error) {
	s.pos++ // '('
	var out []byte
	depth := 1
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= int64(len(s.data)) {
				return Token{}, errors.New("scanner: unterminated string escape")
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
				// line continuation, emit nothing
			default:
				if e >= '0' && e <= '7' {
					v := e - '0'
					for i := 0; i < 2 && s.pos < int64(len(s.data)); i++ {
						d := s.data[s.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v<<3 | (d - '0')
						s.pos++
					}
					out = append(out, v)
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Bytes: out, Pos: start}, nil
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
		if int64(len(out)) > s.cfg.MaxStringLength {
			return Token{}, errors.New("scanner: string exceeds limit")
		}
	}
	return Token{}, errors.New("scanner: unterminated string")
}

var endstreamMarker = []byte("endstream")

// ReadStream consumes a stream payload immediately after the "stream" keyword.
// A declared length is trusted only when the bytes after it are followed by
// an endstream keyword; otherwise the payload runs to the nearest endstream.
func (s *Scanner) ReadStream(declaredLen int64) ([]byte, error) {
	// Skip the EOL that terminates the stream keyword line.
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
		s.pos++
	}
	start := s.pos
	if declaredLen > s.cfg.MaxStreamLength {
		return nil, errors.New("scanner: declared stream length exceeds limit")
	}
	if declaredLen >= 0 && start+declaredLen <= int64(len(s.data)) {
		end := start + declaredLen
		tail := s.data[end:]
		i := 0
		for i < len(tail) && isWhitespace(tail[i]) {
			i++
		}
		if bytes.HasPrefix(tail[i:], endstreamMarker) {
			s.pos = end
			return s.data[start:end], nil
		}
	}
	// Length missing, indirect or wrong: scan for the terminator.
	idx := bytes.Index(s.data[start:], endstreamMarker)
	if idx < 0 {
		return nil, errors.New("scanner: unterminated stream")
	}
	end := start + int64(idx)
	// Trim the EOL that precedes endstream.
	if end > start && s.data[end-1] == '\n' {
		end--
	}
	if end > start && s.data[end-1] == '\r' {
		end--
	}
	if end-start > s.cfg.MaxStreamLength {
		return nil, errors.New("scanner: stream exceeds limit")
	}
	s.pos = end
	return s.data[start:end], nil
}
