// Package jsonc removes // and /* */ comments from JSON-like text.
//
// Stripping is a single left-to-right scan. Double-quoted string literals are
// copied through verbatim, so comment markers inside them are never removed,
// and a backslash inside a string escapes whatever character follows it.
// Comments are removed without leaving a placeholder; the line terminator that
// ends a line comment is kept, so removing line comments never changes the
// number of lines.
//
// An opener with no terminator is not a token: a block comment is only
// recognised when a closing */ follows it and a string literal only when a
// closing quote follows it. Otherwise the opening character is copied as
// ordinary text and scanning continues with the next character.
//
// The input does not have to be JSON and stripping never fails.
package jsonc

import "strings"

type mode int

const (
	modeNormal mode = iota
	modeString
	modeLineComment
	modeBlockComment
)

type scanner struct {
	src  string
	pos  int
	mode mode
	out  []byte

	// discard suppresses output; the scan stops at the first comment.
	discard bool
	removed bool

	// Once an opener is known to be unterminated every later opener of the
	// same kind is unterminated too, which keeps the scan linear.
	unclosedString bool
	unclosedBlock  bool
}

// StripComments returns text with every comment removed.
func StripComments(text string) string {
	s := scanner{src: text, out: make([]byte, 0, len(text))}
	s.run()
	if !s.removed {
		return text
	}
	return string(s.out)
}

// Strip is StripComments for byte slices. The result never aliases data.
func Strip(data []byte) []byte {
	s := scanner{src: string(data), out: make([]byte, 0, len(data))}
	s.run()
	return s.out
}

// HasComments reports whether StripComments would change text.
func HasComments(text string) bool {
	s := scanner{src: text, discard: true}
	s.run()
	return s.removed
}

func (s *scanner) run() {
	for s.pos < len(s.src) {
		if s.discard && s.removed {
			return
		}
		switch s.mode {
		case modeNormal:
			s.scanNormal()
		case modeString:
			s.scanString()
		case modeLineComment:
			s.scanLineComment()
		case modeBlockComment:
			s.scanBlockComment()
		}
	}
}

func (s *scanner) scanNormal() {
	switch c := s.src[s.pos]; {
	case c == '"' && s.stringTerminated():
		s.emit(1)
		s.mode = modeString
	case c == '/' && s.peek() == '/':
		s.skip(2)
		s.mode = modeLineComment
	case c == '/' && s.peek() == '*' && s.blockTerminated():
		s.skip(2)
		s.mode = modeBlockComment
	default:
		s.emit(1)
	}
}

func (s *scanner) scanString() {
	switch s.src[s.pos] {
	case '\\':
		s.emit(min(2, len(s.src)-s.pos))
	case '"':
		s.emit(1)
		s.mode = modeNormal
	default:
		s.emit(1)
	}
}

func (s *scanner) scanLineComment() {
	if isLineTerminator(s.src[s.pos:]) {
		// The terminator itself is copied by the normal scan.
		s.mode = modeNormal
		return
	}
	s.skip(1)
}

func (s *scanner) scanBlockComment() {
	if strings.HasPrefix(s.src[s.pos:], "*/") {
		s.skip(2)
		s.mode = modeNormal
		return
	}
	s.skip(1)
}

// stringTerminated reports whether the quote at s.pos has a closing quote.
func (s *scanner) stringTerminated() bool {
	if s.unclosedString {
		return false
	}
	for i := s.pos + 1; i < len(s.src); i++ {
		switch s.src[i] {
		case '\\':
			i++
		case '"':
			return true
		}
	}
	s.unclosedString = true
	return false
}

// blockTerminated reports whether the /* at s.pos has a closing */. The
// opener's own asterisk cannot close it.
func (s *scanner) blockTerminated() bool {
	if s.unclosedBlock {
		return false
	}
	if strings.Contains(s.src[s.pos+2:], "*/") {
		return true
	}
	s.unclosedBlock = true
	return false
}

func (s *scanner) peek() byte {
	if s.pos+1 < len(s.src) {
		return s.src[s.pos+1]
	}
	return 0
}

func (s *scanner) emit(n int) {
	if !s.discard {
		s.out = append(s.out, s.src[s.pos:s.pos+n]...)
	}
	s.pos += n
}

func (s *scanner) skip(n int) {
	s.removed = true
	s.pos += n
}

// isLineTerminator matches the characters that end a line comment: LF, CR,
// LINE SEPARATOR and PARAGRAPH SEPARATOR.
func isLineTerminator(rest string) bool {
	switch rest[0] {
	case '\n', '\r':
		return true
	}
	return strings.HasPrefix(rest, "\u2028") || strings.HasPrefix(rest, "\u2029")
}
