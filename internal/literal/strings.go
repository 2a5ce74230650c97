// Package literal decodes KDL value literals: quoted, raw, and
// multiline strings with their escape and dedent rules, and numbers in
// every supported radix.
package literal

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/sblinch/kdl-go/v2/internal/chars"
)

var (
	// ErrInvalidString is returned for a malformed string literal
	ErrInvalidString = errors.New("invalid string")
	// ErrInvalidEscape is returned for an unknown or malformed escape sequence
	ErrInvalidEscape = errors.New("invalid escape")
)

// DecodeQuoted decodes a single-line quoted string literal, including
// its surrounding quotes, and returns the unescaped content.
func DecodeQuoted(b []byte) ([]byte, error) {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return nil, ErrInvalidString
	}
	body := b[1 : len(b)-1]
	if i := indexNewline(body); i >= 0 {
		return nil, fmt.Errorf("%w: literal newline in single-line string", ErrInvalidString)
	}
	return unescape(nil, body)
}

// DecodeRaw decodes a single-line raw string literal, including its
// leading hashes, quotes, and trailing hashes, and returns the content
// verbatim.
func DecodeRaw(b []byte) ([]byte, error) {
	body, err := rawBody(b)
	if err != nil {
		return nil, err
	}
	if i := indexNewline(body); i >= 0 {
		return nil, fmt.Errorf("%w: literal newline in single-line raw string", ErrInvalidString)
	}
	return body, nil
}

// DecodeRawMultiline decodes a multiline raw string literal
// (#..."""..."""...#) and returns the dedented content.
func DecodeRawMultiline(b []byte) ([]byte, error) {
	body, err := rawMultilineBody(b)
	if err != nil {
		return nil, err
	}
	return dedentRaw(body)
}

// DecodeQuotedMultiline decodes a multiline escaped string literal
// ("""...""") and returns the dedented, escape-processed content.
func DecodeQuotedMultiline(b []byte) ([]byte, error) {
	if len(b) < 6 || !bytes.HasPrefix(b, []byte(`"""`)) || !bytes.HasSuffix(b, []byte(`"""`)) {
		return nil, ErrInvalidString
	}
	return dedentEscaped(b[3 : len(b)-3])
}

// rawBody strips the #..." framing from a single-line raw string and
// returns its content
func rawBody(b []byte) ([]byte, error) {
	h := 0
	for h < len(b) && b[h] == '#' {
		h++
	}
	if h >= len(b) || b[h] != '"' {
		return nil, ErrInvalidString
	}
	body := b[h+1:]
	// closing quote plus exactly h hashes
	if len(body) < 1+h {
		return nil, ErrInvalidString
	}
	for i := len(body) - h; i < len(body); i++ {
		if body[i] != '#' {
			return nil, ErrInvalidString
		}
	}
	if body[len(body)-h-1] != '"' {
		return nil, ErrInvalidString
	}
	return body[:len(body)-h-1], nil
}

// rawMultilineBody strips the #...""" framing from a multiline raw
// string and returns its content
func rawMultilineBody(b []byte) ([]byte, error) {
	h := 0
	for h < len(b) && b[h] == '#' {
		h++
	}
	rest := b[h:]
	if len(rest) < 6+h || !bytes.HasPrefix(rest, []byte(`"""`)) {
		return nil, ErrInvalidString
	}
	for i := len(b) - h; i < len(b); i++ {
		if b[i] != '#' {
			return nil, ErrInvalidString
		}
	}
	inner := rest[3 : len(rest)-h]
	if !bytes.HasSuffix(inner, []byte(`"""`)) {
		return nil, ErrInvalidString
	}
	return inner[:len(inner)-3], nil
}

// splitLines splits body into lines on LF or CRLF
func splitLines(body []byte) [][]byte {
	lines := bytes.Split(body, []byte{'\n'})
	for i, line := range lines {
		if len(line) > 0 && line[len(line)-1] == '\r' {
			lines[i] = line[:len(line)-1]
		}
	}
	return lines
}

// isWhitespaceOnly returns true if every codepoint in line is KDL
// whitespace
func isWhitespaceOnly(line []byte) bool {
	for len(line) > 0 {
		c, n := chars.Decode(line)
		if n == 0 || !chars.IsWhitespace(c) {
			return false
		}
		line = line[n:]
	}
	return true
}

// stripLeadingWhitespace removes the leading KDL whitespace run from line
func stripLeadingWhitespace(line []byte) []byte {
	for len(line) > 0 {
		c, n := chars.Decode(line)
		if n == 0 || !chars.IsWhitespace(c) {
			break
		}
		line = line[n:]
	}
	return line
}

// dedentRaw applies the multiline dedent rules to the body of a raw
// string: the final line must be whitespace-only and defines the
// prefix stripped from every content line.
func dedentRaw(body []byte) ([]byte, error) {
	lines := splitLines(body)
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: multiline string requires at least two lines", ErrInvalidString)
	}
	if !isWhitespaceOnly(lines[0]) {
		return nil, fmt.Errorf("%w: content on the opening line of a multiline string", ErrInvalidString)
	}

	prefix := lines[len(lines)-1]
	if !isWhitespaceOnly(prefix) {
		return nil, fmt.Errorf("%w: final line of a multiline string must be whitespace-only", ErrInvalidString)
	}
	content := lines[1 : len(lines)-1]

	var out []byte
	for i, line := range content {
		if i > 0 {
			out = append(out, '\n')
		}
		if isWhitespaceOnly(line) {
			continue
		}
		if !bytes.HasPrefix(line, prefix) {
			return nil, fmt.Errorf("%w: line does not begin with the dedent prefix", ErrInvalidString)
		}
		out = append(out, line[len(prefix):]...)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// continuationSplit reports whether line ends in an unescaped backslash
// (ignoring trailing whitespace after it) and returns the text before
// that backslash.
func continuationSplit(line []byte) ([]byte, bool) {
	end := len(line)
	for end > 0 {
		c, n := lastRune(line[:end])
		if n == 0 || !chars.IsWhitespace(c) {
			break
		}
		end -= n
	}
	if end == 0 || line[end-1] != '\\' {
		return nil, false
	}
	// an even run of backslashes means the last one is escaped
	run := 0
	for i := end - 1; i >= 0 && line[i] == '\\'; i-- {
		run++
	}
	if run%2 == 0 {
		return nil, false
	}
	return line[:end-1], true
}

// lastRune decodes the final codepoint of b
func lastRune(b []byte) (rune, int) {
	for n := 1; n <= 4 && n <= len(b); n++ {
		if c, size := chars.Decode(b[len(b)-n:]); size == n {
			return c, n
		}
	}
	return 0, 0
}

// dedentEscaped applies the multiline dedent rules to the body of an
// escaped string. The analysis runs on the raw (pre-escape) lines so
// that escaped whitespace cannot masquerade as indentation; line
// continuations join their following line without an intervening
// newline.
func dedentEscaped(body []byte) ([]byte, error) {
	lines := splitLines(body)
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: multiline string requires at least two lines", ErrInvalidString)
	}
	if !isWhitespaceOnly(lines[0]) {
		return nil, fmt.Errorf("%w: content on the opening line of a multiline string", ErrInvalidString)
	}

	content := lines[1 : len(lines)-1]
	final := lines[len(lines)-1]

	wsOnly := make([]bool, len(content))
	contPre := make([][]byte, len(content))
	cont := make([]bool, len(content))
	for i, line := range content {
		wsOnly[i] = isWhitespaceOnly(line)
		contPre[i], cont[i] = continuationSplit(line)
	}

	// the effective dedent prefix; a continuation on the last content
	// line joins the final line into it
	finalProcessed, err := unescape(nil, final)
	if err != nil {
		return nil, err
	}
	var prefix []byte
	if n := len(content); n > 0 && cont[n-1] {
		prefix = append(append([]byte{}, contPre[n-1]...), finalProcessed...)
	} else {
		prefix = finalProcessed
	}
	if !isWhitespaceOnly(prefix) {
		return nil, fmt.Errorf("%w: final line of a multiline string must be whitespace-only", ErrInvalidString)
	}

	// validate on raw lines, skipping lines consumed by a continuation
	for i, line := range content {
		if i > 0 && cont[i-1] {
			continue
		}
		if wsOnly[i] {
			continue
		}
		if !bytes.HasPrefix(line, prefix) {
			return nil, fmt.Errorf("%w: line does not begin with the dedent prefix", ErrInvalidString)
		}
	}

	var out []byte
	first := true
	emit := func(seg []byte) {
		if !first {
			out = append(out, '\n')
		}
		first = false
		out = append(out, seg...)
	}

	for i := 0; i < len(content); i++ {
		if wsOnly[i] {
			emit(nil)
			continue
		}

		line := content[i]
		if cont[i] {
			line = contPre[i]
		}
		seg, err := unescape(nil, bytes.TrimPrefix(line, prefix))
		if err != nil {
			return nil, err
		}

		// a continuation joins each following line, its leading
		// whitespace stripped, with no newline in between
		for cont[i] && i+1 < len(content) {
			i++
			follow := stripLeadingWhitespace(content[i])
			if cont[i] {
				follow, _ = continuationSplit(follow)
			}
			part, err := unescape(nil, follow)
			if err != nil {
				return nil, err
			}
			seg = append(seg, part...)
		}
		emit(seg)
	}

	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// indexNewline returns the byte index of the first KDL newline in b, or -1
func indexNewline(b []byte) int {
	for i := 0; i < len(b); {
		c, n := chars.Decode(b[i:])
		if n == 0 {
			i++
			continue
		}
		if chars.IsNewline(c) {
			return i
		}
		i += n
	}
	return -1
}

// unescape appends the escape-processed content of src to dst. The
// escape alphabet is \n \r \t \\ \" \b \f \s, \u{1-6 hex digits} with
// surrogates rejected, and the whitespace escape: a backslash followed
// by a whitespace or newline run consumes the entire run.
func unescape(dst, src []byte) ([]byte, error) {
	for i := 0; i < len(src); {
		c := src[i]
		if c != '\\' {
			dst = append(dst, c)
			i++
			continue
		}

		i++
		if i >= len(src) {
			return nil, fmt.Errorf("%w: trailing backslash", ErrInvalidEscape)
		}

		switch src[i] {
		case 'n':
			dst = append(dst, '\n')
			i++
		case 'r':
			dst = append(dst, '\r')
			i++
		case 't':
			dst = append(dst, '\t')
			i++
		case '\\':
			dst = append(dst, '\\')
			i++
		case '"':
			dst = append(dst, '"')
			i++
		case 'b':
			dst = append(dst, '\b')
			i++
		case 'f':
			dst = append(dst, '\f')
			i++
		case 's':
			dst = append(dst, ' ')
			i++
		case 'u':
			r, n, err := decodeUnicodeEscape(src[i:])
			if err != nil {
				return nil, err
			}
			dst = appendRune(dst, r)
			i += n
		default:
			// whitespace escape: consume the whitespace/newline run
			r, n := chars.Decode(src[i:])
			if n == 0 || !chars.IsLineSpace(r) {
				return nil, fmt.Errorf("%w: \\%c", ErrInvalidEscape, src[i])
			}
			for n > 0 && chars.IsLineSpace(r) {
				i += n
				r, n = chars.Decode(src[i:])
			}
		}
	}
	return dst, nil
}

// decodeUnicodeEscape decodes the {H...H} remainder of a \u escape from
// b (which begins at the 'u') and returns the codepoint and the number
// of bytes consumed including the 'u'.
func decodeUnicodeEscape(b []byte) (rune, int, error) {
	if len(b) < 4 || b[1] != '{' {
		return 0, 0, fmt.Errorf("%w: \\u requires {hex digits}", ErrInvalidEscape)
	}
	r := rune(0)
	i := 2
	for ; i < len(b) && b[i] != '}'; i++ {
		c := rune(b[i])
		if !chars.IsHexDigit(c) {
			return 0, 0, fmt.Errorf("%w: bad hex digit %c in \\u", ErrInvalidEscape, c)
		}
		if i-2 >= 6 {
			return 0, 0, fmt.Errorf("%w: \\u accepts at most six hex digits", ErrInvalidEscape)
		}
		r = r * 16
		switch {
		case c >= '0' && c <= '9':
			r += c - '0'
		case c >= 'a' && c <= 'f':
			r += c - 'a' + 10
		default:
			r += c - 'A' + 10
		}
	}
	if i >= len(b) || i == 2 {
		return 0, 0, fmt.Errorf("%w: unterminated \\u escape", ErrInvalidEscape)
	}
	if r >= 0xD800 && r <= 0xDFFF {
		return 0, 0, fmt.Errorf("%w: \\u{%x} is a surrogate codepoint", ErrInvalidEscape, r)
	}
	if r > 0x10FFFF {
		return 0, 0, fmt.Errorf("%w: \\u{%x} exceeds U+10FFFF", ErrInvalidEscape, r)
	}
	return r, i + 1, nil
}

// appendRune appends the UTF-8 encoding of r to b
func appendRune(b []byte, r rune) []byte {
	switch {
	case r < 0x80:
		return append(b, byte(r))
	case r < 0x800:
		return append(b, 0xC0|byte(r>>6), 0x80|byte(r)&0x3F)
	case r < 0x10000:
		return append(b, 0xE0|byte(r>>12), 0x80|byte(r>>6)&0x3F, 0x80|byte(r)&0x3F)
	default:
		return append(b, 0xF0|byte(r>>18), 0x80|byte(r>>12)&0x3F, 0x80|byte(r>>6)&0x3F, 0x80|byte(r)&0x3F)
	}
}
