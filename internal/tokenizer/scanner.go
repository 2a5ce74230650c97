package tokenizer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sblinch/kdl-go/v2/internal/chars"
)

var (
	ErrInvalidRune = errors.New("invalid UTF8 input")
	// ErrTooLarge is returned when a streamed document exceeds the
	// configured document size limit
	ErrTooLarge = errors.New("document exceeds size limit")
)

var (
	DefaultBufferSize      = 64 * 1024
	DefaultMaxDocumentSize = 256 * 1024 * 1024
)

const utfMax = 4

// Scanner implements a scanner for tokenizing a KDL input stream.
//
// The stream is viewed through a sliding window addressed in absolute
// stream offsets: buf holds the bytes [base, base+len(buf)) and pos is
// the read cursor. The window is the source of the owned-vs-borrowed
// distinction that document.StringRef encodes: while the window is
// stable (the whole stream fits in one buffer at offset zero), token
// text is handed out as subslices that a document may reference as
// borrowed strings for its whole lifetime; once the window slides to
// admit more input, token text must be copied into owned storage, and
// take does so.
type Scanner struct {
	Logger func(string, ...interface{})

	buf  []byte
	base int
	pos  int

	// captures holds the absolute start offsets of in-progress token
	// captures; fill never slides the window past the oldest one, so a
	// capture yields one contiguous byte run even when its token spans
	// several refills
	captures []int

	r         io.Reader
	totalRead int
	maxSize   int

	line   int
	column int
	lastCR bool

	token Token
	err   error

	bomChecked bool
	firstToken bool
}

// log records a log message if a logger has been configured
func (s *Scanner) log(msg string, v ...interface{}) {
	if s.Logger != nil {
		s.Logger(msg, v...)
	}
}

// end returns the absolute offset one past the last buffered byte
func (s *Scanner) end() int {
	return s.base + len(s.buf)
}

// buffered returns the number of bytes between the cursor and the end
// of the window
func (s *Scanner) buffered() int {
	return s.end() - s.pos
}

// window returns the unread portion of the buffer
func (s *Scanner) window() []byte {
	return s.buf[s.pos-s.base:]
}

// stable reports whether the window covers the entire stream at offset
// zero. Subslices of a stable window are safe for a document to borrow
// (as borrowed StringRefs) for its whole lifetime; an unstable window
// slides, so its bytes must be copied instead.
func (s *Scanner) stable() bool {
	return s.r == nil && s.base == 0
}

// fill slides the window forward and reads more bytes from the reader.
// The slide keeps everything from the oldest open capture onward so
// that multi-refill tokens stay contiguous; when a captured token
// crowds the buffer, the buffer doubles instead of dropping the
// capture. The document size limit is enforced here, where bytes enter
// the window.
func (s *Scanner) fill() {
	if s.r == nil {
		return
	}

	keep := s.pos
	if len(s.captures) > 0 && s.captures[0] < keep {
		keep = s.captures[0]
	}
	if shift := keep - s.base; shift > 0 {
		n := copy(s.buf, s.buf[shift:])
		s.buf = s.buf[:n]
		s.base = keep
	}

	if len(s.buf) > cap(s.buf)*3/4 {
		grown := make([]byte, len(s.buf), cap(s.buf)*2)
		copy(grown, s.buf)
		s.buf = grown
	}

	free := s.buf[len(s.buf):cap(s.buf)]
	nr, err := io.ReadFull(s.r, free)
	if err != nil {
		if err != io.ErrUnexpectedEOF && err != io.EOF {
			s.err = err
			s.r = nil
			return
		}
		// the stream is drained; don't retain the reader
		s.r = nil
	}

	s.totalRead += nr
	if s.maxSize > 0 && s.totalRead > s.maxSize {
		s.err = ErrTooLarge
		return
	}
	s.buf = s.buf[:len(s.buf)+nr]
}

// peekRune decodes the codepoint at the cursor without consuming it,
// filling the window first when it runs low; returns a non-nil error
// on end of input or malformed UTF-8
func (s *Scanner) peekRune() (rune, int, error) {
	if s.buffered() <= utfMax*2 {
		s.fill()
		if s.err != nil && s.err != io.EOF {
			return 0, 0, s.err
		}
	}

	w := s.window()
	c, size := chars.Decode(w)
	if size == 0 {
		if len(w) == 0 {
			return 0, 0, io.EOF
		}
		return 0, 0, ErrInvalidRune
	}
	return c, size, nil
}

// peek returns the codepoint at the cursor without consuming it
func (s *Scanner) peek() (rune, error) {
	c, _, err := s.peekRune()
	return c, err
}

// peekTwo returns the next two codepoints without consuming them
func (s *Scanner) peekTwo() (rune, rune, error) {
	c1, size, err := s.peekRune()
	if err != nil {
		return 0, 0, err
	}

	w := s.window()[size:]
	c2, size2 := chars.Decode(w)
	if size2 == 0 {
		if len(w) == 0 {
			return 0, 0, io.EOF
		}
		return 0, 0, ErrInvalidRune
	}
	return c1, c2, nil
}

// advance moves the cursor past a decoded codepoint, maintaining the
// line and column counters; a CRLF pair counts as a single newline
func (s *Scanner) advance(c rune, size int) {
	if chars.IsNewline(c) {
		if !(c == '\n' && s.lastCR) {
			s.line++
			s.column = 0
		}
	} else {
		s.column++
	}
	s.lastCR = c == '\r'
	s.pos += size
}

// get consumes and returns the next codepoint from the window; returns
// a non-nil error on failure
func (s *Scanner) get() (rune, error) {
	c, size, err := s.peekRune()
	if err != nil {
		return 0, err
	}
	s.advance(c, size)
	return c, nil
}

// skip consumes the next codepoint
func (s *Scanner) skip() {
	_, _ = s.get()
}

// take returns the next n bytes of the window without consuming them.
// Over a stable window the result is a subslice the document may keep
// as a borrowed string; otherwise the bytes are copied, because the
// next fill may slide them away.
func (s *Scanner) take(n int) []byte {
	w := s.window()[:n]
	if s.stable() {
		return w
	}
	return append(make([]byte, 0, n), w...)
}

// capture opens a token capture at the cursor and returns its absolute
// start offset; fill will keep the captured bytes in the window until
// release
func (s *Scanner) capture() int {
	s.captures = append(s.captures, s.pos)
	return s.pos
}

// captured returns the bytes of the capture that began at start,
// ending at the cursor. The stability rule of take applies: over a
// stable window the slice aliases the source and may be borrowed; over
// a sliding window it is copied, since the next fill may overwrite the
// region once the capture is released.
func (s *Scanner) captured(start int) []byte {
	b := s.buf[start-s.base : s.pos-s.base]
	if s.stable() {
		return b
	}
	return append(make([]byte, 0, len(b)), b...)
}

// release closes the most recently opened capture
func (s *Scanner) release() {
	if len(s.captures) > 0 {
		s.captures = s.captures[:len(s.captures)-1]
	}
}

// captureRun consumes codepoints for as long as valid accepts them and
// returns the captured run; it fails if fewer than min codepoints were
// consumed
func (s *Scanner) captureRun(valid func(c rune) bool, min int) ([]byte, error) {
	start := s.capture()
	defer s.release()

	n := 0
	eof := false
	var stopped rune
	for {
		c, err := s.peek()
		if err == io.EOF {
			eof = true
			break
		}
		if err != nil {
			return nil, err
		}
		if !valid(c) {
			stopped = c
			break
		}
		s.skip()
		n++
	}

	if n < min {
		if eof {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("unexpected character %c", stopped)
	}
	return s.captured(start), nil
}

// captureUntil consumes codepoints until stop accepts one and returns
// the captured run, including the stopping codepoint when includeStop
// is set; on end of input it returns what was captured along with
// io.ErrUnexpectedEOF
func (s *Scanner) captureUntil(stop func(c rune) bool, includeStop bool) ([]byte, error) {
	start := s.capture()
	defer s.release()

	for {
		c, err := s.peek()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return s.captured(start), err
		}
		if stop(c) {
			if includeStop {
				s.skip()
			}
			return s.captured(start), nil
		}
		s.skip()
	}
}

// Pos returns the current line and column number from the input buffer;
// the current implementation is best-effort only and may be approximate
// but is usually fairly accurate
func (s *Scanner) Pos() (int, int) {
	return s.line + 1, s.column + 1
}

// excerpt returns the buffered line containing the absolute offset off,
// a newline, and a caret positioned under the offset
func (s *Scanner) excerpt(off int) string {
	if len(s.buf) == 0 {
		return ""
	}
	i := off - s.base
	if i >= len(s.buf) {
		i = len(s.buf) - 1
	}
	if i < 0 {
		i = 0
	}

	start := i
	for start > 0 && !chars.IsNewline(rune(s.buf[start-1])) {
		start--
	}
	end := i
	for end < len(s.buf) && !chars.IsNewline(rune(s.buf[end])) {
		end++
	}
	caret := i - start

	elided := caret > 64
	if elided {
		start += caret - 64
		caret = 64
	}

	line := make([]byte, 0, end-start+2+caret)
	line = append(line, s.buf[start:end]...)
	for j, c := range line {
		if c == '\t' {
			line[j] = ' '
		}
	}
	if elided && len(line) >= 3 {
		line[0], line[1], line[2] = '.', '.', '.'
	}

	line = append(line, '\n')
	for j := 0; j < caret; j++ {
		line = append(line, ' ')
	}
	line = append(line, '^')

	return string(line)
}

// annotatedError annotates err with the input line/column and a source
// excerpt from the input buffer
func (s *Scanner) annotatedError(err error) error {
	line, column := s.Pos()
	return fmt.Errorf("scan failed: %w at line %d, column %d\n%s", err, line, column, s.excerpt(s.pos))
}

// SimpleLogger provides a simple logger that writes to stderr; this can
// be assigned to Scanner.Logger for debugging
func SimpleLogger(s string, v ...interface{}) {
	b := strings.Builder{}
	b.WriteString(s)
	if len(v) > 0 {
		b.WriteByte('\t')
		key := true
		for _, x := range v {
			if fs, ok := x.(fmt.Stringer); ok {
				b.WriteString(fs.String())
			} else {
				fmt.Fprintf(&b, "%v", x)
			}
			if key {
				b.WriteByte('=')
			} else {
				b.WriteByte(' ')
			}
			key = !key
		}
	}
	fmt.Fprintln(os.Stderr, b.String())
}

func newScanner() *Scanner {
	return &Scanner{
		firstToken: true,
		maxSize:    DefaultMaxDocumentSize,
	}
}

// NewSlice creates a new Scanner that reads from input; the window is
// stable, so documents parsed without string copying may borrow token
// text from input directly
func NewSlice(input []byte) *Scanner {
	s := newScanner()
	s.buf = input
	return s
}

// NewBuffer creates a new scanner that reads from r, using a
// preallocated buffer b and enforcing maxSize as the total document
// size limit (0 means the default)
func NewBuffer(r io.Reader, b []byte, maxSize int) *Scanner {
	s := newScanner()
	if maxSize > 0 {
		s.maxSize = maxSize
	}

	nr, err := io.ReadFull(r, b)
	if err != nil {
		if err != io.ErrUnexpectedEOF && err != io.EOF {
			s.err = err
			return s
		}
		// nothing more to read; don't retain the reader
		r = nil
	}

	s.totalRead = nr
	if s.maxSize > 0 && nr > s.maxSize {
		s.err = ErrTooLarge
		return s
	}

	s.r = r
	s.buf = b[:nr]

	return s
}

// New creates a new Scanner that reads from r
func New(r io.Reader) *Scanner {
	b := make([]byte, DefaultBufferSize)
	return NewBuffer(r, b, 0)
}

// ScanAll is a convenience function that scans and returns all tokens
// up to and including EOF; a non-nil error is returned on failure
func (s *Scanner) ScanAll() ([]Token, error) {
	tokens := make([]Token, 0, 64)
	for s.Scan() {
		tokens = append(tokens, s.Token())
		if s.Token().ID == EOF {
			break
		}
	}
	if s.Err() != nil {
		return nil, s.Err()
	}
	return tokens, nil
}

// ScanOne scans and returns the first token from b
func ScanOne(b []byte) (Token, error) {
	s := NewSlice(b)
	if !s.Scan() {
		return Token{}, s.Err()
	}
	return s.Token(), nil
}

// Scan reads the next token from the input stream and returns true if a
// token was read, otherwise false.
//
// If Scan returns false, Err will return an error indicating the nature
// of the failure. On EOF, Scan returns true once with an EOF token and
// false thereafter, with Err returning nil.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}

	if s.token, s.err = s.next(); s.err == nil {
		return true
	} else if s.err == io.EOF {
		s.token = Token{ID: EOF, Data: []byte{}, Offset: -1, Line: s.line, Column: s.column, AfterSpace: true}
		return true
	}
	s.err = s.annotatedError(s.err)
	return false
}

// Token returns the token read by Scan
func (s *Scanner) Token() Token {
	return s.token
}

// Err returns the error encountered by Scan; reaching the end of input
// is not an error
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

var ErrClosed = errors.New("use of closed Scanner")

// Close closes the scanner and releases its resources
func (s *Scanner) Close() error {
	s.buf = nil
	s.captures = nil
	s.r = nil
	s.err = ErrClosed
	return nil
}
