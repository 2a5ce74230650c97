// Package parser implements the KDL 2.0 grammar over the token stream:
// a pull recognizer that emits node events, and a tree builder that
// folds the event stream into a structure-of-arrays document.
package parser

import (
	"github.com/sblinch/kdl-go/v2/document"
	"github.com/sblinch/kdl-go/v2/internal/literal"
	"github.com/sblinch/kdl-go/v2/internal/tokenizer"
)

// EventKind discriminates the events produced by a Recognizer
type EventKind uint8

const (
	// EventStartNode begins a node; Name and Type are populated
	EventStartNode EventKind = iota
	// EventArgument carries one positional value; Arg is populated
	EventArgument
	// EventProperty carries one key=value pair; Prop is populated
	EventProperty
	// EventEndNode closes the most recently started node
	EventEndNode
)

func (k EventKind) String() string {
	switch k {
	case EventStartNode:
		return "start_node"
	case EventArgument:
		return "argument"
	case EventProperty:
		return "property"
	case EventEndNode:
		return "end_node"
	default:
		return "(invalid)"
	}
}

// Event is a single step in the flat traversal of a document. String
// references resolve against the document the Recognizer was built
// with.
type Event struct {
	Kind EventKind
	// Name and Type are set for start_node
	Name document.StringRef
	Type document.StringRef
	// Arg is set for argument
	Arg document.TypedValue
	// Prop is set for property
	Prop document.Property
	Line   int
	Column int
}

// DefaultMaxDepth bounds the nesting depth of children blocks
const DefaultMaxDepth = 256

// Options configure a Recognizer
type Options struct {
	// MaxDepth bounds children-block nesting; zero means the default
	MaxDepth int
	// CopyStrings forces every string into the document's owned pool;
	// when false, strings whose bytes appear verbatim in a fixed source
	// buffer are borrowed from it instead
	CopyStrings bool
}

// recognizer state between pull steps
type state int

const (
	// stateNodes expects a node, a closing brace, or end of input
	stateNodes state = iota
	// stateHeader is inside a node header: entries, a children block,
	// or a terminator
	stateHeader
	// stateAfterChildren follows a node's closed children block, where
	// only slashdashed blocks and terminators may appear
	stateAfterChildren
)

// Recognizer pulls tokens from a Scanner and produces the event stream
// for a KDL document. It follows the scanner's Scan/Token/Err shape,
// with Event in place of Token:
//
//	for r.Scan() {
//	    ev := r.Event()
//	    ...
//	}
//	if err := r.Err(); err != nil { ... }
type Recognizer struct {
	s    *tokenizer.Scanner
	doc  *document.Document
	opts Options

	st     state
	depth  int
	frames int // children blocks currently open

	tok    tokenizer.Token
	peeked bool
	sawEOF bool

	ev   Event
	err  error
	done bool
}

// NewRecognizer creates a Recognizer reading tokens from s and
// interning strings into doc
func NewRecognizer(s *tokenizer.Scanner, doc *document.Document, opts Options) *Recognizer {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Recognizer{
		s:    s,
		doc:  doc,
		opts: opts,
	}
}

// Document returns the document the recognizer interns strings into
func (r *Recognizer) Document() *document.Document {
	return r.doc
}

// next returns the next token, honoring a pushed-back token and making
// EOF sticky
func (r *Recognizer) next() (tokenizer.Token, error) {
	if r.peeked {
		r.peeked = false
		return r.tok, nil
	}
	if r.sawEOF {
		return tokenizer.Token{ID: tokenizer.EOF, AfterSpace: true}, nil
	}
	if !r.s.Scan() {
		if err := r.s.Err(); err != nil {
			return tokenizer.Token{}, err
		}
		r.sawEOF = true
		return tokenizer.Token{ID: tokenizer.EOF, AfterSpace: true}, nil
	}
	t := r.s.Token()
	if t.ID == tokenizer.EOF {
		r.sawEOF = true
	}
	return t, nil
}

// unread pushes t back so the next call to next returns it again
func (r *Recognizer) unread(t tokenizer.Token) {
	r.tok = t
	r.peeked = true
}

// peek returns the next token without consuming it
func (r *Recognizer) peek() (tokenizer.Token, error) {
	t, err := r.next()
	if err != nil {
		return t, err
	}
	r.unread(t)
	return t, nil
}

// Scan advances to the next event, returning true if one is available.
// At a clean end of input Scan returns false with a nil Err; inside an
// unclosed children block it fails with an unexpected-EOF error.
func (r *Recognizer) Scan() bool {
	if r.err != nil || r.done {
		return false
	}
	ev, ok, err := r.step()
	if err != nil {
		r.err = err
		return false
	}
	if !ok {
		r.done = true
		return false
	}
	r.ev = ev
	return true
}

// Event returns the event produced by the last successful Scan
func (r *Recognizer) Event() Event {
	return r.ev
}

// Err returns the error that stopped Scan, if any
func (r *Recognizer) Err() error {
	return r.err
}

// step runs the recognizer until it produces an event, reaches the end
// of input, or fails
func (r *Recognizer) step() (Event, bool, error) {
	for {
		switch r.st {
		case stateNodes:
			ev, produced, again, err := r.stepNodes()
			if err != nil {
				return Event{}, false, err
			}
			if produced {
				return ev, true, nil
			}
			if !again {
				return Event{}, false, nil
			}

		case stateHeader:
			ev, produced, err := r.stepHeader()
			if err != nil {
				return Event{}, false, err
			}
			if produced {
				return ev, true, nil
			}

		case stateAfterChildren:
			if err := r.stepAfterChildren(); err != nil {
				return Event{}, false, err
			}
		}
	}
}

// stepNodes processes one token at nodes level. It returns the
// produced event (if any), whether to continue, and an error.
func (r *Recognizer) stepNodes() (Event, bool, bool, error) {
	t, err := r.next()
	if err != nil {
		return Event{}, false, false, err
	}

	switch {
	case t.ID == tokenizer.Newline || t.ID == tokenizer.Semicolon:
		return Event{}, false, true, nil

	case t.ID == tokenizer.EOF:
		if r.frames > 0 {
			return Event{}, false, false, errAt(CodeUnexpectedEOF, t.Line, t.Column, "%d unclosed children block(s)", r.frames)
		}
		return Event{}, false, false, nil

	case t.ID == tokenizer.BraceClose:
		if r.frames == 0 {
			return Event{}, false, false, errAt(CodeUnexpectedToken, t.Line, t.Column, "unmatched '}'")
		}
		r.frames--
		r.depth--
		r.st = stateAfterChildren
		return Event{Kind: EventEndNode, Line: t.Line, Column: t.Column}, true, true, nil

	case t.ID == tokenizer.SlashDash:
		if err := r.discardNode(); err != nil {
			return Event{}, false, false, err
		}
		return Event{}, false, true, nil

	case t.ID == tokenizer.ParensOpen:
		annot, err := r.readTypeAnnotation()
		if err != nil {
			return Event{}, false, false, err
		}
		name, err := r.next()
		if err != nil {
			return Event{}, false, false, err
		}
		if !name.ID.IsString() {
			return Event{}, false, false, errAt(CodeUnexpectedToken, name.Line, name.Column, "expected node name after type annotation, found %s", name.ID)
		}
		ev, err := r.startNode(name, annot)
		if err != nil {
			return Event{}, false, false, err
		}
		return ev, true, true, nil

	case t.ID.IsString():
		ev, err := r.startNode(t, document.EmptyRef)
		if err != nil {
			return Event{}, false, false, err
		}
		return ev, true, true, nil

	default:
		return Event{}, false, false, errAt(CodeUnexpectedToken, t.Line, t.Column, "expected node, found %s", t.ID)
	}
}

// startNode interns the node's name and annotation and emits start_node
func (r *Recognizer) startNode(name tokenizer.Token, annot document.StringRef) (Event, error) {
	ref, err := r.stringFromToken(name)
	if err != nil {
		return Event{}, err
	}
	r.st = stateHeader
	return Event{
		Kind:   EventStartNode,
		Name:   ref,
		Type:   annot,
		Line:   name.Line,
		Column: name.Column,
	}, nil
}

// stepHeader processes one token inside a node header
func (r *Recognizer) stepHeader() (Event, bool, error) {
	t, err := r.next()
	if err != nil {
		return Event{}, false, err
	}

	switch {
	case t.ID.IsTerminator():
		r.st = stateNodes
		return Event{Kind: EventEndNode, Line: t.Line, Column: t.Column}, true, nil

	case t.ID == tokenizer.BraceClose:
		// look-ahead terminator: the brace closes the parent's block
		r.unread(t)
		r.st = stateNodes
		return Event{Kind: EventEndNode, Line: t.Line, Column: t.Column}, true, nil

	case t.ID == tokenizer.BraceOpen:
		if err := r.openChildren(t); err != nil {
			return Event{}, false, err
		}
		r.frames++
		r.st = stateNodes
		return Event{}, false, nil

	case t.ID == tokenizer.SlashDash:
		if !t.AfterSpace {
			return Event{}, false, errAt(CodeUnexpectedToken, t.Line, t.Column, "missing whitespace before slashdash")
		}
		if err := r.discardEntryOrBlock(); err != nil {
			return Event{}, false, err
		}
		return Event{}, false, nil

	case t.ID == tokenizer.ParensOpen:
		if !t.AfterSpace {
			return Event{}, false, errAt(CodeUnexpectedToken, t.Line, t.Column, "missing whitespace before entry")
		}
		annot, err := r.readTypeAnnotation()
		if err != nil {
			return Event{}, false, err
		}
		val, err := r.next()
		if err != nil {
			return Event{}, false, err
		}
		if !val.ID.IsValue() {
			return Event{}, false, errAt(CodeUnexpectedToken, val.Line, val.Column, "expected value after type annotation, found %s", val.ID)
		}
		if nt, err := r.peek(); err == nil && nt.ID == tokenizer.Equals {
			// a type annotation may precede a property's value, never
			// its key
			return Event{}, false, errAt(CodeUnexpectedToken, val.Line, val.Column, "type annotation not permitted on a property key")
		}
		v, err := r.valueFromToken(val)
		if err != nil {
			return Event{}, false, err
		}
		return Event{
			Kind:   EventArgument,
			Arg:    document.TypedValue{Value: v, Type: annot},
			Line:   val.Line,
			Column: val.Column,
		}, true, nil

	case t.ID.IsValue():
		if !t.AfterSpace {
			return Event{}, false, errAt(CodeUnexpectedToken, t.Line, t.Column, "missing whitespace before entry")
		}

		nt, err := r.peek()
		if err != nil {
			return Event{}, false, err
		}
		if nt.ID == tokenizer.Equals {
			if !t.ID.IsString() {
				return Event{}, false, errAt(CodeUnexpectedToken, t.Line, t.Column, "property key must be a string, found %s", t.ID)
			}
			if _, err := r.next(); err != nil { // consume '='
				return Event{}, false, err
			}
			return r.readPropertyValue(t)
		}

		v, err := r.valueFromToken(t)
		if err != nil {
			return Event{}, false, err
		}
		return Event{
			Kind:   EventArgument,
			Arg:    document.TypedValue{Value: v},
			Line:   t.Line,
			Column: t.Column,
		}, true, nil

	default:
		return Event{}, false, errAt(CodeUnexpectedToken, t.Line, t.Column, "unexpected %s in node", t.ID)
	}
}

// readPropertyValue reads the value (with optional type annotation)
// following a property key and '=' and emits the property event
func (r *Recognizer) readPropertyValue(key tokenizer.Token) (Event, bool, error) {
	annot := document.EmptyRef

	t, err := r.next()
	if err != nil {
		return Event{}, false, err
	}
	if t.ID == tokenizer.ParensOpen {
		if annot, err = r.readTypeAnnotation(); err != nil {
			return Event{}, false, err
		}
		if t, err = r.next(); err != nil {
			return Event{}, false, err
		}
	}
	if !t.ID.IsValue() {
		if t.ID == tokenizer.EOF {
			return Event{}, false, errAt(CodeUnexpectedEOF, t.Line, t.Column, "expected property value")
		}
		return Event{}, false, errAt(CodeUnexpectedToken, t.Line, t.Column, "expected property value, found %s", t.ID)
	}

	keyRef, err := r.stringFromToken(key)
	if err != nil {
		return Event{}, false, err
	}
	v, err := r.valueFromToken(t)
	if err != nil {
		return Event{}, false, err
	}

	return Event{
		Kind:   EventProperty,
		Prop:   document.Property{Name: keyRef, Value: v, Type: annot},
		Line:   key.Line,
		Column: key.Column,
	}, true, nil
}

// stepAfterChildren enforces the post-children rules: only slashdashed
// children blocks, a terminator, or a closing brace may follow
func (r *Recognizer) stepAfterChildren() error {
	t, err := r.next()
	if err != nil {
		return err
	}

	switch t.ID {
	case tokenizer.Newline, tokenizer.Semicolon, tokenizer.EOF:
		if t.ID == tokenizer.EOF {
			r.unread(t)
		}
		r.st = stateNodes
		return nil

	case tokenizer.BraceClose:
		r.unread(t)
		r.st = stateNodes
		return nil

	case tokenizer.SlashDash:
		return r.discardBlockAfterSlashDash()

	default:
		return errAt(CodeUnexpectedToken, t.Line, t.Column, "entries may not follow a children block, found %s", t.ID)
	}
}

// openChildren charges one depth unit for a children block
func (r *Recognizer) openChildren(t tokenizer.Token) error {
	r.depth++
	if r.depth > r.opts.MaxDepth {
		return errAt(CodeNestingTooDeep, t.Line, t.Column, "depth exceeds limit of %d", r.opts.MaxDepth)
	}
	return nil
}

// readTypeAnnotation reads the string and closing parenthesis of a type
// annotation whose '(' has been consumed
func (r *Recognizer) readTypeAnnotation() (document.StringRef, error) {
	t, err := r.next()
	if err != nil {
		return document.EmptyRef, err
	}
	if !t.ID.IsString() {
		if t.ID == tokenizer.EOF {
			return document.EmptyRef, errAt(CodeUnexpectedEOF, t.Line, t.Column, "unterminated type annotation")
		}
		return document.EmptyRef, errAt(CodeUnexpectedToken, t.Line, t.Column, "expected type annotation, found %s", t.ID)
	}
	ref, err := r.stringFromToken(t)
	if err != nil {
		return document.EmptyRef, err
	}

	ct, err := r.next()
	if err != nil {
		return document.EmptyRef, err
	}
	if ct.ID != tokenizer.ParensClose {
		if ct.ID == tokenizer.EOF {
			return document.EmptyRef, errAt(CodeUnexpectedEOF, ct.Line, ct.Column, "unterminated type annotation")
		}
		return document.EmptyRef, errAt(CodeUnexpectedToken, ct.Line, ct.Column, "expected ')', found %s", ct.ID)
	}
	return ref, nil
}

// stringFromToken decodes the content of a string-type token and
// interns it, borrowing from the source buffer when permitted and the
// content appears verbatim
func (r *Recognizer) stringFromToken(t tokenizer.Token) (document.StringRef, error) {
	switch t.ID {
	case tokenizer.BareIdentifier:
		return r.internOrBorrow(t.Data, t.Offset)

	case tokenizer.QuotedString:
		if !hasByte(t.Data, '\\') {
			body := t.Data[1 : len(t.Data)-1]
			off := -1
			if t.Offset >= 0 {
				off = t.Offset + 1
			}
			return r.internOrBorrow(body, off)
		}
		out, err := literal.DecodeQuoted(t.Data)
		if err != nil {
			return document.EmptyRef, classify(err, t.Line, t.Column)
		}
		return r.intern(out)

	case tokenizer.RawString:
		h := 0
		for h < len(t.Data) && t.Data[h] == '#' {
			h++
		}
		body := t.Data[h+1 : len(t.Data)-h-1]
		off := -1
		if t.Offset >= 0 {
			off = t.Offset + h + 1
		}
		return r.internOrBorrow(body, off)

	case tokenizer.MultilineString:
		out, err := literal.DecodeQuotedMultiline(t.Data)
		if err != nil {
			return document.EmptyRef, classify(err, t.Line, t.Column)
		}
		return r.intern(out)

	case tokenizer.MultilineRawString:
		out, err := literal.DecodeRawMultiline(t.Data)
		if err != nil {
			return document.EmptyRef, classify(err, t.Line, t.Column)
		}
		return r.intern(out)

	default:
		return document.EmptyRef, errAt(CodeUnexpectedToken, t.Line, t.Column, "expected string, found %s", t.ID)
	}
}

// intern copies b into the document's owned pool
func (r *Recognizer) intern(b []byte) (document.StringRef, error) {
	ref, err := r.doc.AddString(b)
	if err != nil {
		return document.EmptyRef, classify(err, 0, 0)
	}
	return ref, nil
}

// internOrBorrow borrows b from the source buffer when string copying
// is disabled and b has a stable source offset; otherwise it interns a
// copy
func (r *Recognizer) internOrBorrow(b []byte, offset int) (document.StringRef, error) {
	if !r.opts.CopyStrings && offset >= 0 {
		return document.MakeBorrowedRef(offset, len(b)), nil
	}
	return r.intern(b)
}

// valueFromToken builds a Value from a value-class token
func (r *Recognizer) valueFromToken(t tokenizer.Token) (document.Value, error) {
	switch {
	case t.ID.IsString():
		ref, err := r.stringFromToken(t)
		if err != nil {
			return document.Value{}, err
		}
		return document.StringValue(ref), nil

	case t.ID == tokenizer.Boolean:
		return document.BoolValue(t.Data[1] == 't'), nil
	case t.ID == tokenizer.Null:
		return document.NullValue(), nil
	case t.ID == tokenizer.PosInf:
		return document.Value{Kind: document.KindPosInf}, nil
	case t.ID == tokenizer.NegInf:
		return document.Value{Kind: document.KindNegInf}, nil
	case t.ID == tokenizer.NaN:
		return document.Value{Kind: document.KindNaN}, nil

	case t.ID.IsNumber():
		n, err := literal.ParseNumber(t.Data)
		if err != nil {
			return document.Value{}, classify(err, t.Line, t.Column)
		}
		switch n.Kind {
		case literal.NumberInt:
			return document.IntValue(n.Int), nil
		case literal.NumberBigInt:
			return document.BigIntValue(n.Big), nil
		default:
			v := document.FloatValue(n.Float)
			if n.KeepOriginal {
				ref, err := r.internOrBorrow(t.Data, t.Offset)
				if err != nil {
					return document.Value{}, err
				}
				v.Original = ref
			}
			return v, nil
		}

	default:
		return document.Value{}, errAt(CodeUnexpectedToken, t.Line, t.Column, "expected value, found %s", t.ID)
	}
}

// hasByte reports whether b contains c
func hasByte(b []byte, c byte) bool {
	for _, x := range b {
		if x == c {
			return true
		}
	}
	return false
}
