package kdl

import (
	"io"
	"math/big"

	"github.com/sblinch/kdl-go/v2/document"
	"github.com/sblinch/kdl-go/v2/internal/parser"
	"github.com/sblinch/kdl-go/v2/internal/tokenizer"
)

// EventKind discriminates the events produced by a Parser
type EventKind uint8

const (
	// EventStartNode begins a node
	EventStartNode EventKind = iota
	// EventArgument carries one positional value
	EventArgument
	// EventProperty carries one key=value pair
	EventProperty
	// EventEndNode closes the most recently started node; the stream
	// is balanced: every start_node has exactly one end_node
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

// Value is an event-stream value with its string payloads resolved
type Value struct {
	Kind  document.ValueKind
	Bool  bool
	Int   int64
	Big   *big.Int
	Float float64
	// Str is the payload of a string value
	Str string
	// Original is the retained literal text of a float that must
	// round-trip exactly, or "" if none was retained
	Original string
}

// Event is a single step in the flat traversal of a document
type Event struct {
	Kind EventKind
	// Name is the node name (start_node) or property key (property)
	Name string
	// Type is the type annotation, or "" if none
	Type string
	// Value is set for argument and property events
	Value Value
	Line   int
	Column int
}

// Parser yields the event stream for a KDL document:
//
//	p := kdl.NewParser(source)
//	for p.Scan() {
//	    ev := p.Event()
//	    ...
//	}
//	if err := p.Err(); err != nil { ... }
type Parser struct {
	s     *tokenizer.Scanner
	rec   *parser.Recognizer
	arena *document.Document
	ev    Event
	err   error
}

// NewParser creates a Parser reading from source with default options
func NewParser(source []byte) *Parser {
	return NewParserWithOptions(source, DefaultParseOptions)
}

// NewParserWithOptions creates a Parser reading from source
func NewParserWithOptions(source []byte, opts ParseOptions) *Parser {
	s := tokenizer.NewSlice(source)
	return newParser(s, opts)
}

// NewParserReader creates a Parser streaming from r
func NewParserReader(r io.Reader, opts ParseOptions) *Parser {
	s := tokenizer.NewBuffer(decodeReader(r), makeBuffer(opts), opts.MaxDocumentSize)
	return newParser(s, opts)
}

func newParser(s *tokenizer.Scanner, opts ParseOptions) *Parser {
	arena := document.NewWithCapacity(8, opts.MaxPoolBytes)
	return &Parser{
		s:     s,
		arena: arena,
		rec: parser.NewRecognizer(s, arena, parser.Options{
			MaxDepth: opts.MaxDepth,
			// events resolve against the arena, never a source buffer
			CopyStrings: true,
		}),
	}
}

// Scan advances to the next event, returning true if one is available.
// At a clean end of input Scan returns false with a nil Err.
func (p *Parser) Scan() bool {
	if p.err != nil {
		return false
	}
	if !p.rec.Scan() {
		if err := p.rec.Err(); err != nil {
			p.err = convertError(err)
		}
		return false
	}
	p.ev = p.resolve(p.rec.Event())
	return true
}

// Event returns the event produced by the last successful Scan
func (p *Parser) Event() Event {
	return p.ev
}

// Err returns the error that stopped Scan, if any
func (p *Parser) Err() error {
	return p.err
}

// Close releases the parser's resources
func (p *Parser) Close() error {
	return p.s.Close()
}

// resolve converts an internal event, resolving pool references into
// strings
func (p *Parser) resolve(ev parser.Event) Event {
	out := Event{
		Line:   ev.Line + 1,
		Column: ev.Column + 1,
	}
	switch ev.Kind {
	case parser.EventStartNode:
		out.Kind = EventStartNode
		out.Name = p.arena.String(ev.Name)
		out.Type = p.arena.String(ev.Type)
	case parser.EventArgument:
		out.Kind = EventArgument
		out.Type = p.arena.String(ev.Arg.Type)
		out.Value = p.resolveValue(ev.Arg.Value)
	case parser.EventProperty:
		out.Kind = EventProperty
		out.Name = p.arena.String(ev.Prop.Name)
		out.Type = p.arena.String(ev.Prop.Type)
		out.Value = p.resolveValue(ev.Prop.Value)
	case parser.EventEndNode:
		out.Kind = EventEndNode
	}
	return out
}

func (p *Parser) resolveValue(v document.Value) Value {
	return Value{
		Kind:     v.Kind,
		Bool:     v.Bool,
		Int:      v.Int,
		Big:      v.Big,
		Float:    v.Float,
		Str:      p.arena.String(v.Str),
		Original: p.arena.String(v.Original),
	}
}
