// Package tokenizer implements the streaming KDL 2.0 lexer. It reads
// from a fixed byte slice or an io.Reader through a bounded buffer,
// stitching tokens that span refills into a contiguous view.
package tokenizer

import (
	"fmt"
)

type TokenID int

const (
	Unknown TokenID = iota
	Newline
	SlashDash
	ParensOpen
	ParensClose
	BraceOpen
	BraceClose
	Equals
	Semicolon
	QuotedString
	MultilineString
	RawString
	MultilineRawString
	BareIdentifier
	Decimal
	Hexadecimal
	Octal
	Binary
	Boolean
	Null
	PosInf
	NegInf
	NaN
	Invalid
	EOF
)

func (t TokenID) String() string {
	switch t {
	case Newline:
		return "Newline"
	case SlashDash:
		return "SlashDash"
	case ParensOpen:
		return "ParensOpen"
	case ParensClose:
		return "ParensClose"
	case BraceOpen:
		return "BraceOpen"
	case BraceClose:
		return "BraceClose"
	case Equals:
		return "Equals"
	case Semicolon:
		return "Semicolon"
	case QuotedString:
		return "QuotedString"
	case MultilineString:
		return "MultilineString"
	case RawString:
		return "RawString"
	case MultilineRawString:
		return "MultilineRawString"
	case BareIdentifier:
		return "BareIdentifier"
	case Decimal:
		return "Decimal"
	case Hexadecimal:
		return "Hexadecimal"
	case Octal:
		return "Octal"
	case Binary:
		return "Binary"
	case Boolean:
		return "Boolean"
	case Null:
		return "Null"
	case PosInf:
		return "PosInf"
	case NegInf:
		return "NegInf"
	case NaN:
		return "NaN"
	case Invalid:
		return "Invalid"
	case EOF:
		return "EOF"
	default:
		return "(invalid)"
	}
}

// IsString returns true for the token types that carry string content
// and may serve as identifiers (node names, property keys)
func (t TokenID) IsString() bool {
	switch t {
	case BareIdentifier, QuotedString, MultilineString, RawString, MultilineRawString:
		return true
	default:
		return false
	}
}

// IsNumber returns true for the numeric token types
func (t TokenID) IsNumber() bool {
	switch t {
	case Decimal, Hexadecimal, Octal, Binary:
		return true
	default:
		return false
	}
}

// IsKeyword returns true for the hash-keyword token types
func (t TokenID) IsKeyword() bool {
	switch t {
	case Boolean, Null, PosInf, NegInf, NaN:
		return true
	default:
		return false
	}
}

// IsValue returns true for any token type that can appear as a value
func (t TokenID) IsValue() bool {
	return t.IsString() || t.IsNumber() || t.IsKeyword()
}

// IsTerminator returns true for the token types that end a node
func (t TokenID) IsTerminator() bool {
	switch t {
	case Newline, Semicolon, EOF:
		return true
	default:
		return false
	}
}

// Token contains a single token returned by a Scanner.
type Token struct {
	// ID indicates the token type
	ID TokenID
	// Data contains the literal data for the token; this may be a
	// subslice of the input buffer (if the entire stream could be read
	// into a single buffer) or a copy of data from the input buffer,
	// so it should not be modified.
	Data []byte
	// Offset is the byte offset of Data within the original source, or
	// -1 when the token was stitched from a streamed input and no
	// stable source offset exists
	Offset int
	Line   int
	Column int
	// AfterSpace indicates that whitespace, a comment, or a line
	// continuation preceded this token; the first token of a document
	// is treated as preceded by whitespace
	AfterSpace bool
}

// String returns a string representation of the token for debugging
func (t Token) String() string {
	if len(t.Data) > 0 {
		return fmt.Sprintf("%s(%s)", t.ID.String(), string(t.Data))
	}
	return t.ID.String()
}

// Valid returns true if this token has a valid ID
func (t Token) Valid() bool {
	return t.ID != Unknown
}

// Clear resets this token to its default (invalid) state
func (t *Token) Clear() {
	t.ID = Unknown
	t.Data = nil
	t.Offset = -1
	t.Line, t.Column = 0, 0
	t.AfterSpace = false
}
