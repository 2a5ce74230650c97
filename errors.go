package kdl

import (
	"errors"
	"fmt"
	"io"

	"github.com/sblinch/kdl-go/v2/document"
	"github.com/sblinch/kdl-go/v2/internal/parser"
	"github.com/sblinch/kdl-go/v2/internal/tokenizer"
)

// ErrorCode classifies a parse failure. The values mirror
// parser.ErrorCode one-to-one and must stay in the same order.
type ErrorCode int

const (
	UnexpectedToken ErrorCode = iota
	UnexpectedEof
	InvalidNumber
	InvalidString
	InvalidEscape
	DuplicateProperty
	NestingTooDeep
	OutOfMemory
)

func (c ErrorCode) String() string {
	switch c {
	case UnexpectedToken:
		return "unexpected token"
	case UnexpectedEof:
		return "unexpected end of input"
	case InvalidNumber:
		return "invalid number"
	case InvalidString:
		return "invalid string"
	case InvalidEscape:
		return "invalid escape"
	case DuplicateProperty:
		return "duplicate property"
	case NestingTooDeep:
		return "nesting too deep"
	case OutOfMemory:
		return "out of memory"
	default:
		return "parse error"
	}
}

// ParseError is a parse failure carrying the line and column of the
// offending token when available
type ParseError struct {
	Code   ErrorCode
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s at line %d, column %d", e.Code, e.Msg, e.Line, e.Column)
	}
	return fmt.Sprintf("%s at line %d, column %d", e.Code, e.Line, e.Column)
}

// convertError maps internal errors onto the public taxonomy
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var pe *parser.ParseError
	if errors.As(err, &pe) {
		return &ParseError{
			Code:   ErrorCode(pe.Code),
			Line:   pe.Line,
			Column: pe.Column,
			Msg:    pe.Msg,
		}
	}

	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &ParseError{Code: UnexpectedEof, Msg: err.Error()}
	case errors.Is(err, tokenizer.ErrTooLarge), errors.Is(err, document.ErrPoolFull):
		return &ParseError{Code: OutOfMemory, Msg: err.Error()}
	}
	return err
}
