package parser

import (
	"errors"
	"fmt"

	"github.com/sblinch/kdl-go/v2/document"
	"github.com/sblinch/kdl-go/v2/internal/literal"
)

// ErrorCode classifies a parse failure
type ErrorCode int

const (
	CodeUnexpectedToken ErrorCode = iota
	CodeUnexpectedEOF
	CodeInvalidNumber
	CodeInvalidString
	CodeInvalidEscape
	CodeDuplicateProperty
	CodeNestingTooDeep
	CodeOutOfMemory
)

func (c ErrorCode) String() string {
	switch c {
	case CodeUnexpectedToken:
		return "unexpected token"
	case CodeUnexpectedEOF:
		return "unexpected end of input"
	case CodeInvalidNumber:
		return "invalid number"
	case CodeInvalidString:
		return "invalid string"
	case CodeInvalidEscape:
		return "invalid escape"
	case CodeDuplicateProperty:
		return "duplicate property"
	case CodeNestingTooDeep:
		return "nesting too deep"
	case CodeOutOfMemory:
		return "out of memory"
	default:
		return "parse error"
	}
}

// ParseError is a parse failure with the line and column of the
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

// errAt builds a ParseError positioned at line/column
func errAt(code ErrorCode, line, column int, format string, v ...interface{}) *ParseError {
	return &ParseError{
		Code:   code,
		Line:   line + 1,
		Column: column + 1,
		Msg:    fmt.Sprintf(format, v...),
	}
}

// classify maps errors from the value builders and the string pool onto
// the exposed taxonomy
func classify(err error, line, column int) *ParseError {
	code := CodeInvalidString
	switch {
	case errors.Is(err, literal.ErrInvalidEscape):
		code = CodeInvalidEscape
	case errors.Is(err, literal.ErrInvalidNumber):
		code = CodeInvalidNumber
	case errors.Is(err, document.ErrPoolFull):
		code = CodeOutOfMemory
	}
	return &ParseError{Code: code, Line: line + 1, Column: column + 1, Msg: err.Error()}
}
