package parser

import (
	"github.com/sblinch/kdl-go/v2/internal/literal"
	"github.com/sblinch/kdl-go/v2/internal/tokenizer"
)

// The discard family parses slashdash-commented grammar elements with
// full validation and depth accounting, producing no events and
// interning nothing. A slashdash with nothing left to comment out is an
// error.

// discardNode parses and discards one whole node, including its
// children; the slashdash has been consumed
func (r *Recognizer) discardNode() error {
	t, err := r.nextSkippingNewlines()
	if err != nil {
		return err
	}

	switch {
	case t.ID == tokenizer.EOF:
		return errAt(CodeUnexpectedEOF, t.Line, t.Column, "slashdash with nothing to comment out")
	case t.ID == tokenizer.BraceClose:
		return errAt(CodeUnexpectedToken, t.Line, t.Column, "slashdash with nothing to comment out")
	case t.ID == tokenizer.ParensOpen:
		if err := r.discardTypeAnnotation(); err != nil {
			return err
		}
		name, err := r.next()
		if err != nil {
			return err
		}
		if !name.ID.IsString() {
			return errAt(CodeUnexpectedToken, name.Line, name.Column, "expected node name after type annotation, found %s", name.ID)
		}
		if err := r.discardString(name); err != nil {
			return err
		}
		return r.discardHeaderRest()
	case t.ID.IsString():
		if err := r.discardString(t); err != nil {
			return err
		}
		return r.discardHeaderRest()
	default:
		return errAt(CodeUnexpectedToken, t.Line, t.Column, "expected node after slashdash, found %s", t.ID)
	}
}

// discardHeaderRest discards the remainder of a node header whose name
// has been consumed, along with any children block
func (r *Recognizer) discardHeaderRest() error {
	for {
		t, err := r.next()
		if err != nil {
			return err
		}

		switch {
		case t.ID.IsTerminator():
			return nil

		case t.ID == tokenizer.BraceClose:
			r.unread(t)
			return nil

		case t.ID == tokenizer.BraceOpen:
			if err := r.discardChildren(t); err != nil {
				return err
			}
			return r.discardAfterChildren()

		case t.ID == tokenizer.SlashDash:
			if !t.AfterSpace {
				return errAt(CodeUnexpectedToken, t.Line, t.Column, "missing whitespace before slashdash")
			}
			if err := r.discardEntryOrBlock(); err != nil {
				return err
			}

		case t.ID == tokenizer.ParensOpen:
			if !t.AfterSpace {
				return errAt(CodeUnexpectedToken, t.Line, t.Column, "missing whitespace before entry")
			}
			if err := r.discardAnnotatedValue(); err != nil {
				return err
			}

		case t.ID.IsValue():
			if !t.AfterSpace {
				return errAt(CodeUnexpectedToken, t.Line, t.Column, "missing whitespace before entry")
			}
			if err := r.discardEntryFrom(t); err != nil {
				return err
			}

		default:
			return errAt(CodeUnexpectedToken, t.Line, t.Column, "unexpected %s in node", t.ID)
		}
	}
}

// discardAfterChildren enforces the post-children rules within a
// discarded node
func (r *Recognizer) discardAfterChildren() error {
	for {
		t, err := r.next()
		if err != nil {
			return err
		}

		switch t.ID {
		case tokenizer.Newline, tokenizer.Semicolon, tokenizer.EOF:
			return nil
		case tokenizer.BraceClose:
			r.unread(t)
			return nil
		case tokenizer.SlashDash:
			if err := r.discardBlockAfterSlashDash(); err != nil {
				return err
			}
		default:
			return errAt(CodeUnexpectedToken, t.Line, t.Column, "entries may not follow a children block, found %s", t.ID)
		}
	}
}

// discardChildren discards a children block whose opening brace t has
// been consumed, charging depth for it
func (r *Recognizer) discardChildren(open tokenizer.Token) error {
	if err := r.openChildren(open); err != nil {
		return err
	}

	for {
		t, err := r.next()
		if err != nil {
			return err
		}

		switch {
		case t.ID == tokenizer.Newline || t.ID == tokenizer.Semicolon:
			// skip

		case t.ID == tokenizer.BraceClose:
			r.depth--
			return nil

		case t.ID == tokenizer.EOF:
			return errAt(CodeUnexpectedEOF, t.Line, t.Column, "unclosed children block")

		case t.ID == tokenizer.SlashDash:
			if err := r.discardNode(); err != nil {
				return err
			}

		case t.ID == tokenizer.ParensOpen:
			if err := r.discardTypeAnnotation(); err != nil {
				return err
			}
			name, err := r.next()
			if err != nil {
				return err
			}
			if !name.ID.IsString() {
				return errAt(CodeUnexpectedToken, name.Line, name.Column, "expected node name after type annotation, found %s", name.ID)
			}
			if err := r.discardString(name); err != nil {
				return err
			}
			if err := r.discardHeaderRest(); err != nil {
				return err
			}

		case t.ID.IsString():
			if err := r.discardString(t); err != nil {
				return err
			}
			if err := r.discardHeaderRest(); err != nil {
				return err
			}

		default:
			return errAt(CodeUnexpectedToken, t.Line, t.Column, "expected node, found %s", t.ID)
		}
	}
}

// discardEntryOrBlock discards one argument, property, or children
// block following a slashdash in a node header
func (r *Recognizer) discardEntryOrBlock() error {
	t, err := r.nextSkippingNewlines()
	if err != nil {
		return err
	}

	switch {
	case t.ID == tokenizer.EOF:
		return errAt(CodeUnexpectedEOF, t.Line, t.Column, "slashdash with nothing to comment out")
	case t.ID == tokenizer.BraceClose:
		return errAt(CodeUnexpectedToken, t.Line, t.Column, "slashdash with nothing to comment out")
	case t.ID == tokenizer.BraceOpen:
		return r.discardChildren(t)
	case t.ID == tokenizer.ParensOpen:
		return r.discardAnnotatedValue()
	case t.ID.IsValue():
		return r.discardEntryFrom(t)
	default:
		return errAt(CodeUnexpectedToken, t.Line, t.Column, "expected entry after slashdash, found %s", t.ID)
	}
}

// discardBlockAfterSlashDash discards a slashdashed children block
// following a node's real children block
func (r *Recognizer) discardBlockAfterSlashDash() error {
	t, err := r.nextSkippingNewlines()
	if err != nil {
		return err
	}
	if t.ID != tokenizer.BraceOpen {
		if t.ID == tokenizer.EOF {
			return errAt(CodeUnexpectedEOF, t.Line, t.Column, "slashdash with nothing to comment out")
		}
		return errAt(CodeUnexpectedToken, t.Line, t.Column, "expected children block after slashdash, found %s", t.ID)
	}
	return r.discardChildren(t)
}

// discardAnnotatedValue discards a (type)value entry whose opening
// parenthesis has been consumed
func (r *Recognizer) discardAnnotatedValue() error {
	if err := r.discardTypeAnnotation(); err != nil {
		return err
	}
	t, err := r.next()
	if err != nil {
		return err
	}
	if !t.ID.IsValue() {
		return errAt(CodeUnexpectedToken, t.Line, t.Column, "expected value after type annotation, found %s", t.ID)
	}
	if nt, err := r.peek(); err == nil && nt.ID == tokenizer.Equals {
		return errAt(CodeUnexpectedToken, t.Line, t.Column, "type annotation not permitted on a property key")
	}
	return r.discardValueToken(t)
}

// discardEntryFrom discards one argument or property beginning at t
func (r *Recognizer) discardEntryFrom(t tokenizer.Token) error {
	nt, err := r.peek()
	if err != nil {
		return err
	}
	if nt.ID != tokenizer.Equals {
		return r.discardValueToken(t)
	}

	if !t.ID.IsString() {
		return errAt(CodeUnexpectedToken, t.Line, t.Column, "property key must be a string, found %s", t.ID)
	}
	if err := r.discardString(t); err != nil {
		return err
	}
	if _, err := r.next(); err != nil { // consume '='
		return err
	}

	v, err := r.next()
	if err != nil {
		return err
	}
	if v.ID == tokenizer.ParensOpen {
		if err := r.discardTypeAnnotation(); err != nil {
			return err
		}
		if v, err = r.next(); err != nil {
			return err
		}
	}
	if !v.ID.IsValue() {
		if v.ID == tokenizer.EOF {
			return errAt(CodeUnexpectedEOF, v.Line, v.Column, "expected property value")
		}
		return errAt(CodeUnexpectedToken, v.Line, v.Column, "expected property value, found %s", v.ID)
	}
	return r.discardValueToken(v)
}

// discardTypeAnnotation validates the string and closing parenthesis of
// a type annotation whose '(' has been consumed
func (r *Recognizer) discardTypeAnnotation() error {
	t, err := r.next()
	if err != nil {
		return err
	}
	if !t.ID.IsString() {
		if t.ID == tokenizer.EOF {
			return errAt(CodeUnexpectedEOF, t.Line, t.Column, "unterminated type annotation")
		}
		return errAt(CodeUnexpectedToken, t.Line, t.Column, "expected type annotation, found %s", t.ID)
	}
	if err := r.discardString(t); err != nil {
		return err
	}

	ct, err := r.next()
	if err != nil {
		return err
	}
	if ct.ID != tokenizer.ParensClose {
		if ct.ID == tokenizer.EOF {
			return errAt(CodeUnexpectedEOF, ct.Line, ct.Column, "unterminated type annotation")
		}
		return errAt(CodeUnexpectedToken, ct.Line, ct.Column, "expected ')', found %s", ct.ID)
	}
	return nil
}

// discardString validates a string-type token without interning it
func (r *Recognizer) discardString(t tokenizer.Token) error {
	var err error
	switch t.ID {
	case tokenizer.BareIdentifier:
	case tokenizer.QuotedString:
		_, err = literal.DecodeQuoted(t.Data)
	case tokenizer.RawString:
		_, err = literal.DecodeRaw(t.Data)
	case tokenizer.MultilineString:
		_, err = literal.DecodeQuotedMultiline(t.Data)
	case tokenizer.MultilineRawString:
		_, err = literal.DecodeRawMultiline(t.Data)
	default:
		return errAt(CodeUnexpectedToken, t.Line, t.Column, "expected string, found %s", t.ID)
	}
	if err != nil {
		return classify(err, t.Line, t.Column)
	}
	return nil
}

// discardValueToken validates a value-class token without interning it
func (r *Recognizer) discardValueToken(t tokenizer.Token) error {
	switch {
	case t.ID.IsString():
		return r.discardString(t)
	case t.ID.IsKeyword():
		return nil
	case t.ID.IsNumber():
		if _, err := literal.ParseNumber(t.Data); err != nil {
			return classify(err, t.Line, t.Column)
		}
		return nil
	default:
		return errAt(CodeUnexpectedToken, t.Line, t.Column, "expected value, found %s", t.ID)
	}
}

// nextSkippingNewlines returns the next token that is not a newline;
// slashdash permits node-space before the element it comments out
func (r *Recognizer) nextSkippingNewlines() (tokenizer.Token, error) {
	for {
		t, err := r.next()
		if err != nil {
			return t, err
		}
		if t.ID != tokenizer.Newline {
			return t, nil
		}
	}
}
