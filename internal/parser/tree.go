package parser

import (
	"bytes"

	"github.com/sblinch/kdl-go/v2/document"
	"github.com/sblinch/kdl-go/v2/internal/tokenizer"
)

// TreeOptions configure the tree builder
type TreeOptions struct {
	Options
	// StrictProperties makes a duplicate property name a parse error
	// rather than applying rightmost-wins at read time
	StrictProperties bool
}

// builderFrame tracks one open node while its subtree is consumed
type builderFrame struct {
	handle    document.NodeHandle
	argStart  uint32
	propStart uint32
	// headerDone is set once the node's ranges are finalized, which
	// happens at its first child (entries cannot follow children)
	headerDone bool
}

// BuildTree drives a Recognizer over the token stream from s and folds
// the event sequence into doc
func BuildTree(s *tokenizer.Scanner, doc *document.Document, opts TreeOptions) error {
	rec := NewRecognizer(s, doc, opts.Options)

	stack := make([]builderFrame, 0, 16)

	finalize := func(f *builderFrame) error {
		if f.headerDone {
			return nil
		}
		f.headerDone = true
		args := document.Range{Start: f.argStart, Count: doc.ArgCount() - f.argStart}
		props := document.Range{Start: f.propStart, Count: doc.PropCount() - f.propStart}
		return doc.SetRanges(f.handle, args, props)
	}

	for rec.Scan() {
		ev := rec.Event()
		switch ev.Kind {
		case EventStartNode:
			parent := document.NilNode
			if len(stack) > 0 {
				top := &stack[len(stack)-1]
				if err := finalize(top); err != nil {
					return err
				}
				parent = top.handle
			}

			h, err := doc.AddNode(ev.Name, ev.Type, parent,
				document.Range{Start: doc.ArgCount()},
				document.Range{Start: doc.PropCount()})
			if err != nil {
				return classify(err, ev.Line, ev.Column)
			}
			stack = append(stack, builderFrame{
				handle:    h,
				argStart:  doc.ArgCount(),
				propStart: doc.PropCount(),
			})

		case EventArgument:
			doc.AddArgument(ev.Arg)

		case EventProperty:
			if opts.StrictProperties {
				top := stack[len(stack)-1]
				name := doc.StringBytes(ev.Prop.Name)
				for i := top.propStart; i < doc.PropCount(); i++ {
					if bytes.Equal(doc.StringBytes(doc.PropertyAt(i).Name), name) {
						return errAt(CodeDuplicateProperty, ev.Line, ev.Column, "property %q", string(name))
					}
				}
			}
			doc.AddProperty(ev.Prop)

		case EventEndNode:
			top := &stack[len(stack)-1]
			if err := finalize(top); err != nil {
				return err
			}
			stack = stack[:len(stack)-1]
		}
	}

	return rec.Err()
}
