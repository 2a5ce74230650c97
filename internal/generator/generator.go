// Package generator writes the canonical KDL text for a parsed
// document.
package generator

import (
	"io"

	"github.com/sblinch/kdl-go/v2/document"
)

type Options struct {
	// Indent specifies the string used for each indentation level of
	// child nodes
	Indent string
}

// DefaultOptions sets the default options for a new Generator
var DefaultOptions = Options{
	Indent: "    ",
}

// Generator generates a KDL document from a parsed Document
type Generator struct {
	w       io.Writer
	options Options
	buf     []byte
}

// NewOptions creates a new Generator with the provided Options, that
// writes to w
func NewOptions(w io.Writer, opts Options) *Generator {
	if opts.Indent == "" {
		opts.Indent = DefaultOptions.Indent
	}
	return &Generator{
		w:       w,
		options: opts,
		buf:     make([]byte, 0, 256),
	}
}

// New creates a new Generator with the default options, that writes to w
func New(w io.Writer) *Generator {
	return NewOptions(w, DefaultOptions)
}

// Generate generates the KDL for a Document, and returns a non-nil
// error on failure; the only failure mode is a writer error
func (g *Generator) Generate(d *document.Document) error {
	for _, root := range d.Roots() {
		if err := g.generateNode(d, root, 0); err != nil {
			return err
		}
	}
	return nil
}

// GenerateNode generates the KDL for a single node and its children
func (g *Generator) GenerateNode(d *document.Document, h document.NodeHandle) error {
	return g.generateNode(d, h, 0)
}

// generateNode writes one node at the given depth, recursing into its
// children
func (g *Generator) generateNode(d *document.Document, h document.NodeHandle, depth int) error {
	g.buf = g.buf[:0]
	for i := 0; i < depth; i++ {
		g.buf = append(g.buf, g.options.Indent...)
	}

	if annot := d.TypeAnnotation(h); !annot.Empty() {
		g.buf = append(g.buf, '(')
		g.buf = document.AppendIdentifier(g.buf, d.String(annot))
		g.buf = append(g.buf, ')')
	}
	g.buf = document.AppendIdentifier(g.buf, d.String(d.Name(h)))

	for _, arg := range d.Arguments(h) {
		g.buf = append(g.buf, ' ')
		if !arg.Type.Empty() {
			g.buf = append(g.buf, '(')
			g.buf = document.AppendIdentifier(g.buf, d.String(arg.Type))
			g.buf = append(g.buf, ')')
		}
		g.buf = d.AppendValue(g.buf, arg.Value)
	}

	// duplicate property names collapse per the document's policy
	for _, prop := range d.EffectiveProperties(h) {
		g.buf = append(g.buf, ' ')
		g.buf = document.AppendIdentifier(g.buf, d.String(prop.Name))
		g.buf = append(g.buf, '=')
		if !prop.Type.Empty() {
			g.buf = append(g.buf, '(')
			g.buf = document.AppendIdentifier(g.buf, d.String(prop.Type))
			g.buf = append(g.buf, ')')
		}
		g.buf = d.AppendValue(g.buf, prop.Value)
	}

	first := d.FirstChild(h)
	if first != document.NilNode {
		g.buf = append(g.buf, ' ', '{', '\n')
		if _, err := g.w.Write(g.buf); err != nil {
			return err
		}

		it := d.Children(h)
		for c, ok := it.Next(); ok; c, ok = it.Next() {
			if err := g.generateNode(d, c, depth+1); err != nil {
				return err
			}
		}

		g.buf = g.buf[:0]
		for i := 0; i < depth; i++ {
			g.buf = append(g.buf, g.options.Indent...)
		}
		g.buf = append(g.buf, '}', '\n')
		_, err := g.w.Write(g.buf)
		return err
	}

	g.buf = append(g.buf, '\n')
	_, err := g.w.Write(g.buf)
	return err
}
