// Package kdl parses and serializes KDL 2.0.0 documents.
//
// Parse builds a structure-of-arrays document from KDL text; Serialize
// writes a document back out as canonical KDL. NewParser exposes the
// underlying event stream for callers that want a flat pull traversal
// instead of a tree.
package kdl

import (
	"bytes"
	"io"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sblinch/kdl-go/v2/document"
	"github.com/sblinch/kdl-go/v2/internal/generator"
	"github.com/sblinch/kdl-go/v2/internal/parser"
	"github.com/sblinch/kdl-go/v2/internal/tokenizer"
)

// Parse parses a KDL document from source with the default options and
// returns the parsed Document, or a non-nil error on failure
func Parse(source []byte) (*document.Document, error) {
	return ParseWithOptions(source, DefaultParseOptions)
}

// ParseWithOptions parses a KDL document from source with the given
// options
func ParseWithOptions(source []byte, opts ParseOptions) (*document.Document, error) {
	s := tokenizer.NewSlice(source)
	defer s.Close()

	doc := document.NewWithCapacity(nodeEstimate(len(source)), opts.MaxPoolBytes)
	doc.SetDuplicatePolicy(docPolicy(opts.Duplicates))
	if !opts.CopyStrings {
		doc.SetSource(source)
	}

	if err := parser.BuildTree(s, doc, treeOptions(opts)); err != nil {
		return nil, convertError(err)
	}
	return doc, nil
}

// ParseReader parses a KDL document streamed from r. Input saved as
// UTF-16 (detected by its byte-order mark) is transcoded to UTF-8
// before tokenization. Strings are always copied on this path, since
// the read buffer is recycled.
func ParseReader(r io.Reader, opts ParseOptions) (*document.Document, error) {
	s := tokenizer.NewBuffer(decodeReader(r), makeBuffer(opts), opts.MaxDocumentSize)
	defer s.Close()

	doc := document.NewWithCapacity(32, opts.MaxPoolBytes)
	doc.SetDuplicatePolicy(docPolicy(opts.Duplicates))

	topts := treeOptions(opts)
	topts.CopyStrings = true
	if err := parser.BuildTree(s, doc, topts); err != nil {
		return nil, pkgerrors.Wrap(convertError(err), "parsing from reader")
	}
	return doc, nil
}

// Serialize writes the canonical KDL representation of doc to w
func Serialize(doc *document.Document, w io.Writer, opts SerializeOptions) error {
	g := generator.NewOptions(w, generator.Options{Indent: opts.Indent})
	return g.Generate(doc)
}

// SerializeToString returns the canonical KDL representation of doc
func SerializeToString(doc *document.Document, opts SerializeOptions) []byte {
	var b bytes.Buffer
	// a bytes.Buffer writer cannot fail
	_ = Serialize(doc, &b, opts)
	return b.Bytes()
}

// NodeString returns the canonical KDL representation of a single node
// and its children
func NodeString(doc *document.Document, h document.NodeHandle) string {
	var b bytes.Buffer
	g := generator.New(&b)
	_ = g.GenerateNode(doc, h)
	return b.String()
}

// decodeReader wraps r so that UTF-16 input (either endianness,
// detected by its BOM) is transcoded to UTF-8; plain UTF-8 passes
// through untouched
func decodeReader(r io.Reader) io.Reader {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return transform.NewReader(r, dec)
}

func makeBuffer(opts ParseOptions) []byte {
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultParseOptions.BufferSize
	}
	return make([]byte, size)
}

// docPolicy maps the parse-level duplicate policy onto the document's
// effective-value reduction; DuplicateError never reaches reduction,
// since the parse fails first
func docPolicy(p DuplicatePolicy) document.DuplicatePolicy {
	if p == DuplicateUseFirst {
		return document.DuplicateUseFirst
	}
	return document.DuplicateUseLast
}

func treeOptions(opts ParseOptions) parser.TreeOptions {
	return parser.TreeOptions{
		Options: parser.Options{
			MaxDepth:    opts.MaxDepth,
			CopyStrings: opts.CopyStrings,
		},
		StrictProperties: opts.Duplicates == DuplicateError,
	}
}

// nodeEstimate guesses a node-count capacity from the source size
func nodeEstimate(sourceLen int) int {
	n := sourceLen / 32
	if n < 8 {
		n = 8
	}
	if n > 4096 {
		n = 4096
	}
	return n
}
