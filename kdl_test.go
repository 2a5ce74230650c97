package kdl

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sblinch/kdl-go/v2/document"
)

func mustParse(t *testing.T, input string) *document.Document {
	t.Helper()
	doc, err := Parse([]byte(input))
	require.NoError(t, err)
	return doc
}

func TestParseScenarioArgument(t *testing.T) {
	doc := mustParse(t, "node 42")

	roots := doc.Roots()
	require.Len(t, roots, 1)
	h := roots[0]
	assert.Equal(t, "node", doc.String(doc.Name(h)))

	args := doc.Arguments(h)
	require.Len(t, args, 1)
	assert.Equal(t, document.KindInt, args[0].Value.Kind)
	assert.Equal(t, int64(42), args[0].Value.Int)
	assert.Empty(t, doc.Properties(h))
	assert.Equal(t, document.NilNode, doc.FirstChild(h))
}

func TestParseScenarioProperty(t *testing.T) {
	doc := mustParse(t, "node key=42")

	h := doc.Roots()[0]
	assert.Empty(t, doc.Arguments(h))
	props := doc.Properties(h)
	require.Len(t, props, 1)
	assert.Equal(t, "key", doc.String(props[0].Name))
	assert.Equal(t, int64(42), props[0].Value.Int)
}

func TestParseScenarioQuotedNameAndEscape(t *testing.T) {
	doc := mustParse(t, `"quoted name" "hello\nworld"`)

	h := doc.Roots()[0]
	assert.Equal(t, "quoted name", doc.String(doc.Name(h)))
	args := doc.Arguments(h)
	require.Len(t, args, 1)
	assert.Equal(t, "hello\nworld", doc.String(args[0].Value.Str))
}

func TestParseScenarioChildren(t *testing.T) {
	doc := mustParse(t, "parent {\n    child1\n    child2\n}")

	h := doc.Roots()[0]
	kids := doc.ChildSlice(h)
	require.Len(t, kids, 2)
	assert.Equal(t, "child1", doc.String(doc.Name(kids[0])))
	assert.Equal(t, "child2", doc.String(doc.Name(kids[1])))
}

func TestParseScenarioSlashDash(t *testing.T) {
	doc := mustParse(t, "/-commented\nvisible")

	roots := doc.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "visible", doc.String(doc.Name(roots[0])))
}

func TestParseScenarioKeywords(t *testing.T) {
	doc := mustParse(t, "node #true #false #null #inf #-inf #nan")

	args := doc.Arguments(doc.Roots()[0])
	require.Len(t, args, 6)
	assert.Equal(t, document.KindBool, args[0].Value.Kind)
	assert.True(t, args[0].Value.Bool)
	assert.Equal(t, document.KindBool, args[1].Value.Kind)
	assert.False(t, args[1].Value.Bool)
	assert.Equal(t, document.KindNull, args[2].Value.Kind)
	assert.Equal(t, document.KindPosInf, args[3].Value.Kind)
	assert.Equal(t, document.KindNegInf, args[4].Value.Kind)
	assert.Equal(t, document.KindNaN, args[5].Value.Kind)
}

func TestParseScenarioMultiline(t *testing.T) {
	doc := mustParse(t, "node \"\"\"\n    hello\n    world\n    \"\"\"")

	args := doc.Arguments(doc.Roots()[0])
	require.Len(t, args, 1)
	assert.Equal(t, "hello\nworld", doc.String(args[0].Value.Str))
}

func TestParseScenarioTypeAnnotations(t *testing.T) {
	doc := mustParse(t, "(mytype)node (int)42")

	h := doc.Roots()[0]
	assert.Equal(t, "mytype", doc.String(doc.TypeAnnotation(h)))
	args := doc.Arguments(h)
	require.Len(t, args, 1)
	assert.Equal(t, "int", doc.String(args[0].Type))
	assert.Equal(t, int64(42), args[0].Value.Int)
}

func TestParseScenarioRadix(t *testing.T) {
	doc := mustParse(t, "node 0xFF 0o77 0b1010")

	args := doc.Arguments(doc.Roots()[0])
	require.Len(t, args, 3)
	assert.Equal(t, int64(255), args[0].Value.Int)
	assert.Equal(t, int64(63), args[1].Value.Int)
	assert.Equal(t, int64(10), args[2].Value.Int)
}

func TestParseBoundaryBehaviors(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		doc := mustParse(t, "")
		assert.Zero(t, doc.NumNodes())
	})

	t.Run("lone identifier", func(t *testing.T) {
		doc := mustParse(t, "node")
		h := doc.Roots()[0]
		assert.Empty(t, doc.Arguments(h))
		assert.Empty(t, doc.Properties(h))
		assert.Equal(t, document.NilNode, doc.FirstChild(h))
	})

	t.Run("leading BOM accepted", func(t *testing.T) {
		doc := mustParse(t, "\uFEFFnode")
		assert.Equal(t, "node", doc.String(doc.Name(doc.Roots()[0])))
	})

	t.Run("interior BOM rejected", func(t *testing.T) {
		_, err := Parse([]byte("node \uFEFFx"))
		require.Error(t, err)
	})

	t.Run("crlf and bare cr newlines", func(t *testing.T) {
		doc := mustParse(t, "a\r\nb\rc")
		require.Len(t, doc.Roots(), 3)
	})

	t.Run("single-line triple quote rejected", func(t *testing.T) {
		_, err := Parse([]byte(`node """hello"""`))
		require.Error(t, err)
	})

	t.Run("bare keywords rejected", func(t *testing.T) {
		for _, in := range []string{"node true", "node false", "node null", "node inf", "node nan"} {
			_, err := Parse([]byte(in))
			require.Error(t, err, "%q", in)
			var pe *ParseError
			require.ErrorAs(t, err, &pe, "%q", in)
			assert.Equal(t, UnexpectedToken, pe.Code, "%q", in)
		}
	})

	t.Run("malformed numbers rejected", func(t *testing.T) {
		for _, in := range []string{"node .5", "node 0n", "node 123abc"} {
			_, err := Parse([]byte(in))
			require.Error(t, err, "%q", in)
		}
	})

	t.Run("entries after children rejected", func(t *testing.T) {
		_, err := Parse([]byte("node { c } 1"))
		require.Error(t, err)
		_, err = Parse([]byte("node { c } k=1"))
		require.Error(t, err)
	})

	t.Run("slashdash with nothing rejected", func(t *testing.T) {
		_, err := Parse([]byte("/-"))
		require.Error(t, err)
		_, err = Parse([]byte("a { /- }"))
		require.Error(t, err)
	})
}

func TestParseNestingLimit(t *testing.T) {
	deep := strings.Repeat("n {\n", 300) + strings.Repeat("}\n", 300)
	_, err := Parse([]byte(deep))
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, NestingTooDeep, pe.Code)

	opts := DefaultParseOptions
	opts.MaxDepth = 400
	_, err = ParseWithOptions([]byte(deep), opts)
	require.NoError(t, err)
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse([]byte("node 1\nbroken ="))
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
}

func TestParseDuplicatePolicy(t *testing.T) {
	opts := DefaultParseOptions
	opts.Duplicates = DuplicateError
	_, err := ParseWithOptions([]byte("node a=1 a=2"), opts)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, DuplicateProperty, pe.Code)

	// the default stores both and reduces to the rightmost on output
	doc := mustParse(t, "node a=1 a=2")
	require.Len(t, doc.Properties(doc.Roots()[0]), 2)
	assert.Equal(t, "node a=2\n", string(SerializeToString(doc, DefaultSerializeOptions)))

	// use-first keeps the leftmost occurrence instead
	opts = DefaultParseOptions
	opts.Duplicates = DuplicateUseFirst
	doc, err = ParseWithOptions([]byte("node a=1 a=2"), opts)
	require.NoError(t, err)
	require.Len(t, doc.Properties(doc.Roots()[0]), 2)
	assert.Equal(t, "node a=1\n", string(SerializeToString(doc, DefaultSerializeOptions)))
}

func TestParseReader(t *testing.T) {
	doc, err := ParseReader(strings.NewReader("node 1 {\n child\n}"), DefaultParseOptions)
	require.NoError(t, err)
	h := doc.Roots()[0]
	assert.Equal(t, "node", doc.String(doc.Name(h)))
	require.Len(t, doc.ChildSlice(h), 1)
}

func TestParseReaderUTF16(t *testing.T) {
	// UTF-16LE with BOM: transcoded to UTF-8 before tokenization
	text := "node 42"
	buf := []byte{0xFF, 0xFE}
	for _, r := range text {
		buf = append(buf, byte(r), 0)
	}
	doc, err := ParseReader(bytes.NewReader(buf), DefaultParseOptions)
	require.NoError(t, err)
	h := doc.Roots()[0]
	assert.Equal(t, "node", doc.String(doc.Name(h)))
}

func TestSerializeRoundTripIdempotent(t *testing.T) {
	inputs := []string{
		"node 42",
		"node key=42 other=#true",
		`"quoted name" "hello\nworld"`,
		"parent {\n    child1\n    child2 1 2 3\n}",
		"node #true #false #null #inf #-inf #nan",
		"(mytype)node (int)42 k=(u8)1",
		"node 0xFF 0o77 0b1010",
		"node 1.5 2.0 1e10 1.5E-3 1e999",
		"a; b; c",
		"node a=1 b=2 a=3",
		"deep {\n one {\n  two {\n   three\n  }\n }\n}",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			d1 := mustParse(t, in)
			s1 := SerializeToString(d1, DefaultSerializeOptions)

			d2, err := Parse(s1)
			require.NoError(t, err, "serialized form: %q", s1)
			s2 := SerializeToString(d2, DefaultSerializeOptions)

			assert.Equal(t, string(s1), string(s2))
		})
	}
}

func TestSerializeFloatRoundTripBitExact(t *testing.T) {
	inputs := []string{"node 1e10", "node 1.5E-3", "node 1e999", "node -1e999", "node 1e-999", "node #nan", "node #inf"}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			d1 := mustParse(t, in)
			v1 := d1.Arguments(d1.Roots()[0])[0].Value

			out := SerializeToString(d1, DefaultSerializeOptions)
			d2, err := Parse(out)
			require.NoError(t, err, "serialized form: %q", out)
			v2 := d2.Arguments(d2.Roots()[0])[0].Value

			require.Equal(t, v1.Kind, v2.Kind)
			if v1.Kind == document.KindFloat {
				assert.Equal(t, math.Float64bits(v1.Float), math.Float64bits(v2.Float))
			}
		})
	}
}

func TestNodeString(t *testing.T) {
	doc := mustParse(t, "a\nb 1 {\n c\n}")
	got := NodeString(doc, doc.Roots()[1])
	assert.Equal(t, "b 1 {\n    c\n}\n", got)
}

func TestSerializeCustomIndent(t *testing.T) {
	doc := mustParse(t, "a {\n b\n}")
	var buf bytes.Buffer
	require.NoError(t, Serialize(doc, &buf, SerializeOptions{Indent: "\t"}))
	assert.Equal(t, "a {\n\tb\n}\n", buf.String())
}

func TestParseBorrowedStrings(t *testing.T) {
	source := []byte("node arg")
	opts := DefaultParseOptions
	opts.CopyStrings = false
	doc, err := ParseWithOptions(source, opts)
	require.NoError(t, err)

	h := doc.Roots()[0]
	assert.True(t, doc.Name(h).Borrowed())
	assert.Equal(t, "node", doc.String(doc.Name(h)))
}
