package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sblinch/kdl-go/v2/document"
	"github.com/sblinch/kdl-go/v2/internal/tokenizer"
)

func newTestRecognizer(input string) *Recognizer {
	s := tokenizer.NewSlice([]byte(input))
	doc := document.New()
	return NewRecognizer(s, doc, Options{CopyStrings: true})
}

func collectEvents(t *testing.T, input string) []Event {
	t.Helper()
	r := newTestRecognizer(input)
	var events []Event
	for r.Scan() {
		events = append(events, r.Event())
	}
	require.NoError(t, r.Err())
	return events
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestEventsSimpleNode(t *testing.T) {
	r := newTestRecognizer("node 42")
	var events []Event
	for r.Scan() {
		events = append(events, r.Event())
	}
	require.NoError(t, r.Err())

	require.Len(t, events, 3)
	assert.Equal(t, EventStartNode, events[0].Kind)
	assert.Equal(t, "node", r.Document().String(events[0].Name))
	assert.Equal(t, EventArgument, events[1].Kind)
	assert.Equal(t, document.KindInt, events[1].Arg.Value.Kind)
	assert.Equal(t, int64(42), events[1].Arg.Value.Int)
	assert.Equal(t, EventEndNode, events[2].Kind)
}

func TestEventsNodeWithChildEndOrdering(t *testing.T) {
	// the parent's end_node arrives at the close brace, after the
	// child's, with no stray end_node for the parent's header
	events := collectEvents(t, "node { child }")
	assert.Equal(t, []EventKind{
		EventStartNode, // node
		EventStartNode, // child
		EventEndNode,   // child
		EventEndNode,   // node
	}, kinds(events))
}

func TestEventsBalanced(t *testing.T) {
	events := collectEvents(t, `
a 1 {
	b 2 {
		c 3
	}
	d
}
e
`)
	starts, ends := 0, 0
	depth := 0
	for _, ev := range events {
		switch ev.Kind {
		case EventStartNode:
			starts++
			depth++
		case EventEndNode:
			ends++
			depth--
		}
		require.GreaterOrEqual(t, depth, 0)
	}
	assert.Equal(t, starts, ends)
	assert.Equal(t, 5, starts)
}

func TestEventsProperty(t *testing.T) {
	r := newTestRecognizer(`node key="value" n=7`)
	var events []Event
	for r.Scan() {
		events = append(events, r.Event())
	}
	require.NoError(t, r.Err())

	require.Len(t, events, 4)
	assert.Equal(t, EventProperty, events[1].Kind)
	assert.Equal(t, "key", r.Document().String(events[1].Prop.Name))
	assert.Equal(t, "value", r.Document().String(events[1].Prop.Value.Str))
	assert.Equal(t, EventProperty, events[2].Kind)
	assert.Equal(t, int64(7), events[2].Prop.Value.Int)
}

func TestEventsTypeAnnotations(t *testing.T) {
	r := newTestRecognizer(`(mytype)node (int)42 key=(u8)1`)
	var events []Event
	for r.Scan() {
		events = append(events, r.Event())
	}
	require.NoError(t, r.Err())
	doc := r.Document()

	require.Len(t, events, 4)
	assert.Equal(t, "mytype", doc.String(events[0].Type))
	assert.Equal(t, "int", doc.String(events[1].Arg.Type))
	assert.Equal(t, "u8", doc.String(events[2].Prop.Type))
}

func TestEventsAnnotationOnPropertyKeyRejected(t *testing.T) {
	r := newTestRecognizer(`node (ann)key=1`)
	for r.Scan() {
	}
	require.Error(t, r.Err())
}

func TestEventsSlashDashProducesNothing(t *testing.T) {
	events := collectEvents(t, "/-commented 1 2 {\n inner\n}\nvisible")
	require.Len(t, events, 2)
	assert.Equal(t, EventStartNode, events[0].Kind)
	assert.Equal(t, EventEndNode, events[1].Kind)
}

func TestEventsSlashDashEntry(t *testing.T) {
	r := newTestRecognizer("node /-skipped 42")
	var events []Event
	for r.Scan() {
		events = append(events, r.Event())
	}
	require.NoError(t, r.Err())

	require.Len(t, events, 3)
	assert.Equal(t, EventArgument, events[1].Kind)
	assert.Equal(t, int64(42), events[1].Arg.Value.Int)
}

func TestEventsSlashDashChildrenBlock(t *testing.T) {
	events := collectEvents(t, "node /-{\n inner\n}")
	assert.Equal(t, []EventKind{EventStartNode, EventEndNode}, kinds(events))
}

func TestEventsSlashDashNothingToComment(t *testing.T) {
	for _, in := range []string{"/-", "node /-", "a { /- }"} {
		r := newTestRecognizer(in)
		for r.Scan() {
		}
		require.Error(t, r.Err(), "%q", in)
	}
}

func TestEventsSlashDashMissingWhitespaceInDiscard(t *testing.T) {
	// the discarded form is held to the same whitespace rule as the
	// live form
	r := newTestRecognizer("/-node/-42")
	for r.Scan() {
	}
	err := r.Err()
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, CodeUnexpectedToken, pe.Code)

	// with whitespace the nested slashdash is fine
	events := collectEvents(t, "/-node /-42\nvisible")
	require.Len(t, events, 2)
	assert.Equal(t, EventStartNode, events[0].Kind)
}

func TestEventsMissingWhitespace(t *testing.T) {
	r := newTestRecognizer(`node"arg"`)
	for r.Scan() {
	}
	err := r.Err()
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, CodeUnexpectedToken, pe.Code)
}

func TestEventsUnclosedChildrenBlock(t *testing.T) {
	r := newTestRecognizer("node {\n child\n")
	for r.Scan() {
	}
	err := r.Err()
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, CodeUnexpectedEOF, pe.Code)
}

func TestEventsEntriesAfterChildrenRejected(t *testing.T) {
	r := newTestRecognizer("node { child } extra")
	for r.Scan() {
	}
	require.Error(t, r.Err())
}

func TestEventsSlashDashBlockAfterChildren(t *testing.T) {
	events := collectEvents(t, "node { child } /-{ other }")
	assert.Equal(t, []EventKind{
		EventStartNode, EventStartNode, EventEndNode, EventEndNode,
	}, kinds(events))
}

func TestEventsNestingTooDeep(t *testing.T) {
	in := ""
	for i := 0; i < 20; i++ {
		in += "n {\n"
	}
	s := tokenizer.NewSlice([]byte(in))
	r := NewRecognizer(s, document.New(), Options{MaxDepth: 8, CopyStrings: true})
	for r.Scan() {
	}
	err := r.Err()
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, CodeNestingTooDeep, pe.Code)
}

func TestEventsSlashDashDepthCounts(t *testing.T) {
	// slashdashed blocks charge depth like real ones
	in := "/-a {\n b {\n  c\n }\n}\n"
	s := tokenizer.NewSlice([]byte(in))
	r := NewRecognizer(s, document.New(), Options{MaxDepth: 1, CopyStrings: true})
	for r.Scan() {
	}
	err := r.Err()
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, CodeNestingTooDeep, pe.Code)
}

func TestEventsBareKeywordRejected(t *testing.T) {
	for _, in := range []string{"node true", "node x=false", "null"} {
		r := newTestRecognizer(in)
		for r.Scan() {
		}
		require.Error(t, r.Err(), "%q", in)
	}
}

func buildTestTree(t *testing.T, input string) *document.Document {
	t.Helper()
	s := tokenizer.NewSlice([]byte(input))
	doc := document.New()
	err := BuildTree(s, doc, TreeOptions{Options: Options{CopyStrings: true}})
	require.NoError(t, err)
	return doc
}

func TestTreeSimple(t *testing.T) {
	doc := buildTestTree(t, "node 42 key=7")

	roots := doc.Roots()
	require.Len(t, roots, 1)
	h := roots[0]
	assert.Equal(t, "node", doc.String(doc.Name(h)))

	args := doc.Arguments(h)
	require.Len(t, args, 1)
	assert.Equal(t, int64(42), args[0].Value.Int)

	props := doc.Properties(h)
	require.Len(t, props, 1)
	assert.Equal(t, "key", doc.String(props[0].Name))
	assert.Equal(t, int64(7), props[0].Value.Int)
}

func TestTreeChildren(t *testing.T) {
	doc := buildTestTree(t, "parent {\n    child1\n    child2\n}")

	roots := doc.Roots()
	require.Len(t, roots, 1)
	kids := doc.ChildSlice(roots[0])
	require.Len(t, kids, 2)
	assert.Equal(t, "child1", doc.String(doc.Name(kids[0])))
	assert.Equal(t, "child2", doc.String(doc.Name(kids[1])))
	assert.Equal(t, roots[0], doc.Parent(kids[0]))
}

func TestTreeArgRangesDontLeakAcrossNesting(t *testing.T) {
	doc := buildTestTree(t, "a 1 2 {\n b 3\n}")

	a := doc.Roots()[0]
	args := doc.Arguments(a)
	require.Len(t, args, 2)
	assert.Equal(t, int64(1), args[0].Value.Int)
	assert.Equal(t, int64(2), args[1].Value.Int)

	b := doc.ChildSlice(a)[0]
	bargs := doc.Arguments(b)
	require.Len(t, bargs, 1)
	assert.Equal(t, int64(3), bargs[0].Value.Int)
}

func TestTreeDuplicatePropertiesStored(t *testing.T) {
	doc := buildTestTree(t, "node a=1 a=2")
	h := doc.Roots()[0]
	require.Len(t, doc.Properties(h), 2)

	eff := doc.EffectiveProperties(h)
	require.Len(t, eff, 1)
	assert.Equal(t, int64(2), eff[0].Value.Int)
}

func TestTreeStrictDuplicateProperties(t *testing.T) {
	s := tokenizer.NewSlice([]byte("node a=1 a=2"))
	err := BuildTree(s, document.New(), TreeOptions{
		Options:          Options{CopyStrings: true},
		StrictProperties: true,
	})
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, CodeDuplicateProperty, pe.Code)
}

func TestTreeEmptyInput(t *testing.T) {
	doc := buildTestTree(t, "")
	assert.Zero(t, doc.NumNodes())
	assert.Empty(t, doc.Roots())

	doc = buildTestTree(t, "\n\n  // only comments\n")
	assert.Zero(t, doc.NumNodes())
}

func TestTreeSemicolonTerminators(t *testing.T) {
	doc := buildTestTree(t, "a; b; c")
	require.Len(t, doc.Roots(), 3)
}

func TestTreeBorrowedStrings(t *testing.T) {
	source := []byte(`node "quoted" #"raw"#`)
	s := tokenizer.NewSlice(source)
	doc := document.New()
	doc.SetSource(source)
	err := BuildTree(s, doc, TreeOptions{Options: Options{CopyStrings: false}})
	require.NoError(t, err)

	h := doc.Roots()[0]
	name := doc.Name(h)
	assert.True(t, name.Borrowed())
	assert.Equal(t, "node", doc.String(name))

	args := doc.Arguments(h)
	require.Len(t, args, 2)
	assert.True(t, args[0].Value.Str.Borrowed())
	assert.Equal(t, "quoted", doc.String(args[0].Value.Str))
	assert.True(t, args[1].Value.Str.Borrowed())
	assert.Equal(t, "raw", doc.String(args[1].Value.Str))
}
