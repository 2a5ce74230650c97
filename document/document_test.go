package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustIntern is a test helper that interns s and fails on error
func mustIntern(t *testing.T, d *Document, s string) StringRef {
	t.Helper()
	ref, err := d.InternString(s)
	require.NoError(t, err)
	return ref
}

func TestAddNodeAndLinks(t *testing.T) {
	d := New()

	parent, err := d.AddNode(mustIntern(t, d, "parent"), EmptyRef, NilNode, Range{}, Range{})
	require.NoError(t, err)
	c1, err := d.AddNode(mustIntern(t, d, "child1"), EmptyRef, parent, Range{}, Range{})
	require.NoError(t, err)
	c2, err := d.AddNode(mustIntern(t, d, "child2"), EmptyRef, parent, Range{}, Range{})
	require.NoError(t, err)

	assert.Equal(t, []NodeHandle{parent}, d.Roots())
	assert.Equal(t, parent, d.Parent(c1))
	assert.Equal(t, parent, d.Parent(c2))
	assert.Equal(t, c1, d.FirstChild(parent))
	assert.Equal(t, c2, d.NextSibling(c1))
	assert.Equal(t, NilNode, d.NextSibling(c2))
	assert.Equal(t, "parent", d.String(d.Name(parent)))

	assert.Equal(t, []NodeHandle{c1, c2}, d.ChildSlice(parent))
}

func TestAddNodeRangeValidation(t *testing.T) {
	d := New()
	_, err := d.AddNode(EmptyRef, EmptyRef, NilNode, Range{Start: 0, Count: 1}, Range{})
	require.ErrorIs(t, err, ErrRangeBounds)

	_, err = d.AddNode(EmptyRef, EmptyRef, NodeHandle(7), Range{}, Range{})
	require.Error(t, err)
}

func TestArgumentsAndProperties(t *testing.T) {
	d := New()

	d.AddArgument(TypedValue{Value: IntValue(1)})
	d.AddArgument(TypedValue{Value: IntValue(2)})
	key := mustIntern(t, d, "key")
	d.AddProperty(Property{Name: key, Value: IntValue(3)})

	h, err := d.AddNode(mustIntern(t, d, "node"), EmptyRef, NilNode,
		Range{Start: 0, Count: 2}, Range{Start: 0, Count: 1})
	require.NoError(t, err)

	args := d.Arguments(h)
	require.Len(t, args, 2)
	assert.Equal(t, int64(1), args[0].Value.Int)
	assert.Equal(t, int64(2), args[1].Value.Int)

	props := d.Properties(h)
	require.Len(t, props, 1)
	assert.Equal(t, "key", d.String(props[0].Name))
}

func TestEffectiveProperties(t *testing.T) {
	d := New()

	zebra := mustIntern(t, d, "zebra")
	apple := mustIntern(t, d, "apple")
	d.AddProperty(Property{Name: zebra, Value: IntValue(1)})
	d.AddProperty(Property{Name: apple, Value: IntValue(2)})
	d.AddProperty(Property{Name: zebra, Value: IntValue(9)})

	h, err := d.AddNode(mustIntern(t, d, "n"), EmptyRef, NilNode,
		Range{}, Range{Start: 0, Count: 3})
	require.NoError(t, err)

	// storage keeps every occurrence
	require.Len(t, d.Properties(h), 3)

	// the effective view applies rightmost-wins in first-appearance order
	eff := d.EffectiveProperties(h)
	require.Len(t, eff, 2)
	assert.Equal(t, "zebra", d.String(eff[0].Name))
	assert.Equal(t, int64(9), eff[0].Value.Int)
	assert.Equal(t, "apple", d.String(eff[1].Name))
	assert.Equal(t, int64(2), eff[1].Value.Int)
}

func TestEffectivePropertiesUseFirst(t *testing.T) {
	d := New()
	d.SetDuplicatePolicy(DuplicateUseFirst)

	key := mustIntern(t, d, "key")
	d.AddProperty(Property{Name: key, Value: IntValue(1)})
	d.AddProperty(Property{Name: key, Value: IntValue(2)})

	h, err := d.AddNode(mustIntern(t, d, "n"), EmptyRef, NilNode,
		Range{}, Range{Start: 0, Count: 2})
	require.NoError(t, err)

	eff := d.EffectiveProperties(h)
	require.Len(t, eff, 1)
	assert.Equal(t, int64(1), eff[0].Value.Int)
}

func TestBorrowedStrings(t *testing.T) {
	src := []byte("hello world")
	d := New()
	d.SetSource(src)

	ref := MakeBorrowedRef(6, 5)
	assert.Equal(t, "world", d.String(ref))

	// out-of-range borrowed refs resolve to nothing
	assert.Nil(t, d.StringBytes(MakeBorrowedRef(8, 10)))
}

func buildDoc(t *testing.T, names ...string) *Document {
	t.Helper()
	d := New()
	for _, name := range names {
		_, err := d.AddNode(mustIntern(t, d, name), EmptyRef, NilNode, Range{Start: d.ArgCount()}, Range{Start: d.PropCount()})
		require.NoError(t, err)
	}
	return d
}

func TestMergeConcatenatesRoots(t *testing.T) {
	d1 := buildDoc(t, "a", "b")
	d2 := buildDoc(t, "c")
	d3 := buildDoc(t, "d", "e")

	m, err := Merge([]*Document{d1, d2, d3})
	require.NoError(t, err)

	roots := m.Roots()
	require.Len(t, roots, 5)
	want := []string{"a", "b", "c", "d", "e"}
	for i, r := range roots {
		assert.Equal(t, want[i], m.String(m.Name(r)))
	}
}

func TestMergeRemapsEverything(t *testing.T) {
	d1 := New()
	d1.AddArgument(TypedValue{Value: IntValue(1)})
	h1, err := d1.AddNode(mustIntern(t, d1, "first"), EmptyRef, NilNode,
		Range{Start: 0, Count: 1}, Range{})
	require.NoError(t, err)
	_, err = d1.AddNode(mustIntern(t, d1, "kid"), EmptyRef, h1, Range{Start: 1}, Range{})
	require.NoError(t, err)

	d2 := New()
	key := mustIntern(t, d2, "k")
	sv := mustIntern(t, d2, "v")
	d2.AddProperty(Property{Name: key, Value: StringValue(sv)})
	_, err = d2.AddNode(mustIntern(t, d2, "second"), mustIntern(t, d2, "ann"), NilNode,
		Range{}, Range{Start: 0, Count: 1})
	require.NoError(t, err)

	m, err := Merge([]*Document{d1, d2})
	require.NoError(t, err)

	roots := m.Roots()
	require.Len(t, roots, 2)

	first := roots[0]
	assert.Equal(t, "first", m.String(m.Name(first)))
	args := m.Arguments(first)
	require.Len(t, args, 1)
	assert.Equal(t, int64(1), args[0].Value.Int)
	kids := m.ChildSlice(first)
	require.Len(t, kids, 1)
	assert.Equal(t, "kid", m.String(m.Name(kids[0])))

	second := roots[1]
	assert.Equal(t, "second", m.String(m.Name(second)))
	assert.Equal(t, "ann", m.String(m.TypeAnnotation(second)))
	props := m.Properties(second)
	require.Len(t, props, 1)
	assert.Equal(t, "k", m.String(props[0].Name))
	assert.Equal(t, "v", m.String(props[0].Value.Str))
}

func TestMergeCopiesBorrowedStrings(t *testing.T) {
	src := []byte("borrowed")
	d := New()
	d.SetSource(src)
	_, err := d.AddNode(MakeBorrowedRef(0, 8), EmptyRef, NilNode, Range{}, Range{})
	require.NoError(t, err)

	m, err := Merge([]*Document{d})
	require.NoError(t, err)

	// the merged document has no source; the name must live in its pool
	root := m.Roots()[0]
	ref := m.Name(root)
	assert.False(t, ref.Borrowed())
	assert.Equal(t, "borrowed", m.String(ref))
}

func TestSiblingChainContainsEachNodeOnce(t *testing.T) {
	d := New()
	parent, err := d.AddNode(mustIntern(t, d, "p"), EmptyRef, NilNode, Range{}, Range{})
	require.NoError(t, err)

	var kids []NodeHandle
	for i := 0; i < 10; i++ {
		h, err := d.AddNode(mustIntern(t, d, "c"), EmptyRef, parent, Range{}, Range{})
		require.NoError(t, err)
		kids = append(kids, h)
	}

	seen := map[NodeHandle]int{}
	it := d.Children(parent)
	for c, ok := it.Next(); ok; c, ok = it.Next() {
		seen[c]++
	}
	require.Len(t, seen, 10)
	for _, k := range kids {
		assert.Equal(t, 1, seen[k])
	}
}
