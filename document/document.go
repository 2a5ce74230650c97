// Package document implements the in-memory representation of a KDL
// document: a structure-of-arrays node store addressed by handles, flat
// argument and property pools, and an interning string pool.
package document

import (
	"errors"
	"fmt"
)

// NodeHandle is an opaque index into a Document's node storage
type NodeHandle int32

// NilNode is the absent-node sentinel used for parent and sibling links
const NilNode = NodeHandle(-1)

// Valid returns true if h refers to a node
func (h NodeHandle) Valid() bool {
	return h >= 0
}

// DuplicatePolicy selects which occurrence of a repeated property name
// wins when reducing stored properties to effective values. Storage
// always keeps every occurrence; the policy applies only at read time.
type DuplicatePolicy uint8

const (
	// DuplicateUseLast keeps the rightmost occurrence (the default)
	DuplicateUseLast DuplicatePolicy = iota
	// DuplicateUseFirst keeps the leftmost occurrence
	DuplicateUseFirst
)

// Range addresses a contiguous run of entries in the argument or
// property pool
type Range struct {
	Start uint32
	Count uint32
}

// End returns the index one past the last entry in the range
func (r Range) End() uint32 {
	return r.Start + r.Count
}

var (
	errBadHandle = errors.New("invalid node handle")
	// ErrRangeBounds is returned when a Range does not lie within its pool
	ErrRangeBounds = errors.New("range exceeds pool length")
)

// Document is the structure-of-arrays store for a parsed KDL document.
// Each node field lives in its own column indexed by NodeHandle; string
// payloads live in the owned pool or, for borrowed references, in the
// retained source buffer. A Document is populated by a single parse
// pass and released as one unit.
type Document struct {
	names       []StringRef
	typeAnnots  []StringRef
	parents     []NodeHandle
	firstChild  []NodeHandle
	lastChild   []NodeHandle
	nextSibling []NodeHandle
	argRanges   []Range
	propRanges  []Range

	roots []NodeHandle
	pool  stringPool
	args  []TypedValue
	props []Property

	// source is the external buffer borrowed StringRefs resolve
	// against; nil unless the document was parsed with string copying
	// disabled
	source []byte

	// dupPolicy selects the winning occurrence when a property name
	// repeats on a node
	dupPolicy DuplicatePolicy
}

// New creates a new empty Document with the default pool cap
func New() *Document {
	return NewWithCapacity(32, DefaultMaxPoolBytes)
}

// NewWithCapacity creates a new empty Document preallocated for
// nodeCapacity nodes, with the given string pool byte cap
func NewWithCapacity(nodeCapacity, maxPoolBytes int) *Document {
	return &Document{
		names:       make([]StringRef, 0, nodeCapacity),
		typeAnnots:  make([]StringRef, 0, nodeCapacity),
		parents:     make([]NodeHandle, 0, nodeCapacity),
		firstChild:  make([]NodeHandle, 0, nodeCapacity),
		lastChild:   make([]NodeHandle, 0, nodeCapacity),
		nextSibling: make([]NodeHandle, 0, nodeCapacity),
		argRanges:   make([]Range, 0, nodeCapacity),
		propRanges:  make([]Range, 0, nodeCapacity),
		roots:       make([]NodeHandle, 0, 8),
		pool:        newStringPool(maxPoolBytes),
	}
}

// SetSource attaches the source buffer that borrowed StringRefs in this
// document resolve against. The caller guarantees the buffer outlives
// the document.
func (d *Document) SetSource(src []byte) {
	d.source = src
}

// Source returns the attached source buffer, if any
func (d *Document) Source() []byte {
	return d.source
}

// SetDuplicatePolicy selects which occurrence of a repeated property
// name wins in EffectiveProperties
func (d *Document) SetDuplicatePolicy(p DuplicatePolicy) {
	d.dupPolicy = p
}

// DuplicatePolicy returns the document's duplicate-property policy
func (d *Document) DuplicatePolicy() DuplicatePolicy {
	return d.dupPolicy
}

// NumNodes returns the number of nodes in the document
func (d *Document) NumNodes() int {
	return len(d.names)
}

// Roots returns the document's top-level nodes in source order. The
// returned slice is owned by the document and must not be modified.
func (d *Document) Roots() []NodeHandle {
	return d.roots
}

// AddNode appends a node with the given name, type annotation, and
// argument/property ranges to the document, links it under parent (or
// into the roots list if parent is NilNode), and returns its handle.
func (d *Document) AddNode(name, typeAnnot StringRef, parent NodeHandle, args, props Range) (NodeHandle, error) {
	if int(args.End()) > len(d.args) {
		return NilNode, fmt.Errorf("adding node: argument %w", ErrRangeBounds)
	}
	if int(props.End()) > len(d.props) {
		return NilNode, fmt.Errorf("adding node: property %w", ErrRangeBounds)
	}
	if parent != NilNode && int(parent) >= len(d.names) {
		return NilNode, fmt.Errorf("adding node: parent %w", errBadHandle)
	}

	h := NodeHandle(len(d.names))
	d.names = append(d.names, name)
	d.typeAnnots = append(d.typeAnnots, typeAnnot)
	d.parents = append(d.parents, NilNode)
	d.firstChild = append(d.firstChild, NilNode)
	d.lastChild = append(d.lastChild, NilNode)
	d.nextSibling = append(d.nextSibling, NilNode)
	d.argRanges = append(d.argRanges, args)
	d.propRanges = append(d.propRanges, props)

	if parent == NilNode {
		d.roots = append(d.roots, h)
	} else {
		d.linkChild(parent, h)
	}
	return h, nil
}

// linkChild appends child to parent's sibling chain. The last-child
// column makes this O(1) rather than a walk of the chain.
func (d *Document) linkChild(parent, child NodeHandle) {
	d.parents[child] = parent
	last := d.lastChild[parent]
	if last == NilNode {
		d.firstChild[parent] = child
	} else {
		d.nextSibling[last] = child
	}
	d.lastChild[parent] = child
}

// SetRanges overwrites the argument and property ranges of node h;
// used by the tree builder, which learns a node's ranges only once its
// header is complete
func (d *Document) SetRanges(h NodeHandle, args, props Range) error {
	if int(args.End()) > len(d.args) {
		return fmt.Errorf("setting ranges: argument %w", ErrRangeBounds)
	}
	if int(props.End()) > len(d.props) {
		return fmt.Errorf("setting ranges: property %w", ErrRangeBounds)
	}
	d.argRanges[h] = args
	d.propRanges[h] = props
	return nil
}

// Name returns the name reference of node h
func (d *Document) Name(h NodeHandle) StringRef {
	return d.names[h]
}

// TypeAnnotation returns the type annotation reference of node h, or
// EmptyRef if the node has none
func (d *Document) TypeAnnotation(h NodeHandle) StringRef {
	return d.typeAnnots[h]
}

// Parent returns the parent of node h, or NilNode for a root
func (d *Document) Parent(h NodeHandle) NodeHandle {
	return d.parents[h]
}

// FirstChild returns the first child of node h, or NilNode
func (d *Document) FirstChild(h NodeHandle) NodeHandle {
	return d.firstChild[h]
}

// NextSibling returns the next sibling of node h, or NilNode
func (d *Document) NextSibling(h NodeHandle) NodeHandle {
	return d.nextSibling[h]
}

// ArgRange returns the argument range of node h
func (d *Document) ArgRange(h NodeHandle) Range {
	return d.argRanges[h]
}

// PropRange returns the property range of node h
func (d *Document) PropRange(h NodeHandle) Range {
	return d.propRanges[h]
}

// Arguments returns the arguments of node h in source order. The
// returned slice aliases the document's argument pool.
func (d *Document) Arguments(h NodeHandle) []TypedValue {
	r := d.argRanges[h]
	return d.args[r.Start:r.End()]
}

// Properties returns every stored property of node h in order of
// appearance, including duplicate names. The returned slice aliases the
// document's property pool.
func (d *Document) Properties(h NodeHandle) []Property {
	r := d.propRanges[h]
	return d.props[r.Start:r.End()]
}

// EffectiveProperties returns the properties of node h reduced to one
// entry per distinct name, in order of first appearance. The winning
// occurrence follows the document's duplicate policy: the rightmost by
// default, the leftmost under DuplicateUseFirst.
func (d *Document) EffectiveProperties(h NodeHandle) []Property {
	stored := d.Properties(h)
	if len(stored) <= 1 {
		return stored
	}

	eff := make([]Property, 0, len(stored))
	for _, p := range stored {
		name := d.StringBytes(p.Name)
		seen := false
		for i := range eff {
			if string(d.StringBytes(eff[i].Name)) == string(name) {
				if d.dupPolicy == DuplicateUseLast {
					eff[i].Value = p.Value
					eff[i].Type = p.Type
				}
				seen = true
				break
			}
		}
		if !seen {
			eff = append(eff, p)
		}
	}
	return eff
}

// AddArgument appends a typed value to the flat argument pool
func (d *Document) AddArgument(v TypedValue) {
	d.args = append(d.args, v)
}

// AddProperty appends a property to the flat property pool
func (d *Document) AddProperty(p Property) {
	d.props = append(d.props, p)
}

// ReplaceProperty overwrites the property at index i in the flat pool
func (d *Document) ReplaceProperty(i uint32, p Property) {
	d.props[i] = p
}

// TruncateArguments discards arguments from index n onward; used to
// unwind a slashdash-discarded entry
func (d *Document) TruncateArguments(n uint32) {
	d.args = d.args[:n]
}

// TruncateProperties discards properties from index n onward
func (d *Document) TruncateProperties(n uint32) {
	d.props = d.props[:n]
}

// ArgCount returns the current length of the flat argument pool
func (d *Document) ArgCount() uint32 {
	return uint32(len(d.args))
}

// PropCount returns the current length of the flat property pool
func (d *Document) PropCount() uint32 {
	return uint32(len(d.props))
}

// PropertyAt returns the property at index i in the flat pool
func (d *Document) PropertyAt(i uint32) Property {
	return d.props[i]
}

// AddString appends b to the owned string pool and returns a reference
// to it, or ErrPoolFull if the pool cap would be exceeded
func (d *Document) AddString(b []byte) (StringRef, error) {
	return d.pool.add(b)
}

// InternString appends s to the owned string pool and returns a
// reference to it
func (d *Document) InternString(s string) (StringRef, error) {
	return d.pool.addString(s)
}

// PoolLen returns the current length in bytes of the owned string pool
func (d *Document) PoolLen() int {
	return len(d.pool.buf)
}

// StringBytes resolves ref against the owned pool or, for borrowed
// references, the attached source buffer. An unresolvable reference
// yields nil.
func (d *Document) StringBytes(ref StringRef) []byte {
	if ref.Empty() {
		return nil
	}
	if ref.Borrowed() {
		off, n := ref.Offset(), ref.Len()
		if off+n > len(d.source) {
			return nil
		}
		return d.source[off : off+n]
	}
	b, err := d.pool.get(ref)
	if err != nil {
		return nil
	}
	return b
}

// String resolves ref to a Go string
func (d *Document) String(ref StringRef) string {
	return string(d.StringBytes(ref))
}

// ChildIterator walks the sibling chain of a node's children in
// document order
type ChildIterator struct {
	d    *Document
	next NodeHandle
}

// Children returns an iterator over the children of node h
func (d *Document) Children(h NodeHandle) ChildIterator {
	return ChildIterator{d: d, next: d.firstChild[h]}
}

// Next returns the next child handle, or NilNode and false when the
// chain is exhausted
func (it *ChildIterator) Next() (NodeHandle, bool) {
	h := it.next
	if h == NilNode {
		return NilNode, false
	}
	it.next = it.d.nextSibling[h]
	return h, true
}

// ChildSlice collects the children of node h into a new slice
func (d *Document) ChildSlice(h NodeHandle) []NodeHandle {
	var out []NodeHandle
	it := d.Children(h)
	for c, ok := it.Next(); ok; c, ok = it.Next() {
		out = append(out, c)
	}
	return out
}
