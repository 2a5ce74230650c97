package document

import (
	"fmt"
)

// Merge combines independently parsed documents into one. Node handles,
// argument/property ranges, and owned string references are rewritten
// by the offsets at which each input's data lands in the merged
// document. Borrowed references are copied into the merged pool, since
// the inputs no longer share a single source buffer. The inputs are not
// modified.
func Merge(docs []*Document) (*Document, error) {
	nodes, maxPool := 0, 0
	for _, d := range docs {
		nodes += d.NumNodes()
		if d.pool.max > maxPool {
			maxPool = d.pool.max
		}
	}

	out := NewWithCapacity(nodes, maxPool)
	if len(docs) > 0 {
		out.dupPolicy = docs[0].dupPolicy
	}

	for di, d := range docs {
		nodeBase := NodeHandle(len(out.names))
		argBase := uint32(len(out.args))
		propBase := uint32(len(out.props))
		poolBase := len(out.pool.buf)

		if len(out.pool.buf)+len(d.pool.buf) > out.pool.max {
			return nil, fmt.Errorf("merging document %d: %w", di, ErrPoolFull)
		}
		out.pool.buf = append(out.pool.buf, d.pool.buf...)

		remapRef := func(r StringRef) (StringRef, error) {
			if r.Empty() {
				return EmptyRef, nil
			}
			if r.Borrowed() {
				b := d.StringBytes(r)
				if b == nil {
					return EmptyRef, fmt.Errorf("merging document %d: %w", di, ErrRefRange)
				}
				return out.pool.add(b)
			}
			return MakeRef(r.Offset()+poolBase, r.Len()), nil
		}

		remapValue := func(v Value) (Value, error) {
			var err error
			if v.Str, err = remapRef(v.Str); err != nil {
				return v, err
			}
			v.Original, err = remapRef(v.Original)
			return v, err
		}

		for _, a := range d.args {
			v, err := remapValue(a.Value)
			if err != nil {
				return nil, err
			}
			t, err := remapRef(a.Type)
			if err != nil {
				return nil, err
			}
			out.args = append(out.args, TypedValue{Value: v, Type: t})
		}

		for _, p := range d.props {
			name, err := remapRef(p.Name)
			if err != nil {
				return nil, err
			}
			v, err := remapValue(p.Value)
			if err != nil {
				return nil, err
			}
			t, err := remapRef(p.Type)
			if err != nil {
				return nil, err
			}
			out.props = append(out.props, Property{Name: name, Value: v, Type: t})
		}

		remapHandle := func(h NodeHandle) NodeHandle {
			if h == NilNode {
				return NilNode
			}
			return h + nodeBase
		}

		for i := 0; i < d.NumNodes(); i++ {
			name, err := remapRef(d.names[i])
			if err != nil {
				return nil, err
			}
			annot, err := remapRef(d.typeAnnots[i])
			if err != nil {
				return nil, err
			}
			out.names = append(out.names, name)
			out.typeAnnots = append(out.typeAnnots, annot)
			out.parents = append(out.parents, remapHandle(d.parents[i]))
			out.firstChild = append(out.firstChild, remapHandle(d.firstChild[i]))
			out.lastChild = append(out.lastChild, remapHandle(d.lastChild[i]))
			out.nextSibling = append(out.nextSibling, remapHandle(d.nextSibling[i]))
			ar := d.argRanges[i]
			pr := d.propRanges[i]
			out.argRanges = append(out.argRanges, Range{Start: ar.Start + argBase, Count: ar.Count})
			out.propRanges = append(out.propRanges, Range{Start: pr.Start + propBase, Count: pr.Count})
		}

		for _, r := range d.roots {
			out.roots = append(out.roots, r+nodeBase)
		}
	}

	return out, nil
}
