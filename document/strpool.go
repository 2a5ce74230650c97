package document

import (
	"errors"
)

// StringRef is a compact 64-bit handle to a byte range in a string pool.
// The low 32 bits hold the length; bits 32-62 hold the offset; bit 63
// marks a borrowed reference, whose bytes live in an external source
// buffer rather than in the document's owned pool.
type StringRef uint64

const (
	borrowedBit = StringRef(1) << 63
	offsetShift = 32
	offsetMask  = (uint64(1) << 31) - 1
	lenMask     = (uint64(1) << 32) - 1

	// MaxPoolOffset is the largest byte offset a StringRef can address
	MaxPoolOffset = int(offsetMask)
)

// EmptyRef is the universal "absent" sentinel: a zero-length reference
const EmptyRef = StringRef(0)

// MakeRef packs offset and length into an owned StringRef
func MakeRef(offset, length int) StringRef {
	return StringRef(uint64(offset)<<offsetShift | uint64(length)&lenMask)
}

// MakeBorrowedRef packs offset and length into a borrowed StringRef
func MakeBorrowedRef(offset, length int) StringRef {
	return MakeRef(offset, length) | borrowedBit
}

// Offset returns the byte offset of this reference within its pool
func (r StringRef) Offset() int {
	return int(uint64(r) >> offsetShift & offsetMask)
}

// Len returns the length in bytes of the referenced range
func (r StringRef) Len() int {
	return int(uint64(r) & lenMask)
}

// Borrowed returns true if the referenced bytes live in an external
// source buffer rather than the document's owned pool
func (r StringRef) Borrowed() bool {
	return r&borrowedBit != 0
}

// Empty returns true if this reference has zero length
func (r StringRef) Empty() bool {
	return r.Len() == 0
}

// DefaultMaxPoolBytes is the default total-byte cap for a string pool
const DefaultMaxPoolBytes = 256 * 1024 * 1024

var (
	// ErrPoolFull is returned when adding to a pool would exceed its byte cap
	ErrPoolFull = errors.New("string pool byte limit exceeded")
	// ErrRefRange is returned when a StringRef does not address a valid
	// window of its pool
	ErrRefRange = errors.New("string reference out of range")
)

// stringPool is an append-only byte buffer addressed by StringRefs
type stringPool struct {
	buf []byte
	max int
}

func newStringPool(max int) stringPool {
	if max <= 0 || max > MaxPoolOffset {
		max = DefaultMaxPoolBytes
	}
	return stringPool{max: max}
}

// add appends b to the pool and returns an owned reference to it, or
// ErrPoolFull if the pool's byte cap would be exceeded
func (p *stringPool) add(b []byte) (StringRef, error) {
	if len(b) == 0 {
		return EmptyRef, nil
	}
	if len(p.buf)+len(b) > p.max {
		return EmptyRef, ErrPoolFull
	}
	off := len(p.buf)
	p.buf = append(p.buf, b...)
	return MakeRef(off, len(b)), nil
}

// addString is add for string input
func (p *stringPool) addString(s string) (StringRef, error) {
	if len(s) == 0 {
		return EmptyRef, nil
	}
	if len(p.buf)+len(s) > p.max {
		return EmptyRef, ErrPoolFull
	}
	off := len(p.buf)
	p.buf = append(p.buf, s...)
	return MakeRef(off, len(s)), nil
}

// get returns the bytes referenced by r from the pool. Borrowed
// references must be resolved against their source buffer, not the pool.
func (p *stringPool) get(r StringRef) ([]byte, error) {
	if r.Empty() {
		return nil, nil
	}
	off, n := r.Offset(), r.Len()
	if off+n > len(p.buf) {
		return nil, ErrRefRange
	}
	return p.buf[off : off+n], nil
}
