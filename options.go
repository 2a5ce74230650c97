package kdl

// DuplicatePolicy controls how duplicate property names on a node are
// treated. The document always stores every occurrence; the policy
// affects parsing (DuplicateError) and consumers that reduce to an
// effective value.
type DuplicatePolicy int

const (
	// DuplicateUseLast applies rightmost-wins semantics (the default)
	DuplicateUseLast DuplicatePolicy = iota
	// DuplicateUseFirst keeps the first occurrence's value
	DuplicateUseFirst
	// DuplicateError fails the parse on a duplicate property name
	DuplicateError
)

// ParseOptions configure a parse operation
type ParseOptions struct {
	// MaxDepth bounds children-block nesting, including slashdashed
	// blocks
	MaxDepth int
	// BufferSize is the input buffer size for streamed (reader) input
	BufferSize int
	// CopyStrings forces every string into the document's owned pool.
	// When false, strings whose bytes appear verbatim in a fixed
	// source buffer are borrowed from it, and the caller must keep the
	// buffer alive for the document's lifetime. Streamed input always
	// copies.
	CopyStrings bool
	// MaxDocumentSize bounds the total bytes accepted from a streamed
	// input
	MaxDocumentSize int
	// MaxPoolBytes bounds the document's owned string pool
	MaxPoolBytes int
	// Duplicates selects the duplicate-property policy
	Duplicates DuplicatePolicy
}

// DefaultParseOptions are the options used by Parse; start from these
// when overriding individual fields
var DefaultParseOptions = ParseOptions{
	MaxDepth:        256,
	BufferSize:      64 * 1024,
	CopyStrings:     true,
	MaxDocumentSize: 256 * 1024 * 1024,
	MaxPoolBytes:    256 * 1024 * 1024,
	Duplicates:      DuplicateUseLast,
}

// SerializeOptions configure serialization
type SerializeOptions struct {
	// Indent is the string used for each indentation level
	Indent string
}

// DefaultSerializeOptions are the options used when none are provided
var DefaultSerializeOptions = SerializeOptions{
	Indent: "    ",
}
