package document

import (
	"math/big"
)

// ValueKind discriminates the variants of a Value
type ValueKind uint8

const (
	// KindNull is the #null value
	KindNull ValueKind = iota
	// KindString is a string value; Str references the payload
	KindString
	// KindInt is an integer that fits in an int64
	KindInt
	// KindBigInt is an integer beyond int64 range; Big holds the payload
	KindBigInt
	// KindFloat is a binary64 float; a literal that overflowed holds an
	// infinity here, with its Original text retained
	KindFloat
	// KindBool is #true or #false
	KindBool
	// KindPosInf is the #inf keyword
	KindPosInf
	// KindNegInf is the #-inf keyword
	KindNegInf
	// KindNaN is the #nan keyword
	KindNaN
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindBigInt:
		return "biginteger"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindPosInf:
		return "inf"
	case KindNegInf:
		return "-inf"
	case KindNaN:
		return "nan"
	default:
		return "(invalid)"
	}
}

// Value is a single KDL value. Exactly one payload field is meaningful,
// selected by Kind. Original references the literal source text of a
// float when it must be retained for faithful serialization: a float
// with an exponent, one that overflowed to an infinity, or one that
// underflowed to zero from nonzero digits.
type Value struct {
	Kind     ValueKind
	Bool     bool
	Int      int64
	Float    float64
	Big      *big.Int
	Str      StringRef
	Original StringRef
}

// NullValue returns a #null Value
func NullValue() Value {
	return Value{Kind: KindNull}
}

// BoolValue returns a boolean Value
func BoolValue(v bool) Value {
	return Value{Kind: KindBool, Bool: v}
}

// IntValue returns an integer Value
func IntValue(v int64) Value {
	return Value{Kind: KindInt, Int: v}
}

// BigIntValue returns an integer Value beyond int64 range
func BigIntValue(v *big.Int) Value {
	return Value{Kind: KindBigInt, Big: v}
}

// FloatValue returns a float Value without retained original text
func FloatValue(v float64) Value {
	return Value{Kind: KindFloat, Float: v}
}

// StringValue returns a string Value referencing ref
func StringValue(ref StringRef) Value {
	return Value{Kind: KindString, Str: ref}
}

// TypedValue is a Value with an optional type annotation; EmptyRef
// means no annotation.
type TypedValue struct {
	Value Value
	Type  StringRef
}

// Property is a name=value pair on a node, with an optional type
// annotation on the value. Annotations are never attached to the key.
type Property struct {
	Name  StringRef
	Value Value
	Type  StringRef
}
