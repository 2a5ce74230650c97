package document

import (
	"strconv"
	"unicode/utf8"

	"github.com/sblinch/kdl-go/v2/internal/chars"
)

// noEscapeTable maps each ASCII value to a boolean value indicating
// whether it does NOT require escapement in a quoted string
var noEscapeTable = [256]bool{}

func init() {
	for i := 0; i <= 0xFF; i++ {
		noEscapeTable[i] = i >= 0x20 && i != '\\' && i != '"' && i != 0x7F
	}
}

// QuoteString returns s quoted for use as a KDL quoted string
func QuoteString(s string) string {
	b := make([]byte, 0, len(s)*5/4+2)
	return string(AppendQuotedString(b, s))
}

// AppendQuotedString appends s, quoted for use as a KDL quoted string,
// to b, and returns the expanded buffer.
//
// AppendQuotedString is based on the JSON string quoting function from
// the MIT-Licensed ZeroLog, Copyright (c) 2017 Olivier Poitrey, but has
// been heavily modified to improve performance and use KDL string
// escapes instead of JSON.
func AppendQuotedString(b []byte, s string) []byte {
	b = append(b, '"')

	// use uints for bounds-check elimination
	lenS := uint(len(s))
	for i := uint(0); i < lenS; i++ {
		if !noEscapeTable[s[i]] {
			// We encountered a character that needs to be encoded;
			// switch to the complex version of the algorithm.
			start := uint(0)
			for i < lenS {
				c := s[i]
				if noEscapeTable[c] {
					i++
					continue
				}

				if c >= utf8.RuneSelf {
					r, size := utf8.DecodeRuneInString(s[i:])
					if r == utf8.RuneError && size == 1 {
						if start < i {
							b = append(b, s[start:i]...)
						}
						b = append(b, `\u{fffd}`...)
						i += uint(size)
						start = i
						continue
					}
					i += uint(size)
					continue
				}

				if start < i {
					b = append(b, s[start:i]...)
				}

				switch c {
				case '"', '\\':
					b = append(b, '\\', c)
				case '\n':
					b = append(b, '\\', 'n')
				case '\r':
					b = append(b, '\\', 'r')
				case '\t':
					b = append(b, '\\', 't')
				case '\b':
					b = append(b, '\\', 'b')
				case '\f':
					b = append(b, '\\', 'f')
				default:
					b = append(b, '\\', 'u', '{')
					b = strconv.AppendUint(b, uint64(c), 16)
					b = append(b, '}')
				}
				i++
				start = i
			}
			if start < lenS {
				b = append(b, s[start:]...)
			}

			b = append(b, '"')
			return b
		}
	}

	// nothing needs encoding
	b = append(b, s...)
	b = append(b, '"')
	return b
}

// AppendIdentifier appends s to b as a KDL identifier: bare if it needs
// no quoting, otherwise quoted and escaped.
func AppendIdentifier(b []byte, s string) []byte {
	if chars.IsBareIdentifier(s) {
		return append(b, s...)
	}
	return AppendQuotedString(b, s)
}
