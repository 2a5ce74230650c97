package kdl

import (
	"runtime"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sblinch/kdl-go/v2/document"
)

// scanState tracks the lexical context of the boundary scan
type scanState int

const (
	scanCode scanState = iota
	scanLineComment
	scanBlockComment
	scanQuoted
	scanMultiQuoted
	scanRaw
	scanMultiRaw
)

// FindNodeBoundaries scans source for byte offsets at which it is safe
// to split the document into independently parseable partitions:
// top-level positions (brace depth zero) immediately after a newline or
// semicolon, outside strings and comments, spaced roughly evenly. The
// returned offsets always begin with 0 and yield at most maxPartitions
// partitions.
func FindNodeBoundaries(source []byte, maxPartitions int) []int {
	boundaries := []int{0}
	if maxPartitions <= 1 || len(source) == 0 {
		return boundaries
	}

	step := len(source) / maxPartitions
	if step < 1 {
		step = 1
	}
	nextTarget := step

	var (
		st           = scanCode
		depth        = 0
		blockDepth   = 0
		rawHashes    = 0
		quoteRun     = 0
		hashRun      = 0
		contPending  = false
	)

	for i := 0; i < len(source); i++ {
		c := source[i]

		switch st {
		case scanCode:
			switch c {
			case '"':
				if i+2 < len(source) && source[i+1] == '"' && source[i+2] == '"' {
					st = scanMultiQuoted
					i += 2
				} else {
					st = scanQuoted
				}
				contPending = false
			case '#':
				h := 0
				for i+h < len(source) && source[i+h] == '#' {
					h++
				}
				if i+h < len(source) && source[i+h] == '"' {
					rawHashes = h
					if i+h+2 < len(source) && source[i+h+1] == '"' && source[i+h+2] == '"' {
						st = scanMultiRaw
						i += h + 2
					} else {
						st = scanRaw
						i += h
					}
					quoteRun, hashRun = 0, 0
				} else {
					i += h - 1
				}
				contPending = false
			case '/':
				if i+1 < len(source) {
					switch source[i+1] {
					case '/':
						st = scanLineComment
						i++
					case '*':
						st = scanBlockComment
						blockDepth = 1
						i++
					}
				}
			case '{':
				depth++
				contPending = false
			case '}':
				if depth > 0 {
					depth--
				}
				contPending = false
			case '\\':
				contPending = true
			case ' ', '\t', '\r':
				// whitespace keeps a pending continuation alive
			case '\n', ';':
				if contPending {
					contPending = false
					break
				}
				if depth == 0 && i+1 >= nextTarget && i+1 < len(source) {
					boundaries = append(boundaries, i+1)
					if len(boundaries) >= maxPartitions {
						return boundaries
					}
					nextTarget = i + 1 + step
				}
			default:
				contPending = false
			}

		case scanLineComment:
			if c == '\n' {
				st = scanCode
				if depth == 0 && i+1 >= nextTarget && i+1 < len(source) {
					boundaries = append(boundaries, i+1)
					if len(boundaries) >= maxPartitions {
						return boundaries
					}
					nextTarget = i + 1 + step
				}
			}

		case scanBlockComment:
			if c == '*' && i+1 < len(source) && source[i+1] == '/' {
				blockDepth--
				i++
				if blockDepth == 0 {
					st = scanCode
				}
			} else if c == '/' && i+1 < len(source) && source[i+1] == '*' {
				blockDepth++
				i++
			}

		case scanQuoted:
			switch c {
			case '\\':
				i++
			case '"':
				st = scanCode
			case '\n':
				// malformed; resynchronize rather than consume the rest
				st = scanCode
			}

		case scanMultiQuoted:
			switch c {
			case '\\':
				i++
				quoteRun = 0
			case '"':
				quoteRun++
				if quoteRun == 3 {
					st = scanCode
					quoteRun = 0
				}
			default:
				quoteRun = 0
			}

		case scanRaw:
			if c == '"' {
				h := 0
				for i+1+h < len(source) && source[i+1+h] == '#' && h < rawHashes {
					h++
				}
				if h == rawHashes {
					i += h
					st = scanCode
				}
			} else if c == '\n' {
				st = scanCode
			}

		case scanMultiRaw:
			switch {
			case c == '"':
				quoteRun++
				hashRun = 0
			case c == '#' && quoteRun >= 3:
				hashRun++
				if hashRun == rawHashes {
					st = scanCode
					quoteRun, hashRun = 0, 0
				}
			default:
				quoteRun, hashRun = 0, 0
			}
		}
	}

	return boundaries
}

// MergeDocuments combines independently parsed documents into one,
// renumbering every handle, range, and string reference; see
// document.Merge
func MergeDocuments(docs []*document.Document) (*document.Document, error) {
	return document.Merge(docs)
}

// ParseParallel splits source at safe top-level boundaries, parses the
// partitions concurrently, and merges the results in order. With one
// usable partition it is equivalent to ParseWithOptions.
func ParseParallel(source []byte, opts ParseOptions) (*document.Document, error) {
	workers := runtime.GOMAXPROCS(0)
	boundaries := FindNodeBoundaries(source, workers)
	if len(boundaries) <= 1 {
		return ParseWithOptions(source, opts)
	}

	docs := make([]*document.Document, len(boundaries))
	var g errgroup.Group
	for i := range boundaries {
		start := boundaries[i]
		end := len(source)
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		i := i
		g.Go(func() error {
			d, err := ParseWithOptions(source[start:end], opts)
			if err != nil {
				return pkgerrors.Wrapf(err, "partition %d (bytes %d-%d)", i, start, end)
			}
			docs[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := document.Merge(docs)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "merging partitions")
	}
	return merged, nil
}
