package types

import (
	"fmt"
	"strconv"
	"strings"
)

// StateKind is the coarse richness tier of an EmbeddingState.
type StateKind uint8

const (
	KindNone StateKind = iota
	KindName
	KindParagraphs
)

// EmbeddingState describes how much text about a path has been embedded.
//
// States are totally ordered: None < Name < Paragraphs(n), and
// Paragraphs(a) < Paragraphs(b) iff a < b. An entry embedded at some level
// satisfies every request at that level or below.
type EmbeddingState struct {
	Kind StateKind
	// N is the paragraph group count, only meaningful for KindParagraphs.
	N int
}

// StateNone returns the empty state.
func StateNone() EmbeddingState { return EmbeddingState{Kind: KindNone} }

// StateName returns the name-only state.
func StateName() EmbeddingState { return EmbeddingState{Kind: KindName} }

// StateParagraphs returns the state for n paragraph groups.
func StateParagraphs(n int) EmbeddingState {
	if n < 0 {
		n = 0
	}
	return EmbeddingState{Kind: KindParagraphs, N: n}
}

// Code returns the persisted integer encoding: None=0, Name=1, Paragraphs(n)=2+n.
// The encoding is monotone in the richness order.
func (s EmbeddingState) Code() int64 {
	switch s.Kind {
	case KindName:
		return 1
	case KindParagraphs:
		return 2 + int64(s.N)
	default:
		return 0
	}
}

// StateFromCode decodes a persisted state integer.
func StateFromCode(code int64) (EmbeddingState, error) {
	switch {
	case code < 0:
		return EmbeddingState{}, fmt.Errorf("%w: %d", ErrInvalidState, code)
	case code == 0:
		return StateNone(), nil
	case code == 1:
		return StateName(), nil
	default:
		return StateParagraphs(int(code - 2)), nil
	}
}

// Compare returns -1, 0 or +1 as s is less rich, as rich, or richer than o.
func (s EmbeddingState) Compare(o EmbeddingState) int {
	a, b := s.Code(), o.Code()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether s is strictly less rich than o.
func (s EmbeddingState) Less(o EmbeddingState) bool { return s.Compare(o) < 0 }

// Satisfies reports whether an entry at state s already covers a request for want.
func (s EmbeddingState) Satisfies(want EmbeddingState) bool { return s.Compare(want) >= 0 }

func (s EmbeddingState) String() string {
	switch s.Kind {
	case KindName:
		return "name"
	case KindParagraphs:
		return "paragraphs(" + strconv.Itoa(s.N) + ")"
	default:
		return "none"
	}
}

// ParseState parses "none", "name", "paragraphs" (one group) or "paragraphs:N".
func ParseState(v string) (EmbeddingState, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "", "none":
		return StateNone(), nil
	case "name":
		return StateName(), nil
	case "paragraphs":
		return StateParagraphs(1), nil
	}
	if rest, ok := strings.CutPrefix(v, "paragraphs:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return EmbeddingState{}, fmt.Errorf("%w: %q", ErrInvalidState, v)
		}
		return StateParagraphs(n), nil
	}
	return EmbeddingState{}, fmt.Errorf("%w: %q", ErrInvalidState, v)
}

// CacheItem is a (path, richness) descriptor. It names the level of
// embedding wanted or held for a path, not the embedding itself.
type CacheItem struct {
	Path  string
	State EmbeddingState
}

// ID is the integer surrogate key the metadata store assigns to a path.
type ID int64
