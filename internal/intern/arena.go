// Package intern turns transient Go strings into stably addressed,
// NUL-terminated byte buffers owned by a single build session.
//
// An Arena hands out Handles. The bytes behind a Handle never move: strings
// are packed into fixed-size chunks and a chunk is never reallocated, so a
// slice returned by Bytes stays valid until Release is called. Release drops
// every chunk in one step.
//
// An Arena is single-writer. Sessions that build concurrently must each own
// their own Arena.
package intern

import (
	"errors"
	"strings"
)

// ErrInteriorNul is returned for text that contains a NUL byte. Such text
// cannot be represented as a NUL-terminated buffer without truncation.
var ErrInteriorNul = errors.New("intern: text contains an interior NUL byte")

// DefaultChunkSize is the capacity of a regular arena chunk.
const DefaultChunkSize = 4096

// Handle identifies an interned string inside its Arena. The zero Handle is
// the canonical empty string, shared by every Arena.
type Handle struct {
	id uint32
}

// Empty is the canonical handle of "".
var Empty = Handle{}

// IsEmpty reports whether h refers to the empty string.
func (h Handle) IsEmpty() bool { return h.id == 0 }

var emptyBuf = []byte{0}

type entry struct {
	chunk int
	off   int
	n     int // without the terminator
	text  string
}

// Arena is a session-scoped string interner.
type Arena struct {
	chunkSize int
	chunks    [][]byte
	entries   []entry
	index     map[string]Handle
	bytes     int
}

// New creates an empty arena with DefaultChunkSize chunks.
func New() *Arena {
	return NewWithChunkSize(DefaultChunkSize)
}

// NewWithChunkSize creates an arena whose regular chunks hold size bytes.
func NewWithChunkSize(size int) *Arena {
	if size < 16 {
		size = 16
	}
	a := &Arena{chunkSize: size}
	a.reset()
	return a
}

func (a *Arena) reset() {
	a.chunks = nil
	a.entries = []entry{{chunk: -1}}
	a.index = make(map[string]Handle)
	a.bytes = 0
}

// Intern returns the handle for text, copying it into the arena on first
// sight. Identical text yields the same handle.
func (a *Arena) Intern(text string) (Handle, error) {
	if text == "" {
		return Empty, nil
	}
	if strings.IndexByte(text, 0) >= 0 {
		return Empty, ErrInteriorNul
	}
	if h, ok := a.index[text]; ok {
		return h, nil
	}

	need := len(text) + 1
	chunk, off := a.reserve(need)
	buf := a.chunks[chunk]
	copy(buf[off:], text)
	buf[off+len(text)] = 0

	h := Handle{id: uint32(len(a.entries))}
	a.entries = append(a.entries, entry{chunk: chunk, off: off, n: len(text), text: text})
	a.index[text] = h
	a.bytes += need
	return h, nil
}

// reserve finds room for need bytes. Oversized strings get a chunk of
// their own so regular chunks keep their fixed capacity.
func (a *Arena) reserve(need int) (chunk, off int) {
	if need > a.chunkSize {
		// a full chunk: the fill path below never picks it again
		a.chunks = append(a.chunks, make([]byte, need))
		return len(a.chunks) - 1, 0
	}
	if n := len(a.chunks); n > 0 {
		cur := a.chunks[n-1]
		if cap(cur)-len(cur) >= need {
			off = len(cur)
			a.chunks[n-1] = cur[:off+need]
			return n - 1, off
		}
	}
	a.chunks = append(a.chunks, make([]byte, need, a.chunkSize))
	return len(a.chunks) - 1, 0
}

// Bytes returns the NUL-terminated buffer for h. The slice aliases arena
// memory and must not be modified.
func (a *Arena) Bytes(h Handle) []byte {
	if h.id == 0 {
		return emptyBuf
	}
	if int(h.id) >= len(a.entries) {
		return nil
	}
	e := a.entries[h.id]
	return a.chunks[e.chunk][e.off : e.off+e.n+1 : e.off+e.n+1]
}

// String returns the text behind h without the terminator.
func (a *Arena) String(h Handle) string {
	if h.id == 0 || int(h.id) >= len(a.entries) {
		return ""
	}
	return a.entries[h.id].text
}

// Lookup reports the handle of text if it has already been interned.
func (a *Arena) Lookup(text string) (Handle, bool) {
	if text == "" {
		return Empty, true
	}
	h, ok := a.index[text]
	return h, ok
}

// Count is the number of distinct non-empty strings held by the arena.
func (a *Arena) Count() int { return len(a.entries) - 1 }

// Size is the number of arena bytes in use, terminators included.
func (a *Arena) Size() int { return a.bytes }

// Release drops every chunk at once. Handles issued before Release are
// invalid afterwards; the arena itself can be reused.
func (a *Arena) Release() {
	a.reset()
}
