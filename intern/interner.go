// Package intern canonicalizes identifiers and string literals into stable
// handles (STE — string-table entries). Two lookups of the same bytes with
// case folding disabled always return the same handle; with case folding
// enabled, two different casings of the same text fold to one handle.
package intern

import (
	"strings"

	"github.com/dolthub/swiss"
)

// STE is a stable, comparable handle to an interned string. It never
// changes value or meaning for the lifetime of the Interner that produced
// it, so it can be copied freely and used as a map key.
type STE struct {
	entry *node
}

// String returns the canonical (originally-cased) bytes behind the handle.
func (s STE) String() string {
	if s.entry == nil {
		return ""
	}
	return s.entry.text
}

// IsEmpty reports whether this is the sentinel empty-string handle.
func (s STE) IsEmpty() bool {
	return s.entry == nil || s.entry.text == ""
}

// Hash returns the handle's case-folded hash, stable for the lifetime of
// the Interner that produced it. Callers that need a fast bucket index
// for their own hash table (namespace lookup, for instance) can use this
// instead of re-hashing String().
func (s STE) Hash() uint64 {
	if s.entry == nil {
		return 0
	}
	return s.entry.hashFold
}

type node struct {
	text     string
	hashFold uint64
}

type bucketKey struct {
	hashFold uint64
	length   int
}

// Interner owns the storage backing every STE it produces. An embedder may
// share one Interner across several VMs (see console.Config.Interner); by
// default each VM owns a private one.
type Interner struct {
	buckets *swiss.Map[bucketKey, []*node]
	empty   STE
}

// New creates an empty interner seeded with the empty-string sentinel.
func New() *Interner {
	in := &Interner{
		buckets: swiss.NewMap[bucketKey, []*node](64),
	}
	in.empty = in.Intern("", true)
	return in
}

// Empty returns the sentinel handle for the empty string.
func (in *Interner) Empty() STE {
	return in.empty
}

// Intern returns a stable handle for s. When caseSensitive is false, the
// handle is shared with every other casing of s already interned without
// case sensitivity; two calls with different casing and caseSensitive=true
// return distinct handles.
func (in *Interner) Intern(s string, caseSensitive bool) STE {
	if existing, ok := in.find(s, caseSensitive); ok {
		return existing
	}
	n := &node{text: s, hashFold: hashFolded(s)}
	key := bucketKey{hashFold: n.hashFold, length: len(s)}
	bucket, _ := in.buckets.Get(key)
	bucket = append(bucket, n)
	in.buckets.Put(key, bucket)
	return STE{entry: n}
}

// InternN interns the first n bytes of s without allocating a new string
// unless the string is not already present.
func (in *Interner) InternN(s string, n int, caseSensitive bool) STE {
	if n > len(s) {
		n = len(s)
	}
	return in.Intern(s[:n], caseSensitive)
}

// Lookup returns the handle for s if it has already been interned, without
// creating a new entry.
func (in *Interner) Lookup(s string, caseSensitive bool) (STE, bool) {
	return in.find(s, caseSensitive)
}

func (in *Interner) find(s string, caseSensitive bool) (STE, bool) {
	key := bucketKey{hashFold: hashFolded(s), length: len(s)}
	bucket, ok := in.buckets.Get(key)
	if !ok {
		return STE{}, false
	}
	for _, n := range bucket {
		if caseSensitive {
			if n.text == s {
				return STE{entry: n}, true
			}
		} else if strings.EqualFold(n.text, s) {
			return STE{entry: n}, true
		}
	}
	return STE{}, false
}

// hashFolded is the classic FNV-1a hash over the case-folded bytes of s,
// matching the bucketing scheme used by the reference string interner this
// module's hash table layout is modeled on.
func hashFolded(s string) uint64 {
	const offset64 = 1469598103934665603
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c = c - 'a' + 'A'
		}
		h ^= uint64(c)
		h *= prime64
	}
	return h
}
