// Package index maps the tags of one table axis to dense integer indices.
//
// Indices are assigned sequentially and never reused while the table is
// loaded; they double as row (or column) positions in every page. Lookups
// either require an exact hit or walk up the ancestor chain to the closest
// indexed tag.
package index

import (
	"slices"

	"github.com/hupe1980/affinity/tag"
)

// Invalid is returned by lookups that find no tag.
const Invalid = ^uint32(0)

// Indexer is the tag→index map of one axis. Not safe for concurrent use.
type Indexer struct {
	tax  tag.Taxonomy
	tags map[tag.Tag]uint32
	next uint32
}

// New creates an empty indexer. A nil taxonomy means tag.Dotted.
func New(tax tag.Taxonomy) *Indexer {
	if tax == nil {
		tax = tag.Dotted{}
	}
	return &Indexer{tax: tax, tags: make(map[tag.Tag]uint32)}
}

// Add indexes t, indexing any missing ancestors first. It returns false, and
// changes nothing, if t is not a known tag or is already indexed.
func (ix *Indexer) Add(t tag.Tag) bool {
	if !ix.tax.Exists(t) {
		return false
	}
	if _, ok := ix.tags[t]; ok {
		return false
	}
	if p := ix.tax.Parent(t); p != tag.None {
		ix.Add(p)
	}
	ix.tags[t] = ix.next
	ix.next++
	return true
}

// Delete removes t. Descendants keep their indices.
func (ix *Indexer) Delete(t tag.Tag) (uint32, bool) {
	i, ok := ix.tags[t]
	if ok {
		delete(ix.tags, t)
	}
	return i, ok
}

// Lookup returns the index of t. On a miss with exact unset, the closest
// indexed ancestor is returned instead. Misses return Invalid.
func (ix *Indexer) Lookup(t tag.Tag, exact bool) uint32 {
	for cur := t; cur != tag.None; cur = ix.tax.Parent(cur) {
		if i, ok := ix.tags[cur]; ok {
			return i
		}
		if exact {
			break
		}
	}
	return Invalid
}

// Resolve is like Lookup but also returns the tag that matched.
func (ix *Indexer) Resolve(t tag.Tag, exact bool) (tag.Tag, uint32) {
	for cur := t; cur != tag.None; cur = ix.tax.Parent(cur) {
		if i, ok := ix.tags[cur]; ok {
			return cur, i
		}
		if exact {
			break
		}
	}
	return tag.None, Invalid
}

// Contains reports whether t is indexed.
func (ix *Indexer) Contains(t tag.Tag) bool {
	_, ok := ix.tags[t]
	return ok
}

// Len returns the number of indexed tags.
func (ix *Indexer) Len() int { return len(ix.tags) }

// Next returns the index the next added tag will receive. It equals the
// number of indices ever assigned, deleted ones included.
func (ix *Indexer) Next() uint32 { return ix.next }

// Tags returns the indexed tags ordered by index.
func (ix *Indexer) Tags() []tag.Tag {
	out := make([]tag.Tag, 0, len(ix.tags))
	for t := range ix.tags {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b tag.Tag) int {
		return int(int64(ix.tags[a]) - int64(ix.tags[b]))
	})
	return out
}

// Sorted returns the indexed tags in taxonomy order.
func (ix *Indexer) Sorted() []tag.Tag {
	out := make([]tag.Tag, 0, len(ix.tags))
	for t := range ix.tags {
		out = append(out, t)
	}
	slices.SortFunc(out, ix.tax.Compare)
	return out
}

// Restore resets the indexer and assigns index i to tags[i] verbatim,
// without adding ancestors. Duplicates keep their first index and still
// consume a slot so positions stay aligned with persisted pages.
func (ix *Indexer) Restore(tags []tag.Tag) {
	ix.Reset()
	for _, t := range tags {
		if _, dup := ix.tags[t]; !dup {
			ix.tags[t] = ix.next
		}
		ix.next++
	}
}

// Orphans returns indexed tags, ordered by index, that are unknown to the
// taxonomy or miss an ancestor.
func (ix *Indexer) Orphans() []tag.Tag {
	var out []tag.Tag
	for _, t := range ix.Tags() {
		if !ix.tax.Exists(t) {
			out = append(out, t)
			continue
		}
		for p := ix.tax.Parent(t); p != tag.None; p = ix.tax.Parent(p) {
			if _, ok := ix.tags[p]; !ok {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Reset removes every tag and restarts numbering at zero.
func (ix *Indexer) Reset() {
	clear(ix.tags)
	ix.next = 0
}
