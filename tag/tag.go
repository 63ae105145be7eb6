// Package tag implements dot-segmented hierarchical labels and the taxonomies
// that give them meaning.
//
// A tag such as "World.Impact.Earth" names a node three levels deep. Its
// ancestor chain is obtained by removing trailing segments one at a time:
// "World.Impact", then "World". The empty tag is the root and is never valid.
package tag

import "strings"

// Separator delimits taxonomy levels inside a tag.
const Separator = "."

// CellSeparator joins the row and column tags of a persisted cell key. No
// valid tag contains it.
const CellSeparator = "|"

// Tag is a hierarchical label. The zero value is the root (invalid) tag.
type Tag string

// None is the root tag. It is never valid and never indexed.
const None Tag = ""

// Valid reports whether t is a well-formed, non-root tag: non-empty, no
// empty segments and no CellSeparator.
func (t Tag) Valid() bool {
	if t == None {
		return false
	}
	s := string(t)
	if strings.Contains(s, CellSeparator) {
		return false
	}
	if strings.HasPrefix(s, Separator) || strings.HasSuffix(s, Separator) {
		return false
	}
	return !strings.Contains(s, Separator+Separator)
}

// Parent returns the direct parent of t, or None for top-level tags.
func (t Tag) Parent() Tag {
	i := strings.LastIndex(string(t), Separator)
	if i < 0 {
		return None
	}
	return t[:i]
}

// HasParent reports whether t sits below the top level.
func (t Tag) HasParent() bool {
	return t.Parent() != None
}

// Leaf returns the last segment of t.
func (t Tag) Leaf() string {
	i := strings.LastIndex(string(t), Separator)
	return string(t[i+1:])
}

// Depth returns the number of segments in t. The root has depth zero.
func (t Tag) Depth() int {
	if t == None {
		return 0
	}
	return strings.Count(string(t), Separator) + 1
}

// Segments splits t into its levels.
func (t Tag) Segments() []string {
	if t == None {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Ancestors returns the ancestor chain of t, closest first, excluding t
// itself and the root.
func (t Tag) Ancestors() []Tag {
	var out []Tag
	for p := t.Parent(); p != None; p = p.Parent() {
		out = append(out, p)
	}
	return out
}

// IsDescendantOf reports whether t lies strictly below a.
func (t Tag) IsDescendantOf(a Tag) bool {
	if a == None {
		return t != None
	}
	return len(t) > len(a) && strings.HasPrefix(string(t), string(a)+Separator)
}

// MatchesOrDescends reports whether t equals a or lies below it.
func (t Tag) MatchesOrDescends(a Tag) bool {
	return t == a || t.IsDescendantOf(a)
}

// String implements fmt.Stringer.
func (t Tag) String() string { return string(t) }

// Compare orders tags by their string form.
func Compare(a, b Tag) int {
	return strings.Compare(string(a), string(b))
}

// Join builds a tag from segments.
func Join(segments ...string) Tag {
	return Tag(strings.Join(segments, Separator))
}
