// Package ui implements the remote-renderable page document: an addressable
// tree of elements, a change ledger that yields minimal updates, and a mirror
// that replays those updates on the receiving side.
package ui

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a path or id does not resolve.
	ErrNotFound = errors.New("ui: element not found")
	// ErrDuplicateID is returned when a mutation would give two elements of
	// one page the same id.
	ErrDuplicateID = errors.New("ui: duplicate element id")
)

// Kind governs how an element and its children render.
type Kind string

const (
	KindRows    Kind = "rows"
	KindColumns Kind = "columns"
	KindText    Kind = "text"
	KindHeader  Kind = "header"
	KindSpacer  Kind = "spacer"
)

// Valid reports whether k is one of the known element kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindRows, KindColumns, KindText, KindHeader, KindSpacer:
		return true
	}
	return false
}

// Element is a node in the page tree. An empty ID means the element has no
// stable id. The parent exclusively owns its children.
type Element struct {
	Kind     Kind       `json:"kind"`
	ID       string     `json:"id,omitempty"`
	Text     string     `json:"text,omitempty"`
	Children []*Element `json:"children,omitempty"`
}

// NewElement returns an empty element of the given kind.
func NewElement(kind Kind) *Element {
	return &Element{Kind: kind}
}

// FromString returns a text element carrying s.
func FromString(s string) *Element {
	return &Element{Kind: KindText, Text: s}
}

// SetID assigns a stable id to a detached element. Attached elements must be
// given ids through a Handle so the page can enforce uniqueness.
func (e *Element) SetID(id string) {
	e.ID = id
}

// AppendChild appends child to a detached element.
func (e *Element) AppendChild(child *Element) {
	e.Children = append(e.Children, child)
}

// Child returns the i-th child or nil.
func (e *Element) Child(i int) *Element {
	if i < 0 || i >= len(e.Children) {
		return nil
	}
	return e.Children[i]
}

// Clone returns a deep copy of e.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	c := &Element{Kind: e.Kind, ID: e.ID, Text: e.Text}
	if len(e.Children) > 0 {
		c.Children = make([]*Element, len(e.Children))
		for i, ch := range e.Children {
			c.Children[i] = ch.Clone()
		}
	}
	return c
}

// Walk calls fn for e and every descendant in depth-first pre-order, passing
// the path of each node relative to e.
func (e *Element) Walk(fn func(p Path, el *Element)) {
	e.walk(nil, fn)
}

func (e *Element) walk(p Path, fn func(Path, *Element)) {
	fn(p, e)
	for i, ch := range e.Children {
		ch.walk(p.Child(i), fn)
	}
}

// Equal reports whether a and b have the same kind, id, text and children.
func Equal(a, b *Element) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.ID != b.ID || a.Text != b.Text || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// ids collects the non-empty ids in the subtree rooted at e and fails if
// the subtree itself repeats one.
func (e *Element) ids() ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	var dup string
	e.Walk(func(_ Path, el *Element) {
		if el.ID == "" || dup != "" {
			return
		}
		if seen[el.ID] {
			dup = el.ID
			return
		}
		seen[el.ID] = true
		out = append(out, el.ID)
	})
	if dup != "" {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, dup)
	}
	return out, nil
}
