package ui

import (
	"strconv"
	"strings"
)

// Path addresses an element by child indices from the root. The empty path
// is the root. Paths are transient: inserting or removing an ancestor or an
// earlier sibling invalidates them.
type Path []int

// Root returns the path of the page root.
func Root() Path { return Path{} }

// Child returns a new path one level below p.
func (p Path) Child(i int) Path {
	c := make(Path, len(p)+1)
	copy(c, p)
	c[len(p)] = i
	return c
}

// IsRoot reports whether p addresses the root.
func (p Path) IsRoot() bool { return len(p) == 0 }

// Clone returns an independent copy of p.
func (p Path) Clone() Path {
	c := make(Path, len(p))
	copy(c, p)
	return c
}

func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return "/" + strings.Join(parts, "/")
}

// resolve walks p from root. It returns nil if any index is out of range.
func (p Path) resolve(root *Element) *Element {
	el := root
	for _, i := range p {
		if el == nil {
			return nil
		}
		el = el.Child(i)
	}
	return el
}

// Locator names an element by stable id, by path, or both. Resolution
// prefers the id and falls back to the path.
type Locator struct {
	ID   string
	Path Path
}

// ByID returns a locator that resolves through the id index.
func ByID(id string) Locator { return Locator{ID: id} }

// ByPath returns a locator that resolves structurally.
func ByPath(p Path) Locator { return Locator{Path: p} }

func (l Locator) String() string {
	if l.ID != "" {
		return "#" + l.ID
	}
	return l.Path.String()
}
