package ui

import (
	"fmt"

	"github.com/google/uuid"
)

// Page is the root container of a node's UI plus page-level metadata. It is
// the unit of full transmission and of identity on the remote side.
type Page struct {
	Owner uuid.UUID `json:"owner"`
	Name  string    `json:"name"`
	Root  *Element  `json:"root"`
}

// Clone returns a deep copy of p.
func (p Page) Clone() Page {
	return Page{Owner: p.Owner, Name: p.Name, Root: p.Root.Clone()}
}

// ElementUpdate records that the element located by ID (when set) or else by
// Path now has the given content, subtree included.
type ElementUpdate struct {
	ID      string   `json:"id,omitempty"`
	Path    Path     `json:"path,omitempty"`
	Element *Element `json:"element"`
}

// Locator returns where the update applies.
func (u ElementUpdate) Locator() Locator {
	return Locator{ID: u.ID, Path: u.Path}
}

// PageManager owns one page and its change ledger. Every mutation goes
// through a Handle obtained here, so every mutation is observed by the
// ledger. A PageManager is not safe for concurrent use; callers serialize
// access.
type PageManager struct {
	page   Page
	index  map[string]*Element
	ledger []ElementUpdate
}

// NewPageManager creates a manager for an empty page owned by owner.
func NewPageManager(owner uuid.UUID, name string) *PageManager {
	return &PageManager{
		page: Page{
			Owner: owner,
			Name:  name,
			Root:  NewElement(KindColumns),
		},
		index: make(map[string]*Element),
	}
}

// Page returns the live page. The returned value shares the element tree;
// callers must treat it as read-only.
func (m *PageManager) Page() Page {
	return m.page
}

// Snapshot returns a deep copy of the page, suitable for transmission.
func (m *PageManager) Snapshot() Page {
	return m.page.Clone()
}

// Lookup resolves loc to a mutable handle. The id is tried first; the path
// is used only when the locator carries no id.
func (m *PageManager) Lookup(loc Locator) (*Handle, error) {
	if loc.ID != "" {
		el, ok := m.index[loc.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		return &Handle{m: m, el: el}, nil
	}
	el := loc.Path.resolve(m.page.Root)
	if el == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return &Handle{m: m, el: el, path: loc.Path.Clone(), hasPath: true}, nil
}

// ElementAt resolves a structural path.
func (m *PageManager) ElementAt(p Path) (*Handle, error) {
	return m.Lookup(ByPath(p))
}

// ElementByID resolves a stable id.
func (m *PageManager) ElementByID(id string) (*Handle, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	return m.Lookup(ByID(id))
}

// GetChanges drains the ledger and returns every update recorded since the
// previous call, in mutation order. An empty ledger yields an empty slice.
func (m *PageManager) GetChanges() []ElementUpdate {
	out := m.ledger
	if out == nil {
		out = []ElementUpdate{}
	}
	m.ledger = nil
	return out
}

// Pending returns the number of ledger entries waiting to be flushed.
func (m *PageManager) Pending() int {
	return len(m.ledger)
}

func (m *PageManager) record(key Locator, el *Element) {
	m.ledger = append(m.ledger, ElementUpdate{
		ID:      key.ID,
		Path:    key.Path,
		Element: el.Clone(),
	})
}

// pathOf finds the current structural path of target.
func (m *PageManager) pathOf(target *Element) (Path, bool) {
	var found Path
	ok := false
	m.page.Root.Walk(func(p Path, el *Element) {
		if !ok && el == target {
			found, ok = p.Clone(), true
		}
	})
	return found, ok
}

// Handle is exclusive mutable access to one element of a managed page.
// Release it before mutating the page through another handle.
type Handle struct {
	m       *PageManager
	el      *Element
	path    Path
	hasPath bool
}

func (h *Handle) Kind() Kind       { return h.el.Kind }
func (h *Handle) ID() string       { return h.el.ID }
func (h *Handle) Text() string     { return h.el.Text }
func (h *Handle) NumChildren() int { return len(h.el.Children) }

// key locates the element the way the remote side will: by id when it has
// one, else by its current path.
func (h *Handle) key() Locator {
	if h.el.ID != "" {
		return ByID(h.el.ID)
	}
	if !h.hasPath {
		h.path, h.hasPath = h.m.pathOf(h.el)
	}
	return ByPath(h.path.Clone())
}

// SetKind changes the element kind.
func (h *Handle) SetKind(k Kind) {
	key := h.key()
	h.el.Kind = k
	h.m.record(key, h.el)
}

// SetText changes the element text.
func (h *Handle) SetText(s string) {
	key := h.key()
	h.el.Text = s
	h.m.record(key, h.el)
}

// SetID gives the element a new stable id, or clears it when id is empty.
func (h *Handle) SetID(id string) error {
	if id == h.el.ID {
		return nil
	}
	if other, ok := h.m.index[id]; ok && other != h.el {
		return fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	key := h.key()
	if h.el.ID != "" {
		delete(h.m.index, h.el.ID)
	}
	h.el.ID = id
	if id != "" {
		h.m.index[id] = h.el
	}
	h.m.record(key, h.el)
	return nil
}

// AppendChild appends a copy of child, subtree included, to the end of the
// element's children. The child gets no implicit id. Later edits to child
// itself do not reach the page.
func (h *Handle) AppendChild(child *Element) error {
	if child == nil {
		return fmt.Errorf("ui: append nil child to %s", h.key())
	}
	ids, err := child.ids()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := h.m.index[id]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
	}
	key := h.key()
	c := child.Clone()
	h.el.Children = append(h.el.Children, c)
	c.Walk(func(_ Path, el *Element) {
		if el.ID != "" {
			h.m.index[el.ID] = el
		}
	})
	h.m.record(key, h.el)
	return nil
}
