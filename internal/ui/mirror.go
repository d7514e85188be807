package ui

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPage is returned by Mirror.Apply before any page was set.
var ErrNoPage = errors.New("ui: mirror has no page")

// Mirror is the receiving side of page synchronization. It holds the last
// full page and replays update batches onto it in order.
type Mirror struct {
	page  Page
	index map[string]*Element
	set   bool
}

// NewMirror returns an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{index: make(map[string]*Element)}
}

// SetPage replaces the mirrored page with a copy of p.
func (m *Mirror) SetPage(p Page) {
	m.page = p.Clone()
	m.set = true
	m.reindex()
}

// Page returns a copy of the mirrored page.
func (m *Mirror) Page() Page {
	return m.page.Clone()
}

// HasPage reports whether SetPage has been called.
func (m *Mirror) HasPage() bool { return m.set }

// Apply replays updates in order. It stops at the first update whose
// locator does not resolve.
func (m *Mirror) Apply(updates []ElementUpdate) error {
	if !m.set {
		return ErrNoPage
	}
	for i, u := range updates {
		if u.Element == nil {
			return fmt.Errorf("ui: update %d has no element", i)
		}
		target, err := m.resolve(u.Locator())
		if err != nil {
			return fmt.Errorf("applying update %d: %w", i, err)
		}
		// Overwrite in place so the parent's pointer stays valid.
		*target = *u.Element.Clone()
		m.reindex()
	}
	return nil
}

// Render returns the mirrored page as plain text.
func (m *Mirror) Render() string {
	return Render(m.page.Root)
}

func (m *Mirror) resolve(loc Locator) (*Element, error) {
	if loc.ID != "" {
		el, ok := m.index[loc.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		return el, nil
	}
	el := loc.Path.resolve(m.page.Root)
	if el == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return el, nil
}

func (m *Mirror) reindex() {
	m.index = make(map[string]*Element)
	if m.page.Root == nil {
		return
	}
	m.page.Root.Walk(func(_ Path, el *Element) {
		if el.ID != "" {
			m.index[el.ID] = el
		}
	})
}

// Render flattens an element tree into text. Rows stack children on separate
// lines, columns join them on one line.
func Render(e *Element) string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindRows:
		parts := make([]string, len(e.Children))
		for i, ch := range e.Children {
			parts[i] = Render(ch)
		}
		return strings.Join(parts, "\n")
	case KindColumns:
		var b strings.Builder
		for _, ch := range e.Children {
			b.WriteString(Render(ch))
		}
		return b.String()
	case KindSpacer:
		return ""
	default:
		return e.Text
	}
}
