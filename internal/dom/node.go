// File: internal/dom/node.go
package dom

import (
	"strings"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// Node is the closed set of tree members: *ElementNode or *TextNode.
// Children are owned exclusively by their parent; the parent pointer is a
// non-owning back-reference used only for upward traversal.
type Node interface {
	Parent() *ElementNode
	setParent(p *ElementNode)
}

// ElementNode is a single element in a snapshot's tree.
type ElementNode struct {
	TagName    string
	Attributes map[string]string
	Children   []Node

	XPath string

	IsVisible     bool
	IsInteractive bool
	IsTopElement  bool
	IsInViewport  bool
	ShadowRoot    bool

	// HighlightIndex is non-nil iff the element is present in the snapshot's
	// selector map.
	HighlightIndex *int

	ViewportCoords *schemas.CoordinateSet
	PageCoords     *schemas.CoordinateSet

	parent *ElementNode
}

// TextNode is a visible text fragment. Whitespace-only text is never
// materialized by the builder.
type TextNode struct {
	Text      string
	IsVisible bool

	parent *ElementNode
}

func (e *ElementNode) Parent() *ElementNode   { return e.parent }
func (e *ElementNode) setParent(p *ElementNode) { e.parent = p }
func (t *TextNode) Parent() *ElementNode      { return t.parent }
func (t *TextNode) setParent(p *ElementNode)  { t.parent = p }

// SelectorMap resolves a model-facing index to the element it denotes. It is
// valid only for the lifetime of the snapshot that produced it.
type SelectorMap map[int]*ElementNode

// Snapshot is one capture of the page: the element tree plus the flat index
// of currently actionable elements.
type Snapshot struct {
	Root     *ElementNode
	Selector SelectorMap
	// IndexCollisions counts probe payload entries that claimed an index
	// already taken. Collisions are resolved last-write-wins but surfaced so
	// the caller can log the invariant violation.
	IndexCollisions int
}

// Fingerprints returns the fingerprint of every indexed element in the
// selector map, keyed by the fingerprint's composite identity.
func (s *Snapshot) Fingerprints() map[schemas.Fingerprint]struct{} {
	set := make(map[schemas.Fingerprint]struct{}, len(s.Selector))
	for _, el := range s.Selector {
		set[FingerprintElement(el)] = struct{}{}
	}
	return set
}

// GetText aggregates the element's descendant text until hitting a nested
// actionable element, which starts its own context.
func (e *ElementNode) GetText() string {
	var parts []string
	var walk func(n Node)
	walk = func(n Node) {
		switch node := n.(type) {
		case *TextNode:
			if node.IsVisible {
				parts = append(parts, node.Text)
			}
		case *ElementNode:
			if node != e && node.HighlightIndex != nil {
				return
			}
			for _, c := range node.Children {
				walk(c)
			}
		}
	}
	walk(e)
	return strings.TrimSpace(strings.Join(parts, " "))
}
