// File: internal/dom/builder.go
package dom

import (
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// Builder converts the raw probe payload into an element tree plus selector
// map. It does not assign highlight indices; those come from the browser-side
// probe and are only read here.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a snapshot builder.
func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger.Named("dom_builder")}
}

// Build materializes a Snapshot from the raw payload. Malformed payloads
// (nil, missing root, empty map) yield a placeholder root with an empty
// selector map rather than an error; callers must tolerate a degraded
// snapshot.
func (b *Builder) Build(raw *schemas.RawSnapshot) *Snapshot {
	if raw == nil || raw.RootID == "" || len(raw.Map) == 0 {
		b.logger.Warn("Malformed probe payload; returning placeholder snapshot")
		return placeholderSnapshot()
	}

	// First pass: materialize every node without wiring relationships. The
	// probe payload may arrive partial or out of order.
	nodes := make(map[string]Node, len(raw.Map))
	for id, rn := range raw.Map {
		n := buildNode(rn)
		if n != nil {
			nodes[id] = n
		}
	}

	root, ok := nodes[raw.RootID].(*ElementNode)
	if !ok {
		b.logger.Warn("Probe payload root missing or not an element", zap.String("root_id", raw.RootID))
		return placeholderSnapshot()
	}

	// Second pass: wire parent/child links, skipping child ids absent from
	// the node set.
	for id, rn := range raw.Map {
		parent, ok := nodes[id].(*ElementNode)
		if !ok {
			continue
		}
		for _, childID := range rn.Children {
			child, ok := nodes[childID]
			if !ok {
				continue
			}
			child.setParent(parent)
			parent.Children = append(parent.Children, child)
		}
	}

	selector := make(SelectorMap)
	collisions := 0
	walkElements(root, func(el *ElementNode) {
		if el.HighlightIndex == nil {
			return
		}
		idx := *el.HighlightIndex
		if _, exists := selector[idx]; exists {
			collisions++
			b.logger.Warn("Duplicate highlight index in probe payload; keeping last occurrence",
				zap.Int("index", idx), zap.String("tag", el.TagName))
		}
		selector[idx] = el
	})

	return &Snapshot{Root: root, Selector: selector, IndexCollisions: collisions}
}

// buildNode converts one raw entry; whitespace-only text nodes are dropped
// entirely and return nil.
func buildNode(rn schemas.RawNode) Node {
	if rn.Type == "TEXT_NODE" {
		if strings.TrimSpace(rn.Text) == "" {
			return nil
		}
		return &TextNode{Text: rn.Text, IsVisible: rn.IsVisible}
	}

	attrs := rn.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &ElementNode{
		TagName:        strings.ToLower(rn.TagName),
		Attributes:     attrs,
		XPath:          rn.XPath,
		IsVisible:      rn.IsVisible,
		IsInteractive:  rn.IsInteractive,
		IsTopElement:   rn.IsTopElement,
		IsInViewport:   rn.IsInViewport,
		ShadowRoot:     rn.ShadowRoot,
		HighlightIndex: rn.HighlightIndex,
		ViewportCoords: rn.ViewportCoords,
		PageCoords:     rn.PageCoords,
	}
}

// placeholderSnapshot is the degraded result for unusable payloads.
func placeholderSnapshot() *Snapshot {
	return &Snapshot{
		Root: &ElementNode{
			TagName:    "body",
			Attributes: map[string]string{},
			XPath:      "/body",
			IsVisible:  false,
		},
		Selector: make(SelectorMap),
	}
}

// walkElements visits every element of the tree depth-first in document
// order.
func walkElements(root *ElementNode, visit func(*ElementNode)) {
	if root == nil {
		return
	}
	visit(root)
	for _, c := range root.Children {
		if el, ok := c.(*ElementNode); ok {
			walkElements(el, visit)
		}
	}
}
