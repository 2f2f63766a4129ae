// File: internal/dom/builder_test.go
package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

func intPtr(i int) *int { return &i }

// rawPage builds a small but representative probe payload:
//
//	body
//	├── div (container, not indexed)
//	│   ├── button [0] "Submit"
//	│   └── "  "            (whitespace text, must be dropped)
//	└── a [1] "Docs"
func rawPage() *schemas.RawSnapshot {
	return &schemas.RawSnapshot{
		RootID: "n0",
		Map: map[string]schemas.RawNode{
			"n0": {TagName: "BODY", XPath: "/body", IsVisible: true, Children: []string{"n1", "n5"}},
			"n1": {TagName: "DIV", XPath: "/body/div", IsVisible: true, Children: []string{"n2", "n4"}},
			"n2": {TagName: "BUTTON", XPath: "/body/div/button", IsVisible: true, IsInteractive: true,
				HighlightIndex: intPtr(0), Children: []string{"n3"}},
			"n3": {Type: "TEXT_NODE", Text: "Submit", IsVisible: true},
			"n4": {Type: "TEXT_NODE", Text: "   \n\t "},
			"n5": {TagName: "A", XPath: "/body/a", IsVisible: true, IsInteractive: true,
				HighlightIndex: intPtr(1), Attributes: map[string]string{"href": "/docs"}, Children: []string{"n6"}},
			"n6": {Type: "TEXT_NODE", Text: "Docs", IsVisible: true},
		},
	}
}

func TestBuildWiresTreeAndSelectorMap(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	snap := b.Build(rawPage())

	require.NotNil(t, snap.Root)
	assert.Equal(t, "body", snap.Root.TagName)
	require.Len(t, snap.Root.Children, 2)

	// Selector map holds exactly the indexed elements.
	require.Len(t, snap.Selector, 2)
	button := snap.Selector[0]
	link := snap.Selector[1]
	require.NotNil(t, button)
	require.NotNil(t, link)
	assert.Equal(t, "button", button.TagName)
	assert.Equal(t, "a", link.TagName)
	assert.Equal(t, "/docs", link.Attributes["href"])

	// Parent back-references reach the root.
	div := button.Parent()
	require.NotNil(t, div)
	assert.Equal(t, "div", div.TagName)
	assert.Same(t, snap.Root, div.Parent())
	assert.Nil(t, snap.Root.Parent())

	assert.Equal(t, "Submit", button.GetText())
	assert.Equal(t, 0, snap.IndexCollisions)
}

func TestBuildDropsWhitespaceOnlyText(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	snap := b.Build(rawPage())

	div, ok := snap.Root.Children[0].(*ElementNode)
	require.True(t, ok)
	// The whitespace text child "n4" must not be materialized.
	require.Len(t, div.Children, 1)
	_, isElement := div.Children[0].(*ElementNode)
	assert.True(t, isElement)
}

func TestBuildToleratesDanglingChildIDs(t *testing.T) {
	raw := rawPage()
	node := raw.Map["n1"]
	node.Children = append(node.Children, "missing-id")
	raw.Map["n1"] = node

	snap := NewBuilder(zap.NewNop()).Build(raw)
	require.Len(t, snap.Selector, 2)
}

func TestBuildMalformedPayloadReturnsPlaceholder(t *testing.T) {
	b := NewBuilder(zap.NewNop())

	cases := []struct {
		name string
		raw  *schemas.RawSnapshot
	}{
		{"nil payload", nil},
		{"empty root id", &schemas.RawSnapshot{Map: map[string]schemas.RawNode{"x": {TagName: "DIV"}}}},
		{"empty map", &schemas.RawSnapshot{RootID: "n0"}},
		{"root id not in map", &schemas.RawSnapshot{RootID: "gone", Map: map[string]schemas.RawNode{"x": {TagName: "DIV"}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := b.Build(tc.raw)
			require.NotNil(t, snap)
			require.NotNil(t, snap.Root)
			assert.Equal(t, "body", snap.Root.TagName)
			assert.Empty(t, snap.Selector)
		})
	}
}

func TestBuildIndexCollisionKeepsLastAndCounts(t *testing.T) {
	raw := &schemas.RawSnapshot{
		RootID: "n0",
		Map: map[string]schemas.RawNode{
			"n0": {TagName: "BODY", XPath: "/body", Children: []string{"n1", "n2"}},
			"n1": {TagName: "BUTTON", XPath: "/body/button[1]", HighlightIndex: intPtr(7)},
			"n2": {TagName: "BUTTON", XPath: "/body/button[2]", HighlightIndex: intPtr(7)},
		},
	}

	snap := NewBuilder(zap.NewNop()).Build(raw)
	assert.Equal(t, 1, snap.IndexCollisions)
	require.Len(t, snap.Selector, 1)
	// Document order is deterministic: the later sibling wins.
	assert.Equal(t, "/body/button[2]", snap.Selector[7].XPath)
}
