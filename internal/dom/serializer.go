// File: internal/dom/serializer.go
package dom

import (
	"fmt"
	"strings"
)

const maxElementTextLength = 250

// ClickableElementsToString renders the indexed element list the model sees,
// one line per actionable element:
//
//	[12]<button aria-label="Search">Submit</button>
//
// Visible text between actionable elements is emitted as bare lines so the
// model retains surrounding context. includeAttrs whitelists the attributes
// worth spending tokens on.
func ClickableElementsToString(root *ElementNode, includeAttrs []string) string {
	var lines []string

	var walk func(n Node)
	walk = func(n Node) {
		switch node := n.(type) {
		case *ElementNode:
			if node.HighlightIndex != nil {
				text := truncate(node.GetText(), maxElementTextLength)
				attrs := formatAttributes(node, includeAttrs)
				line := fmt.Sprintf("[%d]<%s%s>%s</%s>", *node.HighlightIndex, node.TagName, attrs, text, node.TagName)
				lines = append(lines, line)
			}
			for _, c := range node.Children {
				walk(c)
			}
		case *TextNode:
			if node.IsVisible && !hasIndexedAncestor(node) {
				lines = append(lines, truncate(node.Text, maxElementTextLength))
			}
		}
	}
	walk(root)

	return strings.Join(lines, "\n")
}

// hasIndexedAncestor reports whether the text node already contributes to an
// actionable element's line.
func hasIndexedAncestor(t *TextNode) bool {
	for p := t.Parent(); p != nil; p = p.Parent() {
		if p.HighlightIndex != nil {
			return true
		}
	}
	return false
}

func formatAttributes(el *ElementNode, includeAttrs []string) string {
	if len(includeAttrs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, key := range includeAttrs {
		if val, ok := el.Attributes[key]; ok && val != "" {
			sb.WriteString(fmt.Sprintf(" %s=%q", key, truncate(val, 60)))
		}
	}
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
