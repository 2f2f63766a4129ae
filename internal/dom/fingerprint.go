// File: internal/dom/fingerprint.go
package dom

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// FingerprintElement computes the structural identity of an element. The
// triple is computed on demand and never cached across snapshots; snapshots
// are short-lived and the hashes are cheap FNV-1a digests.
func FingerprintElement(el *ElementNode) schemas.Fingerprint {
	return schemas.Fingerprint{
		BranchPathHash: hashString(branchPath(el)),
		AttributesHash: hashString(attributeString(el.Attributes)),
		XPathHash:      hashString(el.XPath),
	}
}

// branchPath walks from the element to the root emitting "tag:index" per
// ancestor, then reverses so the root comes first.
func branchPath(el *ElementNode) string {
	var segments []string
	for n := el; n != nil; n = n.Parent() {
		idx := "null"
		if n.HighlightIndex != nil {
			idx = fmt.Sprintf("%d", *n.HighlightIndex)
		}
		segments = append(segments, n.TagName+":"+idx)
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, "/")
}

// attributeString serializes attributes sorted by key, so the hash is
// order-independent but value-sensitive.
func attributeString(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+":"+attrs[k])
	}
	return strings.Join(pairs, ";")
}

func hashString(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}

// FindInTree locates the element matching fp in a different snapshot's tree.
// It fingerprints every indexed node depth-first and returns the first
// structural match in document order, or nil when the element is no longer
// resolvable.
func FindInTree(fp schemas.Fingerprint, root *ElementNode) *ElementNode {
	var found *ElementNode
	walkElements(root, func(el *ElementNode) {
		if found != nil || el.HighlightIndex == nil {
			return
		}
		if FingerprintElement(el).Equal(fp) {
			found = el
		}
	})
	return found
}
