// File: internal/dom/fingerprint_test.go
package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFingerprintIsDeterministic(t *testing.T) {
	snap := NewBuilder(zap.NewNop()).Build(rawPage())
	button := snap.Selector[0]
	require.NotNil(t, button)

	first := FingerprintElement(button)
	second := FingerprintElement(button)
	assert.True(t, first.Equal(second))
	assert.Len(t, first.BranchPathHash, 16)
	assert.Len(t, first.AttributesHash, 16)
	assert.Len(t, first.XPathHash, 16)
}

func TestFingerprintAttributeOrderIndependent(t *testing.T) {
	a := &ElementNode{TagName: "input", XPath: "/body/input",
		Attributes: map[string]string{"name": "q", "type": "text", "placeholder": "Search"}}
	b := &ElementNode{TagName: "input", XPath: "/body/input",
		Attributes: map[string]string{"placeholder": "Search", "type": "text", "name": "q"}}

	assert.Equal(t, FingerprintElement(a).AttributesHash, FingerprintElement(b).AttributesHash)
}

func TestFingerprintDistinguishesElements(t *testing.T) {
	snap := NewBuilder(zap.NewNop()).Build(rawPage())
	fpButton := FingerprintElement(snap.Selector[0])
	fpLink := FingerprintElement(snap.Selector[1])

	assert.False(t, fpButton.Equal(fpLink))
	assert.NotEqual(t, fpButton.XPathHash, fpLink.XPathHash)
	assert.NotEqual(t, fpButton.BranchPathHash, fpLink.BranchPathHash)
}

func TestFindInTreeResolvesAcrossSnapshots(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	first := b.Build(rawPage())
	fp := FingerprintElement(first.Selector[1])

	// A fresh capture of the same page produces distinct node objects; identity
	// must still resolve structurally.
	second := b.Build(rawPage())
	found := FindInTree(fp, second.Root)
	require.NotNil(t, found)
	assert.NotSame(t, first.Selector[1], found)
	assert.Equal(t, "a", found.TagName)
	require.NotNil(t, found.HighlightIndex)
	assert.Equal(t, 1, *found.HighlightIndex)
}

func TestFindInTreeReturnsNilWhenElementGone(t *testing.T) {
	b := NewBuilder(zap.NewNop())
	first := b.Build(rawPage())
	fp := FingerprintElement(first.Selector[1])

	// Remove the link from the page.
	raw := rawPage()
	node := raw.Map["n0"]
	node.Children = []string{"n1"}
	raw.Map["n0"] = node
	delete(raw.Map, "n5")
	delete(raw.Map, "n6")

	second := b.Build(raw)
	assert.Nil(t, FindInTree(fp, second.Root))
}

func TestSnapshotFingerprintsCoversSelectorMap(t *testing.T) {
	snap := NewBuilder(zap.NewNop()).Build(rawPage())
	set := snap.Fingerprints()
	require.Len(t, set, 2)

	for _, el := range snap.Selector {
		_, ok := set[FingerprintElement(el)]
		assert.True(t, ok)
	}
}
