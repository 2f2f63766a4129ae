package schemas

// -- Structural Probe Payload --

// RawNode is one entry in the flat node map returned by the in-page
// structural probe. Element nodes carry tag/attribute/flag data; text nodes
// set Type to "TEXT_NODE" and carry Text only.
type RawNode struct {
	Type          string            `json:"type,omitempty"`
	TagName       string            `json:"tagName,omitempty"`
	Text          string            `json:"text,omitempty"`
	XPath         string            `json:"xpath,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	Children      []string          `json:"children,omitempty"`
	IsVisible     bool              `json:"isVisible,omitempty"`
	IsInteractive bool              `json:"isInteractive,omitempty"`
	IsTopElement  bool              `json:"isTopElement,omitempty"`
	IsInViewport  bool              `json:"isInViewport,omitempty"`
	ShadowRoot    bool              `json:"shadowRoot,omitempty"`
	// HighlightIndex is assigned by the probe, not by the snapshot builder.
	// Nil means the element is not currently actionable.
	HighlightIndex *int           `json:"highlightIndex,omitempty"`
	ViewportCoords *CoordinateSet `json:"viewportCoordinates,omitempty"`
	PageCoords     *CoordinateSet `json:"pageCoordinates,omitempty"`
}

// RawSnapshot is the full probe payload: a designated root id plus a flat
// id-to-node map. Relationships are expressed through child id lists and may
// reference ids absent from the map; consumers must tolerate that.
type RawSnapshot struct {
	RootID string             `json:"rootId"`
	Map    map[string]RawNode `json:"map"`
}

// Coordinate is a single point in CSS pixels.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CoordinateSet describes an element's box in either viewport or page space.
type CoordinateSet struct {
	TopLeft     Coordinate `json:"topLeft"`
	BottomRight Coordinate `json:"bottomRight"`
	Center      Coordinate `json:"center"`
	Width       float64    `json:"width"`
	Height      float64    `json:"height"`
}

// CaptureOptions controls a single snapshot capture.
type CaptureOptions struct {
	// Highlight draws index badges over actionable elements.
	Highlight bool `json:"highlight"`
	// FocusIndex, when >= 0, asks the probe to visually emphasize and scroll
	// to a single element instead of highlighting everything.
	FocusIndex int `json:"focusIndex"`
	// ViewportExpansion extends the "in viewport" band by this many pixels in
	// each direction; -1 means the whole page.
	ViewportExpansion int `json:"viewportExpansion"`
}

// -- Page / Tab State --

// PageInfo is the page identity attached to every state message.
type PageInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	// PixelsAbove and PixelsBelow describe scroll position relative to the
	// current viewport.
	PixelsAbove int64 `json:"pixels_above"`
	PixelsBelow int64 `json:"pixels_below"`
}

// TabInfo identifies one open tab in the browsing session.
type TabInfo struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}
