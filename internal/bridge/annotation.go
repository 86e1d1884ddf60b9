package bridge

import "strings"

// PendingID is the sentinel identifier carried by an optimistically rendered
// annotation until the host confirms the durable one.
const PendingID = -1

// highlightAlpha is appended to the annotation color when rendering, so
// overlays never fully obscure the text underneath.
const highlightAlpha = "66"

// Rect is a rectangle in the viewer frame's viewport coordinate space at
// capture time. Immutable once captured.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Annotation is a persisted or pending highlight record. Host-sourced
// annotations carry a durable positive ID; locally created ones carry
// PendingID until confirmed.
type Annotation struct {
	ID      int    `json:"id"`
	Page    int    `json:"page"`
	Content string `json:"content"`
	Rects   []Rect `json:"rects"`
	Color   string `json:"color"`
	Comment string `json:"comment"`
}

// Tooltip is the hover text for the annotation's overlay elements: the
// comment when present, otherwise the highlighted content.
func (a Annotation) Tooltip() string {
	if a.Comment != "" {
		return a.Comment
	}
	return a.Content
}

// SelectionState is the current text selection inside the viewer frame.
// Cleared whenever a new selection falls below the minimum length.
type SelectionState struct {
	Text  string `json:"text"`
	Rects []Rect `json:"rects"`
	Page  int    `json:"page"`
}

func (s SelectionState) Empty() bool {
	return strings.TrimSpace(s.Text) == "" || len(s.Rects) == 0
}

// TextLayerMetrics is the live position of a page's text layer in frame
// viewport coordinates, plus its scroll offsets. Queried immediately before
// rendering so overlays land in the layer's current layout.
type TextLayerMetrics struct {
	Found      bool    `json:"found"`
	Left       float64 `json:"left"`
	Top        float64 `json:"top"`
	ScrollLeft float64 `json:"scrollLeft"`
	ScrollTop  float64 `json:"scrollTop"`
}

// localRect translates a capture-time viewport rect into the text layer's
// current local coordinate space.
func localRect(r Rect, m TextLayerMetrics) Rect {
	return Rect{
		X: r.X - m.Left + m.ScrollLeft,
		Y: r.Y - m.Top + m.ScrollTop,
		W: r.W,
		H: r.H,
	}
}

// blendColor appends the fixed translucency suffix to a hex color.
func blendColor(hex string) string {
	return hex + highlightAlpha
}
