package bridge

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"
)

// minSelectionRunes is the qualifying length for a selection; anything
// shorter clears the selection state and hides the menu.
const minSelectionRunes = 2

// pageNumberAttr marks a viewer page container element. Resolution walks
// the selection anchor's ancestry until an element carrying it is found.
const pageNumberAttr = "data-page-number"

// Ancestor is one element in a selection anchor's ancestor chain, shipped
// by the capture script ordered innermost to outermost. The walk is over
// this neutral shape, not any DOM API.
type Ancestor struct {
	Tag   string            `json:"tag"`
	Attrs map[string]string `json:"attrs"`
}

// NearestLabeled returns the value of attr on the nearest ancestor carrying
// it, walking innermost to outermost.
func NearestLabeled(ancestors []Ancestor, attr string) (string, bool) {
	for _, a := range ancestors {
		if v, ok := a.Attrs[attr]; ok {
			return v, true
		}
	}
	return "", false
}

// ResolvePage finds the logical page owning a selection. Reaching the root
// without a page marker yields page 0: degraded but non-fatal.
func ResolvePage(ancestors []Ancestor) int {
	v, ok := NearestLabeled(ancestors, pageNumberAttr)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// point and size are tiny wire helpers for the capture script's geometry.
type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// selectionEvent is the payload the capture script posts after the settle
// delay following a pointer release inside the viewer frame.
type selectionEvent struct {
	Text      string     `json:"text"`
	Rects     []Rect     `json:"rects"`
	Ancestors []Ancestor `json:"ancestors"`
	PointerX  float64    `json:"pointerX"`
	PointerY  float64    `json:"pointerY"`
	Frame     point      `json:"frame"`
	Viewport  size       `json:"viewport"`
	Menu      size       `json:"menu"`
}

// handleSelection applies the selection rules: trim, minimum length, page
// resolution, host notification, and menu placement. Pointer coordinates are
// frame-local and are translated into the outer page's space through the
// frame's bounding rect offset.
func (s *Session) handleSelection(ctx context.Context, ev selectionEvent) {
	text := strings.TrimSpace(ev.Text)
	if utf8.RuneCountInString(text) < minSelectionRunes {
		s.mu.Lock()
		s.selection = SelectionState{}
		s.mu.Unlock()
		s.menu.Hide(ctx)
		return
	}

	page := ResolvePage(ev.Ancestors)
	if page == 0 {
		slog.Debug("selection anchor has no page marker, defaulting to 0")
	}

	s.mu.Lock()
	s.selection = SelectionState{Text: text, Rects: ev.Rects, Page: page}
	s.mu.Unlock()

	s.notifier.TextSelected(text)

	x := ev.PointerX + ev.Frame.X
	y := ev.PointerY + ev.Frame.Y
	s.menu.Show(ctx, x, y, ev.Viewport, ev.Menu)
}

// Selection returns a copy of the current selection state.
func (s *Session) Selection() SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}
