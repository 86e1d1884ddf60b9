package bridge

import (
	"context"
	"fmt"
	"log/slog"
)

// menuMargin keeps the menu off the viewport edge when clamping.
const menuMargin = 10

// actionHighlight is the one menu action the bridge interprets itself;
// every other action is forwarded to the host verbatim.
const actionHighlight = "highlight"

// Menu positions and dispatches the floating selection action menu. The
// menu's DOM lives in the wrapper page; this controller owns its placement
// and its action routing. visible is written from concurrent event
// goroutines and is guarded by the session mutex.
type Menu struct {
	session *Session
	visible bool
}

func (m *Menu) setVisible(v bool) {
	m.session.mu.Lock()
	m.visible = v
	m.session.mu.Unlock()
}

func (m *Menu) isVisible() bool {
	m.session.mu.Lock()
	defer m.session.mu.Unlock()
	return m.visible
}

// clampToViewport repositions the menu flush against the right/bottom edge
// (minus the margin) when it would overflow, and never left of or above the
// origin.
func clampToViewport(x, y, menuW, menuH, viewW, viewH float64) (float64, float64) {
	if maxX := viewW - menuW - menuMargin; x > maxX {
		x = maxX
	}
	if maxY := viewH - menuH - menuMargin; y > maxY {
		y = maxY
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return x, y
}

// Show makes the menu visible at (x, y), clamped within the viewport.
func (m *Menu) Show(ctx context.Context, x, y float64, viewport, menuSize size) {
	x, y = clampToViewport(x, y, menuSize.W, menuSize.H, viewport.W, viewport.H)
	m.setVisible(true)
	if err := m.session.eval(ctx, fmt.Sprintf("window.__pbShowMenu(%g, %g)", x, y), nil); err != nil {
		slog.Warn("show menu", "err", err)
	}
}

// Hide is unconditional and idempotent.
func (m *Menu) Hide(ctx context.Context) {
	m.setVisible(false)
	if err := m.session.eval(ctx, "window.__pbHideMenu()", nil); err != nil {
		slog.Debug("hide menu", "err", err)
	}
}

// Dispatch routes a chosen action. It always hides first and no-ops on an
// empty selection. "highlight" creates an annotation; anything else goes to
// the host with the selected text for interpretation.
func (m *Menu) Dispatch(ctx context.Context, action string) {
	m.Hide(ctx)

	sel := m.session.Selection()
	if sel.Empty() {
		return
	}

	if action == actionHighlight {
		m.session.overlays.CreateFromSelection(ctx)
		return
	}
	m.session.notifier.ContextAction(action, sel.Text)
}
