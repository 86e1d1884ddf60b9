package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
)

// Overlays renders persisted and newly created annotations as positioned
// elements on top of the viewer's text layers, and keeps the in-memory
// annotation set in sync with the host.
//
// Creation is optimistic: the overlay is drawn with PendingID immediately,
// before the host acknowledges persistence. ConfirmCreate retags the pending
// entry and its rendered elements with the durable identifier so later
// detail clicks reference the real record, not the sentinel.
type Overlays struct {
	session *Session
}

// CreateFromSelection builds an annotation from the current selection,
// asks the host to persist it (fire and forget), and renders it locally.
// No-op when the selection is empty or has no rects.
func (o *Overlays) CreateFromSelection(ctx context.Context) {
	s := o.session

	sel := s.Selection()
	if sel.Empty() {
		return
	}

	a := Annotation{
		ID:      PendingID,
		Page:    sel.Page,
		Content: sel.Text,
		Rects:   sel.Rects,
		Color:   s.cfg.HighlightColor,
		Comment: "",
	}

	s.mu.Lock()
	s.annotations = append(s.annotations, a)
	s.mu.Unlock()

	s.notifier.AnnotationRequest(a)

	if err := o.render(ctx, a); err != nil {
		slog.Warn("render new annotation", "page", a.Page, "err", err)
	}
	s.toast.Show(ctx, "Highlight saved")
}

// LoadAll replaces the annotation set and renders every entry. Called by
// the host after viewer readiness; calling it again is a full resync.
func (o *Overlays) LoadAll(ctx context.Context, list []Annotation) {
	s := o.session

	s.mu.Lock()
	s.annotations = append([]Annotation(nil), list...)
	s.mu.Unlock()

	if err := s.eval(ctx, "window.__pbClearOverlays()", nil); err != nil {
		slog.Debug("clear overlays", "err", err)
	}

	for _, a := range list {
		if err := o.render(ctx, a); err != nil {
			slog.Warn("render annotation", "id", a.ID, "page", a.Page, "err", err)
		}
	}
	slog.Info("annotations loaded", "count", len(list))
}

// ConfirmCreate is the host's acknowledgment of the most recent optimistic
// create. The pending entry is retagged with the durable identifier, in the
// store and on its rendered overlay elements.
func (o *Overlays) ConfirmCreate(ctx context.Context, realID int) {
	s := o.session

	s.mu.Lock()
	confirmed := false
	for i := len(s.annotations) - 1; i >= 0; i-- {
		if s.annotations[i].ID == PendingID {
			s.annotations[i].ID = realID
			confirmed = true
			break
		}
	}
	s.mu.Unlock()

	if !confirmed {
		slog.Warn("annotation confirm with no pending entry", "id", realID)
		return
	}

	js := fmt.Sprintf("window.__pbRetagOverlays(%d, %d)", PendingID, realID)
	if err := s.eval(ctx, js, nil); err != nil {
		slog.Warn("retag overlays", "id", realID, "err", err)
	}
	slog.Info("annotation confirmed", "id", realID)
}

// Annotations returns a copy of the in-memory annotation set.
func (s *Session) Annotations() []Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Annotation(nil), s.annotations...)
}

// render draws one overlay element per rect, translated into the target
// text layer's current coordinate space. A missing page container or text
// layer is expected under lazy page rendering: log and skip, no error.
func (o *Overlays) render(ctx context.Context, a Annotation) error {
	s := o.session

	var m TextLayerMetrics
	probe := fmt.Sprintf("window.__pbPageMetrics(%d)", a.Page)
	if err := s.eval(ctx, probe, &m); err != nil {
		return fmt.Errorf("page metrics: %w", err)
	}
	if !m.Found {
		slog.Debug("page not rendered, skipping overlay", "page", a.Page, "id", a.ID)
		return nil
	}

	locals := make([]Rect, len(a.Rects))
	for i, r := range a.Rects {
		locals[i] = localRect(r, m)
	}

	rectsJSON, err := json.Marshal(locals)
	if err != nil {
		return fmt.Errorf("marshal rects: %w", err)
	}

	js := fmt.Sprintf("window.__pbDrawOverlay(%d, %d, %s, %s, %s)",
		a.ID, a.Page, rectsJSON,
		strconv.Quote(blendColor(a.Color)),
		strconv.Quote(a.Tooltip()))
	if err := s.eval(ctx, js, nil); err != nil {
		return fmt.Errorf("draw overlay: %w", err)
	}
	return nil
}

// handleOverlayClick forwards an annotation detail request to the host as a
// contextAction with a serialized {id, content, comment} payload.
func (s *Session) handleOverlayClick(id int) {
	s.mu.Lock()
	var found *Annotation
	for i := range s.annotations {
		if s.annotations[i].ID == id {
			found = &s.annotations[i]
			break
		}
	}
	var payload []byte
	if found != nil {
		payload, _ = json.Marshal(map[string]any{
			"id":      found.ID,
			"content": found.Content,
			"comment": found.Comment,
		})
	}
	s.mu.Unlock()

	if found == nil {
		slog.Warn("overlay click for unknown annotation", "id", id)
		return
	}
	s.notifier.ContextAction("show_annotation", string(payload))
}
