package bridge

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// bindingName is the function the capture script calls to reach the bridge.
const bindingName = "__paperbridge"

// captureEvent is the envelope for everything the capture script posts.
// Fields beyond Type are populated per event kind.
type captureEvent struct {
	Type string `json:"type"`

	// selection
	selectionEvent

	// menuAction
	Action string `json:"action"`

	// overlayClick, documentError share these
	ID      int    `json:"id"`
	Message string `json:"message"`

	// pageChanged
	Page int `json:"page"`
}

func (s *Session) registerBinding(tabCtx context.Context) error {
	return chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return runtime.AddBinding(bindingName).Do(ctx)
		}),
	)
}

// listen dispatches capture-script events. Callbacks must not block the CDP
// event loop, so each event is handled on its own goroutine.
func (s *Session) listen(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		bc, ok := ev.(*runtime.EventBindingCalled)
		if !ok || bc.Name != bindingName {
			return
		}
		payload := bc.Payload
		go s.dispatchEvent(tabCtx, payload)
	})
}

func (s *Session) dispatchEvent(ctx context.Context, payload string) {
	var ev captureEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		slog.Warn("bad capture event", "err", err)
		return
	}

	switch ev.Type {
	case "selection":
		s.handleSelection(ctx, ev.selectionEvent)

	case "menuAction":
		s.menu.Dispatch(ctx, ev.Action)

	case "menuHidden":
		s.menu.setVisible(false)

	case "overlayClick":
		s.handleOverlayClick(ev.ID)

	case "pageChanged":
		s.handlePageChanged(ev.Page)

	case "documentLoaded":
		s.handleDocumentLoaded()

	case "documentError":
		msg := ev.Message
		if msg == "" {
			msg = "Failed to load document"
		}
		slog.Error("viewer document error", "message", msg)
		s.toast.Show(ctx, msg)

	default:
		slog.Debug("unknown capture event", "type", ev.Type)
	}
}

func (s *Session) handlePageChanged(page int) {
	s.mu.Lock()
	s.currentPage = page
	s.mu.Unlock()
	slog.Debug("page changed", "page", page)
	s.notifier.PageChanged(page)
}

// handleDocumentLoaded signals readiness to the host exactly once per
// document; the viewer can re-emit the event on internal relayouts.
func (s *Session) handleDocumentLoaded() {
	s.mu.Lock()
	already := s.readySignaled
	s.readySignaled = true
	s.mu.Unlock()

	if already {
		slog.Debug("duplicate documentloaded ignored")
		return
	}
	slog.Info("document loaded")
	s.notifier.ViewerReady()
}
