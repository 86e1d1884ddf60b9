package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/paperbridge/paperbridge/internal/assets"
)

// ErrNoFile is returned when a document open request carries no file.
var ErrNoFile = errors.New("no PDF file specified")

// viewerEntry is the fixed relative path from the wrapper page's directory
// to the PDF.js viewer entry point.
const viewerEntry = "viewer/web/viewer.html"

// BuildViewerURL derives the nested viewer's address from the wrapper
// page's own URL: strip the query string, truncate to the containing
// directory, append the viewer entry point with the percent-encoded
// document URL as its file parameter.
//
// The query string must be stripped before the directory cut: a document
// URL embedded in the query carries its own slashes and would corrupt the
// directory boundary.
func BuildViewerURL(pageURL, docURL string) string {
	base := pageURL
	if i := strings.Index(base, "?"); i >= 0 {
		base = base[:i]
	}
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[:i+1]
	}
	return base + viewerEntry + "?file=" + url.QueryEscape(docURL)
}

// resolveDocURL turns an open request into a same-origin document URL.
// Absolute URLs pass through; local paths must resolve under the document
// root and are served from /docs/.
func (s *Session) resolveDocURL(file string) (string, error) {
	if file == "" {
		return "", ErrNoFile
	}
	if strings.Contains(file, "://") {
		return file, nil
	}

	abs := file
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.cfg.DocRoot, abs)
	}
	rel, err := filepath.Rel(s.cfg.DocRoot, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("document %q outside document root", file)
	}

	u := url.URL{Path: "/docs/" + filepath.ToSlash(rel)}
	return s.baseURL + u.EscapedPath(), nil
}

// Open loads a document: navigates the tab to the wrapper page carrying the
// file parameter, points the viewer frame at the PDF.js entry, and starts
// the readiness poll. An empty file is fatal for the viewing session: the
// error surfaces as a toast and no frame address is ever set.
func (s *Session) Open(ctx context.Context, file string) error {
	docURL, err := s.resolveDocURL(file)
	if err != nil {
		if errors.Is(err, ErrNoFile) {
			s.toast.Show(ctx, "No PDF file specified")
		} else {
			s.toast.Show(ctx, "Cannot open document: "+err.Error())
		}
		return err
	}

	pageURL := s.baseURL + "/bridge?file=" + url.QueryEscape(docURL)

	s.mu.Lock()
	s.docPath = file
	s.docURL = docURL
	s.pageURL = pageURL
	s.viewerReady = false
	s.readySignaled = false
	s.currentPage = 0
	s.selection = SelectionState{}
	s.mu.Unlock()

	slog.Info("opening document", "file", file, "viewer", pageURL)
	if err := s.nav(ctx, pageURL); err != nil {
		s.toast.Show(ctx, "Failed to load viewer page")
		return err
	}

	viewerURL := BuildViewerURL(pageURL, docURL)
	if err := s.setFrameSource(ctx, viewerURL); err != nil {
		s.toast.Show(ctx, "Failed to load viewer")
		return err
	}

	go s.pollViewerReady(s.tabCtx)
	return nil
}

// Reload re-navigates the wrapper page to the current document.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	file := s.docPath
	s.mu.Unlock()
	if file == "" {
		return ErrNoFile
	}
	return s.Open(ctx, file)
}

// Zoom adjusts the viewer scale by the fixed toolbar step.
func (s *Session) Zoom(ctx context.Context, dir string) error {
	var op string
	switch dir {
	case "in":
		op = "*="
	case "out":
		op = "/="
	default:
		return fmt.Errorf("zoom dir must be in or out, got %q", dir)
	}
	js := fmt.Sprintf(`(() => {
		const f = document.getElementById('pb-frame');
		if (f && f.contentWindow && f.contentWindow.PDFViewerApplication) {
			f.contentWindow.PDFViewerApplication.pdfViewer.currentScale %s 1.1;
			return true;
		}
		return false;
	})()`, op)
	var ok bool
	if err := s.eval(ctx, js, &ok); err != nil {
		return err
	}
	if !ok {
		return errors.New("viewer not ready")
	}
	return nil
}

// setFrameSource waits briefly for the wrapper DOM, then points the viewer
// frame at the PDF.js entry.
func (s *Session) setFrameSource(ctx context.Context, viewerURL string) error {
	js := fmt.Sprintf(`(() => {
		const f = document.getElementById('pb-frame');
		if (!f) return false;
		f.src = %q;
		return true;
	})()`, viewerURL)

	var set bool
	for attempt := 0; attempt < 50; attempt++ {
		if err := s.eval(ctx, js, &set); err == nil && set {
			return nil
		}
		select {
		case <-s.tabCtx.Done():
			return s.tabCtx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return errors.New("wrapper page missing viewer frame")
}

// readyProbe distinguishes a still-booting viewer from a cross-origin
// restriction: the first is transient and retried, the second is fatal.
const readyProbe = `(() => {
	const f = document.getElementById('pb-frame');
	if (!f) return 'pending';
	try {
		const w = f.contentWindow;
		if (w && w.PDFViewerApplication && w.PDFViewerApplication.eventBus) return 'ready';
		return 'pending';
	} catch (e) {
		return 'denied';
	}
})()`

// pollViewerReady polls for the nested viewer's application object and
// event bus. The viewer boots asynchronously inside the frame; polling is
// bounded, and exhausting the cap surfaces a fatal toast.
func (s *Session) pollViewerReady(ctx context.Context) {
	for attempt := 0; attempt < s.cfg.ReadyPollMax; attempt++ {
		var state string
		if err := s.eval(ctx, readyProbe, &state); err != nil {
			slog.Debug("ready probe", "err", err)
		}

		switch state {
		case "ready":
			s.onViewerAvailable(ctx)
			return
		case "denied":
			slog.Error("cannot access viewer frame document")
			s.toast.Show(ctx, "Cannot access viewer frame (cross-origin restriction)")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReadyPollInterval):
		}
	}

	slog.Error("viewer failed to initialize", "polls", s.cfg.ReadyPollMax)
	s.toast.Show(ctx, "Viewer failed to initialize")
}

// onViewerAvailable subscribes to the viewer's event bus and wires the
// in-frame selection listeners.
func (s *Session) onViewerAvailable(ctx context.Context) {
	s.mu.Lock()
	s.viewerReady = true
	s.mu.Unlock()

	js := strings.ReplaceAll(assets.SubscribeScript, "__SETTLE_MS__",
		fmt.Sprintf("%d", s.cfg.SelectionSettle.Milliseconds()))
	if err := s.eval(ctx, js, nil); err != nil {
		slog.Error("subscribe to viewer events", "err", err)
		s.toast.Show(ctx, "Failed to attach viewer listeners")
		return
	}
	slog.Info("viewer ready, listeners attached")
}
