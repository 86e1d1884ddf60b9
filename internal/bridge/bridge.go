// Package bridge owns the viewer session: the Chrome tab running the
// wrapper page and PDF.js frame, the selection and annotation state, and
// every decision the capture script is too dumb to make.
package bridge

import (
	"context"
	"sync"

	"github.com/paperbridge/paperbridge/internal/config"
)

// Notifier is the fixed call surface the bridge uses to reach the host.
// The host channel implements it; tests swap in a recorder.
type Notifier interface {
	TextSelected(text string)
	AnnotationRequest(annotation any)
	ContextAction(action, payload string)
	PageChanged(page int)
	ViewerReady()
}

// API abstracts the viewer session for handler testing.
type API interface {
	Open(ctx context.Context, file string) error
	Reload(ctx context.Context) error
	Zoom(ctx context.Context, dir string) error
	Selection() SelectionState
	Annotations() []Annotation
	LoadAnnotations(ctx context.Context, list []Annotation)
	ConfirmAnnotation(ctx context.Context, realID int)
	Status() Status
}

// Status describes the viewer session for /health and /state.
type Status struct {
	Document    string `json:"document"`
	Page        int    `json:"page"`
	ViewerReady bool   `json:"viewerReady"`
}

// evalFunc executes JavaScript in the wrapper page. The default runs over
// CDP; tests install a recorder.
type evalFunc func(ctx context.Context, js string, out any) error

// navFunc navigates the wrapper tab. Same seam arrangement as evalFunc.
type navFunc func(ctx context.Context, url string) error

// Session is the bridge-session context object: single owner of the
// selection state, the annotation set, and the viewer handle. All shared
// state is guarded by one mutex; each event handler runs to completion
// before touching another's state.
type Session struct {
	cfg      *config.RuntimeConfig
	notifier Notifier
	eval     evalFunc
	nav      navFunc
	tabCtx   context.Context
	baseURL  string

	menu     *Menu
	overlays *Overlays
	toast    *Toast

	mu            sync.Mutex
	docPath       string
	docURL        string
	pageURL       string
	viewerReady   bool
	readySignaled bool
	currentPage   int
	selection     SelectionState
	annotations   []Annotation
}

// NewSession wires a session around the host notifier. Attach must be
// called with a tab context before any viewer interaction.
func NewSession(cfg *config.RuntimeConfig, baseURL string, notifier Notifier) *Session {
	s := &Session{
		cfg:      cfg,
		notifier: notifier,
		baseURL:  baseURL,
	}
	s.menu = &Menu{session: s}
	s.overlays = &Overlays{session: s}
	s.toast = &Toast{session: s, duration: cfg.ToastDuration}
	s.eval = s.cdpEval
	s.nav = s.cdpNavigate
	return s
}

var _ API = (*Session)(nil)

// Status reports the current document, page, and readiness.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Document:    s.docPath,
		Page:        s.currentPage,
		ViewerReady: s.viewerReady,
	}
}

// LoadAnnotations is the host-pushed bulk (re)population of overlays.
func (s *Session) LoadAnnotations(ctx context.Context, list []Annotation) {
	s.overlays.LoadAll(ctx, list)
}

// ConfirmAnnotation is the host-pushed acknowledgment of the most recent
// optimistic create.
func (s *Session) ConfirmAnnotation(ctx context.Context, realID int) {
	s.overlays.ConfirmCreate(ctx, realID)
}
