package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Toast shows transient status messages in the wrapper page. Single slot:
// a new message overwrites the current one. The generation counter makes
// sure a hide timer left over from an earlier message cannot dismiss a
// newer one.
type Toast struct {
	session  *Session
	duration time.Duration

	mu  sync.Mutex
	gen uint64
}

// Show replaces the toast content and schedules the auto-hide.
func (t *Toast) Show(ctx context.Context, message string) {
	t.ShowFor(ctx, message, t.duration)
}

// ShowFor is Show with an explicit duration.
func (t *Toast) ShowFor(ctx context.Context, message string, d time.Duration) {
	t.mu.Lock()
	t.gen++
	g := t.gen
	t.mu.Unlock()

	js := fmt.Sprintf("window.__pbToast(%s, true)", strconv.Quote(message))
	if err := t.session.eval(ctx, js, nil); err != nil {
		slog.Warn("toast show", "message", message, "err", err)
	}

	time.AfterFunc(d, func() {
		t.mu.Lock()
		stale := t.gen != g
		t.mu.Unlock()
		if stale {
			return
		}
		if err := t.session.eval(ctx, `window.__pbToast("", false)`, nil); err != nil {
			slog.Debug("toast hide", "err", err)
		}
	})
}

// generation is exposed for tests.
func (t *Toast) generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}
