// Package channel implements the bidirectional host channel: the fixed set
// of notifications the bridge sends to the host application, and the pushes
// (loadAnnotations, confirmAnnotation) the host sends back.
//
// Two transports feed the same channel. In connected mode the bridge dials
// the host's WebSocket endpoint at startup, retrying on a fixed interval up
// to a bounded attempt cap. In standalone mode no host URL is configured;
// the host may still attach later through GET /channel, and until then every
// notification is a no-op.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// PushFunc receives host-pushed calls decoded from the channel.
type PushFunc func(method string, params json.RawMessage)

// push is the host → bridge wire format.
type push struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type conn struct {
	nc net.Conn
	// dialed conns are client-side and must mask outgoing frames
	dialed bool
	// wsutil writes header and payload separately; concurrent event
	// goroutines must not interleave frames on the same conn.
	wmu sync.Mutex
}

// Channel fans bridge notifications out to every attached host connection.
type Channel struct {
	mu     sync.Mutex
	conns  map[*conn]struct{}
	onPush PushFunc
}

func New() *Channel {
	return &Channel{conns: make(map[*conn]struct{})}
}

// OnPush registers the handler for host-pushed calls. Must be set before
// any connection is attached.
func (c *Channel) OnPush(fn PushFunc) {
	c.onPush = fn
}

// Connected reports whether at least one host connection is attached.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns) > 0
}

// Connect dials the host's channel endpoint, retrying on a fixed interval.
// Attempts are bounded: past the cap the host is declared unreachable and
// the bridge stays in standalone mode.
func (c *Channel) Connect(ctx context.Context, hostURL string, interval time.Duration, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		nc, _, _, err := ws.Dial(ctx, hostURL)
		if err == nil {
			slog.Info("host channel connected", "url", hostURL, "attempt", attempt+1)
			c.attach(nc, true)
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("host unreachable after %d attempts: %w", maxAttempts, lastErr)
}

// Accept upgrades an incoming HTTP request to a host channel connection.
func (c *Channel) Accept(w http.ResponseWriter, r *http.Request) error {
	nc, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return fmt.Errorf("channel upgrade: %w", err)
	}
	slog.Info("host attached to channel", "remote", nc.RemoteAddr().String())
	c.attach(nc, false)
	return nil
}

func (c *Channel) attach(nc net.Conn, dialed bool) {
	cn := &conn{nc: nc, dialed: dialed}
	c.mu.Lock()
	c.conns[cn] = struct{}{}
	c.mu.Unlock()
	go c.readLoop(cn)
}

func (c *Channel) detach(cn *conn) {
	c.mu.Lock()
	delete(c.conns, cn)
	c.mu.Unlock()
	_ = cn.nc.Close()
}

func (c *Channel) readLoop(cn *conn) {
	defer c.detach(cn)
	for {
		var data []byte
		var err error
		if cn.dialed {
			data, _, err = wsutil.ReadServerData(cn.nc)
		} else {
			data, _, err = wsutil.ReadClientData(cn.nc)
		}
		if err != nil {
			slog.Debug("host channel closed", "err", err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Channel) dispatch(data []byte) {
	var p push
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("bad channel push", "err", err)
		return
	}
	if p.Method == "" {
		slog.Warn("channel push without method")
		return
	}
	if c.onPush != nil {
		c.onPush(p.Method, p.Params)
	}
}

// send marshals an event and writes it to every attached connection.
// With no connections attached this is a no-op (standalone mode).
func (c *Channel) send(event string, fields map[string]any) {
	c.mu.Lock()
	if len(c.conns) == 0 {
		c.mu.Unlock()
		slog.Debug("no host attached, dropping event", "event", event)
		return
	}
	conns := make([]*conn, 0, len(c.conns))
	for cn := range c.conns {
		conns = append(conns, cn)
	}
	c.mu.Unlock()

	msg := map[string]any{"event": event}
	for k, v := range fields {
		msg[k] = v
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal channel event", "event", event, "err", err)
		return
	}

	for _, cn := range conns {
		cn.wmu.Lock()
		if cn.dialed {
			err = wsutil.WriteClientText(cn.nc, data)
		} else {
			err = wsutil.WriteServerText(cn.nc, data)
		}
		cn.wmu.Unlock()
		if err != nil {
			slog.Debug("channel write failed, detaching", "err", err)
			c.detach(cn)
		}
	}
}

// TextSelected notifies the host of a qualifying selection.
func (c *Channel) TextSelected(text string) {
	c.send("textSelected", map[string]any{"text": text})
}

// AnnotationRequest asks the host to persist a newly created annotation.
func (c *Channel) AnnotationRequest(annotation any) {
	c.send("annotationRequest", map[string]any{"annotation": annotation})
}

// ContextAction forwards a menu action (or overlay detail request) verbatim.
func (c *Channel) ContextAction(action, payload string) {
	c.send("contextAction", map[string]any{"action": action, "payload": payload})
}

// PageChanged reports viewer page navigation.
func (c *Channel) PageChanged(page int) {
	c.send("pageChanged", map[string]any{"page": page})
}

// ViewerReady signals that the document finished loading. Sent once per
// document by the viewer session.
func (c *Channel) ViewerReady() {
	c.send("viewerReady", nil)
}
