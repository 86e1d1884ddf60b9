// Package handlers provides the HTTP surface of the bridge daemon: the
// host-facing operations, the channel endpoint, and the wrapper/viewer/
// document file serving.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/paperbridge/paperbridge/internal/assets"
	"github.com/paperbridge/paperbridge/internal/bridge"
	"github.com/paperbridge/paperbridge/internal/channel"
	"github.com/paperbridge/paperbridge/internal/config"
	"github.com/paperbridge/paperbridge/internal/web"
)

const maxBodySize = 1 << 20

type Handlers struct {
	Bridge  bridge.API
	Channel *channel.Channel
	Config  *config.RuntimeConfig
}

func New(b bridge.API, ch *channel.Channel, cfg *config.RuntimeConfig) *Handlers {
	return &Handlers{Bridge: b, Channel: ch, Config: cfg}
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux, doShutdown func()) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("POST /open", h.HandleOpen)
	mux.HandleFunc("POST /reload", h.HandleReload)
	mux.HandleFunc("POST /zoom", h.HandleZoom)
	mux.HandleFunc("GET /selection", h.HandleSelection)
	mux.HandleFunc("GET /annotations", h.HandleAnnotations)
	mux.HandleFunc("POST /annotations", h.HandleLoadAnnotations)
	mux.HandleFunc("POST /annotations/confirm", h.HandleConfirmAnnotation)
	mux.HandleFunc("GET /channel", h.HandleChannel)

	mux.HandleFunc("GET /bridge", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(assets.BridgeHTML))
	})
	mux.HandleFunc("GET /assets/capture.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(assets.CaptureScript))
	})

	mux.Handle("GET /viewer/", &web.FileServer{Prefix: "/viewer/", Base: h.Config.ViewerDir})
	mux.Handle("GET /docs/", &web.FileServer{Prefix: "/docs/", Base: h.Config.DocRoot})

	if doShutdown != nil {
		mux.HandleFunc("POST /shutdown", func(w http.ResponseWriter, r *http.Request) {
			web.JSON(w, 200, map[string]any{"shuttingDown": true})
			go doShutdown()
		})
	}
}

// GET /health
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	st := h.Bridge.Status()
	web.JSON(w, 200, map[string]any{
		"status":        "ok",
		"hostConnected": h.Channel.Connected(),
		"viewer":        st,
	})
}

// POST /open — {file} names the document; absence is fatal for the viewing
// session and is the only way a viewer ever loads.
func (h *Handlers) HandleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		File string `json:"file"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		web.Error(w, 400, err)
		return
	}

	if err := h.Bridge.Open(r.Context(), req.File); err != nil {
		code := 500
		if errors.Is(err, bridge.ErrNoFile) {
			code = 400
		}
		web.Error(w, code, err)
		return
	}
	web.JSON(w, 200, map[string]any{"opened": req.File})
}

// POST /reload
func (h *Handlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.Bridge.Reload(r.Context()); err != nil {
		web.Error(w, 500, err)
		return
	}
	web.JSON(w, 200, map[string]any{"reloaded": true})
}

// POST /zoom — {dir: "in"|"out"}
func (h *Handlers) HandleZoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dir string `json:"dir"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		web.Error(w, 400, err)
		return
	}
	if err := h.Bridge.Zoom(r.Context(), req.Dir); err != nil {
		web.Error(w, 400, err)
		return
	}
	web.JSON(w, 200, map[string]any{"zoom": req.Dir})
}

// GET /selection
func (h *Handlers) HandleSelection(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, 200, h.Bridge.Selection())
}

// GET /annotations?format=json|yaml
func (h *Handlers) HandleAnnotations(w http.ResponseWriter, r *http.Request) {
	list := h.Bridge.Annotations()

	switch r.URL.Query().Get("format") {
	case "", "json":
		web.JSON(w, 200, map[string]any{"annotations": list, "count": len(list)})
	case "yaml":
		content, err := yaml.Marshal(map[string]any{"annotations": list, "count": len(list)})
		if err != nil {
			web.Error(w, 500, fmt.Errorf("marshal yaml: %w", err))
			return
		}
		w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
		_, _ = w.Write(content)
	default:
		web.Error(w, 400, fmt.Errorf("format must be json or yaml"))
	}
}

// POST /annotations — bulk (re)population; the HTTP twin of the channel's
// loadAnnotations push.
func (h *Handlers) HandleLoadAnnotations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Annotations []bridge.Annotation `json:"annotations"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		web.Error(w, 400, err)
		return
	}

	h.Bridge.LoadAnnotations(r.Context(), req.Annotations)
	web.JSON(w, 200, map[string]any{"loaded": len(req.Annotations)})
}

// POST /annotations/confirm — {id} acknowledges the most recent optimistic
// create with its durable identifier.
func (h *Handlers) HandleConfirmAnnotation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		web.Error(w, 400, err)
		return
	}
	if req.ID <= 0 {
		web.Error(w, 400, fmt.Errorf("id must be a positive identifier"))
		return
	}

	h.Bridge.ConfirmAnnotation(r.Context(), req.ID)
	web.JSON(w, 200, map[string]any{"confirmed": req.ID})
}

// GET /channel — the host attaches here for events and pushes.
func (h *Handlers) HandleChannel(w http.ResponseWriter, r *http.Request) {
	if err := h.Channel.Accept(w, r); err != nil {
		slog.Error("channel accept", "err", err)
	}
}
