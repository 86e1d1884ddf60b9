package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/paperbridge/paperbridge/internal/bridge"
	"github.com/paperbridge/paperbridge/internal/channel"
	"github.com/paperbridge/paperbridge/internal/config"
)

type fakeAPI struct {
	opened    []string
	reloads   int
	zooms     []string
	loaded    [][]bridge.Annotation
	confirmed []int

	selection   bridge.SelectionState
	annotations []bridge.Annotation
	status      bridge.Status
	openErr     error
	zoomErr     error
}

func (f *fakeAPI) Open(_ context.Context, file string) error {
	if file == "" {
		return bridge.ErrNoFile
	}
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = append(f.opened, file)
	return nil
}

func (f *fakeAPI) Reload(context.Context) error {
	f.reloads++
	return nil
}

func (f *fakeAPI) Zoom(_ context.Context, dir string) error {
	if f.zoomErr != nil {
		return f.zoomErr
	}
	f.zooms = append(f.zooms, dir)
	return nil
}

func (f *fakeAPI) Selection() bridge.SelectionState { return f.selection }
func (f *fakeAPI) Annotations() []bridge.Annotation { return f.annotations }

func (f *fakeAPI) LoadAnnotations(_ context.Context, list []bridge.Annotation) {
	f.loaded = append(f.loaded, list)
}

func (f *fakeAPI) ConfirmAnnotation(_ context.Context, realID int) {
	f.confirmed = append(f.confirmed, realID)
}

func (f *fakeAPI) Status() bridge.Status { return f.status }

func testHandlers(api *fakeAPI) (*Handlers, *http.ServeMux) {
	cfg := &config.RuntimeConfig{ViewerDir: "/tmp/pdfjs", DocRoot: "/tmp/docs"}
	h := New(api, channel.New(), cfg)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, nil)
	return h, mux
}

func TestHandleHealth(t *testing.T) {
	api := &fakeAPI{status: bridge.Status{Document: "a.pdf", Page: 2, ViewerReady: true}}
	_, mux := testHandlers(api)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Status        string        `json:"status"`
		HostConnected bool          `json:"hostConnected"`
		Viewer        bridge.Status `json:"viewer"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.HostConnected || resp.Viewer.Document != "a.pdf" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleOpen(t *testing.T) {
	api := &fakeAPI{}
	_, mux := testHandlers(api)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/open",
		bytes.NewReader([]byte(`{"file": "papers/intro.pdf"}`))))
	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if len(api.opened) != 1 || api.opened[0] != "papers/intro.pdf" {
		t.Errorf("opened = %v", api.opened)
	}

	// Missing file is a client error, not a server one.
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/open", bytes.NewReader([]byte(`{}`))))
	if w.Code != 400 {
		t.Errorf("status = %d for missing file, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/open", bytes.NewReader([]byte(`{not json`))))
	if w.Code != 400 {
		t.Errorf("status = %d for bad body, want 400", w.Code)
	}

	api.openErr = fmt.Errorf("tab crashed")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/open",
		bytes.NewReader([]byte(`{"file": "b.pdf"}`))))
	if w.Code != 500 {
		t.Errorf("status = %d for internal failure, want 500", w.Code)
	}
}

func TestHandleZoom(t *testing.T) {
	api := &fakeAPI{}
	_, mux := testHandlers(api)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/zoom",
		bytes.NewReader([]byte(`{"dir": "in"}`))))
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	if len(api.zooms) != 1 || api.zooms[0] != "in" {
		t.Errorf("zooms = %v", api.zooms)
	}

	api.zoomErr = fmt.Errorf("zoom dir must be in or out")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/zoom",
		bytes.NewReader([]byte(`{"dir": "sideways"}`))))
	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleSelection(t *testing.T) {
	api := &fakeAPI{selection: bridge.SelectionState{
		Text:  "attention is all you need",
		Rects: []bridge.Rect{{X: 1, Y: 2, W: 3, H: 4}},
		Page:  7,
	}}
	_, mux := testHandlers(api)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/selection", nil))

	var got bridge.SelectionState
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Text != api.selection.Text || got.Page != 7 {
		t.Errorf("selection = %+v", got)
	}
}

func TestHandleAnnotationsJSON(t *testing.T) {
	api := &fakeAPI{annotations: []bridge.Annotation{
		{ID: 1, Page: 1, Content: "alpha"},
		{ID: 2, Page: 3, Content: "beta"},
	}}
	_, mux := testHandlers(api)

	for _, target := range []string{"/annotations", "/annotations?format=json"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", target, nil))
		if w.Code != 200 {
			t.Fatalf("%s status = %d", target, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s content type = %q", target, ct)
		}
		var resp struct {
			Annotations []bridge.Annotation `json:"annotations"`
			Count       int                 `json:"count"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Count != 2 || len(resp.Annotations) != 2 {
			t.Errorf("%s resp = %+v", target, resp)
		}
	}
}

func TestHandleAnnotationsYAML(t *testing.T) {
	api := &fakeAPI{annotations: []bridge.Annotation{{ID: 1, Content: "alpha"}}}
	_, mux := testHandlers(api)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/annotations?format=yaml", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "yaml") {
		t.Errorf("content type = %q", ct)
	}
	var resp struct {
		Annotations []bridge.Annotation `yaml:"annotations"`
		Count       int                 `yaml:"count"`
	}
	if err := yaml.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Annotations[0].Content != "alpha" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleAnnotationsBadFormat(t *testing.T) {
	_, mux := testHandlers(&fakeAPI{})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/annotations?format=xml", nil))
	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleLoadAnnotations(t *testing.T) {
	api := &fakeAPI{}
	_, mux := testHandlers(api)

	body := `{"annotations": [
		{"id": 1, "page": 1, "content": "alpha", "rects": [{"x":1,"y":2,"w":3,"h":4}], "color": "#FF0000"},
		{"id": 2, "page": 2, "content": "beta", "rects": [], "color": "#00FF00", "comment": "see fig 3"}
	]}`
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/annotations", bytes.NewReader([]byte(body))))

	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if len(api.loaded) != 1 || len(api.loaded[0]) != 2 {
		t.Fatalf("loaded = %+v", api.loaded)
	}
	if api.loaded[0][1].Comment != "see fig 3" {
		t.Errorf("annotation = %+v", api.loaded[0][1])
	}
}

func TestHandleConfirmAnnotation(t *testing.T) {
	api := &fakeAPI{}
	_, mux := testHandlers(api)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/annotations/confirm",
		bytes.NewReader([]byte(`{"id": 42}`))))
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	if len(api.confirmed) != 1 || api.confirmed[0] != 42 {
		t.Errorf("confirmed = %v", api.confirmed)
	}

	// The pending sentinel and zero are not durable identifiers.
	for _, body := range []string{`{"id": -1}`, `{"id": 0}`, `{}`} {
		w = httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("POST", "/annotations/confirm",
			bytes.NewReader([]byte(body))))
		if w.Code != 400 {
			t.Errorf("status = %d for %s, want 400", w.Code, body)
		}
	}
}

func TestHandleBridgePage(t *testing.T) {
	_, mux := testHandlers(&fakeAPI{})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/bridge?file=x.pdf", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, id := range []string{"pb-frame", "pb-menu", "pb-toast"} {
		if !strings.Contains(body, id) {
			t.Errorf("wrapper page missing #%s", id)
		}
	}
}

func TestHandleShutdown(t *testing.T) {
	api := &fakeAPI{}
	cfg := &config.RuntimeConfig{}
	h := New(api, channel.New(), cfg)
	mux := http.NewServeMux()

	called := make(chan struct{})
	h.RegisterRoutes(mux, func() { close(called) })

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/shutdown", nil))
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	<-called
}
