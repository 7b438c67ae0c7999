package web

import (
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	apppkg "github.com/guidoenr/backdrop/internal/app"
	"github.com/guidoenr/backdrop/internal/env"
	"github.com/guidoenr/backdrop/internal/params"
)

type fakeApp struct {
	store *params.Store
	loop  *env.Loop
	frame *image.NRGBA
}

func (f *fakeApp) Status() apppkg.Status {
	s := f.store.Settings()
	return apppkg.Status{Scene: s.Scene, Quality: s.Quality, FPS: 30, Frames: 12, Viewport: f.loop.Viewport()}
}

func (f *fakeApp) Snapshot() *image.NRGBA { return f.frame }

func (f *fakeApp) Store() *params.Store { return f.store }

func (f *fakeApp) Loop() *env.Loop { return f.loop }

func newTestServer(t *testing.T) (*fakeApp, *Server, *httptest.Server) {
	t.Helper()
	app := &fakeApp{
		store: params.NewStore(params.Defaults()),
		loop:  env.NewLoop(env.Viewport{Width: 800, Height: 600, DPR: 1}),
	}
	srv := NewServer(app, filepath.Join(t.TempDir(), "config.json"), log.New(io.Discard, "", 0))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return app, srv, ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestStatusIncludesSettings(t *testing.T) {
	_, _, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["scene"] != "stars" || got["fps"] != 30.0 {
		t.Fatalf("unexpected status %v", got)
	}
	if _, ok := got["settings"].(map[string]any); !ok {
		t.Fatalf("settings missing from status")
	}
}

func TestUpdateMergesPartialSettings(t *testing.T) {
	app, _, ts := newTestServer(t)
	resp := post(t, ts.URL+"/api/update", `{"scene":"blackhole","disk":{"beaming":1.5},"parallax":{"enabled":true}}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	s := app.store.Settings()
	if s.Scene != params.SceneBlackhole {
		t.Fatalf("scene %q", s.Scene)
	}
	if s.Disk.Beaming != 1.5 || s.Disk.Scale != params.Defaults().Disk.Scale {
		t.Fatalf("disk merge lost fields: %+v", s.Disk)
	}
	if !s.Parallax.Enabled || s.Parallax.Preset != "galaxy" {
		t.Fatalf("parallax merge lost fields: %+v", s.Parallax)
	}
}

func TestUpdateRejectsBadInput(t *testing.T) {
	_, _, ts := newTestServer(t)
	cases := map[string]string{
		"malformed":   `{"scene":`,
		"bad section": `{"stars":{"density":"lots"}}`,
	}
	for name, body := range cases {
		resp := post(t, ts.URL+"/api/update", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
	resp, err := http.Get(ts.URL + "/api/update")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	app, srv, ts := newTestServer(t)
	app.store.Update(func(s *params.Settings) {
		s.Quality = params.QualityEco
		s.Stars.Density = 2
	})
	resp := post(t, ts.URL+"/api/save", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status %d", resp.StatusCode)
	}

	s, err := LoadConfig(srv.configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Quality != params.QualityEco || s.Stars.Density != 2 {
		t.Fatalf("round trip lost settings: %+v", s)
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := LoadConfig(path)
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	if s.Scene != params.SceneStars || s.Disk.TargetFPS != params.Defaults().Disk.TargetFPS {
		t.Fatalf("expected defaults on error, got %+v", s)
	}
}

func TestSignalQueuesHostEvents(t *testing.T) {
	app, _, ts := newTestServer(t)
	resp := post(t, ts.URL+"/api/signal", `{"scrollY":240,"pointer":[10,20],"hidden":true,"resize":{"width":640,"height":480,"dpr":2}}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	app.loop.Step(app.loop.Now().Add(time.Millisecond))
	if app.loop.ScrollY() != 240 || !app.loop.Hidden() {
		t.Fatalf("scroll or visibility not applied")
	}
	if x, y := app.loop.Pointer(); x != 10 || y != 20 {
		t.Fatalf("pointer (%v,%v)", x, y)
	}
	if vp := app.loop.Viewport(); vp.Width != 640 || vp.DPR != 2 {
		t.Fatalf("viewport %+v", vp)
	}
}

func TestFrameServesPNG(t *testing.T) {
	app, _, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/frame.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the first frame, got %d", resp.StatusCode)
	}

	app.frame = image.NewNRGBA(image.Rect(0, 0, 16, 9))
	resp, err = http.Get(ts.URL + "/frame.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	cfg, err := png.DecodeConfig(resp.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 16 || cfg.Height != 9 {
		t.Fatalf("frame size %dx%d", cfg.Width, cfg.Height)
	}
}

func TestListEndpoints(t *testing.T) {
	_, _, ts := newTestServer(t)
	cases := map[string]string{
		"/api/scenes":    "blackhole",
		"/api/qualities": "eco",
		"/api/palettes":  "spark",
		"/api/presets":   "galaxy",
	}
	for path, want := range cases {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		var names []string
		err = json.NewDecoder(resp.Body).Decode(&names)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
		found := false
		for _, n := range names {
			found = found || n == want
		}
		if !found {
			t.Fatalf("%s: %v lacks %q", path, names, want)
		}
	}
}

func TestWebSocketBroadcastsStatus(t *testing.T) {
	_, srv, ts := newTestServer(t)
	go srv.broadcastLoop()
	go srv.statusUpdateLoop(10 * time.Millisecond)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var st StatusResponse
	if err := json.Unmarshal(msg, &st); err != nil {
		t.Fatalf("decode %q: %v", msg, err)
	}
	if st.Scene != params.SceneStars || st.Frames != 12 {
		t.Fatalf("unexpected status %+v", st.Status)
	}
}
