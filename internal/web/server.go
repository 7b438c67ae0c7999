package web

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	apppkg "github.com/guidoenr/backdrop/internal/app"
	"github.com/guidoenr/backdrop/internal/env"
	"github.com/guidoenr/backdrop/internal/params"
	"github.com/guidoenr/backdrop/internal/parallax"
	"github.com/guidoenr/backdrop/internal/render"
)

//go:embed index.html
var indexHTML []byte

// StatusInterval is how often connected websocket clients receive a status.
const StatusInterval = 500 * time.Millisecond

type Server struct {
	mu         sync.RWMutex
	app        AppInterface
	log        *log.Logger
	configPath string
	clients    map[*websocketClient]bool
	broadcast  chan []byte
	upgrader   websocket.Upgrader
	done       chan struct{}
	closeOnce  sync.Once
}

// AppInterface is what the control panel needs from the running host.
type AppInterface interface {
	Status() apppkg.Status
	Snapshot() *image.NRGBA
	Store() *params.Store
	Loop() *env.Loop
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

type StatusResponse struct {
	apppkg.Status
	Settings params.Settings `json:"settings"`
}

// UpdateRequest is a partial settings change. Nil fields are left alone.
type UpdateRequest struct {
	Scene         *string          `json:"scene,omitempty"`
	Enabled       *bool            `json:"enabled,omitempty"`
	LowPower      *bool            `json:"lowPower,omitempty"`
	ReducedMotion *bool            `json:"reducedMotion,omitempty"`
	TargetFPS     *float64         `json:"targetFps,omitempty"`
	Quality       *string          `json:"quality,omitempty"`
	Stars         *json.RawMessage `json:"stars,omitempty"`
	Disk          *json.RawMessage `json:"disk,omitempty"`
	Parallax      *json.RawMessage `json:"parallax,omitempty"`
}

// SignalRequest raises host signals. Nil fields are left alone.
type SignalRequest struct {
	ScrollY    *float64        `json:"scrollY,omitempty"`
	Pointer    *[2]float64     `json:"pointer,omitempty"`
	Hidden     *bool           `json:"hidden,omitempty"`
	Appearance *env.Appearance `json:"appearance,omitempty"`
	Resize     *env.Viewport   `json:"resize,omitempty"`
}

// NewServer creates a control panel for app. Saved configurations go to
// configPath, or next to the binary when empty.
func NewServer(app AppInterface, configPath string, logger *log.Logger) *Server {
	if configPath == "" {
		configPath = DefaultConfigPath()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		app:        app,
		log:        logger,
		configPath: configPath,
		clients:    make(map[*websocketClient]bool),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the panel routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexHTML)
	})
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/update", s.handleUpdate)
	mux.HandleFunc("/api/save", s.handleSave)
	mux.HandleFunc("/api/signal", s.handleSignal)
	mux.HandleFunc("/api/scenes", listHandler(params.SceneNames))
	mux.HandleFunc("/api/qualities", listHandler(params.QualityNames))
	mux.HandleFunc("/api/palettes", listHandler(render.PaletteNames))
	mux.HandleFunc("/api/presets", listHandler(parallax.PresetNames))
	mux.HandleFunc("/frame.png", s.handleFrame)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start serves the panel on port until the listener fails.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.log.Printf("[web] server starting on http://0.0.0.0%s", addr)

	go s.broadcastLoop()
	go s.statusUpdateLoop(StatusInterval)

	return http.ListenAndServe(addr, s.Handler())
}

// Stop ends the background loops.
func (s *Server) Stop() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Server) status() StatusResponse {
	return StatusResponse{Status: s.app.Status(), Settings: s.app.Store().Settings()}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status())
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var mergeErr error
	next := s.app.Store().Update(func(cur *params.Settings) {
		mergeErr = applyUpdate(cur, req)
	})
	if mergeErr != nil {
		http.Error(w, mergeErr.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, next)
}

// applyUpdate merges req into cur. Nested sections are decoded over the
// current values so absent fields keep their setting.
func applyUpdate(cur *params.Settings, req UpdateRequest) error {
	next := *cur
	if req.Scene != nil {
		next.Scene = params.ParseScene(*req.Scene)
	}
	if req.Enabled != nil {
		next.Enabled = *req.Enabled
	}
	if req.LowPower != nil {
		next.LowPower = *req.LowPower
	}
	if req.ReducedMotion != nil {
		next.ReducedMotion = *req.ReducedMotion
	}
	if req.TargetFPS != nil {
		next.TargetFPS = *req.TargetFPS
	}
	if req.Quality != nil {
		next.Quality = params.ParseQuality(*req.Quality)
	}
	if req.Stars != nil {
		if err := json.Unmarshal(*req.Stars, &next.Stars); err != nil {
			return fmt.Errorf("stars: %w", err)
		}
	}
	if req.Disk != nil {
		if err := json.Unmarshal(*req.Disk, &next.Disk); err != nil {
			return fmt.Errorf("disk: %w", err)
		}
	}
	if req.Parallax != nil {
		if err := json.Unmarshal(*req.Parallax, &next.Parallax); err != nil {
			return fmt.Errorf("parallax: %w", err)
		}
	}
	*cur = next
	return nil
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := SaveConfig(s.configPath, s.app.Store().Settings()); err != nil {
		http.Error(w, fmt.Sprintf("failed to save config: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "saved", "path": s.configPath})
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req SignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	loop := s.app.Loop()
	if req.Resize != nil {
		loop.Resize(req.Resize.Width, req.Resize.Height, req.Resize.DPR)
	}
	if req.Hidden != nil {
		loop.SetHidden(*req.Hidden)
	}
	if req.Appearance != nil {
		loop.SetAppearance(*req.Appearance)
	}
	if req.ScrollY != nil {
		loop.Scroll(*req.ScrollY)
	}
	if req.Pointer != nil {
		loop.PointerMove(req.Pointer[0], req.Pointer[1])
	}
	writeJSON(w, map[string]string{"status": "queued"})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame := s.app.Snapshot()
	if frame == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, frame); err != nil {
		s.log.Printf("[web] encode frame: %v", err)
	}
}

func listHandler(names func() []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, names())
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// DefaultConfigPath is next to the binary, falling back to the home directory.
func DefaultConfigPath() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "backdrop-config.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".backdrop-config.json")
}

// SaveConfig writes settings as indented JSON.
func SaveConfig(path string, s params.Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadConfig reads settings saved by SaveConfig over the defaults and
// sanitizes the result.
func LoadConfig(path string) (params.Settings, error) {
	s := params.Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return params.Defaults(), fmt.Errorf("parse %s: %w", path, err)
	}
	s.Sanitize()
	return s, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("[web] websocket upgrade error: %v", err)
		return
	}

	client := &websocketClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

func (s *Server) broadcastLoop() {
	for {
		select {
		case <-s.done:
			return
		case message := <-s.broadcast:
			s.mu.Lock()
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(s.clients, client)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) statusUpdateLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
		data, err := json.Marshal(s.status())
		if err != nil {
			continue
		}
		select {
		case s.broadcast <- data:
		default:
			// drop if channel full
		}
	}
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		delete(c.server.clients, c)
		c.server.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
