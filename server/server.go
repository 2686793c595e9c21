package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jay7-tech/memo-go/engine"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Config holds the HTTP listener settings.
type Config struct {
	// Addr is the listen address, e.g. ":8765".
	Addr string

	// ReadTimeout bounds how long a websocket client may stay silent
	// before it has to ping.
	ReadTimeout time.Duration
}

// DefaultConfig listens on localhost only; the dashboard runs on the
// same machine as the camera.
func DefaultConfig() Config {
	return Config{
		Addr:        "127.0.0.1:8765",
		ReadTimeout: 60 * time.Second,
	}
}

// Validate rejects listener settings the server cannot start with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("server: Addr is required")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("server: ReadTimeout must be positive, got %v", c.ReadTimeout)
	}
	return nil
}

// Server serves the websocket event stream and the scene snapshot.
// Utterances typed into a dashboard arrive as websocket text messages
// and are resolved by the loop like any spoken question.
type Server struct {
	cfg  Config
	log  *zap.Logger
	hub  *Hub
	loop *engine.Loop
	http *http.Server
}

// New wires the server. The hub must already be running.
func New(cfg Config, loop *engine.Loop, hub *Hub, log *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:  cfg,
		log:  log.Named("server"),
		hub:  hub,
		loop: loop,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/healthz", s.handleHealth)
	s.http = &http.Server{Addr: cfg.Addr, Handler: mux}
	return s, nil
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("listening", zap.String("addr", s.cfg.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	s.hub.register <- conn
	defer func() { s.hub.unregister <- conn }()

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info("client closed connection")
			} else {
				s.log.Warn("client read failed", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		if kind != websocket.TextMessage || len(msg) == 0 {
			continue
		}
		s.loop.HandleUtterance(r.Context(), string(msg))
	}
}

// stateResponse is the JSON shape of the scene snapshot.
type stateResponse struct {
	Objects   []objectState `json:"objects"`
	Human     humanState    `json:"human"`
	FocusMode bool          `json:"focus_mode"`
	Clients   int           `json:"clients"`
}

type objectState struct {
	Label    string    `json:"label"`
	Position string    `json:"position"`
	LastSeen time.Time `json:"last_seen"`
}

type humanState struct {
	Present   bool      `json:"present"`
	Identity  string    `json:"identity,omitempty"`
	Pose      string    `json:"pose"`
	PoseStart time.Time `json:"pose_start,omitempty"`
	LastSeen  time.Time `json:"last_seen,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.loop.Snapshot()
	resp := stateResponse{
		Objects:   make([]objectState, 0, len(snap.Objects)),
		FocusMode: snap.FocusMode,
		Clients:   s.hub.ClientCount(),
		Human: humanState{
			Present:   snap.Human.Present,
			Identity:  snap.Human.Identity,
			Pose:      snap.Human.Pose.String(),
			PoseStart: snap.Human.PoseStart,
			LastSeen:  snap.Human.LastSeen,
		},
	}
	for _, obj := range snap.Objects {
		resp.Objects = append(resp.Objects, objectState{
			Label:    obj.Label,
			Position: obj.Position.String(),
			LastSeen: obj.LastSeen,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("could not write state response", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
