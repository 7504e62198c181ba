// Package wsserver exposes autocomplete sessions over websockets: one
// session per connection, fed by client input and key events.
package wsserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/seniorliving/directory-search/internal/analytics"
	"github.com/seniorliving/directory-search/internal/autocomplete"
	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/search/engine"
	"github.com/seniorliving/directory-search/internal/search/ranker"
	"github.com/seniorliving/directory-search/pkg/metrics"
)

const (
	writeTimeout = 5 * time.Second
	readLimit    = 4096
)

// Event is an inbound client message.
type Event struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
	Key   string `json:"key,omitempty"`
}

// Message is an outbound frame: a session view or an error.
type Message struct {
	Type    string             `json:"type"`
	Session string             `json:"session,omitempty"`
	View    *autocomplete.View `json:"view,omitempty"`
	Message string             `json:"message,omitempty"`
}

type SnapshotProvider interface {
	Get(ctx context.Context) (*directory.Snapshot, error)
}

type EventTracker interface {
	Track(event analytics.SearchEvent)
}

type Config struct {
	Session        autocomplete.Config
	EventsPerSec   float64
	EventBurst     int
	AllowedOrigins []string
}

type Server struct {
	provider  SnapshotProvider
	engine    *engine.Engine
	collector EventTracker
	metrics   *metrics.Metrics
	cfg       Config
	upgrader  websocket.Upgrader
	logger    *slog.Logger

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// New builds the adapter. collector and m may be nil.
func New(provider SnapshotProvider, eng *engine.Engine, collector EventTracker, m *metrics.Metrics, cfg Config) *Server {
	if cfg.EventsPerSec <= 0 {
		cfg.EventsPerSec = 30
	}
	if cfg.EventBurst <= 0 {
		cfg.EventBurst = int(cfg.EventsPerSec) * 2
	}
	s := &Server{
		provider:  provider,
		engine:    eng,
		collector: collector,
		metrics:   m,
		cfg:       cfg,
		logger:    slog.Default().With("component", "autocomplete-ws"),
		conns:     make(map[string]*websocket.Conn),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	id := uuid.NewString()
	s.track(id, ws)
	defer s.untrack(id)

	s.serve(r.Context(), id, ws)
}

func (s *Server) serve(ctx context.Context, id string, ws *websocket.Conn) {
	log := s.logger.With("session", id)
	log.Info("autocomplete session opened", "remote", ws.RemoteAddr().String())

	var writeMu sync.Mutex
	send := func(msg Message) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteJSON(msg); err != nil {
			log.Debug("websocket write failed", "error", err)
		}
	}

	// The snapshot lookup outlives the upgrade request's context.
	ctx = context.WithoutCancel(ctx)
	sessCfg := s.cfg.Session
	sessCfg.OnEvaluate = func(term string, n int) {
		if s.metrics != nil {
			s.metrics.AutocompleteEvalTotal.Inc()
		}
		if s.collector != nil {
			s.collector.Track(analytics.SearchEvent{
				Type:      analytics.EventAutocomplete,
				Term:      term,
				Total:     n,
				Returned:  n,
				RequestID: id,
			})
		}
	}
	suggester := autocomplete.SuggesterFunc(func(term string, limit int) []ranker.CityResult {
		snap, err := s.provider.Get(ctx)
		if err != nil {
			log.Error("suggestion data unavailable", "error", err)
			send(Message{Type: "error", Session: id, Message: err.Error()})
			return nil
		}
		return s.engine.Suggest(snap, term, limit)
	})
	session := autocomplete.NewSession(suggester, func(v autocomplete.View) {
		send(Message{Type: "view", Session: id, View: &v})
	}, sessCfg)
	defer session.Close()

	limiter := rate.NewLimiter(rate.Limit(s.cfg.EventsPerSec), s.cfg.EventBurst)
	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Time{})

	initial := session.View()
	send(Message{Type: "view", Session: id, View: &initial})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("websocket read failed", "error", err)
			}
			break
		}
		if !limiter.Allow() {
			log.Warn("autocomplete event dropped", "reason", "rate limited")
			continue
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			send(Message{Type: "error", Session: id, Message: "malformed event"})
			continue
		}
		if msg, ok := dispatch(session, ev); !ok {
			send(Message{Type: "error", Session: id, Message: msg})
		}
	}
	log.Info("autocomplete session closed")
}

func dispatch(session *autocomplete.Session, ev Event) (string, bool) {
	switch ev.Type {
	case "input":
		session.Input(ev.Value)
	case "key":
		k, ok := autocomplete.ParseKey(ev.Key)
		if !ok {
			return "unknown key " + ev.Key, false
		}
		session.Press(k)
	case "blur":
		session.Blur()
	default:
		return "unknown event type " + ev.Type, false
	}
	return "", true
}

func (s *Server) track(id string, ws *websocket.Conn) {
	s.mu.Lock()
	s.conns[id] = ws
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.AutocompleteSessions.Inc()
	}
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	ws, ok := s.conns[id]
	delete(s.conns, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	ws.Close()
	if s.metrics != nil {
		s.metrics.AutocompleteSessions.Dec()
	}
}

// Active is the number of open sessions.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown sends a going-away close frame to every open session. The
// connections are hijacked, so http.Server.Shutdown does not reach them.
func (s *Server) Shutdown() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for _, ws := range s.conns {
		conns = append(conns, ws)
	}
	s.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, ws := range conns {
		_ = ws.WriteControl(websocket.CloseMessage, msg, deadline)
		ws.Close()
	}
	s.logger.Info("autocomplete sessions closed", "count", len(conns))
}
