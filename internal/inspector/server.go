// Package inspector serves a read-only HTTP view of guard activity: the
// latest report, the event history, the widget registry and a live
// Server-Sent Events stream.
package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cgast/affordkit/pkg/affordance"
	"github.com/cgast/affordkit/pkg/events"
	"github.com/cgast/affordkit/pkg/guard"
)

// ReportSource yields the most recent guard report.
type ReportSource interface {
	Last() (guard.Report, bool)
}

// Latest holds the newest report handed to Set. It lets the inspector
// outlive the engines that produced the reports.
type Latest struct {
	mu     sync.RWMutex
	report *guard.Report
}

func (l *Latest) Set(r guard.Report) {
	l.mu.Lock()
	l.report = &r
	l.mu.Unlock()
}

func (l *Latest) Last() (guard.Report, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.report == nil {
		return guard.Report{}, false
	}
	return *l.report, true
}

// Server is the inspector HTTP server.
type Server struct {
	bus      events.EventBus
	reports  ReportSource
	registry *affordance.Registry
	logger   *zap.Logger
	mux      *http.ServeMux

	clientsMu sync.Mutex
	clients   map[*client]bool
	startTime time.Time
}

// client is one connected event stream.
type client struct {
	send chan []byte
}

// Option configures the Server.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an inspector. registry may be nil.
func New(bus events.EventBus, reports ReportSource, registry *affordance.Registry, opts ...Option) *Server {
	s := &Server{
		bus:       bus,
		reports:   reports,
		registry:  registry,
		logger:    zap.NewNop(),
		mux:       http.NewServeMux(),
		clients:   make(map[*client]bool),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/report", s.handleReport)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/widgets", s.handleWidgets)
	return s
}

// Handler returns the HTTP handler without starting the event broadcast.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens on addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("inspector: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve broadcasts bus events to stream clients and serves HTTP on ln
// until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)
	go s.broadcast(ch)

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("inspector listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("inspector: %w", err)
	}
	return nil
}

func (s *Server) broadcast(ch <-chan events.Event) {
	for ev := range ch {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}

		s.clientsMu.Lock()
		for c := range s.clients {
			select {
			case c.send <- data:
			default:
				// slow client, drop
			}
		}
		s.clientsMu.Unlock()
	}
}

// handleEvents streams the event history followed by live events as SSE.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := &client{send: make(chan []byte, 64)}
	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
	}()

	for _, ev := range s.bus.History(time.Time{}) {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Status summarizes guard activity since the inspector started.
type Status struct {
	Uptime   string     `json:"uptime"`
	Events   int        `json:"events"`
	Runs     int        `json:"runs"`
	Failures int        `json:"failures"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	LastPass *bool      `json:"last_pass,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	history := s.bus.History(time.Time{})
	st := Status{
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
		Events: len(history),
	}
	for _, ev := range history {
		if ev.Type != events.EventRunEnd {
			continue
		}
		st.Runs++
		if data, ok := ev.Data.(events.RunData); ok && !data.Pass {
			st.Failures++
		}
	}
	if report, ok := s.reports.Last(); ok {
		at, pass := report.At, report.Pass
		st.LastRun, st.LastPass = &at, &pass
	}
	writeJSON(w, st)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.reports.Last()
	if !ok {
		http.Error(w, "no guard run yet", http.StatusNotFound)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "since: want RFC 3339", http.StatusBadRequest)
			return
		}
		since = t
	}
	history := s.bus.History(since)
	if history == nil {
		history = []events.Event{}
	}
	writeJSON(w, history)
}

func (s *Server) handleWidgets(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		writeJSON(w, []affordance.Widget{})
		return
	}
	writeJSON(w, s.registry.All())
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
