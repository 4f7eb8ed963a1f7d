package devtools

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/vango-dev/reactive/pkg/reactive"
)

const (
	// DefaultBufferSize is the number of events kept for late subscribers.
	DefaultBufferSize = 256

	// writeWait bounds a single websocket write.
	writeWait = 5 * time.Second

	// sendQueue is the per-client queue beyond the backlog. Events that do
	// not fit are dropped for that client.
	sendQueue = 64
)

// Option configures an Inspector.
type Option func(*Inspector)

// WithBufferSize sets how many recent events are kept.
func WithBufferSize(n int) Option {
	return func(in *Inspector) {
		in.bufferSize = n
	}
}

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Inspector) {
		in.logger = logger
	}
}

// WithAllowedOrigins sets the origins accepted by the websocket endpoint.
// "*" accepts any origin. With no origins only same-origin requests are
// accepted.
func WithAllowedOrigins(origins ...string) Option {
	return func(in *Inspector) {
		in.origins = origins
	}
}

// WithClientRate limits how many events per second each websocket client
// is sent, with the given burst. Events over the limit are dropped for that
// client. The default is unlimited.
func WithClientRate(limit rate.Limit, burst int) Option {
	return func(in *Inspector) {
		in.clientRate = limit
		in.clientBurst = burst
	}
}

// client is one websocket subscriber.
type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
}

// Inspector records runtime events and serves them over HTTP.
// It implements reactive.Observer.
type Inspector struct {
	bufferSize  int
	logger      *slog.Logger
	origins     []string
	clientRate  rate.Limit
	clientBurst int

	rt       atomic.Pointer[reactive.Runtime]
	events   *ring
	dropped  atomic.Uint64
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// New creates an Inspector.
func New(opts ...Option) *Inspector {
	in := &Inspector{
		bufferSize: DefaultBufferSize,
		clientRate: rate.Inf,
		clients:    make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.logger == nil {
		in.logger = slog.Default()
	}
	in.events = newRing(in.bufferSize)
	in.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(in.origins) > 0 {
		in.upgrader.CheckOrigin = in.checkOrigin
	}
	return in
}

// Attach sets the runtime reported by /stats.
func (in *Inspector) Attach(rt *reactive.Runtime) {
	in.rt.Store(rt)
}

// Observe implements reactive.Observer. It never blocks on clients.
func (in *Inspector) Observe(ev reactive.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		in.logger.Warn("devtools: encode event", slog.String("type", ev.Type.String()), slog.Any("error", err))
		return
	}

	in.mu.RLock()
	defer in.mu.RUnlock()
	in.events.add(ev)
	for c := range in.clients {
		if !c.limiter.Allow() {
			in.dropped.Add(1)
			continue
		}
		select {
		case c.send <- data:
		default:
			in.dropped.Add(1)
		}
	}
}

// Events returns the buffered events, oldest first.
func (in *Inspector) Events() []reactive.Event {
	return in.events.snapshot()
}

// ClientCount returns the number of connected websocket clients.
func (in *Inspector) ClientCount() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.clients)
}

// Handler returns the inspector routes.
func (in *Inspector) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	r.Get("/ws", in.handleWebSocket)
	r.Get("/events", in.handleEvents)
	r.Get("/events/{type}", in.handleEvents)
	r.Get("/stats", in.handleStats)
	return r
}

// Close disconnects every websocket client.
func (in *Inspector) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()

	for c := range in.clients {
		delete(in.clients, c)
		close(c.send)
		c.conn.Close()
	}
}

func (in *Inspector) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := in.upgrader.Upgrade(w, r, nil)
	if err != nil {
		in.logger.Debug("devtools: websocket upgrade failed", slog.Any("error", err))
		return
	}

	// Observe buffers under the read lock, so the backlog taken here and
	// the broadcasts after registration neither overlap nor leave a gap.
	in.mu.Lock()
	backlog := in.events.snapshot()
	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, len(backlog)+sendQueue),
		limiter: rate.NewLimiter(in.clientRate, in.clientBurst),
	}
	for _, ev := range backlog {
		if data, err := json.Marshal(ev); err == nil {
			c.send <- data
		}
	}
	in.clients[c] = struct{}{}
	in.mu.Unlock()

	in.logger.Debug("devtools: client connected",
		slog.String("client", c.id),
		slog.String("remote", r.RemoteAddr),
		slog.Int("backlog", len(backlog)))

	go in.writeLoop(c)

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	in.remove(c)
}

func (in *Inspector) writeLoop(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			in.remove(c)
			return
		}
	}
}

func (in *Inspector) remove(c *client) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.clients[c]; !ok {
		return
	}
	delete(in.clients, c)
	close(c.send)
	c.conn.Close()
	in.logger.Debug("devtools: client disconnected", slog.String("client", c.id))
}

func (in *Inspector) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(in.origins, "*") || slices.Contains(in.origins, origin)
}

func (in *Inspector) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := in.events.snapshot()

	if name := chi.URLParam(r, "type"); name != "" {
		t, ok := reactive.ParseEventType(name)
		if !ok {
			msg := "unknown event type " + strconv.Quote(name)
			if guess := closestEventType(name); guess != "" {
				msg += ", did you mean " + strconv.Quote(guess) + "?"
			}
			http.Error(w, msg, http.StatusNotFound)
			return
		}
		events = slices.DeleteFunc(events, func(ev reactive.Event) bool { return ev.Type != t })
	}

	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if limit < len(events) {
			events = events[len(events)-limit:]
		}
	}
	if events == nil {
		events = []reactive.Event{}
	}

	writeJSON(w, events)
}

// closestEventType returns the event type name nearest to name, or "" when
// none is close enough to be a likely typo.
func closestEventType(name string) string {
	const maxDistance = 3

	best, bestDist := "", maxDistance+1
	for t := reactive.EventResourceCreated; t <= reactive.EventBudgetExceeded; t++ {
		if d := levenshtein.ComputeDistance(name, t.String()); d < bestDist {
			best, bestDist = t.String(), d
		}
	}
	return best
}

// statsResponse is the /stats payload.
type statsResponse struct {
	Runtime  *reactive.Stats `json:"runtime,omitempty"`
	Clients  int             `json:"clients"`
	Buffered int             `json:"buffered"`
	Observed uint64          `json:"observed"`
	Dropped  uint64          `json:"dropped"`
}

func (in *Inspector) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Clients: in.ClientCount(),
		Dropped: in.dropped.Load(),
	}
	resp.Buffered, resp.Observed = in.events.counts()
	if rt := in.rt.Load(); rt != nil {
		st := rt.Stats()
		resp.Runtime = &st
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
