// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package window

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wingedpig/sidecar/internal/api"
	"github.com/wingedpig/sidecar/internal/api/handlers"
	"github.com/wingedpig/sidecar/internal/events"
)

const (
	socketPath          = "/ws"
	defaultDestroyGrace = 3 * time.Second
	shutdownTimeout     = 2 * time.Second
	clientBuffer        = 32
	pingInterval        = 54 * time.Second
	pongWait            = 60 * time.Second
)

// HostOptions configures a Host.
type HostOptions struct {
	Title        string
	Host         string
	Port         int           // 0 picks a free port
	DestroyGrace time.Duration // How long a closed page may take to reconnect
	OpenBrowser  bool
	Launch       Launcher

	Backend handlers.Backend
	Bus     events.EventBus
	Logger  *zap.Logger
}

// message is the wire format pushed to shell pages.
type message struct {
	Type  string        `json:"type"`
	URL   string        `json:"url,omitempty"`
	Event *events.Event `json:"event,omitempty"`
}

type client struct {
	id   string
	send chan message
}

// Host is a Window rendered by the user's browser. The page holds a
// websocket open; the window counts as destroyed once every page has gone
// and none has come back within the grace period.
type Host struct {
	opts     HostOptions
	logger   *zap.Logger
	router   *mux.Router
	upgrader websocket.Upgrader

	mu         sync.Mutex
	url        string
	clients    map[string]*client
	connected  bool
	graceTimer *time.Timer
	server     *http.Server
	addr       string
	subID      events.SubscriptionID
	closed     bool

	destroyed   chan struct{}
	destroyOnce sync.Once
}

// NewHost creates a window host. Call Open to start serving.
func NewHost(opts HostOptions) *Host {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.DestroyGrace <= 0 {
		opts.DestroyGrace = defaultDestroyGrace
	}
	if opts.Launch == nil {
		opts.Launch = CommandLauncher("xdg-open")
	}

	h := &Host{
		opts:      opts,
		logger:    opts.Logger.Named("window"),
		clients:   make(map[string]*client),
		destroyed: make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	h.router = api.NewRouter(api.Dependencies{
		Backend:  opts.Backend,
		EventBus: opts.Bus,
		Logger:   opts.Logger,
	})
	h.router.HandleFunc("/", h.servePage).Methods("GET")
	h.router.HandleFunc(socketPath, h.serveSocket).Methods("GET")

	return h
}

// Handler returns the HTTP handler serving the window.
func (h *Host) Handler() http.Handler {
	return h.router
}

// Open starts listening and, if configured, opens the page in a browser.
func (h *Host) Open(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if h.server != nil {
		h.mu.Unlock()
		return errors.New("window is already open")
	}
	h.mu.Unlock()

	var lc net.ListenConfig
	addr := net.JoinHostPort(h.opts.Host, strconv.Itoa(h.opts.Port))
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           h.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	h.mu.Lock()
	h.server = server
	h.addr = ln.Addr().String()
	h.mu.Unlock()

	if h.opts.Bus != nil {
		subID, err := h.opts.Bus.SubscribeAsync("backend.*", func(_ context.Context, e events.Event) error {
			h.broadcast(message{Type: "event", Event: &e})
			return nil
		}, 100)
		if err != nil {
			h.logger.Warn("failed to subscribe to backend events", zap.Error(err))
		} else {
			h.mu.Lock()
			h.subID = subID
			h.mu.Unlock()
		}
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("window server failed", zap.Error(err))
			h.destroy("server failed")
		}
	}()

	pageURL := h.URL()
	h.logger.Info("window listening", zap.String("url", pageURL))

	if h.opts.OpenBrowser {
		if err := h.opts.Launch(pageURL); err != nil {
			h.logger.Warn("failed to open browser; open the window manually", zap.String("url", pageURL), zap.Error(err))
		}
	}
	return nil
}

// Addr returns the listening address, or "" before Open.
func (h *Host) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addr
}

// URL returns the address of the shell page.
func (h *Host) URL() string {
	addr := h.Addr()
	if addr == "" {
		return ""
	}
	return "http://" + addr + "/"
}

// Current returns the address the window content was last pointed at.
func (h *Host) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.url
}

// Clients returns the number of connected pages.
func (h *Host) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Navigate points every connected page, and every page that connects later,
// at target.
func (h *Host) Navigate(target string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.url = target
	h.mu.Unlock()

	h.logger.Info("navigating window", zap.String("url", target))
	h.broadcast(message{Type: "navigate", URL: target})
	h.publish(events.EventWindowNavigated, map[string]interface{}{"url": target})
	return nil
}

// Destroyed is closed once the window has been destroyed.
func (h *Host) Destroyed() <-chan struct{} {
	return h.destroyed
}

// Close stops the server and destroys the window.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	server := h.server
	subID := h.subID
	if h.graceTimer != nil {
		h.graceTimer.Stop()
		h.graceTimer = nil
	}
	h.mu.Unlock()

	if subID != "" && h.opts.Bus != nil {
		h.opts.Bus.Unsubscribe(subID)
	}

	var err error
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Shutdown does not wait for hijacked websocket connections
		err = server.Shutdown(ctx)
		server.Close()
	}

	h.destroy("closed")
	return err
}

func (h *Host) destroy(reason string) {
	h.destroyOnce.Do(func() {
		h.logger.Info("window destroyed", zap.String("reason", reason))
		h.publish(events.EventWindowDestroyed, map[string]interface{}{"reason": reason})
		close(h.destroyed)
	})
}

func (h *Host) serveSocket(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "window is closed", http.StatusGone)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := h.register()
	defer h.unregister(c)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	// Read goroutine (for close detection)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Write loop
	for {
		select {
		case msg := <-c.send:
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-h.destroyed:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "window closed"))
			return
		case <-done:
			return
		}
	}
}

// checkOrigin accepts requests without an Origin header and pages served by
// this host. Any other site is refused.
func (h *Host) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "http" {
		return false
	}
	addr := h.Addr()
	if addr == "" {
		return false
	}
	if strings.EqualFold(u.Host, addr) {
		return true
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, net.JoinHostPort(h.opts.Host, port))
}

func (h *Host) register() *client {
	c := &client{
		id:   uuid.NewString(),
		send: make(chan message, clientBuffer),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.connected = true
	if h.graceTimer != nil {
		h.graceTimer.Stop()
		h.graceTimer = nil
	}
	if h.url != "" {
		c.send <- message{Type: "navigate", URL: h.url}
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("window page connected", zap.String("client", c.id), zap.Int("clients", count))
	return c
}

func (h *Host) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	count := len(h.clients)
	if count == 0 && h.connected && !h.closed {
		h.graceTimer = time.AfterFunc(h.opts.DestroyGrace, h.graceExpired)
	}
	h.mu.Unlock()

	h.logger.Debug("window page disconnected", zap.String("client", c.id), zap.Int("clients", count))
}

func (h *Host) graceExpired() {
	h.mu.Lock()
	if len(h.clients) > 0 || h.closed {
		h.mu.Unlock()
		return
	}
	h.graceTimer = nil
	h.mu.Unlock()

	h.destroy("last page closed")
}

func (h *Host) broadcast(msg message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropped window message, page is not reading", zap.String("client", c.id), zap.String("type", msg.Type))
		}
	}
}

func (h *Host) publish(eventType string, payload map[string]interface{}) {
	if h.opts.Bus == nil {
		return
	}
	h.opts.Bus.Publish(context.Background(), events.Event{Type: eventType, Payload: payload})
}

var _ Window = (*Host)(nil)
