package gena

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/muurk/upnpctl/internal/logging"
	"github.com/muurk/upnpctl/internal/metrics"
	"github.com/muurk/upnpctl/internal/protocol"
)

const (
	// DefaultCallbackPort is the port the receiver listens on by default
	DefaultCallbackPort = 8008

	maxNotifyBody   = 1 << 20
	notifyTimeout   = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func init() {
	chi.RegisterMethod(MethodNotify)
}

// ReceiverConfig holds the callback server configuration
type ReceiverConfig struct {
	Host       string
	Port       int
	Handler    EventHandler
	Metrics    *metrics.Metrics
	CaptureDir string // directory for JSONL event captures (empty = disabled)
}

// Receiver is the HTTP server devices deliver events to
type Receiver struct {
	config   ReceiverConfig
	hub      *hub
	capture  *captureWriter
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
}

// NewReceiver creates a receiver. Port 0 binds an ephemeral port.
func NewReceiver(config ReceiverConfig) *Receiver {
	return &Receiver{
		config: config,
		hub:    newHub(),
	}
}

// Router builds the receiver's routes
func (r *Receiver) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", r.handleHealthz)
	router.Handle("/metrics", r.config.Metrics.Handler())
	router.Get("/events", r.hub.serveHTTP)

	router.Group(func(g chi.Router) {
		g.Use(middleware.Timeout(notifyTimeout))
		g.Method(MethodNotify, protocol.NotifyPath, http.HandlerFunc(r.handleNotify))
	})
	return router
}

// Start binds the listener and serves in the background. It returns once the
// socket is bound.
func (r *Receiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("receiver already started")
	}

	capture, err := newCaptureWriter(r.config.CaptureDir, time.Now())
	if err != nil {
		return err
	}
	r.capture = capture

	addr := net.JoinHostPort(r.config.Host, strconv.Itoa(r.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	r.listener = listener
	r.server = &http.Server{
		Handler:           r.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	r.started = true

	logging.Info("Event receiver listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("capture_dir", r.config.CaptureDir),
	)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Event receiver stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start
func (r *Receiver) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

// Port returns the bound port, or 0 before Start
func (r *Receiver) Port() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return 0
	}
	if tcp, ok := r.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// StreamClients returns the number of connected websocket clients
func (r *Receiver) StreamClients() int {
	return r.hub.count()
}

// Shutdown stops accepting requests, disconnects stream clients and waits for
// in-flight work, giving up after ctx ends or 10 seconds.
func (r *Receiver) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	server := r.server
	started := r.started
	r.started = false
	r.mu.Unlock()
	if !started {
		return nil
	}

	logging.Info("Shutting down event receiver...")

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	r.hub.close()
	err := server.Shutdown(ctx)
	if err != nil {
		logging.Warn("Receiver shutdown incomplete, forcing close", zap.Error(err))
		_ = server.Close()
	}

	done := make(chan struct{})
	go func() {
		r.hub.wait()
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("Event receiver stopped")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return err
}

func (r *Receiver) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (r *Receiver) handleNotify(w http.ResponseWriter, req *http.Request) {
	nt := strings.TrimSpace(req.Header.Get(headerNT))
	nts := strings.TrimSpace(req.Header.Get(headerNTS))
	sid := strings.TrimSpace(req.Header.Get(headerSID))
	logging.LogHTTPRequest(req.RemoteAddr, req.Method, req.URL.Path, map[string]string{
		headerNT:  nt,
		headerNTS: nts,
		headerSID: sid,
		headerSEQ: req.Header.Get(headerSEQ),
	})
	if nt != protocol.EventNT || nts != protocol.EventNTS || sid == "" {
		logging.Warn("Rejected NOTIFY with bad headers",
			zap.String("remote_addr", req.RemoteAddr),
			zap.String("nt", nt),
			zap.String("nts", nts),
			zap.String("sid", sid),
		)
		r.config.Metrics.ObserveEvent(metrics.ResultDropped)
		http.Error(w, "precondition failed", http.StatusPreconditionFailed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxNotifyBody))
	if err != nil {
		r.config.Metrics.ObserveEvent(metrics.ResultDropped)
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}
	props, err := ParseEventPayload(body)
	if err != nil {
		logging.Warn("Rejected NOTIFY with malformed body",
			zap.String("remote_addr", req.RemoteAddr),
			zap.String("sid", sid),
			zap.Error(err),
		)
		logging.LogRawBytes("NOTIFY body", body)
		r.config.Metrics.ObserveEvent(metrics.ResultDropped)
		http.Error(w, "malformed property set", http.StatusBadRequest)
		return
	}

	var seq uint32
	if raw := strings.TrimSpace(req.Header.Get(headerSEQ)); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 32); err == nil {
			seq = uint32(n)
		}
	}

	ev := Event{
		SID:        sid,
		Seq:        seq,
		Properties: props,
		ReceivedAt: time.Now(),
		RemoteAddr: req.RemoteAddr,
	}
	logging.Debug("Event received",
		zap.String("sid", ev.SID),
		zap.Uint32("seq", ev.Seq),
		zap.Int("properties", len(ev.Properties)),
	)

	r.config.Metrics.ObserveEvent(metrics.ResultAccepted)
	r.capture.write(ev, body)
	if r.config.Handler != nil {
		r.config.Handler(ev)
	}
	r.hub.broadcast(ev)

	w.WriteHeader(http.StatusOK)
}
