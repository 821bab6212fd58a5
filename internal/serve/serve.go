// Package serve hosts directories over local HTTP: scenario pages for the
// browser to capture, and results trees for people to browse.
package serve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/roach88/fidelity/internal/artifact"
	"github.com/roach88/fidelity/internal/report"
)

// Server is a running HTTP server.
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger

	mu   sync.Mutex
	err  error
	done chan struct{}
}

// Start listens on addr ("127.0.0.1:0" picks a free port) and serves
// handler in the background until Close.
func Start(addr string, handler http.Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	s := &Server{
		server: &http.Server{
			Handler:           logRequests(handler, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: ln,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		err := s.server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "addr", ln.Addr().String(), "error", err)
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()
	logger.Info("listening", "url", s.URL())
	return s, nil
}

// URL returns the base URL of the server, ending in a slash.
func (s *Server) URL() string {
	return "http://" + s.listener.Addr().String() + "/"
}

// Close stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Close(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Pages serves dir as static files without caching, so a rerun always
// loads the current scenario pages and models.
func Pages(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		files.ServeHTTP(w, r)
	})
}

// Results serves a results tree. The index page is rebuilt from the tree's
// config.json on every request, so it always reflects the latest run.
func Results(root string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	files := Pages(root)
	mux := http.NewServeMux()
	mux.Handle("/", files)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		serveIndex(w, root, logger)
	})
	mux.HandleFunc("GET /"+report.IndexFile, func(w http.ResponseWriter, r *http.Request) {
		serveIndex(w, root, logger)
	})
	return mux
}

func serveIndex(w http.ResponseWriter, root string, logger *slog.Logger) {
	cfg, err := artifact.ReadConfig(root)
	if err != nil {
		logger.Error("read results config", "root", root, "error", err)
		http.Error(w, "no results: "+err.Error(), http.StatusNotFound)
		return
	}
	page, err := report.Index(report.Build(cfg))
	if err != nil {
		logger.Error("render index", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(page)
}

func logRequests(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
