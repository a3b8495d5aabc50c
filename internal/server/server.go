package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewMux wires the API under /api/, the health probe, and static files from
// staticDir for everything else. An empty staticDir disables static serving.
// Dotfiles such as .env are never served.
func NewMux(api http.Handler, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/", api)
	mux.Handle("/api", api)
	mux.HandleFunc("GET /health", handleHealth)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(noDotFiles{http.Dir(staticDir)}))
	} else {
		mux.HandleFunc("/", http.NotFound)
	}
	return mux
}

// noDotFiles hides every path with a segment starting with ".".
type noDotFiles struct {
	fs http.FileSystem
}

func (n noDotFiles) Open(name string) (http.File, error) {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return nil, fs.ErrNotExist
		}
	}
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	return noDotFile{f}, nil
}

// noDotFile drops dotfiles from directory listings.
type noDotFile struct {
	http.File
}

func (f noDotFile) Readdir(count int) ([]fs.FileInfo, error) {
	infos, err := f.File.Readdir(count)
	visible := infos[:0]
	for _, info := range infos {
		if !strings.HasPrefix(info.Name(), ".") {
			visible = append(visible, info)
		}
	}
	return visible, err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func New(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With("module", "server"),
	}
}

// Run listens on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		serverErrors <- s.srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		s.logger.Info("start shutdown", "cause", context.Cause(ctx))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("graceful shutdown failed", "err", err)
		if closeErr := s.srv.Close(); closeErr != nil {
			s.logger.Error("forcing server close", "err", closeErr)
		}
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
