package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/palmscan/palmscan/internal/fortune"
	"github.com/palmscan/palmscan/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Options configures the web server.
type Options struct {
	Version string
	Bind    string
	Port    int

	// User is where GET / lands.
	User string
}

// NewServer creates and configures the HTTP server for the fortune history UI.
func NewServer(env *ops.Env, opts Options) (*http.Server, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	renderer, err := NewRenderer(templateSub, opts.Version, env.Log)
	if err != nil {
		return nil, err
	}

	h := &Handlers{env: env, renderer: renderer}
	home := opts.User
	if home == "" {
		home = "me"
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, historyPath(home), http.StatusFound)
	})
	mux.HandleFunc("GET /users/{user}/fortunes", h.HandleHistory)
	mux.HandleFunc("POST /users/{user}/fortunes/purge", h.HandlePurge)
	mux.HandleFunc("GET /users/{user}/fortunes/{id}", h.HandleDetail)
	mux.HandleFunc("DELETE /users/{user}/fortunes/{id}", h.HandleDelete)
	mux.HandleFunc("GET /api/users/{user}/fortunes/{id}", h.HandleAPIFetch)
	mux.HandleFunc("POST /api/parse", h.HandleAPIParse)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return &http.Server{
		Addr:              net.JoinHostPort(opts.Bind, strconv.Itoa(opts.Port)),
		Handler:           securityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// Run serves srv until ctx is done, then shuts down gracefully. The caller
// cancels ctx on SIGINT/SIGTERM. When configured, the vocabulary file is
// watched while the server runs.
func Run(ctx context.Context, srv *http.Server, env *ops.Env) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg := env.Config; cfg != nil && cfg.WatchVocabulary && cfg.VocabularyPath != "" && env.Parser != nil {
		go func() {
			if err := fortune.WatchVocabulary(ctx, cfg.VocabularyPath, env.Parser, env.Log); err != nil {
				env.Log.Warn().Err(err).Msg("vocabulary watcher stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	env.Log.Info().Str("addr", "http://"+srv.Addr).Msg("fortune UI running")
	if host, _, err := net.SplitHostPort(srv.Addr); err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		env.Log.Warn().Msg("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		env.Log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
