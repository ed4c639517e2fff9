package heapdump

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/heap-dump/pkg/config"
	"github.com/heap-dump/pkg/utils"

	apperrors "github.com/heap-dump/pkg/errors"
)

// TriggerResponse is the body returned by Handler.
type TriggerResponse struct {
	Success    bool   `json:"success"`
	ID         string `json:"id,omitempty"`
	Scene      string `json:"scene,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
	URL        string `json:"url,omitempty"`
	TotalSize  int64  `json:"total_size,omitempty"`
	Warnings   int    `json:"warnings,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Handler triggers a dump on POST. With a username and password set it
// requires basic auth.
type Handler struct {
	dumper   *Dumper
	username string
	password string
	logger   utils.Logger
}

// NewHandler creates a trigger handler.
func NewHandler(d *Dumper, cfg config.ServerConfig, logger utils.Logger) *Handler {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Handler{
		dumper:   d,
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="heapdump"`)
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.sendError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	rec, err := h.dumper.DumpToStorage(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperrors.ErrDumpInProgress) {
			status = http.StatusConflict
		}
		h.logger.Warn("Triggered dump failed: %v", err)
		h.sendError(w, status, err.Error())
		return
	}

	h.send(w, http.StatusOK, TriggerResponse{
		Success:    true,
		ID:         rec.ID,
		Scene:      rec.Scene,
		StorageKey: rec.StorageKey,
		URL:        rec.URL,
		TotalSize:  rec.Stats.TotalSize,
		Warnings:   rec.Stats.Warnings,
	})
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.username == "" || h.password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok &&
		subtle.ConstantTimeCompare([]byte(user), []byte(h.username)) == 1 &&
		subtle.ConstantTimeCompare([]byte(pass), []byte(h.password)) == 1
}

func (h *Handler) sendError(w http.ResponseWriter, status int, message string) {
	h.send(w, status, TriggerResponse{Success: false, Message: message})
}

func (h *Handler) send(w http.ResponseWriter, status int, body TriggerResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Server serves Handler on its own listener.
type Server struct {
	server *http.Server
	logger utils.Logger
}

// NewServer mounts h at cfg.Path on cfg.Addr.
func NewServer(h *Handler, cfg config.ServerConfig, logger utils.Logger) *Server {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, h)
	return &Server{
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// ListenAndServe blocks until ctx is done, then shuts the server down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Heap dump trigger listening on %s", s.server.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
