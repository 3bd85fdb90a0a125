// Command prism-dispatcher exposes pkg/dispatcher.Submit over a small
// internal HTTP endpoint that an upload surface (out of scope per
// spec.md §1) calls once it has rasterized a document into per-page
// images and uploaded them to the object store. No authentication is
// implemented here, matching spec.md's explicit "HTTP/upload surface;
// authentication" out-of-scope boundary — this binary trusts its
// caller the way the teacher's gRPC API trusts an already-authenticated
// client connection, grounded on cmd/warren's metrics/health HTTP
// server bring-up pattern generalized with one additional route.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/prismlabs/prism/pkg/bus"
	"github.com/prismlabs/prism/pkg/config"
	"github.com/prismlabs/prism/pkg/dispatcher"
	"github.com/prismlabs/prism/pkg/ledger"
	"github.com/prismlabs/prism/pkg/log"
	"github.com/prismlabs/prism/pkg/metrics"
	"github.com/prismlabs/prism/pkg/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	initLogging(cfg)
	logger := log.WithComponent("dispatcher")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := bus.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to bus failed")
	}
	defer b.Close()
	metrics.RegisterComponent("bus", true, "connected")

	l, err := ledger.Open(ctx, cfg.DatabaseURL())
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to ledger failed")
	}
	defer l.Close()
	metrics.RegisterComponent("ledger", true, "connected")
	metrics.SetCriticalComponents("bus", "ledger")

	d := dispatcher.New(l, b)
	h := &handler{dispatcher: d, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/tasks", h.submit)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	logger.Info().Str("addr", cfg.MetricsAddr).Msg("dispatcher listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server error")
	}

	_ = srv.Shutdown(context.Background())
	logger.Info().Msg("shutdown complete")
}

// handler adapts pkg/dispatcher.Submit to a JSON HTTP request/response,
// with no validation beyond what dispatcher.Submit itself enforces —
// request authentication and document rasterization belong to the
// out-of-scope upload surface (spec.md §1).
type handler struct {
	dispatcher *dispatcher.Dispatcher
	logger     zerolog.Logger
}

type submitRequest struct {
	TaskID           string              `json:"task_id,omitempty"`
	UserID           string              `json:"user_id"`
	SourceFileKey    string              `json:"source_file_key"`
	RequestedFormats []types.FormatType  `json:"requested_formats"`
	FormatOptions    types.FormatOptions `json:"format_options"`
	TotalPages       int                 `json:"total_pages"`
	PageImageKeys    []string            `json:"page_image_keys"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		return
	}

	taskID, err := h.dispatcher.Submit(r.Context(), dispatcher.SubmitRequest{
		TaskID:           req.TaskID,
		UserID:           req.UserID,
		SourceFileKey:    req.SourceFileKey,
		RequestedFormats: req.RequestedFormats,
		FormatOptions:    req.FormatOptions,
		TotalPages:       req.TotalPages,
		PageImageKeys:    req.PageImageKeys,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("dispatching task failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(submitResponse{TaskID: taskID})
}

func initLogging(cfg config.Config) {
	level := log.InfoLevel
	if cfg.DevMode {
		level = log.DebugLevel
	}
	log.Init(log.Config{Level: level, JSONOutput: !cfg.DevMode})
}
