// Package dashboard serves the read-only HTTP API over processed
// receipts: list and detail views, archived PDF download, and a
// server-sent-events stream that fires whenever the database changes.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/mkurosawa/receiptd/internal/config"
	"github.com/mkurosawa/receiptd/internal/store"
	"github.com/mkurosawa/receiptd/pkg/handlers"
	"github.com/mkurosawa/receiptd/pkg/routes"
)

const keepAliveInterval = 30 * time.Second

// ReceiptReader is the store surface the dashboard consumes.
// Implemented by store.Store.
type ReceiptReader interface {
	ListSuccessful(ctx context.Context) ([]store.Record, error)
	ListFailed(ctx context.Context) ([]store.Record, error)
	Find(ctx context.Context, id string) (store.Record, error)
	NotifyChanges(ctx context.Context, interval time.Duration) (<-chan struct{}, error)
}

// Handler serves the dashboard API.
type Handler struct {
	reader  ReceiptReader
	cfg     config.DashboardConfig
	storage config.StorageConfig
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(reader ReceiptReader, cfg config.DashboardConfig, storage config.StorageConfig, logger *slog.Logger) *Handler {
	return &Handler{
		reader:  reader,
		cfg:     cfg,
		storage: storage,
		logger:  logger.With("system", "dashboard"),
	}
}

// Routes returns the dashboard route group mounted at the configured
// base path.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: h.cfg.BasePath,
		Routes: []routes.Route{
			{Method: http.MethodGet, Pattern: "/receipts", Handler: h.listReceipts},
			{Method: http.MethodGet, Pattern: "/receipt/{id}", Handler: h.receiptDetail},
			{Method: http.MethodGet, Pattern: "/receipt-file/{id}/{type}", Handler: h.receiptFile},
			{Method: http.MethodGet, Pattern: "/stream", Handler: h.stream},
		},
	}
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	successful, err := h.reader.ListSuccessful(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, store.MapHTTPStatus(err), err)
		return
	}
	failed, err := h.reader.ListFailed(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, store.MapHTTPStatus(err), err)
		return
	}

	resp := listResponse{
		Successful: make([]SuccessSummary, 0, len(successful)),
		Failed:     make([]FailureSummary, 0, len(failed)),
	}
	for _, record := range successful {
		resp.Successful = append(resp.Successful, toSuccessSummary(record))
	}
	for _, record := range failed {
		resp.Failed = append(resp.Failed, toFailureSummary(record))
	}

	handlers.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) receiptDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	record, err := h.reader.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, store.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, toDetail(record, h.cfg.BasePath))
}

func (h *Handler) receiptFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" || filepath.Base(id) != id {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid receipt id"))
		return
	}

	var dir string
	switch r.PathValue("type") {
	case "success":
		dir = h.storage.SuccessDir
	case "failed":
		dir = h.storage.ErrorDir
	default:
		handlers.RespondError(w, h.logger, http.StatusNotFound, store.ErrNotFound)
		return
	}

	http.ServeFile(w, r, filepath.Join(dir, id+".pdf"))
}

// stream is an EventSource endpoint: it emits an "update" event
// whenever the database data version moves, plus periodic keep-alive
// comments so idle proxies do not close the connection.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	updates, err := h.reader.NotifyChanges(r.Context(), h.cfg.PollIntervalDuration())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-updates:
			fmt.Fprint(w, "event: update\ndata: {}\n\n")
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}
