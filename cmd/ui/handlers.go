package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tradezone-dashboard/internal/autherr"
	"tradezone-dashboard/internal/models"
	"tradezone-dashboard/internal/pricefx"
	"tradezone-dashboard/internal/query"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log       *zap.Logger
	dash      Dashboard
	startTime time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, dash Dashboard) *APIHandler {
	return &APIHandler{log: log, dash: dash, startTime: time.Now()}
}

// Snapshot is the JSON form of one cached query.
type Snapshot struct {
	Data       interface{} `json:"data"`
	HasData    bool        `json:"hasData"`
	IsFetching bool        `json:"isFetching"`
	Error      string      `json:"error,omitempty"`
}

func snapshotOf[T any](s query.TypedState[T]) Snapshot {
	snap := Snapshot{HasData: s.HasData, IsFetching: s.IsFetching}
	if s.HasData {
		snap.Data = s.Data
	}
	if s.Err != nil {
		snap.Error = s.Err.Error()
	}
	return snap
}

// ErrorBody is the JSON form of a categorized auth error.
type ErrorBody struct {
	Category  autherr.Category `json:"category"`
	Message   string           `json:"message"`
	Details   string           `json:"details,omitempty"`
	Retryable bool             `json:"retryable"`
}

// StatusResponse is the structure for the /api/status endpoint.
type StatusResponse struct {
	User          *models.User    `json:"user"`
	Authenticated bool            `json:"authenticated"`
	Suspended     bool            `json:"suspended"`
	CanTrade      bool            `json:"canTrade"`
	TradesDate    string          `json:"tradesDate"`
	WatchlistID   int             `json:"watchlistId"`
	Error         *ErrorBody      `json:"error"`
	Flashes       []pricefx.Flash `json:"flashes"`
	StartTime     string          `json:"startTime"`
	Uptime        string          `json:"uptime"`
}

// StatusHandler reports the session, the last auth error and active flashes.
func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	v := h.dash.View()
	status := StatusResponse{
		User:          h.dash.User(),
		Authenticated: h.dash.IsAuthenticated(),
		Suspended:     h.dash.Suspended(),
		CanTrade:      h.dash.CanTrade(),
		TradesDate:    v.TradesDate,
		WatchlistID:   v.WatchlistID,
		Flashes:       h.dash.Flashes(),
		StartTime:     h.startTime.Format(time.RFC3339),
		Uptime:        time.Since(h.startTime).String(),
	}
	if status.Flashes == nil {
		status.Flashes = []pricefx.Flash{}
	}
	if ae := h.dash.LastError(); ae != nil {
		status.Error = &ErrorBody{Category: ae.Category, Message: ae.Message, Details: ae.Details, Retryable: ae.Retryable}
	}
	h.writeJSON(w, http.StatusOK, status)
}

// HoldingsHandler returns the cached holdings and portfolio summary.
func (h *APIHandler) HoldingsHandler(w http.ResponseWriter, r *http.Request) {
	if !h.dash.IsAuthenticated() {
		h.writeError(w, http.StatusUnauthorized, "Please sign in to view holdings")
		return
	}
	v := h.dash.View()
	h.writeJSON(w, http.StatusOK, map[string]Snapshot{
		"holdings": snapshotOf(v.Holdings),
		"summary":  snapshotOf(v.Summary),
	})
}

// TradesHandler returns the cached live trade grid for the latest date.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	v := h.dash.View()
	h.writeJSON(w, http.StatusOK, struct {
		Date   string   `json:"date"`
		Trades Snapshot `json:"trades"`
	}{v.TradesDate, snapshotOf(v.Trades)})
}

// WatchlistsHandler returns the cached watchlist map of the session user.
func (h *APIHandler) WatchlistsHandler(w http.ResponseWriter, r *http.Request) {
	v := h.dash.View()
	if v.Owner == "" {
		h.writeError(w, http.StatusUnauthorized, "No active session")
		return
	}
	h.writeJSON(w, http.StatusOK, snapshotOf(v.Watchlists))
}

// WatchlistHandler selects a watchlist and returns its cached symbols and
// trades. Until the selection has been synced the response is 202.
func (h *APIHandler) WatchlistHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || !models.ValidWatchlistID(id) {
		h.writeError(w, http.StatusBadRequest, "Invalid watchlist id")
		return
	}
	if h.dash.View().Owner == "" {
		h.writeError(w, http.StatusUnauthorized, "No active session")
		return
	}

	h.dash.Select(id)
	v := h.dash.View()

	status := http.StatusOK
	if v.WatchlistID != id {
		status = http.StatusAccepted
	}
	h.writeJSON(w, status, struct {
		ID      int      `json:"id"`
		Date    string   `json:"date"`
		Symbols Snapshot `json:"symbols"`
		Trades  Snapshot `json:"trades"`
	}{id, v.TradesDate, snapshotOf(v.WatchlistSymbols), snapshotOf(v.WatchlistTrades)})
}

// HealthHandler reports that the server is up.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK\n"))
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
