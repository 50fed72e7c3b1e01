package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pubops/admanager-site-export/internal/sheet"
	"github.com/pubops/admanager-site-export/pkg/admanager"
	"github.com/pubops/admanager-site-export/pkg/export"
	"github.com/pubops/admanager-site-export/pkg/importer"
	"github.com/pubops/admanager-site-export/pkg/logging"
	"github.com/pubops/admanager-site-export/pkg/planner"
	"github.com/pubops/admanager-site-export/pkg/settings"
	"github.com/pubops/admanager-site-export/pkg/statement"
)

// autoDialog confirms every import without user interaction. The server has
// no interactive surface; confirmation happens in the calling client.
type autoDialog struct{}

func (autoDialog) Confirm(_, _ string) bool { return true }
func (autoDialog) Close()                   {}

// handleState tracks which planned pages a session's caller already fetched.
type handleState struct {
	handle *export.ImportHandle
	next   int
}

// server holds the HTTP handlers and their collaborators.
type server struct {
	svc         *export.Service
	client      *admanager.Client
	store       *settings.Store
	sink        *sheet.Memory
	redis       *redis.Client
	networkCode string
	logger      zerolog.Logger

	mu      sync.Mutex
	handles map[string]*handleState
}

func newServer(svc *export.Service, client *admanager.Client, store *settings.Store, sink *sheet.Memory, redisClient *redis.Client, networkCode string) *server {
	return &server{
		svc:         svc,
		client:      client,
		store:       store,
		sink:        sink,
		redis:       redisClient,
		networkCode: networkCode,
		logger:      logging.NewLogger("export-server"),
		handles:     make(map[string]*handleState),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/imports", func(r chi.Router) {
		r.Post("/", s.handleCreateImport)
		r.Get("/{sessionID}", s.handleGetImport)
		r.Post("/{sessionID}/{command}", s.handleCommand)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Get("/{userID}", s.handleGetSettings)
		r.Put("/{userID}", s.handlePutSettings)
	})
	r.Get("/publishers", s.handleListPublishers)

	return r
}

type importRequest struct {
	Query  string         `json:"query"`
	Values map[string]any `json:"values,omitempty"`

	// Run performs the whole import before responding instead of leaving
	// batch pacing to the caller.
	Run bool `json:"run,omitempty"`
}

type importResponse struct {
	SessionID    string `json:"session_id,omitempty"`
	Destination  string `json:"destination,omitempty"`
	TotalResults int    `json:"total_results,omitempty"`
	Pages        int    `json:"pages,omitempty"`
	State        string `json:"state,omitempty"`
}

func (s *server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	stmt := statement.New(req.Query, req.Values)

	if req.Run {
		state, err := s.svc.Run(r.Context(), stmt)
		if err != nil {
			writeError(w, importStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, importResponse{State: state.String()})
		return
	}

	handle, err := s.svc.StartImport(r.Context(), stmt)
	if err != nil {
		writeError(w, importStatus(err), err.Error())
		return
	}

	s.mu.Lock()
	s.handles[handle.SessionID] = &handleState{handle: handle}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, importResponse{
		SessionID:    handle.SessionID,
		Destination:  handle.Destination,
		TotalResults: handle.TotalResults,
		Pages:        len(handle.Pages),
	})
}

type progressResponse struct {
	SessionID string  `json:"session_id"`
	State     string  `json:"state"`
	Retrieved int     `json:"retrieved"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Elapsed   string  `json:"elapsed"`
}

func (s *server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	s.writeProgress(w, chi.URLParam(r, "sessionID"))
}

func (s *server) writeProgress(w http.ResponseWriter, sessionID string) {
	snap, err := s.svc.Progress(sessionID)
	if err != nil {
		writeError(w, importStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		SessionID: snap.SessionID,
		State:     snap.State.String(),
		Retrieved: snap.Retrieved,
		Total:     snap.Total,
		Percent:   snap.Percent,
		Elapsed:   importer.FormatElapsed(snap.ElapsedSeconds),
	})
}

type batchResponse struct {
	Offset    int  `json:"offset"`
	Retrieved int  `json:"retrieved"`
	Remaining int  `json:"remaining"`
	AllLoaded bool `json:"all_loaded"`
}

func (s *server) handleCommand(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	cmd, err := export.ParseCommand(chi.URLParam(r, "command"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch cmd {
	case export.CommandFetchBatch:
		s.handleFetchBatch(w, r, sessionID)
	case export.CommandFinish:
		if err := s.svc.Finish(r.Context(), sessionID); err != nil {
			writeError(w, importStatus(err), err.Error())
			return
		}
		s.dropHandle(sessionID)
		writeJSON(w, http.StatusOK, importResponse{State: importer.StateFinished.String()})
	case export.CommandCancel:
		if err := s.svc.Cancel(r.Context(), sessionID); err != nil {
			writeError(w, importStatus(err), err.Error())
			return
		}
		s.dropHandle(sessionID)
		writeJSON(w, http.StatusOK, importResponse{State: importer.StateCancelled.String()})
	case export.CommandProgress:
		s.writeProgress(w, sessionID)
	default:
		// startImport is POST /imports; a session cannot start itself
		writeError(w, http.StatusBadRequest, "command not valid for a session")
	}
}

func (s *server) handleFetchBatch(w http.ResponseWriter, r *http.Request, sessionID string) {
	s.mu.Lock()
	hs, ok := s.handles[sessionID]
	var page planner.Page
	var remaining int
	if ok {
		if hs.next >= len(hs.handle.Pages) {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "all batches already fetched")
			return
		}
		page = hs.handle.Pages[hs.next]
		hs.next++
		remaining = len(hs.handle.Pages) - hs.next
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, export.ErrSessionNotFound.Error())
		return
	}

	n, err := s.svc.FetchBatch(r.Context(), sessionID, page)
	if err != nil {
		writeError(w, importStatus(err), err.Error())
		return
	}

	snap, _ := s.svc.Progress(sessionID)
	writeJSON(w, http.StatusOK, batchResponse{
		Offset:    page.Offset,
		Retrieved: n,
		Remaining: remaining,
		AllLoaded: snap.Retrieved >= snap.Total,
	})
}

func (s *server) dropHandle(sessionID string) {
	s.mu.Lock()
	delete(s.handles, sessionID)
	s.mu.Unlock()
}

func (s *server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	loaded, err := s.store.LoadSettings(r.Context(), userID)
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no settings for user")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, loaded)
}

func (s *server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var userSettings settings.UserSettings
	if err := json.NewDecoder(r.Body).Decode(&userSettings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings body")
		return
	}
	if _, err := export.ParseFormat(userSettings.Format); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SaveSettings(r.Context(), userID, userSettings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListPublishers serves the cached publisher directory, refreshing it
// from the sites endpoint on a miss.
func (s *server) handleListPublishers(w http.ResponseWriter, r *http.Request) {
	publishers, err := s.store.LoadDirectory(r.Context(), s.networkCode)
	if err == nil {
		writeJSON(w, http.StatusOK, publishers)
		return
	}
	if !errors.Is(err, settings.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	publishers, err = s.refreshDirectory(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, publishers)
}

// refreshDirectory rebuilds the directory from the first page of active sites
// and caches it for the store's TTL.
func (s *server) refreshDirectory(ctx context.Context) ([]settings.Publisher, error) {
	stmt := statement.New("WHERE active = true", nil).WithPagination(planner.DefaultOptions().PageSize, 0)
	page, err := s.client.GetSitesByStatement(ctx, stmt)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]settings.Publisher)
	for _, site := range page.Results {
		if site.ChildNetworkCode == "" {
			continue
		}
		seen[site.ChildNetworkCode] = settings.Publisher{
			ChildNetworkCode: site.ChildNetworkCode,
			Name:             site.URL,
			Approved:         site.ApprovalStatus == "APPROVED",
		}
	}
	publishers := make([]settings.Publisher, 0, len(seen))
	for _, p := range seen {
		publishers = append(publishers, p)
	}
	sort.Slice(publishers, func(i, j int) bool {
		return publishers[i].ChildNetworkCode < publishers[j].ChildNetworkCode
	})

	if err := s.store.SaveDirectory(ctx, s.networkCode, publishers); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to cache publisher directory")
	}
	return publishers, nil
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// importStatus maps service errors to HTTP status codes.
func importStatus(err error) int {
	switch {
	case errors.Is(err, export.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, statement.ErrPaginationClause):
		return http.StatusBadRequest
	case errors.Is(err, planner.ErrNoResults):
		return http.StatusUnprocessableEntity
	case errors.Is(err, admanager.ErrQuotaBlocked):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
