// Package export exposes the import pipeline to the interactive dialog
// layer: start import, fetch next batch, finish, cancel, and progress.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pubops/admanager-site-export/pkg/admanager"
	"github.com/pubops/admanager-site-export/pkg/importer"
	"github.com/pubops/admanager-site-export/pkg/logging"
	"github.com/pubops/admanager-site-export/pkg/planner"
	"github.com/pubops/admanager-site-export/pkg/statement"
)

// ErrSessionNotFound is returned for operations against an unknown session.
var ErrSessionNotFound = errors.New("import session not found")

// Fetcher executes filter statements against the remote sites endpoint.
// Implemented by the Ad Manager client; retry of transient faults lives there.
type Fetcher interface {
	GetSitesByStatement(ctx context.Context, stmt statement.Statement) (*admanager.SitePage, error)
	CountByStatement(ctx context.Context, stmt statement.Statement) (int, error)
}

// SlotGuard caps concurrent import sessions per network. nil disables gating.
type SlotGuard interface {
	AcquireImportSlot(ctx context.Context, networkCode string) (bool, error)
	ReleaseImportSlot(ctx context.Context, networkCode string) error
}

// Config holds service configuration.
type Config struct {
	// NetworkCode of the parent publisher network (for quota accounting).
	NetworkCode string

	// PageSize is the record count per planned page.
	PageSize int

	// MaxResults caps the total records an import may retrieve.
	MaxResults int

	// Format selects the display-row shape.
	Format OutputFormat

	// FetchTimeout bounds a single page fetch in the server-driven variant.
	FetchTimeout time.Duration
}

// DefaultConfig returns safe service defaults for a network.
func DefaultConfig(networkCode string) Config {
	return Config{
		NetworkCode:  networkCode,
		PageSize:     planner.DefaultOptions().PageSize,
		MaxResults:   planner.DefaultOptions().MaxResults,
		Format:       FormatSummary,
		FetchTimeout: importer.DefaultConfig().FetchTimeout,
	}
}

// ImportHandle identifies a started import for the dialog layer.
type ImportHandle struct {
	SessionID    string
	Destination  string
	TotalResults int
	Pages        []planner.Page
}

// importSession pairs a session with its planned pages.
type importSession struct {
	session *importer.Session
	pages   []planner.Page
}

// Service wires the planner, the remote fetcher, and the destination sink.
// All collaborators are injected at construction; there is no ambient state.
type Service struct {
	fetcher  Fetcher
	planner  *planner.Planner
	sink     importer.Sink
	dialog   importer.Dialog
	renderer importer.Renderer
	guard    SlotGuard
	config   Config
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*importSession
}

// NewService creates the export service.
func NewService(fetcher Fetcher, sink importer.Sink, dialog importer.Dialog, renderer importer.Renderer, guard SlotGuard, config Config) *Service {
	if config.PageSize <= 0 {
		config.PageSize = planner.DefaultOptions().PageSize
	}
	if config.MaxResults <= 0 {
		config.MaxResults = planner.DefaultOptions().MaxResults
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = importer.DefaultConfig().FetchTimeout
	}
	return &Service{
		fetcher:  fetcher,
		planner:  planner.New(fetcher),
		sink:     sink,
		dialog:   dialog,
		renderer: renderer,
		guard:    guard,
		config:   config,
		logger:   log.With().Str("component", "export-service").Logger(),
		sessions: make(map[string]*importSession),
	}
}

// destinationName builds a temporary worksheet name for a new import.
func destinationName() string {
	return "sites-import-" + strings.Split(uuid.NewString(), "-")[0]
}

// StartImport plans the filtered query and creates the destination under a
// temporary name. The destination is only created after the plan succeeds,
// so an invalid or empty filter never leaves a worksheet behind.
func (s *Service) StartImport(ctx context.Context, stmt statement.Statement) (*ImportHandle, error) {
	plan, err := s.planner.Plan(ctx, stmt, planner.Options{
		PageSize:   s.config.PageSize,
		MaxResults: s.config.MaxResults,
	})
	if err != nil {
		return nil, err
	}

	if s.guard != nil {
		ok, err := s.guard.AcquireImportSlot(ctx, s.config.NetworkCode)
		if err != nil {
			return nil, fmt.Errorf("import slot: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("network %s: concurrent import limit reached", s.config.NetworkCode)
		}
	}

	dest := destinationName()
	if err := s.sink.Create(ctx, dest); err != nil {
		s.releaseSlot(ctx)
		return nil, fmt.Errorf("create destination: %w", err)
	}

	sess := importer.NewSession(dest, plan.TotalResults)
	s.mu.Lock()
	s.sessions[sess.ID] = &importSession{session: sess, pages: plan.Pages}
	s.mu.Unlock()

	sessionLog := logging.SessionLogger(sess.ID, dest)
	sessionLog.Info().
		Int("total_results", plan.TotalResults).
		Int("pages", len(plan.Pages)).
		Msg("Import started")

	return &ImportHandle{
		SessionID:    sess.ID,
		Destination:  dest,
		TotalResults: plan.TotalResults,
		Pages:        plan.Pages,
	}, nil
}

// FetchBatch fetches one page for the session and writes its rows at the
// page's offset, so batches may arrive in any order. Returns the record
// count retrieved for the page.
func (s *Service) FetchBatch(ctx context.Context, sessionID string, page planner.Page) (int, error) {
	is, err := s.lookup(sessionID)
	if err != nil {
		return 0, err
	}
	is.session.Activate()

	sitePage, err := s.fetcher.GetSitesByStatement(ctx, page.Statement)
	if err != nil {
		return 0, fmt.Errorf("page offset %d: %w", page.Offset, err)
	}

	rows, err := MapRows(sitePage.Results, s.config.Format)
	if err != nil {
		return 0, err
	}
	if err := s.sink.WriteRows(ctx, is.session.Destination, rows, page.Offset); err != nil {
		return 0, fmt.Errorf("sink write at offset %d: %w", page.Offset, err)
	}

	retrieved := is.session.AddRetrieved(len(rows))
	if retrieved >= is.session.TotalResults {
		s.logger.Info().
			Str("session_id", sessionID).
			Int("retrieved", retrieved).
			Msg("All pages loaded")
	}
	return len(rows), nil
}

// Finish finalizes the destination and closes the dialog.
func (s *Service) Finish(ctx context.Context, sessionID string) error {
	is, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	if !is.session.AllLoaded() {
		s.logger.Warn().
			Str("session_id", sessionID).
			Int("retrieved", is.session.Retrieved()).
			Int("total", is.session.TotalResults).
			Msg("Finishing before every page loaded")
	}

	if err := s.sink.Finalize(ctx, is.session.Destination); err != nil {
		return fmt.Errorf("finalize %s: %w", is.session.Destination, err)
	}
	is.session.Finish()
	s.dialog.Close()
	s.drop(ctx, sessionID)
	return nil
}

// Cancel deletes the destination and marks the session cancelled. The dialog
// stays open for the user to acknowledge the failure.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	is, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	is.session.Cancel()
	if err := s.sink.Delete(context.WithoutCancel(ctx), is.session.Destination); err != nil {
		s.logger.Error().
			Err(err).
			Str("destination", is.session.Destination).
			Msg("Destination cleanup failed")
	}
	s.drop(ctx, sessionID)
	return nil
}

// Progress returns a snapshot of the session for the progress view.
func (s *Service) Progress(sessionID string) (importer.Snapshot, error) {
	is, err := s.lookup(sessionID)
	if err != nil {
		return importer.Snapshot{}, err
	}
	return is.session.Snapshot(), nil
}

// Run performs a whole import end to end: confirmation, planning, bounded
// concurrent fetching with progress rendering, and the terminal transition.
// This is the server-driven variant; the granular entry points above serve
// a dialog layer that paces its own batches.
func (s *Service) Run(ctx context.Context, stmt statement.Statement) (importer.State, error) {
	prompt := fmt.Sprintf("Import sites matching %q?", stmt.Query)
	if !s.dialog.Confirm("Import sites", prompt) {
		s.logger.Info().Msg("Import rejected by user")
		return importer.StateIdle, nil
	}

	handle, err := s.StartImport(ctx, stmt)
	if err != nil {
		return importer.StateIdle, err
	}
	is, err := s.lookup(handle.SessionID)
	if err != nil {
		return importer.StateIdle, err
	}

	driver := importer.NewDriver(importer.Config{FetchTimeout: s.config.FetchTimeout})
	done := make(chan error, 1)
	go func() {
		done <- driver.Run(ctx, is.session, is.pages, s.fetchPage, s.sink)
	}()

	coordinator := importer.NewCoordinator(is.session, s.sink, s.dialog, s.renderer)
	state, runErr := coordinator.Run(ctx, done)
	s.drop(ctx, handle.SessionID)
	return state, runErr
}

// fetchPage adapts the remote fetcher to the driver's page contract.
func (s *Service) fetchPage(ctx context.Context, page planner.Page) ([][]string, error) {
	sitePage, err := s.fetcher.GetSitesByStatement(ctx, page.Statement)
	if err != nil {
		return nil, err
	}
	return MapRows(sitePage.Results, s.config.Format)
}

// lookup finds a registered session.
func (s *Service) lookup(sessionID string) (*importSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	is, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return is, nil
}

// drop removes a session and releases its import slot.
func (s *Service) drop(ctx context.Context, sessionID string) {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if ok {
		s.releaseSlot(ctx)
	}
}

// releaseSlot frees one concurrent import slot, if gating is enabled.
func (s *Service) releaseSlot(ctx context.Context) {
	if s.guard == nil {
		return
	}
	if err := s.guard.ReleaseImportSlot(context.WithoutCancel(ctx), s.config.NetworkCode); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to release import slot")
	}
}
