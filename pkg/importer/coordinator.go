package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pubops/admanager-site-export/pkg/planner"
)

// Coordinator owns a session's terminal transitions and the once-per-second
// progress view. It is the only component that calls Finalize, Delete, and
// Close, so each runs exactly once per session.
type Coordinator struct {
	session  *Session
	sink     Sink
	dialog   Dialog
	renderer Renderer
	tick     time.Duration
	logger   zerolog.Logger
}

// NewCoordinator creates a coordinator for the session.
func NewCoordinator(session *Session, sink Sink, dialog Dialog, renderer Renderer) *Coordinator {
	return &Coordinator{
		session:  session,
		sink:     sink,
		dialog:   dialog,
		renderer: renderer,
		tick:     time.Second,
		logger:   log.With().Str("component", "import-coordinator").Str("session_id", session.ID).Logger(),
	}
}

// Run renders progress once per second until the driver reports its outcome
// on driverDone, then performs the finalize or cancel transition. It returns
// the session's terminal state and, for a cancelled session, the failure
// that caused it.
func (c *Coordinator) Run(ctx context.Context, driverDone <-chan error) (State, error) {
	if c.session.TotalResults <= 0 {
		// Planner policy rejects empty results before a session exists;
		// this guard keeps a mis-built session from fetching anything.
		return c.fail(ctx, planner.ErrNoResults), planner.ErrNoResults
	}
	if !c.session.Activate() {
		return c.session.State(), nil
	}

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, ok := c.session.Tick(); ok {
				c.renderer.RenderProgress(c.session.Snapshot())
			}
		case err := <-driverDone:
			if err != nil {
				return c.fail(ctx, err), err
			}
			return c.finish(ctx)
		case <-ctx.Done():
			return c.fail(ctx, ctx.Err()), ctx.Err()
		}
	}
}

// finish finalizes the destination and closes the dialog. A finalize failure
// routes to the same error path as a fetch failure.
func (c *Coordinator) finish(ctx context.Context) (State, error) {
	if err := c.sink.Finalize(ctx, c.session.Destination); err != nil {
		err = fmt.Errorf("finalize %s: %w", c.session.Destination, err)
		return c.fail(ctx, err), err
	}

	c.session.Finish()
	c.renderer.RenderProgress(c.session.Snapshot())
	c.logger.Info().
		Str("destination", c.session.Destination).
		Int("retrieved", c.session.Retrieved()).
		Msg("Import finished")

	c.dialog.Close()
	return StateFinished, nil
}

// fail cancels the session, renders the error, and removes the partially
// written destination. The dialog stays open for the user to acknowledge.
func (c *Coordinator) fail(ctx context.Context, cause error) State {
	if !c.session.Cancel() {
		// Already terminal; cleanup ran once
		return c.session.State()
	}

	c.renderer.RenderError(cause.Error())

	// Cleanup must run even when the failure was a context cancellation
	cleanupCtx := context.WithoutCancel(ctx)
	if err := c.sink.Delete(cleanupCtx, c.session.Destination); err != nil {
		c.logger.Error().
			Err(err).
			Str("destination", c.session.Destination).
			Msg("Destination cleanup failed")
	}

	c.logger.Warn().
		Err(cause).
		Str("destination", c.session.Destination).
		Msg("Import cancelled")

	return StateCancelled
}
