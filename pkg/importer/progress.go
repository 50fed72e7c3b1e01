package importer

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FormatElapsed renders whole seconds as minutes:seconds with the seconds
// zero-padded to two digits, e.g. 65 -> "1:05".
func FormatElapsed(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Renderer receives progress and error updates for display.
type Renderer interface {
	RenderProgress(snap Snapshot)
	RenderError(message string)
}

// LogRenderer writes progress updates to the structured log. It is the
// default renderer for the server-driven import variant.
type LogRenderer struct {
	logger zerolog.Logger
}

// NewLogRenderer creates a renderer logging under the given component name.
func NewLogRenderer() *LogRenderer {
	return &LogRenderer{
		logger: log.With().Str("component", "import-progress").Logger(),
	}
}

// RenderProgress implements Renderer.
func (r *LogRenderer) RenderProgress(snap Snapshot) {
	r.logger.Info().
		Str("session_id", snap.SessionID).
		Str("elapsed", FormatElapsed(snap.ElapsedSeconds)).
		Float64("progress_pct", snap.Percent).
		Int("retrieved", snap.Retrieved).
		Int("total", snap.Total).
		Int("in_flight", snap.InFlight).
		Msg("Import progress")
}

// RenderError implements Renderer. The total-results display is blanked so
// the user never sees a stale figure next to the failure.
func (r *LogRenderer) RenderError(message string) {
	r.logger.Error().
		Str("total", "").
		Str("detail", message).
		Msg("Import failed")
}
