package importer

import "context"

// Sink is the import destination, e.g. a worksheet in the host spreadsheet.
// WriteRows is offset-addressed so pages may land out of completion order.
type Sink interface {
	// Create creates the destination under a temporary name.
	Create(ctx context.Context, name string) error

	// WriteRows writes rows starting at the given record offset.
	WriteRows(ctx context.Context, name string, rows [][]string, offset int) error

	// Finalize renames/reveals the destination after a successful import.
	Finalize(ctx context.Context, name string) error

	// Delete removes the destination and any partially written rows.
	Delete(ctx context.Context, name string) error
}

// Dialog is the interactive host surface that confirmed the import.
type Dialog interface {
	// Confirm asks the user to approve the import.
	Confirm(title, message string) bool

	// Close dismisses the dialog after a successful import. It is never
	// called on failure: the user must acknowledge the error.
	Close()
}
