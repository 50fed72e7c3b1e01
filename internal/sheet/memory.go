// Package sheet provides an in-memory worksheet sink standing in for the
// host spreadsheet. Worksheets are created hidden under a temporary name,
// revealed on finalize, and removed on delete.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Errors returned by worksheet operations.
var (
	// ErrDestinationNotFound indicates an operation against a missing worksheet.
	ErrDestinationNotFound = errors.New("destination not found")

	// ErrDestinationExists indicates a create against an existing worksheet.
	ErrDestinationExists = errors.New("destination already exists")
)

// Worksheet is one import destination.
type Worksheet struct {
	Name      string
	Rows      [][]string
	Hidden    bool
	Finalized bool
}

// Memory is a thread-safe in-memory worksheet store implementing the
// importer.Sink interface.
type Memory struct {
	mu     sync.Mutex
	sheets map[string]*Worksheet
}

// NewMemory creates an empty worksheet store.
func NewMemory() *Memory {
	return &Memory{sheets: make(map[string]*Worksheet)}
}

// Create creates a hidden worksheet under the given temporary name.
func (m *Memory) Create(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[name]; ok {
		return fmt.Errorf("%w: %s", ErrDestinationExists, name)
	}
	m.sheets[name] = &Worksheet{Name: name, Hidden: true}
	return nil
}

// WriteRows writes rows starting at the given record offset, growing the
// worksheet as needed. Pages may land in any order; each lands at its own
// pre-computed offset.
func (m *Memory) WriteRows(_ context.Context, name string, rows [][]string, offset int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.sheets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDestinationNotFound, name)
	}

	if need := offset + len(rows); need > len(ws.Rows) {
		grown := make([][]string, need)
		copy(grown, ws.Rows)
		ws.Rows = grown
	}
	for i, row := range rows {
		ws.Rows[offset+i] = row
	}
	return nil
}

// Finalize reveals the worksheet after a successful import.
func (m *Memory) Finalize(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.sheets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDestinationNotFound, name)
	}
	ws.Hidden = false
	ws.Finalized = true
	return nil
}

// Delete removes the worksheet and any partially written rows.
func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[name]; !ok {
		return fmt.Errorf("%w: %s", ErrDestinationNotFound, name)
	}
	delete(m.sheets, name)
	return nil
}

// Sheet returns a copy of the named worksheet for inspection.
func (m *Memory) Sheet(name string) (Worksheet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.sheets[name]
	if !ok {
		return Worksheet{}, false
	}
	rows := make([][]string, len(ws.Rows))
	copy(rows, ws.Rows)
	return Worksheet{Name: ws.Name, Rows: rows, Hidden: ws.Hidden, Finalized: ws.Finalized}, true
}

// Len returns the number of worksheets currently stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sheets)
}
