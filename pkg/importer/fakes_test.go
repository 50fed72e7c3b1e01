package importer

import (
	"context"
	"sync"
)

// fakeSink records destination operations for assertions.
type fakeSink struct {
	mu          sync.Mutex
	created     []string
	writes      map[int][][]string // offset -> rows
	finalized   int
	deleted     int
	writeErr    error
	finalizeErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{writes: make(map[int][][]string)}
}

func (f *fakeSink) Create(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, name)
	return nil
}

func (f *fakeSink) WriteRows(_ context.Context, _ string, rows [][]string, offset int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes[offset] = rows
	return nil
}

func (f *fakeSink) Finalize(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalized++
	return nil
}

func (f *fakeSink) Delete(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted++
	return nil
}

func (f *fakeSink) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeSink) rowsAt(offset int) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[offset]
}

func (f *fakeSink) counts() (finalized, deleted int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalized, f.deleted
}

// fakeDialog records Close calls.
type fakeDialog struct {
	mu      sync.Mutex
	confirm bool
	closed  int
}

func (f *fakeDialog) Confirm(_, _ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirm
}

func (f *fakeDialog) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeDialog) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeRenderer records rendered progress and errors.
type fakeRenderer struct {
	mu       sync.Mutex
	progress []Snapshot
	errors   []string
}

func (f *fakeRenderer) RenderProgress(snap Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, snap)
}

func (f *fakeRenderer) RenderError(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, message)
}

func (f *fakeRenderer) errorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errors)
}
