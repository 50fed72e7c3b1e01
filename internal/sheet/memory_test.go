package sheet

import (
	"context"
	"errors"
	"testing"
)

func TestCreateAndFinalize(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Create(ctx, "sites-import-abc"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ws, ok := m.Sheet("sites-import-abc")
	if !ok {
		t.Fatal("worksheet missing after create")
	}
	if !ws.Hidden {
		t.Error("new worksheet should be hidden")
	}

	if err := m.Create(ctx, "sites-import-abc"); !errors.Is(err, ErrDestinationExists) {
		t.Errorf("duplicate Create() error = %v, want ErrDestinationExists", err)
	}

	if err := m.Finalize(ctx, "sites-import-abc"); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	ws, _ = m.Sheet("sites-import-abc")
	if ws.Hidden || !ws.Finalized {
		t.Errorf("finalized worksheet = %+v, want revealed and finalized", ws)
	}
}

func TestWriteRowsOutOfOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Create(ctx, "dest"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Second page lands before the first
	if err := m.WriteRows(ctx, "dest", [][]string{{"c"}, {"d"}}, 2); err != nil {
		t.Fatalf("WriteRows(offset 2) error = %v", err)
	}
	if err := m.WriteRows(ctx, "dest", [][]string{{"a"}, {"b"}}, 0); err != nil {
		t.Fatalf("WriteRows(offset 0) error = %v", err)
	}

	ws, _ := m.Sheet("dest")
	want := []string{"a", "b", "c", "d"}
	if len(ws.Rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(ws.Rows), len(want))
	}
	for i, cell := range want {
		if ws.Rows[i][0] != cell {
			t.Errorf("row %d = %q, want %q", i, ws.Rows[i][0], cell)
		}
	}
}

func TestDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Create(ctx, "dest"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := m.Delete(ctx, "dest"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestMissingDestination(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.WriteRows(ctx, "ghost", [][]string{{"a"}}, 0); !errors.Is(err, ErrDestinationNotFound) {
		t.Errorf("WriteRows() error = %v, want ErrDestinationNotFound", err)
	}
	if err := m.Finalize(ctx, "ghost"); !errors.Is(err, ErrDestinationNotFound) {
		t.Errorf("Finalize() error = %v, want ErrDestinationNotFound", err)
	}
	if err := m.Delete(ctx, "ghost"); !errors.Is(err, ErrDestinationNotFound) {
		t.Errorf("Delete() error = %v, want ErrDestinationNotFound", err)
	}
}
