package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis for testing, skipping when none
// is available. Integration tests run the same flows against a containerized
// instance.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestSaveAndLoadSettings(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, 0)
	ctx := context.Background()

	saved := UserSettings{
		NetworkCode: "1234",
		Format:      "detailed",
		PageSize:    50,
	}
	if err := store.SaveSettings(ctx, "user-1", saved); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	loaded, err := store.LoadSettings(ctx, "user-1")
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if loaded.NetworkCode != "1234" || loaded.Format != "detailed" || loaded.PageSize != 50 {
		t.Errorf("LoadSettings() = %+v, want saved values back", loaded)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be stamped on save")
	}
}

func TestLoadSettingsNotFound(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, 0)

	_, err := store.LoadSettings(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadSettings() error = %v, want ErrNotFound", err)
	}
}

func TestSettingsOverwrite(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, 0)
	ctx := context.Background()

	if err := store.SaveSettings(ctx, "user-1", UserSettings{NetworkCode: "1234", Format: "summary"}); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	if err := store.SaveSettings(ctx, "user-1", UserSettings{NetworkCode: "5678", Format: "detailed"}); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	loaded, err := store.LoadSettings(ctx, "user-1")
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if loaded.NetworkCode != "5678" || loaded.Format != "detailed" {
		t.Errorf("LoadSettings() = %+v, want the second save", loaded)
	}
}

func TestSaveAndLoadDirectory(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, time.Minute)
	ctx := context.Background()

	publishers := []Publisher{
		{ChildNetworkCode: "111", Name: "Alpha News", Approved: true},
		{ChildNetworkCode: "222", Name: "Beta Media", Approved: false},
	}
	if err := store.SaveDirectory(ctx, "1234", publishers); err != nil {
		t.Fatalf("SaveDirectory() error = %v", err)
	}

	loaded, err := store.LoadDirectory(ctx, "1234")
	if err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("publishers = %d, want 2", len(loaded))
	}
	if loaded[0].ChildNetworkCode != "111" || !loaded[0].Approved {
		t.Errorf("first publisher = %+v", loaded[0])
	}
}

func TestLoadDirectoryMiss(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, time.Minute)

	_, err := store.LoadDirectory(context.Background(), "9999")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadDirectory() error = %v, want ErrNotFound", err)
	}
}

func TestDirectoryExpiry(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, 50*time.Millisecond)
	ctx := context.Background()

	if err := store.SaveDirectory(ctx, "1234", []Publisher{{ChildNetworkCode: "111"}}); err != nil {
		t.Fatalf("SaveDirectory() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	_, err := store.LoadDirectory(ctx, "1234")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadDirectory() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestNewStorePanicsWithoutRedis(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewStore should panic with nil redis client")
		}
	}()
	NewStore(nil, time.Minute)
}
