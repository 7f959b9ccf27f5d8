package labelstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// TestPostgresBackend runs against a real database. Set
// ORTHOLABEL_TEST_POSTGRES_URL to enable it.
func TestPostgresBackend(t *testing.T) {
	url := os.Getenv("ORTHOLABEL_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("ORTHOLABEL_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()

	backend, err := NewPostgresBackend(ctx, url)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer backend.Close()
	if err := backend.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := initSchema(ctx, backend.pool); err != nil {
		t.Fatalf("Schema init failed: %v", err)
	}

	store := New(backend, filepath.Join(t.TempDir(), "patches"), DefaultOptions())

	t.Run("concurrent distinct regions", func(t *testing.T) {
		const n = 16
		var wg sync.WaitGroup
		for i := 1; i <= n; i++ {
			wg.Add(1)
			go func(region int) {
				defer wg.Done()
				if _, err := store.SetLabel(ctx, SetRequest{ImageID: "pg", RegionID: region, Label: "field", Patch: testPatch()}); err != nil {
					t.Errorf("SetLabel %d failed: %v", region, err)
				}
			}(i)
		}
		wg.Wait()

		doc, err := store.Labels(ctx, "pg")
		if err != nil {
			t.Fatal(err)
		}
		if len(doc) != n {
			t.Errorf("Expected %d records, got %d", n, len(doc))
		}
	})

	t.Run("unlabel", func(t *testing.T) {
		if err := store.RemoveLabel(ctx, "pg", 1); err != nil {
			t.Fatal(err)
		}
		doc, _ := store.Labels(ctx, "pg")
		if _, ok := doc["1"]; ok {
			t.Error("Expected region 1 removed")
		}
	})

	t.Run("missing image", func(t *testing.T) {
		doc, err := store.Labels(ctx, "absent")
		if err != nil {
			t.Fatal(err)
		}
		if len(doc) != 0 {
			t.Errorf("Expected empty document, got %v", doc)
		}
	})
}
