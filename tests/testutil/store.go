package testutil

import (
	"context"
	"testing"

	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/internal/store"
)

// NewTestLedger opens an in-memory download ledger with the schema
// migrated. It is closed when the test ends.
func NewTestLedger(t *testing.T) *store.SQLiteStore {
	t.Helper()
	return OpenTestLedger(t, ":memory:")
}

// OpenTestLedger opens the download ledger at path, for tests that hand
// the file to another component afterwards.
func OpenTestLedger(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("opening test ledger: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test ledger: %v", err)
		}
	})

	return s
}

// SeedDownloads records downloads in order. Rows without a CreatedAt get
// the ledger's clock.
func SeedDownloads(t *testing.T, l store.Ledger, downloads ...model.Download) {
	t.Helper()

	for _, d := range downloads {
		if _, err := l.RecordDownload(context.Background(), d); err != nil {
			t.Fatalf("seeding download %s/%s: %v", d.MessageID, d.AttachmentName, err)
		}
	}
}
