package store

import (
	"context"
	"time"

	"github.com/nhle/mailpdf/internal/model"
)

// DownloadFilter controls filtering and pagination for download queries.
type DownloadFilter struct {
	MessageID string // only downloads of this message; empty means all
	Limit     int
}

// Ledger records which attachments were written and when their message
// was marked read.
type Ledger interface {
	// RecordDownload inserts d and reports whether the same attachment of
	// the same message had been recorded before.
	RecordDownload(ctx context.Context, d model.Download) (bool, error)

	// MarkMessageRead stamps every download of messageID that has no
	// marked_read_at yet.
	MarkMessageRead(ctx context.Context, messageID string, at time.Time) error

	// ListDownloads returns downloads, newest first.
	ListDownloads(ctx context.Context, filter DownloadFilter) ([]model.Download, error)
}
