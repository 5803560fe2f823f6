package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mailpdf/internal/model"
)

// TransportError reports a non-success response (or no response at all)
// from the remote mailbox API. Callers treat it as retryable on a later
// cycle.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport error on %s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d on %s %s", e.StatusCode, e.Method, e.Path)
	}
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err (or any error in its chain) is a
// TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// MarkReadError is the non-fatal failure to flag a processed message as
// read. The message may be processed again on the next cycle.
type MarkReadError struct {
	MessageID string
	Err       error
}

func (e *MarkReadError) Error() string {
	return fmt.Sprintf("marking message %s as read: %v", e.MessageID, e.Err)
}

func (e *MarkReadError) Unwrap() error {
	return e.Err
}

// IsMarkReadError reports whether err (or any error in its chain) is a
// MarkReadError.
func IsMarkReadError(err error) bool {
	var mErr *MarkReadError
	return errors.As(err, &mErr)
}

// Mailbox defines the contract every mailbox provider must implement.
type Mailbox interface {
	// ListUnread returns the unread messages whose subject equals subject.
	// Only the first page of results is returned.
	ListUnread(ctx context.Context, token, subject string) ([]model.Message, error)

	// FetchAttachments returns all attachments of msg.
	FetchAttachments(ctx context.Context, token string, msg model.Message) ([]model.Attachment, error)

	// MarkRead sets msg's read-state. Failures are *MarkReadError values.
	MarkRead(ctx context.Context, token string, msg model.Message) error
}
