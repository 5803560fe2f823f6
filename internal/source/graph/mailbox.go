package graph

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/internal/source"
)

// DefaultPageSize is the number of messages requested per listing.
const DefaultPageSize = 50

// Mailbox implements source.Mailbox on top of the Graph mail API for the
// signed-in user.
type Mailbox struct {
	client   *Client
	folder   string
	pageSize int
}

// NewMailbox creates a Graph mailbox polling folder (e.g. "Inbox").
func NewMailbox(client *Client, folder string, pageSize int) *Mailbox {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if folder == "" {
		folder = "Inbox"
	}
	return &Mailbox{client: client, folder: folder, pageSize: pageSize}
}

// ListUnread lists the first page of unread messages whose subject equals
// subject. Following @odata.nextLink is deliberately not done.
func (m *Mailbox) ListUnread(ctx context.Context, token, subject string) ([]model.Message, error) {
	query := url.Values{}
	query.Set("$filter", unreadSubjectFilter(subject))
	query.Set("$select", "id,subject")
	query.Set("$top", strconv.Itoa(m.pageSize))

	path := "/me/mailFolders/" + url.PathEscape(m.folder) + "/messages"

	var resp MessageList
	if err := m.client.Get(ctx, token, path, query, &resp); err != nil {
		return nil, fmt.Errorf("listing unread messages: %w", err)
	}

	messages := make([]model.Message, 0, len(resp.Value))
	for _, msg := range resp.Value {
		messages = append(messages, model.Message{
			ID:      msg.ID,
			Subject: msg.Subject,
			IsRead:  false,
		})
	}
	return messages, nil
}

// FetchAttachments returns every attachment of msg.
func (m *Mailbox) FetchAttachments(ctx context.Context, token string, msg model.Message) ([]model.Attachment, error) {
	path := "/me/messages/" + url.PathEscape(msg.ID) + "/attachments"

	var resp AttachmentList
	if err := m.client.Get(ctx, token, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching attachments of %s: %w", msg.ID, err)
	}

	attachments := make([]model.Attachment, 0, len(resp.Value))
	for _, a := range resp.Value {
		attachments = append(attachments, model.Attachment{
			Name:         a.Name,
			ContentType:  a.ContentType,
			ContentBytes: a.ContentBytes,
			Kind:         attachmentKind(a.ODataType),
		})
	}
	return attachments, nil
}

// MarkRead sets isRead on msg.
func (m *Mailbox) MarkRead(ctx context.Context, token string, msg model.Message) error {
	path := "/me/messages/" + url.PathEscape(msg.ID)
	if err := m.client.Patch(ctx, token, path, messageUpdate{IsRead: true}, nil); err != nil {
		return &source.MarkReadError{MessageID: msg.ID, Err: err}
	}
	return nil
}

// unreadSubjectFilter builds the OData filter; single quotes inside the
// subject are doubled.
func unreadSubjectFilter(subject string) string {
	escaped := strings.ReplaceAll(subject, "'", "''")
	return fmt.Sprintf("isRead eq false and subject eq '%s'", escaped)
}

func attachmentKind(odataType string) model.AttachmentKind {
	switch odataType {
	case odataFileAttachment:
		return model.AttachmentKindFile
	case odataItemAttachment:
		return model.AttachmentKindItem
	case odataReferenceAttachment:
		return model.AttachmentKindReference
	default:
		return model.AttachmentKindUnknown
	}
}

var _ source.Mailbox = (*Mailbox)(nil)
