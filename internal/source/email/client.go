package email

import (
	"context"
	"fmt"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/internal/source"
)

// DefaultPageSize caps the number of messages listed per cycle.
const DefaultPageSize = 50

// Dialer opens a client connection to addr.
type Dialer func(addr string, options *imapclient.Options) (*imapclient.Client, error)

// IMAPMailbox implements source.Mailbox over IMAP4rev1/rev2 using XOAUTH2.
// Every operation opens its own connection; message IDs are UIDs of the
// selected folder.
type IMAPMailbox struct {
	addr     string
	username string
	folder   string
	pageSize int
	dial     Dialer
	options  *imapclient.Options
}

// IMAPOption configures an IMAPMailbox.
type IMAPOption func(*IMAPMailbox)

// WithDialer replaces the implicit-TLS dialer.
func WithDialer(dial Dialer) IMAPOption {
	return func(m *IMAPMailbox) { m.dial = dial }
}

// WithStartTLS connects in plaintext and upgrades with STARTTLS before
// authenticating.
func WithStartTLS() IMAPOption {
	return WithDialer(imapclient.DialStartTLS)
}

// WithClientOptions sets the client options, e.g. a custom TLS config.
func WithClientOptions(options *imapclient.Options) IMAPOption {
	return func(m *IMAPMailbox) { m.options = options }
}

// NewIMAPMailbox creates an IMAP mailbox for username at addr (host:port).
// Connections use implicit TLS unless an option says otherwise.
func NewIMAPMailbox(addr, username, folder string, pageSize int, opts ...IMAPOption) *IMAPMailbox {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if folder == "" {
		folder = "INBOX"
	}
	m := &IMAPMailbox{
		addr:     addr,
		username: username,
		folder:   folder,
		pageSize: pageSize,
		dial:     imapclient.DialTLS,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// connect dials the server, authenticates with token and selects the
// folder. The connection is torn down when ctx is cancelled.
func (m *IMAPMailbox) connect(ctx context.Context, token string) (*imapclient.Client, func(), error) {
	client, err := m.dial(m.addr, m.options)
	if err != nil {
		return nil, nil, &source.TransportError{Method: "CONNECT", Path: m.addr, Err: err}
	}

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	release := func() {
		stop()
		_ = client.Logout().Wait()
		_ = client.Close()
	}

	if err := client.Authenticate(newXOAuth2Client(m.username, token)); err != nil {
		release()
		return nil, nil, &source.TransportError{Method: "AUTHENTICATE", Path: m.addr, Err: err}
	}

	if _, err := client.Select(m.folder, nil).Wait(); err != nil {
		release()
		return nil, nil, &source.TransportError{Method: "SELECT", Path: m.folder, Err: err}
	}

	return client, release, nil
}

// ListUnread returns unseen messages whose subject equals subject. The
// server-side SUBJECT search is a substring match, so envelopes are
// compared exactly before being returned.
func (m *IMAPMailbox) ListUnread(ctx context.Context, token, subject string) ([]model.Message, error) {
	client, release, err := m.connect(ctx, token)
	if err != nil {
		return nil, err
	}
	defer release()

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "Subject", Value: subject},
		},
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &source.TransportError{Method: "UID SEARCH", Path: m.folder, Err: err}
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	bufs, err := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	}).Collect()
	if err != nil {
		return nil, &source.TransportError{Method: "UID FETCH", Path: m.folder, Err: err}
	}

	var messages []model.Message
	for _, buf := range bufs {
		if buf.Envelope == nil || buf.Envelope.Subject != subject {
			continue
		}
		messages = append(messages, model.Message{
			ID:      strconv.FormatUint(uint64(buf.UID), 10),
			Subject: buf.Envelope.Subject,
		})
		if len(messages) == m.pageSize {
			break
		}
	}
	return messages, nil
}

// FetchAttachments downloads the full message without setting \Seen and
// extracts its attachments.
func (m *IMAPMailbox) FetchAttachments(ctx context.Context, token string, msg model.Message) ([]model.Attachment, error) {
	uid, err := parseUID(msg.ID)
	if err != nil {
		return nil, err
	}

	client, release, err := m.connect(ctx, token)
	if err != nil {
		return nil, err
	}
	defer release()

	bodySection := &imap.FetchItemBodySection{Peek: true}
	bufs, err := client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}).Collect()
	if err != nil {
		return nil, &source.TransportError{Method: "UID FETCH", Path: msg.ID, Err: err}
	}
	if len(bufs) == 0 {
		return nil, &source.TransportError{Method: "UID FETCH", Path: msg.ID, Err: fmt.Errorf("message UID %d not found", uid)}
	}

	raw := bufs[0].FindBodySection(bodySection)
	if raw == nil {
		return nil, nil
	}
	return parseAttachments(raw)
}

// MarkRead adds the \Seen flag to msg.
func (m *IMAPMailbox) MarkRead(ctx context.Context, token string, msg model.Message) error {
	uid, err := parseUID(msg.ID)
	if err != nil {
		return &source.MarkReadError{MessageID: msg.ID, Err: err}
	}

	client, release, err := m.connect(ctx, token)
	if err != nil {
		return &source.MarkReadError{MessageID: msg.ID, Err: err}
	}
	defer release()

	err = client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil).Close()
	if err != nil {
		return &source.MarkReadError{MessageID: msg.ID, Err: err}
	}
	return nil
}

func parseUID(id string) (imap.UID, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid message UID %q", id)
	}
	return imap.UID(n), nil
}

var _ source.Mailbox = (*IMAPMailbox)(nil)
