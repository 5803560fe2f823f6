package sync

import (
	"context"
	"errors"
	gosync "sync"

	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/internal/source"
)

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

type fakeMailbox struct {
	mu          gosync.Mutex
	messages    []model.Message
	listErr     error
	attachments map[string][]model.Attachment
	fetchErr    map[string]error
	panicOn     string
	markReadErr error
	markedRead  []string
	listCalls   int
}

func (f *fakeMailbox) ListUnread(_ context.Context, token, subject string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if token == "" {
		return nil, errors.New("no token")
	}
	return f.messages, f.listErr
}

func (f *fakeMailbox) FetchAttachments(_ context.Context, _ string, msg model.Message) ([]model.Attachment, error) {
	if msg.ID == f.panicOn {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[msg.ID]; err != nil {
		return nil, err
	}
	return f.attachments[msg.ID], nil
}

func (f *fakeMailbox) MarkRead(_ context.Context, _ string, msg model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedRead = append(f.markedRead, msg.ID)
	if f.markReadErr != nil {
		return &source.MarkReadError{MessageID: msg.ID, Err: f.markReadErr}
	}
	return nil
}

func (f *fakeMailbox) marked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.markedRead...)
}

func pdf(name, payload string) model.Attachment {
	return model.Attachment{
		Name:         name,
		ContentType:  model.PDFContentType,
		ContentBytes: payload,
		Kind:         model.AttachmentKindFile,
	}
}
