package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nhle/mailpdf/internal/auth"
	"github.com/nhle/mailpdf/internal/logger"
	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/internal/output"
	"github.com/nhle/mailpdf/internal/source"
)

func newTestPoller(t *testing.T, tokens auth.TokenSource, mb *fakeMailbox, workers int) (*Poller, string) {
	t.Helper()
	dir := t.TempDir()
	p := New(tokens, mb,
		NewProcessor(mb, output.NewDirSink(dir), nil, logger.NewNop()),
		Config{Subject: "beneficios", Workers: workers, Interval: time.Minute},
		logger.NewNop())
	return p, dir
}

func TestRunCycle_NoMessages(t *testing.T) {
	mb := &fakeMailbox{}
	p, dir := newTestPoller(t, &fakeTokens{token: "tok"}, mb, 1)

	result, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Listed)
	assert.Empty(t, mb.marked())
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "ok", result.Outcome())

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestRunCycle_SingleInvoice(t *testing.T) {
	mb := &fakeMailbox{
		messages:    []model.Message{{ID: "m1", Subject: "beneficios"}},
		attachments: map[string][]model.Attachment{"m1": {pdf("invoice.pdf", "JVBERi0x")}},
	}
	p, dir := newTestPoller(t, &fakeTokens{token: "tok"}, mb, 1)

	result, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, []string{"m1"}, mb.marked())

	got, err := os.ReadFile(filepath.Join(dir, "invoice.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1", string(got))
	assert.Equal(t, SyncIdle, p.Status().State)
}

func TestRunCycle_MarkReadFailureContinues(t *testing.T) {
	mb := &fakeMailbox{
		messages: []model.Message{{ID: "m1"}, {ID: "m2"}},
		attachments: map[string][]model.Attachment{
			"m1": {pdf("one.pdf", "JVBERi0x")},
			"m2": {pdf("two.pdf", "JVBERi0y")},
		},
		markReadErr: errors.New("service unavailable"),
	}
	p, dir := newTestPoller(t, &fakeTokens{token: "tok"}, mb, 1)

	result, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.MarkReadFailures)
	assert.Equal(t, "partial", result.Outcome())
	assert.FileExists(t, filepath.Join(dir, "one.pdf"))
	assert.FileExists(t, filepath.Join(dir, "two.pdf"))
}

func TestRunCycle_IsolatesFailingMessages(t *testing.T) {
	mb := &fakeMailbox{
		messages: []model.Message{{ID: "bad"}, {ID: "boom"}, {ID: "empty"}, {ID: "good"}},
		attachments: map[string][]model.Attachment{
			"good": {pdf("good.pdf", "JVBERi0x")},
		},
		fetchErr: map[string]error{"bad": &source.TransportError{Method: "GET", Path: "/x", StatusCode: 500}},
		panicOn:  "boom",
	}
	p, dir := newTestPoller(t, &fakeTokens{token: "tok"}, mb, 1)

	result, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Listed)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Processed)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, []string{"good"}, mb.marked())
	assert.FileExists(t, filepath.Join(dir, "good.pdf"))
}

func TestRunCycle_ConcurrentWorkers(t *testing.T) {
	mb := &fakeMailbox{attachments: map[string][]model.Attachment{}}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		mb.messages = append(mb.messages, model.Message{ID: id})
		mb.attachments[id] = []model.Attachment{pdf(id+".pdf", "JVBERi0x")}
	}
	p, _ := newTestPoller(t, &fakeTokens{token: "tok"}, mb, 3)

	result, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Processed)
	assert.Len(t, result.Files, 5)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, mb.marked())
}

func TestRunCycle_AuthenticationFailure(t *testing.T) {
	authErr := &auth.AuthenticationError{Stage: "device flow", Err: errors.New("missing access token")}
	mb := &fakeMailbox{}
	p, _ := newTestPoller(t, &fakeTokens{err: authErr}, mb, 1)

	result, err := p.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, auth.IsAuthenticationError(err))
	assert.Equal(t, "failed", result.Outcome())
	assert.Zero(t, mb.listCalls)
	assert.Equal(t, SyncError, p.Status().State)
}

func TestRunCycle_ListingFailure(t *testing.T) {
	mb := &fakeMailbox{listErr: &source.TransportError{Method: "GET", Path: "/me", StatusCode: 500}}
	p, _ := newTestPoller(t, &fakeTokens{token: "tok"}, mb, 1)

	_, err := p.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, source.IsTransportError(err))
}

func TestRunCycle_WriteFailureIsRetriedNextCycle(t *testing.T) {
	mb := &fakeMailbox{
		messages:    []model.Message{{ID: "m1"}},
		attachments: map[string][]model.Attachment{"m1": {pdf("a.pdf", "JVBERi0x")}},
	}
	dir := t.TempDir()
	blocked := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(blocked, []byte("file, not dir"), 0o644))

	p := New(&fakeTokens{token: "tok"}, mb,
		NewProcessor(mb, output.NewDirSink(blocked), nil, logger.NewNop()),
		Config{Subject: "beneficios"}, logger.NewNop())

	result, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, model.IsPersistenceError(result.Errors[0]))
	assert.Empty(t, mb.marked())

	require.NoError(t, os.Remove(blocked))
	result, err = p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, []string{"m1"}, mb.marked())
}

func TestRun_LogsAuthFailureAndKeepsLooping(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	authErr := &auth.AuthenticationError{Stage: "device flow", Err: errors.New("missing access token")}
	tokens := &fakeTokens{err: authErr}
	mb := &fakeMailbox{}

	p := New(tokens, mb, NewProcessor(mb, output.NewDirSink(t.TempDir()), nil, logger.NewNop()),
		Config{Subject: "beneficios", Interval: time.Second}, logger.New(zap.New(core)))

	ctx, cancel := context.WithCancel(context.Background())
	sleeps := 0
	p.sleep = func(context.Context, time.Duration) error {
		sleeps++
		if sleeps == 2 {
			cancel()
			return context.Canceled
		}
		return nil
	}

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 2, tokens.calls)
	assert.Equal(t, 2, logs.FilterMessage("authentication failed, will retry next cycle").Len())
}

func TestRun_StopsWhenCancelled(t *testing.T) {
	mb := &fakeMailbox{}
	p, _ := newTestPoller(t, &fakeTokens{token: "tok"}, mb, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))
	assert.Zero(t, mb.listCalls)
}

func TestRunScheduled_RejectsBadSpec(t *testing.T) {
	p, _ := newTestPoller(t, &fakeTokens{token: "tok"}, &fakeMailbox{}, 1)

	err := p.RunScheduled(context.Background(), "not a cron spec")
	assert.Error(t, err)
}

func TestRunScheduled_RunsCycles(t *testing.T) {
	mb := &fakeMailbox{}
	p, _ := newTestPoller(t, &fakeTokens{token: "tok"}, mb, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.RunScheduled(ctx, "* * * * * *"))
	assert.GreaterOrEqual(t, p.Status().Cycles, 1)
}
