package graph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/internal/source"
)

func newTestMailbox(t *testing.T, handler http.HandlerFunc) *Mailbox {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL + "/v1.0")
	client.sleep = func(context.Context, time.Duration) error { return nil }
	return NewMailbox(client, "Inbox", 50)
}

func TestListUnread_RequestShape(t *testing.T) {
	mb := newTestMailbox(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1.0/me/mailFolders/Inbox/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotContains(t, r.URL.RawQuery, "+")

		q := r.URL.Query()
		assert.Equal(t, "isRead eq false and subject eq 'beneficios'", q.Get("$filter"))
		assert.Equal(t, "id,subject", q.Get("$select"))
		assert.Equal(t, "50", q.Get("$top"))

		_, _ = io.WriteString(w, `{"value":[{"id":"m1","subject":"beneficios"},{"id":"m2","subject":"beneficios"}],"@odata.nextLink":"https://next"}`)
	})

	msgs, err := mb.ListUnread(context.Background(), "tok", "beneficios")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "beneficios", msgs[1].Subject)
	assert.False(t, msgs[0].IsRead)
}

func TestUnreadSubjectFilter_EscapesQuotes(t *testing.T) {
	assert.Equal(t,
		"isRead eq false and subject eq 'it''s here'",
		unreadSubjectFilter("it's here"))
}

func TestListUnread_ErrorStatus(t *testing.T) {
	mb := newTestMailbox(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"code":"InvalidAuthenticationToken","message":"expired"}}`)
	})

	_, err := mb.ListUnread(context.Background(), "tok", "beneficios")
	require.Error(t, err)
	assert.True(t, source.IsTransportError(err))

	var tErr *source.TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, http.StatusUnauthorized, tErr.StatusCode)
	assert.Equal(t, "InvalidAuthenticationToken: expired", tErr.Body)
}

func TestClient_RetriesThrottledRequests(t *testing.T) {
	var calls atomic.Int32
	mb := newTestMailbox(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"value":[]}`)
	})

	msgs, err := mb.ListUnread(context.Background(), "tok", "beneficios")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	mb := newTestMailbox(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := mb.ListUnread(context.Background(), "tok", "beneficios")
	require.Error(t, err)
	assert.True(t, source.IsTransportError(err))
	assert.EqualValues(t, 4, calls.Load())
}

func TestFetchAttachments_MapsKinds(t *testing.T) {
	mb := newTestMailbox(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.0/me/messages/m1/attachments", r.URL.Path)
		_, _ = io.WriteString(w, `{"value":[
			{"@odata.type":"#microsoft.graph.fileAttachment","name":"a.pdf","contentType":"application/pdf","contentBytes":"JVBERi0="},
			{"@odata.type":"#microsoft.graph.itemAttachment","name":"fwd","contentType":"message/rfc822"},
			{"@odata.type":"#microsoft.graph.referenceAttachment","name":"link.pdf","contentType":"application/pdf"}
		]}`)
	})

	atts, err := mb.FetchAttachments(context.Background(), "tok", model.Message{ID: "m1"})
	require.NoError(t, err)
	require.Len(t, atts, 3)

	assert.Equal(t, model.AttachmentKindFile, atts[0].Kind)
	assert.Equal(t, "JVBERi0=", atts[0].ContentBytes)
	assert.True(t, atts[0].Qualifies())
	assert.Equal(t, model.AttachmentKindItem, atts[1].Kind)
	assert.Equal(t, model.AttachmentKindReference, atts[2].Kind)
	assert.False(t, atts[2].Qualifies())
}

func TestMarkRead(t *testing.T) {
	mb := newTestMailbox(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1.0/me/messages/m1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]bool{"isRead": true}, body)

		_, _ = io.WriteString(w, `{"id":"m1","isRead":true}`)
	})

	require.NoError(t, mb.MarkRead(context.Background(), "tok", model.Message{ID: "m1"}))
}

func TestMarkRead_FailureIsMarkReadError(t *testing.T) {
	mb := newTestMailbox(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	err := mb.MarkRead(context.Background(), "tok", model.Message{ID: "m1"})
	require.Error(t, err)
	assert.True(t, source.IsMarkReadError(err))
	assert.True(t, source.IsTransportError(err))
}
