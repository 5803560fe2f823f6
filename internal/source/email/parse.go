package email

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailpdf/internal/model"
)

// parseAttachments walks the MIME tree of a raw RFC 5322 message and
// returns its file attachments with base64 encoded content. Inline parts
// that carry a filename and are not text bodies count as attachments too.
func parseAttachments(raw []byte) ([]model.Attachment, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	var attachments []model.Attachment
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return attachments, fmt.Errorf("reading message part: %w", err)
		}
		if part == nil {
			continue
		}

		var name, contentType string
		switch h := part.Header.(type) {
		case *mail.AttachmentHeader:
			name, _ = h.Filename()
			contentType, _, _ = h.ContentType()
		case *mail.InlineHeader:
			var params map[string]string
			contentType, params, _ = h.ContentType()
			if strings.HasPrefix(strings.ToLower(contentType), "text/") {
				continue
			}
			_, dispParams, _ := h.ContentDisposition()
			name = dispParams["filename"]
			if name == "" {
				name = params["name"]
			}
			if name == "" {
				continue
			}
		default:
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			return attachments, fmt.Errorf("reading attachment %q: %w", name, err)
		}

		attachments = append(attachments, model.Attachment{
			Name:         name,
			ContentType:  contentType,
			ContentBytes: base64.StdEncoding.EncodeToString(body),
			Kind:         model.AttachmentKindFile,
		})
	}

	return attachments, nil
}
