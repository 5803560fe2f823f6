package model

import (
	"mime"
	"strings"
	"time"
)

// AttachmentKind discriminates file attachments from the other kinds a
// mailbox can report (attached messages, cloud links).
type AttachmentKind string

const (
	AttachmentKindFile      AttachmentKind = "file"
	AttachmentKindItem      AttachmentKind = "item"
	AttachmentKindReference AttachmentKind = "reference"
	AttachmentKindUnknown   AttachmentKind = "unknown"
)

// PDFContentType is the media type a file attachment must have to be
// retrieved.
const PDFContentType = "application/pdf"

// Message is one mailbox item as seen by the poller.
type Message struct {
	// ID is the provider's identifier for the message.
	ID string `json:"id"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// IsRead is the read-state reported by the provider.
	IsRead bool `json:"is_read"`
}

// Attachment is one attachment of a Message.
type Attachment struct {
	// Name is the filename reported by the provider. It is not guaranteed
	// to be unique or safe and is used verbatim.
	Name string `json:"name"`

	// ContentType is the reported MIME type.
	ContentType string `json:"content_type"`

	// ContentBytes is the base64 encoded payload.
	ContentBytes string `json:"content_bytes"`

	// Kind is the attachment discriminator.
	Kind AttachmentKind `json:"kind"`
}

// IsPDF reports whether the attachment's media type is application/pdf.
// Parameters and letter case are ignored.
func (a Attachment) IsPDF() bool {
	mediaType, _, err := mime.ParseMediaType(a.ContentType)
	if err != nil {
		mediaType = strings.TrimSpace(a.ContentType)
	}
	return strings.EqualFold(mediaType, PDFContentType)
}

// Qualifies reports whether the attachment is a file attachment with PDF
// content and therefore has to be written to the output.
func (a Attachment) Qualifies() bool {
	return a.Kind == AttachmentKindFile && a.IsPDF()
}

// Download records one attachment written to the output.
type Download struct {
	ID             string     `json:"id" db:"id"`
	MessageID      string     `json:"message_id" db:"message_id"`
	AttachmentName string     `json:"attachment_name" db:"attachment_name"`
	Path           string     `json:"path" db:"path"`
	Size           int64      `json:"size" db:"size"`
	SHA256         string     `json:"sha256" db:"sha256"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	MarkedReadAt   *time.Time `json:"marked_read_at,omitempty" db:"marked_read_at"`
}
