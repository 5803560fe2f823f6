package sync

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mailpdf/internal/logger"
	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/internal/output"
	"github.com/nhle/mailpdf/internal/source"
	"github.com/nhle/mailpdf/internal/store"
)

// markReadTimeout bounds the read-state update issued after the writes.
const markReadTimeout = 15 * time.Second

// MessageOutcome describes what processing did to one message.
type MessageOutcome struct {
	// NoAttachments is set when the message had no attachments at all; it
	// is left untouched and unread.
	NoAttachments bool

	// Files lists the locations written for qualifying attachments.
	Files []string

	// Ignored counts attachments that did not qualify.
	Ignored int

	// MarkedRead reports whether the read-state update succeeded.
	MarkedRead bool

	// MarkReadErr holds the absorbed mark-read failure, if any.
	MarkReadErr error
}

// Processor retrieves the qualifying attachments of a message, writes them
// to the sink and then marks the message read.
type Processor struct {
	mailbox source.Mailbox
	sink    output.Sink
	ledger  store.Ledger
	log     logger.Logger
	now     func() time.Time
}

// NewProcessor creates a Processor. ledger may be nil.
func NewProcessor(mailbox source.Mailbox, sink output.Sink, ledger store.Ledger, log logger.Logger) *Processor {
	return &Processor{
		mailbox: mailbox,
		sink:    sink,
		ledger:  ledger,
		log:     log,
		now:     time.Now,
	}
}

// ProcessMessage handles one message. An error means the message was not
// marked read and will be retried on a later cycle. A failed mark-read is
// not an error; it is reported in the outcome.
func (p *Processor) ProcessMessage(ctx context.Context, token string, msg model.Message) (*MessageOutcome, error) {
	log := p.log.With(zap.String("message_id", msg.ID))
	outcome := &MessageOutcome{}

	attachments, err := p.mailbox.FetchAttachments(ctx, token, msg)
	if err != nil {
		return outcome, err
	}
	if len(attachments) == 0 {
		log.Debug("message has no attachments, leaving it unread")
		outcome.NoAttachments = true
		return outcome, nil
	}

	for _, att := range attachments {
		if !att.Qualifies() {
			log.Debug("skipping attachment",
				zap.String("name", att.Name),
				zap.String("content_type", att.ContentType),
				zap.String("kind", string(att.Kind)))
			outcome.Ignored++
			continue
		}

		location, err := p.store(ctx, log, msg, att)
		if err != nil {
			return outcome, err
		}
		outcome.Files = append(outcome.Files, location)
	}

	// Every write landed; the read-state update outlives cancellation.
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markReadTimeout)
	defer cancel()

	if err := p.mailbox.MarkRead(markCtx, token, msg); err != nil {
		log.Warn("could not mark message as read; it may be processed again", zap.Error(err))
		outcome.MarkReadErr = err
		return outcome, nil
	}
	outcome.MarkedRead = true

	if p.ledger != nil {
		if err := p.ledger.MarkMessageRead(markCtx, msg.ID, p.now()); err != nil {
			log.Warn("could not update download ledger", zap.Error(err))
		}
	}

	log.Info("message processed", zap.Int("files", len(outcome.Files)), zap.Int("ignored", outcome.Ignored))
	return outcome, nil
}

// store decodes one qualifying attachment, writes it and records it in the
// ledger.
func (p *Processor) store(ctx context.Context, log logger.Logger, msg model.Message, att model.Attachment) (string, error) {
	data, err := base64.StdEncoding.DecodeString(att.ContentBytes)
	if err != nil {
		return "", &model.PersistenceError{Op: "decode attachment", Path: att.Name, Err: err}
	}

	location, err := p.sink.Write(ctx, att.Name, data, att.ContentType)
	if err != nil {
		return "", fmt.Errorf("storing %q: %w", att.Name, err)
	}
	log.Info("attachment saved", zap.String("name", att.Name), zap.String("path", location), zap.Int("size", len(data)))

	if p.ledger == nil {
		return location, nil
	}

	sum := sha256.Sum256(data)
	existed, err := p.ledger.RecordDownload(ctx, model.Download{
		MessageID:      msg.ID,
		AttachmentName: att.Name,
		Path:           location,
		Size:           int64(len(data)),
		SHA256:         hex.EncodeToString(sum[:]),
		CreatedAt:      p.now(),
	})
	switch {
	case err != nil:
		log.Warn("could not record download", zap.String("name", att.Name), zap.Error(err))
	case existed:
		log.Warn("attachment downloaded again", zap.String("name", att.Name))
	}

	return location, nil
}
