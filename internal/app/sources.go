package app

import (
	"fmt"

	"github.com/nhle/mailpdf/internal/credential"
	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/internal/output"
	"github.com/nhle/mailpdf/internal/source"
	"github.com/nhle/mailpdf/internal/source/email"
	"github.com/nhle/mailpdf/internal/source/graph"
)

// newCredentialStore picks the credential backend named in cfg.
func newCredentialStore(cfg model.CredentialConfig) (credential.Store, error) {
	switch cfg.Backend {
	case "file":
		return credential.NewFileStore(cfg.Path), nil
	case "keyring":
		ring, err := credential.OpenKeyring(cfg.KeyringDir)
		if err != nil {
			return nil, err
		}
		return credential.NewKeyringStore(ring), nil
	default:
		return nil, fmt.Errorf("unknown credential backend %q", cfg.Backend)
	}
}

// newMailbox builds the mailbox provider named in cfg.
func newMailbox(cfg model.MailboxConfig) (source.Mailbox, error) {
	switch cfg.Provider {
	case "graph":
		return graph.NewMailbox(graph.NewClient(cfg.BaseURL), cfg.Folder, cfg.PageSize), nil
	case "imap":
		var opts []email.IMAPOption
		if cfg.IMAPSecurity == "starttls" {
			opts = append(opts, email.WithStartTLS())
		}
		return email.NewIMAPMailbox(cfg.IMAPAddr, cfg.IMAPUsername, cfg.Folder, cfg.PageSize, opts...), nil
	default:
		return nil, fmt.Errorf("unknown mailbox provider %q", cfg.Provider)
	}
}

// newSink returns the local directory sink, followed by the S3 mirror when
// a bucket is configured.
func newSink(cfg model.OutputConfig) (output.Sink, error) {
	sinks := output.MultiSink{output.NewDirSink(cfg.Dir)}
	if cfg.S3.Bucket != "" {
		s3, err := output.NewS3Sink(cfg.S3)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3)
	}
	return sinks, nil
}
