package auth

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/nhle/mailpdf/internal/logger"
	"github.com/nhle/mailpdf/internal/theme"
)

// Prompter surfaces a device-authorization challenge to the operator. It
// is the one side effect the device flow cannot do without.
type Prompter interface {
	Prompt(ctx context.Context, da *oauth2.DeviceAuthResponse) error
}

// ConsolePrompter renders the challenge to a terminal and logs it, so an
// operator following either the console or the logs can complete it.
type ConsolePrompter struct {
	out io.Writer
	log logger.Logger
}

// NewConsolePrompter creates a prompter writing to out.
func NewConsolePrompter(out io.Writer, log logger.Logger) *ConsolePrompter {
	return &ConsolePrompter{out: out, log: log}
}

// Instructions is the plain-text form of the challenge.
func Instructions(da *oauth2.DeviceAuthResponse) string {
	return fmt.Sprintf(
		"To sign in, use a web browser to open the page %s and enter the code %s to authenticate.",
		da.VerificationURI, da.UserCode,
	)
}

func (p *ConsolePrompter) Prompt(_ context.Context, da *oauth2.DeviceAuthResponse) error {
	if da.UserCode == "" || da.VerificationURI == "" {
		return fmt.Errorf("device authorization response is missing the user code or verification URL")
	}

	p.log.Info(Instructions(da))

	var b strings.Builder
	b.WriteString(theme.HeaderStyle.Render("Sign-in required"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Open   %s\n", theme.LinkStyle.Render(da.VerificationURI))
	fmt.Fprintf(&b, "Enter  %s\n", theme.CodeStyle.Render(da.UserCode))
	if da.VerificationURIComplete != "" {
		fmt.Fprintf(&b, "\nor open %s\n", theme.LinkStyle.Render(da.VerificationURIComplete))
	}
	if !da.Expiry.IsZero() {
		b.WriteString("\n")
		b.WriteString(theme.HelpStyle.Render(
			fmt.Sprintf("The code expires at %s.", da.Expiry.Local().Format(time.Kitchen)),
		))
	}

	if _, err := fmt.Fprintln(p.out, theme.PanelStyle.Render(b.String())); err != nil {
		return fmt.Errorf("writing sign-in prompt: %w", err)
	}
	return nil
}
