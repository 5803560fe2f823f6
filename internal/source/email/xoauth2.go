package email

import (
	"github.com/emersion/go-sasl"
)

// xoauth2Mechanism is the SASL mechanism name used by Outlook and Gmail for
// bearer-token IMAP logins.
const xoauth2Mechanism = "XOAUTH2"

type xoauth2Client struct {
	username string
	token    string
}

// newXOAuth2Client returns a SASL client that authenticates username with
// an OAuth2 access token.
func newXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return xoauth2Mechanism, ir, nil
}

// Next answers the server's error challenge with an empty response so the
// server completes the exchange with a tagged NO.
func (c *xoauth2Client) Next(_ []byte) ([]byte, error) {
	return []byte{}, nil
}
