package auth

import (
	"errors"
	"fmt"
)

// AuthenticationError indicates that no usable access token could be
// obtained, neither silently nor through the device flow.
type AuthenticationError struct {
	// Stage is the step that failed, e.g. "device authorization".
	Stage string
	Err   error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (%s): %v", e.Stage, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IsAuthenticationError reports whether err (or any error in its chain) is
// an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// errMissingToken is reported when the provider answered without an
// access token.
var errMissingToken = errors.New("token response did not contain an access token")
