package hoyo

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential means required session fields were absent. The
	// dispatcher checks the store first; the gateway re-validates anyway.
	ErrMissingCredential = errors.New("missing session credential")

	// ErrInvalidSession means the remote service rejected the cookie tokens.
	// There is no refresh path without user action.
	ErrInvalidSession = errors.New("session tokens rejected")

	// ErrAlreadyClaimed is the expected outcome when the daily reward was
	// claimed earlier the same day. Informational, not an error condition.
	ErrAlreadyClaimed = errors.New("daily reward already claimed")

	// ErrRemoteUnavailable covers transport failures and unclassified
	// remote retcodes.
	ErrRemoteUnavailable = errors.New("remote service unavailable")
)

// classifyRetcode maps a HoYoLAB API retcode onto the error taxonomy.
// retcode 0 is success.
func classifyRetcode(code int, message string) error {
	switch code {
	case 0:
		return nil
	case -100, 10001, 10103:
		return fmt.Errorf("%w: retcode=%d %s", ErrInvalidSession, code, message)
	case -5003:
		return fmt.Errorf("%w: %s", ErrAlreadyClaimed, message)
	default:
		return fmt.Errorf("%w: retcode=%d %s", ErrRemoteUnavailable, code, message)
	}
}
