package platform

import "errors"

// Login errors that cannot be resolved automatically. The session
// manager maps these onto auth outcomes; nothing retries them.
var (
	ErrInvalidCredentials = errors.New("platform: invalid credentials")
	ErrChallengeRequired  = errors.New("platform: challenge required")
	ErrTwoFactorRequired  = errors.New("platform: two-factor required")
)

// ErrTransport covers network and timeout failures talking to the
// platform. Fatal for the operation that hit it.
var ErrTransport = errors.New("platform: transport error")

// ActionError reports a failed reply or direct-message attempt. It is
// recorded per comment and never aborts a cycle.
type ActionError struct {
	Op  string // "reply" or "dm"
	Err error
}

func (e *ActionError) Error() string {
	return "platform: " + e.Op + " failed: " + e.Err.Error()
}

func (e *ActionError) Unwrap() error { return e.Err }
