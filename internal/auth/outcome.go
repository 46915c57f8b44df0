package auth

// Status tags the result of a session acquisition attempt.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidCredentials
	StatusChallengeRequired
	StatusTwoFactorRequired
	StatusTransportError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidCredentials:
		return "invalid_credentials"
	case StatusChallengeRequired:
		return "challenge_required"
	case StatusTwoFactorRequired:
		return "two_factor_required"
	case StatusTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of AcquireSession. Challenge and
// two-factor outcomes need out-of-band human resolution; nothing in
// this process retries them.
type Outcome struct {
	Status Status
	// Token is set only when Status is StatusOK.
	Token string
	// Err carries the underlying platform error for non-OK outcomes.
	Err error
}

func (o Outcome) OK() bool { return o.Status == StatusOK }
