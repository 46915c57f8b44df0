package platform

import (
	"context"

	"github.com/replygram/replygram/internal/models"
)

// Client is the capability the core uses to talk to the remote platform.
// Implementations wrap the actual wire protocol, which is out of scope
// here; see StubClient for the shape of a concrete implementation.
type Client interface {
	// ProbeSession reports whether a persisted token is still usable.
	// It must be cheap and must not consume credentials.
	ProbeSession(ctx context.Context, token string) (bool, error)

	// Login performs a credential login and returns a fresh token.
	// Challenge and two-factor outcomes are returned as ErrChallengeRequired
	// and ErrTwoFactorRequired; they need out-of-band resolution.
	Login(ctx context.Context, username, password string) (string, error)

	// FetchComments returns up to limit recent comments on a media item,
	// in the order the platform reports them.
	FetchComments(ctx context.Context, token, mediaID string, limit int) ([]models.Comment, error)

	// FetchRecentMedia lists the authenticated account's recent media.
	FetchRecentMedia(ctx context.Context, token string, limit int) ([]models.Media, error)

	// PostReply posts a public reply under a comment.
	PostReply(ctx context.Context, token, mediaID, commentID, text string) error

	// SendDirectMessage sends a private message to a username.
	SendDirectMessage(ctx context.Context, token, username, text string) error
}
