package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/replygram/replygram/internal/models"
)

// FakeClient is an in-memory Client used by tests and by `serve --fake`
// for local development without platform access.
type FakeClient struct {
	mu sync.Mutex

	// Credentials maps username -> password accepted by Login.
	Credentials map[string]string
	// LoginErr forces a login outcome per username (e.g. ErrChallengeRequired).
	LoginErr map[string]error
	// Comments maps mediaID -> canned comments returned by FetchComments.
	Comments map[string][]models.Comment
	Media    []models.Media

	// ReplyErr / DirectErr force action failures when set.
	ReplyErr  error
	DirectErr error

	validTokens map[string]bool
	loginCalls  int
	replies     []ReplyCall
	directs     []DirectCall
}

type ReplyCall struct {
	MediaID   string
	CommentID string
	Text      string
}

type DirectCall struct {
	Username string
	Text     string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		Credentials: make(map[string]string),
		LoginErr:    make(map[string]error),
		Comments:    make(map[string][]models.Comment),
		validTokens: make(map[string]bool),
	}
}

func (f *FakeClient) ProbeSession(ctx context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validTokens[token], nil
}

func (f *FakeClient) Login(ctx context.Context, username, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loginCalls++
	if err := f.LoginErr[username]; err != nil {
		return "", err
	}
	if f.Credentials[username] != password {
		return "", ErrInvalidCredentials
	}
	token := fmt.Sprintf("token-%s-%d", username, f.loginCalls)
	f.validTokens[token] = true
	return token, nil
}

// RevokeToken invalidates a previously issued token so the next probe
// fails, simulating session expiry on the platform side.
func (f *FakeClient) RevokeToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.validTokens, token)
}

// SeedToken registers an externally created token as valid.
func (f *FakeClient) SeedToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validTokens[token] = true
}

func (f *FakeClient) FetchComments(ctx context.Context, token, mediaID string, limit int) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.validTokens[token] {
		return nil, ErrTransport
	}
	comments := f.Comments[mediaID]
	if len(comments) > limit {
		comments = comments[:limit]
	}
	out := make([]models.Comment, len(comments))
	copy(out, comments)
	return out, nil
}

func (f *FakeClient) FetchRecentMedia(ctx context.Context, token string, limit int) ([]models.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.validTokens[token] {
		return nil, ErrTransport
	}
	media := f.Media
	if len(media) > limit {
		media = media[:limit]
	}
	out := make([]models.Media, len(media))
	copy(out, media)
	return out, nil
}

func (f *FakeClient) PostReply(ctx context.Context, token, mediaID, commentID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReplyErr != nil {
		return f.ReplyErr
	}
	f.replies = append(f.replies, ReplyCall{MediaID: mediaID, CommentID: commentID, Text: text})
	return nil
}

func (f *FakeClient) SendDirectMessage(ctx context.Context, token, username, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.DirectErr != nil {
		return f.DirectErr
	}
	f.directs = append(f.directs, DirectCall{Username: username, Text: text})
	return nil
}

func (f *FakeClient) LoginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

func (f *FakeClient) Replies() []ReplyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ReplyCall, len(f.replies))
	copy(out, f.replies)
	return out
}

func (f *FakeClient) Directs() []DirectCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]DirectCall, len(f.directs))
	copy(out, f.directs)
	return out
}
