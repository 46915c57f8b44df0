package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/replygram/replygram/internal/auth"
	"github.com/replygram/replygram/internal/models"
	"github.com/replygram/replygram/internal/platform"
	"github.com/replygram/replygram/internal/responder"
	"github.com/replygram/replygram/internal/storage"
	"github.com/replygram/replygram/pkg/config"
)

type recordingNotifier struct {
	mu     sync.Mutex
	blocks []string
}

func (n *recordingNotifier) AuthBlocked(accountID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.blocks = append(n.blocks, accountID+":"+reason)
}

type fixture struct {
	pipeline *Pipeline
	client   *platform.FakeClient
	store    *storage.MemoryStorage
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	client := platform.NewFakeClient()
	client.Credentials["shop"] = "hunter2"

	store := storage.NewMemoryStorage()
	require.NoError(t, store.UpsertAccount(context.Background(), &models.Account{
		Username: "shop",
		Password: "hunter2",
	}))

	logger := zap.NewNop()
	notifier := &recordingNotifier{}
	manager := auth.NewManager(client, store, store, logger)
	poll := config.PollConfig{FetchLimit: 100} // zero delay bounds: no pause in tests

	return &fixture{
		pipeline: New(manager, client, store, store, responder.StaticResponder{}, notifier, poll, logger),
		client:   client,
		store:    store,
		notifier: notifier,
	}
}

func (f *fixture) addRule(t *testing.T, patterns ...string) {
	t.Helper()
	require.NoError(t, f.store.AddRule(context.Background(), &models.Rule{
		AccountID:       "shop",
		MediaID:         "media-1",
		Patterns:        patterns,
		ReplyText:       "thanks, check your DMs!",
		DirectText:      "here are the details",
		CooldownSeconds: 3600,
	}))
}

func (f *fixture) addComment(id, text, username string) {
	f.client.Comments["media-1"] = append(f.client.Comments["media-1"], models.Comment{
		ID:       id,
		MediaID:  "media-1",
		Text:     text,
		Username: username,
	})
}

func TestRun_MatchRepliesAndMessagesOnce(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, "price")
	f.addComment("c1", "what's the price??", "alice")

	result, err := f.pipeline.Run(context.Background(), "shop", "media-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Details, 1)
	assert.True(t, result.Details[0].ReplyOK)
	assert.True(t, result.Details[0].DirectOK)

	replies := f.client.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "c1", replies[0].CommentID)
	assert.Equal(t, "thanks, check your DMs!", replies[0].Text)

	directs := f.client.Directs()
	require.Len(t, directs, 1)
	assert.Equal(t, "alice", directs[0].Username)

	done, err := f.store.IsProcessed(context.Background(), "shop", "c1")
	require.NoError(t, err)
	assert.True(t, done)

	// A second poll over the same platform state must be a no-op.
	second, err := f.pipeline.Run(context.Background(), "shop", "media-1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Len(t, f.client.Replies(), 1)
	assert.Len(t, f.client.Directs(), 1)
}

func TestRun_InvalidRegexPatternStillMatches(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, "(interested")
	f.addComment("c1", "interested (email me)", "bob")

	result, err := f.pipeline.Run(context.Background(), "shop", "media-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
}

func TestRun_UnmatchedCommentStaysEligible(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, "price")
	f.addComment("c1", "hello", "carol")

	result, err := f.pipeline.Run(context.Background(), "shop", "media-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)

	done, err := f.store.IsProcessed(context.Background(), "shop", "c1")
	require.NoError(t, err)
	assert.False(t, done, "unmatched comments must not be recorded")

	// A matching rule added later picks the comment up.
	f.addRule(t, "hello")
	result, err = f.pipeline.Run(context.Background(), "shop", "media-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
}

func TestRun_RevokedTokenRecoversViaLogin(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, "price")
	f.addComment("c1", "price?", "dave")

	// Seed a persisted token, then revoke it on the platform side.
	f.client.SeedToken("stale-token")
	require.NoError(t, f.store.SaveSession(context.Background(), &models.Session{
		AccountID: "shop",
		Token:     "stale-token",
	}))
	f.client.RevokeToken("stale-token")

	result, err := f.pipeline.Run(context.Background(), "shop", "media-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, f.client.LoginCalls())

	session, err := f.store.GetSession(context.Background(), "shop")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.NotEqual(t, "stale-token", session.Token)
}

func TestRun_InvalidCredentialsAbortsCycle(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, "price")
	f.addComment("c1", "price?", "eve")
	require.NoError(t, f.store.UpsertAccount(context.Background(), &models.Account{
		Username: "shop",
		Password: "wrong",
	}))

	result, err := f.pipeline.Run(context.Background(), "shop", "media-1")
	require.Error(t, err)
	assert.Nil(t, result)

	var authErr *AuthFailureError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, auth.StatusInvalidCredentials, authErr.Outcome.Status)

	assert.Empty(t, f.client.Replies(), "no actions may run after an auth failure")
	assert.Empty(t, f.client.Directs())

	done, err := f.store.IsProcessed(context.Background(), "shop", "c1")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestRun_ChallengeAlertsOperator(t *testing.T) {
	f := newFixture(t)
	f.client.LoginErr["shop"] = platform.ErrChallengeRequired

	_, err := f.pipeline.Run(context.Background(), "shop", "media-1")
	require.Error(t, err)

	var authErr *AuthFailureError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, auth.StatusChallengeRequired, authErr.Outcome.Status)
	assert.Equal(t, []string{"shop:challenge_required"}, f.notifier.blocks)
}

func TestRun_ReplyFailureDoesNotBlockDirectMessage(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, "price")
	f.addComment("c1", "price?", "frank")
	f.client.ReplyErr = &platform.ActionError{Op: "reply", Err: platform.ErrTransport}

	result, err := f.pipeline.Run(context.Background(), "shop", "media-1")
	require.NoError(t, err)
	require.Len(t, result.Details, 1)
	assert.False(t, result.Details[0].ReplyOK)
	assert.True(t, result.Details[0].DirectOK)
	assert.Len(t, f.client.Directs(), 1)

	done, err := f.store.IsProcessed(context.Background(), "shop", "c1")
	require.NoError(t, err)
	assert.True(t, done, "comment is handled once evaluated, even when an action fails")
}

func TestRun_DirectFailureStillRecordsComment(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, "price")
	f.addComment("c1", "price?", "grace")
	f.client.DirectErr = &platform.ActionError{Op: "dm", Err: platform.ErrTransport}

	result, err := f.pipeline.Run(context.Background(), "shop", "media-1")
	require.NoError(t, err)
	require.Len(t, result.Details, 1)
	assert.True(t, result.Details[0].ReplyOK)
	assert.False(t, result.Details[0].DirectOK)

	done, err := f.store.IsProcessed(context.Background(), "shop", "c1")
	require.NoError(t, err)
	assert.True(t, done)

	// Failed actions are not retried on the next cycle.
	f.client.DirectErr = nil
	second, err := f.pipeline.Run(context.Background(), "shop", "media-1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Len(t, f.client.Directs(), 0)
}

func TestRun_CancelledContextStopsBeforeActions(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, "price")
	f.addComment("c1", "price?", "heidi")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.pipeline.Run(ctx, "shop", "media-1")
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.Processed)
	assert.Empty(t, f.client.Replies())
}

func TestRun_FetchLimitBoundsTheCycle(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, "price")
	for i := 0; i < 5; i++ {
		f.addComment(string(rune('a'+i)), "price?", "user")
	}
	f.pipeline.poll.FetchLimit = 3

	result, err := f.pipeline.Run(context.Background(), "shop", "media-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
}

func TestRun_EmptyReplyTextUsesResponder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.AddRule(context.Background(), &models.Rule{
		AccountID:  "shop",
		MediaID:    "media-1",
		Patterns:   []string{"price"},
		ReplyText:  "",
		DirectText: "details inside",
	}))
	f.addComment("c1", "price?", "ivan")

	result, err := f.pipeline.Run(context.Background(), "shop", "media-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)

	replies := f.client.Replies()
	require.Len(t, replies, 1)
	assert.NotEmpty(t, replies[0].Text)
}
