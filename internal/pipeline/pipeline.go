// Package pipeline runs one polling-and-reaction cycle for an
// (account, media) pair: fetch comments, skip the already-processed,
// match against the account's rules, reply and direct-message on a
// match, and record the comment so it is never acted on twice.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/replygram/replygram/internal/auth"
	"github.com/replygram/replygram/internal/matcher"
	"github.com/replygram/replygram/internal/models"
	"github.com/replygram/replygram/internal/notify"
	"github.com/replygram/replygram/internal/platform"
	"github.com/replygram/replygram/internal/responder"
	"github.com/replygram/replygram/internal/storage"
	"github.com/replygram/replygram/pkg/config"
)

// AuthFailureError is the cycle-fatal error returned when a session
// could not be acquired. The tagged outcome tells the caller whether
// human intervention is needed.
type AuthFailureError struct {
	AccountID string
	Outcome   auth.Outcome
}

func (e *AuthFailureError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %s", e.AccountID, e.Outcome.Status)
}

func (e *AuthFailureError) Unwrap() error { return e.Outcome.Err }

type Pipeline struct {
	sessions  *auth.Manager
	client    platform.Client
	rules     storage.RuleStore
	processed storage.ProcessedStore
	responder responder.Responder
	notifier  notify.Notifier
	poll      config.PollConfig
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(
	sessions *auth.Manager,
	client platform.Client,
	rules storage.RuleStore,
	processed storage.ProcessedStore,
	resp responder.Responder,
	notifier notify.Notifier,
	poll config.PollConfig,
	logger *zap.Logger,
) *Pipeline {
	if poll.FetchLimit <= 0 {
		poll.FetchLimit = 100
	}
	return &Pipeline{
		sessions:  sessions,
		client:    client,
		rules:     rules,
		processed: processed,
		responder: resp,
		notifier:  notifier,
		poll:      poll,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// accountLock serializes whole cycles per account so two polls cannot
// race over the same comment set. Different accounts run concurrently.
func (p *Pipeline) accountLock(accountID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, exists := p.locks[accountID]
	if !exists {
		lock = &sync.Mutex{}
		p.locks[accountID] = lock
	}
	return lock
}

// Run executes one cycle. Authentication and fetch failures are
// cycle-fatal; per-comment action failures are recorded in the result
// and never abort the cycle. Cancellation takes effect between
// comments; once actions start for a comment, that comment is always
// recorded before Run returns.
func (p *Pipeline) Run(ctx context.Context, accountID, mediaID string) (*models.CycleResult, error) {
	lock := p.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	result := &models.CycleResult{
		CycleID:   uuid.New().String(),
		AccountID: accountID,
		MediaID:   mediaID,
	}
	log := p.logger.With(
		zap.String("cycle_id", result.CycleID),
		zap.String("account", accountID),
		zap.String("media", mediaID))

	outcome, err := p.sessions.AcquireSession(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !outcome.OK() {
		if needsOperator(outcome.Status) {
			p.notifier.AuthBlocked(accountID, outcome.Status.String())
		}
		return nil, &AuthFailureError{AccountID: accountID, Outcome: outcome}
	}

	comments, err := p.client.FetchComments(ctx, outcome.Token, mediaID, p.poll.FetchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching comments for %s: %w", mediaID, err)
	}

	// One rule snapshot per cycle; a rule change mid-cycle does not
	// affect comments already being evaluated.
	rules, err := p.rules.ListRules(ctx, accountID, mediaID)
	if err != nil {
		return nil, fmt.Errorf("loading rules for %s/%s: %w", accountID, mediaID, err)
	}

	for _, comment := range comments {
		if err := ctx.Err(); err != nil {
			log.Info("cycle cancelled", zap.Int("processed", result.Processed))
			return result, err
		}

		if comment.ID == "" {
			log.Warn("skipping comment without id", zap.String("user", comment.Username))
			continue
		}

		done, err := p.processed.IsProcessed(ctx, accountID, comment.ID)
		if err != nil {
			return result, fmt.Errorf("checking processed state: %w", err)
		}
		if done {
			continue
		}

		rule := matcher.Match(comment.Text, rules)
		if rule == nil {
			// Unmatched comments stay unrecorded so a future rule
			// change can still pick them up.
			continue
		}

		detail := p.act(ctx, log, outcome.Token, mediaID, comment, rule)

		inserted, err := p.processed.MarkProcessed(ctx, accountID, comment.ID, mediaID)
		if err != nil {
			return result, fmt.Errorf("marking comment %s processed: %w", comment.ID, err)
		}
		if !inserted {
			log.Warn("comment was already recorded by another cycle",
				zap.String("comment", comment.ID))
		}

		result.Processed++
		result.Details = append(result.Details, detail)
	}

	log.Info("cycle finished",
		zap.Int("fetched", len(comments)),
		zap.Int("processed", result.Processed))
	return result, nil
}

// act performs the reply, the randomized pause, and the direct message
// for one matched comment. Each action's failure is recorded without
// blocking the other. The comment is marked processed by the caller no
// matter what happens here.
func (p *Pipeline) act(ctx context.Context, log *zap.Logger, token, mediaID string, comment models.Comment, rule *models.Rule) models.CommentOutcome {
	detail := models.CommentOutcome{CommentID: comment.ID, RuleID: rule.ID}

	replyText := rule.ReplyText
	if replyText == "" {
		replyText = p.responder.DraftReply(ctx, comment.Text)
	}

	if err := p.client.PostReply(ctx, token, mediaID, comment.ID, replyText); err != nil {
		log.Warn("reply failed",
			zap.Error(err),
			zap.String("comment", comment.ID))
	} else {
		detail.ReplyOK = true
	}

	// Pause between the public reply and the private message so the
	// action cadence is not mechanical. Waiting on a timer keeps other
	// accounts' cycles running; cancellation here skips the DM but the
	// comment is still recorded.
	if err := p.randomDelay(ctx); err != nil {
		log.Info("delay interrupted, skipping direct message",
			zap.String("comment", comment.ID))
		return detail
	}

	if err := p.client.SendDirectMessage(ctx, token, comment.Username, rule.DirectText); err != nil {
		log.Warn("direct message failed",
			zap.Error(err),
			zap.String("comment", comment.ID),
			zap.String("user", comment.Username))
	} else {
		detail.DirectOK = true
	}

	return detail
}

func (p *Pipeline) randomDelay(ctx context.Context) error {
	min, max := p.poll.RandomDelayMinMs, p.poll.RandomDelayMaxMs
	if max <= 0 || max < min {
		return nil
	}
	ms := min
	if max > min {
		ms += rand.Intn(max - min + 1)
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func needsOperator(status auth.Status) bool {
	switch status {
	case auth.StatusInvalidCredentials, auth.StatusChallengeRequired, auth.StatusTwoFactorRequired:
		return true
	default:
		return false
	}
}
