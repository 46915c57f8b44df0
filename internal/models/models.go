package models

import "time"

// Account is a platform account the service acts on behalf of.
type Account struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	UseProxy bool   `json:"use_proxy"`
	Proxy    string `json:"proxy,omitempty"`
}

// Session is the persisted authentication state for one account.
// The token is opaque to everything except the platform client.
type Session struct {
	AccountID string    `json:"account_id"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rule maps comment patterns to a reply and a direct message, scoped to
// one (account, media) pair. Patterns are tried in order; each one is a
// case-insensitive regular expression, or a plain substring when it does
// not compile.
type Rule struct {
	ID         int64    `json:"id"`
	AccountID  string   `json:"account_id"`
	MediaID    string   `json:"media_id"`
	Patterns   []string `json:"patterns"`
	ReplyText  string   `json:"reply_text"`
	DirectText string   `json:"direct_text"`
	// CooldownSeconds is stored and round-tripped but not enforced by the
	// processing loop, matching the behavior this service replaces.
	CooldownSeconds int `json:"cooldown_seconds"`
}

// Comment is a platform comment as fetched during one poll cycle.
// It is never persisted.
type Comment struct {
	ID        string    `json:"id"`
	MediaID   string    `json:"media_id"`
	Text      string    `json:"text"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Media is a content item owned by an account.
type Media struct {
	ID           string `json:"id"`
	MediaType    string `json:"media_type"`
	Caption      string `json:"caption"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// ProcessedComment records that a comment has been evaluated for an
// account. The (AccountID, CommentID) pair is unique in storage.
type ProcessedComment struct {
	AccountID   string    `json:"account_id"`
	CommentID   string    `json:"comment_id"`
	MediaID     string    `json:"media_id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// CommentOutcome reports what happened to one newly processed comment.
type CommentOutcome struct {
	CommentID string `json:"comment_id"`
	RuleID    int64  `json:"rule_id"`
	ReplyOK   bool   `json:"reply"`
	DirectOK  bool   `json:"dm"`
}

// CycleResult summarizes one pipeline invocation.
type CycleResult struct {
	CycleID   string           `json:"cycle_id"`
	AccountID string           `json:"account_id"`
	MediaID   string           `json:"media_id"`
	Processed int              `json:"processed"`
	Details   []CommentOutcome `json:"details"`
}
