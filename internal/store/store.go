package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// SessionGen tags which cookie generation a stored record carries. Only the
// four-token v2 set is written by this bot; records tagged otherwise predate
// the current remote API version and are treated as absent credentials.
const SessionGen = "v2.4"

var (
	// ErrIncompleteSession rejects partial session writes: the four cookie
	// tokens replace together or not at all.
	ErrIncompleteSession = errors.New("session fields must be set together")
)

// SessionFields is the v2 HoYoLAB cookie set.
type SessionFields struct {
	LtuidV2       string
	LtokenV2      string
	LtmidV2       string
	CookieTokenV2 string
}

// Complete reports whether all four tokens are present.
func (s SessionFields) Complete() bool {
	return strings.TrimSpace(s.LtuidV2) != "" &&
		strings.TrimSpace(s.LtokenV2) != "" &&
		strings.TrimSpace(s.LtmidV2) != "" &&
		strings.TrimSpace(s.CookieTokenV2) != ""
}

// Empty reports whether no token is present.
func (s SessionFields) Empty() bool {
	return strings.TrimSpace(s.LtuidV2) == "" &&
		strings.TrimSpace(s.LtokenV2) == "" &&
		strings.TrimSpace(s.LtmidV2) == "" &&
		strings.TrimSpace(s.CookieTokenV2) == ""
}

// UserCredential links one Telegram user to a game account.
type UserCredential struct {
	UserID  int64
	UID     int64 // 0 = not linked
	Session SessionFields
}

// ErrorEntry mirrors the operator-facing error log the dispatcher persists
// alongside zap output.
type ErrorEntry struct {
	UserID  int64     `json:"user_id"`
	Command string    `json:"command"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Store persists one credential record per Telegram user. Get returns
// (nil, nil) when no record exists. All writes are upserts keyed on the
// user id and atomic per key.
type Store interface {
	Get(ctx context.Context, userID int64) (*UserCredential, error)
	SetUID(ctx context.Context, userID, uid int64) error
	ReplaceSession(ctx context.Context, userID int64, s SessionFields) error
	Upsert(ctx context.Context, cred *UserCredential) error
	LogError(ctx context.Context, e ErrorEntry) error
	Close() error
}
