package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldUID         = "uid"
	fieldLtuid       = "ltuid_v2"
	fieldLtoken      = "ltoken_v2"
	fieldLtmid       = "ltmid_v2"
	fieldCookieToken = "cookie_token_v2"
	fieldGen         = "gen"

	errlogKey = "errlog"
	errlogCap = 1000
)

type redisStore struct{ rdb *redis.Client }

// NewRedisStore connects to redisURL and returns a hash-per-user store.
func NewRedisStore(redisURL string) (Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisStore{rdb: rdb}, nil
}

// NewRedisStoreFromClient wraps an existing client; used by tests.
func NewRedisStoreFromClient(rdb *redis.Client) Store { return &redisStore{rdb: rdb} }

func keyCred(userID int64) string { return "cred:" + strconv.FormatInt(userID, 10) }

func (s *redisStore) Get(ctx context.Context, userID int64) (*UserCredential, error) {
	m, err := s.rdb.HGetAll(ctx, keyCred(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	c := &UserCredential{UserID: userID}
	if v := m[fieldUID]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.UID = n
		}
	}
	// tokens from an older cookie generation are not usable against the
	// current remote API; surface them as absent session fields
	if m[fieldGen] == SessionGen {
		c.Session = SessionFields{
			LtuidV2:       m[fieldLtuid],
			LtokenV2:      m[fieldLtoken],
			LtmidV2:       m[fieldLtmid],
			CookieTokenV2: m[fieldCookieToken],
		}
	}
	return c, nil
}

func (s *redisStore) SetUID(ctx context.Context, userID, uid int64) error {
	return s.rdb.HSet(ctx, keyCred(userID), fieldUID, strconv.FormatInt(uid, 10)).Err()
}

func (s *redisStore) ReplaceSession(ctx context.Context, userID int64, fields SessionFields) error {
	if !fields.Complete() {
		return ErrIncompleteSession
	}
	// single HSET keeps the four-token replacement atomic per key
	return s.rdb.HSet(ctx, keyCred(userID),
		fieldLtuid, fields.LtuidV2,
		fieldLtoken, fields.LtokenV2,
		fieldLtmid, fields.LtmidV2,
		fieldCookieToken, fields.CookieTokenV2,
		fieldGen, SessionGen,
	).Err()
}

func (s *redisStore) Upsert(ctx context.Context, cred *UserCredential) error {
	if cred == nil {
		return nil
	}
	if !cred.Session.Complete() {
		return ErrIncompleteSession
	}
	return s.rdb.HSet(ctx, keyCred(cred.UserID),
		fieldUID, strconv.FormatInt(cred.UID, 10),
		fieldLtuid, cred.Session.LtuidV2,
		fieldLtoken, cred.Session.LtokenV2,
		fieldLtmid, cred.Session.LtmidV2,
		fieldCookieToken, cred.Session.CookieTokenV2,
		fieldGen, SessionGen,
	).Err()
}

func (s *redisStore) LogError(ctx context.Context, e ErrorEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := s.rdb.LPush(ctx, errlogKey, raw).Err(); err != nil {
		return err
	}
	return s.rdb.LTrim(ctx, errlogKey, 0, errlogCap-1).Err()
}

func (s *redisStore) Close() error { return s.rdb.Close() }
