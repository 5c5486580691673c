package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to databaseURL and bootstraps the schema.
func NewPostgresStore(databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	s := &postgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *postgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			tg_id BIGINT PRIMARY KEY,
			uid BIGINT NOT NULL DEFAULT 0,
			ltuid_v2 TEXT NOT NULL DEFAULT '',
			ltoken_v2 TEXT NOT NULL DEFAULT '',
			ltmid_v2 TEXT NOT NULL DEFAULT '',
			cookie_token_v2 TEXT NOT NULL DEFAULT '',
			session_gen TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS error_logs (
			id BIGSERIAL PRIMARY KEY,
			tg_id BIGINT NOT NULL,
			command TEXT NOT NULL,
			message TEXT NOT NULL,
			at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, userID int64) (*UserCredential, error) {
	q := `SELECT uid, ltuid_v2, ltoken_v2, ltmid_v2, cookie_token_v2, session_gen
	        FROM users WHERE tg_id = $1`
	var c UserCredential
	var gen string
	c.UserID = userID
	err := s.db.QueryRowContext(ctx, q, userID).Scan(
		&c.UID, &c.Session.LtuidV2, &c.Session.LtokenV2,
		&c.Session.LtmidV2, &c.Session.CookieTokenV2, &gen,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if gen != SessionGen {
		c.Session = SessionFields{}
	}
	return &c, nil
}

func (s *postgresStore) SetUID(ctx context.Context, userID, uid int64) error {
	q := `INSERT INTO users (tg_id, uid, updated_at) VALUES ($1, $2, now())
	      ON CONFLICT (tg_id) DO UPDATE SET uid = EXCLUDED.uid, updated_at = now()`
	_, err := s.db.ExecContext(ctx, q, userID, uid)
	return err
}

func (s *postgresStore) ReplaceSession(ctx context.Context, userID int64, fields SessionFields) error {
	if !fields.Complete() {
		return ErrIncompleteSession
	}
	q := `INSERT INTO users (tg_id, ltuid_v2, ltoken_v2, ltmid_v2, cookie_token_v2, session_gen, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, now())
	      ON CONFLICT (tg_id) DO UPDATE SET
	        ltuid_v2 = EXCLUDED.ltuid_v2,
	        ltoken_v2 = EXCLUDED.ltoken_v2,
	        ltmid_v2 = EXCLUDED.ltmid_v2,
	        cookie_token_v2 = EXCLUDED.cookie_token_v2,
	        session_gen = EXCLUDED.session_gen,
	        updated_at = now()`
	_, err := s.db.ExecContext(ctx, q, userID,
		fields.LtuidV2, fields.LtokenV2, fields.LtmidV2, fields.CookieTokenV2, SessionGen)
	return err
}

func (s *postgresStore) Upsert(ctx context.Context, cred *UserCredential) error {
	if cred == nil {
		return nil
	}
	if !cred.Session.Complete() {
		return ErrIncompleteSession
	}
	q := `INSERT INTO users (tg_id, uid, ltuid_v2, ltoken_v2, ltmid_v2, cookie_token_v2, session_gen, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	      ON CONFLICT (tg_id) DO UPDATE SET
	        uid = EXCLUDED.uid,
	        ltuid_v2 = EXCLUDED.ltuid_v2,
	        ltoken_v2 = EXCLUDED.ltoken_v2,
	        ltmid_v2 = EXCLUDED.ltmid_v2,
	        cookie_token_v2 = EXCLUDED.cookie_token_v2,
	        session_gen = EXCLUDED.session_gen,
	        updated_at = now()`
	_, err := s.db.ExecContext(ctx, q, cred.UserID, cred.UID,
		cred.Session.LtuidV2, cred.Session.LtokenV2, cred.Session.LtmidV2,
		cred.Session.CookieTokenV2, SessionGen)
	return err
}

func (s *postgresStore) LogError(ctx context.Context, e ErrorEntry) error {
	q := `INSERT INTO error_logs (tg_id, command, message, at) VALUES ($1, $2, $3, $4)`
	_, err := s.db.ExecContext(ctx, q, e.UserID, e.Command, e.Message, e.At)
	return err
}

func (s *postgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
