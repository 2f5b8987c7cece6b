// Package redisstore keeps authentication sessions in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/example/leaveflow/internal/persistence"
)

const (
	defaultPrefix    = "leaveflow"
	defaultRetention = time.Hour
)

// Options configures a SessionRepository.
type Options struct {
	// Prefix namespaces every key.
	Prefix string
	// Retention keeps expired and revoked sessions readable for this long
	// after their expiry so callers can tell them apart from unknown tokens.
	Retention time.Duration
	Now       func() time.Time
}

// SessionRepository implements persistence.SessionRepository on Redis. Each
// session is stored under its token with an index from session ID to token.
// Keys expire on their own, so DeleteExpiredSessions has nothing to do.
type SessionRepository struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

var _ persistence.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository wraps client.
func NewSessionRepository(client redis.UniversalClient, opts Options) *SessionRepository {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionRepository{
		client:    client,
		prefix:    opts.Prefix,
		retention: opts.Retention,
		now:       opts.Now,
	}
}

// Connect opens a client and verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type sessionRecord struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Token       string     `json:"token"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

func (r *SessionRepository) tokenKey(token string) string {
	return r.prefix + ":session:" + token
}

func (r *SessionRepository) idKey(id string) string {
	return r.prefix + ":session-id:" + id
}

func (r *SessionRepository) ttl(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(r.now())
	if ttl < 0 {
		ttl = 0
	}
	return ttl + r.retention
}

// CreateSession stores a new session. A token that is already in use yields
// persistence.ErrDuplicate.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	session, err := normalize(session)
	if err != nil {
		return persistence.Session{}, err
	}
	if session.UserID == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	payload, err := json.Marshal(toRecord(session))
	if err != nil {
		return persistence.Session{}, fmt.Errorf("encode session: %w", err)
	}

	ttl := r.ttl(session.ExpiresAt)
	created, err := r.client.SetNX(ctx, r.tokenKey(session.Token), payload, ttl).Result()
	if err != nil {
		return persistence.Session{}, fmt.Errorf("store session: %w", err)
	}
	if !created {
		return persistence.Session{}, persistence.ErrDuplicate
	}
	if err := r.client.Set(ctx, r.idKey(session.ID), session.Token, ttl).Err(); err != nil {
		return persistence.Session{}, fmt.Errorf("index session: %w", err)
	}
	return session, nil
}

// GetSession loads a session by token.
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return r.load(ctx, r.client, token)
}

// UpdateSession rewrites the session identified by ID, moving it under its
// new token when the token was rotated.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	session, err := normalize(session)
	if err != nil {
		return persistence.Session{}, err
	}

	var updated persistence.Session
	idKey := r.idKey(session.ID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		oldToken, err := tx.Get(ctx, idKey).Result()
		if errors.Is(err, redis.Nil) {
			return persistence.ErrNotFound
		}
		if err != nil {
			return err
		}

		current, err := r.load(ctx, tx, oldToken)
		if err != nil {
			return err
		}
		current.Token = session.Token
		current.Fingerprint = session.Fingerprint
		current.ExpiresAt = session.ExpiresAt
		current.RevokedAt = session.RevokedAt
		current.UpdatedAt = session.UpdatedAt

		payload, err := json.Marshal(toRecord(current))
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}

		ttl := r.ttl(current.ExpiresAt)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if oldToken != current.Token {
				pipe.Del(ctx, r.tokenKey(oldToken))
			}
			pipe.Set(ctx, r.tokenKey(current.Token), payload, ttl)
			pipe.Set(ctx, idKey, current.Token, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = current
		return nil
	}, idKey)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	return updated, nil
}

// RevokeSession marks the session revoked. An already revoked session keeps
// its original revocation time.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	var revoked persistence.Session
	key := r.tokenKey(token)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		session, err := r.load(ctx, tx, token)
		if err != nil {
			return err
		}
		stamp := revokedAt.UTC()
		if session.RevokedAt == nil {
			session.RevokedAt = &stamp
		}
		session.UpdatedAt = stamp

		payload, err := json.Marshal(toRecord(session))
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, payload, redis.SetArgs{KeepTTL: true})
			return nil
		})
		if err != nil {
			return err
		}
		revoked = session
		return nil
	}, key)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	return revoked, nil
}

// DeleteExpiredSessions is a no-op: Redis evicts sessions once their TTL lapses.
func (r *SessionRepository) DeleteExpiredSessions(context.Context, time.Time) error {
	return nil
}

func (r *SessionRepository) load(ctx context.Context, client getter, token string) (persistence.Session, error) {
	raw, err := client.Get(ctx, r.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return persistence.Session{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Session{}, fmt.Errorf("load session: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return persistence.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return fromRecord(record), nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return persistence.ErrNotFound
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("session changed concurrently: %w", persistence.ErrStateConflict)
	}
	return err
}

func normalize(session persistence.Session) (persistence.Session, error) {
	session.Token = strings.TrimSpace(session.Token)
	if session.ID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	session.Fingerprint = strings.TrimSpace(session.Fingerprint)
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	if session.RevokedAt != nil {
		revoked := session.RevokedAt.UTC()
		session.RevokedAt = &revoked
	}
	return session, nil
}

func toRecord(session persistence.Session) sessionRecord {
	return sessionRecord{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   session.RevokedAt,
	}
}

func fromRecord(record sessionRecord) persistence.Session {
	return persistence.Session{
		ID:          record.ID,
		UserID:      record.UserID,
		Token:       record.Token,
		Fingerprint: record.Fingerprint,
		ExpiresAt:   record.ExpiresAt,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
		RevokedAt:   record.RevokedAt,
	}
}
