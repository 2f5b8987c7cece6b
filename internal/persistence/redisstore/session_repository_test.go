package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/example/leaveflow/internal/persistence"
)

var baseTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

func newTestRepository(t *testing.T) (*SessionRepository, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewSessionRepository(client, Options{
		Prefix:    "test",
		Retention: time.Minute,
		Now:       func() time.Time { return baseTime },
	})
	return repo, server
}

func sampleSession() persistence.Session {
	return persistence.Session{
		ID:          "session-1",
		UserID:      "user-1",
		Token:       "token-1",
		Fingerprint: " laptop ",
		CreatedAt:   baseTime,
		UpdatedAt:   baseTime,
		ExpiresAt:   baseTime.Add(time.Hour),
	}
}

func TestSessionRepositoryCreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, server := newTestRepository(t)

	created, err := repo.CreateSession(ctx, sampleSession())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if created.Fingerprint != "laptop" {
		t.Fatalf("expected trimmed fingerprint, got %q", created.Fingerprint)
	}

	got, err := repo.GetSession(ctx, "token-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.UserID != "user-1" || !got.ExpiresAt.Equal(baseTime.Add(time.Hour)) || got.RevokedAt != nil {
		t.Fatalf("unexpected session %+v", got)
	}

	if ttl := server.TTL("test:session:token-1"); ttl != time.Hour+time.Minute {
		t.Fatalf("expected ttl of expiry plus retention, got %v", ttl)
	}

	if _, err := repo.CreateSession(ctx, sampleSession()); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := repo.GetSession(ctx, "unknown"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	server.FastForward(time.Hour + time.Minute)
	if _, err := repo.GetSession(ctx, "token-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected session to be evicted, got %v", err)
	}
}

func TestSessionRepositoryValidation(t *testing.T) {
	t.Parallel()

	repo, _ := newTestRepository(t)
	session := sampleSession()
	session.UserID = ""
	if _, err := repo.CreateSession(context.Background(), session); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestSessionRepositoryUpdateRotatesToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, _ := newTestRepository(t)
	if _, err := repo.CreateSession(ctx, sampleSession()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	rotated := sampleSession()
	rotated.Token = "token-2"
	rotated.UpdatedAt = baseTime.Add(10 * time.Minute)
	rotated.ExpiresAt = baseTime.Add(2 * time.Hour)

	updated, err := repo.UpdateSession(ctx, rotated)
	if err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if updated.Token != "token-2" || !updated.CreatedAt.Equal(baseTime) {
		t.Fatalf("unexpected updated session %+v", updated)
	}
	if _, err := repo.GetSession(ctx, "token-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected old token to be gone, got %v", err)
	}
	if got, err := repo.GetSession(ctx, "token-2"); err != nil || !got.ExpiresAt.Equal(baseTime.Add(2*time.Hour)) {
		t.Fatalf("expected rotated session, got %+v %v", got, err)
	}

	missing := sampleSession()
	missing.ID = "session-404"
	if _, err := repo.UpdateSession(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepositoryRevokeKeepsFirstTimestamp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo, server := newTestRepository(t)
	if _, err := repo.CreateSession(ctx, sampleSession()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	first := baseTime.Add(5 * time.Minute)
	revoked, err := repo.RevokeSession(ctx, "token-1", first)
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if revoked.RevokedAt == nil || !revoked.RevokedAt.Equal(first) {
		t.Fatalf("unexpected revocation %+v", revoked.RevokedAt)
	}

	again, err := repo.RevokeSession(ctx, "token-1", first.Add(time.Minute))
	if err != nil {
		t.Fatalf("second RevokeSession failed: %v", err)
	}
	if !again.RevokedAt.Equal(first) {
		t.Fatalf("expected original revocation time, got %v", again.RevokedAt)
	}
	if ttl := server.TTL("test:session:token-1"); ttl != time.Hour+time.Minute {
		t.Fatalf("revocation must keep the ttl, got %v", ttl)
	}

	if _, err := repo.RevokeSession(ctx, "unknown", first); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteExpiredSessions(ctx, baseTime); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
}
