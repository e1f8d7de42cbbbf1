package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestSessionStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, SessionStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewSessionStore(client, ttl)
}

func TestSessionStore_CreateValidateRoundTrip(t *testing.T) {
	mr, sessions := newTestSessionStore(t, time.Minute)
	ctx := context.Background()

	want := Session{UserID: "u-1", Username: "trader1", Email: "trader1@example.com"}
	if err := sessions.Create(ctx, "sid-1", want); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if ttl := mr.TTL("session:sid-1"); ttl != time.Minute {
		t.Errorf("stored TTL = %v, want %v", ttl, time.Minute)
	}

	got, err := sessions.Validate(ctx, "sid-1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got != want {
		t.Errorf("Validate = %+v, want %+v", got, want)
	}
}

func TestSessionStore_ValidateUnknown(t *testing.T) {
	_, sessions := newTestSessionStore(t, time.Minute)

	_, err := sessions.Validate(context.Background(), "nope")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Validate error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_ValidateExpired(t *testing.T) {
	mr, sessions := newTestSessionStore(t, time.Minute)
	ctx := context.Background()

	if err := sessions.Create(ctx, "sid-1", Session{UserID: "u-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	_, err := sessions.Validate(ctx, "sid-1")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Validate error = %v, want ErrSessionNotFound", err)
	}
}

// Each successful Validate renews the TTL, so an active session outlives
// its nominal lifetime.
func TestSessionStore_ValidateSlidesTTL(t *testing.T) {
	mr, sessions := newTestSessionStore(t, time.Minute)
	ctx := context.Background()

	if err := sessions.Create(ctx, "sid-1", Session{UserID: "u-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 3; i++ {
		mr.FastForward(45 * time.Second)
		if _, err := sessions.Validate(ctx, "sid-1"); err != nil {
			t.Fatalf("Validate after forward %d: %v", i, err)
		}
	}

	if ttl := mr.TTL("session:sid-1"); ttl != time.Minute {
		t.Errorf("TTL after renewals = %v, want %v", ttl, time.Minute)
	}
}

func TestSessionStore_ValidateEmptyUserID(t *testing.T) {
	mr, sessions := newTestSessionStore(t, time.Minute)

	mr.Set("session:sid-1", `{"username":"ghost"}`)

	_, err := sessions.Validate(context.Background(), "sid-1")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Validate error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_Delete(t *testing.T) {
	_, sessions := newTestSessionStore(t, time.Minute)
	ctx := context.Background()

	if err := sessions.Create(ctx, "sid-1", Session{UserID: "u-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := sessions.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err := sessions.Validate(ctx, "sid-1")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Validate after delete = %v, want ErrSessionNotFound", err)
	}
}
