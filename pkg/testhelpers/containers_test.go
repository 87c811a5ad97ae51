//go:build integration

package testhelpers

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/session"
)

func TestRedisContainer_SessionRoundTrip(t *testing.T) {
	testRedis := GetTestRedis(t)
	ctx := context.Background()

	store := session.NewRedisStore(testRedis.Client, time.Minute, zap.NewNop())
	key := "integration-" + t.Name()
	t.Cleanup(func() { _ = store.Clear(ctx, key) })

	if err := store.Save(ctx, key, session.Session{AccessToken: "T", RefreshToken: "R"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.AccessToken != "T" || got.RefreshToken != "R" {
		t.Errorf("unexpected session %+v", got)
	}

	ttl, err := testRedis.Client.TTL(ctx, "admin:session:"+key).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected TTL within a minute, got %v", ttl)
	}

	if err := store.Clear(ctx, key); err != nil {
		t.Fatalf("clear: %v", err)
	}
	ok, err := store.IsAuthenticated(ctx, key)
	if err != nil {
		t.Fatalf("is authenticated: %v", err)
	}
	if ok {
		t.Error("expected cleared session to be unauthenticated")
	}
}

func TestRedisContainer_Ping(t *testing.T) {
	testRedis := GetTestRedis(t)

	store := session.NewRedisStore(testRedis.Client, time.Minute, zap.NewNop())
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
