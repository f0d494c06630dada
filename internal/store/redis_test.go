package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedis(t *testing.T) {
	testStore(t, func(t *testing.T, retention int) Store {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		s := NewRedisFromClient(client, retention)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestNewRedisURL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedis(context.Background(), "redis://"+mr.Addr()+"/0", 0)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer s.Close()
	if s.retention != DefaultRetention {
		t.Errorf("retention = %d, want %d", s.retention, DefaultRetention)
	}

	if _, err := NewRedis(context.Background(), "", 0); err == nil {
		t.Error("NewRedis with empty URL succeeded")
	}
}
