package db

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/F1Square/TripGo-Adv-client/internal/config"
)

func TestConnectRedisEmpty(t *testing.T) {
	cfg := config.Config{RedisAddr: ""}
	client, err := ConnectRedis(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client != nil {
		t.Fatalf("expected nil redis client when addr empty")
	}
}

func TestConnectRedisConfigured(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := config.Config{RedisAddr: s.Addr()}

	client, err := ConnectRedis(cfg)
	if err != nil {
		t.Fatalf("connect error: %v", err)
	}
	if client == nil {
		t.Fatalf("expected redis client")
	}
	_ = client.Close()
}

func TestConnectRedisUnreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	cfg := config.Config{RedisAddr: addr}
	client, err := ConnectRedis(cfg)
	if err == nil {
		t.Fatalf("expected ping error")
	}
	if client != nil {
		_ = client.Close()
	}
}
