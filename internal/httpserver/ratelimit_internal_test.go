package httpserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPRateLimiter_SeparateBucketsPerIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := newIPRateLimiter(ctx, 1, 1)

	if !l.get("198.51.100.1").Allow() {
		t.Fatal("expected first request from .1 to pass")
	}
	if l.get("198.51.100.1").Allow() {
		t.Fatal("expected second request from .1 to be limited")
	}
	if !l.get("198.51.100.2").Allow() {
		t.Fatal("expected other IP to have its own bucket")
	}
}

func TestIPRateLimiter_SweepDropsStaleEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := newIPRateLimiter(ctx, 5, 5)
	l.get("198.51.100.1")
	l.get("198.51.100.2")

	l.mu.Lock()
	l.limiters["198.51.100.1"].lastAccess = time.Now().Add(-2 * limiterTTL)
	l.mu.Unlock()

	l.sweep(time.Now().Add(-limiterTTL))

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.limiters["198.51.100.1"]; ok {
		t.Error("expected stale limiter to be removed")
	}
	if _, ok := l.limiters["198.51.100.2"]; !ok {
		t.Error("expected fresh limiter to be kept")
	}
}

func TestIPRateLimiter_DisabledPassesThrough(t *testing.T) {
	l := newIPRateLimiter(context.Background(), 0, 0)
	if !l.disabled {
		t.Fatal("expected limiter to be disabled")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:5555"
	if got := clientIP(r); got != "203.0.113.7" {
		t.Errorf("expected host only, got %q", got)
	}
	r.RemoteAddr = "203.0.113.8"
	if got := clientIP(r); got != "203.0.113.8" {
		t.Errorf("expected bare address, got %q", got)
	}
}

func TestIsWebSocketUpgrade(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if isWebSocketUpgrade(r) {
		t.Fatal("plain GET is not an upgrade")
	}
	r.Header.Set("Upgrade", "WebSocket")
	r.Header.Set("Connection", "keep-alive, Upgrade")
	if !isWebSocketUpgrade(r) {
		t.Fatal("expected upgrade request to be detected")
	}
}
