package cache

import (
	"context"
	"strings"
	"testing"
	"time"
)

// TestInMemoryCache_GetSet verifies that Set stores bodies and Get returns them unchanged.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.Set(ctx, "readings:Anand Vihar", []byte(`{"count":24}`), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, "readings:Anand Vihar")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if string(got) != `{"count":24}` {
		t.Errorf("Get() = %s", got)
	}
}

func TestInMemoryCache_Get_Miss(t *testing.T) {
	_, ok, err := NewInMemoryCache().Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Expired verifies that expired entries miss and are removed on access.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.Set(ctx, "grid", []byte("x"), time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "grid"); ok {
		t.Error("Get() ok = true, want false for expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expired access", c.Len())
	}
}

func TestParseAddrs(t *testing.T) {
	got := parseAddrs(" host1:11211, ,host2:11211 ")
	if len(got) != 2 || got[0] != "host1:11211" || got[1] != "host2:11211" {
		t.Errorf("parseAddrs() = %v", got)
	}
	if got := parseAddrs(""); len(got) != 0 {
		t.Errorf("parseAddrs(\"\") = %v, want empty", got)
	}
}

func TestKey(t *testing.T) {
	if got := Key("readings:US Embassy"); got != "airquality:readings:US_Embassy" {
		t.Errorf("Key() = %q", got)
	}
	if got := Key(strings.Repeat("k", 400)); len(got) != 250 {
		t.Errorf("len(Key(long)) = %d, want 250", len(got))
	}
}

// TestMemcachedCache_ContextCanceled verifies no network call is made once ctx is done.
func TestMemcachedCache_ContextCanceled(t *testing.T) {
	c := NewMemcachedCache("127.0.0.1:1", 50*time.Millisecond, 1)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := c.Get(ctx, "k"); err == nil {
		t.Error("Get() with canceled context: want error")
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err == nil {
		t.Error("Set() with canceled context: want error")
	}
}
