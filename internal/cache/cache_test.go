package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

func TestKey(t *testing.T) {
	k1 := Key("openai", "Is the sky blue?")
	k2 := Key("openai", "Is the sky blue?")
	k3 := Key("anthropic", "Is the sky blue?")

	if k1 != k2 {
		t.Errorf("expected deterministic keys, got %s and %s", k1, k2)
	}
	if k1 == k3 {
		t.Error("expected different providers to produce different keys")
	}
	if !strings.HasPrefix(k1, "veracity:v1:") {
		t.Errorf("unexpected key prefix: %s", k1)
	}
	if Key("ab", "c") == Key("a", "bc") {
		t.Error("expected part boundaries to affect the key")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	value := []byte("hello")
	if err := c.Set("k", value, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value[0] = 'j'

	got, ok := c.Get("k")
	if !ok || string(got) != "hello" {
		t.Errorf("expected stored copy %q, got %q (found=%v)", "hello", got, ok)
	}

	got[0] = 'x'
	again, _ := c.Get("k")
	if string(again) != "hello" {
		t.Errorf("Get must return a copy, got %q", again)
	}

	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	_ = c.Set("short", []byte("v"), 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("expected expired entry to be missing")
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	_ = c.Set("a", []byte("1"), 0)
	_ = c.Set("b", []byte("2"), 0)

	if c.Len() != 2 {
		t.Errorf("expected 2 items, got %d", c.Len())
	}
	_ = c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected 0 items after clear, got %d", c.Len())
	}
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := Key("openai", "q")

	if err := c.Set(key, []byte(`[{"answer":true}]`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get(key)
	if !ok || string(got) != `[{"answer":true}]` {
		t.Errorf("unexpected value %q (found=%v)", got, ok)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one file, got %d", len(entries))
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
		if strings.Contains(e.Name(), ":") {
			t.Errorf("key not sanitized in file name: %s", e.Name())
		}
	}

	if err := c.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("Delete of missing key should succeed, got %v", err)
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_ = c.Set("k", []byte("v"), time.Minute)

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to be missing")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expected expired file to be removed")
	}
}

func TestDiskCache_Corrupt(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	if err := os.WriteFile(c.path("bad"), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("expected corrupt entry to be a miss")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/.veracity/cache", filepath.Join(home, ".veracity/cache")},
		{"~", home},
		{"/tmp/cache", "/tmp/cache"},
		{"relative/dir", "relative/dir"},
		{"~other/dir", "~other/dir"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := expandHome(tt.in); got != tt.want {
				t.Errorf("expandHome(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLayeredCache_Promotes(t *testing.T) {
	front := NewMemoryCache(time.Minute, 0)
	back := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayered(front, back)

	_ = back.Set("k", []byte("v"), 0)

	if _, ok := front.Get("k"); ok {
		t.Fatal("front layer should start empty")
	}

	got, ok := c.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("expected hit from back layer, got %q", got)
	}

	if _, ok := front.Get("k"); !ok {
		t.Error("expected value promoted to front layer")
	}
}

func TestLayeredCache_SetDeleteClear(t *testing.T) {
	front := NewMemoryCache(time.Minute, 0)
	back := NewDiskCache(t.TempDir(), time.Hour)
	c := NewLayered(front, back)

	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := back.Get("k"); !ok {
		t.Error("expected value written through to back layer")
	}

	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}

	_ = c.Set("a", []byte("1"), 0)
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after clear")
	}
}

func TestNew(t *testing.T) {
	if New(model.CacheConfig{Enabled: false}) != nil {
		t.Error("expected nil cache when disabled")
	}

	if _, ok := New(model.CacheConfig{Enabled: true, MemoryTTL: time.Minute}).(*MemoryCache); !ok {
		t.Error("expected memory cache without a directory")
	}

	c := New(model.CacheConfig{Enabled: true, Dir: t.TempDir(), MemoryTTL: time.Minute, DiskTTL: time.Hour})
	if _, ok := c.(*LayeredCache); !ok {
		t.Errorf("expected layered cache, got %T", c)
	}
}
