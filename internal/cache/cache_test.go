package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	c := NewMemory()
	if _, ok := c.Get("overview:AAPL"); ok {
		t.Fatal("empty cache should miss")
	}
	c.Set("overview:AAPL", []byte(`{"PERatio":"29.3"}`), time.Hour)
	got, ok := c.Get("overview:AAPL")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if !bytes.Equal(got, []byte(`{"PERatio":"29.3"}`)) {
		t.Fatalf("got %q", got)
	}
}

func TestMemoryExpiry(t *testing.T) {
	c := NewMemory()
	c.Set("daily:AAPL", []byte("x"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("daily:AAPL"); ok {
		t.Fatal("expired entry should miss")
	}
}

func TestMemoryZeroTTLNotStored(t *testing.T) {
	c := NewMemory()
	c.Set("macro:DGS10", []byte("x"), 0)
	if _, ok := c.Get("macro:DGS10"); ok {
		t.Fatal("zero ttl entry should not be stored")
	}
	c.Set("macro:DGS10", []byte("x"), -time.Hour)
	if _, ok := c.Get("macro:DGS10"); ok {
		t.Fatal("negative ttl entry should not be stored")
	}
}

func TestMemoryOverwrite(t *testing.T) {
	c := NewMemory()
	c.Set("k", []byte("old"), time.Hour)
	c.Set("k", []byte("new"), time.Hour)
	got, ok := c.Get("k")
	if !ok || string(got) != "new" {
		t.Fatalf("got %q ok=%v, want new", got, ok)
	}
}

func TestMemoryPrune(t *testing.T) {
	c := NewMemory()
	c.Set("stale", []byte("x"), time.Millisecond)
	c.Set("fresh", []byte("y"), time.Hour)
	time.Sleep(5 * time.Millisecond)
	c.Prune()
	c.mu.Lock()
	_, staleLeft := c.entries["stale"]
	_, freshLeft := c.entries["fresh"]
	c.mu.Unlock()
	if staleLeft {
		t.Fatal("prune should drop expired entries")
	}
	if !freshLeft {
		t.Fatal("prune should keep live entries")
	}
}
