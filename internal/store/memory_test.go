package store

import (
	"context"
	"testing"
)

func TestMemoryLoadAbsent(t *testing.T) {
	m := NewMemory()

	state, etag, exists, err := m.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if exists {
		t.Error("Load() exists = true for absent key")
	}
	if state != nil || etag != "" {
		t.Errorf("Load() = (%q, %q) for absent key", state, etag)
	}
}

func TestMemorySaveLoadRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	etag, err := m.Save(ctx, "k", []byte(`{"n":1}`))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if etag == "" {
		t.Fatal("Save() returned empty etag")
	}

	state, gotTag, exists, err := m.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !exists {
		t.Fatal("Load() exists = false after Save")
	}
	if string(state) != `{"n":1}` {
		t.Errorf("Load() state = %q", state)
	}
	if gotTag != etag {
		t.Errorf("Load() etag = %q, Save returned %q", gotTag, etag)
	}
}

func TestMemoryETagTracksContent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	tag1, _ := m.Save(ctx, "k", []byte(`{"n":1}`))
	tag2, _ := m.Save(ctx, "k", []byte(`{"n":2}`))
	if tag1 == tag2 {
		t.Error("etag unchanged after content change")
	}

	// Writing identical content again yields the identical tag.
	tag3, _ := m.Save(ctx, "k", []byte(`{"n":1}`))
	if tag3 != tag1 {
		t.Errorf("etag = %q for identical content, want %q", tag3, tag1)
	}
}

func TestMemoryClear(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Save(ctx, "k", []byte("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := m.Clear(ctx, "k"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	_, _, exists, err := m.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if exists {
		t.Error("key still exists after Clear")
	}

	// Clearing an absent key is not an error.
	if err := m.Clear(ctx, "never-saved"); err != nil {
		t.Errorf("Clear() on absent key error = %v", err)
	}
}

func TestMemoryDefensiveCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	in := []byte("abc")
	if _, err := m.Save(ctx, "k", in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	in[0] = 'z'

	out, _, _, err := m.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(out) != "abc" {
		t.Errorf("stored state mutated through caller slice: %q", out)
	}

	out[0] = 'z'
	again, _, _, _ := m.Load(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored state mutated through returned slice: %q", again)
	}
}
