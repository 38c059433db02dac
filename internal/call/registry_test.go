package call

import (
	"errors"
	"testing"
)

func TestCreateAndGet(t *testing.T) {
	r := NewRegistry()

	sess, err := r.Create("CA1", "MZ1", CallerContext{PhoneNumber: "+15550100"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.State() != StateInitiated {
		t.Fatalf("expected new session in INITIATED, got %s", sess.State())
	}

	got, err := r.Get("CA1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sess {
		t.Fatalf("Get returned a different session")
	}
}

func TestCreateDuplicateKeepsOriginal(t *testing.T) {
	r := NewRegistry()

	first, err := r.Create("CA1", "MZ1", CallerContext{PhoneNumber: "+15550100"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = r.Create("CA1", "MZ2", CallerContext{PhoneNumber: "+15550199"})
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}

	got, err := r.Get("CA1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != first {
		t.Fatalf("duplicate start replaced the original session")
	}
	if got.Caller.PhoneNumber != "+15550100" {
		t.Fatalf("original caller context lost: %s", got.Caller.PhoneNumber)
	}
}

func TestGetUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRemoveThenRecreate(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Create("CA1", "MZ1", CallerContext{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Remove("CA1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}

	// The id is free again.
	if _, err := r.Create("CA1", "MZ2", CallerContext{}); err != nil {
		t.Fatalf("expected recreate to succeed, got %v", err)
	}
}

func TestReleaseIsPointerMatched(t *testing.T) {
	r := NewRegistry()

	stale, _ := r.Create("CA1", "MZ1", CallerContext{})
	if !r.Release(stale) {
		t.Fatalf("expected first release to succeed")
	}
	if r.Release(stale) {
		t.Fatalf("expected second release to be a no-op")
	}

	// A new call reusing the id must not be evicted by a late teardown of
	// the old session.
	fresh, _ := r.Create("CA1", "MZ2", CallerContext{})
	if r.Release(stale) {
		t.Fatalf("stale release evicted the fresh session")
	}
	got, err := r.Get("CA1")
	if err != nil || got != fresh {
		t.Fatalf("fresh session lost: %v", err)
	}
}
