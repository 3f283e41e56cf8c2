package registry

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	rec := CallRecord{CallID: "c1", Status: "initiated", InviteeName: "Jane"}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := s.Get(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.InviteeName != "Jane" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestMemoryStoreUpdate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Put(ctx, CallRecord{CallID: "c1", Status: "initiated"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	updated, err := s.Update(ctx, "c1", func(r *CallRecord) error {
		r.Status = "completed"
		r.Events = append(r.Events, CallEvent{Status: "Status changed to completed"})
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != "completed" || len(updated.Events) != 1 {
		t.Fatalf("unexpected updated record: %+v", updated)
	}

	got, _, _ := s.Get(ctx, "c1")
	if got.Status != "completed" {
		t.Fatalf("update not persisted: %+v", got)
	}
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Update(context.Background(), "missing", func(r *CallRecord) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreUpdateFnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Put(ctx, CallRecord{CallID: "c1", Status: "initiated"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	boom := errors.New("boom")
	if _, err := s.Update(ctx, "c1", func(r *CallRecord) error {
		r.Status = "corrupted"
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	got, _, _ := s.Get(ctx, "c1")
	if got.Status != "initiated" {
		t.Fatalf("failed update must not persist, got %+v", got)
	}
}

func TestMemoryStoreListCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Put(ctx, CallRecord{CallID: "c1"})
	s.Put(ctx, CallRecord{CallID: "c2"})

	out, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}

	// mutating the returned map must not touch the store
	delete(out, "c1")
	if _, ok, _ := s.Get(ctx, "c1"); !ok {
		t.Fatalf("list result aliases store state")
	}
}
