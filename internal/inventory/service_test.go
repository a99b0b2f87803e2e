package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erazemk/inventar/internal/db"
	"github.com/erazemk/inventar/internal/live"
	"github.com/erazemk/inventar/internal/model"
	"github.com/erazemk/inventar/internal/repository"
	"github.com/erazemk/inventar/internal/store"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	items := store.NewItems(db.NewTestDB(t), live.NewTracker(nil))
	s := NewService(repository.NewItems(items), opts...)
	t.Cleanup(s.Close)
	return s
}

func waitIdle(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	var zero T
	return zero
}

func expectQuiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestIsEntryValid(t *testing.T) {
	tests := []struct {
		name, description, itemType string
		want                        bool
	}{
		{"Widget", "A widget", "Tool", true},
		{" Widget ", "x", "y", true},
		{"", "A widget", "Tool", false},
		{"Widget", "", "Tool", false},
		{"Widget", "A widget", "", false},
		{"   ", "A widget", "Tool", false},
		{"Widget", "\t\n", "Tool", false},
		{"Widget", "A widget", "  ", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		if got := IsEntryValid(tt.name, tt.description, tt.itemType); got != tt.want {
			t.Errorf("IsEntryValid(%q, %q, %q) = %v, want %v", tt.name, tt.description, tt.itemType, got, tt.want)
		}
	}
}

func TestAddNewItem(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.AddNewItem("Widget", "A widget", "Tool")
	waitIdle(t, s)

	all, err := s.AllItems().Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 item, got %d", len(all))
	}
	got := all[0]
	if got.ID == 0 || got.Name != "Widget" || got.Description != "A widget" || got.Type != "Tool" {
		t.Errorf("unexpected item: %+v", got)
	}
}

func TestUpdateItemReplacesFields(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.AddNewItem("Widget", "A widget", "Tool")
	waitIdle(t, s)
	all, _ := s.AllItems().Get(ctx)
	id := all[0].ID

	s.UpdateItem(id, "Widget2", "B widget", "Tool2")
	waitIdle(t, s)

	got, err := s.RetrieveItem(id).Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := model.Item{ID: id, Name: "Widget2", Description: "B widget", Type: "Tool2"}
	if got == nil || *got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDeleteItem(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.AddNewItem("Widget", "A widget", "Tool")
	s.AddNewItem("Gadget", "A gadget", "Tool")
	waitIdle(t, s)
	all, _ := s.AllItems().Get(ctx)

	s.DeleteItem(all[0])
	waitIdle(t, s)

	all, _ = s.AllItems().Get(ctx)
	if len(all) != 1 || all[0].Name != "Gadget" {
		t.Errorf("unexpected collection after delete: %+v", all)
	}
}

func TestLiveCollectionDeliveries(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sub, err := s.AllItems().Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	if got := receive(t, sub.C()); len(got) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", got)
	}

	s.AddNewItem("Widget", "A widget", "Tool")
	waitIdle(t, s)
	got := receive(t, sub.C())
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %+v", got)
	}
	expectQuiet(t, sub.C())

	s.UpdateItem(got[0].ID, "Widget2", "B widget", "Tool2")
	waitIdle(t, s)
	if got := receive(t, sub.C()); got[0].Name != "Widget2" {
		t.Fatalf("after update: %+v", got)
	}
	expectQuiet(t, sub.C())
}

func TestMissingIDIsSilent(t *testing.T) {
	var failures []error
	var mu sync.Mutex
	s := newTestService(t, WithErrorHandler(func(op string, item model.Item, err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	}))
	ctx := context.Background()

	s.AddNewItem("Widget", "A widget", "Tool")
	waitIdle(t, s)

	sub, _ := s.AllItems().Subscribe(ctx)
	defer sub.Close()
	before := receive(t, sub.C())

	s.UpdateItem(999, "x", "y", "z")
	s.DeleteItem(model.Item{ID: 999, Name: "x", Description: "y", Type: "z"})
	waitIdle(t, s)
	expectQuiet(t, sub.C())

	after, _ := s.AllItems().Get(ctx)
	if len(after) != len(before) || after[0] != before[0] {
		t.Errorf("collection changed: before %+v after %+v", before, after)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failures) != 0 {
		t.Errorf("expected no failures, got %v", failures)
	}
}

func TestAdditionsKeepSubmissionOrder(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	names := []string{"first", "second", "third", "fourth"}
	for _, name := range names {
		s.AddNewItem(name, "d", "t")
	}
	waitIdle(t, s)

	all, _ := s.AllItems().Get(ctx)
	if len(all) != len(names) {
		t.Fatalf("expected %d items, got %d", len(names), len(all))
	}
	for i, item := range all {
		if item.Name != names[i] {
			t.Errorf("position %d: got %q, want %q", i, item.Name, names[i])
		}
		if i > 0 && item.ID <= all[i-1].ID {
			t.Errorf("ids not increasing: %d after %d", item.ID, all[i-1].ID)
		}
	}
}

func TestSetItemImage(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.AddNewItem("Widget", "A widget", "Tool")
	waitIdle(t, s)
	all, _ := s.AllItems().Get(ctx)

	s.SetItemImage(all[0].ID, []byte("jpeg"), "image/jpeg")
	waitIdle(t, s)

	data, mime, err := s.ItemImage(ctx, all[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "jpeg" || mime != "image/jpeg" {
		t.Errorf("got %q %q", data, mime)
	}
}

// blockingRepo records calls; Insert blocks until its context is cancelled
// when block is set.
type blockingRepo struct {
	Repository
	mu       sync.Mutex
	inserted []string
	started  chan struct{}
	block    bool
	fail     error
}

func (r *blockingRepo) Insert(ctx context.Context, item *model.Item) (int64, error) {
	r.mu.Lock()
	r.inserted = append(r.inserted, item.Name)
	block := r.block
	r.mu.Unlock()

	if block {
		close(r.started)
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return 1, nil
}

func (r *blockingRepo) Update(ctx context.Context, item model.Item) error {
	return r.fail
}

func (r *blockingRepo) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.inserted...)
}

func TestCloseCancelsPending(t *testing.T) {
	repo := &blockingRepo{block: true, started: make(chan struct{})}
	s := NewService(repo)

	s.AddNewItem("running", "d", "t")
	<-repo.started
	repo.mu.Lock()
	repo.block = false
	repo.mu.Unlock()
	s.AddNewItem("queued", "d", "t")

	s.Close()
	s.AddNewItem("late", "d", "t")

	if got := repo.names(); len(got) != 1 || got[0] != "running" {
		t.Errorf("expected only the running insert, got %v", got)
	}
	if err := s.Sync(context.Background()); err == nil {
		t.Error("expected Sync to fail after Close")
	}
}

func TestErrorHandlerReceivesFailure(t *testing.T) {
	boom := errors.New("disk I/O error")
	repo := &blockingRepo{fail: boom}

	type failure struct {
		op   string
		item model.Item
		err  error
	}
	got := make(chan failure, 1)
	s := NewService(repo, WithErrorHandler(func(op string, item model.Item, err error) {
		got <- failure{op, item, err}
	}))
	defer s.Close()

	s.UpdateItem(7, "a", "b", "c")

	select {
	case f := <-got:
		if f.op != "update" || f.item.ID != 7 || !errors.Is(f.err, boom) {
			t.Errorf("unexpected failure: %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}
}
