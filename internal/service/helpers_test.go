package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
	"github.com/sakif/unityboard/internal/notify"
	"github.com/sakif/unityboard/internal/repository"
	"github.com/sakif/unityboard/internal/repository/sqlite"
	"github.com/sakif/unityboard/internal/storage"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================
//
// Service tests run against the real SQLite store in memory: the rules under
// test (membership, cascades, idempotent joins) live partly in SQL. Only the
// realtime publisher is faked, to record what would have been pushed.

type emitted struct {
	target string // room or user id
	event  string
	toUser bool
}

type fakePublisher struct {
	mu      sync.Mutex
	events  []emitted
	evicted []string // "user@room"
	closed  []string
}

func (p *fakePublisher) EvictUser(userID, room string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evicted = append(p.evicted, userID+"@"+room)
}

func (p *fakePublisher) CloseRoom(room string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, room)
}

func (p *fakePublisher) EmitToRoom(room, event string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, emitted{target: room, event: event})
}

func (p *fakePublisher) EmitToUser(userID, event string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, emitted{target: userID, event: event, toUser: true})
}

// count returns how many events named event were emitted.
func (p *fakePublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.event == event {
			n++
		}
	}
	return n
}

type testEnv struct {
	db       *sqlite.DB
	pub      *fakePublisher
	notifier *notify.Notifier
	files    *storage.LocalStore
	logger   *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := &fakePublisher{}
	return &testEnv{
		db:       db,
		pub:      pub,
		notifier: notify.New(db, pub, logger),
		files:    files,
		logger:   logger,
	}
}

func (e *testEnv) projects() *ProjectService {
	return NewProjectService(e.db, e.files, e.notifier, e.pub, e.logger)
}

func (e *testEnv) user(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@example.com", PasswordHash: "x"}
	if err := e.db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return u
}

// project creates a project owned by owner with the given extra members.
func (e *testEnv) project(t *testing.T, name string, owner *model.User, members map[*model.User]model.Role) *model.Project {
	t.Helper()
	ctx := context.Background()
	p, err := e.projects().Create(ctx, owner.ID, CreateProjectInput{Name: name})
	if err != nil {
		t.Fatalf("failed to create project %s: %v", name, err)
	}
	for u, role := range members {
		if _, err := e.db.AddMember(ctx, p.ID, u.ID, role); err != nil {
			t.Fatalf("failed to add member: %v", err)
		}
	}
	p, err = e.db.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("failed to reload project: %v", err)
	}
	return p
}

func (e *testEnv) notifications(t *testing.T, userID, kind string) int {
	t.Helper()
	list, err := e.db.ListNotifications(context.Background(), userID, repository.ListOptions{Limit: 200})
	if err != nil {
		t.Fatalf("failed to list notifications: %v", err)
	}
	n := 0
	for _, note := range list {
		if note.Type == kind {
			n++
		}
	}
	return n
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func ptr[T any](v T) *T { return &v }

var (
	errNotFound   = apperror.ErrNotFound
	errForbidden  = apperror.ErrForbidden
	errValidation = apperror.ErrValidation
)
