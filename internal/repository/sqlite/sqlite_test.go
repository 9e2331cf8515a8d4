package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/unityboard/internal/apperror"
	"github.com/sakif/unityboard/internal/model"
)

// newTestDB opens a fresh in-memory database per test. With a single pooled
// connection the database lives until Close.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, name, email string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: email, PasswordHash: "hash"}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// createTestProject creates a project owned by owner.
func createTestProject(t *testing.T, db *DB, name string, owner *model.User) *model.Project {
	t.Helper()
	p := &model.Project{
		Name:       name,
		Visibility: model.VisibilityPublic,
		CreatedBy:  owner.ID,
		Members: []model.Member{
			{User: model.MemberRef{ID: owner.ID}, Role: model.RoleOwner},
		},
	}
	if err := db.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	return p
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNew_Migrations(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	// Running migrations twice must be a no-op.
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}

func TestListCodec(t *testing.T) {
	if got := encodeList(nil); got != "[]" {
		t.Errorf("encodeList(nil) = %q, want []", got)
	}
	out, err := decodeList(`["a","b"]`)
	if err != nil {
		t.Fatalf("decodeList() error = %v", err)
	}
	if len(out) != 2 || out[0] != "a" || out[1] != "b" {
		t.Errorf("decodeList() = %v", out)
	}
	empty, err := decodeList("")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("decodeList(\"\") = %v, %v; want empty non-nil slice", empty, err)
	}
}
