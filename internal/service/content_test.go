package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sakif/unityboard/internal/executor"
	"github.com/sakif/unityboard/internal/model"
)

// =========================================================================
// RESOURCES
// =========================================================================

func TestResourceUploadAndDelete(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner")
	member := env.user(t, "member")
	other := env.user(t, "other")
	p := env.project(t, "Apollo", owner, map[*model.User]model.Role{member: model.RoleMember, other: model.RoleMember})
	svc := NewResourceService(env.db, env.files, env.logger)
	ctx := context.Background()

	res, err := svc.Upload(ctx, member.ID, p.ID, UploadInput{
		FileName: "../../notes.txt",
		MimeType: "text/plain",
		Body:     strings.NewReader("hello"),
	})
	mustNoErr(t, err)
	if res.Provider != model.ProviderLocal || res.Size != 5 || res.FileName != "notes.txt" || res.Title != "notes.txt" {
		t.Errorf("resource = %+v", res)
	}
	if !strings.HasPrefix(res.URL, "/uploads/") {
		t.Errorf("url = %q", res.URL)
	}
	onDisk := filepath.Join(env.files.Dir(), res.StorageKey)
	if _, err := os.Stat(onDisk); err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}

	assertKind(t, svc.Delete(ctx, other.ID, res.ID), errForbidden)
	mustNoErr(t, svc.Delete(ctx, owner.ID, res.ID))
	if _, err := os.Stat(onDisk); !os.IsNotExist(err) {
		t.Errorf("file still on disk after delete: %v", err)
	}
}

func TestResourceLinks(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner")
	stranger := env.user(t, "stranger")
	p := env.project(t, "Apollo", owner, nil)
	svc := NewResourceService(env.db, env.files, env.logger)
	ctx := context.Background()

	res, err := svc.AddLink(ctx, owner.ID, p.ID, "", "https://go.dev/doc")
	mustNoErr(t, err)
	if res.Provider != model.ProviderExternal || res.Title != "https://go.dev/doc" {
		t.Errorf("link = %+v", res)
	}

	_, err = svc.AddLink(ctx, owner.ID, p.ID, "bad", "javascript:alert(1)")
	assertKind(t, err, errValidation)

	_, err = svc.Upload(ctx, stranger.ID, p.ID, UploadInput{FileName: "x", Body: strings.NewReader("x")})
	assertKind(t, err, errForbidden)

	list, err := svc.List(ctx, owner.ID, p.ID)
	mustNoErr(t, err)
	if len(list) != 1 {
		t.Errorf("resources = %d, want 1", len(list))
	}
}

// =========================================================================
// LEARNING
// =========================================================================

func TestLearningEntriesArePrivate(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner")
	member := env.user(t, "member")
	p := env.project(t, "Apollo", owner, map[*model.User]model.Role{member: model.RoleMember})
	svc := NewLearningService(env.db, env.logger)
	ctx := context.Background()

	l, err := svc.Create(ctx, member.ID, p.ID, LearningInput{Topic: ptr("Generics"), Tags: &[]string{"go"}})
	mustNoErr(t, err)
	if l.Status != LearningPlanned {
		t.Errorf("status = %q", l.Status)
	}

	// Even the project owner cannot see another member's entry.
	_, err = svc.Get(ctx, owner.ID, l.ID)
	assertKind(t, err, errNotFound)
	assertKind(t, svc.Delete(ctx, owner.ID, l.ID), errNotFound)

	ownerList, err := svc.List(ctx, owner.ID, p.ID)
	mustNoErr(t, err)
	if len(ownerList) != 0 {
		t.Errorf("owner sees %d entries", len(ownerList))
	}

	got, err := svc.Update(ctx, member.ID, l.ID, LearningInput{Status: ptr("in-progress")})
	mustNoErr(t, err)
	if got.Status != LearningInProgress || got.Topic != "Generics" {
		t.Errorf("update = %+v", got)
	}
	_, err = svc.Update(ctx, member.ID, l.ID, LearningInput{Status: ptr("someday")})
	assertKind(t, err, errValidation)

	_, err = svc.Create(ctx, member.ID, p.ID, LearningInput{})
	assertKind(t, err, errValidation)
}

// =========================================================================
// SNIPPETS
// =========================================================================

type fakeExecutor struct {
	got []executor.ExecutionRequest
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	f.got = append(f.got, req)
	return &executor.ExecutionResult{Stdout: "ok\n"}, nil
}

func TestSnippetCRUDAndRun(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner")
	author := env.user(t, "author")
	other := env.user(t, "other")
	p := env.project(t, "Apollo", owner, map[*model.User]model.Role{author: model.RoleMember, other: model.RoleMember})
	exec := &fakeExecutor{}
	svc := NewSnippetService(env.db, exec, env.logger)
	ctx := context.Background()

	sn, err := svc.Create(ctx, author.ID, p.ID, SnippetInput{
		Title:    ptr("hello"),
		Language: ptr("py"),
		Code:     ptr("print('ok')"),
	})
	mustNoErr(t, err)
	if sn.Language != executor.Python {
		t.Errorf("language = %q, want normalized", sn.Language)
	}

	_, err = svc.Update(ctx, other.ID, sn.ID, SnippetInput{Title: ptr("mine now")})
	assertKind(t, err, errForbidden)
	got, err := svc.Update(ctx, owner.ID, sn.ID, SnippetInput{Description: ptr("greets")})
	mustNoErr(t, err)
	if got.Title != "hello" || got.Description != "greets" {
		t.Errorf("update = %+v", got)
	}

	res, err := svc.Run(ctx, other.ID, sn.ID)
	mustNoErr(t, err)
	if res.Stdout != "ok\n" || len(exec.got) != 1 || exec.got[0].Language != executor.Python {
		t.Errorf("run = %+v, requests = %+v", res, exec.got)
	}

	_, err = svc.Execute(ctx, "cobol", "DISPLAY 'HI'")
	assertKind(t, err, errValidation)
	_, err = svc.Execute(ctx, "js", "  ")
	assertKind(t, err, errValidation)

	assertKind(t, svc.Delete(ctx, other.ID, sn.ID), errForbidden)
	mustNoErr(t, svc.Delete(ctx, author.ID, sn.ID))
}

func TestSnippetRun_SandboxDisabled(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner")
	p := env.project(t, "Apollo", owner, nil)
	svc := NewSnippetService(env.db, nil, env.logger)
	ctx := context.Background()

	sn, err := svc.Create(ctx, owner.ID, p.ID, SnippetInput{Title: ptr("t"), Language: ptr("python"), Code: ptr("print(1)")})
	mustNoErr(t, err)
	_, err = svc.Run(ctx, owner.ID, sn.ID)
	assertKind(t, err, errValidation)
}

// =========================================================================
// SOLUTIONS
// =========================================================================

func TestSolutionCreateCreditsAuthor(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, "owner")
	p := env.project(t, "Apollo", owner, nil)
	svc := NewSolutionService(env.db, env.logger)
	ctx := context.Background()

	sol, err := svc.Create(ctx, owner.ID, p.ID, SolutionInput{
		Title:          ptr("Two sum"),
		Difficulty:     ptr("easy"),
		TimeComplexity: ptr("O(n)"),
	})
	mustNoErr(t, err)
	if sol.Difficulty != "easy" || sol.TimeComplexity != "O(n)" {
		t.Errorf("solution = %+v", sol)
	}

	_, err = svc.Create(ctx, owner.ID, p.ID, SolutionInput{Title: ptr("x"), Difficulty: ptr("legendary")})
	assertKind(t, err, errValidation)

	u, err := env.db.GetUserByID(ctx, owner.ID)
	mustNoErr(t, err)
	if u.Analytics.LifetimeSolutions != 1 || u.Analytics.Contributions != 1 {
		t.Errorf("analytics = %+v", u.Analytics)
	}

	list, err := svc.List(ctx, owner.ID, p.ID)
	mustNoErr(t, err)
	if len(list) != 1 {
		t.Errorf("solutions = %d, want 1", len(list))
	}
	mustNoErr(t, svc.Delete(ctx, owner.ID, sol.ID))
	_, err = svc.Get(ctx, owner.ID, sol.ID)
	assertKind(t, err, errNotFound)
}
