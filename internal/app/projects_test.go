package app

import (
	"context"
	"strings"
	"testing"

	"devhub/pkg/domain"
)

func createProject(t *testing.T, e *testEnv, owner domain.User, name string, files ...Upload) domain.Project {
	t.Helper()
	project, err := e.app.CreateProject(context.Background(), owner, CreateProjectRequest{
		Name:        name,
		Description: "a test project",
		ProjectType: "Web App",
		Hashtags:    []string{"go", "web"},
	}, files, nil)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return project
}

func TestCreateProjectWritesInitialLedgerEntry(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")

	project := createProject(t, e, owner, "devhub", upload("main.go", "package main"))

	if project.CurrentVersion != "1.0.0" {
		t.Fatalf("version = %q, want 1.0.0", project.CurrentVersion)
	}
	if !project.IsMember(owner.ID) {
		t.Fatal("owner should be a member")
	}
	if len(project.Files) != 1 || project.Files[0].OriginalName != "main.go" {
		t.Fatalf("files = %+v", project.Files)
	}
	if !strings.HasPrefix(project.Files[0].URL, "projects/"+project.ID+"/") {
		t.Fatalf("artifact key = %q", project.Files[0].URL)
	}

	checkins, err := e.app.ListCheckins(project.ID)
	if err != nil {
		t.Fatalf("ListCheckins: %v", err)
	}
	if len(checkins) != 1 || checkins[0].Message != "Project created" {
		t.Fatalf("ledger = %+v", checkins)
	}
	if len(e.feed.events) != 1 || e.feed.events[0].Verb != domain.VerbProjectCreated {
		t.Fatalf("feed = %+v", e.feed.events)
	}
}

func TestCreateProjectKeepsHashtagDuplicates(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")

	project, err := e.app.CreateProject(context.Background(), owner, CreateProjectRequest{
		Name:     "devhub",
		Hashtags: []string{"#go", "go", "Go", " ", "web"},
	}, nil, nil)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	want := []string{"go", "go", "Go", "web"}
	if len(project.Hashtags) != len(want) {
		t.Fatalf("hashtags = %v, want %v", project.Hashtags, want)
	}
	for i := range want {
		if project.Hashtags[i] != want[i] {
			t.Fatalf("hashtags = %v, want %v", project.Hashtags, want)
		}
	}
}

func TestCreateProjectRejectsUnknownType(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")

	_, err := e.app.CreateProject(context.Background(), owner, CreateProjectRequest{
		Name:        "devhub",
		ProjectType: "Spreadsheet",
	}, nil, nil)
	kindOf(t, err, KindValidation)
}

func TestCheckoutMutualExclusion(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")
	member := e.signUp(t, "bob")
	ctx := context.Background()

	project := createProject(t, e, owner, "devhub")
	if _, err := e.app.UpdateProject(ctx, owner, project.ID, ProjectUpdate{
		MemberIDs: &[]string{owner.ID, member.ID},
	}, nil); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}

	locked, err := e.app.Checkout(ctx, owner, project.ID)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if locked.Lock == nil || locked.Lock.HolderID != owner.ID {
		t.Fatalf("lock = %+v", locked.Lock)
	}

	// Re-checkout by the holder is a no-op success.
	if _, err := e.app.Checkout(ctx, owner, project.ID); err != nil {
		t.Fatalf("re-checkout by holder: %v", err)
	}

	_, err = e.app.Checkout(ctx, member, project.ID)
	kindOf(t, err, KindConflict)
}

func TestCheckoutRequiresMembership(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")
	outsider := e.signUp(t, "mallory")

	project := createProject(t, e, owner, "devhub")
	_, err := e.app.Checkout(context.Background(), outsider, project.ID)
	kindOf(t, err, KindForbidden)
}

func TestCheckinRequiresLockHolder(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")
	ctx := context.Background()
	project := createProject(t, e, owner, "devhub")

	// Not checked out at all.
	_, _, err := e.app.Checkin(ctx, owner, project.ID, CheckinRequest{Message: "update"}, nil)
	kindOf(t, err, KindInvalidState)
}

func TestCheckinMergesFilesByOriginalName(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")
	ctx := context.Background()
	project := createProject(t, e, owner, "devhub", upload("main.go", "v1"))
	firstStored := project.Files[0].StoredName

	if _, err := e.app.Checkout(ctx, owner, project.ID); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	updated, entry, err := e.app.Checkin(ctx, owner, project.ID, CheckinRequest{
		Message: "rewrite main, add readme",
		Version: "1.1.0",
	}, []Upload{upload("main.go", "v2"), upload("README.md", "docs")})
	if err != nil {
		t.Fatalf("Checkin: %v", err)
	}

	if updated.Lock != nil {
		t.Fatal("lock should be released after check-in")
	}
	if updated.CurrentVersion != "1.1.0" {
		t.Fatalf("version = %q", updated.CurrentVersion)
	}
	if len(updated.Files) != 2 {
		t.Fatalf("files = %+v", updated.Files)
	}
	if !hasFileNamed(updated.Files, "main.go") || !hasFileNamed(updated.Files, "README.md") {
		t.Fatalf("files = %+v", updated.Files)
	}
	i := fileByOriginalName(updated.Files, "main.go")
	if updated.Files[i].StoredName == firstStored {
		t.Fatal("replaced file kept its old stored name")
	}
	if len(entry.Files) != 2 {
		t.Fatalf("ledger entry files = %+v", entry.Files)
	}

	checkins, err := e.app.ListCheckins(project.ID)
	if err != nil {
		t.Fatalf("ListCheckins: %v", err)
	}
	if len(checkins) != 2 {
		t.Fatalf("ledger length = %d, want 2", len(checkins))
	}
	if checkins[0].ID != entry.ID {
		t.Fatalf("newest ledger entry = %+v", checkins[0])
	}
	if e.feed.events[len(e.feed.events)-1].Verb != domain.VerbCheckin {
		t.Fatalf("feed = %+v", e.feed.events)
	}
}

func TestCheckinNeedsMessageOrFiles(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")
	ctx := context.Background()
	project := createProject(t, e, owner, "devhub")

	if _, err := e.app.Checkout(ctx, owner, project.ID); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	_, _, err := e.app.Checkin(ctx, owner, project.ID, CheckinRequest{Message: "   "}, nil)
	kindOf(t, err, KindValidation)

	// Message alone is enough.
	if _, _, err := e.app.Checkin(ctx, owner, project.ID, CheckinRequest{Message: "notes only"}, nil); err != nil {
		t.Fatalf("Checkin with message only: %v", err)
	}
}

func TestDeleteProjectRemovesLedgerAndArtifacts(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")
	other := e.signUp(t, "bob")
	ctx := context.Background()
	project := createProject(t, e, owner, "devhub", upload("main.go", "v1"))

	err := e.app.DeleteProject(ctx, other, project.ID)
	kindOf(t, err, KindForbidden)

	if err := e.app.DeleteProject(ctx, owner, project.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := e.app.GetProject(project.ID); KindOf(err) != KindNotFound {
		t.Fatalf("project still retrievable: %v", err)
	}
	if _, err := e.app.ListCheckins(project.ID); KindOf(err) != KindNotFound {
		t.Fatalf("ListCheckins after delete: %v", err)
	}
	if e.objects.count() != 0 {
		t.Fatalf("%d artifacts left behind", e.objects.count())
	}
}

func TestReplaceFileAdoptsNewStoredName(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")
	ctx := context.Background()
	project := createProject(t, e, owner, "devhub", upload("main.go", "v1"))
	oldRef := project.Files[0]

	updated, err := e.app.ReplaceFile(ctx, owner, project.ID, oldRef.StoredName, upload("main.go", "v2"))
	if err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}
	if len(updated.Files) != 1 {
		t.Fatalf("files = %+v", updated.Files)
	}
	if updated.Files[0].StoredName == oldRef.StoredName {
		t.Fatal("replacement kept old stored name")
	}
	found := false
	for _, key := range e.objects.deleted {
		if key == oldRef.URL {
			found = true
		}
	}
	if !found {
		t.Fatalf("old artifact %q was not deleted", oldRef.URL)
	}
}

func TestDeleteFileIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")
	ctx := context.Background()
	project := createProject(t, e, owner, "devhub", upload("main.go", "v1"))
	stored := project.Files[0].StoredName

	updated, err := e.app.DeleteFile(ctx, owner, project.ID, stored)
	if err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if len(updated.Files) != 0 {
		t.Fatalf("files = %+v", updated.Files)
	}

	// Deleting again succeeds without changing anything.
	if _, err := e.app.DeleteFile(ctx, owner, project.ID, stored); err != nil {
		t.Fatalf("second DeleteFile: %v", err)
	}
}

func TestFileMutationIgnoresOthersCheckout(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")
	member := e.signUp(t, "bob")
	outsider := e.signUp(t, "mallory")
	ctx := context.Background()
	project := createProject(t, e, owner, "devhub", upload("main.go", "v1"))
	if _, err := e.app.UpdateProject(ctx, owner, project.ID, ProjectUpdate{
		MemberIDs: &[]string{owner.ID, member.ID},
	}, nil); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if _, err := e.app.Checkout(ctx, member, project.ID); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	// Direct file operations sit outside the check-in protocol, so a
	// member may attach files even while someone else holds the lock.
	updated, err := e.app.AddFiles(ctx, owner, project.ID, []Upload{upload("extra.go", "x")})
	if err != nil {
		t.Fatalf("AddFiles during checkout: %v", err)
	}
	if len(updated.Files) != 2 || !hasFileNamed(updated.Files, "extra.go") {
		t.Fatalf("files = %+v", updated.Files)
	}
	if updated.Lock == nil || updated.Lock.HolderID != member.ID {
		t.Fatalf("lock = %+v, want held by member", updated.Lock)
	}

	// Membership is still required.
	_, err = e.app.AddFiles(ctx, outsider, project.ID, []Upload{upload("bad.go", "y")})
	kindOf(t, err, KindForbidden)
}

func TestFileDownloadURL(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")
	project := createProject(t, e, owner, "devhub", upload("main.go", "v1"))

	dl, err := e.app.FileDownloadURL(context.Background(), project.ID, project.Files[0].StoredName)
	if err != nil {
		t.Fatalf("FileDownloadURL: %v", err)
	}
	if dl.Filename != "main.go" {
		t.Fatalf("filename = %q", dl.Filename)
	}
	mustContain(t, dl.URL, project.Files[0].URL)

	_, err = e.app.FileDownloadURL(context.Background(), project.ID, "missing")
	kindOf(t, err, KindNotFound)
}

func TestAdminUnlockProject(t *testing.T) {
	e := newTestEnv(t)
	admin := e.signUp(t, "root")
	owner := e.signUp(t, "alice")
	ctx := context.Background()
	project := createProject(t, e, owner, "devhub")

	if _, err := e.app.Checkout(ctx, owner, project.ID); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	unlocked, err := e.app.AdminUnlockProject(ctx, admin, project.ID)
	if err != nil {
		t.Fatalf("AdminUnlockProject: %v", err)
	}
	if unlocked.Lock != nil {
		t.Fatal("lock not cleared")
	}

	// Unlocking an unlocked project is a no-op.
	if _, err := e.app.AdminUnlockProject(ctx, admin, project.ID); err != nil {
		t.Fatalf("second AdminUnlockProject: %v", err)
	}
}

func TestSearchSpansProjectsAndCheckins(t *testing.T) {
	e := newTestEnv(t)
	owner := e.signUp(t, "alice")
	ctx := context.Background()
	project := createProject(t, e, owner, "weather-station")

	if _, err := e.app.Checkout(ctx, owner, project.ID); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if _, _, err := e.app.Checkin(ctx, owner, project.ID, CheckinRequest{Message: "calibrate barometer"}, nil); err != nil {
		t.Fatalf("Checkin: %v", err)
	}

	results, err := e.app.Search("barometer")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results.Checkins) != 1 {
		t.Fatalf("checkin matches = %+v", results.Checkins)
	}
	results, err = e.app.Search("weather")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results.Projects) != 1 {
		t.Fatalf("project matches = %+v", results.Projects)
	}
}
